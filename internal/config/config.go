package config

import (
	"fmt"
	"time"

	"ChordDHT/internal/configloader"
)

// NodeConfig identifies this node on the ring and how it binds.
type NodeConfig struct {
	// Addr is the node's own address as advertised to peers
	// (host:port). If empty, it is derived from Host/Port at startup
	// via Listen, picking a private or public interface per Mode.
	Addr string `yaml:"addr"`
	// Host, if set, pins the bind/advertise host explicitly. Left
	// empty, Listen auto-selects one matching Mode.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// Mode selects which interface family Listen auto-selects when
	// Host is empty: "private" or "public".
	Mode string `yaml:"mode"`
}

// RingConfig holds the Chord ring protocol parameters.
type RingConfig struct {
	IdentifierBits           int           `yaml:"identifierBits"`           // m, default 160
	SuccessorListSize        int           `yaml:"successorListSize"`        // r, default 8
	StabilizeInterval        time.Duration `yaml:"stabilizeInterval"`        // T, default 10s
	FixFingersInterval       time.Duration `yaml:"fixFingersInterval"`       // default 10s
	CheckPredecessorInterval time.Duration `yaml:"checkPredecessorInterval"` // default 10s
	RPCTimeout               time.Duration `yaml:"rpcTimeout"`               // default 5s
	HopBound                 int           `yaml:"hopBound"`                 // default 2*m; 0 means derive from IdentifierBits
}

// StorageConfig configures the local key-value store.
type StorageConfig struct {
	// Backend selects the storage implementation. Only "memory" is
	// built in; this field exists so a future backend can be added
	// without changing the wire/config shape.
	Backend string `yaml:"backend"`
}

// Route53Config configures optional Route53-based bootstrap
// registration/discovery.
type Route53Config = configloader.Route53Config

// DNSConfig configures direct DNS-based bootstrap peer discovery.
type DNSConfig struct {
	// Name is the record queried to discover candidate peers: the SRV
	// base domain when SRV is true, a plain A/AAAA name otherwise.
	Name string `yaml:"name"`
	// Resolver is the DNS server address to query (host[:port]). If
	// empty, a public resolver is used.
	Resolver string `yaml:"resolver"`
	// SRV selects SRV resolution; Service and Proto form the
	// _service._proto prefix of the query name.
	SRV     bool   `yaml:"srv"`
	Service string `yaml:"service"`
	Proto   string `yaml:"proto"`
	// Port is the node port assumed for A/AAAA answers (SRV answers
	// carry their own).
	Port int `yaml:"port"`
}

// BootstrapConfig configures how this node discovers an existing ring
// to join, and optionally announces itself for others to discover.
type BootstrapConfig struct {
	// Mode selects the discovery strategy: "static", "route53", or "dns".
	Mode    string        `yaml:"mode"`
	Peers   []string      `yaml:"peers"`
	Route53 Route53Config `yaml:"route53"`
	DNS     DNSConfig     `yaml:"dns"`
}

// LoggerConfig configures structured logging.
type LoggerConfig = configloader.LoggerConfig

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Active       bool   `yaml:"active"`
	Exporter     string `yaml:"exporter"` // "stdout" or "otlp"
	OTLPEndpoint string `yaml:"otlpEndpoint"`
	ServiceName  string `yaml:"serviceName"`
}

// Config is the top-level configuration for a Chord node process.
type Config struct {
	Node      NodeConfig      `yaml:"node"`
	Ring      RingConfig      `yaml:"ring"`
	Storage   StorageConfig   `yaml:"storage"`
	Bootstrap BootstrapConfig `yaml:"bootstrap"`
	Logger    LoggerConfig    `yaml:"logger"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// Default returns a Config populated with the standard Chord
// parameters (m=160, r=8, stabilize every 10s, RPC timeout 5s), a
// single-node static bootstrap, and a console logger.
func Default() Config {
	return Config{
		Node: NodeConfig{
			Port: 7000,
			Mode: "private",
		},
		Ring: RingConfig{
			IdentifierBits:           160,
			SuccessorListSize:        8,
			StabilizeInterval:        10 * time.Second,
			FixFingersInterval:       10 * time.Second,
			CheckPredecessorInterval: 10 * time.Second,
			RPCTimeout:               5 * time.Second,
			HopBound:                 0,
		},
		Storage: StorageConfig{
			Backend: "memory",
		},
		Bootstrap: BootstrapConfig{
			Mode: "static",
		},
		Logger: LoggerConfig{
			Active:   true,
			Level:    "info",
			Encoding: "console",
			Mode:     "stdout",
		},
		Telemetry: TelemetryConfig{
			Active:      false,
			Exporter:    "stdout",
			ServiceName: "chorddht",
		},
	}
}

// LoadConfig reads a YAML file at path into a Config seeded with
// Default(), so unset fields keep their defaults. An empty path
// returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if err := configloader.LoadYAML(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnvOverrides overrides cfg's fields from environment variables,
// following the CHORD_<SECTION>_<FIELD> convention.
func ApplyEnvOverrides(cfg *Config) {
	configloader.OverrideString(&cfg.Node.Addr, "CHORD_NODE_ADDR")
	configloader.OverrideString(&cfg.Node.Host, "CHORD_NODE_HOST")
	configloader.OverrideInt(&cfg.Node.Port, "CHORD_NODE_PORT")
	configloader.OverrideString(&cfg.Node.Mode, "CHORD_NODE_MODE")

	configloader.OverrideInt(&cfg.Ring.IdentifierBits, "CHORD_RING_IDENTIFIER_BITS")
	configloader.OverrideInt(&cfg.Ring.SuccessorListSize, "CHORD_RING_SUCCESSOR_LIST_SIZE")
	configloader.OverrideDuration(&cfg.Ring.StabilizeInterval, "CHORD_RING_STABILIZE_INTERVAL")
	configloader.OverrideDuration(&cfg.Ring.FixFingersInterval, "CHORD_RING_FIX_FINGERS_INTERVAL")
	configloader.OverrideDuration(&cfg.Ring.CheckPredecessorInterval, "CHORD_RING_CHECK_PREDECESSOR_INTERVAL")
	configloader.OverrideDuration(&cfg.Ring.RPCTimeout, "CHORD_RING_RPC_TIMEOUT")
	configloader.OverrideInt(&cfg.Ring.HopBound, "CHORD_RING_HOP_BOUND")

	configloader.OverrideString(&cfg.Storage.Backend, "CHORD_STORAGE_BACKEND")

	configloader.OverrideString(&cfg.Bootstrap.Mode, "CHORD_BOOTSTRAP_MODE")
	configloader.OverrideStringSlice(&cfg.Bootstrap.Peers, "CHORD_BOOTSTRAP_PEERS")
	configloader.OverrideString(&cfg.Bootstrap.Route53.HostedZoneID, "CHORD_BOOTSTRAP_ROUTE53_HOSTED_ZONE_ID")
	configloader.OverrideString(&cfg.Bootstrap.Route53.DomainSuffix, "CHORD_BOOTSTRAP_ROUTE53_DOMAIN_SUFFIX")
	configloader.OverrideInt64(&cfg.Bootstrap.Route53.TTL, "CHORD_BOOTSTRAP_ROUTE53_TTL")
	configloader.OverrideString(&cfg.Bootstrap.Route53.Region, "CHORD_BOOTSTRAP_ROUTE53_REGION")
	configloader.OverrideString(&cfg.Bootstrap.DNS.Name, "CHORD_BOOTSTRAP_DNS_NAME")
	configloader.OverrideString(&cfg.Bootstrap.DNS.Resolver, "CHORD_BOOTSTRAP_DNS_RESOLVER")
	configloader.OverrideBool(&cfg.Bootstrap.DNS.SRV, "CHORD_BOOTSTRAP_DNS_SRV")
	configloader.OverrideString(&cfg.Bootstrap.DNS.Service, "CHORD_BOOTSTRAP_DNS_SERVICE")
	configloader.OverrideString(&cfg.Bootstrap.DNS.Proto, "CHORD_BOOTSTRAP_DNS_PROTO")
	configloader.OverrideInt(&cfg.Bootstrap.DNS.Port, "CHORD_BOOTSTRAP_DNS_PORT")

	configloader.OverrideBool(&cfg.Logger.Active, "CHORD_LOGGER_ACTIVE")
	configloader.OverrideString(&cfg.Logger.Level, "CHORD_LOGGER_LEVEL")
	configloader.OverrideString(&cfg.Logger.Encoding, "CHORD_LOGGER_ENCODING")
	configloader.OverrideString(&cfg.Logger.Mode, "CHORD_LOGGER_MODE")
	configloader.OverrideString(&cfg.Logger.File.Path, "CHORD_LOGGER_FILE_PATH")
	configloader.OverrideInt(&cfg.Logger.File.MaxSize, "CHORD_LOGGER_FILE_MAX_SIZE")
	configloader.OverrideInt(&cfg.Logger.File.MaxBackups, "CHORD_LOGGER_FILE_MAX_BACKUPS")
	configloader.OverrideInt(&cfg.Logger.File.MaxAge, "CHORD_LOGGER_FILE_MAX_AGE")
	configloader.OverrideBool(&cfg.Logger.File.Compress, "CHORD_LOGGER_FILE_COMPRESS")

	configloader.OverrideBool(&cfg.Telemetry.Active, "CHORD_TELEMETRY_ACTIVE")
	configloader.OverrideString(&cfg.Telemetry.Exporter, "CHORD_TELEMETRY_EXPORTER")
	configloader.OverrideString(&cfg.Telemetry.OTLPEndpoint, "CHORD_TELEMETRY_OTLP_ENDPOINT")
	configloader.OverrideString(&cfg.Telemetry.ServiceName, "CHORD_TELEMETRY_SERVICE_NAME")
}

// ValidateConfig accumulates every configuration violation instead of
// failing on the first one, so operators see the whole picture at once.
func ValidateConfig(cfg Config) error {
	var errs []string

	if cfg.Node.Port <= 0 {
		errs = append(errs, "node.port must be > 0")
	}
	switch cfg.Node.Mode {
	case "private", "public":
	default:
		errs = append(errs, fmt.Sprintf("node.mode %q is not one of private|public", cfg.Node.Mode))
	}
	if cfg.Ring.IdentifierBits <= 0 {
		errs = append(errs, "ring.identifierBits must be > 0")
	}
	if cfg.Ring.SuccessorListSize <= 0 {
		errs = append(errs, "ring.successorListSize must be > 0")
	}
	if cfg.Ring.StabilizeInterval <= 0 {
		errs = append(errs, "ring.stabilizeInterval must be > 0")
	}
	if cfg.Ring.FixFingersInterval <= 0 {
		errs = append(errs, "ring.fixFingersInterval must be > 0")
	}
	if cfg.Ring.CheckPredecessorInterval <= 0 {
		errs = append(errs, "ring.checkPredecessorInterval must be > 0")
	}
	if cfg.Ring.RPCTimeout <= 0 {
		errs = append(errs, "ring.rpcTimeout must be > 0")
	}

	switch cfg.Bootstrap.Mode {
	case "static", "route53", "dns":
	default:
		errs = append(errs, fmt.Sprintf("bootstrap.mode %q is not one of static|route53|dns", cfg.Bootstrap.Mode))
	}
	if cfg.Bootstrap.Mode == "route53" && cfg.Bootstrap.Route53.HostedZoneID == "" {
		errs = append(errs, "bootstrap.route53.hostedZoneId must be set when bootstrap.mode=route53")
	}
	if cfg.Bootstrap.Mode == "dns" {
		if cfg.Bootstrap.DNS.Name == "" {
			errs = append(errs, "bootstrap.dns.name must be set when bootstrap.mode=dns")
		}
		if cfg.Bootstrap.DNS.SRV {
			if cfg.Bootstrap.DNS.Service == "" || cfg.Bootstrap.DNS.Proto == "" {
				errs = append(errs, "bootstrap.dns.service and bootstrap.dns.proto must be set when bootstrap.dns.srv=true")
			}
		} else if cfg.Bootstrap.DNS.Port <= 0 {
			errs = append(errs, "bootstrap.dns.port must be > 0 when bootstrap.mode=dns and srv=false")
		}
	}

	if cfg.Logger.Active {
		switch cfg.Logger.Mode {
		case "stdout", "file":
		default:
			errs = append(errs, fmt.Sprintf("logger.mode %q is not one of stdout|file", cfg.Logger.Mode))
		}
		if cfg.Logger.Mode == "file" && cfg.Logger.File.Path == "" {
			errs = append(errs, "logger.file.path must be set when logger.mode=file")
		}
	}

	if cfg.Telemetry.Active {
		switch cfg.Telemetry.Exporter {
		case "stdout", "otlp":
		default:
			errs = append(errs, fmt.Sprintf("telemetry.exporter %q is not one of stdout|otlp", cfg.Telemetry.Exporter))
		}
	}

	switch cfg.Storage.Backend {
	case "memory":
	default:
		errs = append(errs, fmt.Sprintf("storage.backend %q is not one of memory", cfg.Storage.Backend))
	}

	if len(errs) == 0 {
		return nil
	}
	msg := "invalid configuration:"
	for _, e := range errs {
		msg += "\n  - " + e
	}
	return fmt.Errorf("%s", msg)
}

// EffectiveHopBound returns the configured hop bound, or twice the
// identifier bit-length if unset.
func (c Config) EffectiveHopBound() int {
	if c.Ring.HopBound > 0 {
		return c.Ring.HopBound
	}
	return 2 * c.Ring.IdentifierBits
}

// LogConfig renders the configuration into a structured field set for
// startup logging. The config carries no secrets: AWS credentials are
// resolved by the SDK's own credential chain, never stored here.
func LogConfig(cfg Config) map[string]any {
	return map[string]any{
		"node":      cfg.Node,
		"ring":      cfg.Ring,
		"storage":   cfg.Storage,
		"bootstrap": cfg.Bootstrap,
		"logger":    cfg.Logger,
		"telemetry": cfg.Telemetry,
	}
}
