package bootstrap

import (
	"fmt"

	"ChordDHT/internal/config"
	"ChordDHT/internal/logger"
)

// New builds the Bootstrap implementation selected by the
// configuration's bootstrap mode.
func New(cfg config.BootstrapConfig, lgr logger.Logger) (Bootstrap, error) {
	switch cfg.Mode {
	case "static":
		return NewStaticBootstrap(cfg.Peers), nil
	case "route53":
		return NewRoute53Bootstrap(cfg.Route53)
	case "dns":
		return NewDNSBootstrap(cfg.DNS, lgr), nil
	default:
		return nil, fmt.Errorf("unsupported bootstrap mode: %s", cfg.Mode)
	}
}
