package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"ChordDHT/internal/bootstrap"
	"ChordDHT/internal/client"
	"ChordDHT/internal/config"
	"ChordDHT/internal/domain"
	"ChordDHT/internal/logger"
	zapfactory "ChordDHT/internal/logger/zap"
	"ChordDHT/internal/node"
	"ChordDHT/internal/routingtable"
	"ChordDHT/internal/server"
	"ChordDHT/internal/storage"
	"ChordDHT/internal/telemetry"
)

var defaultConfigPath = ""

func main() {
	// Parse command-line flags; an optional positional argument
	// overrides the configured port, so `node <port>` works without a
	// config file.
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %q: %v", *configPath, err)
	}
	config.ApplyEnvOverrides(&cfg)
	if arg := flag.Arg(0); arg != "" {
		port, err := strconv.Atoi(arg)
		if err != nil {
			log.Fatalf("invalid port argument %q: %v", arg, err)
		}
		cfg.Node.Port = port
	}
	if err := config.ValidateConfig(cfg); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	// Initialize logger
	var lgr logger.Logger
	if cfg.Logger.Active {
		zapLog, err := zapfactory.New(cfg.Logger)
		if err != nil {
			log.Fatalf("failed to initialize logger: %v", err)
		}
		defer func() { _ = zapLog.Sync() }() // flush logger buffers before exit
		lgr = zapfactory.NewZapAdapter(zapLog)
	} else {
		lgr = &logger.NopLogger{}
	}
	lgr.Debug("configuration loaded", logger.F("config", config.LogConfig(cfg)))

	// Initialize listener (also determines the advertised address)
	lis, advertised, err := cfg.Node.Listen()
	if err != nil {
		lgr.Error("failed to initialize listener", logger.F("err", err))
		os.Exit(1)
	}
	defer func() { _ = lis.Close() }()
	lgr.Debug("listener created", logger.F("addr", lis.Addr().String()))

	// Initialize the identifier space
	space, err := domain.NewSpace(cfg.Ring.IdentifierBits, cfg.Ring.SuccessorListSize)
	if err != nil {
		lgr.Error("failed to initialize identifier space", logger.F("err", err))
		os.Exit(1)
	}
	lgr.Debug("identifier space initialized",
		logger.F("id_bits", space.Bits),
		logger.F("byte_len", space.ByteLen),
		logger.F("successor_list_size", space.SuccListSize))

	// Derive the node identity from the advertised address
	id := space.NewIDFromString(advertised)
	domainNode := domain.Node{ID: id, Addr: advertised}
	lgr = lgr.Named("node").WithNode(domainNode)
	lgr.Info("node initializing", logger.F("id", id.ToHexString(true)))

	// Initialize telemetry (if enabled)
	shutdownTracer, err := telemetry.InitTracer(cfg.Telemetry, id)
	if err != nil {
		lgr.Error("failed to initialize telemetry", logger.F("err", err))
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	// Initialize the routing table
	rt := routingtable.New(
		&domainNode,
		space,
		cfg.Ring.SuccessorListSize,
		routingtable.WithLogger(lgr.Named("routingtable")),
	)

	// Initialize the client pool
	cp := client.New(
		space,
		advertised,
		cfg.Ring.RPCTimeout,
		client.WithLogger(lgr.Named("clientpool")),
	)
	defer cp.Close()

	// Initialize the storage
	store := storage.NewMemoryStorage(lgr.Named("storage"))

	// Initialize the node
	n := node.New(
		rt, cp, store,
		node.WithLogger(lgr),
		node.WithHopBound(cfg.EffectiveHopBound()),
	)

	// Initialize the HTTP server
	s := server.New(
		lis, n,
		server.WithLogger(lgr.Named("server")),
		server.WithTelemetry(cfg.Telemetry.Active),
	)

	// Run server in background
	serveErr := make(chan error, 1)
	go func() { serveErr <- s.Start() }()
	lgr.Debug("server started")

	// Resolve bootstrap peers and join an existing ring or create one
	register, err := bootstrap.New(cfg.Bootstrap, lgr.Named("bootstrap"))
	if err != nil {
		lgr.Error("failed to initialize bootstrap", logger.F("err", err))
		s.Stop()
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	peers, err := register.Discover(ctx)
	cancel()
	if err != nil {
		lgr.Error("failed to resolve bootstrap peers", logger.F("err", err))
		s.Stop()
		os.Exit(1)
	}
	lgr.Info("resolved bootstrap peers", logger.F("peers", peers))
	if len(peers) != 0 {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err := n.Join(ctx, peers)
		cancel()
		if err != nil {
			lgr.Warn("failed to join through bootstrap peers, creating new ring", logger.F("err", err))
			n.CreateNewRing()
		}
	} else {
		n.CreateNewRing()
	}

	// Register node for discovery by others
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	err = register.Register(ctx, &domainNode)
	cancel()
	if err != nil {
		lgr.Error("failed to register node", logger.F("err", err))
	} else {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := register.Deregister(ctx, &domainNode); err != nil {
				lgr.Warn("failed to deregister node", logger.F("err", err))
			}
		}()
	}

	// Setup signal handler for graceful shutdown
	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start periodic stabilization workers (run until runCtx is canceled)
	n.StartStabilizers(runCtx,
		cfg.Ring.StabilizeInterval,
		cfg.Ring.FixFingersInterval,
		cfg.Ring.CheckPredecessorInterval,
	)
	lgr.Debug("stabilization workers started")

	select {
	case <-runCtx.Done():
		lgr.Info("shutdown signal received, stopping server gracefully")
		stop()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.GracefulStop(shutdownCtx); err != nil {
			lgr.Warn("graceful stop timed out, forcing shutdown", logger.F("err", err))
			s.Stop()
		}
		cancel()
		n.Stop()

	case err := <-serveErr:
		lgr.Error("server terminated unexpectedly", logger.F("err", err))
		stop()
		n.Stop()
		os.Exit(1)
	}
}
