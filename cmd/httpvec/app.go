package main

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/vyrodovalexey/httpvec/internal/config"
	"github.com/vyrodovalexey/httpvec/internal/health"
	"github.com/vyrodovalexey/httpvec/internal/inspector"
	"github.com/vyrodovalexey/httpvec/internal/observability"
	"github.com/vyrodovalexey/httpvec/internal/relay"
	"github.com/vyrodovalexey/httpvec/internal/selection"
	"github.com/vyrodovalexey/httpvec/internal/server"
	"github.com/vyrodovalexey/httpvec/internal/vector"
)

// application holds all application components.
type application struct {
	config        *config.RelayConfig
	logger        observability.Logger
	metrics       *observability.Metrics
	healthChecker *health.Checker
	chain         *selection.Chain
	server        *server.Server
	metricsServer *http.Server
	metricsAddr   net.Addr

	// started is closed once every listener is serving.
	started chan struct{}
}

// newApplication loads the vector catalog and inspector registry and
// wires them into a listener. Nothing is bound until run.
func newApplication(cfg *config.RelayConfig, logger observability.Logger) (*application, error) {
	metrics := observability.NewMetrics("httpvec")
	metrics.SetBuildInfo(version)

	catalog, err := vector.LoadFile(cfg.Vectors)
	if err != nil {
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}
	if catalog.Len() == 0 {
		logger.Warn("vector catalog is empty, every request will be rejected",
			observability.String("file", config.ShortenPath(cfg.Vectors)))
	}
	logger.Info("vectors loaded",
		observability.String("file", config.ShortenPath(cfg.Vectors)),
		observability.Int("count", catalog.Len()),
	)

	registry, err := inspector.Discover(cfg.Inspectors,
		inspector.WithLogger(logger),
		inspector.WithPathShortener(config.ShortenPath),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to discover inspectors: %w", err)
	}
	logger.Info("inspectors loaded",
		observability.Strings("names", registry.Names()),
	)

	chain := selection.NewChain(catalog, registry,
		selection.WithLogger(logger),
		selection.WithMetrics(metrics),
	)

	forwarder := relay.New(
		relay.WithTimeout(cfg.Timeout.Duration()),
		relay.WithMaxHeaderBytes(cfg.Listen.MaxHeaderBytes),
		relay.WithLogger(logger),
		relay.WithMetrics(metrics),
	)

	handler := server.NewHandler(chain, forwarder,
		server.WithHandlerLogger(logger),
		server.WithHandlerMetrics(metrics),
		server.WithMaxHeaderBytes(cfg.Listen.MaxHeaderBytes),
		server.WithRejectStatus(cfg.Reject.Status),
	)

	srv := server.NewServer(serverConfig(cfg), handler,
		server.WithLogger(logger),
		server.WithMetrics(metrics),
	)

	return &application{
		config:        cfg,
		logger:        logger,
		metrics:       metrics,
		healthChecker: newHealthChecker(srv, chain),
		chain:         chain,
		server:        srv,
		started:       make(chan struct{}),
	}, nil
}

// newHealthChecker reports the listener state and whether the chain can
// ever choose a vector.
func newHealthChecker(srv *server.Server, chain *selection.Chain) *health.Checker {
	checker := health.NewChecker(version)
	checker.RegisterCheck("listener", func() health.Check {
		if !srv.IsRunning() {
			return health.Check{Status: health.StatusUnhealthy, Message: "listener is not running"}
		}
		return health.Check{Status: health.StatusHealthy}
	})
	checker.RegisterCheck("vectors", func() health.Check {
		if chain.Vectors().Len() == 0 {
			return health.Check{Status: health.StatusDegraded, Message: "vector catalog is empty"}
		}
		return health.Check{Status: health.StatusHealthy}
	})
	checker.RegisterCheck("inspectors", func() health.Check {
		if chain.Inspectors().Len() == 0 {
			return health.Check{Status: health.StatusDegraded, Message: "no inspectors loaded"}
		}
		return health.Check{Status: health.StatusHealthy}
	})
	return checker
}

// serverConfig maps the listen section onto the listener configuration.
func serverConfig(cfg *config.RelayConfig) *server.Config {
	return &server.Config{
		Host:            cfg.Listen.Host,
		Port:            cfg.Listen.Port,
		MaxConnections:  cfg.Listen.MaxConnections,
		AcceptRate:      cfg.Listen.AcceptRate,
		AcceptBurst:     cfg.Listen.AcceptBurst,
		ShutdownTimeout: cfg.Listen.ShutdownTimeout.Duration(),
		AcceptDeadline:  server.DefaultAcceptDeadline,
	}
}

// run starts the listener and the optional metrics server, then blocks
// until ctx is done and shuts both down.
func (a *application) run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Start(context.Background())
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start listener: %w", err)
	case <-a.server.Ready():
	}

	if err := a.startMetricsServerIfEnabled(); err != nil {
		a.shutdown()
		<-errCh
		return err
	}
	close(a.started)

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("received shutdown signal")
	case runErr = <-errCh:
		errCh = nil
	}

	a.shutdown()
	if errCh != nil {
		runErr = <-errCh
	}
	return runErr
}
