package main

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/vyrodovalexey/httpvec/internal/health"
	"github.com/vyrodovalexey/httpvec/internal/observability"
)

// createMetricsServer creates the metrics HTTP server.
func createMetricsServer(
	path string,
	metrics *observability.Metrics,
	healthChecker *health.Checker,
) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, metrics.Handler())
	mux.HandleFunc("/health", healthChecker.HealthHandler())
	mux.HandleFunc("/ready", healthChecker.ReadinessHandler())
	mux.HandleFunc("/live", healthChecker.LivenessHandler())

	return &http.Server{
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// runMetricsServer serves metrics on ln until the server is shut down.
func runMetricsServer(server *http.Server, ln net.Listener, logger observability.Logger) {
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server error", observability.Error(err))
	}
}

// startMetricsServerIfEnabled binds and starts the metrics server if enabled.
func (a *application) startMetricsServerIfEnabled() error {
	m := a.config.Metrics
	if !m.Enabled {
		return nil
	}

	ln, err := net.Listen("tcp", m.Address)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics on %s: %w", m.Address, err)
	}

	a.logger.Info("starting metrics server",
		observability.String("address", ln.Addr().String()),
		observability.String("metrics_path", m.Path),
	)

	a.metricsServer = createMetricsServer(m.Path, a.metrics, a.healthChecker)
	a.metricsAddr = ln.Addr()
	go runMetricsServer(a.metricsServer, ln, a.logger)
	return nil
}
