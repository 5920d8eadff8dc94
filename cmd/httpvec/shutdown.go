package main

import (
	"context"
	"time"

	"github.com/vyrodovalexey/httpvec/internal/observability"
)

// metricsShutdownTimeout bounds the metrics server shutdown.
const metricsShutdownTimeout = 5 * time.Second

// shutdown stops the listener, draining in-flight connections up to the
// configured shutdown timeout, then stops the metrics server.
func (a *application) shutdown() {
	if err := a.server.Stop(context.Background()); err != nil {
		a.logger.Error("failed to stop listener gracefully", observability.Error(err))
	}

	if a.metricsServer != nil {
		a.logger.Info("stopping metrics server")
		ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			a.logger.Error("failed to stop metrics server gracefully", observability.Error(err))
		}
	}

	a.logger.Info("httpvec stopped")
}
