// Package observability provides logging and metrics for the relay.
//
// # Logging
//
// The Logger interface provides structured logging backed by zap:
//
//	logger, err := observability.NewLogger(observability.LogConfig{
//	    Level:  "info",
//	    Format: "console",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("vector chosen",
//	    observability.String("inspector", "host_header"),
//	    observability.String("vector", "http://b.example"),
//	)
//
// # Metrics
//
// Prometheus metrics for connections, selections and relays live on a
// private registry:
//
//	metrics := observability.NewMetrics("httpvec")
//	http.Handle("/metrics", metrics.Handler())
//
// Every recording method is safe to call on a nil *Metrics, so the core
// packages run unchanged when metrics are disabled.
package observability
