// Package main is the entry point for the httpvec relay.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/httpvec/internal/config"
	"github.com/vyrodovalexey/httpvec/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run starts the relay and blocks until it is interrupted. It returns
// the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	flags, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "httpvec: %v\n", err)
		return 1
	}

	if flags.showVersion {
		printVersion(stdout)
		return 0
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		fmt.Fprintf(stderr, "httpvec: %v\n", err)
		return 1
	}

	logger, err := initLogger(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "httpvec: failed to initialize logger: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting httpvec",
		observability.String("version", version),
		observability.String("config", flags.configPath),
	)

	app, err := newApplication(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize relay", observability.Error(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.run(ctx); err != nil {
		logger.Error("relay failed", observability.Error(err))
		return 1
	}
	return 0
}

// printVersion prints version information.
func printVersion(w io.Writer) {
	fmt.Fprintf(w, "httpvec version %s\n", version)
	fmt.Fprintf(w, "  Build time: %s\n", buildTime)
	fmt.Fprintf(w, "  Git commit: %s\n", gitCommit)
}

// initLogger initializes the logger from the logging configuration.
func initLogger(cfg *config.RelayConfig) (observability.Logger, error) {
	logger, err := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, err
	}

	observability.SetGlobalLogger(logger)
	return logger, nil
}
