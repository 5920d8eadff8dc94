//go:build functional

// Package testconfig provides test environment configuration loaded from
// environment variables.
package testconfig

import (
	"os"
	"time"
)

// Default values for test configuration.
const (
	DefaultStartupTimeout  = 5 * time.Second
	DefaultRequestTimeout  = 10 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
)

// TestConfig holds timeouts for functional tests.
type TestConfig struct {
	// StartupTimeout bounds how long a relay may take to bind.
	StartupTimeout time.Duration

	// RequestTimeout bounds a single client exchange.
	RequestTimeout time.Duration

	// ShutdownTimeout is the relay's graceful shutdown window.
	ShutdownTimeout time.Duration
}

// GetTestConfig returns the test configuration, taking overrides from
// HTTPVEC_TEST_STARTUP_TIMEOUT, HTTPVEC_TEST_REQUEST_TIMEOUT and
// HTTPVEC_TEST_SHUTDOWN_TIMEOUT.
func GetTestConfig() TestConfig {
	return TestConfig{
		StartupTimeout:  getEnvDuration("HTTPVEC_TEST_STARTUP_TIMEOUT", DefaultStartupTimeout),
		RequestTimeout:  getEnvDuration("HTTPVEC_TEST_REQUEST_TIMEOUT", DefaultRequestTimeout),
		ShutdownTimeout: getEnvDuration("HTTPVEC_TEST_SHUTDOWN_TIMEOUT", DefaultShutdownTimeout),
	}
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
