package main

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variables supplying flag defaults.
const (
	envConfig      = "HTTPVEC_CONFIG"
	envHost        = "HTTPVEC_HOST"
	envPort        = "HTTPVEC_PORT"
	envTimeout     = "HTTPVEC_TIMEOUT"
	envLogFormat   = "HTTPVEC_LOG_FORMAT"
	envMetricsAddr = "HTTPVEC_METRICS_ADDR"
	envDebug       = "HTTPVEC_DEBUG"
	envVerbose     = "HTTPVEC_VERBOSE"
)

// getEnvOrDefault returns the environment variable value or a default.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an int or a default.
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvDuration returns the environment variable as a duration or a default.
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

// getEnvBool returns the environment variable as a boolean or a default.
// Accepts "true", "1", "yes" (case-insensitive) as true values.
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	default:
		return defaultValue
	}
}
