package config

import (
	"fmt"
	"strings"

	"github.com/vyrodovalexey/httpvec/internal/util"
)

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"json", "console"}
	validLogOutputs = []string{"stdout", "stderr"}
)

// ValidateConfig validates a relay configuration. It returns a
// *util.ValidationError listing every invalid field, or nil.
func ValidateConfig(cfg *RelayConfig) error {
	verr := util.NewValidationError("relay configuration is invalid")

	if cfg == nil {
		verr.AddField("", "configuration is nil")
		return verr
	}

	validateListen(&cfg.Listen, verr)

	if cfg.Timeout <= 0 {
		verr.AddField("timeout", "must be positive")
	}
	if strings.TrimSpace(cfg.Vectors) == "" {
		verr.AddField("vectors", "vector file is required")
	}
	for i, p := range cfg.Inspectors {
		if strings.TrimSpace(p) == "" {
			verr.AddField(fmt.Sprintf("inspectors[%d]", i), "path is empty")
		}
	}

	validateLogging(&cfg.Logging, verr)
	validateMetrics(&cfg.Metrics, verr)

	if cfg.Reject.Status != 0 {
		if err := util.ValidateHTTPStatusCode(cfg.Reject.Status); err != nil {
			verr.AddField("reject.status", err.Error())
		}
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

func validateListen(l *ListenConfig, verr *util.ValidationError) {
	if strings.TrimSpace(l.Host) == "" {
		verr.AddField("listen.host", "host is required")
	}
	if err := util.ValidateNonNegativePort(l.Port); err != nil {
		verr.AddField("listen.port", err.Error())
	}
	if l.MaxConnections < 0 {
		verr.AddField("listen.maxConnections", "must not be negative")
	}
	if err := util.ValidateNonNegative(l.AcceptRate, "acceptRate"); err != nil {
		verr.AddField("listen.acceptRate", err.Error())
	}
	if l.AcceptRate > 0 && l.AcceptBurst < 1 {
		verr.AddField("listen.acceptBurst", "must be at least 1 when acceptRate is set")
	}
	if l.ShutdownTimeout < 0 {
		verr.AddField("listen.shutdownTimeout", "must not be negative")
	}
	if l.MaxHeaderBytes <= 0 {
		verr.AddField("listen.maxHeaderBytes", "must be positive")
	}
}

func validateLogging(l *LoggingConfig, verr *util.ValidationError) {
	if !contains(validLogLevels, l.Level) {
		verr.AddField("logging.level", fmt.Sprintf("must be one of %v", validLogLevels))
	}
	if !contains(validLogFormats, l.Format) {
		verr.AddField("logging.format", fmt.Sprintf("must be one of %v", validLogFormats))
	}
	if !contains(validLogOutputs, l.Output) {
		verr.AddField("logging.output", fmt.Sprintf("must be one of %v", validLogOutputs))
	}
}

func validateMetrics(m *MetricsConfig, verr *util.ValidationError) {
	if !m.Enabled {
		return
	}
	if strings.TrimSpace(m.Address) == "" {
		verr.AddField("metrics.address", "address is required when metrics are enabled")
	}
	if !strings.HasPrefix(m.Path, "/") {
		verr.AddField("metrics.path", "must start with /")
	}
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
