package config

import "time"

// Default configuration values.
const (
	DefaultHost            = "localhost"
	DefaultPort            = 8080
	DefaultTimeout         = 30 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20
	DefaultAcceptBurst     = 1
	DefaultMetricsAddress  = ":9090"
	DefaultMetricsPath     = "/metrics"
	DefaultLogLevel        = "warn"
	DefaultLogFormat       = "console"
	DefaultLogOutput       = "stderr"
)

// RelayConfig is the root relay configuration.
type RelayConfig struct {
	Listen     ListenConfig  `yaml:"listen"`
	Timeout    Duration      `yaml:"timeout"`
	Vectors    string        `yaml:"vectors"`
	Inspectors []string      `yaml:"inspectors,omitempty"`
	Logging    LoggingConfig `yaml:"logging"`
	Metrics    MetricsConfig `yaml:"metrics"`
	Reject     RejectConfig  `yaml:"reject"`
}

// ListenConfig configures the client-facing listener.
type ListenConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// MaxConnections caps concurrently handled connections; 0 is unlimited.
	MaxConnections int `yaml:"maxConnections"`

	// AcceptRate limits accepted connections per second; 0 disables the limiter.
	AcceptRate  float64 `yaml:"acceptRate"`
	AcceptBurst int     `yaml:"acceptBurst"`

	ShutdownTimeout Duration `yaml:"shutdownTimeout"`
	MaxHeaderBytes  int      `yaml:"maxHeaderBytes"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// MetricsConfig represents metrics configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Path    string `yaml:"path"`
}

// RejectConfig controls what a client receives when no vector is chosen.
// Status 0 drops the connection without writing anything.
type RejectConfig struct {
	Status int `yaml:"status"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *RelayConfig {
	return &RelayConfig{
		Listen: ListenConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			AcceptBurst:     DefaultAcceptBurst,
			ShutdownTimeout: Duration(DefaultShutdownTimeout),
			MaxHeaderBytes:  DefaultMaxHeaderBytes,
		},
		Timeout: Duration(DefaultTimeout),
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
			Output: DefaultLogOutput,
		},
		Metrics: MetricsConfig{
			Address: DefaultMetricsAddress,
			Path:    DefaultMetricsPath,
		},
	}
}
