package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vyrodovalexey/httpvec/internal/util"
)

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// Loader handles configuration loading from files and readers.
type Loader struct {
	basePath string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{}
}

// LoadConfig loads configuration from a file path.
func LoadConfig(path string) (*RelayConfig, error) {
	return NewLoader().Load(path)
}

// LoadConfigFromReader loads configuration from an io.Reader.
func LoadConfigFromReader(r io.Reader) (*RelayConfig, error) {
	return NewLoader().LoadFromReader(r)
}

// Load loads configuration from a file path. Relative paths inside the
// file are resolved against the file's directory.
func (l *Loader) Load(path string) (*RelayConfig, error) {
	absPath, err := filepath.Abs(ExpandHome(path))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	l.basePath = filepath.Dir(absPath)

	data, err := os.ReadFile(absPath) //nolint:gosec // path is validated via filepath.Abs
	if err != nil {
		return nil, util.NewConfigErrorWithCause("", "failed to read config file "+path, err)
	}

	return l.parseConfig(data)
}

// LoadFromReader loads configuration from an io.Reader. Relative paths
// are left as they are.
func (l *Loader) LoadFromReader(r io.Reader) (*RelayConfig, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	return l.parseConfig(data)
}

// parseConfig parses YAML data on top of the default configuration.
func (l *Loader) parseConfig(data []byte) (*RelayConfig, error) {
	content := l.substituteEnvVars(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, util.NewConfigErrorWithCause("", "failed to parse YAML", err)
	}

	if l.basePath != "" {
		cfg.Vectors = l.rebase(cfg.Vectors)
		for i, p := range cfg.Inspectors {
			cfg.Inspectors[i] = l.rebase(p)
		}
	}

	return cfg, nil
}

// rebase joins a relative path onto the loader's base path.
func (l *Loader) rebase(path string) string {
	if path == "" || IsBuiltinLocation(path) {
		return path
	}
	path = ExpandHome(path)
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.basePath, path)
}

// substituteEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment variable values.
func (l *Loader) substituteEnvVars(content string) string {
	// Handle escaped dollar signs first
	content = strings.ReplaceAll(content, "$$", "\x00ESCAPED_DOLLAR\x00")

	result := envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		defaultValue := ""
		if len(submatches) >= 3 {
			defaultValue = submatches[2]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return defaultValue
	})

	result = strings.ReplaceAll(result, "\x00ESCAPED_DOLLAR\x00", "$")

	return result
}
