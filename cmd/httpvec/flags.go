package main

import (
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/vyrodovalexey/httpvec/internal/config"
	"github.com/vyrodovalexey/httpvec/internal/util"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	debug       bool
	verbose     bool
	showVersion bool
	inspectors  stringList
	port        int
	host        string
	timeout     time.Duration
	logFormat   string
	metricsAddr string
	vectors     string

	// overridden holds the long names of options given on the command
	// line or through the environment.
	overridden map[string]bool
}

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string {
	return strings.Join(*s, ",")
}

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// shortNames maps single-letter flags to their long names.
var shortNames = map[string]string{
	"c": "config",
	"d": "debug",
	"V": "verbose",
	"v": "version",
	"i": "inspectors",
	"p": "port",
	"H": "host",
	"t": "timeout",
}

// flagEnv maps long flag names to the environment variable that can set them.
var flagEnv = map[string]string{
	"host":         envHost,
	"port":         envPort,
	"timeout":      envTimeout,
	"log-format":   envLogFormat,
	"metrics-addr": envMetricsAddr,
	"debug":        envDebug,
	"verbose":      envVerbose,
}

// parseFlags parses command line arguments. Flags and the VECTORS
// argument may appear in any order.
func parseFlags(args []string, output io.Writer) (cliFlags, error) {
	f := cliFlags{overridden: make(map[string]bool)}

	fs := flag.NewFlagSet("httpvec", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "usage: httpvec [flags] [VECTORS]")
		fmt.Fprintln(fs.Output(), "\nRelays each HTTP request to the vector chosen by the first inspector with an opinion.")
		fmt.Fprintln(fs.Output(), "\nflags:")
		fs.PrintDefaults()
	}

	configPath := getEnvOrDefault(envConfig, "")
	fs.StringVar(&f.configPath, "c", configPath, "Path to configuration file")
	fs.StringVar(&f.configPath, "config", configPath, "Path to configuration file")

	debug := getEnvBool(envDebug, false)
	fs.BoolVar(&f.debug, "d", debug, "Log at debug level")
	fs.BoolVar(&f.debug, "debug", debug, "Log at debug level")

	verbose := getEnvBool(envVerbose, false)
	fs.BoolVar(&f.verbose, "V", verbose, "Log at info level")
	fs.BoolVar(&f.verbose, "verbose", verbose, "Log at info level")

	fs.BoolVar(&f.showVersion, "v", false, "Show version information")
	fs.BoolVar(&f.showVersion, "version", false, "Show version information")

	fs.Var(&f.inspectors, "i", "Inspector file or directory (repeatable)")
	fs.Var(&f.inspectors, "inspectors", "Inspector file or directory (repeatable)")

	port := getEnvInt(envPort, config.DefaultPort)
	fs.IntVar(&f.port, "p", port, "Port to listen on")
	fs.IntVar(&f.port, "port", port, "Port to listen on")

	host := getEnvOrDefault(envHost, config.DefaultHost)
	fs.StringVar(&f.host, "H", host, "Host to bind to")
	fs.StringVar(&f.host, "host", host, "Host to bind to")

	timeout := getEnvDuration(envTimeout, config.DefaultTimeout)
	fs.DurationVar(&f.timeout, "t", timeout, "Backend dial and read timeout")
	fs.DurationVar(&f.timeout, "timeout", timeout, "Backend dial and read timeout")

	fs.StringVar(&f.logFormat, "log-format", getEnvOrDefault(envLogFormat, config.DefaultLogFormat),
		"Log format (json, console)")
	fs.StringVar(&f.metricsAddr, "metrics-addr", getEnvOrDefault(envMetricsAddr, ""),
		"Serve metrics on this address")

	var positional []string
	rest := args
	for {
		if err := fs.Parse(rest); err != nil {
			return f, err
		}
		rest = fs.Args()
		if len(rest) == 0 {
			break
		}
		positional = append(positional, rest[0])
		rest = rest[1:]
	}

	switch len(positional) {
	case 0:
	case 1:
		f.vectors = positional[0]
		f.overridden["vectors"] = true
	default:
		return f, fmt.Errorf("expected at most one VECTORS argument, got %d", len(positional))
	}

	for name, key := range flagEnv {
		if getEnvOrDefault(key, "") != "" {
			f.overridden[name] = true
		}
	}
	fs.Visit(func(fl *flag.Flag) {
		name := fl.Name
		if long, ok := shortNames[name]; ok {
			name = long
		}
		f.overridden[name] = true
	})

	return f, nil
}

// applyFlags overlays explicitly given flags onto cfg.
func applyFlags(cfg *config.RelayConfig, f cliFlags) {
	if f.overridden["host"] {
		cfg.Listen.Host = f.host
	}
	if f.overridden["port"] {
		cfg.Listen.Port = f.port
	}
	if f.overridden["timeout"] {
		cfg.Timeout = config.Duration(f.timeout)
	}
	if f.overridden["log-format"] {
		cfg.Logging.Format = f.logFormat
	}
	if f.overridden["metrics-addr"] && f.metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Address = f.metricsAddr
	}
	if f.overridden["inspectors"] {
		cfg.Inspectors = append([]string(nil), f.inspectors...)
	}
	if f.overridden["vectors"] {
		cfg.Vectors = f.vectors
	}

	switch {
	case f.debug:
		cfg.Logging.Level = "debug"
	case f.verbose:
		cfg.Logging.Level = "info"
	}
}

// loadConfig builds the relay configuration from the optional config
// file and the command line, then validates it and resolves its paths.
func loadConfig(f cliFlags) (*config.RelayConfig, error) {
	cfg := config.DefaultConfig()
	if f.configPath != "" {
		loaded, err := config.LoadConfig(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	applyFlags(cfg, f)

	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if err := resolvePaths(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolvePaths makes the vector file and inspector locations absolute
// and checks that they exist.
func resolvePaths(cfg *config.RelayConfig) error {
	vectors, err := config.ResolvePath(cfg.Vectors)
	if err != nil {
		return util.WrapError(err, "vectors")
	}
	cfg.Vectors = vectors

	for i, p := range cfg.Inspectors {
		if config.IsBuiltinLocation(p) {
			continue
		}
		resolved, err := config.ResolvePath(p)
		if err != nil {
			return util.WrapError(err, "inspectors")
		}
		cfg.Inspectors[i] = resolved
	}
	return nil
}
