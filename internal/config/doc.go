// Package config provides configuration types and loading for the relay.
//
// This package defines the relay configuration model, YAML loading
// with environment variable substitution, path resolution, and
// validation.
//
// # Configuration Loading
//
// Load configuration from a YAML file:
//
//	cfg, err := config.LoadConfig("httpvec.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := config.ValidateConfig(cfg); err != nil {
//	    log.Fatal(err)
//	}
//
// Fields not present in the file keep the values from DefaultConfig.
// Relative vector and inspector paths are resolved against the
// directory of the configuration file.
package config
