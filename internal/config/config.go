// Package config provides configuration loading for the callwatch CLI.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/callwatch/callwatch/internal/safe"
)

const (
	// EnvConfig overrides the config file location.
	EnvConfig = "CALLWATCH_CONFIG"

	// DefaultFile is the config file looked up in the working directory.
	DefaultFile = ".callwatch.yaml"
)

// Config describes a callwatch run.
type Config struct {
	// Deny is the set of function names subject to instrumentation. Entries
	// match a callee's type-checker full name (e.g. "os/exec.Command",
	// "(*os/exec.Cmd).Run") or its bare name, exactly and case-sensitively.
	Deny []string `yaml:"deny"`

	// Output is the report path instrumented binaries write to.
	Output string `yaml:"output"`

	// Capacity bounds the runtime table's distinct (api, caller) pairs.
	Capacity int `yaml:"capacity"`

	// HookMain controls whether the instrumenter prepends a deferred report
	// flush to main.main when it is part of the transformed packages.
	HookMain bool `yaml:"hook_main"`

	// LogLevel sets CLI log verbosity (debug, info, warn, error).
	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in configuration: a single seeded denylist entry,
// the standard report path, and the default table capacity.
func Default() *Config {
	return &Config{
		Deny:     []string{"os/exec.Command"},
		Output:   "dangerous_api_profile.json",
		Capacity: 1024,
		HookMain: true,
		LogLevel: "info",
	}
}

// Load reads configuration from path. An empty path falls back to the
// CALLWATCH_CONFIG environment variable, then to .callwatch.yaml in the
// working directory. A missing file yields defaults; a present but malformed
// file is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = os.Getenv(EnvConfig)
		explicit = path != ""
	}
	if path == "" {
		path = DefaultFile
	}

	cfg := Default()

	data, err := safe.ReadFile(path, 0)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	if len(c.Deny) == 0 {
		return fmt.Errorf("denylist is empty")
	}
	for _, name := range c.Deny {
		if name == "" {
			return fmt.Errorf("denylist contains an empty name")
		}
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive, got %d", c.Capacity)
	}
	if c.Output == "" {
		return fmt.Errorf("output path is empty")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}
