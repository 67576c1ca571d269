// Package config handles servicebridge configuration loading and the
// per-integration service settings resolved from it.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./servicebridge.yaml, ~/.config/servicebridge/config.yaml,
// /etc/servicebridge/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"servicebridge.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "servicebridge", "config.yaml"))
	}

	paths = append(paths, "/etc/servicebridge/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds the host settings. Integration settings live in Raw and
// are picked apart by [ResolvePluginConfig].
type Config struct {
	Listen    ListenConfig `yaml:"listen" toml:"listen"`
	Tools     ToolsConfig  `yaml:"tools" toml:"tools"`
	LogLevel  string       `yaml:"log_level" toml:"log_level"`
	LogFormat string       `yaml:"log_format" toml:"log_format"` // text or json

	// Raw is the whole document as a generic tree. It is handed to
	// integrations unchanged.
	Raw map[string]any `yaml:"-" toml:"-"`
}

// ListenConfig defines where the MCP surface is served. Port 0 serves
// over stdio instead of HTTP.
type ListenConfig struct {
	Address string `yaml:"address" toml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port" toml:"port"`
}

// ToolsConfig controls how published tools are admitted to the registry.
type ToolsConfig struct {
	// SkipOptional drops tools their integration marks as optional
	// (state-changing operations).
	SkipOptional bool `yaml:"skip_optional" toml:"skip_optional"`
}

// Load reads configuration from a YAML or TOML file. The format is
// chosen by extension; anything other than .toml is read as YAML.
// ${VAR} references are expanded from the environment first.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := []byte(os.ExpandEnv(string(data)))

	cfg := Default()
	raw := map[string]any{}

	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if err := toml.Unmarshal(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if err := toml.Unmarshal(expanded, &raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(expanded, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		if err := yaml.Unmarshal(expanded, &raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.Raw = raw
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Default returns a default configuration: stdio transport, info logs
// in text format, optional tools admitted.
func Default() *Config {
	return &Config{
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Validate checks the host settings. Integration settings are not
// validated here.
func (c *Config) Validate() error {
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q (valid: text, json)", c.LogFormat)
	}
	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port %d out of range", c.Listen.Port)
	}
	return nil
}

// ServesStdio reports whether the MCP surface should use stdio.
func (c *Config) ServesStdio() bool {
	return c.Listen.Port == 0
}

// ListenAddr returns the host:port for the HTTP transport.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Listen.Address, c.Listen.Port)
}
