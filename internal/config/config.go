// Package config loads the optional chmweb.toml configuration. Flags
// override file values; CHMWEB_* environment variables override both.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config is the top-level configuration.
type Config struct {
	// Extractor is the command line used to unpack archives. {archive} and
	// {outdir} placeholders are substituted; without placeholders the
	// output flag and archive path are appended 7z-style.
	Extractor string `toml:"extractor"`
	// Workers is the scan pool size.
	Workers int `toml:"workers"`
	// GzipPages compresses every emitted output file.
	GzipPages bool `toml:"gzip-pages"`
	// TocJSON, when non-empty, is where the contents tree is exported.
	TocJSON string `toml:"toc-json"`
	// FrontPage is an optional Markdown file rendered into the index
	// wrapper's content frame.
	FrontPage string `toml:"front-page"`
	// Verbose enables per-stage progress output.
	Verbose bool `toml:"verbose"`
}

// NewDefaultConfig returns a config with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Extractor: "7z x -aoa -bso0 -bsp0",
		Workers:   runtime.NumCPU(),
	}
}

// LoadFromFile loads configuration from a chmweb.toml file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := NewDefaultConfig()
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.UpdateFromEnv()
	return cfg, nil
}

// LoadFromString loads configuration from a TOML string.
func LoadFromString(content string) (*Config, error) {
	cfg := NewDefaultConfig()
	if err := toml.Unmarshal([]byte(content), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.UpdateFromEnv()
	return cfg, nil
}

// UpdateFromEnv updates config from environment variables. Variables
// starting with CHMWEB_ are used: CHMWEB_FOO_BAR -> foo-bar.
func (c *Config) UpdateFromEnv() {
	for _, env := range os.Environ() {
		if !strings.HasPrefix(env, "CHMWEB_") {
			continue
		}

		parts := strings.SplitN(env, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimPrefix(parts[0], "CHMWEB_")
		key = strings.ReplaceAll(strings.ToLower(key), "_", "-")
		c.Set(key, parts[1])
	}
}

// Set sets a configuration value by its TOML key.
func (c *Config) Set(key, value string) {
	switch key {
	case "extractor":
		c.Extractor = value
	case "workers":
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			c.Workers = n
		}
	case "gzip-pages":
		c.GzipPages = strings.ToLower(value) == "true"
	case "toc-json":
		c.TocJSON = value
	case "front-page":
		c.FrontPage = value
	case "verbose":
		c.Verbose = strings.ToLower(value) == "true"
	}
}
