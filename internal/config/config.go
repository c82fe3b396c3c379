// Package config provides configuration management.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"premium-rater/internal/errors"
	"premium-rater/internal/logging"
)

// EnvPrefix prefixes environment overrides, e.g. RATER_TABLES_SOURCE
const EnvPrefix = "RATER"

// Config is the main application configuration
type Config struct {
	// Version is the configuration version
	Version string `json:"version" mapstructure:"version"`

	// Tables selects the calibration source
	Tables TablesConfig `json:"tables" mapstructure:"tables"`

	// Server contains HTTP server configuration
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Output contains output configuration
	Output OutputConfig `json:"output" mapstructure:"output"`

	// Logging contains logging configuration
	Logging logging.Config `json:"logging" mapstructure:"logging"`
}

// TablesConfig selects where calibration tables come from
type TablesConfig struct {
	// Source is builtin, csv, hcl, yaml, json, sqlite or auto
	Source string `json:"source" mapstructure:"source"`

	// Path is the file or directory for file-backed sources
	Path string `json:"path,omitempty" mapstructure:"path"`

	// Watch reloads file-backed tables when they change
	Watch bool `json:"watch" mapstructure:"watch"`

	// DebounceMillis is how long a changed file must be quiet before reload
	DebounceMillis int `json:"debounce_millis" mapstructure:"debounce_millis"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Addr                string `json:"addr" mapstructure:"addr"`
	ReadTimeoutSeconds  int    `json:"read_timeout_seconds" mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `json:"write_timeout_seconds" mapstructure:"write_timeout_seconds"`

	// MaxBatch caps the requests accepted by one batch call
	MaxBatch int `json:"max_batch" mapstructure:"max_batch"`

	// Workers bounds concurrent rating inside a batch
	Workers int `json:"workers" mapstructure:"workers"`
}

// OutputConfig contains output-related settings
type OutputConfig struct {
	// DefaultFormat is text or json
	DefaultFormat string `json:"default_format" mapstructure:"default_format"`
}

var tableSources = map[string]bool{
	"builtin": true, "csv": true, "hcl": true, "yaml": true, "json": true, "sqlite": true, "auto": true,
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Version: "1.0",
		Tables: TablesConfig{
			Source:         "builtin",
			Watch:          false,
			DebounceMillis: 250,
		},
		Server: ServerConfig{
			Addr:                ":8080",
			ReadTimeoutSeconds:  10,
			WriteTimeoutSeconds: 10,
			MaxBatch:            1000,
			Workers:             8,
		},
		Output: OutputConfig{
			DefaultFormat: "text",
		},
		Logging: logging.DefaultConfig(),
	}
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("version", cfg.Version)
	v.SetDefault("tables.source", cfg.Tables.Source)
	v.SetDefault("tables.path", cfg.Tables.Path)
	v.SetDefault("tables.watch", cfg.Tables.Watch)
	v.SetDefault("tables.debounce_millis", cfg.Tables.DebounceMillis)
	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.read_timeout_seconds", cfg.Server.ReadTimeoutSeconds)
	v.SetDefault("server.write_timeout_seconds", cfg.Server.WriteTimeoutSeconds)
	v.SetDefault("server.max_batch", cfg.Server.MaxBatch)
	v.SetDefault("server.workers", cfg.Server.Workers)
	v.SetDefault("output.default_format", cfg.Output.DefaultFormat)
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)
	v.SetDefault("logging.development", cfg.Logging.Development)
}

// Load reads configuration from path (JSON or YAML by extension) and
// applies RATER_* environment overrides. An empty or missing path yields
// the defaults plus overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, errors.Wrap(errors.TypeConfig, "reading "+path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrap(errors.TypeConfig, "reading "+path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(errors.TypeConfig, "decoding configuration", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that settings are usable
func (c *Config) Validate() error {
	if !tableSources[c.Tables.Source] {
		return errors.Config("unknown tables.source " + c.Tables.Source)
	}
	if c.Tables.Source != "builtin" && c.Tables.Path == "" {
		return errors.Config("tables.path is required for source " + c.Tables.Source)
	}
	switch c.Output.DefaultFormat {
	case "text", "json":
	default:
		return errors.Config("output.default_format must be text or json")
	}
	if c.Server.MaxBatch <= 0 {
		return errors.Config("server.max_batch must be positive")
	}
	if c.Server.Workers <= 0 {
		return errors.Config("server.workers must be positive")
	}
	return nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
