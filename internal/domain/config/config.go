// Package config provides the configuration of the tunedb command.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/whhaicheng/dedisp-tunedb/internal/domain/connection"
	"github.com/whhaicheng/dedisp-tunedb/internal/domain/schema"
)

var (
	// ErrInvalidConfiguration is returned when configuration is invalid.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrUnsupportedFormat is returned for config files with an unknown extension.
	ErrUnsupportedFormat = errors.New("unsupported config file format")
)

// EnvConfigPath names the environment variable holding an explicit config path.
const EnvConfigPath = "TUNEDB_CONFIG"

// Output formats.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// SchemaConfig holds schema related settings.
type SchemaConfig struct {
	// DefaultVariant is used by create without a variant argument and for
	// tables that are not registered in the catalog.
	DefaultVariant string `json:"default_variant" toml:"default_variant" yaml:"default_variant"`
}

// LoadConfig holds settings of the load command.
type LoadConfig struct {
	// Progress shows a progress bar on stderr while loading.
	Progress bool `json:"progress" toml:"progress" yaml:"progress"`
}

// OutputConfig holds report output settings.
type OutputConfig struct {
	// Format is text, json or markdown.
	Format string `json:"format" toml:"format" yaml:"format"`
}

// LogConfig holds logging settings. Logs go to stderr and optionally to File.
type LogConfig struct {
	Level string `json:"level" toml:"level" yaml:"level"`
	File  string `json:"file" toml:"file" yaml:"file"`
}

// SlogLevel converts Level to a slog level. Unknown levels map to warn.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Config represents the complete application configuration.
type Config struct {
	Backend connection.Backend         `json:"backend" toml:"backend" yaml:"backend"`
	SSH     connection.SSHTunnelConfig `json:"ssh" toml:"ssh" yaml:"ssh"`
	Schema  SchemaConfig               `json:"schema" toml:"schema" yaml:"schema"`
	Load    LoadConfig                 `json:"load" toml:"load" yaml:"load"`
	Output  OutputConfig               `json:"output" toml:"output" yaml:"output"`
	Log     LogConfig                  `json:"log" toml:"log" yaml:"log"`
}

// DefaultConfig returns a default configuration: a local sqlite results
// database under ~/.tunedb.
func DefaultConfig() *Config {
	userHomeDir, _ := os.UserHomeDir()

	return &Config{
		Backend: connection.Backend{
			Type: connection.DatabaseTypeSQLite,
			Path: filepath.Join(userHomeDir, ".tunedb", "results.db"),
		},
		SSH: connection.SSHTunnelConfig{
			Port: 22,
		},
		Schema: SchemaConfig{
			DefaultVariant: schema.VariantCUDA,
		},
		Output: OutputConfig{
			Format: FormatText,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// Load reads the config file at path on top of the defaults.
// The decoder is chosen by extension: .json, .toml, .yaml or .yml.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	cfg := DefaultConfig()
	// The default sqlite path must not leak into a file that configures another backend.
	cfg.Backend.Path = ""

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse JSON config %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("parse TOML config %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse YAML config %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills values that depend on other decoded values.
func (c *Config) applyDefaults() {
	c.Backend.Type = connection.DatabaseType(strings.ToLower(string(c.Backend.Type)))
	if c.Backend.Port == 0 {
		c.Backend.Port = c.Backend.Type.DefaultPort()
	}
	if c.Backend.Type == connection.DatabaseTypeSQLite && c.Backend.Path == "" {
		c.Backend.Path = DefaultConfig().Backend.Path
	}
	if c.SSH.Port == 0 {
		c.SSH.Port = 22
	}
	c.Output.Format = strings.ToLower(c.Output.Format)
}

// SearchPaths returns the files probed when TUNEDB_CONFIG is not set, in order.
func SearchPaths() []string {
	paths := []string{"tunedb.toml", "tunedb.yaml", "tunedb.json"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".tunedb", "config.toml"))
	}
	return paths
}

// ResolvePath returns the config file to load: the TUNEDB_CONFIG value if
// set, else the first existing search path. ok is false when neither exists.
func ResolvePath() (path string, ok bool) {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p, true
	}
	for _, p := range SearchPaths() {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}

// LoadDefault loads the resolved config file, or the defaults when there is none.
// It returns the path that was loaded, empty for defaults.
func LoadDefault() (*Config, string, error) {
	path, ok := ResolvePath()
	if !ok {
		return DefaultConfig(), "", nil
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

// Validate validates the complete configuration.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Backend.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("backend: %w", err))
	}
	if err := c.SSH.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.SSH.Enabled && !c.Backend.Remote() {
		errs = append(errs, &connection.ValidationError{
			Field:   "ssh.enabled",
			Message: "ssh tunnel requires a network backend",
			Value:   string(c.Backend.Type),
		})
	}
	if _, err := schema.Lookup(c.Schema.DefaultVariant); err != nil {
		errs = append(errs, &connection.ValidationError{
			Field:   "schema.default_variant",
			Message: "schema.default_variant must be one of: " + strings.Join(schema.Names(), ", "),
			Value:   c.Schema.DefaultVariant,
		})
	}
	switch c.Output.Format {
	case FormatText, FormatJSON, FormatMarkdown:
	default:
		errs = append(errs, &connection.ValidationError{
			Field:   "output.format",
			Message: "output.format must be one of: text, json, markdown",
			Value:   c.Output.Format,
		})
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, &connection.ValidationError{
			Field:   "log.level",
			Message: "log.level must be one of: debug, info, warn, error",
			Value:   c.Log.Level,
		})
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, &connection.MultiValidationError{Errors: errs})
	}
	return nil
}
