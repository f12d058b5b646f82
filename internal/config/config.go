package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"docverse/internal/pinned"
)

// Dir is the per-workspace configuration directory.
const Dir = ".docverse"

// currentVersion is the only supported config schema version.
const currentVersion = 1

// Config represents the complete docverse configuration
type Config struct {
	Version       int    `json:"version" mapstructure:"version"`
	DefaultBranch string `json:"defaultBranch" mapstructure:"defaultBranch"`
	Manifest      string `json:"manifest" mapstructure:"manifest"`

	Logging    LoggingConfig    `json:"logging" mapstructure:"logging"`
	Resolution ResolutionConfig `json:"resolution" mapstructure:"resolution"`
	Ingest     IngestConfig     `json:"ingest" mapstructure:"ingest"`
	Export     ExportConfig     `json:"export" mapstructure:"export"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// ResolutionConfig controls cross-package queries
type ResolutionConfig struct {
	// Disambiguate is never, minimally or always
	Disambiguate string `json:"disambiguate" mapstructure:"disambiguate"`

	// Consumers whitelists the packages a bidirectional context may reach;
	// empty allows every consumer
	Consumers []string `json:"consumers" mapstructure:"consumers"`
}

// IngestConfig controls package loading
type IngestConfig struct {
	Parallelism   int  `json:"parallelism" mapstructure:"parallelism"`
	SkipUnchanged bool `json:"skipUnchanged" mapstructure:"skipUnchanged"`
}

// ExportConfig controls the SQLite export
type ExportConfig struct {
	Path string `json:"path" mapstructure:"path"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:       currentVersion,
		DefaultBranch: "main",
		Manifest:      "docverse.toml",
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
		Resolution: ResolutionConfig{
			Disambiguate: "minimally",
			Consumers:    []string{},
		},
		Ingest: IngestConfig{
			Parallelism:   4,
			SkipUnchanged: true,
		},
		Export: ExportConfig{
			Path: filepath.Join(Dir, "export.db"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("defaultBranch", d.DefaultBranch)
	v.SetDefault("manifest", d.Manifest)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("resolution.disambiguate", d.Resolution.Disambiguate)
	v.SetDefault("resolution.consumers", d.Resolution.Consumers)
	v.SetDefault("ingest.parallelism", d.Ingest.Parallelism)
	v.SetDefault("ingest.skipUnchanged", d.Ingest.SkipUnchanged)
	v.SetDefault("export.path", d.Export.Path)
}

// LoadConfig loads configuration from .docverse/config.json under root.
// Missing keys take their defaults and DOCVERSE_* environment variables
// override the file (DOCVERSE_LOGGING_LEVEL sets logging.level).
func LoadConfig(root string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(root, Dir))
	v.SetEnvPrefix("DOCVERSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration to .docverse/config.json under root
func (c *Config) Save(root string) error {
	dir := filepath.Join(root, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0o644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != currentVersion {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.DefaultBranch == "" {
		return &ConfigError{Field: "defaultBranch", Message: "must not be empty"}
	}
	if _, err := pinned.ParseDisambiguation(c.Resolution.Disambiguate); err != nil {
		return &ConfigError{Field: "resolution.disambiguate", Message: err.Error()}
	}
	if c.Ingest.Parallelism < 1 {
		return &ConfigError{Field: "ingest.parallelism", Message: "must be at least 1"}
	}
	switch c.Logging.Format {
	case "human", "json":
	default:
		return &ConfigError{Field: "logging.format", Message: "must be human or json"}
	}
	return nil
}

// Disambiguation returns the configured address disambiguation level.
func (c *Config) Disambiguation() pinned.Disambiguation {
	d, err := pinned.ParseDisambiguation(c.Resolution.Disambiguate)
	if err != nil {
		return pinned.Minimally
	}
	return d
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
