// Package config provides configuration loading for the csvw command.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/geoknoesis/csvw-go/internal/logger"
	"github.com/geoknoesis/csvw-go/resolve"
	"github.com/geoknoesis/csvw-go/store/postgres"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config represents the complete configuration.
type Config struct {
	Log           logger.Config          `yaml:"log"`
	Conversion    ConversionConfig       `yaml:"conversion"`
	PathOverrides []resolve.PathOverride `yaml:"path_overrides"`
	Store         StoreConfig            `yaml:"store"`
	S3            resolve.S3Config       `yaml:"s3"`
	HTTP          HTTPConfig             `yaml:"http"`
	Metrics       MetricsConfig          `yaml:"metrics"`
}

// ConversionConfig holds the defaults of the conversion options.
type ConversionConfig struct {
	// BaseIRI resolves the URLs of inferred tables.
	BaseIRI string `yaml:"base_iri"`
	// TemplateIRIs resolves expanded URI templates against the table URL.
	TemplateIRIs bool `yaml:"template_iris"`
	// Minimal validates tables without emitting quads.
	Minimal bool `yaml:"minimal"`
	// TableMetadata emits the table group, table and row descriptions
	// around the cell quads.
	TableMetadata bool `yaml:"table_metadata"`
	// WindowSize bounds the resident quads of RDF to tabular conversions;
	// zero loads the whole input.
	WindowSize int `yaml:"window_size"`
	StepSize   int `yaml:"step_size"`
	// UseVocabMetadata titles inferred columns with vocabulary labels.
	UseVocabMetadata bool `yaml:"use_vocab_metadata"`
	// Format is the RDF output format name, e.g. "nquads" or "turtle".
	Format string `yaml:"format"`
	// Buffer is the channel size of result streams.
	Buffer int `yaml:"buffer"`
}

// StoreConfig selects the quad store of RDF to tabular conversions.
type StoreConfig struct {
	// Driver is "memory" or "postgres".
	Driver   string          `yaml:"driver"`
	Postgres postgres.Config `yaml:"postgres"`
}

// HTTPConfig configures fetching http(s) resources.
type HTTPConfig struct {
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address of /metrics; empty disables it.
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a Config with the default settings.
func DefaultConfig() *Config {
	return &Config{
		Log: *logger.DefaultConfig(),
		Conversion: ConversionConfig{
			Format: "nquads",
			Buffer: 64,
		},
		Store: StoreConfig{
			Driver:   StoreMemory,
			Postgres: postgres.DefaultConfig(""),
		},
		S3: resolve.S3Config{UseSSL: true},
		HTTP: HTTPConfig{
			Timeout:   30 * time.Second,
			UserAgent: "csvw-go",
		},
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Conversion.WindowSize < 0 {
		return fmt.Errorf("conversion.window_size must not be negative")
	}
	if c.Conversion.StepSize < 0 {
		return fmt.Errorf("conversion.step_size must not be negative")
	}
	if c.Conversion.WindowSize > 0 && c.Conversion.StepSize > c.Conversion.WindowSize {
		return fmt.Errorf("conversion.step_size must not exceed conversion.window_size")
	}
	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres:
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", c.Store.Driver)
	}
	if c.S3.Endpoint != "" && (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
		return fmt.Errorf("s3.access_key and s3.secret_key must be set together")
	}
	if _, err := resolve.CompileOverrides(c.PathOverrides); err != nil {
		return fmt.Errorf("path_overrides: %w", err)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Merge merges another config into this one. Non-zero values of other
// win; booleans are only ever switched on.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Log
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.Format != "" {
		c.Log.Format = other.Log.Format
	}
	if other.Log.TimeFormat != "" {
		c.Log.TimeFormat = other.Log.TimeFormat
	}
	if other.Log.Output != nil {
		c.Log.Output = other.Log.Output
	}

	// Conversion
	oc := other.Conversion
	if oc.BaseIRI != "" {
		c.Conversion.BaseIRI = oc.BaseIRI
	}
	c.Conversion.TemplateIRIs = c.Conversion.TemplateIRIs || oc.TemplateIRIs
	c.Conversion.Minimal = c.Conversion.Minimal || oc.Minimal
	c.Conversion.TableMetadata = c.Conversion.TableMetadata || oc.TableMetadata
	c.Conversion.UseVocabMetadata = c.Conversion.UseVocabMetadata || oc.UseVocabMetadata
	if oc.WindowSize != 0 {
		c.Conversion.WindowSize = oc.WindowSize
	}
	if oc.StepSize != 0 {
		c.Conversion.StepSize = oc.StepSize
	}
	if oc.Format != "" {
		c.Conversion.Format = oc.Format
	}
	if oc.Buffer != 0 {
		c.Conversion.Buffer = oc.Buffer
	}

	if len(other.PathOverrides) > 0 {
		c.PathOverrides = other.PathOverrides
	}

	// Store
	if other.Store.Driver != "" {
		c.Store.Driver = other.Store.Driver
	}
	op := other.Store.Postgres
	if op.DSN != "" {
		c.Store.Postgres.DSN = op.DSN
	}
	if op.Table != "" {
		c.Store.Postgres.Table = op.Table
	}
	if op.MaxConns != 0 {
		c.Store.Postgres.MaxConns = op.MaxConns
	}
	if op.ConnectTimeout != 0 {
		c.Store.Postgres.ConnectTimeout = op.ConnectTimeout
	}
	if op.BatchSize != 0 {
		c.Store.Postgres.BatchSize = op.BatchSize
	}

	// S3
	if other.S3.Endpoint != "" {
		c.S3 = other.S3
	}

	// HTTP
	if other.HTTP.Timeout != 0 {
		c.HTTP.Timeout = other.HTTP.Timeout
	}
	if other.HTTP.UserAgent != "" {
		c.HTTP.UserAgent = other.HTTP.UserAgent
	}

	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}
}
