package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoknoesis/csvw-go/resolve"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "nquads", cfg.Conversion.Format)
	assert.Equal(t, StoreMemory, cfg.Store.Driver)
	assert.Equal(t, "csvw_quads", cfg.Store.Postgres.Table)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid default config", modify: func(c *Config) {}},
		{name: "negative window", modify: func(c *Config) { c.Conversion.WindowSize = -1 }, wantErr: true},
		{name: "negative step", modify: func(c *Config) { c.Conversion.StepSize = -1 }, wantErr: true},
		{
			name:    "step larger than window",
			modify:  func(c *Config) { c.Conversion.WindowSize, c.Conversion.StepSize = 10, 20 },
			wantErr: true,
		},
		{name: "unknown store driver", modify: func(c *Config) { c.Store.Driver = "mysql" }, wantErr: true},
		{name: "postgres without dsn", modify: func(c *Config) { c.Store.Driver = StorePostgres }, wantErr: true},
		{
			name: "postgres with dsn",
			modify: func(c *Config) {
				c.Store.Driver = StorePostgres
				c.Store.Postgres.DSN = "postgres://localhost/csvw"
			},
		},
		{
			name:    "s3 key without secret",
			modify:  func(c *Config) { c.S3.Endpoint, c.S3.AccessKey = "localhost:9000", "key" },
			wantErr: true,
		},
		{
			name:    "invalid override regex",
			modify:  func(c *Config) { c.PathOverrides = []resolve.PathOverride{{From: "(", To: "x", Regex: true}} },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "csvw.yaml")
	content := `
log:
  level: debug
conversion:
  window_size: 1000
  template_iris: true
path_overrides:
  - from: http://example.org/
    to: /data/
store:
  driver: postgres
  postgres:
    dsn: postgres://localhost/csvw
    connect_timeout: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 1000, cfg.Conversion.WindowSize)
	assert.True(t, cfg.Conversion.TemplateIRIs)
	assert.Equal(t, "nquads", cfg.Conversion.Format)
	assert.Equal(t, []resolve.PathOverride{{From: "http://example.org/", To: "/data/"}}, cfg.PathOverrides)
	assert.Equal(t, StorePostgres, cfg.Store.Driver)
	assert.Equal(t, 5*time.Second, cfg.Store.Postgres.ConnectTimeout)
	assert.Equal(t, "csvw_quads", cfg.Store.Postgres.Table)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFromFile_Errors(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("conversion: [unclosed"), 0o644))
	_, err = LoadFromFile(path)
	assert.Error(t, err)
}

func TestSaveToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "csvw.yaml")
	cfg := DefaultConfig()
	cfg.Conversion.BaseIRI = "http://out.org/"
	cfg.Metrics.Addr = ":9090"

	require.NoError(t, cfg.SaveToFile(path))
	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://out.org/", loaded.Conversion.BaseIRI)
	assert.Equal(t, ":9090", loaded.Metrics.Addr)
	assert.Equal(t, cfg.HTTP, loaded.HTTP)
}

func TestMerge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Merge(&Config{
		Log:        DefaultConfig().Log,
		Conversion: ConversionConfig{WindowSize: 500, Minimal: true},
		Store:      StoreConfig{Driver: StorePostgres},
		HTTP:       HTTPConfig{UserAgent: "test"},
	})

	assert.Equal(t, 500, cfg.Conversion.WindowSize)
	assert.True(t, cfg.Conversion.Minimal)
	assert.Equal(t, "nquads", cfg.Conversion.Format)
	assert.Equal(t, StorePostgres, cfg.Store.Driver)
	assert.Equal(t, "csvw_quads", cfg.Store.Postgres.Table)
	assert.Equal(t, "test", cfg.HTTP.UserAgent)
	assert.Equal(t, 30*time.Second, cfg.HTTP.Timeout)

	cfg.Merge(nil)
	assert.Equal(t, 500, cfg.Conversion.WindowSize)
}
