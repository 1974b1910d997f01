package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, Validate(cfg))
	assert.Equal(t, "mirror.gcr.io", cfg.Registry.Mirror)
	assert.Equal(t, 2*time.Second, cfg.Health.Interval)
	assert.Equal(t, 30, cfg.Bootstrap.Attempts)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "devpods.yaml")
	content := `
storage:
  data_dir: ` + filepath.Join(dir, "data") + `
registry:
  mirror: mirror.example.com
health:
  interval: 500ms
  attempts: 4
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "data"), cfg.Storage.DataDir)
	assert.Equal(t, "mirror.example.com", cfg.Registry.Mirror)
	assert.Equal(t, 500*time.Millisecond, cfg.Health.Interval)
	assert.Equal(t, 4, cfg.Health.Attempts)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	// untouched keys keep their defaults
	assert.Equal(t, "20.10.0", cfg.Runtime.MinVersion)
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "devpods.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  level: info\n"), 0644))

	t.Setenv("DEVPODS_REGISTRY_USERNAME", "octocat")
	t.Setenv("DEVPODS_STORAGE_DATA_DIR", filepath.Join(dir, "env-data"))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "octocat", cfg.Registry.Username)
	assert.Equal(t, filepath.Join(dir, "env-data"), cfg.Storage.DataDir)
}

func TestLoadFindsFileInUserDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir, err := GetConfigDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".devpods"), dir)
	assert.Equal(t, dir, DefaultConfig().Storage.DataDir)

	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "devpods.yaml"), []byte("registry:\n  mirror: mirror.home.example\n"), 0644))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "mirror.home.example", cfg.Registry.Mirror)
	assert.Equal(t, dir, cfg.Storage.DataDir)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "verbose" }, wantErr: true},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
		{name: "empty data dir", mutate: func(c *Config) { c.Storage.DataDir = "" }, wantErr: true},
		{name: "zero health attempts", mutate: func(c *Config) { c.Health.Attempts = 0 }, wantErr: true},
		{name: "negative bootstrap interval", mutate: func(c *Config) { c.Bootstrap.Interval = -time.Second }, wantErr: true},
		{name: "port out of range", mutate: func(c *Config) { c.Server.Port = 70000 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
