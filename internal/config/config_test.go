package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "segmenter.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 2, cfg.Clusters)
	assert.Equal(t, 100, cfg.MaxIterations)
	assert.Equal(t, 0.01, cfg.Threshold)
	assert.Equal(t, ".jpg", cfg.Format)
	assert.Equal(t, 1.0, cfg.Scale())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
clusters = 8
threshold = 0.0
seed = 1234
normalize = true
format = "PNG"

[log]
level = "debug"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8, cfg.Clusters)
	assert.Equal(t, 0.0, cfg.Threshold)
	assert.Equal(t, uint64(1234), cfg.Seed)
	assert.Equal(t, ".png", cfg.Format)
	assert.Equal(t, "debug", cfg.Log.Level)
	// untouched keys keep their defaults
	assert.Equal(t, 100, cfg.MaxIterations)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.InDelta(t, 1.0/255, cfg.Scale(), 1e-15)
}

func TestLoad_UnknownKey(t *testing.T) {
	_, err := Load(writeConfig(t, "clusterz = 3\n"))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	for name, mutate := range map[string]func(*Config){
		"clusters":   func(c *Config) { c.Clusters = 0 },
		"iterations": func(c *Config) { c.MaxIterations = 0 },
		"threshold":  func(c *Config) { c.Threshold = -0.5 },
		"quality":    func(c *Config) { c.Quality = 101 },
		"workers":    func(c *Config) { c.Workers = 0 },
		"format":     func(c *Config) { c.Format = "webp" },
	} {
		cfg := Default()
		mutate(&cfg)
		assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig, name)
	}
}

func TestResolveSeed(t *testing.T) {
	now := time.Unix(0, 987654321)

	cfg := Default()
	assert.Equal(t, uint64(987654321), cfg.ResolveSeed(now))

	cfg.Seed = 7
	assert.Equal(t, uint64(7), cfg.ResolveSeed(now))
}
