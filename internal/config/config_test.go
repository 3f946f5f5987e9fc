package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `{
		"server": {"port": 9090},
		"scan": {"excludes": [".git", "*.tmp"], "workers": 4},
		"log_level": "debug"
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, []string{".git", "*.tmp"}, cfg.Scan.Excludes)
	assert.Equal(t, 4, cfg.Scan.Workers)
	assert.Equal(t, "Controlfile", cfg.Scan.ControlFile)
	assert.Equal(t, 16*1024, cfg.Scan.BufferSize)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"server":`},
		{"negative workers", `{"scan": {"workers": -1}}`},
		{"negative buffer", `{"scan": {"buffer_size": -5}}`},
		{"negative cache", `{"archive": {"cache_size": -1}}`},
		{"bad port", `{"server": {"port": 70000}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	_, err = LoadOrDefault(writeConfig(t, "nope"))
	assert.Error(t, err)
}

func TestPath(t *testing.T) {
	t.Setenv("FIXITY_ENV", "")
	assert.Equal(t, "config/config.development.json", Path())

	t.Setenv("FIXITY_ENV", "production")
	assert.Equal(t, "config/config.production.json", Path())
}
