// internal/config/config.go
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"fixity/internal/check"
	"fixity/internal/digest"
)

type Config struct {
	Server struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	} `json:"server"`

	Archive struct {
		Path      string `json:"path"`
		CacheSize int    `json:"cache_size"`
	} `json:"archive"`

	Scan struct {
		ControlFile string   `json:"control_file"`
		Excludes    []string `json:"excludes"`
		Workers     int      `json:"workers"`
		BufferSize  int      `json:"buffer_size"`
	} `json:"scan"`

	Environment string `json:"environment"` // development, production
	LogLevel    string `json:"log_level"`   // debug, info, warn, error
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8080
	cfg.Archive.Path = ".fixity"
	cfg.Archive.CacheSize = 64
	cfg.Scan.ControlFile = check.DefaultControlFile
	cfg.Scan.Workers = 1
	cfg.Scan.BufferSize = digest.DefaultBufferSize
	cfg.Environment = "development"
	cfg.LogLevel = "info"
	return &cfg
}

// Path resolves the profile file selected by FIXITY_ENV.
func Path() string {
	env := os.Getenv("FIXITY_ENV")
	if env == "" {
		env = "development"
	}
	return fmt.Sprintf("config/config.%s.json", env)
}

// Load decodes path over Default, so omitted fields keep their defaults.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	cfg := Default()
	if err := json.NewDecoder(file).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields Default.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

func (c *Config) Validate() error {
	switch {
	case c.Server.Port < 0 || c.Server.Port > 65535:
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	case c.Archive.CacheSize < 0:
		return fmt.Errorf("invalid archive cache size %d", c.Archive.CacheSize)
	case c.Scan.Workers < 0:
		return fmt.Errorf("invalid worker count %d", c.Scan.Workers)
	case c.Scan.BufferSize < 0:
		return fmt.Errorf("invalid buffer size %d", c.Scan.BufferSize)
	}
	return nil
}
