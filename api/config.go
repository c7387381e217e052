/*
config.go - Server configuration

PURPOSE:
  Loads server configuration from an optional YAML file, with
  command-line flags taking precedence in main. Defaults keep the
  service runnable with zero configuration.

FILE FORMAT (YAML):
  port: 8080
  db_path: assessments.db
  queue_size: 128
  allowed_origins:
    - http://localhost:5173
*/
package api

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the server's runtime settings.
type Config struct {
	Port           int      `yaml:"port"`
	DBPath         string   `yaml:"db_path"`
	QueueSize      int      `yaml:"queue_size"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DefaultConfig returns the zero-configuration defaults.
func DefaultConfig() Config {
	return Config{
		Port:           8080,
		DBPath:         "assessments.db",
		QueueSize:      128,
		AllowedOrigins: []string{"http://localhost:5173", "http://localhost:8080"},
	}
}

// LoadConfig reads a YAML config file on top of the defaults. A
// missing path returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return cfg, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig().QueueSize
	}
	return cfg, nil
}
