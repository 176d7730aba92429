// Package clientconfig loads the terminal client's configuration: a YAML
// file with environment overrides.
package clientconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config drives cmd/smartmark.
type Config struct {
	// Server is the smartmarkd base URL, ex: "http://localhost:8080".
	Server string `yaml:"server"`
	// Token is the bearer session token from the identity provider.
	// Empty token = guest mode.
	Token string `yaml:"token"`
	// StateDir holds guest bookmarks and the onboarding marker.
	StateDir string `yaml:"state_dir"`
}

// DefaultPath returns the conventional config location,
// ~/.config/smartmark/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(home, ".config", "smartmark", "config.yaml")
}

// Load reads the YAML file at path (a missing file is fine), applies
// environment overrides and fills defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Env wins over file
	if v := os.Getenv("SMARTMARK_SERVER"); v != "" {
		cfg.Server = v
	}
	if v := os.Getenv("SMARTMARK_TOKEN"); v != "" {
		cfg.Token = v
	}
	if v := os.Getenv("SMARTMARK_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}

	if cfg.Server == "" {
		cfg.Server = "http://localhost:8080"
	}
	if cfg.StateDir == "" {
		cfg.StateDir = defaultStateDir()
	}
	return cfg, nil
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".smartmark"
	}
	return filepath.Join(home, ".local", "state", "smartmark")
}
