// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Exports  ExportsConfig  `toml:"exports"`
	Database DatabaseConfig `toml:"database"`
}

// ExportsConfig maps export-source settings.
type ExportsConfig struct {
	// Dir is the directory the ledger and hand-history downloads land in.
	Dir *string `toml:"dir"`
	// Tables, when non-empty, restricts parsing to the named tables.
	Tables []string `toml:"tables"`
}

// DatabaseConfig maps storage settings.
type DatabaseConfig struct {
	Path *string `toml:"path"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
