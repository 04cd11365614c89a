package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	const body = `[exports]
dir = "/data/poker/downloads"
tables = ["highstakes", "microgrind"]

[database]
path = "/data/poker/donktrk.db"
`
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Exports.Dir == nil || *cfg.Exports.Dir != "/data/poker/downloads" {
		t.Fatalf("exports dir = %v", cfg.Exports.Dir)
	}
	if cfg.Database.Path == nil || *cfg.Database.Path != "/data/poker/donktrk.db" {
		t.Fatalf("database path = %v", cfg.Database.Path)
	}
	if len(cfg.Exports.Tables) != 2 || cfg.Exports.Tables[0] != "highstakes" {
		t.Fatalf("tables = %v", cfg.Exports.Tables)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("missing config must not error, got %v", err)
	}
	if cfg.Exports.Dir != nil || cfg.Database.Path != nil {
		t.Fatalf("missing config must decode to zero values, got %+v", cfg)
	}
}

func TestLoadConfigEmptyPath(t *testing.T) {
	t.Parallel()

	if _, err := LoadConfig(""); err == nil {
		t.Fatal("empty path must error")
	}
}

func TestLoadConfigBadTOML(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[exports\ndir ="), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("malformed TOML must error")
	}
}
