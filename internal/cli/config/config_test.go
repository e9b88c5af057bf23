package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.BaseURL != "" {
		t.Fatalf("default mode should be in process, got %q", cfg.BaseURL)
	}
	if cfg.Timeout != DefaultTimeout || cfg.WorkspaceRoot == "" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.PrettyJSON == nil || *cfg.PrettyJSON {
		t.Fatalf("pretty json should default to false")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.yaml")
	content := "baseURL: http://127.0.0.1:8090\ntimeout: 5s\nprettyJSON: true\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.BaseURL != "http://127.0.0.1:8090" || cfg.Timeout != 5*time.Second || !*cfg.PrettyJSON {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}
