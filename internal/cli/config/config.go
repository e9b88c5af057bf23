package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultHistoryFile = ".codeexec_history"
)

// Config holds CLI configuration. An empty BaseURL runs submissions in process.
type Config struct {
	BaseURL       string        `yaml:"baseURL"`
	Timeout       time.Duration `yaml:"timeout"`
	WorkspaceRoot string        `yaml:"workspaceRoot"`
	HistoryFile   string        `yaml:"historyFile"`
	PrettyJSON    *bool         `yaml:"prettyJSON"`
}

// Load reads path. A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("read config file failed: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file failed: %w", err)
		}
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.WorkspaceRoot == "" {
		cfg.WorkspaceRoot = filepath.Join(os.TempDir(), "codeexec-cli")
	}
	if cfg.HistoryFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.HistoryFile = filepath.Join(home, DefaultHistoryFile)
		}
	}
	if cfg.PrettyJSON == nil {
		value := false
		cfg.PrettyJSON = &value
	}
}
