package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"codeexec/internal/executor/language"
	"codeexec/pkg/utils/logger"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8090"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 30 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultQueueWait       = 10 * time.Second
	defaultMaxCodeBytes    = 64 * 1024
	defaultMaxInputBytes   = 1024 * 1024
	defaultOutputMaxBytes  = 64 * 1024
	defaultKillGrace       = 500 * time.Millisecond
	defaultMetricsPath     = "/metrics"
	defaultMaxBodyBytes    = 4 * 1024 * 1024
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
	MaxBodyBytes int64         `yaml:"maxBodyBytes"`
}

// WorkspaceConfig holds job directory settings.
type WorkspaceConfig struct {
	Root string `yaml:"root"`
}

// SweeperConfig holds stale workspace cleanup settings.
type SweeperConfig struct {
	Enabled   *bool         `yaml:"enabled"`
	Interval  time.Duration `yaml:"interval"`
	Retention time.Duration `yaml:"retention"`
}

// WorkerConfig holds admission pool settings.
type WorkerConfig struct {
	PoolSize  int           `yaml:"poolSize"`
	QueueSize int           `yaml:"queueSize"`
	QueueWait time.Duration `yaml:"queueWait"`
}

// LimitsConfig holds per-request limits.
type LimitsConfig struct {
	MaxCodeBytes   int           `yaml:"maxCodeBytes"`
	MaxInputBytes  int           `yaml:"maxInputBytes"`
	OutputMaxBytes int64         `yaml:"outputMaxBytes"`
	KillGrace      time.Duration `yaml:"killGrace"`
}

// LanguageConfig replaces the built-in language table when non-empty.
type LanguageConfig struct {
	Languages []language.Spec `yaml:"languages"`
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// CORSConfig holds browser access settings.
type CORSConfig struct {
	Enabled          bool          `yaml:"enabled"`
	AllowedOrigins   []string      `yaml:"allowedOrigins"`
	AllowedMethods   []string      `yaml:"allowedMethods"`
	AllowedHeaders   []string      `yaml:"allowedHeaders"`
	ExposedHeaders   []string      `yaml:"exposedHeaders"`
	AllowCredentials bool          `yaml:"allowCredentials"`
	MaxAge           time.Duration `yaml:"maxAge"`
}

// AppConfig holds exec-service config.
type AppConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Logger    logger.Config   `yaml:"logger"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Sweeper   SweeperConfig   `yaml:"sweeper"`
	Worker    WorkerConfig    `yaml:"worker"`
	Limits    LimitsConfig    `yaml:"limits"`
	Language  LanguageConfig  `yaml:"language"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	CORS      CORSConfig      `yaml:"cors"`
}

// IsEnabled reports whether the cleanup loop should run. It defaults to on.
func (c SweeperConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// loadDotEnv loads variables from a .env file next to the working directory.
// A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load env file failed: %w", err)
	}
	return nil
}

func loadYAML(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file failed: %w", err)
	}
	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), out); err != nil {
		return fmt.Errorf("parse config file failed: %w", err)
	}
	return nil
}

func loadAppConfig(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := loadYAML(path, &cfg); err != nil {
		return nil, err
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = defaultHTTPAddr
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = defaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = defaultIdleTimeout
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		cfg.Server.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.Workspace.Root == "" {
		cfg.Workspace.Root = filepath.Join(os.TempDir(), "codeexec")
	}
	if cfg.Worker.PoolSize <= 0 {
		cfg.Worker.PoolSize = 4
	}
	if cfg.Worker.QueueSize < 0 {
		cfg.Worker.QueueSize = 0
	}
	if cfg.Worker.QueueWait == 0 {
		cfg.Worker.QueueWait = defaultQueueWait
	}
	if cfg.Limits.MaxCodeBytes <= 0 {
		cfg.Limits.MaxCodeBytes = defaultMaxCodeBytes
	}
	if cfg.Limits.MaxInputBytes <= 0 {
		cfg.Limits.MaxInputBytes = defaultMaxInputBytes
	}
	if cfg.Limits.OutputMaxBytes <= 0 {
		cfg.Limits.OutputMaxBytes = defaultOutputMaxBytes
	}
	if cfg.Limits.KillGrace <= 0 {
		cfg.Limits.KillGrace = defaultKillGrace
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = defaultMetricsPath
	}
	return &cfg, nil
}

// languageTable builds the configured table, falling back to the built-in languages.
func (c LanguageConfig) languageTable() (*language.Table, error) {
	if len(c.Languages) == 0 {
		return language.Default(), nil
	}
	return language.NewTable(c.Languages)
}
