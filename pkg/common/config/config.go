// Package config provides centralized configuration management for the NOOS
// retail platform: database connectivity, task engine pool sizing, ingestion
// limits, logging, and the wire-glue server.
//
// Configuration Sources (in order of precedence):
//  1. Environment variables (highest priority)
//  2. Configuration file (JSON format)
//  3. Default values (lowest priority)
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/retaildata/noosengine/pkg/common/logging"
)

// Config is the root configuration object for every process entry point
// (cmd/noos-server, cmd/noosctl) in this module.
type Config struct {
	Database  DatabaseConfig  `json:"database"`
	Tasks     TaskEngineConfig `json:"tasks"`
	Ingestion IngestionConfig `json:"ingestion"`
	Logging   LoggingConfig   `json:"logging"`
	Server    ServerConfig    `json:"server"`
}

// DatabaseConfig configures the Postgres connection pool backing the
// Storage Adapter.
type DatabaseConfig struct {
	ConnectionString string        `json:"connection_string"`
	MaxConnections   int32         `json:"max_connections"`
	ConnectTimeout   time.Duration `json:"connect_timeout"`
	MigrationsPath   string        `json:"migrations_path"`
}

// TaskEngineConfig configures the three bounded worker pools of the Task
// Engine and their default wall-clock budgets.
type TaskEngineConfig struct {
	UploadWorkers    int           `json:"upload_workers"`
	DownloadWorkers  int           `json:"download_workers"`
	ComputeWorkers   int           `json:"compute_workers"`
	QueueMultiplier  int           `json:"queue_multiplier"`
	UploadTimeout    time.Duration `json:"upload_timeout"`
	DownloadTimeout  time.Duration `json:"download_timeout"`
	ComputeTimeout   time.Duration `json:"compute_timeout"`
	ProgressFlushPct float64       `json:"progress_flush_pct"`
	ProgressFlushDur time.Duration `json:"progress_flush_duration"`
}

// IngestionConfig configures TSV ingestion limits.
type IngestionConfig struct {
	MaxRows         int    `json:"max_rows"`
	ChunkSize       int    `json:"chunk_size"`
	ErrorArtifactDir string `json:"error_artifact_dir"`
}

// LoggingConfig configures the process-wide structured logger.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
	File   string `json:"file"`
}

// ServerConfig configures the wire-glue HTTP server and the optional
// hot-folder watcher.
type ServerConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	WatchDir       string `json:"watch_dir"`
	WatchEnabled   bool   `json:"watch_enabled"`
	WatchDebounce  time.Duration `json:"watch_debounce"`
}

// DefaultConfig returns the built-in defaults: 4 upload workers, 4
// download workers, 2 compute workers, queue
// depth 2x worker count, 10-minute upload/download budgets, 30-minute
// compute budget, 500,000-row ingestion ceiling, 1,000-row chunking.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			ConnectionString: "postgres://localhost:5432/noosengine?sslmode=disable",
			MaxConnections:   10,
			ConnectTimeout:   30 * time.Second,
			MigrationsPath:   "file://migrations",
		},
		Tasks: TaskEngineConfig{
			UploadWorkers:    4,
			DownloadWorkers:  4,
			ComputeWorkers:   2,
			QueueMultiplier:  2,
			UploadTimeout:    10 * time.Minute,
			DownloadTimeout:  10 * time.Minute,
			ComputeTimeout:   30 * time.Minute,
			ProgressFlushPct: 5.0,
			ProgressFlushDur: 2 * time.Second,
		},
		Ingestion: IngestionConfig{
			MaxRows:          500000,
			ChunkSize:        1000,
			ErrorArtifactDir: "./data/errors",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "console",
			File:   "",
		},
		Server: ServerConfig{
			Host:          "localhost",
			Port:          8080,
			WatchDir:      "",
			WatchEnabled:  false,
			WatchDebounce: 2 * time.Second,
		},
	}
}

// LoadConfig loads configuration from file with environment variable
// overrides, then validates it.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	cfg.applyEnvironmentOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, c)
}

// applyEnvironmentOverrides applies NOOS_-prefixed environment variable
// overrides on top of file-or-default configuration.
func (c *Config) applyEnvironmentOverrides() {
	if val := os.Getenv("NOOS_DATABASE_URL"); val != "" {
		c.Database.ConnectionString = val
	}
	if val := os.Getenv("NOOS_DATABASE_MAX_CONNS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Database.MaxConnections = int32(n)
		}
	}
	if val := os.Getenv("NOOS_MIGRATIONS_PATH"); val != "" {
		c.Database.MigrationsPath = val
	}

	if val := os.Getenv("NOOS_UPLOAD_WORKERS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Tasks.UploadWorkers = n
		}
	}
	if val := os.Getenv("NOOS_DOWNLOAD_WORKERS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Tasks.DownloadWorkers = n
		}
	}
	if val := os.Getenv("NOOS_COMPUTE_WORKERS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Tasks.ComputeWorkers = n
		}
	}

	if val := os.Getenv("NOOS_MAX_ROWS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Ingestion.MaxRows = n
		}
	}
	if val := os.Getenv("NOOS_ERROR_ARTIFACT_DIR"); val != "" {
		c.Ingestion.ErrorArtifactDir = val
	}

	if val := os.Getenv("NOOS_LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
	if val := os.Getenv("NOOS_LOG_FORMAT"); val != "" {
		c.Logging.Format = val
	}
	if val := os.Getenv("NOOS_LOG_OUTPUT"); val != "" {
		c.Logging.Output = val
	}
	if val := os.Getenv("NOOS_LOG_FILE"); val != "" {
		c.Logging.File = val
	}

	if val := os.Getenv("NOOS_SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("NOOS_SERVER_PORT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Server.Port = n
		}
	}
	if val := os.Getenv("NOOS_WATCH_DIR"); val != "" {
		c.Server.WatchDir = val
		c.Server.WatchEnabled = true
	}
}

// Validate checks the configuration for internal consistency, failing fast
// on the kind of misconfiguration that would otherwise surface as a
// confusing runtime error deep in the Task Engine or Storage Adapter.
func (c *Config) Validate() error {
	if c.Database.ConnectionString == "" {
		return fmt.Errorf("database connection string cannot be empty")
	}
	if c.Database.MaxConnections <= 0 {
		return fmt.Errorf("database max connections must be positive")
	}

	if c.Tasks.UploadWorkers <= 0 || c.Tasks.DownloadWorkers <= 0 || c.Tasks.ComputeWorkers <= 0 {
		return fmt.Errorf("task engine worker counts must be positive")
	}
	if c.Tasks.QueueMultiplier <= 0 {
		return fmt.Errorf("task engine queue multiplier must be positive")
	}

	if c.Ingestion.MaxRows <= 0 {
		return fmt.Errorf("ingestion max rows must be positive")
	}
	if c.Ingestion.ChunkSize <= 0 {
		return fmt.Errorf("ingestion chunk size must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}
	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}
	if c.Server.WatchEnabled && c.Server.WatchDir == "" {
		return fmt.Errorf("watch directory required when hot-folder watching is enabled")
	}

	return nil
}

// SaveToFile persists the configuration as indented JSON, creating parent
// directories as needed.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// BuildLogger constructs the process-wide structured logger from the
// configuration's Logging section.
func (c *Config) BuildLogger() (*logging.Logger, error) {
	return logging.ConfigureFromSettings(c.Logging.Level, c.Logging.Format, c.Logging.Output, c.Logging.File)
}

// GetDefaultConfigPath returns the conventional configuration file path
// under the user's home directory.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".noosengine", "config.json"), nil
}
