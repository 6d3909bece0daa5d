package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Storage  StorageConfig  `yaml:"storage"`
	Receipts ReceiptsConfig `yaml:"receipts"`
	Webhooks WebhooksConfig `yaml:"webhooks"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Path        string `yaml:"path"`
	ArchiveDays int    `yaml:"archive_days"`
}

type StorageConfig struct {
	UploadsDir string `yaml:"uploads_dir"`
}

type ReceiptsConfig struct {
	Prefix string `yaml:"prefix"`
}

type WebhooksConfig struct {
	RetryCount  int           `yaml:"retry_count"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
	Timeout     time.Duration `yaml:"timeout"`
	WorkerCount int           `yaml:"worker_count"`
	QueueSize   int           `yaml:"queue_size"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path:        "./data/printfair.db",
			ArchiveDays: 90,
		},
		Storage: StorageConfig{
			UploadsDir: "./data/uploads",
		},
		Receipts: ReceiptsConfig{
			Prefix: "PRT",
		},
		Webhooks: WebhooksConfig{
			RetryCount:  3,
			RetryDelay:  5 * time.Second,
			Timeout:     10 * time.Second,
			WorkerCount: 3,
			QueueSize:   100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func Load(configPath string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

func LoadFromEnv() *Config {
	cfg := defaults()

	if v := os.Getenv("PRINTFAIR_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	if v := os.Getenv("PRINTFAIR_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("PRINTFAIR_RECEIPT_PREFIX"); v != "" {
		cfg.Receipts.Prefix = v
	}

	if v := os.Getenv("PRINTFAIR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	return cfg
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be non-negative")
	}

	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server write timeout must be non-negative")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Database.ArchiveDays < 0 {
		return fmt.Errorf("archive days must be non-negative")
	}

	if c.Storage.UploadsDir == "" {
		return fmt.Errorf("uploads directory is required")
	}

	if c.Receipts.Prefix == "" {
		return fmt.Errorf("receipt prefix is required")
	}

	if c.Webhooks.RetryCount < 0 {
		return fmt.Errorf("webhook retry count must be non-negative")
	}

	if c.Webhooks.RetryDelay < 0 {
		return fmt.Errorf("webhook retry delay must be non-negative")
	}

	if c.Webhooks.WorkerCount < 1 {
		return fmt.Errorf("webhook worker count must be at least 1")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json":  true,
		"text":  true,
		"plain": true,
	}

	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, text, plain)", c.Logging.Format)
	}

	return nil
}
