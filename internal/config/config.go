// Package config loads server configuration from defaults, an optional YAML
// file and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Submission strategies understood by the workflow.
const (
	StrategyPerDoor = "per_door"
	StrategyBatch   = "batch"
)

// Config holds the full server configuration.
type Config struct {
	// Addr is the HTTP listen address
	Addr string `yaml:"addr"`

	// DataDir holds the SQLite database
	DataDir string `yaml:"data_dir"`

	// StaticDir is served at / when it exists
	StaticDir string `yaml:"static_dir"`

	API       APIConfig       `yaml:"api"`
	Workflow  WorkflowConfig  `yaml:"workflow"`
	Directory DirectoryConfig `yaml:"directory"`
}

// APIConfig configures access to the external device API.
type APIConfig struct {
	// BaseURL is the device API base URL
	BaseURL string `yaml:"base_url"`

	// Timeout for regular API requests
	Timeout time.Duration `yaml:"timeout"`

	// ServiceToken is used by background jobs that run without an operator
	// session. Background refresh is disabled when empty.
	ServiceToken string `yaml:"service_token"`

	// ServiceUserID is the account the service token acts for
	ServiceUserID string `yaml:"service_user_id"`
}

// WorkflowConfig configures the credential assignment workflow.
type WorkflowConfig struct {
	SubmissionStrategy string        `yaml:"submission_strategy"`
	ScanTimeout        time.Duration `yaml:"scan_timeout"`
	IdleTTL            time.Duration `yaml:"idle_ttl"`
}

// DirectoryConfig configures the device cache refresher.
type DirectoryConfig struct {
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:      ":8099",
		DataDir:   "/data",
		StaticDir: "./static",
		API: APIConfig{
			BaseURL: "https://sxera9zsa1.execute-api.ap-southeast-2.amazonaws.com/dev",
			Timeout: 30 * time.Second,
		},
		Workflow: WorkflowConfig{
			SubmissionStrategy: StrategyPerDoor,
			ScanTimeout:        60 * time.Second,
			IdleTTL:            30 * time.Minute,
		},
		Directory: DirectoryConfig{
			RefreshInterval: 5 * time.Minute,
		},
	}
}

// Load builds the configuration. Values from the YAML file at path (if path is
// non-empty) override defaults, and environment variables override both.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	cfg.Addr = getEnv("ADDR", cfg.Addr)
	cfg.DataDir = getEnv("DATA_DIR", cfg.DataDir)
	cfg.StaticDir = getEnv("STATIC_DIR", cfg.StaticDir)
	cfg.API.BaseURL = getEnv("DEVICE_API_URL", cfg.API.BaseURL)
	cfg.API.Timeout = getEnvDuration("DEVICE_API_TIMEOUT", cfg.API.Timeout)
	cfg.API.ServiceToken = getEnv("DEVICE_API_SERVICE_TOKEN", cfg.API.ServiceToken)
	cfg.API.ServiceUserID = getEnv("DEVICE_API_SERVICE_USER_ID", cfg.API.ServiceUserID)
	cfg.Workflow.SubmissionStrategy = getEnv("SUBMISSION_STRATEGY", cfg.Workflow.SubmissionStrategy)
	cfg.Workflow.ScanTimeout = getEnvDuration("SCAN_TIMEOUT", cfg.Workflow.ScanTimeout)
	cfg.Workflow.IdleTTL = getEnvDuration("WORKFLOW_IDLE_TTL", cfg.Workflow.IdleTTL)
	cfg.Directory.RefreshInterval = getEnvDuration("DIRECTORY_REFRESH_INTERVAL", cfg.Directory.RefreshInterval)

	return cfg, cfg.Validate()
}

// Validate checks values that have no sensible fallback.
func (c Config) Validate() error {
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return fmt.Errorf("api.base_url is required")
	}
	switch c.Workflow.SubmissionStrategy {
	case StrategyPerDoor, StrategyBatch:
	default:
		return fmt.Errorf("unknown submission strategy %q", c.Workflow.SubmissionStrategy)
	}
	if c.Workflow.ScanTimeout <= 0 {
		return fmt.Errorf("workflow.scan_timeout must be positive")
	}
	return nil
}

// BackgroundRefreshEnabled reports whether the directory cache can be
// refreshed without an operator session.
func (c Config) BackgroundRefreshEnabled() bool {
	return c.API.ServiceToken != "" && c.Directory.RefreshInterval > 0
}

// getEnv returns an environment variable value or a default if not set.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("90s") or KEY_SECONDS integers.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	if value := os.Getenv(key + "_SECONDS"); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
