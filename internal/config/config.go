// Package config loads runtime configuration from environment variables and
// an optional .env/.env.local file, following the precedence and helper
// shape the rest of this module's ambient stack uses.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Env selects the deployment environment, which in turn selects the default
// destination bucket and logging handler.
type Env string

const (
	EnvDev     Env = "dev"
	EnvStaging Env = "staging"
	EnvProd    Env = "prod"
	EnvTest    Env = "test"
)

// Config is the complete runtime configuration for a pixetl invocation.
type Config struct {
	Env Env

	AWSRegion   string
	EndpointURL string // optional, for S3-compatible endpoints such as R2
	Bucket      string
	AccessKeyID string
	SecretKey   string

	Cores  int
	MaxMem int64 // bytes

	// Database, optional: when Database.Host or Database.DBName is empty
	// (DatabaseConfig.Enabled) the job ledger runs as a no-op and pipeline
	// behavior is unaffected.
	Database DatabaseConfig

	MetricsAddr string // optional, e.g. ":9090"; empty disables the endpoint
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (d DatabaseConfig) Enabled() bool {
	return d.Host != "" && d.DBName != ""
}

// Load loads configuration from envPath (preferring a sibling .env.local,
// as the tile-service template does) then environment variables, applying
// defaults for anything unset.
func Load(envPath string) (*Config, error) {
	localEnvPath := strings.TrimSuffix(envPath, ".env") + ".env.local"
	if _, err := os.Stat(localEnvPath); err == nil {
		if err := loadEnvFile(localEnvPath); err != nil {
			return nil, fmt.Errorf("failed to load local env file: %w", err)
		}
	} else if _, err := os.Stat(envPath); err == nil {
		if err := loadEnvFile(envPath); err != nil {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	cfg := &Config{
		Env:         Env(getEnv("ENV", "dev")),
		AWSRegion:   getEnv("AWS_REGION", "us-east-1"),
		EndpointURL: getEnv("ENDPOINT_URL", ""),
		Bucket:      getEnv("BUCKET", ""),
		AccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		Cores:       getEnvInt("CORES", defaultCores()),
		MaxMem:      getEnvInt64("MAX_MEM", defaultMaxMem()),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", ""),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", ""),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		MetricsAddr: getEnv("METRICS_ADDR", ""),
	}

	switch cfg.Env {
	case EnvDev, EnvStaging, EnvProd, EnvTest:
	default:
		return nil, fmt.Errorf("invalid ENV value %q: must be one of dev, staging, prod, test", cfg.Env)
	}

	return cfg, nil
}

func loadEnvFile(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		os.Setenv(key, value)
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}

// WorkDir returns a process-local scratch directory under the OS temp dir,
// created on demand.
func WorkDir(runID string) (string, error) {
	dir := filepath.Join(os.TempDir(), "pixetl-"+runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create work directory: %w", err)
	}
	return dir, nil
}
