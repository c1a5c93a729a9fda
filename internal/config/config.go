// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/aristath/regret/internal/domain"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases, always absolute
	LogLevel string
	Port     int
	DevMode  bool

	// Accounting surface consumed by the engines (defaults only, callers
	// may override per request).
	BaseCurrency    domain.Currency
	DefaultStrategy domain.MatchingStrategy
	SellFeeBps      float64 // estimated sell cost, basis points of notional
	SellFeeFlat     float64 // estimated sell cost, flat per trade
	TaxRate         float64 // applied to positive hypothetical gains

	// Batch rebuild
	RebuildWorkers    int
	RecomputeSchedule string // cron spec for the nightly full recompute

	Backup BackupConfig
}

// BackupConfig holds cloud backup configuration (S3-compatible storage)
type BackupConfig struct {
	Enabled         bool
	Schedule        string // cron spec
	Endpoint        string // custom endpoint for R2/MinIO; empty = AWS
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Prefix          string
	Keep            int // number of backups to retain
}

// Load reads configuration from environment variables (.env file honored)
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("REGRET_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:           absDataDir,
		Port:              getEnvAsInt("PORT", 8002),
		DevMode:           getEnvAsBool("DEV_MODE", false),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		BaseCurrency:      domain.Currency(getEnv("BASE_CURRENCY", "EUR")),
		DefaultStrategy:   domain.MatchingStrategy(getEnv("MATCHING_STRATEGY", "FIFO")),
		SellFeeBps:        getEnvAsFloat("SELL_FEE_BPS", 0),
		SellFeeFlat:       getEnvAsFloat("SELL_FEE_FLAT", 0),
		TaxRate:           getEnvAsFloat("TAX_RATE", 0),
		RebuildWorkers:    getEnvAsInt("REBUILD_WORKERS", 4),
		RecomputeSchedule: getEnv("RECOMPUTE_SCHEDULE", "0 30 2 * * *"),
		Backup: BackupConfig{
			Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
			Schedule:        getEnv("BACKUP_SCHEDULE", "0 0 4 * * *"),
			Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
			Region:          getEnv("BACKUP_S3_REGION", "auto"),
			Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
			AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
			Prefix:          getEnv("BACKUP_S3_PREFIX", "regret-backups"),
			Keep:            getEnvAsInt("BACKUP_KEEP", 7),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if required configuration is present and coherent
func (c *Config) Validate() error {
	if !c.DefaultStrategy.Valid() {
		return fmt.Errorf("invalid MATCHING_STRATEGY %q", c.DefaultStrategy)
	}
	if c.TaxRate < 0 || c.TaxRate >= 1 {
		return fmt.Errorf("TAX_RATE must be in [0, 1), got %v", c.TaxRate)
	}
	if c.SellFeeBps < 0 || c.SellFeeFlat < 0 {
		return fmt.Errorf("sell fee model must be non-negative")
	}
	if c.RebuildWorkers < 1 {
		return fmt.Errorf("REBUILD_WORKERS must be >= 1")
	}
	if c.Backup.Enabled && c.Backup.Bucket == "" {
		return fmt.Errorf("BACKUP_S3_BUCKET required when backups are enabled")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
