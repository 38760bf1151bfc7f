// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool
	DBDriver string // "sqlite" (modernc, pure Go) or "sqlite3" (mattn, cgo)

	OpenAIAPIKey     string
	OpenAIBaseURL    string
	AnthropicAPIKey  string
	AnthropicBaseURL string

	ProviderTimeout           time.Duration // Bound on a single provider round-trip
	ProviderRequestsPerMinute int

	RetestSchedule           string // Cron expression (with seconds) for the automatic retest run
	UserDailyEvaluationLimit int    // Direct evaluations a user may trigger per day
	ModelLimitsFile          string // Optional YAML file overriding per-model limits

	Job    JobConfig
	Backup *BackupConfig
}

// BackupConfig holds S3-compatible backup settings
type BackupConfig struct {
	Enabled         bool
	Schedule        string
	Bucket          string
	Endpoint        string // Empty = AWS default endpoint resolution
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	RetentionDays   int // 0 = keep forever
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "./data")

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	job := DefaultJobConfig()
	job.RetestIntervalDays = getEnvAsInt("RETEST_INTERVAL_DAYS", job.RetestIntervalDays)
	job.MaxCostPerDay = getEnvAsFloat("MAX_COST_PER_DAY", job.MaxCostPerDay)
	job.PriorityThresholds.High = getEnvAsFloat("PRIORITY_THRESHOLD_HIGH", job.PriorityThresholds.High)
	job.PriorityThresholds.Medium = getEnvAsFloat("PRIORITY_THRESHOLD_MEDIUM", job.PriorityThresholds.Medium)
	job.CandidateLimit = getEnvAsInt("RETEST_CANDIDATE_LIMIT", job.CandidateLimit)
	job.InterCallDelay = time.Duration(getEnvAsInt("RETEST_DELAY_MS", int(job.InterCallDelay/time.Millisecond))) * time.Millisecond

	cfg := &Config{
		DataDir:                   absDataDir,
		LogLevel:                  getEnv("LOG_LEVEL", "info"),
		Port:                      getEnvAsInt("PORT", 8080),
		DevMode:                   getEnvAsBool("DEV_MODE", false),
		DBDriver:                  getEnv("DB_DRIVER", "sqlite"),
		OpenAIAPIKey:              getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:             getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		AnthropicAPIKey:           getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicBaseURL:          getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com/v1"),
		ProviderTimeout:           time.Duration(getEnvAsInt("PROVIDER_TIMEOUT_SECONDS", 60)) * time.Second,
		ProviderRequestsPerMinute: getEnvAsInt("PROVIDER_REQUESTS_PER_MINUTE", 60),
		RetestSchedule:            getEnv("RETEST_SCHEDULE", "0 0 3 * * *"), // 03:00 every day
		UserDailyEvaluationLimit:  getEnvAsInt("USER_DAILY_EVALUATION_LIMIT", 10),
		ModelLimitsFile:           getEnv("MODEL_LIMITS_FILE", ""),
		Job:                       job,
		Backup:                    loadBackupConfig(),
	}

	if cfg.ModelLimitsFile != "" {
		limits, err := LoadModelLimits(cfg.ModelLimitsFile)
		if err != nil {
			return nil, err
		}
		for model, limit := range limits {
			cfg.Job.ModelLimits[model] = limit
		}
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.DBDriver != "sqlite" && c.DBDriver != "sqlite3" {
		return fmt.Errorf("unsupported DB_DRIVER %q (expected sqlite or sqlite3)", c.DBDriver)
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("provider timeout must be positive")
	}
	if err := c.Job.Validate(); err != nil {
		return fmt.Errorf("invalid job configuration: %w", err)
	}
	if c.Backup != nil && c.Backup.Enabled && c.Backup.Bucket == "" {
		return fmt.Errorf("backup enabled but BACKUP_BUCKET is empty")
	}
	return nil
}

// SettingsReader is the subset of the settings repository used to apply runtime overrides
type SettingsReader interface {
	Get(key string) (*string, error)
}

// UpdateFromSettings applies runtime overrides stored in the settings database.
// Settings DB values take precedence over environment variables. Empty or
// unparseable values keep the current value.
func (c *Config) UpdateFromSettings(settingsRepo SettingsReader) error {
	updated := c.Job

	intOverrides := map[string]*int{
		"retest_interval_days":   &updated.RetestIntervalDays,
		"retest_candidate_limit": &updated.CandidateLimit,
	}
	for key, target := range intOverrides {
		value, err := settingsRepo.Get(key)
		if err != nil {
			return fmt.Errorf("failed to get %s from settings: %w", key, err)
		}
		if value == nil || *value == "" {
			continue
		}
		if f, err := strconv.ParseFloat(*value, 64); err == nil {
			*target = int(f)
		}
	}

	floatOverrides := map[string]*float64{
		"max_cost_per_day":          &updated.MaxCostPerDay,
		"priority_threshold_high":   &updated.PriorityThresholds.High,
		"priority_threshold_medium": &updated.PriorityThresholds.Medium,
	}
	for key, target := range floatOverrides {
		value, err := settingsRepo.Get(key)
		if err != nil {
			return fmt.Errorf("failed to get %s from settings: %w", key, err)
		}
		if value == nil || *value == "" {
			continue
		}
		if f, err := strconv.ParseFloat(*value, 64); err == nil {
			*target = f
		}
	}

	if err := updated.Validate(); err != nil {
		return fmt.Errorf("settings overrides rejected: %w", err)
	}

	c.Job = updated
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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

// loadBackupConfig loads backup configuration from the environment
func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Enabled:         getEnvAsBool("BACKUP_ENABLED", false),
		Schedule:        getEnv("BACKUP_SCHEDULE", "0 30 4 * * *"), // 04:30 every day
		Bucket:          getEnv("BACKUP_BUCKET", ""),
		Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
		Region:          getEnv("BACKUP_REGION", "auto"),
		AccessKeyID:     getEnv("BACKUP_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
		RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 90),
	}
}
