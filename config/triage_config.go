package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"triage_server/pkg/apperr"
)

func generateWorkerID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "triage"
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

type Config struct {
	Port        string
	Environment string

	// Storage
	DatabaseURL string
	RedisURL    string
	DBMaxConns  int

	// Auth
	JWTSecret          string
	TokenEncryptionKey string

	// Completion endpoint (OpenAI compatible)
	LLMAPIKey      string
	LLMBaseURL     string
	LLMModel       string
	LLMMaxTokens   int
	LLMTemperature float64
	LLMTimeout     time.Duration
	LLMMaxRetries  int

	// Governor
	GovernorInterval    time.Duration
	GovernorConcurrency int

	// Result cache
	CacheMaxEntries int
	CacheTTL        time.Duration

	// Rules and dates
	PolicyFile string
	Timezone   string
	Location   *time.Location

	// Google
	GoogleClientID     string
	GoogleClientSecret string

	// Workers
	WorkerID                string
	SyncInterval            time.Duration
	SyncLookbackDays        int
	SyncMaxResults          int
	ProcessorBatchSize      int
	ProcessorIdle           time.Duration
	ProcessorErrorBackoff   time.Duration
	StreamEnabled           bool
	ConsumerPendingCheckSec int
	ConsumerMaxRetries      int

	// Logging
	LogLevel  string
	LogFormat string

	AllowedOrigins []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		Environment: getEnv("ENV", "development"),

		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),
		DBMaxConns:  getEnvInt("DB_MAX_CONNS", 10),

		JWTSecret:          getEnv("JWT_SECRET", ""),
		TokenEncryptionKey: getEnv("TOKEN_ENCRYPTION_KEY", ""),

		LLMAPIKey:      getEnv("GROQ_API_KEY", getEnv("LLM_API_KEY", "")),
		LLMBaseURL:     getEnv("LLM_BASE_URL", "https://api.groq.com/openai/v1"),
		LLMModel:       getEnv("LLM_MODEL", "llama-3.1-8b-instant"),
		LLMMaxTokens:   getEnvInt("LLM_MAX_TOKENS", 300),
		LLMTemperature: getEnvFloat("LLM_TEMPERATURE", 0.2),
		LLMTimeout:     time.Duration(getEnvInt("LLM_TIMEOUT_SEC", 30)) * time.Second,
		LLMMaxRetries:  getEnvInt("LLM_MAX_RETRIES", 3),

		GovernorInterval:    time.Duration(getEnvInt("GOVERNOR_INTERVAL_MS", 2100)) * time.Millisecond,
		GovernorConcurrency: getEnvInt("GOVERNOR_CONCURRENCY", 1),

		CacheMaxEntries: getEnvInt("CACHE_MAX_ENTRIES", 1000),
		CacheTTL:        time.Duration(getEnvInt("CACHE_TTL_MIN", 0)) * time.Minute,

		PolicyFile: getEnv("TRIAGE_POLICY_FILE", ""),
		Timezone:   getEnv("TRIAGE_TIMEZONE", "UTC"),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),

		WorkerID:                getEnv("WORKER_ID", generateWorkerID()),
		SyncInterval:            time.Duration(getEnvInt("SYNC_INTERVAL_SEC", 60)) * time.Second,
		SyncLookbackDays:        getEnvInt("SYNC_LOOKBACK_DAYS", 7),
		SyncMaxResults:          getEnvInt("SYNC_MAX_RESULTS", 50),
		ProcessorBatchSize:      getEnvInt("PROCESSOR_BATCH_SIZE", 50),
		ProcessorIdle:           time.Duration(getEnvInt("PROCESSOR_IDLE_SEC", 30)) * time.Second,
		ProcessorErrorBackoff:   time.Duration(getEnvInt("PROCESSOR_ERROR_BACKOFF_SEC", 5)) * time.Second,
		StreamEnabled:           getEnvBool("STREAM_ENABLED", false),
		ConsumerPendingCheckSec: getEnvInt("CONSUMER_PENDING_CHECK_SEC", 30),
		ConsumerMaxRetries:      getEnvInt("CONSUMER_MAX_RETRIES", 3),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, apperr.ConfigError(fmt.Sprintf("invalid TRIAGE_TIMEZONE %q", cfg.Timezone))
	}
	cfg.Location = loc

	if cfg.GovernorInterval <= 0 {
		return nil, apperr.ConfigError("GOVERNOR_INTERVAL_MS must be positive")
	}
	return cfg, nil
}

// RequireStorage reports a config error when the database or Redis URL is missing.
func (c *Config) RequireStorage() error {
	if c.DatabaseURL == "" {
		return apperr.ConfigError("DATABASE_URL is required")
	}
	if c.RedisURL == "" {
		return apperr.ConfigError("REDIS_URL is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
