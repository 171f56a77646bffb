package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds everything the service and CLI need, loaded from the environment.
type Config struct {
	// Core
	Port         string
	DatabasePath string
	LogLevel     string

	// Receipt extraction (Gemini)
	GeminiModel           string
	GeminiAPIVersion      string
	GeminiTimeout         time.Duration
	GeminiMaxOutputTokens int

	// Gmail document source
	GmailCredentialsFile string
	GmailTokenFile       string
	GmailSenders         []string

	// Bucket document source
	GCSBucket string
	GCSPrefix string

	// Report sinks
	BigQueryProject  string
	BigQueryDataset  string
	NotionToken      string
	NotionDatabaseID string

	// HTTP
	MaxUploadSizeBytes int64
	RateLimitRPS       float64
	RateLimitBurst     int

	// Background jobs
	JobWorkers     int
	JobMaxRetries  int
	PollInterval   time.Duration
	ReportCacheTTL time.Duration
}

// Load reads a .env file when present and builds the Config from environment
// variables, falling back to defaults for anything unset.
func Load(log zerolog.Logger) *Config {
	if err := godotenv.Load(); err != nil {
		if os.IsNotExist(err) {
			log.Debug().Msg("No .env file found, relying on environment variables")
		} else {
			log.Warn().Err(err).Msg("Error loading .env file, relying on environment variables")
		}
	}

	l := loader{log: log}
	cfg := &Config{
		Port:         l.getEnv("PORT", "8080"),
		DatabasePath: l.getEnv("DATABASE_PATH", "./ledger.db"),
		LogLevel:     l.getEnv("LOG_LEVEL", "info"),

		GeminiModel:           l.getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiAPIVersion:      l.getEnv("GEMINI_API_VERSION", "v1beta"),
		GeminiTimeout:         l.getEnvAsDuration("GEMINI_TIMEOUT", 60*time.Second),
		GeminiMaxOutputTokens: l.getEnvAsInt("GEMINI_MAX_OUTPUT_TOKENS", 2048),

		GmailCredentialsFile: l.getEnv("GMAIL_CREDENTIALS_FILE", "credentials.json"),
		GmailTokenFile:       l.getEnv("GMAIL_TOKEN_FILE", "token.json"),
		GmailSenders:         l.getEnvAsList("GMAIL_SENDERS"),

		GCSBucket: l.getEnv("GCS_BUCKET", ""),
		GCSPrefix: l.getEnv("GCS_PREFIX", "receipts/"),

		BigQueryProject:  l.getEnv("BIGQUERY_PROJECT", ""),
		BigQueryDataset:  l.getEnv("BIGQUERY_DATASET", "ledger"),
		NotionToken:      l.getEnv("NOTION_TOKEN", ""),
		NotionDatabaseID: l.getEnv("NOTION_DATABASE_ID", ""),

		MaxUploadSizeBytes: int64(l.getEnvAsInt("MAX_UPLOAD_SIZE_BYTES", 10<<20)),
		RateLimitRPS:       l.getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     l.getEnvAsInt("RATE_LIMIT_BURST", 30),

		JobWorkers:     l.getEnvAsInt("JOB_WORKERS", 1),
		JobMaxRetries:  l.getEnvAsInt("JOB_MAX_RETRIES", 3),
		PollInterval:   l.getEnvAsDuration("POLL_INTERVAL", 15*time.Minute),
		ReportCacheTTL: l.getEnvAsDuration("REPORT_CACHE_TTL", time.Hour),
	}

	log.Info().
		Str("port", cfg.Port).
		Str("database_path", cfg.DatabasePath).
		Str("gemini_model", cfg.GeminiModel).
		Int("gmail_senders", len(cfg.GmailSenders)).
		Msg("Configuration loaded")

	return cfg
}

type loader struct {
	log zerolog.Logger
}

// getEnv retrieves an environment variable or returns a fallback value.
func (l loader) getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func (l loader) getEnvAsInt(key string, fallback int) int {
	valueStr := l.getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	l.log.Warn().Str("key", key).Str("value", valueStr).Int("default", fallback).Msg("Invalid integer value, using default")
	return fallback
}

func (l loader) getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := l.getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	l.log.Warn().Str("key", key).Str("value", valueStr).Float64("default", fallback).Msg("Invalid number value, using default")
	return fallback
}

func (l loader) getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := l.getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	l.log.Warn().Str("key", key).Str("value", valueStr).Dur("default", fallback).Msg("Invalid duration value, using default")
	return fallback
}

// getEnvAsList splits a comma-separated variable, dropping empty entries.
func (l loader) getEnvAsList(key string) []string {
	raw := l.getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
