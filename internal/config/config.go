package config

import (
	"fmt"
	"time"

	"github.com/hook-system/hook/internal/configs/env"
)

// Config holds all configuration for the application
type Config struct {
	// MongoDB
	MongoURI    string
	MongoDBName string

	// Redis
	RedisHost               string
	RedisPassword           string
	StreamKey               string
	ConsumerGroup           string
	StreamRetentionDuration time.Duration
	StatusTTL               time.Duration

	// JWT
	JWTSecret string

	// Rate Limiting
	RateLimitRPS float64

	// Results
	ResultsDir string

	// Winnowing
	KGramSize          int
	GuaranteeThreshold int

	// Scheduler
	IdleDelay             time.Duration
	InitialSecondsPerFile float64

	// Notifications
	SMTPHost     string
	SMTPPort     int
	SMTPFrom     string
	SMTPPassword string

	// Logging
	LogLevel  string
	LogPretty bool

	// Server
	ServerPort  string
	MetricsPort string
}

func Load() (*Config, error) {
	cfg := &Config{}

	// MongoDB
	cfg.MongoURI = env.GetEnv("MONGO_URI", "")
	cfg.MongoDBName = env.GetEnv("MONGO_DB_NAME", "hook")

	// Redis
	cfg.RedisHost = env.GetEnv("REDIS_HOST", "localhost:6379")
	cfg.RedisPassword = env.GetEnv("REDIS_PASSWORD", "")
	cfg.StreamKey = env.GetEnv("HOOK_STREAM_KEY", "hook:submissions")
	cfg.ConsumerGroup = env.GetEnv("HOOK_CONSUMER_GROUP", "hook:processor")
	retentionHours := env.GetEnvInt("STREAM_RETENTION_DURATION", 24)
	cfg.StreamRetentionDuration = time.Duration(retentionHours) * time.Hour
	statusHours := env.GetEnvInt("STATUS_TTL_HOURS", 12)
	cfg.StatusTTL = time.Duration(statusHours) * time.Hour

	// JWT
	cfg.JWTSecret = env.GetEnv("JWT_SECRET", "")

	// Rate Limiting
	cfg.RateLimitRPS = env.GetEnvFloat("RATE_LIMIT_RPS", 10.0)

	// Results
	cfg.ResultsDir = env.GetEnv("RESULTS_DIR", "./Results")

	// Winnowing
	cfg.KGramSize = env.GetEnvInt("KGRAM_SIZE", 5)
	cfg.GuaranteeThreshold = env.GetEnvInt("GUARANTEE_THRESHOLD", 9)

	// Scheduler
	cfg.IdleDelay = env.GetEnvSeconds("IDLE_DELAY_SECONDS", 5*time.Second)
	cfg.InitialSecondsPerFile = env.GetEnvFloat("INITIAL_SECONDS_PER_FILE", 0.001)

	// Notifications
	cfg.SMTPHost = env.GetEnv("SMTP_HOST", "")
	cfg.SMTPPort = env.GetEnvInt("SMTP_PORT", 465)
	cfg.SMTPFrom = env.GetEnv("SMTP_FROM", "")
	cfg.SMTPPassword = env.GetEnv("SMTP_PASSWORD", "")

	// Logging
	cfg.LogLevel = env.GetEnv("LOG_LEVEL", "info")
	cfg.LogPretty = env.GetEnvBool("LOG_PRETTY", false)

	// Server
	cfg.ServerPort = env.GetEnv("SERVER_PORT", "8080")
	cfg.MetricsPort = env.GetEnv("METRICS_PORT", "2112")

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.MongoURI == "" {
		return fmt.Errorf("MONGO_URI is required")
	}
	if c.MongoDBName == "" {
		return fmt.Errorf("MONGO_DB_NAME is required")
	}
	if c.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.ResultsDir == "" {
		return fmt.Errorf("RESULTS_DIR is required")
	}
	if c.KGramSize <= 0 {
		return fmt.Errorf("KGRAM_SIZE must be greater than 0")
	}
	if c.GuaranteeThreshold < c.KGramSize {
		return fmt.Errorf("GUARANTEE_THRESHOLD must be at least KGRAM_SIZE")
	}
	if c.IdleDelay <= 0 {
		return fmt.Errorf("IDLE_DELAY_SECONDS must be greater than 0")
	}
	if c.InitialSecondsPerFile < 0 {
		return fmt.Errorf("INITIAL_SECONDS_PER_FILE must not be negative")
	}
	if c.StreamRetentionDuration <= 0 {
		return fmt.Errorf("STREAM_RETENTION_DURATION must be greater than 0")
	}
	if c.SMTPHost != "" && c.SMTPFrom == "" {
		return fmt.Errorf("SMTP_FROM is required when SMTP_HOST is set")
	}
	return nil
}

// SMTPEnabled reports whether e-mail delivery credentials were supplied.
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != ""
}
