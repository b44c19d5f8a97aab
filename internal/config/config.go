package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Session   SessionConfig
	Monitor   MonitorConfig
	Storage   StorageConfig
	Pipeline  PipelineConfig
	Auth      AuthConfig
	Corrector CorrectorConfig
	Alert     AlertConfig
	Log       LogConfig
}

// ServerConfig holds control API settings
type ServerConfig struct {
	Port           string
	Env            string
	AllowedOrigins []string
	RateLimit      float64 // Requests per second per operator
	RateBurst      int
}

// DatabaseConfig holds the persisted store settings
type DatabaseConfig struct {
	Driver   string // "postgres" or "memory"
	URL      string
	MaxConns int32
	MinConns int32
}

// SessionConfig holds platform session settings
type SessionConfig struct {
	Dir                 string
	DeviceName          string
	RecoveryConcurrency int
	PairTimeout         time.Duration
	FloodWaitMaxRetries int
	FloodWaitMaxDelay   time.Duration
	EventBuffer         int
}

// MonitorConfig holds profile protection settings
type MonitorConfig struct {
	PollInterval time.Duration
	PhotoDir     string
}

// StorageConfig holds retry settings for contended writes
type StorageConfig struct {
	RetryAttempts int
	RetryInitial  time.Duration
}

// PipelineConfig holds outgoing message interception settings
type PipelineConfig struct {
	OOCPrefix     string
	OriginTTL     time.Duration
	OriginSize    int
	ReplyInterval time.Duration // Minimum gap between command replies per chat
}

// AuthConfig holds operator token settings
type AuthConfig struct {
	JWTSecret string
}

// CorrectorConfig holds the text correction backend settings
type CorrectorConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// AlertConfig holds operator alert settings
type AlertConfig struct {
	TelegramToken  string
	TelegramChatID int64
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string // "json" or "console"
}

// Load loads the application configuration from environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if it exists
	_ = godotenv.Load()

	dbURL := getEnv("DATABASE_URL", "")
	driver := "memory"
	if dbURL != "" {
		driver = "postgres"
	}

	return &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			Env:            getEnv("APP_ENV", "development"),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			RateLimit:      getEnvAsFloat("API_RATE_LIMIT", 5),
			RateBurst:      getEnvAsInt("API_RATE_BURST", 10),
		},
		Database: DatabaseConfig{
			Driver:   getEnv("STORE_DRIVER", driver),
			URL:      dbURL,
			MaxConns: int32(getEnvAsInt("DB_MAX_CONNS", 10)),
			MinConns: int32(getEnvAsInt("DB_MIN_CONNS", 2)),
		},
		Session: SessionConfig{
			Dir:                 getEnv("SESSION_DIR", "./sessions"),
			DeviceName:          getEnv("DEVICE_NAME", "Chrome (Linux)"),
			RecoveryConcurrency: getEnvAsInt("RECOVERY_CONCURRENCY", 4),
			PairTimeout:         getEnvAsDuration("PAIR_TIMEOUT", 2*time.Minute),
			FloodWaitMaxRetries: getEnvAsInt("FLOOD_WAIT_MAX_RETRIES", 1),
			FloodWaitMaxDelay:   getEnvAsDuration("FLOOD_WAIT_MAX_DELAY", 5*time.Minute),
			EventBuffer:         getEnvAsInt("SESSION_EVENT_BUFFER", 256),
		},
		Monitor: MonitorConfig{
			PollInterval: getEnvAsDuration("PROFILE_POLL_INTERVAL", 30*time.Second),
			PhotoDir:     getEnv("PROFILE_PHOTO_DIR", "./profile_photos"),
		},
		Storage: StorageConfig{
			RetryAttempts: getEnvAsInt("STORAGE_RETRY_ATTEMPTS", 3),
			RetryInitial:  getEnvAsDuration("STORAGE_RETRY_INITIAL", 100*time.Millisecond),
		},
		Pipeline: PipelineConfig{
			OOCPrefix:     getEnv("OOC_PREFIX", "ooc:"),
			OriginTTL:     getEnvAsDuration("ORIGIN_TTL", 10*time.Minute),
			OriginSize:    getEnvAsInt("ORIGIN_SIZE", 4096),
			ReplyInterval: getEnvAsDuration("COMMAND_REPLY_INTERVAL", 2*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
		},
		Corrector: CorrectorConfig{
			APIKey:  getEnv("GEMINI_API_KEY", ""),
			Model:   getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
			Timeout: getEnvAsDuration("CORRECTOR_TIMEOUT", 15*time.Second),
		},
		Alert: AlertConfig{
			TelegramToken:  getEnv("TELEGRAM_ALERT_TOKEN", ""),
			TelegramChatID: int64(getEnvAsInt("TELEGRAM_ALERT_CHAT_ID", 0)),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}, nil
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions to get environment variables with defaults
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
