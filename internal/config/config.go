package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port               string
	BaseURL            string
	GoogleClientID     string
	GoogleClientSecret string
	SessionSecret      string
	DatabaseURL        string
	RedisURL           string
	AIProvider         string
	AIModel            string
	AIKey              string
	AITimeout          time.Duration
	GmailTimeout       time.Duration
	MaxFetchEmails     int64
	TaskTimeout        time.Duration
	TaskConcurrency    int64
	SyncInterval       time.Duration
	Unsubscribe        UnsubscribeConfig
	ChromePath         string
	PushToken          string
	DefaultCategories  string
	Env                string
	LogLevel           string
}

// UnsubscribeConfig bounds a single unsubscribe agent run.
type UnsubscribeConfig struct {
	MaxIterations int
	NavTimeout    time.Duration
	SettleDelay   time.Duration
	Timeout       time.Duration
}

func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:               GetEnv("PORT", "8080"),
		BaseURL:            GetEnv("BASE_URL", "http://localhost:8080"),
		GoogleClientID:     GetEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: GetEnv("GOOGLE_CLIENT_SECRET", ""),
		SessionSecret:      GetEnv("SESSION_SECRET", ""),
		DatabaseURL:        GetEnv("DATABASE_URL", ""),
		RedisURL:           GetEnv("REDIS_URL", ""),
		AIProvider:         GetEnv("AI_PROVIDER", "openai"),
		AIModel:            GetEnv("AI_MODEL", ""),
		AIKey:              GetEnv("AI_API_KEY", ""),
		AITimeout:          GetEnvDuration("AI_TIMEOUT", 60*time.Second),
		GmailTimeout:       GetEnvDuration("GMAIL_TIMEOUT", 30*time.Second),
		MaxFetchEmails:     int64(GetEnvInt("MAX_FETCH_EMAILS", 50)),
		TaskTimeout:        GetEnvDuration("TASK_TIMEOUT", 5*time.Minute),
		TaskConcurrency:    int64(GetEnvInt("TASK_CONCURRENCY", 8)),
		SyncInterval:       GetEnvDuration("EMAIL_SYNC_INTERVAL", 0),
		Unsubscribe: UnsubscribeConfig{
			MaxIterations: GetEnvInt("UNSUBSCRIBE_MAX_ITERATIONS", 8),
			NavTimeout:    GetEnvDuration("UNSUBSCRIBE_NAV_TIMEOUT", 30*time.Second),
			SettleDelay:   GetEnvDuration("UNSUBSCRIBE_SETTLE_DELAY", 3*time.Second),
			Timeout:       GetEnvDuration("UNSUBSCRIBE_TIMEOUT", 3*time.Minute),
		},
		ChromePath:        GetEnv("CHROME_PATH", ""),
		PushToken:         GetEnv("PUBSUB_VERIFICATION_TOKEN", ""),
		DefaultCategories: GetEnv("DEFAULT_CATEGORIES_FILE", ""),
		Env:               GetEnv("ENV", "development"),
		LogLevel:          GetEnv("LOG_LEVEL", "info"),
	}, nil
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvInt falls back to defaultValue when the variable is unset or not a positive integer.
func GetEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(GetEnv(key, ""))
	if err != nil || value <= 0 {
		return defaultValue
	}
	return value
}

// GetEnvDuration accepts Go duration strings ("45s") or a plain number of seconds.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := GetEnv(key, "")
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil && d >= 0 {
		return d
	}
	if seconds, err := strconv.Atoi(raw); err == nil && seconds >= 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) Validate() error {
	if c.GoogleClientID == "" {
		return fmt.Errorf("GOOGLE_CLIENT_ID is required")
	}
	if c.GoogleClientSecret == "" {
		return fmt.Errorf("GOOGLE_CLIENT_SECRET is required")
	}
	if c.SessionSecret == "" {
		return fmt.Errorf("SESSION_SECRET is required")
	}
	if c.AIKey == "" {
		return fmt.Errorf("AI_API_KEY is required")
	}
	if c.Unsubscribe.MaxIterations <= 0 {
		return fmt.Errorf("UNSUBSCRIBE_MAX_ITERATIONS must be positive")
	}
	return nil
}
