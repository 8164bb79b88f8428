package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Gemini AI
	GeminiAPIKey          string
	GeminiModel           string
	GeminiTemperature     float64
	GeminiTopP            float64
	GeminiMaxOutputTokens int
	GeminiSafetyThreshold string
	GeminiConcurrentReqs  int

	// Chat relay
	ChatMaxAttempts     int
	ChatRetryBackoff    time.Duration
	ChatDefaultSession  string
	ChatMaxMessageChars int
	ChatRateLimit       int

	// Session store
	SessionStore string
	SessionTTL   time.Duration

	// Redis (optional)
	RedisURL string

	// Turn ledger (optional)
	DatabaseURL     string
	MigrationsDir   string
	RecorderWorkers int

	// Auth (optional)
	JWTSecret string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                  getEnvOrDefault("PORT", "5001"),
		Env:                   getEnvOrDefault("ENV", "development"),
		GeminiAPIKey:          mustGetEnv("GEMINI_API_KEY"),
		GeminiModel:           getEnvOrDefault("GEMINI_MODEL", "gemini-2.0-flash-exp"),
		GeminiTemperature:     getEnvAsFloatOrDefault("GEMINI_TEMPERATURE", 0.7),
		GeminiTopP:            getEnvAsFloatOrDefault("GEMINI_TOP_P", 0.95),
		GeminiMaxOutputTokens: getEnvAsIntOrDefault("GEMINI_MAX_OUTPUT_TOKENS", 500),
		GeminiSafetyThreshold: getEnvOrDefault("GEMINI_SAFETY_THRESHOLD", ""),
		GeminiConcurrentReqs:  getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		ChatMaxAttempts:       getEnvAsIntOrDefault("CHAT_MAX_ATTEMPTS", 3),
		ChatRetryBackoff:      getEnvAsDurationOrDefault("CHAT_RETRY_BACKOFF", time.Second),
		ChatDefaultSession:    getEnvOrDefault("CHAT_DEFAULT_SESSION_ID", "default"),
		ChatMaxMessageChars:   getEnvAsIntOrDefault("CHAT_MAX_MESSAGE_CHARS", 4000),
		ChatRateLimit:         getEnvAsIntOrDefault("CHAT_RATE_LIMIT", 30),
		SessionStore:          getEnvOrDefault("SESSION_STORE", "memory"),
		SessionTTL:            getEnvAsDurationOrDefault("SESSION_TTL", 0),
		RedisURL:              getEnvOrDefault("REDIS_URL", ""),
		DatabaseURL:           getEnvOrDefault("DATABASE_URL", ""),
		MigrationsDir:         getEnvOrDefault("MIGRATIONS_DIR", "migrations"),
		RecorderWorkers:       getEnvAsIntOrDefault("RECORDER_WORKERS", 2),
		JWTSecret:             getEnvOrDefault("JWT_SECRET", ""),
		FrontendURL:           getEnvOrDefault("FRONTEND_URL", "http://localhost:3000"),
	}

	return cfg
}

// Validate reports combinations of settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.SessionStore {
	case "memory":
	case "redis":
		if c.RedisURL == "" {
			return fmt.Errorf("SESSION_STORE=redis requires REDIS_URL")
		}
	default:
		return fmt.Errorf("unknown SESSION_STORE %q (want memory or redis)", c.SessionStore)
	}

	if c.ChatMaxAttempts < 1 {
		return fmt.Errorf("CHAT_MAX_ATTEMPTS must be at least 1, got %d", c.ChatMaxAttempts)
	}
	if c.GeminiConcurrentReqs < 1 {
		return fmt.Errorf("GEMINI_CONCURRENT_REQUESTS must be at least 1, got %d", c.GeminiConcurrentReqs)
	}

	return nil
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvAsFloatOrDefault(key string, defaultVal float64) float64 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvAsDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}
	return d
}
