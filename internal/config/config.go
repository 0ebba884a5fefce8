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
	GeminiAPIKey         string
	GeminiModel          string
	GeminiTemperature    float32
	GeminiConcurrentReqs int

	// Conversation
	AssistantName  string
	RevealInterval time.Duration

	// Chat client
	ServerURL string

	// Logging
	LogLevel  string
	LogFormat string

	// Frontend
	FrontendURL string

	// Relay rate limit per client, 0 disables it
	RateLimitPerMinute int
}

// Load reads the configuration shared by every command. The Gemini key is
// only required by the server, see RequireGeminiKey.
func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		GeminiAPIKey:         getEnvOrDefault("GOOGLE_API_KEY", os.Getenv("GEMINI_API_KEY")),
		GeminiModel:          getEnvOrDefault("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiTemperature:    getEnvAsFloatOrDefault("GEMINI_TEMPERATURE", 0.7),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		AssistantName:        getEnvOrDefault("ASSISTANT_NAME", "Doctor Wang"),
		RevealInterval:       time.Duration(getEnvAsIntOrDefault("REVEAL_INTERVAL_MS", 20)) * time.Millisecond,
		ServerURL:            getEnvOrDefault("SERVER_URL", "http://localhost:8080"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "auto"),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", "*"),
		RateLimitPerMinute:   getEnvAsIntOrDefault("RATE_LIMIT_PER_MINUTE", 0),
	}

	if cfg.GeminiConcurrentReqs < 1 {
		cfg.GeminiConcurrentReqs = 1
	}
	if cfg.RevealInterval <= 0 {
		cfg.RevealInterval = 20 * time.Millisecond
	}

	return cfg
}

// RequireGeminiKey panics when neither GOOGLE_API_KEY nor GEMINI_API_KEY is set.
func (c *Config) RequireGeminiKey() {
	if c.GeminiAPIKey == "" {
		c.GeminiAPIKey = mustGetEnv("GOOGLE_API_KEY")
	}
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

func getEnvAsFloatOrDefault(key string, defaultVal float32) float32 {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(val, 32)
	if err != nil {
		return defaultVal
	}
	return float32(f)
}
