package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Session cookie signing
	SessionSecret string

	// Generation endpoint
	AIBackend   string
	AIAPIKey    string
	AIBaseURL   string
	AIModel     string
	AIMaxTokens int

	// Storage
	StoragePath string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:          getEnvOrDefault("PORT", "8080"),
		Env:           getEnvOrDefault("ENV", "development"),
		DatabaseURL:   mustGetEnv("DATABASE_URL"),
		RedisURL:      mustGetEnv("REDIS_URL"),
		SessionSecret: mustGetEnv("SESSION_SECRET"),
		AIBackend:     getEnvOrDefault("AI_BACKEND", "openai"),
		AIAPIKey:      mustGetEnv("AI_API_KEY"),
		AIBaseURL:     getEnvOrDefault("AI_BASE_URL", ""),
		AIModel:       getEnvOrDefault("AI_MODEL", ""),
		AIMaxTokens:   getEnvAsIntOrDefault("AI_MAX_TOKENS", 4000),
		StoragePath:   getEnvOrDefault("STORAGE_PATH", "./uploads"),
		FrontendURL:   getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
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
