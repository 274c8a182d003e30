package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config carries everything the server needs, sourced from the environment.
// DatabaseURL empty means the in-memory store; RedisAddr empty means the
// summary cache is disabled.
type Config struct {
	Port          string
	AllowedOrigin string

	DatabaseURL string

	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	SummaryTTLSeconds int

	AuthSecret            string
	AccessTokenTTLMinutes int
	ManagerPIN            string
}

func Load() Config {
	return Config{
		Port:          getEnv("PORT", "8080"),
		AllowedOrigin: getEnv("ALLOWED_ORIGIN", "*"),

		DatabaseURL: os.Getenv("DATABASE_URL"),

		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		RedisDB:           getEnvInt("REDIS_DB", 0),
		SummaryTTLSeconds: getEnvInt("SUMMARY_TTL_SECONDS", 60),

		AuthSecret:            os.Getenv("AUTH_SECRET"),
		AccessTokenTTLMinutes: getEnvInt("ACCESS_TOKEN_TTL_MINUTES", 720),
		ManagerPIN:            os.Getenv("MANAGER_PIN"),
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
