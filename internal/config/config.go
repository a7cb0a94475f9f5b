package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port                string
	DatabaseURL         string
	DBPath              string
	GraphAPIBaseURL     string
	DefaultLanguageCode string
	PublicBaseURL       string
	MediaDir            string
	HTTPTimeout         time.Duration
	LogLevel            string
}

func LoadConfig() *Config {
	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Error loading .env file")
	}

	return &Config{
		Port:                getEnv("PORT", "8080"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DBPath:              getEnv("DB_PATH", "./whatsapp.db"),
		GraphAPIBaseURL:     getEnv("GRAPH_API_URL", "https://graph.facebook.com/v22.0"),
		DefaultLanguageCode: getEnv("DEFAULT_LANGUAGE_CODE", "en"),
		PublicBaseURL:       getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		MediaDir:            getEnv("MEDIA_DIR", "./media"),
		HTTPTimeout:         time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,
		LogLevel:            getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
