package config

import (
	"log"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Analysis AnalysisConfig
	Chat     ChatConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins string
	RedisURL           string
}

type AnalysisConfig struct {
	BaseURL        string
	TimeoutSeconds int
}

type ChatConfig struct {
	EventsTopic       string
	SessionTTLMinutes int
	ConfidenceFloor   float64
	MaxReasks         int
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "app.log.csv"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Analysis: AnalysisConfig{
			BaseURL:        getEnv("ANALYSIS_BASE_URL", "http://localhost:8000/api"),
			TimeoutSeconds: getEnvAsInt("ANALYSIS_TIMEOUT_SECONDS", 120),
		},
		Chat: ChatConfig{
			EventsTopic:       getEnv("CONVERSATION_EVENTS_TOPIC_NAME", "conversation_events"),
			SessionTTLMinutes: getEnvAsInt("SESSION_TTL_MINUTES", 60),
			ConfidenceFloor:   getEnvAsFloat("CONFIDENCE_FLOOR", 0.8),
			MaxReasks:         getEnvAsInt("MAX_REASKS", 2),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}
