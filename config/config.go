package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppPort string
	AppMode string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	ChatAPIBaseURL string
	ChatBotToken   string

	S3Region     string
	S3Bucket     string
	S3AccessKey  string
	S3SecretKey  string
	S3Endpoint   string
	S3PublicBase string

	// Attachments at or under this size are re-uploaded to the inbox
	// channel as real files; larger ones are linked only.
	SmallAttachmentLimit int64

	LogBaseURL     string
	LogTokenSecret string
	LogTokenTTL    time.Duration

	SchedulerPollInterval time.Duration
}

func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		AppPort:    getEnv("APP_PORT", "8080"),
		AppMode:    getEnv("APP_MODE", "debug"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "modmail"),
		DBPort:     getEnv("DB_PORT", "5432"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		ChatAPIBaseURL: getEnv("CHAT_API_BASE_URL", ""),
		ChatBotToken:   getEnv("CHAT_BOT_TOKEN", ""),

		S3Region:     getEnv("S3_REGION", ""),
		S3Bucket:     getEnv("S3_BUCKET", ""),
		S3AccessKey:  getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:  getEnv("S3_SECRET_KEY", ""),
		S3Endpoint:   getEnv("S3_ENDPOINT", ""),
		S3PublicBase: getEnv("S3_PUBLIC_BASE", ""),

		SmallAttachmentLimit: getEnvAsInt64("SMALL_ATTACHMENT_LIMIT", 2*1024*1024),

		LogBaseURL:     getEnv("LOG_BASE_URL", "http://localhost:8080"),
		LogTokenSecret: getEnv("LOG_TOKEN_SECRET", "change-me"),
		LogTokenTTL:    time.Duration(getEnvAsInt("LOG_TOKEN_TTL_MIN", 60)) * time.Minute,

		SchedulerPollInterval: time.Duration(getEnvAsInt("SCHEDULER_POLL_SEC", 30)) * time.Second,
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseInt(valueStr, 10, 64); err == nil {
		return value
	}
	return fallback
}
