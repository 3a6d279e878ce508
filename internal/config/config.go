package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort   string
	DBDriver     string
	DatabaseDSN  string
	RedisAddr    string
	RedisDB      int
	RedisPass    string
	UploadSecret string
	SwaggerHost  string
	Environment  string
	BlobDir      string
	LogLevel     string
}

// Load builds Config from environment with sensible defaults. A .env file in the
// working directory is applied first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		ServerPort:   getEnv("SERVER_PORT", "8080"),
		DBDriver:     getEnv("DB_DRIVER", "mysql"),
		DatabaseDSN:  getEnv("DATABASE_DSN", "user:password@tcp(localhost:3306)/todolist?charset=utf8mb4&parseTime=True&loc=UTC"),
		RedisAddr:    getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:      getEnvInt("REDIS_DB", 0),
		RedisPass:    os.Getenv("REDIS_PASSWORD"),
		UploadSecret: getEnv("UPLOAD_SECRET", "change-me"),
		SwaggerHost:  os.Getenv("SWAGGER_HOST"),
		Environment:  getEnv("APP_ENV", "development"),
		BlobDir:      getEnv("BLOB_DIR", "data/blobs"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}
}

// Production reports whether cookies must be marked Secure.
func (c *Config) Production() bool {
	return c.Environment == "production"
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}
