package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrMissingJWTSecret = errors.New("JWT_SECRET environment variable is required")

// Config is built once at process start and handed to every component that
// needs it.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Cache     *CacheConfig
	Auth      AuthConfig
	RateLimit *RateLimitConfig
	Upstream  UpstreamConfig
	Logging   LoggingConfig
	Admin     AdminConfig
	Media     MediaConfig
}

type ServerConfig struct {
	Port           string
	AllowedOrigins []string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	// ShutdownTimeout bounds graceful shutdown after SIGINT/SIGTERM.
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	Driver          string
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type AuthConfig struct {
	JWTSecret       string
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type UpstreamConfig struct {
	APIKey string
	// CompatibleBaseURL serves chat and multimodal completions (OpenAI wire format).
	CompatibleBaseURL string
	// BaseURL serves the native async image-synthesis API.
	BaseURL           string
	Timeout           time.Duration
	ImageTimeout      time.Duration
	ImagePollInterval time.Duration
	ModelRegistryFile string
	ErrorMessageLimit int
}

type LoggingConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// MediaConfig points at an S3-compatible bucket for user uploads. Uploads
// are disabled while Bucket is empty.
type MediaConfig struct {
	Bucket         string
	Region         string
	Endpoint       string
	PublicBaseURL  string
	MaxUploadBytes int64
}

type AdminConfig struct {
	Username string
	Email    string
	Password string
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: Error loading .env file: %v", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8000"),
			AllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			ReadTimeout:     getEnvSeconds("SERVER_READ_TIMEOUT_SECONDS", 15),
			WriteTimeout:    getEnvSeconds("SERVER_WRITE_TIMEOUT_SECONDS", 90),
			ShutdownTimeout: getEnvSeconds("SERVER_SHUTDOWN_TIMEOUT_SECONDS", 20),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "postgres"),
			URL:             getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 25),
			ConnMaxLifetime: 5 * time.Minute,
		},
		Cache: NewCacheConfig(),
		Auth: AuthConfig{
			JWTSecret:       getEnv("JWT_SECRET", ""),
			Issuer:          getEnv("JWT_ISSUER", "bailian-gateway"),
			AccessTokenTTL:  getEnvSeconds("ACCESS_TOKEN_TTL_SECONDS", 3600),
			RefreshTokenTTL: getEnvSeconds("REFRESH_TOKEN_TTL_SECONDS", 7*24*3600),
		},
		RateLimit: NewRateLimitConfig(),
		Upstream: UpstreamConfig{
			APIKey:            getEnv("QWEN_API_KEY", getEnv("DASHSCOPE_API_KEY", "")),
			CompatibleBaseURL: getEnv("DASHSCOPE_COMPATIBLE_BASE_URL", "https://dashscope.aliyuncs.com/compatible-mode/v1"),
			BaseURL:           getEnv("DASHSCOPE_BASE_URL", "https://dashscope.aliyuncs.com/api/v1"),
			Timeout:           getEnvSeconds("AI_SERVICE_TIMEOUT", 30),
			ImageTimeout:      getEnvSeconds("AI_IMAGE_SERVICE_TIMEOUT", 60),
			ImagePollInterval: time.Duration(getEnvInt("AI_IMAGE_POLL_INTERVAL_MS", 2000)) * time.Millisecond,
			ModelRegistryFile: getEnv("MODEL_REGISTRY_FILE", ""),
			ErrorMessageLimit: getEnvInt("UPSTREAM_ERROR_MESSAGE_LIMIT", 500),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 100),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
		},
		Admin: AdminConfig{
			Username: getEnv("ADMIN_USERNAME", "admin"),
			Email:    getEnv("ADMIN_EMAIL", "admin@example.com"),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
		Media: MediaConfig{
			Bucket:         getEnv("MEDIA_S3_BUCKET", ""),
			Region:         getEnv("MEDIA_S3_REGION", "cn-hangzhou"),
			Endpoint:       getEnv("MEDIA_S3_ENDPOINT", ""),
			PublicBaseURL:  getEnv("MEDIA_PUBLIC_BASE_URL", ""),
			MaxUploadBytes: int64(getEnvInt("MEDIA_MAX_UPLOAD_MB", 10)) << 20,
		},
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, ErrMissingJWTSecret
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		log.Printf("Warning: invalid %s=%q, using default %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvSeconds(key string, defaultSeconds int) time.Duration {
	return time.Duration(getEnvInt(key, defaultSeconds)) * time.Second
}

func getEnvList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
