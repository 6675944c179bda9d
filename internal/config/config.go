package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hitoshi/jwtpizza/internal/factory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// JWT
	JWTSecret string
	TokenTTL  time.Duration

	// Factory
	FactoryURL          string
	FactoryAPIKey       string
	FactoryTimeout      time.Duration
	FactoryAllowPrivate bool

	// Rate Limit (req/min)
	RateLimitGeneral int
	RateLimitAuth    int

	// Menu cache
	RedisURL     string
	MenuCacheTTL time.Duration

	// Worker
	CleanupInterval time.Duration

	// Seed
	SeedFile string

	// Server
	ServerPort string
	AppVersion string

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel string

	// Telemetry
	OTelServiceName string
	OTelEndpoint    string
	OTelInsecure    bool
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合は、未設定の変数名をまとめたエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	cfg.FactoryAPIKey = os.Getenv("FACTORY_API_KEY")
	if cfg.FactoryAPIKey == "" {
		missing = append(missing, "FACTORY_API_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", 24*time.Hour)
	cfg.FactoryURL = getEnvString("FACTORY_URL", factory.DefaultURL)
	cfg.FactoryTimeout = getEnvDuration("FACTORY_TIMEOUT", 10*time.Second)
	cfg.FactoryAllowPrivate = getEnvBool("FACTORY_ALLOW_PRIVATE", false)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.MenuCacheTTL = getEnvDuration("MENU_CACHE_TTL", 5*time.Minute)
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", time.Hour)
	cfg.SeedFile = getEnvString("SEED_FILE", "")
	cfg.ServerPort = getEnvString("SERVER_PORT", "3000")
	cfg.AppVersion = getEnvString("APP_VERSION", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.OTelServiceName = getEnvString("OTEL_SERVICE_NAME", "jwt-pizza-service")
	cfg.OTelEndpoint = getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	cfg.OTelInsecure = getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", false)

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// getEnvInt は正の整数を読み込む。0以下や数値でない値はデフォルトにフォールバックする。
func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

// getEnvDuration は正の期間を読み込む。0以下や解析できない値はデフォルトにフォールバックする。
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}
