// Package config は環境変数からアプリケーション設定を読み込む。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// MinJWTSecretBytes はトークン署名鍵に要求する最小バイト数。
const MinJWTSecretBytes = 32

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL      string
	DBTimeout        time.Duration
	DBConnectRetries int

	// Token
	JWTSecret string
	TokenTTL  time.Duration

	// Password hashing
	BcryptCost      int
	HashConcurrency int

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral int
	RateLimitAuth    int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあれば先に読み込むが、既に設定済みの環境変数は上書きしない。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if len(cfg.JWTSecret) < MinJWTSecretBytes {
		return nil, fmt.Errorf("JWT_SECRET must be at least %d bytes", MinJWTSecretBytes)
	}

	// Optional fields with defaults
	cfg.DBTimeout = getEnvDuration("DB_TIMEOUT", 5*time.Second)
	cfg.DBConnectRetries = getEnvInt("DB_CONNECT_RETRIES", 5)
	cfg.TokenTTL = getEnvDuration("TOKEN_TTL", 24*time.Hour)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 12)
	cfg.HashConcurrency = getEnvInt("HASH_CONCURRENCY", runtime.GOMAXPROCS(0))
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitAuth = getEnvInt("RATE_LIMIT_AUTH", 10)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("TOKEN_TTL must be positive, got %v", cfg.TokenTTL)
	}

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
