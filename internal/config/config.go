package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ストレージバックエンド
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Storage
	StorageBackend    string
	DatabaseURL       string
	DBMaxOpenConns    int
	DBConnMaxLifetime time.Duration

	// Session
	SessionSecret          string
	SessionMaxAge          int // 秒
	SessionCleanupInterval time.Duration

	// Password
	BcryptCost int

	// Rate Limit
	LoginRateLimit   int
	LoginRateWindow  time.Duration
	RateLimitGeneral int // req/min/user
	TrustProxy       bool

	// Logging
	LogLevel string

	// Server
	ServerPort     string
	BaseURL        string
	MaxConnections int

	// Cookie
	CookieSecure bool
	CookieDomain string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.StorageBackend = strings.ToLower(getEnvString("STORAGE_BACKEND", StoragePostgres))
	if cfg.StorageBackend != StoragePostgres && cfg.StorageBackend != StorageMemory {
		return nil, fmt.Errorf("invalid STORAGE_BACKEND %q: must be %q or %q", cfg.StorageBackend, StoragePostgres, StorageMemory)
	}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" && cfg.StorageBackend == StoragePostgres {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 25)
	cfg.DBConnMaxLifetime = getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 3600)
	cfg.SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", 15*time.Minute)
	cfg.BcryptCost = getEnvInt("BCRYPT_COST", 10)
	cfg.LoginRateLimit = getEnvInt("LOGIN_RATE_LIMIT", 5)
	cfg.LoginRateWindow = getEnvDuration("LOGIN_RATE_WINDOW", time.Minute)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.TrustProxy = getEnvBool("TRUST_PROXY", false)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.ServerPort = getEnvString("SERVER_PORT", "3000")
	cfg.BaseURL = getEnvString("BASE_URL", "http://localhost:3000")
	cfg.MaxConnections = getEnvInt("MAX_CONNECTIONS", 256)
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate は数値設定の範囲を検証する。
// SESSION_CLEANUP_INTERVALは0以下でクリーンアップ無効を意味するため対象外。
func (c *Config) validate() error {
	var invalid []string

	positiveInts := []struct {
		key string
		val int
	}{
		{"SESSION_MAX_AGE", c.SessionMaxAge},
		{"LOGIN_RATE_LIMIT", c.LoginRateLimit},
		{"RATE_LIMIT_GENERAL", c.RateLimitGeneral},
		{"MAX_CONNECTIONS", c.MaxConnections},
		{"DB_MAX_OPEN_CONNS", c.DBMaxOpenConns},
	}
	for _, p := range positiveInts {
		if p.val <= 0 {
			invalid = append(invalid, fmt.Sprintf("%s=%d", p.key, p.val))
		}
	}

	positiveDurations := []struct {
		key string
		val time.Duration
	}{
		{"LOGIN_RATE_WINDOW", c.LoginRateWindow},
		{"DB_CONN_MAX_LIFETIME", c.DBConnMaxLifetime},
	}
	for _, p := range positiveDurations {
		if p.val <= 0 {
			invalid = append(invalid, fmt.Sprintf("%s=%s", p.key, p.val))
		}
	}

	// bcrypt.MinCost..bcrypt.MaxCost
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		invalid = append(invalid, fmt.Sprintf("BCRYPT_COST=%d", c.BcryptCost))
	}

	if len(invalid) > 0 {
		return fmt.Errorf("environment variables must be positive or in range: %v", invalid)
	}
	return nil
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
