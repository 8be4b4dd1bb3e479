package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Backend   BackendConfig
	Session   SessionConfig
	Token     TokenConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Audit     AuditConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Log       LogConfig
}

// BackendConfig points the gateway at the university REST API.
type BackendConfig struct {
	BaseURL string
	Timeout time.Duration
}

// SessionConfig controls the httpOnly session cookie and server-side session lifetime.
type SessionConfig struct {
	CookieName   string
	CookieDomain string
	TTL          time.Duration
	Secure       bool
}

// TokenConfig tunes bearer token refresh behaviour.
type TokenConfig struct {
	RefreshThreshold time.Duration
	MaxRetries       int
	BaseDelay        time.Duration
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// AuditConfig toggles the asynchronous audit trail.
type AuditConfig struct {
	Enabled bool
	Workers int
	Retries int
}

// CacheConfig governs response caching for catalog and dashboard payloads.
type CacheConfig struct {
	Enabled      bool
	CatalogTTL   time.Duration
	DashboardTTL time.Duration
}

// RateLimitConfig bounds enrollment writes per session.
type RateLimitConfig struct {
	EnrollPerMinute int
	Burst           int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Backend = BackendConfig{
		BaseURL: strings.TrimRight(v.GetString("BACKEND_BASE_URL"), "/"),
		Timeout: parseDuration(v.GetString("BACKEND_TIMEOUT"), 10*time.Second),
	}

	cfg.Session = SessionConfig{
		CookieName:   v.GetString("SESSION_COOKIE_NAME"),
		CookieDomain: v.GetString("SESSION_COOKIE_DOMAIN"),
		TTL:          parseDuration(v.GetString("SESSION_TTL"), 7*24*time.Hour),
		Secure:       cfg.Env == EnvProduction,
	}

	cfg.Token = TokenConfig{
		RefreshThreshold: parseDuration(v.GetString("TOKEN_REFRESH_THRESHOLD"), 5*time.Minute),
		MaxRetries:       v.GetInt("TOKEN_REFRESH_MAX_RETRIES"),
		BaseDelay:        parseDuration(v.GetString("TOKEN_REFRESH_BASE_DELAY"), time.Second),
	}

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Audit = AuditConfig{
		Enabled: v.GetBool("ENABLE_AUDIT"),
		Workers: v.GetInt("AUDIT_WORKERS"),
		Retries: v.GetInt("AUDIT_RETRIES"),
	}

	cfg.Cache = CacheConfig{
		Enabled:      v.GetBool("ENABLE_CACHE"),
		CatalogTTL:   parseDuration(v.GetString("CATALOG_CACHE_TTL"), 5*time.Minute),
		DashboardTTL: parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), time.Minute),
	}

	cfg.RateLimit = RateLimitConfig{
		EnrollPerMinute: v.GetInt("ENROLL_RATE_PER_MINUTE"),
		Burst:           v.GetInt("ENROLL_RATE_BURST"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("BACKEND_BASE_URL", "http://localhost:3001")
	v.SetDefault("BACKEND_TIMEOUT", "10s")

	v.SetDefault("SESSION_COOKIE_NAME", "uni_session")
	v.SetDefault("SESSION_COOKIE_DOMAIN", "")
	v.SetDefault("SESSION_TTL", "168h")

	v.SetDefault("TOKEN_REFRESH_THRESHOLD", "300s")
	v.SetDefault("TOKEN_REFRESH_MAX_RETRIES", 3)
	v.SetDefault("TOKEN_REFRESH_BASE_DELAY", "1s")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "uni_portal")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ENABLE_AUDIT", false)
	v.SetDefault("AUDIT_WORKERS", 2)
	v.SetDefault("AUDIT_RETRIES", 3)

	v.SetDefault("ENABLE_CACHE", true)
	v.SetDefault("CATALOG_CACHE_TTL", "5m")
	v.SetDefault("DASHBOARD_CACHE_TTL", "1m")

	v.SetDefault("ENROLL_RATE_PER_MINUTE", 30)
	v.SetDefault("ENROLL_RATE_BURST", 5)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
