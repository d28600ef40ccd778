package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App        AppConfig
	Postgres   PostgresConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Classifier ClassifierConfig
	CRM        CRMConfig
	RateLimit  RateLimitConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// ClassifierConfig points at the external categorize/prioritize service.
type ClassifierConfig struct {
	BaseURL              string
	TimeoutSeconds       int
	HealthTimeoutSeconds int
}

// CRMConfig holds the remote form endpoint and its OAuth client identity.
type CRMConfig struct {
	FormURL        string
	AuthURL        string
	ClientID       string
	ClientSecret   string
	RefreshToken   string
	AccessToken    string
	AuthScheme     string
	TimeoutSeconds int
	TokenCacheKey  string
}

// RateLimitConfig bounds ticket submissions per client address.
type RateLimitConfig struct {
	PerMinute int
	Burst     int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "ticket-intake-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "3001"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 45),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Classifier: ClassifierConfig{
			BaseURL:              getEnv("AI_BASE_URL", "http://localhost:3002"),
			TimeoutSeconds:       getEnvAsInt("AI_TIMEOUT_SECONDS", 30),
			HealthTimeoutSeconds: getEnvAsInt("AI_HEALTH_TIMEOUT_SECONDS", 5),
		},
		CRM: CRMConfig{
			FormURL:        os.Getenv("CRM_FORM_URL"),
			AuthURL:        getEnv("CRM_AUTH_URL", "https://accounts.zoho.in/oauth/v2/token"),
			ClientID:       os.Getenv("CRM_CLIENT_ID"),
			ClientSecret:   os.Getenv("CRM_CLIENT_SECRET"),
			RefreshToken:   os.Getenv("CRM_REFRESH_TOKEN"),
			AccessToken:    os.Getenv("CRM_ACCESS_TOKEN"),
			AuthScheme:     getEnv("CRM_AUTH_SCHEME", "Zoho-oauthtoken"),
			TimeoutSeconds: getEnvAsInt("CRM_TIMEOUT_SECONDS", 15),
			TokenCacheKey:  getEnv("CRM_TOKEN_CACHE_KEY", "ticket-intake:crm:access_token"),
		},
		RateLimit: RateLimitConfig{
			PerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 30),
			Burst:     getEnvAsInt("RATE_LIMIT_BURST", 10),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	return seconds(a.RequestTimeoutSeconds)
}

// Timeout bounds a single analyze call.
func (c ClassifierConfig) Timeout() time.Duration {
	return seconds(c.TimeoutSeconds)
}

// HealthTimeout bounds a classifier liveness check.
func (c ClassifierConfig) HealthTimeout() time.Duration {
	return seconds(c.HealthTimeoutSeconds)
}

// Timeout bounds one physical request to the CRM.
func (c CRMConfig) Timeout() time.Duration {
	return seconds(c.TimeoutSeconds)
}

// Configured reports whether forwarding to the CRM is enabled.
func (c CRMConfig) Configured() bool {
	return c.FormURL != ""
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
