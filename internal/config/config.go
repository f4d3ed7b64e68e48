package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverSQLite   = "sqlite"
)

type Config struct {
	AppEnv           string
	AppName          string
	APIPrefix        string
	AppPort          string
	CORSAllowOrigins []string
	LogLevel         string
	LogFormat        string

	StoreDriver    string
	DatabaseURL    string
	DefaultSubject string
	CacheBackend   string
	RedisURL       string
	CacheTTL       time.Duration
	SessionStore   string
	SQLitePath     string

	RemoteAIURL    string
	RemoteAIKey    string
	RemoteAIModel  string
	AITimeout      time.Duration
	AIMaxRetries   int
	AIRetryBase    time.Duration
	LocalModelURL  string
	LocalModelName string
	PreferLocal    bool

	NetworkProbeURL      string
	NetworkProbeSchedule string
	SessionSweepSchedule string
	SessionMaxIdle       time.Duration

	JWTSecret    string
	JWTAlgorithm string
	JWTAudience  string
	JWTIssuer    string
}

func Load() Config {
	_ = godotenv.Load(".env")

	appEnv := getEnv("APP_ENV", "local")
	logFormat := "json"
	if appEnv == "local" {
		logFormat = "console"
	}

	return Config{
		AppEnv:    appEnv,
		AppName:   getEnv("APP_NAME", "Health Query API"),
		APIPrefix: getEnv("API_PREFIX", "/api/v1"),
		AppPort:   getEnv("APP_PORT", "8000"),
		CORSAllowOrigins: getEnvCSV(
			"CORS_ALLOW_ORIGINS",
			[]string{"http://localhost:5173", "http://127.0.0.1:5173", "http://localhost:3000"},
		),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", logFormat),

		StoreDriver:    strings.ToLower(getEnv("STORE_DRIVER", DriverMemory)),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		DefaultSubject: getEnv("STORE_SUBJECT", "local"),
		CacheBackend:   strings.ToLower(getEnv("CACHE_BACKEND", DriverMemory)),
		RedisURL:       getEnv("REDIS_URL", ""),
		CacheTTL:       time.Duration(getEnvInt("CACHE_TTL_SECONDS", 300)) * time.Second,
		SessionStore:   strings.ToLower(getEnv("SESSION_STORE", DriverMemory)),
		SQLitePath:     getEnv("SQLITE_PATH", "data/sessions.db"),

		RemoteAIURL:    getEnv("REMOTE_AI_URL", ""),
		RemoteAIKey:    getEnv("REMOTE_AI_KEY", ""),
		RemoteAIModel:  getEnv("REMOTE_AI_MODEL", ""),
		AITimeout:      time.Duration(getEnvInt("AI_TIMEOUT_SECONDS", 20)) * time.Second,
		AIMaxRetries:   getEnvInt("AI_MAX_RETRIES", 3),
		AIRetryBase:    time.Duration(getEnvInt("AI_RETRY_BASE_MS", 500)) * time.Millisecond,
		LocalModelURL:  getEnv("LOCAL_MODEL_URL", ""),
		LocalModelName: getEnv("LOCAL_MODEL_NAME", "llama3.2"),
		PreferLocal:    getEnvBool("PREFER_LOCAL", false),

		NetworkProbeURL:      getEnv("NETWORK_PROBE_URL", ""),
		NetworkProbeSchedule: getEnv("NETWORK_PROBE_SCHEDULE", "@every 30s"),
		SessionSweepSchedule: getEnv("SESSION_SWEEP_SCHEDULE", "@every 10m"),
		SessionMaxIdle:       getEnvDuration("SESSION_MAX_IDLE", time.Hour),

		JWTSecret:    getEnv("JWT_SECRET", ""),
		JWTAlgorithm: getEnv("JWT_ALGORITHM", "HS256"),
		JWTAudience:  getEnv("JWT_AUDIENCE", ""),
		JWTIssuer:    getEnv("JWT_ISSUER", ""),
	}
}

// AuthEnabled reports whether bearer tokens are verified.
func (c Config) AuthEnabled() bool {
	return strings.TrimSpace(c.JWTSecret) != ""
}

func (c Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory, DriverPostgres:
	default:
		return errors.New("STORE_DRIVER must be memory or postgres")
	}
	switch c.CacheBackend {
	case DriverMemory, DriverRedis:
	default:
		return errors.New("CACHE_BACKEND must be memory or redis")
	}
	switch c.SessionStore {
	case DriverMemory, DriverPostgres, DriverSQLite:
	default:
		return errors.New("SESSION_STORE must be memory, postgres or sqlite")
	}
	if (c.StoreDriver == DriverPostgres || c.SessionStore == DriverPostgres) && strings.TrimSpace(c.DatabaseURL) == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.CacheBackend == DriverRedis && strings.TrimSpace(c.RedisURL) == "" {
		return errors.New("REDIS_URL is required")
	}
	if c.SessionStore == DriverSQLite && strings.TrimSpace(c.SQLitePath) == "" {
		return errors.New("SQLITE_PATH is required")
	}
	if c.AIMaxRetries < 1 {
		return errors.New("AI_MAX_RETRIES must be at least 1")
	}
	if c.CacheTTL <= 0 {
		return errors.New("CACHE_TTL_SECONDS must be positive")
	}
	if !c.AuthEnabled() {
		return nil
	}
	secret := strings.TrimSpace(c.JWTSecret)
	if secret == "change-me-in-production" {
		return errors.New("JWT_SECRET must not use insecure default value")
	}
	if len(secret) < 16 {
		return errors.New("JWT_SECRET is too short; use at least 16 characters")
	}
	if strings.TrimSpace(c.JWTAlgorithm) == "" {
		return errors.New("JWT_ALGORITHM is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvCSV(key string, fallback []string) []string {
	raw, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, item := range parts {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return fallback
	}
	return result
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}
