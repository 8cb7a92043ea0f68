package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration, read from the environment.
type Config struct {
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	JWTAudience        string
	JWTTTL             time.Duration
	ServerHost         string
	ServerPort         int
	CORSAllowedOrigins []string
	DBMaxConns         int32
	MFAIssuer          string
	SentryDSN          string
	SessionBackend     string
	Env                string
}

// Load reads configuration from environment variables. A .env file is
// honored when present; deployed environments rely on real env vars.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379/0"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		JWTIssuer:          getEnv("JWT_ISSUER", "palisade"),
		JWTAudience:        getEnv("JWT_AUDIENCE", "palisade"),
		JWTTTL:             time.Duration(getEnvAsInt("JWT_TTL_SECONDS", 1800)) * time.Second,
		ServerHost:         getEnv("SERVER_HOST", "0.0.0.0"),
		ServerPort:         getEnvAsInt("SERVER_PORT", 8080),
		CORSAllowedOrigins: splitAndTrim(os.Getenv("CORS_ALLOWED_ORIGINS")),
		DBMaxConns:         int32(getEnvAsInt("DB_MAX_CONNS", 25)),
		MFAIssuer:          getEnv("MFA_ISSUER", "Palisade"),
		SentryDSN:          os.Getenv("SENTRY_DSN"),
		SessionBackend:     getEnv("SESSION_BACKEND", "redis"),
		Env:                getEnv("APP_ENV", "development"),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.SessionBackend != "redis" && cfg.SessionBackend != "memory" {
		return Config{}, fmt.Errorf("SESSION_BACKEND must be redis or memory, got %q", cfg.SessionBackend)
	}

	return cfg, nil
}

// Addr is the host:port the HTTP server binds.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.ServerHost, c.ServerPort)
}

func getEnv(name, defaultVal string) string {
	if val := os.Getenv(name); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(name string, defaultVal int) int {
	valStr := os.Getenv(name)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
