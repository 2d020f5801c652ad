package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// DevelopmentBackendURL is used when no backend URL is configured outside production.
	DevelopmentBackendURL = "http://localhost:8000"
	// ProductionBackendURL is the fallback backend when ENV=production and BACKEND_URL is unset.
	ProductionBackendURL = "https://ruh-wellness-platform-production.up.railway.app"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	// Backend (external practice API)
	BackendURL            string
	BackendTimeout        time.Duration
	BackendRetryAttempts  int
	BackendRetryBaseDelay time.Duration

	// System status polling
	StatusPollInterval time.Duration
	StatusCheckTimeout time.Duration

	// Derived views
	DefaultPageSize int
	DisplayTimezone string

	// Optional Redis snapshot cache
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// HTTP surface
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present; real env vars win.
func Load() *Config {
	_ = godotenv.Load()

	env := getEnv("ENV", "development")
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      env,
		LogLevel: getEnv("LOG_LEVEL", "info"),

		BackendURL:            backendURL(env, os.Getenv("BACKEND_URL")),
		BackendTimeout:        getEnvAsDuration("BACKEND_TIMEOUT", 30*time.Second),
		BackendRetryAttempts:  getEnvAsInt("BACKEND_RETRY_ATTEMPTS", 3),
		BackendRetryBaseDelay: getEnvAsDuration("BACKEND_RETRY_BASE_DELAY", time.Second),

		StatusPollInterval: getEnvAsDuration("STATUS_POLL_INTERVAL", 30*time.Second),
		StatusCheckTimeout: getEnvAsDuration("STATUS_CHECK_TIMEOUT", 5*time.Second),

		DefaultPageSize: getEnvAsInt("DEFAULT_PAGE_SIZE", 5),
		DisplayTimezone: getEnv("DISPLAY_TIMEZONE", "Local"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 20),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 40),
	}
}

// IsProduction reports whether the service runs with production defaults.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Location resolves DisplayTimezone, falling back to the process local zone.
func (c *Config) Location() *time.Location {
	name := strings.TrimSpace(c.DisplayTimezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.Local
	}
	return loc
}

func backendURL(env, explicit string) string {
	explicit = strings.TrimSpace(explicit)
	if strings.EqualFold(env, "production") {
		if explicit != "" {
			return explicit
		}
		return ProductionBackendURL
	}
	if explicit != "" {
		return explicit
	}
	return DevelopmentBackendURL
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
