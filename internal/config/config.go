package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	LogLevel      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Reference data cache
	CatalogCacheTTL     time.Duration
	CatalogRedisEnabled bool

	// Live change feed
	FeedDriver   string
	FeedChannel  string
	FeedDebounce time.Duration

	// Normalization
	DefaultLanguage    string
	ClinicTimezone     string
	NoiseFilterEnabled bool

	// Admin API
	AdminJWTSecret     string
	WriteRateLimit     float64
	WriteRateBurst     int
	CORSAllowedOrigins []string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		CatalogCacheTTL:     getEnvAsDuration("CATALOG_CACHE_TTL", 5*time.Minute),
		CatalogRedisEnabled: getEnvAsBool("CATALOG_REDIS_ENABLED", false),

		FeedDriver:   strings.ToLower(strings.TrimSpace(getEnv("FEED_DRIVER", "postgres"))),
		FeedChannel:  getEnv("FEED_CHANNEL", "booking_changes"),
		FeedDebounce: getEnvAsDuration("FEED_DEBOUNCE", 250*time.Millisecond),

		DefaultLanguage:    strings.ToUpper(strings.TrimSpace(getEnv("DEFAULT_LANGUAGE", "EN"))),
		ClinicTimezone:     getEnv("CLINIC_TIMEZONE", "Europe/Riga"),
		NoiseFilterEnabled: getEnvAsBool("NOISE_FILTER_ENABLED", true),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		WriteRateLimit:     getEnvAsFloat("WRITE_RATE_LIMIT", 5),
		WriteRateBurst:     getEnvAsInt("WRITE_RATE_BURST", 10),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
	}
}

// Location resolves ClinicTimezone, falling back to UTC for unknown zones.
func (c *Config) Location() *time.Location {
	loc, err := c.LoadLocation()
	if err != nil {
		return time.UTC
	}
	return loc
}

// LoadLocation resolves ClinicTimezone. An empty zone is UTC; an unknown one
// is an error.
func (c *Config) LoadLocation() (*time.Location, error) {
	if c == nil || strings.TrimSpace(c.ClinicTimezone) == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(strings.TrimSpace(c.ClinicTimezone))
	if err != nil {
		return nil, fmt.Errorf("config: CLINIC_TIMEZONE %q: %w", c.ClinicTimezone, err)
	}
	return loc, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
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
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil && value > 0 {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil && value > 0 {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
