// Package config loads deployment configuration from environment
// variables, with defaults matching a single-writer, single-tenant-host
// deployment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every recognized configuration key and its resolved
// value.
type Config struct {
	Port int

	JWTSecret    string
	JWTExpiresIn time.Duration

	DeviceHMACSecret string

	DatabaseURL string

	LogLevel  string
	LogFormat string

	AlertEvalIntervalMinutes      int
	NoTelemetryThresholdMinutes   int
	OverTempThresholdC            float64
	SensorOutOfRangeRepeatCount   int

	RollupCron  string
	WeatherCron string

	WeatherBaseURL  string
	GeocodeBaseURL  string
	SimBaseURL      string

	SMTPHost string
	SMTPPort int
	SMTPFrom string

	SMSGatewayURL string

	RequestTimeout     time.Duration
	MaxRequestBodyMB   int64
	RateLimitPerMinute int
	RateLimitBurst     int

	CORSAllowedOrigins []string
}

// Load reads an optional .env file (ignored if absent) and then
// populates Config from the environment, falling back to documented
// defaults for every key.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Printf("warning: could not load .env: %v\n", err)
	}

	cfg := &Config{
		Port:             getInt("PORT", 3000),
		JWTSecret:        getString("JWT_SECRET", "insecure-development-secret"),
		DeviceHMACSecret: getString("DEVICE_HMAC_SECRET", "insecure-development-device-secret"),
		DatabaseURL:      getString("DATABASE_URL", "postgres://localhost:5432/solarfleet?sslmode=disable"),
		LogLevel:         getString("LOG_LEVEL", "info"),
		LogFormat:        getString("LOG_FORMAT", "json"),

		AlertEvalIntervalMinutes:    getInt("ALERT_EVAL_INTERVAL_MINUTES", 5),
		NoTelemetryThresholdMinutes: getInt("NO_TELEMETRY_THRESHOLD_MINUTES", 30),
		OverTempThresholdC:          getFloat("OVER_TEMP_THRESHOLD_C", 85),
		SensorOutOfRangeRepeatCount: getInt("SENSOR_OUT_OF_RANGE_REPEAT_COUNT", 3),

		RollupCron:  getString("ROLLUP_CRON", "0 2 * * *"),
		WeatherCron: getString("WEATHER_CRON", "0 6 * * *"),

		WeatherBaseURL: getString("WEATHER_BASE_URL", ""),
		GeocodeBaseURL: getString("GEOCODE_BASE_URL", ""),
		SimBaseURL:     getString("SIM_BASE_URL", ""),

		SMTPHost: getString("SMTP_HOST", ""),
		SMTPPort: getInt("SMTP_PORT", 587),
		SMTPFrom: getString("SMTP_FROM", "alerts@solarfleet.local"),

		SMSGatewayURL: getString("SMS_GATEWAY_URL", ""),

		RequestTimeout:     getDuration("REQUEST_TIMEOUT", 30*time.Second),
		MaxRequestBodyMB:   int64(getInt("MAX_REQUEST_BODY_MB", 8)),
		RateLimitPerMinute: getInt("RATE_LIMIT_PER_MINUTE", 600),
		RateLimitBurst:     getInt("RATE_LIMIT_BURST", 100),

		CORSAllowedOrigins: strings.Split(getString("CORS_ALLOWED_ORIGINS", "*"), ","),
	}

	expiresIn := getString("JWT_EXPIRES_IN", "24h")
	dur, err := time.ParseDuration(expiresIn)
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_EXPIRES_IN: %w", err)
	}
	cfg.JWTExpiresIn = dur

	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid PORT: %d", cfg.Port)
	}

	return cfg, nil
}

func getString(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}
