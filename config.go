package main

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"finance-manager/payoff"
)

type Config struct {
	Stage    string
	LogLevel string

	Bind        string
	Port        string
	TLSCertFile string
	TLSKeyFile  string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBMaxOpen  int

	RedisAddr     string
	RedisPassword string
	PlanCacheTTL  time.Duration

	ProjectionMonthCap int
	PlanMonthCap       int

	RateLimitMax    int
	RateLimitWindow time.Duration
}

// loadConfig reads .env when present; real environment variables take precedence.
func loadConfig() (Config, bool) {
	envFileLoaded := godotenv.Load() == nil
	return Config{
		Stage:    getEnv("STAGE", "dev"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		Bind:        getEnv("BIND", "127.0.0.1"),
		Port:        getEnv("PORT", "8100"),
		TLSCertFile: getEnv("TLS_CERT_FILE", ""),
		TLSKeyFile:  getEnv("TLS_KEY_FILE", ""),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "debtapp"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		DBMaxOpen:  getEnvInt("DB_MAX_OPEN", 0),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		PlanCacheTTL:  getEnvDuration("PLAN_CACHE_TTL", 10*time.Minute),

		ProjectionMonthCap: getEnvInt("PROJECTION_MONTH_CAP", payoff.DefaultProjectionMonths),
		PlanMonthCap:       getEnvInt("PLAN_MONTH_CAP", payoff.DefaultPlanMonths),

		RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 30),
		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
	}, envFileLoaded
}

func (c Config) Addr() string {
	return c.Bind + ":" + c.Port
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt falls back to def for missing, malformed or non-positive values.
func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}
