package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"finance-manager/payoff"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"BIND", "PORT", "DB_HOST", "DB_MAX_OPEN", "REDIS_ADDR", "PLAN_CACHE_TTL",
		"PROJECTION_MONTH_CAP", "PLAN_MONTH_CAP", "RATE_LIMIT_MAX", "RATE_LIMIT_WINDOW", "STAGE"} {
		t.Setenv(k, "")
	}

	cfg, _ := loadConfig()
	assert.Equal(t, "127.0.0.1:8100", cfg.Addr())
	assert.Equal(t, "localhost", cfg.DBHost)
	assert.Equal(t, 0, cfg.DBMaxOpen)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, 10*time.Minute, cfg.PlanCacheTTL)
	assert.Equal(t, payoff.DefaultProjectionMonths, cfg.ProjectionMonthCap)
	assert.Equal(t, payoff.DefaultPlanMonths, cfg.PlanMonthCap)
	assert.Equal(t, 30, cfg.RateLimitMax)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
	assert.Equal(t, "dev", cfg.Stage)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("BIND", "0.0.0.0")
	t.Setenv("PORT", "9000")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("PLAN_CACHE_TTL", "90s")
	t.Setenv("PLAN_MONTH_CAP", "120")
	t.Setenv("RATE_LIMIT_MAX", "not-a-number")
	t.Setenv("RATE_LIMIT_WINDOW", "-5m")

	cfg, _ := loadConfig()
	assert.Equal(t, "0.0.0.0:9000", cfg.Addr())
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 90*time.Second, cfg.PlanCacheTTL)
	assert.Equal(t, 120, cfg.PlanMonthCap)
	assert.Equal(t, 30, cfg.RateLimitMax)
	assert.Equal(t, time.Minute, cfg.RateLimitWindow)
}

func TestNewLogger(t *testing.T) {
	for _, stage := range []string{"dev", "prod"} {
		log, err := newLogger(stage, "bogus")
		assert.NoError(t, err)
		assert.NotNil(t, log)
	}
}
