package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvDefaults(t *testing.T) {
	assert.Equal(t, "fallback", GetEnv("NETSENTRY_TEST_UNSET", "fallback"))
	assert.Equal(t, 7, GetEnvInt("NETSENTRY_TEST_UNSET", 7))
	assert.Equal(t, true, GetEnvBool("NETSENTRY_TEST_UNSET", true))
	assert.Equal(t, 3*time.Second, GetEnvDuration("NETSENTRY_TEST_UNSET", 3*time.Second))
}

func TestGetEnvOverrides(t *testing.T) {
	t.Setenv("NETSENTRY_TEST_STR", "value")
	t.Setenv("NETSENTRY_TEST_INT", "42")
	t.Setenv("NETSENTRY_TEST_BOOL", "false")
	t.Setenv("NETSENTRY_TEST_DUR", "250ms")

	assert.Equal(t, "value", GetEnv("NETSENTRY_TEST_STR", "fallback"))
	assert.Equal(t, 42, GetEnvInt("NETSENTRY_TEST_INT", 7))
	assert.Equal(t, false, GetEnvBool("NETSENTRY_TEST_BOOL", true))
	assert.Equal(t, 250*time.Millisecond, GetEnvDuration("NETSENTRY_TEST_DUR", time.Second))
}

func TestGetEnvInvalidFallsBack(t *testing.T) {
	t.Setenv("NETSENTRY_TEST_INT", "not-a-number")
	t.Setenv("NETSENTRY_TEST_BOOL", "maybe")
	t.Setenv("NETSENTRY_TEST_DUR", "soon")

	assert.Equal(t, 7, GetEnvInt("NETSENTRY_TEST_INT", 7))
	assert.Equal(t, true, GetEnvBool("NETSENTRY_TEST_BOOL", true))
	assert.Equal(t, time.Second, GetEnvDuration("NETSENTRY_TEST_DUR", time.Second))
}

func TestLoadDefaultPolicy(t *testing.T) {
	t.Setenv("BAN_MINUTES", "15")
	t.Setenv("FIREWALL_ENABLED", "true")

	cfg := Load()
	pol := cfg.DefaultPolicy()

	assert.Equal(t, 60, pol.WindowSeconds)
	assert.Equal(t, 15, pol.BanMinutes)
	assert.True(t, pol.FirewallEnabled)
	assert.True(t, pol.DenyListEnabled)
}
