// Package config loads service configuration from the environment with
// sensible defaults for local development.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nshruti113/netsentry/internal/models"
)

// GetEnv returns the value of key from the environment, or defaultValue if
// unset or empty.
func GetEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return strings.TrimSpace(v)
	}
	return defaultValue
}

// GetEnvInt returns the integer for key, or defaultValue if unset/invalid.
func GetEnvInt(key string, defaultValue int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return v
}

// GetEnvBool returns the boolean for key, or defaultValue if unset/invalid.
func GetEnvBool(key string, defaultValue bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return defaultValue
	}
	return v
}

// GetEnvDuration returns the duration for key, or defaultValue if
// unset/invalid.
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultValue
	}
	return d
}

// Config holds the server configuration.
type Config struct {
	HTTPAddr string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	QueueCapacity     int
	DrainInterval     time.Duration
	DrainBatch        int
	WorkerRestarts    int
	WorkerRestartWait time.Duration

	WorkerURL     string
	WorkerTimeout time.Duration

	TickInterval time.Duration
	SnapshotTTL  time.Duration

	DenyListPath string

	BanMinutes      int
	FirewallEnabled bool
	DenyListEnabled bool
}

// Load reads the configuration from the environment.
func Load() Config {
	return Config{
		HTTPAddr: GetEnv("HTTP_ADDR", ":8888"),

		RedisAddr:     GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: GetEnv("REDIS_PASSWORD", ""),
		RedisDB:       GetEnvInt("REDIS_DB", 0),

		QueueCapacity:     GetEnvInt("NOTIFY_QUEUE_CAPACITY", 1000),
		DrainInterval:     GetEnvDuration("NOTIFY_DRAIN_INTERVAL", 100*time.Millisecond),
		DrainBatch:        GetEnvInt("NOTIFY_DRAIN_BATCH", 10),
		WorkerRestarts:    GetEnvInt("NOTIFY_WORKER_RESTARTS", 10),
		WorkerRestartWait: GetEnvDuration("NOTIFY_WORKER_RESTART_WAIT", time.Second),

		WorkerURL:     GetEnv("ANALYSIS_WORKER_URL", ""),
		WorkerTimeout: GetEnvDuration("ANALYSIS_WORKER_TIMEOUT", 5*time.Second),

		TickInterval: GetEnvDuration("REFRESH_TICK", 2*time.Second),
		SnapshotTTL:  GetEnvDuration("SNAPSHOT_TTL", 5*time.Second),

		DenyListPath: GetEnv("DENY_LIST_PATH", "/etc/nginx/conf.d/netsentry-deny.conf"),

		BanMinutes:      GetEnvInt("BAN_MINUTES", 30),
		FirewallEnabled: GetEnvBool("FIREWALL_ENABLED", false),
		DenyListEnabled: GetEnvBool("DENY_LIST_ENABLED", true),
	}
}

// DefaultPolicy builds the fallback enforcement policy from config.
func (c Config) DefaultPolicy() models.Policy {
	return models.Policy{
		WindowSeconds:   60,
		Threshold:       200,
		BanMinutes:      c.BanMinutes,
		FirewallEnabled: c.FirewallEnabled,
		DenyListEnabled: c.DenyListEnabled,
	}
}
