package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// BrokerMode selects the broker adapter at construction time.
type BrokerMode string

const (
	BrokerMemory BrokerMode = "memory"
	BrokerStream BrokerMode = "stream"
)

// Config holds all runtime configuration loaded from environment variables.
// Every field has a sensible default; only DATABASE_URL is required.
type Config struct {
	// Server
	HTTPPort        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// Database
	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// Broker
	BrokerMode    BrokerMode
	RedisAddr     string
	RedisStream   string
	RedisGroup    string
	RedisConsumer string
	ClaimMinIdle  time.Duration
	ClaimInterval time.Duration

	// Chat transport
	ChatBaseURL string
	ChatTimeout time.Duration

	// Notification worker
	PollInterval time.Duration
	BatchSize    int
	Workers      int
	MaxAttempts  int
	RetryBase    time.Duration
	RetryMax     time.Duration

	// Rate limiting: messages per second across all kinds
	SendRate int

	// Circuit breaker cool-down window bounds
	BreakerWindowLow  time.Duration
	BreakerWindowHigh time.Duration

	// Quiet hours (local time of day) and the grace period a shifted
	// reminder lands before the window opens
	QuietStartHour int
	QuietEndHour   int
	QuietGrace     time.Duration
}

func Load() (*Config, error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		ReadTimeout:     getDuration("READ_TIMEOUT", 5*time.Second),
		WriteTimeout:    getDuration("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		DatabaseURL: dbURL,
		DBMaxConns:  int32(getInt("DB_MAX_CONNS", 25)),
		DBMinConns:  int32(getInt("DB_MIN_CONNS", 5)),

		BrokerMode:    BrokerMode(getEnv("BROKER_MODE", string(BrokerMemory))),
		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisStream:   getEnv("REDIS_STREAM", "notify:outbox"),
		RedisGroup:    getEnv("REDIS_GROUP", "notify-workers"),
		RedisConsumer: getEnv("REDIS_CONSUMER", "worker-1"),
		ClaimMinIdle:  getDuration("CLAIM_MIN_IDLE", 5*time.Minute),
		ClaimInterval: getDuration("CLAIM_INTERVAL", time.Minute),

		ChatBaseURL: getEnv("CHAT_BASE_URL", "http://localhost:9090/send"),
		ChatTimeout: getDuration("CHAT_TIMEOUT", 10*time.Second),

		PollInterval: getDuration("POLL_INTERVAL", 5*time.Second),
		BatchSize:    getInt("BATCH_SIZE", 50),
		Workers:      getInt("WORKERS", 2),
		MaxAttempts:  getInt("MAX_ATTEMPTS", 4),
		RetryBase:    getDuration("RETRY_BASE", 30*time.Second),
		RetryMax:     getDuration("RETRY_MAX", 30*time.Minute),

		SendRate: getInt("SEND_RATE", 25),

		BreakerWindowLow:  getDuration("BREAKER_WINDOW_LOW", 30*time.Second),
		BreakerWindowHigh: getDuration("BREAKER_WINDOW_HIGH", 60*time.Second),

		QuietStartHour: getInt("QUIET_START_HOUR", 22),
		QuietEndHour:   getInt("QUIET_END_HOUR", 8),
		QuietGrace:     getDuration("QUIET_GRACE", 15*time.Minute),
	}

	if cfg.BrokerMode != BrokerMemory && cfg.BrokerMode != BrokerStream {
		return nil, fmt.Errorf("BROKER_MODE must be %q or %q", BrokerMemory, BrokerStream)
	}
	if cfg.BreakerWindowHigh < cfg.BreakerWindowLow {
		return nil, fmt.Errorf("BREAKER_WINDOW_HIGH must be >= BREAKER_WINDOW_LOW")
	}
	// A zero grace would land shifted reminders on the window-start minute,
	// which is still inside the quiet window.
	if cfg.QuietStartHour != cfg.QuietEndHour && cfg.QuietGrace <= 0 {
		return nil, fmt.Errorf("QUIET_GRACE must be positive while quiet hours are enabled")
	}

	return cfg, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
