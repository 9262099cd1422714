// Package server provides configuration helpers that define runtime defaults
// and environment overrides for the relay process and its ops HTTP surface.
package server

import (
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/Tyrowin/gorelay/internal/relay"
)

// RateLimitConfig defines the parameters for per-connection message rate
// limiting of WebSocket bridge peers.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the process configuration: the relay core settings plus the
// ops HTTP surface and logging.
type Config struct {
	RelayAddr      string
	QueueSize      int
	ReadBufferSize int

	// OpsAddr is the listen address of the health, metrics and WebSocket
	// bridge endpoints. Empty disables the ops server.
	OpsAddr        string
	AllowedOrigins []string
	MaxMessageSize int64
	RateLimit      RateLimitConfig

	LogLevel       string
	LogDevelopment bool
}

const defaultOpsAddr = "127.0.0.1:9090"

func defaultConfig() Config {
	return Config{
		RelayAddr:      relay.DefaultAddress,
		QueueSize:      relay.DefaultQueueSize,
		ReadBufferSize: relay.DefaultReadBufferSize,
		OpsAddr:        defaultOpsAddr,
		AllowedOrigins: []string{
			"http://localhost:9090",
			"http://127.0.0.1:9090",
		},
		MaxMessageSize: relay.DefaultReadBufferSize,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		LogLevel: "info",
	}
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are unset or invalid.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	if addr := os.Getenv("RELAY_ADDR"); addr != "" {
		cfg.RelayAddr = addr
	}

	if size := os.Getenv("RELAY_QUEUE_SIZE"); size != "" {
		cfg.QueueSize = parseIntValue(size, cfg.QueueSize)
	}

	if size := os.Getenv("RELAY_READ_BUFFER"); size != "" {
		cfg.ReadBufferSize = parseIntValue(size, cfg.ReadBufferSize)
	}

	// OPS_ADDR may be set to an empty value to disable the ops server.
	if addr, ok := os.LookupEnv("OPS_ADDR"); ok {
		cfg.OpsAddr = strings.TrimSpace(addr)
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.MaxMessageSize)
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}

	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseRefillInterval(interval, cfg.RateLimit.RefillInterval)
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = parseLogLevel(level, cfg.LogLevel)
	}

	if dev := os.Getenv("LOG_DEVELOPMENT"); dev != "" {
		if parsed, err := strconv.ParseBool(dev); err == nil {
			cfg.LogDevelopment = parsed
		}
	}

	return &cfg
}

// RelayConfig returns the relay core settings.
func (c *Config) RelayConfig() relay.Config {
	return relay.Config{
		Address:        c.RelayAddr,
		QueueSize:      c.QueueSize,
		ReadBufferSize: c.ReadBufferSize,
	}
}

func parseLogLevel(value, defaultValue string) string {
	if lvl, err := zapcore.ParseLevel(strings.TrimSpace(value)); err == nil {
		return lvl.String()
	}
	return defaultValue
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseRefillInterval(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	return defaultValue
}
