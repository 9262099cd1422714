package server

import (
	"testing"
	"time"

	"github.com/Tyrowin/gorelay/internal/logging"
	"github.com/Tyrowin/gorelay/internal/relay"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	if cfg.RelayAddr != relay.DefaultAddress {
		t.Errorf("RelayAddr = %q, want %q", cfg.RelayAddr, relay.DefaultAddress)
	}
	if cfg.QueueSize != relay.DefaultQueueSize {
		t.Errorf("QueueSize = %d, want %d", cfg.QueueSize, relay.DefaultQueueSize)
	}
	if cfg.OpsAddr != defaultOpsAddr {
		t.Errorf("OpsAddr = %q, want %q", cfg.OpsAddr, defaultOpsAddr)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("RELAY_ADDR", "127.0.0.1:7000")
	t.Setenv("RELAY_QUEUE_SIZE", "32")
	t.Setenv("RELAY_READ_BUFFER", "4096")
	t.Setenv("OPS_ADDR", ":9100")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, http://b.example")
	t.Setenv("MAX_MESSAGE_SIZE", "2048")
	t.Setenv("RATE_LIMIT_BURST", "10")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "3")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_DEVELOPMENT", "true")

	cfg := NewConfigFromEnv()

	if cfg.RelayAddr != "127.0.0.1:7000" {
		t.Errorf("RelayAddr = %q", cfg.RelayAddr)
	}
	if cfg.QueueSize != 32 {
		t.Errorf("QueueSize = %d", cfg.QueueSize)
	}
	if cfg.ReadBufferSize != 4096 {
		t.Errorf("ReadBufferSize = %d", cfg.ReadBufferSize)
	}
	if cfg.OpsAddr != ":9100" {
		t.Errorf("OpsAddr = %q", cfg.OpsAddr)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.MaxMessageSize != 2048 {
		t.Errorf("MaxMessageSize = %d", cfg.MaxMessageSize)
	}
	if cfg.RateLimit.Burst != 10 || cfg.RateLimit.RefillInterval != 3*time.Second {
		t.Errorf("RateLimit = %+v", cfg.RateLimit)
	}
	if cfg.LogLevel != "debug" || !cfg.LogDevelopment {
		t.Errorf("logging = %q/%v", cfg.LogLevel, cfg.LogDevelopment)
	}

	rc := cfg.RelayConfig()
	if rc.Address != "127.0.0.1:7000" || rc.QueueSize != 32 || rc.ReadBufferSize != 4096 {
		t.Errorf("RelayConfig() = %+v", rc)
	}
}

func TestNewConfigFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("RELAY_QUEUE_SIZE", "-1")
	t.Setenv("RELAY_READ_BUFFER", "lots")
	t.Setenv("MAX_MESSAGE_SIZE", "0")
	t.Setenv("RATE_LIMIT_BURST", "abc")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "soon")
	t.Setenv("LOG_DEVELOPMENT", "maybe")
	t.Setenv("LOG_LEVEL", "verbose")

	cfg := NewConfigFromEnv()
	defaults := NewConfig()

	if cfg.QueueSize != defaults.QueueSize {
		t.Errorf("QueueSize = %d, want default", cfg.QueueSize)
	}
	if cfg.ReadBufferSize != defaults.ReadBufferSize {
		t.Errorf("ReadBufferSize = %d, want default", cfg.ReadBufferSize)
	}
	if cfg.MaxMessageSize != defaults.MaxMessageSize {
		t.Errorf("MaxMessageSize = %d, want default", cfg.MaxMessageSize)
	}
	if cfg.RateLimit != defaults.RateLimit {
		t.Errorf("RateLimit = %+v, want default", cfg.RateLimit)
	}
	if cfg.LogDevelopment {
		t.Error("LogDevelopment enabled by invalid value")
	}
	if cfg.LogLevel != defaults.LogLevel {
		t.Errorf("LogLevel = %q, want default %q", cfg.LogLevel, defaults.LogLevel)
	}
	if _, err := logging.New(cfg.LogLevel, cfg.LogDevelopment); err != nil {
		t.Errorf("Logger rejected level from config: %v", err)
	}
}

func TestNewConfigFromEnvEmptyOpsAddrDisables(t *testing.T) {
	t.Setenv("OPS_ADDR", "")

	if cfg := NewConfigFromEnv(); cfg.OpsAddr != "" {
		t.Errorf("OpsAddr = %q, want empty", cfg.OpsAddr)
	}
}

func TestParseRefillIntervalAcceptsDurations(t *testing.T) {
	if got := parseRefillInterval("250ms", time.Second); got != 250*time.Millisecond {
		t.Errorf("parseRefillInterval(250ms) = %v", got)
	}
}
