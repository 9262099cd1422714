package relay

const (
	// DefaultAddress is the fixed loopback address the relay listens on.
	DefaultAddress = "127.0.0.1:8080"
	// DefaultQueueSize is the capacity of every peer's outbound channel.
	DefaultQueueSize = 10
	// DefaultReadBufferSize is the size of the per-connection inbound buffer.
	DefaultReadBufferSize = 1024
)

// Config holds the relay core settings.
type Config struct {
	Address        string
	QueueSize      int
	ReadBufferSize int
}

// NewConfig creates a Config populated with default values for all settings.
func NewConfig() Config {
	return Config{
		Address:        DefaultAddress,
		QueueSize:      DefaultQueueSize,
		ReadBufferSize: DefaultReadBufferSize,
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = DefaultReadBufferSize
	}
	return cfg
}
