package relay

import "go.uber.org/zap"

// Broadcaster fans a message out to every registered peer except its sender.
type Broadcaster struct {
	registry *Registry
	logger   *zap.Logger
	metrics  *Metrics
}

// NewBroadcaster creates a Broadcaster over registry.
func NewBroadcaster(registry *Registry, logger *zap.Logger) *Broadcaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		registry: registry,
		logger:   logger,
		metrics:  registry.metrics,
	}
}

// Broadcast enqueues msg on the outbound channel of every peer other than
// sender. A recipient whose channel is full is skipped and logged; the call
// never blocks on a slow recipient. It returns how many peers the message
// was enqueued for and how many were skipped.
func (b *Broadcaster) Broadcast(sender Identity, msg string) (delivered, dropped int) {
	b.registry.each(func(p *Peer) {
		if p.id == sender {
			return
		}
		select {
		case p.send <- msg:
			delivered++
		default:
			dropped++
			b.logger.Warn("Failed to send message to client",
				zap.String("peer", string(p.id)),
				zap.String("sender", string(sender)),
				zap.String("reason", "outbound channel full"))
		}
	})

	b.metrics.Deliveries.Add(float64(delivered))
	b.metrics.DroppedDeliveries.Add(float64(dropped))
	return delivered, dropped
}
