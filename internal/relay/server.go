package relay

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Server accepts connections and runs one worker per peer. It holds no
// global state: the Registry and Broadcaster are owned by the Server and
// shared with every worker it starts.
type Server struct {
	cfg         Config
	logger      *zap.Logger
	metrics     *Metrics
	registry    *Registry
	broadcaster *Broadcaster

	mu       sync.Mutex
	listener net.Listener
	closed   bool
	wg       sync.WaitGroup
}

// NewServer creates a Server. A nil logger discards logs and nil metrics
// keeps counts in unregistered collectors.
func NewServer(cfg Config, logger *zap.Logger, metrics *Metrics) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	registry := NewRegistry(metrics)
	return &Server{
		cfg:         sanitizeConfig(cfg),
		logger:      logger,
		metrics:     metrics,
		registry:    registry,
		broadcaster: NewBroadcaster(registry, logger),
	}
}

// Config returns the sanitized configuration the server runs with.
func (s *Server) Config() Config {
	return s.cfg
}

// Metrics returns the collectors the server updates.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Registry returns the connection registry shared by all workers.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Broadcaster returns the broadcaster used by all workers.
func (s *Server) Broadcaster() *Broadcaster {
	return s.broadcaster
}

// ListenAndServe binds the configured address and serves on it.
func (s *Server) ListenAndServe() error {
	ln, err := Bind(s.cfg.Address)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until the server is closed. Accept errors
// are logged and retried with backoff; they never stop the loop. Serve
// always returns a non-nil error, ErrServerClosed after Close.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrServerClosed
	}
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("Server running", zap.String("address", ln.Addr().String()))

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosed() {
				return ErrServerClosed
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			delay = nextBackoff(delay)
			s.logger.Error("Failed to accept connection",
				zap.Error(err), zap.Duration("retry_in", delay))
			time.Sleep(delay)
			continue
		}
		delay = 0
		s.attach(conn)
	}
}

func nextBackoff(delay time.Duration) time.Duration {
	if delay == 0 {
		return minAcceptBackoff
	}
	delay *= 2
	if delay > maxAcceptBackoff {
		delay = maxAcceptBackoff
	}
	return delay
}

// attach registers conn and starts its worker.
func (s *Server) attach(conn net.Conn) {
	peer := NewPeer(IdentityOf(conn.RemoteAddr()), s.cfg.QueueSize, conn)
	logger := s.logger.With(
		zap.String("peer", string(peer.id)),
		zap.String("session", peer.session))

	w := &worker{
		conn:        conn,
		peer:        peer,
		registry:    s.registry,
		broadcaster: s.broadcaster,
		metrics:     s.metrics,
		logger:      logger,
		bufSize:     s.cfg.ReadBufferSize,
	}

	if err := s.Attach(peer, w.run); err != nil {
		logger.Warn("Rejecting connection", zap.Error(err))
		_ = conn.Close()
		return
	}
	logger.Info("Client registered", zap.Int("clients", s.registry.Len()))
}

// Attach registers p and runs fn in a goroutine that Shutdown waits for.
// fn must remove p from the registry before returning. Attach fails with
// ErrServerClosed once the server is closed, or with ErrDuplicateIdentity.
func (s *Server) Attach(p *Peer, fn func()) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrServerClosed
	}
	s.wg.Add(1)
	s.mu.Unlock()

	if err := s.registry.Insert(p); err != nil {
		s.wg.Done()
		return err
	}

	go func() {
		defer s.wg.Done()
		fn()
	}()

	// Close may have snapshotted the registry before p was inserted.
	if s.isClosed() && p.closer != nil {
		_ = p.closer.Close()
	}
	return nil
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops accepting and closes every registered connection. Workers
// deregister their peers as their reads fail.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	ln := s.listener
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}
	n := s.registry.closeAll()
	s.logger.Info("Closed client connections", zap.Int("count", n))
	return err
}

// Shutdown closes the server and waits for every attached peer's goroutine
// to finish or for ctx to end, whichever comes first.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Close()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Relay shutdown completed")
		return err
	case <-ctx.Done():
		s.logger.Warn("Relay shutdown timeout reached, some workers may still be running")
		return ctx.Err()
	}
}
