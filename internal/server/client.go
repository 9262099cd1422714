// Package server bridges WebSocket clients into the relay, handling read/write
// pumps, rate limiting, and lifecycle control for each connection.
package server

import (
	"errors"
	"io"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Tyrowin/gorelay/internal/relay"
)

const (
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
	writeWait    = 10 * time.Second
)

// Client is a WebSocket peer of the relay. It is registered in the same
// registry as TCP peers, so it receives their broadcasts and its messages
// reach them.
type Client struct {
	conn           *websocket.Conn
	peer           *relay.Peer
	relay          *relay.Server
	logger         *zap.Logger
	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig
}

// BridgeIdentity returns the registry identity of a WebSocket peer at addr.
// The prefix keeps bridge peers apart from TCP peers.
func BridgeIdentity(addr string) relay.Identity {
	return relay.Identity("ws:" + addr)
}

// NewClient creates a Client for conn. The client is not registered until
// Start is called.
func NewClient(conn *websocket.Conn, rs *relay.Server, addr string, cfg *Config, logger *zap.Logger) *Client {
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	var closer io.Closer
	if conn != nil {
		closer = conn
	}
	peer := relay.NewPeer(BridgeIdentity(addr), rs.Config().QueueSize, closer)

	return &Client{
		conn:           conn,
		peer:           peer,
		relay:          rs,
		logger:         logger.With(zap.String("peer", string(peer.Identity())), zap.String("session", peer.Session())),
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    newRateLimiter(cfg.RateLimit),
		rateLimit:      cfg.RateLimit,
	}
}

// Identity returns the client's registry identity.
func (c *Client) Identity() relay.Identity {
	return c.peer.Identity()
}

// Start registers the client and launches its pumps. The relay's Shutdown
// waits for both pumps to exit.
func (c *Client) Start() error {
	if err := c.relay.Attach(c.peer, c.run); err != nil {
		return err
	}
	c.logger.Info("Client registered", zap.Int("clients", c.relay.Registry().Len()))
	return nil
}

func (c *Client) run() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.writePump()
	}()

	c.readPump()
	<-done
}

// setupReadConnection configures read deadlines and pong handler for the WebSocket connection
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warn("Error setting initial read deadline", zap.Error(err))
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
}

// handleReadError logs the read error at a level matching its cause.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn("Message exceeded maximum size", zap.Int64("max_bytes", c.maxMessageSize))
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived):
		c.logger.Info("Client disconnected", zap.Error(err))
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		c.logger.Info("Client connection closed", zap.Error(err))
	default:
		c.logger.Warn("WebSocket read error", zap.Error(err))
	}
}

// checkRateLimit reports whether the next message may be broadcast.
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		c.logger.Warn("Rate limit exceeded; discarding message",
			zap.Int("burst", c.rateLimit.Burst),
			zap.Duration("interval", c.rateLimit.RefillInterval))
		return false
	}
	return true
}

func (c *Client) readPump() {
	defer func() {
		if c.relay.Registry().Remove(c.peer) {
			c.logger.Info("Client unregistered", zap.Int("clients", c.relay.Registry().Len()))
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.logger.Warn("Error closing connection in readPump", zap.Error(err))
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		if !c.checkRateLimit() {
			continue
		}

		c.relay.Metrics().MessagesReceived.Inc()
		c.relay.Broadcaster().Broadcast(c.peer.Identity(), relay.Decode(raw))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.logger.Warn("Error closing connection in writePump", zap.Error(err))
		}
	}()

	for {
		select {
		case message, ok := <-c.peer.Outbound():
			if !c.writeMessage(message, ok) {
				return
			}
		case <-ticker.C:
			if !c.writeControl(websocket.PingMessage) {
				return
			}
		}
	}
}

// writeMessage writes one broadcast as a text frame, or a close frame once
// the registry has closed the outbound channel. It returns false when the
// pump should stop.
func (c *Client) writeMessage(message string, ok bool) bool {
	if !ok {
		c.writeControl(websocket.CloseMessage)
		return false
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Warn("Error setting write deadline", zap.Error(err))
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(message)); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Warn("Error writing message", zap.Error(err))
		}
		return false
	}
	return true
}

func (c *Client) writeControl(messageType int) bool {
	if err := c.conn.WriteControl(messageType, nil, time.Now().Add(writeWait)); err != nil {
		if !isExpectedCloseError(err) {
			c.logger.Warn("Error writing control message", zap.Int("type", messageType), zap.Error(err))
		}
		return false
	}
	return true
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	return errors.Is(err, websocket.ErrCloseSent) || relay.IsClosedConnError(err)
}
