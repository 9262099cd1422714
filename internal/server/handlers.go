// Package server exposes HTTP handlers, including WebSocket bridge upgrades
// and health checks.
package server

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Tyrowin/gorelay/internal/relay"
)

// Handlers serves the ops HTTP surface of one relay.
type Handlers struct {
	relay    *relay.Server
	cfg      *Config
	logger   *zap.Logger
	origins  originPolicy
	upgrader websocket.Upgrader
}

// NewHandlers creates the handlers for rs. A nil logger discards logs.
func NewHandlers(rs *relay.Server, cfg *Config, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handlers{
		relay:   rs,
		cfg:     cfg,
		logger:  logger,
		origins: newOriginPolicy(cfg.AllowedOrigins, logger),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Handlers) checkOrigin(r *http.Request) bool {
	if h.origins.allows(r) {
		return true
	}

	h.logger.Warn("Blocked WebSocket connection from disallowed origin",
		zap.String("origin", r.Header.Get("Origin")))
	return false
}

// WebSocketHandler upgrades the request and joins the connection to the
// relay as a bridge peer.
func (h *Handlers) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(conn, h.relay, r.RemoteAddr, h.cfg, h.logger)
	if err := client.Start(); err != nil {
		h.logger.Warn("Rejecting WebSocket client",
			zap.String("peer", string(client.Identity())), zap.Error(err))
		_ = conn.Close()
	}
}

// HealthHandler reports that the relay is up and how many peers it holds.
func (h *Handlers) HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "relay is running (%d peers)", h.relay.Registry().Len())
}
