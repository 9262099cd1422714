package relay

import (
	"errors"
	"io"
	"net"

	"go.uber.org/zap"
)

// worker owns one accepted connection: it reads and broadcasts until the
// connection ends, drains the peer's outbound channel onto the socket, and
// deregisters the peer exactly once.
type worker struct {
	conn        net.Conn
	peer        *Peer
	registry    *Registry
	broadcaster *Broadcaster
	metrics     *Metrics
	logger      *zap.Logger
	bufSize     int
}

func (w *worker) run() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.writeLoop()
	}()

	w.readLoop()
	w.close()
	<-done
}

func (w *worker) readLoop() {
	buf := make([]byte, w.bufSize)
	for {
		n, err := w.conn.Read(buf)
		if n > 0 {
			w.metrics.MessagesReceived.Inc()
			w.broadcaster.Broadcast(w.peer.id, Decode(buf[:n]))
		}
		if err != nil {
			w.handleReadError(err)
			return
		}
	}
}

func (w *worker) handleReadError(err error) {
	switch {
	case errors.Is(err, io.EOF):
		w.logger.Info("Client disconnected")
	case isExpectedCloseError(err):
		w.logger.Debug("Connection closed locally", zap.Error(err))
	default:
		w.logger.Warn("Failed to read from socket", zap.Error(err))
	}
}

// writeLoop writes each outbound message as one newline-terminated line.
// It ends when the registry closes the channel or a write fails.
func (w *worker) writeLoop() {
	for msg := range w.peer.Outbound() {
		if _, err := io.WriteString(w.conn, msg+"\n"); err != nil {
			if !isExpectedCloseError(err) {
				w.logger.Warn("Failed to write to socket", zap.Error(err))
			}
			_ = w.conn.Close()
			return
		}
	}
}

func (w *worker) close() {
	if w.registry.Remove(w.peer) {
		w.logger.Info("Client unregistered", zap.Int("clients", w.registry.Len()))
	}
	if err := w.conn.Close(); err != nil && !isExpectedCloseError(err) {
		w.logger.Warn("Error closing connection", zap.Error(err))
	}
}

// IsClosedConnError reports errors that only mean the socket was already
// closed on our side or dropped by the peer.
func IsClosedConnError(err error) bool {
	return isExpectedCloseError(err)
}

func isExpectedCloseError(err error) bool {
	return err == nil || errors.Is(err, net.ErrClosed) || isConnDropped(err)
}
