// Package testhelpers provides common utilities for testing the relay.
//
// It starts relays on ephemeral loopback ports, dials TCP and WebSocket
// peers, and reads broadcast lines with deadlines so tests never hang.
package testhelpers

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Tyrowin/gorelay/internal/relay"
)

// DefaultTimeout bounds every blocking helper.
const DefaultTimeout = 2 * time.Second

// StartRelay serves a relay on an ephemeral loopback port and shuts it down
// when the test ends. It returns the server and its listening address.
func StartRelay(t *testing.T, cfg relay.Config, logger *zap.Logger, metrics *relay.Metrics) (*relay.Server, string) {
	t.Helper()

	cfg.Address = "127.0.0.1:0"
	ln, err := relay.Bind(cfg.Address)
	if err != nil {
		t.Fatalf("Failed to bind relay: %v", err)
	}

	srv := relay.NewServer(cfg, logger, metrics)
	go func() { _ = srv.Serve(ln) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultTimeout)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	return srv, ln.Addr().String()
}

// TCPPeer is a test client connected to a relay.
type TCPPeer struct {
	Conn   net.Conn
	reader *bufio.Reader
}

// DialTCP connects a TCPPeer to addr and closes it when the test ends.
func DialTCP(t *testing.T, addr string) *TCPPeer {
	t.Helper()

	conn, err := net.DialTimeout("tcp", addr, DefaultTimeout)
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return &TCPPeer{Conn: conn, reader: bufio.NewReader(conn)}
}

// Identity returns the identity the relay sees for this peer.
func (p *TCPPeer) Identity() relay.Identity {
	return relay.IdentityOf(p.Conn.LocalAddr())
}

// Send writes raw text to the relay.
func (p *TCPPeer) Send(t *testing.T, text string) {
	t.Helper()
	if _, err := p.Conn.Write([]byte(text)); err != nil {
		t.Fatalf("Failed to send %q: %v", text, err)
	}
}

// ReadLine reads one broadcast line, without its newline, within timeout.
func (p *TCPPeer) ReadLine(timeout time.Duration) (string, error) {
	if err := p.Conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return "", err
	}
	line, err := p.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(line, "\n"), nil
}

// ExpectLine fails the test unless the next line equals want.
func (p *TCPPeer) ExpectLine(t *testing.T, want string) {
	t.Helper()
	got, err := p.ReadLine(DefaultTimeout)
	if err != nil {
		t.Fatalf("Expected %q, got error: %v", want, err)
	}
	if got != want {
		t.Fatalf("Expected %q, got %q", want, got)
	}
}

// ExpectSilence fails the test if anything arrives within wait.
func (p *TCPPeer) ExpectSilence(t *testing.T, wait time.Duration) {
	t.Helper()
	got, err := p.ReadLine(wait)
	if err == nil {
		t.Fatalf("Expected no message, got %q", got)
	}
	if !IsTimeout(err) {
		t.Fatalf("Expected read timeout, got %v", err)
	}
}

// IsTimeout reports whether err is a read deadline expiry.
func IsTimeout(err error) bool {
	var netErr net.Error
	return errors.Is(err, os.ErrDeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
}

// WaitFor polls cond until it holds or timeout passes.
func WaitFor(t *testing.T, timeout time.Duration, msg string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// ConnectWebSocket dials url with the given Origin header.
func ConnectWebSocket(url, origin string) (*websocket.Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	return conn, err
}
