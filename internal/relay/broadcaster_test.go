package relay

import (
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func registerPeers(t *testing.T, r *Registry, queueSize int, ids ...Identity) map[Identity]*Peer {
	t.Helper()
	peers := make(map[Identity]*Peer, len(ids))
	for _, id := range ids {
		p := NewPeer(id, queueSize, nil)
		if err := r.Insert(p); err != nil {
			t.Fatalf("Insert(%s) returned error: %v", id, err)
		}
		peers[id] = p
	}
	return peers
}

func drain(p *Peer) []string {
	var msgs []string
	for {
		select {
		case msg := <-p.Outbound():
			msgs = append(msgs, msg)
		default:
			return msgs
		}
	}
}

func TestBroadcastExcludesSender(t *testing.T) {
	r := NewRegistry(nil)
	peers := registerPeers(t, r, 10, "a", "b", "c")
	b := NewBroadcaster(r, nil)

	delivered, dropped := b.Broadcast("a", "hello")
	if delivered != 2 || dropped != 0 {
		t.Errorf("Broadcast() = (%d, %d), want (2, 0)", delivered, dropped)
	}

	if got := drain(peers["a"]); len(got) != 0 {
		t.Errorf("Sender received its own message: %v", got)
	}
	for _, id := range []Identity{"b", "c"} {
		got := drain(peers[id])
		if len(got) != 1 || got[0] != "hello" {
			t.Errorf("Peer %s received %v, want [hello]", id, got)
		}
	}
}

func TestBroadcastSkipsFullRecipient(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	metrics := NewMetrics(nil)
	r := NewRegistry(metrics)
	peers := registerPeers(t, r, 1, "sender", "stalled", "healthy")
	b := NewBroadcaster(r, zap.New(core))

	// Saturate the stalled peer's channel.
	peers["stalled"].send <- "backlog"

	delivered, dropped := b.Broadcast("sender", "ping")
	if delivered != 1 || dropped != 1 {
		t.Errorf("Broadcast() = (%d, %d), want (1, 1)", delivered, dropped)
	}

	if got := drain(peers["healthy"]); len(got) != 1 || got[0] != "ping" {
		t.Errorf("Healthy peer received %v, want [ping]", got)
	}
	if got := drain(peers["stalled"]); len(got) != 1 || got[0] != "backlog" {
		t.Errorf("Stalled peer received %v, want only its backlog", got)
	}

	entries := logs.FilterMessage("Failed to send message to client").All()
	if len(entries) != 1 {
		t.Fatalf("Expected one drop log entry, got %d", len(entries))
	}
	if peer := entries[0].ContextMap()["peer"]; peer != "stalled" {
		t.Errorf("Drop logged for peer %v, want stalled", peer)
	}
	if got := testutil.ToFloat64(metrics.DroppedDeliveries); got != 1 {
		t.Errorf("dropped deliveries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.Deliveries); got != 1 {
		t.Errorf("deliveries = %v, want 1", got)
	}
}

func TestBroadcastSkipsRemovedPeer(t *testing.T) {
	r := NewRegistry(nil)
	peers := registerPeers(t, r, 10, "a", "b", "c")
	b := NewBroadcaster(r, nil)

	if !r.Remove(peers["b"]) {
		t.Fatal("Remove returned false")
	}

	// Sending on b's closed channel would panic.
	delivered, dropped := b.Broadcast("a", "ping")
	if delivered != 1 || dropped != 0 {
		t.Errorf("Broadcast() = (%d, %d), want (1, 0)", delivered, dropped)
	}
	if got := drain(peers["c"]); len(got) != 1 || got[0] != "ping" {
		t.Errorf("Peer c received %v, want [ping]", got)
	}
}

func TestBroadcastPreservesSenderOrder(t *testing.T) {
	r := NewRegistry(nil)
	peers := registerPeers(t, r, 100, "a", "b")
	b := NewBroadcaster(r, nil)

	for i := 0; i < 50; i++ {
		b.Broadcast("a", fmt.Sprintf("msg-%d", i))
	}

	got := drain(peers["b"])
	if len(got) != 50 {
		t.Fatalf("Peer b received %d messages, want 50", len(got))
	}
	for i, msg := range got {
		if want := fmt.Sprintf("msg-%d", i); msg != want {
			t.Fatalf("Message %d = %q, want %q", i, msg, want)
		}
	}
}

func TestBroadcastWithNoRecipients(t *testing.T) {
	r := NewRegistry(nil)
	registerPeers(t, r, 1, "alone")
	b := NewBroadcaster(r, nil)

	if delivered, dropped := b.Broadcast("alone", "echo?"); delivered != 0 || dropped != 0 {
		t.Errorf("Broadcast() = (%d, %d), want (0, 0)", delivered, dropped)
	}
}
