package relay

import (
	"io"
	"net"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Identity is the address of a connected peer. It is the registry key.
type Identity string

// IdentityOf derives the Identity of a peer from its remote address.
func IdentityOf(addr net.Addr) Identity {
	if addr == nil {
		return ""
	}
	return Identity(addr.String())
}

// Peer is one registry entry: a connected peer and its outbound channel.
type Peer struct {
	id      Identity
	session string
	send    chan string
	closer  io.Closer
}

// NewPeer creates a Peer with an outbound channel of queueSize messages.
// closer is closed when the registry is torn down and may be nil.
func NewPeer(id Identity, queueSize int, closer io.Closer) *Peer {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Peer{
		id:      id,
		session: uuid.NewString(),
		send:    make(chan string, queueSize),
		closer:  closer,
	}
}

// Identity returns the peer's registry key.
func (p *Peer) Identity() Identity {
	return p.id
}

// Session returns a unique id for this connection, used to tell apart
// successive connections that reuse an address.
func (p *Peer) Session() string {
	return p.session
}

// Outbound returns the channel of messages destined for this peer. It is
// closed once the peer has been removed from the registry.
func (p *Peer) Outbound() <-chan string {
	return p.send
}

// Registry maps peer identities to their outbound channels. A single mutex
// serializes insertion, removal and iteration-with-send, so once Remove
// returns no broadcast can enqueue onto the removed peer's channel.
type Registry struct {
	mu      sync.Mutex
	peers   map[Identity]*Peer
	metrics *Metrics
}

// NewRegistry creates an empty Registry. A nil metrics keeps counts in
// unregistered collectors.
func NewRegistry(metrics *Metrics) *Registry {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Registry{
		peers:   make(map[Identity]*Peer),
		metrics: metrics,
	}
}

// Insert adds p to the registry. It fails with ErrDuplicateIdentity if
// another peer already holds the same identity.
func (r *Registry) Insert(p *Peer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.peers[p.id]; exists {
		return ErrDuplicateIdentity
	}
	r.peers[p.id] = p
	r.metrics.ActiveConnections.Inc()
	r.metrics.TotalConnections.Inc()
	return nil
}

// Remove deletes p and closes its outbound channel. It reports whether p was
// registered; only the first call for a given peer returns true.
func (r *Registry) Remove(p *Peer) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.peers[p.id]
	if !ok || current != p {
		return false
	}
	delete(r.peers, p.id)
	close(p.send)
	r.metrics.ActiveConnections.Dec()
	return true
}

// Len returns the number of registered peers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.peers)
}

// Contains reports whether id is registered.
func (r *Registry) Contains(id Identity) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.peers[id]
	return ok
}

// Identities returns the registered identities in sorted order.
func (r *Registry) Identities() []Identity {
	r.mu.Lock()
	ids := make([]Identity, 0, len(r.peers))
	for id := range r.peers {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// each calls fn for every peer while holding the registry lock.
func (r *Registry) each(fn func(*Peer)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.peers {
		fn(p)
	}
}

// closeAll closes the connection of every registered peer. Entries are left
// in place; each worker removes its own when its read fails.
func (r *Registry) closeAll() int {
	r.mu.Lock()
	closers := make([]io.Closer, 0, len(r.peers))
	for _, p := range r.peers {
		if p.closer != nil {
			closers = append(closers, p.closer)
		}
	}
	r.mu.Unlock()

	for _, c := range closers {
		_ = c.Close()
	}
	return len(closers)
}
