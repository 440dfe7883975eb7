package multiplayer

import (
	"sync"
)

// Conn is the transport-neutral interface for communicating with a connection.
// It allows lobbies and games to send events without depending on WebSocket or SSH.
type Conn interface {
	// ID returns the unique connection identifier.
	ID() ConnID

	// Send sends an event to the connection asynchronously.
	// Must be non-blocking; implementations should use buffered channels.
	Send(evt SessionEvent)

	// Done returns a channel that closes when the connection ends.
	Done() <-chan struct{}
}

// ChannelConn is a Conn implementation using Go channels.
// Gateways drain Events() into the underlying transport.
type ChannelConn struct {
	id       ConnID
	events   chan SessionEvent
	done     chan struct{}
	doneOnce sync.Once
}

// NewChannelConn creates a new channel-based connection handle.
// eventBufferSize controls how many events can be buffered before dropping.
func NewChannelConn(id ConnID, eventBufferSize int) *ChannelConn {
	if eventBufferSize < 1 {
		eventBufferSize = 256 // Default buffer size
	}
	return &ChannelConn{
		id:     id,
		events: make(chan SessionEvent, eventBufferSize),
		done:   make(chan struct{}),
	}
}

// ID returns the connection identifier.
func (c *ChannelConn) ID() ConnID {
	return c.id
}

// Send sends an event to the connection.
// If the buffer is full, old events are dropped to prevent blocking.
func (c *ChannelConn) Send(evt SessionEvent) {
	select {
	case <-c.done:
		// Connection is closed, don't send
		return
	default:
	}

	select {
	case c.events <- evt:
	default:
		// Buffer full, drop oldest and retry
		select {
		case <-c.events:
		default:
		}
		select {
		case c.events <- evt:
		default:
		}
	}
}

// Events returns the channel to receive events from.
func (c *ChannelConn) Events() <-chan SessionEvent {
	return c.events
}

// Done returns the done channel.
func (c *ChannelConn) Done() <-chan struct{} {
	return c.done
}

// Close marks the connection as done.
// Safe to call multiple times.
func (c *ChannelConn) Close() {
	c.doneOnce.Do(func() {
		close(c.done)
	})
}

type registration struct {
	conn Conn
	user UserID
}

// Registry maps connections to user identities and back.
// Thread-safe for concurrent access.
type Registry struct {
	mu    sync.RWMutex
	conns map[ConnID]registration
	users map[UserID][]ConnID // in registration order, most recent last
}

// NewRegistry creates a new connection registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[ConnID]registration),
		users: make(map[UserID][]ConnID),
	}
}

// Register associates conn with user. Registering the same connection again
// moves it to the most recent position.
func (r *Registry) Register(conn Conn, user UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.conns[conn.ID()]; ok {
		r.removeLocked(conn.ID(), prev.user)
	}
	r.conns[conn.ID()] = registration{conn: conn, user: user}
	r.users[user] = append(r.users[user], conn.ID())
}

// Unregister removes a connection. It reports the owning user and whether
// that user has any connection left.
func (r *Registry) Unregister(id ConnID) (user UserID, remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.conns[id]
	if !ok {
		return "", 0
	}
	r.removeLocked(id, reg.user)
	return reg.user, len(r.users[reg.user])
}

func (r *Registry) removeLocked(id ConnID, user UserID) {
	delete(r.conns, id)
	ids := r.users[user]
	for i, cid := range ids {
		if cid == id {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(r.users, user)
		return
	}
	r.users[user] = ids
}

// Get retrieves a connection by ID.
func (r *Registry) Get(id ConnID) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.conns[id]
	return reg.conn, ok
}

// ResolveIdentity returns the user owning a connection.
func (r *Registry) ResolveIdentity(id ConnID) (UserID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.conns[id]
	return reg.user, ok
}

// ResolveConnections returns every live connection of a user, oldest first.
func (r *Registry) ResolveConnections(user UserID) []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.users[user]
	conns := make([]Conn, 0, len(ids))
	for _, id := range ids {
		conns = append(conns, r.conns[id].conn)
	}
	return conns
}

// Primary returns the most recently registered connection of a user.
func (r *Registry) Primary(user UserID) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.users[user]
	if len(ids) == 0 {
		return nil, false
	}
	return r.conns[ids[len(ids)-1]].conn, true
}

// SendToUser delivers evt to every connection of a user.
func (r *Registry) SendToUser(user UserID, evt SessionEvent) {
	for _, conn := range r.ResolveConnections(user) {
		conn.Send(evt)
	}
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Online reports whether a user has at least one connection.
func (r *Registry) Online(user UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[user]) > 0
}
