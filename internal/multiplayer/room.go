package multiplayer

import "sync"

// Room is a broadcast group. A lobby owns one room and mounts the ball and
// both paddles on it so they can emit state to every member.
type Room struct {
	mu      sync.RWMutex
	name    string
	members []Conn
}

// NewRoom creates an empty room.
func NewRoom(name string) *Room {
	return &Room{name: name}
}

// Name returns the room name.
func (r *Room) Name() string {
	return r.name
}

// Join adds conn to the room. Joining twice is a no-op.
func (r *Room) Join(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.members {
		if m.ID() == conn.ID() {
			return
		}
	}
	r.members = append(r.members, conn)
}

// Leave removes a connection from the room.
func (r *Room) Leave(id ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.members {
		if m.ID() == id {
			r.members = append(r.members[:i:i], r.members[i+1:]...)
			return
		}
	}
}

// Broadcast sends evt to every member. Sends never block.
func (r *Room) Broadcast(evt SessionEvent) {
	for _, m := range r.Members() {
		m.Send(evt)
	}
}

// Members returns a snapshot of the current members in join order.
func (r *Room) Members() []Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Conn, len(r.members))
	copy(out, r.members)
	return out
}

// Len returns the number of members.
func (r *Room) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}
