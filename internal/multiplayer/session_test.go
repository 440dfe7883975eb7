package multiplayer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelConnDropsOldestWhenFull(t *testing.T) {
	conn := NewChannelConn("c1", 2)
	conn.Send(ScoreEvent{Left: 1})
	conn.Send(ScoreEvent{Left: 2})
	conn.Send(ScoreEvent{Left: 3})

	first := <-conn.Events()
	second := <-conn.Events()
	assert.Equal(t, ScoreEvent{Left: 2}, first)
	assert.Equal(t, ScoreEvent{Left: 3}, second)
}

func TestChannelConnSendAfterClose(t *testing.T) {
	conn := NewChannelConn("c1", 4)
	conn.Close()
	conn.Close() // idempotent

	conn.Send(WinEvent{})
	assert.Empty(t, conn.Events())

	select {
	case <-conn.Done():
	default:
		t.Fatal("Done() not closed after Close()")
	}
}

func TestRegistry(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(r *Registry)
		validate func(t *testing.T, r *Registry)
	}{
		{
			name: "resolve identity",
			setup: func(r *Registry) {
				r.Register(NewChannelConn("a1", 1), "alice")
			},
			validate: func(t *testing.T, r *Registry) {
				user, ok := r.ResolveIdentity("a1")
				require.True(t, ok)
				assert.Equal(t, UserID("alice"), user)

				_, ok = r.ResolveIdentity("missing")
				assert.False(t, ok)
			},
		},
		{
			name: "primary is most recent",
			setup: func(r *Registry) {
				r.Register(NewChannelConn("a1", 1), "alice")
				r.Register(NewChannelConn("a2", 1), "alice")
			},
			validate: func(t *testing.T, r *Registry) {
				primary, ok := r.Primary("alice")
				require.True(t, ok)
				assert.Equal(t, ConnID("a2"), primary.ID())
				assert.Len(t, r.ResolveConnections("alice"), 2)
			},
		},
		{
			name: "unregister reports remaining",
			setup: func(r *Registry) {
				r.Register(NewChannelConn("a1", 1), "alice")
				r.Register(NewChannelConn("a2", 1), "alice")
			},
			validate: func(t *testing.T, r *Registry) {
				user, remaining := r.Unregister("a2")
				assert.Equal(t, UserID("alice"), user)
				assert.Equal(t, 1, remaining)

				primary, ok := r.Primary("alice")
				require.True(t, ok)
				assert.Equal(t, ConnID("a1"), primary.ID())

				_, remaining = r.Unregister("a1")
				assert.Equal(t, 0, remaining)
				assert.False(t, r.Online("alice"))
				assert.Equal(t, 0, r.Count())
			},
		},
		{
			name:  "unknown connection",
			setup: func(r *Registry) {},
			validate: func(t *testing.T, r *Registry) {
				user, remaining := r.Unregister("ghost")
				assert.Empty(t, user)
				assert.Zero(t, remaining)
				assert.Empty(t, r.ResolveConnections("ghost"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			tt.setup(r)
			tt.validate(t, r)
		})
	}
}

func TestRegistrySendToUser(t *testing.T) {
	r := NewRegistry()
	a1 := NewChannelConn("a1", 4)
	a2 := NewChannelConn("a2", 4)
	b1 := NewChannelConn("b1", 4)
	r.Register(a1, "alice")
	r.Register(a2, "alice")
	r.Register(b1, "bob")

	r.SendToUser("alice", InviteAcceptedEvent{GameID: "g"})

	assert.Len(t, a1.Events(), 1)
	assert.Len(t, a2.Events(), 1)
	assert.Empty(t, b1.Events())
}

func TestRoom(t *testing.T) {
	room := NewRoom("lobby-1")
	a := NewChannelConn("a", 4)
	b := NewChannelConn("b", 4)

	room.Join(a)
	room.Join(b)
	room.Join(a)
	require.Equal(t, 2, room.Len())

	room.Broadcast(BallMoveEvent{})
	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)

	room.Leave("a")
	room.Broadcast(BallMoveEvent{})
	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 2)

	members := room.Members()
	require.Len(t, members, 1)
	assert.Equal(t, ConnID("b"), members[0].ID())
}
