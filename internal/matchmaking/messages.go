package matchmaking

import "github.com/vovakirdan/arena/internal/multiplayer"

// CoordinatorMessage represents a message from a gateway to the coordinator.
type CoordinatorMessage interface {
	coordinatorMessage()
}

// ConnectedMsg registers a new connection for a user.
type ConnectedMsg struct {
	Conn multiplayer.Conn
	User multiplayer.UserID
}

func (ConnectedMsg) coordinatorMessage() {}

// DisconnectedMsg is sent when a transport connection closes.
type DisconnectedMsg struct {
	ConnID multiplayer.ConnID
}

func (DisconnectedMsg) coordinatorMessage() {}

// InboundMsg carries a decoded event from a connection.
type InboundMsg struct {
	ConnID multiplayer.ConnID
	Event  multiplayer.InboundEvent
}

func (InboundMsg) coordinatorMessage() {}

// lobbyFinishedMsg is sent by a lobby's game once it has a result.
type lobbyFinishedMsg struct {
	lobbyID string
	result  multiplayer.MatchResult
}

func (lobbyFinishedMsg) coordinatorMessage() {}

// cleanupMsg asks the coordinator to sweep stale invites and lobbies.
type cleanupMsg struct{}

func (cleanupMsg) coordinatorMessage() {}
