package matchmaking

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/vovakirdan/arena/internal/config"
	"github.com/vovakirdan/arena/internal/multiplayer"
)

// ErrNotInLobby is reported when a lobby event arrives from a connection
// that is not in one.
var ErrNotInLobby = errors.New("matchmaking: not in a lobby")

// ErrAlreadyInLobby is reported when a connection in a lobby tries to queue
// or be paired again.
var ErrAlreadyInLobby = errors.New("matchmaking: already in a lobby")

type queued struct {
	conn multiplayer.Conn
	user multiplayer.UserID
}

// Coordinator owns the matchmaking queue and every lobby. All state changes
// happen on its message goroutine; the mutex only guards the read accessors.
type Coordinator struct {
	config   config.ServerConfig
	registry *multiplayer.Registry
	invites  *Invitations
	recorder multiplayer.MatchRecorder // Optional, can be nil
	logger   *log.Logger

	mu        sync.RWMutex
	lobbies   map[string]*Lobby             // lobby ID -> lobby
	connLobby map[multiplayer.ConnID]string // conn -> lobby ID
	queue     []queued

	// Message channel for async processing
	msgChan  chan CoordinatorMessage
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	reports  sync.WaitGroup // in-flight match recordings
}

// NewCoordinator creates a new coordinator.
func NewCoordinator(cfg config.ServerConfig, registry *multiplayer.Registry, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Coordinator{
		config:    cfg,
		registry:  registry,
		invites:   NewInvitations(registry),
		logger:    logger,
		lobbies:   make(map[string]*Lobby),
		connLobby: make(map[multiplayer.ConnID]string),
		msgChan:   make(chan CoordinatorMessage, 256),
		done:      make(chan struct{}),
	}
}

// SetRecorder sets the optional match recorder used by new lobbies.
func (c *Coordinator) SetRecorder(recorder multiplayer.MatchRecorder) {
	c.recorder = recorder
}

// Registry returns the connection registry.
func (c *Coordinator) Registry() *multiplayer.Registry { return c.registry }

// Invitations returns the invitation registry.
func (c *Coordinator) Invitations() *Invitations { return c.invites }

// Start begins the coordinator's background processing.
func (c *Coordinator) Start() {
	c.wg.Add(2)
	go c.processMessages()
	go c.cleanupLoop()
}

// Stop shuts down the coordinator, closes every lobby and waits for
// finished matches to be recorded.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
	c.wg.Wait()

	c.mu.Lock()
	lobbies := c.lobbies
	c.lobbies = make(map[string]*Lobby)
	c.connLobby = make(map[multiplayer.ConnID]string)
	c.queue = nil
	c.mu.Unlock()

	for _, lobby := range lobbies {
		lobby.Dispose()
	}
	c.reports.Wait()
}

// Send sends a message to the coordinator for async processing.
func (c *Coordinator) Send(msg CoordinatorMessage) {
	select {
	case c.msgChan <- msg:
	case <-c.done:
	}
}

// processMessages handles incoming messages.
func (c *Coordinator) processMessages() {
	defer c.wg.Done()
	for {
		select {
		case msg := <-c.msgChan:
			c.handleMessage(msg)
		case <-c.done:
			return
		}
	}
}

func (c *Coordinator) handleMessage(msg CoordinatorMessage) {
	switch m := msg.(type) {
	case ConnectedMsg:
		c.registry.Register(m.Conn, m.User)
		c.logger.Debug("connection registered", "conn", m.Conn.ID(), "user", m.User)
	case DisconnectedMsg:
		c.handleDisconnected(m.ConnID)
	case InboundMsg:
		c.handleInbound(m)
	case lobbyFinishedMsg:
		c.handleLobbyFinished(m)
	case cleanupMsg:
		c.cleanup(time.Now())
	}
}

func (c *Coordinator) handleInbound(msg InboundMsg) {
	switch evt := msg.Event.(type) {
	case multiplayer.ReadyInput:
		lobby, ok := c.lobbyOf(msg.ConnID)
		if !ok {
			c.reportError(msg.ConnID, ErrNotInLobby)
			return
		}
		if err := lobby.Ready(msg.ConnID); err != nil {
			c.reportError(msg.ConnID, err)
		}

	case multiplayer.MoveInput:
		if lobby, ok := c.lobbyOf(msg.ConnID); ok {
			lobby.Move(msg.ConnID, evt.Position)
		}

	case multiplayer.DisconnectInput:
		c.removeFromQueue(msg.ConnID)
		c.leaveLobby(msg.ConnID)

	case multiplayer.SendInviteInput:
		if _, err := c.invites.Challenge(msg.ConnID, evt.InvitedUserID); err != nil {
			c.reportError(msg.ConnID, err)
		}

	case multiplayer.RespondInviteInput:
		if _, err := c.invites.Respond(msg.ConnID, evt.Option); err != nil {
			c.reportError(msg.ConnID, err)
		}

	case multiplayer.ConfirmInviteInput:
		inv, finalized, err := c.invites.Confirm(msg.ConnID, evt.Option)
		if err != nil {
			c.reportError(msg.ConnID, err)
			return
		}
		if finalized {
			c.createLobby(inv.GameID,
				queued{conn: inv.Inviter.Conn, user: inv.Inviter.UserID},
				queued{conn: inv.Invited.Conn, user: inv.Invited.UserID},
			)
		}

	case multiplayer.JoinQueueInput:
		c.handleJoinQueue(msg.ConnID)

	case multiplayer.LeaveQueueInput:
		c.removeFromQueue(msg.ConnID)
	}
}

func (c *Coordinator) handleJoinQueue(id multiplayer.ConnID) {
	conn, ok := c.registry.Get(id)
	if !ok {
		return
	}
	user, _ := c.registry.ResolveIdentity(id)
	if _, inLobby := c.lobbyOf(id); inLobby {
		conn.Send(multiplayer.ErrorEvent{Message: ErrAlreadyInLobby.Error()})
		return
	}

	c.mu.Lock()
	for _, q := range c.queue {
		if q.conn.ID() == id {
			c.mu.Unlock()
			return
		}
	}
	c.queue = append(c.queue, queued{conn: conn, user: user})
	position := len(c.queue)
	c.mu.Unlock()

	conn.Send(multiplayer.QueuedEvent{Position: position})
	c.pairQueue()
}

// pairQueue forms lobbies from the oldest waiting connections of
// different users.
func (c *Coordinator) pairQueue() {
	for {
		c.mu.Lock()
		first, second := -1, -1
	search:
		for i := range c.queue {
			for j := i + 1; j < len(c.queue); j++ {
				if c.queue[i].user != c.queue[j].user {
					first, second = i, j
					break search
				}
			}
		}
		if first < 0 {
			c.mu.Unlock()
			return
		}
		a, b := c.queue[first], c.queue[second]
		c.queue = append(c.queue[:second:second], c.queue[second+1:]...)
		c.queue = append(c.queue[:first:first], c.queue[first+1:]...)
		c.mu.Unlock()

		c.createLobby(uuid.NewString(), a, b)
	}
}

func (c *Coordinator) removeFromQueue(id multiplayer.ConnID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, q := range c.queue {
		if q.conn.ID() == id {
			c.queue = append(c.queue[:i:i], c.queue[i+1:]...)
			return
		}
	}
}

func (c *Coordinator) createLobby(id string, players ...queued) {
	for _, p := range players {
		select {
		case <-p.conn.Done():
			for _, other := range players {
				other.conn.Send(multiplayer.ErrorEvent{Message: fmt.Sprintf("cannot form lobby: %s disconnected", p.user)})
			}
			return
		default:
		}
		if _, inLobby := c.lobbyOf(p.conn.ID()); inLobby {
			for _, other := range players {
				other.conn.Send(multiplayer.ErrorEvent{Message: fmt.Sprintf("cannot form lobby: %s %v", p.user, ErrAlreadyInLobby)})
			}
			return
		}
	}
	for _, p := range players {
		c.removeFromQueue(p.conn.ID())
	}

	lobby, err := NewLobby(LobbyOptions{
		ID:       id,
		Config:   c.config,
		Recorder: c.recorder,
		Reports:  &c.reports,
		Logger:   c.logger,
		OnFinish: func(lobbyID string, result multiplayer.MatchResult) {
			c.Send(lobbyFinishedMsg{lobbyID: lobbyID, result: result})
		},
	})
	if err != nil {
		c.logger.Error("cannot create lobby", "err", err)
		for _, p := range players {
			p.conn.Send(multiplayer.ErrorEvent{Message: err.Error()})
		}
		return
	}

	c.mu.Lock()
	c.lobbies[lobby.ID()] = lobby
	c.mu.Unlock()

	for _, p := range players {
		slot, err := lobby.AddPlayer(p.conn, p.user)
		if err != nil {
			p.conn.Send(multiplayer.ErrorEvent{Message: err.Error()})
			continue
		}
		c.mu.Lock()
		c.connLobby[p.conn.ID()] = lobby.ID()
		c.mu.Unlock()
		p.conn.Send(multiplayer.LobbyJoinedEvent{LobbyID: lobby.ID(), Slot: slot})
	}
	c.logger.Info("lobby created", "lobby", lobby.ID(), "players", len(players))
}

// leaveLobby removes conn from its lobby and closes the lobby.
func (c *Coordinator) leaveLobby(id multiplayer.ConnID) {
	lobby, ok := c.lobbyOf(id)
	if !ok {
		return
	}
	lobby.RemovePlayer(id)
	c.closeLobby(lobby)
}

func (c *Coordinator) closeLobby(lobby *Lobby) {
	members := lobby.Members()
	lobby.Dispose()

	c.mu.Lock()
	delete(c.lobbies, lobby.ID())
	for conn, lobbyID := range c.connLobby {
		if lobbyID == lobby.ID() {
			delete(c.connLobby, conn)
		}
	}
	c.mu.Unlock()
	c.logger.Info("lobby closed", "lobby", lobby.ID(), "remaining", len(members))
}

func (c *Coordinator) handleLobbyFinished(msg lobbyFinishedMsg) {
	c.mu.RLock()
	lobby, exists := c.lobbies[msg.lobbyID]
	c.mu.RUnlock()
	if !exists {
		return
	}
	c.logger.Info("match finished",
		"lobby", msg.lobbyID,
		"winner", msg.result.WinnerID,
		"reason", msg.result.Reason,
		"duration", msg.result.Duration.Round(time.Millisecond),
	)
	c.closeLobby(lobby)
}

func (c *Coordinator) handleDisconnected(id multiplayer.ConnID) {
	c.removeFromQueue(id)
	c.leaveLobby(id)

	user, remaining := c.registry.Unregister(id)
	if user != "" && remaining == 0 {
		if n := c.invites.DropUser(user); n > 0 {
			c.logger.Debug("dropped invites of offline user", "user", user, "count", n)
		}
	}
	c.logger.Debug("connection closed", "conn", id, "user", user)
}

func (c *Coordinator) reportError(id multiplayer.ConnID, err error) {
	if conn, ok := c.registry.Get(id); ok {
		conn.Send(multiplayer.ErrorEvent{Message: err.Error()})
	}
}

func (c *Coordinator) cleanupLoop() {
	defer c.wg.Done()
	period := c.config.Lobby.CleanupPeriod
	if period <= 0 {
		return
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Send(cleanupMsg{})
		case <-c.done:
			return
		}
	}
}

// cleanup expires stale invites and lobbies whose members never both
// confirmed.
func (c *Coordinator) cleanup(now time.Time) {
	if n := c.invites.Expire(c.config.Invites.Timeout); n > 0 {
		c.logger.Info("expired invites", "count", n)
	}

	c.mu.RLock()
	var stale []*Lobby
	for _, lobby := range c.lobbies {
		if lobby.Stale(now, c.config.Lobby.ReadyTimeout) {
			stale = append(stale, lobby)
		}
	}
	c.mu.RUnlock()

	for _, lobby := range stale {
		for _, id := range lobby.Members() {
			c.reportError(id, errors.New("lobby expired"))
		}
		c.closeLobby(lobby)
	}
}

func (c *Coordinator) lobbyOf(id multiplayer.ConnID) (*Lobby, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	lobbyID, ok := c.connLobby[id]
	if !ok {
		return nil, false
	}
	lobby, ok := c.lobbies[lobbyID]
	return lobby, ok
}

// LobbyOf returns the lobby a connection is in (for testing/debug).
func (c *Coordinator) LobbyOf(id multiplayer.ConnID) (*Lobby, bool) {
	return c.lobbyOf(id)
}

// LobbyCount returns the number of active lobbies.
func (c *Coordinator) LobbyCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.lobbies)
}

// QueueLen returns the number of connections waiting in the queue.
func (c *Coordinator) QueueLen() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.queue)
}
