// Package matchmaking pairs connections into lobbies, runs the invitation
// handshake and routes inbound events to the right lobby and game.
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
	"github.com/vovakirdan/arena/internal/core"
	"github.com/vovakirdan/arena/internal/games/pong"
	"github.com/vovakirdan/arena/internal/multiplayer"
)

var (
	// ErrLobbyFull is returned when a third connection tries to join.
	ErrLobbyFull = errors.New("matchmaking: lobby is full")
	// ErrLobbyDisposed is returned for operations on a closed lobby.
	ErrLobbyDisposed = errors.New("matchmaking: lobby is closed")
	// ErrNotMember is returned when a connection is not part of the lobby.
	ErrNotMember = errors.New("matchmaking: connection is not in this lobby")
)

// LobbyCapacity is the number of members a lobby holds.
const LobbyCapacity = 2

// LobbyOptions configures a Lobby.
type LobbyOptions struct {
	ID       string // defaults to a fresh uuid
	Config   config.ServerConfig
	Recorder multiplayer.MatchRecorder
	// Reports counts in-flight recordings of this lobby's games. Optional.
	Reports *sync.WaitGroup
	Logger  *log.Logger
	// OnFinish is called from the game goroutine once a game has a result.
	OnFinish func(lobbyID string, result multiplayer.MatchResult)
}

type member struct {
	conn   multiplayer.Conn
	user   multiplayer.UserID
	ready  bool
	inGame bool
}

// Lobby holds up to two connections until both are ready, then owns the
// game they play. All methods are safe for concurrent use.
type Lobby struct {
	id        string
	cfg       config.ServerConfig
	recorder  multiplayer.MatchRecorder
	reports   *sync.WaitGroup
	logger    *log.Logger
	onFinish  func(string, multiplayer.MatchResult)
	createdAt time.Time

	mu            sync.Mutex
	members       [LobbyCapacity]*member
	confirmations int
	room          *multiplayer.Room
	arena         *pong.Arena
	game          *pong.Game
	running       bool
	disposed      bool
}

// NewLobby creates an empty lobby with its arena and broadcast room.
func NewLobby(opts LobbyOptions) (*Lobby, error) {
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	arena, err := pong.NewArena(opts.Config.Arena)
	if err != nil {
		return nil, fmt.Errorf("matchmaking: cannot create lobby: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Lobby{
		id:        id,
		cfg:       opts.Config,
		recorder:  opts.Recorder,
		reports:   opts.Reports,
		logger:    logger.With("lobby", id),
		onFinish:  opts.OnFinish,
		createdAt: time.Now(),
		room:      multiplayer.NewRoom(id),
		arena:     arena,
	}, nil
}

// ID returns the lobby identifier. It doubles as the match ID.
func (l *Lobby) ID() string { return l.id }

// CreatedAt returns when the lobby was created.
func (l *Lobby) CreatedAt() time.Time { return l.createdAt }

// AddPlayer places conn in the first free slot and returns the slot index.
func (l *Lobby) AddPlayer(conn multiplayer.Conn, user multiplayer.UserID) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.disposed {
		return -1, ErrLobbyDisposed
	}
	if l.slotOf(conn.ID()) >= 0 {
		return -1, fmt.Errorf("matchmaking: connection %s already in lobby %s", conn.ID(), l.id)
	}
	for i, m := range l.members {
		if m == nil {
			l.members[i] = &member{conn: conn, user: user}
			l.room.Join(conn)
			return i, nil
		}
	}
	return -1, ErrLobbyFull
}

// Ready records a member's readiness. The first signal from each member
// counts once; when both have confirmed the game is built and started.
func (l *Lobby) Ready(conn multiplayer.ConnID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.disposed {
		return ErrLobbyDisposed
	}
	slot := l.slotOf(conn)
	if slot < 0 {
		return ErrNotMember
	}
	m := l.members[slot]
	if m.ready {
		return nil
	}
	m.ready = true
	l.confirmations++
	l.logger.Debug("player ready", "user", m.user, "confirmations", l.confirmations)

	if l.confirmations < LobbyCapacity || l.game != nil {
		return nil
	}
	return l.startGame()
}

// startGame must be called with the lock held.
func (l *Lobby) startGame() error {
	players := make([]*pong.Player, 0, LobbyCapacity)
	for slot, m := range l.members {
		side := multiplayer.SideLeft
		if slot == 1 {
			side = multiplayer.SideRight
		}
		players = append(players, pong.NewPlayer(m.conn, m.user, side, l.cfg.Paddle, l.arena, l.cfg.Game.WinScore))
	}
	ball := pong.NewBall(l.cfg.Ball, l.room)

	id := l.id
	game, err := pong.NewGame(pong.GameOptions{
		ID:            multiplayer.MatchID(id),
		Game:          l.cfg.Game,
		Recorder:      l.cfg.Recorder,
		MatchRecorder: l.recorder,
		Reports:       l.reports,
		Logger:        l.logger,
		OnFinish: func(result multiplayer.MatchResult) {
			if l.onFinish != nil {
				l.onFinish(id, result)
			}
		},
	}, players, ball, l.arena)
	if err != nil {
		return fmt.Errorf("matchmaking: cannot start game: %w", err)
	}

	l.game = game
	l.running = true
	for _, m := range l.members {
		m.inGame = true
	}
	l.room.Broadcast(multiplayer.StartGameEvent{})
	game.Start()
	l.logger.Info("game starting", "left", l.members[0].user, "right", l.members[1].user)
	return nil
}

// Move forwards a paddle move to the running game.
func (l *Lobby) Move(conn multiplayer.ConnID, position core.Vector3) {
	l.mu.Lock()
	game := l.game
	l.mu.Unlock()

	if game != nil {
		game.Move(conn, position)
	}
}

// RemovePlayer takes conn out of the lobby. Before the game exists the
// remaining member is told the match is forfeited; during a game the
// leaver forfeits and the game is disposed.
func (l *Lobby) RemovePlayer(conn multiplayer.ConnID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.disposed {
		return
	}
	slot := l.slotOf(conn)
	if slot < 0 {
		return
	}
	m := l.members[slot]
	l.members[slot] = nil
	l.room.Leave(conn)

	if l.game == nil {
		if m.ready {
			l.confirmations--
		}
		l.room.Broadcast(multiplayer.ForfeitEvent{})
		return
	}

	game := l.game
	l.game = nil
	l.running = false
	game.Forfeit(conn)
	game.Dispose()
	l.logger.Info("player left game", "user", m.user)
}

// Dispose closes the lobby: remaining members get lobby-closed and leave
// the room, and any game is disposed. Safe to call more than once.
func (l *Lobby) Dispose() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.disposed {
		return
	}
	l.disposed = true

	for i, m := range l.members {
		if m == nil {
			continue
		}
		m.conn.Send(multiplayer.LobbyClosedEvent{LobbyID: l.id})
		l.room.Leave(m.conn.ID())
		l.members[i] = nil
	}
	if l.game != nil {
		l.game.Dispose()
		l.game = nil
	}
	l.running = false
	l.arena = nil
	l.confirmations = 0
}

// Members returns the connection IDs currently in the lobby, by slot.
func (l *Lobby) Members() []multiplayer.ConnID {
	l.mu.Lock()
	defer l.mu.Unlock()

	ids := make([]multiplayer.ConnID, 0, LobbyCapacity)
	for _, m := range l.members {
		if m != nil {
			ids = append(ids, m.conn.ID())
		}
	}
	return ids
}

// Len returns the number of members.
func (l *Lobby) Len() int {
	return len(l.Members())
}

// Confirmations returns how many members have signalled readiness.
func (l *Lobby) Confirmations() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.confirmations
}

// Running reports whether a game is in progress.
func (l *Lobby) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Disposed reports whether the lobby has been closed.
func (l *Lobby) Disposed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.disposed
}

// Game returns the current game, or nil.
func (l *Lobby) Game() *pong.Game {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.game
}

// Stale reports whether the lobby never started a game within timeout.
func (l *Lobby) Stale(now time.Time, timeout time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.running && !l.disposed && now.Sub(l.createdAt) > timeout
}

func (l *Lobby) slotOf(conn multiplayer.ConnID) int {
	for i, m := range l.members {
		if m != nil && m.conn.ID() == conn {
			return i
		}
	}
	return -1
}
