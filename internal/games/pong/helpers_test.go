package pong

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/arena/internal/config"
	"github.com/vovakirdan/arena/internal/multiplayer"
)

type fakeRecorder struct {
	mu      sync.Mutex
	results []multiplayer.MatchResult
	failFor int // number of calls that fail before succeeding
	calls   chan multiplayer.MatchResult
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{calls: make(chan multiplayer.MatchResult, 16)}
}

func (r *fakeRecorder) RecordMatch(_ context.Context, result multiplayer.MatchResult) (multiplayer.MatchRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls <- result
	if r.failFor > 0 {
		r.failFor--
		return multiplayer.MatchRecord{}, context.DeadlineExceeded
	}
	r.results = append(r.results, result)
	return multiplayer.MatchRecord{ID: int64(len(r.results)), MatchResult: result}, nil
}

func (r *fakeRecorder) Results() []multiplayer.MatchResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]multiplayer.MatchResult, len(r.results))
	copy(out, r.results)
	return out
}

func (r *fakeRecorder) waitCall(t *testing.T) multiplayer.MatchResult {
	t.Helper()
	select {
	case res := <-r.calls:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for recorder call")
		return multiplayer.MatchResult{}
	}
}

type fixture struct {
	cfg       config.ServerConfig
	arena     *Arena
	room      *multiplayer.Room
	leftConn  *multiplayer.ChannelConn
	rightConn *multiplayer.ChannelConn
	left      *Player
	right     *Player
	ball      *Ball
	recorder  *fakeRecorder
	game      *Game
}

func newFixture(t *testing.T, mutate func(*config.ServerConfig), opts GameOptions) *fixture {
	t.Helper()

	cfg := config.DefaultServerConfig()
	cfg.Recorder.Backoff = time.Millisecond
	if mutate != nil {
		mutate(&cfg)
	}

	arena, err := NewArena(cfg.Arena)
	require.NoError(t, err)

	f := &fixture{
		cfg:       cfg,
		arena:     arena,
		room:      multiplayer.NewRoom("test"),
		leftConn:  multiplayer.NewChannelConn("left-conn", 4096),
		rightConn: multiplayer.NewChannelConn("right-conn", 4096),
		recorder:  newFakeRecorder(),
	}
	f.room.Join(f.leftConn)
	f.room.Join(f.rightConn)
	f.left = NewPlayer(f.leftConn, "alice", multiplayer.SideLeft, cfg.Paddle, arena, cfg.Game.WinScore)
	f.right = NewPlayer(f.rightConn, "bob", multiplayer.SideRight, cfg.Paddle, arena, cfg.Game.WinScore)
	f.ball = NewBall(cfg.Ball, f.room)

	if opts.ID == "" {
		opts.ID = "match-1"
	}
	opts.Game = cfg.Game
	opts.Recorder = cfg.Recorder
	if opts.MatchRecorder == nil {
		opts.MatchRecorder = f.recorder
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(1))
	}

	f.game, err = NewGame(opts, []*Player{f.left, f.right}, f.ball, arena)
	require.NoError(t, err)
	t.Cleanup(f.game.Dispose)
	return f
}

// drain returns every event currently buffered on conn.
func drain(conn *multiplayer.ChannelConn) []multiplayer.SessionEvent {
	var out []multiplayer.SessionEvent
	for {
		select {
		case evt := <-conn.Events():
			out = append(out, evt)
		default:
			return out
		}
	}
}

func waitForEvent(t *testing.T, conn *multiplayer.ChannelConn, match func(multiplayer.SessionEvent) bool) multiplayer.SessionEvent {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case evt := <-conn.Events():
			if match(evt) {
				return evt
			}
		case <-timeout:
			t.Fatal("timed out waiting for event")
			return nil
		}
	}
}

func hasEvent(events []multiplayer.SessionEvent, name string) bool {
	for _, evt := range events {
		if evt.EventName() == name {
			return true
		}
	}
	return false
}
