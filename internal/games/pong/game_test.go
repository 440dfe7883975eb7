package pong

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/arena/internal/config"
	"github.com/vovakirdan/arena/internal/core"
	"github.com/vovakirdan/arena/internal/multiplayer"
)

func TestNewGamePlayerCount(t *testing.T) {
	cfg := config.DefaultServerConfig()
	arena, err := NewArena(cfg.Arena)
	require.NoError(t, err)
	mk := func(id string, side multiplayer.Side) *Player {
		return NewPlayer(multiplayer.NewChannelConn(multiplayer.ConnID(id), 1), multiplayer.UserID(id), side, cfg.Paddle, arena, cfg.Game.WinScore)
	}

	tests := []struct {
		name    string
		players []*Player
		wantErr error
	}{
		{"none", nil, ErrPlayerCount},
		{"one", []*Player{mk("a", multiplayer.SideLeft)}, ErrPlayerCount},
		{"three", []*Player{mk("a", multiplayer.SideLeft), mk("b", multiplayer.SideRight), mk("c", multiplayer.SideLeft)}, ErrPlayerCount},
		{"same side", []*Player{mk("a", multiplayer.SideLeft), mk("b", multiplayer.SideLeft)}, ErrSides},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGame(GameOptions{}, tt.players, NewBall(cfg.Ball, nil), arena)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, g)
		})
	}
}

func TestNewGameOrdersSides(t *testing.T) {
	cfg := config.DefaultServerConfig()
	arena, err := NewArena(cfg.Arena)
	require.NoError(t, err)
	right := NewPlayer(multiplayer.NewChannelConn("r", 1), "r", multiplayer.SideRight, cfg.Paddle, arena, 5)
	left := NewPlayer(multiplayer.NewChannelConn("l", 1), "l", multiplayer.SideLeft, cfg.Paddle, arena, 5)

	g, err := NewGame(GameOptions{}, []*Player{right, left}, NewBall(cfg.Ball, nil), arena)
	require.NoError(t, err)
	t.Cleanup(g.Dispose)

	assert.Same(t, left, g.Left())
	assert.Same(t, right, g.Right())
	assert.Same(t, right, left.Opponent())
}

func TestPaddleHit(t *testing.T) {
	rad := core.Radians(20)
	tests := []struct {
		name      string
		ball      core.Vector3
		direction core.Vector3
		paddleZ   float64
		wantDir   core.Vector3
		wantX     float64
	}{
		{
			name:      "left level hit inverts only",
			ball:      core.Vec3(-99, 0, 0),
			direction: core.Vec3(-1, 0, 0),
			wantDir:   core.Vec3(1, 0, 0),
			wantX:     -98,
		},
		{
			name:      "left hit above center slides then inverts",
			ball:      core.Vec3(-99, 0, 5),
			direction: core.Vec3(-1, 0, 0),
			wantDir:   core.Vec3(math.Cos(rad), 0, math.Sin(rad)),
			wantX:     -98,
		},
		{
			name:      "left hit below center inverts then slides",
			ball:      core.Vec3(-99, 0, -5),
			direction: core.Vec3(-1, 0, 0),
			wantDir:   core.Vec3(math.Cos(rad), 0, -math.Sin(rad)),
			wantX:     -98,
		},
		{
			name:      "right level hit",
			ball:      core.Vec3(99, 0, 10),
			direction: core.Vec3(1, 0, 0),
			paddleZ:   10,
			wantDir:   core.Vec3(-1, 0, 0),
			wantX:     98,
		},
		{
			name:      "paddle beats goal line",
			ball:      core.Vec3(-101, 0, 0),
			direction: core.Vec3(-1, 0, 0),
			wantDir:   core.Vec3(1, 0, 0),
			wantX:     -98,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil, GameOptions{})
			f.left.Move(core.Vec3(0, 0, tt.paddleZ))
			f.right.Move(core.Vec3(0, 0, tt.paddleZ))
			f.ball.SetPosition(tt.ball)
			f.ball.SetDirection(tt.direction)

			f.game.step(0)

			assert.True(t, f.ball.Direction().ApproxEqual(tt.wantDir, 1e-9), "direction = %+v, expected %+v", f.ball.Direction(), tt.wantDir)
			assert.Equal(t, tt.wantX, f.ball.Position().X)
			assert.Equal(t, 105.0, f.ball.Speed())
			assert.Zero(t, f.left.Score())
			assert.Zero(t, f.right.Score())
		})
	}
}

func TestWallBounce(t *testing.T) {
	f := newFixture(t, nil, GameOptions{})
	f.ball.SetPosition(core.Vec3(0, 0, 49))
	f.ball.SetDirection(core.Vec3(0, 0, 1))

	f.game.step(100 * time.Millisecond)

	assert.Equal(t, 50.0, f.ball.Position().Z)
	assert.Equal(t, core.Vec3(0, 0, -1), f.ball.Direction())
	assert.Equal(t, 85.0, f.ball.Speed())
}

func TestGoalScoresAndResets(t *testing.T) {
	f := newFixture(t, nil, GameOptions{})
	f.left.Move(core.Vec3(0, 0, -30))
	f.ball.SetPosition(core.Vec3(-101, 0, 30))
	f.ball.SetDirection(core.Vec3(-1, 0, 0))

	f.game.step(0)

	assert.Equal(t, 1, f.right.Score(), "crossing the left line scores for the right")
	assert.Zero(t, f.left.Score())
	assert.False(t, f.game.Finished())

	assert.Equal(t, core.Vector3{}, f.ball.Position())
	assert.Zero(t, f.ball.Speed())
	assert.NotNil(t, f.ball.RearmC())
	assert.GreaterOrEqual(t, f.ball.Direction().X, math.Cos(core.Radians(30))-1e-9, "serve goes toward the scorer inside the cone")
	assert.Equal(t, -100.0, f.left.Position().X)
	assert.Equal(t, -30.0, f.left.Position().Z)

	want := multiplayer.ScoreEvent{Left: 0, Right: 1}
	assert.Contains(t, drain(f.leftConn), multiplayer.SessionEvent(want))
	assert.Contains(t, drain(f.rightConn), multiplayer.SessionEvent(want))
}

func TestGoalOnRightScoresLeft(t *testing.T) {
	f := newFixture(t, nil, GameOptions{})
	f.ball.SetPosition(core.Vec3(101, 0, 30))

	f.game.step(0)

	assert.Equal(t, 1, f.left.Score())
	assert.Zero(t, f.right.Score())
	assert.LessOrEqual(t, f.ball.Direction().X, -math.Cos(core.Radians(30))+1e-9)
}

func TestWinningGoalFinishes(t *testing.T) {
	f := newFixture(t, nil, GameOptions{})
	f.right.score = 4
	f.left.score = 2
	f.ball.SetPosition(core.Vec3(-101, 0, 30))

	f.game.step(0)

	require.True(t, f.game.Finished())
	assert.True(t, f.right.IsWinner())

	res := f.recorder.waitCall(t)
	assert.Equal(t, multiplayer.MatchID("match-1"), res.MatchID)
	assert.Equal(t, [2]int{5, 2}, res.Score, "score is ordered right, left")
	assert.Equal(t, multiplayer.UserID("bob"), res.WinnerID)
	assert.Equal(t, multiplayer.UserID("alice"), res.LoserID)
	assert.Equal(t, multiplayer.MatchEndReasonCompleted, res.Reason)

	assert.True(t, hasEvent(drain(f.rightConn), multiplayer.EventWin))
	assert.True(t, hasEvent(drain(f.leftConn), multiplayer.EventLose))

	// Further steps are ignored.
	f.ball.SetPosition(core.Vec3(-101, 0, 30))
	f.game.step(0)
	assert.Equal(t, 5, f.right.Score())
}

func TestForfeitBeforeStart(t *testing.T) {
	var finished atomic.Int32
	f := newFixture(t, nil, GameOptions{
		OnFinish: func(multiplayer.MatchResult) { finished.Add(1) },
	})
	f.left.score = 3
	f.right.score = 4

	f.game.Forfeit("right-conn")
	f.game.Forfeit("right-conn")
	f.game.Forfeit("left-conn")

	res := f.recorder.waitCall(t)
	assert.Equal(t, [2]int{0, 5}, res.Score)
	assert.Equal(t, multiplayer.UserID("alice"), res.WinnerID)
	assert.Equal(t, multiplayer.UserID("bob"), res.LoserID)
	assert.Equal(t, multiplayer.MatchEndReasonForfeit, res.Reason)
	assert.Equal(t, int32(1), finished.Load())

	rightEvents := drain(f.rightConn)
	assert.True(t, hasEvent(rightEvents, multiplayer.EventForfeit))
	assert.True(t, hasEvent(rightEvents, multiplayer.EventLose))
	assert.True(t, hasEvent(drain(f.leftConn), multiplayer.EventWin))

	select {
	case extra := <-f.recorder.calls:
		t.Fatalf("unexpected second recorder call: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestForfeitUnknownConnectionIgnored(t *testing.T) {
	f := newFixture(t, nil, GameOptions{})
	f.game.Forfeit("stranger")
	assert.False(t, f.game.Finished())
}

func TestStartEmitsInitAndRunsLoop(t *testing.T) {
	f := newFixture(t, func(c *config.ServerConfig) {
		c.Game.WarmupDelay = 0
	}, GameOptions{})

	f.game.Start()
	require.True(t, f.game.Started())

	initEvt := waitForEvent(t, f.leftConn, func(evt multiplayer.SessionEvent) bool {
		return evt.EventName() == multiplayer.EventInitPlayer
	})
	assert.Equal(t, multiplayer.SideLeft, initEvt.(multiplayer.InitPlayerEvent).Side)

	f.game.Move("right-conn", core.Vec3(0, 0, 20))
	waitForEvent(t, f.leftConn, func(evt multiplayer.SessionEvent) bool {
		move, ok := evt.(multiplayer.PlayerMoveEvent)
		return ok && move.Side == multiplayer.SideRight && move.Position.Z == 20
	})
	waitForEvent(t, f.rightConn, func(evt multiplayer.SessionEvent) bool {
		return evt.EventName() == multiplayer.EventBallMove
	})
}

func TestMoveBeforeStartAppliesImmediately(t *testing.T) {
	f := newFixture(t, nil, GameOptions{})
	f.game.Move("left-conn", core.Vec3(0, 0, -15))
	assert.Equal(t, -15.0, f.left.Position().Z)
}

func TestFinishOnceUnderRace(t *testing.T) {
	var finished atomic.Int32
	f := newFixture(t, func(c *config.ServerConfig) {
		c.Game.WarmupDelay = 0
		c.Game.TickRate = 1000
	}, GameOptions{
		OnFinish: func(multiplayer.MatchResult) { finished.Add(1) },
	})
	// The first tick will score the winning goal for the right side.
	f.right.score = 4
	f.ball.SetPosition(core.Vec3(-100.5, 0, 30))

	f.game.Start()

	var wg sync.WaitGroup
	for _, conn := range []multiplayer.ConnID{"left-conn", "right-conn", "left-conn", "right-conn"} {
		wg.Add(1)
		go func(id multiplayer.ConnID) {
			defer wg.Done()
			f.game.Forfeit(id)
		}(conn)
	}
	wg.Wait()

	select {
	case <-f.game.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("game loop did not exit")
	}

	f.recorder.waitCall(t)
	select {
	case extra := <-f.recorder.calls:
		t.Fatalf("unexpected second recorder call: %+v", extra)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, int32(1), finished.Load())
	assert.Len(t, f.recorder.Results(), 1)
}

func TestDisposeIsIdempotent(t *testing.T) {
	f := newFixture(t, func(c *config.ServerConfig) {
		c.Game.WarmupDelay = time.Hour
	}, GameOptions{})

	f.game.Start()
	f.game.Dispose()
	f.game.Dispose()

	select {
	case <-f.game.Done():
	default:
		t.Fatal("Done() not closed after Dispose()")
	}

	f.game.Forfeit("left-conn")
	f.game.Move("left-conn", core.Vec3(0, 0, 5))
	assert.False(t, f.game.Finished())
	assert.Nil(t, f.ball.RearmC())

	select {
	case res := <-f.recorder.calls:
		t.Fatalf("disposed game recorded %+v", res)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestDisposeBeforeStart(t *testing.T) {
	f := newFixture(t, nil, GameOptions{})
	f.game.Dispose()
	f.game.Start()
	assert.False(t, f.game.Started())
}

func TestRecorderRetries(t *testing.T) {
	f := newFixture(t, nil, GameOptions{})
	f.recorder.failFor = 2

	f.game.Forfeit("left-conn")

	for i := 0; i < 3; i++ {
		f.recorder.waitCall(t)
	}
	assert.Len(t, f.recorder.Results(), 1)
}

func TestReportsTracksRecording(t *testing.T) {
	var reports sync.WaitGroup
	release := make(chan struct{})
	f := newFixture(t, nil, GameOptions{
		Reports: &reports,
		MatchRecorder: multiplayer.MatchRecorderFunc(func(_ context.Context, result multiplayer.MatchResult) (multiplayer.MatchRecord, error) {
			<-release
			return multiplayer.MatchRecord{ID: 1, MatchResult: result}, nil
		}),
	})

	f.game.Forfeit("left-conn")

	waited := make(chan struct{})
	go func() {
		reports.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("report counter released before the recorder returned")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-waited:
	case <-time.After(2 * time.Second):
		t.Fatal("report counter never released")
	}
}
