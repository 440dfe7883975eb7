package pong

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vovakirdan/arena/internal/config"
	"github.com/vovakirdan/arena/internal/core"
	"github.com/vovakirdan/arena/internal/multiplayer"
)

func newTestPlayer(t *testing.T, side multiplayer.Side) (*Player, *multiplayer.ChannelConn) {
	t.Helper()
	cfg := config.DefaultServerConfig()
	arena, err := NewArena(cfg.Arena)
	require.NoError(t, err)
	conn := multiplayer.NewChannelConn(multiplayer.ConnID(side), 16)
	return NewPlayer(conn, multiplayer.UserID(side), side, cfg.Paddle, arena, cfg.Game.WinScore), conn
}

func TestPlayerHome(t *testing.T) {
	left, _ := newTestPlayer(t, multiplayer.SideLeft)
	right, _ := newTestPlayer(t, multiplayer.SideRight)

	assert.Equal(t, -100.0, left.Position().X)
	assert.Equal(t, 100.0, right.Position().X)
}

func TestPlayerCheckCollision(t *testing.T) {
	tests := []struct {
		name     string
		ball     core.Vector3
		expected bool
	}{
		{"center", core.Vec3(-100, 0, 0), true},
		{"inside corner", core.Vec3(-98.5, 0, 11.9), true},
		{"on width edge", core.Vec3(-98, 0, 0), false},
		{"on length edge", core.Vec3(-100, 0, 12), false},
		{"far away", core.Vec3(0, 0, 0), false},
	}

	p, _ := newTestPlayer(t, multiplayer.SideLeft)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBall(config.DefaultServerConfig().Ball, nil)
			b.SetPosition(tt.ball)
			assert.Equal(t, tt.expected, p.CheckCollision(b))
		})
	}
}

func TestPlayerAddScore(t *testing.T) {
	p, _ := newTestPlayer(t, multiplayer.SideRight)

	for i := 1; i < 5; i++ {
		assert.False(t, p.AddScore(), "goal %d", i)
		assert.False(t, p.IsWinner())
	}
	assert.True(t, p.AddScore())
	assert.True(t, p.IsWinner())
	assert.Equal(t, 5, p.Score())

	assert.False(t, p.AddScore(), "winning flag flips only once")
	assert.True(t, p.IsWinner())
}

func TestPlayerMoveAndReset(t *testing.T) {
	tests := []struct {
		name     string
		z        float64
		expected float64
	}{
		{"inside", 20, 20},
		{"above the arena", 1000, 38},
		{"below the arena", -1000, -38},
		{"NaN is ignored", math.NaN(), 5},
		{"+Inf is ignored", math.Inf(1), 5},
		{"-Inf is ignored", math.Inf(-1), 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestPlayer(t, multiplayer.SideLeft)
			p.Move(core.Vec3(0, 0, 5))

			p.Move(core.Vec3(30, 7, tt.z))
			assert.Equal(t, core.Vec3(-100, 0, tt.expected), p.Position(), "only a finite z follows the request")
		})
	}

	p, _ := newTestPlayer(t, multiplayer.SideLeft)
	p.Move(core.Vec3(0, 0, -1000))
	p.position.X = -90
	p.Reset()
	assert.Equal(t, core.Vec3(-100, 0, -38), p.Position())
}

func TestPlayerEmits(t *testing.T) {
	left, leftConn := newTestPlayer(t, multiplayer.SideLeft)
	right, rightConn := newTestPlayer(t, multiplayer.SideRight)
	left.SetOpponent(right)
	right.SetOpponent(left)

	left.EmitInit(2)
	assert.Equal(t, []multiplayer.SessionEvent{
		multiplayer.InitPlayerEvent{
			Position:   core.Vec3(-100, 0, 0),
			Side:       multiplayer.SideLeft,
			Length:     12,
			Width:      2,
			Speed:      3,
			BallRadius: 2,
		},
	}, drain(leftConn))
	assert.Empty(t, drain(rightConn))

	left.EmitPosition()
	want := multiplayer.PlayerMoveEvent{Position: core.Vec3(-100, 0, 0), Side: multiplayer.SideLeft}
	assert.Equal(t, []multiplayer.SessionEvent{want}, drain(leftConn))
	assert.Equal(t, []multiplayer.SessionEvent{want}, drain(rightConn))

	left.EmitForfeit()
	left.EmitLose()
	right.EmitWin()
	assert.Equal(t, []multiplayer.SessionEvent{multiplayer.ForfeitEvent{}, multiplayer.LoseEvent{}}, drain(leftConn))
	assert.Equal(t, []multiplayer.SessionEvent{multiplayer.WinEvent{}}, drain(rightConn))

	left.Dispose()
	left.EmitPosition()
	assert.Empty(t, drain(leftConn))
	assert.Empty(t, drain(rightConn))
}
