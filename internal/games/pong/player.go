package pong

import (
	"math"

	"github.com/vovakirdan/arena/internal/config"
	"github.com/vovakirdan/arena/internal/core"
	"github.com/vovakirdan/arena/internal/multiplayer"
)

// Player is one paddle. Length and width are half-extents along z and x.
// Like Ball, a Player belongs to one Game goroutine.
type Player struct {
	conn     multiplayer.Conn
	user     multiplayer.UserID
	side     multiplayer.Side
	arena    *Arena
	position core.Vector3
	length   float64
	width    float64
	speed    float64
	score    int
	winScore int
	isWinner bool
	opponent *Player
	disposed bool
}

// NewPlayer creates a paddle at its side's home position.
func NewPlayer(conn multiplayer.Conn, user multiplayer.UserID, side multiplayer.Side, cfg config.PaddleConfig, arena *Arena, winScore int) *Player {
	p := &Player{
		conn:     conn,
		user:     user,
		side:     side,
		arena:    arena,
		length:   cfg.Length,
		width:    cfg.Width,
		speed:    cfg.Speed,
		winScore: winScore,
	}
	p.position.X = arena.Home(side == multiplayer.SideLeft)
	return p
}

// Conn returns the player's connection.
func (p *Player) Conn() multiplayer.Conn { return p.conn }

// User returns the player's identity.
func (p *Player) User() multiplayer.UserID { return p.user }

// Side returns which half the player defends.
func (p *Player) Side() multiplayer.Side { return p.side }

// Position returns the paddle center.
func (p *Player) Position() core.Vector3 { return p.position }

// Length returns the half-extent along z.
func (p *Player) Length() float64 { return p.length }

// Width returns the half-extent along x.
func (p *Player) Width() float64 { return p.width }

// Score returns the player's goals.
func (p *Player) Score() int { return p.score }

// IsWinner reports whether the player has won.
func (p *Player) IsWinner() bool { return p.isWinner }

// Opponent returns the other paddle, or nil.
func (p *Player) Opponent() *Player { return p.opponent }

// SetOpponent links the two paddles so position updates reach both.
func (p *Player) SetOpponent(o *Player) {
	p.opponent = o
}

// CheckCollision reports whether the ball center is strictly inside the
// paddle's bounding box.
func (p *Player) CheckCollision(b *Ball) bool {
	d := b.Position().Sub(p.position)
	return math.Abs(d.X) < p.width && math.Abs(d.Z) < p.length
}

// AddScore adds a goal. It returns true exactly once, on the goal that
// reaches the winning score.
func (p *Player) AddScore() bool {
	p.score++
	if p.score == p.winScore && !p.isWinner {
		p.isWinner = true
		return true
	}
	return false
}

// forceResult overwrites the score, used when a match is forfeited.
func (p *Player) forceResult(score int, winner bool) {
	p.score = score
	p.isWinner = winner
}

// Reset moves the paddle back to its home x. z is kept.
func (p *Player) Reset() {
	p.position.X = p.arena.Home(p.side == multiplayer.SideLeft)
	p.position.Y = 0
}

// Move sets the paddle z, keeping the paddle inside the arena. x stays home.
// A non-finite z is ignored.
func (p *Player) Move(position core.Vector3) {
	if math.IsNaN(position.Z) || math.IsInf(position.Z, 0) {
		return
	}
	limit := max(p.arena.HalfHeight()-p.length, 0)
	p.position.Z = core.ClampF(position.Z, -limit, limit)
}

// Notify sends evt to the player's connection.
func (p *Player) Notify(evt multiplayer.SessionEvent) {
	if p.disposed || p.conn == nil {
		return
	}
	p.conn.Send(evt)
}

// EmitInit echoes the starting position and side to the player, along with
// the dimensions the client needs to draw the field.
func (p *Player) EmitInit(ballRadius float64) {
	p.Notify(multiplayer.InitPlayerEvent{
		Position:   p.position,
		Side:       p.side,
		Length:     p.length,
		Width:      p.width,
		Speed:      p.speed,
		BallRadius: ballRadius,
	})
}

// EmitPosition sends the paddle position to the player and the opponent.
func (p *Player) EmitPosition() {
	evt := multiplayer.PlayerMoveEvent{Position: p.position, Side: p.side}
	p.Notify(evt)
	if p.opponent != nil {
		p.opponent.Notify(evt)
	}
}

// EmitWin tells the player they won.
func (p *Player) EmitWin() { p.Notify(multiplayer.WinEvent{}) }

// EmitLose tells the player they lost.
func (p *Player) EmitLose() { p.Notify(multiplayer.LoseEvent{}) }

// EmitForfeit sends the forfeit notice.
func (p *Player) EmitForfeit() { p.Notify(multiplayer.ForfeitEvent{}) }

// Dispose releases the connection and opponent references. Later emits are no-ops.
func (p *Player) Dispose() {
	p.disposed = true
	p.conn = nil
	p.opponent = nil
}
