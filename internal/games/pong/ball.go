package pong

import (
	"time"

	"github.com/vovakirdan/arena/internal/config"
	"github.com/vovakirdan/arena/internal/core"
	"github.com/vovakirdan/arena/internal/multiplayer"
)

// Ball is the simulated ball. It is owned by a single Game goroutine and is
// not safe for concurrent use.
type Ball struct {
	position  core.Vector3
	direction core.Vector3 // always unit length or zero
	speed     float64
	radius    float64
	slide     core.Quaternion

	cfg   config.BallConfig
	room  *multiplayer.Room
	rearm *time.Timer
}

// NewBall creates a ball at the arena center, moving at the default speed
// once it is aimed. room may be nil.
func NewBall(cfg config.BallConfig, room *multiplayer.Room) *Ball {
	return &Ball{
		speed:  cfg.DefaultSpeed,
		radius: cfg.Radius,
		slide:  core.QuaternionFromAxisAngle(core.Up, core.Radians(cfg.SlideAngle)),
		cfg:    cfg,
		room:   room,
	}
}

// Position returns the ball position.
func (b *Ball) Position() core.Vector3 { return b.position }

// Direction returns the unit direction of travel.
func (b *Ball) Direction() core.Vector3 { return b.direction }

// Speed returns the scalar speed in arena units per second.
func (b *Ball) Speed() float64 { return b.speed }

// Radius returns the ball radius.
func (b *Ball) Radius() float64 { return b.radius }

// SetPosition moves the ball.
func (b *Ball) SetPosition(p core.Vector3) {
	b.position = p
}

// SetDirection stores a normalized copy of d.
func (b *Ball) SetDirection(d core.Vector3) {
	b.direction = d.Normalize()
}

// InvertX reverses travel along the goal axis.
func (b *Ball) InvertX() {
	b.direction.X = -b.direction.X
}

// InvertZ reverses travel along the bounce axis.
func (b *Ball) InvertZ() {
	b.direction.Z = -b.direction.Z
}

// IncreaseSpeed adds one speed step unless that would pass the maximum.
func (b *Ball) IncreaseSpeed() {
	if next := b.speed + b.cfg.SpeedStep; next <= b.cfg.MaxSpeed {
		b.speed = next
	}
}

// Slide curves the ball by rotating its direction with the slide quaternion.
func (b *Ball) Slide() {
	b.direction = b.direction.ApplyQuaternion(b.slide).Normalize()
}

// Advance integrates the position over dt.
func (b *Ball) Advance(dt time.Duration) {
	b.position = b.position.Add(b.direction.Scale(b.speed * dt.Seconds()))
}

// Reset centers the ball, stops it and arms the re-arm timer. The ball stays
// still until the owner calls Rearm after RearmC fires.
func (b *Ball) Reset() {
	b.position = core.Vector3{}
	b.speed = 0
	b.stopTimer()
	b.rearm = time.NewTimer(b.cfg.RearmDelay)
}

// RearmC returns the pending re-arm timer channel, or nil when none is armed.
// Receiving from a nil channel blocks forever, so it is safe in a select.
func (b *Ball) RearmC() <-chan time.Time {
	if b.rearm == nil {
		return nil
	}
	return b.rearm.C
}

// Rearm restores the default speed and clears the timer.
func (b *Ball) Rearm() {
	b.stopTimer()
	b.speed = b.cfg.DefaultSpeed
}

// Emit sends the ball position to every room member.
func (b *Ball) Emit() {
	if b.room == nil {
		return
	}
	b.room.Broadcast(multiplayer.BallMoveEvent{Position: b.position})
}

// Dispose stops the re-arm timer and detaches the ball from its room.
func (b *Ball) Dispose() {
	b.stopTimer()
	b.room = nil
}

func (b *Ball) stopTimer() {
	if b.rearm != nil {
		b.rearm.Stop()
		b.rearm = nil
	}
}
