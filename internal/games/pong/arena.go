// Package pong implements the authoritative two-player Pong simulation:
// the arena, the ball, both paddles and the fixed-rate game loop that ties
// them together.
package pong

import (
	"errors"
	"fmt"

	"github.com/vovakirdan/arena/internal/config"
	"github.com/vovakirdan/arena/internal/core"
)

// ErrArenaSize is returned for arenas without a positive width and height.
var ErrArenaSize = errors.New("pong: arena dimensions must be positive")

// Collision is the result of testing the ball against the arena bounds.
type Collision int

const (
	CollisionNone   Collision = iota
	CollisionBounce           // Ball left the bounce axis and was clamped back
	CollisionGoal             // Ball crossed a goal line
)

// String returns a human-readable collision name.
func (c Collision) String() string {
	switch c {
	case CollisionNone:
		return "none"
	case CollisionBounce:
		return "bounce"
	case CollisionGoal:
		return "goal"
	default:
		return "unknown"
	}
}

// Arena is the play field centered on the origin. Width runs along x (the
// goal axis) and Height along z (the bounce axis).
type Arena struct {
	Width  float64
	Height float64
}

// NewArena creates an arena from configuration.
func NewArena(cfg config.ArenaConfig) (*Arena, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: %vx%v", ErrArenaSize, cfg.Width, cfg.Height)
	}
	return &Arena{Width: cfg.Width, Height: cfg.Height}, nil
}

// HalfWidth returns the distance from the center to a goal line.
func (a *Arena) HalfWidth() float64 {
	return a.Width / 2
}

// HalfHeight returns the distance from the center to a bounce wall.
func (a *Arena) HalfHeight() float64 {
	return a.Height / 2
}

// Home returns the paddle x coordinate for a side.
func (a *Arena) Home(left bool) float64 {
	if left {
		return -a.HalfWidth()
	}
	return a.HalfWidth()
}

// CheckCollision tests the ball against the arena bounds. On a bounce the
// ball's z is clamped onto the wall; inverting the direction is left to the
// caller. Goals are reported without moving the ball.
func (a *Arena) CheckCollision(b *Ball) Collision {
	pos := b.Position()
	hh := a.HalfHeight()
	if pos.Z > hh || pos.Z < -hh {
		pos.Z = core.ClampF(pos.Z, -hh, hh)
		b.SetPosition(pos)
		return CollisionBounce
	}
	if pos.X > a.HalfWidth() || pos.X < -a.HalfWidth() {
		return CollisionGoal
	}
	return CollisionNone
}
