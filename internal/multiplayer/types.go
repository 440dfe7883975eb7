// Package multiplayer provides the transport-neutral plumbing shared by the
// matchmaking layer, the pong simulation and the network gateways:
// connection handles, the connection registry, rooms, wire events and codecs.
package multiplayer

import (
	"context"
	"time"
)

// ConnID uniquely identifies one live transport connection (a WebSocket or
// an SSH channel). A user may hold several at once.
type ConnID string

// UserID identifies a player across connections.
type UserID string

// MatchID uniquely identifies a game session.
type MatchID string

// Side is the half of the arena a player defends.
type Side string

const (
	SideLeft  Side = "left"
	SideRight Side = "right"
)

// String returns the wire name of the side.
func (s Side) String() string {
	return string(s)
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideLeft {
		return SideRight
	}
	return SideLeft
}

// MatchEndReason describes why a match ended.
type MatchEndReason string

const (
	MatchEndReasonCompleted MatchEndReason = "completed" // A player reached the winning score
	MatchEndReasonForfeit   MatchEndReason = "forfeit"   // A player left mid-game
)

// MatchResult contains the outcome of a finished match.
type MatchResult struct {
	MatchID MatchID
	// Score is ordered [right, left].
	Score    [2]int
	WinnerID UserID
	LoserID  UserID
	Reason   MatchEndReason
	Duration time.Duration
	EndedAt  time.Time
}

// MatchRecord is a persisted MatchResult.
type MatchRecord struct {
	ID int64
	MatchResult
}

// MatchRecorder persists finished matches and applies rank adjustments.
// This keeps the simulation free of any dependency on the storage package.
type MatchRecorder interface {
	RecordMatch(ctx context.Context, result MatchResult) (MatchRecord, error)
}

// MatchRecorderFunc adapts a plain function to MatchRecorder.
type MatchRecorderFunc func(ctx context.Context, result MatchResult) (MatchRecord, error)

// RecordMatch calls f.
func (f MatchRecorderFunc) RecordMatch(ctx context.Context, result MatchResult) (MatchRecord, error) {
	return f(ctx, result)
}
