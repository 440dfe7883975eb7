package matchmaking

import (
	"context"
	"testing"
	"time"

	"github.com/vovakirdan/arena/internal/config"
	"github.com/vovakirdan/arena/internal/multiplayer"
)

func testConfig() config.ServerConfig {
	cfg := config.DefaultServerConfig()
	cfg.Game.WarmupDelay = time.Hour // keep games from ticking unless a test wants it
	cfg.Recorder.Backoff = time.Millisecond
	return cfg
}

type recorded struct {
	results chan multiplayer.MatchResult
}

func newRecorded() *recorded {
	return &recorded{results: make(chan multiplayer.MatchResult, 8)}
}

func (r *recorded) RecordMatch(_ context.Context, result multiplayer.MatchResult) (multiplayer.MatchRecord, error) {
	r.results <- result
	return multiplayer.MatchRecord{ID: 1, MatchResult: result}, nil
}

func (r *recorded) wait(t *testing.T) multiplayer.MatchResult {
	t.Helper()
	select {
	case res := <-r.results:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for match result")
		return multiplayer.MatchResult{}
	}
}

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

func names(events []multiplayer.SessionEvent) []string {
	out := make([]string, 0, len(events))
	for _, evt := range events {
		out = append(out, evt.EventName())
	}
	return out
}

func countEvent(events []multiplayer.SessionEvent, name string) int {
	n := 0
	for _, evt := range events {
		if evt.EventName() == name {
			n++
		}
	}
	return n
}
