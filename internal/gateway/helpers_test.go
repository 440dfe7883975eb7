package gateway

import (
	"testing"
	"time"

	"github.com/vovakirdan/arena/internal/matchmaking"
)

type fakeDispatcher struct {
	msgs chan matchmaking.CoordinatorMessage
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{msgs: make(chan matchmaking.CoordinatorMessage, 64)}
}

func (d *fakeDispatcher) Send(msg matchmaking.CoordinatorMessage) {
	d.msgs <- msg
}

// expect waits for the next message and asserts its type.
func expect[T matchmaking.CoordinatorMessage](t *testing.T, d *fakeDispatcher) T {
	t.Helper()
	select {
	case msg := <-d.msgs:
		got, ok := msg.(T)
		if !ok {
			var want T
			t.Fatalf("got %T, expected %T", msg, want)
		}
		return got
	case <-time.After(2 * time.Second):
		var want T
		t.Fatalf("timed out waiting for %T", want)
	}
	panic("unreachable")
}
