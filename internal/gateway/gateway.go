// Package gateway adapts network transports to the matchmaking coordinator.
// Each transport turns a client into a multiplayer.ChannelConn, forwards
// decoded frames as coordinator messages and drains outbound events back to
// the client.
package gateway

import (
	"github.com/google/uuid"

	"github.com/vovakirdan/arena/internal/matchmaking"
	"github.com/vovakirdan/arena/internal/multiplayer"
)

// eventBuffer is the per-connection outbound queue length.
const eventBuffer = 256

// Dispatcher receives coordinator messages. *matchmaking.Coordinator
// satisfies it.
type Dispatcher interface {
	Send(msg matchmaking.CoordinatorMessage)
}

var _ Dispatcher = (*matchmaking.Coordinator)(nil)

func newConnID(transport string) multiplayer.ConnID {
	return multiplayer.ConnID(transport + "-" + uuid.NewString())
}

// forward decodes one frame and hands it to the dispatcher. Undecodable
// frames are answered with an error event on conn.
func forward(d Dispatcher, codec multiplayer.Codec, conn multiplayer.Conn, frame []byte) {
	evt, err := codec.Decode(frame)
	if err != nil {
		conn.Send(multiplayer.ErrorEvent{Message: err.Error()})
		return
	}
	d.Send(matchmaking.InboundMsg{ConnID: conn.ID(), Event: evt})
}
