package multiplayer

import (
	"fmt"
	"time"

	"github.com/vovakirdan/arena/internal/core"
)

// SessionEvent represents an event sent to a connection.
type SessionEvent interface {
	// EventName returns the wire name of the event.
	EventName() string
	sessionEvent()
}

// InboundEvent represents an event received from a connection.
type InboundEvent interface {
	EventName() string
	inboundEvent()
}

// Outbound event names.
const (
	EventStartGame       = "start-game"
	EventInitPlayer      = "init-player"
	EventBallMove        = "ball-move"
	EventPlayerMove      = "player-move"
	EventScore           = "score"
	EventWin             = "win"
	EventLose            = "lose"
	EventForfeit         = "ff"
	EventReceiveInvite   = "receive-invite"
	EventInviteAccepted  = "invite-accepted"
	EventInviteRejected  = "invite-rejected"
	EventInviteConfirmed = "invite-confirmed"
	EventQueued          = "queued"
	EventLobbyJoined     = "lobby-joined"
	EventLobbyClosed     = "lobby-closed"
	EventError           = "error"
)

// Inbound event names. player-move is shared with the outbound set.
const (
	EventPlayerReady   = "player-ready"
	EventDisconnect    = "disconnect"
	EventSendInvite    = "send-invite"
	EventRespondInvite = "respond-invite"
	EventConfirmInvite = "confirm-invite"
	EventJoinQueue     = "join-queue"
	EventLeaveQueue    = "leave-queue"
)

// StartGameEvent is broadcast once both lobby members are ready.
type StartGameEvent struct{}

func (StartGameEvent) EventName() string { return EventStartGame }
func (StartGameEvent) sessionEvent()     {}

// InitPlayerEvent echoes a player's starting position and side to itself.
// Length and Width are the paddle half-extents.
type InitPlayerEvent struct {
	Position   core.Vector3 `json:"position"`
	Side       Side         `json:"side"`
	Length     float64      `json:"length"`
	Width      float64      `json:"width"`
	Speed      float64      `json:"speed"`
	BallRadius float64      `json:"ballRadius"`
}

func (InitPlayerEvent) EventName() string { return EventInitPlayer }
func (InitPlayerEvent) sessionEvent()     {}

// BallMoveEvent carries the ball position.
type BallMoveEvent struct {
	Position core.Vector3 `json:"position"`
}

func (BallMoveEvent) EventName() string { return EventBallMove }
func (BallMoveEvent) sessionEvent()     {}

// PlayerMoveEvent carries a paddle position.
type PlayerMoveEvent struct {
	Position core.Vector3 `json:"position"`
	Side     Side         `json:"side"`
}

func (PlayerMoveEvent) EventName() string { return EventPlayerMove }
func (PlayerMoveEvent) sessionEvent()     {}

// ScoreEvent is broadcast after every goal that does not end the match.
type ScoreEvent struct {
	Left  int `json:"left"`
	Right int `json:"right"`
}

func (ScoreEvent) EventName() string { return EventScore }
func (ScoreEvent) sessionEvent()     {}

// WinEvent is sent to the winner of a match.
type WinEvent struct{}

func (WinEvent) EventName() string { return EventWin }
func (WinEvent) sessionEvent()     {}

// LoseEvent is sent to the loser of a match.
type LoseEvent struct{}

func (LoseEvent) EventName() string { return EventLose }
func (LoseEvent) sessionEvent()     {}

// ForfeitEvent notifies that the match ended because a player left.
type ForfeitEvent struct{}

func (ForfeitEvent) EventName() string { return EventForfeit }
func (ForfeitEvent) sessionEvent()     {}

// InviteParty is one side of an invitation as seen on the wire.
type InviteParty struct {
	UserID   UserID `json:"userId"`
	Accepted bool   `json:"accepted"`
}

// InvitePayload is the wire form of an invitation.
type InvitePayload struct {
	GameID    string      `json:"gameId"`
	Inviter   InviteParty `json:"inviter"`
	Invited   InviteParty `json:"invited"`
	CreatedAt time.Time   `json:"createdAt"`
}

// ReceiveInviteEvent is sent to every connection of the invited user.
type ReceiveInviteEvent struct {
	Invite InvitePayload `json:"invite"`
}

func (ReceiveInviteEvent) EventName() string { return EventReceiveInvite }
func (ReceiveInviteEvent) sessionEvent()     {}

// InviteAcceptedEvent tells the inviter that the invited user accepted.
type InviteAcceptedEvent struct {
	GameID string `json:"gameId"`
}

func (InviteAcceptedEvent) EventName() string { return EventInviteAccepted }
func (InviteAcceptedEvent) sessionEvent()     {}

// InviteRejectedEvent tells a party that the invitation is gone.
type InviteRejectedEvent struct {
	GameID string `json:"gameId"`
}

func (InviteRejectedEvent) EventName() string { return EventInviteRejected }
func (InviteRejectedEvent) sessionEvent()     {}

// InviteConfirmedEvent carries the finalized invitation to both parties.
type InviteConfirmedEvent struct {
	Invite InvitePayload `json:"invite"`
}

func (InviteConfirmedEvent) EventName() string { return EventInviteConfirmed }
func (InviteConfirmedEvent) sessionEvent()     {}

// QueuedEvent acknowledges a join-queue request.
type QueuedEvent struct {
	Position int `json:"position"`
}

func (QueuedEvent) EventName() string { return EventQueued }
func (QueuedEvent) sessionEvent()     {}

// LobbyJoinedEvent tells a connection which lobby and slot it was placed in.
type LobbyJoinedEvent struct {
	LobbyID string `json:"lobbyId"`
	Slot    int    `json:"slot"`
}

func (LobbyJoinedEvent) EventName() string { return EventLobbyJoined }
func (LobbyJoinedEvent) sessionEvent()     {}

// LobbyClosedEvent is sent to members still present when a lobby is disposed.
type LobbyClosedEvent struct {
	LobbyID string `json:"lobbyId"`
}

func (LobbyClosedEvent) EventName() string { return EventLobbyClosed }
func (LobbyClosedEvent) sessionEvent()     {}

// ErrorEvent surfaces a failed request to the originating connection.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (ErrorEvent) EventName() string { return EventError }
func (ErrorEvent) sessionEvent()     {}

// InviteOption is the answer to an invitation step.
type InviteOption string

const (
	InviteAccept InviteOption = "accept"
	InviteReject InviteOption = "reject"
)

// Valid reports whether o is accept or reject.
func (o InviteOption) Valid() bool {
	return o == InviteAccept || o == InviteReject
}

// ReadyInput signals that a lobby member is ready to play.
type ReadyInput struct{}

func (ReadyInput) EventName() string { return EventPlayerReady }
func (ReadyInput) inboundEvent()     {}

// MoveInput requests a paddle move. Only the z component is used.
type MoveInput struct {
	Position core.Vector3 `json:"position"`
}

func (MoveInput) EventName() string { return EventPlayerMove }
func (MoveInput) inboundEvent()     {}

func (m MoveInput) validate() error {
	if !m.Position.IsFinite() {
		return fmt.Errorf("%w: non-finite position", ErrInvalidPayload)
	}
	return nil
}

// DisconnectInput is an explicit request to leave.
type DisconnectInput struct{}

func (DisconnectInput) EventName() string { return EventDisconnect }
func (DisconnectInput) inboundEvent()     {}

// SendInviteInput challenges another user.
type SendInviteInput struct {
	InvitedUserID UserID `json:"invitedUserId"`
}

func (SendInviteInput) EventName() string { return EventSendInvite }
func (SendInviteInput) inboundEvent()     {}

// RespondInviteInput is the invited user's answer.
type RespondInviteInput struct {
	Option InviteOption `json:"option"`
}

func (RespondInviteInput) EventName() string { return EventRespondInvite }
func (RespondInviteInput) inboundEvent()     {}

// ConfirmInviteInput is the inviter's final answer.
type ConfirmInviteInput struct {
	Option InviteOption `json:"option"`
}

func (ConfirmInviteInput) EventName() string { return EventConfirmInvite }
func (ConfirmInviteInput) inboundEvent()     {}

// JoinQueueInput asks to be paired with the next waiting player.
type JoinQueueInput struct{}

func (JoinQueueInput) EventName() string { return EventJoinQueue }
func (JoinQueueInput) inboundEvent()     {}

// LeaveQueueInput withdraws from the matchmaking queue.
type LeaveQueueInput struct{}

func (LeaveQueueInput) EventName() string { return EventLeaveQueue }
func (LeaveQueueInput) inboundEvent()     {}

// newInbound returns a zero value of the inbound event registered under name.
func newInbound(name string) (InboundEvent, bool) {
	switch name {
	case EventPlayerReady:
		return &ReadyInput{}, true
	case EventPlayerMove:
		return &MoveInput{}, true
	case EventDisconnect:
		return &DisconnectInput{}, true
	case EventSendInvite:
		return &SendInviteInput{}, true
	case EventRespondInvite:
		return &RespondInviteInput{}, true
	case EventConfirmInvite:
		return &ConfirmInviteInput{}, true
	case EventJoinQueue:
		return &JoinQueueInput{}, true
	case EventLeaveQueue:
		return &LeaveQueueInput{}, true
	default:
		return nil, false
	}
}
