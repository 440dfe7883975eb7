package matchmaking

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vovakirdan/arena/internal/multiplayer"
)

var (
	ErrNoInvite          = errors.New("matchmaking: no pending invite")
	ErrNotInvited        = errors.New("matchmaking: only the invited user can respond")
	ErrNotInviter        = errors.New("matchmaking: only the inviter can confirm")
	ErrInviteNotAccepted = errors.New("matchmaking: invite has not been accepted yet")
	ErrUserOffline       = errors.New("matchmaking: user is offline")
	ErrSelfInvite        = errors.New("matchmaking: cannot invite yourself")
	ErrUnknownConnection = errors.New("matchmaking: unknown connection")
	ErrInvitePending     = errors.New("matchmaking: an invite between these users is already pending")
	ErrInvalidOption     = errors.New("matchmaking: option must be accept or reject")
)

// InviteParty is one side of an invitation.
type InviteParty struct {
	UserID   multiplayer.UserID
	Conn     multiplayer.Conn
	Accepted bool
}

// Invite is a pending challenge between two users.
type Invite struct {
	GameID    string
	Inviter   InviteParty
	Invited   InviteParty
	CreatedAt time.Time
}

// Payload returns the wire form of the invite.
func (i Invite) Payload() multiplayer.InvitePayload {
	return multiplayer.InvitePayload{
		GameID:    i.GameID,
		Inviter:   multiplayer.InviteParty{UserID: i.Inviter.UserID, Accepted: i.Inviter.Accepted},
		Invited:   multiplayer.InviteParty{UserID: i.Invited.UserID, Accepted: i.Invited.Accepted},
		CreatedAt: i.CreatedAt,
	}
}

func (i *Invite) involves(user multiplayer.UserID) bool {
	return i.Inviter.UserID == user || i.Invited.UserID == user
}

// Invitations runs the four-step invite handshake: challenge, delivery,
// respond (invited side) and confirm (inviter side). It never owns
// connections; it resolves them through the connection registry.
type Invitations struct {
	registry *multiplayer.Registry

	mu      sync.RWMutex
	invites map[string]*Invite // gameID -> invite
	now     func() time.Time
}

// NewInvitations creates an empty invitation registry.
func NewInvitations(registry *multiplayer.Registry) *Invitations {
	return &Invitations{
		registry: registry,
		invites:  make(map[string]*Invite),
		now:      time.Now,
	}
}

// Challenge creates an invite from the user behind conn to invited and
// delivers receive-invite to every connection of the invited user.
func (r *Invitations) Challenge(conn multiplayer.ConnID, invited multiplayer.UserID) (Invite, error) {
	inviter, ok := r.registry.ResolveIdentity(conn)
	if !ok {
		return Invite{}, ErrUnknownConnection
	}
	if inviter == invited {
		return Invite{}, ErrSelfInvite
	}
	inviterConn, ok := r.registry.Primary(inviter)
	if !ok {
		return Invite{}, ErrUnknownConnection
	}
	invitedConn, ok := r.registry.Primary(invited)
	if !ok {
		return Invite{}, fmt.Errorf("%w: %s", ErrUserOffline, invited)
	}

	r.mu.Lock()
	for _, inv := range r.invites {
		if inv.involves(inviter) && inv.involves(invited) {
			r.mu.Unlock()
			return Invite{}, ErrInvitePending
		}
	}
	inv := &Invite{
		GameID:    uuid.NewString(),
		Inviter:   InviteParty{UserID: inviter, Conn: inviterConn},
		Invited:   InviteParty{UserID: invited, Conn: invitedConn},
		CreatedAt: r.now(),
	}
	r.invites[inv.GameID] = inv
	snapshot := *inv
	r.mu.Unlock()

	r.registry.SendToUser(invited, multiplayer.ReceiveInviteEvent{Invite: snapshot.Payload()})
	return snapshot, nil
}

// Respond answers an invite on behalf of the invited user behind conn.
// Accept tells the inviter and waits for confirmation; reject tells the
// inviter and deletes the invite.
func (r *Invitations) Respond(conn multiplayer.ConnID, option multiplayer.InviteOption) (Invite, error) {
	if !option.Valid() {
		return Invite{}, ErrInvalidOption
	}
	user, ok := r.registry.ResolveIdentity(conn)
	if !ok {
		return Invite{}, ErrUnknownConnection
	}

	r.mu.Lock()
	inv := r.findLocked(user, func(i *Invite) bool { return i.Invited.UserID == user && !i.Invited.Accepted })
	if inv == nil {
		err := r.roleErrorLocked(user, ErrNotInvited)
		r.mu.Unlock()
		return Invite{}, err
	}
	if option == multiplayer.InviteAccept {
		inv.Invited.Accepted = true
	} else {
		delete(r.invites, inv.GameID)
	}
	snapshot := *inv
	r.mu.Unlock()

	if option == multiplayer.InviteAccept {
		r.registry.SendToUser(snapshot.Inviter.UserID, multiplayer.InviteAcceptedEvent{GameID: snapshot.GameID})
	} else {
		r.registry.SendToUser(snapshot.Inviter.UserID, multiplayer.InviteRejectedEvent{GameID: snapshot.GameID})
	}
	return snapshot, nil
}

// Confirm is the inviter's final answer, valid only after the invited user
// accepted. Accept finalizes the invite, notifies both users with the
// finalized payload and returns it with finalized set; the invite is
// consumed either way.
func (r *Invitations) Confirm(conn multiplayer.ConnID, option multiplayer.InviteOption) (inv Invite, finalized bool, err error) {
	if !option.Valid() {
		return Invite{}, false, ErrInvalidOption
	}
	user, ok := r.registry.ResolveIdentity(conn)
	if !ok {
		return Invite{}, false, ErrUnknownConnection
	}

	r.mu.Lock()
	pending := r.findLocked(user, func(i *Invite) bool { return i.Inviter.UserID == user })
	if pending == nil {
		err := r.roleErrorLocked(user, ErrNotInviter)
		r.mu.Unlock()
		return Invite{}, false, err
	}
	if !pending.Invited.Accepted {
		r.mu.Unlock()
		return Invite{}, false, ErrInviteNotAccepted
	}
	if option == multiplayer.InviteAccept {
		pending.Inviter.Accepted = true
	}
	delete(r.invites, pending.GameID)
	snapshot := *pending
	r.mu.Unlock()

	if option == multiplayer.InviteReject {
		r.registry.SendToUser(snapshot.Invited.UserID, multiplayer.InviteRejectedEvent{GameID: snapshot.GameID})
		return snapshot, false, nil
	}

	confirmed := multiplayer.InviteConfirmedEvent{Invite: snapshot.Payload()}
	r.registry.SendToUser(snapshot.Inviter.UserID, confirmed)
	r.registry.SendToUser(snapshot.Invited.UserID, confirmed)
	return snapshot, true, nil
}

// Lookup returns the oldest invite involving the user behind conn.
func (r *Invitations) Lookup(conn multiplayer.ConnID) (Invite, bool) {
	user, ok := r.registry.ResolveIdentity(conn)
	if !ok {
		return Invite{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	inv := r.findLocked(user, func(*Invite) bool { return true })
	if inv == nil {
		return Invite{}, false
	}
	return *inv, true
}

// Expire removes invites created more than olderThan ago and tells both
// users they were rejected. It returns the number removed.
func (r *Invitations) Expire(olderThan time.Duration) int {
	cutoff := r.now().Add(-olderThan)
	return r.removeWhere(func(i *Invite) bool { return i.CreatedAt.Before(cutoff) }, "")
}

// DropUser removes every invite involving user, telling the other party.
func (r *Invitations) DropUser(user multiplayer.UserID) int {
	return r.removeWhere(func(i *Invite) bool { return i.involves(user) }, user)
}

// Count returns the number of pending invites.
func (r *Invitations) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.invites)
}

func (r *Invitations) removeWhere(match func(*Invite) bool, skip multiplayer.UserID) int {
	r.mu.Lock()
	var removed []Invite
	for id, inv := range r.invites {
		if match(inv) {
			removed = append(removed, *inv)
			delete(r.invites, id)
		}
	}
	r.mu.Unlock()

	for _, inv := range removed {
		evt := multiplayer.InviteRejectedEvent{GameID: inv.GameID}
		for _, user := range []multiplayer.UserID{inv.Inviter.UserID, inv.Invited.UserID} {
			if user != skip {
				r.registry.SendToUser(user, evt)
			}
		}
	}
	return len(removed)
}

// findLocked returns the oldest invite of user matching want.
func (r *Invitations) findLocked(user multiplayer.UserID, want func(*Invite) bool) *Invite {
	var candidates []*Invite
	for _, inv := range r.invites {
		if inv.involves(user) && want(inv) {
			candidates = append(candidates, inv)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].CreatedAt.Equal(candidates[b].CreatedAt) {
			return candidates[a].GameID < candidates[b].GameID
		}
		return candidates[a].CreatedAt.Before(candidates[b].CreatedAt)
	})
	return candidates[0]
}

// roleErrorLocked distinguishes "no invite at all" from "wrong side of an invite".
func (r *Invitations) roleErrorLocked(user multiplayer.UserID, wrongRole error) error {
	if r.findLocked(user, func(*Invite) bool { return true }) != nil {
		return wrongRole
	}
	return ErrNoInvite
}
