package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/firasmosbehi/microservice-chatapp/internal/core"
	"github.com/firasmosbehi/microservice-chatapp/internal/domain"
)

// Coordinator wires the registry, room state, delivery pipeline and
// presence broadcaster behind the operations the transport exposes.
// One instance per process, injected into the adapters.
type Coordinator struct {
	Registry *Registry
	Rooms    *Rooms
	Pipeline *Pipeline
	Presence Broadcaster
	Policy   Policy
	Auth     core.Verifier

	dropMu sync.Mutex
	drops  map[core.ConnID]int
}

func NewCoordinator(reg *Registry, rooms *Rooms, pipe *Pipeline, policy Policy, auth core.Verifier) *Coordinator {
	return &Coordinator{
		Registry: reg,
		Rooms:    rooms,
		Pipeline: pipe,
		Policy:   policy,
		Auth:     auth,
		drops:    make(map[core.ConnID]int),
	}
}

// Authenticate verifies the bearer credential and binds the principal
// to the session. Failure is terminal for the session.
func (c *Coordinator) Authenticate(ctx context.Context, sess *Session, token string) (domain.Principal, error) {
	principal, err := c.Auth.Verify(ctx, token)
	if err != nil {
		return domain.Principal{}, domain.ErrUnauthenticated
	}
	if err := sess.Authenticate(principal); err != nil {
		return domain.Principal{}, err
	}
	log.Info().Str("module", "app.coordinator").Str("conn", string(sess.ID)).Str("user", string(principal.UserID)).Msg("session authenticated")
	return principal, nil
}

// Join subscribes the session to a room and records membership.
// Joining the room the session already occupies is an ok no-op
// (joined=false, no presence event); joining while in a different room
// fails AlreadyInRoom.
func (c *Coordinator) Join(ctx context.Context, sess *Session, roomID domain.RoomID) (*Room, bool, error) {
	principal, ok := sess.Principal()
	if !ok {
		return nil, false, domain.ErrUnauthenticated
	}
	if cur, in := sess.Room(); in {
		if cur == roomID {
			room, err := c.Rooms.Get(ctx, roomID)
			return room, false, err
		}
		return nil, false, domain.ErrAlreadyInRoom
	}

	room, err := c.Rooms.Get(ctx, roomID)
	if err != nil {
		return nil, false, err
	}
	room.AddMember(principal.UserID, principal.DisplayName)
	room.Subscribe(sess.ID, sess.Conn())
	sess.setRoom(roomID)

	res := c.Presence.Joined(room, sess.ID, principal)
	c.applyBackpressure(room, res)
	log.Info().Str("module", "app.coordinator").Str("conn", string(sess.ID)).Str("room", string(roomID)).Msg("joined room")
	return room, true, nil
}

// Leave removes the session from its room's subscriber set. Membership
// stays; that is a longer-lived concept owned by the management
// surface. Leaving while in no room is a no-op.
func (c *Coordinator) Leave(sess *Session) {
	roomID, in := sess.Room()
	if !in {
		return
	}
	room, ok := c.Rooms.Peek(roomID)
	sess.clearRoom()
	if !ok {
		return
	}
	room.Unsubscribe(sess.ID)

	principal, authed := sess.Principal()
	if authed {
		if room.SetTyping(principal.UserID, false) {
			c.applyBackpressure(room, c.Presence.Typing(room))
		}
		c.applyBackpressure(room, c.Presence.Left(room, sess.ID, principal))
	}
	log.Info().Str("module", "app.coordinator").Str("conn", string(sess.ID)).Str("room", string(roomID)).Msg("left room")
}

// Disconnect is the teardown path shared by explicit leave-and-close,
// socket errors and timeouts. An ungraceful disconnect behaves exactly
// like leave: subscriber removed, left presence emitted.
func (c *Coordinator) Disconnect(sess *Session) {
	if !sess.BeginClose() {
		return
	}
	c.Leave(sess)
	c.Registry.Unbind(sess.ID)
	c.dropMu.Lock()
	delete(c.drops, sess.ID)
	c.dropMu.Unlock()
	sess.markClosed()
	sess.Conn().Close()
}

// Send runs the delivery pipeline for the session's current room and
// returns what to ack. The sender must be authenticated and a member.
func (c *Coordinator) Send(ctx context.Context, sess *Session, req SendRequest) (SendResult, error) {
	principal, ok := sess.Principal()
	if !ok {
		return SendResult{}, domain.ErrUnauthenticated
	}
	roomID, in := sess.Room()
	if !in {
		return SendResult{}, domain.ErrNotMember
	}
	room, err := c.Rooms.Get(ctx, roomID)
	if err != nil {
		return SendResult{}, err
	}

	res, err := c.Pipeline.Send(ctx, room, principal, req)
	if err != nil {
		return SendResult{}, err
	}
	c.applyBackpressure(room, res.Fanout)

	// Sending implicitly stops typing.
	if room.SetTyping(principal.UserID, false) {
		c.applyBackpressure(room, c.Presence.Typing(room))
	}
	return res, nil
}

// SetTyping updates the ephemeral typing set and fans the new set out.
func (c *Coordinator) SetTyping(sess *Session, isTyping bool) error {
	principal, ok := sess.Principal()
	if !ok {
		return domain.ErrUnauthenticated
	}
	roomID, in := sess.Room()
	if !in {
		return domain.ErrNotMember
	}
	room, ok := c.Rooms.Peek(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}
	if room.SetTyping(principal.UserID, isTyping) {
		c.applyBackpressure(room, c.Presence.Typing(room))
	}
	return nil
}

// applyBackpressure feeds dropped deliveries to the policy. A slow
// subscriber only ever affects itself: frames are dropped, and past the
// policy's bound its connection is canceled.
func (c *Coordinator) applyBackpressure(room *Room, res core.PublishResult) {
	if len(res.Dropped) == 0 || c.Policy == nil {
		return
	}
	for _, id := range res.Dropped {
		c.dropMu.Lock()
		c.drops[id]++
		n := c.drops[id]
		c.dropMu.Unlock()
		log.Warn().Str("module", "app.coordinator").Str("room", string(room.ID)).Str("conn", string(id)).Int("drops", n).Msg("slow consumer dropped frame")
		if c.Policy.OnSlowConsumer(room.ID, id, n) == CloseConn {
			c.Registry.Cancel(id)
		}
	}
}
