package app

import (
	"time"

	"github.com/firasmosbehi/microservice-chatapp/internal/core"
	"github.com/firasmosbehi/microservice-chatapp/internal/domain"
	"github.com/firasmosbehi/microservice-chatapp/internal/protocol"
)

// Broadcaster derives ephemeral presence and typing events from live
// state and fans them out over the current subscriber set. Nothing here
// is ever persisted or reconciled against storage.
type Broadcaster struct{}

// Joined announces a new subscriber to everyone else in the room.
func (Broadcaster) Joined(room *Room, self core.ConnID, p domain.Principal) core.PublishResult {
	return room.Broadcast(self, protocol.Presence(domain.PresenceEvent{
		RoomID:      room.ID,
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		Kind:        domain.PresenceJoined,
		Timestamp:   time.Now().UTC(),
	}))
}

// Left announces a departed subscriber to the remaining ones.
func (Broadcaster) Left(room *Room, self core.ConnID, p domain.Principal) core.PublishResult {
	return room.Broadcast(self, protocol.Presence(domain.PresenceEvent{
		RoomID:      room.ID,
		UserID:      p.UserID,
		DisplayName: p.DisplayName,
		Kind:        domain.PresenceLeft,
		Timestamp:   time.Now().UTC(),
	}))
}

// Typing recomputes the room's typing set and pushes it to every
// subscriber, the typist included.
func (Broadcaster) Typing(room *Room) core.PublishResult {
	return room.Broadcast("", protocol.TypingUpdate(room.ID, room.TypingUsers()))
}
