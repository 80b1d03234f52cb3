package domain

import "time"

type PresenceKind string

const (
	PresenceJoined PresenceKind = "joined"
	PresenceLeft   PresenceKind = "left"
)

// PresenceEvent is ephemeral and never persisted.
type PresenceEvent struct {
	RoomID      RoomID       `json:"room_id"`
	UserID      UserID       `json:"user_id"`
	DisplayName string       `json:"display_name"`
	Kind        PresenceKind `json:"kind"`
	Timestamp   time.Time    `json:"timestamp"`
}

// TypingEvent is ephemeral and never persisted.
type TypingEvent struct {
	RoomID    RoomID    `json:"room_id"`
	UserID    UserID    `json:"user_id"`
	IsTyping  bool      `json:"is_typing"`
	Timestamp time.Time `json:"timestamp"`
}
