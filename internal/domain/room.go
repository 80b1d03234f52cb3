package domain

import "time"

type RoomID string

// Room is the durable identity of a chat room. Live state (members,
// subscribers, sequence counter) lives in the registry, not here.
type Room struct {
	ID        RoomID    `json:"id"`
	Name      string    `json:"name"`
	IsPrivate bool      `json:"is_private"`
	CreatedAt time.Time `json:"created_at"`
}
