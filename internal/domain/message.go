package domain

import "time"

const MaxContentLen = 4096

// ChatMessage is immutable once appended to the durable store.
// MessageID is the client-supplied idempotency key; Sequence is the
// per-room total order assigned by the coordinator.
type ChatMessage struct {
	MessageID string    `json:"message_id"`
	RoomID    RoomID    `json:"room_id"`
	SenderID  UserID    `json:"sender_id"`
	Content   string    `json:"content"`
	ParentID  *string   `json:"parent_id,omitempty"`
	Sequence  int64     `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`
}
