package core

import (
	"context"
	"time"

	"github.com/firasmosbehi/microservice-chatapp/internal/domain"
)

// Frame is an encoded outbound protocol message.
type Frame []byte

// ConnID identifies one streaming connection. A principal may hold
// several connections; each has its own id.
type ConnID string

// ClientConn abstracts the outbound half of a streaming transport.
// Owned by the adapter; the adapter must Close() it.
type ClientConn interface {
	// TrySend enqueues without blocking. Returns domain.ErrSlowConsumer
	// when the outbound buffer is full.
	TrySend(Frame) error
	Close()
}

// Verifier turns a bearer credential into a principal.
// Consumed, not owned: identity issuance lives elsewhere.
type Verifier interface {
	Verify(ctx context.Context, token string) (domain.Principal, error)
}

// StoredMessage is the store's acknowledgment of a durable append.
// RoomID identifies the room the row actually belongs to, which may
// differ from the appending room when a message id was reused.
type StoredMessage struct {
	RoomID    domain.RoomID
	Sequence  int64
	CreatedAt time.Time
}

// AppendRequest carries one message into the durable store.
// MessageID is the idempotency key; Sequence was assigned by the room.
type AppendRequest struct {
	RoomID    domain.RoomID
	MessageID string
	SenderID  domain.UserID
	Content   string
	ParentID  *string
	Sequence  int64
}

// MessageStore is the durable, append-only message log.
// Consumed, not owned: the coordinator only relies on the idempotent
// append and the paginated ordered read.
type MessageStore interface {
	// Append stores the message exactly once per MessageID. A retried
	// append returns the originally stored result, never a duplicate.
	Append(ctx context.Context, req AppendRequest) (StoredMessage, error)
	// Lookup returns the stored result for a message id, if any.
	Lookup(ctx context.Context, messageID string) (StoredMessage, bool, error)
	// List returns messages with sequence > afterSeq in ascending
	// sequence order, at most limit of them.
	List(ctx context.Context, roomID domain.RoomID, afterSeq int64, limit int) ([]domain.ChatMessage, error)
	// MaxSequence reports the highest stored sequence for a room, or -1.
	MaxSequence(ctx context.Context, roomID domain.RoomID) (int64, error)
}

// RoomStore is the durable room catalog backing the management surface.
type RoomStore interface {
	CreateRoom(ctx context.Context, room *domain.Room) error
	GetRoom(ctx context.Context, id domain.RoomID) (*domain.Room, error)
	ListRooms(ctx context.Context) ([]domain.Room, error)
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	UserID      domain.UserID `json:"user_id"`
	DisplayName string        `json:"display_name"`
}

// PublishResult reports delivery stats/backpressure to the coordinator.
type PublishResult struct {
	SentTo  int
	Dropped []ConnID
}
