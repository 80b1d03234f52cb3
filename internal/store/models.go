package store

import "time"

type roomRecord struct {
	ID        string `gorm:"primaryKey;size:36"`
	Name      string `gorm:"size:128"`
	IsPrivate bool
	CreatedAt time.Time
}

func (roomRecord) TableName() string { return "rooms" }

// messageRecord rows are append-only. The unique index on message_id is
// what makes retried appends idempotent; the (room_id, sequence) index
// guards the per-room total order.
type messageRecord struct {
	ID        uint   `gorm:"primaryKey"`
	MessageID string `gorm:"uniqueIndex;size:64"`
	RoomID    string `gorm:"uniqueIndex:idx_room_seq;size:36"`
	Sequence  int64  `gorm:"uniqueIndex:idx_room_seq"`
	SenderID  string `gorm:"size:36"`
	Content   string
	ParentID  *string `gorm:"size:64"`
	CreatedAt time.Time
}

func (messageRecord) TableName() string { return "messages" }
