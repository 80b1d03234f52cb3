// Package protocol defines the message-framed wire protocol spoken over
// the streaming connection. Client messages form a tagged union
// discriminated by "type"; unknown variants are rejected, not ignored.
package protocol

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/firasmosbehi/microservice-chatapp/internal/core"
	"github.com/firasmosbehi/microservice-chatapp/internal/domain"
)

// Client → coordinator message types.
const (
	TypeAuth   = "auth"
	TypeJoin   = "join"
	TypeLeave  = "leave"
	TypeSend   = "send"
	TypeTyping = "typing"
	TypePing   = "ping"
)

var ErrBadPayload = errors.New("bad payload")

// Envelope carries only the discriminator; the variant payload is
// decoded in a second pass.
type Envelope struct {
	Type string `json:"type"`
}

func ParseEnvelope(data []byte) (string, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", ErrBadPayload
	}
	return env.Type, nil
}

type AuthPayload struct {
	Token string `json:"token"`
}

type JoinPayload struct {
	RoomID string `json:"room_id"`
}

type SendPayload struct {
	MessageID string  `json:"message_id"`
	Content   string  `json:"content"`
	ParentID  *string `json:"parent_id,omitempty"`
}

type TypingPayload struct {
	IsTyping bool `json:"is_typing"`
}

// Decode unmarshals a variant payload.
func Decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return ErrBadPayload
	}
	return nil
}

func encode(v any) core.Frame {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "protocol").Msg("encode frame")
		return nil
	}
	return b
}

// Welcome confirms a successful handshake.
func Welcome(p domain.Principal) core.Frame {
	return encode(struct {
		Type        string        `json:"type"`
		UserID      domain.UserID `json:"user_id"`
		DisplayName string        `json:"display_name"`
	}{"welcome", p.UserID, p.DisplayName})
}

// Message wraps a durably stored chat message for fan-out.
func Message(m domain.ChatMessage) core.Frame {
	return encode(struct {
		Type    string             `json:"type"`
		Message domain.ChatMessage `json:"message"`
	}{"message", m})
}

// Presence wraps an ephemeral join/leave event.
func Presence(ev domain.PresenceEvent) core.Frame {
	return encode(struct {
		Type  string              `json:"type"`
		Event domain.PresenceEvent `json:"event"`
	}{"presence", ev})
}

// TypingUpdate carries the full current typing set for a room.
func TypingUpdate(roomID domain.RoomID, users []domain.UserID) core.Frame {
	if users == nil {
		users = []domain.UserID{}
	}
	return encode(struct {
		Type        string          `json:"type"`
		RoomID      domain.RoomID   `json:"room_id"`
		TypingUsers []domain.UserID `json:"typing_users"`
	}{"typing_update", roomID, users})
}

// Ack tells the sender its message is durable, with the stored sequence.
func Ack(messageID string, seq int64, createdAt time.Time) core.Frame {
	return encode(struct {
		Type      string    `json:"type"`
		MessageID string    `json:"message_id"`
		Sequence  int64     `json:"sequence"`
		CreatedAt time.Time `json:"created_at"`
	}{"ack", messageID, seq, createdAt})
}

// Error reports a protocol error with its stable code.
func Error(code, msg string) core.Frame {
	return encode(struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}{"error", code, msg})
}

func Pong() core.Frame {
	return encode(Envelope{Type: "pong"})
}

// Left confirms the session dropped out of its room; the connection
// itself stays open.
func Left() core.Frame {
	return encode(Envelope{Type: "left"})
}

// RoomState is the snapshot pushed to a joiner.
func RoomState(roomID domain.RoomID, members []core.MemberDTO) core.Frame {
	return encode(struct {
		Type    string           `json:"type"`
		RoomID  domain.RoomID    `json:"room_id"`
		Members []core.MemberDTO `json:"members"`
		Count   int              `json:"count"`
	}{"room_state", roomID, members, len(members)})
}
