package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/firasmosbehi/microservice-chatapp/internal/core"
	"github.com/firasmosbehi/microservice-chatapp/internal/domain"
	"github.com/firasmosbehi/microservice-chatapp/internal/protocol"
)

// SendRequest is one attempt to send a chat message. MessageID is the
// client-supplied idempotency key, so a retry after a dropped ack
// carries the same id.
type SendRequest struct {
	MessageID string
	Content   string
	ParentID  *string
}

// SendResult is what the sender is acknowledged with, plus delivery
// stats the coordinator feeds to the backpressure policy.
type SendResult struct {
	Stored    core.StoredMessage
	Duplicate bool
	Fanout    core.PublishResult
}

// Pipeline turns a validated chat message into a durably stored,
// sequenced, broadcast fact: validate, assign sequence, append, fan
// out, acknowledge. Exactly once per message id, regardless of retries.
type Pipeline struct {
	store         core.MessageStore
	appendTimeout time.Duration
	maxContentLen int
}

func NewPipeline(store core.MessageStore, appendTimeout time.Duration, maxContentLen int) *Pipeline {
	if maxContentLen <= 0 {
		maxContentLen = domain.MaxContentLen
	}
	return &Pipeline{store: store, appendTimeout: appendTimeout, maxContentLen: maxContentLen}
}

// Send runs the delivery pipeline for one message on one room.
//
// The room's sendMu makes this the single writer for the room's
// sequence: a duplicate message id short-circuits to the originally
// stored result without consuming a sequence, and the counter only
// advances after the append succeeded, so assigned sequences stay
// dense. Appends for other rooms proceed concurrently.
func (p *Pipeline) Send(ctx context.Context, room *Room, sender domain.Principal, req SendRequest) (SendResult, error) {
	if req.MessageID == "" || req.Content == "" || len(req.Content) > p.maxContentLen {
		return SendResult{}, domain.ErrInvalidMessage
	}
	if !room.IsMember(sender.UserID) {
		return SendResult{}, domain.ErrNotMember
	}

	room.sendMu.Lock()
	stored, duplicate, err := p.appendLocked(ctx, room, sender, req)
	room.sendMu.Unlock()
	if err != nil {
		return SendResult{}, err
	}

	res := SendResult{Stored: stored, Duplicate: duplicate}
	if duplicate {
		// The first successful append already fanned out; the retry
		// only needs its ack.
		return res, nil
	}

	msg := domain.ChatMessage{
		MessageID: req.MessageID,
		RoomID:    room.ID,
		SenderID:  sender.UserID,
		Content:   req.Content,
		ParentID:  req.ParentID,
		Sequence:  stored.Sequence,
		CreatedAt: stored.CreatedAt,
	}
	// Fan-out includes the sender: everyone observes the same stored
	// message, the ack is delivered separately. Individual delivery
	// failures never roll back the append.
	res.Fanout = room.Broadcast("", protocol.Message(msg))
	return res, nil
}

func (p *Pipeline) appendLocked(ctx context.Context, room *Room, sender domain.Principal, req SendRequest) (core.StoredMessage, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.appendTimeout)
	defer cancel()

	stored, found, err := p.store.Lookup(ctx, req.MessageID)
	if err != nil {
		log.Error().Err(err).Str("module", "app.pipeline").Str("message_id", req.MessageID).Msg("store lookup failed")
		return core.StoredMessage{}, false, domain.ErrPersistenceUnavailable
	}
	if found {
		return stored, true, nil
	}

	seq := room.nextSeq
	stored, err = p.store.Append(ctx, core.AppendRequest{
		RoomID:    room.ID,
		MessageID: req.MessageID,
		SenderID:  sender.UserID,
		Content:   req.Content,
		ParentID:  req.ParentID,
		Sequence:  seq,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "app.pipeline").Str("room", string(room.ID)).Str("message_id", req.MessageID).Msg("append failed")
		return core.StoredMessage{}, false, domain.ErrPersistenceUnavailable
	}
	// The counter advances only after a successful append, and only
	// when the store confirmed our freshly assigned row in this room.
	if stored.RoomID == room.ID && stored.Sequence == seq {
		room.nextSeq = seq + 1
		return stored, false, nil
	}
	// A concurrent append with the same message id landed between the
	// lookup and the insert; its row wins and no sequence is consumed.
	return stored, true, nil
}
