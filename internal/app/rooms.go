package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/firasmosbehi/microservice-chatapp/internal/core"
	"github.com/firasmosbehi/microservice-chatapp/internal/domain"
)

// Room is the live, in-memory side of a chat room: membership,
// subscriber set, typing set and the per-room sequence counter. Each
// room synchronizes on its own locks so rooms never serialize against
// each other.
type Room struct {
	ID domain.RoomID

	mu          sync.RWMutex
	members     map[domain.UserID]string // user id -> display name; survives disconnect
	subscribers map[core.ConnID]core.ClientConn
	typing      map[domain.UserID]struct{}
	emptySince  time.Time

	// sendMu is the single-writer section for the delivery pipeline:
	// sequence assignment and the durable append happen under it, so
	// storage order and sequence order always agree.
	sendMu  sync.Mutex
	nextSeq int64
}

func newRoom(id domain.RoomID, nextSeq int64) *Room {
	return &Room{
		ID:          id,
		members:     make(map[domain.UserID]string),
		subscribers: make(map[core.ConnID]core.ClientConn),
		typing:      make(map[domain.UserID]struct{}),
		emptySince:  time.Now(),
		nextSeq:     nextSeq,
	}
}

func (r *Room) AddMember(uid domain.UserID, displayName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[uid] = displayName
	r.emptySince = time.Time{}
}

// RemoveMember drops long-lived membership. Only the management
// surface calls this; leaving the streaming connection keeps it.
func (r *Room) RemoveMember(uid domain.UserID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.members, uid)
	delete(r.typing, uid)
	r.markIfEmptyLocked()
}

func (r *Room) IsMember(uid domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[uid]
	return ok
}

func (r *Room) Members() []core.MemberDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.MemberDTO, 0, len(r.members))
	for uid, name := range r.members {
		out = append(out, core.MemberDTO{UserID: uid, DisplayName: name})
	}
	return out
}

func (r *Room) Subscribe(id core.ConnID, conn core.ClientConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers[id] = conn
	r.emptySince = time.Time{}
	log.Info().Str("module", "app.room").Str("room", string(r.ID)).Str("conn", string(id)).Msg("subscriber added")
}

func (r *Room) Unsubscribe(id core.ConnID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.subscribers, id)
	r.markIfEmptyLocked()
	log.Info().Str("module", "app.room").Str("room", string(r.ID)).Str("conn", string(id)).Msg("subscriber removed")
}

func (r *Room) SubscriberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subscribers)
}

// Broadcast fans one frame out to every current subscriber except the
// excluded connection. A full outbound buffer drops the frame for that
// subscriber only; the result reports who was dropped.
func (r *Room) Broadcast(exclude core.ConnID, f core.Frame) core.PublishResult {
	if f == nil {
		return core.PublishResult{}
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := core.PublishResult{}
	for id, conn := range r.subscribers {
		if id == exclude {
			continue
		}
		if err := conn.TrySend(f); err != nil {
			res.Dropped = append(res.Dropped, id)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "app.room").Str("room", string(r.ID)).Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

// SetTyping updates the typing set; changed reports whether the set
// actually moved so callers can skip redundant typing_update fan-outs.
func (r *Room) SetTyping(uid domain.UserID, isTyping bool) (changed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, present := r.typing[uid]
	if isTyping && !present {
		r.typing[uid] = struct{}{}
		return true
	}
	if !isTyping && present {
		delete(r.typing, uid)
		return true
	}
	return false
}

func (r *Room) TypingUsers() []domain.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.UserID, 0, len(r.typing))
	for uid := range r.typing {
		out = append(out, uid)
	}
	return out
}

func (r *Room) markIfEmptyLocked() {
	if len(r.members) == 0 && len(r.subscribers) == 0 && r.emptySince.IsZero() {
		r.emptySince = time.Now()
	}
}

func (r *Room) reclaimable(now time.Time, drain time.Duration) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members) == 0 && len(r.subscribers) == 0 &&
		!r.emptySince.IsZero() && now.Sub(r.emptySince) >= drain
}

// Rooms is the registry of live room state. Room existence is decided
// by the durable catalog; the registry only materializes live state for
// rooms that exist, converging concurrent creates onto one instance.
type Rooms struct {
	catalog  core.RoomStore
	messages core.MessageStore
	drain    time.Duration

	mu    sync.RWMutex
	rooms map[domain.RoomID]*Room
}

func NewRooms(catalog core.RoomStore, messages core.MessageStore, drain time.Duration) *Rooms {
	return &Rooms{
		catalog:  catalog,
		messages: messages,
		drain:    drain,
		rooms:    make(map[domain.RoomID]*Room),
	}
}

// Get returns the live state for an existing room, materializing it on
// first reference. The sequence counter is seeded from the store so a
// reclaimed-and-recreated room continues its order, never restarts it.
func (rs *Rooms) Get(ctx context.Context, id domain.RoomID) (*Room, error) {
	rs.mu.RLock()
	room, ok := rs.rooms[id]
	rs.mu.RUnlock()
	if ok {
		return room, nil
	}

	if _, err := rs.catalog.GetRoom(ctx, id); err != nil {
		return nil, err
	}
	maxSeq, err := rs.messages.MaxSequence(ctx, id)
	if err != nil {
		return nil, domain.ErrPersistenceUnavailable
	}

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if room, ok = rs.rooms[id]; ok {
		return room, nil
	}
	room = newRoom(id, maxSeq+1)
	rs.rooms[id] = room
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Int64("next_seq", maxSeq+1).Msg("room state materialized")
	return room, nil
}

// Peek returns live state without touching the catalog.
func (rs *Rooms) Peek(id domain.RoomID) (*Room, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	room, ok := rs.rooms[id]
	return room, ok
}

func (rs *Rooms) Len() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.rooms)
}

// Sweep reclaims live state for rooms whose member and subscriber sets
// have both been empty for at least the drain timeout. The drain window
// tolerates reconnect churn; the durable room row is untouched.
func (rs *Rooms) Sweep(now time.Time) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	reclaimed := 0
	for id, room := range rs.rooms {
		if room.reclaimable(now, rs.drain) {
			delete(rs.rooms, id)
			reclaimed++
			log.Info().Str("module", "app.rooms").Str("room", string(id)).Msg("room state reclaimed")
		}
	}
	return reclaimed
}

// StartGC runs the background sweep until ctx is done.
func (rs *Rooms) StartGC(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				rs.Sweep(now)
			}
		}
	}()
}
