package app

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/firasmosbehi/microservice-chatapp/internal/core"
	"github.com/firasmosbehi/microservice-chatapp/internal/domain"
)

// fakeConn records delivered frames; full simulates a saturated
// outbound buffer.
type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.full {
		return domain.ErrSlowConsumer
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeConn) setFull(full bool) {
	c.mu.Lock()
	c.full = full
	c.mu.Unlock()
}

func (c *fakeConn) frameTypes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.frames))
	for _, f := range c.frames {
		var env struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(f, &env)
		out = append(out, env.Type)
	}
	return out
}

func (c *fakeConn) countType(t string) int {
	n := 0
	for _, ft := range c.frameTypes() {
		if ft == t {
			n++
		}
	}
	return n
}

// memStore is an in-memory MessageStore + RoomStore for app tests.
type memStore struct {
	mu      sync.Mutex
	rooms   map[domain.RoomID]domain.Room
	rows    map[string]memRow
	fail    bool
	appends int
}

type memRow struct {
	req core.AppendRequest
	at  time.Time
}

func newMemStore(roomIDs ...domain.RoomID) *memStore {
	s := &memStore{
		rooms: make(map[domain.RoomID]domain.Room),
		rows:  make(map[string]memRow),
	}
	for _, id := range roomIDs {
		s.rooms[id] = domain.Room{ID: id, Name: string(id), CreatedAt: time.Now()}
	}
	return s
}

func (s *memStore) setFail(fail bool) {
	s.mu.Lock()
	s.fail = fail
	s.mu.Unlock()
}

func (s *memStore) appendCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appends
}

func (s *memStore) rowCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

func (s *memStore) Append(_ context.Context, req core.AppendRequest) (core.StoredMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appends++
	if s.fail {
		return core.StoredMessage{}, errors.New("store down")
	}
	if row, ok := s.rows[req.MessageID]; ok {
		return core.StoredMessage{RoomID: row.req.RoomID, Sequence: row.req.Sequence, CreatedAt: row.at}, nil
	}
	row := memRow{req: req, at: time.Now().UTC()}
	s.rows[req.MessageID] = row
	return core.StoredMessage{RoomID: req.RoomID, Sequence: req.Sequence, CreatedAt: row.at}, nil
}

func (s *memStore) Lookup(_ context.Context, messageID string) (core.StoredMessage, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return core.StoredMessage{}, false, errors.New("store down")
	}
	if row, ok := s.rows[messageID]; ok {
		return core.StoredMessage{RoomID: row.req.RoomID, Sequence: row.req.Sequence, CreatedAt: row.at}, true, nil
	}
	return core.StoredMessage{}, false, nil
}

func (s *memStore) List(_ context.Context, roomID domain.RoomID, afterSeq int64, limit int) ([]domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ChatMessage
	for _, row := range s.rows {
		if row.req.RoomID != roomID || row.req.Sequence <= afterSeq {
			continue
		}
		out = append(out, domain.ChatMessage{
			MessageID: row.req.MessageID,
			RoomID:    row.req.RoomID,
			SenderID:  row.req.SenderID,
			Content:   row.req.Content,
			ParentID:  row.req.ParentID,
			Sequence:  row.req.Sequence,
			CreatedAt: row.at,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) MaxSequence(_ context.Context, roomID domain.RoomID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return 0, errors.New("store down")
	}
	max := int64(-1)
	for _, row := range s.rows {
		if row.req.RoomID == roomID && row.req.Sequence > max {
			max = row.req.Sequence
		}
	}
	return max, nil
}

func (s *memStore) CreateRoom(_ context.Context, room *domain.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = *room
	return nil
}

func (s *memStore) GetRoom(_ context.Context, id domain.RoomID) (*domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return &room, nil
}

func (s *memStore) ListRooms(_ context.Context) ([]domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		out = append(out, r)
	}
	return out, nil
}

// staticVerifier resolves fixed tokens, standing in for the external
// credential verifier.
type staticVerifier map[string]domain.Principal

func (v staticVerifier) Verify(_ context.Context, token string) (domain.Principal, error) {
	if p, ok := v[token]; ok {
		return p, nil
	}
	return domain.Principal{}, domain.ErrUnauthenticated
}
