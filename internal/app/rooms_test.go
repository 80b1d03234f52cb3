package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firasmosbehi/microservice-chatapp/internal/core"
	"github.com/firasmosbehi/microservice-chatapp/internal/domain"
)

func TestRooms_GetConvergesConcurrentCreates(t *testing.T) {
	st := newMemStore("r1")
	rooms := NewRooms(st, st, time.Minute)

	const n = 32
	got := make([]*Room, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			room, err := rooms.Get(context.Background(), "r1")
			require.NoError(t, err)
			got[i] = room
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Same(t, got[0], got[i], "all concurrent gets must return one Room instance")
	}
	assert.Equal(t, 1, rooms.Len())
}

func TestRooms_GetUnknownRoom(t *testing.T) {
	st := newMemStore()
	rooms := NewRooms(st, st, time.Minute)

	_, err := rooms.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestRooms_SequenceSeededFromStore(t *testing.T) {
	st := newMemStore("r1")
	_, err := st.Append(context.Background(), core.AppendRequest{
		RoomID: "r1", MessageID: "m1", SenderID: "u1", Content: "hi", Sequence: 4,
	})
	require.NoError(t, err)

	rooms := NewRooms(st, st, time.Minute)
	room, err := rooms.Get(context.Background(), "r1")
	require.NoError(t, err)

	assert.Equal(t, int64(5), room.nextSeq, "counter continues after the highest stored sequence")
}

func TestRooms_SweepRespectsDrainTimeout(t *testing.T) {
	st := newMemStore("r1")
	rooms := NewRooms(st, st, 50*time.Millisecond)
	room, err := rooms.Get(context.Background(), "r1")
	require.NoError(t, err)

	conn := &fakeConn{}
	room.AddMember("u1", "alice")
	room.Subscribe("c1", conn)

	// Occupied rooms are never reclaimed, no matter how old.
	assert.Equal(t, 0, rooms.Sweep(time.Now().Add(time.Hour)))

	room.Unsubscribe("c1")
	assert.Equal(t, 0, rooms.Sweep(time.Now()), "membership alone keeps the room alive")

	room.RemoveMember("u1")
	assert.Equal(t, 0, rooms.Sweep(time.Now()), "drain timeout has not elapsed")
	assert.Equal(t, 1, rooms.Sweep(time.Now().Add(time.Second)))
	assert.Equal(t, 0, rooms.Len())
}

func TestRooms_RejoinDuringDrainKeepsState(t *testing.T) {
	st := newMemStore("r1")
	rooms := NewRooms(st, st, 50*time.Millisecond)
	room, err := rooms.Get(context.Background(), "r1")
	require.NoError(t, err)

	room.AddMember("u1", "alice")
	room.RemoveMember("u1")
	// Rapid rejoin before the sweep.
	room.AddMember("u1", "alice")

	assert.Equal(t, 0, rooms.Sweep(time.Now().Add(time.Hour)))
}

func TestRoom_BroadcastExcludesAndDrops(t *testing.T) {
	room := newRoom("r1", 0)
	sender, ok, slow := &fakeConn{}, &fakeConn{}, &fakeConn{}
	slow.setFull(true)
	room.Subscribe("sender", sender)
	room.Subscribe("ok", ok)
	room.Subscribe("slow", slow)

	res := room.Broadcast("sender", core.Frame(`{"type":"message"}`))

	assert.Equal(t, 1, res.SentTo)
	assert.Equal(t, []core.ConnID{"slow"}, res.Dropped)
	assert.Empty(t, sender.frameTypes(), "excluded connection receives nothing")
	assert.Len(t, ok.frameTypes(), 1)
}

func TestRoom_BroadcastNilFrame(t *testing.T) {
	room := newRoom("r1", 0)
	conn := &fakeConn{}
	room.Subscribe("c1", conn)

	res := room.Broadcast("", nil)
	assert.Zero(t, res.SentTo)
	assert.Empty(t, conn.frameTypes())
}

func TestRoom_SetTypingReportsChanges(t *testing.T) {
	room := newRoom("r1", 0)

	assert.True(t, room.SetTyping("u1", true))
	assert.False(t, room.SetTyping("u1", true), "no change, no fan-out needed")
	assert.ElementsMatch(t, []domain.UserID{"u1"}, room.TypingUsers())

	assert.True(t, room.SetTyping("u1", false))
	assert.False(t, room.SetTyping("u1", false))
	assert.Empty(t, room.TypingUsers())
}
