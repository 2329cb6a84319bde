package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavaeater/civ-server-go/internal/game/board"
)

func TestEventBusSubscribeTyped(t *testing.T) {
	bus := NewEventBus()

	started := 0
	built := 0

	handle1 := bus.SubscribeTyped(EventPhaseStarted, func(e Event) {
		started++
	})
	bus.SubscribeTyped(EventCityBuilt, func(e Event) {
		built++
	})

	bus.Publish(NewEvent(EventPhaseStarted, ""))
	assert.Equal(t, 1, started)
	assert.Equal(t, 0, built)

	bus.Publish(NewAreaEvent(EventCityBuilt, "alice", "x", 1))
	assert.Equal(t, 1, built)

	bus.Unsubscribe(handle1)
	bus.Publish(NewEvent(EventPhaseStarted, ""))
	assert.Equal(t, 1, started)
}

func TestEventBusSubscribeAll(t *testing.T) {
	bus := NewEventBus()
	var seen []EventType
	handle := bus.Subscribe(func(e Event) { seen = append(seen, e.Type) })
	require.GreaterOrEqual(t, handle, 0)
	assert.Equal(t, -1, bus.Subscribe(nil))

	bus.PublishBatch([]Event{NewEvent(EventPhaseEnded, ""), NewEvent(EventPhaseStarted, "")})
	assert.Equal(t, []EventType{EventPhaseEnded, EventPhaseStarted}, seen)
}

func TestQueueDrainsExactlyOnce(t *testing.T) {
	q := NewQueue()
	q.Push(NewEvent(EventTokensPlaced, "alice"))
	q.Push(NewEvent(EventTokensMoved, "alice"))
	require.Equal(t, 2, q.Len())

	first := q.Drain()
	require.Len(t, first, 2)
	assert.Equal(t, uint64(1), first[0].Sequence)
	assert.Equal(t, uint64(2), first[1].Sequence)
	assert.Empty(t, q.Drain())

	q.Push(NewEvent(EventPhaseEnded, ""))
	assert.Equal(t, uint64(3), q.Drain()[0].Sequence)
}

func TestGameInfoGate(t *testing.T) {
	info := NewGameInfo()
	info.SetCensusOrder([]board.PlayerID{"bob", "alice"})
	info.SetActive([]board.PlayerID{"alice", "bob", "zed"})

	assert.Equal(t, []board.PlayerID{"bob", "alice", "zed"}, info.StillToAct())
	assert.True(t, info.MarkDone("bob"))
	assert.False(t, info.MarkDone("bob"))
	assert.False(t, info.AllDone())
	info.MarkDone("alice")
	info.MarkDone("zed")
	assert.True(t, info.AllDone())

	info.SetActive(nil)
	assert.True(t, info.AllDone())
}
