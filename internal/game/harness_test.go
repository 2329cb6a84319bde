package game

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lavaeater/civ-server-go/internal/game/board"
	"github.com/lavaeater/civ-server-go/internal/game/board/boardtest"
	"github.com/lavaeater/civ-server-go/internal/game/cards"
	"github.com/lavaeater/civ-server-go/internal/game/rules"
)

const testGameID = "6f1c1c2e-3b7a-4c55-9d1e-0a4f7f0c2b11"

// testHarness drives an engine over the fixture map and keeps every event
// it produced.
type testHarness struct {
	t      *testing.T
	engine *Engine
	events []rules.Event
}

// seat places a player in start, plus extra tokens there before the game begins.
type seat struct {
	id    board.PlayerID
	start board.AreaID
	extra int
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.GameID = testGameID
	cfg.StrictInvariants = true
	return cfg
}

// newTestHarness seats the players over empty trade-card piles.
func newTestHarness(t *testing.T, cfg Config, seats ...seat) *testHarness {
	t.Helper()
	e := NewEngine(zaptest.NewLogger(t), boardtest.Map(t), cfg)
	e.piles = cards.NewPilesFrom(nil)
	for _, s := range seats {
		require.NoError(t, e.AddPlayer(s.id, string(s.id), true, s.start))
		if s.extra > 0 {
			e.Inspect(func(b *board.Board) { boardtest.Place(t, b, s.id, s.start, s.extra) })
		}
	}
	return &testHarness{t: t, engine: e}
}

func (h *testHarness) start() []rules.Event {
	h.t.Helper()
	events, err := h.engine.Start()
	require.NoError(h.t, err)
	h.events = append(h.events, events...)
	return events
}

func (h *testHarness) tick(cmds ...Command) []rules.Event {
	h.t.Helper()
	for _, cmd := range cmds {
		h.engine.Submit(cmd)
	}
	events, err := h.engine.Tick()
	require.NoError(h.t, err)
	h.events = append(h.events, events...)
	return events
}

// setPile replaces one trade-card pile, top card first.
func (h *testHarness) setPile(n int, pile ...cards.TradeCard) {
	contents := h.engine.piles.Contents()
	contents[n] = pile
	h.engine.piles = cards.NewPilesFrom(contents)
}

func (h *testHarness) player(id board.PlayerID) *board.Player {
	h.t.Helper()
	var p *board.Player
	h.engine.Inspect(func(b *board.Board) { p, _ = b.Player(id) })
	require.NotNil(h.t, p, "player %s", id)
	return p
}

func (h *testHarness) count(id board.PlayerID, area board.AreaID) int {
	var n int
	h.engine.Inspect(func(b *board.Board) { n = b.CountIn(id, area) })
	return n
}

func (h *testHarness) requireActivity(want rules.Activity) {
	h.t.Helper()
	require.Equal(h.t, want, h.engine.Activity(), "activity")
}

func (h *testHarness) requireStillToAct(players ...board.PlayerID) {
	h.t.Helper()
	if len(players) == 0 {
		require.Empty(h.t, h.engine.StillToAct())
		return
	}
	require.Equal(h.t, players, h.engine.StillToAct())
}

func eventsOf(events []rules.Event, eventType rules.EventType) []rules.Event {
	var out []rules.Event
	for _, evt := range events {
		if evt.Type == eventType {
			out = append(out, evt)
		}
	}
	return out
}

// phaseEvents lists PHASE_STARTED / PHASE_ENDED events as "+ACTIVITY" / "-ACTIVITY".
func phaseEvents(events []rules.Event) []string {
	var out []string
	for _, evt := range events {
		switch evt.Type {
		case rules.EventPhaseStarted:
			out = append(out, "+"+evt.Data)
		case rules.EventPhaseEnded:
			out = append(out, "-"+evt.Data)
		}
	}
	return out
}
