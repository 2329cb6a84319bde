package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lavaeater/civ-server-go/internal/game/board"
	"github.com/lavaeater/civ-server-go/internal/game/board/boardtest"
	"github.com/lavaeater/civ-server-go/internal/game/rules"
)

// seededEngine plays one round with a city and seeded trade-card piles.
func seededEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := testConfig()
	cfg.Seed = 7
	e := NewEngine(zaptest.NewLogger(t), boardtest.Map(t), cfg)
	require.NoError(t, e.AddPlayer(alice, "alice", true, "x"))
	require.NoError(t, e.AddPlayer(bob, "bob", true, "v"))
	e.Inspect(func(b *board.Board) {
		boardtest.Place(t, b, alice, "x", 2)
		boardtest.Place(t, b, alice, "z", 2)
	})

	_, err := e.Start()
	require.NoError(t, err)
	for _, cmds := range [][]Command{
		{EndMovement{Player: alice}, EndMovement{Player: bob}},
		{BuildCity{Player: alice, Area: "x"}},
	} {
		for _, cmd := range cmds {
			e.Submit(cmd)
		}
		_, err := e.Tick()
		require.NoError(t, err)
	}
	require.Equal(t, rules.ActivityMovement, e.Activity())
	return e
}

func checksum(t *testing.T, s *Snapshot) string {
	t.Helper()
	sum, err := s.ComputeChecksum()
	require.NoError(t, err)
	return sum.Hash
}

func TestSnapshot_ChecksumIsDeterministic(t *testing.T) {
	a := seededEngine(t)
	b := seededEngine(t)

	sa, sb := a.Snapshot(), b.Snapshot()
	assert.Equal(t, checksum(t, sa), checksum(t, sb))
	assert.Equal(t, sa.Piles, sb.Piles)

	var held int
	a.Inspect(func(b *board.Board) {
		p, _ := b.Player(alice)
		held = p.TradeCards.Total()
	})
	assert.Equal(t, 1, held, "one city draws one card")
}

func TestSnapshot_ChecksumTracksState(t *testing.T) {
	e := seededEngine(t)
	before := e.Snapshot()
	sum, err := before.ComputeChecksum()
	require.NoError(t, err)

	e.Submit(MoveTokenFromAreaToArea{Player: alice, Source: "z", Target: "w", Count: 1})
	_, err = e.Tick()
	require.NoError(t, err)

	after := e.Snapshot()
	ok, err := after.VerifyChecksum(sum)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = before.VerifyChecksum(sum)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSnapshot_TimestampIsNotHashed(t *testing.T) {
	s := seededEngine(t).Snapshot()
	first := checksum(t, s)
	s.Timestamp = s.Timestamp.Add(42)
	assert.Equal(t, first, checksum(t, s))
}

func TestSnapshot_GobRoundTrip(t *testing.T) {
	s := seededEngine(t).Snapshot()
	require.NoError(t, ValidateSerializationRoundtrip(s))

	data, err := s.SerializeToBytes()
	require.NoError(t, err)
	decoded, err := DeserializeFromBytes(data)
	require.NoError(t, err)
	assert.Equal(t, s.GameID, decoded.GameID)
	assert.Equal(t, s.Activity, decoded.Activity)
	assert.Equal(t, s.CensusOrder, decoded.CensusOrder)

	_, err = DeserializeFromBytes([]byte("not gob"))
	require.Error(t, err)
}

func TestRestoreEngine_ContinuesIdentically(t *testing.T) {
	original := seededEngine(t)
	snap := original.Snapshot()

	restored, err := RestoreEngine(zaptest.NewLogger(t), boardtest.Map(t), testConfig(), snap)
	require.NoError(t, err)
	assert.Equal(t, testGameID, restored.GameID())
	assert.Equal(t, original.Round(), restored.Round())
	assert.Equal(t, original.StillToAct(), restored.StillToAct())
	assert.Equal(t, original.Catalog(alice).Moves(), restored.Catalog(alice).Moves())
	assert.Equal(t, checksum(t, snap), checksum(t, restored.Snapshot()))

	for _, e := range []*Engine{original, restored} {
		e.Submit(EndMovement{Player: alice})
		e.Submit(EndMovement{Player: bob})
		_, err := e.Tick()
		require.NoError(t, err)
	}
	assert.Equal(t, original.Activity(), restored.Activity())
	assert.Equal(t, checksum(t, original.Snapshot()), checksum(t, restored.Snapshot()))
}

func TestRestoreEngine_RejectsBadSnapshots(t *testing.T) {
	m := boardtest.Map(t)
	_, err := RestoreEngine(nil, m, testConfig(), nil)
	require.Error(t, err)

	s := seededEngine(t).Snapshot()
	s.Version = SnapshotVersion + 1
	_, err = RestoreEngine(nil, m, testConfig(), s)
	require.Error(t, err)

	s = seededEngine(t).Snapshot()
	s.Activity = "SLEEPING"
	_, err = RestoreEngine(nil, m, testConfig(), s)
	require.Error(t, err)
}
