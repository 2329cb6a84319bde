package board_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavaeater/civ-server-go/internal/game/board"
	"github.com/lavaeater/civ-server-go/internal/game/board/boardtest"
	"github.com/lavaeater/civ-server-go/internal/game/cards"
)

func TestParseMap_MirrorsConnections(t *testing.T) {
	m := boardtest.Map(t)

	w, ok := m.Area("w")
	require.True(t, ok)
	assert.ElementsMatch(t, []board.AreaID{"y", "z"}, w.LandConnections)

	v, _ := m.Area("v")
	assert.True(t, v.Coastal())
	assert.Empty(t, v.LandConnections)
	assert.Equal(t, 5, m.Len())
}

func TestParseMap_UnknownConnection(t *testing.T) {
	_, err := board.ParseMap([]byte("areas:\n  - id: a\n    land: [nowhere]\n"))
	require.ErrorIs(t, err, board.ErrUnknownArea)

	_, err = board.ParseMap([]byte("areas:\n  - id: a\n  - id: a\n"))
	require.ErrorIs(t, err, board.ErrDuplicateArea)
}

func TestAddPlayer_AllocatesDistinctTokens(t *testing.T) {
	b := boardtest.Board(t, "alice", "bob")
	alice, _ := b.Player("alice")
	bob, _ := b.Player("bob")

	assert.Equal(t, 47, alice.Population.Available())
	assert.Equal(t, 9, alice.CityTokens.Available())
	assert.Equal(t, board.TokenID(1), alice.Population.Tokens()[0])
	assert.Equal(t, board.TokenID(57), bob.Population.Tokens()[0])

	_, err := b.AddPlayer("alice", "", false)
	require.ErrorIs(t, err, board.ErrDuplicatePlayer)
}

func TestMoveStockToArea_AllOrNothing(t *testing.T) {
	b := board.New(boardtest.Map(t), board.Setup{PopulationTokens: 3, CityTokens: 1})
	_, err := b.AddPlayer("alice", "", true)
	require.NoError(t, err)

	require.NoError(t, b.MoveStockToArea("alice", "x", 2))
	err = b.MoveStockToArea("alice", "y", 2)
	require.ErrorIs(t, err, board.ErrInsufficientStock)

	assert.Equal(t, 0, b.CountIn("alice", "y"))
	assert.Equal(t, []board.AreaID{"x"}, b.AreasOf("alice"))
	require.NoError(t, b.CheckInvariants())
}

func TestMoveAreaToArea_MarksArrivals(t *testing.T) {
	b := boardtest.Board(t, "alice")
	boardtest.Place(t, b, "alice", "x", 4)

	require.NoError(t, b.MoveAreaToArea("alice", "x", "y", 2))
	assert.Equal(t, 2, b.CountIn("alice", "x"))
	assert.Equal(t, 2, b.CountIn("alice", "y"))
	assert.Len(t, b.UnmovedTokens("alice", "y"), 0)
	assert.Len(t, b.UnmovedTokens("alice", "x"), 2)

	err := b.MoveAreaToArea("alice", "y", "w", 1)
	require.ErrorIs(t, err, board.ErrNotEnoughTokens)

	err = b.MoveAreaToArea("alice", "x", "v", 1)
	require.ErrorIs(t, err, board.ErrNotConnected)

	err = b.MoveAreaToArea("alice", "x", "y", 3)
	require.ErrorIs(t, err, board.ErrNotEnoughTokens)

	b.ClearMoved()
	require.NoError(t, b.MoveAreaToArea("alice", "y", "w", 2))
	assert.Equal(t, []board.AreaID{"x", "w"}, b.AreasOf("alice"))
	require.NoError(t, b.CheckInvariants())
}

func TestReturnTokens_HighestFirstAndDropsEmptyEntry(t *testing.T) {
	b := boardtest.Board(t, "alice")
	boardtest.Place(t, b, "alice", "z", 3)
	before := b.Population("z").Tokens("alice")

	assert.Equal(t, 1, b.ReturnTokens("alice", "z", 1))
	assert.Equal(t, before[:2], b.Population("z").Tokens("alice"))

	assert.Equal(t, 2, b.ReturnAll("alice", "z"))
	assert.True(t, b.Population("z").IsEmpty())
	assert.False(t, b.Population("z").Has("alice"))
	assert.Empty(t, b.AreasOf("alice"))

	alice, _ := b.Player("alice")
	assert.Equal(t, 47, alice.Population.Available())
	require.NoError(t, b.CheckInvariants())
}

func TestCities_BuildEliminateTransfer(t *testing.T) {
	b := boardtest.Board(t, "alice", "bob")
	boardtest.City(t, b, "alice", "x")

	require.ErrorIs(t, b.BuildCity("bob", "x"), board.ErrCityExists)
	alice, _ := b.Player("alice")
	bob, _ := b.Player("bob")
	assert.Equal(t, 8, alice.CityTokens.Available())
	assert.True(t, alice.HasCityIn("x"))

	require.NoError(t, b.TransferCity("x", "bob"))
	city, ok := b.City("x")
	require.True(t, ok)
	assert.Equal(t, board.PlayerID("bob"), city.Player)
	assert.Equal(t, 9, alice.CityTokens.Available())
	assert.Equal(t, 8, bob.CityTokens.Available())

	_, err := b.EliminateCity("x")
	require.NoError(t, err)
	_, err = b.EliminateCity("x")
	require.ErrorIs(t, err, board.ErrNoCity)
	assert.Empty(t, b.CitiesOf("bob"))
	require.NoError(t, b.CheckInvariants())
}

func TestTreasury_CountsTowardInvariant(t *testing.T) {
	b := boardtest.Board(t, "alice")
	boardtest.Place(t, b, "alice", "x", 5)

	assert.Equal(t, 2, b.CollectTax("alice", 2))
	alice, _ := b.Player("alice")
	assert.Equal(t, 2, alice.Treasury.Available())
	assert.Equal(t, 40, alice.Population.Available())
	require.NoError(t, b.CheckInvariants())

	assert.Equal(t, 2, b.SpendTreasury("alice", 5))
	assert.Equal(t, 42, alice.Population.Available())
	require.NoError(t, b.CheckInvariants())
}

func TestContestedAreas(t *testing.T) {
	b := boardtest.Board(t, "alice", "bob")
	boardtest.Place(t, b, "alice", "x", 2)
	boardtest.Place(t, b, "bob", "x", 2)
	boardtest.Place(t, b, "alice", "z", 1)
	boardtest.Place(t, b, "bob", "z", 1)
	boardtest.City(t, b, "alice", "y")
	boardtest.Place(t, b, "bob", "y", 1)

	assert.Equal(t, []board.AreaID{"x", "y"}, b.ContestedAreas())
}

func TestCensusOrder_TiesKeepRegistrationOrder(t *testing.T) {
	b := boardtest.Board(t, "alice", "bob", "carol")
	boardtest.Place(t, b, "alice", "x", 1)
	boardtest.Place(t, b, "bob", "y", 3)
	boardtest.Place(t, b, "carol", "z", 1)

	b.RefreshCensus()
	assert.Equal(t, []board.PlayerID{"bob", "alice", "carol"}, b.CensusOrder())
}

func TestStateRestore_RoundTripsLedgers(t *testing.T) {
	b := boardtest.Board(t, "alice", "bob")
	boardtest.Place(t, b, "alice", "x", 3)
	boardtest.Place(t, b, "bob", "z", 2)
	boardtest.City(t, b, "bob", "w")
	require.NoError(t, b.MoveAreaToArea("alice", "x", "y", 1))
	b.CollectTax("bob", 2)
	alice, _ := b.Player("alice")
	alice.TradeCards.Add(cards.Salt, 2)
	alice.Advances.Add(cards.Pottery)

	restored, err := board.Restore(b.Map(), b.State())
	require.NoError(t, err)

	assert.Equal(t, b.State(), restored.State())
	moved := restored.Population("y").Tokens("alice")
	require.Len(t, moved, 1)
	assert.True(t, restored.HasMoved(moved[0]))
	ra, _ := restored.Player("alice")
	assert.Equal(t, 2, ra.TradeCards.Count(cards.Salt))
	assert.True(t, ra.Advances.Has(cards.Pottery))
}

func TestCheckInvariants_DetectsStrayToken(t *testing.T) {
	b := boardtest.Board(t, "alice")
	boardtest.Place(t, b, "alice", "x", 1)
	alice, _ := b.Player("alice")
	alice.Population.Return(b.Population("x").Tokens("alice")...)

	require.ErrorIs(t, b.CheckInvariants(), board.ErrInvariant)
}
