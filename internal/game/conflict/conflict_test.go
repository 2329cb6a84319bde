package conflict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/lavaeater/civ-server-go/internal/game/board"
	"github.com/lavaeater/civ-server-go/internal/game/board/boardtest"
)

func survivors(shares []Share, capacity int) map[board.PlayerID]int {
	removed := Plan(shares, capacity)
	out := make(map[board.PlayerID]int)
	for _, s := range shares {
		out[s.Player] = s.Count - removed[s.Player]
	}
	return out
}

func TestPlan_Fixtures(t *testing.T) {
	tests := []struct {
		name     string
		shares   []Share
		capacity int
		want     map[board.PlayerID]int
	}{
		{
			name:     "two equal players",
			shares:   []Share{{"a", 2, 1}, {"b", 2, 100}},
			capacity: 2,
			want:     map[board.PlayerID]int{"a": 1, "b": 1},
		},
		{
			name:     "three players uneven",
			shares:   []Share{{"a", 4, 1}, {"b", 2, 100}, {"c", 3, 200}},
			capacity: 4,
			want:     map[board.PlayerID]int{"a": 3, "b": 0, "c": 0},
		},
		{
			name:     "three equal players",
			shares:   []Share{{"a", 4, 1}, {"b", 4, 100}, {"c", 4, 200}},
			capacity: 3,
			want:     map[board.PlayerID]int{"a": 1, "b": 1, "c": 1},
		},
		{
			name:     "two players smaller side loses",
			shares:   []Share{{"a", 3, 1}, {"b", 2, 100}},
			capacity: 3,
			want:     map[board.PlayerID]int{"a": 3, "b": 0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, survivors(tt.shares, tt.capacity))
			// determinism
			assert.Equal(t, Plan(tt.shares, tt.capacity), Plan(tt.shares, tt.capacity))
		})
	}
}

func TestStep_IteratesUntilSettled(t *testing.T) {
	shares := []Share{{"a", 4, 1}, {"b", 2, 100}, {"c", 3, 200}}
	rounds := 0
	for !Settled(shares, 4) {
		require.NotEmpty(t, Step(shares, 4))
		rounds++
		require.Less(t, rounds, 20)
	}
	assert.Greater(t, rounds, 1)
	assert.Empty(t, Step(shares, 4))
}

func TestResolveArea_ReturnsTokensToStock(t *testing.T) {
	b := boardtest.Board(t, "alice", "bob")
	boardtest.Place(t, b, "alice", "w", 2)
	boardtest.Place(t, b, "bob", "w", 2)

	r := NewResolver(zaptest.NewLogger(t), 6)
	res := r.ResolveArea(b, "w")

	assert.Equal(t, map[board.PlayerID]int{"alice": 1, "bob": 1}, res.Survivors)
	alice, _ := b.Player("alice")
	assert.Equal(t, 46, alice.Population.Available())
	assert.Equal(t, []board.TokenID{1}, b.Population("w").Tokens("alice"))
	require.NoError(t, b.CheckInvariants())
}

func TestResolveArea_CityHoldsAgainstSmallForce(t *testing.T) {
	b := boardtest.Board(t, "alice", "bob")
	boardtest.City(t, b, "alice", "x")
	boardtest.Place(t, b, "bob", "x", 3)

	res := NewResolver(zaptest.NewLogger(t), 6).ResolveArea(b, "x")

	assert.Nil(t, res.CityEliminated)
	assert.Equal(t, 3, res.Removed["bob"])
	assert.True(t, b.Population("x").IsEmpty())
	_, ok := b.City("x")
	assert.True(t, ok)
}

func TestResolveArea_CityFallsToLargeForce(t *testing.T) {
	b := boardtest.Board(t, "alice", "bob")
	boardtest.City(t, b, "alice", "z")
	boardtest.Place(t, b, "bob", "z", 7)

	res := NewResolver(zaptest.NewLogger(t), 6).ResolveArea(b, "z")

	require.NotNil(t, res.CityEliminated)
	assert.Equal(t, board.PlayerID("alice"), res.CityEliminated.Player)
	_, ok := b.City("z")
	assert.False(t, ok)
	assert.Equal(t, 7, b.CountIn("bob", "z"))
	alice, _ := b.Player("alice")
	assert.Equal(t, 9, alice.CityTokens.Available())
}

func TestRemoveSurplus_Boundary(t *testing.T) {
	b := boardtest.Board(t, "alice")
	boardtest.Place(t, b, "alice", "z", 7)

	r, ok := RemoveSurplus(b, "z")
	require.True(t, ok)
	assert.Equal(t, 3, r.Returned)
	assert.Equal(t, 4, b.CountIn("alice", "z"))

	_, ok = RemoveSurplus(b, "z")
	assert.False(t, ok)
}

func TestRemoveSurplus_CityAreaLosesEverything(t *testing.T) {
	b := boardtest.Board(t, "alice")
	boardtest.City(t, b, "alice", "x")
	boardtest.Place(t, b, "alice", "x", 2)
	boardtest.Place(t, b, "alice", "y", 5)

	removals := RemoveAllSurplus(b)
	require.Len(t, removals, 2)
	assert.True(t, removals[0].CityArea)
	assert.Equal(t, 2, removals[0].Returned)
	assert.Equal(t, 2, removals[1].Returned)
	assert.Equal(t, 3, b.CountIn("alice", "y"))
	require.NoError(t, b.CheckInvariants())
}

func TestCheckSupport(t *testing.T) {
	b := boardtest.Board(t, "alice", "bob")
	boardtest.City(t, b, "alice", "x")
	boardtest.Place(t, b, "alice", "y", 2)
	boardtest.City(t, b, "bob", "w")

	_, ok := CheckSupport(b, "alice", 2)
	assert.False(t, ok)

	marker, ok := CheckSupport(b, "bob", 2)
	require.True(t, ok)
	assert.Equal(t, TooManyCities{Player: "bob", SurplusCount: 1, NeededTokens: 2}, marker)

	assert.Equal(t, []board.PlayerID{"alice", "bob"}, PlayersWithCities(b))
}
