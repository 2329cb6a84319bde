package calamity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavaeater/civ-server-go/internal/game/board"
	"github.com/lavaeater/civ-server-go/internal/game/board/boardtest"
	"github.com/lavaeater/civ-server-go/internal/game/cards"
)

func start(t *testing.T, b *board.Board, card cards.TradeCard, victim board.PlayerID, ctx Context) Machine {
	t.Helper()
	m, err := New(card, victim, ctx)
	require.NoError(t, err)
	require.NoError(t, Advance(m, b))
	return m
}

func TestNew_EveryCalamityHasAMachine(t *testing.T) {
	for _, c := range cards.Calamities() {
		m, err := New(c, "alice", Context{})
		require.NoError(t, err, c)
		assert.Equal(t, c, m.Calamity())
		assert.NotEqual(t, PhaseComplete, m.Phase())
	}
	_, err := New(cards.Salt, "alice", Context{})
	require.ErrorIs(t, err, ErrNotCalamity)
}

func TestFamine_VictimSelectsTenPoints(t *testing.T) {
	b := boardtest.Board(t, "alice")
	boardtest.Place(t, b, "alice", "z", 4)
	boardtest.Place(t, b, "alice", "y", 3)
	boardtest.City(t, b, "alice", "x")

	m := start(t, b, cards.Famine, "alice", Context{})
	require.Equal(t, PhaseSelectVictims, m.Phase())
	assert.Equal(t, 10, m.Required())
	assert.Equal(t, board.PlayerID("alice"), m.Chooser())

	require.ErrorIs(t, m.Select(b, "bob", Target{Area: "z"}), ErrWrongChooser)
	require.ErrorIs(t, m.Select(b, "alice", Target{Area: "w"}), ErrInvalidTarget)

	require.NoError(t, m.Select(b, "alice", Target{Area: "x", City: true}))
	for i := 0; i < 4; i++ {
		require.NoError(t, m.Select(b, "alice", Target{Area: "z"}))
	}
	assert.False(t, m.SelectionComplete(b))
	require.ErrorIs(t, m.Select(b, "alice", Target{Area: "z"}), ErrInvalidTarget)
	require.NoError(t, m.Select(b, "alice", Target{Area: "y"}))
	assert.True(t, m.SelectionComplete(b))

	require.NoError(t, Advance(m, b))
	assert.Equal(t, PhaseComplete, m.Phase())
	assert.Equal(t, 0, b.CountIn("alice", "z"))
	assert.Equal(t, 2, b.CountIn("alice", "y"))
	_, hasCity := b.City("x")
	assert.False(t, hasCity)
	assert.Equal(t, 1, b.CountIn("alice", "x"), "reduced city leaves one token")
	require.NoError(t, b.CheckInvariants())
}

func TestFamine_PotteryReducesLoss(t *testing.T) {
	b := boardtest.Board(t, "alice")
	boardtest.Place(t, b, "alice", "z", 4)
	alice, _ := b.Player("alice")
	alice.Advances.Add(cards.Pottery)

	m := start(t, b, cards.Famine, "alice", Context{})
	assert.Equal(t, 6, m.Required())
}

func TestFamine_NothingToLoseCompletes(t *testing.T) {
	b := boardtest.Board(t, "alice")
	m := start(t, b, cards.Famine, "alice", Context{})
	assert.Equal(t, PhaseComplete, m.Phase())
}

func TestEpidemic_MedicineHalvesAndNeighboursSuffer(t *testing.T) {
	b := boardtest.Board(t, "alice", "bob")
	boardtest.Place(t, b, "alice", "y", 3)
	boardtest.Place(t, b, "bob", "w", 2)
	boardtest.Place(t, b, "bob", "v", 5)
	alice, _ := b.Player("alice")
	alice.Advances.Add(cards.Medicine)

	m := start(t, b, cards.Epidemic, "alice", Context{})
	assert.Equal(t, 8, m.Required())
	for i := 0; i < 3; i++ {
		require.NoError(t, m.Select(b, "alice", Target{Area: "y"}))
	}
	require.True(t, m.SelectionComplete(b), "no candidates left")
	require.NoError(t, Advance(m, b))

	assert.Equal(t, 0, b.CountIn("alice", "y"))
	assert.Equal(t, 0, b.CountIn("bob", "v"), "largest holding is hit first")
	assert.Equal(t, 2, b.CountIn("bob", "w"))
}

func TestVolcano_WipesEveryoneInTheArea(t *testing.T) {
	b := boardtest.Board(t, "alice", "bob")
	boardtest.Place(t, b, "alice", "w", 1)
	boardtest.Place(t, b, "bob", "w", 1)
	boardtest.City(t, b, "bob", "w")

	m := start(t, b, cards.VolcanoEarthquake, "alice", Context{})
	assert.Equal(t, PhaseComplete, m.Phase())
	assert.True(t, b.Population("w").IsEmpty())
	_, ok := b.City("w")
	assert.False(t, ok)
}

func TestEarthquake_EngineeringReduces(t *testing.T) {
	b := boardtest.Board(t, "alice")
	boardtest.City(t, b, "alice", "x")
	alice, _ := b.Player("alice")
	alice.Advances.Add(cards.Engineering)

	m := start(t, b, cards.VolcanoEarthquake, "alice", Context{})
	require.Equal(t, PhaseSelectCity, m.Phase())
	require.Equal(t, []Target{{Area: "x", City: true}}, m.Candidates(b))
	require.NoError(t, m.Select(b, "alice", Target{Area: "x", City: true}))
	require.NoError(t, Advance(m, b))

	_, ok := b.City("x")
	assert.False(t, ok)
	assert.Equal(t, 1, b.CountIn("alice", "x"))
}

func TestTreachery_GiverTakesCity(t *testing.T) {
	b := boardtest.Board(t, "alice", "bob")
	boardtest.City(t, b, "alice", "x")

	m := start(t, b, cards.Treachery, "alice", Context{Giver: "bob"})
	assert.Equal(t, board.PlayerID("bob"), m.Beneficiary())
	assert.Equal(t, board.PlayerID("bob"), m.Chooser())
	require.NoError(t, m.Select(b, "bob", Target{Area: "x", City: true}))
	require.NoError(t, Advance(m, b))

	city, ok := b.City("x")
	require.True(t, ok)
	assert.Equal(t, board.PlayerID("bob"), city.Player)
	require.NoError(t, b.CheckInvariants())
}

func TestCivilWar_UnitsChangeSides(t *testing.T) {
	b := boardtest.Board(t, "alice", "bob", "carol")
	boardtest.Place(t, b, "alice", "z", 4)
	boardtest.Place(t, b, "bob", "v", 10)
	b.RefreshCensus()

	m := start(t, b, cards.CivilWar, "alice", Context{})
	assert.Equal(t, board.PlayerID("carol"), m.Beneficiary(), "carol has the largest stock")
	assert.Equal(t, 15, m.Required())
	for i := 0; i < 4; i++ {
		require.NoError(t, m.Select(b, "alice", Target{Area: "z"}))
	}
	require.NoError(t, Advance(m, b))

	assert.Equal(t, 0, b.CountIn("alice", "z"))
	assert.Equal(t, 4, b.CountIn("carol", "z"))
	require.NoError(t, b.CheckInvariants())
}

func TestFlood_WashesFloodPlain(t *testing.T) {
	b := boardtest.Board(t, "alice")
	boardtest.Place(t, b, "alice", "z", 4)
	boardtest.Place(t, b, "alice", "y", 2)

	m := start(t, b, cards.Flood, "alice", Context{})
	assert.Equal(t, PhaseComplete, m.Phase())
	assert.Equal(t, 0, b.CountIn("alice", "z"))
	assert.Equal(t, 2, b.CountIn("alice", "y"))
}

func TestCivilDisorder_ThreeCitiesAreSafe(t *testing.T) {
	b := boardtest.Board(t, "alice")
	boardtest.City(t, b, "alice", "x")
	boardtest.City(t, b, "alice", "y")
	boardtest.City(t, b, "alice", "z")

	m := start(t, b, cards.CivilDisorder, "alice", Context{})
	assert.Equal(t, PhaseComplete, m.Phase())
	assert.Len(t, b.CitiesOf("alice"), 3)
}

func TestPiracy_OnlyCoastalCities(t *testing.T) {
	b := boardtest.Board(t, "alice", "bob")
	boardtest.City(t, b, "alice", "x")
	boardtest.City(t, b, "alice", "y")
	b.RefreshCensus()

	m := start(t, b, cards.Piracy, "alice", Context{})
	assert.Equal(t, board.PlayerID("bob"), m.Chooser())
	assert.Equal(t, []Target{{Area: "x", City: true}}, m.Candidates(b))
	require.NoError(t, m.Select(b, "bob", Target{Area: "x", City: true}))
	require.NoError(t, Advance(m, b))

	assert.Equal(t, PhaseComplete, m.Phase())
	assert.Equal(t, 1, b.CountIn("bob", "x"))
	assert.Equal(t, []board.AreaID{"y"}, b.CitiesOf("alice"))
}

func TestBarbarians_LandOnCoast(t *testing.T) {
	b := boardtest.Board(t, "alice")
	boardtest.Place(t, b, "alice", "x", 3)
	boardtest.Place(t, b, "alice", "z", 4)

	m := start(t, b, cards.BarbarianHordes, "alice", Context{})
	assert.Equal(t, PhaseComplete, m.Phase())
	assert.Equal(t, 0, b.CountIn("alice", "x"))
	assert.Equal(t, 0, b.CountIn("alice", "z"), "sweep continues into neighbours")
	require.NoError(t, b.CheckInvariants())
}

func TestCityLossCalamities_AdvancesReduceLoss(t *testing.T) {
	tests := []struct {
		name     string
		card     cards.TradeCard
		advances []cards.Advance
		want     int
	}{
		{"slave revolt", cards.SlaveRevolt, nil, 2},
		{"slave revolt with enlightenment", cards.SlaveRevolt, []cards.Advance{cards.Enlightenment}, 1},
		{"superstition", cards.Superstition, nil, 3},
		{"superstition with mysticism", cards.Superstition, []cards.Advance{cards.Mysticism}, 2},
		{"superstition with every relief", cards.Superstition, []cards.Advance{cards.Mysticism, cards.Deism, cards.Philosophy}, 0},
		{"iconoclasm", cards.IconoclasmAndHeresy, nil, 4},
		{"iconoclasm with philosophy", cards.IconoclasmAndHeresy, []cards.Advance{cards.Philosophy}, 3},
		{"iconoclasm with theology", cards.IconoclasmAndHeresy, []cards.Advance{cards.Theology}, 1},
		{"iconoclasm with philosophy and theology", cards.IconoclasmAndHeresy, []cards.Advance{cards.Philosophy, cards.Theology}, 0},
		{"civil disorder", cards.CivilDisorder, nil, 2},
		{"civil disorder with law", cards.CivilDisorder, []cards.Advance{cards.Law}, 1},
		{"civil disorder with law and democracy", cards.CivilDisorder, []cards.Advance{cards.Law, cards.Democracy}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := boardtest.Board(t, "alice")
			areas := []board.AreaID{"x", "y", "z", "w", "v"}
			for _, area := range areas {
				boardtest.City(t, b, "alice", area)
			}
			alice, _ := b.Player("alice")
			for _, a := range tt.advances {
				alice.Advances.Add(a)
			}

			m := start(t, b, tt.card, "alice", Context{})
			assert.Equal(t, tt.want, m.Required())
			if tt.want == 0 {
				assert.Equal(t, PhaseComplete, m.Phase())
				assert.Len(t, b.CitiesOf("alice"), len(areas))
				return
			}

			require.Equal(t, PhaseSelectCity, m.Phase())
			assert.Equal(t, board.PlayerID("alice"), m.Chooser())
			require.ErrorIs(t, m.Select(b, "alice", Target{Area: "x"}), ErrInvalidTarget, "only cities are picked")
			for !m.SelectionComplete(b) {
				require.NoError(t, m.Select(b, "alice", m.Candidates(b)[0]))
			}
			require.NoError(t, Advance(m, b))

			assert.Equal(t, PhaseComplete, m.Phase())
			assert.Len(t, b.CitiesOf("alice"), len(areas)-tt.want)
			for _, pick := range m.Picks() {
				_, hasCity := b.City(pick.Area)
				assert.False(t, hasCity, pick.Area)
				assert.Equal(t, 1, b.CountIn("alice", pick.Area), "reduced city leaves one token")
			}
			require.NoError(t, b.CheckInvariants())
		})
	}
}
