package moves

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavaeater/civ-server-go/internal/game/board"
	"github.com/lavaeater/civ-server-go/internal/game/board/boardtest"
	"github.com/lavaeater/civ-server-go/internal/game/calamity"
	"github.com/lavaeater/civ-server-go/internal/game/cards"
	"github.com/lavaeater/civ-server-go/internal/game/conflict"
	"github.com/lavaeater/civ-server-go/internal/game/rules"
	"github.com/lavaeater/civ-server-go/internal/game/trade"
)

var params = Params{CitySitePopulation: 3, CityPopulation: 6}

func input(b *board.Board, activity rules.Activity, player board.PlayerID) Input {
	return Input{Board: b, Activity: activity, Player: player, Active: true, Params: params}
}

func TestMovement_EndToEnd(t *testing.T) {
	m, err := board.ParseMap([]byte(`
areas:
  - id: x
    max_population: 3
    land: [y]
  - id: y
    max_population: 3
`))
	require.NoError(t, err)
	b := board.New(m, board.DefaultSetup())
	_, err = b.AddPlayer("alice", "", true)
	require.NoError(t, err)
	require.NoError(t, b.MoveStockToArea("alice", "x", 4))

	catalog := Compute(input(b, rules.ActivityMovement, "alice"))
	require.Equal(t, 2, catalog.Len())
	first, _ := catalog.Get(1)
	assert.Equal(t, Movement{Source: "x", Target: "y", MaxTokens: 4}, first)
	last, _ := catalog.Get(2)
	assert.Equal(t, EndMovement{}, last)

	require.NoError(t, b.MoveAreaToArea("alice", "x", "y", 2))
	assert.Equal(t, 2, b.CountIn("alice", "x"))
	assert.Equal(t, 2, b.CountIn("alice", "y"))

	catalog = Compute(input(b, rules.ActivityMovement, "alice"))
	first, _ = catalog.Get(1)
	assert.Equal(t, Movement{Source: "x", Target: "y", MaxTokens: 2}, first)
	assert.Equal(t, 2, catalog.Len(), "arrived tokens cannot move again")
}

func TestCompute_Idempotent(t *testing.T) {
	b := boardtest.Board(t, "alice", "bob")
	boardtest.Place(t, b, "alice", "x", 3)
	boardtest.Place(t, b, "bob", "y", 1)
	boardtest.City(t, b, "bob", "z")

	a := Compute(input(b, rules.ActivityMovement, "alice"))
	c := Compute(input(b, rules.ActivityMovement, "alice"))
	assert.Equal(t, a.Entries(), c.Entries())

	require.Equal(t, 3, a.Len())
	attack, _ := a.Get(1)
	assert.Equal(t, AttackArea{Source: "x", Target: "y", MaxTokens: 3, Defender: "bob"}, attack)
	city, _ := a.Get(2)
	assert.Equal(t, AttackCity{Source: "x", Target: "z", MaxTokens: 3, Defender: "bob"}, city)
}

func TestCompute_InactiveOrAutomaticIsEmpty(t *testing.T) {
	b := boardtest.Board(t, "alice")
	boardtest.Place(t, b, "alice", "x", 3)

	in := input(b, rules.ActivityMovement, "alice")
	in.Active = false
	assert.Equal(t, 0, Compute(in).Len())
	assert.Equal(t, 0, Compute(input(b, rules.ActivityCensus, "alice")).Len())
	assert.Equal(t, 0, Compute(input(b, rules.ActivityMovement, "nobody")).Len())

	_, ok := Compute(in).Get(1)
	assert.False(t, ok)
}

func TestExpansionMoves(t *testing.T) {
	b := boardtest.Board(t, "alice")
	boardtest.Place(t, b, "alice", "x", 1)
	boardtest.Place(t, b, "alice", "w", 2)

	in := input(b, rules.ActivityPopulationExpansion, "alice")
	assert.Equal(t, 0, Compute(in).Len(), "automatic expansion offers no moves")

	in.ManualExpansion = true
	catalog := Compute(in)
	assert.Equal(t, []Move{PopulationExpansion{Area: "x", MaxTokens: 2}}, catalog.Moves())
}

func TestConstructionMoves(t *testing.T) {
	b := boardtest.Board(t, "alice", "bob")
	boardtest.Place(t, b, "alice", "x", 3)
	boardtest.Place(t, b, "alice", "z", 4)
	boardtest.Place(t, b, "alice", "y", 3)
	boardtest.Place(t, b, "bob", "y", 1)

	catalog := Compute(input(b, rules.ActivityCityConstruction, "alice"))
	assert.Equal(t, []Move{CityConstruction{Area: "x"}, EndCityConstruction{}}, catalog.Moves())
}

func TestCitySupportMoves(t *testing.T) {
	b := boardtest.Board(t, "alice")
	boardtest.City(t, b, "alice", "x")
	boardtest.City(t, b, "alice", "w")

	marker, ok := conflict.CheckSupport(b, "alice", 2)
	require.True(t, ok)
	in := input(b, rules.ActivityCheckCitySupport, "alice")
	in.Support = &marker

	assert.Equal(t, []Move{EliminateCity{Area: "x"}, EliminateCity{Area: "w"}}, Compute(in).Moves())
}

func TestTradeMoves(t *testing.T) {
	b := boardtest.Board(t, "alice", "bob")
	alice, _ := b.Player("alice")
	bob, _ := b.Player("bob")
	alice.TradeCards.Add(cards.Salt, 2)
	alice.TradeCards.Add(cards.Ochre, 1)
	bob.TradeCards.Add(cards.Salt, 1)
	bob.TradeCards.Add(cards.Iron, 2)

	market := trade.NewMarket(trade.Rules{MinCards: 3, ManifestSize: 3})
	in := input(b, rules.ActivityTrade, "alice")
	in.Market = market

	catalog := Compute(in)
	assert.Equal(t, []Move{
		ProposeTrade{Partner: "bob", Offered: cards.Ochre, Requested: cards.Salt},
		StopTrading{},
	}, catalog.Moves())

	offer, err := market.Propose("alice", "bob", alice.TradeCards, bob.TradeCards, cards.Ochre, cards.Salt)
	require.NoError(t, err)

	in.Player = "bob"
	catalog = Compute(in)
	assert.Equal(t, []Move{
		AcceptOrDeclineTrade{OfferID: offer.ID, From: "alice", Accept: true},
		AcceptOrDeclineTrade{OfferID: offer.ID, From: "alice", Accept: false},
		AutoDeclineTrade{},
		StopTrading{},
	}, catalog.Moves())

	_, err = market.Accept(offer.ID, "bob")
	require.NoError(t, err)
	idx, ok := Compute(in).Find(SettleTrade{OfferID: offer.ID, Partner: "alice"})
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
}

func TestCalamityTargetMoves(t *testing.T) {
	b := boardtest.Board(t, "alice")
	boardtest.City(t, b, "alice", "x")
	m, err := calamity.New(cards.Superstition, "alice", calamity.Context{})
	require.NoError(t, err)
	require.NoError(t, calamity.Advance(m, b))

	in := input(b, rules.ActivityResolveCalamities, "alice")
	in.Calamity = m
	assert.Equal(t, []Move{ChooseCalamityTarget{
		Calamity: cards.Superstition, Victim: "alice", Area: "x", City: true,
	}}, Compute(in).Moves())
}

func TestCivilizationMoves(t *testing.T) {
	b := boardtest.Board(t, "alice")
	alice, _ := b.Player("alice")
	alice.TradeCards.Add(cards.Gold, 3) // 81
	alice.Advances.Add(cards.ClothMaking)

	catalog := Compute(input(b, rules.ActivityAcquireCivilizationCards, "alice"))
	moves := catalog.Moves()
	require.NotEmpty(t, moves)
	assert.Equal(t, AcquireCard{Advance: cards.Pottery, Cost: 45}, moves[0])
	assert.Equal(t, DoneAcquiringCards{}, moves[len(moves)-1])
	for _, m := range moves {
		if ac, ok := m.(AcquireCard); ok {
			assert.NotEqual(t, cards.ClothMaking, ac.Advance)
			assert.LessOrEqual(t, ac.Cost, 81)
		}
	}
	_, hasBundle := catalog.Find(AcquireCards{Advances: []cards.Advance{cards.Pottery}, Cost: 45})
	assert.False(t, hasBundle)
}

func TestCheapestBundle(t *testing.T) {
	hand := cards.NewHand()
	hand.Add(cards.Gold, 4) // 144
	bundle, cost := CheapestBundle(hand, 0, []cards.Advance{cards.Music, cards.Pottery, cards.Astronomy})
	assert.Equal(t, []cards.Advance{cards.Pottery, cards.Music}, bundle)
	assert.Equal(t, 105, cost)
}
