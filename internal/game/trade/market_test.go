package trade

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavaeater/civ-server-go/internal/game/board"
	"github.com/lavaeater/civ-server-go/internal/game/cards"
)

func newTestMarket() *Market {
	m := NewMarket(Rules{MinCards: 3, ManifestSize: 3})
	n := 0
	m.SetIDSource(func() string {
		n++
		return fmt.Sprintf("offer-%d", n)
	})
	return m
}

func hand(counts map[cards.TradeCard]int) *cards.Hand {
	h := cards.NewHand()
	for c, n := range counts {
		h.Add(c, n)
	}
	return h
}

func TestBuildManifest_CalamitiesThenCheapest(t *testing.T) {
	h := hand(map[cards.TradeCard]int{cards.Gold: 1, cards.Ochre: 2, cards.Piracy: 1, cards.Famine: 1})

	m, ok := BuildManifest(h, cards.Gold, 3)
	require.True(t, ok)
	assert.Equal(t, []cards.TradeCard{cards.Gold, cards.Piracy, cards.Ochre}, m)

	_, ok = BuildManifest(h, cards.Salt, 3)
	assert.False(t, ok)

	_, ok = BuildManifest(hand(map[cards.TradeCard]int{cards.Gold: 1, cards.Famine: 2}), cards.Gold, 3)
	assert.False(t, ok, "non-tradable calamities never fill a manifest")
}

func TestMarket_FullTrade(t *testing.T) {
	m := newTestMarket()
	hands := map[board.PlayerID]*cards.Hand{
		"alice": hand(map[cards.TradeCard]int{cards.Salt: 1, cards.Ochre: 2, cards.Treachery: 1}),
		"bob":   hand(map[cards.TradeCard]int{cards.Iron: 2, cards.Hides: 1}),
	}

	offer, err := m.Propose("alice", "bob", hands["alice"], hands["bob"], cards.Salt, cards.Iron)
	require.NoError(t, err)
	assert.Equal(t, "offer-1", offer.ID)
	assert.Equal(t, []*Offer{offer}, m.Pending("bob"))

	_, err = m.Propose("bob", "alice", hands["bob"], hands["alice"], cards.Iron, cards.Salt)
	require.ErrorIs(t, err, ErrOfferExists)

	_, err = m.Accept(offer.ID, "alice")
	require.ErrorIs(t, err, ErrNotParticipant)
	_, err = m.Accept(offer.ID, "bob")
	require.NoError(t, err)

	_, exchanged, err := m.Settle(offer.ID, "alice", hands)
	require.NoError(t, err)
	assert.False(t, exchanged)
	_, _, err = m.Settle(offer.ID, "alice", hands)
	require.ErrorIs(t, err, ErrOfferState)

	_, exchanged, err = m.Settle(offer.ID, "bob", hands)
	require.NoError(t, err)
	assert.True(t, exchanged)
	assert.Equal(t, StateSettled, offer.State)

	assert.Equal(t, 2, hands["alice"].Count(cards.Iron))
	assert.Equal(t, 1, hands["alice"].Count(cards.Hides))
	assert.Equal(t, 1, hands["alice"].Count(cards.Ochre))
	assert.Equal(t, 1, hands["bob"].Count(cards.Treachery))
	assert.Equal(t, 1, hands["bob"].Count(cards.Salt))

	giver, ok := m.Giver("bob", cards.Treachery)
	require.True(t, ok)
	assert.Equal(t, board.PlayerID("alice"), giver)
}

func TestMarket_DeclineAndStop(t *testing.T) {
	m := newTestMarket()
	a := hand(map[cards.TradeCard]int{cards.Salt: 3})
	b := hand(map[cards.TradeCard]int{cards.Iron: 3})
	c := hand(map[cards.TradeCard]int{cards.Iron: 1})

	assert.False(t, m.CanPropose("alice", "carol", a, c), "carol holds too few cards")

	o1, err := m.Propose("alice", "bob", a, b, cards.Salt, cards.Iron)
	require.NoError(t, err)
	declined := m.DeclineAll("bob")
	require.Len(t, declined, 1)
	assert.Equal(t, StateDeclined, o1.State)

	_, err = m.Propose("bob", "alice", b, a, cards.Iron, cards.Salt)
	require.NoError(t, err)
	m.Stop("alice")
	assert.True(t, m.Stopped("alice"))
	assert.Empty(t, m.Pending("alice"))
	_, err = m.Propose("bob", "alice", b, a, cards.Iron, cards.Salt)
	require.ErrorIs(t, err, ErrNotEligible)

	m.Reset()
	assert.False(t, m.Stopped("alice"))
	assert.Empty(t, m.Offers())
}

func TestMarket_SettleFallsThroughWhenCardsAreGone(t *testing.T) {
	m := newTestMarket()
	hands := map[board.PlayerID]*cards.Hand{
		"alice": hand(map[cards.TradeCard]int{cards.Ochre: 3}),
		"bob":   hand(map[cards.TradeCard]int{cards.Iron: 3}),
		"carol": hand(map[cards.TradeCard]int{cards.Salt: 3}),
	}

	toBob, err := m.Propose("alice", "bob", hands["alice"], hands["bob"], cards.Ochre, cards.Iron)
	require.NoError(t, err)
	toCarol, err := m.Propose("alice", "carol", hands["alice"], hands["carol"], cards.Ochre, cards.Salt)
	require.NoError(t, err)
	_, err = m.Accept(toBob.ID, "bob")
	require.NoError(t, err)
	_, err = m.Accept(toCarol.ID, "carol")
	require.NoError(t, err)

	// alice commits the same three ochre to both offers
	_, _, err = m.Settle(toBob.ID, "alice", hands)
	require.NoError(t, err)
	_, _, err = m.Settle(toCarol.ID, "alice", hands)
	require.NoError(t, err)

	_, exchanged, err := m.Settle(toBob.ID, "bob", hands)
	require.NoError(t, err)
	require.True(t, exchanged)

	offer, exchanged, err := m.Settle(toCarol.ID, "carol", hands)
	require.NoError(t, err)
	assert.False(t, exchanged)
	assert.Equal(t, StateDeclined, offer.State)
	assert.Nil(t, offer.FromManifest)
	assert.Nil(t, offer.ToManifest)
	assert.Equal(t, board.PlayerID("alice"), offer.Counterpart("carol"))

	assert.Equal(t, map[cards.TradeCard]int{cards.Iron: 3}, hands["alice"].Snapshot())
	assert.Equal(t, map[cards.TradeCard]int{cards.Salt: 3}, hands["carol"].Snapshot())
	assert.Empty(t, m.Pending("carol"))

	_, _, err = m.Settle(toCarol.ID, "carol", hands)
	require.ErrorIs(t, err, ErrOfferState)
}
