package cards

import "math/rand/v2"

// Piles holds the nine face-down trade-card piles. Index 0 is unused.
type Piles struct {
	piles [MaxPile + 1][]TradeCard
}

// NewPiles builds and shuffles every pile from the card table.
// The same seed always yields the same order.
func NewPiles(seed uint64) *Piles {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	p := &Piles{}
	for _, card := range AllTradeCards() {
		info := tradeCards[card]
		for i := 0; i < info.Copies; i++ {
			p.piles[info.Value] = append(p.piles[info.Value], card)
		}
	}
	for n := 1; n <= MaxPile; n++ {
		pile := p.piles[n]
		rng.Shuffle(len(pile), func(i, j int) { pile[i], pile[j] = pile[j], pile[i] })
	}
	return p
}

// NewPilesFrom builds piles with an explicit top-to-bottom order, for tests and restores.
func NewPilesFrom(piles map[int][]TradeCard) *Piles {
	p := &Piles{}
	for n, cards := range piles {
		if n < 1 || n > MaxPile {
			continue
		}
		p.piles[n] = append([]TradeCard(nil), cards...)
	}
	return p
}

// Draw takes the top card of a pile. An empty pile yields ok=false.
func (p *Piles) Draw(pile int) (TradeCard, bool) {
	if pile < 1 || pile > MaxPile || len(p.piles[pile]) == 0 {
		return "", false
	}
	card := p.piles[pile][0]
	p.piles[pile] = p.piles[pile][1:]
	return card, true
}

// Discard puts a card on the bottom of its own pile.
func (p *Piles) Discard(card TradeCard) {
	info, ok := tradeCards[card]
	if !ok {
		return
	}
	p.piles[info.Value] = append(p.piles[info.Value], card)
}

// Remaining returns the number of cards left in a pile.
func (p *Piles) Remaining(pile int) int {
	if pile < 1 || pile > MaxPile {
		return 0
	}
	return len(p.piles[pile])
}

// Contents returns a copy of every pile, top card first.
func (p *Piles) Contents() map[int][]TradeCard {
	out := make(map[int][]TradeCard, MaxPile)
	for n := 1; n <= MaxPile; n++ {
		out[n] = append([]TradeCard(nil), p.piles[n]...)
	}
	return out
}
