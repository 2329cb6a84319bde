package cards

import (
	"fmt"
	"sort"
)

// Advance names a civilization card.
type Advance string

const (
	Pottery        Advance = "POTTERY"
	ClothMaking    Advance = "CLOTH_MAKING"
	Metalworking   Advance = "METALWORKING"
	Agriculture    Advance = "AGRICULTURE"
	Roadbuilding   Advance = "ROADBUILDING"
	Mining         Advance = "MINING"
	Mysticism      Advance = "MYSTICISM"
	Astronomy      Advance = "ASTRONOMY"
	Coinage        Advance = "COINAGE"
	Medicine       Advance = "MEDICINE"
	Mathematics    Advance = "MATHEMATICS"
	Engineering    Advance = "ENGINEERING"
	Literacy       Advance = "LITERACY"
	Law            Advance = "LAW"
	Democracy      Advance = "DEMOCRACY"
	Philosophy     Advance = "PHILOSOPHY"
	Music          Advance = "MUSIC"
	DramaAndPoetry Advance = "DRAMA_AND_POETRY"
	Architecture   Advance = "ARCHITECTURE"
	Theology       Advance = "THEOLOGY"
	Monotheism     Advance = "MONOTHEISM"
	Deism          Advance = "DEISM"
	Enlightenment  Advance = "ENLIGHTENMENT"
	TradeEmpire    Advance = "TRADE_EMPIRE"
)

var advanceCosts = map[Advance]int{
	Pottery:        45,
	ClothMaking:    45,
	Mysticism:      50,
	Music:          60,
	DramaAndPoetry: 60,
	Metalworking:   80,
	Astronomy:      80,
	Deism:          80,
	Agriculture:    110,
	Coinage:        110,
	Literacy:       110,
	Roadbuilding:   140,
	Medicine:       140,
	Engineering:    140,
	Architecture:   140,
	Enlightenment:  150,
	Mathematics:    170,
	Law:            170,
	Mining:         180,
	TradeEmpire:    180,
	Democracy:      220,
	Monotheism:     220,
	Philosophy:     240,
	Theology:       250,
}

// Cost returns the purchase price of an advance; unknown advances cost 0 and ok=false.
func Cost(a Advance) (int, bool) {
	c, ok := advanceCosts[a]
	return c, ok
}

// AllAdvances returns every advance, cheapest first.
func AllAdvances() []Advance {
	out := make([]Advance, 0, len(advanceCosts))
	for a := range advanceCosts {
		out = append(out, a)
	}
	sortAdvances(out)
	return out
}

func sortAdvances(list []Advance) {
	sort.Slice(list, func(i, j int) bool {
		ci, cj := advanceCosts[list[i]], advanceCosts[list[j]]
		if ci != cj {
			return ci < cj
		}
		return list[i] < list[j]
	})
}

// AdvanceSet is the collection of civilization cards a player owns.
type AdvanceSet map[Advance]struct{}

// Has reports whether the advance is owned.
func (s AdvanceSet) Has(a Advance) bool {
	_, ok := s[a]
	return ok
}

// Add records ownership of an advance.
func (s AdvanceSet) Add(a Advance) {
	s[a] = struct{}{}
}

// List returns the owned advances, cheapest first.
func (s AdvanceSet) List() []Advance {
	out := make([]Advance, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	sortAdvances(out)
	return out
}

// Payment describes how a purchase is paid for.
type Payment struct {
	Sets     []TradeCard // commodities whose whole set is spent
	Treasury int
	Value    int
}

// PurchasingPower is the commodity set value plus treasury.
func PurchasingPower(hand *Hand, treasury int) int {
	return hand.TotalValue() + treasury
}

// PlanPayment picks commodity sets, smallest first, then treasury to cover cost.
// Overpayment is lost, as there is no change.
func PlanPayment(hand *Hand, treasury, cost int) (Payment, bool) {
	if cost <= 0 {
		return Payment{}, true
	}
	if PurchasingPower(hand, treasury) < cost {
		return Payment{}, false
	}

	sets := hand.Commodities()
	sort.SliceStable(sets, func(i, j int) bool {
		return hand.SetValue(sets[i]) < hand.SetValue(sets[j])
	})

	var p Payment
	remaining := cost
	for _, card := range sets {
		if remaining <= 0 {
			break
		}
		v := hand.SetValue(card)
		p.Sets = append(p.Sets, card)
		p.Value += v
		remaining -= v
	}
	if remaining > 0 {
		p.Treasury = remaining
		p.Value += remaining
	}
	return p, true
}

// Apply removes the spent sets from the hand and returns the discarded cards.
func (p Payment) Apply(hand *Hand) []TradeCard {
	var discarded []TradeCard
	for _, card := range p.Sets {
		n := hand.RemoveAll(card)
		for i := 0; i < n; i++ {
			discarded = append(discarded, card)
		}
	}
	return discarded
}

func (p Payment) String() string {
	return fmt.Sprintf("sets=%v treasury=%d value=%d", p.Sets, p.Treasury, p.Value)
}
