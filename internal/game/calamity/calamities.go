package calamity

import (
	"sort"

	"github.com/lavaeater/civ-server-go/internal/game/board"
	"github.com/lavaeater/civ-server-go/internal/game/cards"
)

// Volcano / earthquake: a volcano area holding the victim's units erupts and
// wipes out everyone there; otherwise an earthquake destroys one of the
// victim's cities, or reduces it with Engineering.
type volcanoEarthquake struct {
	base
	volcano board.AreaID
}

func newVolcanoEarthquake(b base) *volcanoEarthquake {
	b.phases = []Phase{PhaseDetermineType, PhaseSelectCity, PhaseApplyEffects}
	return &volcanoEarthquake{base: b}
}

func (m *volcanoEarthquake) step(b *board.Board) error {
	switch m.Phase() {
	case PhaseDetermineType:
		for _, a := range b.Map().Areas() {
			city, hasCity := b.City(a.ID)
			if a.Volcano && (b.CountIn(m.victim, a.ID) > 0 || (hasCity && city.Player == m.victim)) {
				m.volcano = a.ID
				m.skipTo(PhaseApplyEffects)
				return nil
			}
		}
		if len(b.CitiesOf(m.victim)) == 0 {
			m.complete()
			return nil
		}
		m.selectCities(1, m.victim, m.victim)
		m.next()
	case PhaseSelectCity:
		m.next()
	case PhaseApplyEffects:
		if m.volcano != "" {
			for _, p := range b.Population(m.volcano).Players() {
				b.ReturnAll(p, m.volcano)
			}
			destroyCity(b, m.volcano)
		} else {
			engineering := m.has(b, m.victim, cards.Engineering)
			m.applyPicks(b, func(area board.AreaID) {
				if engineering {
					ReduceCity(b, area)
				} else {
					destroyCity(b, area)
				}
			})
		}
		m.next()
	}
	return nil
}

// Treachery: one of the victim's cities defects to the player who traded the
// card, or to the census leader when it was drawn.
type treachery struct{ base }

func newTreachery(b base) *treachery {
	b.phases = []Phase{PhaseDetermineBeneficiary, PhaseSelectCity, PhaseApplyEffects}
	return &treachery{base: b}
}

func (m *treachery) step(b *board.Board) error {
	switch m.Phase() {
	case PhaseDetermineBeneficiary:
		m.beneficiary = m.giver
		if m.beneficiary == "" {
			m.beneficiary = opponentByCensus(b, m.victim)
		}
		if m.beneficiary == "" || len(b.CitiesOf(m.victim)) == 0 {
			m.complete()
			return nil
		}
		m.selectCities(1, m.beneficiary, m.victim)
		m.next()
	case PhaseSelectCity:
		m.next()
	case PhaseApplyEffects:
		m.applyPicks(b, func(area board.AreaID) {
			if err := b.TransferCity(area, m.beneficiary); err != nil {
				ReduceCity(b, area)
			}
		})
		m.next()
	}
	return nil
}

// lossMachine is the shape shared by calamities that cost the victim a number
// of unit points or cities chosen by the victim.
type lossMachine struct {
	base
	compute func(*lossMachine, *board.Board)
	onCity  func(*board.Board, board.AreaID)
}

func (m *lossMachine) step(b *board.Board) error {
	switch m.Phase() {
	case PhaseComputeEffects:
		m.compute(m, b)
		m.next()
	case PhaseSelectCity, PhaseSelectVictims:
		m.next()
	case PhaseApplyEffects:
		m.applyPicks(b, func(area board.AreaID) { m.onCity(b, area) })
		m.next()
	}
	return nil
}

func newFamine(b base) *lossMachine {
	b.phases = []Phase{PhaseComputeEffects, PhaseSelectVictims, PhaseApplyEffects}
	return &lossMachine{
		base: b,
		compute: func(m *lossMachine, bd *board.Board) {
			m.selectPoints(m.discount(bd, 10, map[cards.Advance]int{cards.Pottery: 4}))
		},
		onCity: ReduceCity,
	}
}

func newSuperstition(b base) *lossMachine {
	b.phases = []Phase{PhaseComputeEffects, PhaseSelectCity, PhaseApplyEffects}
	return &lossMachine{
		base: b,
		compute: func(m *lossMachine, bd *board.Board) {
			n := m.discount(bd, 3, map[cards.Advance]int{cards.Mysticism: 1, cards.Deism: 1, cards.Philosophy: 1})
			m.selectCities(n, m.victim, m.victim)
		},
		onCity: ReduceCity,
	}
}

func newSlaveRevolt(b base) *lossMachine {
	b.phases = []Phase{PhaseComputeEffects, PhaseSelectCity, PhaseApplyEffects}
	return &lossMachine{
		base: b,
		compute: func(m *lossMachine, bd *board.Board) {
			m.selectCities(m.discount(bd, 2, map[cards.Advance]int{cards.Enlightenment: 1}), m.victim, m.victim)
		},
		onCity: ReduceCity,
	}
}

func newCivilDisorder(b base) *lossMachine {
	b.phases = []Phase{PhaseComputeEffects, PhaseSelectCity, PhaseApplyEffects}
	return &lossMachine{
		base: b,
		compute: func(m *lossMachine, bd *board.Board) {
			n := len(bd.CitiesOf(m.victim)) - 3
			n = m.discount(bd, n, map[cards.Advance]int{
				cards.Law: 1, cards.Democracy: 1, cards.Music: 1, cards.DramaAndPoetry: 1,
			})
			m.selectCities(n, m.victim, m.victim)
		},
		onCity: ReduceCity,
	}
}

func newIconoclasm(b base) *lossMachine {
	b.phases = []Phase{PhaseComputeEffects, PhaseSelectCity, PhaseApplyEffects}
	return &lossMachine{
		base: b,
		compute: func(m *lossMachine, bd *board.Board) {
			n := m.discount(bd, 4, map[cards.Advance]int{cards.Philosophy: 1, cards.Theology: 3})
			m.selectCities(n, m.victim, m.victim)
		},
		onCity: ReduceCity,
	}
}

// Civil war: part of the victim's civilization, chosen by the victim, goes
// over to the player with the largest stock.
type civilWar struct{ base }

func newCivilWar(b base) *civilWar {
	b.phases = []Phase{PhaseDetermineBeneficiary, PhaseComputeEffects, PhaseSelectVictims, PhaseApplyEffects}
	return &civilWar{base: b}
}

func (m *civilWar) step(b *board.Board) error {
	switch m.Phase() {
	case PhaseDetermineBeneficiary:
		best := -1
		for _, id := range b.CensusOrder() {
			p, _ := b.Player(id)
			if id != m.victim && p.Population.Available() > best {
				best = p.Population.Available()
				m.beneficiary = id
			}
		}
		if m.beneficiary == "" {
			m.complete()
			return nil
		}
		m.next()
	case PhaseComputeEffects:
		m.selectPoints(m.discount(b, 15, map[cards.Advance]int{
			cards.Music: 5, cards.Philosophy: 5, cards.Democracy: 5,
		}))
		m.next()
	case PhaseSelectVictims:
		m.next()
	case PhaseApplyEffects:
		returned := m.applyPicks(b, func(area board.AreaID) {
			if err := b.TransferCity(area, m.beneficiary); err != nil {
				ReduceCity(b, area)
			}
		})
		for _, a := range b.Map().Areas() {
			if n := returned[a.ID]; n > 0 {
				b.PlaceUpTo(m.beneficiary, a.ID, n)
			}
		}
		m.next()
	}
	return nil
}

// Flood: the victim's units on flood plains are washed away up to a budget.
type flood struct {
	base
	plains []board.AreaID
	budget int
}

func newFlood(b base) *flood {
	b.phases = []Phase{PhaseFindFloodPlain, PhaseComputeEffects, PhaseApplyEffects}
	return &flood{base: b}
}

func (m *flood) step(b *board.Board) error {
	switch m.Phase() {
	case PhaseFindFloodPlain:
		for _, a := range b.Map().Areas() {
			city, hasCity := b.City(a.ID)
			if a.FloodPlain && (b.CountIn(m.victim, a.ID) > 0 || (hasCity && city.Player == m.victim)) {
				m.plains = append(m.plains, a.ID)
			}
		}
		if len(m.plains) == 0 {
			m.complete()
			return nil
		}
		m.next()
	case PhaseComputeEffects:
		m.budget = 17
		if m.has(b, m.victim, cards.Engineering) {
			m.budget = 10
		}
		m.required = m.budget
		m.next()
	case PhaseApplyEffects:
		for _, area := range m.plains {
			m.budget -= b.ReturnTokens(m.victim, area, m.budget) * TokenPoints
		}
		for _, area := range m.plains {
			if city, ok := b.City(area); ok && city.Player == m.victim && m.budget > 0 {
				ReduceCity(b, area)
				m.budget -= CityPoints
			}
		}
		m.next()
	}
	return nil
}

// Barbarian hordes land in the victim's strongest coastal area and sweep
// through neighbouring areas until their strength is spent.
type barbarianHordes struct {
	base
	landing board.AreaID
}

func newBarbarianHordes(b base) *barbarianHordes {
	b.phases = []Phase{PhaseDetermineType, PhaseComputeEffects, PhaseApplyEffects}
	return &barbarianHordes{base: b}
}

func (m *barbarianHordes) strength(b *board.Board, a board.AreaID) int {
	s := b.CountIn(m.victim, a)
	if city, ok := b.City(a); ok && city.Player == m.victim {
		s += CityPoints
	}
	return s
}

func (m *barbarianHordes) step(b *board.Board) error {
	switch m.Phase() {
	case PhaseDetermineType:
		best, bestCoastal := -1, false
		for _, a := range b.Map().Areas() {
			s := m.strength(b, a.ID)
			if s == 0 {
				continue
			}
			if (a.Coastal() && !bestCoastal) || (a.Coastal() == bestCoastal && s > best) {
				best, bestCoastal, m.landing = s, a.Coastal(), a.ID
			}
		}
		if m.landing == "" {
			m.complete()
			return nil
		}
		m.next()
	case PhaseComputeEffects:
		m.required = 15
		m.next()
	case PhaseApplyEffects:
		budget := m.required
		route := []board.AreaID{m.landing}
		if a, ok := b.Map().Area(m.landing); ok {
			route = append(route, a.LandConnections...)
		}
		for _, area := range route {
			if budget <= 0 {
				break
			}
			if city, ok := b.City(area); ok && city.Player == m.victim {
				destroyCity(b, area)
				budget -= CityPoints
			}
			if budget > 0 {
				budget -= b.ReturnTokens(m.victim, area, budget)
			}
		}
		m.next()
	}
	return nil
}

// Epidemic: the victim chooses its own losses; neighbours sharing a border
// lose a smaller amount, taken from their largest holding.
type epidemic struct{ base }

func newEpidemic(b base) *epidemic {
	b.phases = []Phase{PhaseComputeEffects, PhaseSelectVictims, PhaseApplyEffects}
	return &epidemic{base: b}
}

func (m *epidemic) step(b *board.Board) error {
	switch m.Phase() {
	case PhaseComputeEffects:
		loss := 16
		if m.has(b, m.victim, cards.Medicine) {
			loss /= 2
		}
		m.selectPoints(loss)
		m.next()
	case PhaseSelectVictims:
		m.next()
	case PhaseApplyEffects:
		neighbours := m.neighbours(b)
		m.applyPicks(b, func(area board.AreaID) { ReduceCity(b, area) })
		for _, p := range neighbours {
			loss := 5
			if m.has(b, p, cards.Medicine) {
				loss /= 2
			}
			secondaryLoss(b, p, loss)
		}
		m.next()
	}
	return nil
}

// neighbours lists players with tokens in areas bordering the victim.
func (m *epidemic) neighbours(b *board.Board) []board.PlayerID {
	border := make(map[board.AreaID]struct{})
	for _, area := range b.AreasOf(m.victim) {
		a, _ := b.Map().Area(area)
		border[area] = struct{}{}
		for _, n := range a.LandConnections {
			border[n] = struct{}{}
		}
	}
	seen := make(map[board.PlayerID]struct{})
	var out []board.PlayerID
	for _, p := range b.Players() {
		if p.ID == m.victim {
			continue
		}
		for area := range border {
			if b.CountIn(p.ID, area) > 0 {
				if _, ok := seen[p.ID]; !ok {
					seen[p.ID] = struct{}{}
					out = append(out, p.ID)
				}
				break
			}
		}
	}
	return out
}

// secondaryLoss removes tokens from the player's largest areas first.
func secondaryLoss(b *board.Board, player board.PlayerID, points int) {
	areas := b.AreasOf(player)
	sort.SliceStable(areas, func(i, j int) bool { return b.CountIn(player, areas[i]) > b.CountIn(player, areas[j]) })
	for _, area := range areas {
		if points <= 0 {
			return
		}
		points -= b.ReturnTokens(player, area, points)
	}
}

// Piracy: the beneficiary picks coastal cities of the victim; each is sacked
// and replaced by one of the beneficiary's tokens.
type piracy struct{ base }

func newPiracy(b base) *piracy {
	b.phases = []Phase{PhaseDetermineBeneficiary, PhaseSelectCity, PhaseApplyEffects}
	b.cityFilter = func(a *board.Area) bool { return a.Coastal() }
	return &piracy{base: b}
}

func (m *piracy) step(b *board.Board) error {
	switch m.Phase() {
	case PhaseDetermineBeneficiary:
		m.beneficiary = m.giver
		if m.beneficiary == "" {
			m.beneficiary = opponentByCensus(b, m.victim)
		}
		if m.beneficiary == "" {
			m.complete()
			return nil
		}
		m.selectCities(2, m.beneficiary, m.victim)
		m.next()
	case PhaseSelectCity:
		m.next()
	case PhaseApplyEffects:
		m.applyPicks(b, func(area board.AreaID) {
			destroyCity(b, area)
			b.PlaceUpTo(m.beneficiary, area, 1)
		})
		m.next()
	}
	return nil
}
