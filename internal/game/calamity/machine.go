// Package calamity resolves calamity cards. Every calamity is a small state
// machine with the same contract: compute parameters, collect selections,
// apply mutations, complete.
package calamity

import (
	"errors"
	"fmt"

	"github.com/lavaeater/civ-server-go/internal/game/board"
	"github.com/lavaeater/civ-server-go/internal/game/cards"
)

var (
	ErrNotCalamity     = errors.New("card is not a calamity")
	ErrNotSelecting    = errors.New("calamity is not collecting selections")
	ErrInvalidTarget   = errors.New("invalid calamity target")
	ErrWrongChooser    = errors.New("player does not choose for this calamity")
	ErrAlreadyComplete = errors.New("calamity already complete")
)

// Phase is a step of a calamity machine.
type Phase int

const (
	PhaseComputeEffects Phase = iota
	PhaseDetermineType
	PhaseDetermineBeneficiary
	PhaseFindFloodPlain
	PhaseSelectCity
	PhaseSelectVictims
	PhaseApplyEffects
	PhaseComplete
)

var phaseNames = map[Phase]string{
	PhaseComputeEffects:       "COMPUTE_EFFECTS",
	PhaseDetermineType:        "DETERMINE_TYPE",
	PhaseDetermineBeneficiary: "DETERMINE_BENEFICIARY",
	PhaseFindFloodPlain:       "FIND_FLOOD_PLAIN",
	PhaseSelectCity:           "SELECT_CITY",
	PhaseSelectVictims:        "SELECT_VICTIMS",
	PhaseApplyEffects:         "APPLY_EFFECTS",
	PhaseComplete:             "COMPLETE",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

func (p Phase) selecting() bool {
	return p == PhaseSelectCity || p == PhaseSelectVictims
}

// Unit point values used when a calamity demands a loss in points.
const (
	TokenPoints = 1
	CityPoints  = 5
)

// Target is one selection: a token in an area, or the city standing there.
type Target struct {
	Area board.AreaID
	City bool
}

func (t Target) String() string {
	if t.City {
		return "city@" + string(t.Area)
	}
	return "token@" + string(t.Area)
}

// Context carries what a machine needs beyond the board.
type Context struct {
	Giver board.PlayerID // player who traded the card to the victim, if any
}

// Machine is a calamity being resolved.
type Machine interface {
	Calamity() cards.TradeCard
	Victim() board.PlayerID
	Chooser() board.PlayerID
	Beneficiary() board.PlayerID
	Phase() Phase
	Required() int
	Picks() []Target
	Candidates(b *board.Board) []Target
	Select(b *board.Board, chooser board.PlayerID, t Target) error
	SelectionComplete(b *board.Board) bool

	step(b *board.Board) error
}

// New creates the machine for a calamity card.
func New(card cards.TradeCard, victim board.PlayerID, ctx Context) (Machine, error) {
	core := base{card: card, victim: victim, chooser: victim, owner: victim, giver: ctx.Giver}
	switch card {
	case cards.VolcanoEarthquake:
		return newVolcanoEarthquake(core), nil
	case cards.Treachery:
		return newTreachery(core), nil
	case cards.Famine:
		return newFamine(core), nil
	case cards.Superstition:
		return newSuperstition(core), nil
	case cards.CivilWar:
		return newCivilWar(core), nil
	case cards.SlaveRevolt:
		return newSlaveRevolt(core), nil
	case cards.Flood:
		return newFlood(core), nil
	case cards.BarbarianHordes:
		return newBarbarianHordes(core), nil
	case cards.Epidemic:
		return newEpidemic(core), nil
	case cards.CivilDisorder:
		return newCivilDisorder(core), nil
	case cards.IconoclasmAndHeresy:
		return newIconoclasm(core), nil
	case cards.Piracy:
		return newPiracy(core), nil
	default:
		return nil, fmt.Errorf("%s: %w", card, ErrNotCalamity)
	}
}

// Advance runs automatic phases until the machine waits for selections or completes.
func Advance(m Machine, b *board.Board) error {
	for m.Phase() != PhaseComplete {
		if m.Phase().selecting() && !m.SelectionComplete(b) {
			return nil
		}
		if err := m.step(b); err != nil {
			return err
		}
	}
	return nil
}

type selectMode int

const (
	selectUnits selectMode = iota
	selectCities
)

// base is the bookkeeping shared by all calamities.
type base struct {
	card        cards.TradeCard
	victim      board.PlayerID
	chooser     board.PlayerID
	beneficiary board.PlayerID
	giver       board.PlayerID

	phases []Phase
	at     int

	mode       selectMode
	owner      board.PlayerID // whose units are selected
	required   int            // points, or cities in city mode
	picks      []Target
	cityFilter func(*board.Area) bool
}

func (m *base) Calamity() cards.TradeCard   { return m.card }
func (m *base) Victim() board.PlayerID      { return m.victim }
func (m *base) Chooser() board.PlayerID     { return m.chooser }
func (m *base) Beneficiary() board.PlayerID { return m.beneficiary }
func (m *base) Required() int               { return m.required }

func (m *base) Picks() []Target {
	return append([]Target(nil), m.picks...)
}

func (m *base) Phase() Phase {
	if m.at >= len(m.phases) {
		return PhaseComplete
	}
	return m.phases[m.at]
}

func (m *base) next() {
	if m.at < len(m.phases) {
		m.at++
	}
}

func (m *base) complete() {
	m.at = len(m.phases)
}

// skipTo jumps forward to the given phase.
func (m *base) skipTo(p Phase) {
	for m.Phase() != p && m.Phase() != PhaseComplete {
		m.next()
	}
}

func (m *base) picked(area board.AreaID, city bool) int {
	n := 0
	for _, t := range m.picks {
		if t.Area == area && t.City == city {
			n++
		}
	}
	return n
}

func (m *base) chosen() int {
	total := 0
	for _, t := range m.picks {
		switch {
		case m.mode == selectCities:
			total++
		case t.City:
			total += CityPoints
		default:
			total += TokenPoints
		}
	}
	return total
}

// Candidates lists legal next selections in map order.
func (m *base) Candidates(b *board.Board) []Target {
	if !m.Phase().selecting() {
		return nil
	}
	var out []Target
	for _, a := range b.Map().Areas() {
		if m.mode == selectUnits && b.CountIn(m.owner, a.ID)-m.picked(a.ID, false) > 0 {
			out = append(out, Target{Area: a.ID})
		}
		if city, ok := b.City(a.ID); ok && city.Player == m.owner && m.picked(a.ID, true) == 0 {
			if m.cityFilter == nil || m.cityFilter(a) {
				out = append(out, Target{Area: a.ID, City: true})
			}
		}
	}
	return out
}

func (m *base) SelectionComplete(b *board.Board) bool {
	if !m.Phase().selecting() {
		return true
	}
	return m.chosen() >= m.required || len(m.Candidates(b)) == 0
}

func (m *base) Select(b *board.Board, chooser board.PlayerID, t Target) error {
	if m.Phase() == PhaseComplete {
		return ErrAlreadyComplete
	}
	if !m.Phase().selecting() {
		return fmt.Errorf("%s in %s: %w", m.card, m.Phase(), ErrNotSelecting)
	}
	if chooser != m.chooser {
		return fmt.Errorf("%s: %w", chooser, ErrWrongChooser)
	}
	if m.SelectionComplete(b) {
		return fmt.Errorf("%s has enough selections: %w", m.card, ErrNotSelecting)
	}
	for _, c := range m.Candidates(b) {
		if c == t {
			m.picks = append(m.picks, t)
			return nil
		}
	}
	return fmt.Errorf("%s: %w", t, ErrInvalidTarget)
}

func (m *base) selectCities(n int, chooser, owner board.PlayerID) {
	m.mode = selectCities
	m.required = max(n, 0)
	m.chooser = chooser
	m.owner = owner
}

func (m *base) selectPoints(n int) {
	m.mode = selectUnits
	m.required = max(n, 0)
}

func (m *base) has(b *board.Board, player board.PlayerID, a cards.Advance) bool {
	p, ok := b.Player(player)
	return ok && p.Advances.Has(a)
}

// discount subtracts one point of relief per owned advance.
func (m *base) discount(b *board.Board, amount int, relief map[cards.Advance]int) int {
	for a, n := range relief {
		if m.has(b, m.victim, a) {
			amount -= n
		}
	}
	return max(amount, 0)
}

// applyPicks removes the picked tokens and hands cities to onCity.
func (m *base) applyPicks(b *board.Board, onCity func(board.AreaID)) map[board.AreaID]int {
	tokens := make(map[board.AreaID]int)
	for _, t := range m.picks {
		if !t.City {
			tokens[t.Area]++
		}
	}
	returned := make(map[board.AreaID]int)
	for _, a := range b.Map().Areas() {
		if n := tokens[a.ID]; n > 0 {
			returned[a.ID] = b.ReturnTokens(m.owner, a.ID, n)
		}
	}
	for _, t := range m.picks {
		if t.City {
			onCity(t.Area)
		}
	}
	return returned
}

// ReduceCity replaces a city by a single token of its owner when stock allows.
func ReduceCity(b *board.Board, area board.AreaID) {
	city, err := b.EliminateCity(area)
	if err != nil {
		return
	}
	b.PlaceUpTo(city.Player, area, 1)
}

// destroyCity removes the city without replacement.
func destroyCity(b *board.Board, area board.AreaID) {
	_, _ = b.EliminateCity(area)
}

// opponentByCensus returns the first player in census order other than the victim.
func opponentByCensus(b *board.Board, victim board.PlayerID) board.PlayerID {
	for _, p := range b.CensusOrder() {
		if p != victim {
			return p
		}
	}
	return ""
}
