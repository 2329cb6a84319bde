// Package trade runs the trade phase: offers between two players, acceptance
// and settlement by card manifests.
package trade

import (
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/lavaeater/civ-server-go/internal/game/board"
	"github.com/lavaeater/civ-server-go/internal/game/cards"
)

var (
	ErrUnknownOffer    = errors.New("unknown trade offer")
	ErrNotParticipant  = errors.New("player is not part of the offer")
	ErrOfferState      = errors.New("offer is not in the required state")
	ErrNotEligible     = errors.New("player may not trade")
	ErrOfferExists     = errors.New("an open offer already exists between these players")
	ErrInvalidManifest = errors.New("cannot build a trade manifest")
)

// State is the lifecycle of an offer.
type State int

const (
	StateOpen State = iota
	StateAccepted
	StateDeclined
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateAccepted:
		return "ACCEPTED"
	case StateDeclined:
		return "DECLINED"
	case StateSettled:
		return "SETTLED"
	default:
		return fmt.Sprintf("STATE_%d", int(s))
	}
}

// Offer is a proposal from one player to another: From hands over a manifest
// containing Offered, To hands over one containing Requested.
type Offer struct {
	ID        string
	From      board.PlayerID
	To        board.PlayerID
	Offered   cards.TradeCard
	Requested cards.TradeCard
	State     State

	FromManifest []cards.TradeCard
	ToManifest   []cards.TradeCard
}

// Involves reports whether the player is either side of the offer.
func (o *Offer) Involves(player board.PlayerID) bool {
	return o.From == player || o.To == player
}

// Counterpart returns the other side of the offer.
func (o *Offer) Counterpart(player board.PlayerID) board.PlayerID {
	if player == o.From {
		return o.To
	}
	return o.From
}

// SettledBy reports whether the player already committed a manifest.
func (o *Offer) SettledBy(player board.PlayerID) bool {
	if player == o.From {
		return o.FromManifest != nil
	}
	if player == o.To {
		return o.ToManifest != nil
	}
	return false
}

// Rules are the trade parameters.
type Rules struct {
	MinCards     int // cards needed to take part
	ManifestSize int
}

// Market holds the offers of one trade phase.
type Market struct {
	rules   Rules
	offers  map[string]*Offer
	order   []string
	stopped map[board.PlayerID]bool
	givers  map[board.PlayerID]map[cards.TradeCard]board.PlayerID
	newID   func() string
}

// NewMarket creates an empty market.
func NewMarket(rules Rules) *Market {
	return &Market{
		rules:   rules,
		offers:  make(map[string]*Offer),
		stopped: make(map[board.PlayerID]bool),
		givers:  make(map[board.PlayerID]map[cards.TradeCard]board.PlayerID),
		newID:   func() string { return uuid.NewString() },
	}
}

// SetIDSource replaces the offer id generator, used for reproducible replays.
func (m *Market) SetIDSource(next func() string) {
	if next != nil {
		m.newID = next
	}
}

// Rules returns the trade parameters.
func (m *Market) Rules() Rules {
	return m.rules
}

// Eligible reports whether a hand is large enough to trade.
func (m *Market) Eligible(hand *cards.Hand) bool {
	return hand != nil && hand.Total() >= m.rules.MinCards
}

// Reset clears offers and stop flags for a new trade phase. Calamity givers
// survive until ClearGivers.
func (m *Market) Reset() {
	m.offers = make(map[string]*Offer)
	m.order = nil
	m.stopped = make(map[board.PlayerID]bool)
}

// ClearGivers forgets who passed which calamity.
func (m *Market) ClearGivers() {
	m.givers = make(map[board.PlayerID]map[cards.TradeCard]board.PlayerID)
}

// Stop ends the player's trading for this phase and declines their open offers.
func (m *Market) Stop(player board.PlayerID) []*Offer {
	m.stopped[player] = true
	var declined []*Offer
	for _, o := range m.Offers() {
		if o.Involves(player) && (o.State == StateOpen || o.State == StateAccepted) {
			o.State = StateDeclined
			declined = append(declined, o)
		}
	}
	return declined
}

// Stopped reports whether the player has stopped trading.
func (m *Market) Stopped(player board.PlayerID) bool {
	return m.stopped[player]
}

// Offer looks up an offer by id.
func (m *Market) Offer(id string) (*Offer, bool) {
	o, ok := m.offers[id]
	return o, ok
}

// Offers returns every offer in creation order.
func (m *Market) Offers() []*Offer {
	out := make([]*Offer, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.offers[id])
	}
	return out
}

// Pending returns offers that still need an action from the player, in
// creation order.
func (m *Market) Pending(player board.PlayerID) []*Offer {
	var out []*Offer
	for _, o := range m.Offers() {
		switch o.State {
		case StateOpen:
			if o.To == player {
				out = append(out, o)
			}
		case StateAccepted:
			if o.Involves(player) && !o.SettledBy(player) {
				out = append(out, o)
			}
		}
	}
	return out
}

func (m *Market) hasLiveOffer(a, b board.PlayerID) bool {
	for _, o := range m.offers {
		if (o.State == StateOpen || o.State == StateAccepted) && o.Involves(a) && o.Involves(b) {
			return true
		}
	}
	return false
}

// CanPropose reports whether from may open an offer to to.
func (m *Market) CanPropose(from, to board.PlayerID, fromHand, toHand *cards.Hand) bool {
	return from != to &&
		!m.stopped[from] && !m.stopped[to] &&
		m.Eligible(fromHand) && m.Eligible(toHand) &&
		!m.hasLiveOffer(from, to)
}

// Propose opens an offer. The proposer must hold the offered commodity and be
// able to build a manifest around it.
func (m *Market) Propose(from, to board.PlayerID, fromHand, toHand *cards.Hand, offered, requested cards.TradeCard) (*Offer, error) {
	if m.stopped[from] || m.stopped[to] || !m.Eligible(fromHand) || !m.Eligible(toHand) || from == to {
		return nil, ErrNotEligible
	}
	if m.hasLiveOffer(from, to) {
		return nil, ErrOfferExists
	}
	if offered.IsCalamity() || requested.IsCalamity() {
		return nil, fmt.Errorf("calamities cannot be named: %w", ErrInvalidManifest)
	}
	if _, ok := BuildManifest(fromHand, offered, m.rules.ManifestSize); !ok {
		return nil, fmt.Errorf("%s offering %s: %w", from, offered, ErrInvalidManifest)
	}
	o := &Offer{
		ID:        m.newID(),
		From:      from,
		To:        to,
		Offered:   offered,
		Requested: requested,
		State:     StateOpen,
	}
	m.offers[o.ID] = o
	m.order = append(m.order, o.ID)
	return o, nil
}

func (m *Market) open(id string, player board.PlayerID) (*Offer, error) {
	o, ok := m.offers[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrUnknownOffer)
	}
	if o.To != player {
		return nil, fmt.Errorf("%s: %w", player, ErrNotParticipant)
	}
	if o.State != StateOpen {
		return nil, fmt.Errorf("%s is %s: %w", id, o.State, ErrOfferState)
	}
	return o, nil
}

// Accept marks an open offer accepted by its recipient.
func (m *Market) Accept(id string, player board.PlayerID) (*Offer, error) {
	o, err := m.open(id, player)
	if err != nil {
		return nil, err
	}
	o.State = StateAccepted
	return o, nil
}

// Decline marks an open offer declined by its recipient.
func (m *Market) Decline(id string, player board.PlayerID) (*Offer, error) {
	o, err := m.open(id, player)
	if err != nil {
		return nil, err
	}
	o.State = StateDeclined
	return o, nil
}

// DeclineAll declines every open offer addressed to the player.
func (m *Market) DeclineAll(player board.PlayerID) []*Offer {
	var out []*Offer
	for _, o := range m.Offers() {
		if o.State == StateOpen && o.To == player {
			o.State = StateDeclined
			out = append(out, o)
		}
	}
	return out
}

// Settle commits the player's manifest for an accepted offer. Once both sides
// have settled the cards change hands and the offer is settled; the returned
// bool reports that exchange. If a hand no longer holds its committed manifest
// the offer falls through: it is declined, nothing moves and no error is
// returned.
func (m *Market) Settle(id string, player board.PlayerID, hands map[board.PlayerID]*cards.Hand) (*Offer, bool, error) {
	o, ok := m.offers[id]
	if !ok {
		return nil, false, fmt.Errorf("%s: %w", id, ErrUnknownOffer)
	}
	if !o.Involves(player) {
		return nil, false, fmt.Errorf("%s: %w", player, ErrNotParticipant)
	}
	if o.State != StateAccepted || o.SettledBy(player) {
		return nil, false, fmt.Errorf("%s is %s: %w", id, o.State, ErrOfferState)
	}
	named := o.Offered
	if player == o.To {
		named = o.Requested
	}
	manifest, ok := BuildManifest(hands[player], named, m.rules.ManifestSize)
	if !ok {
		return nil, false, fmt.Errorf("%s naming %s: %w", player, named, ErrInvalidManifest)
	}
	if player == o.From {
		o.FromManifest = manifest
	} else {
		o.ToManifest = manifest
	}
	if o.FromManifest == nil || o.ToManifest == nil {
		return o, false, nil
	}
	if !m.exchange(o, hands[o.From], hands[o.To]) {
		o.State = StateDeclined
		o.FromManifest, o.ToManifest = nil, nil
		return o, false, nil
	}
	o.State = StateSettled
	return o, true, nil
}

// exchange swaps both manifests. Hands are checked first so nothing moves when
// either side traded the committed cards away in the meantime.
func (m *Market) exchange(o *Offer, fromHand, toHand *cards.Hand) bool {
	if !holds(fromHand, o.FromManifest) || !holds(toHand, o.ToManifest) {
		return false
	}
	m.send(o.From, o.To, fromHand, toHand, o.FromManifest)
	m.send(o.To, o.From, toHand, fromHand, o.ToManifest)
	return true
}

// send moves cards between hands and remembers who passed each calamity.
func (m *Market) send(giver, receiver board.PlayerID, from, to *cards.Hand, manifest []cards.TradeCard) {
	for _, card := range manifest {
		from.Remove(card)
		to.Add(card, 1)
		if card.IsCalamity() {
			if m.givers[receiver] == nil {
				m.givers[receiver] = make(map[cards.TradeCard]board.PlayerID)
			}
			m.givers[receiver][card] = giver
		}
	}
}

// Giver returns the player who traded the calamity to holder, if any.
func (m *Market) Giver(holder board.PlayerID, calamity cards.TradeCard) (board.PlayerID, bool) {
	p, ok := m.givers[holder][calamity]
	return p, ok
}

func holds(hand *cards.Hand, manifest []cards.TradeCard) bool {
	need := make(map[cards.TradeCard]int)
	for _, c := range manifest {
		need[c]++
	}
	for c, n := range need {
		if hand.Count(c) < n {
			return false
		}
	}
	return true
}

// BuildManifest picks size tradable cards from the hand. The named commodity
// always goes first, then tradable calamities, then the lowest value
// commodities.
func BuildManifest(hand *cards.Hand, named cards.TradeCard, size int) ([]cards.TradeCard, bool) {
	if hand == nil || size <= 0 || !hand.Has(named) || named.IsCalamity() {
		return nil, false
	}
	remaining := hand.Snapshot()
	manifest := []cards.TradeCard{named}
	remaining[named]--

	var pool []cards.TradeCard
	for card, n := range remaining {
		if !card.IsTradable() {
			continue
		}
		for i := 0; i < n; i++ {
			pool = append(pool, card)
		}
	}
	sort.Slice(pool, func(i, j int) bool {
		ci, cj := pool[i].IsCalamity(), pool[j].IsCalamity()
		if ci != cj {
			return ci
		}
		if pool[i].Value() != pool[j].Value() {
			return pool[i].Value() < pool[j].Value()
		}
		return pool[i] < pool[j]
	})
	for _, card := range pool {
		if len(manifest) == size {
			break
		}
		manifest = append(manifest, card)
	}
	if len(manifest) < size {
		return nil, false
	}
	return manifest, true
}
