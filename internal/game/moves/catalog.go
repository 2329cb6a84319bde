package moves

import (
	"sort"

	"github.com/lavaeater/civ-server-go/internal/game/board"
	"github.com/lavaeater/civ-server-go/internal/game/calamity"
	"github.com/lavaeater/civ-server-go/internal/game/cards"
	"github.com/lavaeater/civ-server-go/internal/game/conflict"
	"github.com/lavaeater/civ-server-go/internal/game/rules"
	"github.com/lavaeater/civ-server-go/internal/game/trade"
)

// Catalog is the ordered set of moves available to one player. Indices start
// at 1 and are stable until the catalog is recomputed.
type Catalog struct {
	Player   board.PlayerID
	Activity rules.Activity
	moves    []Move
}

func (c *Catalog) add(m Move) {
	c.moves = append(c.moves, m)
}

// Get returns the move with the given 1-based index.
func (c *Catalog) Get(index int) (Move, bool) {
	if c == nil || index < 1 || index > len(c.moves) {
		return nil, false
	}
	return c.moves[index-1], true
}

// Len returns the number of moves.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.moves)
}

// Moves returns the moves in index order.
func (c *Catalog) Moves() []Move {
	if c == nil {
		return nil
	}
	return append([]Move(nil), c.moves...)
}

// Entries returns the moves paired with their indices.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, c.Len())
	for i, m := range c.Moves() {
		out = append(out, Entry{Index: i + 1, Kind: m.Kind().String(), Move: m})
	}
	return out
}

// Find returns the index of the first move equal to m.
func (c *Catalog) Find(m Move) (int, bool) {
	for i, existing := range c.Moves() {
		if equal(existing, m) {
			return i + 1, true
		}
	}
	return 0, false
}

func equal(a, b Move) bool {
	if a.Kind() != b.Kind() {
		return false
	}
	ab, aok := a.(AcquireCards)
	bb, bok := b.(AcquireCards)
	if aok && bok {
		if ab.Cost != bb.Cost || len(ab.Advances) != len(bb.Advances) {
			return false
		}
		for i := range ab.Advances {
			if ab.Advances[i] != bb.Advances[i] {
				return false
			}
		}
		return true
	}
	return a == b
}

// Params are the rule thresholds the catalog depends on.
type Params struct {
	CitySitePopulation int
	CityPopulation     int
}

// Input is everything Compute reads. Only Board, Activity and Player are required.
type Input struct {
	Board    *board.Board
	Activity rules.Activity
	Player   board.PlayerID
	Active   bool // player still has to act in this activity
	Params   Params

	ManualExpansion bool
	Support         *conflict.TooManyCities
	Market          *trade.Market
	Calamity        calamity.Machine
}

// Compute builds a fresh catalog. Inactive players and automatic activities
// get an empty catalog.
func Compute(in Input) *Catalog {
	c := &Catalog{Player: in.Player, Activity: in.Activity}
	p, ok := in.Board.Player(in.Player)
	if !ok || !in.Active {
		return c
	}

	switch in.Activity {
	case rules.ActivityPopulationExpansion:
		if in.ManualExpansion {
			expansionMoves(c, in.Board, p)
		}
	case rules.ActivityMovement:
		movementMoves(c, in.Board, p)
		c.add(EndMovement{})
	case rules.ActivityCityConstruction:
		constructionMoves(c, in.Board, p, in.Params)
		c.add(EndCityConstruction{})
	case rules.ActivityCheckCitySupport:
		if in.Support != nil && in.Support.SurplusCount > 0 {
			for _, area := range in.Board.CitiesOf(p.ID) {
				c.add(EliminateCity{Area: area})
			}
		}
	case rules.ActivityTrade:
		if in.Market != nil {
			tradeMoves(c, in.Board, p, in.Market)
		}
	case rules.ActivityResolveCalamities:
		if in.Calamity != nil && in.Calamity.Chooser() == p.ID {
			for _, t := range in.Calamity.Candidates(in.Board) {
				c.add(ChooseCalamityTarget{
					Calamity: in.Calamity.Calamity(),
					Victim:   in.Calamity.Victim(),
					Area:     t.Area,
					City:     t.City,
				})
			}
		}
	case rules.ActivityAcquireCivilizationCards:
		civilizationMoves(c, p)
		c.add(DoneAcquiringCards{})
	}
	return c
}

// ExpansionLimit is how many tokens the player may still place in an area.
func ExpansionLimit(b *board.Board, p *board.Player, area board.AreaID) int {
	pop := b.Population(area)
	if pop == nil {
		return 0
	}
	return max(min(p.Population.Available(), pop.MaxPopulation-pop.Total()), 0)
}

func expansionMoves(c *Catalog, b *board.Board, p *board.Player) {
	if p.Population.Available() == 0 {
		return
	}
	for _, area := range b.AreasOf(p.ID) {
		if n := ExpansionLimit(b, p, area); n > 0 {
			c.add(PopulationExpansion{Area: area, MaxTokens: n})
		}
	}
}

func movementMoves(c *Catalog, b *board.Board, p *board.Player) {
	for _, source := range b.AreasOf(p.ID) {
		unmoved := len(b.UnmovedTokens(p.ID, source))
		if unmoved == 0 {
			continue
		}
		from, _ := b.Map().Area(source)
		for _, target := range from.LandConnections {
			c.add(classifyMove(b, p.ID, source, target, unmoved))
		}
	}
}

func classifyMove(b *board.Board, player board.PlayerID, source, target board.AreaID, n int) Move {
	if city, ok := b.City(target); ok && city.Player != player {
		return AttackCity{Source: source, Target: target, MaxTokens: n, Defender: city.Player}
	}
	for _, other := range b.Population(target).Players() {
		if other != player {
			return AttackArea{Source: source, Target: target, MaxTokens: n, Defender: other}
		}
	}
	return Movement{Source: source, Target: target, MaxTokens: n}
}

// CanBuildCity reports whether the player may found a city in the area.
func CanBuildCity(b *board.Board, p *board.Player, area board.AreaID, params Params) bool {
	a, ok := b.Map().Area(area)
	if !ok || p.CityTokens.Available() == 0 {
		return false
	}
	if _, exists := b.City(area); exists {
		return false
	}
	pop := b.Population(area)
	if pop.HasOthers(p.ID) {
		return false
	}
	need := params.CityPopulation
	if a.CitySite {
		need = params.CitySitePopulation
	}
	return pop.Count(p.ID) >= need
}

func constructionMoves(c *Catalog, b *board.Board, p *board.Player, params Params) {
	for _, area := range b.AreasOf(p.ID) {
		if CanBuildCity(b, p, area, params) {
			c.add(CityConstruction{Area: area})
		}
	}
}

func tradeMoves(c *Catalog, b *board.Board, p *board.Player, market *trade.Market) {
	if market.Stopped(p.ID) {
		return
	}
	size := market.Rules().ManifestSize

	for _, partner := range b.Players() {
		if !market.CanPropose(p.ID, partner.ID, p.TradeCards, partner.TradeCards) {
			continue
		}
		for _, requested := range partner.TradeCards.Commodities() {
			if !p.TradeCards.Has(requested) {
				continue
			}
			for _, offered := range p.TradeCards.Commodities() {
				if offered == requested {
					continue
				}
				if _, ok := trade.BuildManifest(p.TradeCards, offered, size); ok {
					c.add(ProposeTrade{Partner: partner.ID, Offered: offered, Requested: requested})
				}
			}
		}
	}

	openOffers := 0
	for _, o := range market.Pending(p.ID) {
		switch o.State {
		case trade.StateOpen:
			openOffers++
			c.add(AcceptOrDeclineTrade{OfferID: o.ID, From: o.From, Accept: true})
			c.add(AcceptOrDeclineTrade{OfferID: o.ID, From: o.From, Accept: false})
		case trade.StateAccepted:
			named, partner := o.Offered, o.To
			if p.ID == o.To {
				named, partner = o.Requested, o.From
			}
			if _, ok := trade.BuildManifest(p.TradeCards, named, size); ok {
				c.add(SettleTrade{OfferID: o.ID, Partner: partner})
			}
		}
	}
	if openOffers > 0 {
		c.add(AutoDeclineTrade{})
	}
	c.add(StopTrading{})
}

func civilizationMoves(c *Catalog, p *board.Player) {
	treasury := p.Treasury.Available()
	var affordable []cards.Advance
	for _, a := range cards.AllAdvances() {
		if p.Advances.Has(a) {
			continue
		}
		cost, _ := cards.Cost(a)
		if _, ok := cards.PlanPayment(p.TradeCards, treasury, cost); ok {
			affordable = append(affordable, a)
			c.add(AcquireCard{Advance: a, Cost: cost})
		}
	}
	if bundle, cost := CheapestBundle(p.TradeCards, treasury, affordable); len(bundle) > 1 {
		c.add(AcquireCards{Advances: bundle, Cost: cost})
	}
}

// CheapestBundle greedily collects the cheapest advances the player can pay
// for together.
func CheapestBundle(hand *cards.Hand, treasury int, candidates []cards.Advance) ([]cards.Advance, int) {
	sorted := append([]cards.Advance(nil), candidates...)
	sort.SliceStable(sorted, func(i, j int) bool {
		ci, _ := cards.Cost(sorted[i])
		cj, _ := cards.Cost(sorted[j])
		return ci < cj
	})
	var bundle []cards.Advance
	total := 0
	for _, a := range sorted {
		cost, _ := cards.Cost(a)
		if _, ok := cards.PlanPayment(hand, treasury, total+cost); !ok {
			break
		}
		bundle = append(bundle, a)
		total += cost
	}
	return bundle, total
}
