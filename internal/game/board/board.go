package board

import (
	"errors"
	"fmt"
	"sort"

	"github.com/lavaeater/civ-server-go/internal/game/cards"
)

var (
	ErrUnknownPlayer     = errors.New("unknown player")
	ErrDuplicatePlayer   = errors.New("duplicate player")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNotConnected      = errors.New("areas are not connected")
	ErrNotEnoughTokens   = errors.New("not enough unmoved tokens")
	ErrCityExists        = errors.New("area already has a city")
	ErrNoCity            = errors.New("area has no city")
	ErrInvariant         = errors.New("ledger invariant violated")
)

// Setup carries the per-player token allocation.
type Setup struct {
	PopulationTokens int
	CityTokens       int
}

// DefaultSetup is the usual allocation of 47 population and 9 city tokens.
func DefaultSetup() Setup {
	return Setup{PopulationTokens: 47, CityTokens: 9}
}

// Board is the world model: players, areas and the ledgers joining them.
// It keeps explicit indices (player -> areas, area -> population, token -> area)
// in step with every mutation.
type Board struct {
	m     *Map
	setup Setup

	players map[PlayerID]*Player
	order   []PlayerID

	populations map[AreaID]*Population
	cities      map[AreaID]*BuiltCity
	location    map[TokenID]AreaID
	moved       map[TokenID]struct{}

	nextToken TokenID
}

// New creates a board over the map with an empty ledger for every area.
func New(m *Map, setup Setup) *Board {
	b := &Board{
		m:           m,
		setup:       setup,
		players:     make(map[PlayerID]*Player),
		populations: make(map[AreaID]*Population, m.Len()),
		cities:      make(map[AreaID]*BuiltCity),
		location:    make(map[TokenID]AreaID),
		moved:       make(map[TokenID]struct{}),
		nextToken:   1,
	}
	for _, a := range m.Areas() {
		b.populations[a.ID] = NewPopulation(a.ID, a.MaxPopulation)
	}
	return b
}

// Map returns the static map.
func (b *Board) Map() *Map {
	return b.m
}

// Setup returns the token allocation.
func (b *Board) Setup() Setup {
	return b.setup
}

// AddPlayer registers a player with full stocks.
func (b *Board) AddPlayer(id PlayerID, faction string, human bool) (*Player, error) {
	if id == "" {
		return nil, ErrUnknownPlayer
	}
	if _, exists := b.players[id]; exists {
		return nil, fmt.Errorf("%s: %w", id, ErrDuplicatePlayer)
	}
	p := &Player{
		ID:         id,
		Faction:    faction,
		Human:      human,
		Order:      len(b.order),
		Population: NewStock(b.setup.PopulationTokens, b.nextToken),
		Treasury:   NewEmptyStock(b.setup.PopulationTokens),
		TradeCards: cards.NewHand(),
		Advances:   make(cards.AdvanceSet),
		areas:      make(map[AreaID]struct{}),
		cities:     make(map[AreaID]struct{}),
	}
	b.nextToken += TokenID(b.setup.PopulationTokens)
	p.CityTokens = NewStock(b.setup.CityTokens, b.nextToken)
	b.nextToken += TokenID(b.setup.CityTokens)

	b.players[id] = p
	b.order = append(b.order, id)
	return p, nil
}

// Player looks up a player.
func (b *Board) Player(id PlayerID) (*Player, bool) {
	p, ok := b.players[id]
	return p, ok
}

// Players returns every player in registration order.
func (b *Board) Players() []*Player {
	out := make([]*Player, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.players[id])
	}
	return out
}

// Population returns the ledger of an area, or nil for unknown areas.
func (b *Board) Population(area AreaID) *Population {
	return b.populations[area]
}

// City returns the city standing in an area.
func (b *Board) City(area AreaID) (*BuiltCity, bool) {
	c, ok := b.cities[area]
	return c, ok
}

// Cities returns every city ordered by map position.
func (b *Board) Cities() []*BuiltCity {
	out := make([]*BuiltCity, 0, len(b.cities))
	for _, a := range b.m.order {
		if c, ok := b.cities[a]; ok {
			out = append(out, c)
		}
	}
	return out
}

// AreasOf returns the areas the player occupies, in map order.
func (b *Board) AreasOf(player PlayerID) []AreaID {
	p, ok := b.players[player]
	if !ok {
		return nil
	}
	return b.sortAreas(p.areas)
}

// CitiesOf returns the areas where the player has a city, in map order.
func (b *Board) CitiesOf(player PlayerID) []AreaID {
	p, ok := b.players[player]
	if !ok {
		return nil
	}
	return b.sortAreas(p.cities)
}

func (b *Board) sortAreas(set map[AreaID]struct{}) []AreaID {
	out := make([]AreaID, 0, len(set))
	for a := range set {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return b.m.index(out[i]) < b.m.index(out[j]) })
	return out
}

// ContestedAreas returns conflict zones: areas over capacity with more than one
// player present, and cities with foreign tokens.
func (b *Board) ContestedAreas() []AreaID {
	var out []AreaID
	for _, a := range b.m.order {
		pop := b.populations[a]
		if pop.IsContested() && pop.OverCapacity() {
			out = append(out, a)
			continue
		}
		if c, ok := b.cities[a]; ok && pop.HasOthers(c.Player) {
			out = append(out, a)
		}
	}
	return out
}

// TokensOnBoard counts the player's population tokens in all areas.
func (b *Board) TokensOnBoard(player PlayerID) int {
	p, ok := b.players[player]
	if !ok {
		return 0
	}
	total := 0
	for a := range p.areas {
		total += b.populations[a].Count(player)
	}
	return total
}

// CountIn returns the player's token count in an area.
func (b *Board) CountIn(player PlayerID, area AreaID) int {
	pop := b.populations[area]
	if pop == nil {
		return 0
	}
	return pop.Count(player)
}

func (b *Board) place(p *Player, area AreaID, tokens []TokenID) {
	pop := b.populations[area]
	for _, t := range tokens {
		pop.add(p.ID, t)
		b.location[t] = area
	}
	if len(tokens) > 0 {
		p.areas[area] = struct{}{}
	}
}

func (b *Board) lift(p *Player, area AreaID, tokens []TokenID) {
	pop := b.populations[area]
	for _, t := range tokens {
		if pop.remove(p.ID, t) {
			delete(b.location, t)
			delete(b.moved, t)
		}
	}
	if !pop.Has(p.ID) {
		delete(p.areas, area)
	}
}

// MoveStockToArea places exactly count tokens from stock, or nothing at all.
func (b *Board) MoveStockToArea(player PlayerID, area AreaID, count int) error {
	p, ok := b.players[player]
	if !ok {
		return fmt.Errorf("%s: %w", player, ErrUnknownPlayer)
	}
	if _, ok := b.populations[area]; !ok {
		return fmt.Errorf("%s: %w", area, ErrUnknownArea)
	}
	tokens, ok := p.Population.Take(count)
	if !ok {
		return fmt.Errorf("need %d have %d: %w", count, p.Population.Available(), ErrInsufficientStock)
	}
	b.place(p, area, tokens)
	return nil
}

// PlaceUpTo places as many of count tokens as the stock allows and returns the number placed.
func (b *Board) PlaceUpTo(player PlayerID, area AreaID, count int) int {
	p, ok := b.players[player]
	if !ok {
		return 0
	}
	if _, ok := b.populations[area]; !ok {
		return 0
	}
	tokens := p.Population.TakeUpTo(count)
	b.place(p, area, tokens)
	return len(tokens)
}

// UnmovedTokens returns the player's tokens in the area that have not moved this phase.
func (b *Board) UnmovedTokens(player PlayerID, area AreaID) []TokenID {
	pop := b.populations[area]
	if pop == nil {
		return nil
	}
	var out []TokenID
	for _, t := range pop.Tokens(player) {
		if _, moved := b.moved[t]; !moved {
			out = append(out, t)
		}
	}
	return out
}

// MoveAreaToArea moves count unmoved tokens along a land connection and marks them moved.
func (b *Board) MoveAreaToArea(player PlayerID, source, target AreaID, count int) error {
	p, ok := b.players[player]
	if !ok {
		return fmt.Errorf("%s: %w", player, ErrUnknownPlayer)
	}
	from, ok := b.m.Area(source)
	if !ok {
		return fmt.Errorf("%s: %w", source, ErrUnknownArea)
	}
	if _, ok := b.m.Area(target); !ok {
		return fmt.Errorf("%s: %w", target, ErrUnknownArea)
	}
	if !from.ConnectedByLand(target) {
		return fmt.Errorf("%s -> %s: %w", source, target, ErrNotConnected)
	}
	unmoved := b.UnmovedTokens(player, source)
	if count <= 0 || count > len(unmoved) {
		return fmt.Errorf("need %d have %d: %w", count, len(unmoved), ErrNotEnoughTokens)
	}
	tokens := unmoved[:count]
	b.lift(p, source, tokens)
	b.place(p, target, tokens)
	for _, t := range tokens {
		b.moved[t] = struct{}{}
	}
	return nil
}

// HasMoved reports whether the token moved this phase.
func (b *Board) HasMoved(token TokenID) bool {
	_, ok := b.moved[token]
	return ok
}

// ClearMoved forgets all movement markers.
func (b *Board) ClearMoved() {
	b.moved = make(map[TokenID]struct{})
}

// ReturnTokens sends up to count of the player's tokens in the area back to stock,
// highest ids first. Returns how many were returned.
func (b *Board) ReturnTokens(player PlayerID, area AreaID, count int) int {
	p, ok := b.players[player]
	if !ok || count <= 0 {
		return 0
	}
	pop := b.populations[area]
	if pop == nil {
		return 0
	}
	tokens := pop.Tokens(player)
	if count > len(tokens) {
		count = len(tokens)
	}
	victims := tokens[len(tokens)-count:]
	b.lift(p, area, victims)
	p.Population.Return(victims...)
	return len(victims)
}

// ReturnAll sends every token the player has in the area back to stock.
func (b *Board) ReturnAll(player PlayerID, area AreaID) int {
	return b.ReturnTokens(player, area, b.CountIn(player, area))
}

// BuildCity consumes one city token from the player's stock.
func (b *Board) BuildCity(player PlayerID, area AreaID) error {
	p, ok := b.players[player]
	if !ok {
		return fmt.Errorf("%s: %w", player, ErrUnknownPlayer)
	}
	if _, ok := b.m.Area(area); !ok {
		return fmt.Errorf("%s: %w", area, ErrUnknownArea)
	}
	if _, exists := b.cities[area]; exists {
		return fmt.Errorf("%s: %w", area, ErrCityExists)
	}
	tokens, ok := p.CityTokens.Take(1)
	if !ok {
		return fmt.Errorf("city tokens: %w", ErrInsufficientStock)
	}
	b.cities[area] = &BuiltCity{Area: area, Player: player, Token: tokens[0]}
	p.cities[area] = struct{}{}
	return nil
}

// EliminateCity removes the city and returns its token to the owner's stock.
func (b *Board) EliminateCity(area AreaID) (*BuiltCity, error) {
	c, ok := b.cities[area]
	if !ok {
		return nil, fmt.Errorf("%s: %w", area, ErrNoCity)
	}
	p := b.players[c.Player]
	delete(b.cities, area)
	delete(p.cities, area)
	p.CityTokens.Return(c.Token)
	return c, nil
}

// TransferCity hands a city to a new owner, who must have a city token to replace it.
func (b *Board) TransferCity(area AreaID, newOwner PlayerID) error {
	c, ok := b.cities[area]
	if !ok {
		return fmt.Errorf("%s: %w", area, ErrNoCity)
	}
	np, ok := b.players[newOwner]
	if !ok {
		return fmt.Errorf("%s: %w", newOwner, ErrUnknownPlayer)
	}
	if np.CityTokens.Available() == 0 {
		return fmt.Errorf("city tokens: %w", ErrInsufficientStock)
	}
	if _, err := b.EliminateCity(area); err != nil {
		return err
	}
	return b.BuildCity(newOwner, c.Area)
}

// CollectTax moves up to amount tokens from stock into treasury.
func (b *Board) CollectTax(player PlayerID, amount int) int {
	p, ok := b.players[player]
	if !ok {
		return 0
	}
	tokens := p.Population.TakeUpTo(amount)
	p.Treasury.Return(tokens...)
	return len(tokens)
}

// SpendTreasury moves up to amount tokens from treasury back to stock.
func (b *Board) SpendTreasury(player PlayerID, amount int) int {
	p, ok := b.players[player]
	if !ok {
		return 0
	}
	tokens := p.Treasury.TakeUpTo(amount)
	p.Population.Return(tokens...)
	return len(tokens)
}

// RefreshCensus recounts every player's tokens on the board.
func (b *Board) RefreshCensus() {
	for _, p := range b.players {
		p.Census = b.TokensOnBoard(p.ID)
	}
}

// CensusOrder returns players by descending census, ties in registration order.
func (b *Board) CensusOrder() []PlayerID {
	out := append([]PlayerID(nil), b.order...)
	sort.SliceStable(out, func(i, j int) bool {
		return b.players[out[i]].Census > b.players[out[j]].Census
	})
	return out
}

// CheckInvariants verifies token accounting and index consistency.
func (b *Board) CheckInvariants() error {
	var errs []error
	onBoard := 0
	for _, a := range b.m.order {
		pop := b.populations[a]
		if n := pop.emptyEntries(); n > 0 {
			errs = append(errs, fmt.Errorf("%s has %d empty population entries: %w", a, n, ErrInvariant))
		}
		for _, player := range pop.Players() {
			p, ok := b.players[player]
			if !ok {
				errs = append(errs, fmt.Errorf("%s holds tokens of unknown %s: %w", a, player, ErrInvariant))
				continue
			}
			if !p.OccupiesArea(a) {
				errs = append(errs, fmt.Errorf("%s missing from %s area index: %w", a, player, ErrInvariant))
			}
			for _, t := range pop.Tokens(player) {
				onBoard++
				if loc, ok := b.location[t]; !ok || loc != a {
					errs = append(errs, fmt.Errorf("token %d location mismatch: %w", t, ErrInvariant))
				}
				if p.Population.Contains(t) || p.Treasury.Contains(t) {
					errs = append(errs, fmt.Errorf("token %d both on board and off board: %w", t, ErrInvariant))
				}
			}
		}
	}
	if onBoard != len(b.location) {
		errs = append(errs, fmt.Errorf("%d tokens on board but %d located: %w", onBoard, len(b.location), ErrInvariant))
	}

	for _, p := range b.Players() {
		total := p.Population.Available() + b.TokensOnBoard(p.ID) + p.Treasury.Available()
		if total != p.Population.Capacity() {
			errs = append(errs, fmt.Errorf("%s population tokens %d != %d: %w", p.ID, total, p.Population.Capacity(), ErrInvariant))
		}
		if got := p.CityTokens.Available() + p.CityCount(); got != p.CityTokens.Capacity() {
			errs = append(errs, fmt.Errorf("%s city tokens %d != %d: %w", p.ID, got, p.CityTokens.Capacity(), ErrInvariant))
		}
		for a := range p.areas {
			if !b.populations[a].Has(p.ID) {
				errs = append(errs, fmt.Errorf("%s indexed in %s without tokens: %w", p.ID, a, ErrInvariant))
			}
		}
		for a := range p.cities {
			if c, ok := b.cities[a]; !ok || c.Player != p.ID {
				errs = append(errs, fmt.Errorf("%s city index stale for %s: %w", p.ID, a, ErrInvariant))
			}
		}
	}
	return errors.Join(errs...)
}
