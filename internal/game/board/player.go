package board

import (
	"github.com/lavaeater/civ-server-go/internal/game/cards"
)

// Player is a participant together with the ledgers it exclusively owns.
type Player struct {
	ID      PlayerID
	Faction string
	Human   bool
	Order   int // registration order, breaks census ties

	Census int

	Population *Stock
	CityTokens *Stock
	Treasury   *Stock

	TradeCards *cards.Hand
	Advances   cards.AdvanceSet

	areas  map[AreaID]struct{}
	cities map[AreaID]struct{}
}

// OccupiesArea reports whether the player has tokens in the area.
func (p *Player) OccupiesArea(area AreaID) bool {
	_, ok := p.areas[area]
	return ok
}

// HasCityIn reports whether the player owns the city in the area.
func (p *Player) HasCityIn(area AreaID) bool {
	_, ok := p.cities[area]
	return ok
}

// CityCount returns the number of cities on the board.
func (p *Player) CityCount() int {
	return len(p.cities)
}

// BuiltCity is a city standing in an area.
type BuiltCity struct {
	Area   AreaID
	Player PlayerID
	Token  TokenID
}
