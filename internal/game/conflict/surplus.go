package conflict

import (
	"github.com/lavaeater/civ-server-go/internal/game/board"
)

// SurplusRemoval records the tokens one player lost in one area.
type SurplusRemoval struct {
	Area     board.AreaID
	Player   board.PlayerID
	Returned int
	CityArea bool
}

// RemoveSurplus trims single-player areas. A player standing in an area where
// they own the city loses every token there; otherwise the excess over the
// area's capacity is returned to stock, highest token ids first.
func RemoveSurplus(b *board.Board, area board.AreaID) (SurplusRemoval, bool) {
	pop := b.Population(area)
	if pop == nil || pop.IsEmpty() || pop.IsContested() {
		return SurplusRemoval{}, false
	}
	player := pop.Players()[0]
	if city, ok := b.City(area); ok && city.Player == player {
		return SurplusRemoval{Area: area, Player: player, Returned: b.ReturnAll(player, area), CityArea: true}, true
	}
	excess := pop.Count(player) - pop.MaxPopulation
	if excess <= 0 {
		return SurplusRemoval{}, false
	}
	return SurplusRemoval{Area: area, Player: player, Returned: b.ReturnTokens(player, area, excess)}, true
}

// RemoveAllSurplus trims every area in map order.
func RemoveAllSurplus(b *board.Board) []SurplusRemoval {
	var out []SurplusRemoval
	for _, a := range b.Map().Areas() {
		if r, ok := RemoveSurplus(b, a.ID); ok {
			out = append(out, r)
		}
	}
	return out
}
