package conflict

import (
	"github.com/lavaeater/civ-server-go/internal/game/board"
)

// TooManyCities marks a player whose population on the board cannot support
// all of their cities.
type TooManyCities struct {
	Player       board.PlayerID
	SurplusCount int // cities that must go
	NeededTokens int // tokens missing on the board
}

// CheckSupport returns the marker for a player, or false when the player's
// cities are supported. Each city needs perCity tokens on the board.
func CheckSupport(b *board.Board, player board.PlayerID, perCity int) (TooManyCities, bool) {
	p, ok := b.Player(player)
	if !ok || perCity <= 0 {
		return TooManyCities{}, false
	}
	cities := p.CityCount()
	if cities == 0 {
		return TooManyCities{}, false
	}
	have := b.TokensOnBoard(player)
	needed := cities*perCity - have
	if needed <= 0 {
		return TooManyCities{}, false
	}
	surplus := cities - have/perCity
	return TooManyCities{Player: player, SurplusCount: surplus, NeededTokens: needed}, true
}

// PlayersWithCities lists players owning at least one city, in registration order.
func PlayersWithCities(b *board.Board) []board.PlayerID {
	var out []board.PlayerID
	for _, p := range b.Players() {
		if p.CityCount() > 0 {
			out = append(out, p.ID)
		}
	}
	return out
}
