package rules

import (
	"sort"

	"github.com/lavaeater/civ-server-go/internal/game/board"
)

// GameInfo is the session-wide turn bookkeeping: round, census order and the
// players that still have to act in the current activity.
type GameInfo struct {
	Round       int
	CensusOrder []board.PlayerID

	stillToAct map[board.PlayerID]struct{}
}

// NewGameInfo creates bookkeeping for round 1.
func NewGameInfo() *GameInfo {
	return &GameInfo{Round: 1, stillToAct: make(map[board.PlayerID]struct{})}
}

// SetCensusOrder replaces the player order used for iteration.
func (g *GameInfo) SetCensusOrder(order []board.PlayerID) {
	g.CensusOrder = append([]board.PlayerID(nil), order...)
}

// SetActive replaces the still-to-act set.
func (g *GameInfo) SetActive(players []board.PlayerID) {
	g.stillToAct = make(map[board.PlayerID]struct{}, len(players))
	for _, p := range players {
		g.stillToAct[p] = struct{}{}
	}
}

// MarkDone removes the player from the still-to-act set. It reports whether
// the player was still acting.
func (g *GameInfo) MarkDone(player board.PlayerID) bool {
	if _, ok := g.stillToAct[player]; !ok {
		return false
	}
	delete(g.stillToAct, player)
	return true
}

// IsActive reports whether the player still has to act.
func (g *GameInfo) IsActive(player board.PlayerID) bool {
	_, ok := g.stillToAct[player]
	return ok
}

// StillToAct lists acting players in census order, then any others by id.
func (g *GameInfo) StillToAct() []board.PlayerID {
	out := make([]board.PlayerID, 0, len(g.stillToAct))
	seen := make(map[board.PlayerID]struct{}, len(g.stillToAct))
	for _, p := range g.CensusOrder {
		if _, ok := g.stillToAct[p]; ok {
			out = append(out, p)
			seen[p] = struct{}{}
		}
	}
	var rest []board.PlayerID
	for p := range g.stillToAct {
		if _, ok := seen[p]; !ok {
			rest = append(rest, p)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(out, rest...)
}

// AllDone reports whether the gate is open.
func (g *GameInfo) AllDone() bool {
	return len(g.stillToAct) == 0
}
