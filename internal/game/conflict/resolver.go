// Package conflict arbitrates contested areas, removes surplus population and
// checks city support.
package conflict

import (
	"sort"

	"go.uber.org/zap"

	"github.com/lavaeater/civ-server-go/internal/game/board"
)

// Share is one player's stake in a contested area. Key orders players with
// equal counts; the board uses the player's lowest token id.
type Share struct {
	Player board.PlayerID
	Count  int
	Key    board.TokenID
}

// Settled reports whether no further removals are needed: at most one player
// holds tokens, or every remaining player holds the same count and the total
// fits the capacity.
func Settled(shares []Share, capacity int) bool {
	live := alive(shares)
	if len(live) <= 1 {
		return true
	}
	total := 0
	for _, s := range live {
		if s.Count != live[0].Count {
			return false
		}
		total += s.Count
	}
	return total <= capacity
}

// Step performs one round of removals on shares in place and returns the
// players that lost a token, in removal order.
//
// With three or more players every player loses one token, smallest holding
// first, and the round stops early once the area settles or only two players
// remain. With two players the smaller side loses one token; equal sides both
// lose one.
func Step(shares []Share, capacity int) []board.PlayerID {
	if Settled(shares, capacity) {
		return nil
	}
	idx := liveIndices(shares)
	if len(idx) == 2 {
		a, b := &shares[idx[0]], &shares[idx[1]]
		switch {
		case a.Count == b.Count:
			a.Count--
			b.Count--
			return []board.PlayerID{a.Player, b.Player}
		case a.Count < b.Count:
			a.Count--
			return []board.PlayerID{a.Player}
		default:
			b.Count--
			return []board.PlayerID{b.Player}
		}
	}

	var removed []board.PlayerID
	for _, i := range idx {
		shares[i].Count--
		removed = append(removed, shares[i].Player)
		if Settled(shares, capacity) || len(alive(shares)) <= 2 {
			break
		}
	}
	return removed
}

// Plan runs Step until the area settles and returns the removals per player.
func Plan(shares []Share, capacity int) map[board.PlayerID]int {
	work := append([]Share(nil), shares...)
	out := make(map[board.PlayerID]int)
	for {
		removed := Step(work, capacity)
		if len(removed) == 0 {
			return out
		}
		for _, p := range removed {
			out[p]++
		}
	}
}

// liveIndices returns indices of players still holding tokens, ordered by
// ascending count then key.
func liveIndices(shares []Share) []int {
	var idx []int
	for i, s := range shares {
		if s.Count > 0 {
			idx = append(idx, i)
		}
	}
	sort.SliceStable(idx, func(x, y int) bool {
		a, b := shares[idx[x]], shares[idx[y]]
		if a.Count != b.Count {
			return a.Count < b.Count
		}
		return a.Key < b.Key
	})
	return idx
}

func alive(shares []Share) []Share {
	var out []Share
	for _, s := range shares {
		if s.Count > 0 {
			out = append(out, s)
		}
	}
	return out
}

// Result describes what happened to one area.
type Result struct {
	Area           board.AreaID
	Removed        map[board.PlayerID]int
	Survivors      map[board.PlayerID]int
	CityEliminated *board.BuiltCity
}

// Resolver applies conflict resolution to board areas.
type Resolver struct {
	logger                  *zap.Logger
	cityEliminationCapacity int
}

// NewResolver creates a resolver. A city falls when a single foreign player
// brings more than cityEliminationCapacity tokens.
func NewResolver(logger *zap.Logger, cityEliminationCapacity int) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{logger: logger, cityEliminationCapacity: cityEliminationCapacity}
}

// ResolveAll resolves every conflict zone on the board in map order.
func (r *Resolver) ResolveAll(b *board.Board) []Result {
	var out []Result
	for _, area := range b.ContestedAreas() {
		out = append(out, r.ResolveArea(b, area))
	}
	return out
}

// ResolveArea settles one area. Areas that are not conflict zones are left alone.
func (r *Resolver) ResolveArea(b *board.Board, area board.AreaID) Result {
	res := Result{Area: area, Removed: make(map[board.PlayerID]int)}
	pop := b.Population(area)
	if pop == nil {
		return res
	}

	if city, ok := b.City(area); ok && pop.HasOthers(city.Player) {
		if r.cityFalls(pop, city.Player) {
			eliminated, err := b.EliminateCity(area)
			if err == nil {
				res.CityEliminated = eliminated
				r.logger.Info("city eliminated in conflict",
					zap.String("area", string(area)),
					zap.String("owner", string(eliminated.Player)))
			}
		} else {
			for _, player := range pop.Players() {
				if player == city.Player {
					continue
				}
				res.Removed[player] += b.ReturnAll(player, area)
			}
			res.Survivors = pop.Counts()
			return res
		}
	}

	if !pop.IsContested() || !pop.OverCapacity() {
		res.Survivors = pop.Counts()
		return res
	}

	shares := make([]Share, 0, len(pop.Players()))
	for _, player := range pop.Players() {
		shares = append(shares, Share{Player: player, Count: pop.Count(player), Key: pop.MinToken(player)})
	}
	for player, n := range Plan(shares, pop.MaxPopulation) {
		res.Removed[player] += b.ReturnTokens(player, area, n)
	}
	res.Survivors = pop.Counts()

	r.logger.Debug("conflict resolved",
		zap.String("area", string(area)),
		zap.Int("players", len(shares)),
		zap.Int("capacity", pop.MaxPopulation))
	return res
}

func (r *Resolver) cityFalls(pop *board.Population, owner board.PlayerID) bool {
	for player, n := range pop.Counts() {
		if player != owner && n > r.cityEliminationCapacity {
			return true
		}
	}
	return false
}
