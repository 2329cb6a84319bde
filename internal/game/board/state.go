package board

import (
	"fmt"
	"sort"

	"github.com/lavaeater/civ-server-go/internal/game/cards"
)

// PlayerState is the serializable form of a Player.
type PlayerState struct {
	ID         PlayerID
	Faction    string
	Human      bool
	Order      int
	Census     int
	Stock      []TokenID
	CityStock  []TokenID
	Treasury   []TokenID
	TradeCards map[cards.TradeCard]int
	Advances   []cards.Advance
}

// AreaState is the serializable form of a Population.
type AreaState struct {
	Area   AreaID
	Tokens map[PlayerID][]TokenID
}

// State is a complete serializable copy of the board's mutable data.
type State struct {
	Setup     Setup
	Players   []PlayerState
	Areas     []AreaState
	Cities    []BuiltCity
	Moved     []TokenID
	NextToken TokenID
}

// State captures the board's mutable data.
func (b *Board) State() State {
	st := State{Setup: b.setup, NextToken: b.nextToken}
	for _, p := range b.Players() {
		st.Players = append(st.Players, PlayerState{
			ID:         p.ID,
			Faction:    p.Faction,
			Human:      p.Human,
			Order:      p.Order,
			Census:     p.Census,
			Stock:      p.Population.Tokens(),
			CityStock:  p.CityTokens.Tokens(),
			Treasury:   p.Treasury.Tokens(),
			TradeCards: p.TradeCards.Snapshot(),
			Advances:   p.Advances.List(),
		})
	}
	for _, a := range b.m.order {
		pop := b.populations[a]
		if pop.IsEmpty() {
			continue
		}
		as := AreaState{Area: a, Tokens: make(map[PlayerID][]TokenID)}
		for _, player := range pop.Players() {
			as.Tokens[player] = pop.Tokens(player)
		}
		st.Areas = append(st.Areas, as)
	}
	for _, c := range b.Cities() {
		st.Cities = append(st.Cities, *c)
	}
	for t := range b.moved {
		st.Moved = append(st.Moved, t)
	}
	sort.Slice(st.Moved, func(i, j int) bool { return st.Moved[i] < st.Moved[j] })
	return st
}

// Restore rebuilds a board over the map from a captured state.
func Restore(m *Map, st State) (*Board, error) {
	b := New(m, st.Setup)
	b.nextToken = st.NextToken
	for _, ps := range st.Players {
		if _, exists := b.players[ps.ID]; exists {
			return nil, fmt.Errorf("%s: %w", ps.ID, ErrDuplicatePlayer)
		}
		p := &Player{
			ID:         ps.ID,
			Faction:    ps.Faction,
			Human:      ps.Human,
			Order:      ps.Order,
			Census:     ps.Census,
			Population: NewEmptyStock(st.Setup.PopulationTokens),
			CityTokens: NewEmptyStock(st.Setup.CityTokens),
			Treasury:   NewEmptyStock(st.Setup.PopulationTokens),
			TradeCards: cards.NewHand(),
			Advances:   make(cards.AdvanceSet),
			areas:      make(map[AreaID]struct{}),
			cities:     make(map[AreaID]struct{}),
		}
		p.Population.Return(ps.Stock...)
		p.CityTokens.Return(ps.CityStock...)
		p.Treasury.Return(ps.Treasury...)
		for card, n := range ps.TradeCards {
			p.TradeCards.Add(card, n)
		}
		for _, a := range ps.Advances {
			p.Advances.Add(a)
		}
		b.players[p.ID] = p
		b.order = append(b.order, p.ID)
	}
	sort.SliceStable(b.order, func(i, j int) bool {
		return b.players[b.order[i]].Order < b.players[b.order[j]].Order
	})

	for _, as := range st.Areas {
		if _, ok := b.populations[as.Area]; !ok {
			return nil, fmt.Errorf("%s: %w", as.Area, ErrUnknownArea)
		}
		for player, tokens := range as.Tokens {
			p, ok := b.players[player]
			if !ok {
				return nil, fmt.Errorf("%s: %w", player, ErrUnknownPlayer)
			}
			b.place(p, as.Area, tokens)
		}
	}
	for _, c := range st.Cities {
		p, ok := b.players[c.Player]
		if !ok {
			return nil, fmt.Errorf("%s: %w", c.Player, ErrUnknownPlayer)
		}
		city := c
		b.cities[c.Area] = &city
		p.cities[c.Area] = struct{}{}
	}
	for _, t := range st.Moved {
		b.moved[t] = struct{}{}
	}
	if err := b.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	return b, nil
}
