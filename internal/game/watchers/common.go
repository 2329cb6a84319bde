// Package watchers tallies what happens to each player during a round.
package watchers

import (
	"github.com/lavaeater/civ-server-go/internal/game/board"
	"github.com/lavaeater/civ-server-go/internal/game/rules"
)

// Registry keys of the round watchers.
const (
	KeyCitiesLost     = "CitiesLostWatcher"
	KeyTokensLost     = "TokensLostWatcher"
	KeyTradesSettled  = "TradesSettledWatcher"
	KeyCalamities     = "CalamitiesWatcher"
	KeyAdvancesBought = "AdvancesBoughtWatcher"
)

// CitiesLostWatcher counts eliminated cities per owner.
type CitiesLostWatcher struct {
	*rules.BaseWatcher
	inConflict map[board.PlayerID]int
	forSupport map[board.PlayerID]int
}

// NewCitiesLostWatcher creates a new cities lost watcher.
func NewCitiesLostWatcher() *CitiesLostWatcher {
	w := &CitiesLostWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeGame),
		inConflict:  make(map[board.PlayerID]int),
		forSupport:  make(map[board.PlayerID]int),
	}
	w.SetKey(KeyCitiesLost)
	return w
}

// Watch implements the Watcher interface.
func (w *CitiesLostWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventCityEliminated || event.Player == "" {
		return
	}
	if event.Metadata["conflict"] == "true" {
		w.inConflict[event.Player]++
	} else {
		w.forSupport[event.Player]++
	}
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *CitiesLostWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.inConflict = make(map[board.PlayerID]int)
	w.forSupport = make(map[board.PlayerID]int)
}

// InConflict returns the cities the player lost to attackers.
func (w *CitiesLostWatcher) InConflict(player board.PlayerID) int {
	return w.inConflict[player]
}

// ForSupport returns the cities the player gave up for lack of support.
func (w *CitiesLostWatcher) ForSupport(player board.PlayerID) int {
	return w.forSupport[player]
}

// Count returns every city the player lost.
func (w *CitiesLostWatcher) Count(player board.PlayerID) int {
	return w.inConflict[player] + w.forSupport[player]
}

// Copy creates a copy of this watcher.
func (w *CitiesLostWatcher) Copy() rules.Watcher {
	c := NewCitiesLostWatcher()
	w.CopyBase(c.BaseWatcher)
	c.inConflict = copyCounts(w.inConflict)
	c.forSupport = copyCounts(w.forSupport)
	return c
}

// TokensLostWatcher counts tokens returned to stock by conflicts and surplus
// removal.
type TokensLostWatcher struct {
	*rules.BaseWatcher
	lost map[board.PlayerID]int
}

// NewTokensLostWatcher creates a new tokens lost watcher.
func NewTokensLostWatcher() *TokensLostWatcher {
	w := &TokensLostWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeGame),
		lost:        make(map[board.PlayerID]int),
	}
	w.SetKey(KeyTokensLost)
	return w
}

// Watch implements the Watcher interface.
func (w *TokensLostWatcher) Watch(event rules.Event) {
	switch event.Type {
	case rules.EventTokensReturned, rules.EventSurplusRemoved:
	default:
		return
	}
	if event.Player == "" || event.Amount <= 0 {
		return
	}
	w.lost[event.Player] += event.Amount
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *TokensLostWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.lost = make(map[board.PlayerID]int)
}

// Count returns the tokens the player lost.
func (w *TokensLostWatcher) Count(player board.PlayerID) int {
	return w.lost[player]
}

// Copy creates a copy of this watcher.
func (w *TokensLostWatcher) Copy() rules.Watcher {
	c := NewTokensLostWatcher()
	w.CopyBase(c.BaseWatcher)
	c.lost = copyCounts(w.lost)
	return c
}

// TradesSettledWatcher counts settled trades for both sides.
type TradesSettledWatcher struct {
	*rules.BaseWatcher
	trades map[board.PlayerID]int
}

// NewTradesSettledWatcher creates a new trades settled watcher.
func NewTradesSettledWatcher() *TradesSettledWatcher {
	w := &TradesSettledWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeGame),
		trades:      make(map[board.PlayerID]int),
	}
	w.SetKey(KeyTradesSettled)
	return w
}

// Watch implements the Watcher interface.
func (w *TradesSettledWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventTradeSettled {
		return
	}
	for _, p := range []board.PlayerID{event.Player, event.Target} {
		if p != "" {
			w.trades[p]++
		}
	}
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *TradesSettledWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.trades = make(map[board.PlayerID]int)
}

// Count returns the trades the player took part in.
func (w *TradesSettledWatcher) Count(player board.PlayerID) int {
	return w.trades[player]
}

// Copy creates a copy of this watcher.
func (w *TradesSettledWatcher) Copy() rules.Watcher {
	c := NewTradesSettledWatcher()
	w.CopyBase(c.BaseWatcher)
	c.trades = copyCounts(w.trades)
	return c
}

// CalamitiesWatcher records the calamities resolved against each victim.
type CalamitiesWatcher struct {
	*rules.BaseWatcher
	suffered map[board.PlayerID][]string
}

// NewCalamitiesWatcher creates a new calamities watcher.
func NewCalamitiesWatcher() *CalamitiesWatcher {
	w := &CalamitiesWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeGame),
		suffered:    make(map[board.PlayerID][]string),
	}
	w.SetKey(KeyCalamities)
	return w
}

// Watch implements the Watcher interface.
func (w *CalamitiesWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventCalamityResolved || event.Player == "" || event.Data == "" {
		return
	}
	w.suffered[event.Player] = append(w.suffered[event.Player], event.Data)
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *CalamitiesWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.suffered = make(map[board.PlayerID][]string)
}

// Suffered returns the player's calamities in resolution order.
func (w *CalamitiesWatcher) Suffered(player board.PlayerID) []string {
	return w.suffered[player]
}

// Copy creates a copy of this watcher.
func (w *CalamitiesWatcher) Copy() rules.Watcher {
	c := NewCalamitiesWatcher()
	w.CopyBase(c.BaseWatcher)
	c.suffered = copyLists(w.suffered)
	return c
}

// AdvancesBoughtWatcher records civilization cards bought and what they cost.
type AdvancesBoughtWatcher struct {
	*rules.BaseWatcher
	bought map[board.PlayerID][]string
	spent  map[board.PlayerID]int
}

// NewAdvancesBoughtWatcher creates a new advances bought watcher.
func NewAdvancesBoughtWatcher() *AdvancesBoughtWatcher {
	w := &AdvancesBoughtWatcher{
		BaseWatcher: rules.NewBaseWatcher(rules.WatcherScopeGame),
		bought:      make(map[board.PlayerID][]string),
		spent:       make(map[board.PlayerID]int),
	}
	w.SetKey(KeyAdvancesBought)
	return w
}

// Watch implements the Watcher interface.
func (w *AdvancesBoughtWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventCivilizationCardAcquired || event.Player == "" {
		return
	}
	w.bought[event.Player] = append(w.bought[event.Player], event.Data)
	w.spent[event.Player] += event.Amount
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *AdvancesBoughtWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.bought = make(map[board.PlayerID][]string)
	w.spent = make(map[board.PlayerID]int)
}

// Bought returns the advances the player acquired.
func (w *AdvancesBoughtWatcher) Bought(player board.PlayerID) []string {
	return w.bought[player]
}

// Spent returns the listed cost of the player's purchases.
func (w *AdvancesBoughtWatcher) Spent(player board.PlayerID) int {
	return w.spent[player]
}

// Copy creates a copy of this watcher.
func (w *AdvancesBoughtWatcher) Copy() rules.Watcher {
	c := NewAdvancesBoughtWatcher()
	w.CopyBase(c.BaseWatcher)
	c.bought = copyLists(w.bought)
	c.spent = copyCounts(w.spent)
	return c
}

func copyCounts(src map[board.PlayerID]int) map[board.PlayerID]int {
	out := make(map[board.PlayerID]int, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func copyLists(src map[board.PlayerID][]string) map[board.PlayerID][]string {
	out := make(map[board.PlayerID][]string, len(src))
	for k, v := range src {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// NewRoundRegistry returns a registry holding every round watcher.
func NewRoundRegistry() *rules.WatcherRegistry {
	reg := rules.NewWatcherRegistry()
	reg.AddWatcher(NewCitiesLostWatcher())
	reg.AddWatcher(NewTokensLostWatcher())
	reg.AddWatcher(NewTradesSettledWatcher())
	reg.AddWatcher(NewCalamitiesWatcher())
	reg.AddWatcher(NewAdvancesBoughtWatcher())
	return reg
}

// RoundSummary is what happened to one player since the round started.
type RoundSummary struct {
	CitiesLost     int      `json:"cities_lost"`
	TokensLost     int      `json:"tokens_lost"`
	TradesSettled  int      `json:"trades_settled"`
	Calamities     []string `json:"calamities,omitempty"`
	AdvancesBought []string `json:"advances_bought,omitempty"`
	Spent          int      `json:"spent"`
}

// Summarize reads the round watchers of reg for one player. Watchers missing
// from reg leave their fields zero.
func Summarize(reg *rules.WatcherRegistry, player board.PlayerID) RoundSummary {
	var s RoundSummary
	if w, ok := reg.Get(KeyCitiesLost); ok {
		s.CitiesLost = w.(*CitiesLostWatcher).Count(player)
	}
	if w, ok := reg.Get(KeyTokensLost); ok {
		s.TokensLost = w.(*TokensLostWatcher).Count(player)
	}
	if w, ok := reg.Get(KeyTradesSettled); ok {
		s.TradesSettled = w.(*TradesSettledWatcher).Count(player)
	}
	if w, ok := reg.Get(KeyCalamities); ok {
		s.Calamities = w.(*CalamitiesWatcher).Suffered(player)
	}
	if w, ok := reg.Get(KeyAdvancesBought); ok {
		bought := w.(*AdvancesBoughtWatcher)
		s.AdvancesBought = bought.Bought(player)
		s.Spent = bought.Spent(player)
	}
	return s
}
