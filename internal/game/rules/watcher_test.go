package rules

import (
	"testing"

	"github.com/lavaeater/civ-server-go/internal/game/board"
)

// tradeWatcher counts trade proposals.
type tradeWatcher struct {
	*BaseWatcher
	proposals int
}

func newTradeWatcher(scope WatcherScope) *tradeWatcher {
	w := &tradeWatcher{BaseWatcher: NewBaseWatcher(scope)}
	w.SetKey("TradeWatcher")
	return w
}

func (t *tradeWatcher) Watch(event Event) {
	if event.Type != EventTradeProposed {
		return
	}
	if t.Scope() == WatcherScopePlayer && event.Player != t.Player() {
		return
	}
	t.proposals++
	t.SetCondition(true)
}

func (t *tradeWatcher) Reset() {
	t.BaseWatcher.Reset()
	t.proposals = 0
}

func (t *tradeWatcher) Copy() Watcher {
	c := newTradeWatcher(t.Scope())
	t.CopyBase(c.BaseWatcher)
	c.proposals = t.proposals
	return c
}

func TestWatcherRegistry(t *testing.T) {
	registry := NewWatcherRegistry()
	watcher := newTradeWatcher(WatcherScopeGame)
	registry.AddWatcher(watcher)

	if _, ok := registry.Get("TradeWatcher"); !ok {
		t.Fatal("should retrieve TradeWatcher")
	}
	if keys := registry.KeysByScope(WatcherScopeGame); len(keys) != 1 {
		t.Fatalf("expected 1 game watcher, got %d", len(keys))
	}

	registry.NotifyWatchers(NewEvent(EventTradeProposed, "alice"))
	if !watcher.ConditionMet() {
		t.Fatal("watcher should have condition met")
	}

	// copies do not follow later events
	snapshot, _ := registry.Get("TradeWatcher")
	registry.NotifyWatchers(NewEvent(EventTradeProposed, "bob"))
	if got := snapshot.(*tradeWatcher).proposals; got != 1 {
		t.Fatalf("expected copy to keep 1 proposal, got %d", got)
	}
	if watcher.proposals != 2 {
		t.Fatalf("expected 2 proposals, got %d", watcher.proposals)
	}

	registry.ResetWatchers()
	if watcher.ConditionMet() || watcher.proposals != 0 {
		t.Fatal("watcher should be cleared after reset")
	}

	registry.RemoveWatcher("TradeWatcher")
	if _, ok := registry.Get("TradeWatcher"); ok {
		t.Fatal("watcher should be removed")
	}
	if keys := registry.KeysByScope(WatcherScopeGame); len(keys) != 0 {
		t.Fatalf("expected no game watchers, got %v", keys)
	}
}

func TestWatcherScope(t *testing.T) {
	if WatcherScopeGame.String() != "GAME" {
		t.Fatalf("expected GAME, got %s", WatcherScopeGame.String())
	}
	if WatcherScopePlayer.String() != "PLAYER" {
		t.Fatalf("expected PLAYER, got %s", WatcherScopePlayer.String())
	}
	if WatcherScope(9).String() != "UNKNOWN" {
		t.Fatalf("expected UNKNOWN, got %s", WatcherScope(9).String())
	}
}

func TestBaseWatcher(t *testing.T) {
	bw := NewBaseWatcher(WatcherScopeGame)
	bw.SetKey("test_key")

	if bw.Key() != "test_key" {
		t.Fatalf("expected test_key, got %s", bw.Key())
	}
	if bw.Scope() != WatcherScopeGame {
		t.Fatalf("expected GAME scope, got %v", bw.Scope())
	}
	if bw.ConditionMet() {
		t.Fatal("should not have condition met initially")
	}

	bw.SetCondition(true)
	if !bw.ConditionMet() {
		t.Fatal("should have condition met after SetCondition")
	}

	bw.Reset()
	if bw.ConditionMet() {
		t.Fatal("should not have condition met after reset")
	}

	pw := NewBaseWatcher(WatcherScopePlayer)
	pw.SetKey("test_key")
	pw.SetPlayer("alice")
	if pw.Key() != "alice_test_key" {
		t.Fatalf("expected alice_test_key, got %s", pw.Key())
	}
}

func TestPlayerScopedWatchers(t *testing.T) {
	registry := NewWatcherRegistry()
	for _, p := range []string{"alice", "bob"} {
		w := newTradeWatcher(WatcherScopePlayer)
		w.SetPlayer(board.PlayerID(p))
		registry.AddWatcher(w)
	}
	registry.AddWatcher(newTradeWatcher(WatcherScopeGame))

	if keys := registry.Keys(); len(keys) != 3 {
		t.Fatalf("expected 3 watchers, got %v", keys)
	}

	registry.NotifyWatchers(NewEvent(EventTradeProposed, "alice"))
	alice, _ := registry.Get("alice_TradeWatcher")
	bob, _ := registry.Get("bob_TradeWatcher")
	if !alice.ConditionMet() || bob.ConditionMet() {
		t.Fatal("only alice's watcher should fire")
	}

	registry.ResetWatchersByScope(WatcherScopePlayer)
	alice, _ = registry.Get("alice_TradeWatcher")
	game, _ := registry.Get("TradeWatcher")
	if alice.ConditionMet() {
		t.Fatal("player watcher should be reset")
	}
	if !game.ConditionMet() {
		t.Fatal("game watcher should keep its condition")
	}
}

func TestWatcherRegistryListener(t *testing.T) {
	registry := NewWatcherRegistry()
	eventBus := NewEventBus()
	eventBus.Subscribe(registry.Listener())

	watcher := newTradeWatcher(WatcherScopeGame)
	registry.AddWatcher(watcher)

	eventBus.Publish(NewEvent(EventTradeProposed, "alice"))
	if watcher.proposals != 1 {
		t.Fatalf("expected 1 proposal, got %d", watcher.proposals)
	}

	// a new round starts from a clean slate
	eventBus.PublishBatch([]Event{
		NewEvent(EventRoundStarted, ""),
		NewEvent(EventTradeProposed, "bob"),
	})
	if watcher.proposals != 1 {
		t.Fatalf("expected 1 proposal after round start, got %d", watcher.proposals)
	}
}
