package rules

import (
	"sort"
	"sync"

	"github.com/lavaeater/civ-server-go/internal/game/board"
)

// WatcherScope defines the scope of a watcher's tracking.
type WatcherScope int

const (
	// WatcherScopeGame tracks events for every player.
	WatcherScopeGame WatcherScope = iota
	// WatcherScopePlayer tracks events for one player.
	WatcherScopePlayer
)

// String returns the string representation of the watcher scope.
func (ws WatcherScope) String() string {
	switch ws {
	case WatcherScopeGame:
		return "GAME"
	case WatcherScopePlayer:
		return "PLAYER"
	default:
		return "UNKNOWN"
	}
}

// Watcher observes published events and tracks something about them.
type Watcher interface {
	// Watch is called for every published event.
	Watch(event Event)

	// Reset clears the tracked state, typically when a round starts.
	Reset()

	// ConditionMet reports whether anything was observed since the last reset.
	ConditionMet() bool

	Scope() WatcherScope

	// Key identifies the watcher in a registry. Player watchers prefix it with
	// the player id.
	Key() string

	// Copy returns a deep copy that is safe to read while the original keeps
	// watching.
	Copy() Watcher
}

// BaseWatcher provides the bookkeeping shared by watchers.
type BaseWatcher struct {
	scope     WatcherScope
	player    board.PlayerID
	condition bool
	key       string
}

// NewBaseWatcher creates a new base watcher with the specified scope.
func NewBaseWatcher(scope WatcherScope) *BaseWatcher {
	return &BaseWatcher{scope: scope}
}

func (bw *BaseWatcher) Scope() WatcherScope {
	return bw.scope
}

// SetPlayer sets the watched player (for PLAYER scope watchers).
func (bw *BaseWatcher) SetPlayer(id board.PlayerID) {
	bw.player = id
}

func (bw *BaseWatcher) Player() board.PlayerID {
	return bw.player
}

func (bw *BaseWatcher) ConditionMet() bool {
	return bw.condition
}

func (bw *BaseWatcher) SetCondition(condition bool) {
	bw.condition = condition
}

// Reset clears the condition.
func (bw *BaseWatcher) Reset() {
	bw.condition = false
}

func (bw *BaseWatcher) Key() string {
	if bw.scope == WatcherScopePlayer && bw.player != "" {
		return string(bw.player) + "_" + bw.key
	}
	return bw.key
}

// SetKey sets the watcher's base key.
func (bw *BaseWatcher) SetKey(key string) {
	bw.key = key
}

// CopyBase copies the shared bookkeeping into other.
func (bw *BaseWatcher) CopyBase(other *BaseWatcher) {
	*other = *bw
}

// WatcherRegistry manages the watchers of a game. It is safe for concurrent
// use; readers get copies through Get.
type WatcherRegistry struct {
	mu       sync.Mutex
	watchers map[string]Watcher
	byScope  map[WatcherScope][]string
}

// NewWatcherRegistry creates a new watcher registry.
func NewWatcherRegistry() *WatcherRegistry {
	return &WatcherRegistry{
		watchers: make(map[string]Watcher),
		byScope:  make(map[WatcherScope][]string),
	}
}

// AddWatcher adds a watcher, replacing any watcher with the same key.
func (wr *WatcherRegistry) AddWatcher(watcher Watcher) {
	if watcher == nil {
		return
	}

	wr.mu.Lock()
	defer wr.mu.Unlock()

	key := watcher.Key()
	if _, exists := wr.watchers[key]; !exists {
		wr.byScope[watcher.Scope()] = append(wr.byScope[watcher.Scope()], key)
	}
	wr.watchers[key] = watcher
}

// RemoveWatcher removes a watcher from the registry.
func (wr *WatcherRegistry) RemoveWatcher(key string) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	watcher, ok := wr.watchers[key]
	if !ok {
		return
	}
	delete(wr.watchers, key)

	scope := watcher.Scope()
	keys := wr.byScope[scope]
	for i, k := range keys {
		if k == key {
			wr.byScope[scope] = append(keys[:i], keys[i+1:]...)
			break
		}
	}
}

// Get returns a copy of the watcher with the given key.
func (wr *WatcherRegistry) Get(key string) (Watcher, bool) {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	w, ok := wr.watchers[key]
	if !ok {
		return nil, false
	}
	return w.Copy(), true
}

// Keys returns the registered keys in sorted order.
func (wr *WatcherRegistry) Keys() []string {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	keys := make([]string, 0, len(wr.watchers))
	for k := range wr.watchers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// KeysByScope returns the keys of one scope in registration order.
func (wr *WatcherRegistry) KeysByScope(scope WatcherScope) []string {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	return append([]string(nil), wr.byScope[scope]...)
}

// ResetWatchers resets every watcher.
func (wr *WatcherRegistry) ResetWatchers() {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	for _, watcher := range wr.watchers {
		watcher.Reset()
	}
}

// ResetWatchersByScope resets the watchers of one scope.
func (wr *WatcherRegistry) ResetWatchersByScope(scope WatcherScope) {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	for _, key := range wr.byScope[scope] {
		wr.watchers[key].Reset()
	}
}

// NotifyWatchers hands the event to every watcher.
func (wr *WatcherRegistry) NotifyWatchers(event Event) {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	for _, watcher := range wr.watchers {
		watcher.Watch(event)
	}
}

// Listener adapts the registry to an event bus subscription. Watchers are
// reset when a new round starts, before they see the round's first event.
func (wr *WatcherRegistry) Listener() Listener {
	return func(event Event) {
		if event.Type == EventRoundStarted {
			wr.ResetWatchers()
		}
		wr.NotifyWatchers(event)
	}
}
