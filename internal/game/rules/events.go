package rules

import (
	"sync"

	"github.com/lavaeater/civ-server-go/internal/game/board"
)

// EventType indicates the category of a rules event.
type EventType string

const (
	// Phase events
	EventRoundStarted EventType = "ROUND_STARTED"
	EventPhaseStarted EventType = "PHASE_STARTED"
	EventPhaseEnded   EventType = "PHASE_ENDED"
	EventCensusTaken  EventType = "CENSUS_TAKEN"

	// Per-player done signals
	EventPlayerMovementEnded                  EventType = "PLAYER_MOVEMENT_ENDED"
	EventEndPlayerCityConstruction            EventType = "END_PLAYER_CITY_CONSTRUCTION"
	EventPlayerDoneAcquiringCivilizationCards EventType = "PLAYER_DONE_ACQUIRING_CIVILIZATION_CARDS"
	EventPlayerExpansionDone                  EventType = "PLAYER_EXPANSION_DONE"
	EventPlayerCitySupportChecked             EventType = "PLAYER_CITY_SUPPORT_CHECKED"
	EventPlayerStoppedTrading                 EventType = "PLAYER_STOPPED_TRADING"

	// Ledger events
	EventTokensPlaced     EventType = "TOKENS_PLACED"
	EventTokensMoved      EventType = "TOKENS_MOVED"
	EventTokensReturned   EventType = "TOKENS_RETURNED"
	EventSurplusRemoved   EventType = "SURPLUS_REMOVED"
	EventConflictResolved EventType = "CONFLICT_RESOLVED"
	EventCityBuilt        EventType = "CITY_BUILT"
	EventCityEliminated   EventType = "CITY_ELIMINATED"
	EventCityTransferred  EventType = "CITY_TRANSFERRED"
	EventTooManyCities    EventType = "TOO_MANY_CITIES"
	EventTaxCollected     EventType = "TAX_COLLECTED"

	// Card events
	EventTradeCardDrawn           EventType = "TRADE_CARD_DRAWN"
	EventTradeProposed            EventType = "TRADE_PROPOSED"
	EventTradeAccepted            EventType = "TRADE_ACCEPTED"
	EventTradeDeclined            EventType = "TRADE_DECLINED"
	EventTradeSettled             EventType = "TRADE_SETTLED"
	EventCivilizationCardAcquired EventType = "CIVILIZATION_CARD_ACQUIRED"

	// Calamity events
	EventCalamityStarted  EventType = "CALAMITY_STARTED"
	EventCalamityResolved EventType = "CALAMITY_RESOLVED"

	// Command handling
	EventCommandRejected EventType = "COMMAND_REJECTED"
)

// Event represents a state change that collaborators may react to.
type Event struct {
	Type     EventType
	Sequence uint64 // assigned by the queue, strictly increasing
	Round    int
	Activity Activity
	Player   board.PlayerID
	Target   board.PlayerID // second party (trade partner, beneficiary)
	Area     board.AreaID
	Amount   int
	Data     string
	Metadata map[string]string
}

// NewEvent creates a new event with common fields populated.
func NewEvent(eventType EventType, player board.PlayerID) Event {
	return Event{
		Type:     eventType,
		Player:   player,
		Metadata: make(map[string]string),
	}
}

// NewAreaEvent creates an event concerning an area and an amount.
func NewAreaEvent(eventType EventType, player board.PlayerID, area board.AreaID, amount int) Event {
	evt := NewEvent(eventType, player)
	evt.Area = area
	evt.Amount = amount
	return evt
}

// Queue buffers events produced during one tick. Drain hands every event out
// exactly once, in the order it was pushed.
type Queue struct {
	mu      sync.Mutex
	pending []Event
	next    uint64
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Push appends an event and stamps its sequence number.
func (q *Queue) Push(evt Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.next++
	evt.Sequence = q.next
	q.pending = append(q.pending, evt)
}

// Drain removes and returns every pending event.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.pending
	q.pending = nil
	return out
}

// Len returns the number of pending events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

// TypedListener defines a callback that reacts to a specific event type.
type TypedListener struct {
	Handle    int
	EventType EventType
	Callback  func(Event)
}

// EventBus provides a synchronous publish/subscribe implementation with type filtering.
type EventBus struct {
	mu             sync.RWMutex
	listeners      map[int]Listener
	typedListeners map[EventType][]TypedListener
	nextHandle     int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{
		listeners:      make(map[int]Listener),
		typedListeners: make(map[EventType][]TypedListener),
	}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.listeners[handle] = listener
	return handle
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, callback func(Event)) int {
	if callback == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.typedListeners[eventType] = append(bus.typedListeners[eventType], TypedListener{
		Handle:    handle,
		EventType: eventType,
		Callback:  callback,
	})
	return handle
}

// Unsubscribe removes the listener identified by the provided handle.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	delete(bus.listeners, handle)
	for eventType, listeners := range bus.typedListeners {
		for i := len(listeners) - 1; i >= 0; i-- {
			if listeners[i].Handle == handle {
				bus.typedListeners[eventType] = append(listeners[:i], listeners[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to all registered listeners synchronously.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	defer bus.mu.RUnlock()

	for _, listener := range bus.listeners {
		listener(event)
	}
	for _, listener := range bus.typedListeners[event.Type] {
		listener.Callback(event)
	}
}

// PublishBatch publishes events in order.
func (bus *EventBus) PublishBatch(events []Event) {
	for _, event := range events {
		bus.Publish(event)
	}
}
