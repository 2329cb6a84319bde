// Package game hosts the rules engine: it owns the board, takes player
// commands in submission order and advances the round one tick at a time.
package game

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lavaeater/civ-server-go/internal/game/board"
	"github.com/lavaeater/civ-server-go/internal/game/calamity"
	"github.com/lavaeater/civ-server-go/internal/game/cards"
	"github.com/lavaeater/civ-server-go/internal/game/conflict"
	"github.com/lavaeater/civ-server-go/internal/game/moves"
	"github.com/lavaeater/civ-server-go/internal/game/rules"
	"github.com/lavaeater/civ-server-go/internal/game/trade"
)

var (
	ErrInvalidCommand = errors.New("invalid command")
	ErrNotActive      = errors.New("player is not acting in this activity")
	ErrWrongActivity  = errors.New("command not allowed in current activity")
	ErrNotStarted     = errors.New("game not started")
	ErrAlreadyStarted = errors.New("game already started")
)

// Config holds the rule parameters of one game.
type Config struct {
	GameID string

	Setup                   board.Setup
	CitySupportTokens       int
	CitySitePopulation      int
	CityPopulation          int
	CityEliminationCapacity int
	MinTradeCards           int
	TradeManifestSize       int
	TaxPerCity              int

	Seed             uint64
	StrictInvariants bool
}

// DefaultConfig returns the standard rule parameters.
func DefaultConfig() Config {
	return Config{
		Setup:                   board.DefaultSetup(),
		CitySupportTokens:       2,
		CitySitePopulation:      3,
		CityPopulation:          6,
		CityEliminationCapacity: 6,
		MinTradeCards:           3,
		TradeManifestSize:       3,
		TaxPerCity:              2,
	}
}

func (c Config) params() moves.Params {
	return moves.Params{CitySitePopulation: c.CitySitePopulation, CityPopulation: c.CityPopulation}
}

// Engine runs one game. Commands are queued by Submit from any goroutine and
// applied by Tick in submission order; all ledger mutation happens inside Tick.
type Engine struct {
	logger *zap.Logger
	cfg    Config
	gameID string

	mu      sync.Mutex
	pending []Command

	board    *board.Board
	phases   *rules.PhaseManager
	info     *rules.GameInfo
	queue    *rules.Queue
	bus      *rules.EventBus
	resolver *conflict.Resolver
	market   *trade.Market
	piles    *cards.Piles
	catalogs map[board.PlayerID]*moves.Catalog
	// published holds the catalogs clients saw before the current tick;
	// SelectMove indices resolve against it.
	published map[board.PlayerID]*moves.Catalog

	manual     map[board.PlayerID]bool
	support    map[board.PlayerID]*conflict.TooManyCities
	calamity   calamity.Machine
	calamities []pendingCalamity

	recorder *ReplayRecorder
	offerSeq int
	started  bool
}

type pendingCalamity struct {
	card   cards.TradeCard
	victim board.PlayerID
}

// NewEngine creates an engine over the map. Players join with AddPlayer
// before Start.
func NewEngine(logger *zap.Logger, m *board.Map, cfg Config) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	gameID := cfg.GameID
	if gameID == "" {
		gameID = uuid.NewString()
	}
	e := &Engine{
		logger:   logger.With(zap.String("game_id", gameID)),
		cfg:      cfg,
		gameID:   gameID,
		board:    board.New(m, cfg.Setup),
		phases:   rules.NewPhaseManager(),
		info:     rules.NewGameInfo(),
		queue:    rules.NewQueue(),
		bus:      rules.NewEventBus(),
		resolver: conflict.NewResolver(logger, cfg.CityEliminationCapacity),
		market:   trade.NewMarket(trade.Rules{MinCards: cfg.MinTradeCards, ManifestSize: cfg.TradeManifestSize}),
		piles:    cards.NewPiles(cfg.Seed),
		catalogs: make(map[board.PlayerID]*moves.Catalog),
		manual:   make(map[board.PlayerID]bool),
		support:  make(map[board.PlayerID]*conflict.TooManyCities),
	}
	e.market.SetIDSource(e.nextOfferID)
	return e
}

// nextOfferID derives offer ids from the game id so replays are reproducible.
func (e *Engine) nextOfferID() string {
	e.offerSeq++
	ns, err := uuid.Parse(e.gameID)
	if err != nil {
		ns = uuid.NewSHA1(uuid.NameSpaceOID, []byte(e.gameID))
	}
	return uuid.NewSHA1(ns, []byte(strconv.Itoa(e.offerSeq))).String()
}

// GameID returns the game identifier.
func (e *Engine) GameID() string {
	return e.gameID
}

// Config returns the rule parameters.
func (e *Engine) Config() Config {
	return e.cfg
}

// SetReplayRecorder records a frame on every activity entered. A started
// engine records its current state right away.
func (e *Engine) SetReplayRecorder(rr *ReplayRecorder) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if rr != nil && rr.GameID() != e.gameID {
		return fmt.Errorf("recorder for %s attached to game %s", rr.GameID(), e.gameID)
	}
	e.recorder = rr
	if rr != nil && e.started {
		rr.Record(e.snapshot())
	}
	return nil
}

// ReplayRecorder returns the attached recorder, or nil.
func (e *Engine) ReplayRecorder() *ReplayRecorder {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.recorder
}

// AddPlayer seats a player and places their first token in the start area.
func (e *Engine) AddPlayer(id board.PlayerID, faction string, human bool, start board.AreaID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return ErrAlreadyStarted
	}
	if _, err := e.board.AddPlayer(id, faction, human); err != nil {
		return err
	}
	if start != "" {
		if err := e.board.MoveStockToArea(id, start, 1); err != nil {
			return fmt.Errorf("start token for %s: %w", id, err)
		}
	}
	e.logger.Info("player joined",
		zap.String("player", string(id)),
		zap.String("faction", faction),
		zap.Bool("human", human),
	)
	return nil
}

// Start enters the first activity and returns the events it produced.
func (e *Engine) Start() ([]rules.Event, error) {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	e.started = true
	e.info.SetCensusOrder(e.board.CensusOrder())
	e.emit(rules.NewEvent(rules.EventRoundStarted, ""))
	e.enter(e.phases.Current())
	if e.recorder != nil {
		e.recorder.Record(e.snapshot())
	}
	e.settle()
	e.refreshCatalogs()
	events := e.finishTick()
	e.mu.Unlock()

	e.bus.PublishBatch(events)
	return events, nil
}

// Submit queues a command for the next tick.
func (e *Engine) Submit(cmd Command) {
	if cmd == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = append(e.pending, cmd)
}

// Pending returns the number of queued commands.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Tick applies every queued command in order, performs any phase transitions
// they unlock and returns the events of the tick. Listeners on the event bus
// receive the same events after the engine lock is released.
func (e *Engine) Tick() ([]rules.Event, error) {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return nil, ErrNotStarted
	}
	cmds := e.pending
	e.pending = nil
	e.published = make(map[board.PlayerID]*moves.Catalog, len(e.catalogs))
	for id, c := range e.catalogs {
		e.published[id] = c
	}
	for _, cmd := range cmds {
		if err := e.apply(cmd); err != nil {
			e.reject(cmd, err)
		}
		e.settle()
		e.refreshCatalogs()
	}
	if len(cmds) == 0 {
		e.settle()
		e.refreshCatalogs()
	}
	events := e.finishTick()
	e.mu.Unlock()

	e.bus.PublishBatch(events)
	return events, nil
}

// finishTick checks the ledgers and drains the tick's events.
func (e *Engine) finishTick() []rules.Event {
	if err := e.board.CheckInvariants(); err != nil {
		if e.cfg.StrictInvariants {
			panic(err)
		}
		e.logger.Error("ledger invariant violated", zap.Error(err))
	}
	return e.queue.Drain()
}

// Subscribe registers a listener for every published event.
func (e *Engine) Subscribe(listener rules.Listener) int {
	return e.bus.Subscribe(listener)
}

// SubscribeTyped registers a listener for one event type.
func (e *Engine) SubscribeTyped(eventType rules.EventType, callback func(rules.Event)) int {
	return e.bus.SubscribeTyped(eventType, callback)
}

// Unsubscribe removes a listener.
func (e *Engine) Unsubscribe(handle int) {
	e.bus.Unsubscribe(handle)
}

// Activity returns the current activity.
func (e *Engine) Activity() rules.Activity {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phases.Current()
}

// Round returns the current round number.
func (e *Engine) Round() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phases.Round()
}

// StillToAct lists players the current activity is waiting for.
func (e *Engine) StillToAct() []board.PlayerID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.info.StillToAct()
}

// Catalog returns the player's current move catalog.
func (e *Engine) Catalog(player board.PlayerID) *moves.Catalog {
	e.mu.Lock()
	defer e.mu.Unlock()
	if c, ok := e.catalogs[player]; ok {
		return c
	}
	return &moves.Catalog{Player: player, Activity: e.phases.Current()}
}

// CurrentCalamity returns the calamity being resolved, if any.
func (e *Engine) CurrentCalamity() calamity.Machine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calamity
}

// Inspect runs fn with exclusive access to the board. fn must not retain it.
func (e *Engine) Inspect(fn func(b *board.Board)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.board)
}

func (e *Engine) emit(evt rules.Event) {
	evt.Round = e.phases.Round()
	evt.Activity = e.phases.Current()
	e.queue.Push(evt)
}

func (e *Engine) reject(cmd Command, err error) {
	e.logger.Debug("command rejected",
		zap.String("command", cmd.Name()),
		zap.String("player", string(cmd.Issuer())),
		zap.String("activity", e.phases.Current().String()),
		zap.Error(err),
	)
	evt := rules.NewEvent(rules.EventCommandRejected, cmd.Issuer())
	evt.Data = err.Error()
	evt.Metadata["command"] = cmd.Name()
	e.emit(evt)
}

// refreshCatalogs recomputes every player's catalog from scratch.
func (e *Engine) refreshCatalogs() {
	activity := e.phases.Current()
	for _, p := range e.board.Players() {
		e.catalogs[p.ID] = moves.Compute(moves.Input{
			Board:           e.board,
			Activity:        activity,
			Player:          p.ID,
			Active:          e.info.IsActive(p.ID),
			Params:          e.cfg.params(),
			ManualExpansion: e.manual[p.ID],
			Support:         e.support[p.ID],
			Market:          e.market,
			Calamity:        e.calamity,
		})
	}
}
