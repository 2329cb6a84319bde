// Package server exposes a running game over websockets. Clients join as a
// seated player or as a spectator, send commands as JSON and receive the
// events of every tick.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/lavaeater/civ-server-go/internal/config"
	"github.com/lavaeater/civ-server-go/internal/game"
	"github.com/lavaeater/civ-server-go/internal/game/board"
	"github.com/lavaeater/civ-server-go/internal/game/rules"
	"github.com/lavaeater/civ-server-go/internal/game/watchers"
	"github.com/lavaeater/civ-server-go/internal/repository"
)

const joinTimeout = 10 * time.Second

// Gateway connects websocket clients to one engine and drives its ticks.
type Gateway struct {
	cfg      config.ServerConfig
	engine   *game.Engine
	store    repository.Store
	logger   *zap.Logger
	schema   *jsonschema.Schema
	hub      *Hub
	upgrader websocket.Upgrader
	round    *rules.WatcherRegistry

	stepMu       sync.Mutex
	lastRound    int
	lastActivity rules.Activity
}

// NewGateway builds a gateway for a started engine. store may be nil, in which
// case no snapshots are persisted.
func NewGateway(cfg config.ServerConfig, engine *game.Engine, store repository.Store, logger *zap.Logger) (*Gateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	schema, err := compileInboundSchema()
	if err != nil {
		return nil, fmt.Errorf("compile inbound schema: %w", err)
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = 64 * 1024
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 200 * time.Millisecond
	}
	round := watchers.NewRoundRegistry()
	engine.Subscribe(round.Listener())

	return &Gateway{
		round:  round,
		cfg:    cfg,
		engine: engine,
		store:  store,
		logger: logger,
		schema: schema,
		hub:    newHub(logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		lastRound:    engine.Round(),
		lastActivity: engine.Activity(),
	}, nil
}

// Handler serves /ws, /healthz and /replay.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", g.serveWS)
	mux.HandleFunc("/replay", g.serveReplay)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"game_id":  g.engine.GameID(),
			"round":    g.engine.Round(),
			"activity": g.engine.Activity().String(),
			"pending":  g.engine.Pending(),
		})
	})
	return mux
}

// Run starts the hub and ticks the engine until ctx is done.
func (g *Gateway) Run(ctx context.Context) error {
	go g.hub.run(ctx)

	ticker := time.NewTicker(g.cfg.TickInterval)
	defer ticker.Stop()
	g.logger.Info("tick loop started", zap.Duration("interval", g.cfg.TickInterval))
	for {
		select {
		case <-ctx.Done():
			<-g.hub.done
			g.logger.Info("tick loop stopped")
			return nil
		case <-ticker.C:
			if err := g.Step(ctx); err != nil {
				g.logger.Error("tick failed", zap.Error(err))
			}
		}
	}
}

// Step runs one engine tick, publishes its events and persists a snapshot
// when the round or activity changed.
func (g *Gateway) Step(ctx context.Context) error {
	g.stepMu.Lock()
	defer g.stepMu.Unlock()

	events, err := g.engine.Tick()
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}

	g.hub.Broadcast(g.encode(Message{Type: TypeEvents, Data: eventViews(events)}))
	g.publishState()

	round, activity := g.engine.Round(), g.engine.Activity()
	if round != g.lastRound || activity != g.lastActivity {
		g.lastRound, g.lastActivity = round, activity
		g.persist(ctx)
	}
	return nil
}

// publishState sends every seated player its state and catalog, and the
// public state to spectators.
func (g *Gateway) publishState() {
	var players []board.PlayerID
	g.engine.Inspect(func(b *board.Board) {
		for _, p := range b.Players() {
			players = append(players, p.ID)
		}
	})
	for _, p := range players {
		g.hub.SendTo(p, g.encode(Message{Type: TypeGameState, PlayerID: string(p), Data: buildState(g.engine, g.round, p)}))
		g.hub.SendTo(p, g.encode(Message{Type: TypeCatalog, PlayerID: string(p), Data: g.engine.Catalog(p).Entries()}))
	}
	g.hub.SendToSpectators(g.encode(Message{Type: TypeGameState, Data: buildState(g.engine, g.round, "")}))
}

func (g *Gateway) persist(ctx context.Context) {
	if g.store == nil {
		return
	}
	info, err := g.store.Save(ctx, g.engine.Snapshot())
	if err != nil {
		g.logger.Error("failed to persist snapshot", zap.Error(err))
		return
	}
	g.logger.Info("snapshot persisted",
		zap.Int64("seq", info.Seq),
		zap.Int("round", info.Round),
		zap.String("activity", info.Activity),
	)
}

func (g *Gateway) encode(msg Message) []byte {
	msg.GameID = g.engine.GameID()
	b, err := json.Marshal(msg)
	if err != nil {
		// views contain only plain data
		g.logger.Error("failed to encode message", zap.String("type", msg.Type), zap.Error(err))
		return nil
	}
	return b
}

func (g *Gateway) errorMessage(err error) []byte {
	return g.encode(Message{Type: TypeError, Data: errorData{Error: err.Error()}})
}

func (g *Gateway) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	player, err := g.join(conn)
	if err != nil {
		g.logger.Debug("join refused", zap.Error(err))
		writeJSONMessage(conn, g.errorMessage(err), g.cfg.WriteTimeout)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "join refused"),
			time.Now().Add(time.Second))
		conn.Close()
		return
	}

	client := &Client{conn: conn, send: make(chan []byte, sendBuffer), player: player}
	client.send <- g.encode(Message{Type: TypeGameState, PlayerID: string(player), Data: buildState(g.engine, g.round, player)})
	if player != "" {
		client.send <- g.encode(Message{Type: TypeCatalog, PlayerID: string(player), Data: g.engine.Catalog(player).Entries()})
	}
	if !g.hub.add(client) {
		conn.Close()
		return
	}

	go client.writePump(g.cfg.WriteTimeout)
	go client.readPump(g.hub, g.cfg.ReadLimit, g.handle)
}

// join reads the first message, which must be join_game.
func (g *Gateway) join(conn *websocket.Conn) (board.PlayerID, error) {
	conn.SetReadLimit(g.cfg.ReadLimit)
	conn.SetReadDeadline(time.Now().Add(joinTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		return "", err
	}
	in, err := decodeInbound(g.schema, raw)
	if err != nil {
		return "", err
	}
	if in.Type != TypeJoinGame {
		return "", ErrNotJoined
	}
	if in.GameID != "" && in.GameID != g.engine.GameID() {
		return "", fmt.Errorf("unknown game %q", in.GameID)
	}
	player := board.PlayerID(in.Player)
	if player != "" {
		known := false
		g.engine.Inspect(func(b *board.Board) {
			_, known = b.Player(player)
		})
		if !known {
			return "", fmt.Errorf("%w: %s", board.ErrUnknownPlayer, player)
		}
	}
	return player, nil
}

// handle turns one client message into a queued command.
func (g *Gateway) handle(c *Client, raw []byte) {
	cmd, err := g.command(c, raw)
	if err != nil {
		g.logger.Debug("message refused",
			zap.String("player", string(c.player)),
			zap.Error(err),
		)
		g.hub.reply(c, g.errorMessage(err))
		return
	}
	g.engine.Submit(cmd)
	g.hub.reply(c, g.encode(Message{
		Type:     TypeQueued,
		PlayerID: string(c.player),
		Data:     queuedData{Command: strings.ToLower(cmd.Name()), Pending: g.engine.Pending()},
	}))
}

func (g *Gateway) command(c *Client, raw []byte) (game.Command, error) {
	in, err := decodeInbound(g.schema, raw)
	if err != nil {
		return nil, err
	}
	if in.Type == TypeJoinGame {
		return nil, errors.New("already joined")
	}
	if c.player == "" {
		return nil, ErrSpectator
	}
	if in.Player != "" && board.PlayerID(in.Player) != c.player {
		return nil, ErrWrongPlayer
	}
	return in.Command(c.player)
}

func writeJSONMessage(conn *websocket.Conn, b []byte, timeout time.Duration) error {
	conn.SetWriteDeadline(time.Now().Add(timeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
