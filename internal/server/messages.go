package server

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/lavaeater/civ-server-go/internal/game"
	"github.com/lavaeater/civ-server-go/internal/game/board"
	"github.com/lavaeater/civ-server-go/internal/game/cards"
	"github.com/lavaeater/civ-server-go/internal/game/rules"
	"github.com/lavaeater/civ-server-go/internal/game/watchers"
)

// Server message types. Client command types are the lower-cased command
// names, e.g. "build_city" or "select_move".
const (
	TypeJoinGame  = "join_game"
	TypeGameState = "game_state"
	TypeEvents    = "events"
	TypeCatalog   = "catalog"
	TypeQueued    = "command_queued"
	TypeError     = "error"
)

var (
	ErrInvalidMessage = errors.New("invalid message")
	ErrNotJoined      = errors.New("join_game must be the first message")
	ErrSpectator      = errors.New("spectators cannot issue commands")
	ErrWrongPlayer    = errors.New("message names another player")
)

//go:embed schema/inbound.schema.json
var inboundSchema []byte

const inboundSchemaURL = "inbound.schema.json"

func compileInboundSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(inboundSchemaURL, bytes.NewReader(inboundSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return c.Compile(inboundSchemaURL)
}

// Inbound is a client message. Fields a type does not use are ignored.
type Inbound struct {
	Type       string   `json:"type"`
	GameID     string   `json:"game_id,omitempty"`
	Player     string   `json:"player,omitempty"`
	Area       string   `json:"area,omitempty"`
	Source     string   `json:"source,omitempty"`
	Target     string   `json:"target,omitempty"`
	Count      int      `json:"count,omitempty"`
	Index      int      `json:"index,omitempty"`
	OfferID    string   `json:"offer_id,omitempty"`
	Partner    string   `json:"partner,omitempty"`
	Offered    string   `json:"offered,omitempty"`
	Requested  string   `json:"requested,omitempty"`
	Accept     bool     `json:"accept,omitempty"`
	City       bool     `json:"city,omitempty"`
	IsConflict bool     `json:"is_conflict,omitempty"`
	Advances   []string `json:"advances,omitempty"`
}

// decodeInbound validates raw against the inbound schema before decoding it.
func decodeInbound(schema *jsonschema.Schema, raw []byte) (Inbound, error) {
	var in Inbound
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return in, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := schema.Validate(doc); err != nil {
		return in, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if err := json.Unmarshal(raw, &in); err != nil {
		return in, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return in, nil
}

func tradeCard(name string) (cards.TradeCard, error) {
	card := cards.TradeCard(strings.ToUpper(name))
	if _, ok := cards.Info(card); !ok {
		return "", fmt.Errorf("%w: unknown trade card %q", ErrInvalidMessage, name)
	}
	return card, nil
}

// Command converts the message into an engine command issued by player.
func (in Inbound) Command(player board.PlayerID) (game.Command, error) {
	area := board.AreaID(in.Area)
	switch in.Type {
	case "move_tokens_from_stock_to_area":
		return game.MoveTokensFromStockToArea{Player: player, Area: area, Count: in.Count}, nil
	case "move_token_from_area_to_area":
		return game.MoveTokenFromAreaToArea{
			Player: player,
			Source: board.AreaID(in.Source),
			Target: board.AreaID(in.Target),
			Count:  in.Count,
		}, nil
	case "expand_population_manually":
		return game.ExpandPopulationManually{Player: player, Area: area, Count: in.Count}, nil
	case "build_city":
		return game.BuildCity{Player: player, Area: area}, nil
	case "eliminate_city":
		return game.EliminateCity{Player: player, Area: area, IsConflict: in.IsConflict}, nil
	case "end_movement":
		return game.EndMovement{Player: player}, nil
	case "end_city_construction":
		return game.EndCityConstruction{Player: player}, nil
	case "propose_trade":
		offered, err := tradeCard(in.Offered)
		if err != nil {
			return nil, err
		}
		requested, err := tradeCard(in.Requested)
		if err != nil {
			return nil, err
		}
		return game.ProposeTrade{
			Player:    player,
			Partner:   board.PlayerID(in.Partner),
			Offered:   offered,
			Requested: requested,
		}, nil
	case "answer_trade":
		return game.AnswerTrade{Player: player, OfferID: in.OfferID, Accept: in.Accept}, nil
	case "auto_decline_trade":
		return game.AutoDeclineTrade{Player: player}, nil
	case "send_trading_cards":
		return game.SendTradingCards{Player: player, OfferID: in.OfferID}, nil
	case "stop_trading":
		return game.StopTrading{Player: player}, nil
	case "choose_calamity_target":
		return game.ChooseCalamityTarget{Player: player, Area: area, City: in.City}, nil
	case "acquire_civilization_cards":
		advances := make([]cards.Advance, 0, len(in.Advances))
		for _, name := range in.Advances {
			a := cards.Advance(strings.ToUpper(name))
			if _, ok := cards.Cost(a); !ok {
				return nil, fmt.Errorf("%w: unknown advance %q", ErrInvalidMessage, name)
			}
			advances = append(advances, a)
		}
		return game.AcquireCivilizationCards{Player: player, Advances: advances}, nil
	case "done_acquiring_civilization_cards":
		return game.DoneAcquiringCivilizationCards{Player: player}, nil
	case "select_move":
		return game.SelectMove{Player: player, Index: in.Index, Count: in.Count}, nil
	default:
		return nil, fmt.Errorf("%w: %q is not a command", ErrInvalidMessage, in.Type)
	}
}

// Message is the envelope of every server message.
type Message struct {
	Type     string `json:"type"`
	GameID   string `json:"game_id,omitempty"`
	PlayerID string `json:"player_id,omitempty"`
	Data     any    `json:"data,omitempty"`
}

type errorData struct {
	Error string `json:"error"`
}

type queuedData struct {
	Command string `json:"command"`
	Pending int    `json:"pending"`
}

type eventView struct {
	Seq      uint64            `json:"seq"`
	Type     rules.EventType   `json:"type"`
	Round    int               `json:"round"`
	Activity string            `json:"activity"`
	Player   board.PlayerID    `json:"player,omitempty"`
	Target   board.PlayerID    `json:"target,omitempty"`
	Area     board.AreaID      `json:"area,omitempty"`
	Amount   int               `json:"amount,omitempty"`
	Data     string            `json:"data,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func eventViews(events []rules.Event) []eventView {
	out := make([]eventView, len(events))
	for i, e := range events {
		out[i] = eventView{
			Seq:      e.Sequence,
			Type:     e.Type,
			Round:    e.Round,
			Activity: e.Activity.String(),
			Player:   e.Player,
			Target:   e.Target,
			Area:     e.Area,
			Amount:   e.Amount,
			Data:     e.Data,
			Metadata: e.Metadata,
		}
	}
	return out
}

// playerView hides the contents of other players' hands.
type playerView struct {
	ID         board.PlayerID          `json:"id"`
	Faction    string                  `json:"faction"`
	Census     int                     `json:"census"`
	Stock      int                     `json:"stock"`
	CityTokens int                     `json:"city_tokens"`
	Treasury   int                     `json:"treasury"`
	TradeCards int                     `json:"trade_cards"`
	Hand       map[cards.TradeCard]int `json:"hand,omitempty"`
	Advances   []cards.Advance         `json:"advances,omitempty"`
	ThisRound  watchers.RoundSummary   `json:"this_round"`
}

type areaView struct {
	Area   board.AreaID           `json:"area"`
	Tokens map[board.PlayerID]int `json:"tokens"`
	City   board.PlayerID         `json:"city,omitempty"`
}

type stateView struct {
	Round      int              `json:"round"`
	Activity   string           `json:"activity"`
	StillToAct []board.PlayerID `json:"still_to_act"`
	Players    []playerView     `json:"players"`
	Areas      []areaView       `json:"areas"`
}

// buildState renders the board as seen by viewer; an empty viewer sees no hands.
func buildState(e *game.Engine, round *rules.WatcherRegistry, viewer board.PlayerID) stateView {
	view := stateView{
		Round:      e.Round(),
		Activity:   e.Activity().String(),
		StillToAct: e.StillToAct(),
	}
	e.Inspect(func(b *board.Board) {
		for _, p := range b.Players() {
			pv := playerView{
				ID:         p.ID,
				Faction:    p.Faction,
				Census:     p.Census,
				Stock:      p.Population.Available(),
				CityTokens: p.CityTokens.Available(),
				Treasury:   p.Treasury.Available(),
				TradeCards: p.TradeCards.Total(),
				Advances:   p.Advances.List(),
				ThisRound:  watchers.Summarize(round, p.ID),
			}
			if p.ID == viewer {
				pv.Hand = p.TradeCards.Snapshot()
			}
			view.Players = append(view.Players, pv)
		}
		for _, a := range b.Map().Areas() {
			pop := b.Population(a.ID)
			city, hasCity := b.City(a.ID)
			if (pop == nil || pop.IsEmpty()) && !hasCity {
				continue
			}
			av := areaView{Area: a.ID, Tokens: map[board.PlayerID]int{}}
			if pop != nil {
				av.Tokens = pop.Counts()
			}
			if hasCity {
				av.City = city.Player
			}
			view.Areas = append(view.Areas, av)
		}
	})
	return view
}
