package server

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lavaeater/civ-server-go/internal/game"
	"github.com/lavaeater/civ-server-go/internal/game/cards"
)

func TestDecodeInbound(t *testing.T) {
	schema, err := compileInboundSchema()
	require.NoError(t, err)

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"join as spectator", `{"type":"join_game"}`, false},
		{"select move", `{"type":"select_move","index":2,"count":1}`, false},
		{"move tokens", `{"type":"move_token_from_area_to_area","source":"x","target":"y","count":2}`, false},
		{"acquire", `{"type":"acquire_civilization_cards","advances":["pottery","mysticism"]}`, false},
		{"not json", `{"type":`, true},
		{"no type", `{"area":"x"}`, true},
		{"index zero", `{"type":"select_move","index":0}`, true},
		{"missing index", `{"type":"select_move"}`, true},
		{"negative count", `{"type":"expand_population_manually","area":"x","count":-1}`, true},
		{"fractional count", `{"type":"expand_population_manually","area":"x","count":1.5}`, true},
		{"duplicate advances", `{"type":"acquire_civilization_cards","advances":["law","law"]}`, true},
		{"answer without accept", `{"type":"answer_trade","offer_id":"o-1"}`, true},
		{"wrong field type", `{"type":"build_city","area":3}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeInbound(schema, []byte(tt.raw))
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidMessage)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestInbound_Command(t *testing.T) {
	tests := []struct {
		in   Inbound
		want game.Command
	}{
		{
			Inbound{Type: "move_tokens_from_stock_to_area", Area: "x", Count: 2},
			game.MoveTokensFromStockToArea{Player: "alice", Area: "x", Count: 2},
		},
		{
			Inbound{Type: "move_token_from_area_to_area", Source: "x", Target: "y", Count: 1},
			game.MoveTokenFromAreaToArea{Player: "alice", Source: "x", Target: "y", Count: 1},
		},
		{
			Inbound{Type: "expand_population_manually", Area: "z", Count: 3},
			game.ExpandPopulationManually{Player: "alice", Area: "z", Count: 3},
		},
		{Inbound{Type: "build_city", Area: "x"}, game.BuildCity{Player: "alice", Area: "x"}},
		{
			Inbound{Type: "eliminate_city", Area: "x", IsConflict: true},
			game.EliminateCity{Player: "alice", Area: "x", IsConflict: true},
		},
		{Inbound{Type: "end_movement"}, game.EndMovement{Player: "alice"}},
		{Inbound{Type: "end_city_construction"}, game.EndCityConstruction{Player: "alice"}},
		{
			Inbound{Type: "propose_trade", Partner: "bob", Offered: "ochre", Requested: "SALT"},
			game.ProposeTrade{Player: "alice", Partner: "bob", Offered: cards.Ochre, Requested: cards.Salt},
		},
		{
			Inbound{Type: "answer_trade", OfferID: "o-1", Accept: true},
			game.AnswerTrade{Player: "alice", OfferID: "o-1", Accept: true},
		},
		{Inbound{Type: "auto_decline_trade"}, game.AutoDeclineTrade{Player: "alice"}},
		{Inbound{Type: "send_trading_cards", OfferID: "o-1"}, game.SendTradingCards{Player: "alice", OfferID: "o-1"}},
		{Inbound{Type: "stop_trading"}, game.StopTrading{Player: "alice"}},
		{
			Inbound{Type: "choose_calamity_target", Area: "y", City: true},
			game.ChooseCalamityTarget{Player: "alice", Area: "y", City: true},
		},
		{
			Inbound{Type: "acquire_civilization_cards", Advances: []string{"pottery", "LAW"}},
			game.AcquireCivilizationCards{Player: "alice", Advances: []cards.Advance{cards.Pottery, cards.Law}},
		},
		{Inbound{Type: "done_acquiring_civilization_cards"}, game.DoneAcquiringCivilizationCards{Player: "alice"}},
		{Inbound{Type: "select_move", Index: 3, Count: 1}, game.SelectMove{Player: "alice", Index: 3, Count: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.in.Type, func(t *testing.T) {
			cmd, err := tt.in.Command("alice")
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd)
			// message types are the lower-cased command names
			assert.Equal(t, tt.in.Type, strings.ToLower(cmd.Name()))
		})
	}
}

func TestInbound_CommandRejectsUnknownNames(t *testing.T) {
	_, err := Inbound{Type: "propose_trade", Partner: "bob", Offered: "OCHRE", Requested: "MANA"}.Command("alice")
	require.ErrorIs(t, err, ErrInvalidMessage)

	_, err = Inbound{Type: "acquire_civilization_cards", Advances: []string{"TELEPORTATION"}}.Command("alice")
	require.ErrorIs(t, err, ErrInvalidMessage)

	_, err = Inbound{Type: TypeJoinGame}.Command("alice")
	require.ErrorIs(t, err, ErrInvalidMessage)
}
