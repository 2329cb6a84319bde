// Package moves enumerates the legal moves of a player in the current activity.
package moves

import (
	"fmt"

	"github.com/lavaeater/civ-server-go/internal/game/board"
	"github.com/lavaeater/civ-server-go/internal/game/calamity"
	"github.com/lavaeater/civ-server-go/internal/game/cards"
)

// Kind tags a move variant.
type Kind int

const (
	KindPopulationExpansion Kind = iota
	KindMovement
	KindAttackArea
	KindAttackCity
	KindEndMovement
	KindCityConstruction
	KindEndCityConstruction
	KindEliminateCity
	KindProposeTrade
	KindAcceptOrDeclineTrade
	KindAutoDeclineTrade
	KindSettleTrade
	KindStopTrading
	KindChooseCalamityTarget
	KindAcquireCard
	KindAcquireCards
	KindDoneAcquiringCards
)

var kindNames = map[Kind]string{
	KindPopulationExpansion:  "POPULATION_EXPANSION",
	KindMovement:             "MOVEMENT",
	KindAttackArea:           "ATTACK_AREA",
	KindAttackCity:           "ATTACK_CITY",
	KindEndMovement:          "END_MOVEMENT",
	KindCityConstruction:     "CITY_CONSTRUCTION",
	KindEndCityConstruction:  "END_CITY_CONSTRUCTION",
	KindEliminateCity:        "ELIMINATE_CITY",
	KindProposeTrade:         "PROPOSE_TRADE",
	KindAcceptOrDeclineTrade: "ACCEPT_OR_DECLINE_TRADE",
	KindAutoDeclineTrade:     "AUTO_DECLINE_TRADE",
	KindSettleTrade:          "SETTLE_TRADE",
	KindStopTrading:          "STOP_TRADING",
	KindChooseCalamityTarget: "CHOOSE_CALAMITY_TARGET",
	KindAcquireCard:          "ACQUIRE_CARD",
	KindAcquireCards:         "ACQUIRE_CARDS",
	KindDoneAcquiringCards:   "DONE_ACQUIRING_CARDS",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("KIND_%d", int(k))
}

// Move is one legal action. The concrete types below are the only variants.
type Move interface {
	Kind() Kind
}

type PopulationExpansion struct {
	Area      board.AreaID `json:"area"`
	MaxTokens int          `json:"max_tokens"`
}

type Movement struct {
	Source    board.AreaID `json:"source"`
	Target    board.AreaID `json:"target"`
	MaxTokens int          `json:"max_tokens"`
}

// AttackArea moves into an area held by another player.
type AttackArea struct {
	Source    board.AreaID   `json:"source"`
	Target    board.AreaID   `json:"target"`
	MaxTokens int            `json:"max_tokens"`
	Defender  board.PlayerID `json:"defender"`
}

// AttackCity moves into an area holding another player's city.
type AttackCity struct {
	Source    board.AreaID   `json:"source"`
	Target    board.AreaID   `json:"target"`
	MaxTokens int            `json:"max_tokens"`
	Defender  board.PlayerID `json:"defender"`
}

type EndMovement struct{}

type CityConstruction struct {
	Area board.AreaID `json:"area"`
}

type EndCityConstruction struct{}

type EliminateCity struct {
	Area board.AreaID `json:"area"`
}

type ProposeTrade struct {
	Partner   board.PlayerID  `json:"partner"`
	Offered   cards.TradeCard `json:"offered"`
	Requested cards.TradeCard `json:"requested"`
}

type AcceptOrDeclineTrade struct {
	OfferID string         `json:"offer_id"`
	From    board.PlayerID `json:"from"`
	Accept  bool           `json:"accept"`
}

// AutoDeclineTrade declines every open offer addressed to the player.
type AutoDeclineTrade struct{}

type SettleTrade struct {
	OfferID string         `json:"offer_id"`
	Partner board.PlayerID `json:"partner"`
}

type StopTrading struct{}

type ChooseCalamityTarget struct {
	Calamity cards.TradeCard `json:"calamity"`
	Victim   board.PlayerID  `json:"victim"`
	Area     board.AreaID    `json:"area"`
	City     bool            `json:"city"`
}

// Target converts the move back into a calamity selection.
func (m ChooseCalamityTarget) Target() calamity.Target {
	return calamity.Target{Area: m.Area, City: m.City}
}

type AcquireCard struct {
	Advance cards.Advance `json:"advance"`
	Cost    int           `json:"cost"`
}

// AcquireCards buys a bundle of advances in one payment.
type AcquireCards struct {
	Advances []cards.Advance `json:"advances"`
	Cost     int             `json:"cost"`
}

type DoneAcquiringCards struct{}

func (PopulationExpansion) Kind() Kind  { return KindPopulationExpansion }
func (Movement) Kind() Kind             { return KindMovement }
func (AttackArea) Kind() Kind           { return KindAttackArea }
func (AttackCity) Kind() Kind           { return KindAttackCity }
func (EndMovement) Kind() Kind          { return KindEndMovement }
func (CityConstruction) Kind() Kind     { return KindCityConstruction }
func (EndCityConstruction) Kind() Kind  { return KindEndCityConstruction }
func (EliminateCity) Kind() Kind        { return KindEliminateCity }
func (ProposeTrade) Kind() Kind         { return KindProposeTrade }
func (AcceptOrDeclineTrade) Kind() Kind { return KindAcceptOrDeclineTrade }
func (AutoDeclineTrade) Kind() Kind     { return KindAutoDeclineTrade }
func (SettleTrade) Kind() Kind          { return KindSettleTrade }
func (StopTrading) Kind() Kind          { return KindStopTrading }
func (ChooseCalamityTarget) Kind() Kind { return KindChooseCalamityTarget }
func (AcquireCard) Kind() Kind          { return KindAcquireCard }
func (AcquireCards) Kind() Kind         { return KindAcquireCards }
func (DoneAcquiringCards) Kind() Kind   { return KindDoneAcquiringCards }

// Entry is a move with its catalog index.
type Entry struct {
	Index int    `json:"index"`
	Kind  string `json:"kind"`
	Move  Move   `json:"move"`
}
