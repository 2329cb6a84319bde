package game

import (
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/lavaeater/civ-server-go/internal/game/board"
	"github.com/lavaeater/civ-server-go/internal/game/calamity"
	"github.com/lavaeater/civ-server-go/internal/game/cards"
	"github.com/lavaeater/civ-server-go/internal/game/conflict"
	"github.com/lavaeater/civ-server-go/internal/game/moves"
	"github.com/lavaeater/civ-server-go/internal/game/rules"
	"github.com/lavaeater/civ-server-go/internal/game/trade"
)

// Command is a request from a player. A command is either applied whole or
// rejected without touching any ledger.
type Command interface {
	Name() string
	Issuer() board.PlayerID
}

// MoveTokensFromStockToArea places exactly Count tokens from stock during
// population expansion, or nothing when stock or room is short.
type MoveTokensFromStockToArea struct {
	Player board.PlayerID
	Area   board.AreaID
	Count  int
}

// MoveTokenFromAreaToArea moves unmoved tokens along a land connection.
type MoveTokenFromAreaToArea struct {
	Player board.PlayerID
	Source board.AreaID
	Target board.AreaID
	Count  int
}

// ExpandPopulationManually places up to Count tokens, bounded by stock and capacity.
type ExpandPopulationManually struct {
	Player board.PlayerID
	Area   board.AreaID
	Count  int
}

// BuildCity founds a city on a site, spending one city token.
type BuildCity struct {
	Player board.PlayerID
	Area   board.AreaID
}

// EliminateCity removes one of the player's cities to restore city support.
// Conflict eliminations are carried out by the resolver, so IsConflict
// commands from players are refused.
type EliminateCity struct {
	Player     board.PlayerID
	Area       board.AreaID
	IsConflict bool
}

// EndMovement signals the player is done moving this round.
type EndMovement struct {
	Player board.PlayerID
}

// EndCityConstruction signals the player is done building cities.
type EndCityConstruction struct {
	Player board.PlayerID
}

// ProposeTrade offers Offered to Partner in exchange for Requested.
type ProposeTrade struct {
	Player    board.PlayerID
	Partner   board.PlayerID
	Offered   cards.TradeCard
	Requested cards.TradeCard
}

// AnswerTrade accepts or declines an open offer addressed to the player.
type AnswerTrade struct {
	Player  board.PlayerID
	OfferID string
	Accept  bool
}

// AutoDeclineTrade declines every open offer addressed to the player.
type AutoDeclineTrade struct {
	Player board.PlayerID
}

// SendTradingCards commits the player's side of an accepted offer. The cards
// change hands once both sides have sent.
type SendTradingCards struct {
	Player  board.PlayerID
	OfferID string
}

// StopTrading withdraws the player from the trade activity.
type StopTrading struct {
	Player board.PlayerID
}

// ChooseCalamityTarget picks an area, or the city in it, for the waiting calamity.
type ChooseCalamityTarget struct {
	Player board.PlayerID
	Area   board.AreaID
	City   bool
}

// AcquireCivilizationCards buys advances in one payment.
type AcquireCivilizationCards struct {
	Player   board.PlayerID
	Advances []cards.Advance
}

// DoneAcquiringCivilizationCards ends the player's purchases for the round.
type DoneAcquiringCivilizationCards struct {
	Player board.PlayerID
}

// SelectMove executes the catalog entry with the given 1-based index. Count
// narrows token moves; zero means the entry's maximum. The index refers to the
// catalog published before the tick, so earlier commands in the same tick do
// not shift it; the chosen entry is still validated against the current board.
type SelectMove struct {
	Player board.PlayerID
	Index  int
	Count  int
}

func (c MoveTokensFromStockToArea) Name() string      { return "MOVE_TOKENS_FROM_STOCK_TO_AREA" }
func (c MoveTokenFromAreaToArea) Name() string        { return "MOVE_TOKEN_FROM_AREA_TO_AREA" }
func (c ExpandPopulationManually) Name() string       { return "EXPAND_POPULATION_MANUALLY" }
func (c BuildCity) Name() string                      { return "BUILD_CITY" }
func (c EliminateCity) Name() string                  { return "ELIMINATE_CITY" }
func (c EndMovement) Name() string                    { return "END_MOVEMENT" }
func (c EndCityConstruction) Name() string            { return "END_CITY_CONSTRUCTION" }
func (c ProposeTrade) Name() string                   { return "PROPOSE_TRADE" }
func (c AnswerTrade) Name() string                    { return "ANSWER_TRADE" }
func (c AutoDeclineTrade) Name() string               { return "AUTO_DECLINE_TRADE" }
func (c SendTradingCards) Name() string               { return "SEND_TRADING_CARDS" }
func (c StopTrading) Name() string                    { return "STOP_TRADING" }
func (c ChooseCalamityTarget) Name() string           { return "CHOOSE_CALAMITY_TARGET" }
func (c AcquireCivilizationCards) Name() string       { return "ACQUIRE_CIVILIZATION_CARDS" }
func (c DoneAcquiringCivilizationCards) Name() string { return "DONE_ACQUIRING_CIVILIZATION_CARDS" }
func (c SelectMove) Name() string                     { return "SELECT_MOVE" }

func (c MoveTokensFromStockToArea) Issuer() board.PlayerID      { return c.Player }
func (c MoveTokenFromAreaToArea) Issuer() board.PlayerID        { return c.Player }
func (c ExpandPopulationManually) Issuer() board.PlayerID       { return c.Player }
func (c BuildCity) Issuer() board.PlayerID                      { return c.Player }
func (c EliminateCity) Issuer() board.PlayerID                  { return c.Player }
func (c EndMovement) Issuer() board.PlayerID                    { return c.Player }
func (c EndCityConstruction) Issuer() board.PlayerID            { return c.Player }
func (c ProposeTrade) Issuer() board.PlayerID                   { return c.Player }
func (c AnswerTrade) Issuer() board.PlayerID                    { return c.Player }
func (c AutoDeclineTrade) Issuer() board.PlayerID               { return c.Player }
func (c SendTradingCards) Issuer() board.PlayerID               { return c.Player }
func (c StopTrading) Issuer() board.PlayerID                    { return c.Player }
func (c ChooseCalamityTarget) Issuer() board.PlayerID           { return c.Player }
func (c AcquireCivilizationCards) Issuer() board.PlayerID       { return c.Player }
func (c DoneAcquiringCivilizationCards) Issuer() board.PlayerID { return c.Player }
func (c SelectMove) Issuer() board.PlayerID                     { return c.Player }

// gate checks that the player exists and is still acting in the activity.
func (e *Engine) gate(player board.PlayerID, activity rules.Activity) (*board.Player, error) {
	p, ok := e.board.Player(player)
	if !ok {
		return nil, fmt.Errorf("%s: %w", player, board.ErrUnknownPlayer)
	}
	if current := e.phases.Current(); current != activity {
		return nil, fmt.Errorf("%s: %w", current, ErrWrongActivity)
	}
	if !e.info.IsActive(player) {
		return nil, fmt.Errorf("%s: %w", player, ErrNotActive)
	}
	return p, nil
}

func (e *Engine) apply(cmd Command) error {
	switch c := cmd.(type) {
	case MoveTokensFromStockToArea:
		return e.placeFromStock(c.Player, c.Area, c.Count, true)
	case ExpandPopulationManually:
		return e.placeFromStock(c.Player, c.Area, c.Count, false)
	case MoveTokenFromAreaToArea:
		return e.moveTokens(c)
	case EndMovement:
		return e.done(c.Player, rules.ActivityMovement, rules.EventPlayerMovementEnded)
	case BuildCity:
		return e.buildCity(c)
	case EndCityConstruction:
		return e.done(c.Player, rules.ActivityCityConstruction, rules.EventEndPlayerCityConstruction)
	case EliminateCity:
		return e.eliminateCity(c)
	case ProposeTrade:
		return e.proposeTrade(c)
	case AnswerTrade:
		return e.answerTrade(c)
	case AutoDeclineTrade:
		return e.autoDecline(c)
	case SendTradingCards:
		return e.sendTradingCards(c)
	case StopTrading:
		return e.stopTrading(c.Player)
	case ChooseCalamityTarget:
		return e.chooseCalamityTarget(c)
	case AcquireCivilizationCards:
		return e.acquireCards(c)
	case DoneAcquiringCivilizationCards:
		return e.done(c.Player, rules.ActivityAcquireCivilizationCards, rules.EventPlayerDoneAcquiringCivilizationCards)
	case SelectMove:
		return e.selectMove(c)
	default:
		return fmt.Errorf("%T: %w", cmd, ErrInvalidCommand)
	}
}

// done records a per-player completion signal.
func (e *Engine) done(player board.PlayerID, activity rules.Activity, signal rules.EventType) error {
	if _, err := e.gate(player, activity); err != nil {
		return err
	}
	e.markDone(player, signal)
	return nil
}

func (e *Engine) markDone(player board.PlayerID, signal rules.EventType) {
	if e.info.MarkDone(player) {
		e.emit(rules.NewEvent(signal, player))
	}
}

func (e *Engine) placeFromStock(player board.PlayerID, area board.AreaID, count int, exact bool) error {
	p, err := e.gate(player, rules.ActivityPopulationExpansion)
	if err != nil {
		return err
	}
	if !p.OccupiesArea(area) {
		return fmt.Errorf("%s does not occupy %s: %w", player, area, ErrInvalidCommand)
	}
	if count <= 0 {
		return fmt.Errorf("count %d: %w", count, ErrInvalidCommand)
	}
	limit := moves.ExpansionLimit(e.board, p, area)
	if exact && count > limit {
		return fmt.Errorf("%d tokens but room for %d: %w", count, limit, board.ErrInsufficientStock)
	}
	n := min(count, limit)
	if n == 0 {
		return fmt.Errorf("%s is full: %w", area, ErrInvalidCommand)
	}
	if err := e.board.MoveStockToArea(player, area, n); err != nil {
		return err
	}
	e.emit(rules.NewAreaEvent(rules.EventTokensPlaced, player, area, n))

	if p.Population.Available() == 0 || len(e.expansionAreas(p)) == 0 {
		e.manual[player] = false
		e.markDone(player, rules.EventPlayerExpansionDone)
	}
	return nil
}

func (e *Engine) expansionAreas(p *board.Player) []board.AreaID {
	var out []board.AreaID
	for _, area := range e.board.AreasOf(p.ID) {
		if moves.ExpansionLimit(e.board, p, area) > 0 {
			out = append(out, area)
		}
	}
	return out
}

func (e *Engine) moveTokens(c MoveTokenFromAreaToArea) error {
	if _, err := e.gate(c.Player, rules.ActivityMovement); err != nil {
		return err
	}
	if err := e.board.MoveAreaToArea(c.Player, c.Source, c.Target, c.Count); err != nil {
		return err
	}
	evt := rules.NewAreaEvent(rules.EventTokensMoved, c.Player, c.Target, c.Count)
	evt.Metadata["source"] = string(c.Source)
	e.emit(evt)
	return nil
}

func (e *Engine) buildCity(c BuildCity) error {
	p, err := e.gate(c.Player, rules.ActivityCityConstruction)
	if err != nil {
		return err
	}
	if !moves.CanBuildCity(e.board, p, c.Area, e.cfg.params()) {
		return fmt.Errorf("%s cannot build in %s: %w", c.Player, c.Area, ErrInvalidCommand)
	}
	if err := e.board.BuildCity(c.Player, c.Area); err != nil {
		return err
	}
	e.emit(rules.NewAreaEvent(rules.EventCityBuilt, c.Player, c.Area, 1))
	e.logger.Info("city built",
		zap.String("player", string(c.Player)),
		zap.String("area", string(c.Area)),
	)
	if len(e.constructionSites(p)) == 0 {
		e.markDone(c.Player, rules.EventEndPlayerCityConstruction)
	}
	return nil
}

func (e *Engine) constructionSites(p *board.Player) []board.AreaID {
	var out []board.AreaID
	for _, area := range e.board.AreasOf(p.ID) {
		if moves.CanBuildCity(e.board, p, area, e.cfg.params()) {
			out = append(out, area)
		}
	}
	return out
}

func (e *Engine) eliminateCity(c EliminateCity) error {
	p, err := e.gate(c.Player, rules.ActivityCheckCitySupport)
	if err != nil {
		return err
	}
	if c.IsConflict {
		return fmt.Errorf("conflict elimination: %w", ErrInvalidCommand)
	}
	if e.support[c.Player] == nil {
		return fmt.Errorf("%s has no city surplus: %w", c.Player, ErrInvalidCommand)
	}
	if !p.HasCityIn(c.Area) {
		return fmt.Errorf("%s: %w", c.Area, board.ErrNoCity)
	}
	if _, err := e.board.EliminateCity(c.Area); err != nil {
		return err
	}
	evt := rules.NewAreaEvent(rules.EventCityEliminated, c.Player, c.Area, 1)
	evt.Metadata["conflict"] = strconv.FormatBool(false)
	e.emit(evt)
	e.checkSupport(c.Player)
	return nil
}

// checkSupport refreshes the player's marker and releases the player once
// every city is supported.
func (e *Engine) checkSupport(player board.PlayerID) {
	marker, short := conflict.CheckSupport(e.board, player, e.cfg.CitySupportTokens)
	if short {
		e.support[player] = &marker
		return
	}
	delete(e.support, player)
	e.markDone(player, rules.EventPlayerCitySupportChecked)
}

func (e *Engine) hands() map[board.PlayerID]*cards.Hand {
	out := make(map[board.PlayerID]*cards.Hand)
	for _, p := range e.board.Players() {
		out[p.ID] = p.TradeCards
	}
	return out
}

func (e *Engine) proposeTrade(c ProposeTrade) error {
	p, err := e.gate(c.Player, rules.ActivityTrade)
	if err != nil {
		return err
	}
	partner, ok := e.board.Player(c.Partner)
	if !ok {
		return fmt.Errorf("%s: %w", c.Partner, board.ErrUnknownPlayer)
	}
	offer, err := e.market.Propose(p.ID, partner.ID, p.TradeCards, partner.TradeCards, c.Offered, c.Requested)
	if err != nil {
		return err
	}
	evt := rules.NewEvent(rules.EventTradeProposed, c.Player)
	evt.Target = c.Partner
	evt.Data = offer.ID
	evt.Metadata["offered"] = string(c.Offered)
	evt.Metadata["requested"] = string(c.Requested)
	e.emit(evt)
	return nil
}

func (e *Engine) answerTrade(c AnswerTrade) error {
	if _, err := e.gate(c.Player, rules.ActivityTrade); err != nil {
		return err
	}
	answer := e.market.Decline
	eventType := rules.EventTradeDeclined
	if c.Accept {
		answer = e.market.Accept
		eventType = rules.EventTradeAccepted
	}
	offer, err := answer(c.OfferID, c.Player)
	if err != nil {
		return err
	}
	evt := rules.NewEvent(eventType, c.Player)
	evt.Target = offer.From
	evt.Data = offer.ID
	e.emit(evt)
	return nil
}

func (e *Engine) autoDecline(c AutoDeclineTrade) error {
	if _, err := e.gate(c.Player, rules.ActivityTrade); err != nil {
		return err
	}
	for _, offer := range e.market.DeclineAll(c.Player) {
		evt := rules.NewEvent(rules.EventTradeDeclined, c.Player)
		evt.Target = offer.From
		evt.Data = offer.ID
		e.emit(evt)
	}
	return nil
}

func (e *Engine) sendTradingCards(c SendTradingCards) error {
	if _, err := e.gate(c.Player, rules.ActivityTrade); err != nil {
		return err
	}
	offer, exchanged, err := e.market.Settle(c.OfferID, c.Player, e.hands())
	if err != nil {
		return err
	}
	if offer.State == trade.StateDeclined {
		evt := rules.NewEvent(rules.EventTradeDeclined, c.Player)
		evt.Target = offer.Counterpart(c.Player)
		evt.Data = offer.ID
		e.emit(evt)
		e.logger.Debug("trade fell through", zap.String("offer", offer.ID))
		return nil
	}
	if !exchanged {
		return nil
	}
	evt := rules.NewEvent(rules.EventTradeSettled, offer.From)
	evt.Target = offer.To
	evt.Data = offer.ID
	evt.Amount = len(offer.FromManifest)
	e.emit(evt)
	e.logger.Debug("trade settled",
		zap.String("offer", offer.ID),
		zap.String("from", string(offer.From)),
		zap.String("to", string(offer.To)),
	)
	return nil
}

func (e *Engine) stopTrading(player board.PlayerID) error {
	if _, err := e.gate(player, rules.ActivityTrade); err != nil {
		return err
	}
	e.stop(player)
	// a lone trader has nobody left to trade with
	if rest := e.info.StillToAct(); len(rest) == 1 {
		e.stop(rest[0])
	}
	return nil
}

func (e *Engine) stop(player board.PlayerID) {
	for _, offer := range e.market.Stop(player) {
		evt := rules.NewEvent(rules.EventTradeDeclined, player)
		evt.Target = offer.From
		evt.Data = offer.ID
		e.emit(evt)
	}
	e.markDone(player, rules.EventPlayerStoppedTrading)
}

func (e *Engine) chooseCalamityTarget(c ChooseCalamityTarget) error {
	if _, err := e.gate(c.Player, rules.ActivityResolveCalamities); err != nil {
		return err
	}
	if e.calamity == nil {
		return fmt.Errorf("no calamity in progress: %w", ErrInvalidCommand)
	}
	if err := e.calamity.Select(e.board, c.Player, calamity.Target{Area: c.Area, City: c.City}); err != nil {
		return err
	}
	return e.runCalamities()
}

func (e *Engine) acquireCards(c AcquireCivilizationCards) error {
	p, err := e.gate(c.Player, rules.ActivityAcquireCivilizationCards)
	if err != nil {
		return err
	}
	if len(c.Advances) == 0 {
		return fmt.Errorf("no advances named: %w", ErrInvalidCommand)
	}
	seen := make(map[cards.Advance]struct{}, len(c.Advances))
	total := 0
	for _, a := range c.Advances {
		cost, ok := cards.Cost(a)
		if !ok {
			return fmt.Errorf("unknown advance %s: %w", a, ErrInvalidCommand)
		}
		if _, dup := seen[a]; dup || p.Advances.Has(a) {
			return fmt.Errorf("%s already owned: %w", a, ErrInvalidCommand)
		}
		seen[a] = struct{}{}
		total += cost
	}
	payment, ok := cards.PlanPayment(p.TradeCards, p.Treasury.Available(), total)
	if !ok {
		return fmt.Errorf("cost %d exceeds purchasing power: %w", total, ErrInvalidCommand)
	}

	for _, card := range payment.Apply(p.TradeCards) {
		e.piles.Discard(card)
	}
	e.board.SpendTreasury(p.ID, payment.Treasury)
	for _, a := range c.Advances {
		p.Advances.Add(a)
		cost, _ := cards.Cost(a)
		evt := rules.NewEvent(rules.EventCivilizationCardAcquired, p.ID)
		evt.Data = string(a)
		evt.Amount = cost
		e.emit(evt)
	}
	e.logger.Info("civilization cards acquired",
		zap.String("player", string(p.ID)),
		zap.Int("cost", total),
		zap.Stringer("payment", payment),
	)
	if !e.canAffordAdvance(p) {
		e.markDone(p.ID, rules.EventPlayerDoneAcquiringCivilizationCards)
	}
	return nil
}

func (e *Engine) canAffordAdvance(p *board.Player) bool {
	for _, a := range cards.AllAdvances() {
		if p.Advances.Has(a) {
			continue
		}
		cost, _ := cards.Cost(a)
		if _, ok := cards.PlanPayment(p.TradeCards, p.Treasury.Available(), cost); ok {
			return true
		}
	}
	return false
}

// selectMove turns a catalog entry back into the command it stands for.
func (e *Engine) selectMove(c SelectMove) error {
	m, ok := e.published[c.Player].Get(c.Index)
	if !ok {
		return fmt.Errorf("move %d: %w", c.Index, ErrInvalidCommand)
	}
	count := func(limit int) (int, error) {
		if c.Count == 0 {
			return limit, nil
		}
		if c.Count < 0 || c.Count > limit {
			return 0, fmt.Errorf("count %d outside 1..%d: %w", c.Count, limit, ErrInvalidCommand)
		}
		return c.Count, nil
	}

	var cmd Command
	switch mv := m.(type) {
	case moves.PopulationExpansion:
		n, err := count(mv.MaxTokens)
		if err != nil {
			return err
		}
		cmd = ExpandPopulationManually{Player: c.Player, Area: mv.Area, Count: n}
	case moves.Movement:
		n, err := count(mv.MaxTokens)
		if err != nil {
			return err
		}
		cmd = MoveTokenFromAreaToArea{Player: c.Player, Source: mv.Source, Target: mv.Target, Count: n}
	case moves.AttackArea:
		n, err := count(mv.MaxTokens)
		if err != nil {
			return err
		}
		cmd = MoveTokenFromAreaToArea{Player: c.Player, Source: mv.Source, Target: mv.Target, Count: n}
	case moves.AttackCity:
		n, err := count(mv.MaxTokens)
		if err != nil {
			return err
		}
		cmd = MoveTokenFromAreaToArea{Player: c.Player, Source: mv.Source, Target: mv.Target, Count: n}
	case moves.EndMovement:
		cmd = EndMovement{Player: c.Player}
	case moves.CityConstruction:
		cmd = BuildCity{Player: c.Player, Area: mv.Area}
	case moves.EndCityConstruction:
		cmd = EndCityConstruction{Player: c.Player}
	case moves.EliminateCity:
		cmd = EliminateCity{Player: c.Player, Area: mv.Area}
	case moves.ProposeTrade:
		cmd = ProposeTrade{Player: c.Player, Partner: mv.Partner, Offered: mv.Offered, Requested: mv.Requested}
	case moves.AcceptOrDeclineTrade:
		cmd = AnswerTrade{Player: c.Player, OfferID: mv.OfferID, Accept: mv.Accept}
	case moves.AutoDeclineTrade:
		cmd = AutoDeclineTrade{Player: c.Player}
	case moves.SettleTrade:
		cmd = SendTradingCards{Player: c.Player, OfferID: mv.OfferID}
	case moves.StopTrading:
		cmd = StopTrading{Player: c.Player}
	case moves.ChooseCalamityTarget:
		cmd = ChooseCalamityTarget{Player: c.Player, Area: mv.Area, City: mv.City}
	case moves.AcquireCard:
		cmd = AcquireCivilizationCards{Player: c.Player, Advances: []cards.Advance{mv.Advance}}
	case moves.AcquireCards:
		cmd = AcquireCivilizationCards{Player: c.Player, Advances: mv.Advances}
	case moves.DoneAcquiringCards:
		cmd = DoneAcquiringCivilizationCards{Player: c.Player}
	default:
		return fmt.Errorf("%s: %w", m.Kind(), ErrInvalidCommand)
	}
	return e.apply(cmd)
}
