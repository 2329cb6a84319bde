package game

import (
	"sort"
	"strconv"

	"go.uber.org/zap"

	"github.com/lavaeater/civ-server-go/internal/game/board"
	"github.com/lavaeater/civ-server-go/internal/game/calamity"
	"github.com/lavaeater/civ-server-go/internal/game/conflict"
	"github.com/lavaeater/civ-server-go/internal/game/rules"
)

// settle advances through every activity whose gate is open. An empty gate
// transitions immediately, so at most one full round passes per call.
func (e *Engine) settle() {
	for i := 0; i < len(rules.Cycle()) && e.info.AllDone(); i++ {
		e.transition()
	}
}

func (e *Engine) transition() {
	from := e.phases.Current()
	e.exit(from)
	to, wrapped := e.phases.Advance()
	e.info.Round = e.phases.Round()
	if wrapped {
		e.emit(rules.NewEvent(rules.EventRoundStarted, ""))
		e.logger.Info("round started", zap.Int("round", e.phases.Round()))
	}
	e.enter(to)
	if e.recorder != nil {
		e.recorder.Record(e.snapshot())
	}
}

func (e *Engine) exit(activity rules.Activity) {
	evt := rules.NewEvent(rules.EventPhaseEnded, "")
	evt.Data = activity.String()
	e.emit(evt)
}

// enter clears the previous activity's markers, runs the activity's automatic
// part and opens the gate for the players that must act.
func (e *Engine) enter(activity rules.Activity) {
	e.manual = make(map[board.PlayerID]bool)
	e.support = make(map[board.PlayerID]*conflict.TooManyCities)
	e.calamity = nil
	e.calamities = nil
	e.board.ClearMoved()
	e.info.SetActive(nil)

	evt := rules.NewEvent(rules.EventPhaseStarted, "")
	evt.Data = activity.String()
	e.emit(evt)

	switch activity {
	case rules.ActivityPopulationExpansion:
		e.enterExpansion()
	case rules.ActivityCensus:
		e.takeCensus()
	case rules.ActivityMovement:
		var active []board.PlayerID
		for _, p := range e.board.Players() {
			if len(e.board.AreasOf(p.ID)) > 0 {
				active = append(active, p.ID)
			}
		}
		e.info.SetActive(active)
	case rules.ActivityConflict:
		e.resolveConflicts()
	case rules.ActivityCityConstruction:
		var active []board.PlayerID
		for _, p := range e.board.Players() {
			if len(e.constructionSites(p)) > 0 {
				active = append(active, p.ID)
			}
		}
		e.info.SetActive(active)
	case rules.ActivityRemoveSurplusPopulation:
		for _, r := range conflict.RemoveAllSurplus(e.board) {
			evt := rules.NewAreaEvent(rules.EventSurplusRemoved, r.Player, r.Area, r.Returned)
			evt.Metadata["city_area"] = strconv.FormatBool(r.CityArea)
			e.emit(evt)
		}
	case rules.ActivityCheckCitySupport:
		e.enterCitySupport()
	case rules.ActivityAcquireTradeCards:
		e.collectTaxes()
		e.drawTradeCards()
	case rules.ActivityTrade:
		e.market.Reset()
		var active []board.PlayerID
		for _, p := range e.board.Players() {
			if e.market.Eligible(p.TradeCards) {
				active = append(active, p.ID)
			}
		}
		if len(active) > 1 {
			e.info.SetActive(active)
		}
	case rules.ActivityResolveCalamities:
		e.queueCalamities()
		if err := e.runCalamities(); err != nil {
			e.logger.Error("calamity resolution failed", zap.Error(err))
		}
	case rules.ActivityAcquireCivilizationCards:
		var active []board.PlayerID
		for _, p := range e.board.Players() {
			if e.canAffordAdvance(p) {
				active = append(active, p.ID)
			}
		}
		e.info.SetActive(active)
	}

	e.logger.Info("phase started",
		zap.String("activity", activity.String()),
		zap.Int("round", e.phases.Round()),
		zap.Int("active_players", len(e.info.StillToAct())),
	)
}

// enterExpansion grows every population by one token per lone token and two
// per larger group. Players whose stock cannot cover the growth place their
// tokens by hand.
func (e *Engine) enterExpansion() {
	var active []board.PlayerID
	for _, p := range e.board.Players() {
		areas := e.board.AreasOf(p.ID)
		growth := make(map[board.AreaID]int, len(areas))
		total := 0
		for _, a := range areas {
			growth[a] = min(e.board.CountIn(p.ID, a), 2)
			total += growth[a]
		}
		if total == 0 {
			continue
		}
		if p.Population.Available() >= total {
			for _, a := range areas {
				if n := e.board.PlaceUpTo(p.ID, a, growth[a]); n > 0 {
					e.emit(rules.NewAreaEvent(rules.EventTokensPlaced, p.ID, a, n))
				}
			}
			continue
		}
		if p.Population.Available() == 0 || len(e.expansionAreas(p)) == 0 {
			continue
		}
		e.manual[p.ID] = true
		active = append(active, p.ID)
	}
	e.info.SetActive(active)
}

func (e *Engine) takeCensus() {
	e.board.RefreshCensus()
	e.info.SetCensusOrder(e.board.CensusOrder())
	for _, id := range e.info.CensusOrder {
		p, _ := e.board.Player(id)
		e.emit(rules.NewAreaEvent(rules.EventCensusTaken, id, "", p.Census))
	}
}

// resolveConflicts repeats resolution until no conflict zone is left.
func (e *Engine) resolveConflicts() {
	for pass := 0; pass < e.board.Map().Len(); pass++ {
		results := e.resolver.ResolveAll(e.board)
		if len(results) == 0 {
			return
		}
		for _, r := range results {
			if r.CityEliminated != nil {
				evt := rules.NewAreaEvent(rules.EventCityEliminated, r.CityEliminated.Player, r.Area, 1)
				evt.Metadata["conflict"] = strconv.FormatBool(true)
				e.emit(evt)
			}
			removed := 0
			for _, player := range sortedPlayers(r.Removed) {
				if n := r.Removed[player]; n > 0 {
					removed += n
					e.emit(rules.NewAreaEvent(rules.EventTokensReturned, player, r.Area, n))
				}
			}
			evt := rules.NewAreaEvent(rules.EventConflictResolved, "", r.Area, removed)
			for player, n := range r.Survivors {
				evt.Metadata[string(player)] = strconv.Itoa(n)
			}
			e.emit(evt)
		}
	}
}

func sortedPlayers(counts map[board.PlayerID]int) []board.PlayerID {
	out := make([]board.PlayerID, 0, len(counts))
	for p := range counts {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// enterCitySupport checks every city holder. Holders whose cities are all
// supported are released at once; the rest must eliminate cities.
func (e *Engine) enterCitySupport() {
	holders := conflict.PlayersWithCities(e.board)
	e.info.SetActive(holders)
	for _, player := range holders {
		e.checkSupport(player)
		if marker := e.support[player]; marker != nil {
			evt := rules.NewEvent(rules.EventTooManyCities, player)
			evt.Amount = marker.SurplusCount
			evt.Metadata["needed_tokens"] = strconv.Itoa(marker.NeededTokens)
			e.emit(evt)
		}
	}
}

func (e *Engine) collectTaxes() {
	if e.cfg.TaxPerCity <= 0 {
		return
	}
	for _, p := range e.board.Players() {
		if cities := p.CityCount(); cities > 0 {
			if n := e.board.CollectTax(p.ID, cities*e.cfg.TaxPerCity); n > 0 {
				e.emit(rules.NewAreaEvent(rules.EventTaxCollected, p.ID, "", n))
			}
		}
	}
}

// drawTradeCards gives each player the top card of piles 1..k, k being the
// number of cities the player holds. Empty piles yield nothing.
func (e *Engine) drawTradeCards() {
	for _, id := range e.info.CensusOrder {
		p, ok := e.board.Player(id)
		if !ok {
			continue
		}
		for pile := 1; pile <= p.CityCount(); pile++ {
			card, ok := e.piles.Draw(pile)
			if !ok {
				continue
			}
			p.TradeCards.Add(card, 1)
			evt := rules.NewAreaEvent(rules.EventTradeCardDrawn, id, "", pile)
			evt.Data = string(card)
			e.emit(evt)
		}
	}
}

// queueCalamities lists every calamity held, lowest value first, ties in
// census order.
func (e *Engine) queueCalamities() {
	var queue []pendingCalamity
	for _, id := range e.info.CensusOrder {
		p, ok := e.board.Player(id)
		if !ok {
			continue
		}
		for _, card := range p.TradeCards.Calamities() {
			for i := 0; i < p.TradeCards.Count(card); i++ {
				queue = append(queue, pendingCalamity{card: card, victim: id})
			}
		}
	}
	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].card.Value() < queue[j].card.Value()
	})
	e.calamities = queue
}

// runCalamities drives calamities one at a time until one waits for a
// selection or the queue is empty. The chooser of a waiting calamity is the
// only player acting.
func (e *Engine) runCalamities() error {
	for {
		if e.calamity == nil {
			if len(e.calamities) == 0 {
				e.market.ClearGivers()
				e.info.SetActive(nil)
				return nil
			}
			next := e.calamities[0]
			e.calamities = e.calamities[1:]
			p, ok := e.board.Player(next.victim)
			if !ok || !p.TradeCards.Has(next.card) {
				continue
			}
			giver, _ := e.market.Giver(next.victim, next.card)
			m, err := calamity.New(next.card, next.victim, calamity.Context{Giver: giver})
			if err != nil {
				return err
			}
			e.calamity = m
			evt := rules.NewEvent(rules.EventCalamityStarted, next.victim)
			evt.Data = string(next.card)
			evt.Target = giver
			e.emit(evt)
		}

		if err := calamity.Advance(e.calamity, e.board); err != nil {
			return err
		}
		if e.calamity.Phase() != calamity.PhaseComplete {
			e.info.SetActive([]board.PlayerID{e.calamity.Chooser()})
			return nil
		}
		e.finishCalamity()
	}
}

func (e *Engine) finishCalamity() {
	m := e.calamity
	e.calamity = nil
	if p, ok := e.board.Player(m.Victim()); ok && p.TradeCards.Remove(m.Calamity()) {
		e.piles.Discard(m.Calamity())
	}
	evt := rules.NewEvent(rules.EventCalamityResolved, m.Victim())
	evt.Data = string(m.Calamity())
	evt.Target = m.Beneficiary()
	evt.Amount = len(m.Picks())
	e.emit(evt)
	e.logger.Info("calamity resolved",
		zap.String("calamity", string(m.Calamity())),
		zap.String("victim", string(m.Victim())),
		zap.String("beneficiary", string(m.Beneficiary())),
	)
}
