package rules

import (
	"fmt"
	"strings"
)

// Activity is one stage of the repeating game round.
type Activity int

const (
	ActivityPopulationExpansion Activity = iota
	ActivityCensus
	ActivityMovement
	ActivityConflict
	ActivityCityConstruction
	ActivityRemoveSurplusPopulation
	ActivityCheckCitySupport
	ActivityAcquireTradeCards
	ActivityTrade
	ActivityResolveCalamities
	ActivityAcquireCivilizationCards
)

var activityNames = map[Activity]string{
	ActivityPopulationExpansion:      "POPULATION_EXPANSION",
	ActivityCensus:                   "CENSUS",
	ActivityMovement:                 "MOVEMENT",
	ActivityConflict:                 "CONFLICT",
	ActivityCityConstruction:         "CITY_CONSTRUCTION",
	ActivityRemoveSurplusPopulation:  "REMOVE_SURPLUS_POPULATION",
	ActivityCheckCitySupport:         "CHECK_CITY_SUPPORT",
	ActivityAcquireTradeCards:        "ACQUIRE_TRADE_CARDS",
	ActivityTrade:                    "TRADE",
	ActivityResolveCalamities:        "RESOLVE_CALAMITIES",
	ActivityAcquireCivilizationCards: "ACQUIRE_CIVILIZATION_CARDS",
}

func (a Activity) String() string {
	if name, ok := activityNames[a]; ok {
		return name
	}
	return fmt.Sprintf("ACTIVITY_%d", int(a))
}

// ParseActivity resolves a name produced by String.
func ParseActivity(name string) (Activity, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for a, n := range activityNames {
		if n == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown activity %q", name)
}

// activityCycle is the fixed order of a round. There is no terminal state.
var activityCycle = []Activity{
	ActivityPopulationExpansion,
	ActivityCensus,
	ActivityMovement,
	ActivityConflict,
	ActivityCityConstruction,
	ActivityRemoveSurplusPopulation,
	ActivityCheckCitySupport,
	ActivityAcquireTradeCards,
	ActivityTrade,
	ActivityResolveCalamities,
	ActivityAcquireCivilizationCards,
}

// Cycle returns a copy of the round order.
func Cycle() []Activity {
	out := make([]Activity, len(activityCycle))
	copy(out, activityCycle)
	return out
}

// Next returns the activity that follows a in the round.
func (a Activity) Next() Activity {
	for i, entry := range activityCycle {
		if entry == a {
			return activityCycle[(i+1)%len(activityCycle)]
		}
	}
	return ActivityPopulationExpansion
}

// PhaseManager tracks the current activity and round number.
type PhaseManager struct {
	orderIndex int
	round      int
}

// NewPhaseManager starts at round 1, population expansion.
func NewPhaseManager() *PhaseManager {
	return &PhaseManager{round: 1}
}

// Current returns the activity in progress.
func (pm *PhaseManager) Current() Activity {
	return activityCycle[pm.orderIndex]
}

// Round returns the current round number (1-based).
func (pm *PhaseManager) Round() int {
	return pm.round
}

// Advance moves to the next activity. Wrapping back to population expansion
// starts a new round, reported by the second return value.
func (pm *PhaseManager) Advance() (Activity, bool) {
	pm.orderIndex++
	wrapped := false
	if pm.orderIndex >= len(activityCycle) {
		pm.orderIndex = 0
		pm.round++
		wrapped = true
	}
	return pm.Current(), wrapped
}

// Restore positions the manager at a saved activity and round.
func (pm *PhaseManager) Restore(activity Activity, round int) error {
	if round < 1 {
		return fmt.Errorf("invalid round %d", round)
	}
	for i, entry := range activityCycle {
		if entry == activity {
			pm.orderIndex = i
			pm.round = round
			return nil
		}
	}
	return fmt.Errorf("unknown activity %d", int(activity))
}
