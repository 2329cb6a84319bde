package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseManagerSequence(t *testing.T) {
	pm := NewPhaseManager()

	expected := []Activity{
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

	for i, exp := range expected {
		if pm.Current() != exp {
			t.Fatalf("step %d: expected %s, got %s", i, exp, pm.Current())
		}
		if i < len(expected)-1 {
			_, wrapped := pm.Advance()
			require.False(t, wrapped)
		}
	}
}

func TestPhaseManagerAdvanceWrapsRound(t *testing.T) {
	pm := NewPhaseManager()

	for i := 0; i < 10; i++ {
		pm.Advance()
		if pm.Round() != 1 {
			t.Fatalf("expected to remain on round 1, got %d at step %d", pm.Round(), i)
		}
	}

	activity, wrapped := pm.Advance()
	assert.True(t, wrapped)
	assert.Equal(t, 2, pm.Round())
	assert.Equal(t, ActivityPopulationExpansion, activity)
}

func TestActivityNextAndParse(t *testing.T) {
	assert.Equal(t, ActivityAcquireTradeCards, ActivityCheckCitySupport.Next())
	assert.Equal(t, ActivityPopulationExpansion, ActivityAcquireCivilizationCards.Next())

	a, err := ParseActivity("check_city_support")
	require.NoError(t, err)
	assert.Equal(t, ActivityCheckCitySupport, a)

	_, err = ParseActivity("UPKEEP")
	require.Error(t, err)
	assert.Equal(t, "ACTIVITY_42", Activity(42).String())
}

func TestPhaseManagerRestore(t *testing.T) {
	pm := NewPhaseManager()
	require.NoError(t, pm.Restore(ActivityTrade, 7))
	assert.Equal(t, ActivityTrade, pm.Current())
	assert.Equal(t, 7, pm.Round())

	require.Error(t, pm.Restore(ActivityTrade, 0))
	require.Error(t, pm.Restore(Activity(99), 1))
}
