package weights

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/signal"
)

func newEntryModel() *Model {
	return NewModel(signal.EntryComponents(), signal.BaseWeights())
}

func TestModel_EffectiveWeightDefaults(t *testing.T) {
	m := newEntryModel()

	// Default multiplier is neutral, so effective weight == base weight.
	assert.Equal(t, 2.5, m.EffectiveWeight(signal.OptionsFlow))
	assert.Equal(t, -1.5, m.EffectiveWeight(signal.ToxicityPenalty),
		"toxicity penalty base is deliberately negative")

	// Unrecognized components fall back to the default base weight.
	assert.Equal(t, signal.DefaultBaseWeight, m.EffectiveWeight("mystery_factor"))
}

func TestModel_UpdateMultiplierClamps(t *testing.T) {
	m := newEntryModel()
	now := time.Now()

	m.UpdateMultiplier(signal.DarkPool, 5.0, now)
	assert.Equal(t, MaxMultiplier, m.Multiplier(signal.DarkPool))

	m.UpdateMultiplier(signal.DarkPool, 0.01, now)
	assert.Equal(t, MinMultiplier, m.Multiplier(signal.DarkPool))

	m.UpdateMultiplier(signal.DarkPool, 1.35, now)
	assert.Equal(t, 1.35, m.Multiplier(signal.DarkPool))
	assert.Equal(t, now, m.Band(signal.DarkPool).LastUpdated)
	assert.Equal(t, now, m.UpdatedAt())
}

func TestModel_MultiplierBoundsHoldUnderAnySequence(t *testing.T) {
	m := newEntryModel()
	now := time.Now()

	values := []float64{3.2, -1.0, 0.0, 2.5, 0.25, 100, -100, 1.0, 2.51, 0.2499}
	for _, v := range values {
		m.UpdateMultiplier(signal.OptionsFlow, v, now)
		got := m.Multiplier(signal.OptionsFlow)
		assert.GreaterOrEqual(t, got, MinMultiplier)
		assert.LessOrEqual(t, got, MaxMultiplier)
	}
}

func TestModel_StateRoundTrip(t *testing.T) {
	m := newEntryModel()
	now := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)

	m.UpdateMultiplier(signal.OptionsFlow, 1.25, now)
	band := m.Band(signal.OptionsFlow)
	band.Wins = 12
	band.Losses = 3
	band.SampleCount = 15
	band.TotalPnL = 8.4
	band.EWMAPerformance = 0.71

	data, err := json.Marshal(m.ExportState())
	require.NoError(t, err)

	restored := newEntryModel()
	var state State
	require.NoError(t, json.Unmarshal(data, &state))
	restored.ApplyState(state)

	assert.Equal(t, 1.25, restored.Multiplier(signal.OptionsFlow))
	assert.Equal(t, 12, restored.Band(signal.OptionsFlow).Wins)
	assert.Equal(t, 8.4, restored.Band(signal.OptionsFlow).TotalPnL)
	assert.Equal(t, now, restored.UpdatedAt())
}

func TestModel_ApplyStateTolerantMerge(t *testing.T) {
	m := newEntryModel()
	m.Band(signal.DarkPool).Wins = 7

	// Partial record: only current multiplier present, plus an unknown field
	// and an unknown component. Missing fields must keep previous values.
	raw := []byte(`{
		"weight_bands": {
			"dark_pool": {"current": 1.8, "future_field": true},
			"retired_component": {"current": 0.5}
		}
	}`)
	var state State
	require.NoError(t, json.Unmarshal(raw, &state))
	m.ApplyState(state)

	assert.Equal(t, 1.8, m.Multiplier(signal.DarkPool))
	assert.Equal(t, 7, m.Band(signal.DarkPool).Wins, "missing fields preserve previous values")
	assert.Equal(t, NeutralMultiplier, m.Multiplier(signal.OptionsFlow), "untouched bands stay at defaults")
}

func TestModel_ApplyStateClampsOutOfRangeCurrent(t *testing.T) {
	m := newEntryModel()

	raw := []byte(`{"weight_bands": {"options_flow": {"current": 9.9}}}`)
	var state State
	require.NoError(t, json.Unmarshal(raw, &state))
	m.ApplyState(state)

	assert.Equal(t, MaxMultiplier, m.Multiplier(signal.OptionsFlow))
}
