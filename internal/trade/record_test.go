package trade

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeComponents_NestedConviction(t *testing.T) {
	got := NormalizeComponents(map[string]any{
		"flow": map[string]any{"conviction": 0.6},
	})

	assert.Equal(t, map[string]float64{"options_flow": 0.6}, got)
}

func TestNormalizeComponents_UnknownKeysDroppedSilently(t *testing.T) {
	got := NormalizeComponents(map[string]any{
		"quantum_oscillator": 0.9,
	})

	assert.Empty(t, got)
}

func TestNormalizeComponents_ValuePreference(t *testing.T) {
	// conviction beats value, value beats arbitrary numeric fields.
	got := NormalizeComponents(map[string]any{
		"iv_skew": map[string]any{"value": 0.4, "conviction": 0.7},
		"dp":      map[string]any{"value": 0.3, "zscore": 1.5},
		"si":      map[string]any{"zscore": 1.1, "annotation": "crowded"},
	})

	assert.Equal(t, 0.7, got["iv_term_skew"])
	assert.Equal(t, 0.3, got["dark_pool"])
	assert.Equal(t, 1.1, got["short_interest"])
}

func TestNormalizeComponents_FirstNumericFieldInKeyOrder(t *testing.T) {
	got := NormalizeComponents(map[string]any{
		"sweeps": map[string]any{"zeta": 9.0, "alpha": 2.0, "note": "x"},
	})

	assert.Equal(t, 2.0, got["sweep_score"], "first numeric field in sorted key order")
}

func TestNormalizeComponents_BareNumbersAndJSONDecode(t *testing.T) {
	raw := []byte(`{"flow": 0.8, "gex": {"conviction": 0.2}, "junk": "n/a"}`)
	var components map[string]any
	require.NoError(t, json.Unmarshal(raw, &components))

	got := NormalizeComponents(components)
	assert.Equal(t, map[string]float64{
		"options_flow":   0.8,
		"gamma_exposure": 0.2,
	}, got)
}

func TestRecord_ApplyDefaults(t *testing.T) {
	r := Record{TradeID: "t1", Symbol: "NVDA", PnL: 1.2}
	r.ApplyDefaults()

	assert.Equal(t, "unknown", r.Context.MarketRegime)
	assert.Equal(t, "UNKNOWN", r.Context.Sector)
	require.NotNil(t, r.Context.IVRank)
	assert.Equal(t, 50.0, *r.Context.IVRank)
	assert.Equal(t, "NORMAL_VOL", r.Context.VolatilityRegime)
}

func TestRecord_IsPlaceholder(t *testing.T) {
	assert.True(t, (&Record{TradeID: "synthetic_123"}).IsPlaceholder())
	assert.True(t, (&Record{TradeID: "open_456"}).IsPlaceholder())
	assert.True(t, (&Record{TradeID: "t1", Status: "OPEN"}).IsPlaceholder())
	assert.False(t, (&Record{TradeID: "t1", Status: "closed"}).IsPlaceholder())
}
