package learner

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/signal"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/weights"
)

func newTestOrchestrator() (*Orchestrator, *weights.Model, *weights.Model) {
	entry := weights.NewModel(signal.EntryComponents(), signal.BaseWeights())
	exit := weights.NewModel(signal.ExitComponents(), signal.ExitBaseWeights())
	return NewOrchestrator(entry, exit, nil), entry, exit
}

func recordN(o *Orchestrator, component string, n int, pnl float64, start time.Time) {
	for i := 0; i < n; i++ {
		o.RecordTradeOutcome(Outcome{
			TradeID:   fmt.Sprintf("t-%s-%d-%f", component, i, pnl),
			Symbol:    "TEST",
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			PnL:       pnl,
			Regime:    "trending",
			Sector:    "TECH",
			Features:  map[string]float64{component: 0.8},
		})
	}
}

func TestOrchestrator_StrongPerformerGainsExactlyOneStep(t *testing.T) {
	o, entry, _ := newTestOrchestrator()
	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	// 40 wins at +2%, 5 losses at -1% for one component at neutral 1.0.
	recordN(o, signal.OptionsFlow, 40, 2.0, start)
	recordN(o, signal.OptionsFlow, 5, -1.0, start.Add(time.Hour))

	require.Equal(t, 1.0, entry.Multiplier(signal.OptionsFlow))

	report := o.UpdateWeights()
	require.Equal(t, 1, report.TotalAdjusted)
	adj := report.Adjustments[0]
	assert.Equal(t, signal.OptionsFlow, adj.Component)
	assert.Equal(t, "strong performer", adj.Reason)
	assert.InDelta(t, 1.05, entry.Multiplier(signal.OptionsFlow), 1e-9)
	assert.InDelta(t, 40.0/45.0, adj.WinRate, 1e-9)
	assert.Equal(t, 45, adj.Samples)
}

func TestOrchestrator_CooldownSkipsSecondCall(t *testing.T) {
	o, _, _ := newTestOrchestrator()
	now := time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	o.SetClock(func() time.Time { return now })

	recordN(o, signal.DarkPool, 40, 2.0, now.Add(-48*time.Hour))

	first := o.UpdateWeights()
	require.Greater(t, first.TotalAdjusted, 0)

	now = now.Add(2 * time.Hour)
	second := o.UpdateWeights()
	assert.True(t, second.Skipped)
	assert.Equal(t, 0, second.TotalAdjusted)
	assert.Contains(t, second.Reason, "too soon")

	// Outside the cooldown the guard releases.
	now = now.Add(23 * time.Hour)
	third := o.UpdateWeights()
	assert.False(t, third.Skipped)
}

func TestOrchestrator_WeakPerformerLosesOneStep(t *testing.T) {
	o, entry, _ := newTestOrchestrator()
	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	recordN(o, signal.NewsSentiment, 10, 1.0, start)
	recordN(o, signal.NewsSentiment, 35, -1.0, start.Add(time.Hour))

	report := o.UpdateWeights()
	require.Equal(t, 1, report.TotalAdjusted)
	assert.Equal(t, "weak performer", report.Adjustments[0].Reason)
	assert.InDelta(t, 0.95, entry.Multiplier(signal.NewsSentiment), 1e-9)
}

func TestOrchestrator_MeanReversionTowardNeutral(t *testing.T) {
	o, entry, _ := newTestOrchestrator()
	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	entry.UpdateMultiplier(signal.Institutional, 1.5, start)

	// 36 wins / 35 losses alternating, ending on a win: EWMA win rate sits in
	// the dead zone and EWMA pnl ends positive, so rules 1-4 pass over.
	for i := 0; i < 71; i++ {
		pnl := 0.5
		if i%2 == 1 {
			pnl = -0.4
		}
		o.RecordTradeOutcome(Outcome{
			TradeID:   fmt.Sprintf("mr-%d", i),
			Timestamp: start.Add(time.Duration(i) * time.Minute),
			PnL:       pnl,
			Regime:    "choppy",
			Sector:    "TECH",
			Features:  map[string]float64{signal.Institutional: 0.5},
		})
	}

	rec := o.Performance(signal.Institutional)
	require.GreaterOrEqual(t, rec.EWMAWinRate, 0.48)
	require.LessOrEqual(t, rec.EWMAWinRate, 0.52)

	report := o.UpdateWeights()
	require.Equal(t, 1, report.TotalAdjusted)
	assert.Equal(t, "mean reversion to neutral", report.Adjustments[0].Reason)
	// 10% of the distance back to 1.0: 1.5 -> 1.45.
	assert.InDelta(t, 1.45, entry.Multiplier(signal.Institutional), 1e-9)
}

func TestOrchestrator_TooFewSamplesNoAdjustment(t *testing.T) {
	o, entry, _ := newTestOrchestrator()
	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	recordN(o, signal.SweepScore, 29, 2.0, start)

	report := o.UpdateWeights()
	assert.Equal(t, 0, report.TotalAdjusted)
	assert.Equal(t, 1.0, entry.Multiplier(signal.SweepScore))
	assert.True(t, o.LastUpdate().IsZero(), "timestamp must not advance without adjustments")
}

func TestOrchestrator_UnchangedAtBoundIsOmitted(t *testing.T) {
	o, entry, _ := newTestOrchestrator()
	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	entry.UpdateMultiplier(signal.OptionsFlow, weights.MaxMultiplier, start)

	recordN(o, signal.OptionsFlow, 45, 2.0, start)

	report := o.UpdateWeights()
	assert.Equal(t, 0, report.TotalAdjusted,
		"a clamped no-op adjustment must be omitted from the report")
	assert.Equal(t, weights.MaxMultiplier, entry.Multiplier(signal.OptionsFlow))
}

func TestOrchestrator_ZeroValuedComponentTracksPnLOnly(t *testing.T) {
	o, _, _ := newTestOrchestrator()

	o.RecordTradeOutcome(Outcome{
		TradeID:   "z1",
		Timestamp: time.Now(),
		PnL:       3.0,
		Regime:    "trending",
		Sector:    "ENERGY",
		Features: map[string]float64{
			signal.OptionsFlow: 0.9,
			signal.DarkPool:    0.0, // present but zero
		},
	})

	flow := o.Performance(signal.OptionsFlow)
	assert.Equal(t, 1, flow.Wins)
	assert.Len(t, flow.WinContributions, 1)

	dp := o.Performance(signal.DarkPool)
	assert.Equal(t, 0, dp.Wins)
	assert.Equal(t, 0, dp.Losses)
	assert.Equal(t, 1, dp.Samples)
	assert.Equal(t, 3.0, dp.TotalPnL, "pnl accumulates even for zero-valued components")
	assert.Empty(t, dp.WinContributions)
}

func TestOrchestrator_UnknownFeatureIgnored(t *testing.T) {
	o, _, _ := newTestOrchestrator()

	o.RecordTradeOutcome(Outcome{
		TradeID:   "u1",
		Timestamp: time.Now(),
		PnL:       1.0,
		Features:  map[string]float64{"astrology_index": 0.7},
	})

	assert.Nil(t, o.Performance("astrology_index"))
	assert.Equal(t, 1, len(o.History()), "history still records the trade")
}

func TestOrchestrator_SectorAndRegimeSubTallies(t *testing.T) {
	o, _, _ := newTestOrchestrator()
	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	recordN(o, signal.InsiderBuying, 3, 1.5, start)

	rec := o.Performance(signal.InsiderBuying)
	require.Contains(t, rec.Sectors, "TECH")
	assert.Equal(t, 3, rec.Sectors["TECH"].Wins)
	assert.InDelta(t, 4.5, rec.Sectors["TECH"].PnL, 1e-9)
	require.Contains(t, rec.Regimes, "trending")
	assert.Equal(t, 3, rec.Regimes["trending"].Wins)
}

func TestOrchestrator_HistoryIsCappedFIFO(t *testing.T) {
	o, _, _ := newTestOrchestrator()
	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 1010; i++ {
		o.RecordTradeOutcome(Outcome{
			TradeID:   fmt.Sprintf("h-%d", i),
			Timestamp: start.Add(time.Duration(i) * time.Second),
			PnL:       1.0,
			Features:  map[string]float64{signal.OptionsFlow: 0.1},
		})
	}

	history := o.History()
	require.Len(t, history, 1000)
	assert.Equal(t, start.Add(10*time.Second), history[0].Timestamp,
		"oldest entries evicted first")
}

func TestOrchestrator_StateRoundTrip(t *testing.T) {
	o, _, _ := newTestOrchestrator()
	start := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	recordN(o, signal.GammaExposure, 5, 1.0, start)

	state := o.ExportState()
	assert.Equal(t, 5, state.LearningHistoryCount)
	require.NotNil(t, state.LastHistorySample)

	restored, _, _ := newTestOrchestrator()
	restored.ApplyState(state)
	rec := restored.Performance(signal.GammaExposure)
	assert.Equal(t, 5, rec.Wins)
	assert.InDelta(t, 5.0, rec.TotalPnL, 1e-9)
}

func TestOrchestrator_MultiplierStaysBoundedUnderPressure(t *testing.T) {
	o, entry, _ := newTestOrchestrator()
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	o.SetClock(func() time.Time { return now })

	recordN(o, signal.RelativeStrength, 200, -1.0, now.Add(-time.Hour))

	// Repeated updates drive the multiplier down; it must never pass the floor.
	for i := 0; i < 40; i++ {
		o.UpdateWeights()
		now = now.Add(25 * time.Hour)
		got := entry.Multiplier(signal.RelativeStrength)
		assert.GreaterOrEqual(t, got, weights.MinMultiplier)
		assert.LessOrEqual(t, got, weights.MaxMultiplier)
	}
	assert.Equal(t, weights.MinMultiplier, entry.Multiplier(signal.RelativeStrength))
}
