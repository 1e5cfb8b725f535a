// Package metrics exposes Prometheus instrumentation for the adaptive
// weighting feedback loop.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TradesRecorded counts realized trade outcomes folded into the learner.
	TradesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adaptive_trades_recorded_total",
		Help: "Realized trade outcomes recorded into the learning loop",
	})

	// ConvictionEvaluations counts entry conviction computations.
	ConvictionEvaluations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adaptive_conviction_evaluations_total",
		Help: "Directional conviction computations",
	})

	// EntryDecisions counts entry decisions by outcome.
	EntryDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adaptive_entry_decisions_total",
		Help: "Entry decisions by outcome",
	}, []string{"outcome"})

	// ExitEvaluations counts exit urgency evaluations by action.
	ExitEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adaptive_exit_evaluations_total",
		Help: "Exit urgency evaluations by resulting action",
	}, []string{"action"})

	// WeightUpdateRuns counts update_weights calls by result.
	WeightUpdateRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adaptive_weight_update_runs_total",
		Help: "Weight update runs by result (adjusted, unchanged, skipped)",
	}, []string{"result"})

	// Adjustments counts individual multiplier adjustments by reason.
	Adjustments = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "adaptive_weight_adjustments_total",
		Help: "Multiplier adjustments by rule reason",
	}, []string{"reason"})

	// Multiplier reports the current multiplier per component.
	Multiplier = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "adaptive_component_multiplier",
		Help: "Current adaptive multiplier per signal component",
	}, []string{"component"})

	// StateSaveFailures counts failed state persistence attempts.
	StateSaveFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "adaptive_state_save_failures_total",
		Help: "Failed optimizer state persistence attempts",
	})
)

// ObserveMultipliers refreshes the per-component multiplier gauges.
func ObserveMultipliers(multipliers map[string]float64) {
	for component, value := range multipliers {
		Multiplier.WithLabelValues(component).Set(value)
	}
}
