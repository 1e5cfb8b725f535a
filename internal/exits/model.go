// Package exits implements the exit-side adaptive weight namespace and the
// urgency scorer that turns position state into EXIT/REDUCE/HOLD actions.
package exits

import (
	"math"
	"time"

	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/signal"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/weights"
)

// Config contains exit urgency thresholds.
type Config struct {
	EntryDecayRatio     float64 `yaml:"entry_decay_ratio"`      // score ratio below which decay fires
	AdverseFlowBoost    float64 `yaml:"adverse_flow_boost"`     // flat urgency for a flow reversal
	DrawdownTriggerPts  float64 `yaml:"drawdown_trigger_pts"`   // pp giveback before velocity fires
	DrawdownVelScale    float64 `yaml:"drawdown_vel_scale"`     // velocity -> urgency slope
	DrawdownCap         float64 `yaml:"drawdown_cap"`           // max drawdown contribution
	TimeDecayStartHours float64 `yaml:"time_decay_start_hours"` // age before time decay fires
	TimeDecayScaleHours float64 `yaml:"time_decay_scale_hours"` // hours per urgency point
	TimeDecayCap        float64 `yaml:"time_decay_cap"`         // max time-decay contribution
	MomentumReversalMin float64 `yaml:"momentum_reversal_min"`  // opposing magnitude before firing
	HardFloorPnLPct     float64 `yaml:"hard_floor_pnl_pct"`     // pnl below which the floor applies
	HardFloorBoost      float64 `yaml:"hard_floor_boost"`       // unweighted floor contribution
	MaxUrgency          float64 `yaml:"max_urgency"`            // urgency clamp ceiling
	ExitThreshold       float64 `yaml:"exit_threshold"`         // urgency >= -> EXIT
	ReduceThreshold     float64 `yaml:"reduce_threshold"`       // urgency >= -> REDUCE
}

// DefaultConfig returns production exit configuration.
func DefaultConfig() *Config {
	return &Config{
		EntryDecayRatio:     0.7,
		AdverseFlowBoost:    2.0,
		DrawdownTriggerPts:  3.0,
		DrawdownVelScale:    0.5,
		DrawdownCap:         3.0,
		TimeDecayStartHours: 72.0,
		TimeDecayScaleHours: 48.0,
		TimeDecayCap:        2.0,
		MomentumReversalMin: 0.5,
		HardFloorPnLPct:     -5.0,
		HardFloorBoost:      2.0,
		MaxUrgency:          10.0,
		ExitThreshold:       6.0,
		ReduceThreshold:     3.0,
	}
}

// Position is the open-position state evaluated for exit urgency.
type Position struct {
	Symbol          string  `json:"symbol"`
	Direction       int     `json:"direction"` // +1 long, -1 short
	EntryScore      float64 `json:"entry_score"`
	CurrentScore    float64 `json:"current_score"`
	CurrentPnLPct   float64 `json:"current_pnl_pct"`
	HighWaterPnLPct float64 `json:"high_water_pnl_pct"`
	AgeHours        float64 `json:"age_hours"`
}

// Signals carries the live exit-side readings for a position.
type Signals struct {
	FlowReversal bool    `json:"flow_reversal"`
	Momentum     float64 `json:"momentum"` // signed momentum reading
}

// FactorContribution records one urgency factor that fired.
type FactorContribution struct {
	Factor       string  `json:"factor"`
	Raw          float64 `json:"raw"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// Result is the urgency evaluation outcome.
type Result struct {
	Symbol        string               `json:"symbol"`
	Timestamp     time.Time            `json:"timestamp"`
	Urgency       float64              `json:"urgency"` // clamped to [0, max]
	Action        string               `json:"action"`  // EXIT, REDUCE, HOLD
	PrimaryReason string               `json:"primary_reason"`
	Factors       []FactorContribution `json:"factors"`
}

// Model owns the exit-vocabulary weight model and the urgency scorer.
type Model struct {
	config  *Config
	weights *weights.Model
}

// NewModel creates an exit model with neutral multipliers.
func NewModel(config *Config) *Model {
	if config == nil {
		config = DefaultConfig()
	}
	return &Model{
		config:  config,
		weights: weights.NewModel(signal.ExitComponents(), signal.ExitBaseWeights()),
	}
}

// Weights exposes the exit weight model for the learner and exporters.
func (m *Model) Weights() *weights.Model {
	return m.weights
}

// ComputeUrgency accumulates each contributing factor in evaluation order,
// scaled by that factor's adaptive weight, plus the unweighted hard floor.
// The primary reason is the first factor that fired.
func (m *Model) ComputeUrgency(position Position, signals Signals) *Result {
	result := &Result{
		Symbol:    position.Symbol,
		Timestamp: time.Now(),
		Action:    "HOLD",
		Factors:   []FactorContribution{},
	}

	urgency := 0.0

	// 1. Entry thesis decay.
	if position.EntryScore > 0 {
		ratio := position.CurrentScore / position.EntryScore
		if ratio < m.config.EntryDecayRatio {
			urgency += m.addFactor(result, signal.ExitEntryDecay, 1.0-ratio)
		}
	}

	// 2. Adverse flow reversal.
	if signals.FlowReversal {
		urgency += m.addFactor(result, signal.ExitAdverseFlow, m.config.AdverseFlowBoost)
	}

	// 3. Drawdown velocity from the high-water mark.
	drawdown := position.HighWaterPnLPct - position.CurrentPnLPct
	if drawdown > m.config.DrawdownTriggerPts {
		velocity := drawdown / math.Max(1.0, position.AgeHours/24.0)
		raw := math.Min(m.config.DrawdownCap, velocity*m.config.DrawdownVelScale)
		urgency += m.addFactor(result, signal.ExitDrawdownVelocity, raw)
	}

	// 4. Time decay on stale positions.
	if position.AgeHours > m.config.TimeDecayStartHours {
		raw := math.Min(m.config.TimeDecayCap,
			(position.AgeHours-m.config.TimeDecayStartHours)/m.config.TimeDecayScaleHours)
		urgency += m.addFactor(result, signal.ExitTimeDecay, raw)
	}

	// 5. Momentum opposing the entry direction.
	if opposes(signals.Momentum, position.Direction) &&
		math.Abs(signals.Momentum) > m.config.MomentumReversalMin {
		urgency += m.addFactor(result, signal.ExitMomentumReversal, math.Abs(signals.Momentum))
	}

	// 6. Hard floor: deep red positions always carry urgency, unweighted.
	if position.CurrentPnLPct < m.config.HardFloorPnLPct {
		contrib := FactorContribution{
			Factor:       "pnl_floor",
			Raw:          m.config.HardFloorBoost,
			Weight:       1.0,
			Contribution: m.config.HardFloorBoost,
		}
		result.Factors = append(result.Factors, contrib)
		urgency += m.config.HardFloorBoost
	}

	result.Urgency = math.Min(m.config.MaxUrgency, math.Max(0.0, urgency))

	switch {
	case result.Urgency >= m.config.ExitThreshold:
		result.Action = "EXIT"
	case result.Urgency >= m.config.ReduceThreshold:
		result.Action = "REDUCE"
	}
	if len(result.Factors) > 0 {
		result.PrimaryReason = result.Factors[0].Factor
	}

	return result
}

func (m *Model) addFactor(result *Result, factor string, raw float64) float64 {
	weight := m.weights.EffectiveWeight(factor)
	contrib := FactorContribution{
		Factor:       factor,
		Raw:          raw,
		Weight:       weight,
		Contribution: raw * weight,
	}
	result.Factors = append(result.Factors, contrib)
	return contrib.Contribution
}

func opposes(momentum float64, direction int) bool {
	if direction >= 0 {
		return momentum < 0
	}
	return momentum > 0
}
