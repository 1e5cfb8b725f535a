// Package conviction aggregates weighted signal readings into a net
// directional conviction and an entry recommendation.
package conviction

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/signal"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/weights"
)

// Config contains conviction thresholds and the regime damping table.
type Config struct {
	EntryThreshold     float64            `yaml:"entry_threshold"`      // |net| required for entry
	MinConfidence      float64            `yaml:"min_confidence"`       // confidence floor for entry
	MinAgreement       float64            `yaml:"min_agreement"`        // agreement floor for entry
	ConflictShrink     float64            `yaml:"conflict_shrink"`      // shrink slope below the agreement floor
	RegimeDamping      map[string]float64 `yaml:"regime_damping"`       // regime -> net multiplier
	ConfidencePerCount float64            `yaml:"confidence_per_count"` // reading-count boost divisor
}

// DefaultConfig returns production conviction configuration.
func DefaultConfig() *Config {
	return &Config{
		EntryThreshold: 2.5,
		MinConfidence:  0.4,
		MinAgreement:   0.3,
		ConflictShrink: 0.5,
		RegimeDamping: map[string]float64{
			"neutral":         1.0,
			"trending":        1.0,
			"trending_bull":   1.0,
			"choppy":          0.75,
			"high_volatility": 0.6,
			"squeeze":         0.9,
		},
		ConfidencePerCount: 20.0,
	}
}

// Engine computes directional conviction from live readings using the entry
// weight model's effective weights.
type Engine struct {
	config *Config
	model  *weights.Model
}

// NewEngine creates a conviction engine bound to an entry weight model.
func NewEngine(model *weights.Model, config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	return &Engine{config: config, model: model}
}

// Contribution records one reading's weighted share of the evidence.
type Contribution struct {
	Component     string  `json:"component"`
	RawMagnitude  float64 `json:"raw_magnitude"`
	Weight        float64 `json:"weight"`
	Confidence    float64 `json:"confidence"`
	WeightedValue float64 `json:"weighted_value"`
	Polarity      int     `json:"polarity"`
}

// Result is the full conviction breakdown for one evaluation.
type Result struct {
	Timestamp          time.Time      `json:"timestamp"`
	Regime             string         `json:"regime"`
	Damping            float64        `json:"damping"`
	BullishEvidence    float64        `json:"bullish_evidence"`
	BearishEvidence    float64        `json:"bearish_evidence"`
	NetConviction      float64        `json:"net_conviction"`
	Agreement          float64        `json:"agreement"`
	Confidence         float64        `json:"confidence"`
	Direction          string         `json:"direction"` // LONG, SHORT, NEUTRAL
	ReadingCount       int            `json:"reading_count"`
	DominantSignals    []Contribution `json:"dominant_signals"`
	ConflictingSignals []Contribution `json:"conflicting_signals"`
}

// Compute aggregates readings into net conviction. Empty input degrades to a
// zero NEUTRAL result, never an error.
func (e *Engine) Compute(readings []signal.Reading, regime string) *Result {
	result := &Result{
		Timestamp:          time.Now(),
		Regime:             regime,
		Damping:            e.damping(regime),
		Direction:          "NEUTRAL",
		ReadingCount:       len(readings),
		DominantSignals:    []Contribution{},
		ConflictingSignals: []Contribution{},
	}
	if len(readings) == 0 {
		result.Damping = e.damping(regime)
		return result
	}

	var bullish, bearish []Contribution
	for _, r := range readings {
		weight := e.model.EffectiveWeight(r.Component)
		contrib := Contribution{
			Component:     r.Component,
			RawMagnitude:  r.Magnitude,
			Weight:        weight,
			Confidence:    r.Confidence,
			WeightedValue: math.Abs(r.Magnitude) * weight * r.Confidence,
			Polarity:      r.Polarity,
		}
		switch {
		case r.Polarity > 0:
			result.BullishEvidence += contrib.WeightedValue
			bullish = append(bullish, contrib)
		case r.Polarity < 0:
			result.BearishEvidence += contrib.WeightedValue
			bearish = append(bearish, contrib)
		}
		// Zero polarity counts toward the reading total but adds to
		// neither side.
	}

	net := (result.BullishEvidence - result.BearishEvidence) * result.Damping

	total := result.BullishEvidence + result.BearishEvidence
	if total > 0 {
		result.Agreement = math.Abs(result.BullishEvidence-result.BearishEvidence) / total
	}

	// Conflicting evidence partially cancels even after netting.
	if result.Agreement < e.config.MinAgreement {
		net *= 1.0 - (e.config.MinAgreement-result.Agreement)*e.config.ConflictShrink
	}
	result.NetConviction = net

	result.Confidence = math.Min(1.0,
		result.Agreement*(1.0+float64(len(readings))/e.config.ConfidencePerCount))

	if net > 0 {
		result.Direction = "LONG"
	} else if net < 0 {
		result.Direction = "SHORT"
	}

	winning, losing := bullish, bearish
	if result.BearishEvidence > result.BullishEvidence {
		winning, losing = bearish, bullish
	}
	result.DominantSignals = topContributions(winning, 3)
	result.ConflictingSignals = topContributions(losing, 2)

	return result
}

// Decision is the entry recommendation derived from a conviction result.
type Decision struct {
	Approved  bool    `json:"approved"`
	Direction string  `json:"direction"`
	Reason    string  `json:"reason"`
	Net       float64 `json:"net"`
	Threshold float64 `json:"threshold"`
}

// ShouldEnter converts a conviction result into an entry decision. The
// threshold boundary is inclusive: |net| == threshold passes.
func (e *Engine) ShouldEnter(result *Result, threshold float64) Decision {
	if threshold <= 0 {
		threshold = e.config.EntryThreshold
	}
	decision := Decision{
		Direction: result.Direction,
		Net:       result.NetConviction,
		Threshold: threshold,
	}

	if math.Abs(result.NetConviction) < threshold {
		decision.Reason = fmt.Sprintf("net conviction %.2f below threshold %.2f",
			math.Abs(result.NetConviction), threshold)
		return decision
	}
	if result.Confidence < e.config.MinConfidence {
		decision.Reason = fmt.Sprintf("confidence %.2f below %.2f floor",
			result.Confidence, e.config.MinConfidence)
		return decision
	}
	if result.Agreement < e.config.MinAgreement {
		decision.Reason = fmt.Sprintf("agreement %.2f below %.2f floor",
			result.Agreement, e.config.MinAgreement)
		return decision
	}

	decision.Approved = true
	decision.Reason = fmt.Sprintf("%s entry: net %.2f ≥ %.2f", result.Direction,
		math.Abs(result.NetConviction), threshold)
	return decision
}

func (e *Engine) damping(regime string) float64 {
	if d, ok := e.config.RegimeDamping[regime]; ok {
		return d
	}
	return 1.0
}

func topContributions(contribs []Contribution, n int) []Contribution {
	sorted := append([]Contribution(nil), contribs...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].WeightedValue > sorted[j].WeightedValue
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	if sorted == nil {
		sorted = []Contribution{}
	}
	return sorted
}
