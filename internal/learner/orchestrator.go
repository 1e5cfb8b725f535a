// Package learner closes the feedback loop: realized trade outcomes feed
// per-component performance statistics, and a guarded statistical procedure
// periodically adjusts the adaptive weight multipliers.
package learner

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/ringbuf"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/weights"
)

// Config contains the anti-overfitting guards for weight updates.
type Config struct {
	EWMAAlpha          float64       `yaml:"ewma_alpha"`           // smoothing factor, 0.15 throughout
	Cooldown           time.Duration `yaml:"cooldown"`             // min gap between successful updates
	MinSamples         int           `yaml:"min_samples"`          // decided samples before any adjustment
	Step               float64       `yaml:"step"`                 // multiplier adjustment increment
	StrongWilsonLow    float64       `yaml:"strong_wilson_low"`    // rule 1 lower-bound bar
	StrongWinRate      float64       `yaml:"strong_win_rate"`      // rule 1 EWMA win-rate bar
	WeakWilsonHigh     float64       `yaml:"weak_wilson_high"`     // rule 2 upper-bound bar
	WeakWinRate        float64       `yaml:"weak_win_rate"`        // rule 2 EWMA win-rate bar
	NegativePnL        float64       `yaml:"negative_pnl"`         // rule 3 EWMA pnl bar
	NegativePnLWinRate float64       `yaml:"negative_pnl_win_rate"`
	VeryLowWinRate     float64       `yaml:"very_low_win_rate"` // rule 4 bar
	RevertBandLow      float64       `yaml:"revert_band_low"`   // rule 5 dead-zone bounds
	RevertBandHigh     float64       `yaml:"revert_band_high"`
	RevertMinSamples   int           `yaml:"revert_min_samples"`
	RevertFraction     float64       `yaml:"revert_fraction"` // distance-to-neutral recovered
	HistoryCap         int           `yaml:"history_cap"`
}

// DefaultConfig returns the production learning guards.
func DefaultConfig() *Config {
	return &Config{
		EWMAAlpha:          0.15,
		Cooldown:           24 * time.Hour,
		MinSamples:         30,
		Step:               0.05,
		StrongWilsonLow:    0.55,
		StrongWinRate:      0.55,
		WeakWilsonHigh:     0.45,
		WeakWinRate:        0.45,
		NegativePnL:        -0.01,
		NegativePnLWinRate: 0.50,
		VeryLowWinRate:     0.40,
		RevertBandLow:      0.48,
		RevertBandHigh:     0.52,
		RevertMinSamples:   60,
		RevertFraction:     0.10,
		HistoryCap:         1000,
	}
}

// Outcome is a realized trade outcome, normalized at the ingestion boundary.
type Outcome struct {
	TradeID   string             `json:"trade_id"`
	Symbol    string             `json:"symbol"`
	Timestamp time.Time          `json:"ts"`
	PnL       float64            `json:"pnl"` // percentage return
	Regime    string             `json:"regime"`
	Sector    string             `json:"sector"`
	Features  map[string]float64 `json:"features"`
}

// Adjustment describes one multiplier change made by UpdateWeights.
type Adjustment struct {
	Component string  `json:"component"`
	OldMult   float64 `json:"old_mult"`
	NewMult   float64 `json:"new_mult"`
	Reason    string  `json:"reason"`
	Samples   int     `json:"samples"`
	WinRate   float64 `json:"win_rate"`
}

// UpdateReport is the outcome of one UpdateWeights call. A skipped run is a
// normal outcome, not a failure.
type UpdateReport struct {
	ID                 string             `json:"id"`
	Timestamp          time.Time          `json:"ts"`
	Adjustments        []Adjustment       `json:"adjustments"`
	TotalAdjusted      int                `json:"total_adjusted"`
	CurrentMultipliers map[string]float64 `json:"current_multipliers,omitempty"`
	LastUpdateTS       time.Time          `json:"last_update_ts"`
	Skipped            bool               `json:"skipped,omitempty"`
	Reason             string             `json:"reason,omitempty"`
}

// Orchestrator maintains per-component performance statistics and mutates
// the entry and exit weight bands under statistical guards.
type Orchestrator struct {
	config      *Config
	entry       *weights.Model
	exit        *weights.Model
	performance map[string]*PerformanceRecord
	history     *ringbuf.Buffer[HistoryEntry]
	lastUpdate  time.Time
	now         func() time.Time
}

// NewOrchestrator creates a learner bound to the entry and exit models, with
// one performance record per known component in either vocabulary.
func NewOrchestrator(entry, exit *weights.Model, config *Config) *Orchestrator {
	if config == nil {
		config = DefaultConfig()
	}
	o := &Orchestrator{
		config:      config,
		entry:       entry,
		exit:        exit,
		performance: make(map[string]*PerformanceRecord),
		history:     ringbuf.New[HistoryEntry](config.HistoryCap),
		now:         time.Now,
	}
	for _, component := range entry.Components() {
		o.performance[component] = NewPerformanceRecord(component)
	}
	for _, component := range exit.Components() {
		o.performance[component] = NewPerformanceRecord(component)
	}
	return o
}

// SetClock overrides the wall clock, for tests.
func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// Performance returns the record for a component, nil when unknown.
func (o *Orchestrator) Performance(component string) *PerformanceRecord {
	return o.performance[component]
}

// History returns the learning history oldest-first.
func (o *Orchestrator) History() []HistoryEntry {
	return o.history.Items()
}

// LastUpdate returns the time of the last update that changed a multiplier.
func (o *Orchestrator) LastUpdate() time.Time {
	return o.lastUpdate
}

// RecordTradeOutcome folds one realized outcome into the per-component
// statistics and the learning history. Components without a performance
// record are ignored; present-but-zero components accumulate pnl and samples
// but not win/loss tallies.
func (o *Orchestrator) RecordTradeOutcome(outcome Outcome) {
	win := outcome.PnL > 0

	for component, value := range outcome.Features {
		rec, ok := o.performance[component]
		if !ok {
			continue
		}
		rec.observe(value, outcome.PnL, win, outcome.Regime, outcome.Sector, o.config.EWMAAlpha)
		o.syncBand(component, rec, value != 0, win, outcome.PnL)
	}

	o.history.Push(HistoryEntry{
		Timestamp: outcome.Timestamp,
		PnL:       outcome.PnL,
		Win:       win,
		Regime:    outcome.Regime,
		Sector:    outcome.Sector,
		Features:  outcome.Features,
	})

	log.Debug().
		Str("trade_id", outcome.TradeID).
		Str("symbol", outcome.Symbol).
		Float64("pnl", outcome.PnL).
		Bool("win", win).
		Int("components", len(outcome.Features)).
		Msg("trade outcome recorded")
}

// syncBand mirrors performance bookkeeping into the owning weight band.
func (o *Orchestrator) syncBand(component string, rec *PerformanceRecord, active, win bool, pnl float64) {
	band := o.bandFor(component)
	if band == nil {
		return
	}
	band.SampleCount++
	band.TotalPnL += pnl
	if active {
		if win {
			band.Wins++
		} else {
			band.Losses++
		}
	}
	band.EWMAPerformance = rec.EWMAPnL
}

func (o *Orchestrator) bandFor(component string) *weights.Band {
	if band := o.entry.Band(component); band != nil {
		return band
	}
	return o.exit.Band(component)
}

func (o *Orchestrator) modelFor(component string) *weights.Model {
	if o.entry.Band(component) != nil {
		return o.entry
	}
	if o.exit.Band(component) != nil {
		return o.exit
	}
	return nil
}

// UpdateWeights applies the guarded adjustment rules to every component with
// enough decided samples. A call inside the cooldown window returns a skip
// report with zero adjustments. The last-update timestamp advances only when
// at least one multiplier changed.
func (o *Orchestrator) UpdateWeights() *UpdateReport {
	now := o.now()
	report := &UpdateReport{
		ID:           uuid.NewString(),
		Timestamp:    now,
		Adjustments:  []Adjustment{},
		LastUpdateTS: o.lastUpdate,
	}

	if !o.lastUpdate.IsZero() && now.Sub(o.lastUpdate) < o.config.Cooldown {
		report.Skipped = true
		report.Reason = fmt.Sprintf("too soon: %.1fh since last update, cooldown %.1fh",
			now.Sub(o.lastUpdate).Hours(), o.config.Cooldown.Hours())
		log.Info().Str("reason", report.Reason).Msg("weight update skipped")
		return report
	}

	components := append(o.entry.Components(), o.exit.Components()...)
	for _, component := range components {
		rec := o.performance[component]
		if rec == nil || rec.Decided() < o.config.MinSamples {
			continue
		}
		if adj, ok := o.adjust(component, rec, now); ok {
			report.Adjustments = append(report.Adjustments, adj)
		}
	}

	report.TotalAdjusted = len(report.Adjustments)
	if report.TotalAdjusted > 0 {
		o.lastUpdate = now
		report.LastUpdateTS = now
	}
	report.CurrentMultipliers = o.entry.Multipliers()

	log.Info().
		Int("total_adjusted", report.TotalAdjusted).
		Time("last_update", o.lastUpdate).
		Msg("weight update completed")
	return report
}

// adjust applies the first matching rule in strict priority order. Returns
// false when no rule matched or the clamped multiplier did not change.
func (o *Orchestrator) adjust(component string, rec *PerformanceRecord, now time.Time) (Adjustment, bool) {
	model := o.modelFor(component)
	if model == nil {
		return Adjustment{}, false
	}

	wilsonLow, wilsonHigh := WilsonInterval(rec.Wins, rec.Decided())
	old := model.Multiplier(component)

	var target float64
	var reason string
	switch {
	case wilsonLow > o.config.StrongWilsonLow &&
		rec.EWMAWinRate > o.config.StrongWinRate && rec.EWMAPnL > 0:
		target, reason = old+o.config.Step, "strong performer"
	case wilsonHigh < o.config.WeakWilsonHigh && rec.EWMAWinRate < o.config.WeakWinRate:
		target, reason = old-o.config.Step, "weak performer"
	case rec.EWMAPnL < o.config.NegativePnL && rec.EWMAWinRate < o.config.NegativePnLWinRate:
		target, reason = old-o.config.Step, "negative pnl"
	case rec.EWMAWinRate < o.config.VeryLowWinRate:
		target, reason = old-o.config.Step, "very low win rate"
	case rec.EWMAWinRate >= o.config.RevertBandLow && rec.EWMAWinRate <= o.config.RevertBandHigh &&
		rec.Decided() > o.config.RevertMinSamples:
		target, reason = old+(weights.NeutralMultiplier-old)*o.config.RevertFraction, "mean reversion to neutral"
	default:
		return Adjustment{}, false
	}

	updated := model.Band(component).Clamp(target)
	if updated == old {
		return Adjustment{}, false
	}
	model.UpdateMultiplier(component, updated, now)

	log.Info().
		Str("component", component).
		Float64("old_mult", old).
		Float64("new_mult", updated).
		Str("reason", reason).
		Int("samples", rec.Decided()).
		Float64("win_rate", rec.RawWinRate()).
		Msg("multiplier adjusted")

	return Adjustment{
		Component: component,
		OldMult:   old,
		NewMult:   updated,
		Reason:    reason,
		Samples:   rec.Decided(),
		WinRate:   rec.RawWinRate(),
	}, true
}

// State is the persisted learner snapshot.
type State struct {
	ComponentPerformance map[string]*PerformanceRecord `json:"component_performance"`
	LearningHistoryCount int                           `json:"learning_history_count"`
	LastHistorySample    *HistoryEntry                 `json:"last_history_sample,omitempty"`
	LastUpdateTS         time.Time                     `json:"last_update_ts,omitempty"`
}

// ExportState snapshots the learner for persistence. History itself is not
// persisted, only its count and most recent sample.
func (o *Orchestrator) ExportState() State {
	s := State{
		ComponentPerformance: o.performance,
		LearningHistoryCount: o.history.Len(),
		LastUpdateTS:         o.lastUpdate,
	}
	if last, ok := o.history.Last(); ok {
		s.LastHistorySample = &last
	}
	return s
}

// ApplyState merges persisted performance records back into the learner.
// Records for unknown components are dropped.
func (o *Orchestrator) ApplyState(s State) {
	for component, rec := range s.ComponentPerformance {
		if _, ok := o.performance[component]; ok && rec != nil {
			if rec.Sectors == nil {
				rec.Sectors = make(map[string]*SubTally)
			}
			if rec.Regimes == nil {
				rec.Regimes = make(map[string]*SubTally)
			}
			rec.Component = component
			o.performance[component] = rec
		}
	}
	if !s.LastUpdateTS.IsZero() {
		o.lastUpdate = s.LastUpdateTS
	}
}
