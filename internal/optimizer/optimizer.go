// Package optimizer is the facade over the adaptive weighting core: one
// entry weight model, one conviction engine bound to it, one exit model, one
// learning orchestrator bound to both, and the causal analysis engine.
package optimizer

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/causal"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/conviction"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/exits"
	atomicio "github.com/mlevitan96-crypto/stock-bot-sub003/internal/io"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/learner"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/metrics"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/signal"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/trade"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/weights"
)

// Options locates the persisted state files and audit logs.
type Options struct {
	StatePath       string `yaml:"state_path"`
	CausalStatePath string `yaml:"causal_state_path"`
	UpdateLogPath   string `yaml:"update_log_path"`
	InsightsLogPath string `yaml:"insights_log_path"`

	Conviction *conviction.Config `yaml:"conviction,omitempty"`
	Exits      *exits.Config      `yaml:"exits,omitempty"`
	Learner    *learner.Config    `yaml:"learner,omitempty"`
	Causal     *causal.Config     `yaml:"causal,omitempty"`
}

// DefaultOptions returns the default state layout under dataDir.
func DefaultOptions(dataDir string) Options {
	return Options{
		StatePath:       dataDir + "/optimizer_state.json",
		CausalStatePath: dataDir + "/causal_state.json",
		UpdateLogPath:   dataDir + "/learning_updates.jsonl",
		InsightsLogPath: dataDir + "/causal_insights.jsonl",
	}
}

// Optimizer owns the adaptive weighting core. Callers must serialize access;
// the scoring path itself performs no I/O.
type Optimizer struct {
	opts       Options
	entryModel *weights.Model
	conviction *conviction.Engine
	exitModel  *exits.Model
	learner    *learner.Orchestrator
	causal     *causal.Engine
}

// New constructs the core and loads persisted state. A missing or corrupt
// state file is non-fatal: the optimizer starts from fresh defaults.
func New(opts Options) *Optimizer {
	entryModel := weights.NewModel(signal.EntryComponents(), signal.BaseWeights())
	exitModel := exits.NewModel(opts.Exits)

	o := &Optimizer{
		opts:       opts,
		entryModel: entryModel,
		conviction: conviction.NewEngine(entryModel, opts.Conviction),
		exitModel:  exitModel,
		learner:    learner.NewOrchestrator(entryModel, exitModel.Weights(), opts.Learner),
		causal:     causal.NewEngine(opts.Causal),
	}
	o.load()
	metrics.ObserveMultipliers(entryModel.Multipliers())
	return o
}

// ComputeEntryConviction aggregates live readings into net conviction.
func (o *Optimizer) ComputeEntryConviction(readings []signal.Reading, regime string) *conviction.Result {
	metrics.ConvictionEvaluations.Inc()
	return o.conviction.Compute(readings, regime)
}

// ShouldEnter converts a conviction result into an entry decision.
func (o *Optimizer) ShouldEnter(result *conviction.Result, threshold float64) conviction.Decision {
	decision := o.conviction.ShouldEnter(result, threshold)
	outcome := "rejected"
	if decision.Approved {
		outcome = "approved"
	}
	metrics.EntryDecisions.WithLabelValues(outcome).Inc()
	return decision
}

// ComputeExitUrgency scores an open position for exit urgency.
func (o *Optimizer) ComputeExitUrgency(position exits.Position, signals exits.Signals) *exits.Result {
	result := o.exitModel.ComputeUrgency(position, signals)
	metrics.ExitEvaluations.WithLabelValues(result.Action).Inc()
	return result
}

// RecordTrade folds one realized trade into both the learning loop and the
// causal pattern stores. Placeholder trades feed neither.
func (o *Optimizer) RecordTrade(record *trade.Record) {
	if record.IsPlaceholder() {
		log.Debug().Str("trade_id", record.TradeID).Msg("placeholder trade not recorded")
		return
	}
	record.ApplyDefaults()
	features := trade.NormalizeComponents(record.Context.Components)

	o.learner.RecordTradeOutcome(learner.Outcome{
		TradeID:   record.TradeID,
		Symbol:    record.Symbol,
		Timestamp: record.Timestamp,
		PnL:       record.PnL,
		Regime:    record.Context.MarketRegime,
		Sector:    record.Context.Sector,
		Features:  features,
	})
	o.causal.AnalyzeTrade(record)
	metrics.TradesRecorded.Inc()
}

// UpdateWeights runs the guarded weight update, appends the report to the
// learning-update log, and persists state. Log/persistence failures are
// surfaced: silent loss of learned weights is a correctness risk.
func (o *Optimizer) UpdateWeights() (*learner.UpdateReport, error) {
	report := o.learner.UpdateWeights()

	switch {
	case report.Skipped:
		metrics.WeightUpdateRuns.WithLabelValues("skipped").Inc()
	case report.TotalAdjusted > 0:
		metrics.WeightUpdateRuns.WithLabelValues("adjusted").Inc()
	default:
		metrics.WeightUpdateRuns.WithLabelValues("unchanged").Inc()
	}
	for _, adj := range report.Adjustments {
		metrics.Adjustments.WithLabelValues(adj.Reason).Inc()
	}
	metrics.ObserveMultipliers(o.entryModel.Multipliers())

	if err := atomicio.AppendJSONLine(o.opts.UpdateLogPath, report); err != nil {
		return report, fmt.Errorf("append learning-update log: %w", err)
	}
	if err := o.Save(); err != nil {
		return report, err
	}
	return report, nil
}

// GenerateInsights runs the causal analysis over the full vocabulary and
// appends the bundle to the insights log.
func (o *Optimizer) GenerateInsights() (*causal.InsightBundle, error) {
	bundle := o.causal.GenerateInsights()
	if err := atomicio.AppendJSONLine(o.opts.InsightsLogPath, bundle); err != nil {
		return bundle, fmt.Errorf("append insights log: %w", err)
	}
	return bundle, nil
}

// AnswerWhy renders the causal evidence for a component.
func (o *Optimizer) AnswerWhy(component, question string) causal.WhyAnswer {
	return o.causal.AnswerWhy(component, question)
}

// InvestigateComponent exposes the full pattern breakdown for one component.
func (o *Optimizer) InvestigateComponent(component string) causal.Investigation {
	return o.causal.InvestigateComponent(component)
}

// EffectiveWeights exports base x multiplier per entry component, consumed
// by the upstream composite scorer.
func (o *Optimizer) EffectiveWeights() map[string]float64 {
	return o.entryModel.EffectiveWeights()
}

// Multipliers exports multipliers only, for consumers that must not
// re-apply base weights.
func (o *Optimizer) Multipliers() map[string]float64 {
	return o.entryModel.Multipliers()
}

// ExitWeights exports the exit namespace's effective weights.
func (o *Optimizer) ExitWeights() map[string]float64 {
	return o.exitModel.Weights().EffectiveWeights()
}

// Learner exposes the orchestrator for diagnostics.
func (o *Optimizer) Learner() *learner.Orchestrator {
	return o.learner
}
