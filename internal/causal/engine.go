// Package causal builds context-keyed win/loss patterns from realized trades
// and answers "why did component X win/lose, and under what conditions."
// It operates on the same trade records as the learner but is independent of
// the weight math.
package causal

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/signal"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/trade"
)

// Config contains pattern classification thresholds.
type Config struct {
	MinPatternSamples   int     `yaml:"min_pattern_samples"`   // samples before a pattern is ranked
	SuccessWinRate      float64 `yaml:"success_win_rate"`      // >= -> success pattern
	SuccessAvgPnL       float64 `yaml:"success_avg_pnl"`       // > -> success pattern
	FailureWinRate      float64 `yaml:"failure_win_rate"`      // < -> failure pattern
	FailureAvgPnL       float64 `yaml:"failure_avg_pnl"`       // < -> failure pattern
	TopPatterns         int     `yaml:"top_patterns"`          // patterns returned per class
	TopCombos           int     `yaml:"top_combos"`            // combinations returned
	MinComboSamples     int     `yaml:"min_combo_samples"`     // samples before a combo is flagged
	PromisingWinRate    float64 `yaml:"promising_win_rate"`    // combo PROMISING bars
	PromisingAvgPnL     float64 `yaml:"promising_avg_pnl"`
	AvoidWinRate        float64 `yaml:"avoid_win_rate"` // combo AVOID bars
	AvoidAvgPnL         float64 `yaml:"avoid_avg_pnl"`
	ConfidenceDenom     float64 `yaml:"confidence_denom"` // samples per unit confidence
}

// DefaultConfig returns production causal-analysis thresholds.
func DefaultConfig() *Config {
	return &Config{
		MinPatternSamples: 3,
		SuccessWinRate:    0.55,
		SuccessAvgPnL:     0.5,
		FailureWinRate:    0.40,
		FailureAvgPnL:     -1.0,
		TopPatterns:       5,
		TopCombos:         5,
		MinComboSamples:   5,
		PromisingWinRate:  0.65,
		PromisingAvgPnL:   2.0,
		AvoidWinRate:      0.35,
		AvoidAvgPnL:       -2.0,
		ConfidenceDenom:   10.0,
	}
}

// Engine accumulates context patterns and renders explanations.
type Engine struct {
	config          *Config
	contextPatterns map[string]*ContextPattern
	comboPatterns   map[string]*ComboPattern
	tradeContexts   map[string]TradeContext
}

// NewEngine creates an empty causal analysis engine.
func NewEngine(config *Config) *Engine {
	if config == nil {
		config = DefaultConfig()
	}
	return &Engine{
		config:          config,
		contextPatterns: make(map[string]*ContextPattern),
		comboPatterns:   make(map[string]*ComboPattern),
		tradeContexts:   make(map[string]TradeContext),
	}
}

// AnalyzeTrade folds one realized trade into the pattern stores. Synthetic
// and open-position placeholders are skipped. Returns true when the trade
// was analyzed.
func (e *Engine) AnalyzeTrade(record *trade.Record) bool {
	if record.IsPlaceholder() {
		log.Debug().Str("trade_id", record.TradeID).Msg("skipping placeholder trade")
		return false
	}

	features := trade.NormalizeComponents(record.Context.Components)
	if len(features) == 0 {
		return false
	}

	ctx := ExtractTradeContext(record, features)
	e.tradeContexts[record.TradeID] = ctx

	sample := PatternSample{
		TradeID:   record.TradeID,
		Timestamp: record.Timestamp,
		PnL:       record.PnL,
		Win:       record.IsWin(),
	}

	var active []string
	for component, value := range features {
		signature := ctx.Signature(component)
		key := contextPatternKey(component, signature)
		pattern, ok := e.contextPatterns[key]
		if !ok {
			pattern = &ContextPattern{Component: component, Signature: signature}
			e.contextPatterns[key] = pattern
		}
		pattern.observe(sample)

		if value != 0 {
			active = append(active, component)
		}
	}

	// Feature combinations need at least two simultaneously-active components.
	if len(active) >= 2 {
		sort.Strings(active)
		key := comboKey(active)
		combo, ok := e.comboPatterns[key]
		if !ok {
			combo = &ComboPattern{Components: append([]string(nil), active...)}
			e.comboPatterns[key] = combo
		}
		combo.observe(sample, ctx.Signature(active[0]))
	}

	return true
}

// PatternEvidence is one classified pattern rendered for reporting.
type PatternEvidence struct {
	Signature   string            `json:"signature"`
	Conditions  map[string]string `json:"conditions"`
	SampleCount int               `json:"sample_count"`
	WinRate     float64           `json:"win_rate"`
	AvgPnL      float64           `json:"avg_pnl"`
	Score       float64           `json:"score"` // samples x |avg pnl|
}

// ComboEvidence is one feature combination rendered for reporting.
type ComboEvidence struct {
	Components  []string `json:"components"`
	SampleCount int      `json:"sample_count"`
	WinRate     float64  `json:"win_rate"`
	AvgPnL      float64  `json:"avg_pnl"`
	Label       string   `json:"label,omitempty"` // PROMISING or AVOID
}

// Investigation is the full pattern breakdown for one component.
type Investigation struct {
	Component       string            `json:"component"`
	SuccessPatterns []PatternEvidence `json:"success_patterns"`
	FailurePatterns []PatternEvidence `json:"failure_patterns"`
	Combinations    []ComboEvidence   `json:"combinations"`
}

// InvestigateComponent classifies the component's context patterns into
// success and failure classes and ranks each by samples x |avg pnl|.
func (e *Engine) InvestigateComponent(component string) Investigation {
	inv := Investigation{
		Component:       component,
		SuccessPatterns: []PatternEvidence{},
		FailurePatterns: []PatternEvidence{},
		Combinations:    []ComboEvidence{},
	}

	for _, pattern := range e.contextPatterns {
		if pattern.Component != component || pattern.Total() < e.config.MinPatternSamples {
			continue
		}
		evidence := PatternEvidence{
			Signature:   pattern.Signature,
			Conditions:  Conditions(pattern.Signature),
			SampleCount: pattern.Total(),
			WinRate:     pattern.WinRate(),
			AvgPnL:      pattern.AvgPnL(),
			Score:       float64(pattern.Total()) * math.Abs(pattern.AvgPnL()),
		}
		switch {
		case evidence.WinRate >= e.config.SuccessWinRate && evidence.AvgPnL > e.config.SuccessAvgPnL:
			inv.SuccessPatterns = append(inv.SuccessPatterns, evidence)
		case evidence.WinRate < e.config.FailureWinRate || evidence.AvgPnL < e.config.FailureAvgPnL:
			inv.FailurePatterns = append(inv.FailurePatterns, evidence)
		}
	}

	rankEvidence(inv.SuccessPatterns)
	rankEvidence(inv.FailurePatterns)
	inv.SuccessPatterns = truncate(inv.SuccessPatterns, e.config.TopPatterns)
	inv.FailurePatterns = truncate(inv.FailurePatterns, e.config.TopPatterns)

	for _, combo := range e.comboPatterns {
		if !combo.Contains(component) || combo.Total() < e.config.MinPatternSamples {
			continue
		}
		inv.Combinations = append(inv.Combinations, ComboEvidence{
			Components:  combo.Components,
			SampleCount: combo.Total(),
			WinRate:     combo.WinRate(),
			AvgPnL:      combo.AvgPnL(),
		})
	}
	sort.Slice(inv.Combinations, func(i, j int) bool {
		a, b := inv.Combinations[i], inv.Combinations[j]
		return float64(a.SampleCount)*math.Abs(a.AvgPnL) > float64(b.SampleCount)*math.Abs(b.AvgPnL)
	})
	if len(inv.Combinations) > e.config.TopCombos {
		inv.Combinations = inv.Combinations[:e.config.TopCombos]
	}

	return inv
}

// WhyAnswer is the structured answer to a natural-language "why" question.
// An empty pattern store yields an insufficient-data answer, never an error.
type WhyAnswer struct {
	Component string           `json:"component"`
	Question  string           `json:"question"`
	Found     bool             `json:"found"`
	Class     string           `json:"class,omitempty"` // success or failure
	Summary   string           `json:"summary"`
	Evidence  *PatternEvidence `json:"evidence,omitempty"`
}

// AnswerWhy renders the top-ranked pattern matching the question's intent.
// Questions mentioning losses select the failure class, everything else the
// success class, falling back to the other class before giving up.
func (e *Engine) AnswerWhy(component, question string) WhyAnswer {
	answer := WhyAnswer{Component: component, Question: question}

	inv := e.InvestigateComponent(component)
	primary, secondary := inv.SuccessPatterns, inv.FailurePatterns
	primaryClass, secondaryClass := "success", "failure"
	if asksAboutLosses(question) {
		primary, secondary = inv.FailurePatterns, inv.SuccessPatterns
		primaryClass, secondaryClass = "failure", "success"
	}

	var evidence *PatternEvidence
	if len(primary) > 0 {
		evidence = &primary[0]
		answer.Class = primaryClass
	} else if len(secondary) > 0 {
		evidence = &secondary[0]
		answer.Class = secondaryClass
	}

	if evidence == nil {
		answer.Summary = fmt.Sprintf("insufficient data: no pattern for %s has %d+ samples",
			component, e.config.MinPatternSamples)
		return answer
	}

	answer.Found = true
	answer.Evidence = evidence
	verb := "wins"
	if answer.Class == "failure" {
		verb = "loses"
	}
	answer.Summary = fmt.Sprintf("%s %s under %s: %.0f%% win rate, %.2f%% avg pnl over %d trades",
		component, verb, evidence.Signature, evidence.WinRate*100, evidence.AvgPnL, evidence.SampleCount)
	return answer
}

// ComponentInsight is one component's recommendation bundle.
type ComponentInsight struct {
	Component  string            `json:"component"`
	Kind       string            `json:"kind"` // USE_WHEN or AVOID_WHEN
	Conditions map[string]string `json:"conditions"`
	WinRate    float64           `json:"win_rate"`
	AvgPnL     float64           `json:"avg_pnl"`
	Samples    int               `json:"samples"`
	Confidence float64           `json:"confidence"`
}

// InsightBundle is the output of one GenerateInsights run, appended to the
// causal-insights log.
type InsightBundle struct {
	ID                         string             `json:"id"`
	Timestamp                  time.Time          `json:"ts"`
	ComponentInsights          []ComponentInsight `json:"component_insights"`
	FeatureCombinationInsights []ComboEvidence    `json:"feature_combination_insights"`
	Recommendations            []string           `json:"recommendations"`
}

// GenerateInsights runs the investigation over the full component vocabulary
// and flags notable feature combinations.
func (e *Engine) GenerateInsights() *InsightBundle {
	bundle := &InsightBundle{
		ID:                         uuid.NewString(),
		Timestamp:                  time.Now(),
		ComponentInsights:          []ComponentInsight{},
		FeatureCombinationInsights: []ComboEvidence{},
		Recommendations:            []string{},
	}

	for _, component := range signal.EntryComponents() {
		inv := e.InvestigateComponent(component)
		if len(inv.SuccessPatterns) > 0 {
			top := inv.SuccessPatterns[0]
			bundle.ComponentInsights = append(bundle.ComponentInsights,
				e.componentInsight(component, "USE_WHEN", top))
			bundle.Recommendations = append(bundle.Recommendations,
				fmt.Sprintf("USE %s when %s (%.0f%% wr, %d trades)",
					component, top.Signature, top.WinRate*100, top.SampleCount))
		}
		if len(inv.FailurePatterns) > 0 {
			top := inv.FailurePatterns[0]
			bundle.ComponentInsights = append(bundle.ComponentInsights,
				e.componentInsight(component, "AVOID_WHEN", top))
			bundle.Recommendations = append(bundle.Recommendations,
				fmt.Sprintf("AVOID %s when %s (%.0f%% wr, %d trades)",
					component, top.Signature, top.WinRate*100, top.SampleCount))
		}
	}

	for _, combo := range e.comboPatterns {
		if combo.Total() < e.config.MinComboSamples {
			continue
		}
		evidence := ComboEvidence{
			Components:  combo.Components,
			SampleCount: combo.Total(),
			WinRate:     combo.WinRate(),
			AvgPnL:      combo.AvgPnL(),
		}
		switch {
		case evidence.WinRate >= e.config.PromisingWinRate || evidence.AvgPnL > e.config.PromisingAvgPnL:
			evidence.Label = "PROMISING"
		case evidence.WinRate < e.config.AvoidWinRate || evidence.AvgPnL < e.config.AvoidAvgPnL:
			evidence.Label = "AVOID"
		default:
			continue
		}
		bundle.FeatureCombinationInsights = append(bundle.FeatureCombinationInsights, evidence)
	}
	sort.Slice(bundle.FeatureCombinationInsights, func(i, j int) bool {
		return bundle.FeatureCombinationInsights[i].SampleCount >
			bundle.FeatureCombinationInsights[j].SampleCount
	})

	log.Info().
		Int("component_insights", len(bundle.ComponentInsights)).
		Int("combo_insights", len(bundle.FeatureCombinationInsights)).
		Msg("causal insights generated")
	return bundle
}

func (e *Engine) componentInsight(component, kind string, evidence PatternEvidence) ComponentInsight {
	return ComponentInsight{
		Component:  component,
		Kind:       kind,
		Conditions: evidence.Conditions,
		WinRate:    evidence.WinRate,
		AvgPnL:     evidence.AvgPnL,
		Samples:    evidence.SampleCount,
		Confidence: math.Min(float64(evidence.SampleCount)/e.config.ConfidenceDenom, 1.0),
	}
}

// State is the persisted analysis snapshot.
type State struct {
	ContextPatterns map[string]*ContextPattern `json:"context_patterns"`
	ComboPatterns   map[string]*ComboPattern   `json:"combo_patterns"`
	TradeContexts   map[string]TradeContext    `json:"trade_contexts"`
}

// ExportState snapshots the pattern stores for persistence.
func (e *Engine) ExportState() State {
	return State{
		ContextPatterns: e.contextPatterns,
		ComboPatterns:   e.comboPatterns,
		TradeContexts:   e.tradeContexts,
	}
}

// ApplyState restores persisted pattern stores. Nil maps are tolerated.
func (e *Engine) ApplyState(s State) {
	if s.ContextPatterns != nil {
		e.contextPatterns = s.ContextPatterns
	}
	if s.ComboPatterns != nil {
		e.comboPatterns = s.ComboPatterns
	}
	if s.TradeContexts != nil {
		e.tradeContexts = s.TradeContexts
	}
}

func rankEvidence(list []PatternEvidence) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].Score > list[j].Score
	})
}

func truncate(list []PatternEvidence, n int) []PatternEvidence {
	if len(list) > n {
		return list[:n]
	}
	return list
}

func asksAboutLosses(question string) bool {
	q := strings.ToLower(question)
	for _, marker := range []string{"lose", "loss", "losing", "fail", "bad"} {
		if strings.Contains(q, marker) {
			return true
		}
	}
	return false
}
