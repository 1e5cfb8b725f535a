// Package trade defines the upstream trade-record contract and the single
// normalization adapter that turns loosely-typed component payloads into the
// canonical numeric form. All key-probing logic lives here.
package trade

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/signal"
)

// Context carries the market conditions attached to a trade record by the
// upstream log pipeline. Optional fields default via ApplyDefaults.
type Context struct {
	Components       map[string]any `json:"components"`
	MarketRegime     string         `json:"market_regime"`
	Sector           string         `json:"sector,omitempty"`
	IVRank           *float64       `json:"iv_rank,omitempty"`
	VolatilityRegime string         `json:"volatility_regime,omitempty"`
	EntryScore       float64        `json:"entry_score,omitempty"`
	FlowSentiment    string         `json:"flow_sentiment,omitempty"`
}

// Record is a realized trade outcome as produced by the upstream log
// ingestion collaborator. PnL is a percentage return.
type Record struct {
	TradeID   string    `json:"trade_id"`
	Symbol    string    `json:"symbol"`
	PnL       float64   `json:"pnl"`
	Timestamp time.Time `json:"ts"`
	Status    string    `json:"status,omitempty"` // "closed" (default) or "open"
	Context   Context   `json:"context"`
}

// Default values for missing optional context fields.
const (
	DefaultRegime     = "unknown"
	DefaultSector     = "UNKNOWN"
	DefaultIVRank     = 50.0
	DefaultVolRegime  = "NORMAL_VOL"
)

// ApplyDefaults fills missing optional context fields in place.
func (r *Record) ApplyDefaults() {
	if r.Context.MarketRegime == "" {
		r.Context.MarketRegime = DefaultRegime
	}
	if r.Context.Sector == "" {
		r.Context.Sector = DefaultSector
	}
	if r.Context.IVRank == nil {
		iv := DefaultIVRank
		r.Context.IVRank = &iv
	}
	if r.Context.VolatilityRegime == "" {
		r.Context.VolatilityRegime = DefaultVolRegime
	}
}

// IsPlaceholder reports whether the record is a synthetic or still-open
// placeholder that must not feed learning or causal analysis.
func (r *Record) IsPlaceholder() bool {
	if strings.EqualFold(r.Status, "open") {
		return true
	}
	id := strings.ToLower(r.TradeID)
	return strings.HasPrefix(id, "synthetic") || strings.HasPrefix(id, "open_")
}

// IsWin reports whether the realized pnl is positive.
func (r *Record) IsWin() bool {
	return r.PnL > 0
}

// NormalizeComponents maps raw component payloads onto the canonical
// vocabulary with one numeric value each. Values may arrive as a bare number
// or a nested record; nested records prefer a "conviction" field, then
// "value", then the first numeric field in key order. Unmapped component
// names are dropped silently; normalization is total and never fails.
func NormalizeComponents(raw map[string]any) map[string]float64 {
	out := make(map[string]float64, len(raw))
	for name, value := range raw {
		canonical, ok := signal.Canonical(strings.ToLower(strings.TrimSpace(name)))
		if !ok {
			continue
		}
		if v, ok := extractNumeric(value); ok {
			out[canonical] = v
		}
	}
	return out
}

func extractNumeric(value any) (float64, bool) {
	if v, ok := asFloat(value); ok {
		return v, true
	}
	nested, ok := value.(map[string]any)
	if !ok {
		return 0, false
	}
	for _, key := range []string{"conviction", "value"} {
		if v, ok := asFloat(nested[key]); ok {
			return v, true
		}
	}
	keys := make([]string, 0, len(nested))
	for k := range nested {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if v, ok := asFloat(nested[k]); ok {
			return v, true
		}
	}
	return 0, false
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
