package causal

import (
	"strings"

	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/signal"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/trade"
)

// TradeContext is the deterministic market-condition snapshot derived from a
// trade record at analysis time.
type TradeContext struct {
	MarketRegime     string  `json:"market_regime"`
	VolatilityRegime string  `json:"volatility_regime"`
	TimeOfDay        string  `json:"time_of_day"` // OPEN, MID_DAY, CLOSE, AFTER_HOURS
	DayOfWeek        string  `json:"day_of_week"`
	Sector           string  `json:"sector"`
	MarketTrend      string  `json:"market_trend"` // BULLISH, BEARISH, NEUTRAL
	IVBucket         string  `json:"iv_bucket"`    // LOW, MEDIUM, HIGH
	FlowMagnitude    string  `json:"flow_magnitude"`
	SignalStrength   string  `json:"signal_strength"` // WEAK, MODERATE, STRONG
	EntryScore       float64 `json:"entry_score"`
	Hour             int     `json:"hour"`
}

// ExtractTradeContext derives the context buckets from a trade record and
// its normalized component values. Deterministic: the same record always
// produces the same context.
func ExtractTradeContext(record *trade.Record, features map[string]float64) TradeContext {
	record.ApplyDefaults()

	hour := record.Timestamp.Hour()
	ctx := TradeContext{
		MarketRegime:     record.Context.MarketRegime,
		VolatilityRegime: record.Context.VolatilityRegime,
		TimeOfDay:        timeOfDayBucket(hour),
		DayOfWeek:        record.Timestamp.Weekday().String(),
		Sector:           record.Context.Sector,
		MarketTrend:      trendBucket(record.Context.FlowSentiment),
		IVBucket:         ivBucket(*record.Context.IVRank),
		FlowMagnitude:    flowMagnitudeBucket(features[signal.OptionsFlow]),
		SignalStrength:   signalStrengthBucket(record.Context.EntryScore),
		EntryScore:       record.Context.EntryScore,
		Hour:             hour,
	}
	return ctx
}

func timeOfDayBucket(hour int) string {
	switch {
	case hour < 9 || hour >= 16:
		return "AFTER_HOURS"
	case hour == 9:
		return "OPEN"
	case hour >= 15:
		return "CLOSE"
	default:
		return "MID_DAY"
	}
}

func signalStrengthBucket(entryScore float64) string {
	switch {
	case entryScore < 2.5:
		return "WEAK"
	case entryScore < 3.5:
		return "MODERATE"
	default:
		return "STRONG"
	}
}

func flowMagnitudeBucket(flowConviction float64) string {
	switch {
	case flowConviction < 0.3:
		return "LOW"
	case flowConviction < 0.7:
		return "MEDIUM"
	default:
		return "HIGH"
	}
}

func ivBucket(ivRank float64) string {
	switch {
	case ivRank < 30:
		return "LOW"
	case ivRank > 70:
		return "HIGH"
	default:
		return "MEDIUM"
	}
}

func trendBucket(flowSentiment string) string {
	s := strings.ToLower(flowSentiment)
	switch {
	case strings.Contains(s, "bull"):
		return "BULLISH"
	case strings.Contains(s, "bear"):
		return "BEARISH"
	default:
		return "NEUTRAL"
	}
}

// Signature builds the context signature for one component. Every signature
// carries regime and time-of-day; the component's family adds its own
// discriminating conditions.
func (c TradeContext) Signature(component string) string {
	parts := []string{
		"regime=" + c.MarketRegime,
		"tod=" + c.TimeOfDay,
	}
	switch signal.FamilyOf(component) {
	case signal.FamilyFlow:
		parts = append(parts, "trend="+c.MarketTrend, "flow="+c.FlowMagnitude)
	case signal.FamilyVolatility:
		parts = append(parts, "iv="+c.IVBucket, "vol="+c.VolatilityRegime)
	case signal.FamilyOwnership:
		parts = append(parts, "sector="+c.Sector)
	}
	return strings.Join(parts, "|")
}

// Conditions renders a signature back into a condition map for reporting.
func Conditions(signature string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(signature, "|") {
		if k, v, ok := strings.Cut(part, "="); ok {
			out[k] = v
		}
	}
	return out
}
