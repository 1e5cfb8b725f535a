package signal

// Canonical entry-signal component names. Every weight band, performance
// record, and causal pattern is keyed by one of these.
const (
	OptionsFlow      = "options_flow"
	DarkPool         = "dark_pool"
	SweepScore       = "sweep_score"
	Institutional    = "institutional"
	GammaExposure    = "gamma_exposure"
	IVTermSkew       = "iv_term_skew"
	InsiderBuying    = "insider_buying"
	ShortInterest    = "short_interest"
	EarningsMomentum = "earnings_momentum"
	RelativeStrength = "relative_strength"
	NewsSentiment    = "news_sentiment"
	ToxicityPenalty  = "toxicity_penalty"
)

// Canonical exit-signal component names. These form an independent weight
// namespace from the entry vocabulary.
const (
	ExitEntryDecay        = "entry_decay"
	ExitAdverseFlow       = "adverse_flow"
	ExitDrawdownVelocity  = "drawdown_velocity"
	ExitTimeDecay         = "time_decay"
	ExitMomentumReversal  = "momentum_reversal"
)

// EntryComponents lists the full canonical entry vocabulary in a stable order.
func EntryComponents() []string {
	return []string{
		OptionsFlow,
		DarkPool,
		SweepScore,
		Institutional,
		GammaExposure,
		IVTermSkew,
		InsiderBuying,
		ShortInterest,
		EarningsMomentum,
		RelativeStrength,
		NewsSentiment,
		ToxicityPenalty,
	}
}

// ExitComponents lists the exit vocabulary in urgency-evaluation order.
func ExitComponents() []string {
	return []string{
		ExitEntryDecay,
		ExitAdverseFlow,
		ExitDrawdownVelocity,
		ExitTimeDecay,
		ExitMomentumReversal,
	}
}

// BaseWeights is the static entry base-weight table. toxicity_penalty carries
// a negative base on purpose: it is a subtractive term, not a defect.
func BaseWeights() map[string]float64 {
	return map[string]float64{
		OptionsFlow:      2.5,
		DarkPool:         2.0,
		SweepScore:       1.8,
		Institutional:    1.5,
		GammaExposure:    1.2,
		IVTermSkew:       1.2,
		InsiderBuying:    1.4,
		ShortInterest:    1.0,
		EarningsMomentum: 1.0,
		RelativeStrength: 0.8,
		NewsSentiment:    0.6,
		ToxicityPenalty:  -1.5,
	}
}

// ExitBaseWeights is the static base-weight table for the exit namespace.
func ExitBaseWeights() map[string]float64 {
	return map[string]float64{
		ExitEntryDecay:       1.2,
		ExitAdverseFlow:      1.5,
		ExitDrawdownVelocity: 1.3,
		ExitTimeDecay:        0.8,
		ExitMomentumReversal: 1.0,
	}
}

// DefaultBaseWeight applies to components outside the canonical vocabulary.
const DefaultBaseWeight = 0.5

// Family groups components for causal context-signature construction.
type Family int

const (
	FamilyOther Family = iota
	FamilyFlow
	FamilyVolatility
	FamilyOwnership
)

var families = map[string]Family{
	OptionsFlow:   FamilyFlow,
	DarkPool:      FamilyFlow,
	SweepScore:    FamilyFlow,
	GammaExposure: FamilyFlow,
	IVTermSkew:    FamilyVolatility,
	Institutional: FamilyOwnership,
	InsiderBuying: FamilyOwnership,
	ShortInterest: FamilyOwnership,
}

// FamilyOf returns the component's family, FamilyOther when unclassified.
func FamilyOf(component string) Family {
	return families[component]
}

// aliases maps external component spellings onto the canonical vocabulary.
var aliases = map[string]string{
	"flow":          OptionsFlow,
	"optionsflow":   OptionsFlow,
	"options_flow":  OptionsFlow,
	"dark_pool":     DarkPool,
	"darkpool":      DarkPool,
	"dp":            DarkPool,
	"sweep":         SweepScore,
	"sweeps":        SweepScore,
	"sweep_score":   SweepScore,
	"institutional": Institutional,
	"inst":          Institutional,
	"gex":           GammaExposure,
	"gamma":         GammaExposure,
	"gamma_exposure": GammaExposure,
	"iv_skew":        IVTermSkew,
	"iv_term_skew":   IVTermSkew,
	"skew":           IVTermSkew,
	"insider":        InsiderBuying,
	"insider_buying": InsiderBuying,
	"si":             ShortInterest,
	"short_interest": ShortInterest,
	"earnings":          EarningsMomentum,
	"earnings_momentum": EarningsMomentum,
	"rs":                RelativeStrength,
	"relative_strength": RelativeStrength,
	"sentiment":         NewsSentiment,
	"news_sentiment":    NewsSentiment,
	"toxicity":          ToxicityPenalty,
	"toxicity_penalty":  ToxicityPenalty,
}

// Canonical resolves an external component name to the canonical vocabulary.
// Unknown names return ("", false) and are dropped by callers.
func Canonical(name string) (string, bool) {
	c, ok := aliases[name]
	return c, ok
}

// Reading is a single live signal observation. Ephemeral: constructed per
// conviction computation, never persisted.
type Reading struct {
	Component  string  `json:"component"`
	Magnitude  float64 `json:"magnitude"`
	Polarity   int     `json:"polarity"`   // -1 bearish, 0 neutral, +1 bullish
	Confidence float64 `json:"confidence"` // 0..1
}
