package weights

import "time"

// Multiplier bounds shared by the entry and exit namespaces.
const (
	MinMultiplier     = 0.25
	MaxMultiplier     = 2.5
	NeutralMultiplier = 1.0
)

// Band is a bounded adaptive multiplier for one signal component, with the
// performance bookkeeping the learner reads when deciding adjustments. The
// current multiplier is always clamped to [MinMultiplier, MaxMultiplier].
type Band struct {
	Component       string    `json:"component"`
	MinWeight       float64   `json:"min_weight"`
	MaxWeight       float64   `json:"max_weight"`
	Neutral         float64   `json:"neutral"`
	Current         float64   `json:"current"`
	EWMAPerformance float64   `json:"ewma_performance"`
	SampleCount     int       `json:"sample_count"`
	Wins            int       `json:"wins"`
	Losses          int       `json:"losses"`
	TotalPnL        float64   `json:"total_pnl"`
	LastUpdated     time.Time `json:"last_updated"`
}

// NewBand creates a band at the neutral multiplier.
func NewBand(component string) *Band {
	return &Band{
		Component: component,
		MinWeight: MinMultiplier,
		MaxWeight: MaxMultiplier,
		Neutral:   NeutralMultiplier,
		Current:   NeutralMultiplier,
	}
}

// Clamp bounds a multiplier value into the band's range.
func (b *Band) Clamp(value float64) float64 {
	if value < b.MinWeight {
		return b.MinWeight
	}
	if value > b.MaxWeight {
		return b.MaxWeight
	}
	return value
}

// Set clamps value into range and stamps the update time.
func (b *Band) Set(value float64, now time.Time) {
	b.Current = b.Clamp(value)
	b.LastUpdated = now
}

// bandState is the persisted form of a Band. Every field is optional so
// loading tolerates records written by older or newer builds: absent fields
// keep their in-memory values, unknown fields are ignored by the decoder.
type bandState struct {
	MinWeight       *float64   `json:"min_weight,omitempty"`
	MaxWeight       *float64   `json:"max_weight,omitempty"`
	Neutral         *float64   `json:"neutral,omitempty"`
	Current         *float64   `json:"current,omitempty"`
	EWMAPerformance *float64   `json:"ewma_performance,omitempty"`
	SampleCount     *int       `json:"sample_count,omitempty"`
	Wins            *int       `json:"wins,omitempty"`
	Losses          *int       `json:"losses,omitempty"`
	TotalPnL        *float64   `json:"total_pnl,omitempty"`
	LastUpdated     *time.Time `json:"last_updated,omitempty"`
}

func (b *Band) exportState() bandState {
	return bandState{
		MinWeight:       &b.MinWeight,
		MaxWeight:       &b.MaxWeight,
		Neutral:         &b.Neutral,
		Current:         &b.Current,
		EWMAPerformance: &b.EWMAPerformance,
		SampleCount:     &b.SampleCount,
		Wins:            &b.Wins,
		Losses:          &b.Losses,
		TotalPnL:        &b.TotalPnL,
		LastUpdated:     &b.LastUpdated,
	}
}

// applyState merges persisted fields into the band, field by field.
func (b *Band) applyState(s bandState) {
	if s.MinWeight != nil {
		b.MinWeight = *s.MinWeight
	}
	if s.MaxWeight != nil {
		b.MaxWeight = *s.MaxWeight
	}
	if s.Neutral != nil {
		b.Neutral = *s.Neutral
	}
	if s.Current != nil {
		b.Current = b.Clamp(*s.Current)
	}
	if s.EWMAPerformance != nil {
		b.EWMAPerformance = *s.EWMAPerformance
	}
	if s.SampleCount != nil {
		b.SampleCount = *s.SampleCount
	}
	if s.Wins != nil {
		b.Wins = *s.Wins
	}
	if s.Losses != nil {
		b.Losses = *s.Losses
	}
	if s.TotalPnL != nil {
		b.TotalPnL = *s.TotalPnL
	}
	if s.LastUpdated != nil {
		b.LastUpdated = *s.LastUpdated
	}
}
