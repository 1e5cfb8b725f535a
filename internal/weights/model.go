// Package weights implements bounded adaptive multipliers over a static
// base-weight table. Effective weight = base weight x current multiplier.
package weights

import (
	"time"

	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/signal"
)

// Model maps each known component to a base weight and an adaptive Band.
// One instance serves the entry vocabulary, an independent instance serves
// the exit vocabulary.
type Model struct {
	baseWeights map[string]float64
	bands       map[string]*Band
	order       []string
	updatedAt   time.Time
}

// NewModel creates a model with one neutral band per component in the base
// table. Component iteration follows the supplied order.
func NewModel(order []string, baseWeights map[string]float64) *Model {
	m := &Model{
		baseWeights: make(map[string]float64, len(baseWeights)),
		bands:       make(map[string]*Band, len(baseWeights)),
		order:       append([]string(nil), order...),
	}
	for component, base := range baseWeights {
		m.baseWeights[component] = base
	}
	for _, component := range order {
		m.bands[component] = NewBand(component)
	}
	return m
}

// Components returns the model's component names in stable order.
func (m *Model) Components() []string {
	return append([]string(nil), m.order...)
}

// BaseWeight returns the static base weight for a component,
// signal.DefaultBaseWeight for unrecognized names.
func (m *Model) BaseWeight(component string) float64 {
	if base, ok := m.baseWeights[component]; ok {
		return base
	}
	return signal.DefaultBaseWeight
}

// Band returns the adaptive band for a component, nil when unknown.
func (m *Model) Band(component string) *Band {
	return m.bands[component]
}

// Multiplier returns the current multiplier for a component, neutral when
// the component has no band.
func (m *Model) Multiplier(component string) float64 {
	if band, ok := m.bands[component]; ok {
		return band.Current
	}
	return NeutralMultiplier
}

// EffectiveWeight returns base weight x current multiplier.
func (m *Model) EffectiveWeight(component string) float64 {
	return m.BaseWeight(component) * m.Multiplier(component)
}

// EffectiveWeights returns the full component -> effective weight mapping.
func (m *Model) EffectiveWeights() map[string]float64 {
	out := make(map[string]float64, len(m.order))
	for _, component := range m.order {
		out[component] = m.EffectiveWeight(component)
	}
	return out
}

// Multipliers returns the multipliers-only mapping for consumers that must
// not re-apply base weights.
func (m *Model) Multipliers() map[string]float64 {
	out := make(map[string]float64, len(m.order))
	for _, component := range m.order {
		out[component] = m.Multiplier(component)
	}
	return out
}

// UpdateMultiplier clamps value into the band's range and stamps the update
// time on both the band and the model. Unknown components are ignored.
func (m *Model) UpdateMultiplier(component string, value float64, now time.Time) {
	band, ok := m.bands[component]
	if !ok {
		return
	}
	band.Set(value, now)
	m.updatedAt = now
}

// UpdatedAt returns the time of the most recent multiplier change.
func (m *Model) UpdatedAt() time.Time {
	return m.updatedAt
}

// State is the persisted form of a Model.
type State struct {
	BaseWeights map[string]float64   `json:"base_weights"`
	WeightBands map[string]bandState `json:"weight_bands"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// ExportState snapshots the model for persistence.
func (m *Model) ExportState() State {
	s := State{
		BaseWeights: make(map[string]float64, len(m.baseWeights)),
		WeightBands: make(map[string]bandState, len(m.bands)),
		UpdatedAt:   m.updatedAt,
	}
	for component, base := range m.baseWeights {
		s.BaseWeights[component] = base
	}
	for component, band := range m.bands {
		s.WeightBands[component] = band.exportState()
	}
	return s
}

// ApplyState merges persisted state into the model field by field. Bands for
// components the model no longer knows are dropped; components missing from
// the state keep their defaults.
func (m *Model) ApplyState(s State) {
	for component, bs := range s.WeightBands {
		if band, ok := m.bands[component]; ok {
			band.applyState(bs)
		}
	}
	if !s.UpdatedAt.IsZero() {
		m.updatedAt = s.UpdatedAt
	}
}
