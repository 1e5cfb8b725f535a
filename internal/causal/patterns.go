package causal

import (
	"sort"
	"strings"
	"time"
)

// Sample list caps. Patterns accumulate indefinitely across process
// lifetimes via persisted analysis state; only the per-pattern sample lists
// are bounded.
const (
	contextSampleCap = 100
	comboSampleCap   = 50
)

// PatternSample is one trade observation inside a pattern.
type PatternSample struct {
	TradeID   string    `json:"trade_id"`
	Timestamp time.Time `json:"ts"`
	PnL       float64   `json:"pnl"`
	Win       bool      `json:"win"`
}

// ContextPattern accumulates win/loss/pnl for one (component, context
// signature) pair.
type ContextPattern struct {
	Component string          `json:"component"`
	Signature string          `json:"signature"`
	Wins      int             `json:"wins"`
	Losses    int             `json:"losses"`
	TotalPnL  float64         `json:"total_pnl"`
	Samples   []PatternSample `json:"samples"`
}

func (p *ContextPattern) observe(sample PatternSample) {
	if sample.Win {
		p.Wins++
	} else {
		p.Losses++
	}
	p.TotalPnL += sample.PnL
	p.Samples = append(p.Samples, sample)
	if len(p.Samples) > contextSampleCap {
		p.Samples = p.Samples[len(p.Samples)-contextSampleCap:]
	}
}

// Total returns the decided sample count.
func (p *ContextPattern) Total() int {
	return p.Wins + p.Losses
}

// WinRate returns wins over total, 0 when empty.
func (p *ContextPattern) WinRate() float64 {
	if p.Total() == 0 {
		return 0
	}
	return float64(p.Wins) / float64(p.Total())
}

// AvgPnL returns mean pnl per sample, 0 when empty.
func (p *ContextPattern) AvgPnL() float64 {
	if p.Total() == 0 {
		return 0
	}
	return p.TotalPnL / float64(p.Total())
}

// ComboPattern accumulates outcomes for a set of simultaneously-active
// components, keyed by the sorted component tuple.
type ComboPattern struct {
	Components []string        `json:"components"`
	Wins       int             `json:"wins"`
	Losses     int             `json:"losses"`
	TotalPnL   float64         `json:"total_pnl"`
	Samples    []PatternSample `json:"samples"`
	Contexts   []string        `json:"contexts"`
}

func (p *ComboPattern) observe(sample PatternSample, contextSig string) {
	if sample.Win {
		p.Wins++
	} else {
		p.Losses++
	}
	p.TotalPnL += sample.PnL
	p.Samples = append(p.Samples, sample)
	if len(p.Samples) > comboSampleCap {
		p.Samples = p.Samples[len(p.Samples)-comboSampleCap:]
	}
	p.Contexts = append(p.Contexts, contextSig)
	if len(p.Contexts) > comboSampleCap {
		p.Contexts = p.Contexts[len(p.Contexts)-comboSampleCap:]
	}
}

// Total returns the decided sample count.
func (p *ComboPattern) Total() int {
	return p.Wins + p.Losses
}

// WinRate returns wins over total, 0 when empty.
func (p *ComboPattern) WinRate() float64 {
	if p.Total() == 0 {
		return 0
	}
	return float64(p.Wins) / float64(p.Total())
}

// AvgPnL returns mean pnl per sample, 0 when empty.
func (p *ComboPattern) AvgPnL() float64 {
	if p.Total() == 0 {
		return 0
	}
	return p.TotalPnL / float64(p.Total())
}

// Contains reports whether the combination includes the component.
func (p *ComboPattern) Contains(component string) bool {
	for _, c := range p.Components {
		if c == component {
			return true
		}
	}
	return false
}

// comboKey builds the canonical key for a set of active components.
func comboKey(components []string) string {
	sorted := append([]string(nil), components...)
	sort.Strings(sorted)
	return strings.Join(sorted, "+")
}

func contextPatternKey(component, signature string) string {
	return component + "::" + signature
}
