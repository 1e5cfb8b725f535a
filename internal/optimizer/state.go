package optimizer

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/causal"
	atomicio "github.com/mlevitan96-crypto/stock-bot-sub003/internal/io"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/learner"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/metrics"
	"github.com/mlevitan96-crypto/stock-bot-sub003/internal/weights"
)

// persistedState is the on-disk optimizer snapshot.
type persistedState struct {
	EntryWeights weights.State `json:"entry_weights"`
	ExitModel    weights.State `json:"exit_model"`
	Learner      learner.State `json:"learner"`
	SavedAt      int64         `json:"saved_at"` // unix seconds
	SavedDT      time.Time     `json:"saved_dt"`
}

// load restores persisted optimizer and causal state. Missing files start
// fresh; corrupt files are logged and discarded, never fatal.
func (o *Optimizer) load() {
	var state persistedState
	err := atomicio.ReadJSON(o.opts.StatePath, &state)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Info().Str("path", o.opts.StatePath).Msg("no optimizer state, starting fresh")
	case err != nil:
		log.Warn().Err(err).Str("path", o.opts.StatePath).
			Msg("optimizer state unreadable, starting fresh")
	default:
		o.entryModel.ApplyState(state.EntryWeights)
		o.exitModel.Weights().ApplyState(state.ExitModel)
		o.learner.ApplyState(state.Learner)
		log.Info().
			Time("saved_dt", state.SavedDT).
			Msg("optimizer state loaded")
	}

	if o.opts.CausalStatePath == "" {
		return
	}
	var causalState causal.State
	err = atomicio.ReadJSON(o.opts.CausalStatePath, &causalState)
	switch {
	case errors.Is(err, os.ErrNotExist):
		log.Info().Str("path", o.opts.CausalStatePath).Msg("no causal state, starting fresh")
	case err != nil:
		log.Warn().Err(err).Str("path", o.opts.CausalStatePath).
			Msg("causal state unreadable, starting fresh")
	default:
		o.causal.ApplyState(causalState)
	}
}

// Save persists optimizer and causal state atomically. Failures are returned
// to the caller, not swallowed.
func (o *Optimizer) Save() error {
	now := time.Now()
	state := persistedState{
		EntryWeights: o.entryModel.ExportState(),
		ExitModel:    o.exitModel.Weights().ExportState(),
		Learner:      o.learner.ExportState(),
		SavedAt:      now.Unix(),
		SavedDT:      now,
	}
	if err := atomicio.WriteJSONAtomic(o.opts.StatePath, state); err != nil {
		metrics.StateSaveFailures.Inc()
		return fmt.Errorf("save optimizer state: %w", err)
	}
	if o.opts.CausalStatePath != "" {
		if err := atomicio.WriteJSONAtomic(o.opts.CausalStatePath, o.causal.ExportState()); err != nil {
			metrics.StateSaveFailures.Inc()
			return fmt.Errorf("save causal state: %w", err)
		}
	}
	return nil
}
