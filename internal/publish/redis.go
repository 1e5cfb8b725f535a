// Package publish pushes multiplier snapshots to Redis so out-of-process
// consumers (the composite scorer, dashboards) can read the latest weights
// without touching the optimizer's state file.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// Snapshot is the published weights payload.
type Snapshot struct {
	Multipliers      map[string]float64 `json:"multipliers"`
	EffectiveWeights map[string]float64 `json:"effective_weights"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

// Publisher writes snapshots to a Redis key behind a circuit breaker, so a
// degraded Redis cannot stall the learning path.
type Publisher struct {
	client  redis.Cmdable
	key     string
	breaker *gobreaker.CircuitBreaker
}

// NewPublisher creates a publisher on an existing Redis client.
func NewPublisher(client redis.Cmdable, key string) *Publisher {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "redis-weights-publish",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("publish breaker state change")
		},
	})
	return &Publisher{client: client, key: key, breaker: breaker}
}

// Publish writes the snapshot. Failures (including an open breaker) are
// returned; callers treat publishing as best-effort.
func (p *Publisher) Publish(ctx context.Context, snapshot Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = p.breaker.Execute(func() (interface{}, error) {
		return nil, p.client.Set(ctx, p.key, payload, 0).Err()
	})
	if err != nil {
		return fmt.Errorf("publish weights snapshot: %w", err)
	}

	log.Debug().Str("key", p.key).Int("bytes", len(payload)).Msg("weights snapshot published")
	return nil
}
