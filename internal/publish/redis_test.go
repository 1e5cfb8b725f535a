package publish

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_PublishesSnapshot(t *testing.T) {
	client, mock := redismock.NewClientMock()
	pub := NewPublisher(client, "adaptive:multipliers")

	snapshot := Snapshot{
		Multipliers:      map[string]float64{"options_flow": 1.05},
		EffectiveWeights: map[string]float64{"options_flow": 2.625},
		UpdatedAt:        time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
	}
	payload, err := json.Marshal(snapshot)
	require.NoError(t, err)

	mock.ExpectSet("adaptive:multipliers", payload, 0).SetVal("OK")

	require.NoError(t, pub.Publish(context.Background(), snapshot))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublisher_SurfacesRedisError(t *testing.T) {
	client, mock := redismock.NewClientMock()
	pub := NewPublisher(client, "adaptive:multipliers")

	snapshot := Snapshot{Multipliers: map[string]float64{}}
	payload, err := json.Marshal(snapshot)
	require.NoError(t, err)

	mock.ExpectSet("adaptive:multipliers", payload, 0).SetErr(errors.New("connection refused"))

	err = pub.Publish(context.Background(), snapshot)
	assert.Error(t, err)
}

func TestPublisher_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	client, mock := redismock.NewClientMock()
	pub := NewPublisher(client, "k")

	snapshot := Snapshot{Multipliers: map[string]float64{}}
	payload, err := json.Marshal(snapshot)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		mock.ExpectSet("k", payload, 0).SetErr(errors.New("down"))
		assert.Error(t, pub.Publish(context.Background(), snapshot))
	}

	// Breaker is open: the next publish fails without hitting Redis.
	err = pub.Publish(context.Background(), snapshot)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "no further Redis calls once open")
}
