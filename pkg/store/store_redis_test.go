package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kotrzina/flower-cart/pkg/config"
)

func setupTestRedisStore(t *testing.T) *RedisStore {
	t.Helper()

	_ = godotenv.Load("../../.env")
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	ctx := context.Background()
	store := NewRedisStore(ctx, &config.Config{RedisAddr: addr, RedisDB: 15})
	if err := store.Client.Ping(ctx).Err(); err != nil {
		t.Skipf("Skipping test: could not connect to test redis: %v", err)
	}

	require.NoError(t, store.Client.FlushDB(ctx).Err())
	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestRedisStore_Observations(t *testing.T) {
	store := setupTestRedisStore(t)

	_, err := store.GetLatestObservation("rosas-rojas")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.AddObservation(observation("rosas-rojas", 120000)))
	require.NoError(t, store.AddObservation(observation("rosas-rojas", 99000)))

	observations, err := store.GetObservations("rosas-rojas")
	require.NoError(t, err)
	require.Len(t, observations, 2)
	assert.Equal(t, "$120000", observations[0].PriceText)

	latest, err := store.GetLatestObservation("rosas-rojas")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(99000).Equal(latest.Price))
}

func TestRedisStore_Limits(t *testing.T) {
	store := setupTestRedisStore(t)

	for i := 0; i < historyLimit+10; i++ {
		require.NoError(t, store.AddObservation(observation("clavel", int64(i))))
	}

	observations, err := store.GetObservations("clavel")
	require.NoError(t, err)
	assert.Len(t, observations, historyLimit)
	assert.Equal(t, "$10", observations[0].PriceText)

	require.NoError(t, store.AddCheckRun(CheckRun{StartedAt: time.Now(), Duration: time.Second, Products: 3}))
	runs, err := store.GetCheckRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, time.Second, runs[0].Duration)
}
