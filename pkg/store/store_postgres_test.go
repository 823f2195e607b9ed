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
)

func getTestDSN() string {
	_ = godotenv.Load("../../.env")

	dsn := os.Getenv("TEST_DB_STRING")
	if dsn == "" {
		dsn = "host=localhost port=5432 user=postgres password=postgres dbname=flowers_test sslmode=disable"
	}
	return dsn
}

func setupTestStore(t *testing.T) *PostgresStore {
	t.Helper()

	ctx := context.Background()
	store, err := NewPostgresStore(ctx, getTestDSN())
	if err != nil {
		t.Skipf("Skipping test: could not connect to test database: %v", err)
	}

	// Clean up tables before each test
	cleanupTables(t, store)

	return store
}

func cleanupTables(t *testing.T, s *PostgresStore) {
	t.Helper()

	queries := []string{
		"DELETE FROM " + tablePrefix + "observations",
		"DELETE FROM " + tablePrefix + "check_runs",
	}

	for _, query := range queries {
		//nolint:gosec // Table names are hardcoded constants, not user input
		_, err := s.db.ExecContext(s.ctx, query)
		require.NoError(t, err)
	}
}

func TestPostgresStore_Observations(t *testing.T) {
	store := setupTestStore(t)

	// Initially empty
	_, err := store.GetLatestObservation("rosas-rojas")
	assert.ErrorIs(t, err, ErrNotFound)

	observations, err := store.GetObservations("rosas-rojas")
	require.NoError(t, err)
	assert.Empty(t, observations)

	first := observation("rosas-rojas", 120000)
	first.Price = decimal.RequireFromString("120000.50")
	require.NoError(t, store.AddObservation(first))
	require.NoError(t, store.AddObservation(observation("rosas-rojas", 99000)))

	observations, err = store.GetObservations("rosas-rojas")
	require.NoError(t, err)
	require.Len(t, observations, 2)
	assert.True(t, first.Price.Equal(observations[0].Price))
	assert.Equal(t, "Amor", observations[0].Category)

	latest, err := store.GetLatestObservation("rosas-rojas")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(99000).Equal(latest.Price))
}

func TestPostgresStore_ObservationsLimit(t *testing.T) {
	store := setupTestStore(t)

	for i := 0; i < historyLimit+10; i++ {
		require.NoError(t, store.AddObservation(observation("clavel", int64(i))))
	}

	observations, err := store.GetObservations("clavel")
	require.NoError(t, err)
	assert.Len(t, observations, historyLimit)
	assert.Equal(t, "$10", observations[0].PriceText)
}

func TestPostgresStore_CheckRuns(t *testing.T) {
	store := setupTestStore(t)

	runs, err := store.GetCheckRuns()
	require.NoError(t, err)
	assert.Empty(t, runs)

	now := time.Now().Truncate(time.Second)
	require.NoError(t, store.AddCheckRun(CheckRun{
		StartedAt: now,
		Duration:  1500 * time.Millisecond,
		Products:  12,
		Problems:  []string{"Amor: only 1 product"},
	}))

	runs, err = store.GetCheckRuns()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, now.Equal(runs[0].StartedAt))
	assert.Equal(t, 1500*time.Millisecond, runs[0].Duration)
	assert.Equal(t, 12, runs[0].Products)
	assert.Equal(t, []string{"Amor: only 1 product"}, runs[0].Problems)
}

func TestNewPostgresStoreUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := NewPostgresStore(ctx, "host=127.0.0.1 port=1 user=postgres dbname=flowers_test sslmode=disable connect_timeout=1")
	require.Error(t, err)
	assert.Nil(t, store)
	assert.Contains(t, err.Error(), "failed to ping database")
}
