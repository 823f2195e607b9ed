package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func observation(slug string, amount int64) Observation {
	return Observation{
		Slug:      slug,
		Name:      "Rosas Rojas",
		Category:  "Amor",
		PriceText: fmt.Sprintf("$%d", amount),
		Price:     decimal.NewFromInt(amount),
		At:        time.Now(),
	}
}

func TestMemoryStore_Observations(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.GetLatestObservation("rosas-rojas")
	assert.ErrorIs(t, err, ErrNotFound)

	observations, err := s.GetObservations("rosas-rojas")
	require.NoError(t, err)
	assert.Empty(t, observations)

	require.NoError(t, s.AddObservation(observation("rosas-rojas", 100)))
	require.NoError(t, s.AddObservation(observation("rosas-rojas", 120)))
	require.NoError(t, s.AddObservation(observation("girasoles", 50)))

	latest, err := s.GetLatestObservation("rosas-rojas")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(120).Equal(latest.Price))

	observations, err = s.GetObservations("rosas-rojas")
	require.NoError(t, err)
	require.Len(t, observations, 2)
	assert.Equal(t, "$100", observations[0].PriceText)
}

func TestMemoryStore_ObservationsLimit(t *testing.T) {
	s := NewMemoryStore()

	for i := 0; i < historyLimit+10; i++ {
		require.NoError(t, s.AddObservation(observation("clavel", int64(i))))
	}

	observations, err := s.GetObservations("clavel")
	require.NoError(t, err)
	assert.Len(t, observations, historyLimit)
	assert.Equal(t, "$10", observations[0].PriceText)
}

func TestMemoryStore_CheckRuns(t *testing.T) {
	s := NewMemoryStore()

	for i := 0; i < checkRunsLimit+5; i++ {
		require.NoError(t, s.AddCheckRun(CheckRun{
			StartedAt: time.Now(),
			Duration:  time.Second,
			Products:  i,
		}))
	}

	runs, err := s.GetCheckRuns()
	require.NoError(t, err)
	assert.Len(t, runs, checkRunsLimit)
	assert.Equal(t, 5, runs[0].Products)
}
