package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
)

func TestMemoryStoreReadSamplesFiltersHalfOpenWindow(t *testing.T) {
	s := NewMemoryStore()
	day := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	s.Add(metric.Steps, day.Add(2*time.Hour), 100)
	s.Add(metric.Steps, day.Add(-time.Minute), 50)
	s.Add(metric.Steps, day.Add(24*time.Hour), 70)
	s.Add(metric.Steps, day.Add(time.Hour), 10)

	got, err := s.ReadSamples(context.Background(), metric.Steps, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 10.0, got[0].Value)
	assert.Equal(t, 100.0, got[1].Value)
	assert.EqualValues(t, 1, s.Reads())
}

func TestMemoryStoreSleepOverlap(t *testing.T) {
	s := NewMemoryStore()
	night := time.Date(2026, 5, 10, 23, 0, 0, 0, time.UTC)
	s.AddSleep(night, night.Add(3*time.Hour), StageAsleepCore)
	s.AddSleep(night.Add(-48*time.Hour), night.Add(-47*time.Hour), StageAsleepDeep)

	got, err := s.ReadSleepIntervals(context.Background(), night.Add(time.Hour), night.Add(10*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3*time.Hour, got[0].Duration())
}

func TestMemoryStoreAuthorizationAndFailures(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Authorize(context.Background()))

	s.SetAuthorized(false)
	assert.ErrorIs(t, s.Authorize(context.Background()), ErrAuthorizationDenied)
	_, err := s.ReadSamples(context.Background(), metric.Steps, time.Time{}, time.Now())
	assert.ErrorIs(t, err, ErrAuthorizationDenied)

	s.SetAuthorized(true)
	boom := errors.New("boom")
	s.FailWith(boom)
	_, err = s.ReadSleepIntervals(context.Background(), time.Time{}, time.Now())
	assert.ErrorIs(t, err, boom)
}

func TestSleepStageAsleep(t *testing.T) {
	assert.True(t, StageAsleepREM.Asleep())
	assert.True(t, StageAsleepUnspecified.Asleep())
	assert.False(t, StageInBed.Asleep())
	assert.False(t, StageAwake.Asleep())
}
