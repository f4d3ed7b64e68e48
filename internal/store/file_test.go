package store

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
)

func TestLoadFile(t *testing.T) {
	const body = `{
	  "samples": [
	    {"metric": "steps", "at": "2026-05-10T08:00:00Z", "value": 4200},
	    {"metric": "RestingHeartRate", "at": "2026-05-10T07:00:00Z", "value": 58}
	  ],
	  "sleep": [
	    {"start": "2026-05-09T23:00:00Z", "end": "2026-05-10T06:30:00Z"}
	  ]
	}`
	s, err := LoadFile(strings.NewReader(body))
	require.NoError(t, err)

	day := time.Date(2026, 5, 10, 0, 0, 0, 0, time.UTC)
	steps, err := s.ReadSamples(context.Background(), metric.Steps, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, 4200.0, steps[0].Value)

	resting, err := s.ReadSamples(context.Background(), metric.RestingHeartRate, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, resting, 1)

	sleep, err := s.ReadSleepIntervals(context.Background(), day.Add(-24*time.Hour), day.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, sleep, 1)
	assert.Equal(t, StageAsleepUnspecified, sleep[0].Stage)
}

func TestLoadFileRejectsBadEntries(t *testing.T) {
	for name, body := range map[string]string{
		"unknown metric": `{"samples": [{"metric": "mood", "at": "2026-05-10T08:00:00Z", "value": 1}]}`,
		"inverted sleep": `{"samples": [], "sleep": [{"start": "2026-05-10T06:00:00Z", "end": "2026-05-10T05:00:00Z"}]}`,
		"not json":       `samples`,
	} {
		_, err := LoadFile(strings.NewReader(body))
		assert.Error(t, err, name)
	}
}

func TestLoadFileHonoursConsent(t *testing.T) {
	s, err := LoadFile(strings.NewReader(`{"authorized": false, "samples": []}`))
	require.NoError(t, err)
	assert.ErrorIs(t, s.Authorize(context.Background()), ErrAuthorizationDenied)
}
