// Package store is the read-only boundary to the host health-data source.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
)

// ErrAuthorizationDenied means the subject has not granted (or has revoked)
// access to their health data. No in-pipeline fallback can substitute for it.
var ErrAuthorizationDenied = errors.New("health data access not authorized")

// Reader is the sole source of truth for raw physiological samples. Samples
// returned by ReadSamples carry the instant they were recorded in Date; callers
// bucket them per calendar day.
type Reader interface {
	Authorize(ctx context.Context) error
	ReadSamples(ctx context.Context, kind metric.Kind, start, end time.Time) ([]metric.Sample, error)
	ReadSleepIntervals(ctx context.Context, start, end time.Time) ([]SleepInterval, error)
}

type SleepStage string

const (
	StageInBed             SleepStage = "inBed"
	StageAwake             SleepStage = "awake"
	StageAsleepCore        SleepStage = "asleepCore"
	StageAsleepDeep        SleepStage = "asleepDeep"
	StageAsleepREM         SleepStage = "asleepREM"
	StageAsleepUnspecified SleepStage = "asleepUnspecified"
)

func (s SleepStage) Asleep() bool {
	switch s {
	case StageAsleepCore, StageAsleepDeep, StageAsleepREM, StageAsleepUnspecified:
		return true
	default:
		return false
	}
}

type SleepInterval struct {
	Start time.Time
	End   time.Time
	Stage SleepStage
}

func (s SleepInterval) Duration() time.Duration {
	if !s.End.After(s.Start) {
		return 0
	}
	return s.End.Sub(s.Start)
}
