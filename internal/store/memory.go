package store

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
)

// MemoryStore is an in-process Reader used by the CLI, local development and tests.
type MemoryStore struct {
	mu         sync.RWMutex
	samples    map[metric.Kind][]metric.Sample
	sleep      []SleepInterval
	authorized bool
	failure    error

	reads atomic.Int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		samples:    make(map[metric.Kind][]metric.Sample),
		authorized: true,
	}
}

func (m *MemoryStore) Add(kind metric.Kind, at time.Time, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.samples[kind] = append(m.samples[kind], metric.Sample{Date: at, Value: value})
}

func (m *MemoryStore) AddSleep(start, end time.Time, stage SleepStage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sleep = append(m.sleep, SleepInterval{Start: start, End: end, Stage: stage})
}

func (m *MemoryStore) SetAuthorized(authorized bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.authorized = authorized
}

// FailWith makes every subsequent read return err; nil restores normal reads.
func (m *MemoryStore) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = err
}

// Reads counts ReadSamples and ReadSleepIntervals calls.
func (m *MemoryStore) Reads() int64 {
	return m.reads.Load()
}

func (m *MemoryStore) Authorize(_ context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.authorized {
		return ErrAuthorizationDenied
	}
	return nil
}

func (m *MemoryStore) ReadSamples(ctx context.Context, kind metric.Kind, start, end time.Time) ([]metric.Sample, error) {
	m.reads.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.authorized {
		return nil, ErrAuthorizationDenied
	}
	if m.failure != nil {
		return nil, m.failure
	}

	result := make([]metric.Sample, 0)
	for _, sample := range m.samples[kind] {
		if sample.Date.Before(start) || !sample.Date.Before(end) {
			continue
		}
		result = append(result, sample)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

func (m *MemoryStore) ReadSleepIntervals(ctx context.Context, start, end time.Time) ([]SleepInterval, error) {
	m.reads.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.authorized {
		return nil, ErrAuthorizationDenied
	}
	if m.failure != nil {
		return nil, m.failure
	}

	result := make([]SleepInterval, 0)
	for _, interval := range m.sleep {
		if !interval.End.After(start) || !interval.Start.Before(end) {
			continue
		}
		result = append(result, interval)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Start.Before(result[j].Start)
	})
	return result, nil
}
