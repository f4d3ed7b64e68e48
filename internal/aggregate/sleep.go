package aggregate

import (
	"sort"
	"time"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/store"
)

// SleepHoursByDay keeps asleep sub-states, merges overlapping intervals, clips
// them to [from, to) and splits each at local midnight so an interval spanning
// two days credits each day with its own share.
func SleepHoursByDay(intervals []store.SleepInterval, from, to time.Time) []metric.Sample {
	asleep := make([]store.SleepInterval, 0, len(intervals))
	for _, interval := range intervals {
		if !interval.Stage.Asleep() || interval.Duration() <= 0 {
			continue
		}
		asleep = append(asleep, interval)
	}
	merged := mergeIntervals(asleep)

	loc := from.Location()
	buckets := make(map[time.Time]time.Duration)
	for _, interval := range merged {
		start := maxTime(interval.Start.In(loc), from)
		end := minTime(interval.End.In(loc), to)
		for cursor := start; cursor.Before(end); {
			dayStart := metric.StartOfDay(cursor)
			segmentEnd := minTime(end, metric.AddDays(dayStart, 1))
			buckets[dayStart] += segmentEnd.Sub(cursor)
			cursor = segmentEnd
		}
	}

	samples := make([]metric.Sample, 0, len(buckets))
	for day, total := range buckets {
		samples = append(samples, metric.Sample{Date: day, Value: total.Hours()})
	}
	sort.Slice(samples, func(i, j int) bool {
		return samples[i].Date.Before(samples[j].Date)
	})
	return samples
}

func mergeIntervals(intervals []store.SleepInterval) []store.SleepInterval {
	if len(intervals) == 0 {
		return nil
	}
	sorted := make([]store.SleepInterval, len(intervals))
	copy(sorted, intervals)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := []store.SleepInterval{sorted[0]}
	for _, next := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !next.Start.After(last.End) {
			last.End = maxTime(last.End, next.End)
			continue
		}
		merged = append(merged, next)
	}
	return merged
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
