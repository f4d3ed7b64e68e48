package aggregate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/cache"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/store"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/telemetry"
)

const (
	queryDaily   = "daily"
	queryTrend   = "trend"
	queryCompare = "compare"
	querySummary = "summary"

	overviewParallelism = 4
)

type Engine struct {
	store   store.Reader
	cache   cache.Store
	ttl     time.Duration
	logger  zerolog.Logger
	metrics *telemetry.Metrics
}

type Option func(*Engine)

func WithTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *telemetry.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func NewEngine(reader store.Reader, c cache.Store, opts ...Option) *Engine {
	e := &Engine{
		store:  reader,
		cache:  c,
		ttl:    cache.DefaultTTL,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FetchDaily returns one sample per calendar day in [start, end], both days
// inclusive. Sum metrics add their raw samples, the rest average them. Days
// without data are omitted.
func (e *Engine) FetchDaily(ctx context.Context, kind metric.Kind, start, end time.Time) ([]metric.Sample, error) {
	info, ok := metric.Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("unknown metric %q", kind)
	}
	from := metric.StartOfDay(start)
	last := metric.StartOfDay(end)
	if last.Before(from) {
		return []metric.Sample{}, nil
	}
	params := "from" + from.Format(cache.DayLayout)
	key := cache.Key(queryDaily, kind, params, last)

	return cached(ctx, e, queryDaily, key, func() ([]metric.Sample, error) {
		to := metric.AddDays(last, 1)
		if kind == metric.SleepDurationHours {
			intervals, err := e.store.ReadSleepIntervals(ctx, from, to)
			e.metrics.StoreRead(string(kind), err)
			if err != nil {
				return nil, e.wrapReadError(kind, err)
			}
			return SleepHoursByDay(intervals, from, to), nil
		}

		raw, err := e.store.ReadSamples(ctx, kind, from, to)
		e.metrics.StoreRead(string(kind), err)
		if err != nil {
			return nil, e.wrapReadError(kind, err)
		}
		return bucketByDay(raw, info.Aggregation, from.Location()), nil
	})
}

// Trend covers the days-long window ending on asOf's calendar day.
func (e *Engine) Trend(ctx context.Context, kind metric.Kind, days int, asOf time.Time) (Trend, error) {
	if days < 1 {
		days = 1
	}
	start, end := Window(days, asOf)
	key := cache.Key(queryTrend, kind, fmt.Sprintf("d%d", days), end)

	return cached(ctx, e, queryTrend, key, func() (Trend, error) {
		points, err := e.FetchDaily(ctx, kind, start, end)
		if err != nil {
			return Trend{}, err
		}
		return NewTrend(kind, days, start, end, points), nil
	})
}

// Compare pits the window ending on asOf against the adjacent, equally long
// window immediately before it.
func (e *Engine) Compare(ctx context.Context, kind metric.Kind, days int, asOf time.Time) (Comparison, error) {
	if days < 1 {
		days = 1
	}
	_, end := Window(days, asOf)
	key := cache.Key(queryCompare, kind, fmt.Sprintf("d%d", days), end)

	return cached(ctx, e, queryCompare, key, func() (Comparison, error) {
		var current, previous Trend
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			current, err = e.Trend(gctx, kind, days, end)
			return err
		})
		g.Go(func() error {
			var err error
			previous, err = e.Trend(gctx, kind, days, metric.AddDays(end, -days))
			return err
		})
		if err := g.Wait(); err != nil {
			return Comparison{}, err
		}
		return NewComparison(current, previous), nil
	})
}

// Summary fails with ErrNoData when the window is empty.
func (e *Engine) Summary(ctx context.Context, kind metric.Kind, days int, asOf time.Time) (Summary, error) {
	if days < 1 {
		days = 1
	}
	_, end := Window(days, asOf)
	key := cache.Key(querySummary, kind, fmt.Sprintf("d%d", days), end)

	summary, err := cached(ctx, e, querySummary, key, func() (Summary, error) {
		trend, err := e.Trend(ctx, kind, days, end)
		if err != nil {
			return Summary{}, err
		}
		return NewSummary(trend), nil
	})
	if err != nil {
		return Summary{}, err
	}
	if summary.DaysWithData == 0 {
		return Summary{}, ErrNoData
	}
	return summary, nil
}

// Overview computes trend and comparison for each metric concurrently. A
// failing metric is reported in its own Aggregate; authorization denial and
// cancellation abort the whole call.
func (e *Engine) Overview(ctx context.Context, kinds []metric.Kind, days int, asOf time.Time) (map[metric.Kind]Aggregate, error) {
	results := make([]Aggregate, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(overviewParallelism)

	for i, kind := range kinds {
		g.Go(func() error {
			trend, err := e.Trend(gctx, kind, days, asOf)
			if err != nil {
				if fatal(err) {
					return err
				}
				results[i] = Aggregate{Err: err}
				return nil
			}
			if trend.Empty() {
				results[i] = Aggregate{Trend: &trend, Err: ErrNoData}
				return nil
			}
			comparison, err := e.Compare(gctx, kind, days, asOf)
			if err != nil {
				if fatal(err) {
					return err
				}
				results[i] = Aggregate{Trend: &trend}
				return nil
			}
			results[i] = Aggregate{Trend: &trend, Comparison: &comparison}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[metric.Kind]Aggregate, len(kinds))
	for i, kind := range kinds {
		out[kind] = results[i]
	}
	return out, nil
}

// Authorize checks access with the store. Cached results do not touch the
// store, so callers that must honour revocation check here first.
func (e *Engine) Authorize(ctx context.Context) error {
	return e.store.Authorize(ctx)
}

func (e *Engine) ClearMetric(ctx context.Context, kind metric.Kind) error {
	return e.cache.DeletePrefix(ctx, cache.MetricPrefix(kind))
}

func (e *Engine) ClearAll(ctx context.Context) error {
	return e.cache.Clear(ctx)
}

func (e *Engine) wrapReadError(kind metric.Kind, err error) error {
	if fatal(err) {
		return err
	}
	e.logger.Warn().Err(err).Str("metric", string(kind)).Msg("store read failed")
	return &QueryError{Metric: kind, Cause: err}
}

func fatal(err error) bool {
	return errors.Is(err, store.ErrAuthorizationDenied) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// cached serves key from the cache or computes, stores and returns it. The
// computed value goes through the same JSON round trip as a cache hit, so a
// hit and a miss return identical values.
func cached[T any](ctx context.Context, e *Engine, queryKind, key string, compute func() (T, error)) (T, error) {
	var zero T
	raw, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.logger.Warn().Err(err).Str("key", key).Msg("cache read failed")
		ok = false
	}
	if ok {
		var value T
		if err := json.Unmarshal(raw, &value); err == nil {
			e.metrics.CacheLookup(queryKind, true)
			e.logger.Debug().Str("key", key).Msg("cache hit")
			return value, nil
		}
		e.logger.Warn().Str("key", key).Msg("corrupt cache entry, recomputing")
		if err := e.cache.Delete(ctx, key); err != nil {
			e.logger.Warn().Err(err).Str("key", key).Msg("cache delete failed")
		}
	}
	e.metrics.CacheLookup(queryKind, false)

	value, err := compute()
	if err != nil {
		return zero, err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return zero, fmt.Errorf("encode %s: %w", queryKind, err)
	}
	if err := e.cache.Set(ctx, key, encoded, e.ttl); err != nil {
		e.logger.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
	var decoded T
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		return zero, fmt.Errorf("decode %s: %w", queryKind, err)
	}
	return decoded, nil
}

func bucketByDay(raw []metric.Sample, agg metric.Aggregation, loc *time.Location) []metric.Sample {
	type bucket struct {
		total float64
		count int
	}
	buckets := make(map[time.Time]*bucket)
	for _, sample := range raw {
		day := metric.StartOfDay(sample.Date.In(loc))
		b, ok := buckets[day]
		if !ok {
			b = &bucket{}
			buckets[day] = b
		}
		b.total += sample.Value
		b.count++
	}

	out := make([]metric.Sample, 0, len(buckets))
	for day, b := range buckets {
		value := b.total
		if agg == metric.AggregateAverage {
			value = b.total / float64(b.count)
		}
		out = append(out, metric.Sample{Date: day, Value: value})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}
