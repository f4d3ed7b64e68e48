// Package aggregate computes windowed statistics over the metric store and
// memoizes them in the aggregation cache.
package aggregate

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
)

// Epsilon guards every relative-change divisor.
const Epsilon = 1e-9

// ErrNoData means the store returned no samples for the requested window.
var ErrNoData = errors.New("no samples in window")

// QueryError wraps a store read failure that is not an authorization problem.
type QueryError struct {
	Metric metric.Kind
	Cause  error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %s failed: %v", e.Metric, e.Cause)
}

func (e *QueryError) Unwrap() error {
	return e.Cause
}

type Trend struct {
	Metric     metric.Kind     `json:"metric"`
	WindowDays int             `json:"window_days"`
	Start      time.Time       `json:"start"`
	End        time.Time       `json:"end"`
	Points     []metric.Sample `json:"points"`
	Average    float64         `json:"average"`
	ChangeRate float64         `json:"change_rate"`
}

func (t Trend) Empty() bool {
	return len(t.Points) == 0
}

type Comparison struct {
	Metric             metric.Kind `json:"metric"`
	CurrentWindowDays  int         `json:"current_window_days"`
	PreviousWindowDays int         `json:"previous_window_days"`
	CurrentStart       time.Time   `json:"current_start"`
	CurrentEnd         time.Time   `json:"current_end"`
	PreviousStart      time.Time   `json:"previous_start"`
	PreviousEnd        time.Time   `json:"previous_end"`
	CurrentAverage     float64     `json:"current_average"`
	PreviousAverage    float64     `json:"previous_average"`
	Delta              float64     `json:"delta"`
	DeltaRate          float64     `json:"delta_rate"`
}

type Summary struct {
	Trend        Trend     `json:"trend"`
	Min          float64   `json:"min"`
	Max          float64   `json:"max"`
	Latest       float64   `json:"latest"`
	LatestDate   time.Time `json:"latest_date"`
	DaysWithData int       `json:"days_with_data"`
}

// Aggregate is one metric's contribution to a multi-metric request. Err is set
// when that metric could not be computed; consumers skip it.
type Aggregate struct {
	Trend      *Trend
	Comparison *Comparison
	Err        error
}

func (a Aggregate) Usable() bool {
	return a.Err == nil && a.Trend != nil && !a.Trend.Empty()
}

// Mean returns 0 for an empty slice.
func Mean(points []metric.Sample) float64 {
	if len(points) == 0 {
		return 0
	}
	total := 0.0
	for _, p := range points {
		total += p.Value
	}
	return total / float64(len(points))
}

// RelativeChange divides by max(Epsilon, |baseline|) so the sign comes from delta.
func RelativeChange(delta, baseline float64) float64 {
	return delta / math.Max(Epsilon, math.Abs(baseline))
}

// ChangeRate compares the last point against the first.
func ChangeRate(points []metric.Sample) float64 {
	if len(points) == 0 {
		return 0
	}
	first := points[0].Value
	last := points[len(points)-1].Value
	return RelativeChange(last-first, first)
}

func NewTrend(kind metric.Kind, days int, start, end time.Time, points []metric.Sample) Trend {
	if points == nil {
		points = []metric.Sample{}
	}
	return Trend{
		Metric:     kind,
		WindowDays: days,
		Start:      start,
		End:        end,
		Points:     points,
		Average:    Mean(points),
		ChangeRate: ChangeRate(points),
	}
}

func NewComparison(current, previous Trend) Comparison {
	delta := current.Average - previous.Average
	return Comparison{
		Metric:             current.Metric,
		CurrentWindowDays:  current.WindowDays,
		PreviousWindowDays: previous.WindowDays,
		CurrentStart:       current.Start,
		CurrentEnd:         current.End,
		PreviousStart:      previous.Start,
		PreviousEnd:        previous.End,
		CurrentAverage:     current.Average,
		PreviousAverage:    previous.Average,
		Delta:              delta,
		DeltaRate:          RelativeChange(delta, previous.Average),
	}
}

func NewSummary(trend Trend) Summary {
	summary := Summary{Trend: trend, DaysWithData: len(trend.Points)}
	if trend.Empty() {
		return summary
	}
	summary.Min = trend.Points[0].Value
	summary.Max = trend.Points[0].Value
	for _, p := range trend.Points {
		summary.Min = math.Min(summary.Min, p.Value)
		summary.Max = math.Max(summary.Max, p.Value)
	}
	last := trend.Points[len(trend.Points)-1]
	summary.Latest = last.Value
	summary.LatestDate = last.Date
	return summary
}

// Window returns the first and last calendar day of a days-long window ending on asOf.
func Window(days int, asOf time.Time) (time.Time, time.Time) {
	if days < 1 {
		days = 1
	}
	end := metric.StartOfDay(asOf)
	return metric.AddDays(end, -(days - 1)), end
}
