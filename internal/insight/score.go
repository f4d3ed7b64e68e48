package insight

import (
	"math"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/aggregate"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
)

// DefaultScore is reported when no scored component has data.
const DefaultScore = 50

type scoreComponent struct {
	weight float64
	kinds  []metric.Kind
	// firstOnly scores the first kind with data instead of averaging all of them.
	firstOnly bool
}

// The weights are a heuristic, not a clinical model.
var scoreComponents = []scoreComponent{
	{0.25, []metric.Kind{metric.RestingHeartRate, metric.HeartRateAverage}, true},
	{0.25, []metric.Kind{metric.HeartRateVariability}, false},
	{0.20, []metric.Kind{metric.VO2Max}, false},
	{0.15, []metric.Kind{metric.HeartRateRecovery}, false},
	{0.15, []metric.Kind{metric.BloodPressureSystolic, metric.BloodPressureDiastolic}, false},
}

// OverallScore combines the cardiovascular components present in aggregates
// into a 0..100 score, renormalizing the weights over the components that
// have data.
func OverallScore(aggregates map[metric.Kind]aggregate.Aggregate) float64 {
	var total, weights float64
	for _, component := range scoreComponents {
		var sum float64
		var n int
		for _, kind := range component.kinds {
			agg, ok := aggregates[kind]
			if !ok || !agg.Usable() {
				continue
			}
			sum += rangeScore(metric.MustLookup(kind), agg.Trend.Average)
			n++
			if component.firstOnly {
				break
			}
		}
		if n == 0 {
			continue
		}
		total += component.weight * sum / float64(n)
		weights += component.weight
	}
	if weights == 0 {
		return DefaultScore
	}
	return math.Round(total/weights*10) / 10
}

// rangeScore is 100 inside the normal range and loses one point per percent of
// the range width the value lies outside it.
func rangeScore(info metric.Info, value float64) float64 {
	if info.Normal == nil {
		return DefaultScore
	}
	width := info.Normal.Max - info.Normal.Min
	if width <= 0 {
		width = 1
	}
	var distance float64
	switch {
	case value < info.Normal.Min:
		distance = info.Normal.Min - value
	case value > info.Normal.Max:
		distance = value - info.Normal.Max
	default:
		return 100
	}
	return math.Max(0, 100-distance/width*100)
}
