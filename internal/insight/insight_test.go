package insight

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/aggregate"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
)

var seriesStart = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func series(kind metric.Kind, values ...float64) aggregate.Aggregate {
	points := make([]metric.Sample, len(values))
	for i, v := range values {
		points[i] = metric.Sample{Date: metric.AddDays(seriesStart, i), Value: v}
	}
	trend := aggregate.NewTrend(kind, len(values), seriesStart, metric.AddDays(seriesStart, len(values)-1), points)
	return aggregate.Aggregate{Trend: &trend}
}

func newGenerator(t *testing.T) *Generator {
	t.Helper()
	g, err := NewGenerator()
	require.NoError(t, err)
	return g
}

func ofType(insights []Insight, typ Type) []Insight {
	var out []Insight
	for _, in := range insights {
		if in.Type == typ {
			out = append(out, in)
		}
	}
	return out
}

func TestStableMetricsYieldFallback(t *testing.T) {
	g := newGenerator(t)
	got := g.Generate(map[metric.Kind]aggregate.Aggregate{
		metric.Steps:            series(metric.Steps, 8000, 8000, 8000, 8000),
		metric.HeartRateAverage: series(metric.HeartRateAverage, 70, 70, 70, 70),
	}, Options{Lang: metric.LangEN})

	require.Len(t, got, 1)
	assert.Equal(t, "Maintain healthy habits", got[0].Title)
	assert.Equal(t, TypeRecommendation, got[0].Type)
}

func TestFailedMetricsAreSkipped(t *testing.T) {
	g := newGenerator(t)
	got := g.Generate(map[metric.Kind]aggregate.Aggregate{
		metric.Steps:  {Err: errors.New("boom")},
		metric.VO2Max: {Err: aggregate.ErrNoData},
	}, Options{})

	require.Len(t, got, 1)
	assert.Equal(t, "保持健康习惯", got[0].Title)

	assert.Len(t, g.Generate(nil, Options{}), 1)
}

func TestTrendInsightAboveThreshold(t *testing.T) {
	g := newGenerator(t)
	got := g.Generate(map[metric.Kind]aggregate.Aggregate{
		metric.SleepDurationHours: series(metric.SleepDurationHours, 7, 7.5, 8, 8.5),
	}, Options{Lang: metric.LangEN})

	require.Len(t, got, 1)
	assert.Equal(t, TypeTrend, got[0].Type)
	assert.Equal(t, "Sleep duration rising", got[0].Title)
	assert.InDelta(t, 0.5+1.5/7, got[0].Importance, 1e-9)
	assert.Equal(t, metric.SleepDurationHours, got[0].RelatedMetric)
}

func TestAlertAndRecommendationForOutOfRange(t *testing.T) {
	g := newGenerator(t)
	got := g.Generate(map[metric.Kind]aggregate.Aggregate{
		metric.RestingHeartRate: series(metric.RestingHeartRate, 110, 110, 110),
	}, Options{Lang: metric.LangZH})

	require.Len(t, got, 2)
	assert.Equal(t, TypeAlert, got[0].Type)
	assert.Equal(t, "静息心率偏高", got[0].Title)
	assert.Equal(t, 0.9, got[0].Importance)
	assert.Equal(t, TypeRecommendation, got[1].Type)
	assert.Contains(t, got[1].Description, "静息心率")
}

func TestCorrelationRequiresAlignedSeries(t *testing.T) {
	g := newGenerator(t)
	got := g.Generate(map[metric.Kind]aggregate.Aggregate{
		metric.Steps:        series(metric.Steps, 6000, 7000, 8000, 9000, 10000),
		metric.ActiveEnergy: series(metric.ActiveEnergy, 300, 350, 400, 450, 500),
	}, Options{Lang: metric.LangEN})

	corr := ofType(got, TypeCorrelation)
	require.Len(t, corr, 1)
	assert.InDelta(t, 0.8, corr[0].Importance, 1e-9)
	assert.Equal(t, metric.Steps, corr[0].RelatedMetric)
	assert.Contains(t, corr[0].Description, "positively")

	got = g.Generate(map[metric.Kind]aggregate.Aggregate{
		metric.Steps:        series(metric.Steps, 6000, 7000, 8000, 9000, 10000),
		metric.ActiveEnergy: series(metric.ActiveEnergy, 300, 350, 400, 450),
	}, Options{Lang: metric.LangEN})
	assert.Empty(t, ofType(got, TypeCorrelation))
}

func TestRecommendationTargetsMostDegradedMetric(t *testing.T) {
	g := newGenerator(t)
	aggregates := map[metric.Kind]aggregate.Aggregate{
		metric.Steps:              series(metric.Steps, 4000, 3200),
		metric.SleepDurationHours: series(metric.SleepDurationHours, 8, 7.5, 7),
	}

	recs := ofType(g.Generate(aggregates, Options{Lang: metric.LangEN}), TypeRecommendation)
	require.Len(t, recs, 1)
	assert.Equal(t, metric.Steps, recs[0].RelatedMetric)
	assert.True(t, strings.HasPrefix(recs[0].Title, "Improve your steps"))

	recs = ofType(g.Generate(aggregates, Options{Lang: metric.LangEN, Focus: metric.SleepDurationHours}), TypeRecommendation)
	require.Len(t, recs, 1)
	assert.Equal(t, metric.SleepDurationHours, recs[0].RelatedMetric)
}

func TestAchievementAndGoal(t *testing.T) {
	g := newGenerator(t)
	current := aggregate.NewTrend(metric.VO2Max, 3, seriesStart, metric.AddDays(seriesStart, 2), []metric.Sample{
		{Date: seriesStart, Value: 45},
		{Date: metric.AddDays(seriesStart, 1), Value: 45},
		{Date: metric.AddDays(seriesStart, 2), Value: 45},
	})
	previous := aggregate.NewTrend(metric.VO2Max, 3, metric.AddDays(seriesStart, -3), metric.AddDays(seriesStart, -1), []metric.Sample{
		{Date: metric.AddDays(seriesStart, -2), Value: 37.5},
	})
	cmp := aggregate.NewComparison(current, previous)

	got := g.Generate(map[metric.Kind]aggregate.Aggregate{
		metric.VO2Max: {Trend: &current, Comparison: &cmp},
		metric.Steps:  series(metric.Steps, 12000, 12000),
	}, Options{Lang: metric.LangEN, Goals: map[metric.Kind]float64{metric.Steps: 10000}})

	achievements := ofType(got, TypeAchievement)
	require.Len(t, achievements, 1)
	assert.Equal(t, metric.VO2Max, achievements[0].RelatedMetric)
	assert.Equal(t, 0.7, achievements[0].Importance)

	goals := ofType(got, TypeGoal)
	require.Len(t, goals, 1)
	assert.Equal(t, "Steps goal reached", goals[0].Title)
	assert.Equal(t, 0.75, goals[0].Importance)
}

func TestInsightsAreRankedAndTruncated(t *testing.T) {
	g := newGenerator(t)
	got := g.Generate(map[metric.Kind]aggregate.Aggregate{
		metric.Steps:            series(metric.Steps, 6000, 7000, 8000, 9000, 10000),
		metric.ActiveEnergy:     series(metric.ActiveEnergy, 300, 350, 400, 450, 500),
		metric.RestingHeartRate: series(metric.RestingHeartRate, 105, 108, 110, 112, 120),
		metric.OxygenSaturation: series(metric.OxygenSaturation, 94, 93, 92, 91, 90),
	}, Options{Lang: metric.LangEN})

	require.Greater(t, len(got), InlineLimit)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Importance, got[i].Importance)
	}
	for _, in := range got {
		assert.GreaterOrEqual(t, in.Importance, 0.0)
		assert.LessOrEqual(t, in.Importance, 1.0)
	}
	assert.Len(t, Top(got, InlineLimit), InlineLimit)
	assert.Len(t, Top(got[:2], InlineLimit), 2)
}

func TestPearson(t *testing.T) {
	r, ok := Pearson([]float64{1, 2, 3}, []float64{3, 2, 1})
	require.True(t, ok)
	assert.InDelta(t, -1.0, r, 1e-9)

	_, ok = Pearson([]float64{1, 2, 3}, []float64{1, 2})
	assert.False(t, ok)
	_, ok = Pearson([]float64{1, 2}, []float64{1, 2})
	assert.False(t, ok)
	_, ok = Pearson([]float64{5, 5, 5}, []float64{1, 2, 3})
	assert.False(t, ok)
}

func TestOverallScore(t *testing.T) {
	assert.Equal(t, float64(DefaultScore), OverallScore(nil))

	score := OverallScore(map[metric.Kind]aggregate.Aggregate{
		metric.RestingHeartRate:     series(metric.RestingHeartRate, 60),
		metric.HeartRateAverage:     series(metric.HeartRateAverage, 150),
		metric.HeartRateVariability: series(metric.HeartRateVariability, 10),
	})
	assert.InDelta(t, 97.2, score, 1e-9)

	score = OverallScore(map[metric.Kind]aggregate.Aggregate{
		metric.BloodPressureSystolic:  series(metric.BloodPressureSystolic, 130),
		metric.BloodPressureDiastolic: series(metric.BloodPressureDiastolic, 70),
	})
	assert.InDelta(t, 83.3, score, 1e-9)
}

func TestLoadRecommendationsRejectsUnknownMetric(t *testing.T) {
	_, err := LoadRecommendations(strings.NewReader("cholesterol:\n  en: eat oats\n"))
	assert.Error(t, err)

	recs, err := LoadRecommendations(strings.NewReader("steps:\n  zh: 多走路\n"))
	require.NoError(t, err)
	text, ok := recs.Text(metric.Steps, metric.LangEN)
	require.True(t, ok)
	assert.Equal(t, "多走路", text)
}
