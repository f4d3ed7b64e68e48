package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
)

func TestParseTable(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"对比我本周和上周的平均心率", "Compare(heartRateAverage,7)"},
		{"Compare my steps over the last two weeks", "Compare(steps,14)"},
		{"最近30天的睡眠趋势", "Trend(sleepDurationHours,30)"},
		{"my resting heart rate", "Trend(restingHeartRate,7)"},
		{"心率变异性三天的变化", "Trend(heartRateVariability,3)"},
		{"今天走了多少步", "CurrentValue(steps)"},
		{"What is my current heart rate?", "CurrentValue(heartRateAverage)"},
		{"我的步数目标是10000步", "Goal(steps,10000)"},
		{"steps goal", "Goal(steps)"},
		{"给我一个健康概况", "Overview"},
		{"Any insights about my sleep?", "Insights(sleepDurationHours)"},
		{"分析一下", "Insights"},
		{"有什么建议吗", "Recommendation"},
		{"how can I improve my vo2 max", "Recommendation(vo2Max)"},
		{"总结一下这个月的体重", "Summary(bodyMass,30)"},
		{"weekly report", "Summary(7)"},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			got, ok := Parse(tc.text)
			require.True(t, ok)
			assert.Equal(t, tc.want, got.String())
		})
	}
}

func TestParseReturnsNothingWithoutMetricOrGenericKeyword(t *testing.T) {
	for _, text := range []string{"", "   ", "hello there", "讲个笑话", "compare these", "今天天气怎么样"} {
		_, ok := Parse(text)
		assert.False(t, ok, text)
	}
}

func TestSpecificSynonymsWinOverGeneric(t *testing.T) {
	kind, ok := DetectMetric(Normalize("静息心率"))
	require.True(t, ok)
	assert.Equal(t, metric.RestingHeartRate, kind)

	kind, ok = DetectMetric(Normalize("Walking Heart Rate"))
	require.True(t, ok)
	assert.Equal(t, metric.WalkingHeartRate, kind)

	kind, ok = DetectMetric("心率")
	require.True(t, ok)
	assert.Equal(t, metric.HeartRateAverage, kind)
}

func TestCurrentValueOutranksCompare(t *testing.T) {
	got, ok := Parse("对比一下现在的心率")
	require.True(t, ok)
	assert.Equal(t, KindCurrentValue, got.Kind)
}

func TestGoalTargetSkipsZero(t *testing.T) {
	got, ok := Parse("0 problems, sleep goal 8.5 hours")
	require.True(t, ok)
	require.NotNil(t, got.Target)
	assert.Equal(t, 8.5, *got.Target)
}

func TestCandidatesAreDistinct(t *testing.T) {
	got := Candidates(Normalize("血压 systolic and sleep"))
	assert.Equal(t, []metric.Kind{metric.BloodPressureSystolic, metric.SleepDurationHours}, got)
}

func TestExplicitDays(t *testing.T) {
	_, ok := ExplicitDays("最近怎么样")
	assert.False(t, ok)

	days, ok := ExplicitDays("last month")
	require.True(t, ok)
	assert.Equal(t, 30, days)
	assert.Equal(t, DefaultDays, DetectDays("sleep"))
}

func TestCountedWindowsAreReadWhole(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"最近17天的步数", 17},
		{"13天的睡眠", 13},
		{"3天的睡眠", 3},
		{"steps over the last 21 days", 21},
		{"a 7-day trend", 7},
		{"12 weeks of sleep", 84},
		{"最近2个月的体重", 60},
		{"十七天的步数", DefaultDays},
		{"十三天", DefaultDays},
		{"3月14日的心率", DefaultDays},
		{"the last 900 days", DefaultDays},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DetectDays(Normalize(tc.text)), tc.text)
	}

	got, ok := Parse("最近17天的步数趋势")
	require.True(t, ok)
	assert.Equal(t, "Trend(steps,17)", got.String())
}

func TestGenericBloodPressureIsNotSpecific(t *testing.T) {
	assert.False(t, HasSpecificMetric("我的血压"))
	assert.True(t, HasSpecificMetric("我的收缩压"))

	kind, ok := DetectMetric("我的血压")
	require.True(t, ok)
	assert.Equal(t, metric.BloodPressureSystolic, kind)
}
