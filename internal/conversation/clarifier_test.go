package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
)

func contextWithMessages(n int) *Context {
	c := NewContext("s", time.Now())
	for i := 0; i < n; i++ {
		c.Append(NewMessage(RoleUser, "hello", time.Now()))
	}
	return c
}

func ambiguity(t *testing.T, text string, prior *Context) AmbiguityKind {
	t.Helper()
	d := Check(text, prior, metric.LangZH)
	require.False(t, d.CanProceed(), text)
	return d.Clarification.Ambiguity.Kind
}

func TestClearQuestionsProceed(t *testing.T) {
	for _, text := range []string{
		"对比我本周和上周的平均心率",
		"过去30天的睡眠趋势",
		"show my resting heart rate for the last two weeks",
		"今天走了多少步",
	} {
		assert.True(t, Check(text, nil, metric.LangZH).CanProceed(), text)
	}
}

func TestGenericTermIsAmbiguousMetric(t *testing.T) {
	d := Check("我的血压正常吗", nil, metric.LangZH)
	require.False(t, d.CanProceed())
	c := d.Clarification
	assert.Equal(t, AmbiguousMetric, c.Ambiguity.Kind)
	assert.Equal(t, []metric.Kind{metric.BloodPressureSystolic, metric.BloodPressureDiastolic}, c.Ambiguity.Candidates)
	require.Len(t, c.Options, 2)
	assert.Equal(t, "收缩压", c.Options[0].Label)
	assert.Equal(t, "bloodPressureSystolic", c.Options[0].Value)
}

func TestAmbiguousMetricOutranksTimeframe(t *testing.T) {
	assert.Equal(t, AmbiguousMetric, ambiguity(t, "最近身体好吗", nil))
}

func TestOverviewPhrasingIsNotAmbiguousMetric(t *testing.T) {
	for _, text := range []string{
		"我的整体健康状况",
		"show my overall health status",
		"分析一下我的身体数据",
	} {
		assert.True(t, Check(text, nil, metric.LangZH).CanProceed(), text)
	}
	assert.Equal(t, AmbiguousMetric, ambiguity(t, "我的身体好不好", nil))
}

func TestVagueTimeWithoutPeriod(t *testing.T) {
	assert.Equal(t, AmbiguousTimeframe, ambiguity(t, "最近我的睡眠质量好不好", nil))

	d := Check("I have been sleeping badly lately", nil, metric.LangEN)
	require.False(t, d.CanProceed())
	assert.Equal(t, AmbiguousTimeframe, d.Clarification.Ambiguity.Kind)
	require.Len(t, d.Clarification.Options, 3)
	assert.Equal(t, "14 days", d.Clarification.Options[1].Label)

	assert.True(t, Check("最近7天的睡眠", nil, metric.LangZH).CanProceed())
	assert.True(t, Check("最近一周的睡眠", nil, metric.LangZH).CanProceed())
}

func TestShortVagueQuestion(t *testing.T) {
	d := Check("心率怎么样", nil, metric.LangZH)
	require.False(t, d.CanProceed())
	assert.Equal(t, VagueQuestion, d.Clarification.Ambiguity.Kind)
	assert.Equal(t, "Trend(heartRateAverage,7)", d.Clarification.Ambiguity.IntentGuess)
	assert.Len(t, d.Clarification.Options, 4)

	assert.Equal(t, VagueQuestion, ambiguity(t, "how so?", contextWithMessages(4)))
	assert.True(t, Check("show steps", nil, metric.LangEN).CanProceed())
}

func TestPronounWithoutHistory(t *testing.T) {
	d := Check("那个数据正常吗，需要担心吗", nil, metric.LangZH)
	require.False(t, d.CanProceed())
	assert.Equal(t, MissingContext, d.Clarification.Ambiguity.Kind)
	assert.True(t, d.Clarification.FreeText)

	assert.Equal(t, MissingContext, ambiguity(t, "is that normal for someone my age", contextWithMessages(1)))
	assert.True(t, Check("is that normal for someone my age", contextWithMessages(2), metric.LangEN).CanProceed())
	assert.True(t, Check("这个月的步数趋势", nil, metric.LangZH).CanProceed())
}

func TestSeveralRequestsInOneMessage(t *testing.T) {
	d := Check("我这周的步数趋势如何？另外给我一些睡眠建议", nil, metric.LangZH)
	require.False(t, d.CanProceed())
	assert.Equal(t, MultipleIntents, d.Clarification.Ambiguity.Kind)
	assert.Equal(t, []string{"Trend(steps,7)", "Recommendation(sleepDurationHours)"}, d.Clarification.Ambiguity.Intents)
	require.Len(t, d.Clarification.Options, 2)
	assert.Equal(t, "另外给我一些睡眠建议", d.Clarification.Options[1].Value)
}

func TestContentLengthIgnoresSpacesAndPunctuation(t *testing.T) {
	assert.Equal(t, 5, contentLength("心率 怎么样？"))
	assert.Equal(t, 5, contentLength("h o w ! so"))
}
