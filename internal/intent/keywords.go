package intent

import "github.com/javenisme/s2y-app-iOS-sub000/internal/metric"

type synonymGroup struct {
	kind    metric.Kind
	phrases []string
	// generic phrases name a family of metrics; kind is only the default pick.
	generic bool
}

// metricSynonyms is scanned top to bottom and the first hit wins, so the
// specific phrases ("静息心率") precede the generic ones ("心率").
var metricSynonyms = []synonymGroup{
	{metric.RestingHeartRate, []string{"静息心率", "安静心率", "resting heart rate", "resting hr"}, false},
	{metric.HeartRateVariability, []string{"心率变异", "hrv", "heart rate variability"}, false},
	{metric.HeartRateRecovery, []string{"心率恢复", "heart rate recovery"}, false},
	{metric.WalkingHeartRate, []string{"步行心率", "walking heart rate"}, false},
	{metric.BloodPressureSystolic, []string{"收缩压", "高压", "systolic"}, false},
	{metric.BloodPressureDiastolic, []string{"舒张压", "低压", "diastolic"}, false},
	{metric.BloodPressureSystolic, []string{"血压", "blood pressure"}, true},
	{metric.OxygenSaturation, []string{"血氧", "氧饱和", "spo2", "oxygen"}, false},
	{metric.VO2Max, []string{"最大摄氧量", "摄氧量", "vo2"}, false},
	{metric.HeartRateAverage, []string{"平均心率", "心率", "心跳", "heart rate", "pulse", "bpm"}, false},
	{metric.Steps, []string{"步数", "走了", "走路", "多少步", "steps", "step count", "walk"}, false},
	{metric.ActiveEnergy, []string{"活动能量", "卡路里", "消耗", "热量", "active energy", "calorie", "kcal"}, false},
	{metric.SleepDurationHours, []string{"睡眠", "睡", "sleep"}, false},
	{metric.BodyMass, []string{"体重", "weight", "body mass"}, false},
	{metric.BodyTemperature, []string{"体温", "发烧", "temperature", "fever"}, false},
	{metric.RespiratoryRate, []string{"呼吸", "respiratory", "breathing"}, false},
}

var (
	currentKeywords        = []string{"现在", "当前", "目前", "今天", "current", "right now", "latest", "today"}
	goalKeywords           = []string{"目标", "达标", "goal", "target"}
	overviewKeywords       = []string{"总体", "整体", "概况", "概览", "健康状况", "overview", "overall", "health status", "how am i doing"}
	insightsKeywords       = []string{"洞察", "发现", "分析", "规律", "insight", "analy", "pattern"}
	recommendationKeywords = []string{"建议", "推荐", "改善", "提高", "recommend", "suggest", "advice", "improve", "should i"}
	summaryKeywords        = []string{"总结", "汇总", "摘要", "报告", "summary", "summarize", "report"}
	compareKeywords        = []string{"对比", "比较", "相比", "比上", "compare", "versus", " vs ", "than last"}
	trendKeywords          = []string{"趋势", "变化", "走势", "trend", "over time", "change"}
)

type windowPhrase struct {
	days    int
	phrases []string
}

// windowPhrases is checked longest window first. Numeric windows ("17天",
// "2 weeks") are parsed by countPattern instead.
var windowPhrases = []windowPhrase{
	{30, []string{"三十天", "一个月", "这个月", "本月", "上个月", "a month", "this month", "last month"}},
	{14, []string{"十四天", "两周", "两个星期", "two weeks", "fortnight"}},
	{7, []string{"七天", "一周", "本周", "上周", "这周", "a week", "this week", "last week"}},
	{3, []string{"三天", "three days"}},
}

// unitDays converts a counted unit to days.
func unitDays(unit string) int {
	switch unit {
	case "天", "day", "days":
		return 1
	case "周", "星期", "个星期", "week", "weeks":
		return 7
	case "个月", "month", "months":
		return 30
	default:
		return 0
	}
}

// MaxDays bounds a parsed window.
const MaxDays = 365

// DefaultDays applies when the text names no window.
const DefaultDays = 7
