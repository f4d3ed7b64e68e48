package assistant

import (
	"fmt"
	"strings"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/aggregate"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/insight"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
)

// Facts are plain lines describing the computed data. They feed the model
// prompt and, when every model is down, the template answer.

func trendFact(t aggregate.Trend, lang metric.Lang) string {
	info := metric.MustLookup(t.Metric)
	if t.Empty() {
		return noDataFact(t.Metric, t.WindowDays, lang)
	}
	if lang == metric.LangEN {
		return fmt.Sprintf("%s, last %d days: average %s, change %s (%d days with data)",
			info.Name(lang), t.WindowDays, info.Format(t.Average), percent(t.ChangeRate), len(t.Points))
	}
	return fmt.Sprintf("%s 最近%d天：平均 %s，变化 %s（%d 天有数据）",
		info.Name(lang), t.WindowDays, info.Format(t.Average), percent(t.ChangeRate), len(t.Points))
}

func comparisonFact(c aggregate.Comparison, lang metric.Lang) string {
	info := metric.MustLookup(c.Metric)
	delta := fmt.Sprintf("%+.*f", info.Precision, c.Delta)
	if lang == metric.LangEN {
		return fmt.Sprintf("%s: last %d days averaged %s versus %s in the %d days before, a change of %s (%s)",
			info.Name(lang), c.CurrentWindowDays, info.Format(c.CurrentAverage), info.Format(c.PreviousAverage),
			c.PreviousWindowDays, delta, percent(c.DeltaRate))
	}
	return fmt.Sprintf("%s：最近%d天平均 %s，之前%d天平均 %s，变化 %s（%s）",
		info.Name(lang), c.CurrentWindowDays, info.Format(c.CurrentAverage), c.PreviousWindowDays,
		info.Format(c.PreviousAverage), delta, percent(c.DeltaRate))
}

func summaryFact(s aggregate.Summary, lang metric.Lang) string {
	info := metric.MustLookup(s.Trend.Metric)
	latest := s.LatestDate.Format("2006-01-02")
	if lang == metric.LangEN {
		return fmt.Sprintf("%s, last %d days: average %s, lowest %s, highest %s, latest %s on %s",
			info.Name(lang), s.Trend.WindowDays, info.Format(s.Trend.Average), info.Format(s.Min),
			info.Format(s.Max), info.Format(s.Latest), latest)
	}
	return fmt.Sprintf("%s 最近%d天：平均 %s，最低 %s，最高 %s，最近一次 %s（%s）",
		info.Name(lang), s.Trend.WindowDays, info.Format(s.Trend.Average), info.Format(s.Min),
		info.Format(s.Max), info.Format(s.Latest), latest)
}

func currentFact(s aggregate.Summary, lang metric.Lang) string {
	info := metric.MustLookup(s.Trend.Metric)
	latest := s.LatestDate.Format("2006-01-02")
	assessment := info.Assess(s.Latest)
	if lang == metric.LangEN {
		return fmt.Sprintf("%s latest reading: %s on %s (%s)", info.Name(lang), info.Format(s.Latest), latest, assessment)
	}
	return fmt.Sprintf("%s 最新数值：%s（%s，%s）", info.Name(lang), info.Format(s.Latest), latest, assessmentZH(assessment))
}

func noDataFact(kind metric.Kind, days int, lang metric.Lang) string {
	name := kind.Name(lang)
	if lang == metric.LangEN {
		return fmt.Sprintf("%s: no data in the last %d days", name, days)
	}
	return fmt.Sprintf("%s：最近%d天没有数据", name, days)
}

func scoreFact(score float64, lang metric.Lang) string {
	if lang == metric.LangEN {
		return fmt.Sprintf("Overall health score: %.1f/100", score)
	}
	return fmt.Sprintf("整体健康评分：%.1f/100", score)
}

func insightFacts(insights []insight.Insight) []string {
	lines := make([]string, 0, len(insights))
	for _, in := range insights {
		lines = append(lines, "- "+in.Title+": "+in.Description)
	}
	return lines
}

func percent(rate float64) string {
	return fmt.Sprintf("%+.1f%%", rate*100)
}

func assessmentZH(a metric.Assessment) string {
	switch a {
	case metric.AssessmentLow:
		return "偏低"
	case metric.AssessmentHigh:
		return "偏高"
	case metric.AssessmentNormal:
		return "正常"
	default:
		return "无参考范围"
	}
}

func joinFacts(lines []string) string {
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
