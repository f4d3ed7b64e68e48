// Package insight turns aggregation results into a ranked list of typed
// observations.
package insight

import (
	"bytes"
	"fmt"
	"math"
	"sort"

	"github.com/rs/zerolog"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/aggregate"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
)

type Type string

const (
	TypeTrend          Type = "trend"
	TypeAlert          Type = "alert"
	TypeCorrelation    Type = "correlation"
	TypeRecommendation Type = "recommendation"
	TypeAchievement    Type = "achievement"
	TypeGoal           Type = "goal"
)

const (
	// ChangeThreshold is the |changeRate| above which a trend is reported.
	ChangeThreshold = 0.10
	// InlineLimit caps the insights embedded in a single response.
	InlineLimit = 5

	importanceAlert          = 0.9
	importanceRecommendation = 0.8
	importanceAchievement    = 0.7
	importanceGoal           = 0.6
	importanceGoalReached    = 0.75
	importanceFallback       = 0.3
)

type Insight struct {
	Title         string      `json:"title"`
	Description   string      `json:"description"`
	Type          Type        `json:"type"`
	Importance    float64     `json:"importance"`
	RelatedMetric metric.Kind `json:"related_metric,omitempty"`
}

type Options struct {
	Lang metric.Lang
	// Focus restricts per-metric rules to one metric and correlations to
	// pairs that include it.
	Focus metric.Kind
	// Goals holds daily targets keyed by metric.
	Goals map[metric.Kind]float64
}

type Generator struct {
	recommendations Recommendations
	logger          zerolog.Logger
}

type GeneratorOption func(*Generator)

func WithRecommendations(r Recommendations) GeneratorOption {
	return func(g *Generator) { g.recommendations = r }
}

func WithLogger(logger zerolog.Logger) GeneratorOption {
	return func(g *Generator) { g.logger = logger }
}

func NewGenerator(opts ...GeneratorOption) (*Generator, error) {
	g := &Generator{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(g)
	}
	if g.recommendations == nil {
		recs, err := LoadRecommendations(bytes.NewReader(defaultRecommendations))
		if err != nil {
			return nil, err
		}
		g.recommendations = recs
	}
	return g, nil
}

// Generate never returns an empty list. Metrics whose aggregation failed are
// skipped. The result is sorted by importance, ties keeping insertion order.
func (g *Generator) Generate(aggregates map[metric.Kind]aggregate.Aggregate, opts Options) []Insight {
	lang := opts.Lang
	if lang == "" {
		lang = metric.LangZH
	}

	var usable []metric.Kind
	for _, kind := range metric.All() {
		agg, ok := aggregates[kind]
		if !ok {
			continue
		}
		if !agg.Usable() {
			if agg.Err != nil {
				g.logger.Debug().Err(agg.Err).Str("metric", string(kind)).Msg("skipping metric")
			}
			continue
		}
		usable = append(usable, kind)
	}

	var out []Insight
	for _, kind := range usable {
		if opts.Focus != "" && kind != opts.Focus {
			continue
		}
		agg := aggregates[kind]
		info := metric.MustLookup(kind)
		trend := agg.Trend

		if math.Abs(trend.ChangeRate) > ChangeThreshold {
			out = append(out, trendInsight(info, *trend, lang))
		}
		if assessment := info.Assess(trend.Average); assessment.OutOfRange() {
			out = append(out, alertInsight(info, trend.Average, assessment, lang))
		}
		if agg.Comparison != nil && improved(info, *agg.Comparison, trend.Average) {
			out = append(out, achievementInsight(info, *agg.Comparison, lang))
		}
		if target, ok := opts.Goals[kind]; ok && target > 0 {
			out = append(out, goalInsight(info, trend.Average, target, lang))
		}
	}

	out = append(out, g.correlations(aggregates, usable, opts.Focus, lang)...)

	if rec, ok := g.recommendation(aggregates, usable, opts.Focus, lang); ok {
		out = append(out, rec)
	}

	if len(out) == 0 {
		return []Insight{fallbackInsight(lang)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Importance > out[j].Importance
	})
	return out
}

// Top returns at most n insights from an already ranked list.
func Top(insights []Insight, n int) []Insight {
	if n < 0 || len(insights) <= n {
		return insights
	}
	return insights[:n]
}

func (g *Generator) correlations(aggregates map[metric.Kind]aggregate.Aggregate, usable []metric.Kind, focus metric.Kind, lang metric.Lang) []Insight {
	var out []Insight
	for i := 0; i < len(usable); i++ {
		for j := i + 1; j < len(usable); j++ {
			a, b := usable[i], usable[j]
			if focus != "" && a != focus && b != focus {
				continue
			}
			x, y, ok := aligned(aggregates[a].Trend.Points, aggregates[b].Trend.Points)
			if !ok {
				continue
			}
			r, ok := Pearson(x, y)
			if !ok || math.Abs(r) <= CorrelationThreshold {
				continue
			}
			out = append(out, correlationInsight(a, b, r, lang))
		}
	}
	return out
}

// recommendation picks the single most degraded metric: out of range counts
// one point, a falling trend adds its magnitude.
func (g *Generator) recommendation(aggregates map[metric.Kind]aggregate.Aggregate, usable []metric.Kind, focus metric.Kind, lang metric.Lang) (Insight, bool) {
	var (
		worst    metric.Kind
		severity float64
	)
	for _, kind := range usable {
		if focus != "" && kind != focus {
			continue
		}
		info := metric.MustLookup(kind)
		trend := aggregates[kind].Trend
		outOfRange := info.Assess(trend.Average).OutOfRange()
		falling := trend.ChangeRate < -ChangeThreshold
		if !outOfRange && !falling {
			continue
		}
		score := math.Max(0, -trend.ChangeRate)
		if outOfRange {
			score++
		}
		if score > severity {
			worst, severity = kind, score
		}
	}
	if worst == "" {
		return Insight{}, false
	}
	text, ok := g.recommendations.Text(worst, lang)
	if !ok {
		g.logger.Warn().Str("metric", string(worst)).Msg("no recommendation text")
		return Insight{}, false
	}
	name := worst.Name(lang)
	title := fmt.Sprintf("Improve your %s", lowerFirst(name))
	if lang == metric.LangZH {
		title = fmt.Sprintf("改善%s", name)
	}
	return Insight{
		Title:         title,
		Description:   text,
		Type:          TypeRecommendation,
		Importance:    importanceRecommendation,
		RelatedMetric: worst,
	}, true
}

func improved(info metric.Info, cmp aggregate.Comparison, average float64) bool {
	if !info.HigherIsBetter || info.Assess(average).OutOfRange() {
		return false
	}
	return cmp.PreviousAverage != 0 && cmp.DeltaRate > ChangeThreshold
}

func trendInsight(info metric.Info, trend aggregate.Trend, lang metric.Lang) Insight {
	name := info.Name(lang)
	rising := trend.ChangeRate > 0
	pct := trend.ChangeRate * 100

	var title, desc string
	if lang == metric.LangZH {
		direction := "下降"
		if rising {
			direction = "上升"
		}
		title = fmt.Sprintf("%s%s", name, direction)
		desc = fmt.Sprintf("过去 %d 天%s变化了 %+.1f%%，平均值 %s。", trend.WindowDays, name, pct, info.Format(trend.Average))
	} else {
		direction := "falling"
		if rising {
			direction = "rising"
		}
		title = fmt.Sprintf("%s %s", name, direction)
		desc = fmt.Sprintf("%s changed %+.1f%% over the last %d days, averaging %s.", name, pct, trend.WindowDays, info.Format(trend.Average))
	}
	return Insight{
		Title:         title,
		Description:   desc,
		Type:          TypeTrend,
		Importance:    math.Min(1, 0.5+math.Abs(trend.ChangeRate)),
		RelatedMetric: info.Kind,
	}
}

func alertInsight(info metric.Info, average float64, assessment metric.Assessment, lang metric.Lang) Insight {
	name := info.Name(lang)
	low := assessment == metric.AssessmentLow

	var title, desc string
	if lang == metric.LangZH {
		level := "偏高"
		if low {
			level = "偏低"
		}
		title = name + level
		desc = fmt.Sprintf("平均%s为 %s，正常范围是 %s 到 %s。", name, info.Format(average), info.Format(info.Normal.Min), info.Format(info.Normal.Max))
	} else {
		level := "high"
		if low {
			level = "low"
		}
		title = fmt.Sprintf("%s is %s", name, level)
		desc = fmt.Sprintf("Average %s is %s; the normal range is %s to %s.", lowerFirst(name), info.Format(average), info.Format(info.Normal.Min), info.Format(info.Normal.Max))
	}
	return Insight{
		Title:         title,
		Description:   desc,
		Type:          TypeAlert,
		Importance:    importanceAlert,
		RelatedMetric: info.Kind,
	}
}

func achievementInsight(info metric.Info, cmp aggregate.Comparison, lang metric.Lang) Insight {
	name := info.Name(lang)
	pct := cmp.DeltaRate * 100
	var title, desc string
	if lang == metric.LangZH {
		title = fmt.Sprintf("%s进步明显", name)
		desc = fmt.Sprintf("与前 %d 天相比，%s提升了 %.1f%%。继续保持！", cmp.PreviousWindowDays, name, pct)
	} else {
		title = fmt.Sprintf("%s improved", name)
		desc = fmt.Sprintf("%s is up %.1f%% compared with the previous %d days. Keep it up!", name, pct, cmp.PreviousWindowDays)
	}
	return Insight{
		Title:         title,
		Description:   desc,
		Type:          TypeAchievement,
		Importance:    importanceAchievement,
		RelatedMetric: info.Kind,
	}
}

func goalInsight(info metric.Info, average, target float64, lang metric.Lang) Insight {
	name := info.Name(lang)
	reached := average >= target
	if !info.HigherIsBetter {
		reached = average <= target
	}
	progress := average / target * 100

	importance := importanceGoal
	var title, desc string
	if lang == metric.LangZH {
		title = fmt.Sprintf("%s目标进度", name)
		desc = fmt.Sprintf("目标 %s，当前平均 %s（%.0f%%）。", info.Format(target), info.Format(average), progress)
		if reached {
			title = fmt.Sprintf("%s目标已达成", name)
		}
	} else {
		title = fmt.Sprintf("%s goal progress", name)
		desc = fmt.Sprintf("Target %s, current average %s (%.0f%%).", info.Format(target), info.Format(average), progress)
		if reached {
			title = fmt.Sprintf("%s goal reached", name)
		}
	}
	if reached {
		importance = importanceGoalReached
	}
	return Insight{
		Title:         title,
		Description:   desc,
		Type:          TypeGoal,
		Importance:    importance,
		RelatedMetric: info.Kind,
	}
}

func correlationInsight(a, b metric.Kind, r float64, lang metric.Lang) Insight {
	nameA, nameB := a.Name(lang), b.Name(lang)
	var title, desc string
	if lang == metric.LangZH {
		relation := "正相关"
		if r < 0 {
			relation = "负相关"
		}
		title = fmt.Sprintf("%s与%s相关", nameA, nameB)
		desc = fmt.Sprintf("%s与%s呈%s（r=%.2f）。", nameA, nameB, relation, r)
	} else {
		relation := "positively"
		if r < 0 {
			relation = "negatively"
		}
		title = fmt.Sprintf("%s and %s move together", nameA, lowerFirst(nameB))
		desc = fmt.Sprintf("%s and %s are %s correlated (r=%.2f).", nameA, lowerFirst(nameB), relation, r)
	}
	return Insight{
		Title:         title,
		Description:   desc,
		Type:          TypeCorrelation,
		Importance:    0.5 + (math.Abs(r) - CorrelationThreshold),
		RelatedMetric: a,
	}
}

func fallbackInsight(lang metric.Lang) Insight {
	if lang == metric.LangZH {
		return Insight{
			Title:       "保持健康习惯",
			Description: "目前各项指标没有明显变化，继续保持规律作息、均衡饮食和适量运动。",
			Type:        TypeRecommendation,
			Importance:  importanceFallback,
		}
	}
	return Insight{
		Title:       "Maintain healthy habits",
		Description: "Nothing stands out right now. Keep up regular sleep, a balanced diet and steady activity.",
		Type:        TypeRecommendation,
		Importance:  importanceFallback,
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'A' && r[0] <= 'Z' && !(len(r) > 1 && r[1] >= 'A' && r[1] <= 'Z') {
		r[0] += 'a' - 'A'
	}
	return string(r)
}
