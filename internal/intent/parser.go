// Package intent maps free-text health questions to a closed set of
// analytic operations using bilingual keyword matching.
package intent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
)

type Kind string

const (
	KindTrend          Kind = "trend"
	KindCompare        Kind = "compare"
	KindSummary        Kind = "summary"
	KindCurrentValue   Kind = "currentValue"
	KindGoal           Kind = "goal"
	KindOverview       Kind = "overview"
	KindInsights       Kind = "insights"
	KindRecommendation Kind = "recommendation"
)

// Intent is a tagged variant: Kind selects which of the other fields carry
// meaning. Metric is empty when the variant allows it to be absent (Summary,
// Insights focus, Recommendation).
type Intent struct {
	Kind   Kind        `json:"kind"`
	Metric metric.Kind `json:"metric,omitempty"`
	Days   int         `json:"days,omitempty"`
	Target *float64    `json:"target,omitempty"`
}

func (i Intent) HasMetric() bool {
	return i.Metric != ""
}

func (i Intent) String() string {
	switch i.Kind {
	case KindTrend, KindCompare:
		return fmt.Sprintf("%s(%s,%d)", titleCase(i.Kind), i.Metric, i.Days)
	case KindSummary:
		if !i.HasMetric() {
			return fmt.Sprintf("Summary(%d)", i.Days)
		}
		return fmt.Sprintf("Summary(%s,%d)", i.Metric, i.Days)
	case KindCurrentValue:
		return fmt.Sprintf("CurrentValue(%s)", i.Metric)
	case KindGoal:
		if i.Target == nil {
			return fmt.Sprintf("Goal(%s)", i.Metric)
		}
		return fmt.Sprintf("Goal(%s,%s)", i.Metric, strconv.FormatFloat(*i.Target, 'f', -1, 64))
	case KindOverview:
		return "Overview"
	case KindInsights, KindRecommendation:
		if !i.HasMetric() {
			return titleCase(i.Kind)
		}
		return fmt.Sprintf("%s(%s)", titleCase(i.Kind), i.Metric)
	default:
		return string(i.Kind)
	}
}

func titleCase(k Kind) string {
	s := string(k)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

type rule struct {
	kind          Kind
	keywords      []string
	requireMetric bool
}

// rules are in priority order: the first rule whose keywords match and whose
// metric requirement is satisfied decides the intent.
var rules = []rule{
	{KindCurrentValue, currentKeywords, true},
	{KindGoal, goalKeywords, true},
	{KindOverview, overviewKeywords, false},
	{KindInsights, insightsKeywords, false},
	{KindRecommendation, recommendationKeywords, false},
	{KindSummary, summaryKeywords, false},
	{KindCompare, compareKeywords, true},
	{KindTrend, trendKeywords, true},
}

var (
	numberPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)
	// countPattern needs a non-digit before the count so "17天" never reads as "7天".
	countPattern  = regexp.MustCompile(`(?:^|[^\d.])(\d+)\s*-?\s*(天|个星期|星期|周|个月|days?|weeks?|months?)`)
)

const numeralRunes = "0123456789一二三四五六七八九十两百"

// Parse never fails; ok is false when no intent can be built from text and the
// caller should fall back to free-form generation.
func Parse(text string) (Intent, bool) {
	normalized := Normalize(text)
	if normalized == "" {
		return Intent{}, false
	}
	kind, hasMetric := DetectMetric(normalized)
	days := DetectDays(normalized)

	for _, r := range rules {
		if !containsAny(normalized, r.keywords) {
			continue
		}
		if r.requireMetric && !hasMetric {
			continue
		}
		return build(r.kind, kind, days, normalized), true
	}

	if hasMetric {
		return Intent{Kind: KindTrend, Metric: kind, Days: days}, true
	}
	return Intent{}, false
}

func build(k Kind, kind metric.Kind, days int, normalized string) Intent {
	switch k {
	case KindCurrentValue:
		return Intent{Kind: k, Metric: kind}
	case KindGoal:
		return Intent{Kind: k, Metric: kind, Target: firstPositiveNumber(normalized)}
	case KindOverview:
		return Intent{Kind: k, Days: days}
	default:
		return Intent{Kind: k, Metric: kind, Days: days}
	}
}

// Normalize lower-cases and trims text. Matching is substring based, so no
// further tokenization is needed for mixed Chinese and English input.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// DetectMetric returns the first metric whose synonym appears in normalized text.
func DetectMetric(normalized string) (metric.Kind, bool) {
	for _, group := range metricSynonyms {
		if containsAny(normalized, group.phrases) {
			return group.kind, true
		}
	}
	return "", false
}

// HasSpecificMetric reports whether text names a metric through a phrase that
// identifies exactly one kind.
func HasSpecificMetric(normalized string) bool {
	for _, group := range metricSynonyms {
		if !group.generic && containsAny(normalized, group.phrases) {
			return true
		}
	}
	return false
}

// AsksForOverview reports whether text requests a cross-metric overview or
// insight list, where naming no single metric is expected.
func AsksForOverview(normalized string) bool {
	return containsAny(normalized, overviewKeywords) || containsAny(normalized, insightsKeywords)
}

// Candidates lists every distinct metric with a synonym in normalized text, in
// table order.
func Candidates(normalized string) []metric.Kind {
	seen := make(map[metric.Kind]bool)
	var out []metric.Kind
	for _, group := range metricSynonyms {
		if seen[group.kind] || !containsAny(normalized, group.phrases) {
			continue
		}
		seen[group.kind] = true
		out = append(out, group.kind)
	}
	return out
}

// DetectDays returns DefaultDays when no window phrase is present.
func DetectDays(normalized string) int {
	if days, ok := ExplicitDays(normalized); ok {
		return days
	}
	return DefaultDays
}

// ExplicitDays reports the window the text names, if any. Counted windows
// ("17天", "3 weeks") win over fixed phrases; counts outside 1..MaxDays are
// ignored.
func ExplicitDays(normalized string) (int, bool) {
	for _, m := range countPattern.FindAllStringSubmatch(normalized, -1) {
		count, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		days := count * unitDays(m[2])
		if days >= 1 && days <= MaxDays {
			return days, true
		}
	}
	for _, w := range windowPhrases {
		for _, phrase := range w.phrases {
			if containsWindow(normalized, phrase) {
				return w.days, true
			}
		}
	}
	return 0, false
}

// MetricPhrases exposes every synonym, for callers that need a health keyword list.
func MetricPhrases() []string {
	var out []string
	for _, group := range metricSynonyms {
		out = append(out, group.phrases...)
	}
	return out
}

// containsWindow matches phrase unless it is the tail of a longer number, so
// "十七天" does not read as "七天".
func containsWindow(text, phrase string) bool {
	for offset := 0; offset < len(text); {
		i := strings.Index(text[offset:], phrase)
		if i < 0 {
			return false
		}
		i += offset
		prev, _ := utf8.DecodeLastRuneInString(text[:i])
		if i == 0 || !strings.ContainsRune(numeralRunes, prev) {
			return true
		}
		offset = i + len(phrase)
	}
	return false
}

func firstPositiveNumber(normalized string) *float64 {
	for _, match := range numberPattern.FindAllString(normalized, -1) {
		value, err := strconv.ParseFloat(match, 64)
		if err != nil || value <= 0 {
			continue
		}
		return &value
	}
	return nil
}

func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
