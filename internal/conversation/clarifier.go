package conversation

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/intent"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
)

type AmbiguityKind string

const (
	AmbiguousMetric    AmbiguityKind = "ambiguousMetric"
	AmbiguousTimeframe AmbiguityKind = "ambiguousTimeframe"
	VagueQuestion      AmbiguityKind = "vagueQuestion"
	MissingContext     AmbiguityKind = "missingContext"
	MultipleIntents    AmbiguityKind = "multipleIntents"
)

// Ambiguity is a tagged variant; only the fields of its Kind are set.
type Ambiguity struct {
	Kind        AmbiguityKind `json:"kind"`
	Candidates  []metric.Kind `json:"candidates,omitempty"`
	RawText     string        `json:"raw_text,omitempty"`
	IntentGuess string        `json:"intent_guess,omitempty"`
	Missing     string        `json:"missing,omitempty"`
	Intents     []string      `json:"intents,omitempty"`
	// Clauses holds the text each entry of Intents was parsed from.
	Clauses []string `json:"clauses,omitempty"`
}

type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

type Clarification struct {
	Ambiguity Ambiguity `json:"ambiguity"`
	Question  string    `json:"question"`
	Options   []Option  `json:"options,omitempty"`
	// FreeText means the user should answer in their own words.
	FreeText bool `json:"free_text"`
}

// Decision is either proceed (Clarification nil) or a clarification to ask.
type Decision struct {
	Clarification *Clarification
}

func (d Decision) CanProceed() bool {
	return d.Clarification == nil
}

type genericTerm struct {
	phrases    []string
	candidates []metric.Kind
}

var genericTerms = []genericTerm{
	{[]string{"健康", "身体", "health"}, []metric.Kind{metric.HeartRateAverage, metric.Steps, metric.SleepDurationHours, metric.ActiveEnergy}},
	{[]string{"心脏", "heart"}, []metric.Kind{metric.HeartRateAverage, metric.RestingHeartRate, metric.HeartRateVariability}},
	{[]string{"运动", "锻炼", "activity", "exercise", "workout"}, []metric.Kind{metric.Steps, metric.ActiveEnergy, metric.VO2Max}},
	{[]string{"血压", "blood pressure"}, []metric.Kind{metric.BloodPressureSystolic, metric.BloodPressureDiastolic}},
}

var (
	vagueTimePhrases  = []string{"最近", "近期", "这段时间", "这阵子", "recently", "lately", "these days"}
	namedPeriods      = []string{"今天", "昨天", "前天", "周", "月", "年", "today", "yesterday", "week", "month", "year"}
	vagueOpeners      = []string{"怎么样", "怎样", "如何", "咋样"}
	englishOpeners    = regexp.MustCompile(`\b(how|what about)\b`)
	chinesePronouns   = []string{"它", "这个", "那个", "他们", "它们"}
	englishPronouns   = regexp.MustCompile(`\b(it|that|this|they|them)\b`)
	periodPhrases     = strings.NewReplacer("这个月", " ", "这个星期", " ", "这个周", " ", "this week", " ", "this month", " ", "this year", " ", "this morning", " ")
	clauseSeparators  = "?？。!！;；"
	digitPattern      = regexp.MustCompile(`\d`)
	windowOptionDays  = []int{7, 14, 30}
	minContextHistory = 2
	vagueLengthLimit  = 10
)

// Check runs the ambiguity checks in a fixed order and returns the first hit.
// prior is the session history the question arrives into.
func Check(text string, prior *Context, lang metric.Lang) Decision {
	normalized := intent.Normalize(text)
	if normalized == "" {
		return Decision{}
	}
	checks := []func(string, *Context) (Ambiguity, bool){
		checkMetric,
		checkTimeframe,
		checkVague,
		checkMissingContext,
		checkMultipleIntents,
	}
	for _, check := range checks {
		if amb, ok := check(normalized, prior); ok {
			clarification := buildClarification(amb, lang)
			return Decision{Clarification: &clarification}
		}
	}
	return Decision{}
}

func checkMetric(normalized string, _ *Context) (Ambiguity, bool) {
	if intent.HasSpecificMetric(normalized) || intent.AsksForOverview(normalized) {
		return Ambiguity{}, false
	}
	for _, term := range genericTerms {
		if containsAny(normalized, term.phrases) && len(term.candidates) > 1 {
			return Ambiguity{Kind: AmbiguousMetric, Candidates: term.candidates}, true
		}
	}
	return Ambiguity{}, false
}

func checkTimeframe(normalized string, _ *Context) (Ambiguity, bool) {
	if !containsAny(normalized, vagueTimePhrases) {
		return Ambiguity{}, false
	}
	if _, ok := intent.ExplicitDays(normalized); ok {
		return Ambiguity{}, false
	}
	if digitPattern.MatchString(normalized) || containsAny(normalized, namedPeriods) {
		return Ambiguity{}, false
	}
	return Ambiguity{Kind: AmbiguousTimeframe, RawText: normalized}, true
}

func checkVague(normalized string, _ *Context) (Ambiguity, bool) {
	if contentLength(normalized) >= vagueLengthLimit {
		return Ambiguity{}, false
	}
	if !containsAny(normalized, vagueOpeners) && !englishOpeners.MatchString(normalized) {
		return Ambiguity{}, false
	}
	guess := string(intent.KindOverview)
	if parsed, ok := intent.Parse(normalized); ok {
		guess = parsed.String()
	}
	return Ambiguity{Kind: VagueQuestion, IntentGuess: guess}, true
}

func checkMissingContext(normalized string, prior *Context) (Ambiguity, bool) {
	history := 0
	if prior != nil {
		history = len(prior.Messages)
	}
	if history >= minContextHistory {
		return Ambiguity{}, false
	}
	stripped := periodPhrases.Replace(normalized)
	if !containsAny(stripped, chinesePronouns) && !englishPronouns.MatchString(stripped) {
		return Ambiguity{}, false
	}
	return Ambiguity{Kind: MissingContext, Missing: "referent"}, true
}

// checkMultipleIntents flags questions made of several clauses that each
// parse to a different kind of request.
func checkMultipleIntents(normalized string, _ *Context) (Ambiguity, bool) {
	clauses := strings.FieldsFunc(normalized, func(r rune) bool {
		return strings.ContainsRune(clauseSeparators, r)
	})
	if len(clauses) < 2 {
		return Ambiguity{}, false
	}
	seen := make(map[intent.Kind]bool)
	var intents, sources []string
	for _, clause := range clauses {
		parsed, ok := intent.Parse(clause)
		if !ok || seen[parsed.Kind] {
			continue
		}
		seen[parsed.Kind] = true
		intents = append(intents, parsed.String())
		sources = append(sources, strings.TrimSpace(clause))
	}
	if len(intents) < 2 {
		return Ambiguity{}, false
	}
	return Ambiguity{Kind: MultipleIntents, Intents: intents, Clauses: sources}, true
}

func buildClarification(amb Ambiguity, lang metric.Lang) Clarification {
	zh := lang != metric.LangEN
	c := Clarification{Ambiguity: amb}
	switch amb.Kind {
	case AmbiguousMetric:
		c.Question = pick(zh, "你想了解哪一项指标？", "Which metric do you mean?")
		for _, kind := range amb.Candidates {
			c.Options = append(c.Options, Option{Label: kind.Name(lang), Value: string(kind)})
		}
	case AmbiguousTimeframe:
		c.Question = pick(zh, "你想查看多长时间范围的数据？", "Which time range should I look at?")
		for _, days := range windowOptionDays {
			label := strconv.Itoa(days) + pick(zh, " 天", " days")
			c.Options = append(c.Options, Option{Label: label, Value: strconv.Itoa(days)})
		}
	case VagueQuestion:
		c.Question = pick(zh, "可以具体说说你想了解什么吗？", "Could you tell me a bit more about what you want to know?")
		c.Options = []Option{
			{Label: pick(zh, "最近的变化趋势", "Recent trend"), Value: string(intent.KindTrend)},
			{Label: pick(zh, "和上一周期对比", "Compare with the previous period"), Value: string(intent.KindCompare)},
			{Label: pick(zh, "整体健康概况", "Overall health overview"), Value: string(intent.KindOverview)},
			{Label: pick(zh, "改善建议", "Recommendations"), Value: string(intent.KindRecommendation)},
		}
	case MissingContext:
		c.Question = pick(zh, "你指的是哪一项指标或哪件事？", "What are you referring to?")
		c.FreeText = true
	case MultipleIntents:
		c.Question = pick(zh, "你的问题包含多个请求，先回答哪一个？", "Your message asks several things. Which should I answer first?")
		for i, in := range amb.Intents {
			c.Options = append(c.Options, Option{Label: in, Value: amb.Clauses[i]})
		}
	}
	return c
}

// contentLength counts runes that are neither spaces nor punctuation.
func contentLength(text string) int {
	n := 0
	for _, r := range text {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			continue
		}
		n++
	}
	return n
}

func pick(zh bool, zhText, enText string) string {
	if zh {
		return zhText
	}
	return enText
}

func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
