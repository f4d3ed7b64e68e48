package assistant

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/conversation"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/intent"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
)

const (
	metaSource            = "source"
	metaConfidence        = "confidence"
	metaIntent            = "intent"
	metaNotice            = "notice"
	metaClarificationKind = "clarification_kind"
	metaOriginalQuery     = "original_query"
	metaOptions           = "options"
)

var intentKeywords = map[intent.Kind][2]string{
	intent.KindTrend:          {"趋势", "trend"},
	intent.KindCompare:        {"对比", "compare"},
	intent.KindOverview:       {"整体概况", "overview"},
	intent.KindRecommendation: {"建议", "advice"},
}

func clarificationMetadata(original string, c conversation.Clarification) map[string]string {
	meta := map[string]string{
		metaClarificationKind: string(c.Ambiguity.Kind),
		metaOriginalQuery:     original,
	}
	if len(c.Options) > 0 {
		if raw, err := json.Marshal(c.Options); err == nil {
			meta[metaOptions] = string(raw)
		}
	}
	return meta
}

// resolveFollowUp folds an answer to the previous clarification back into the
// question that triggered it. ok is false when the last message was not a
// clarification.
func resolveFollowUp(prior *conversation.Context, reply string, lang metric.Lang) (string, bool) {
	if prior == nil || len(prior.Messages) == 0 {
		return reply, false
	}
	last := prior.Messages[len(prior.Messages)-1]
	kind := conversation.AmbiguityKind(last.Metadata[metaClarificationKind])
	original := last.Metadata[metaOriginalQuery]
	if last.Role != conversation.RoleAssistant || kind == "" || original == "" {
		return reply, false
	}

	var options []conversation.Option
	if raw := last.Metadata[metaOptions]; raw != "" {
		_ = json.Unmarshal([]byte(raw), &options)
	}
	trimmed := strings.TrimSpace(reply)
	if chosen, ok := matchOption(options, trimmed); ok {
		return expandChoice(kind, original, chosen, lang), true
	}

	// A self-contained question replaces the one being clarified.
	if parsed, ok := intent.Parse(trimmed); ok && parsed.HasMetric() && intent.HasSpecificMetric(intent.Normalize(trimmed)) {
		return trimmed, true
	}
	return original + " " + trimmed, true
}

func matchOption(options []conversation.Option, reply string) (conversation.Option, bool) {
	for _, opt := range options {
		if strings.EqualFold(reply, opt.Value) || strings.EqualFold(reply, opt.Label) {
			return opt, true
		}
	}
	if n, err := strconv.Atoi(reply); err == nil && n >= 1 && n <= len(options) {
		return options[n-1], true
	}
	return conversation.Option{}, false
}

func expandChoice(kind conversation.AmbiguityKind, original string, chosen conversation.Option, lang metric.Lang) string {
	switch kind {
	case conversation.AmbiguousMetric:
		return original + " " + metric.Kind(chosen.Value).Name(lang)
	case conversation.AmbiguousTimeframe:
		days, err := strconv.Atoi(chosen.Value)
		if err != nil {
			return original
		}
		if lang == metric.LangEN {
			return fmt.Sprintf("%s %d days", original, days)
		}
		return fmt.Sprintf("%s %d天", original, days)
	case conversation.VagueQuestion:
		words, ok := intentKeywords[intent.Kind(chosen.Value)]
		if !ok {
			return original
		}
		if lang == metric.LangEN {
			return original + " " + words[1]
		}
		return original + " " + words[0]
	case conversation.MultipleIntents:
		return chosen.Value
	default:
		return original + " " + chosen.Label
	}
}
