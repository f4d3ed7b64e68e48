package orchestrator

import (
	"strings"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
)

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Prompt is what both providers receive. Facts are the computed aggregates
// and insights for this turn; Health is the still-fresh context from earlier
// turns.
type Prompt struct {
	Query   string
	Lang    metric.Lang
	Facts   string
	Health  string
	History []Turn
}

const (
	maxHistoryTurns   = 8
	maxTurnContentLen = 600
)

func systemPrompt(lang metric.Lang) string {
	if lang == metric.LangEN {
		return strings.Join([]string{
			"You are a personal health data assistant.",
			"Answer only from the user's data below; say when data is missing.",
			"Do not diagnose. Suggest seeing a clinician for concerning values.",
			"Keep answers short and concrete.",
		}, "\n")
	}
	return strings.Join([]string{
		"你是一名个人健康数据助手。",
		"只根据下面提供的用户数据回答；数据缺失时要直接说明。",
		"不要做医学诊断，数值异常时建议咨询医生。",
		"回答简洁、具体。",
	}, "\n")
}

// Context renders everything except the query itself.
func (p Prompt) Context() string {
	en := p.Lang == metric.LangEN
	var b strings.Builder
	b.WriteString(systemPrompt(p.Lang))
	if facts := strings.TrimSpace(p.Facts); facts != "" {
		b.WriteString(section(en, "Data for this question", "本次问题的数据"))
		b.WriteString(facts)
	}
	if health := strings.TrimSpace(p.Health); health != "" {
		b.WriteString(section(en, "Recently discussed values", "最近讨论过的数值"))
		b.WriteString(health)
	}
	history := p.History
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	if len(history) > 0 {
		b.WriteString(section(en, "Conversation so far", "对话记录"))
		for _, turn := range history {
			content := strings.TrimSpace(turn.Content)
			if content == "" {
				continue
			}
			b.WriteString(turn.Role)
			b.WriteString(": ")
			b.WriteString(truncateRunes(content, maxTurnContentLen))
			b.WriteString("\n")
		}
	}
	return strings.TrimSpace(b.String())
}

// Render is the single-string form used by the local model.
func (p Prompt) Render() string {
	en := p.Lang == metric.LangEN
	return p.Context() + section(en, "Question", "问题") + strings.TrimSpace(p.Query)
}

func section(en bool, enTitle, zhTitle string) string {
	if en {
		return "\n\n[" + enTitle + "]\n"
	}
	return "\n\n[" + zhTitle + "]\n"
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if limit <= 0 || len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "…"
}

func truncateForLog(value string, limit int) string {
	trimmed := strings.TrimSpace(value)
	if limit <= 0 || len(trimmed) <= limit {
		return trimmed
	}
	return trimmed[:limit] + "...(truncated)"
}
