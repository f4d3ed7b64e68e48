package insight

import (
	_ "embed"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
)

//go:embed recommendations.yaml
var defaultRecommendations []byte

// Recommendations maps a metric to its advice per language.
type Recommendations map[metric.Kind]map[metric.Lang]string

func LoadRecommendations(r io.Reader) (Recommendations, error) {
	var raw map[string]map[string]string
	if err := yaml.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode recommendations: %w", err)
	}
	out := make(Recommendations, len(raw))
	for key, texts := range raw {
		kind, ok := metric.Parse(key)
		if !ok {
			return nil, fmt.Errorf("recommendations: unknown metric %q", key)
		}
		byLang := make(map[metric.Lang]string, len(texts))
		for lang, text := range texts {
			byLang[metric.NormalizeLang(lang)] = text
		}
		out[kind] = byLang
	}
	return out, nil
}

// Text falls back to the other language when lang has no entry.
func (r Recommendations) Text(kind metric.Kind, lang metric.Lang) (string, bool) {
	texts, ok := r[kind]
	if !ok {
		return "", false
	}
	for _, candidate := range []metric.Lang{lang, metric.LangEN, metric.LangZH} {
		if text := texts[candidate]; text != "" {
			return text, true
		}
	}
	return "", false
}
