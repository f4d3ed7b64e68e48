package orchestrator

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
)

//go:embed templates.yaml
var defaultTemplates []byte

type templateEntry struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
	ZH       string   `yaml:"zh"`
	EN       string   `yaml:"en"`
}

func (t templateEntry) text(lang metric.Lang) string {
	if lang == metric.LangEN && t.EN != "" {
		return t.EN
	}
	if t.ZH != "" {
		return t.ZH
	}
	return t.EN
}

// TemplateBank answers from static text when no model can.
type TemplateBank struct {
	Templates []templateEntry `yaml:"templates"`
	Generic   templateEntry   `yaml:"generic"`
}

func LoadTemplates(r io.Reader) (*TemplateBank, error) {
	var bank TemplateBank
	if err := yaml.NewDecoder(r).Decode(&bank); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}
	for i, t := range bank.Templates {
		if len(t.Keywords) == 0 || (t.ZH == "" && t.EN == "") {
			return nil, fmt.Errorf("template %d (%s) needs keywords and text", i, t.Name)
		}
		for j, kw := range t.Keywords {
			bank.Templates[i].Keywords[j] = strings.ToLower(strings.TrimSpace(kw))
		}
	}
	if bank.Generic.ZH == "" && bank.Generic.EN == "" {
		return nil, fmt.Errorf("templates: generic message is required")
	}
	return &bank, nil
}

func DefaultTemplates() *TemplateBank {
	bank, err := LoadTemplates(bytes.NewReader(defaultTemplates))
	if err != nil {
		panic(err)
	}
	return bank
}

// Match returns the first template whose keyword occurs in query.
func (b *TemplateBank) Match(query string, lang metric.Lang) (string, string, bool) {
	lowered := strings.ToLower(query)
	for _, t := range b.Templates {
		for _, kw := range t.Keywords {
			if kw != "" && strings.Contains(lowered, kw) {
				return t.Name, t.text(lang), true
			}
		}
	}
	return "", "", false
}

func (b *TemplateBank) GenericMessage(lang metric.Lang) string {
	return b.Generic.text(lang)
}
