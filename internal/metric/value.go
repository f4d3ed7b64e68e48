package metric

import "fmt"

// Value is a typed reading held in the conversation health context.
// Implementations: Scalar, BloodPressure, SleepSummary.
type Value interface {
	Format(lang Lang) string
	isValue()
}

type Scalar struct {
	Kind  Kind
	Value float64
}

func (s Scalar) Format(lang Lang) string {
	info, ok := Lookup(s.Kind)
	if !ok {
		return fmt.Sprintf("%.1f", s.Value)
	}
	return info.Name(lang) + ": " + info.Format(s.Value)
}

func (Scalar) isValue() {}

type BloodPressure struct {
	Systolic  float64
	Diastolic float64
}

func (b BloodPressure) Format(lang Lang) string {
	label := "Blood pressure"
	if lang == LangZH {
		label = "血压"
	}
	return fmt.Sprintf("%s: %.0f/%.0f mmHg", label, b.Systolic, b.Diastolic)
}

func (BloodPressure) isValue() {}

type SleepSummary struct {
	Hours float64
	// Nights counts the days that contributed to Hours.
	Nights int
}

func (s SleepSummary) Format(lang Lang) string {
	if lang == LangZH {
		return fmt.Sprintf("睡眠时长: 平均 %.1f 小时 (%d 晚)", s.Hours, s.Nights)
	}
	return fmt.Sprintf("Sleep duration: %.1f h average over %d nights", s.Hours, s.Nights)
}

func (SleepSummary) isValue() {}
