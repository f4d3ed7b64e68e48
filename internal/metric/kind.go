// Package metric holds the closed set of physiological metric kinds and the
// static metadata the rest of the pipeline looks up by kind.
package metric

import (
	"fmt"
	"math"
	"strings"
	"time"
)

type Kind string

const (
	Steps                  Kind = "steps"
	HeartRateAverage       Kind = "heartRateAverage"
	RestingHeartRate       Kind = "restingHeartRate"
	ActiveEnergy           Kind = "activeEnergy"
	BodyMass               Kind = "bodyMass"
	SleepDurationHours     Kind = "sleepDurationHours"
	HeartRateVariability   Kind = "heartRateVariability"
	HeartRateRecovery      Kind = "heartRateRecovery"
	VO2Max                 Kind = "vo2Max"
	WalkingHeartRate       Kind = "walkingHeartRate"
	OxygenSaturation       Kind = "oxygenSaturation"
	BloodPressureSystolic  Kind = "bloodPressureSystolic"
	BloodPressureDiastolic Kind = "bloodPressureDiastolic"
	BodyTemperature        Kind = "bodyTemperature"
	RespiratoryRate        Kind = "respiratoryRate"
)

type Lang string

const (
	LangZH Lang = "zh"
	LangEN Lang = "en"
)

// NormalizeLang maps free-form language tags onto the supported set.
func NormalizeLang(input string) Lang {
	lowered := strings.ToLower(strings.TrimSpace(input))
	if strings.HasPrefix(lowered, "en") {
		return LangEN
	}
	return LangZH
}

type Category string

const (
	CategoryActivity    Category = "activity"
	CategoryHeart       Category = "heart"
	CategorySleep       Category = "sleep"
	CategoryBody        Category = "body"
	CategoryVitals      Category = "vitals"
	CategoryRespiratory Category = "respiratory"
)

// Aggregation decides how several samples on the same day collapse into one bucket.
type Aggregation int

const (
	AggregateAverage Aggregation = iota
	AggregateSum
)

type Range struct {
	Min float64
	Max float64
}

func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

type Assessment string

const (
	AssessmentUnknown Assessment = "unknown"
	AssessmentLow     Assessment = "low"
	AssessmentNormal  Assessment = "normal"
	AssessmentHigh    Assessment = "high"
)

func (a Assessment) OutOfRange() bool {
	return a == AssessmentLow || a == AssessmentHigh
}

type Info struct {
	Kind           Kind
	Names          map[Lang]string
	Unit           string
	Category       Category
	Normal         *Range
	HigherIsBetter bool
	Aggregation    Aggregation
	// Precision is the number of decimals used when formatting values.
	Precision int
}

func (i Info) Name(lang Lang) string {
	if name, ok := i.Names[lang]; ok && name != "" {
		return name
	}
	return i.Names[LangEN]
}

func (i Info) Assess(value float64) Assessment {
	if i.Normal == nil || math.IsNaN(value) {
		return AssessmentUnknown
	}
	switch {
	case value < i.Normal.Min:
		return AssessmentLow
	case value > i.Normal.Max:
		return AssessmentHigh
	default:
		return AssessmentNormal
	}
}

func (i Info) Format(value float64) string {
	formatted := fmt.Sprintf("%.*f", i.Precision, value)
	if i.Unit == "" {
		return formatted
	}
	return formatted + " " + i.Unit
}

var table = map[Kind]Info{
	Steps: {
		Names:          map[Lang]string{LangZH: "步数", LangEN: "Steps"},
		Unit:           "steps",
		Category:       CategoryActivity,
		Normal:         &Range{Min: 5000, Max: 30000},
		HigherIsBetter: true,
		Aggregation:    AggregateSum,
	},
	HeartRateAverage: {
		Names:     map[Lang]string{LangZH: "平均心率", LangEN: "Average heart rate"},
		Unit:      "bpm",
		Category:  CategoryHeart,
		Normal:    &Range{Min: 60, Max: 100},
		Precision: 1,
	},
	RestingHeartRate: {
		Names:     map[Lang]string{LangZH: "静息心率", LangEN: "Resting heart rate"},
		Unit:      "bpm",
		Category:  CategoryHeart,
		Normal:    &Range{Min: 50, Max: 100},
		Precision: 1,
	},
	ActiveEnergy: {
		Names:          map[Lang]string{LangZH: "活动能量", LangEN: "Active energy"},
		Unit:           "kcal",
		Category:       CategoryActivity,
		Normal:         &Range{Min: 200, Max: 1500},
		HigherIsBetter: true,
		Aggregation:    AggregateSum,
	},
	BodyMass: {
		Names:     map[Lang]string{LangZH: "体重", LangEN: "Body mass"},
		Unit:      "kg",
		Category:  CategoryBody,
		Precision: 1,
	},
	SleepDurationHours: {
		Names:          map[Lang]string{LangZH: "睡眠时长", LangEN: "Sleep duration"},
		Unit:           "h",
		Category:       CategorySleep,
		Normal:         &Range{Min: 7, Max: 9},
		HigherIsBetter: true,
		Aggregation:    AggregateSum,
		Precision:      1,
	},
	HeartRateVariability: {
		Names:          map[Lang]string{LangZH: "心率变异性", LangEN: "Heart rate variability"},
		Unit:           "ms",
		Category:       CategoryHeart,
		Normal:         &Range{Min: 20, Max: 200},
		HigherIsBetter: true,
		Precision:      1,
	},
	HeartRateRecovery: {
		Names:          map[Lang]string{LangZH: "心率恢复", LangEN: "Heart rate recovery"},
		Unit:           "bpm",
		Category:       CategoryHeart,
		Normal:         &Range{Min: 12, Max: 60},
		HigherIsBetter: true,
		Precision:      1,
	},
	VO2Max: {
		Names:          map[Lang]string{LangZH: "最大摄氧量", LangEN: "VO2 max"},
		Unit:           "ml/kg/min",
		Category:       CategoryHeart,
		Normal:         &Range{Min: 30, Max: 70},
		HigherIsBetter: true,
		Precision:      1,
	},
	WalkingHeartRate: {
		Names:     map[Lang]string{LangZH: "步行心率", LangEN: "Walking heart rate"},
		Unit:      "bpm",
		Category:  CategoryHeart,
		Normal:    &Range{Min: 70, Max: 130},
		Precision: 1,
	},
	OxygenSaturation: {
		Names:          map[Lang]string{LangZH: "血氧饱和度", LangEN: "Oxygen saturation"},
		Unit:           "%",
		Category:       CategoryVitals,
		Normal:         &Range{Min: 95, Max: 100},
		HigherIsBetter: true,
		Precision:      1,
	},
	BloodPressureSystolic: {
		Names:    map[Lang]string{LangZH: "收缩压", LangEN: "Systolic blood pressure"},
		Unit:     "mmHg",
		Category: CategoryVitals,
		Normal:   &Range{Min: 90, Max: 120},
	},
	BloodPressureDiastolic: {
		Names:    map[Lang]string{LangZH: "舒张压", LangEN: "Diastolic blood pressure"},
		Unit:     "mmHg",
		Category: CategoryVitals,
		Normal:   &Range{Min: 60, Max: 80},
	},
	BodyTemperature: {
		Names:     map[Lang]string{LangZH: "体温", LangEN: "Body temperature"},
		Unit:      "°C",
		Category:  CategoryVitals,
		Normal:    &Range{Min: 36.1, Max: 37.2},
		Precision: 1,
	},
	RespiratoryRate: {
		Names:     map[Lang]string{LangZH: "呼吸频率", LangEN: "Respiratory rate"},
		Unit:      "breaths/min",
		Category:  CategoryRespiratory,
		Normal:    &Range{Min: 12, Max: 20},
		Precision: 1,
	},
}

var ordered = []Kind{
	Steps,
	HeartRateAverage,
	RestingHeartRate,
	ActiveEnergy,
	BodyMass,
	SleepDurationHours,
	HeartRateVariability,
	HeartRateRecovery,
	VO2Max,
	WalkingHeartRate,
	OxygenSaturation,
	BloodPressureSystolic,
	BloodPressureDiastolic,
	BodyTemperature,
	RespiratoryRate,
}

// All returns every kind in a stable order.
func All() []Kind {
	out := make([]Kind, len(ordered))
	copy(out, ordered)
	return out
}

func Lookup(kind Kind) (Info, bool) {
	info, ok := table[kind]
	if !ok {
		return Info{}, false
	}
	info.Kind = kind
	return info, true
}

// MustLookup is for kinds known at compile time.
func MustLookup(kind Kind) Info {
	info, ok := Lookup(kind)
	if !ok {
		panic("metric: unknown kind " + string(kind))
	}
	return info
}

func (k Kind) Valid() bool {
	_, ok := table[k]
	return ok
}

func (k Kind) Name(lang Lang) string {
	info, ok := Lookup(k)
	if !ok {
		return string(k)
	}
	return info.Name(lang)
}

// Parse accepts the canonical identifier case-insensitively.
func Parse(input string) (Kind, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	for _, kind := range ordered {
		if strings.ToLower(string(kind)) == normalized {
			return kind, true
		}
	}
	return "", false
}

// Sample is one per-day value for a metric.
type Sample struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// StartOfDay truncates to the calendar day in t's own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func AddDays(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, days)
}

func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
