package metric

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryKindHasMetadata(t *testing.T) {
	for _, kind := range All() {
		info, ok := Lookup(kind)
		require.True(t, ok, "missing metadata for %s", kind)
		assert.Equal(t, kind, info.Kind)
		assert.NotEmpty(t, info.Name(LangZH), kind)
		assert.NotEmpty(t, info.Name(LangEN), kind)
		assert.NotEmpty(t, info.Unit, kind)
	}
	assert.Len(t, All(), 15)
}

func TestAssess(t *testing.T) {
	info := MustLookup(HeartRateAverage)
	assert.Equal(t, AssessmentLow, info.Assess(45))
	assert.Equal(t, AssessmentNormal, info.Assess(72))
	assert.Equal(t, AssessmentHigh, info.Assess(110))

	mass := MustLookup(BodyMass)
	assert.Equal(t, AssessmentUnknown, mass.Assess(70))
	assert.False(t, mass.Assess(70).OutOfRange())
}

func TestParse(t *testing.T) {
	kind, ok := Parse("  HeartRateAverage ")
	require.True(t, ok)
	assert.Equal(t, HeartRateAverage, kind)

	_, ok = Parse("mood")
	assert.False(t, ok)
}

func TestFormatValues(t *testing.T) {
	assert.Equal(t, "Steps: 8000 steps", Scalar{Kind: Steps, Value: 8000}.Format(LangEN))
	assert.Equal(t, "血压: 118/76 mmHg", BloodPressure{Systolic: 118, Diastolic: 76}.Format(LangZH))
	assert.Contains(t, SleepSummary{Hours: 7.3, Nights: 6}.Format(LangEN), "7.3 h")
}

func TestStartOfDayKeepsLocation(t *testing.T) {
	loc := time.FixedZone("CST", 8*60*60)
	got := StartOfDay(time.Date(2026, 3, 4, 23, 59, 0, 0, loc))
	assert.Equal(t, time.Date(2026, 3, 4, 0, 0, 0, 0, loc), got)
	assert.True(t, SameDay(got, got.Add(23*time.Hour)))
}
