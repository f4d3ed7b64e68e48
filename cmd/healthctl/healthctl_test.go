package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSamples(t *testing.T) string {
	t.Helper()
	var entries []string
	for day := 1; day <= 14; day++ {
		entries = append(entries,
			fmt.Sprintf(`{"metric": "steps", "at": "2026-03-%02dT12:00:00Z", "value": %d}`, day, 8000+100*day),
			fmt.Sprintf(`{"metric": "restingHeartRate", "at": "2026-03-%02dT12:00:00Z", "value": 62}`, day),
		)
	}
	body := `{"samples": [` + strings.Join(entries, ",") + `]}`
	path := filepath.Join(t.TempDir(), "samples.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("REMOTE_AI_URL", "")
	t.Setenv("LOCAL_MODEL_URL", "")
	t.Setenv("DATABASE_URL", "")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTrendCommand(t *testing.T) {
	samples := writeSamples(t)
	out, err := run(t, "trend", "steps", "--samples", samples, "--as-of", "2026-03-14", "--days", "7")
	require.NoError(t, err)

	var trend map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &trend))
	assert.Equal(t, "steps", trend["metric"])
	assert.InDelta(t, 9100, trend["average"], 0.001)
	assert.Len(t, trend["points"], 7)
}

func TestCompareCommand(t *testing.T) {
	samples := writeSamples(t)
	out, err := run(t, "compare", "steps", "--samples", samples, "--as-of", "2026-03-14")
	require.NoError(t, err)

	var comparison map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &comparison))
	assert.InDelta(t, 700, comparison["delta"], 0.001)
}

func TestInsightsCommandYAML(t *testing.T) {
	samples := writeSamples(t)
	out, err := run(t, "insights", "--samples", samples, "--as-of", "2026-03-14", "--lang", "en", "-o", "yaml", "--limit", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "window_days: 7")
	assert.Contains(t, out, "insights:")
}

func TestAskCommandFallsBackWithoutProviders(t *testing.T) {
	samples := writeSamples(t)
	out, err := run(t, "ask", "--samples", samples, "--as-of", "2026-03-14", "--lang", "en", "steps", "trend", "this", "week")
	require.NoError(t, err)

	var result map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	response, ok := result["response"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "fallbackTemplate", response["source"])
}

func TestCommandErrors(t *testing.T) {
	samples := writeSamples(t)

	_, err := run(t, "trend", "mood", "--samples", samples)
	assert.ErrorContains(t, err, "unknown metric")

	_, err = run(t, "trend", "steps", "--samples", samples, "--days", "0")
	assert.ErrorContains(t, err, "--days")

	_, err = run(t, "trend", "steps", "--samples", samples, "--as-of", "14.03.2026")
	assert.ErrorContains(t, err, "--as-of")

	_, err = run(t, "trend", "steps")
	assert.ErrorContains(t, err, "no data source")

	_, err = run(t, "trend", "steps", "--samples", samples, "-o", "xml")
	assert.ErrorContains(t, err, "unsupported output format")
}
