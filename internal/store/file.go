package store

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
)

// SampleFile is the JSON export format read by LoadFile.
type SampleFile struct {
	Authorized *bool           `json:"authorized,omitempty"`
	Samples    []FileSample    `json:"samples"`
	Sleep      []FileSleepSpan `json:"sleep,omitempty"`
}

type FileSample struct {
	Metric string    `json:"metric"`
	At     time.Time `json:"at"`
	Value  float64   `json:"value"`
}

type FileSleepSpan struct {
	Start time.Time  `json:"start"`
	End   time.Time  `json:"end"`
	Stage SleepStage `json:"stage"`
}

// LoadFile builds a MemoryStore from a JSON sample export. Unknown metrics and
// inverted sleep spans are rejected with their position.
func LoadFile(r io.Reader) (*MemoryStore, error) {
	var file SampleFile
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode sample file: %w", err)
	}

	m := NewMemoryStore()
	for i, s := range file.Samples {
		kind, ok := metric.Parse(s.Metric)
		if !ok {
			return nil, fmt.Errorf("samples[%d]: unknown metric %q", i, s.Metric)
		}
		m.Add(kind, s.At, s.Value)
	}
	for i, span := range file.Sleep {
		if !span.End.After(span.Start) {
			return nil, fmt.Errorf("sleep[%d]: end must be after start", i)
		}
		stage := span.Stage
		if stage == "" {
			stage = StageAsleepUnspecified
		}
		m.AddSleep(span.Start, span.End, stage)
	}
	if file.Authorized != nil {
		m.SetAuthorized(*file.Authorized)
	}
	return m, nil
}
