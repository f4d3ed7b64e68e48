// Package sessionstore persists conversation summaries when a session ends.
// Only the lightweight summary is stored; message history stays in memory.
package sessionstore

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/conversation"
)

var ErrNotFound = errors.New("conversation summary not found")

// MemorySaver keeps summaries in process, keyed by session id.
type MemorySaver struct {
	mu        sync.RWMutex
	summaries map[string]conversation.Summary
}

func NewMemorySaver() *MemorySaver {
	return &MemorySaver{summaries: make(map[string]conversation.Summary)}
}

func (m *MemorySaver) Save(_ context.Context, summary conversation.Summary) error {
	if summary.ID == "" {
		return errors.New("summary id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[summary.ID] = summary
	return nil
}

func (m *MemorySaver) Get(_ context.Context, id string) (conversation.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	summary, ok := m.summaries[id]
	if !ok {
		return conversation.Summary{}, ErrNotFound
	}
	return summary, nil
}

// List returns the subject's summaries, most recent activity first.
func (m *MemorySaver) List(_ context.Context, subject string) ([]conversation.Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []conversation.Summary
	for _, summary := range m.summaries {
		if summary.Subject == subject {
			out = append(out, summary)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out, nil
}
