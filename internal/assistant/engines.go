package assistant

import (
	"sync"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/aggregate"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/cache"
	"github.com/javenisme/s2y-app-iOS-sub000/internal/store"
)

// Analytics hands out the aggregation engine that reads one subject's data.
type Analytics interface {
	For(subject string) *aggregate.Engine
}

// EngineSet builds engines lazily, one per subject. Each subject gets its own
// cache namespace so per-metric clears never cross subjects.
type EngineSet struct {
	readerFor func(subject string) store.Reader
	cache     cache.Store
	opts      []aggregate.Option

	mu      sync.Mutex
	engines map[string]*aggregate.Engine
}

func NewEngineSet(readerFor func(subject string) store.Reader, c cache.Store, opts ...aggregate.Option) *EngineSet {
	return &EngineSet{
		readerFor: readerFor,
		cache:     c,
		opts:      opts,
		engines:   make(map[string]*aggregate.Engine),
	}
}

func (s *EngineSet) For(subject string) *aggregate.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.engines[subject]; ok {
		return e
	}
	e := aggregate.NewEngine(s.readerFor(subject), cache.Namespaced(s.cache, subject), s.opts...)
	s.engines[subject] = e
	return e
}
