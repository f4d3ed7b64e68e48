package conversation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

var ErrSessionNotFound = errors.New("session not found")

// Saver persists session summaries. Save is called when a session ends or is
// replaced; history is never read back to resume a session.
type Saver interface {
	Save(ctx context.Context, summary Summary) error
}

// Registry owns the live sessions. Each subject has at most one current
// session; starting a new one archives the previous.
type Registry struct {
	mu        sync.Mutex
	sessions  map[string]*Session
	bySubject map[string]string
	saver     Saver
	now       func() time.Time
	logger    zerolog.Logger
}

type RegistryOption func(*Registry)

func WithClock(now func() time.Time) RegistryOption {
	return func(r *Registry) { r.now = now }
}

func WithLogger(logger zerolog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

func NewRegistry(saver Saver, opts ...RegistryOption) *Registry {
	r := &Registry{
		sessions:  make(map[string]*Session),
		bySubject: make(map[string]string),
		saver:     saver,
		now:       time.Now,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start archives the subject's current session, if any, and opens a new one.
func (r *Registry) Start(ctx context.Context, subject string) (*Session, error) {
	r.mu.Lock()
	previous := r.detachLocked(r.bySubject[subject])
	s := NewSession(uuid.NewString(), subject, r.now())
	r.sessions[s.ID] = s
	r.bySubject[subject] = s.ID
	r.mu.Unlock()

	if previous != nil {
		if err := r.archive(ctx, previous); err != nil {
			return s, err
		}
	}
	r.logger.Info().Str("session_id", s.ID).Str("subject", subject).Msg("session started")
	return s, nil
}

// Current returns the subject's session, starting one when none exists.
func (r *Registry) Current(subject string) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.bySubject[subject]; ok {
		return r.sessions[id]
	}
	s := NewSession(uuid.NewString(), subject, r.now())
	r.sessions[s.ID] = s
	r.bySubject[subject] = s.ID
	r.logger.Info().Str("session_id", s.ID).Str("subject", subject).Msg("session started")
	return s
}

// Get returns a session only to the subject that owns it.
func (r *Registry) Get(id, subject string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.Subject != subject {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// End archives and forgets the session.
func (r *Registry) End(ctx context.Context, id, subject string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if !ok || s.Subject != subject {
		r.mu.Unlock()
		return ErrSessionNotFound
	}
	r.detachLocked(id)
	r.mu.Unlock()
	return r.archive(ctx, s)
}

// SweepIdle archives sessions with no activity for longer than maxIdle and
// returns how many were closed. Sessions with turns in flight are kept.
func (r *Registry) SweepIdle(ctx context.Context, maxIdle time.Duration) int {
	now := r.now()
	r.mu.Lock()
	var idle []*Session
	for id, s := range r.sessions {
		if s.Pending() > 0 || now.Sub(s.LastActivity()) <= maxIdle {
			continue
		}
		idle = append(idle, r.detachLocked(id))
	}
	r.mu.Unlock()

	for _, s := range idle {
		if err := r.archive(ctx, s); err != nil {
			r.logger.Warn().Err(err).Str("session_id", s.ID).Msg("archive idle session failed")
		}
	}
	return len(idle)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) detachLocked(id string) *Session {
	if id == "" {
		return nil
	}
	s, ok := r.sessions[id]
	if !ok {
		return nil
	}
	delete(r.sessions, id)
	if r.bySubject[s.Subject] == id {
		delete(r.bySubject, s.Subject)
	}
	return s
}

func (r *Registry) archive(ctx context.Context, s *Session) error {
	if r.saver == nil {
		return nil
	}
	summary := s.Summary()
	if err := r.saver.Save(ctx, summary); err != nil {
		return err
	}
	r.logger.Info().
		Str("session_id", s.ID).
		Int("message_count", summary.MessageCount).
		Msg("session archived")
	return nil
}
