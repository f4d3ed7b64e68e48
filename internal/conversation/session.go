package conversation

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTicketDone is returned when a ticket is committed or aborted twice.
var ErrTicketDone = errors.New("turn ticket already settled")

// Ticket marks a turn's position in its session's arrival order.
type Ticket uint64

// Session owns one Context. Turns may overlap their I/O, but their mutations
// are applied strictly in the order Begin handed out tickets: Commit blocks
// until every earlier ticket has been committed or aborted.
type Session struct {
	ID      string
	Subject string

	mu       sync.Mutex
	state    *Context
	next     Ticket
	serving  Ticket
	aborted  map[Ticket]bool
	advanced chan struct{}
}

func NewSession(id, subject string, now time.Time) *Session {
	return &Session{
		ID:       id,
		Subject:  subject,
		state:    NewContext(id, now),
		aborted:  make(map[Ticket]bool),
		advanced: make(chan struct{}),
	}
}

// Begin reserves the next commit slot and returns a snapshot of the context
// as of that moment, for ambiguity checks and prompt building.
func (s *Session) Begin() (Ticket, *Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.next
	s.next++
	return t, s.state.Clone()
}

// Commit waits for t's turn and applies fn to the live context. If ctx is
// cancelled first, the ticket is aborted and nothing is applied.
func (s *Session) Commit(ctx context.Context, t Ticket, fn func(*Context)) error {
	for {
		s.mu.Lock()
		if t < s.serving || s.aborted[t] {
			s.mu.Unlock()
			return ErrTicketDone
		}
		if t == s.serving {
			fn(s.state)
			s.advanceLocked()
			s.mu.Unlock()
			return nil
		}
		wait := s.advanced
		s.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			s.Abort(t)
			return ctx.Err()
		}
	}
}

// Abort releases t without mutating the context.
func (s *Session) Abort(t Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t < s.serving || t >= s.next {
		return
	}
	if t == s.serving {
		s.advanceLocked()
		return
	}
	s.aborted[t] = true
}

// Snapshot returns a copy of the current context.
func (s *Session) Snapshot() *Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Pending counts tickets handed out but not yet settled.
func (s *Session) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.next - s.serving)
}

func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.LastActivity
}

func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Summary(s.Subject)
}

func (s *Session) advanceLocked() {
	s.serving++
	for s.aborted[s.serving] {
		delete(s.aborted, s.serving)
		s.serving++
	}
	close(s.advanced)
	s.advanced = make(chan struct{})
}
