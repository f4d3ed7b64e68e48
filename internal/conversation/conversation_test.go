package conversation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
)

var t0 = time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC)

func TestEvictionKeepsMostRecentMessages(t *testing.T) {
	c := NewContext("s1", t0)
	for i := 0; i < 15; i++ {
		c.Append(NewMessage(RoleUser, "old", t0.Add(time.Duration(i)*time.Minute)))
	}
	require.Len(t, c.Messages, 15)

	later := t0.Add(3 * time.Hour)
	c.Append(NewMessage(RoleUser, "new", later))
	require.Len(t, c.Messages, MinRetained)
	assert.Equal(t, "new", c.Messages[len(c.Messages)-1].Content)
	assert.Equal(t, t0.Add(6*time.Minute), c.Messages[0].Timestamp)
	assert.Equal(t, 16, c.MessageCount)
}

func TestEvictionKeepsRecentMessagesBeyondMinimum(t *testing.T) {
	c := NewContext("s1", t0)
	for i := 0; i < 30; i++ {
		c.Append(NewMessage(RoleUser, "m", t0.Add(time.Duration(i)*time.Minute)))
	}
	assert.Len(t, c.Messages, 30)
}

func TestHealthContextGoesStaleAfterAnHour(t *testing.T) {
	c := NewContext("s1", t0)
	assert.Nil(t, c.RelevantHealth(t0))

	c.UpdateHealth(string(metric.Steps), metric.Scalar{Kind: metric.Steps, Value: 8000}, t0)
	c.UpdateHealth("bloodPressure", metric.BloodPressure{Systolic: 118, Diastolic: 76}, t0)

	fresh := c.RelevantHealth(t0.Add(59 * time.Minute))
	require.Len(t, fresh, 2)
	assert.Equal(t, "- Blood pressure: 118/76 mmHg\n- Steps: 8000 steps", c.RenderHealth(metric.LangEN, t0.Add(time.Minute)))

	assert.Nil(t, c.RelevantHealth(t0.Add(time.Hour)))
	assert.Empty(t, c.RenderHealth(metric.LangEN, t0.Add(2*time.Hour)))
}

func TestSummaryListsTopicsAndMetrics(t *testing.T) {
	c := NewContext("s1", t0)
	c.Append(NewMessage(RoleUser, "hi", t0.Add(time.Minute)))
	c.AddTopic("trend")
	c.UpdateHealth(string(metric.VO2Max), metric.Scalar{Kind: metric.VO2Max, Value: 42}, t0)

	summary := c.Summary("alice")
	assert.Equal(t, "s1", summary.ID)
	assert.Equal(t, "alice", summary.Subject)
	assert.Equal(t, 1, summary.MessageCount)
	assert.Equal(t, []string{"trend", "vo2Max"}, summary.Topics)
	assert.Equal(t, []string{"vo2Max"}, summary.MetricsDiscussed)
	assert.Equal(t, t0.Add(time.Minute), summary.LastActivity)
}

func TestCloneIsIndependent(t *testing.T) {
	c := NewContext("s1", t0)
	c.Append(Message{Role: RoleUser, Content: "a", Timestamp: t0, Metadata: map[string]string{"k": "v"}})
	clone := c.Clone()
	clone.Messages[0].Metadata["k"] = "changed"
	clone.Append(NewMessage(RoleUser, "b", t0))

	assert.Equal(t, "v", c.Messages[0].Metadata["k"])
	assert.Len(t, c.Messages, 1)
}

func TestCommitsApplyInTicketOrder(t *testing.T) {
	s := NewSession("s1", "alice", t0)
	first, _ := s.Begin()
	second, _ := s.Begin()
	third, _ := s.Begin()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, s.Commit(context.Background(), third, func(c *Context) {
			c.Append(NewMessage(RoleUser, "third", t0))
		}))
	}()
	go func() {
		defer wg.Done()
		assert.NoError(t, s.Commit(context.Background(), second, func(c *Context) {
			c.Append(NewMessage(RoleUser, "second", t0))
		}))
	}()

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, s.Snapshot().Messages)
	require.NoError(t, s.Commit(context.Background(), first, func(c *Context) {
		c.Append(NewMessage(RoleUser, "first", t0))
	}))
	wg.Wait()

	var got []string
	for _, m := range s.Snapshot().Messages {
		got = append(got, m.Content)
	}
	assert.Equal(t, []string{"first", "second", "third"}, got)
	assert.Zero(t, s.Pending())
}

func TestAbortedTicketIsSkippedWithoutMutation(t *testing.T) {
	s := NewSession("s1", "alice", t0)
	first, _ := s.Begin()
	second, _ := s.Begin()

	s.Abort(first)
	require.NoError(t, s.Commit(context.Background(), second, func(c *Context) {
		c.Append(NewMessage(RoleAssistant, "ok", t0))
	}))
	assert.Len(t, s.Snapshot().Messages, 1)
	assert.ErrorIs(t, s.Commit(context.Background(), first, func(*Context) {}), ErrTicketDone)
}

func TestCancelledCommitAppendsNothing(t *testing.T) {
	s := NewSession("s1", "alice", t0)
	blocker, _ := s.Begin()
	waiting, _ := s.Begin()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Commit(ctx, waiting, func(c *Context) {
			c.Append(NewMessage(RoleAssistant, "late", t0))
		})
	}()
	cancel()
	err := <-done
	assert.True(t, errors.Is(err, context.Canceled))

	require.NoError(t, s.Commit(context.Background(), blocker, func(c *Context) {
		c.Append(NewMessage(RoleAssistant, "kept", t0))
	}))
	msgs := s.Snapshot().Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, "kept", msgs[0].Content)
	assert.Zero(t, s.Pending())
}

type recordingSaver struct {
	mu    sync.Mutex
	saved []Summary
	err   error
}

func (r *recordingSaver) Save(_ context.Context, summary Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, summary)
	return nil
}

func TestRegistryArchivesPreviousSession(t *testing.T) {
	saver := &recordingSaver{}
	now := t0
	reg := NewRegistry(saver, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	first := reg.Current("alice")
	assert.Same(t, first, reg.Current("alice"))

	second, err := reg.Start(ctx, "alice")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	require.Len(t, saver.saved, 1)
	assert.Equal(t, first.ID, saver.saved[0].ID)

	_, err = reg.Get(second.ID, "mallory")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	got, err := reg.Get(second.ID, "alice")
	require.NoError(t, err)
	assert.Same(t, second, got)

	require.NoError(t, reg.End(ctx, second.ID, "alice"))
	assert.Zero(t, reg.Len())
	assert.ErrorIs(t, reg.End(ctx, second.ID, "alice"), ErrSessionNotFound)
	assert.Len(t, saver.saved, 2)
}

func TestSweepIdleSkipsBusySessions(t *testing.T) {
	saver := &recordingSaver{}
	now := t0
	reg := NewRegistry(saver, WithClock(func() time.Time { return now }))

	idle := reg.Current("alice")
	busy := reg.Current("bob")
	busy.Begin()

	now = t0.Add(2 * time.Hour)
	closed := reg.SweepIdle(context.Background(), time.Hour)
	assert.Equal(t, 1, closed)
	require.Len(t, saver.saved, 1)
	assert.Equal(t, idle.ID, saver.saved[0].ID)
	assert.Equal(t, 1, reg.Len())
}
