package sessionstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/conversation"
)

var started = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

func sampleSummary(id, subject string, lastActivity time.Time) conversation.Summary {
	return conversation.Summary{
		ID:               id,
		Subject:          subject,
		StartTime:        started,
		LastActivity:     lastActivity,
		MessageCount:     4,
		Topics:           []string{"steps", "trend"},
		MetricsDiscussed: []string{"steps"},
	}
}

func TestMemorySaverListsBySubject(t *testing.T) {
	ctx := context.Background()
	saver := NewMemorySaver()
	require.NoError(t, saver.Save(ctx, sampleSummary("a", "alice", started.Add(time.Minute))))
	require.NoError(t, saver.Save(ctx, sampleSummary("b", "alice", started.Add(time.Hour))))
	require.NoError(t, saver.Save(ctx, sampleSummary("c", "bob", started)))
	assert.Error(t, saver.Save(ctx, conversation.Summary{}))

	list, err := saver.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].ID)

	_, err = saver.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteSaverUpsertsSummary(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "sessions.db")
	saver, err := NewSQLiteSaver(path)
	require.NoError(t, err)
	t.Cleanup(func() { saver.Close() })

	first := sampleSummary("s1", "alice", started.Add(10*time.Minute))
	require.NoError(t, saver.Save(ctx, first))

	updated := first
	updated.MessageCount = 9
	updated.LastActivity = started.Add(40 * time.Minute)
	updated.Topics = append(updated.Topics, "sleepDurationHours")
	require.NoError(t, saver.Save(ctx, updated))

	got, err := saver.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 9, got.MessageCount)
	assert.True(t, got.StartTime.Equal(started))
	assert.True(t, got.LastActivity.Equal(updated.LastActivity))
	assert.Equal(t, []string{"steps", "trend", "sleepDurationHours"}, got.Topics)

	_, err = saver.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteSaverListsMostRecentFirst(t *testing.T) {
	ctx := context.Background()
	saver, err := NewSQLiteSaver(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { saver.Close() })

	require.NoError(t, saver.Save(ctx, sampleSummary("old", "alice", started.Add(time.Minute))))
	require.NoError(t, saver.Save(ctx, sampleSummary("new", "alice", started.Add(2*time.Hour))))
	empty := sampleSummary("bare", "bob", started)
	empty.Topics = nil
	empty.MetricsDiscussed = nil
	require.NoError(t, saver.Save(ctx, empty))

	list, err := saver.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].ID)
	assert.Equal(t, "old", list[1].ID)

	bob, err := saver.Get(ctx, "bare")
	require.NoError(t, err)
	assert.Empty(t, bob.Topics)
}

func TestSQLiteSaverArchivesFromRegistry(t *testing.T) {
	ctx := context.Background()
	saver, err := NewSQLiteSaver(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { saver.Close() })

	reg := conversation.NewRegistry(saver)
	s := reg.Current("alice")
	require.NoError(t, reg.End(ctx, s.ID, "alice"))

	got, err := saver.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Subject)
}

type recordingExecer struct {
	sql  []string
	args [][]any
}

func (r *recordingExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.sql = append(r.sql, sql)
	r.args = append(r.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestPGSaverUpsertArguments(t *testing.T) {
	db := &recordingExecer{}
	saver := NewPGSaver(db)
	summary := sampleSummary("s1", "alice", started.Add(time.Hour))
	summary.MetricsDiscussed = nil

	require.NoError(t, saver.Save(context.Background(), summary))
	require.Len(t, db.sql, 1)
	assert.Contains(t, db.sql[0], `ON CONFLICT (id) DO UPDATE`)
	args := db.args[0]
	require.Len(t, args, 7)
	assert.Equal(t, "s1", args[0])
	assert.Equal(t, "alice", args[1])
	assert.Equal(t, 4, args[4])
	assert.Equal(t, []string{}, args[6])

	assert.Error(t, saver.Save(context.Background(), conversation.Summary{}))
}

func TestPGSaverAgainstDatabase(t *testing.T) {
	url := strings.TrimSpace(os.Getenv("TEST_DATABASE_URL"))
	if url == "" {
		t.Skip("integration tests skipped: TEST_DATABASE_URL is not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	saver := NewPGSaver(pool)
	require.NoError(t, saver.EnsureSchema(ctx))
	summary := sampleSummary("pg-"+started.Format("150405"), "alice", started.Add(time.Hour))
	require.NoError(t, saver.Save(ctx, summary))
	summary.MessageCount = 12
	require.NoError(t, saver.Save(ctx, summary))

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT "messageCount" FROM "ConversationSummary" WHERE id = $1`, summary.ID).Scan(&count))
	assert.Equal(t, 12, count)
	_, err = pool.Exec(ctx, `DELETE FROM "ConversationSummary" WHERE id = $1`, summary.ID)
	require.NoError(t, err)
}
