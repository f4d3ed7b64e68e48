package sessionstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/conversation"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
}

// PGSaver upserts summaries into "ConversationSummary", next to the metric
// tables the store reads.
type PGSaver struct {
	db Execer
}

func NewPGSaver(db Execer) *PGSaver {
	return &PGSaver{db: db}
}

const createConversationSummaryTable = `
CREATE TABLE IF NOT EXISTS "ConversationSummary" (
	id TEXT PRIMARY KEY,
	"subjectId" TEXT NOT NULL,
	"startTime" TIMESTAMPTZ NOT NULL,
	"lastActivity" TIMESTAMPTZ NOT NULL,
	"messageCount" INTEGER NOT NULL,
	topics TEXT[] NOT NULL DEFAULT '{}',
	"metricsDiscussed" TEXT[] NOT NULL DEFAULT '{}'
)`

// EnsureSchema creates the summary table when it is missing.
func (p *PGSaver) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.Exec(ctx, createConversationSummaryTable); err != nil {
		return fmt.Errorf("create ConversationSummary: %w", err)
	}
	return nil
}

func (p *PGSaver) Save(ctx context.Context, summary conversation.Summary) error {
	if summary.ID == "" {
		return errors.New("summary id is required")
	}
	topics := summary.Topics
	if topics == nil {
		topics = []string{}
	}
	metrics := summary.MetricsDiscussed
	if metrics == nil {
		metrics = []string{}
	}

	_, err := p.db.Exec(
		ctx,
		`INSERT INTO "ConversationSummary" (
		   id, "subjectId", "startTime", "lastActivity", "messageCount", topics, "metricsDiscussed"
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE SET
		   "lastActivity" = EXCLUDED."lastActivity",
		   "messageCount" = EXCLUDED."messageCount",
		   topics = EXCLUDED.topics,
		   "metricsDiscussed" = EXCLUDED."metricsDiscussed"`,
		summary.ID,
		summary.Subject,
		summary.StartTime.UTC(),
		summary.LastActivity.UTC(),
		summary.MessageCount,
		topics,
		metrics,
	)
	if err != nil {
		return fmt.Errorf("save conversation summary: %w", err)
	}
	return nil
}
