package sessionstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/conversation"
)

// SQLiteSaver stores summaries in a local database file for deployments
// without Postgres.
type SQLiteSaver struct {
	db *sql.DB
}

// NewSQLiteSaver opens (and creates, if needed) the database at path.
func NewSQLiteSaver(path string) (*SQLiteSaver, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteSaver{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

func (s *SQLiteSaver) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversation_summaries (
		id TEXT PRIMARY KEY,
		subject TEXT NOT NULL,
		start_time TEXT NOT NULL,
		last_activity TEXT NOT NULL,
		message_count INTEGER NOT NULL,
		topics TEXT NOT NULL,
		metrics_discussed TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_conversation_summaries_subject
		ON conversation_summaries(subject, last_activity DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteSaver) Save(ctx context.Context, summary conversation.Summary) error {
	if summary.ID == "" {
		return errors.New("summary id is required")
	}
	topics, err := encodeList(summary.Topics)
	if err != nil {
		return err
	}
	metrics, err := encodeList(summary.MetricsDiscussed)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversation_summaries
			(id, subject, start_time, last_activity, message_count, topics, metrics_discussed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_activity = excluded.last_activity,
			message_count = excluded.message_count,
			topics = excluded.topics,
			metrics_discussed = excluded.metrics_discussed
	`,
		summary.ID,
		summary.Subject,
		summary.StartTime.UTC().Format(time.RFC3339Nano),
		summary.LastActivity.UTC().Format(time.RFC3339Nano),
		summary.MessageCount,
		topics,
		metrics,
	)
	if err != nil {
		return fmt.Errorf("save conversation summary: %w", err)
	}
	return nil
}

func (s *SQLiteSaver) Get(ctx context.Context, id string) (conversation.Summary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, subject, start_time, last_activity, message_count, topics, metrics_discussed
		FROM conversation_summaries
		WHERE id = ?
	`, id)
	summary, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return conversation.Summary{}, ErrNotFound
	}
	return summary, err
}

// List returns the subject's summaries, most recent activity first.
func (s *SQLiteSaver) List(ctx context.Context, subject string) ([]conversation.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject, start_time, last_activity, message_count, topics, metrics_discussed
		FROM conversation_summaries
		WHERE subject = ?
		ORDER BY last_activity DESC
	`, subject)
	if err != nil {
		return nil, fmt.Errorf("list conversation summaries: %w", err)
	}
	defer rows.Close()

	var out []conversation.Summary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

func (s *SQLiteSaver) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSummary(row rowScanner) (conversation.Summary, error) {
	var (
		summary              conversation.Summary
		startRaw, lastRaw    string
		topicsRaw, metricRaw string
	)
	if err := row.Scan(
		&summary.ID,
		&summary.Subject,
		&startRaw,
		&lastRaw,
		&summary.MessageCount,
		&topicsRaw,
		&metricRaw,
	); err != nil {
		return conversation.Summary{}, err
	}

	var err error
	if summary.StartTime, err = time.Parse(time.RFC3339Nano, startRaw); err != nil {
		return conversation.Summary{}, fmt.Errorf("parse start_time: %w", err)
	}
	if summary.LastActivity, err = time.Parse(time.RFC3339Nano, lastRaw); err != nil {
		return conversation.Summary{}, fmt.Errorf("parse last_activity: %w", err)
	}
	if err := json.Unmarshal([]byte(topicsRaw), &summary.Topics); err != nil {
		return conversation.Summary{}, fmt.Errorf("decode topics: %w", err)
	}
	if err := json.Unmarshal([]byte(metricRaw), &summary.MetricsDiscussed); err != nil {
		return conversation.Summary{}, fmt.Errorf("decode metrics_discussed: %w", err)
	}
	return summary, nil
}

func encodeList(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
