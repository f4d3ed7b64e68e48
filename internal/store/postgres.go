package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/javenisme/s2y-app-iOS-sub000/internal/metric"
)

// Querier is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Querier interface {
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// PGStore reads one subject's samples from the ingestion tables that the
// device/host producers write to.
type PGStore struct {
	db        Querier
	subjectID string
}

func NewPGStore(db Querier, subjectID string) *PGStore {
	return &PGStore{db: db, subjectID: strings.TrimSpace(subjectID)}
}

// ForSubject returns a reader bound to another subject sharing the same pool.
func (p *PGStore) ForSubject(subjectID string) *PGStore {
	return NewPGStore(p.db, subjectID)
}

func (p *PGStore) Authorize(ctx context.Context) error {
	if p.subjectID == "" {
		return ErrAuthorizationDenied
	}
	var granted bool
	err := p.db.QueryRow(
		ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM "HealthConsent"
		   WHERE "subjectId" = $1 AND "grantedAt" IS NOT NULL AND "revokedAt" IS NULL
		 )`,
		p.subjectID,
	).Scan(&granted)
	if err != nil {
		return fmt.Errorf("load health consent: %w", err)
	}
	if !granted {
		return ErrAuthorizationDenied
	}
	return nil
}

func (p *PGStore) ReadSamples(ctx context.Context, kind metric.Kind, start, end time.Time) ([]metric.Sample, error) {
	rows, err := p.db.Query(
		ctx,
		`SELECT "recordedAt", value FROM "MetricSample"
		 WHERE "subjectId" = $1 AND kind = $2 AND "recordedAt" >= $3 AND "recordedAt" < $4
		 ORDER BY "recordedAt" ASC`,
		p.subjectID,
		string(kind),
		start.UTC(),
		end.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loc := start.Location()
	samples := make([]metric.Sample, 0)
	for rows.Next() {
		var recordedAt time.Time
		var value float64
		if err := rows.Scan(&recordedAt, &value); err != nil {
			return nil, err
		}
		samples = append(samples, metric.Sample{Date: recordedAt.In(loc), Value: value})
	}
	return samples, rows.Err()
}

func (p *PGStore) ReadSleepIntervals(ctx context.Context, start, end time.Time) ([]SleepInterval, error) {
	rows, err := p.db.Query(
		ctx,
		`SELECT "startTime", "endTime", stage FROM "SleepInterval"
		 WHERE "subjectId" = $1 AND "endTime" > $2 AND "startTime" < $3
		 ORDER BY "startTime" ASC`,
		p.subjectID,
		start.UTC(),
		end.UTC(),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loc := start.Location()
	intervals := make([]SleepInterval, 0)
	for rows.Next() {
		var startedAt, endedAt time.Time
		var stage string
		if err := rows.Scan(&startedAt, &endedAt, &stage); err != nil {
			return nil, err
		}
		intervals = append(intervals, SleepInterval{
			Start: startedAt.In(loc),
			End:   endedAt.In(loc),
			Stage: SleepStage(stage),
		})
	}
	return intervals, rows.Err()
}

// ValidateSchema fails fast when the ingestion tables are missing columns the
// reader depends on.
func ValidateSchema(ctx context.Context, db Querier) error {
	if db == nil {
		return fmt.Errorf("database handle is nil")
	}

	requiredColumns := []struct {
		table  string
		column string
	}{
		{table: "MetricSample", column: "subjectId"},
		{table: "MetricSample", column: "kind"},
		{table: "MetricSample", column: "recordedAt"},
		{table: "MetricSample", column: "value"},
		{table: "SleepInterval", column: "stage"},
		{table: "HealthConsent", column: "revokedAt"},
	}

	for _, item := range requiredColumns {
		ok, err := columnExists(ctx, db, item.table, item.column)
		if err != nil {
			return fmt.Errorf(
				"failed checking schema for %s.%s: %w",
				item.table,
				item.column,
				err,
			)
		}
		if !ok {
			return fmt.Errorf(
				"required column %s.%s is missing; apply the metric store migrations",
				item.table,
				item.column,
			)
		}
	}
	return nil
}

func columnExists(ctx context.Context, db Querier, tableName, columnName string) (bool, error) {
	table := strings.TrimSpace(tableName)
	column := strings.TrimSpace(columnName)
	if table == "" || column == "" {
		return false, fmt.Errorf("table/column must not be empty")
	}
	var exists bool
	err := db.QueryRow(
		ctx,
		`SELECT EXISTS (
		   SELECT 1
		   FROM information_schema.columns
		   WHERE table_schema = current_schema()
		     AND lower(table_name) = lower($1)
		     AND lower(column_name) = lower($2)
		 )`,
		table,
		column,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
