package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"clearcord/internal/model"
	"clearcord/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// StartRun inserts a new run row and returns its id.
func (s *SQLite) StartRun(ctx context.Context, mode model.Mode, dryRun bool) (int64, error) {
	now := time.Now().UTC().Format(timeLayout)
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (mode, dry_run, started_at) VALUES (?, ?, ?)`,
		string(mode), boolToInt(dryRun), now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// RecordTarget inserts the aggregated result of one completed target.
func (s *SQLite) RecordTarget(ctx context.Context, runID int64, target model.Target, sum model.BatchSummary) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO target_results (run_id, kind, channel_id, name, edited, deleted, skipped, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, string(target.Kind), target.ChannelID, target.DisplayName(),
		sum.Edited, sum.Deleted, sum.Skipped, now,
	)
	if err != nil {
		return fmt.Errorf("insert target result: %w", err)
	}
	return nil
}

// FinishRun stamps the run as finished and stores the final counters.
func (s *SQLite) FinishRun(ctx context.Context, runID int64, stats model.RunStatistics) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs
		 SET finished_at = ?, completed = ?, edited = ?, failed = ?, skipped = ?, rate_limited = ?, already_gone = ?
		 WHERE id = ?`,
		now, stats.Completed, stats.Edited, stats.Failed, stats.Skipped,
		stats.RateLimited, stats.AlreadyGone, runID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLite) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mode, dry_run, started_at, finished_at,
		        completed, edited, failed, skipped, rate_limited, already_gone
		 FROM runs ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			mode       string
			dryRun     int
			startedAt  string
			finishedAt sql.NullString
		)
		if err := rows.Scan(&r.ID, &mode, &dryRun, &startedAt, &finishedAt,
			&r.Completed, &r.Edited, &r.Failed, &r.Skipped, &r.RateLimited, &r.AlreadyGone); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Mode = model.Mode(mode)
		r.DryRun = dryRun != 0
		r.StartedAt, _ = time.Parse(timeLayout, startedAt)
		if finishedAt.Valid {
			t, _ := time.Parse(timeLayout, finishedAt.String)
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListTargetResults returns the target results of a run in completion order.
func (s *SQLite) ListTargetResults(ctx context.Context, runID int64) ([]TargetResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, kind, channel_id, name, edited, deleted, skipped, finished_at
		 FROM target_results WHERE run_id = ? ORDER BY id`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query target results: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []TargetResult
	for rows.Next() {
		var (
			tr         TargetResult
			kind       string
			finishedAt string
		)
		if err := rows.Scan(&tr.ID, &tr.RunID, &kind, &tr.ChannelID, &tr.Name,
			&tr.Edited, &tr.Deleted, &tr.Skipped, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan target result: %w", err)
		}
		tr.Kind = model.TargetKind(kind)
		tr.FinishedAt, _ = time.Parse(timeLayout, finishedAt)
		results = append(results, tr)
	}
	return results, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
