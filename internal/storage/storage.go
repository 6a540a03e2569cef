// Package storage defines the run-history persistence interface and its
// implementations.
package storage

import (
	"context"
	"time"

	"clearcord/internal/model"
)

// Run is one recorded execution of the batch runner.
type Run struct {
	ID          int64
	Mode        model.Mode
	DryRun      bool
	StartedAt   time.Time
	FinishedAt  *time.Time
	Completed   int
	Edited      int
	Failed      int
	Skipped     int
	RateLimited int
	AlreadyGone int
}

// TargetResult is the aggregated outcome of one completed target within a
// run.
type TargetResult struct {
	ID         int64
	RunID      int64
	Kind       model.TargetKind
	ChannelID  string
	Name       string
	Edited     int
	Deleted    int
	Skipped    int
	FinishedAt time.Time
}

// Storage is the interface for all run-history operations.
type Storage interface {
	StartRun(ctx context.Context, mode model.Mode, dryRun bool) (int64, error)
	RecordTarget(ctx context.Context, runID int64, target model.Target, sum model.BatchSummary) error
	FinishRun(ctx context.Context, runID int64, stats model.RunStatistics) error

	ListRuns(ctx context.Context, limit int) ([]Run, error)
	ListTargetResults(ctx context.Context, runID int64) ([]TargetResult, error)

	Close() error
}
