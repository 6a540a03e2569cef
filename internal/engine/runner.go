package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"clearcord/internal/filter"
	"clearcord/internal/model"
)

// ProgressStore persists the run checkpoint.
type ProgressStore interface {
	Save(cp model.Checkpoint) error
	Load() (*model.Checkpoint, error)
}

// History records completed runs and targets for later inspection.
type History interface {
	StartRun(ctx context.Context, mode model.Mode, dryRun bool) (int64, error)
	RecordTarget(ctx context.Context, runID int64, target model.Target, sum model.BatchSummary) error
	FinishRun(ctx context.Context, runID int64, stats model.RunStatistics) error
}

// RunnerParams collects the collaborators and settings for a Runner.
type RunnerParams struct {
	Paginator   *Paginator
	Executor    *Executor
	Store       ProgressStore
	History     History
	UI          UI
	Stats       *model.RunStatistics
	Targets     []model.Target
	Mode        model.Mode
	SearchDelay time.Duration
	DryRun      bool
	Sleep       SleepFunc
	Logger      *slog.Logger
}

// Runner drives the ordered target list to exhaustion, checkpointing after
// every completed target and on cancellation.
type Runner struct {
	paginator   *Paginator
	executor    *Executor
	store       ProgressStore
	history     History
	ui          UI
	stats       *model.RunStatistics
	targets     []model.Target
	mode        model.Mode
	searchDelay time.Duration
	dryRun      bool
	sleep       SleepFunc
	log         *slog.Logger

	// currentIndex is the target being processed. On cancellation it is
	// checkpointed as-is so the unfinished target is reprocessed on resume.
	currentIndex int
}

// NewRunner creates a Runner.
func NewRunner(p RunnerParams) *Runner {
	if p.Sleep == nil {
		p.Sleep = Sleep
	}
	if p.UI == nil {
		p.UI = NopUI{}
	}
	return &Runner{
		paginator:   p.Paginator,
		executor:    p.Executor,
		store:       p.Store,
		history:     p.History,
		ui:          p.UI,
		stats:       p.Stats,
		targets:     p.Targets,
		mode:        p.Mode,
		searchDelay: p.SearchDelay,
		dryRun:      p.DryRun,
		sleep:       p.Sleep,
		log:         p.Logger,
	}
}

// Run processes every enabled target in order, starting from the checkpoint
// when resume is set. It blocks until all targets are exhausted or the
// context is cancelled; in the latter case a checkpoint is written before
// returning.
func (r *Runner) Run(ctx context.Context, resume bool) error {
	start := 0
	if resume {
		cp, err := r.store.Load()
		if err != nil {
			return fmt.Errorf("load checkpoint: %w", err)
		}
		if cp != nil {
			start = cp.CurrentTargetIndex
			*r.stats = cp.Statistics
			r.log.Info("resuming from checkpoint", "target_index", start, "saved_at", cp.SavedAt)
		}
	}
	if r.stats.StartTime.IsZero() {
		r.stats.StartTime = time.Now().UTC()
	}

	runID, err := r.history.StartRun(ctx, r.mode, r.dryRun)
	if err != nil {
		return fmt.Errorf("record run start: %w", err)
	}

	cancelled := false
	r.currentIndex = start
	for i := start; i < len(r.targets); i++ {
		if ctx.Err() != nil {
			cancelled = true
			break
		}
		r.currentIndex = i
		target := r.targets[i]
		r.ui.TargetStarted(i, len(r.targets), target)
		r.log.Info("processing target", "index", i, "target", target.DisplayName())

		sum, err := r.processTarget(ctx, target)
		if err != nil {
			if ctx.Err() != nil {
				cancelled = true
				break
			}
			// A broken target does not stop the run; it is recorded as
			// finished and the next one is attempted.
			r.log.Error("target aborted", "target", target.DisplayName(), "error", err)
		}

		r.currentIndex = i + 1
		if err := r.checkpoint(); err != nil {
			r.log.Error("save checkpoint", "error", err)
		}
		if err := r.history.RecordTarget(ctx, runID, target, sum); err != nil {
			r.log.Error("record target result", "error", err)
		}
	}

	if cancelled {
		r.log.Warn("run cancelled, saving checkpoint", "target_index", r.currentIndex)
		if err := r.checkpoint(); err != nil {
			r.log.Error("save checkpoint", "error", err)
		}
	}

	r.stats.EndTime = time.Now().UTC()
	finishCtx := context.WithoutCancel(ctx)
	if err := r.history.FinishRun(finishCtx, runID, *r.stats); err != nil {
		r.log.Error("record run finish", "error", err)
	}
	r.ui.Summary(*r.stats)
	return nil
}

// processTarget drives one target to exhaustion, returning its aggregated
// batch summary.
func (r *Runner) processTarget(ctx context.Context, target model.Target) (model.BatchSummary, error) {
	cur := &Cursor{}
	var total model.BatchSummary

	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		page, err := r.paginator.FetchNextPage(ctx, target, cur)
		if errors.Is(err, ErrExhausted) {
			return total, nil
		}
		if err != nil {
			return total, err
		}

		if r.dryRun {
			r.ui.Preview(target, page.Eligible)
			cur.Advance(filter.OldestID(page.Eligible))
		} else {
			prog := r.ui.BatchStarted(target, len(page.Eligible))
			oldest, sum, err := r.executor.ProcessBatch(ctx, target, page.Eligible, prog)
			total.Edited += sum.Edited
			total.Deleted += sum.Deleted
			total.Skipped += sum.Skipped
			if oldest > 0 {
				// Advance past what was actually reached, which may be less
				// than the whole page if the run was cancelled mid-batch.
				cur.Advance(oldest)
			}
			r.ui.BatchFinished(sum)
			if err != nil {
				return total, err
			}
			r.log.Info("batch done",
				"target", target.DisplayName(),
				"edited", sum.Edited, "deleted", sum.Deleted, "skipped", sum.Skipped,
				"max_id", cur.MaxID)
		}

		if err := r.sleep(ctx, r.searchDelay); err != nil {
			return total, err
		}
	}
}

func (r *Runner) checkpoint() error {
	return r.store.Save(model.Checkpoint{
		CurrentTargetIndex: r.currentIndex,
		Statistics:         *r.stats,
		SavedAt:            time.Now().UTC(),
	})
}
