// Package engine implements the per-target processing core: rate-limit
// backoff, cursor-based pagination, the edit/delete action state machine,
// and the batch runner that drives targets to exhaustion and checkpoints
// between them.
//
// Execution is single-threaded and fully synchronous. All waiting is a
// blocking sleep, and cancellation is cooperative: the context is observed
// only between messages, pages, and targets, never mid-call.
package engine

import (
	"context"
	"time"

	"clearcord/internal/discord"
	"clearcord/internal/model"
)

// API is the subset of the Discord client the engine depends on.
type API interface {
	SearchMessages(ctx context.Context, req discord.SearchRequest) (*discord.SearchPage, error)
	DeleteMessage(ctx context.Context, channelID string, id model.Snowflake) error
	EditMessage(ctx context.Context, channelID string, id model.Snowflake, content string) error
}

// SleepFunc blocks for the given duration or until the context is
// cancelled. Tests substitute a recording implementation.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the production SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BatchProgress receives per-message completion events for one batch.
type BatchProgress interface {
	Increment()
	Done()
}

// UI receives run progress events. Implementations render them to the
// console; tests use NopUI.
type UI interface {
	TargetStarted(index, total int, target model.Target)
	BatchStarted(target model.Target, size int) BatchProgress
	BatchFinished(sum model.BatchSummary)
	Preview(target model.Target, msgs []model.Message)
	Summary(stats model.RunStatistics)
}

// NopUI is a UI that discards all events.
type NopUI struct{}

// TargetStarted implements UI.
func (NopUI) TargetStarted(int, int, model.Target) {}

// BatchStarted implements UI.
func (NopUI) BatchStarted(model.Target, int) BatchProgress { return nopProgress{} }

// BatchFinished implements UI.
func (NopUI) BatchFinished(model.BatchSummary) {}

// Preview implements UI.
func (NopUI) Preview(model.Target, []model.Message) {}

// Summary implements UI.
func (NopUI) Summary(model.RunStatistics) {}

type nopProgress struct{}

func (nopProgress) Increment() {}
func (nopProgress) Done()      {}
