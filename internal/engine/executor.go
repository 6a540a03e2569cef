package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"clearcord/internal/discord"
	"clearcord/internal/model"
)

// transientRetryDelay is the fixed pause between transient-failure attempts
// on a single message.
const transientRetryDelay = time.Second

// Executor runs the edit/delete state machine over delivered batches,
// message by message, oldest-outcome tracking included.
type Executor struct {
	api         API
	backoff     *Backoff
	stats       *model.RunStatistics
	mode        model.Mode
	markerText  string
	maxRetries  int
	actionDelay time.Duration
	sleep       SleepFunc
	log         *slog.Logger
}

// NewExecutor creates an Executor for the given mode.
func NewExecutor(api API, backoff *Backoff, stats *model.RunStatistics, mode model.Mode, markerText string, maxRetries int, actionDelay time.Duration, sleep SleepFunc, log *slog.Logger) *Executor {
	if sleep == nil {
		sleep = Sleep
	}
	return &Executor{
		api:         api,
		backoff:     backoff,
		stats:       stats,
		mode:        mode,
		markerText:  markerText,
		maxRetries:  maxRetries,
		actionDelay: actionDelay,
		sleep:       sleep,
		log:         log,
	}
}

// ProcessBatch processes msgs in delivered order. It returns the oldest
// message id actually reached (zero if none) so the caller can advance the
// cursor, and the per-batch summary. A non-nil error only ever reports
// cancellation; the batch result up to that point remains valid.
func (e *Executor) ProcessBatch(ctx context.Context, target model.Target, msgs []model.Message, prog BatchProgress) (model.Snowflake, model.BatchSummary, error) {
	if prog == nil {
		prog = nopProgress{}
	}
	var (
		oldest model.Snowflake
		sum    model.BatchSummary
	)
	defer prog.Done()

	for _, msg := range msgs {
		if err := ctx.Err(); err != nil {
			return oldest, sum, err
		}
		if oldest == 0 || msg.ID < oldest {
			oldest = msg.ID
		}

		gone, err := e.processMessage(ctx, target, msg, &sum)
		prog.Increment()
		if err != nil {
			return oldest, sum, err
		}

		// The pause between messages is the primary self-imposed rate
		// limit. An already-gone message cost no API call, so no pause.
		if !gone {
			if err := e.sleep(ctx, e.actionDelay); err != nil {
				return oldest, sum, err
			}
		}
	}
	return oldest, sum, nil
}

// processMessage runs the state machine for one message. It reports whether
// the message turned out to be already gone.
func (e *Executor) processMessage(ctx context.Context, target model.Target, msg model.Message, sum *model.BatchSummary) (gone bool, err error) {
	if e.mode != model.ModeOff && msg.Content != e.markerText {
		outcome, err := e.attempt(ctx, func() error {
			return e.api.EditMessage(ctx, target.ChannelID, msg.ID, e.markerText)
		})
		if err != nil {
			return false, err
		}
		switch outcome {
		case model.OutcomeCompleted:
			e.stats.Edited++
			sum.Edited++
			// Space out the follow-up call the same as any other action.
			if err := e.sleep(ctx, e.actionDelay); err != nil {
				return false, err
			}
		case model.OutcomeAlreadyGone:
			e.stats.AlreadyGone++
			sum.Deleted++
			return true, nil
		case model.OutcomeSkipped:
			// Message state is unknown; do not attempt deletion.
			e.stats.Skipped++
			sum.Skipped++
			return false, nil
		case model.OutcomePermanent:
			// One terminal counter per message; deletion is not attempted.
			e.stats.Failed++
			sum.Skipped++
			e.log.Warn("edit failed permanently", "message_id", msg.ID, "channel_id", target.ChannelID)
			return false, nil
		}
	}

	if e.mode == model.ModeMarkOnly {
		return false, nil
	}

	outcome, err := e.attempt(ctx, func() error {
		return e.api.DeleteMessage(ctx, target.ChannelID, msg.ID)
	})
	if err != nil {
		return false, err
	}
	switch outcome {
	case model.OutcomeCompleted:
		e.stats.Completed++
		sum.Deleted++
	case model.OutcomeAlreadyGone:
		e.stats.AlreadyGone++
		sum.Deleted++
		return true, nil
	case model.OutcomeSkipped:
		e.stats.Skipped++
		sum.Skipped++
	case model.OutcomePermanent:
		e.stats.Failed++
		sum.Skipped++
		e.log.Warn("delete failed permanently", "message_id", msg.ID, "channel_id", target.ChannelID)
	}
	return false, nil
}

// attempt runs one API call up to maxRetries times, converting each result
// into an outcome. Transient failures wait a fixed second between attempts;
// rate limits additionally wait via the backoff controller before the
// attempt is counted as transient. The returned error only ever reports
// cancellation.
func (e *Executor) attempt(ctx context.Context, call func() error) (model.ActionOutcome, error) {
	for a := 1; a <= e.maxRetries; a++ {
		outcome, err := e.classify(ctx, call())
		if err != nil {
			return outcome, err
		}
		if outcome != model.OutcomeTransient {
			return outcome, nil
		}
		if a < e.maxRetries {
			if err := e.sleep(ctx, transientRetryDelay); err != nil {
				return model.OutcomeTransient, err
			}
		}
	}
	return model.OutcomePermanent, nil
}

func (e *Executor) classify(ctx context.Context, err error) (model.ActionOutcome, error) {
	switch {
	case err == nil:
		return model.OutcomeCompleted, nil
	case errors.Is(err, discord.ErrAlreadyGone):
		return model.OutcomeAlreadyGone, nil
	case errors.Is(err, discord.ErrForbidden):
		return model.OutcomeSkipped, nil
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		return model.OutcomeTransient, err
	}

	if handled, werr := e.backoff.Wait(ctx, err); handled {
		return model.OutcomeTransient, werr
	}

	var se *discord.StatusError
	if errors.As(err, &se) {
		e.log.Error("api error", "status", se.Status, "body", se.Body)
		return model.OutcomePermanent, nil
	}

	// Network-level failure: worth another try.
	e.log.Warn("request failed", "error", err)
	return model.OutcomeTransient, nil
}
