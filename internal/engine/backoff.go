package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"clearcord/internal/discord"
	"clearcord/internal/model"
)

// Backoff interprets rate-limit and not-ready responses and performs the
// corresponding blocking wait. It never gives up; bounding retries is the
// caller's job.
type Backoff struct {
	stats *model.RunStatistics
	sleep SleepFunc
	log   *slog.Logger
}

// NewBackoff creates a Backoff updating the given statistics.
func NewBackoff(stats *model.RunStatistics, sleep SleepFunc, log *slog.Logger) *Backoff {
	if sleep == nil {
		sleep = Sleep
	}
	return &Backoff{stats: stats, sleep: sleep, log: log}
}

// OnRateLimited waits twice the server-suggested duration and counts the
// event. Sustained bulk operations are still limited at the server's stated
// window, hence the margin.
func (b *Backoff) OnRateLimited(ctx context.Context, retryAfter time.Duration) error {
	wait := 2 * retryAfter
	b.stats.RateLimited++
	b.log.Warn("rate limited", "retry_after", retryAfter, "waiting", wait)
	return b.sleep(ctx, wait)
}

// OnNotReady waits exactly the server-suggested duration. Index warm-up is
// not a rate-limit event and is not counted.
func (b *Backoff) OnNotReady(ctx context.Context, retryAfter time.Duration) error {
	b.log.Info("search index not ready", "waiting", retryAfter)
	return b.sleep(ctx, retryAfter)
}

// Wait inspects err and performs the appropriate wait if it is a rate-limit
// or not-ready signal. It reports whether the error was handled, in which
// case the caller should retry the same operation. The returned error is
// non-nil only when the wait was interrupted by cancellation.
func (b *Backoff) Wait(ctx context.Context, err error) (bool, error) {
	var rl *discord.RateLimitedError
	if errors.As(err, &rl) {
		return true, b.OnRateLimited(ctx, rl.RetryAfter)
	}
	var nr *discord.NotReadyError
	if errors.As(err, &nr) {
		return true, b.OnNotReady(ctx, nr.RetryAfter)
	}
	return false, nil
}
