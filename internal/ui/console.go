// Package ui renders run progress and summaries to the terminal.
package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"clearcord/internal/engine"
	"clearcord/internal/model"
	"clearcord/internal/storage"
)

var (
	header  = color.New(color.FgHiMagenta, color.Bold)
	info    = color.New(color.FgCyan)
	good    = color.New(color.FgGreen)
	warn    = color.New(color.FgYellow)
	bad     = color.New(color.FgRed)
	plain   = color.New()
	section = strings.Repeat("─", 60)
)

// Console implements engine.UI on the terminal. In non-interactive mode it
// skips progress bars and prompts and prints plain lines instead.
type Console struct {
	nonInteractive bool
}

// NewConsole creates a Console.
func NewConsole(nonInteractive bool) *Console {
	if nonInteractive {
		color.NoColor = true
	}
	return &Console{nonInteractive: nonInteractive}
}

// TargetStarted implements engine.UI.
func (c *Console) TargetStarted(index, total int, target model.Target) {
	fmt.Println()
	_, _ = header.Println(section)
	_, _ = header.Printf("[%d/%d] Target: %s\n", index+1, total, target.DisplayName())
	_, _ = header.Println(section)
}

// BatchStarted implements engine.UI.
func (c *Console) BatchStarted(target model.Target, size int) engine.BatchProgress {
	if c.nonInteractive {
		_, _ = info.Printf("Processing %d messages...\n", size)
		return textBatch{}
	}
	p := mpb.New(mpb.WithWidth(50))
	label := "Processing"
	bar := p.AddBar(int64(size),
		mpb.PrependDecorators(
			decor.Name(label, decor.WC{W: len(label) + 1}),
			decor.CountersNoUnit("%d / %d", decor.WCSyncSpace),
		),
		mpb.AppendDecorators(
			decor.OnComplete(decor.Percentage(decor.WCSyncSpace), "done"),
		),
	)
	return &mpbBatch{progress: p, bar: bar}
}

// BatchFinished implements engine.UI.
func (c *Console) BatchFinished(sum model.BatchSummary) {
	var parts []string
	if sum.Edited > 0 {
		parts = append(parts, fmt.Sprintf("%d edited", sum.Edited))
	}
	if sum.Deleted > 0 {
		parts = append(parts, fmt.Sprintf("%d deleted", sum.Deleted))
	}
	if sum.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", sum.Skipped))
	}
	if len(parts) == 0 {
		parts = append(parts, "nothing to do")
	}
	_, _ = info.Printf("Batch done: %s\n", strings.Join(parts, ", "))
}

// Preview implements engine.UI. It lists the first few messages a dry run
// would act on.
func (c *Console) Preview(target model.Target, msgs []model.Message) {
	_, _ = warn.Printf("[DRY RUN] Would process %d messages:\n", len(msgs))
	const maxShown = 5
	for i, msg := range msgs {
		if i == maxShown {
			_, _ = plain.Printf("  ... and %d more\n", len(msgs)-maxShown)
			break
		}
		content := msg.Content
		if content == "" {
			content = "[no content]"
		}
		if len(content) > 50 {
			content = content[:50]
		}
		_, _ = plain.Printf("  - %s: %s\n", msg.Timestamp.Format("2006-01-02"), content)
	}
}

// Summary implements engine.UI.
func (c *Console) Summary(stats model.RunStatistics) {
	fmt.Println()
	_, _ = header.Println(strings.Repeat("=", 60))
	_, _ = header.Println("SUMMARY")
	_, _ = header.Println(strings.Repeat("=", 60))

	d := stats.Duration().Round(time.Second)
	_, _ = plain.Printf("Duration:     %s\n", d)
	if stats.Edited > 0 {
		_, _ = warn.Printf("Edited:       %d\n", stats.Edited)
	}
	_, _ = good.Printf("Deleted:      %d\n", stats.Completed)
	_, _ = warn.Printf("Already gone: %d (stale index entries)\n", stats.AlreadyGone)
	_, _ = warn.Printf("Skipped:      %d\n", stats.Skipped)
	_, _ = bad.Printf("Failed:       %d\n", stats.Failed)
	_, _ = info.Printf("Rate limited: %d times\n", stats.RateLimited)
}

// ConfirmRun asks the user to confirm a destructive run. In non-interactive
// mode it refuses, since there is nobody to ask.
func (c *Console) ConfirmRun(mode model.Mode, markerText string, targetCount int) (bool, error) {
	if c.nonInteractive {
		return false, fmt.Errorf("confirmation required: pass --yes in non-interactive mode")
	}

	var action string
	switch mode {
	case model.ModeMarkOnly:
		action = fmt.Sprintf("edit messages to %q in", markerText)
	case model.ModeMarkAndDelete:
		action = fmt.Sprintf("edit messages to %q and delete them from", markerText)
	default:
		action = "delete messages from"
	}
	_, _ = warn.Printf("\nThis will %s %d channels/DMs.\n", action, targetCount)
	_, _ = warn.Println("This action cannot be undone!")

	prompt := promptui.Prompt{Label: "Continue", IsConfirm: true}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// PrintHistory renders recent runs from the history store.
func (c *Console) PrintHistory(runs []storage.Run) {
	if len(runs) == 0 {
		_, _ = plain.Println("No recorded runs yet.")
		return
	}
	for _, r := range runs {
		status := "unfinished"
		if r.FinishedAt != nil {
			status = r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		mode := string(r.Mode)
		if r.DryRun {
			mode += " (dry run)"
		}
		_, _ = plain.Printf("#%d  %s  mode=%s  deleted=%d edited=%d failed=%d skipped=%d  [%s]\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04"), mode,
			r.Completed, r.Edited, r.Failed, r.Skipped, status)
	}
}

type mpbBatch struct {
	progress *mpb.Progress
	bar      *mpb.Bar
}

func (b *mpbBatch) Increment() {
	b.bar.Increment()
}

func (b *mpbBatch) Done() {
	// The batch may end early on cancellation; force the bar closed so
	// Wait does not block forever.
	b.bar.SetTotal(-1, true)
	b.progress.Wait()
}

type textBatch struct{}

func (textBatch) Increment() {}
func (textBatch) Done()      {}
