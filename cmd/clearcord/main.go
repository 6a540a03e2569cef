package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"clearcord/internal/config"
	"clearcord/internal/discord"
	"clearcord/internal/discover"
	"clearcord/internal/engine"
	"clearcord/internal/filter"
	"clearcord/internal/model"
	"clearcord/internal/progress"
	"clearcord/internal/storage"
	"clearcord/internal/ui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configPath     = flag.String("config", "", "path to config.json")
		tokenFlag      = flag.String("token", "", "account token (falls back to DISCORD_TOKEN or .env)")
		discoverFlag   = flag.Bool("discover", false, "discover servers and channels, write config.json")
		dryRun         = flag.Bool("dry-run", false, "preview without editing or deleting")
		resume         = flag.Bool("resume", false, "resume from the saved checkpoint")
		yes            = flag.Bool("yes", false, "skip the confirmation prompt")
		verifyAuth     = flag.Bool("verify-auth", false, "validate the token and exit")
		historyFlag    = flag.Bool("history", false, "print recent runs and exit")
		nonInteractive = flag.Bool("non-interactive", false, "disable prompts and progress bars")
		modeFlag       = flag.String("mode", "", "override mode: off, mark_and_delete, mark_only")
		skipMarked     = flag.Bool("skip-marked", false, "override: preserve messages already holding the marker text")
	)
	flag.Parse()

	token, err := config.ResolveToken(*tokenFlag)
	if err != nil {
		return err
	}

	client, err := discord.New(token)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Identity must be resolvable before anything destructive happens.
	me, err := client.Me(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as @%s (ID: %s)\n", me.Username, me.ID)

	if *verifyAuth {
		fmt.Println("Token is valid.")
		return nil
	}

	log := newLogger("info")

	if *discoverFlag {
		return discover.New(client, log).Run(ctx, "config.json")
	}

	if *configPath == "" {
		flag.Usage()
		return errors.New("--config is required (or use --discover to create one)")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	applyOverrides(cfg, *modeFlag, *skipMarked)
	if !cfg.Settings.Mode.Valid() {
		return fmt.Errorf("unknown mode %q", cfg.Settings.Mode)
	}
	log = newLogger(cfg.Settings.LogLevel)

	if dir := filepath.Dir(cfg.Settings.HistoryPath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create history directory: %w", err)
		}
	}
	history, err := storage.NewSQLite(cfg.Settings.HistoryPath)
	if err != nil {
		return fmt.Errorf("open history database: %w", err)
	}
	defer func() { _ = history.Close() }()

	console := ui.NewConsole(*nonInteractive)

	if *historyFlag {
		runs, err := history.ListRuns(ctx, 20)
		if err != nil {
			return err
		}
		console.PrintHistory(runs)
		return nil
	}

	targets := cfg.EnabledTargets()
	if len(targets) == 0 {
		return errors.New("no enabled targets in config")
	}

	s := cfg.Settings
	fmt.Printf("Targets: %d | search delay: %ds | action delay: %ds | mode: %s | skip pinned: %v | skip marked: %v\n",
		len(targets), s.SearchDelaySeconds, s.ActionDelaySeconds, s.Mode, s.SkipPinned, s.SkipMarked)
	if *dryRun {
		fmt.Println("DRY RUN: no messages will be edited or deleted.")
	}

	if !*dryRun && !*yes {
		ok, err := console.ConfirmRun(s.Mode, s.MarkerText, len(targets))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Aborted.")
			return nil
		}
	}

	stats := &model.RunStatistics{}
	backoff := engine.NewBackoff(stats, nil, log)
	rules := filter.Rules{
		SkipPinned: s.SkipPinned,
		SkipMarked: s.SkipMarked,
		MarkerText: s.MarkerText,
	}
	searchDelay := time.Duration(s.SearchDelaySeconds) * time.Second
	actionDelay := time.Duration(s.ActionDelaySeconds) * time.Second

	runner := engine.NewRunner(engine.RunnerParams{
		Paginator:   engine.NewPaginator(client, backoff, me.ID, rules, searchDelay, nil, log),
		Executor:    engine.NewExecutor(client, backoff, stats, s.Mode, s.MarkerText, s.MaxRetries, actionDelay, nil, log),
		Store:       progress.NewStore(progress.DefaultPath),
		History:     history,
		UI:          console,
		Stats:       stats,
		Targets:     targets,
		Mode:        s.Mode,
		SearchDelay: searchDelay,
		DryRun:      *dryRun,
		Logger:      log,
	})
	return runner.Run(ctx, *resume)
}

// applyOverrides folds set command-line flags over the config file settings.
func applyOverrides(cfg *config.Config, mode string, skipMarked bool) {
	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["mode"] && mode != "" {
		cfg.Settings.Mode = model.Mode(mode)
	}
	if set["skip-marked"] {
		cfg.Settings.SkipMarked = skipMarked
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
