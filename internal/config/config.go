// Package config handles loading and validating the batch configuration file.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"clearcord/internal/model"
)

// DefaultMarkerText is the content written to messages in mark mode and
// matched by the skip_marked filter.
const DefaultMarkerText = "Meow Meow Meow Meow"

// Settings controls pacing, filtering, and the action mode for a run.
type Settings struct {
	// SearchDelaySeconds is the pause between search pages.
	SearchDelaySeconds int `json:"search_delay"`
	// ActionDelaySeconds is the pause after each edit or delete. This is the
	// primary self-imposed rate limit.
	ActionDelaySeconds int `json:"action_delay"`
	// SkipPinned excludes pinned messages from processing.
	SkipPinned bool `json:"skip_pinned"`
	// SkipMarked excludes messages whose content equals MarkerText.
	SkipMarked bool `json:"skip_marked"`
	// MarkerText is the replacement content used in mark mode.
	MarkerText string `json:"marker_text"`
	// MaxRetries bounds per-message edit/delete attempts.
	MaxRetries int `json:"max_retries"`
	// Mode selects delete-only, mark-and-delete, or mark-only behavior.
	Mode model.Mode `json:"mode"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level"`
	// HistoryPath is the sqlite database recording run history.
	HistoryPath string `json:"history_db"`
}

// Config is the full batch configuration document.
type Config struct {
	Settings Settings       `json:"settings"`
	Targets  []model.Target `json:"targets"`
}

// Default returns the settings applied when the config file omits them.
func Default() Settings {
	return Settings{
		SearchDelaySeconds: 10,
		ActionDelaySeconds: 1,
		SkipPinned:         true,
		SkipMarked:         false,
		MarkerText:         DefaultMarkerText,
		MaxRetries:         3,
		Mode:               model.ModeOff,
		LogLevel:           "info",
		HistoryPath:        "./clearcord_history.db",
	}
}

// Load reads and validates the configuration file at path, applying
// defaults for omitted settings.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := &Config{Settings: Default()}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	s := &c.Settings
	if s.SearchDelaySeconds < 0 {
		return fmt.Errorf("search_delay must not be negative")
	}
	if s.ActionDelaySeconds < 0 {
		return fmt.Errorf("action_delay must not be negative")
	}
	if s.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1")
	}
	if s.MarkerText == "" {
		s.MarkerText = DefaultMarkerText
	}
	if !s.Mode.Valid() {
		return fmt.Errorf("unknown mode %q", s.Mode)
	}

	for i, t := range c.Targets {
		switch t.Kind {
		case model.KindGuild:
			if t.GuildID == "" {
				return fmt.Errorf("target %d: guild target requires guild_id", i)
			}
		case model.KindDirect, model.KindGroup:
		default:
			return fmt.Errorf("target %d: unknown kind %q", i, t.Kind)
		}
		if t.ChannelID == "" {
			return fmt.Errorf("target %d: channel_id is required", i)
		}
	}
	return nil
}

// EnabledTargets returns the enabled targets in configuration order.
func (c *Config) EnabledTargets() []model.Target {
	var out []model.Target
	for _, t := range c.Targets {
		if t.Enabled {
			out = append(out, t)
		}
	}
	return out
}

// Save writes the configuration document to path, pretty-printed.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
