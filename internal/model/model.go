// Package model defines the domain types used across the application.
package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Snowflake is a 64-bit Discord identifier whose numeric value is
// time-ordered. It doubles as the pagination cursor boundary. Discord
// serializes snowflakes as JSON strings.
type Snowflake int64

// String returns the decimal representation used on the wire.
func (s Snowflake) String() string {
	return strconv.FormatInt(int64(s), 10)
}

// MarshalJSON encodes the snowflake as a quoted decimal string.
func (s Snowflake) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts both quoted and bare decimal snowflakes.
func (s *Snowflake) UnmarshalJSON(data []byte) error {
	raw := string(data)
	if len(raw) >= 2 && raw[0] == '"' {
		raw = raw[1 : len(raw)-1]
	}
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("parse snowflake %q: %w", raw, err)
	}
	*s = Snowflake(v)
	return nil
}

// TargetKind defines which kind of conversation a target points at.
type TargetKind string

// Supported target kinds.
const (
	KindGuild  TargetKind = "guild"
	KindDirect TargetKind = "dm"
	KindGroup  TargetKind = "group_dm"
)

// DirectContainer is the container id used for DM and group DM searches in
// place of a guild id.
const DirectContainer = "@me"

// Target is one channel or conversation to process. Targets are immutable
// once loaded from configuration; enabled targets are processed in order.
type Target struct {
	Kind      TargetKind `json:"kind"`
	GuildID   string     `json:"guild_id,omitempty"`
	ChannelID string     `json:"channel_id"`
	Name      string     `json:"name"`
	Enabled   bool       `json:"enabled"`
}

// UnmarshalJSON decodes a target, treating a missing enabled field as
// enabled. Only an explicit "enabled": false disables a target.
func (t *Target) UnmarshalJSON(data []byte) error {
	type alias Target
	aux := alias{Enabled: true}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*t = Target(aux)
	return nil
}

// ContainerID returns the guild id for guild targets and the "@me" sentinel
// for DMs and group DMs.
func (t Target) ContainerID() string {
	if t.Kind == KindGuild {
		return t.GuildID
	}
	return DirectContainer
}

// DisplayName returns a human-readable label for the target.
func (t Target) DisplayName() string {
	if t.Name != "" {
		return t.Name
	}
	return string(t.Kind) + ":" + t.ChannelID
}

// Author identifies the author of a message.
type Author struct {
	ID string `json:"id"`
}

// Message is a single message as returned by the search endpoint.
type Message struct {
	ID        Snowflake `json:"id"`
	Author    Author    `json:"author"`
	Content   string    `json:"content"`
	Pinned    bool      `json:"pinned"`
	Hit       bool      `json:"hit"`
	Timestamp time.Time `json:"timestamp"`
}

// Mode controls whether messages are edited to the marker text before
// deletion, only edited, or only deleted.
type Mode string

// Supported modes.
const (
	ModeOff           Mode = "off"
	ModeMarkAndDelete Mode = "mark_and_delete"
	ModeMarkOnly      Mode = "mark_only"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeOff, ModeMarkAndDelete, ModeMarkOnly:
		return true
	}
	return false
}

// ActionOutcome is the result of one edit or delete attempt. Every attempt
// resolves to exactly one outcome; the engine never sees a raw transport
// error for a completed API exchange.
type ActionOutcome int

// Possible outcomes of an edit or delete attempt.
const (
	// OutcomeCompleted means the action succeeded.
	OutcomeCompleted ActionOutcome = iota
	// OutcomeAlreadyGone means the message no longer exists server-side
	// (stale search index entry); the desired end state is already reached.
	OutcomeAlreadyGone
	// OutcomeSkipped means the message cannot be acted on (no permission,
	// archived thread); terminal, never retried.
	OutcomeSkipped
	// OutcomeTransient means the attempt failed but may succeed on retry
	// (rate limit, network error).
	OutcomeTransient
	// OutcomePermanent means the attempt failed for good.
	OutcomePermanent
)

// String returns the outcome name for logging.
func (o ActionOutcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeAlreadyGone:
		return "already_gone"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeTransient:
		return "transient"
	case OutcomePermanent:
		return "permanent"
	}
	return "unknown"
}

// RunStatistics holds the monotone counters accumulated over a run. They are
// mutated only by the single execution flow and reset only at process start;
// on resume they are seeded from the checkpoint.
type RunStatistics struct {
	Completed   int       `json:"completed"`
	Edited      int       `json:"edited"`
	Failed      int       `json:"failed"`
	Skipped     int       `json:"skipped"`
	RateLimited int       `json:"rate_limited"`
	AlreadyGone int       `json:"already_gone"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

// Duration returns the wall-clock duration of the run.
func (s RunStatistics) Duration() time.Duration {
	if s.StartTime.IsZero() || s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// Checkpoint is the durable per-target progress record enabling resume after
// interruption. It is replaced wholesale after every completed target.
type Checkpoint struct {
	CurrentTargetIndex int           `json:"current_target_index"`
	Statistics         RunStatistics `json:"statistics"`
	SavedAt            time.Time     `json:"saved_at"`
}

// BatchSummary reports what happened to one delivered batch of messages.
type BatchSummary struct {
	Edited  int
	Deleted int
	Skipped int
}
