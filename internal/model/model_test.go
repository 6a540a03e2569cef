package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestSnowflakeUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Snowflake
		wantErr bool
	}{
		{name: "quoted", in: `"1234567890"`, want: 1234567890},
		{name: "bare", in: `1234567890`, want: 1234567890},
		{name: "null", in: `null`, want: 0},
		{name: "empty string", in: `""`, want: 0},
		{name: "garbage", in: `"abc"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var s Snowflake
			err := json.Unmarshal([]byte(tt.in), &s)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if s != tt.want {
				t.Errorf("snowflake = %d, want %d", s, tt.want)
			}
		})
	}
}

func TestSnowflakeMarshal(t *testing.T) {
	data, err := json.Marshal(Snowflake(42))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if got, want := string(data), `"42"`; got != want {
		t.Errorf("marshaled = %s, want %s", got, want)
	}
}

func TestTargetContainerID(t *testing.T) {
	guild := Target{Kind: KindGuild, GuildID: "g1", ChannelID: "c1"}
	if got := guild.ContainerID(); got != "g1" {
		t.Errorf("guild container = %q, want g1", got)
	}

	dm := Target{Kind: KindDirect, ChannelID: "c2"}
	if got := dm.ContainerID(); got != DirectContainer {
		t.Errorf("dm container = %q, want %q", got, DirectContainer)
	}

	group := Target{Kind: KindGroup, ChannelID: "c3"}
	if got := group.ContainerID(); got != DirectContainer {
		t.Errorf("group dm container = %q, want %q", got, DirectContainer)
	}
}

func TestTargetDisplayName(t *testing.T) {
	named := Target{Kind: KindGuild, ChannelID: "c1", Name: "#general (Test)"}
	if got := named.DisplayName(); got != "#general (Test)" {
		t.Errorf("display name = %q", got)
	}

	unnamed := Target{Kind: KindDirect, ChannelID: "c2"}
	if got := unnamed.DisplayName(); got != "dm:c2" {
		t.Errorf("display name = %q, want dm:c2", got)
	}
}

func TestModeValid(t *testing.T) {
	for _, m := range []Mode{ModeOff, ModeMarkAndDelete, ModeMarkOnly} {
		if !m.Valid() {
			t.Errorf("mode %q reported invalid", m)
		}
	}
	if Mode("shred").Valid() {
		t.Error("unknown mode reported valid")
	}
	if Mode("").Valid() {
		t.Error("empty mode reported valid")
	}
}

func TestRunStatisticsDuration(t *testing.T) {
	var s RunStatistics
	if s.Duration() != 0 {
		t.Errorf("duration = %v, want 0 without timestamps", s.Duration())
	}

	s.StartTime = time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	if s.Duration() != 0 {
		t.Errorf("duration = %v, want 0 without an end time", s.Duration())
	}

	s.EndTime = s.StartTime.Add(90 * time.Second)
	if got, want := s.Duration(), 90*time.Second; got != want {
		t.Errorf("duration = %v, want %v", got, want)
	}
}
