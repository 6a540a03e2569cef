// Package discover implements interactive guild/channel discovery and
// config file generation.
package discover

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"

	"clearcord/internal/config"
	"clearcord/internal/discord"
	"clearcord/internal/model"
)

// API is the subset of the Discord client discovery depends on.
type API interface {
	ListGuilds(ctx context.Context) ([]discord.Guild, error)
	ListDMChannels(ctx context.Context) ([]discord.Channel, error)
	ListGuildChannels(ctx context.Context, guildID string) ([]discord.Channel, error)
}

// Discoverer walks the account's guilds and DMs and writes a config file
// with the selected targets.
type Discoverer struct {
	api API
	log *slog.Logger
}

// New creates a Discoverer.
func New(api API, log *slog.Logger) *Discoverer {
	return &Discoverer{api: api, log: log}
}

// Run lists guilds and DM conversations, prompts for a selection, and
// writes the resulting configuration to outPath.
func (d *Discoverer) Run(ctx context.Context, outPath string) error {
	guilds, err := d.api.ListGuilds(ctx)
	if err != nil {
		return err
	}
	dms, err := d.api.ListDMChannels(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("Found %d servers and %d DM conversations.\n\n", len(guilds), len(dms))
	fmt.Println("Your servers:")
	for i, g := range guilds {
		fmt.Printf("  %d. %s (ID: %s)\n", i+1, g.Name, g.ID)
	}
	fmt.Println("\nYour DMs:")
	for i, dm := range dms {
		fmt.Printf("  %d. %s (ID: %s)\n", i+1, dmLabel(dm), dm.ID)
	}

	selected, err := d.selectGuilds(guilds)
	if err != nil {
		return err
	}

	var targets []model.Target
	for _, g := range selected {
		channels, err := d.api.ListGuildChannels(ctx, g.ID)
		if err != nil {
			d.log.Error("list channels", "guild", g.Name, "error", err)
			continue
		}
		text := textChannels(channels)
		ok, err := confirm(fmt.Sprintf("Add all %d text channels from %s", len(text), g.Name))
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		for _, ch := range text {
			targets = append(targets, model.Target{
				Kind:      model.KindGuild,
				GuildID:   g.ID,
				ChannelID: ch.ID,
				Name:      fmt.Sprintf("#%s (%s)", ch.Name, g.Name),
				Enabled:   true,
			})
		}
	}

	if len(dms) > 0 {
		ok, err := confirm("Include DMs and group DMs")
		if err != nil {
			return err
		}
		if ok {
			for _, dm := range dms {
				t, valid := dmTarget(dm)
				if valid {
					targets = append(targets, t)
				}
			}
		}
	}

	cfg := &config.Config{Settings: config.Default(), Targets: targets}
	if err := cfg.Save(outPath); err != nil {
		return err
	}

	fmt.Printf("\nConfiguration saved to %s (%d targets).\n", outPath, len(targets))
	fmt.Println("Review the settings, then preview with --dry-run before executing.")
	return nil
}

// selectGuilds prompts for a comma-separated guild selection, or "all".
func (d *Discoverer) selectGuilds(guilds []discord.Guild) ([]discord.Guild, error) {
	if len(guilds) == 0 {
		return nil, nil
	}

	prompt := promptui.Prompt{
		Label: "Select servers to process (comma-separated numbers, or 'all')",
		Validate: func(input string) error {
			_, err := parseSelection(input, len(guilds))
			return err
		},
	}
	input, err := prompt.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			return nil, nil
		}
		return nil, err
	}

	indices, err := parseSelection(input, len(guilds))
	if err != nil {
		return nil, err
	}
	selected := make([]discord.Guild, 0, len(indices))
	for _, i := range indices {
		selected = append(selected, guilds[i])
	}
	return selected, nil
}

func parseSelection(input string, n int) ([]int, error) {
	input = strings.TrimSpace(strings.ToLower(input))
	if input == "" {
		return nil, nil
	}
	if input == "all" {
		all := make([]int, n)
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	var indices []int
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.Atoi(part)
		if err != nil || v < 1 || v > n {
			return nil, fmt.Errorf("invalid selection %q", part)
		}
		indices = append(indices, v-1)
	}
	return indices, nil
}

func textChannels(channels []discord.Channel) []discord.Channel {
	var out []discord.Channel
	for _, ch := range channels {
		switch ch.Type {
		case discord.ChannelText, discord.ChannelAnnouncement, discord.ChannelForum:
			out = append(out, ch)
		}
	}
	return out
}

func dmLabel(ch discord.Channel) string {
	switch ch.Type {
	case discord.ChannelDM:
		if len(ch.Recipients) > 0 {
			return "@" + ch.Recipients[0].Username
		}
		return "@unknown"
	case discord.ChannelGroupDM:
		if ch.Name != "" {
			return "Group: " + ch.Name
		}
		return "Group: unnamed"
	}
	return ch.Name
}

func dmTarget(ch discord.Channel) (model.Target, bool) {
	switch ch.Type {
	case discord.ChannelDM:
		return model.Target{
			Kind:      model.KindDirect,
			ChannelID: ch.ID,
			Name:      "DM: " + dmLabel(ch),
			Enabled:   true,
		}, true
	case discord.ChannelGroupDM:
		return model.Target{
			Kind:      model.KindGroup,
			ChannelID: ch.ID,
			Name:      dmLabel(ch),
			Enabled:   true,
		}, true
	}
	return model.Target{}, false
}

func confirm(label string) (bool, error) {
	prompt := promptui.Prompt{Label: label, IsConfirm: true}
	if _, err := prompt.Run(); err != nil {
		if errors.Is(err, promptui.ErrAbort) || errors.Is(err, promptui.ErrInterrupt) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
