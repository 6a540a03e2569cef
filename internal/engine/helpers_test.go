package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"clearcord/internal/discord"
	"clearcord/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sleepRecorder is a SleepFunc that records requested durations instead of
// sleeping.
type sleepRecorder struct {
	durations []time.Duration
}

func (r *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.durations = append(r.durations, d)
	return nil
}

func (r *sleepRecorder) total() time.Duration {
	var t time.Duration
	for _, d := range r.durations {
		t += d
	}
	return t
}

type searchResult struct {
	page *discord.SearchPage
	err  error
}

// fakeAPI is a scripted API double. Search results are consumed in order;
// edit/delete errors are consumed per message id.
type fakeAPI struct {
	searchResults []searchResult
	searchCalls   []discord.SearchRequest

	deleteErrs map[model.Snowflake][]error
	deleted    []model.Snowflake

	editErrs map[model.Snowflake][]error
	edited   []model.Snowflake
}

func (f *fakeAPI) SearchMessages(_ context.Context, req discord.SearchRequest) (*discord.SearchPage, error) {
	f.searchCalls = append(f.searchCalls, req)
	if len(f.searchResults) == 0 {
		return &discord.SearchPage{}, nil
	}
	res := f.searchResults[0]
	f.searchResults = f.searchResults[1:]
	return res.page, res.err
}

func (f *fakeAPI) DeleteMessage(_ context.Context, _ string, id model.Snowflake) error {
	f.deleted = append(f.deleted, id)
	return popErr(f.deleteErrs, id)
}

func (f *fakeAPI) EditMessage(_ context.Context, _ string, id model.Snowflake, _ string) error {
	f.edited = append(f.edited, id)
	return popErr(f.editErrs, id)
}

func popErr(m map[model.Snowflake][]error, id model.Snowflake) error {
	if len(m[id]) == 0 {
		return nil
	}
	err := m[id][0]
	m[id] = m[id][1:]
	return err
}

func msg(id model.Snowflake, authorID string) model.Message {
	return model.Message{ID: id, Author: model.Author{ID: authorID}, Hit: true}
}

func page(total int, groups ...[]model.Message) *discord.SearchPage {
	return &discord.SearchPage{TotalResults: total, Messages: groups}
}

func guildTarget(t *testing.T) model.Target {
	t.Helper()
	return model.Target{
		Kind:      model.KindGuild,
		GuildID:   "g1",
		ChannelID: "c1",
		Name:      "#general (Test)",
		Enabled:   true,
	}
}
