package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"clearcord/internal/discord"
	"clearcord/internal/filter"
	"clearcord/internal/model"
)

const author = "author-1"

func newPaginator(api *fakeAPI, rec *sleepRecorder, rules filter.Rules) (*Paginator, *model.RunStatistics) {
	stats := &model.RunStatistics{}
	b := NewBackoff(stats, rec.sleep, testLogger())
	return NewPaginator(api, b, author, rules, 10*time.Second, rec.sleep, testLogger()), stats
}

func TestPaginatorExhaustionAfterEmptyPages(t *testing.T) {
	api := &fakeAPI{searchResults: []searchResult{
		{page: page(0)},
		{page: page(0)},
		{page: page(0)},
	}}
	rec := &sleepRecorder{}
	p, _ := newPaginator(api, rec, filter.Rules{})

	_, err := p.FetchNextPage(context.Background(), guildTarget(t), &Cursor{})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}
	if len(api.searchCalls) != 3 {
		t.Errorf("search calls = %d, want 3", len(api.searchCalls))
	}
}

func TestPaginatorDeliversEligibleBatch(t *testing.T) {
	api := &fakeAPI{searchResults: []searchResult{
		{page: page(3, []model.Message{msg(300, author), msg(200, author), msg(100, author)})},
	}}
	rec := &sleepRecorder{}
	p, _ := newPaginator(api, rec, filter.Rules{})

	got, err := p.FetchNextPage(context.Background(), guildTarget(t), &Cursor{})
	if err != nil {
		t.Fatalf("FetchNextPage: %v", err)
	}

	want := &Page{
		Eligible:      []model.Message{msg(300, author), msg(200, author), msg(100, author)},
		TotalEstimate: 3,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("page mismatch (-want +got):\n%s", diff)
	}
}

func TestPaginatorRetriesIdenticalRequestOnRateLimit(t *testing.T) {
	api := &fakeAPI{searchResults: []searchResult{
		{err: &discord.RateLimitedError{RetryAfter: 5 * time.Second}},
		{page: page(1, []model.Message{msg(100, author)})},
	}}
	rec := &sleepRecorder{}
	p, stats := newPaginator(api, rec, filter.Rules{})

	cur := &Cursor{MaxID: 500, Offset: 2}
	if _, err := p.FetchNextPage(context.Background(), guildTarget(t), cur); err != nil {
		t.Fatalf("FetchNextPage: %v", err)
	}

	if len(api.searchCalls) != 2 {
		t.Fatalf("search calls = %d, want 2", len(api.searchCalls))
	}
	if diff := cmp.Diff(api.searchCalls[0], api.searchCalls[1]); diff != "" {
		t.Errorf("retry was not the identical request (-first +second):\n%s", diff)
	}
	if rec.total() != 10*time.Second {
		t.Errorf("slept %v, want 10s", rec.total())
	}
	if stats.RateLimited != 1 {
		t.Errorf("RateLimited = %d, want 1", stats.RateLimited)
	}
}

func TestPaginatorAdvancesPastFilteredPage(t *testing.T) {
	pinned := msg(200, author)
	pinned.Pinned = true
	marked := msg(150, author)
	marked.Content = "gone"

	api := &fakeAPI{searchResults: []searchResult{
		{page: page(2, []model.Message{pinned, marked})},
		{page: page(1, []model.Message{msg(100, author)})},
	}}
	rec := &sleepRecorder{}
	p, _ := newPaginator(api, rec, filter.Rules{SkipPinned: true, SkipMarked: true, MarkerText: "gone"})

	cur := &Cursor{}
	got, err := p.FetchNextPage(context.Background(), guildTarget(t), cur)
	if err != nil {
		t.Fatalf("FetchNextPage: %v", err)
	}

	if len(got.Eligible) != 1 || got.Eligible[0].ID != 100 {
		t.Fatalf("eligible = %v, want the single unfiltered message", got.Eligible)
	}
	// The filtered page advanced the cursor past its oldest hit (150).
	if api.searchCalls[1].MaxID != 149 {
		t.Errorf("second search max_id = %d, want 149", api.searchCalls[1].MaxID)
	}
	if api.searchCalls[1].Offset != 0 {
		t.Errorf("offset = %d, want 0 after cursor advance", api.searchCalls[1].Offset)
	}
}

func TestPaginatorAdvancesPastForeignMessages(t *testing.T) {
	api := &fakeAPI{searchResults: []searchResult{
		{page: page(2, []model.Message{msg(400, "someone-else"), msg(250, "someone-else")})},
		{page: page(1, []model.Message{msg(100, author)})},
	}}
	rec := &sleepRecorder{}
	p, _ := newPaginator(api, rec, filter.Rules{})

	if _, err := p.FetchNextPage(context.Background(), guildTarget(t), &Cursor{}); err != nil {
		t.Fatalf("FetchNextPage: %v", err)
	}
	if api.searchCalls[1].MaxID != 249 {
		t.Errorf("second search max_id = %d, want 249", api.searchCalls[1].MaxID)
	}
}

func TestPaginatorOffsetFallbackWithoutHits(t *testing.T) {
	noHit := model.Message{ID: 500, Author: model.Author{ID: author}}

	api := &fakeAPI{searchResults: []searchResult{
		{page: page(2, []model.Message{noHit}, []model.Message{noHit})},
		{page: page(1, []model.Message{msg(100, author)})},
	}}
	rec := &sleepRecorder{}
	p, _ := newPaginator(api, rec, filter.Rules{})

	if _, err := p.FetchNextPage(context.Background(), guildTarget(t), &Cursor{}); err != nil {
		t.Fatalf("FetchNextPage: %v", err)
	}
	if api.searchCalls[1].Offset != 2 {
		t.Errorf("second search offset = %d, want 2 (one per group)", api.searchCalls[1].Offset)
	}
	if api.searchCalls[1].MaxID != 0 {
		t.Errorf("max_id = %d, want unchanged 0", api.searchCalls[1].MaxID)
	}
}

func TestPaginatorMaxIDStrictlyDecreasing(t *testing.T) {
	// Every page is fully filtered, so the paginator advances internally
	// until exhaustion.
	mk := func(id model.Snowflake) model.Message {
		m := msg(id, author)
		m.Pinned = true
		return m
	}
	api := &fakeAPI{searchResults: []searchResult{
		{page: page(3, []model.Message{mk(900)})},
		{page: page(3, []model.Message{mk(600)})},
		{page: page(3, []model.Message{mk(300)})},
		{page: page(0)},
		{page: page(0)},
		{page: page(0)},
	}}
	rec := &sleepRecorder{}
	p, _ := newPaginator(api, rec, filter.Rules{SkipPinned: true})

	_, err := p.FetchNextPage(context.Background(), guildTarget(t), &Cursor{})
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}

	// Empty-page retries reuse the same cursor; every cursor change must
	// move strictly backward.
	var changes []model.Snowflake
	for _, call := range api.searchCalls {
		if call.MaxID == 0 {
			continue
		}
		if len(changes) == 0 || call.MaxID != changes[len(changes)-1] {
			changes = append(changes, call.MaxID)
		}
	}
	want := []model.Snowflake{899, 599, 299}
	if diff := cmp.Diff(want, changes); diff != "" {
		t.Errorf("cursor advancement mismatch (-want +got):\n%s", diff)
	}
}
