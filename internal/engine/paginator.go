package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"clearcord/internal/discord"
	"clearcord/internal/filter"
	"clearcord/internal/model"
)

// ErrExhausted reports that a target has no more messages to deliver.
var ErrExhausted = errors.New("target exhausted")

// maxEmptyPages is how many consecutive empty search pages end a target.
const maxEmptyPages = 3

// Cursor is the per-target pagination state. MaxID slides backward through
// time, which is what lets the walk continue past the service's offset
// depth limit.
type Cursor struct {
	// MaxID is the exclusive upper snowflake bound for the next search.
	// Zero means "start from the newest message".
	MaxID model.Snowflake
	// Offset skips entries within the current page window. Only used as a
	// forward-progress fallback when no hit in a page is decodable.
	Offset int
	// EmptyPages counts consecutive searches that returned no groups.
	EmptyPages int
}

// Advance moves the cursor strictly past oldest. Offset is reset whenever
// the cursor moves.
func (c *Cursor) Advance(oldest model.Snowflake) {
	c.MaxID = oldest - 1
	c.Offset = 0
}

// Page is one delivered batch of eligible messages.
type Page struct {
	Eligible      []model.Message
	TotalEstimate int
}

// Paginator walks one target's history newest-to-oldest, absorbing empty
// and fully-filtered pages internally so callers only ever see batches with
// work to do.
type Paginator struct {
	api         API
	backoff     *Backoff
	rules       filter.Rules
	authorID    string
	searchDelay time.Duration
	sleep       SleepFunc
	log         *slog.Logger
}

// NewPaginator creates a Paginator searching for messages by authorID.
func NewPaginator(api API, backoff *Backoff, authorID string, rules filter.Rules, searchDelay time.Duration, sleep SleepFunc, log *slog.Logger) *Paginator {
	if sleep == nil {
		sleep = Sleep
	}
	return &Paginator{
		api:         api,
		backoff:     backoff,
		rules:       rules,
		authorID:    authorID,
		searchDelay: searchDelay,
		sleep:       sleep,
		log:         log,
	}
}

// FetchNextPage returns the next batch of eligible messages for target,
// updating cur as it goes. It returns ErrExhausted once the target has no
// more messages. Cursor advancement for a delivered batch is the caller's
// responsibility; advancement past filtered or foreign messages happens
// internally.
func (p *Paginator) FetchNextPage(ctx context.Context, target model.Target, cur *Cursor) (*Page, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := p.search(ctx, target, cur)
		if err != nil {
			return nil, err
		}

		if len(page.Messages) == 0 {
			cur.EmptyPages++
			if cur.EmptyPages >= maxEmptyPages {
				p.log.Info("no more messages", "target", target.DisplayName(), "empty_pages", cur.EmptyPages)
				return nil, ErrExhausted
			}
			// The remote index may be lagging; a cheap retry usually fills in.
			p.log.Debug("empty page", "target", target.DisplayName(), "count", cur.EmptyPages)
			if err := p.sleep(ctx, p.searchDelay); err != nil {
				return nil, err
			}
			continue
		}
		cur.EmptyPages = 0

		allHits, eligible := filter.Partition(page.Messages, p.authorID, p.rules)

		if len(eligible) > 0 {
			return &Page{Eligible: eligible, TotalEstimate: page.TotalResults}, nil
		}

		switch {
		case len(allHits) > 0:
			// Everything of ours in this page was pinned or marked; slide
			// the cursor past it.
			cur.Advance(filter.OldestID(allHits))
			p.log.Debug("page fully filtered, advancing cursor", "max_id", cur.MaxID)
		default:
			if oldest, ok := filter.OldestHit(page.Messages); ok {
				cur.Advance(oldest)
				p.log.Debug("no own messages in page, advancing cursor", "max_id", cur.MaxID)
			} else {
				// Nothing decodable at all: bump the offset as a best-effort
				// forward-progress mechanism.
				cur.Offset += len(page.Messages)
				p.log.Debug("no hits in page, advancing offset", "offset", cur.Offset)
			}
		}

		if err := p.sleep(ctx, p.searchDelay); err != nil {
			return nil, err
		}
	}
}

// search issues one logical search, retrying the identical request across
// rate-limit and not-ready responses.
func (p *Paginator) search(ctx context.Context, target model.Target, cur *Cursor) (*discord.SearchPage, error) {
	req := discord.SearchRequest{
		ContainerID: target.ContainerID(),
		ChannelID:   target.ChannelID,
		AuthorID:    p.authorID,
		Offset:      cur.Offset,
		MaxID:       cur.MaxID,
	}
	for {
		page, err := p.api.SearchMessages(ctx, req)
		if err == nil {
			return page, nil
		}
		handled, werr := p.backoff.Wait(ctx, err)
		if werr != nil {
			return nil, werr
		}
		if !handled {
			return nil, err
		}
	}
}
