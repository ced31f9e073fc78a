package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/logger"
	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/storage"
	"github.com/kaayjob-hq/kaay-emploi-harvester/pkg/publishers"
	"github.com/kaayjob-hq/kaay-emploi-harvester/pkg/sites"
)

// Stop reasons recorded in RunStats.
const (
	StopEmptyPage       = "empty_page"
	StopDuplicateStreak = "duplicate_streak"
	StopLastPage        = "last_page"
	StopListFetchFailed = "list_fetch_failed"
)

// RunStats summarizes one incremental pass over a site.
type RunStats struct {
	SiteID         string `json:"site_id"`
	NewCount       int    `json:"new_count"`
	DuplicateCount int    `json:"duplicate_count"`
	PagesFetched   int    `json:"pages_fetched"`
	StopReason     string `json:"stop_reason"`
}

// Engine runs incremental crawl passes: list pages are walked through the
// site's adapter, items are classified against the dedup index, and only new
// items get field extraction, a detail fetch, storage, and a published event.
type Engine struct {
	store     storage.Store
	adapters  sites.AdapterRegistry
	details   DetailFetcher
	publisher EventPublisher

	// sleep is swapped out by tests to avoid real page delays.
	sleep func(ctx context.Context, d time.Duration)
}

// NewEngine wires a crawl engine. publisher may be nil when no sinks are
// configured.
func NewEngine(store storage.Store, adapters sites.AdapterRegistry, details DetailFetcher, publisher EventPublisher) *Engine {
	return &Engine{
		store:     store,
		adapters:  adapters,
		details:   details,
		publisher: publisher,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// RunPass executes one incremental pass over a site. A list fetch or parse
// failure ends the pass early with the stats gathered so far; only setup
// failures (unknown adapter, unreadable index) and storage faults surface as
// errors.
func (e *Engine) RunPass(ctx context.Context, site sites.Site) (RunStats, error) {
	stats := RunStats{SiteID: site.ID}

	adapter, err := e.adapters.AdapterFor(site)
	if err != nil {
		return stats, err
	}

	index, err := LoadDedupIndex(e.store, site.ID)
	if err != nil {
		return stats, err
	}

	logger.S.Infow("starting crawl pass",
		"site", site.ID,
		"known_postings", index.Size(),
		"streak_limit", site.DuplicateStreakLimit,
	)

	headers := sites.Headers(site)
	cur := adapter.InitialCursor(site)
	streak := 0

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		page, err := adapter.FetchPage(ctx, site, cur)
		if err != nil {
			logger.S.Warnw("list page fetch failed, ending pass early",
				"site", site.ID, "page", cur.Page, "error", err)
			stats.StopReason = StopListFetchFailed
			break
		}
		stats.PagesFetched++

		if len(page.Items) == 0 {
			stats.StopReason = StopEmptyPage
			break
		}

		streakHit := false
		for _, item := range page.Items {
			if index.IsDuplicate(item.Title, item.URL, item.Reference) {
				stats.DuplicateCount++
				streak++
				if streak >= site.DuplicateStreakLimit {
					streakHit = true
					break
				}
				continue
			}
			streak = 0

			if err := e.harvest(ctx, site, adapter, headers, item, index, &stats); err != nil {
				return stats, err
			}
		}
		if streakHit {
			stats.StopReason = StopDuplicateStreak
			break
		}

		if page.LastPage || page.Next == nil {
			stats.StopReason = StopLastPage
			break
		}

		e.sleep(ctx, site.PageDelay())
		cur = *page.Next
	}

	logger.S.Infow("crawl pass finished",
		"site", site.ID,
		"new", stats.NewCount,
		"duplicates", stats.DuplicateCount,
		"pages", stats.PagesFetched,
		"stop_reason", stats.StopReason,
	)
	return stats, nil
}

// harvest processes one item already classified as new: extract, fetch the
// detail page, store, publish.
func (e *Engine) harvest(ctx context.Context, site sites.Site, adapter sites.Adapter, headers map[string]string, item sites.Candidate, index *DedupIndex, stats *RunStats) error {
	posting := adapter.ExtractListFields(site, item)
	posting.SiteID = site.ID
	if posting.ID == "" {
		posting.ID = sites.HashURL(posting.SourceURL)
	}
	if posting.CollectedAt.IsZero() {
		posting.CollectedAt = time.Now().UTC()
	}

	body, err := e.details.Fetch(ctx, posting.SourceURL, headers, site.DetailDelay())
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.S.Warnw("detail page fetch failed, storing list fields only",
			"site", site.ID, "url", posting.SourceURL, "error", err)
	} else {
		adapter.ExtractDetailFields(site, body, &posting)
	}

	if err := e.store.InsertPosting(site.ID, posting); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			logger.S.Infow("posting already stored, skipping",
				"site", site.ID, "url", posting.SourceURL, "reference", posting.Reference)
			index.Record(item.Title, item.URL, item.Reference)
			stats.DuplicateCount++
			return nil
		}
		return fmt.Errorf("store posting %s: %w", posting.SourceURL, err)
	}

	index.Record(item.Title, item.URL, item.Reference)
	stats.NewCount++

	if e.publisher != nil {
		evt := publishers.Event{
			SiteID:      site.ID,
			SiteName:    site.Name,
			Posting:     posting,
			CollectedAt: posting.CollectedAt,
		}
		if _, err := e.publisher.Publish(ctx, evt); err != nil {
			logger.S.Warnw("publishing posting event failed",
				"site", site.ID, "url", posting.SourceURL, "error", err)
		}
	}
	return nil
}
