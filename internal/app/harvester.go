package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/config"
	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/crawler"
	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/logger"
	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/storage"
	"github.com/kaayjob-hq/kaay-emploi-harvester/pkg/publishers"
	"github.com/kaayjob-hq/kaay-emploi-harvester/pkg/sites"
)

// Harvester is the crawl runtime. It schedules per-site incremental passes,
// guaranteeing at most one concurrent pass per site, and coordinates between
// the site registry, the crawl engine, storage, and publishers.
type Harvester struct {
	cfg      *config.Config
	sitesReg *sites.Registry
	fanout   *publishers.Fanout
	engine   *crawler.Engine
	store    storage.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewHarvester builds a harvester runtime from config files.
func NewHarvester(ctx context.Context, cfg *config.Config) (*Harvester, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	sitesReg, err := sites.LoadRegistry(cfg.SitesFile)
	if err != nil {
		return nil, fmt.Errorf("load sites registry: %w", err)
	}
	siteList := sitesReg.All()
	siteIDs := make([]string, 0, len(siteList))
	for _, s := range siteList {
		siteIDs = append(siteIDs, s.ID)
	}
	logger.InfoObj("sites registry loaded", "sites_meta", map[string]any{
		"count": len(siteIDs),
		"ids":   siteIDs,
	})

	fanout, err := buildFanout(ctx, cfg.PublishersFile)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	logger.InfoObj("storage initialized", "storage_config", map[string]any{
		"type": cfg.StorageType,
		"path": cfg.BBoltPath,
	})

	client := sites.DefaultHTTPClient()
	adapters := sites.DefaultAdapterRegistry(client)
	details := crawler.NewDetailFetcher(client)

	var publisher crawler.EventPublisher
	if fanout.Size() > 0 {
		publisher = fanout
	}
	engine := crawler.NewEngine(store, adapters, details, publisher)

	return &Harvester{
		cfg:      cfg,
		sitesReg: sitesReg,
		fanout:   fanout,
		engine:   engine,
		store:    store,
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

// buildFanout loads publisher configs and instantiates the enabled sinks. A
// harvester without publishers still stores postings, so zero sinks only warns.
func buildFanout(ctx context.Context, path string) (*publishers.Fanout, error) {
	if path == "" {
		logger.WarnObj("no publishers file configured; events disabled", "publishers_file", path)
		return publishers.NewFanout(nil), nil
	}

	publisherReg, err := publishers.LoadRegistry(path)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}

	enabled := publisherReg.Enabled()
	pubs, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, logger.Obj{})
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, cfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   cfg.ID,
			"type": cfg.Type,
		})
	}
	logger.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubs), nil
}

// Run schedules the configured sites and blocks until the context is
// cancelled. Every scheduled site gets one immediate pass at startup.
func (h *Harvester) Run(ctx context.Context) error {
	if h == nil || h.engine == nil {
		return fmt.Errorf("harvester is not initialized")
	}
	defer h.closeStore()

	scheduled := h.sitesReg.Scheduled()
	if len(scheduled) == 0 {
		logger.WarnObj("no scheduled sites configured; harvester idle", "sites_file", h.cfg.SitesFile)
		<-ctx.Done()
		return ctx.Err()
	}

	logger.InfoObj("harvester starting", "harvester_state", map[string]any{
		"scheduled_sites":  len(scheduled),
		"publishers_count": h.fanout.Size(),
	})

	c := cron.New()
	for _, site := range scheduled {
		site := site
		_, err := c.AddFunc(site.Schedule, func() {
			h.runSite(ctx, site)
		})
		if err != nil {
			return fmt.Errorf("schedule site %q (%q): %w", site.ID, site.Schedule, err)
		}
	}

	for _, site := range scheduled {
		h.runSite(ctx, site)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	c.Start()
	<-ctx.Done()

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		logger.WarnObj("timed out waiting for running passes", "timeout", "30s")
	}
	return nil
}

// RunSiteOnce executes a single pass over one site by id.
func (h *Harvester) RunSiteOnce(ctx context.Context, siteID string) (crawler.RunStats, error) {
	site, ok := h.sitesReg.ByID(siteID)
	if !ok {
		return crawler.RunStats{}, fmt.Errorf("unknown site %q", siteID)
	}

	lock := h.lockFor(site.ID)
	if !lock.TryLock() {
		return crawler.RunStats{}, fmt.Errorf("site %q already has a pass running", site.ID)
	}
	defer lock.Unlock()

	return h.engine.RunPass(ctx, site)
}

// runSite runs one pass, skipping when the previous pass for the same site is
// still in flight.
func (h *Harvester) runSite(ctx context.Context, site sites.Site) {
	lock := h.lockFor(site.ID)
	if !lock.TryLock() {
		logger.WarnObj("previous pass still running, skipping", "site", site.ID)
		return
	}
	defer lock.Unlock()

	start := time.Now()
	stats, err := h.engine.RunPass(ctx, site)
	if err != nil {
		logger.ErrorObj("crawl pass failed", "crawl_error", map[string]any{
			"site":  site.ID,
			"error": err.Error(),
		})
		return
	}
	logger.InfoObj("crawl pass completed", "crawl_meta", map[string]any{
		"site":        site.ID,
		"new":         stats.NewCount,
		"duplicates":  stats.DuplicateCount,
		"pages":       stats.PagesFetched,
		"stop_reason": stats.StopReason,
		"elapsed_ms":  time.Since(start).Milliseconds(),
	})
}

func (h *Harvester) lockFor(siteID string) *sync.Mutex {
	h.mu.Lock()
	defer h.mu.Unlock()

	lock, ok := h.locks[siteID]
	if !ok {
		lock = &sync.Mutex{}
		h.locks[siteID] = lock
	}
	return lock
}

// closeStore safely closes the storage backend, logging any errors encountered.
func (h *Harvester) closeStore() {
	if h == nil || h.store == nil {
		return
	}
	if err := h.store.Close(); err != nil {
		logger.ErrorObj("storage close failed", "error", err.Error())
	}
}
