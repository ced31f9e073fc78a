package crawler

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/domain"
	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/logger"
	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/storage"
	"github.com/kaayjob-hq/kaay-emploi-harvester/pkg/publishers"
	"github.com/kaayjob-hq/kaay-emploi-harvester/pkg/sites"
)

func TestMain(m *testing.M) {
	logger.S = zap.NewNop().Sugar()
	os.Exit(m.Run())
}

// fakeStore keeps postings in memory and can inject conflicts and errors.
type fakeStore struct {
	mu           sync.Mutex
	postings     map[string]domain.JobPosting
	conflictURLs map[string]bool
	keysErr      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{postings: make(map[string]domain.JobPosting)}
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) KnownKeys(_ string) (storage.KeySet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keysErr != nil {
		return storage.KeySet{}, f.keysErr
	}
	var keys storage.KeySet
	for _, p := range f.postings {
		keys.URLs = append(keys.URLs, p.SourceURL)
		if p.Reference != "" {
			keys.References = append(keys.References, p.Reference)
		}
		keys.Titles = append(keys.Titles, p.Title)
	}
	return keys, nil
}

func (f *fakeStore) InsertPosting(_ string, p domain.JobPosting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflictURLs[p.SourceURL] {
		return storage.ErrDuplicateKey
	}
	if _, exists := f.postings[p.ID]; exists {
		return storage.ErrDuplicateKey
	}
	f.postings[p.ID] = p
	return nil
}

func (f *fakeStore) ListPostings(_ string, _, _ int) ([]domain.JobPosting, int, error) {
	return nil, len(f.postings), nil
}

func (f *fakeStore) GetPosting(_, id string) (domain.JobPosting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.postings[id]
	if !ok {
		return domain.JobPosting{}, storage.ErrNotFound
	}
	return p, nil
}

// fakeAdapter serves preset pages keyed by cursor page number.
type fakeAdapter struct {
	pages   map[int]sites.Page
	errOn   map[int]bool
	fetched []int
}

func (f *fakeAdapter) ID() string                           { return "fake" }
func (f *fakeAdapter) InitialCursor(_ sites.Site) sites.Cursor { return sites.Cursor{Page: 0} }

func (f *fakeAdapter) FetchPage(_ context.Context, _ sites.Site, cur sites.Cursor) (sites.Page, error) {
	f.fetched = append(f.fetched, cur.Page)
	if f.errOn[cur.Page] {
		return sites.Page{}, errors.New("list fetch boom")
	}
	return f.pages[cur.Page], nil
}

func (f *fakeAdapter) ExtractListFields(site sites.Site, c sites.Candidate) domain.JobPosting {
	return domain.JobPosting{
		ID:          sites.HashURL(c.URL),
		SiteID:      site.ID,
		Title:       c.Title,
		SourceURL:   c.URL,
		Reference:   c.Reference,
		PublishedAt: time.Now(),
		CollectedAt: time.Now(),
	}
}

func (f *fakeAdapter) ExtractDetailFields(_ sites.Site, body []byte, p *domain.JobPosting) {
	p.Description = string(body)
}

type fakeAdapterRegistry struct {
	adapter sites.Adapter
}

func (f *fakeAdapterRegistry) AdapterFor(_ sites.Site) (sites.Adapter, error) {
	if f.adapter == nil {
		return nil, errors.New("missing adapter")
	}
	return f.adapter, nil
}

// fakeDetails records fetched URLs and can fail per URL.
type fakeDetails struct {
	mu    sync.Mutex
	errOn map[string]bool
	calls []string
}

func (f *fakeDetails) Fetch(_ context.Context, url string, _ map[string]string, _ time.Duration) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if f.errOn[url] {
		return nil, errors.New("detail boom")
	}
	return []byte("detail for " + url), nil
}

// fakePublisher records published events.
type fakePublisher struct {
	mu     sync.Mutex
	events []publishers.Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, evt publishers.Event) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, evt)
	if f.err != nil {
		return 0, f.err
	}
	return 1, nil
}

func testSite(streakLimit int) sites.Site {
	return sites.Site{
		ID:                   "testboard",
		Name:                 "Test Board",
		Type:                 sites.TypeSequentialPage,
		DuplicateStreakLimit: streakLimit,
	}
}

func cand(title, url, ref string) sites.Candidate {
	return sites.Candidate{Title: title, URL: url, Reference: ref}
}

func newTestEngine(store storage.Store, adapter sites.Adapter, details DetailFetcher, pub EventPublisher) *Engine {
	e := NewEngine(store, &fakeAdapterRegistry{adapter: adapter}, details, pub)
	e.sleep = func(context.Context, time.Duration) {}
	return e
}

func TestRunPassStoresNewPostings(t *testing.T) {
	adapter := &fakeAdapter{pages: map[int]sites.Page{
		0: {
			Items: []sites.Candidate{
				cand("Comptable senior", "https://example.com/jobs/1", "ref-1"),
				cand("Développeur web", "https://example.com/jobs/2", "ref-2"),
			},
			LastPage: true,
		},
	}}
	store := newFakeStore()
	details := &fakeDetails{}
	pub := &fakePublisher{}

	stats, err := newTestEngine(store, adapter, details, pub).RunPass(context.Background(), testSite(5))
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if stats.NewCount != 2 || stats.DuplicateCount != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if stats.StopReason != StopLastPage {
		t.Fatalf("StopReason = %s", stats.StopReason)
	}
	if len(store.postings) != 2 {
		t.Fatalf("stored %d postings", len(store.postings))
	}
	if len(pub.events) != 2 {
		t.Fatalf("published %d events", len(pub.events))
	}
	if len(details.calls) != 2 {
		t.Fatalf("detail fetches = %d", len(details.calls))
	}
	for _, p := range store.postings {
		if p.Description == "" {
			t.Fatalf("posting %s missing detail fields", p.SourceURL)
		}
	}
}

func TestRunPassIsIdempotent(t *testing.T) {
	page := sites.Page{
		Items: []sites.Candidate{
			cand("Offre A", "https://example.com/jobs/a", ""),
			cand("Offre B", "https://example.com/jobs/b", ""),
		},
		LastPage: true,
	}
	store := newFakeStore()
	site := testSite(5)

	first := &fakeAdapter{pages: map[int]sites.Page{0: page}}
	if _, err := newTestEngine(store, first, &fakeDetails{}, nil).RunPass(context.Background(), site); err != nil {
		t.Fatalf("first pass: %v", err)
	}

	details := &fakeDetails{}
	second := &fakeAdapter{pages: map[int]sites.Page{0: page}}
	stats, err := newTestEngine(store, second, details, nil).RunPass(context.Background(), site)
	if err != nil {
		t.Fatalf("second pass: %v", err)
	}
	if stats.NewCount != 0 || stats.DuplicateCount != 2 {
		t.Fatalf("second pass stats = %+v", stats)
	}
	if len(details.calls) != 0 {
		t.Fatalf("duplicates triggered %d detail fetches", len(details.calls))
	}
	if len(store.postings) != 2 {
		t.Fatalf("store grew to %d postings", len(store.postings))
	}
}

func TestKnownURLDominatesChangedTitle(t *testing.T) {
	store := newFakeStore()
	store.postings["x"] = domain.JobPosting{
		ID:        "x",
		Title:     "Ancien titre",
		SourceURL: "https://example.com/jobs/x",
	}

	adapter := &fakeAdapter{pages: map[int]sites.Page{
		0: {
			Items:    []sites.Candidate{cand("Titre totalement différent", "https://example.com/jobs/x", "")},
			LastPage: true,
		},
	}}

	stats, err := newTestEngine(store, adapter, &fakeDetails{}, nil).RunPass(context.Background(), testSite(5))
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if stats.NewCount != 0 || stats.DuplicateCount != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestTitleMatchIsCaseInsensitive(t *testing.T) {
	store := newFakeStore()
	store.postings["x"] = domain.JobPosting{
		ID:        "x",
		Title:     "Chef de Projet",
		SourceURL: "https://example.com/jobs/old",
	}

	adapter := &fakeAdapter{pages: map[int]sites.Page{
		0: {
			Items:    []sites.Candidate{cand("CHEF DE PROJET", "https://example.com/jobs/new", "")},
			LastPage: true,
		},
	}}

	stats, err := newTestEngine(store, adapter, &fakeDetails{}, nil).RunPass(context.Background(), testSite(5))
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if stats.NewCount != 0 || stats.DuplicateCount != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestDuplicateStreakStopsEarly(t *testing.T) {
	store := newFakeStore()
	for i, url := range []string{"https://example.com/jobs/1", "https://example.com/jobs/2", "https://example.com/jobs/3"} {
		store.postings[string(rune('a'+i))] = domain.JobPosting{
			ID:        string(rune('a' + i)),
			Title:     "Offre " + url,
			SourceURL: url,
		}
	}

	adapter := &fakeAdapter{pages: map[int]sites.Page{
		0: {
			Items: []sites.Candidate{
				cand("dup 1", "https://example.com/jobs/1", ""),
				cand("dup 2", "https://example.com/jobs/2", ""),
				cand("dup 3", "https://example.com/jobs/3", ""),
				cand("fresh after streak", "https://example.com/jobs/99", ""),
			},
			Next: &sites.Cursor{Page: 1},
		},
	}}
	details := &fakeDetails{}

	stats, err := newTestEngine(store, adapter, details, nil).RunPass(context.Background(), testSite(3))
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if stats.StopReason != StopDuplicateStreak {
		t.Fatalf("StopReason = %s", stats.StopReason)
	}
	if stats.NewCount != 0 || stats.DuplicateCount != 3 {
		t.Fatalf("stats = %+v", stats)
	}
	// Items past the streak cutoff are never observed.
	if len(details.calls) != 0 {
		t.Fatalf("detail fetches after streak stop: %v", details.calls)
	}
	if len(adapter.fetched) != 1 {
		t.Fatalf("pages fetched after streak stop: %v", adapter.fetched)
	}
}

func TestNewItemResetsStreak(t *testing.T) {
	store := newFakeStore()
	for _, url := range []string{"https://example.com/jobs/1", "https://example.com/jobs/2", "https://example.com/jobs/3", "https://example.com/jobs/4"} {
		store.postings[url] = domain.JobPosting{ID: url, Title: "Offre " + url, SourceURL: url}
	}

	adapter := &fakeAdapter{pages: map[int]sites.Page{
		0: {
			Items: []sites.Candidate{
				cand("dup 1", "https://example.com/jobs/1", ""),
				cand("dup 2", "https://example.com/jobs/2", ""),
				cand("fresh", "https://example.com/jobs/fresh", ""),
				cand("dup 3", "https://example.com/jobs/3", ""),
				cand("dup 4", "https://example.com/jobs/4", ""),
			},
			LastPage: true,
		},
	}}

	stats, err := newTestEngine(store, adapter, &fakeDetails{}, nil).RunPass(context.Background(), testSite(3))
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if stats.StopReason != StopLastPage {
		t.Fatalf("StopReason = %s", stats.StopReason)
	}
	if stats.NewCount != 1 || stats.DuplicateCount != 4 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestDetailFetchFailureStillStores(t *testing.T) {
	url := "https://example.com/jobs/broken-detail"
	adapter := &fakeAdapter{pages: map[int]sites.Page{
		0: {Items: []sites.Candidate{cand("Offre", url, "")}, LastPage: true},
	}}
	store := newFakeStore()
	details := &fakeDetails{errOn: map[string]bool{url: true}}

	stats, err := newTestEngine(store, adapter, details, nil).RunPass(context.Background(), testSite(5))
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if stats.NewCount != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	p, err := store.GetPosting("testboard", sites.HashURL(url))
	if err != nil {
		t.Fatalf("posting not stored: %v", err)
	}
	if p.Description != "" {
		t.Fatalf("detail fields should be empty, got %q", p.Description)
	}
}

func TestListFetchFailureEndsPassEarly(t *testing.T) {
	adapter := &fakeAdapter{
		pages: map[int]sites.Page{
			0: {
				Items: []sites.Candidate{cand("Offre", "https://example.com/jobs/1", "")},
				Next:  &sites.Cursor{Page: 1},
			},
		},
		errOn: map[int]bool{1: true},
	}
	store := newFakeStore()

	stats, err := newTestEngine(store, adapter, &fakeDetails{}, nil).RunPass(context.Background(), testSite(5))
	if err != nil {
		t.Fatalf("a failed list fetch must not surface as an error, got %v", err)
	}
	if stats.StopReason != StopListFetchFailed {
		t.Fatalf("StopReason = %s", stats.StopReason)
	}
	if stats.NewCount != 1 {
		t.Fatalf("partial stats lost: %+v", stats)
	}
}

func TestEmptyPageStops(t *testing.T) {
	adapter := &fakeAdapter{pages: map[int]sites.Page{0: {}}}
	stats, err := newTestEngine(newFakeStore(), adapter, &fakeDetails{}, nil).RunPass(context.Background(), testSite(5))
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if stats.StopReason != StopEmptyPage {
		t.Fatalf("StopReason = %s", stats.StopReason)
	}
	if stats.PagesFetched != 1 {
		t.Fatalf("PagesFetched = %d", stats.PagesFetched)
	}
}

func TestPassWalksPagesThroughCursor(t *testing.T) {
	adapter := &fakeAdapter{pages: map[int]sites.Page{
		0: {
			Items: []sites.Candidate{cand("Offre 1", "https://example.com/jobs/1", "")},
			Next:  &sites.Cursor{Page: 1},
		},
		1: {
			Items:    []sites.Candidate{cand("Offre 2", "https://example.com/jobs/2", "")},
			LastPage: true,
		},
	}}
	store := newFakeStore()

	stats, err := newTestEngine(store, adapter, &fakeDetails{}, nil).RunPass(context.Background(), testSite(5))
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if stats.NewCount != 2 || stats.PagesFetched != 2 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(adapter.fetched) != 2 || adapter.fetched[0] != 0 || adapter.fetched[1] != 1 {
		t.Fatalf("fetched pages = %v", adapter.fetched)
	}
}

func TestPersistenceConflictSkipsAndContinues(t *testing.T) {
	conflictURL := "https://example.com/jobs/raced"
	adapter := &fakeAdapter{pages: map[int]sites.Page{
		0: {
			Items: []sites.Candidate{
				cand("Racée", conflictURL, ""),
				cand("Après conflit", "https://example.com/jobs/ok", ""),
			},
			LastPage: true,
		},
	}}
	store := newFakeStore()
	store.conflictURLs = map[string]bool{conflictURL: true}

	stats, err := newTestEngine(store, adapter, &fakeDetails{}, nil).RunPass(context.Background(), testSite(5))
	if err != nil {
		t.Fatalf("a persistence conflict must not abort the pass, got %v", err)
	}
	if stats.NewCount != 1 {
		t.Fatalf("NewCount = %d", stats.NewCount)
	}
	if stats.DuplicateCount != 1 {
		t.Fatalf("DuplicateCount = %d", stats.DuplicateCount)
	}
}

func TestDedupIndexLoadFailureAborts(t *testing.T) {
	store := newFakeStore()
	store.keysErr = errors.New("scan failed")
	adapter := &fakeAdapter{pages: map[int]sites.Page{0: {LastPage: true}}}

	if _, err := newTestEngine(store, adapter, &fakeDetails{}, nil).RunPass(context.Background(), testSite(5)); err == nil {
		t.Fatalf("expected error when the dedup index cannot be loaded")
	}
	if len(adapter.fetched) != 0 {
		t.Fatalf("pages fetched despite index failure: %v", adapter.fetched)
	}
}

func TestPublisherFailureDoesNotAbortPass(t *testing.T) {
	adapter := &fakeAdapter{pages: map[int]sites.Page{
		0: {Items: []sites.Candidate{cand("Offre", "https://example.com/jobs/1", "")}, LastPage: true},
	}}
	store := newFakeStore()
	pub := &fakePublisher{err: errors.New("sink down")}

	stats, err := newTestEngine(store, adapter, &fakeDetails{}, pub).RunPass(context.Background(), testSite(5))
	if err != nil {
		t.Fatalf("RunPass: %v", err)
	}
	if stats.NewCount != 1 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(store.postings) != 1 {
		t.Fatalf("posting not stored despite publish failure")
	}
}
