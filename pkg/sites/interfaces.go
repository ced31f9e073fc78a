package sites

import (
	"context"

	"github.com/PuerkitoBio/goquery"

	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/domain"
	"github.com/kaayjob-hq/kaay-emploi-harvester/pkg/httpclient"
)

// Cursor is the pagination state handed back and forth between the crawl
// engine and an adapter. Sequential adapters only use Page; discovered-token
// adapters also carry the remaining page tokens advertised by the source.
type Cursor struct {
	Page   int
	Tokens []int
}

// Candidate is a raw list-page item carrying just the identity fields needed
// for duplicate classification. The underlying list node is retained so the
// remaining fields can be extracted only for items classified as new.
type Candidate struct {
	Title     string
	URL       string
	Reference string

	sel *goquery.Selection
}

// Page is the result of fetching one list page.
type Page struct {
	Items    []Candidate
	Next     *Cursor
	LastPage bool
}

// Adapter hides a site's pagination style and markup behind one contract.
// FetchPage extracts only identity fields per item; ExtractListFields and
// ExtractDetailFields fill in the rest for items that survived dedup. Field
// extraction never fails: fields that cannot be located default to the
// Unspecified sentinel or stay empty.
type Adapter interface {
	ID() string
	InitialCursor(site Site) Cursor
	FetchPage(ctx context.Context, site Site, cur Cursor) (Page, error)
	ExtractListFields(site Site, c Candidate) domain.JobPosting
	ExtractDetailFields(site Site, body []byte, p *domain.JobPosting)
}

// AdapterRegistry resolves the adapter implementation for a given site config.
type AdapterRegistry interface {
	AdapterFor(site Site) (Adapter, error)
}

// HTTPClient aliases the shared httpclient.Client interface for clarity within adapters.
type HTTPClient = httpclient.Client
