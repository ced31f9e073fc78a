package sites

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/domain"
)

const offreEmploiSiteID = "offreemploi"

// spanTextPattern extracts the label between span tags inside the raw
// data-job_type attribute value.
var spanTextPattern = regexp.MustCompile(`>(.*?)<`)

// offreEmploiAdapter handles offre-emploi.sn's tab navigation: the first page
// is a plain GET whose pagination widget advertises a finite set of data-page
// tokens. Each further token is requested through the AJAX listing endpoint,
// falling back to a ?pg= page URL when the envelope cannot be decoded. A token
// that fails both ways is skipped, not the whole run.
type offreEmploiAdapter struct {
	client HTTPClient
	now    func() time.Time
}

// NewOffreEmploiAdapter builds the adapter for offre-emploi.sn listings.
func NewOffreEmploiAdapter(client HTTPClient) Adapter {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &offreEmploiAdapter{client: client, now: time.Now}
}

func (a *offreEmploiAdapter) ID() string { return offreEmploiSiteID }

func (a *offreEmploiAdapter) InitialCursor(Site) Cursor { return Cursor{Page: 1} }

func (a *offreEmploiAdapter) FetchPage(ctx context.Context, site Site, cur Cursor) (Page, error) {
	if cur.Page <= 1 {
		return a.fetchFirstPage(ctx, site)
	}
	return a.fetchTokenPages(ctx, site, cur)
}

func (a *offreEmploiAdapter) fetchFirstPage(ctx context.Context, site Site) (Page, error) {
	doc, err := fetchListDocument(ctx, a.client, site.ID, site.ListURL, Headers(site))
	if err != nil {
		return Page{}, err
	}

	items := a.collectCandidates(doc.Find("ul.job_listings li"))
	tokens := discoverPageTokens(doc)

	if len(tokens) == 0 {
		return Page{Items: items, LastPage: true}, nil
	}
	next := Cursor{Page: tokens[0], Tokens: tokens[1:]}
	return Page{Items: items, Next: &next}, nil
}

// discoverPageTokens reads the clickable tab controls; the token set can be
// non-contiguous and is traversed ascending.
func discoverPageTokens(doc *goquery.Document) []int {
	seen := make(map[int]bool)
	doc.Find("nav.job-manager-pagination li a[data-page]").Each(func(_ int, link *goquery.Selection) {
		raw, ok := link.Attr("data-page")
		if !ok {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n <= 1 {
			return
		}
		seen[n] = true
	})

	tokens := make([]int, 0, len(seen))
	for n := range seen {
		tokens = append(tokens, n)
	}
	sort.Ints(tokens)
	return tokens
}

// fetchTokenPages works through the remaining tokens until one yields
// candidates or the set is exhausted; failed or empty tokens are skipped.
func (a *offreEmploiAdapter) fetchTokenPages(ctx context.Context, site Site, cur Cursor) (Page, error) {
	token := cur.Page
	tokens := cur.Tokens

	for {
		items := a.fetchToken(ctx, site, token)
		if len(items) > 0 {
			if len(tokens) == 0 {
				return Page{Items: items, LastPage: true}, nil
			}
			next := Cursor{Page: tokens[0], Tokens: tokens[1:]}
			return Page{Items: items, Next: &next}, nil
		}
		if len(tokens) == 0 {
			return Page{LastPage: true}, nil
		}
		token, tokens = tokens[0], tokens[1:]
	}
}

func (a *offreEmploiAdapter) fetchToken(ctx context.Context, site Site, token int) []Candidate {
	form := url.Values{
		"page":            {strconv.Itoa(token)},
		"per_page":        {strconv.Itoa(site.PerPage)},
		"orderby":         {"featured"},
		"order":           {"DESC"},
		"show_pagination": {"true"},
	}

	resp, err := a.client.PostForm(ctx, site.AjaxURL, form, Headers(site))
	if err == nil && resp.StatusCode() == http.StatusOK {
		var envelope listingEnvelope
		if jsonErr := json.Unmarshal(resp.Body(), &envelope); jsonErr == nil && strings.TrimSpace(envelope.HTML) != "" {
			if doc, parseErr := parseFragment(envelope.HTML); parseErr == nil {
				return a.collectCandidates(doc.Find("li"))
			}
		}
	}

	// Alternative path: the tab content is also reachable as a plain page.
	altURL := fmt.Sprintf("%s?pg=%d", site.ListURL, token)
	doc, err := fetchListDocument(ctx, a.client, site.ID, altURL, Headers(site))
	if err != nil {
		return nil
	}
	return a.collectCandidates(doc.Find("ul.job_listings li"))
}

func (a *offreEmploiAdapter) collectCandidates(list *goquery.Selection) []Candidate {
	var items []Candidate
	list.Each(func(_ int, li *goquery.Selection) {
		title := strings.TrimSpace(li.AttrOr("data-title", ""))
		if title == "" {
			if h4 := li.Find("h4").First(); h4.Length() > 0 {
				title = strings.TrimSpace(strings.SplitN(h4.Text(), "\n", 2)[0])
			}
		}
		if title == "" {
			return
		}
		href, ok := li.Find("a").First().Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		items = append(items, Candidate{
			Title: title,
			URL:   strings.TrimSpace(href),
			sel:   li,
		})
	})
	return items
}

func (a *offreEmploiAdapter) ExtractListFields(site Site, c Candidate) domain.JobPosting {
	now := a.now()
	p := domain.JobPosting{
		Title:       c.Title,
		SourceURL:   c.URL,
		PublishedAt: now,
	}
	if c.sel == nil {
		return p
	}

	p.Company = strings.TrimSpace(c.sel.AttrOr("data-company", ""))
	p.Location = strings.TrimSpace(c.sel.AttrOr("data-address", ""))
	p.ImageURL = strings.TrimSpace(c.sel.AttrOr("data-image", ""))
	p.ShortDescription = selText(c.sel, ".listing-desc p", "")

	if raw := c.sel.AttrOr("data-job_type", ""); raw != "" {
		if m := spanTextPattern.FindStringSubmatch(raw); m != nil {
			p.ContractType = strings.TrimSpace(m[1])
		}
	}
	if p.ContractType == "" {
		p.ContractType = selText(c.sel, ".job-type", "")
	}

	dateText := firstNonEmpty(
		selText(c.sel, ".listing-date time", ""),
		selText(c.sel, ".listing-date", ""),
	)
	p.PublishedAt = ParseDate(dateText, now)

	return p
}

func (a *offreEmploiAdapter) ExtractDetailFields(site Site, body []byte, p *domain.JobPosting) {
	doc, err := parseFragment(string(body))
	if err != nil {
		return
	}
	root := doc.Selection

	// Prioritized selector list; the first non-empty fragment wins.
	selectors := []string{
		".job_description",
		"article.single_job_listing .job_description",
		".job-overview .job-description",
		".single-job-content",
		".job-details",
		"article.single_job_listing",
	}
	for _, sel := range selectors {
		if v := outerHTML(root, sel); v != "" {
			p.Description = v
			break
		}
	}

	if text := selText(root, ".job-overview .date-expiration", ""); text != "" {
		if raw, found := strings.CutPrefix(text, "Closing date:"); found {
			if t, ok := ParseClosingDate(raw); ok {
				p.ClosingDate = t
			}
		}
	}
	if p.ClosingDate.IsZero() && p.Description != "" {
		if m := ClosingDatePattern.FindStringSubmatch(p.Description); m != nil {
			if t, ok := ParseClosingDate(m[1]); ok {
				p.ClosingDate = t
			}
		}
	}
}
