package sites

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/domain"
)

const senjobSiteID = "senjob"

// senjobAdapter walks senjob.com result pages. Pages are sequential but the
// site's own pagination widget advertises the final page number, which marks
// the cursor terminal.
type senjobAdapter struct {
	client HTTPClient
	now    func() time.Time
}

// NewSenjobAdapter builds the adapter for senjob.com listings.
func NewSenjobAdapter(client HTTPClient) Adapter {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &senjobAdapter{client: client, now: time.Now}
}

func (a *senjobAdapter) ID() string { return senjobSiteID }

func (a *senjobAdapter) InitialCursor(Site) Cursor { return Cursor{Page: 1} }

func (a *senjobAdapter) FetchPage(ctx context.Context, site Site, cur Cursor) (Page, error) {
	pageURL := site.ListURL
	if cur.Page > 1 {
		pageURL = fmt.Sprintf("%s?page=%d", site.ListURL, cur.Page)
	}

	doc, err := fetchListDocument(ctx, a.client, site.ID, pageURL, Headers(site))
	if err != nil {
		return Page{}, err
	}

	var items []Candidate
	doc.Find(`tr[style*="height:70px"]`).Each(func(_ int, row *goquery.Selection) {
		link := row.Find(`a[href*="jobseekers"]`).First()
		if link.Length() == 0 {
			return
		}
		href, _ := link.Attr("href")
		title := strings.TrimSpace(link.Text())
		if title == "" || strings.TrimSpace(href) == "" {
			return
		}
		items = append(items, Candidate{
			Title: title,
			URL:   absoluteURL(site.BaseURL, strings.TrimPrefix(strings.TrimSpace(href), "/")),
			sel:   row,
		})
	})

	last := cur.Page >= lastPageNumber(doc)
	next := Cursor{Page: cur.Page + 1}
	return Page{Items: items, Next: &next, LastPage: last}, nil
}

// lastPageNumber scans the pagination widget for the highest advertised page.
func lastPageNumber(doc *goquery.Document) int {
	last := 1
	doc.Find("div.resultsOffre a").Each(func(_ int, link *goquery.Selection) {
		n, err := strconv.Atoi(strings.TrimSpace(link.Text()))
		if err != nil {
			return
		}
		if n > last {
			last = n
		}
	})
	return last
}

func (a *senjobAdapter) ExtractListFields(site Site, c Candidate) domain.JobPosting {
	now := a.now()
	p := domain.JobPosting{
		Title:        c.Title,
		SourceURL:    c.URL,
		Company:      Unspecified,
		Location:     Unspecified,
		ContractType: Unspecified,
	}
	if c.sel != nil {
		if v := selText(c.sel, "td span.green_text_normal", ""); v != "" {
			p.Location = v
		}
	}

	published, expiry := senjobDates(c.sel)
	if published == "" {
		p.PublishedAt = now
	} else {
		p.PublishedAt = ParseDate(published, now)
	}
	if expiry == "" {
		p.ClosingDate = DefaultClosing(p.PublishedAt)
	} else if t, err := time.Parse("2006-01-02", expiry); err == nil {
		p.ClosingDate = t
	} else {
		p.ClosingDate = DefaultClosing(p.PublishedAt)
	}

	return p
}

// senjobDates pulls the two hidden-span dates off a listing row: publish
// first, expiry second.
func senjobDates(row *goquery.Selection) (published, expiry string) {
	if row == nil {
		return "", ""
	}
	row.Find(`td span[style="display:none"]`).EachWithBreak(func(_ int, span *goquery.Selection) bool {
		text := strings.TrimSpace(span.Text())
		if text == "" {
			return true
		}
		if published == "" {
			published = text
			return true
		}
		expiry = text
		return false
	})
	return published, expiry
}

func (a *senjobAdapter) ExtractDetailFields(site Site, body []byte, p *domain.JobPosting) {
	doc, err := parseFragment(string(body))
	if err != nil {
		return
	}

	view := doc.Find("div.view").First()
	if view.Length() == 0 {
		return
	}

	if raw, err := goquery.OuterHtml(view); err == nil {
		p.Description = strings.TrimSpace(htmlPolicy.Sanitize(raw))
	}

	view.Find("div").Each(func(_ int, div *goquery.Selection) {
		text := strings.TrimSpace(div.Text())
		upper := strings.ToUpper(text)
		switch {
		case strings.Contains(upper, "A PROPOS DE"):
			if v := valueAfterColon(text); v != "" {
				p.Company = v
			}
		case strings.Contains(upper, "TYPE DE CONTRAT"):
			if v := valueAfterColon(text); v != "" {
				p.ContractType = v
			}
		}
	})
}

func valueAfterColon(text string) string {
	idx := strings.LastIndex(text, ":")
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(text[idx+1:])
}
