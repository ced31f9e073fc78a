package sites

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/domain"
)

const emploiDakarSiteID = "emploidakar"

// listingEnvelope is the WP Job Manager AJAX response: listing markup plus
// pagination metadata.
type listingEnvelope struct {
	HTML        string      `json:"html"`
	MaxNumPages json.Number `json:"max_num_pages"`
}

// emploiDakarAdapter pages through the EmploiDakar AJAX listing endpoint with
// form-encoded POST requests. The envelope's max_num_pages marks the last page.
type emploiDakarAdapter struct {
	client HTTPClient
	now    func() time.Time
}

// NewEmploiDakarAdapter builds the adapter for emploidakar.com listings.
func NewEmploiDakarAdapter(client HTTPClient) Adapter {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &emploiDakarAdapter{client: client, now: time.Now}
}

func (a *emploiDakarAdapter) ID() string { return emploiDakarSiteID }

func (a *emploiDakarAdapter) InitialCursor(Site) Cursor { return Cursor{Page: 1} }

func (a *emploiDakarAdapter) FetchPage(ctx context.Context, site Site, cur Cursor) (Page, error) {
	form := url.Values{
		"page":     {fmt.Sprintf("%d", cur.Page)},
		"per_page": {fmt.Sprintf("%d", site.PerPage)},
		"orderby":  {"date"},
		"order":    {"DESC"},
	}

	resp, err := a.client.PostForm(ctx, site.AjaxURL, form, Headers(site))
	if err != nil {
		return Page{}, fmt.Errorf("fetch %s listings: %w", site.ID, err)
	}
	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return Page{}, fmt.Errorf("%s listings returned status %d body: %s", site.ID, resp.StatusCode(), responseSnippet(body))
	}

	var envelope listingEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Page{}, fmt.Errorf("decode %s listing envelope: %w", site.ID, err)
	}
	if strings.TrimSpace(envelope.HTML) == "" {
		return Page{LastPage: true}, nil
	}

	doc, err := parseFragment(envelope.HTML)
	if err != nil {
		return Page{}, fmt.Errorf("parse %s listing fragment: %w", site.ID, err)
	}

	var items []Candidate
	doc.Find("li.job_listing").Each(func(_ int, li *goquery.Selection) {
		href, ok := li.Find("a").First().Attr("href")
		if !ok {
			return
		}
		link := strings.TrimSpace(href)
		title := selText(li, ".position h3", "Sans titre")

		items = append(items, Candidate{
			Title:     title,
			URL:       link,
			Reference: referenceFromURL(link),
			sel:       li,
		})
	})

	maxPages, _ := envelope.MaxNumPages.Int64()
	last := maxPages > 0 && int64(cur.Page) >= maxPages
	next := Cursor{Page: cur.Page + 1}
	return Page{Items: items, Next: &next, LastPage: last}, nil
}

// referenceFromURL takes the slug segment of a posting URL, its site-specific
// external id.
func referenceFromURL(link string) string {
	parts := strings.Split(strings.TrimSuffix(link, "/"), "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

func (a *emploiDakarAdapter) ExtractListFields(site Site, c Candidate) domain.JobPosting {
	p := domain.JobPosting{
		Title:        c.Title,
		SourceURL:    c.URL,
		Reference:    c.Reference,
		Company:      "Entreprise non spécifiée",
		Location:     "Lieu non spécifié",
		ContractType: "Type non spécifié",
		PublishedAt:  a.now(),
	}
	if c.sel == nil {
		return p
	}

	if v := selText(c.sel, ".company strong", ""); v != "" {
		p.Company = v
	}
	if v := selText(c.sel, ".location", ""); v != "" {
		p.Location = v
	}
	if v := selText(c.sel, ".meta .job-type", ""); v != "" {
		p.ContractType = v
	}

	if dt, ok := c.sel.Find(".meta time").First().Attr("datetime"); ok {
		p.PublishedAt = ParseDate(dt, a.now())
	}

	return p
}

func (a *emploiDakarAdapter) ExtractDetailFields(site Site, body []byte, p *domain.JobPosting) {
	doc, err := parseFragment(string(body))
	if err != nil {
		return
	}
	if v := outerHTML(doc.Selection, ".job_description"); v != "" {
		p.Description = v
	}
}
