package sites

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/domain"
)

const emploiSenegalSiteID = "emploisenegal"

// emploiSenegalAdapter walks the EmploiSenegal search results with a plain
// incrementing ?page= parameter, starting at page 0. The site never reports a
// last page; the crawl stops on the first empty page.
type emploiSenegalAdapter struct {
	client HTTPClient
	now    func() time.Time
}

// NewEmploiSenegalAdapter builds the adapter for emploisenegal.com listings.
func NewEmploiSenegalAdapter(client HTTPClient) Adapter {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &emploiSenegalAdapter{client: client, now: time.Now}
}

func (a *emploiSenegalAdapter) ID() string { return emploiSenegalSiteID }

func (a *emploiSenegalAdapter) InitialCursor(Site) Cursor { return Cursor{Page: 0} }

func (a *emploiSenegalAdapter) FetchPage(ctx context.Context, site Site, cur Cursor) (Page, error) {
	pageURL := fmt.Sprintf("%s?page=%d", site.ListURL, cur.Page)
	doc, err := fetchListDocument(ctx, a.client, site.ID, pageURL, Headers(site))
	if err != nil {
		return Page{}, err
	}

	var items []Candidate
	doc.Find("div.card.card-job").Each(func(_ int, card *goquery.Selection) {
		link := card.Find("h3 a").First()
		if link.Length() == 0 {
			return
		}
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		title := strings.TrimSpace(link.Text())
		if title == "" {
			return
		}
		items = append(items, Candidate{
			Title: title,
			URL:   absoluteURL(site.BaseURL, href),
			sel:   card,
		})
	})

	next := Cursor{Page: cur.Page + 1}
	return Page{Items: items, Next: &next}, nil
}

func (a *emploiSenegalAdapter) ExtractListFields(site Site, c Candidate) domain.JobPosting {
	p := domain.JobPosting{
		Title:        c.Title,
		SourceURL:    c.URL,
		Company:      Unspecified,
		Location:     Unspecified,
		Education:    Unspecified,
		Experience:   Unspecified,
		ContractType: Unspecified,
		Skills:       Unspecified,
		PublishedAt:  a.now(),
	}
	if c.sel == nil {
		return p
	}

	if v := selText(c.sel, "a.card-job-company", ""); v != "" {
		p.Company = v
	}
	p.ShortDescription = selText(c.sel, "div.card-job-description p", "")

	c.sel.Find("li").Each(func(_ int, li *goquery.Selection) {
		text := li.Text()
		switch {
		case strings.Contains(text, "Région de") || strings.Contains(text, "Localisation"):
			p.Location = labelValue(text, "Localisation")
		case strings.Contains(text, "Niveau d'études requis"):
			p.Education = labelValue(text, "Niveau d'études requis")
		case strings.Contains(text, "Niveau d'expérience"):
			p.Experience = labelValue(text, "Niveau d'expérience")
		case strings.Contains(text, "Contrat proposé"):
			p.ContractType = labelValue(text, "Contrat proposé")
		case strings.Contains(text, "Compétences clés"):
			p.Skills = labelValue(text, "Compétences clés")
		}
	})

	// Card dates come as 05.04.2025; anything else falls back to now.
	p.PublishedAt = ParseDate(selText(c.sel, "time", ""), a.now())

	return p
}

func (a *emploiSenegalAdapter) ExtractDetailFields(site Site, body []byte, p *domain.JobPosting) {
	doc, err := parseFragment(string(body))
	if err != nil {
		return
	}
	root := doc.Selection

	if v := outerHTML(root, "div.job-description"); v != "" {
		p.Description = v
	}
	if v := outerHTML(root, "div.job-qualifications"); v != "" {
		p.Qualifications = v
	}

	var skills []string
	root.Find(".skills li").Each(func(_ int, li *goquery.Selection) {
		if s := strings.TrimSpace(li.Text()); s != "" {
			skills = append(skills, s)
		}
	})
	if len(skills) > 0 {
		p.Skills = strings.Join(skills, ", ")
	}

	company := root.Find("div.card-block-company").First()
	if company.Length() > 0 {
		if v := selText(company, "div.field-item.even", ""); v != "" {
			p.Sector = v
		}
		if href, ok := company.Find(`a[rel="nofollow"]`).First().Attr("href"); ok {
			p.CompanyWebsite = strings.TrimSpace(href)
		}
		if v := selText(company, "p.truncated-text", ""); v != "" {
			p.CompanyDescription = v
		}
	}
}
