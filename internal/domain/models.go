package domain

import "time"

// Domain contains the core models shared across packages.

// JobPosting is one harvested job offer. SourceURL is the primary identity
// key within a site's collection; Reference, when the site exposes one, is a
// secondary identity key. Postings are created once by the crawl engine and
// never mutated afterwards.
type JobPosting struct {
	ID                 string    `json:"id"`
	SiteID             string    `json:"site_id"`
	Title              string    `json:"title"`
	Company            string    `json:"company,omitempty"`
	Location           string    `json:"location,omitempty"`
	ContractType       string    `json:"contract_type,omitempty"`
	Education          string    `json:"education,omitempty"`
	Experience         string    `json:"experience,omitempty"`
	Skills             string    `json:"skills,omitempty"`
	Sector             string    `json:"sector,omitempty"`
	CompanyWebsite     string    `json:"company_website,omitempty"`
	CompanyDescription string    `json:"company_description,omitempty"`
	ShortDescription   string    `json:"short_description,omitempty"`
	Description        string    `json:"description,omitempty"`
	Qualifications     string    `json:"qualifications,omitempty"`
	PublishedAt        time.Time `json:"published_at"`
	ClosingDate        time.Time `json:"closing_date,omitzero"`
	SourceURL          string    `json:"source_url"`
	Reference          string    `json:"reference,omitempty"`
	ImageURL           string    `json:"image_url,omitempty"`
	CollectedAt        time.Time `json:"collected_at"`
}
