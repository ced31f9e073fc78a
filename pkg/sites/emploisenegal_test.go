package sites

import (
	"context"
	"testing"
	"time"
)

const emploiSenegalListFixture = `
<html><body>
<div class="card card-job">
  <h3><a href="/offre/comptable-senior">Comptable Senior</a></h3>
  <a class="card-job-company" href="/entreprise/acme">ACME Sénégal</a>
  <div class="card-job-description"><p>Tenue de la comptabilité générale.</p></div>
  <ul>
    <li>Région de : Dakar</li>
    <li>Niveau d'études requis : Bac+4</li>
    <li>Niveau d'expérience : 5 à 10 ans</li>
    <li>Contrat proposé : CDI</li>
    <li>Compétences clés : SAGE, Excel</li>
  </ul>
  <time>05.04.2025</time>
</div>
<div class="card card-job">
  <h3><a href="https://www.emploisenegal.com/offre/dev-web">Développeur Web</a></h3>
</div>
</body></html>`

func emploiSenegalTestSite() Site {
	return Site{
		ID:      emploiSenegalSiteID,
		Name:    "Emploi Sénégal",
		Type:    TypeSequentialPage,
		BaseURL: "https://www.emploisenegal.com",
		ListURL: "https://www.emploisenegal.com/recherche-jobs-senegal",
	}
}

func TestEmploiSenegalFetchPage(t *testing.T) {
	client := newStubClient()
	client.serve("https://www.emploisenegal.com/recherche-jobs-senegal?page=0", emploiSenegalListFixture)

	adapter := NewEmploiSenegalAdapter(client)
	site := emploiSenegalTestSite()

	cur := adapter.InitialCursor(site)
	if cur.Page != 0 {
		t.Fatalf("initial cursor page = %d", cur.Page)
	}

	page, err := adapter.FetchPage(context.Background(), site, cur)
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("items = %d", len(page.Items))
	}
	if page.Items[0].Title != "Comptable Senior" {
		t.Fatalf("title = %q", page.Items[0].Title)
	}
	if page.Items[0].URL != "https://www.emploisenegal.com/offre/comptable-senior" {
		t.Fatalf("relative URL not resolved: %q", page.Items[0].URL)
	}
	if page.Items[1].URL != "https://www.emploisenegal.com/offre/dev-web" {
		t.Fatalf("absolute URL mangled: %q", page.Items[1].URL)
	}
	if page.Next == nil || page.Next.Page != 1 {
		t.Fatalf("next cursor = %+v", page.Next)
	}
	if page.LastPage {
		t.Fatalf("sequential listing must not mark last page")
	}
}

func TestEmploiSenegalExtractListFields(t *testing.T) {
	client := newStubClient()
	client.serve("https://www.emploisenegal.com/recherche-jobs-senegal?page=0", emploiSenegalListFixture)

	adapter := NewEmploiSenegalAdapter(client).(*emploiSenegalAdapter)
	adapter.now = func() time.Time { return time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC) }
	site := emploiSenegalTestSite()

	page, err := adapter.FetchPage(context.Background(), site, Cursor{Page: 0})
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}

	p := adapter.ExtractListFields(site, page.Items[0])
	if p.Company != "ACME Sénégal" {
		t.Fatalf("Company = %q", p.Company)
	}
	if p.Location != "Dakar" {
		t.Fatalf("Location = %q", p.Location)
	}
	if p.Education != "Bac+4" {
		t.Fatalf("Education = %q", p.Education)
	}
	if p.Experience != "5 à 10 ans" {
		t.Fatalf("Experience = %q", p.Experience)
	}
	if p.ContractType != "CDI" {
		t.Fatalf("ContractType = %q", p.ContractType)
	}
	if p.Skills != "SAGE, Excel" {
		t.Fatalf("Skills = %q", p.Skills)
	}
	if p.ShortDescription != "Tenue de la comptabilité générale." {
		t.Fatalf("ShortDescription = %q", p.ShortDescription)
	}
	want := time.Date(2025, 4, 5, 0, 0, 0, 0, time.UTC)
	if !p.PublishedAt.Equal(want) {
		t.Fatalf("PublishedAt = %v, want %v", p.PublishedAt, want)
	}
}

func TestEmploiSenegalSparseCardUsesSentinels(t *testing.T) {
	client := newStubClient()
	client.serve("https://www.emploisenegal.com/recherche-jobs-senegal?page=0", emploiSenegalListFixture)

	adapter := NewEmploiSenegalAdapter(client).(*emploiSenegalAdapter)
	site := emploiSenegalTestSite()

	page, err := adapter.FetchPage(context.Background(), site, Cursor{Page: 0})
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}

	p := adapter.ExtractListFields(site, page.Items[1])
	for field, v := range map[string]string{
		"Company":      p.Company,
		"Location":     p.Location,
		"Education":    p.Education,
		"Experience":   p.Experience,
		"ContractType": p.ContractType,
		"Skills":       p.Skills,
	} {
		if v != Unspecified {
			t.Errorf("%s = %q, want sentinel", field, v)
		}
	}
}

func TestEmploiSenegalExtractDetailFields(t *testing.T) {
	detail := `
<html><body>
<div class="job-description"><p>Description complète du poste.</p></div>
<div class="job-qualifications"><p>Bac+4 en comptabilité.</p></div>
<ul class="skills"><li>SAGE</li><li>Excel</li><li>  </li></ul>
<div class="card-block-company">
  <div class="field-item even">Audit et conseil</div>
  <a rel="nofollow" href="https://acme.sn"> </a>
  <p class="truncated-text">Cabinet d'audit établi à Dakar.</p>
</div>
</body></html>`

	adapter := NewEmploiSenegalAdapter(newStubClient())
	site := emploiSenegalTestSite()

	p := domainPosting("Comptable Senior")
	adapter.ExtractDetailFields(site, []byte(detail), &p)

	if p.Description == "" {
		t.Fatalf("Description not extracted")
	}
	if p.Qualifications == "" {
		t.Fatalf("Qualifications not extracted")
	}
	if p.Skills != "SAGE, Excel" {
		t.Fatalf("Skills = %q", p.Skills)
	}
	if p.Sector != "Audit et conseil" {
		t.Fatalf("Sector = %q", p.Sector)
	}
	if p.CompanyWebsite != "https://acme.sn" {
		t.Fatalf("CompanyWebsite = %q", p.CompanyWebsite)
	}
	if p.CompanyDescription != "Cabinet d'audit établi à Dakar." {
		t.Fatalf("CompanyDescription = %q", p.CompanyDescription)
	}
}

func TestEmploiSenegalDetailParseFailureKeepsListFields(t *testing.T) {
	adapter := NewEmploiSenegalAdapter(newStubClient())
	p := domainPosting("Comptable Senior")
	p.Skills = "SAGE"

	adapter.ExtractDetailFields(emploiSenegalTestSite(), []byte("<html><body></body></html>"), &p)
	if p.Skills != "SAGE" {
		t.Fatalf("Skills overwritten: %q", p.Skills)
	}
	if p.Description != "" {
		t.Fatalf("Description = %q from empty detail", p.Description)
	}
}
