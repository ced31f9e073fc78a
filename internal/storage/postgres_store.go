package storage

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/domain"
)

const postingsSchema = `
CREATE TABLE IF NOT EXISTS postings (
	site_id             TEXT NOT NULL,
	id                  TEXT NOT NULL,
	title               TEXT NOT NULL,
	company             TEXT NOT NULL DEFAULT '',
	location            TEXT NOT NULL DEFAULT '',
	contract_type       TEXT NOT NULL DEFAULT '',
	education           TEXT NOT NULL DEFAULT '',
	experience          TEXT NOT NULL DEFAULT '',
	skills              TEXT NOT NULL DEFAULT '',
	sector              TEXT NOT NULL DEFAULT '',
	company_website     TEXT NOT NULL DEFAULT '',
	company_description TEXT NOT NULL DEFAULT '',
	short_description   TEXT NOT NULL DEFAULT '',
	description         TEXT NOT NULL DEFAULT '',
	qualifications      TEXT NOT NULL DEFAULT '',
	published_at        TIMESTAMPTZ NOT NULL,
	closing_date        TIMESTAMPTZ,
	source_url          TEXT NOT NULL,
	reference           TEXT NOT NULL DEFAULT '',
	image_url           TEXT NOT NULL DEFAULT '',
	collected_at        TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (site_id, id)
);
CREATE UNIQUE INDEX IF NOT EXISTS postings_site_url_idx ON postings (site_id, source_url);
CREATE UNIQUE INDEX IF NOT EXISTS postings_site_ref_idx ON postings (site_id, reference) WHERE reference <> '';
CREATE INDEX IF NOT EXISTS postings_site_published_idx ON postings (site_id, published_at DESC);
`

// postgresStore implements a Store backed by PostgreSQL.
type postgresStore struct {
	db *sql.DB
}

// openPostgres opens the connection and ensures the schema exists.
func openPostgres(dsn string) (Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.Exec(postingsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init postings schema: %w", err)
	}
	return &postgresStore{db: db}, nil
}

func (s *postgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// KnownKeys loads all identity keys for a site in one query.
func (s *postgresStore) KnownKeys(siteID string) (KeySet, error) {
	rows, err := s.db.Query(`SELECT source_url, reference, title FROM postings WHERE site_id = $1`, siteID)
	if err != nil {
		return KeySet{}, fmt.Errorf("load known keys: %w", err)
	}
	defer rows.Close()

	var keys KeySet
	for rows.Next() {
		var url, ref, title string
		if err := rows.Scan(&url, &ref, &title); err != nil {
			return KeySet{}, fmt.Errorf("scan known keys: %w", err)
		}
		keys.URLs = append(keys.URLs, url)
		if ref != "" {
			keys.References = append(keys.References, ref)
		}
		keys.Titles = append(keys.Titles, title)
	}
	return keys, rows.Err()
}

// InsertPosting writes the posting; a unique-key collision reports
// ErrDuplicateKey via the zero rows affected of ON CONFLICT DO NOTHING.
func (s *postgresStore) InsertPosting(siteID string, p domain.JobPosting) error {
	var closing any
	if !p.ClosingDate.IsZero() {
		closing = p.ClosingDate
	}

	res, err := s.db.Exec(`
		INSERT INTO postings (
			site_id, id, title, company, location, contract_type, education,
			experience, skills, sector, company_website, company_description,
			short_description, description, qualifications, published_at,
			closing_date, source_url, reference, image_url, collected_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		ON CONFLICT DO NOTHING`,
		siteID, p.ID, p.Title, p.Company, p.Location, p.ContractType, p.Education,
		p.Experience, p.Skills, p.Sector, p.CompanyWebsite, p.CompanyDescription,
		p.ShortDescription, p.Description, p.Qualifications, p.PublishedAt,
		closing, p.SourceURL, p.Reference, p.ImageURL, p.CollectedAt,
	)
	if err != nil {
		return fmt.Errorf("insert posting: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert posting rows: %w", err)
	}
	if affected == 0 {
		return ErrDuplicateKey
	}
	return nil
}

// ListPostings returns one page ordered by publication date descending.
func (s *postgresStore) ListPostings(siteID string, offset, limit int) ([]domain.JobPosting, int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM postings WHERE site_id = $1`, siteID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count postings: %w", err)
	}

	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, title, company, location, contract_type, education, experience,
		       skills, sector, company_website, company_description,
		       short_description, description, qualifications, published_at,
		       closing_date, source_url, reference, image_url, collected_at
		FROM postings
		WHERE site_id = $1
		ORDER BY published_at DESC
		OFFSET $2 LIMIT $3`, siteID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list postings: %w", err)
	}
	defer rows.Close()

	var out []domain.JobPosting
	for rows.Next() {
		p, err := scanPosting(rows, siteID)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// GetPosting looks a posting up by id.
func (s *postgresStore) GetPosting(siteID, id string) (domain.JobPosting, error) {
	row := s.db.QueryRow(`
		SELECT id, title, company, location, contract_type, education, experience,
		       skills, sector, company_website, company_description,
		       short_description, description, qualifications, published_at,
		       closing_date, source_url, reference, image_url, collected_at
		FROM postings
		WHERE site_id = $1 AND id = $2`, siteID, id)

	p, err := scanPosting(row, siteID)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.JobPosting{}, ErrNotFound
	}
	return p, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPosting(row rowScanner, siteID string) (domain.JobPosting, error) {
	var p domain.JobPosting
	var closing sql.NullTime
	err := row.Scan(
		&p.ID, &p.Title, &p.Company, &p.Location, &p.ContractType, &p.Education,
		&p.Experience, &p.Skills, &p.Sector, &p.CompanyWebsite,
		&p.CompanyDescription, &p.ShortDescription, &p.Description,
		&p.Qualifications, &p.PublishedAt, &closing, &p.SourceURL, &p.Reference,
		&p.ImageURL, &p.CollectedAt,
	)
	if err != nil {
		return domain.JobPosting{}, err
	}
	p.SiteID = siteID
	if closing.Valid {
		p.ClosingDate = closing.Time
	}
	return p, nil
}
