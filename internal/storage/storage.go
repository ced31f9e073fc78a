package storage

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/domain"
)

// Package storage provides the posting store abstraction.

// ErrDuplicateKey is returned when an insert collides with an existing
// posting's source URL or reference.
var ErrDuplicateKey = errors.New("posting already exists")

// ErrNotFound is returned when a posting lookup misses.
var ErrNotFound = errors.New("posting not found")

// KeySet is the full set of identity keys stored for one site, loaded in a
// single pass so the crawl engine never needs per-item existence queries.
type KeySet struct {
	URLs       []string
	References []string
	Titles     []string
}

// Store persists harvested postings per site.
type Store interface {
	Close() error
	KnownKeys(siteID string) (KeySet, error)
	InsertPosting(siteID string, p domain.JobPosting) error
	ListPostings(siteID string, offset, limit int) ([]domain.JobPosting, int, error)
	GetPosting(siteID, id string) (domain.JobPosting, error)
}

// NewStore creates the configured storage backend.
func NewStore(typ, path, dsn string) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))

	switch typ {
	case "", "none", "disabled":
		return noopStore{}, nil
	case "bbolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path)
	case "postgres":
		if strings.TrimSpace(dsn) == "" {
			return nil, fmt.Errorf("postgres storage requires a dsn")
		}
		return openPostgres(dsn)
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

type noopStore struct{}

func (noopStore) Close() error                            { return nil }
func (noopStore) KnownKeys(string) (KeySet, error)        { return KeySet{}, nil }
func (noopStore) InsertPosting(string, domain.JobPosting) error { return nil }
func (noopStore) ListPostings(string, int, int) ([]domain.JobPosting, int, error) {
	return nil, 0, nil
}
func (noopStore) GetPosting(string, string) (domain.JobPosting, error) {
	return domain.JobPosting{}, ErrNotFound
}
