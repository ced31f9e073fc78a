package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/domain"
)

const (
	postingBucketPrefix = "postings:"
	refBucketPrefix     = "refs:"
)

// boltStore implements a Store backed by BoltDB. Each site gets its own
// posting bucket plus a reference index bucket enforcing reference uniqueness.
type boltStore struct {
	db *bolt.DB
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	return &boltStore{db: db}, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// KnownKeys loads every identity key stored for a site in one bucket scan.
func (b *boltStore) KnownKeys(siteID string) (KeySet, error) {
	var keys KeySet
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(postingBucketPrefix + siteID))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, v []byte) error {
			var p domain.JobPosting
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("decode stored posting: %w", err)
			}
			keys.URLs = append(keys.URLs, p.SourceURL)
			if p.Reference != "" {
				keys.References = append(keys.References, p.Reference)
			}
			keys.Titles = append(keys.Titles, p.Title)
			return nil
		})
	})
	return keys, err
}

// InsertPosting stores a posting in a single transaction: either the record
// and its reference index entry are both committed or neither is.
func (b *boltStore) InsertPosting(siteID string, p domain.JobPosting) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode posting: %w", err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(postingBucketPrefix + siteID))
		if err != nil {
			return fmt.Errorf("init posting bucket: %w", err)
		}
		refBucket, err := tx.CreateBucketIfNotExists([]byte(refBucketPrefix + siteID))
		if err != nil {
			return fmt.Errorf("init reference bucket: %w", err)
		}

		key := []byte(p.ID)
		if bucket.Get(key) != nil {
			return ErrDuplicateKey
		}
		if p.Reference != "" && refBucket.Get([]byte(p.Reference)) != nil {
			return ErrDuplicateKey
		}

		if err := bucket.Put(key, payload); err != nil {
			return err
		}
		if p.Reference != "" {
			if err := refBucket.Put([]byte(p.Reference), key); err != nil {
				return err
			}
		}
		return nil
	})
}

// ListPostings returns one page of a site's postings ordered by publication
// date descending, plus the total count.
func (b *boltStore) ListPostings(siteID string, offset, limit int) ([]domain.JobPosting, int, error) {
	var all []domain.JobPosting
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(postingBucketPrefix + siteID))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, v []byte) error {
			var p domain.JobPosting
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("decode stored posting: %w", err)
			}
			all = append(all, p)
			return nil
		})
	})
	if err != nil {
		return nil, 0, err
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].PublishedAt.After(all[j].PublishedAt)
	})

	total := len(all)
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return nil, total, nil
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

// GetPosting looks a posting up by id.
func (b *boltStore) GetPosting(siteID, id string) (domain.JobPosting, error) {
	var p domain.JobPosting
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(postingBucketPrefix + siteID))
		if bucket == nil {
			return ErrNotFound
		}
		v := bucket.Get([]byte(id))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &p)
	})
	return p, err
}
