package crawler

import (
	"fmt"
	"strings"

	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/storage"
)

// DedupIndex is the in-memory identity index for one crawl pass. It is loaded
// from storage in a single scan before the pass starts and only appended to
// while the pass runs, so classification never touches storage per item.
type DedupIndex struct {
	urls   map[string]struct{}
	refs   map[string]struct{}
	titles map[string]struct{}
}

// LoadDedupIndex builds the index from everything already stored for a site.
func LoadDedupIndex(store storage.Store, siteID string) (*DedupIndex, error) {
	keys, err := store.KnownKeys(siteID)
	if err != nil {
		return nil, fmt.Errorf("load dedup index for %s: %w", siteID, err)
	}

	idx := &DedupIndex{
		urls:   make(map[string]struct{}, len(keys.URLs)),
		refs:   make(map[string]struct{}, len(keys.References)),
		titles: make(map[string]struct{}, len(keys.Titles)),
	}
	for _, u := range keys.URLs {
		idx.urls[u] = struct{}{}
	}
	for _, r := range keys.References {
		idx.refs[r] = struct{}{}
	}
	for _, t := range keys.Titles {
		idx.titles[normalizeTitle(t)] = struct{}{}
	}
	return idx, nil
}

// IsDuplicate reports whether any identity key has been seen before. Titles
// match case-insensitively.
func (d *DedupIndex) IsDuplicate(title, url, reference string) bool {
	if _, ok := d.urls[url]; ok && url != "" {
		return true
	}
	if reference != "" {
		if _, ok := d.refs[reference]; ok {
			return true
		}
	}
	if title != "" {
		if _, ok := d.titles[normalizeTitle(title)]; ok {
			return true
		}
	}
	return false
}

// Record adds an item's identity keys so later items in the same pass see it.
func (d *DedupIndex) Record(title, url, reference string) {
	if url != "" {
		d.urls[url] = struct{}{}
	}
	if reference != "" {
		d.refs[reference] = struct{}{}
	}
	if title != "" {
		d.titles[normalizeTitle(title)] = struct{}{}
	}
}

// Size returns the number of known URLs, which tracks stored postings.
func (d *DedupIndex) Size() int {
	return len(d.urls)
}

func normalizeTitle(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
