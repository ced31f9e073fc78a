package publishers

import (
	"time"

	"github.com/kaayjob-hq/kaay-emploi-harvester/internal/domain"
)

// Event represents the payload published downstream for each new posting.
type Event struct {
	SiteID      string            `json:"site_id"`
	SiteName    string            `json:"site_name"`
	Posting     domain.JobPosting `json:"posting"`
	CollectedAt time.Time         `json:"collected_at"`
}

// NewEvent constructs an Event for the given site + posting.
func NewEvent(siteID, siteName string, posting domain.JobPosting) Event {
	return Event{
		SiteID:      siteID,
		SiteName:    siteName,
		Posting:     posting,
		CollectedAt: time.Now().UTC(),
	}
}
