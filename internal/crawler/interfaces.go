package crawler

import (
	"context"
	"time"

	"github.com/kaayjob-hq/kaay-emploi-harvester/pkg/publishers"
)

// DetailFetcher retrieves a posting's detail page, honoring the site's
// mandatory inter-request interval.
type DetailFetcher interface {
	Fetch(ctx context.Context, url string, headers map[string]string, minInterval time.Duration) ([]byte, error)
}

// EventPublisher fans a harvested-posting event out to the configured sinks.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}
