package crawler

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kaayjob-hq/kaay-emploi-harvester/pkg/httpclient"
)

// throttledFetcher fetches detail pages through a per-interval rate limiter,
// so every site waits at least its configured delay between detail requests.
type throttledFetcher struct {
	client httpclient.Client

	mu       sync.Mutex
	limiters map[time.Duration]*rate.Limiter
}

// NewDetailFetcher builds the default rate-limited detail fetcher.
func NewDetailFetcher(client httpclient.Client) DetailFetcher {
	return &throttledFetcher{
		client:   client,
		limiters: make(map[time.Duration]*rate.Limiter),
	}
}

func (f *throttledFetcher) limiterFor(interval time.Duration) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()

	lim, ok := f.limiters[interval]
	if !ok {
		lim = rate.NewLimiter(rate.Every(interval), 1)
		f.limiters[interval] = lim
	}
	return lim
}

// Fetch retrieves one detail page after waiting out the interval.
func (f *throttledFetcher) Fetch(ctx context.Context, url string, headers map[string]string, minInterval time.Duration) ([]byte, error) {
	if minInterval > 0 {
		if err := f.limiterFor(minInterval).Wait(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := f.client.Get(ctx, url, headers)
	if err != nil {
		return nil, fmt.Errorf("fetch detail page: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("detail page returned status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}
