package crawler

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/kaayjob-hq/kaay-emploi-harvester/pkg/httpclient"
)

// fakeHTTPResponse implements httpclient.Response.
type fakeHTTPResponse struct {
	body   []byte
	status int
}

func (f fakeHTTPResponse) Body() []byte    { return f.body }
func (f fakeHTTPResponse) StatusCode() int { return f.status }

// fakeHTTPClient serves canned responses per URL.
type fakeHTTPClient struct {
	responses map[string]fakeHTTPResponse
	err       error
	gets      []string
}

func (f *fakeHTTPClient) Get(_ context.Context, target string, _ map[string]string) (httpclient.Response, error) {
	f.gets = append(f.gets, target)
	if f.err != nil {
		return nil, f.err
	}
	resp, ok := f.responses[target]
	if !ok {
		return fakeHTTPResponse{status: 404}, nil
	}
	return resp, nil
}

func (f *fakeHTTPClient) PostForm(_ context.Context, target string, _ url.Values, _ map[string]string) (httpclient.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	resp, ok := f.responses[target]
	if !ok {
		return fakeHTTPResponse{status: 404}, nil
	}
	return resp, nil
}

func TestDetailFetcherReturnsBody(t *testing.T) {
	client := &fakeHTTPClient{responses: map[string]fakeHTTPResponse{
		"https://example.com/jobs/1": {body: []byte("<html>offre</html>"), status: 200},
	}}
	fetcher := NewDetailFetcher(client)

	body, err := fetcher.Fetch(context.Background(), "https://example.com/jobs/1", nil, 0)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(body) != "<html>offre</html>" {
		t.Fatalf("body = %q", body)
	}
}

func TestDetailFetcherRejectsNonOKStatus(t *testing.T) {
	client := &fakeHTTPClient{responses: map[string]fakeHTTPResponse{}}
	fetcher := NewDetailFetcher(client)

	if _, err := fetcher.Fetch(context.Background(), "https://example.com/missing", nil, 0); err == nil {
		t.Fatalf("expected error for non-200 status")
	}
}

func TestDetailFetcherPropagatesClientError(t *testing.T) {
	client := &fakeHTTPClient{err: errors.New("connection refused")}
	fetcher := NewDetailFetcher(client)

	if _, err := fetcher.Fetch(context.Background(), "https://example.com/jobs/1", nil, 0); err == nil {
		t.Fatalf("expected transport error")
	}
}

func TestDetailFetcherHonorsCancelledContext(t *testing.T) {
	client := &fakeHTTPClient{responses: map[string]fakeHTTPResponse{
		"https://example.com/jobs/1": {body: []byte("ok"), status: 200},
	}}
	fetcher := NewDetailFetcher(client)

	ctx, cancel := context.WithCancel(context.Background())
	// Consume the initial token so the next call has to wait, then cancel.
	if _, err := fetcher.Fetch(ctx, "https://example.com/jobs/1", nil, time.Hour); err != nil {
		t.Fatalf("first Fetch: %v", err)
	}
	cancel()
	if _, err := fetcher.Fetch(ctx, "https://example.com/jobs/1", nil, time.Hour); err == nil {
		t.Fatalf("expected context error while waiting on the limiter")
	}
}
