package sites

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // non-cryptographic id generation
	"encoding/hex"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"

	"github.com/kaayjob-hq/kaay-emploi-harvester/pkg/httpclient"
)

// Unspecified is the sentinel stored when a list-level field cannot be
// located; extraction gaps never discard an item.
const Unspecified = "Non spécifié"

// htmlPolicy sanitizes detail fragments before they are persisted.
var htmlPolicy = bluemonday.UGCPolicy()

// HashURL derives the stable posting id from its source URL.
func HashURL(u string) string {
	sum := sha1.Sum([]byte(u))
	return hex.EncodeToString(sum[:])
}

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}

// Headers builds request headers for a site, rotating among its user-agent
// pool when one is configured.
func Headers(site Site) map[string]string {
	headers := make(map[string]string, len(site.Headers)+1)
	for k, v := range site.Headers {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		headers[key] = val
	}
	if _, ok := headers["User-Agent"]; !ok {
		headers["User-Agent"] = pickUserAgent(site)
	}
	return headers
}

func pickUserAgent(site Site) string {
	if len(site.UserAgents) == 0 {
		return defaultUserAgent
	}
	return site.UserAgents[rand.Intn(len(site.UserAgents))]
}

// fetchListDocument GETs a list page and parses it.
func fetchListDocument(ctx context.Context, client httpclient.Client, siteID, pageURL string, headers map[string]string) (*goquery.Document, error) {
	resp, err := client.Get(ctx, pageURL, headers)
	if err != nil {
		return nil, fmt.Errorf("fetch %s list page: %w", siteID, err)
	}

	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%s list page returned status %d body: %s", siteID, resp.StatusCode(), responseSnippet(body))
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s list page: %w", siteID, err)
	}
	return doc, nil
}

func parseFragment(html string) (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

// selText returns the trimmed text of the first match, or fallback.
func selText(root *goquery.Selection, selector, fallback string) string {
	node := root.Find(selector).First()
	if node.Length() == 0 {
		return fallback
	}
	if txt := strings.TrimSpace(node.Text()); txt != "" {
		return txt
	}
	return fallback
}

// outerHTML renders the first match as sanitized HTML, or "".
func outerHTML(root *goquery.Selection, selector string) string {
	node := root.Find(selector).First()
	if node.Length() == 0 {
		return ""
	}
	raw, err := goquery.OuterHtml(node)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(htmlPolicy.Sanitize(raw))
}

// absoluteURL resolves href against base when href is relative.
func absoluteURL(base, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// labelValue strips a "Label :" prefix, keeping whatever follows the colon.
func labelValue(text, label string) string {
	trimmed := strings.TrimSpace(text)
	idx := strings.Index(trimmed, ":")
	if idx >= 0 {
		return strings.TrimSpace(trimmed[idx+1:])
	}
	return strings.TrimSpace(strings.TrimPrefix(trimmed, label))
}
