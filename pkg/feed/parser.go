package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-pkgz/lgr"
	"github.com/mmcdole/gofeed"

	"github.com/papyrus-app/papyrus/pkg/domain"
)

// MaxEntries caps how many entries are translated from a single feed fetch.
// Entries past the cap are dropped in whatever order the source provides.
const MaxEntries = 500

// Parser fetches and normalizes RSS/Atom feeds
type Parser struct {
	client     *http.Client
	userAgent  string
	maxEntries int
}

// NewParser creates a new feed parser with a per-fetch timeout
func NewParser(timeout time.Duration, userAgent string) *Parser {
	return &Parser{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent:  userAgent,
		maxEntries: MaxEntries,
	}
}

// Parse fetches a feed and returns normalized articles. It never fails:
// a network or parse error degrades to an empty result so one broken feed
// can't take down a refresh cycle. Entries missing title or link are dropped.
func (p *Parser) Parse(ctx context.Context, feedURL, feedName string) []domain.ParsedArticle {
	body, err := p.fetch(ctx, feedURL)
	if err != nil {
		lgr.Printf("[WARN] fetch feed %s: %v", feedURL, err)
		return nil
	}
	defer body.Close()

	parsed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		lgr.Printf("[WARN] parse feed %s: %v", feedURL, err)
		return nil
	}

	articles := make([]domain.ParsedArticle, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		if item.Title == "" || item.Link == "" {
			continue
		}
		articles = append(articles, domain.ParsedArticle{
			FeedName:    feedName,
			FeedURL:     feedURL,
			Title:       item.Title,
			URL:         item.Link,
			Description: itemDescription(item),
			Date:        itemDate(item),
		})
		if len(articles) >= p.maxEntries {
			break
		}
	}
	return articles
}

// Fetch retrieves the raw feed body, used by the proxy endpoint
func (p *Parser) Fetch(ctx context.Context, url string) ([]byte, error) {
	body, err := p.fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}
	return data, nil
}

// itemDescription prefers the structured content body over the
// description/summary field. gofeed maps Atom summary onto Description.
func itemDescription(item *gofeed.Item) string {
	if item.Content != "" {
		return item.Content
	}
	return item.Description
}

// itemDate resolves the published date with the published > updated > pubDate
// fallback chain (gofeed folds RSS pubDate into the published fields) and
// normalizes it to a calendar date, dropping time-of-day and timezone.
// Unparsable or absent dates yield an empty string.
func itemDate(item *gofeed.Item) string {
	candidates := []struct {
		raw    string
		parsed *time.Time
	}{
		{item.Published, item.PublishedParsed},
		{item.Updated, item.UpdatedParsed},
	}

	for _, c := range candidates {
		if c.raw != "" {
			if t, err := dateparse.ParseAny(c.raw); err == nil {
				return t.Format(domain.DateLayout)
			}
		}
		if c.parsed != nil {
			return c.parsed.Format(domain.DateLayout)
		}
	}
	return ""
}

// fetch retrieves content from a URL
func (p *Parser) fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "application/rss+xml,application/atom+xml,application/xml;q=0.9,text/xml;q=0.8,*/*;q=0.5")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch URL: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return resp.Body, nil
}
