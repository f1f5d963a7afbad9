// Package enrich replaces short feed excerpts with readable full text
// extracted from the article page. Enrichment is best effort: any
// failure leaves the feed excerpt in place.
package enrich

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"

	"github.com/jkeller/dailybrief/internal/feed"
)

// maxEnrichedLen caps extracted text; enriched bodies feed downstream
// summarization, not rendering, so they can run longer than excerpts.
const maxEnrichedLen = 2000

// Enricher fetches article pages and extracts readable text. Not safe
// for concurrent use; the coordinator calls it from the aggregation
// loop only.
type Enricher struct {
	client        *http.Client
	failedDomains map[string]struct{}
}

// New creates an enricher. A nil client gets a default with a 15 s
// timeout.
func New(client *http.Client) *Enricher {
	if client == nil {
		client = &http.Client{
			Timeout: 15 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		}
	}
	return &Enricher{client: client, failedDomains: make(map[string]struct{})}
}

// EnrichTop fetches full text for the first top articles, replacing
// each body only when the extraction yields more text than the feed
// gave. Once a domain fails it is skipped for the rest of the run.
func (e *Enricher) EnrichTop(ctx context.Context, articles []feed.Article, top int) {
	if top > len(articles) {
		top = len(articles)
	}
	for i := 0; i < top; i++ {
		if ctx.Err() != nil {
			return
		}
		a := &articles[i]

		u, err := url.Parse(a.Link)
		if err != nil {
			continue
		}
		domain := strings.ToLower(u.Host)
		if _, failed := e.failedDomains[domain]; failed {
			continue
		}

		text, ok := e.extract(ctx, a.Link)
		if !ok {
			if domain != "" {
				e.failedDomains[domain] = struct{}{}
				log.Printf("Enrichment failed for %s, skipping remaining from %s", a.Link, domain)
			}
			continue
		}
		if len(text) > len(a.Content) {
			a.Content = text
		}
	}
}

func (e *Enricher) extract(ctx context.Context, articleURL string) (string, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, articleURL, nil)
	if err != nil {
		return "", false
	}
	req.Header.Set("User-Agent", "dailybrief/1.0 (news aggregator)")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", false
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false
	}

	parsedURL, _ := url.Parse(articleURL)
	article, err := readability.FromReader(strings.NewReader(string(body)), parsedURL)
	if err != nil {
		return "", false
	}

	text := strings.Join(strings.Fields(article.TextContent), " ")
	if len(text) > maxEnrichedLen {
		text = text[:maxEnrichedLen]
	}
	if len(text) < 100 {
		return "", false
	}
	return text, true
}
