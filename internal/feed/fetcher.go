package feed

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/jkeller/dailybrief/internal/cache"
	"github.com/jkeller/dailybrief/internal/config"
)

// maxPerFeed caps how many raw entries one response contributes, to
// bound downstream work.
const maxPerFeed = 20

// RetryPolicy controls automatic retries on transient failures.
// Timeouts and connection errors are always retriable; HTTP statuses
// retry only when listed.
type RetryPolicy struct {
	MaxAttempts   int
	Backoff       time.Duration // base delay, doubled each retry
	RetryStatuses map[int]bool
}

// DefaultRetryPolicy matches the retry behavior used for all sources:
// three attempts total with exponential backoff on the usual transient
// statuses.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     time.Second,
		RetryStatuses: map[int]bool{
			http.StatusTooManyRequests:     true,
			http.StatusInternalServerError: true,
			http.StatusBadGateway:          true,
			http.StatusServiceUnavailable:  true,
			http.StatusGatewayTimeout:      true,
		},
	}
}

func (p RetryPolicy) retriable(status int) bool {
	return p.RetryStatuses[status]
}

// Fetcher retrieves one source's feed with timeout and retry, parses
// it, and normalizes the entries. A nil client gets a default with a
// 10 s timeout; tests inject a client with a fake transport.
type Fetcher struct {
	client   *http.Client
	policy   RetryPolicy
	maxAge   time.Duration
	cache    *cache.Cache
	cacheTTL time.Duration
	now      func() time.Time
}

// NewFetcher creates a fetcher. maxAge is the known-timestamp age
// cutoff; entries without a parseable timestamp are retained.
func NewFetcher(client *http.Client, policy RetryPolicy, maxAge time.Duration) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if policy.MaxAttempts <= 0 {
		policy = DefaultRetryPolicy()
	}
	if maxAge <= 0 {
		maxAge = 48 * time.Hour
	}
	return &Fetcher{client: client, policy: policy, maxAge: maxAge, now: time.Now}
}

// WithCache memoizes raw response bodies in c for ttl, so repeated
// runs inside the ttl skip the network. Cache failures fall through to
// a live fetch.
func (f *Fetcher) WithCache(c *cache.Cache, ttl time.Duration) *Fetcher {
	f.cache = c
	f.cacheTTL = ttl
	return f
}

// Fetch retrieves src and returns its normalized entries, or a typed
// failure and zero entries. It never panics past this boundary.
func (f *Fetcher) Fetch(ctx context.Context, src config.Source) ([]Article, *FetchError) {
	var key string
	if f.cache != nil {
		key = cache.MakeKey("feed", map[string]string{"url": src.URL})
		if body, ok := f.cache.Get(key); ok {
			if articles, ferr := f.parse(body, src); ferr == nil {
				return articles, nil
			}
			// Cached body no longer parses; refetch.
			f.cache.Delete(key)
		}
	}

	body, ferr := f.download(ctx, src.URL)
	if ferr != nil {
		return nil, ferr
	}

	articles, ferr := f.parse(body, src)
	if ferr != nil {
		return nil, ferr
	}

	if f.cache != nil {
		f.cache.Set(key, body, f.cacheTTL)
	}
	return articles, nil
}

// download performs the HTTP retrieval under the retry policy.
func (f *Fetcher) download(ctx context.Context, feedURL string) ([]byte, *FetchError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindUnknown, Err: err}
	}
	req.Header.Set("User-Agent", "dailybrief/1.0 (news aggregator)")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")

	var last *FetchError
	for attempt := 0; attempt < f.policy.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := f.policy.Backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, &FetchError{Kind: KindTimeout, Err: ctx.Err()}
			case <-time.After(backoff):
			}
		}

		resp, err := f.client.Do(req.Clone(ctx))
		if err != nil {
			last = classify(err)
			continue
		}

		if resp.StatusCode >= 400 {
			// Drain and close before deciding; keeps the connection
			// reusable on retry.
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			last = &FetchError{Kind: KindHTTP, Status: resp.StatusCode}
			if f.policy.retriable(resp.StatusCode) {
				continue
			}
			return nil, last
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			last = classify(err)
			continue
		}
		return body, nil
	}

	return nil, last
}

// parse turns a raw response body into normalized, age-filtered
// articles. Individual malformed entries are skipped, never the whole
// source.
func (f *Fetcher) parse(body []byte, src config.Source) ([]Article, *FetchError) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{Kind: KindParse, Err: err}
	}

	items := parsed.Items
	if len(items) > maxPerFeed {
		items = items[:maxPerFeed]
	}

	cutoff := f.now().Add(-f.maxAge)
	skipped := 0
	articles := make([]Article, 0, len(items))
	for _, item := range items {
		a := Normalize(item, src.Name)
		if a == nil {
			skipped++
			continue
		}
		if a.Published != nil && a.Published.Before(cutoff) {
			continue
		}
		articles = append(articles, *a)
	}

	if skipped > 0 {
		log.Printf("Skipped %d malformed entries from %s", skipped, src.Name)
	}
	return articles, nil
}

// classify maps a transport error to a failure kind. Anything that is
// not clearly a timeout is treated as a connection failure; both are
// retriable.
func classify(err error) *FetchError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &FetchError{Kind: KindTimeout, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &FetchError{Kind: KindTimeout, Err: err}
	}
	return &FetchError{Kind: KindConnection, Err: err}
}
