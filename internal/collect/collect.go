// Package collect fans fetch work out across all configured sources
// under a bounded worker pool and aggregates the results into a
// ranked, deduplicated run result.
package collect

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"

	"github.com/jkeller/dailybrief/internal/config"
	"github.com/jkeller/dailybrief/internal/dedup"
	"github.com/jkeller/dailybrief/internal/enrich"
	"github.com/jkeller/dailybrief/internal/feed"
	"github.com/jkeller/dailybrief/internal/score"
)

// ErrNoSources is returned when the catalog holds no usable sources;
// it is the only condition that aborts a run.
var ErrNoSources = errors.New("no sources configured")

// Stats summarizes one run for observability.
type Stats struct {
	Attempted int
	Succeeded int
	Failed    int
	Records   int
	Elapsed   time.Duration
}

// SourceFailure records why one source contributed nothing.
type SourceFailure struct {
	Source   string
	Category string
	Kind     feed.ErrorKind
}

// Result maps category names to ranked articles (insertion order is
// rank order, highest first) plus run statistics.
type Result struct {
	Categories map[string][]feed.Article
	Failures   []SourceFailure
	Stats      Stats
}

// Collector owns one run: dispatch, scoring, filtering, dedup, and
// ranking. All cross-task state is confined to the aggregation loop;
// workers communicate only through a channel.
type Collector struct {
	cfg      *config.Config
	fetcher  *feed.Fetcher
	ledger   *dedup.Ledger
	enricher *enrich.Enricher
	rules    score.Rules
	weights  score.NoveltyWeights
}

// New creates a collector over the configured catalog.
func New(cfg *config.Config, fetcher *feed.Fetcher, ledger *dedup.Ledger) *Collector {
	return &Collector{
		cfg:     cfg,
		fetcher: fetcher,
		ledger:  ledger,
		rules:   score.NewRules(cfg.Filter),
		weights: score.NewNoveltyWeights(cfg.Novelty),
	}
}

// WithEnricher enables full-text enrichment of top-ranked articles.
func (c *Collector) WithEnricher(e *enrich.Enricher) *Collector {
	c.enricher = e
	return c
}

type task struct {
	id       int
	category config.Category
	source   config.Source
}

type taskResult struct {
	id       int
	category string
	source   string
	articles []feed.Article
	err      *feed.FetchError
}

// Run executes one collection pass: every source of every category is
// fetched concurrently under the worker cap, results are collected
// in completion order, and each category bucket is deduplicated,
// ranked, and truncated. Tasks still outstanding at the run deadline
// are abandoned and counted as timeout failures.
func (c *Collector) Run(ctx context.Context) (*Result, error) {
	var tasks []task
	for _, cat := range c.cfg.Categories {
		for _, src := range cat.Sources {
			tasks = append(tasks, task{id: len(tasks), category: cat, source: src})
		}
	}
	if len(tasks) == 0 {
		return nil, ErrNoSources
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Collector.RunTimeout())
	defer cancel()

	// Buffered so a worker finishing after abandonment never blocks;
	// its result is simply discarded.
	results := make(chan taskResult, len(tasks))
	sem := make(chan struct{}, c.cfg.Collector.MaxWorkers)

	for _, t := range tasks {
		go func(t task) {
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}
			defer func() { <-sem }()

			r := taskResult{id: t.id, category: t.category.Name, source: t.source.Name}
			articles, ferr := c.fetcher.Fetch(ctx, t.source)
			if ferr != nil {
				r.err = ferr
			} else {
				r.articles = c.process(t, articles)
			}
			results <- r
		}(t)
	}

	stats := Stats{Attempted: len(tasks)}
	var failures []SourceFailure
	buckets := make(map[string][]feed.Article)

	pending := make(map[int]task, len(tasks))
	for _, t := range tasks {
		pending[t.id] = t
	}

collecting:
	for len(pending) > 0 {
		select {
		case r := <-results:
			delete(pending, r.id)
			if r.err != nil {
				stats.Failed++
				failures = append(failures, SourceFailure{Source: r.source, Category: r.category, Kind: r.err.Kind})
				log.Printf("Fetch failed for %s: %v", r.source, r.err)
				continue
			}
			stats.Succeeded++
			buckets[r.category] = append(buckets[r.category], r.articles...)
			log.Printf("Fetched %d articles from %s", len(r.articles), r.source)
		case <-ctx.Done():
			for _, t := range pending {
				stats.Failed++
				failures = append(failures, SourceFailure{Source: t.source.Name, Category: t.category.Name, Kind: feed.KindTimeout})
			}
			log.Printf("Run deadline reached, abandoned %d sources", len(pending))
			break collecting
		}
	}

	// Aggregation: the collector owns all cross-task state from here.
	// Catalog order keeps cross-category dedup deterministic.
	categories := make(map[string][]feed.Article)
	for _, cat := range c.cfg.Categories {
		articles := buckets[cat.Name]
		if len(articles) == 0 {
			continue
		}
		articles = c.ledger.Filter(articles)
		rank(articles)
		if limit := c.cfg.Collector.PerCategoryLimit; len(articles) > limit {
			articles = articles[:limit]
		}
		if len(articles) == 0 {
			continue
		}
		if c.enricher != nil && c.cfg.Collector.EnrichContent {
			c.enricher.EnrichTop(ctx, articles, c.cfg.Collector.EnrichTop)
		}
		categories[cat.Name] = articles
		stats.Records += len(articles)
	}

	stats.Elapsed = time.Since(start)
	log.Printf("Collection complete: %d/%d sources succeeded, %d failed, %d articles in %.2fs",
		stats.Succeeded, stats.Attempted, stats.Failed, stats.Records, stats.Elapsed.Seconds())

	return &Result{Categories: categories, Failures: failures, Stats: stats}, nil
}

// process scores and filters one source's normalized entries inside
// the worker, so only admitted articles cross the channel.
func (c *Collector) process(t task, articles []feed.Article) []feed.Article {
	admitted := make([]feed.Article, 0, len(articles))
	for _, a := range articles {
		a.Category = t.category.Name
		a.Relevance = score.Relevance(&a, t.category.Keywords, t.category.ExcludeKeywords)
		if a.Relevance <= score.AdmissionThreshold {
			continue
		}
		if !c.rules.Admit(&a) {
			continue
		}
		if len(t.source.FilterKeywords) > 0 && !score.MatchesAny(&a, t.source.FilterKeywords) {
			continue
		}
		a.Novelty = score.Novelty(&a, c.weights)
		admitted = append(admitted, a)
		if len(admitted) >= t.source.MaxArticles {
			break
		}
	}
	return admitted
}

// rank orders articles by relevance, then recency (unknown timestamps
// sort last), then link for a fully deterministic order.
func rank(articles []feed.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		a, b := articles[i], articles[j]
		if a.Relevance != b.Relevance {
			return a.Relevance > b.Relevance
		}
		switch {
		case a.Published != nil && b.Published != nil:
			if !a.Published.Equal(*b.Published) {
				return a.Published.After(*b.Published)
			}
		case a.Published != nil:
			return true
		case b.Published != nil:
			return false
		}
		return a.Link < b.Link
	})
}
