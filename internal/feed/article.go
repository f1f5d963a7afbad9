package feed

import "time"

// Article is the canonical content record produced by the normalizer
// and enriched by the scorer. Published is nil when the source gave no
// parseable timestamp; such articles are retained but never treated as
// recent.
type Article struct {
	Title     string
	Link      string
	Source    string
	Content   string
	Published *time.Time
	Category  string
	Relevance float64
	Novelty   float64
}
