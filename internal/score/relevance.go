// Package score assigns relevance and novelty scores to articles and
// applies the rule-cascade content filter. All matching is
// case-insensitive substring matching over title and body text.
package score

import (
	"strings"

	"github.com/jkeller/dailybrief/internal/feed"
)

// AdmissionThreshold is the minimum relevance for an article to enter
// its category bucket.
const AdmissionThreshold = 0.1

// Relevance scores an article against a category keyword list,
// returning a value in [0,1]. Title matches weigh double. Any exclude
// keyword anywhere in the text forces 0. An empty keyword list scores
// a neutral 0.5 so unkeyworded categories still admit articles.
func Relevance(a *feed.Article, keywords, exclude []string) float64 {
	text := strings.ToLower(a.Title + " " + a.Content)

	for _, word := range exclude {
		if word != "" && strings.Contains(text, strings.ToLower(word)) {
			return 0
		}
	}

	if len(keywords) == 0 {
		return 0.5
	}

	title := strings.ToLower(a.Title)
	matches, titleMatches := 0, 0
	for _, word := range keywords {
		lw := strings.ToLower(word)
		if lw == "" {
			continue
		}
		if strings.Contains(text, lw) {
			matches++
		}
		if strings.Contains(title, lw) {
			titleMatches++
		}
	}

	score := float64(matches+titleMatches*2) / float64(len(keywords)+2)
	if score > 1 {
		score = 1
	}
	return score
}

// MatchesAny reports whether any of the keywords appears in the
// article's title or body. Used for per-source filter keyword
// overrides.
func MatchesAny(a *feed.Article, keywords []string) bool {
	text := strings.ToLower(a.Title + " " + a.Content)
	for _, word := range keywords {
		if word != "" && strings.Contains(text, strings.ToLower(word)) {
			return true
		}
	}
	return false
}
