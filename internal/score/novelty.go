package score

import (
	"strings"

	"github.com/jkeller/dailybrief/internal/config"
	"github.com/jkeller/dailybrief/internal/feed"
)

// NoveltyWeights holds the bonuses and penalties applied by Novelty.
// The resulting score has no fixed range; it orders articles within a
// category and never decides admission.
type NoveltyWeights struct {
	UnknownSource     float64
	Innovative        float64
	Interest          float64
	Political         float64 // negative
	Clickbait         float64 // negative
	MainstreamSources []string
	InterestKeywords  []string
}

var (
	innovativeKeywords = []string{
		"breakthrough", "first", "novel", "unprecedented", "discovery",
	}
	politicalTitleKeywords = []string{
		"democrat", "republican", "congress", "senate", "election",
	}
	clickbaitPatterns = []string{
		"you won't believe", "this one trick", "shocking", "destroyed",
	}
	defaultMainstream = []string{
		"cnn", "fox", "msnbc", "bloomberg", "reuters", "ap news",
	}
)

// DefaultNoveltyWeights returns the standard weighting.
func DefaultNoveltyWeights() NoveltyWeights {
	return NoveltyWeights{
		UnknownSource:     3.0,
		Innovative:        1.5,
		Interest:          2.0,
		Political:         -2.5,
		Clickbait:         -3.0,
		MainstreamSources: defaultMainstream,
	}
}

// NewNoveltyWeights applies config overrides to the default weighting.
func NewNoveltyWeights(cfg config.Novelty) NoveltyWeights {
	w := DefaultNoveltyWeights()
	w.InterestKeywords = cfg.BoostKeywords
	if len(cfg.MainstreamSources) > 0 {
		w.MainstreamSources = cfg.MainstreamSources
	}
	return w
}

// Novelty scores how interesting an article is relative to its peers:
// rare sources and breakthrough vocabulary add weight, political or
// clickbait titles subtract it.
func Novelty(a *feed.Article, w NoveltyWeights) float64 {
	title := strings.ToLower(a.Title)
	source := strings.ToLower(a.Source)
	body := strings.ToLower(a.Content)

	score := 0.0

	mainstream := false
	for _, name := range w.MainstreamSources {
		if strings.Contains(source, name) {
			mainstream = true
			break
		}
	}
	if !mainstream {
		score += w.UnknownSource
	}

	for _, word := range innovativeKeywords {
		if strings.Contains(title, word) || strings.Contains(body, word) {
			score += w.Innovative
			break
		}
	}

	for _, word := range politicalTitleKeywords {
		if strings.Contains(title, word) {
			score += w.Political
			break
		}
	}

	for _, pattern := range clickbaitPatterns {
		if strings.Contains(title, pattern) {
			score += w.Clickbait
			break
		}
	}

	for _, word := range w.InterestKeywords {
		lw := strings.ToLower(word)
		if lw != "" && (strings.Contains(title, lw) || strings.Contains(body, lw)) {
			score += w.Interest
			break
		}
	}

	return score
}
