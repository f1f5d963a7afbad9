package score

import (
	"strings"

	"github.com/jkeller/dailybrief/internal/config"
	"github.com/jkeller/dailybrief/internal/feed"
)

// Rules is the ordered content-filter cascade. Evaluation order
// matters: the allow list short-circuits to admit, the block and
// boilerplate lists short-circuit to reject, and only then do the
// conditional political and regional rules run. Later rules assume the
// earlier ones have already removed the high-confidence negatives.
type Rules struct {
	Allow            []string
	Block            []string
	Boilerplate      []string
	Political        []string
	BusinessOverride []string
	Regional         []string
	RegionalAllow    []string
}

// DefaultRules returns the built-in filter lists: sports,
// celebrity/entertainment, and press-release boilerplate are blocked;
// political coverage passes only with a business or technology angle;
// regional items pass only with a startup/research angle.
func DefaultRules() Rules {
	return Rules{
		Allow: []string{
			"ai tool", "ai app", "new app", "productivity tool",
			"developer tool", "no-code", "low-code", "open source",
			"github", "framework", "library",
		},
		Block: []string{
			// Sports
			"nfl", "nba", "mlb", "nhl", "fifa", "premier league",
			"quarterback", "touchdown", "home run", "slam dunk",
			"playoffs", "super bowl", "world series", "stanley cup",
			"world cup", "olympics", "halftime", "innings",
			"sports betting", "fantasy football", "betting odds",
			// Celebrity and entertainment
			"red carpet", "celebrity", "box office", "reality tv",
			"kardashian", "paparazzi", "tabloid", "gossip",
			"fashion week", "met gala", "award show", "acceptance speech",
			"album release", "concert tour", "season finale",
			"episode recap", "spoiler alert",
		},
		Boilerplate: []string{
			"custodial", "janitorial", "landscaping", "maintenance contract",
			"facilities management", "contract awarded", "services contract",
			"vendor selected", "procurement", "rfp awarded",
			"routine maintenance", "hr policy", "personnel announcement",
			"staff appointment", "office relocation", "parking lot",
			"announces appointment of", "promoted to",
		},
		Political: []string{
			"republican", "democrat", "gop", "election", "campaign",
			"primary", "caucus", "congress", "senate",
			"house of representatives", "partisan", "filibuster",
			"swing state", "electoral", "voter", "ballot",
		},
		BusinessOverride: []string{
			"regulation", "antitrust", "merger", "acquisition",
			"ipo", "earnings", "revenue", "market", "stock",
			"startup", "venture", "funding", "investment",
			"technology", "innovation", "crypto", "big tech",
			"silicon valley", "platform",
		},
		Regional: []string{
			"boston", "cambridge", "massachusetts", " ma ",
		},
		RegionalAllow: []string{
			"mit", "harvard", "startup", "entrepreneur", "incubator",
			"accelerator", "hackathon", "conference", "innovation",
			"venture capital", "biotech", "research institution",
		},
	}
}

// NewRules builds the cascade from config overrides, keeping defaults
// for any list the config leaves empty.
func NewRules(cfg config.Filter) Rules {
	r := DefaultRules()
	if len(cfg.Allow) > 0 {
		r.Allow = cfg.Allow
	}
	if len(cfg.Block) > 0 {
		r.Block = cfg.Block
	}
	if len(cfg.Boilerplate) > 0 {
		r.Boilerplate = cfg.Boilerplate
	}
	if len(cfg.Political) > 0 {
		r.Political = cfg.Political
	}
	if len(cfg.BusinessOverride) > 0 {
		r.BusinessOverride = cfg.BusinessOverride
	}
	if len(cfg.Regional) > 0 {
		r.Regional = cfg.Regional
	}
	if len(cfg.RegionalAllow) > 0 {
		r.RegionalAllow = cfg.RegionalAllow
	}
	return r
}

// Admit runs the cascade over the article's combined text and reports
// whether it survives.
func (r Rules) Admit(a *feed.Article) bool {
	text := strings.ToLower(a.Title + " " + a.Content + " " + a.Source)

	if containsAny(text, r.Allow) {
		return true
	}
	if containsAny(text, r.Block) {
		return false
	}
	if containsAny(text, r.Boilerplate) {
		return false
	}
	if containsAny(text, r.Political) && !containsAny(text, r.BusinessOverride) {
		return false
	}
	if containsAny(text, r.Regional) && !containsAny(text, r.RegionalAllow) {
		return false
	}
	return true
}

func containsAny(text string, words []string) bool {
	for _, word := range words {
		if word != "" && strings.Contains(text, strings.ToLower(word)) {
			return true
		}
	}
	return false
}
