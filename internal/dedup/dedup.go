// Package dedup keeps a durable record of content fingerprints so the
// same article never surfaces twice within the retention window, even
// across process restarts.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jkeller/dailybrief/internal/feed"
)

// RetentionWindow is how long a fingerprint counts as seen.
const RetentionWindow = 24 * time.Hour

const ledgerVersion = 1

// ledgerFile is the durable form: a versioned map of fingerprint to
// last-seen time. A corrupt or foreign-schema file loads as empty.
type ledgerFile struct {
	Version int                  `json:"version"`
	Seen    map[string]time.Time `json:"seen"`
}

// Ledger tracks seen fingerprints with time-based eviction. Safe for
// concurrent use. Storage failures degrade to "no dedup", never an
// error.
type Ledger struct {
	mu        sync.Mutex
	path      string
	seen      map[string]time.Time
	retention time.Duration
	now       func() time.Time
}

// Fingerprint derives the stable identity of an article from its link
// and title, case-folded. Two articles with the same fingerprint are
// the same item regardless of source or category.
func Fingerprint(link, title string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(link + "|" + title)))
	return hex.EncodeToString(sum[:])
}

// Open loads the ledger at path, pruning entries older than the
// retention window. A missing, unreadable, or corrupt file yields an
// empty ledger.
func Open(path string, retention time.Duration) *Ledger {
	if retention <= 0 {
		retention = RetentionWindow
	}
	l := &Ledger{
		path:      path,
		seen:      make(map[string]time.Time),
		retention: retention,
		now:       time.Now,
	}
	l.load()
	return l
}

func (l *Ledger) load() {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Dedup: failed to read %s: %v", l.path, err)
		}
		return
	}

	var f ledgerFile
	if err := json.Unmarshal(data, &f); err != nil || f.Version != ledgerVersion {
		log.Printf("Dedup: ignoring unreadable ledger %s", l.path)
		return
	}
	if f.Seen != nil {
		l.seen = f.Seen
	}
	l.prune()
}

// IsDuplicate reports whether fingerprint was seen within the
// retention window.
func (l *Ledger) IsDuplicate(fingerprint string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.seen[fingerprint]
	return ok
}

// MarkSeen records fingerprint as seen now.
func (l *Ledger) MarkSeen(fingerprint string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seen[fingerprint] = l.now()
}

// Filter removes articles whose fingerprint is already marked,
// including repeats within the batch itself, marks the survivors, and
// persists the ledger.
func (l *Ledger) Filter(articles []feed.Article) []feed.Article {
	l.mu.Lock()
	defer l.mu.Unlock()

	unique := make([]feed.Article, 0, len(articles))
	for _, a := range articles {
		fp := Fingerprint(a.Link, a.Title)
		if _, ok := l.seen[fp]; ok {
			continue
		}
		l.seen[fp] = l.now()
		unique = append(unique, a)
	}

	if removed := len(articles) - len(unique); removed > 0 {
		log.Printf("Filtered out %d duplicate articles", removed)
	}

	l.save()
	return unique
}

// Save persists the ledger immediately. Filter already saves after
// each batch; this is for explicit shutdown paths.
func (l *Ledger) Save() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.save()
}

// Len returns the number of retained fingerprints.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}

// prune drops entries older than the retention window. Caller holds
// the lock or is still single-threaded in load.
func (l *Ledger) prune() {
	cutoff := l.now().Add(-l.retention)
	for fp, seen := range l.seen {
		if seen.Before(cutoff) {
			delete(l.seen, fp)
		}
	}
}

func (l *Ledger) save() {
	l.prune()

	data, err := json.MarshalIndent(ledgerFile{Version: ledgerVersion, Seen: l.seen}, "", "  ")
	if err != nil {
		log.Printf("Dedup: failed to encode ledger: %v", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		log.Printf("Dedup: failed to create %s: %v", filepath.Dir(l.path), err)
		return
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		log.Printf("Dedup: failed to write %s: %v", l.path, err)
	}
}
