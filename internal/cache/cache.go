package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// entryVersion tags the on-disk record schema. A file carrying any
// other version is treated as absent, never as an error.
const entryVersion = 1

// entry is the durable form of one cached value.
type entry struct {
	Version int       `json:"version"`
	Key     string    `json:"key"`
	Value   []byte    `json:"value"`
	Created time.Time `json:"created"`
	Expires time.Time `json:"expires"`
}

// Stats reports cache effectiveness for observability.
type Stats struct {
	Hits   int
	Misses int
	Items  int
}

// Cache is a file-backed TTL cache: one JSON record per key under dir.
// It is a pure memoization layer: every storage failure degrades to a
// miss, so callers stay correct (only slower) when the backend is
// unavailable. Safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	dir        string
	defaultTTL time.Duration
	hits       int
	misses     int
	now        func() time.Time
}

// Open returns a cache rooted at dir. The directory is created lazily
// on first write, so a read-only or missing directory only costs
// misses.
func Open(dir string, defaultTTL time.Duration) *Cache {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &Cache{dir: dir, defaultTTL: defaultTTL, now: time.Now}
}

// MakeKey builds a deterministic cache key from a logical operation
// name and its parameters. Parameter order never affects the key.
func MakeKey(op string, params map[string]string) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(op)
	for _, name := range names {
		b.WriteByte(':')
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(params[name])
	}
	return b.String()
}

// Set stores value under key with an absolute expiry computed now. A
// non-positive ttl uses the cache default. Write failures are logged
// and swallowed.
func (c *Cache) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	data, err := json.Marshal(entry{
		Version: entryVersion,
		Key:     key,
		Value:   value,
		Created: now,
		Expires: now.Add(ttl),
	})
	if err != nil {
		log.Printf("Cache: failed to encode %q: %v", key, err)
		return
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		log.Printf("Cache: failed to create %s: %v", c.dir, err)
		return
	}
	if err := os.WriteFile(c.path(key), data, 0o644); err != nil {
		log.Printf("Cache: failed to write %q: %v", key, err)
	}
}

// Get returns the value stored under key if present and unexpired. An
// expired entry is removed as a side effect. Any read or decode
// failure counts as a miss.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Cache: failed to read %q: %v", key, err)
		}
		c.misses++
		return nil, false
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil || e.Version != entryVersion {
		// Corrupt or foreign-schema file: fail closed.
		os.Remove(path)
		c.misses++
		return nil, false
	}

	if !c.now().Before(e.Expires) {
		os.Remove(path)
		c.misses++
		return nil, false
	}

	c.hits++
	return e.Value, true
}

// GetOrFetch returns the cached value for key, or calls fetch and
// caches its result. A fetch error is returned as-is and nothing is
// stored.
func (c *Cache) GetOrFetch(key string, ttl time.Duration, fetch func() ([]byte, error)) ([]byte, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}
	value, err := fetch()
	if err != nil {
		return nil, err
	}
	c.Set(key, value, ttl)
	return value, nil
}

// Delete removes the entry for key. Deleting an absent key is a no-op.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.Remove(c.path(key)); err != nil && !os.IsNotExist(err) {
		log.Printf("Cache: failed to delete %q: %v", key, err)
	}
}

// Clear removes every entry and returns the number removed.
func (c *Cache) Clear() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	matches, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return 0
	}
	count := 0
	for _, path := range matches {
		if os.Remove(path) == nil {
			count++
		}
	}
	return count
}

// Stats returns hit/miss counters and the current entry count.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	matches, _ := filepath.Glob(filepath.Join(c.dir, "*.json"))
	return Stats{Hits: c.hits, Misses: c.misses, Items: len(matches)}
}

// path maps a key to its file, hashing to keep names filesystem-safe.
func (c *Cache) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:])+".json")
}
