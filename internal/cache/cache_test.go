package cache

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	return Open(t.TempDir(), time.Hour)
}

func TestSetThenGet(t *testing.T) {
	c := openTestCache(t)

	c.Set("weather:zip=01701", []byte(`{"temp": 72}`), time.Hour)

	got, ok := c.Get("weather:zip=01701")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if string(got) != `{"temp": 72}` {
		t.Errorf("unexpected value: %s", got)
	}
}

func TestGetMissingKey(t *testing.T) {
	c := openTestCache(t)

	if _, ok := c.Get("never-set"); ok {
		t.Error("expected miss for unknown key")
	}
}

func TestExpiredEntryIsMissAndRemoved(t *testing.T) {
	c := openTestCache(t)
	c.Set("k", []byte("v"), time.Minute)

	c.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	if _, ok := c.Get("k"); ok {
		t.Fatal("expected miss after expiry")
	}

	// The stale file should have been removed as a side effect.
	if _, err := os.Stat(c.path("k")); !os.IsNotExist(err) {
		t.Error("expected expired entry file to be deleted")
	}
}

func TestEntryValidJustBeforeExpiry(t *testing.T) {
	c := openTestCache(t)
	base := time.Now()
	c.now = func() time.Time { return base }
	c.Set("k", []byte("v"), time.Minute)

	c.now = func() time.Time { return base.Add(59 * time.Second) }
	if _, ok := c.Get("k"); !ok {
		t.Error("expected hit just before expiry")
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	c := openTestCache(t)
	c.Set("k", []byte("v"), time.Hour)

	c.Delete("k")
	c.Delete("k")

	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestClear(t *testing.T) {
	c := openTestCache(t)
	c.Set("a", []byte("1"), time.Hour)
	c.Set("b", []byte("2"), time.Hour)

	if n := c.Clear(); n != 2 {
		t.Errorf("expected 2 cleared, got %d", n)
	}
	if n := c.Clear(); n != 0 {
		t.Errorf("expected clear to be idempotent, got %d", n)
	}
}

func TestCorruptFileIsMiss(t *testing.T) {
	c := openTestCache(t)
	c.Set("k", []byte("v"), time.Hour)

	if err := os.WriteFile(c.path("k"), []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get("k"); ok {
		t.Error("expected corrupt entry to read as miss")
	}
}

func TestForeignVersionIsMiss(t *testing.T) {
	c := openTestCache(t)
	data := `{"version": 99, "key": "k", "value": "YQ==", "created": "2026-01-01T00:00:00Z", "expires": "2099-01-01T00:00:00Z"}`
	if err := os.WriteFile(c.path("k"), []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get("k"); ok {
		t.Error("expected foreign-schema entry to read as miss")
	}
}

func TestUnavailableBackendDegradesToMiss(t *testing.T) {
	// Point the cache at a file path so directory creation fails.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := Open(filepath.Join(blocker, "cache"), time.Hour)
	c.Set("k", []byte("v"), time.Hour)
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss when backend is unavailable")
	}
}

func TestMakeKeyOrderIndependent(t *testing.T) {
	a := MakeKey("weather", map[string]string{"zip": "01701", "units": "f"})
	b := MakeKey("weather", map[string]string{"units": "f", "zip": "01701"})
	if a != b {
		t.Errorf("keys differ: %q vs %q", a, b)
	}

	other := MakeKey("weather", map[string]string{"zip": "02139", "units": "f"})
	if a == other {
		t.Error("different params must produce different keys")
	}
}

func TestGetOrFetch(t *testing.T) {
	c := openTestCache(t)
	calls := 0
	fetch := func() ([]byte, error) {
		calls++
		return []byte("fresh"), nil
	}

	v1, err := c.GetOrFetch("k", time.Hour, fetch)
	if err != nil {
		t.Fatal(err)
	}
	v2, err := c.GetOrFetch("k", time.Hour, fetch)
	if err != nil {
		t.Fatal(err)
	}

	if string(v1) != "fresh" || string(v2) != "fresh" {
		t.Errorf("unexpected values: %s, %s", v1, v2)
	}
	if calls != 1 {
		t.Errorf("expected 1 fetch call, got %d", calls)
	}
}

func TestGetOrFetchErrorNotCached(t *testing.T) {
	c := openTestCache(t)
	boom := errors.New("boom")

	if _, err := c.GetOrFetch("k", time.Hour, func() ([]byte, error) { return nil, boom }); err != boom {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("failed fetch must not be cached")
	}
}

func TestStats(t *testing.T) {
	c := openTestCache(t)
	c.Set("k", []byte("v"), time.Hour)
	c.Get("k")
	c.Get("missing")

	s := c.Stats()
	if s.Hits != 1 || s.Misses != 1 || s.Items != 1 {
		t.Errorf("unexpected stats: %+v", s)
	}
}
