package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(filepath.Join(t.TempDir(), "cache"), 24, true)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return c
}

func TestNew(t *testing.T) {
	c := newTestCache(t)
	if !c.Enabled() {
		t.Error("cache should be enabled")
	}

	c, err := New("", 0, false)
	if err != nil {
		t.Fatalf("New() error for disabled cache: %v", err)
	}
	if c.Enabled() {
		t.Error("cache should be disabled")
	}

	var nilCache *Cache
	if nilCache.Enabled() {
		t.Error("nil cache should report disabled")
	}
}

func TestNewCreatesDirectory(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "nested", "cache", "dir")

	if _, err := New(cacheDir, 24, true); err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, err := os.Stat(cacheDir); os.IsNotExist(err) {
		t.Error("New() should create cache directory")
	}
}

func TestSetAndGet(t *testing.T) {
	c := newTestCache(t)

	key := "/src/com/example/App.class#1a2b"
	hash := HashBytes([]byte("class bytes"))
	data := []byte(`{"class_name":"com/example/App"}`)

	if err := c.Set(key, hash, data); err != nil {
		t.Fatalf("Set() error: %v", err)
	}

	got, ok := c.Get(key, hash)
	if !ok {
		t.Fatal("Get() returned false for matching hash")
	}
	if string(got) != string(data) {
		t.Errorf("Get() = %q, want %q", got, data)
	}

	if _, ok := c.Get(key, HashBytes([]byte("other bytes"))); ok {
		t.Error("Get() should miss when the content hash differs")
	}
	if _, ok := c.Get("other-key", hash); ok {
		t.Error("Get() should miss for an unknown key")
	}
}

func TestGetCorruptEntry(t *testing.T) {
	c := newTestCache(t)
	if err := os.WriteFile(c.keyPath("k"), []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("k", "h"); ok {
		t.Error("Get() should miss on a corrupt entry")
	}
}

func TestTTLExpiration(t *testing.T) {
	c := newTestCache(t)

	stale, err := json.Marshal(Entry{
		Hash:      "h",
		Timestamp: time.Now().Add(-48 * time.Hour),
		Data:      []byte("old"),
	})
	if err != nil {
		t.Fatal(err)
	}
	path := c.keyPath("k")
	if err := os.WriteFile(path, stale, 0600); err != nil {
		t.Fatal(err)
	}

	if _, ok := c.Get("k", "h"); ok {
		t.Error("Get() should miss after the TTL expires")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expired entry should be removed")
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	c, err := New(filepath.Join(t.TempDir(), "cache"), 0, true)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	old, _ := json.Marshal(Entry{Hash: "h", Timestamp: time.Unix(0, 0), Data: []byte("x")})
	if err := os.WriteFile(c.keyPath("k"), old, 0600); err != nil {
		t.Fatal(err)
	}
	if _, ok := c.Get("k", "h"); !ok {
		t.Error("a zero TTL should keep entries indefinitely")
	}
}

func TestClear(t *testing.T) {
	cacheDir := filepath.Join(t.TempDir(), "cache")
	c, err := New(cacheDir, 24, true)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	for _, key := range []string{"a", "b", "c"} {
		if err := c.Set(key, "h", []byte("data")); err != nil {
			t.Fatalf("Set() error: %v", err)
		}
	}

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	if _, err := os.Stat(cacheDir); !os.IsNotExist(err) {
		t.Error("Clear() should remove cache directory")
	}
}

func TestDisabledCache(t *testing.T) {
	c, _ := New("", 0, false)

	if err := c.Set("key", "h", []byte("data")); err != nil {
		t.Errorf("Set() on disabled cache should not error: %v", err)
	}
	if _, ok := c.Get("key", "h"); ok {
		t.Error("Get() on disabled cache should return false")
	}
	if err := c.Clear(); err != nil {
		t.Errorf("Clear() on disabled cache should not error: %v", err)
	}
}

func TestHashBytes(t *testing.T) {
	h1 := HashBytes([]byte("test content"))
	h2 := HashBytes([]byte("test content"))
	h3 := HashBytes([]byte("different content"))

	if h1 != h2 {
		t.Error("same content should produce the same hash")
	}
	if h1 == h3 {
		t.Error("different content should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64", len(h1))
	}
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("opcount/1", "strict=false")
	if a != Fingerprint("opcount/1", "strict=false") {
		t.Error("Fingerprint should be deterministic")
	}
	if a == Fingerprint("opcount/1", "strict=true") {
		t.Error("different settings should produce different fingerprints")
	}
	// Part boundaries matter.
	if Fingerprint("ab", "c") == Fingerprint("a", "bc") {
		t.Error("Fingerprint should separate parts")
	}
}

func TestKeyPath(t *testing.T) {
	c := newTestCache(t)

	path1 := c.keyPath("key1")
	if path1 == c.keyPath("key2") {
		t.Error("different keys should produce different paths")
	}
	if path1 != c.keyPath("key1") {
		t.Error("same keys should produce same paths")
	}
	if filepath.Ext(path1) != ".json" {
		t.Errorf("key path should end with .json, got %s", path1)
	}
	if filepath.Dir(path1) != c.dir {
		t.Errorf("key path should be in cache directory")
	}
}

func TestSpecialCharactersInKey(t *testing.T) {
	c := newTestCache(t)

	for _, key := range []string{
		"/path/to/App.class",
		"file:with:colons",
		"App$Inner.class",
		"unicode/文件/Test.class",
	} {
		t.Run(key, func(t *testing.T) {
			data := []byte("data for " + key)
			if err := c.Set(key, "h", data); err != nil {
				t.Fatalf("Set(%q) error: %v", key, err)
			}
			got, ok := c.Get(key, "h")
			if !ok || string(got) != string(data) {
				t.Errorf("Get(%q) = %q, %v", key, got, ok)
			}
		})
	}
}
