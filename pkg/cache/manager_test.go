package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()

	dir := t.TempDir()
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	return NewManager(store, zerolog.Nop()), dir
}

func TestNewManager_Panic(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewManager should panic with nil store")
		}
	}()
	NewManager(nil, zerolog.Nop())
}

func TestManager_PutAndGet(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	key := Key{Scope: "news", Dimensions: map[string]string{"year": "2024"}}
	value := []string{"article-a", "article-b"}

	if err := m.Put(ctx, key, value, 5*time.Minute); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entry, err := m.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	var got []string
	if err := entry.Unmarshal(&got); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(got) != 2 || got[0] != "article-a" {
		t.Errorf("cached value = %v, want %v", got, value)
	}
}

func TestManager_Get_Miss(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Get(context.Background(), Key{Scope: "news", Dimensions: map[string]string{"year": "1999"}})
	if !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss, got %v", err)
	}
}

func TestManager_Get_Expired(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	key := Key{Scope: "gallery", Dimensions: map[string]string{"year": "2024"}}
	if err := m.Put(ctx, key, "value", 30*time.Millisecond); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Fresh entry is a hit.
	if _, err := m.Get(ctx, key); err != nil {
		t.Fatalf("Get before expiry failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	// The file still exists on disk, but the entry must read as a miss.
	if _, err := m.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss after expiry, got %v", err)
	}
}

func TestManager_Put_ZeroTTLNotCached(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	key := Key{Scope: "gallery"}
	if err := m.Put(ctx, key, "value", 0); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := m.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss for zero TTL, got %v", err)
	}
}

func TestManager_CorruptEntryIsMiss(t *testing.T) {
	m, dir := newTestManager(t)
	ctx := context.Background()

	key := Key{Scope: "news", Dimensions: map[string]string{"year": "2024"}}
	if err := m.Put(ctx, key, "value", time.Minute); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Scribble over the entry on disk.
	sum := sha256.Sum256([]byte(key.String()))
	path := filepath.Join(dir, hex.EncodeToString(sum[:])+".json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("corrupting entry failed: %v", err)
	}

	if _, err := m.Get(ctx, key); !errors.Is(err, ErrCacheMiss) {
		t.Errorf("expected ErrCacheMiss for corrupt entry, got %v", err)
	}
}

func TestManager_LookupAndStore(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	key := Key{Scope: "news", Dimensions: map[string]string{"year": "all"}}

	var dest []string
	if hit := m.Lookup(ctx, key, &dest); hit {
		t.Error("Lookup on empty cache reported a hit")
	}

	m.Store(ctx, key, []string{"x"}, time.Minute)

	if hit := m.Lookup(ctx, key, &dest); !hit {
		t.Error("Lookup after Store reported a miss")
	}
	if len(dest) != 1 || dest[0] != "x" {
		t.Errorf("Lookup dest = %v", dest)
	}
}

// Two concurrent refreshes of the same key must both leave the cache in a
// readable state: last writer wins, no corruption.
func TestManager_ConcurrentRefresh(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	key := Key{Scope: "gallery", Dimensions: map[string]string{"year": "2024"}}

	done := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func(n int) {
			done <- m.Put(ctx, key, []int{n}, time.Minute)
		}(i)
	}
	for i := 0; i < 2; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent Put failed: %v", err)
		}
	}

	var got []int
	if hit := m.Lookup(ctx, key, &got); !hit {
		t.Fatal("Lookup after concurrent Put reported a miss")
	}
	if len(got) != 1 || (got[0] != 0 && got[0] != 1) {
		t.Errorf("unexpected cached value %v", got)
	}
}
