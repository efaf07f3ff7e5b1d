package drive

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/clubweb/content-proxy/internal/testutil"
	"github.com/clubweb/content-proxy/pkg/cache"
)

func newTestCache(t *testing.T) *cache.Manager {
	t.Helper()

	store, err := cache.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	return cache.NewManager(store, zerolog.Nop())
}

func TestSiteResolver_ResolvesAndCaches(t *testing.T) {
	mock := testutil.NewMockDrive()
	defer mock.Close()
	client, _ := newTestClient(t, mock)

	mock.SetSite("store.example.com", "sites/club", "site-abc")

	resolver := NewSiteResolver(client, newTestCache(t), "store.example.com", "sites/club", time.Hour, zerolog.Nop())
	ctx := context.Background()

	id, err := resolver.SiteID(ctx)
	if err != nil {
		t.Fatalf("SiteID failed: %v", err)
	}
	if id != "site-abc" {
		t.Errorf("site id = %q, want site-abc", id)
	}

	before := mock.GetRequestCount()

	// Second resolution must not hit upstream.
	id, err = resolver.SiteID(ctx)
	if err != nil {
		t.Fatalf("cached SiteID failed: %v", err)
	}
	if id != "site-abc" {
		t.Errorf("cached site id = %q, want site-abc", id)
	}
	if got := mock.GetRequestCount(); got != before {
		t.Errorf("upstream hit %d more times on cached resolution", got-before)
	}
}

func TestSiteResolver_UpstreamFailure(t *testing.T) {
	mock := testutil.NewMockDrive()
	defer mock.Close()
	client, _ := newTestClient(t, mock)

	// No site handler registered: upstream answers 404.
	resolver := NewSiteResolver(client, newTestCache(t), "store.example.com", "sites/missing", time.Hour, zerolog.Nop())

	if _, err := resolver.SiteID(context.Background()); err == nil {
		t.Error("expected error for unresolved site")
	}
}
