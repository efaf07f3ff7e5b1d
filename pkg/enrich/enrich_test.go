package enrich

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/clubweb/content-proxy/internal/testutil"
	"github.com/clubweb/content-proxy/pkg/drive"
)

func newTestEnricher(t *testing.T, mock *testutil.MockDrive, cfg Config) *Enricher {
	t.Helper()

	client, err := drive.New(drive.Config{BaseURL: mock.BaseURL()}, &fixedTokens{}, zerolog.Nop())
	if err != nil {
		t.Fatalf("drive.New failed: %v", err)
	}
	return New(client, cfg, zerolog.Nop())
}

type fixedTokens struct{}

func (fixedTokens) Token(context.Context) (string, error) { return "t", nil }
func (fixedTokens) Invalidate()                           {}

func firstSentence(content string) string {
	if i := strings.Index(content, "."); i >= 0 {
		return content[:i+1]
	}
	return content
}

func TestEnrich_ResolvesThumbnailAndExcerpt(t *testing.T) {
	mock := testutil.NewMockDrive()
	defer mock.Close()

	mock.SetListing("/v1.0/sites/s/drive/items/article-1/children", []map[string]any{
		testutil.FileItem("thumb-1", "Thumbnail.JPG", "image/jpeg", "2024-01-01T00:00:00Z"),
		testutil.FileItem("md-1", "story.md", "text/plain", "2024-01-01T00:00:00Z"),
		testutil.FileItem("img-9", "other.png", "image/png", "2024-01-01T00:00:00Z"),
	})
	mock.SetJSON("/v1.0/sites/s/drive/items/thumb-1", 200,
		testutil.FileItemWithDownload("thumb-1", "thumbnail.jpg", "image/jpeg", "2024-01-01T00:00:00Z", "https://dl.example/thumb-1"))
	mock.SetContent("/v1.0/sites/s/drive/items/md-1/content", []byte("First sentence. Second sentence."), "text/plain")

	e := newTestEnricher(t, mock, Config{ExcerptFunc: firstSentence})
	results := e.Enrich(context.Background(), "s", []string{"article-1"})

	got, ok := results["article-1"]
	if !ok {
		t.Fatal("no enrichment entry for article-1")
	}
	if got.ThumbnailURL == nil || *got.ThumbnailURL != "https://dl.example/thumb-1" {
		t.Errorf("thumbnail = %v, want https://dl.example/thumb-1", got.ThumbnailURL)
	}
	if got.Excerpt == nil || *got.Excerpt != "First sentence." {
		t.Errorf("excerpt = %v, want %q", got.Excerpt, "First sentence.")
	}
}

func TestEnrich_NoChildrenYieldsNullFields(t *testing.T) {
	mock := testutil.NewMockDrive()
	defer mock.Close()

	mock.SetListing("/v1.0/sites/s/drive/items/empty-1/children", nil)

	e := newTestEnricher(t, mock, Config{ExcerptFunc: firstSentence})
	results := e.Enrich(context.Background(), "s", []string{"empty-1"})

	got, ok := results["empty-1"]
	if !ok {
		t.Fatal("resource without children missing from results")
	}
	if got.ThumbnailURL != nil || got.Excerpt != nil {
		t.Errorf("enrichment = %+v, want nil fields", got)
	}
}

// A failing resource degrades to nil fields; its siblings still resolve.
func TestEnrich_PartialFailureIsolation(t *testing.T) {
	mock := testutil.NewMockDrive()
	defer mock.Close()

	// "bad-1" has no listing handler and 404s.
	mock.SetListing("/v1.0/sites/s/drive/items/good-1/children", []map[string]any{
		testutil.FileItem("thumb-g", "thumbnail.jpg", "image/jpeg", "2024-01-01T00:00:00Z"),
	})
	mock.SetJSON("/v1.0/sites/s/drive/items/thumb-g", 200,
		testutil.FileItemWithDownload("thumb-g", "thumbnail.jpg", "image/jpeg", "2024-01-01T00:00:00Z", "https://dl.example/thumb-g"))

	e := newTestEnricher(t, mock, Config{})
	results := e.Enrich(context.Background(), "s", []string{"bad-1", "good-1"})

	if len(results) != 2 {
		t.Fatalf("results = %d entries, want 2", len(results))
	}
	if bad := results["bad-1"]; bad.ThumbnailURL != nil || bad.Excerpt != nil {
		t.Errorf("failed resource enrichment = %+v, want nil fields", bad)
	}
	if good := results["good-1"]; good.ThumbnailURL == nil {
		t.Error("sibling resource lost its thumbnail to an unrelated failure")
	}
}

func TestEnrich_ThumbnailFailureDegrades(t *testing.T) {
	mock := testutil.NewMockDrive()
	defer mock.Close()

	mock.SetListing("/v1.0/sites/s/drive/items/a/children", []map[string]any{
		testutil.FileItem("thumb-a", "thumbnail.jpg", "image/jpeg", "2024-01-01T00:00:00Z"),
	})
	// No metadata handler for thumb-a: round 2 fetch 404s.

	e := newTestEnricher(t, mock, Config{})
	results := e.Enrich(context.Background(), "s", []string{"a"})

	if got := results["a"]; got.ThumbnailURL != nil {
		t.Errorf("thumbnail = %v, want nil after metadata failure", got.ThumbnailURL)
	}
}

func TestEnrich_EmptyBatch(t *testing.T) {
	mock := testutil.NewMockDrive()
	defer mock.Close()

	e := newTestEnricher(t, mock, Config{})
	results := e.Enrich(context.Background(), "s", nil)
	if len(results) != 0 {
		t.Errorf("results = %v, want empty map", results)
	}
}

func TestIdentifyArtifacts(t *testing.T) {
	children := []drive.Item{
		{ID: "f0", Name: "notes.txt", File: &drive.FileFacet{MimeType: "text/plain"}},
		{ID: "f1", Name: "THUMBNAIL.jpg", File: &drive.FileFacet{MimeType: "image/jpeg"}},
		{ID: "f2", Name: "body.md", File: &drive.FileFacet{MimeType: "text/plain"}},
		{ID: "f3", Name: "second.md", File: &drive.FileFacet{MimeType: "text/plain"}},
		{ID: "f4", Name: "sub", Folder: &drive.FolderFacet{}},
	}

	art := identifyArtifacts(children)
	if art.thumbnailID != "f1" {
		t.Errorf("thumbnailID = %q, want f1", art.thumbnailID)
	}
	// At most one primary content file: the first markdown wins.
	if art.contentID != "f2" {
		t.Errorf("contentID = %q, want f2", art.contentID)
	}
}
