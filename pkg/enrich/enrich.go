// Package enrich resolves derived artifacts (thumbnail URL, text excerpt)
// for a batch of parent folders in two concurrent rounds against the remote
// drive. Network round-trip time dominates cost, so each round fires its
// requests in parallel with a configurable cap and joins before moving on.
package enrich

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/clubweb/content-proxy/pkg/drive"
)

// DefaultMaxConcurrency caps in-flight upstream requests per round.
const DefaultMaxConcurrency = 8

// ThumbnailName is the reserved file name marking a folder's thumbnail.
const ThumbnailName = "thumbnail.jpg"

// Enrichment holds the derived artifacts for one resource. Nil fields mean
// the artifact does not exist or could not be resolved; enrichment never
// fails a resource.
type Enrichment struct {
	ThumbnailURL *string
	Excerpt      *string
}

// Config holds enricher configuration.
type Config struct {
	// MaxConcurrency caps parallel upstream requests per round.
	// Zero means DefaultMaxConcurrency.
	MaxConcurrency int

	// ExcerptFunc derives an excerpt from primary-content bytes.
	// Nil disables excerpt resolution (gallery folders have no text).
	ExcerptFunc func(content string) string
}

// Enricher is the batch enrichment engine.
type Enricher struct {
	client      *drive.Client
	concurrency int
	excerptFunc func(string) string
	logger      zerolog.Logger
}

// New creates an Enricher.
func New(client *drive.Client, cfg Config, logger zerolog.Logger) *Enricher {
	concurrency := cfg.MaxConcurrency
	if concurrency <= 0 {
		concurrency = DefaultMaxConcurrency
	}
	return &Enricher{
		client:      client,
		concurrency: concurrency,
		excerptFunc: cfg.ExcerptFunc,
		logger:      logger,
	}
}

// artifacts are what round 1 discovers inside one resource folder.
type artifacts struct {
	thumbnailID string
	contentID   string
}

// Enrich resolves thumbnail URLs and excerpts for the given folder IDs and
// returns them keyed by originating resource ID. Every input ID has an
// entry in the result; a resource whose requests fail or whose folder holds
// no recognizable artifacts gets nil fields.
func (e *Enricher) Enrich(ctx context.Context, siteID string, resourceIDs []string) map[string]Enrichment {
	start := time.Now()

	results := make(map[string]Enrichment, len(resourceIDs))
	for _, id := range resourceIDs {
		results[id] = Enrichment{}
	}
	if len(resourceIDs) == 0 {
		return results
	}

	// Round 1: list every resource's immediate children concurrently.
	found := make([]artifacts, len(resourceIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, id := range resourceIDs {
		g.Go(func() error {
			children, err := e.client.ListChildren(gctx, e.client.ChildrenByIDURL(siteID, id, []string{"id", "name", "file"}))
			if err != nil {
				// Degrade this resource; never abort the batch.
				e.logger.Warn().Str("resource", id).Err(err).Msg("Child listing failed during enrichment")
				return nil
			}
			found[i] = identifyArtifacts(children)
			return nil
		})
	}
	_ = g.Wait() // workers never return errors; Wait is the round barrier

	// Round 2: resolve the discovered artifacts concurrently. Round 2's
	// requests depend on round 1's discoveries, hence the barrier above.
	var mu sync.Mutex

	g2, g2ctx := errgroup.WithContext(ctx)
	g2.SetLimit(e.concurrency)
	for i, id := range resourceIDs {
		art := found[i]

		if art.thumbnailID != "" {
			g2.Go(func() error {
				url := e.resolveThumbnailURL(g2ctx, siteID, art.thumbnailID)
				if url == nil {
					return nil
				}
				mu.Lock()
				entry := results[id]
				entry.ThumbnailURL = url
				results[id] = entry
				mu.Unlock()
				return nil
			})
		}

		if art.contentID != "" && e.excerptFunc != nil {
			g2.Go(func() error {
				excerpt := e.resolveExcerpt(g2ctx, siteID, art.contentID)
				if excerpt == nil {
					return nil
				}
				mu.Lock()
				entry := results[id]
				entry.Excerpt = excerpt
				results[id] = entry
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g2.Wait()

	e.logger.Debug().
		Int("resources", len(resourceIDs)).
		Dur("duration", time.Since(start)).
		Msg("Batch enrichment complete")

	return results
}

// identifyArtifacts picks at most one thumbnail (by reserved name) and one
// primary content file (by markdown mime/extension) from a child listing.
func identifyArtifacts(children []drive.Item) artifacts {
	var art artifacts
	for _, child := range children {
		if !child.IsFile() {
			continue
		}
		if art.thumbnailID == "" && strings.EqualFold(child.Name, ThumbnailName) {
			art.thumbnailID = child.ID
			continue
		}
		if art.contentID == "" && child.IsMarkdown() {
			art.contentID = child.ID
		}
	}
	return art
}

// resolveThumbnailURL fetches the thumbnail item's metadata for its direct
// download URL. Nil on any failure.
func (e *Enricher) resolveThumbnailURL(ctx context.Context, siteID, itemID string) *string {
	var item drive.Item
	url := e.client.ItemURL(siteID, itemID, []string{"id", "name", "@microsoft.graph.downloadUrl"})
	if err := e.client.CallJSON(ctx, url, &item); err != nil {
		e.logger.Warn().Str("item", itemID).Err(err).Msg("Thumbnail metadata fetch failed")
		return nil
	}
	if item.DownloadURL == "" {
		return nil
	}
	return &item.DownloadURL
}

// resolveExcerpt fetches the primary content file and derives an excerpt.
// Nil on any failure.
func (e *Enricher) resolveExcerpt(ctx context.Context, siteID, itemID string) *string {
	data, _, err := e.client.FetchContent(ctx, e.client.ItemContentURL(siteID, itemID))
	if err != nil {
		e.logger.Warn().Str("item", itemID).Err(err).Msg("Content fetch failed during enrichment")
		return nil
	}
	excerpt := e.excerptFunc(string(data))
	return &excerpt
}
