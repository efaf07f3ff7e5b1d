// Package gallery lists and serves media items from a year-partitioned
// drive hierarchy. Listings are cache-backed; image bytes have their own
// content cache so repeated views skip the redirect dance upstream.
package gallery

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/clubweb/content-proxy/pkg/cache"
	"github.com/clubweb/content-proxy/pkg/drive"
)

// DefaultPageSize bounds a listing page when the caller gives no limit.
const DefaultPageSize = 50

// Image is one gallery entry.
type Image struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Year         string    `json:"year"`
	CreatedAt    time.Time `json:"createdDateTime"`
	ModifiedAt   time.Time `json:"lastModifiedDateTime"`
	MimeType     string    `json:"mimeType"`
	ThumbnailURL *string   `json:"thumbnailUrl"`
}

// Page is one window of a gallery listing.
type Page struct {
	Images  []Image `json:"images"`
	Total   int     `json:"total"`
	HasMore bool    `json:"hasMore"`
}

// Config holds the gallery service settings.
type Config struct {
	// RootPath is the drive path of the gallery hierarchy, e.g. "galerie".
	RootPath string

	// ListingTTL bounds how long a cached listing is served. Defaults to
	// 5 minutes.
	ListingTTL time.Duration

	// YearsTTL bounds the cached year index. Years change once a year;
	// defaults to 1 hour.
	YearsTTL time.Duration

	// ContentTTL bounds cached image bytes. Defaults to 1 hour.
	ContentTTL time.Duration
}

// Service implements the gallery operations.
type Service struct {
	client *drive.Client
	sites  *drive.SiteResolver
	cache  *cache.Manager
	cfg    Config
	logger zerolog.Logger
}

// NewService creates a gallery service.
func NewService(client *drive.Client, sites *drive.SiteResolver, cacheManager *cache.Manager, cfg Config, logger zerolog.Logger) *Service {
	if cfg.ListingTTL <= 0 {
		cfg.ListingTTL = 5 * time.Minute
	}
	if cfg.YearsTTL <= 0 {
		cfg.YearsTTL = time.Hour
	}
	if cfg.ContentTTL <= 0 {
		cfg.ContentTTL = time.Hour
	}
	return &Service{
		client: client,
		sites:  sites,
		cache:  cacheManager,
		cfg:    cfg,
		logger: logger.With().Str("component", "gallery").Logger(),
	}
}

func (s *Service) listingKey(year string) cache.Key {
	if year == "" {
		year = "all"
	}
	return cache.Key{Scope: "gallery", Dimensions: map[string]string{"year": year}}
}

// ListImages returns one page of the gallery, newest first. With an empty
// year every year folder contributes, newest year first. The boolean
// reports whether the underlying listing came from cache; pagination is
// applied after the cache so successive pages always slice the same
// snapshot within a TTL window.
func (s *Service) ListImages(ctx context.Context, year string, limit, offset int) (*Page, bool, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	key := s.listingKey(year)

	var images []Image
	hit := s.cache.Lookup(ctx, key, &images)
	if !hit {
		siteID, err := s.sites.SiteID(ctx)
		if err != nil {
			return nil, false, err
		}
		images, err = s.collectImages(ctx, siteID, year)
		if err != nil {
			return nil, false, err
		}
		s.cache.Store(ctx, key, images, s.cfg.ListingTTL)
	}

	return paginate(images, limit, offset), hit, nil
}

func paginate(images []Image, limit, offset int) *Page {
	total := len(images)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	window := images[offset:end]
	return &Page{
		Images:  window,
		Total:   total,
		HasMore: offset+len(window) < total,
	}
}

func (s *Service) collectImages(ctx context.Context, siteID, year string) ([]Image, error) {
	if year != "" {
		images, err := s.listYear(ctx, siteID, year)
		if err != nil {
			if errors.Is(err, drive.ErrNotFound) {
				return []Image{}, nil
			}
			return nil, err
		}
		return images, nil
	}

	years, err := s.yearFolders(ctx, siteID)
	if err != nil {
		return nil, err
	}

	all := make([]Image, 0)
	for _, y := range years {
		images, err := s.listYear(ctx, siteID, y)
		if err != nil {
			s.logger.Warn().Err(err).Str("year", y).Msg("skipping year folder")
			continue
		}
		all = append(all, images...)
	}
	return all, nil
}

// listYear lists one year folder and keeps its image files, newest first.
func (s *Service) listYear(ctx context.Context, siteID, year string) ([]Image, error) {
	url := s.client.ChildrenByPathURL(siteID, s.cfg.RootPath+"/"+year,
		[]string{"id", "name", "file", "createdDateTime", "lastModifiedDateTime"}, true)
	children, err := s.client.ListChildren(ctx, url)
	if err != nil {
		return nil, err
	}

	images := make([]Image, 0, len(children))
	for _, child := range children {
		if !child.IsImage() {
			continue
		}
		images = append(images, Image{
			ID:           child.ID,
			Name:         child.Name,
			Year:         year,
			CreatedAt:    child.CreatedAt,
			ModifiedAt:   child.ModifiedAt,
			MimeType:     child.MimeType(),
			ThumbnailURL: thumbnailURL(child),
		})
	}
	sort.SliceStable(images, func(i, j int) bool {
		return images[i].CreatedAt.After(images[j].CreatedAt)
	})
	return images, nil
}

// thumbnailURL picks the medium rendition, falling back to large then
// small.
func thumbnailURL(item drive.Item) *string {
	if len(item.Thumbnails) == 0 {
		return nil
	}
	set := item.Thumbnails[0]
	for _, t := range []*drive.Thumbnail{set.Medium, set.Large, set.Small} {
		if t != nil && t.URL != "" {
			u := t.URL
			return &u
		}
	}
	return nil
}

// AvailableYears returns the 4-digit year folders under the gallery root,
// descending.
func (s *Service) AvailableYears(ctx context.Context) ([]string, bool, error) {
	key := cache.Key{Scope: "gallery_years", Dimensions: nil}

	var years []string
	if s.cache.Lookup(ctx, key, &years) {
		return years, true, nil
	}

	siteID, err := s.sites.SiteID(ctx)
	if err != nil {
		return nil, false, err
	}
	years, err = s.yearFolders(ctx, siteID)
	if err != nil {
		return nil, false, err
	}

	s.cache.Store(ctx, key, years, s.cfg.YearsTTL)
	return years, false, nil
}

func (s *Service) yearFolders(ctx context.Context, siteID string) ([]string, error) {
	url := s.client.ChildrenByPathURL(siteID, s.cfg.RootPath,
		[]string{"id", "name", "folder"}, false)
	children, err := s.client.ListChildren(ctx, url)
	if err != nil {
		return nil, err
	}

	years := make([]string, 0, len(children))
	for _, child := range children {
		if child.IsYearFolder() {
			years = append(years, child.Name)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(years)))
	return years, nil
}

// imageContent is the cached form of fetched image bytes.
type imageContent struct {
	Data     []byte `json:"data"`
	MimeType string `json:"mimeType"`
}

// ImageContent fetches one image's bytes. size selects a server-generated
// thumbnail rendition ("small", "medium", "large"); any other value fetches
// the original. Bytes are content-cached per (id, size).
func (s *Service) ImageContent(ctx context.Context, id, size string) ([]byte, string, error) {
	sizeKey := size
	if sizeKey == "" {
		sizeKey = "original"
	}
	key := cache.Key{Scope: "image_content", Dimensions: map[string]string{
		"id":   id,
		"size": sizeKey,
	}}

	var cached imageContent
	if s.cache.Lookup(ctx, key, &cached) {
		return cached.Data, cached.MimeType, nil
	}

	siteID, err := s.sites.SiteID(ctx)
	if err != nil {
		return nil, "", err
	}

	data, mime, err := s.fetchImage(ctx, siteID, id, size)
	if err != nil {
		return nil, "", err
	}

	s.cache.Store(ctx, key, imageContent{Data: data, MimeType: mime}, s.cfg.ContentTTL)
	return data, mime, nil
}

func (s *Service) fetchImage(ctx context.Context, siteID, id, size string) ([]byte, string, error) {
	switch size {
	case "small", "medium", "large":
		var meta drive.Item
		if err := s.client.CallJSON(ctx, s.client.ItemThumbnailsURL(siteID, id), &meta); err != nil {
			return nil, "", err
		}
		if u := renditionURL(meta, size); u != "" {
			data, mime, err := s.client.FetchContent(ctx, u)
			if err == nil {
				return data, mime, nil
			}
			s.logger.Warn().Err(err).Str("item_id", id).Str("size", size).
				Msg("thumbnail fetch failed, serving original")
		}
	}
	return s.client.ContentByID(ctx, siteID, id)
}

func renditionURL(item drive.Item, size string) string {
	if len(item.Thumbnails) == 0 {
		return ""
	}
	set := item.Thumbnails[0]
	var t *drive.Thumbnail
	switch size {
	case "small":
		t = set.Small
	case "medium":
		t = set.Medium
	case "large":
		t = set.Large
	}
	if t == nil {
		return ""
	}
	return t.URL
}
