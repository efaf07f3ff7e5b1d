// Package news lists and serves articles stored as folders in a
// year-partitioned drive hierarchy. Each article folder holds one markdown
// body plus optional images; a file named thumbnail.jpg is the article's
// cover. Listings are cache-backed and enriched with thumbnail URLs and
// excerpts in bulk.
package news

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clubweb/content-proxy/pkg/cache"
	"github.com/clubweb/content-proxy/pkg/drive"
	"github.com/clubweb/content-proxy/pkg/enrich"
)

// ErrArticleNotFound marks a lookup for a title that has no matching
// article folder.
var ErrArticleNotFound = errors.New("article not found")

// Article is one entry of a news listing.
type Article struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Year         string    `json:"year"`
	CreatedAt    time.Time `json:"createdDateTime"`
	ModifiedAt   time.Time `json:"lastModifiedDateTime"`
	ThumbnailURL *string   `json:"thumbnailUrl"`
	Excerpt      *string   `json:"excerpt"`
}

// ArticleDetail is a single article with its full body and image listing.
type ArticleDetail struct {
	Article
	Content string       `json:"content"`
	Images  []drive.Item `json:"images"`
}

// Config holds the news service settings.
type Config struct {
	// RootPath is the drive path of the news hierarchy, e.g. "aktuelles".
	RootPath string

	// ListingTTL bounds how long a cached article listing is served.
	// Defaults to 10 minutes.
	ListingTTL time.Duration

	// DetailTTL bounds how long a fetched article body is served from
	// cache. Defaults to 1 hour.
	DetailTTL time.Duration

	// YearsTTL bounds the cached year index. Defaults to 1 hour.
	YearsTTL time.Duration

	// ExcerptLength is the maximum excerpt size in runes.
	ExcerptLength int
}

// Service implements the article operations.
type Service struct {
	client   *drive.Client
	sites    *drive.SiteResolver
	cache    *cache.Manager
	enricher *enrich.Enricher
	cfg      Config
	logger   zerolog.Logger
}

// NewService creates a news service. The enricher must be configured with
// this package's Excerpt function so listings carry teasers.
func NewService(client *drive.Client, sites *drive.SiteResolver, cacheManager *cache.Manager, enricher *enrich.Enricher, cfg Config, logger zerolog.Logger) *Service {
	if cfg.ListingTTL <= 0 {
		cfg.ListingTTL = 10 * time.Minute
	}
	if cfg.DetailTTL <= 0 {
		cfg.DetailTTL = time.Hour
	}
	if cfg.YearsTTL <= 0 {
		cfg.YearsTTL = time.Hour
	}
	if cfg.ExcerptLength <= 0 {
		cfg.ExcerptLength = DefaultExcerptLength
	}
	return &Service{
		client:   client,
		sites:    sites,
		cache:    cacheManager,
		enricher: enricher,
		cfg:      cfg,
		logger:   logger.With().Str("component", "news").Logger(),
	}
}

func (s *Service) listingKey(year string) cache.Key {
	if year == "" {
		year = "all"
	}
	return cache.Key{Scope: "news", Dimensions: map[string]string{"year": year}}
}

func (s *Service) detailKey(year, title string) cache.Key {
	return cache.Key{Scope: "article", Dimensions: map[string]string{
		"year":  year,
		"title": strings.ToLower(title),
	}}
}

// ListArticles returns the articles of one year, or of all years when year
// is empty, newest first. The boolean reports whether the listing came from
// cache.
func (s *Service) ListArticles(ctx context.Context, year string) ([]Article, bool, error) {
	key := s.listingKey(year)

	var cached []Article
	if s.cache.Lookup(ctx, key, &cached) {
		return cached, true, nil
	}

	siteID, err := s.sites.SiteID(ctx)
	if err != nil {
		return nil, false, err
	}

	articles, err := s.collectArticles(ctx, siteID, year)
	if err != nil {
		return nil, false, err
	}

	ids := make([]string, len(articles))
	for i := range articles {
		ids[i] = articles[i].ID
	}
	enrichments := s.enricher.Enrich(ctx, siteID, ids)
	for i := range articles {
		if e, ok := enrichments[articles[i].ID]; ok {
			articles[i].ThumbnailURL = e.ThumbnailURL
			articles[i].Excerpt = e.Excerpt
		}
	}

	s.cache.Store(ctx, key, articles, s.cfg.ListingTTL)
	return articles, false, nil
}

// collectArticles gathers article folders for the requested year scope.
func (s *Service) collectArticles(ctx context.Context, siteID, year string) ([]Article, error) {
	if year != "" {
		articles, err := s.listYear(ctx, siteID, year)
		if err != nil {
			if errors.Is(err, drive.ErrNotFound) {
				return []Article{}, nil
			}
			return nil, err
		}
		return articles, nil
	}

	years, err := s.yearFolders(ctx, siteID)
	if err != nil {
		return nil, err
	}

	all := make([]Article, 0)
	for _, y := range years {
		articles, err := s.listYear(ctx, siteID, y)
		if err != nil {
			// Availability beats completeness: drop the year and go on.
			s.logger.Warn().Err(err).Str("year", y).Msg("skipping year folder")
			continue
		}
		all = append(all, articles...)
	}
	return all, nil
}

// listYear lists one year folder and keeps its subfolders as articles,
// newest first.
func (s *Service) listYear(ctx context.Context, siteID, year string) ([]Article, error) {
	url := s.client.ChildrenByPathURL(siteID, s.cfg.RootPath+"/"+year,
		[]string{"id", "name", "folder", "createdDateTime", "lastModifiedDateTime"}, false)
	children, err := s.client.ListChildren(ctx, url)
	if err != nil {
		return nil, err
	}

	articles := make([]Article, 0, len(children))
	for _, child := range children {
		if !child.IsFolder() {
			continue
		}
		articles = append(articles, Article{
			ID:         child.ID,
			Title:      child.Name,
			Year:       year,
			CreatedAt:  child.CreatedAt,
			ModifiedAt: child.ModifiedAt,
		})
	}
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].CreatedAt.After(articles[j].CreatedAt)
	})
	return articles, nil
}

// AvailableYears returns the 4-digit year folders under the news root,
// descending. The boolean reports whether the index came from cache.
func (s *Service) AvailableYears(ctx context.Context) ([]string, bool, error) {
	key := cache.Key{Scope: "news_years", Dimensions: nil}

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

// yearFolders returns the 4-digit folders under the news root, descending.
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

// GetArticle fetches one article with its full markdown body and image
// listing. The folder is matched by exact name first, then
// case-insensitively. Details are cached by (year, title).
func (s *Service) GetArticle(ctx context.Context, year, title string) (*ArticleDetail, error) {
	key := s.detailKey(year, title)

	var cached ArticleDetail
	if s.cache.Lookup(ctx, key, &cached) {
		return &cached, nil
	}

	siteID, err := s.sites.SiteID(ctx)
	if err != nil {
		return nil, err
	}

	folder, err := s.findArticleFolder(ctx, siteID, year, title)
	if err != nil {
		return nil, err
	}

	url := s.client.ChildrenByIDURL(siteID, folder.ID,
		[]string{"id", "name", "file", "createdDateTime", "lastModifiedDateTime", "@microsoft.graph.downloadUrl"})
	children, err := s.client.ListChildren(ctx, url)
	if err != nil {
		return nil, err
	}

	detail := &ArticleDetail{
		Article: Article{
			ID:         folder.ID,
			Title:      folder.Name,
			Year:       year,
			CreatedAt:  folder.CreatedAt,
			ModifiedAt: folder.ModifiedAt,
		},
	}
	for _, child := range children {
		switch {
		case child.IsMarkdown() && detail.Content == "":
			body, _, err := s.fetchBody(ctx, siteID, child)
			if err != nil {
				return nil, err
			}
			detail.Content = body
		case child.IsImage():
			if strings.EqualFold(child.Name, enrich.ThumbnailName) {
				url := child.DownloadURL
				if url != "" {
					detail.ThumbnailURL = &url
				}
				continue
			}
			detail.Images = append(detail.Images, child)
		}
	}
	if detail.Content != "" {
		excerpt := Excerpt(detail.Content, s.cfg.ExcerptLength)
		detail.Excerpt = &excerpt
	}

	s.cache.Store(ctx, key, detail, s.cfg.DetailTTL)
	return detail, nil
}

// GetArticleExcerpt derives an article's teaser from its full body. Kept
// for clients that predate excerpts embedded in listings. Returns nil when
// the article has no body.
func (s *Service) GetArticleExcerpt(ctx context.Context, year, title string) (*string, error) {
	detail, err := s.GetArticle(ctx, year, title)
	if err != nil {
		return nil, err
	}
	return detail.Excerpt, nil
}

func (s *Service) findArticleFolder(ctx context.Context, siteID, year, title string) (*drive.Item, error) {
	url := s.client.ChildrenByPathURL(siteID, s.cfg.RootPath+"/"+year,
		[]string{"id", "name", "folder", "createdDateTime", "lastModifiedDateTime"}, false)
	children, err := s.client.ListChildren(ctx, url)
	if err != nil {
		if errors.Is(err, drive.ErrNotFound) {
			return nil, ErrArticleNotFound
		}
		return nil, err
	}

	var fallback *drive.Item
	for i := range children {
		child := &children[i]
		if !child.IsFolder() {
			continue
		}
		if child.Name == title {
			return child, nil
		}
		if fallback == nil && strings.EqualFold(child.Name, title) {
			fallback = child
		}
	}
	if fallback != nil {
		return fallback, nil
	}
	return nil, ErrArticleNotFound
}

func (s *Service) fetchBody(ctx context.Context, siteID string, item drive.Item) (string, string, error) {
	if item.DownloadURL != "" {
		data, mime, err := s.client.FetchContent(ctx, item.DownloadURL)
		if err == nil {
			return string(data), mime, nil
		}
		s.logger.Warn().Err(err).Str("item_id", item.ID).
			Msg("download url fetch failed, falling back to content endpoint")
	}
	data, mime, err := s.client.ContentByID(ctx, siteID, item.ID)
	if err != nil {
		return "", "", err
	}
	return string(data), mime, nil
}
