package drive

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/clubweb/content-proxy/pkg/cache"
)

// DefaultSiteTTL is the locator cache lifetime. The site identifier is
// stable; a day-class TTL only guards against site re-provisioning.
const DefaultSiteTTL = 24 * time.Hour

// SiteResolver resolves and caches the stable identifier of the remote
// collection root for a (host, path) pair. Pure read-through; the locator
// is not a secret so the entry is stored unencrypted.
type SiteResolver struct {
	client *Client
	cache  *cache.Manager
	host   string
	path   string
	ttl    time.Duration
	logger zerolog.Logger
}

// NewSiteResolver creates a resolver for the given site address.
func NewSiteResolver(client *Client, cacheManager *cache.Manager, host, path string, ttl time.Duration, logger zerolog.Logger) *SiteResolver {
	if ttl <= 0 {
		ttl = DefaultSiteTTL
	}
	return &SiteResolver{
		client: client,
		cache:  cacheManager,
		host:   host,
		path:   path,
		ttl:    ttl,
		logger: logger,
	}
}

type siteResponse struct {
	ID string `json:"id"`
}

// SiteID returns the collection root identifier, resolving it upstream on
// cache miss.
func (r *SiteResolver) SiteID(ctx context.Context) (string, error) {
	key := cache.Key{
		Scope:      "site",
		Dimensions: map[string]string{"host": r.host, "path": r.path},
	}

	var id string
	if r.cache.Lookup(ctx, key, &id) {
		return id, nil
	}

	var site siteResponse
	if err := r.client.CallJSON(ctx, r.client.SiteByPathURL(r.host, r.path), &site); err != nil {
		return "", fmt.Errorf("resolve site %s/%s: %w", r.host, r.path, err)
	}
	if site.ID == "" {
		return "", fmt.Errorf("resolve site %s/%s: empty identifier in response", r.host, r.path)
	}

	r.cache.Store(ctx, key, site.ID, r.ttl)

	r.logger.Info().
		Str("host", r.host).
		Str("path", r.path).
		Msg("Site locator resolved")

	return site.ID, nil
}
