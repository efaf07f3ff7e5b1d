// Package drive is the authenticated HTTP client for the remote content
// store: JSON listing calls, redirect-following binary content fetches, and
// the cached site locator resolution.
package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/clubweb/content-proxy/pkg/auth"
)

// DefaultMaxRedirects bounds the content download redirect chain. The store
// issues a 302 to a pre-authorized download location; more than a few hops
// means something is wrong.
const DefaultMaxRedirects = 5

// TokenSource supplies bearer tokens for upstream calls. *auth.Authenticator
// is the production implementation.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

var _ TokenSource = (*auth.Authenticator)(nil)

// Config holds the drive client configuration.
type Config struct {
	// BaseURL is the remote store API root, e.g.
	// "https://graph.microsoft.com/v1.0".
	BaseURL string

	// LoginHost identifies the identity provider's interactive login host.
	// A content redirect landing there is an auth failure, not content.
	LoginHost string

	// HTTPTimeout bounds every upstream call. Zero means 30s.
	HTTPTimeout time.Duration

	// MaxRedirects bounds content fetch redirect chains. Zero means
	// DefaultMaxRedirects.
	MaxRedirects int
}

// Client performs authenticated calls against the remote store.
type Client struct {
	apiClient     *http.Client
	contentClient *http.Client
	tokens        TokenSource
	baseURL       string
	loginHost     string
	logger        zerolog.Logger
}

// New creates a drive client.
func New(cfg Config, tokens TokenSource, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}

	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRedirects := cfg.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}

	return &Client{
		apiClient: &http.Client{
			Timeout: timeout,
			// API calls do not redirect; a redirect here is unexpected
			// and surfaces as-is for the status check.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		contentClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return ErrTooManyRedirects
				}
				return nil
			},
		},
		tokens:    tokens,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		loginHost: cfg.LoginHost,
		logger:    logger,
	}, nil
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CallJSON performs an authenticated GET against rawURL and decodes the
// JSON response into dest. Non-2xx responses are TransportErrors; a 404 is
// additionally marked ErrNotFound. No retries at this layer.
func (c *Client) CallJSON(ctx context.Context, rawURL string, dest any) error {
	start := time.Now()
	endpoint := endpointLabel(rawURL)
	defer func() {
		upstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if err := c.authorize(ctx, req); err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.apiClient.Do(req)
	if err != nil {
		upstreamErrors.WithLabelValues("network").Inc()
		return &TransportError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	upstreamRequests.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusNotFound {
		return &TransportError{StatusCode: resp.StatusCode, URL: rawURL, Err: ErrNotFound}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		upstreamErrors.WithLabelValues("status").Inc()
		return &TransportError{StatusCode: resp.StatusCode, URL: rawURL}
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		upstreamErrors.WithLabelValues("decode").Inc()
		return &TransportError{StatusCode: resp.StatusCode, URL: rawURL, Err: fmt.Errorf("decode response: %w", err)}
	}

	return nil
}

// ListChildren fetches a complete children listing, following continuation
// links so listings larger than one upstream page come back whole.
func (c *Client) ListChildren(ctx context.Context, rawURL string) ([]Item, error) {
	var items []Item
	next := rawURL

	for next != "" {
		var page listing
		if err := c.CallJSON(ctx, next, &page); err != nil {
			return nil, err
		}
		items = append(items, page.Value...)
		next = page.NextLink
	}

	return items, nil
}

// FetchContent downloads binary content from rawURL, transparently
// following the store's 302 redirect to its pre-authorized download
// location. A redirect chain ending on the identity provider's login host
// invalidates the cached credential and retries exactly once with a fresh
// token.
func (c *Client) FetchContent(ctx context.Context, rawURL string) ([]byte, string, error) {
	data, mimeType, err := c.fetchContentOnce(ctx, rawURL)
	if err != nil && errors.Is(err, ErrAuthRedirect) {
		c.logger.Warn().
			Str("url", rawURL).
			Msg("Content fetch hit auth redirect, refreshing credential")
		c.tokens.Invalidate()
		data, mimeType, err = c.fetchContentOnce(ctx, rawURL)
	}
	return data, mimeType, err
}

func (c *Client) fetchContentOnce(ctx context.Context, rawURL string) ([]byte, string, error) {
	start := time.Now()
	endpoint := endpointLabel(rawURL)
	defer func() {
		upstreamRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create request: %w", err)
	}
	if err := c.authorize(ctx, req); err != nil {
		return nil, "", err
	}

	resp, err := c.contentClient.Do(req)
	if err != nil {
		if errors.Is(err, ErrTooManyRedirects) {
			upstreamErrors.WithLabelValues("redirect").Inc()
			return nil, "", &TransportError{URL: rawURL, Err: ErrTooManyRedirects}
		}
		upstreamErrors.WithLabelValues("network").Inc()
		return nil, "", &TransportError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	effective := resp.Request.URL
	if c.loginHost != "" && strings.Contains(effective.Host, c.loginHost) {
		upstreamErrors.WithLabelValues("auth_redirect").Inc()
		return nil, "", &TransportError{StatusCode: resp.StatusCode, URL: rawURL, Err: ErrAuthRedirect}
	}

	upstreamRequests.WithLabelValues(endpoint, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusNotFound {
		return nil, "", &TransportError{StatusCode: resp.StatusCode, URL: rawURL, Err: ErrNotFound}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		upstreamErrors.WithLabelValues("status").Inc()
		return nil, "", &TransportError{StatusCode: resp.StatusCode, URL: rawURL}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", &TransportError{StatusCode: resp.StatusCode, URL: rawURL, Err: fmt.Errorf("read content: %w", err)}
	}

	mimeType := resp.Header.Get("Content-Type")

	c.logger.Debug().
		Str("url", rawURL).
		Str("effective_host", effective.Host).
		Int("bytes", len(data)).
		Dur("duration", time.Since(start)).
		Msg("Content fetched")

	return data, mimeType, nil
}

// authorize attaches the current bearer credential.
func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("authorize request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// endpointLabel reduces a URL to a low-cardinality metric label: its path
// with item IDs and user content collapsed.
func endpointLabel(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "invalid"
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) > 3 {
		parts = parts[:3]
	}
	return "/" + strings.Join(parts, "/")
}

// --- URL builders ---
//
// The store addresses content two ways: path-based under the drive root
// (root:/<path>:/children) and ID-based (items/<id>/...). Builders keep the
// escaping rules in one place.

// ChildrenByPathURL lists the children of a folder addressed by path.
func (c *Client) ChildrenByPathURL(siteID, folderPath string, selectFields []string, expandThumbnails bool) string {
	u := fmt.Sprintf("%s/sites/%s/drive/root:/%s:/children", c.baseURL, siteID, escapePath(folderPath))
	q := url.Values{}
	if len(selectFields) > 0 {
		q.Set("$select", strings.Join(selectFields, ","))
	}
	if expandThumbnails {
		q.Set("$expand", "thumbnails")
	}
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}

// ChildrenByIDURL lists the children of a folder addressed by item ID.
func (c *Client) ChildrenByIDURL(siteID, itemID string, selectFields []string) string {
	u := fmt.Sprintf("%s/sites/%s/drive/items/%s/children", c.baseURL, siteID, url.PathEscape(itemID))
	if len(selectFields) > 0 {
		q := url.Values{}
		q.Set("$select", strings.Join(selectFields, ","))
		u += "?" + q.Encode()
	}
	return u
}

// ItemURL fetches a single item's metadata.
func (c *Client) ItemURL(siteID, itemID string, selectFields []string) string {
	u := fmt.Sprintf("%s/sites/%s/drive/items/%s", c.baseURL, siteID, url.PathEscape(itemID))
	if len(selectFields) > 0 {
		q := url.Values{}
		q.Set("$select", strings.Join(selectFields, ","))
		u += "?" + q.Encode()
	}
	return u
}

// ItemThumbnailsURL fetches a single item's metadata with its thumbnail
// renditions expanded.
func (c *Client) ItemThumbnailsURL(siteID, itemID string) string {
	q := url.Values{}
	q.Set("$expand", "thumbnails")
	return fmt.Sprintf("%s/sites/%s/drive/items/%s?%s", c.baseURL, siteID, url.PathEscape(itemID), q.Encode())
}

// ItemContentURL is the generic content endpoint; it 302-redirects to the
// pre-authorized download location.
func (c *Client) ItemContentURL(siteID, itemID string) string {
	return fmt.Sprintf("%s/sites/%s/drive/items/%s/content", c.baseURL, siteID, url.PathEscape(itemID))
}

// SiteByPathURL resolves a site identifier from (host, path).
func (c *Client) SiteByPathURL(host, sitePath string) string {
	return fmt.Sprintf("%s/sites/%s:/%s", c.baseURL, host, escapePath(sitePath))
}

// escapePath escapes each path segment but keeps separators.
func escapePath(p string) string {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
