// Package testutil provides testing utilities for the content proxy.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
)

// MockDrive is a configurable mock of the remote content store plus its
// identity provider: a token endpoint, site resolution, children listings,
// and content endpoints that 302-redirect to download locations.
type MockDrive struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]http.HandlerFunc

	// Tracking
	RequestCount   int
	TokenGrants    int
	LastAuthHeader string
}

// NewMockDrive creates a mock drive server. The token endpoint lives at
// /token; API paths are registered under /v1.0.
func NewMockDrive() *MockDrive {
	mock := &MockDrive{
		handlers: make(map[string]http.HandlerFunc),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastAuthHeader = r.Header.Get("Authorization")
		if r.URL.Path == "/token" {
			mock.TokenGrants++
		}
		mock.mu.Unlock()

		if r.URL.Path == "/token" {
			mock.mu.RLock()
			custom, overridden := mock.handlers["/token"]
			mock.mu.RUnlock()
			if overridden {
				custom(w, r)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "mock-token",
				"expires_in":   3600,
			})
			return
		}

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprintf(w, `{"error":{"code":"itemNotFound","message":"no handler for %s"}}`, r.URL.Path)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockDrive) URL() string {
	return m.server.URL
}

// TokenURL returns the mock identity provider token endpoint.
func (m *MockDrive) TokenURL() string {
	return m.server.URL + "/token"
}

// BaseURL returns the API root registered handlers live under.
func (m *MockDrive) BaseURL() string {
	return m.server.URL + "/v1.0"
}

// Host returns the host:port of the mock server, useful as the login host
// in auth-redirect tests.
func (m *MockDrive) Host() string {
	return m.server.Listener.Addr().String()
}

// Close shuts down the mock server.
func (m *MockDrive) Close() {
	m.server.Close()
}

// Reset clears tracking counters.
func (m *MockDrive) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.TokenGrants = 0
	m.LastAuthHeader = ""
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockDrive) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// SetHandler sets a custom handler for a path (path only, queries ignored).
func (m *MockDrive) SetHandler(path string, handler http.HandlerFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetJSON registers a handler answering with the given status and JSON body.
func (m *MockDrive) SetJSON(path string, status int, body any) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	})
}

// SetSite registers site resolution for (host, sitePath) returning siteID.
func (m *MockDrive) SetSite(host, sitePath, siteID string) {
	m.SetJSON("/v1.0/sites/"+host+":/"+sitePath, http.StatusOK, map[string]any{
		"id":   siteID,
		"name": sitePath,
	})
}

// SetListing registers a children listing. items are raw item objects,
// typically built with FolderItem/FileItem.
func (m *MockDrive) SetListing(path string, items []map[string]any) {
	m.SetJSON(path, http.StatusOK, map[string]any{"value": items})
}

// SetPagedListing registers a two-page children listing: the first page
// carries a continuation link to a follow-up path serving the rest.
func (m *MockDrive) SetPagedListing(path, nextPath string, first, rest []map[string]any) {
	m.SetJSON(path, http.StatusOK, map[string]any{
		"value":           first,
		"@odata.nextLink": m.server.URL + nextPath,
	})
	m.SetJSON(nextPath, http.StatusOK, map[string]any{"value": rest})
}

// SetContent registers a content endpoint at contentPath that 302-redirects
// to an internal download path serving data with the given mime type.
func (m *MockDrive) SetContent(contentPath string, data []byte, mimeType string) {
	downloadPath := "/download" + contentPath
	m.SetHandler(contentPath, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, m.server.URL+downloadPath, http.StatusFound)
	})
	m.SetHandler(downloadPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", mimeType)
		w.WriteHeader(http.StatusOK)
		w.Write(data)
	})
}

// SetLoginRedirect registers a content endpoint that redirects to the given
// login URL, simulating an expired credential being bounced to interactive
// sign-in.
func (m *MockDrive) SetLoginRedirect(contentPath, loginURL string) {
	m.SetHandler(contentPath, func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, loginURL, http.StatusFound)
	})
}

// FolderItem builds a folder listing entry.
func FolderItem(id, name, created string) map[string]any {
	return map[string]any{
		"id":                   id,
		"name":                 name,
		"createdDateTime":      created,
		"lastModifiedDateTime": created,
		"folder":               map[string]any{"childCount": 0},
	}
}

// FileItem builds a file listing entry.
func FileItem(id, name, mimeType, created string) map[string]any {
	return map[string]any{
		"id":                   id,
		"name":                 name,
		"createdDateTime":      created,
		"lastModifiedDateTime": created,
		"file":                 map[string]any{"mimeType": mimeType},
	}
}

// FileItemWithDownload builds a file entry carrying a direct download URL.
func FileItemWithDownload(id, name, mimeType, created, downloadURL string) map[string]any {
	item := FileItem(id, name, mimeType, created)
	item["@microsoft.graph.downloadUrl"] = downloadURL
	return item
}
