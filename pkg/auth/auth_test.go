package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// newTokenServer returns an httptest server acting as the identity
// provider, counting token grants.
func newTokenServer(t *testing.T, expiresIn int64) (*httptest.Server, *atomic.Int64) {
	t.Helper()

	var grants atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("ParseForm failed: %v", err)
		}
		if got := r.PostFormValue("grant_type"); got != "client_credentials" {
			t.Errorf("grant_type = %q", got)
		}
		n := grants.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": fmt.Sprintf("token-%d", n),
			"expires_in":   expiresIn,
		})
	}))
	t.Cleanup(server.Close)
	return server, &grants
}

func newTestAuthenticator(t *testing.T, tokenURL string) *Authenticator {
	t.Helper()

	a, err := New(Config{
		TokenURL:     tokenURL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Scope:        "store/.default",
		CacheFile:    filepath.Join(t.TempDir(), "credential.enc"),
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return a
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing token URL", Config{ClientID: "a", ClientSecret: "b", CacheFile: "f"}},
		{"missing client ID", Config{TokenURL: "http://x", ClientSecret: "b", CacheFile: "f"}},
		{"missing secret", Config{TokenURL: "http://x", ClientID: "a", CacheFile: "f"}},
		{"missing cache file", Config{TokenURL: "http://x", ClientID: "a", ClientSecret: "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg, zerolog.Nop()); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestToken_FetchesAndCaches(t *testing.T) {
	server, grants := newTokenServer(t, 3600)
	a := newTestAuthenticator(t, server.URL)
	ctx := context.Background()

	token, err := a.Token(ctx)
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	if token != "token-1" {
		t.Errorf("token = %q, want token-1", token)
	}

	// Second call is served from the cache file.
	token, err = a.Token(ctx)
	if err != nil {
		t.Fatalf("second Token failed: %v", err)
	}
	if token != "token-1" {
		t.Errorf("cached token = %q, want token-1", token)
	}
	if got := grants.Load(); got != 1 {
		t.Errorf("identity provider hit %d times, want 1", got)
	}
}

func TestToken_CacheFilePermissionsAndOpacity(t *testing.T) {
	server, _ := newTokenServer(t, 3600)
	a := newTestAuthenticator(t, server.URL)

	if _, err := a.Token(context.Background()); err != nil {
		t.Fatalf("Token failed: %v", err)
	}

	info, err := os.Stat(a.cfg.CacheFile)
	if err != nil {
		t.Fatalf("Stat cache file failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("cache file permissions = %o, want 600", perm)
	}

	// Token must not be readable in plaintext.
	raw, err := os.ReadFile(a.cfg.CacheFile)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(raw) == "" || string(raw) == "token-1" {
		t.Error("cache file contains plaintext token")
	}
	if json.Valid(raw) {
		t.Error("cache file is unencrypted JSON")
	}
}

func TestToken_RefreshesExpired(t *testing.T) {
	// Lifetime shorter than the default safety margin: the credential is
	// cached with the raw lifetime, which we let expire.
	server, grants := newTokenServer(t, 1)
	a := newTestAuthenticator(t, server.URL)
	ctx := context.Background()

	if _, err := a.Token(ctx); err != nil {
		t.Fatalf("Token failed: %v", err)
	}

	time.Sleep(1100 * time.Millisecond)

	token, err := a.Token(ctx)
	if err != nil {
		t.Fatalf("Token after expiry failed: %v", err)
	}
	if token != "token-2" {
		t.Errorf("token = %q, want token-2", token)
	}
	if got := grants.Load(); got != 2 {
		t.Errorf("identity provider hit %d times, want 2", got)
	}
}

func TestToken_CorruptCacheIsMiss(t *testing.T) {
	server, grants := newTokenServer(t, 3600)
	a := newTestAuthenticator(t, server.URL)
	ctx := context.Background()

	if _, err := a.Token(ctx); err != nil {
		t.Fatalf("Token failed: %v", err)
	}

	if err := os.WriteFile(a.cfg.CacheFile, []byte("garbage"), 0o600); err != nil {
		t.Fatalf("corrupting cache failed: %v", err)
	}

	token, err := a.Token(ctx)
	if err != nil {
		t.Fatalf("Token after corruption failed: %v", err)
	}
	if token != "token-2" {
		t.Errorf("token = %q, want token-2", token)
	}
	if got := grants.Load(); got != 2 {
		t.Errorf("identity provider hit %d times, want 2", got)
	}
}

func TestToken_Invalidate(t *testing.T) {
	server, grants := newTokenServer(t, 3600)
	a := newTestAuthenticator(t, server.URL)
	ctx := context.Background()

	if _, err := a.Token(ctx); err != nil {
		t.Fatalf("Token failed: %v", err)
	}

	a.Invalidate()

	if _, err := a.Token(ctx); err != nil {
		t.Fatalf("Token after Invalidate failed: %v", err)
	}
	if got := grants.Load(); got != 2 {
		t.Errorf("identity provider hit %d times, want 2", got)
	}
}

// Two concurrent misses both resolve to valid tokens and leave a readable
// cache behind: the refresh race is accepted, not serialized.
func TestToken_ConcurrentRefresh(t *testing.T) {
	server, _ := newTokenServer(t, 3600)
	a := newTestAuthenticator(t, server.URL)
	ctx := context.Background()

	var wg sync.WaitGroup
	tokens := make([]string, 4)
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tokens[n], errs[n] = a.Token(ctx)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 4; i++ {
		if errs[i] != nil {
			t.Fatalf("concurrent Token %d failed: %v", i, errs[i])
		}
		if tokens[i] == "" {
			t.Errorf("concurrent Token %d returned empty token", i)
		}
	}

	// Subsequent read serves a valid cached token.
	token, err := a.Token(ctx)
	if err != nil {
		t.Fatalf("Token after race failed: %v", err)
	}
	if token == "" {
		t.Error("empty token after concurrent refresh")
	}
}

func TestToken_ProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_client",
			"error_description": "client secret expired",
		})
	}))
	defer server.Close()

	a := newTestAuthenticator(t, server.URL)

	_, err := a.Token(context.Background())
	if err == nil {
		t.Fatal("expected error from provider rejection")
	}
	var credErr *CredentialError
	if !errors.As(err, &credErr) {
		t.Errorf("error type = %T, want *CredentialError", err)
	}
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	key := deriveKey("secret", "https://idp.example/token")
	plain := []byte(`{"token":"abc","expires":"2030-01-01T00:00:00Z"}`)

	sealed, err := encrypt(plain, key)
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	got, err := decrypt(sealed, key)
	if err != nil {
		t.Fatalf("decrypt failed: %v", err)
	}
	if string(got) != string(plain) {
		t.Errorf("round trip = %s, want %s", got, plain)
	}

	// Wrong key must fail, not return garbage.
	if _, err := decrypt(sealed, deriveKey("other", "https://idp.example/token")); err == nil {
		t.Error("decrypt with wrong key succeeded")
	}
}
