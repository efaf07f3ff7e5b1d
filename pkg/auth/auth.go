// Package auth acquires and caches the bearer credential for the remote
// drive using the client-credentials grant. The credential is a read-through
// cache itself: persisted encrypted on disk, refreshed synchronously on
// miss, expiry, or corruption. Concurrent refreshes race last-writer-wins;
// fetching a token twice is harmless.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSafetyMargin is subtracted from the provider-reported token
// lifetime so the proxy never presents a credential about to expire
// mid-request.
const DefaultSafetyMargin = 5 * time.Minute

// CredentialError is fatal for the calling request: without a valid token
// there is no path forward.
type CredentialError struct {
	Op  string
	Err error
}

func (e *CredentialError) Error() string {
	return fmt.Sprintf("credential %s: %v", e.Op, e.Err)
}

func (e *CredentialError) Unwrap() error {
	return e.Err
}

// Credential is the cached bearer token with its expiry. It never leaves
// this package except as the opaque token string.
type credential struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}

func (c *credential) valid() bool {
	return c.Token != "" && time.Now().Before(c.Expires)
}

// Config holds the identity-provider client configuration.
type Config struct {
	// TokenURL is the identity provider's token endpoint.
	TokenURL string

	// ClientID and ClientSecret are the app credentials.
	ClientID     string
	ClientSecret string

	// Scope requested with the client-credentials grant.
	Scope string

	// CacheFile is where the encrypted credential is persisted.
	CacheFile string

	// SafetyMargin shortens the cached lifetime relative to what the
	// provider reports. Zero means DefaultSafetyMargin.
	SafetyMargin time.Duration

	// HTTPTimeout bounds the token request. Zero means 30s.
	HTTPTimeout time.Duration
}

// Authenticator is the credential cache.
type Authenticator struct {
	cfg        Config
	httpClient *http.Client
	key        []byte
	logger     zerolog.Logger
}

// New creates an Authenticator. The encryption key for the on-disk cache is
// derived from the client secret and token URL, so rotating the secret
// invalidates old cache files automatically.
func New(cfg Config, logger zerolog.Logger) (*Authenticator, error) {
	if cfg.TokenURL == "" {
		return nil, fmt.Errorf("token URL is required")
	}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("client ID and secret are required")
	}
	if cfg.CacheFile == "" {
		return nil, fmt.Errorf("credential cache file is required")
	}
	if cfg.SafetyMargin <= 0 {
		cfg.SafetyMargin = DefaultSafetyMargin
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Authenticator{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		key:        deriveKey(cfg.ClientSecret, cfg.TokenURL),
		logger:     logger,
	}, nil
}

// Token returns a valid bearer token, refreshing from the identity provider
// when the cached credential is absent, expired, or unreadable.
func (a *Authenticator) Token(ctx context.Context) (string, error) {
	if cred := a.tryRead(); cred != nil {
		return cred.Token, nil
	}
	return a.refresh(ctx)
}

// Invalidate drops the cached credential so the next Token call fetches a
// fresh one. Used when the remote store rejects a token it should accept.
func (a *Authenticator) Invalidate() {
	if err := os.Remove(a.cfg.CacheFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		a.logger.Warn().Err(err).Msg("Credential cache invalidation failed")
	}
}

// tryRead returns the cached credential if it is present, decryptable, and
// unexpired. Every failure mode is a miss.
func (a *Authenticator) tryRead() *credential {
	encrypted, err := os.ReadFile(a.cfg.CacheFile)
	if err != nil {
		return nil
	}

	plain, err := decrypt(encrypted, a.key)
	if err != nil {
		a.logger.Debug().Err(err).Msg("Credential cache undecryptable, refreshing")
		return nil
	}

	var cred credential
	if err := json.Unmarshal(plain, &cred); err != nil {
		a.logger.Debug().Err(err).Msg("Credential cache unparsable, refreshing")
		return nil
	}

	if !cred.valid() {
		return nil
	}
	return &cred
}

// refresh requests a new token and persists it encrypted. A persistence
// failure is logged but not fatal; the fresh token is still returned.
func (a *Authenticator) refresh(ctx context.Context) (string, error) {
	form := url.Values{
		"client_id":     {a.cfg.ClientID},
		"client_secret": {a.cfg.ClientSecret},
		"grant_type":    {"client_credentials"},
	}
	if a.cfg.Scope != "" {
		form.Set("scope", a.cfg.Scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", &CredentialError{Op: "request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", &CredentialError{Op: "fetch", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &CredentialError{Op: "read", Err: err}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", &CredentialError{Op: "decode", Err: err}
	}
	if tr.Error != "" {
		return "", &CredentialError{Op: "grant", Err: fmt.Errorf("%s: %s", tr.Error, tr.ErrorDescription)}
	}
	if resp.StatusCode != http.StatusOK || tr.AccessToken == "" {
		return "", &CredentialError{Op: "grant", Err: fmt.Errorf("unexpected response status %d", resp.StatusCode)}
	}

	lifetime := time.Duration(tr.ExpiresIn) * time.Second
	ttl := lifetime - a.cfg.SafetyMargin
	if ttl <= 0 {
		// Provider-reported lifetime shorter than the margin; use it as-is.
		ttl = lifetime
	}

	cred := credential{
		Token:   tr.AccessToken,
		Expires: time.Now().Add(ttl),
	}
	a.persist(&cred)

	a.logger.Info().
		Dur("ttl", ttl).
		Msg("Credential refreshed")

	return cred.Token, nil
}

// persist writes the credential encrypted with restrictive permissions.
func (a *Authenticator) persist(cred *credential) {
	plain, err := json.Marshal(cred)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Credential caching failed")
		return
	}

	encrypted, err := encrypt(plain, a.key)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Credential caching failed")
		return
	}

	if err := os.WriteFile(a.cfg.CacheFile, encrypted, 0o600); err != nil {
		a.logger.Warn().Err(err).Msg("Credential caching failed")
	}
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}
