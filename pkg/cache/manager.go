package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Manager layers entry framing, lazy expiry, and hit/miss observability on
// top of a Store. Corrupt or unreadable entries are degraded to misses; the
// cache is never allowed to fail a request, only to slow it down.
type Manager struct {
	store  Store
	logger zerolog.Logger
}

// NewManager creates a cache manager over the given store.
func NewManager(store Store, logger zerolog.Logger) *Manager {
	if store == nil {
		panic("cache store cannot be nil")
	}
	return &Manager{store: store, logger: logger}
}

// Get retrieves a cache entry by key.
// Returns ErrCacheMiss if the key doesn't exist, the entry is expired, or
// the stored bytes are corrupt (corruption is deleted and counted).
func (m *Manager) Get(ctx context.Context, key Key) (*Entry, error) {
	cacheKey := key.String()

	data, err := m.store.Get(ctx, cacheKey)
	if err != nil {
		if errors.Is(err, ErrCacheMiss) {
			CacheMisses.WithLabelValues(key.Scope).Inc()
			return nil, ErrCacheMiss
		}
		CacheErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("store get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// Unreadable entry: treat as miss, drop the bytes.
		CacheErrors.WithLabelValues("get").Inc()
		CacheMisses.WithLabelValues(key.Scope).Inc()
		_ = m.store.Delete(ctx, cacheKey)
		m.logger.Warn().
			Str("key", cacheKey).
			Err(fmt.Errorf("%w: %v", ErrInvalidEntry, err)).
			Msg("Corrupt cache entry dropped")
		return nil, ErrCacheMiss
	}

	if entry.IsExpired() {
		_ = m.store.Delete(ctx, cacheKey)
		CacheMisses.WithLabelValues(key.Scope).Inc()
		return nil, ErrCacheMiss
	}

	CacheHits.WithLabelValues(key.Scope).Inc()
	return &entry, nil
}

// Put stores value under key with the given TTL.
func (m *Manager) Put(ctx context.Context, key Key, value any, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache value: %w", err)
	}

	now := time.Now()
	entry := Entry{
		Value:     raw,
		CreatedAt: now,
		Expires:   now.Add(ttl),
	}

	data, err := json.Marshal(&entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("marshal cache entry: %w", err)
	}

	if err := m.store.Set(ctx, key.String(), data, ttl); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		return fmt.Errorf("store set: %w", err)
	}

	return nil
}

// Lookup is the read side services use: it decodes a fresh entry into dest
// and reports whether it was a hit. Every failure mode (miss, expiry,
// corruption, store error) is swallowed and reported as a miss.
func (m *Manager) Lookup(ctx context.Context, key Key, dest any) bool {
	entry, err := m.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			m.logger.Warn().Str("key", key.String()).Err(err).Msg("Cache lookup error")
		}
		return false
	}

	if err := entry.Unmarshal(dest); err != nil {
		m.logger.Warn().Str("key", key.String()).Err(err).Msg("Cache value decode failed")
		_ = m.store.Delete(ctx, key.String())
		return false
	}

	return true
}

// Store is the write side counterpart of Lookup: failures are logged and
// swallowed so a broken cache never fails the request being served.
func (m *Manager) Store(ctx context.Context, key Key, value any, ttl time.Duration) {
	if err := m.Put(ctx, key, value, ttl); err != nil {
		m.logger.Warn().Str("key", key.String()).Err(err).Msg("Cache write failed")
	}
}
