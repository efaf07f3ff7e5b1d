// Package cache provides the TTL cache used in front of the remote drive:
// a generic entry format, a deterministic key scheme, and pluggable
// file-backed and Redis-backed stores. Expiry is lazy: entries are checked
// at read time, there is no background eviction.
package cache

import (
	"encoding/json"
	"time"
)

// Entry represents a cached value with its TTL window.
type Entry struct {
	// Value is the cached payload, stored as raw JSON.
	Value json.RawMessage `json:"value"`

	// CreatedAt is when the entry was written.
	CreatedAt time.Time `json:"created_at"`

	// Expires is when the entry becomes stale. A lookup at or past this
	// instant is a miss regardless of what the store still holds.
	Expires time.Time `json:"expires"`
}

// IsExpired returns true if the entry has expired.
func (e *Entry) IsExpired() bool {
	return !time.Now().Before(e.Expires)
}

// TTL returns the time until expiration. Returns 0 if already expired.
func (e *Entry) TTL() time.Duration {
	ttl := time.Until(e.Expires)
	if ttl < 0 {
		return 0
	}
	return ttl
}

// Unmarshal decodes the cached payload into dest.
func (e *Entry) Unmarshal(dest any) error {
	return json.Unmarshal(e.Value, dest)
}
