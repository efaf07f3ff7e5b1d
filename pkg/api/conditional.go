package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Freshness carries the validators derived from a response payload.
type Freshness struct {
	// ETag is the strong validator: a hash of the canonical serialized
	// payload, quoted per RFC 9110.
	ETag string

	// LastModified is the newest modification timestamp among the
	// payload's items. Zero when the payload has no timestamped items.
	LastModified time.Time
}

// computeFreshness hashes the canonical JSON serialization of payload and
// pairs it with the newest of the given timestamps. Equal payloads always
// produce equal validators.
func computeFreshness(payload any, modTimes ...time.Time) (Freshness, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Freshness{}, fmt.Errorf("serialize payload: %w", err)
	}
	sum := sha256.Sum256(data)

	f := Freshness{ETag: `"` + hex.EncodeToString(sum[:]) + `"`}
	for _, t := range modTimes {
		if t.After(f.LastModified) {
			f.LastModified = t
		}
	}
	return f, nil
}

// notModified reports whether the request's validators show the client's
// copy is current. If-None-Match wins over If-Modified-Since when both are
// present, per RFC 9110.
func notModified(r *http.Request, f Freshness) bool {
	if inm := r.Header.Get("If-None-Match"); inm != "" {
		return matchesETag(inm, f.ETag)
	}
	if f.LastModified.IsZero() {
		return false
	}
	ims := r.Header.Get("If-Modified-Since")
	if ims == "" {
		return false
	}
	since, err := http.ParseTime(ims)
	if err != nil {
		return false
	}
	// HTTP dates have second precision.
	return !f.LastModified.Truncate(time.Second).After(since)
}

// matchesETag evaluates an If-None-Match header value against the response
// ETag. The header may carry "*" or a comma-separated list, and RFC 9110
// mandates weak comparison here, so a W/ prefix on either side is ignored.
func matchesETag(header, etag string) bool {
	etag = strings.TrimPrefix(etag, "W/")
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" {
			return true
		}
		if strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

// writeConditional sends payload as JSON with full cache validators, or a
// bodyless 304 when the request's validators match. maxAge is the
// per-endpoint Cache-Control policy. modTimes feed Last-Modified.
func writeConditional(w http.ResponseWriter, r *http.Request, payload any, maxAge time.Duration, modTimes ...time.Time) {
	f, err := computeFreshness(payload, modTimes...)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	w.Header().Set("ETag", f.ETag)
	if !f.LastModified.IsZero() {
		w.Header().Set("Last-Modified", f.LastModified.UTC().Format(http.TimeFormat))
	}
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(maxAge.Seconds())))

	if notModified(r, f) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}
