package cache

import (
	"fmt"
	"sort"
	"strings"
)

// Key identifies a cached result. Scope separates the caches of different
// components (gallery listings, news listings, content blobs, site locator).
// Dimensions must include every parameter that changes the result; a missing
// dimension cross-contaminates differently-filtered listings.
type Key struct {
	// Scope is the cache namespace, e.g. "gallery", "news", "image".
	Scope string

	// Dimensions are the query parameters the result depends on,
	// e.g. {"year": "2024"}. An absent filter must still be represented
	// (use a stable placeholder such as "all") so that the unfiltered
	// result has its own key.
	Dimensions map[string]string
}

// String generates a deterministic cache key string.
// Format: cp:scope:dim1=val1:dim2=val2 with dimensions sorted by name.
//
// Example:
//
//	cp:news:year=2024
func (k Key) String() string {
	parts := []string{"cp", k.Scope}

	if len(k.Dimensions) > 0 {
		names := make([]string, 0, len(k.Dimensions))
		for name := range k.Dimensions {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", name, k.Dimensions[name]))
		}
	}

	return strings.Join(parts, ":")
}
