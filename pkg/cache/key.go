package cache

import (
	"strconv"
	"strings"
)

// KeySeparator joins the segments of a rendered cache key.
const KeySeparator = ":"

// CacheKey identifies a cached read result.
type CacheKey struct {
	// Resource is the namespace, e.g. "orders" or "menu-items"
	Resource string

	// Version is the namespace version the key was built against (0 = unversioned)
	Version uint64

	// Shape describes the query, e.g. ["page", "1", "50"]
	Shape []string
}

// String renders the key in the colon-delimited wire format.
// Format: resource:version:shape...
//
// Examples:
//
//	orders:3:page:1:50
//	menu-items:all
func (k CacheKey) String() string {
	parts := make([]string, 0, len(k.Shape)+2)
	parts = append(parts, k.Resource)

	if k.Version > 0 {
		parts = append(parts, strconv.FormatUint(k.Version, 10))
	}

	for _, s := range k.Shape {
		if s != "" {
			parts = append(parts, s)
		}
	}

	return strings.Join(parts, KeySeparator)
}

// NamespacePattern returns the substring that matches every key of namespace ns.
func NamespacePattern(ns string) string {
	return ns + KeySeparator
}
