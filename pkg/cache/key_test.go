package cache

import (
	"strings"
	"testing"
)

func TestCacheKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  CacheKey
		want string
	}{
		{
			name: "unversioned resource",
			key: CacheKey{
				Resource: "menu-items",
				Shape:    []string{"all"},
			},
			want: "menu-items:all",
		},
		{
			name: "versioned page",
			key: CacheKey{
				Resource: "orders",
				Version:  3,
				Shape:    []string{"page", "1", "50"},
			},
			want: "orders:3:page:1:50",
		},
		{
			name: "versioned without shape",
			key: CacheKey{
				Resource: "categories",
				Version:  1,
			},
			want: "categories:1",
		},
		{
			name: "empty shape segments are skipped",
			key: CacheKey{
				Resource: "categories",
				Shape:    []string{"", "all"},
			},
			want: "categories:all",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.key.String()
			if got != tt.want {
				t.Errorf("CacheKey.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestNamespacePattern ensures a namespace pattern never matches a sibling
// namespace sharing a prefix.
func TestNamespacePattern(t *testing.T) {
	pattern := NamespacePattern("orders")
	if pattern != "orders:" {
		t.Fatalf("NamespacePattern() = %q, want %q", pattern, "orders:")
	}

	key := CacheKey{Resource: "orders-archive", Version: 1, Shape: []string{"all"}}.String()
	if strings.Contains(key, pattern) {
		t.Errorf("pattern %q should not match %q", pattern, key)
	}
}
