package server

import (
	"net/http"
)

type cacheStats struct {
	Entries          int               `json:"entries"`
	Versions         map[string]uint64 `json:"versions"`
	Variants         int               `json:"variants"`
	VariantCapacity  int               `json:"variant_capacity"`
	CoalesceTimeoutS float64           `json:"coalesce_timeout_seconds"`
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	versions := make(map[string]uint64, 3)
	for _, ns := range []string{NamespaceCategories, NamespaceMenuItems, NamespaceOrders} {
		versions[ns] = s.cache.GetVersion(ns)
	}

	writeJSON(w, r, http.StatusOK, cacheStats{
		Entries:          s.cache.Len(),
		Versions:         versions,
		Variants:         s.variants.Len(),
		VariantCapacity:  s.variants.Capacity(),
		CoalesceTimeoutS: s.coalescer.Timeout().Seconds(),
	})
}

type clearResult struct {
	Pattern   string `json:"pattern,omitempty"`
	Responses int    `json:"responses"`
	Variants  int    `json:"variants"`
}

// handleCacheClear empties both caches, or only the keys containing the
// pattern query parameter.
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")

	res := clearResult{Pattern: pattern}
	if pattern == "" {
		res.Responses = s.cache.Len()
		s.cache.Clear()
	} else {
		res.Responses = s.cache.ClearPattern(pattern)
	}
	res.Variants = s.variants.Clear(pattern)

	s.logger.Info().
		Str("pattern", pattern).
		Int("responses", res.Responses).
		Int("variants", res.Variants).
		Msg("Caches cleared")

	writeJSON(w, r, http.StatusOK, res)
}
