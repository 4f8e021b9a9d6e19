package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Sternrassler/bistro-cache/internal/store"
	"github.com/Sternrassler/bistro-cache/pkg/readthrough"
	"github.com/rs/zerolog/hlog"
)

// serveCached resolves the versioned key for ns and shape, loads the value
// through the read path and writes it as a conditional JSON response.
func serveCached[T any](s *Server, w http.ResponseWriter, r *http.Request, ns string, ttl time.Duration, shape []string, load func(ctx context.Context) (T, error)) {
	key := s.cache.Key(ns, shape...).String()

	val, hit, err := readthrough.Get(r.Context(), s.loader, key, ttl, load)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if hit {
		w.Header().Set("X-Cache", "hit")
	} else {
		w.Header().Set("X-Cache", "miss")
	}
	if err := s.responder.JSON(w, r, val); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("key", key).Msg("Failed to write cached response")
	}
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	serveCached(s, w, r, NamespaceCategories, s.ttl.Categories, []string{"all"}, s.repo.ListCategories)
}

func (s *Server) handleListMenuItems(w http.ResponseWriter, r *http.Request) {
	var categoryID int64
	shape := []string{"all"}

	if raw := r.URL.Query().Get("category"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id < 1 {
			writeError(w, r, badRequest("category must be a positive integer"))
			return
		}
		categoryID = id
		shape = []string{"category", strconv.FormatInt(id, 10)}
	}

	serveCached(s, w, r, NamespaceMenuItems, s.ttl.MenuItems, shape, func(ctx context.Context) ([]store.MenuItem, error) {
		return s.repo.ListMenuItems(ctx, categoryID)
	})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if all, _ := strconv.ParseBool(q.Get("all")); all {
		serveCached(s, w, r, NamespaceOrders, s.ttl.Orders, []string{"all"}, s.repo.AllOrders)
		return
	}

	page, err := positiveParam(q.Get("page"), 1)
	if err != nil {
		writeError(w, r, badRequest("page %v", err))
		return
	}
	limit, err := positiveParam(q.Get("limit"), DefaultPageLimit)
	if err != nil {
		writeError(w, r, badRequest("limit %v", err))
		return
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	if page > store.MaxPage(limit) {
		writeError(w, r, badRequest("page %v", errPageRange))
		return
	}

	shape := []string{"page", strconv.Itoa(page), strconv.Itoa(limit)}
	serveCached(s, w, r, NamespaceOrders, s.ttl.Orders, shape, func(ctx context.Context) (store.OrderPage, error) {
		return s.repo.ListOrders(ctx, page, limit)
	})
}

// positiveParam parses an optional positive integer query parameter.
func positiveParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, errNotPositive
	}
	return n, nil
}
