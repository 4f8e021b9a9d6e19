// Package server exposes the bistro API over HTTP with chi. Reads go through
// the versioned response cache and the coalescer, replies through the ETag
// responder, and media variants through the bounded transform cache.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Sternrassler/bistro-cache/internal/media"
	"github.com/Sternrassler/bistro-cache/internal/store"
	"github.com/Sternrassler/bistro-cache/pkg/cache"
	"github.com/Sternrassler/bistro-cache/pkg/coalesce"
	"github.com/Sternrassler/bistro-cache/pkg/etag"
	"github.com/Sternrassler/bistro-cache/pkg/metrics"
	"github.com/Sternrassler/bistro-cache/pkg/readthrough"
	"github.com/Sternrassler/bistro-cache/pkg/transform"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Cache namespaces. Every write bumps the version of the namespaces it affects.
const (
	NamespaceCategories = "categories"
	NamespaceMenuItems  = "menu-items"
	NamespaceOrders     = "orders"
)

// Paging limits for the orders listing.
const (
	DefaultPageLimit = 50
	MaxPageLimit     = 100
)

// Repository is the backend the handlers read from and write to.
// *store.Store implements it.
type Repository interface {
	Ping(ctx context.Context) error
	ListCategories(ctx context.Context) ([]store.Category, error)
	ListMenuItems(ctx context.Context, categoryID int64) ([]store.MenuItem, error)
	ListOrders(ctx context.Context, page, limit int) (store.OrderPage, error)
	AllOrders(ctx context.Context) ([]store.Order, error)
	CreateCategory(ctx context.Context, c store.Category) (store.Category, error)
	CreateMenuItem(ctx context.Context, m store.MenuItem) (store.MenuItem, error)
	UpdateMenuItem(ctx context.Context, m store.MenuItem) (store.MenuItem, error)
	DeleteMenuItem(ctx context.Context, id int64) error
	CreateOrder(ctx context.Context, o store.Order) (store.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status string) (store.Order, error)
}

var _ Repository = (*store.Store)(nil)

// TTLs holds the response cache TTL per namespace.
type TTLs struct {
	Categories time.Duration
	MenuItems  time.Duration
	Orders     time.Duration
}

// DefaultTTLs returns the TTLs used when none are configured.
func DefaultTTLs() TTLs {
	return TTLs{
		Categories: time.Hour,
		MenuItems:  time.Hour,
		Orders:     30 * time.Second,
	}
}

// Deps are the components a Server is built from. Every field is required.
type Deps struct {
	Repo      Repository
	Cache     *cache.Manager
	Coalescer *coalesce.Coalescer
	Responder *etag.Responder
	Variants  *transform.BoundedCache
	Media     *media.Library
	TTL       TTLs
	Logger    zerolog.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	repo      Repository
	cache     *cache.Manager
	loader    *readthrough.Loader
	coalescer *coalesce.Coalescer
	responder *etag.Responder
	variants  *transform.BoundedCache
	media     *media.Library
	ttl       TTLs
	logger    zerolog.Logger
}

// New creates a server from deps.
func New(deps Deps) (*Server, error) {
	switch {
	case deps.Repo == nil:
		return nil, errors.New("server: repository is required")
	case deps.Cache == nil:
		return nil, errors.New("server: cache is required")
	case deps.Coalescer == nil:
		return nil, errors.New("server: coalescer is required")
	case deps.Responder == nil:
		return nil, errors.New("server: responder is required")
	case deps.Variants == nil:
		return nil, errors.New("server: variant cache is required")
	case deps.Media == nil:
		return nil, errors.New("server: media library is required")
	}

	ttl := deps.TTL
	defaults := DefaultTTLs()
	if ttl.Categories <= 0 {
		ttl.Categories = defaults.Categories
	}
	if ttl.MenuItems <= 0 {
		ttl.MenuItems = defaults.MenuItems
	}
	if ttl.Orders <= 0 {
		ttl.Orders = defaults.Orders
	}

	return &Server{
		repo:      deps.Repo,
		cache:     deps.Cache,
		loader:    readthrough.New(deps.Cache, deps.Coalescer, deps.Logger),
		coalescer: deps.Coalescer,
		responder: deps.Responder,
		variants:  deps.Variants,
		media:     deps.Media,
		ttl:       ttl,
		logger:    deps.Logger,
	}, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	for _, mw := range requestLogging(s.logger) {
		r.Use(mw)
	}
	r.Use(instrument)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/categories", s.handleListCategories)
		r.Post("/categories", s.handleCreateCategory)

		r.Get("/menu-items", s.handleListMenuItems)
		r.Post("/menu-items", s.handleCreateMenuItem)
		r.Put("/menu-items/{id}", s.handleUpdateMenuItem)
		r.Delete("/menu-items/{id}", s.handleDeleteMenuItem)

		r.Get("/orders", s.handleListOrders)
		r.Post("/orders", s.handleCreateOrder)
		r.Patch("/orders/{id}/status", s.handleUpdateOrderStatus)

		r.Get("/cache/stats", s.handleCacheStats)
		r.Post("/cache/clear", s.handleCacheClear)
	})

	r.Get("/media/{name}", s.handleMedia)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.repo.Ping(ctx); err != nil {
		s.logger.Error().Err(err).Msg("Health check failed")
		http.Error(w, "database unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
