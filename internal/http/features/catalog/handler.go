// Package catalog serves the read-only storefront catalog.
package catalog

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tendant/storefront-api/internal/httputil"
	"github.com/tendant/storefront-api/pkg/domain"
	"github.com/tendant/storefront-api/pkg/repository"
	"github.com/tendant/storefront-api/pkg/respcache"
)

// Store reads the catalog.
type Store interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
	ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error)
}

// Config holds per-endpoint cache lifetimes.
type Config struct {
	CategoriesTTL time.Duration
	ProductsTTL   time.Duration
}

// Handler handles catalog endpoints.
type Handler struct {
	store Store
	cache *respcache.Cache
	cfg   Config
	errs  httputil.ErrorWriter
}

// NewHandler creates a new catalog handler. Responses are cached in cache.
func NewHandler(store Store, cache *respcache.Cache, cfg Config, errs httputil.ErrorWriter) *Handler {
	return &Handler{
		store: store,
		cache: cache,
		cfg:   cfg,
		errs:  errs,
	}
}

// RegisterRoutes registers catalog routes behind the response cache.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(h.cache.Middleware(h.cfg.CategoriesTTL)).Get("/api/products/categories", h.ListCategories)
	r.With(h.cache.Middleware(h.cfg.ProductsTTL)).Get("/api/products", h.ListProducts)
}

// CategoriesResponse lists categories.
type CategoriesResponse struct {
	Categories []domain.Category `json:"categories"`
}

// ListCategories returns all categories.
// GET /api/products/categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, CategoriesResponse{Categories: categories})
}

// ProductsResponse lists a page of products.
type ProductsResponse struct {
	Products []domain.Product `json:"products"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

// ListProducts returns available products, optionally filtered by category.
// GET /api/products?category=<slug>&limit=&offset=
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}

	products, err := h.store.ListProducts(r.Context(), filter)
	if err != nil {
		h.errs.Write(w, r, err)
		return
	}
	httputil.JSON(w, http.StatusOK, ProductsResponse{
		Products: products,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	})
}

func parseFilter(r *http.Request) (domain.ProductFilter, error) {
	q := r.URL.Query()
	filter := domain.ProductFilter{
		CategorySlug: q.Get("category"),
		Limit:        repository.DefaultProductLimit,
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > repository.MaxProductLimit {
			return filter, domain.NewError(domain.KindValidation,
				"limit must be between 1 and "+strconv.Itoa(repository.MaxProductLimit))
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return filter, domain.NewError(domain.KindValidation, "offset must be a non-negative integer")
		}
		filter.Offset = n
	}
	return filter, nil
}
