package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/tendant/storefront-api/internal/httputil"
	"github.com/tendant/storefront-api/pkg/domain"
	"github.com/tendant/storefront-api/pkg/repository"
	"github.com/tendant/storefront-api/pkg/respcache"
)

type countingStore struct {
	Store
	categoryCalls atomic.Int32
	productCalls  atomic.Int32
	fail          atomic.Bool
}

func (s *countingStore) ListCategories(ctx context.Context) ([]domain.Category, error) {
	s.categoryCalls.Add(1)
	if s.fail.Load() {
		return nil, errors.New("connection refused")
	}
	return s.Store.ListCategories(ctx)
}

func (s *countingStore) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	s.productCalls.Add(1)
	return s.Store.ListProducts(ctx, filter)
}

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newTestRouter(t *testing.T) (http.Handler, *countingStore, *testClock) {
	t.Helper()
	shoes := domain.Category{ID: uuid.New(), Slug: "shoes", Name: "Shoes", SortOrder: 1}
	hats := domain.Category{ID: uuid.New(), Slug: "hats", Name: "Hats", SortOrder: 2}
	products := []domain.Product{
		{ID: uuid.New(), CategoryID: shoes.ID, Slug: "runner", Name: "Runner", PriceCents: 8900, Currency: "USD", Available: true},
		{ID: uuid.New(), CategoryID: shoes.ID, Slug: "boot", Name: "Boot", PriceCents: 12900, Currency: "USD", Available: true},
		{ID: uuid.New(), CategoryID: hats.ID, Slug: "cap", Name: "Cap", PriceCents: 1900, Currency: "USD", Available: true},
	}
	store := &countingStore{Store: repository.NewMemoryCatalogRepository([]domain.Category{hats, shoes}, products)}
	clock := &testClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}

	h := NewHandler(store, respcache.New(respcache.WithClock(clock.Now)), Config{
		CategoriesTTL: 5 * time.Minute,
		ProductsTTL:   time.Minute,
	}, httputil.ErrorWriter{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r, store, clock
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestListCategories_Cached(t *testing.T) {
	router, store, clock := newTestRouter(t)

	steps := []struct {
		advance   time.Duration
		wantCache string
		wantCalls int32
	}{
		{advance: 0, wantCache: "MISS", wantCalls: 1},
		{advance: time.Minute, wantCache: "HIT", wantCalls: 1},
		{advance: 4*time.Minute - time.Second, wantCache: "HIT", wantCalls: 1},
		{advance: time.Second, wantCache: "MISS", wantCalls: 2},
	}

	for i, step := range steps {
		clock.now = clock.now.Add(step.advance)
		rec := get(router, "/api/products/categories")
		if rec.Code != http.StatusOK {
			t.Fatalf("step %d: status = %d", i, rec.Code)
		}
		if got := rec.Header().Get(respcache.HeaderName); got != step.wantCache {
			t.Errorf("step %d: X-Cache = %q, want %q", i, got, step.wantCache)
		}
		if got := store.categoryCalls.Load(); got != step.wantCalls {
			t.Errorf("step %d: store calls = %d, want %d", i, got, step.wantCalls)
		}

		var body CategoriesResponse
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatal(err)
		}
		if len(body.Categories) != 2 || body.Categories[0].Slug != "shoes" {
			t.Errorf("step %d: categories = %+v", i, body.Categories)
		}
	}
}

func TestListCategories_FailureNotCached(t *testing.T) {
	router, store, _ := newTestRouter(t)

	store.fail.Store(true)
	rec := get(router, "/api/products/categories")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}

	store.fail.Store(false)
	rec = get(router, "/api/products/categories")
	if rec.Code != http.StatusOK {
		t.Fatalf("status after recovery = %d", rec.Code)
	}
	if got := rec.Header().Get(respcache.HeaderName); got != "MISS" {
		t.Errorf("X-Cache = %q, want MISS", got)
	}
	if got := store.categoryCalls.Load(); got != 2 {
		t.Errorf("store calls = %d, want 2", got)
	}
}

func TestListProducts(t *testing.T) {
	router, store, _ := newTestRouter(t)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantSlugs  []string
	}{
		{name: "all", target: "/api/products", wantStatus: http.StatusOK, wantSlugs: []string{"boot", "cap", "runner"}},
		{name: "by category", target: "/api/products?category=shoes", wantStatus: http.StatusOK, wantSlugs: []string{"boot", "runner"}},
		{name: "paged", target: "/api/products?limit=1&offset=1", wantStatus: http.StatusOK, wantSlugs: []string{"cap"}},
		{name: "unknown category", target: "/api/products?category=socks", wantStatus: http.StatusOK, wantSlugs: []string{}},
		{name: "zero limit", target: "/api/products?limit=0", wantStatus: http.StatusBadRequest},
		{name: "limit too large", target: "/api/products?limit=1000", wantStatus: http.StatusBadRequest},
		{name: "non-numeric limit", target: "/api/products?limit=ten", wantStatus: http.StatusBadRequest},
		{name: "negative offset", target: "/api/products?offset=-1", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(router, tt.target)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var body ProductsResponse
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatal(err)
			}
			if len(body.Products) != len(tt.wantSlugs) {
				t.Fatalf("products = %d, want %d", len(body.Products), len(tt.wantSlugs))
			}
			for i, p := range body.Products {
				if p.Slug != tt.wantSlugs[i] {
					t.Errorf("product[%d] = %q, want %q", i, p.Slug, tt.wantSlugs[i])
				}
			}
		})
	}

	calls := store.productCalls.Load()
	rec := get(router, "/api/products?offset=1&limit=1")
	if got := rec.Header().Get(respcache.HeaderName); got != "HIT" {
		t.Errorf("reordered query X-Cache = %q, want HIT", got)
	}
	if store.productCalls.Load() != calls {
		t.Error("reordered query should be served from cache")
	}
}
