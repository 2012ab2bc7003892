package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/tendant/storefront-api/pkg/domain"
)

var psq = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

const (
	DefaultProductLimit = 24
	MaxProductLimit     = 100
)

// CatalogRepository reads categories and products.
type CatalogRepository struct {
	db Querier
}

// NewCatalogRepository creates a new catalog repository.
func NewCatalogRepository(db Querier) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListCategories returns all categories in display order.
func (r *CatalogRepository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	query := `
		SELECT id, slug, name, parent_id, sort_order
		FROM categories
		ORDER BY sort_order, name
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	categories := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Slug, &c.Name, &c.ParentID, &c.SortOrder); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating category rows: %w", err)
	}
	return categories, nil
}

// ListProducts returns available products matching the filter.
func (r *CatalogRepository) ListProducts(ctx context.Context, filter domain.ProductFilter) ([]domain.Product, error) {
	filter = normalizeProductFilter(filter)

	qb := psq.Select(
		"p.id", "p.category_id", "p.slug", "p.name", "p.description",
		"p.price_cents", "p.currency", "p.image_url", "p.available",
	).
		From("products p").
		Where(sq.Eq{"p.available": true}).
		OrderBy("p.name").
		Limit(uint64(filter.Limit)).
		Offset(uint64(filter.Offset))

	if filter.CategorySlug != "" {
		qb = qb.Join("categories c ON c.id = p.category_id").
			Where(sq.Eq{"c.slug": filter.CategorySlug})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building product query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	products := []domain.Product{}
	for rows.Next() {
		var p domain.Product
		err := rows.Scan(
			&p.ID, &p.CategoryID, &p.Slug, &p.Name, &p.Description,
			&p.PriceCents, &p.Currency, &p.ImageURL, &p.Available,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating product rows: %w", err)
	}
	return products, nil
}

func normalizeProductFilter(filter domain.ProductFilter) domain.ProductFilter {
	if filter.Limit <= 0 {
		filter.Limit = DefaultProductLimit
	}
	if filter.Limit > MaxProductLimit {
		filter.Limit = MaxProductLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return filter
}
