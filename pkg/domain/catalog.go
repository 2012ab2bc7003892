package domain

import "github.com/google/uuid"

// Category is a product category shown in the storefront navigation.
type Category struct {
	ID        uuid.UUID  `json:"id"`
	Slug      string     `json:"slug"`
	Name      string     `json:"name"`
	ParentID  *uuid.UUID `json:"parentId,omitempty"`
	SortOrder int        `json:"sortOrder"`
}

// Product is a sellable catalog item.
type Product struct {
	ID          uuid.UUID `json:"id"`
	CategoryID  uuid.UUID `json:"categoryId"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	PriceCents  int64     `json:"priceCents"`
	Currency    string    `json:"currency"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	Available   bool      `json:"available"`
}

// ProductFilter narrows a product listing.
type ProductFilter struct {
	CategorySlug string
	Limit        int
	Offset       int
}
