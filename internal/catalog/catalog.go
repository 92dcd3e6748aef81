// Package catalog is the read side of the product mirror: listing, lookup,
// and incremental search for the storefront pages.
package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a catalog item available for purchase. Stock is nil when the
// feed did not report a figure for the product.
type Product struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Category string          `json:"category"`
	Image    string          `json:"image"`
	Stock    *int            `json:"stock,omitempty"`
}

// Repository defines read operations against the product mirror.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	Search(ctx context.Context, query string) ([]Product, error)
}
