package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velaluna/storefront-api/internal/catalog"
)

const (
	listProductsSQL = `SELECT id, name, price, category, image, stock
	FROM products ORDER BY name`

	getProductSQL = `SELECT id, name, price, category, image, stock
	FROM products WHERE id = $1`

	searchProductsSQL = `SELECT id, name, price, category, image, stock
	FROM products WHERE name ILIKE '%' || $1 || '%' ORDER BY name`

	upsertProductSQL = `INSERT INTO products (id, name, price, category, image, stock, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, now())
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name,
		price = EXCLUDED.price,
		category = EXCLUDED.category,
		image = EXCLUDED.image,
		stock = EXCLUDED.stock,
		updated_at = now()`

	lastFeedUpdateSQL = `SELECT max(updated_at) FROM products`
)

var _ catalog.Repository = (*ProductRepository)(nil)

// ProductRepository implements catalog.Repository backed by the products
// mirror table.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// List returns all mirrored products ordered by name.
func (r *ProductRepository) List(ctx context.Context) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return collectProducts(rows)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}

	products, err := collectProducts(rows)
	if err != nil {
		return nil, fmt.Errorf("getting product %q: %w", id, err)
	}
	if len(products) == 0 {
		return nil, catalog.ErrNotFound
	}
	return &products[0], nil
}

// Search returns products whose name contains query, case-insensitively.
func (r *ProductRepository) Search(ctx context.Context, query string) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, searchProductsSQL, query)
	if err != nil {
		return nil, fmt.Errorf("searching products %q: %w", query, err)
	}
	return collectProducts(rows)
}

// Upsert writes one product into the mirror, used by the feed loaders.
func (r *ProductRepository) Upsert(ctx context.Context, p catalog.Product) error {
	_, err := r.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.Name, p.Price, p.Category, p.Image, p.Stock,
	)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

// LastFeedUpdate returns the newest updated_at in the mirror, or the zero
// time when no product has been loaded yet. Feeds the staleness probe.
func (r *ProductRepository) LastFeedUpdate(ctx context.Context) (time.Time, error) {
	var at *time.Time
	if err := r.pool.QueryRow(ctx, lastFeedUpdateSQL).Scan(&at); err != nil {
		return time.Time{}, fmt.Errorf("reading last feed update: %w", err)
	}
	if at == nil {
		return time.Time{}, nil
	}
	return *at, nil
}

func collectProducts(rows pgx.Rows) ([]catalog.Product, error) {
	defer rows.Close()

	var products []catalog.Product
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Category, &p.Image, &p.Stock); err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate products")
	}
	return products, nil
}
