package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/prato-delivery/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

const productColumns = `id, restaurant_name, restaurant_address, restaurant_phone,
	name, price, category, image_url`

// List returns the whole catalog ordered by restaurant and name.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY restaurant_name, name`)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	defer rows.Close()
	return collectProducts(rows)
}

// ListByRestaurant returns the menu of a single restaurant.
func (r *ProductRepository) ListByRestaurant(ctx context.Context, restaurant string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE restaurant_name = $1 ORDER BY name`,
		restaurant)
	if err != nil {
		return nil, errors.Wrapf(err, "list products of %q", restaurant)
	}
	defer rows.Close()
	return collectProducts(rows)
}

// GetByIDs fetches the given products in one query. Missing IDs are simply
// absent from the result; callers detect them by comparing lengths.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products by ids")
	}
	defer rows.Close()
	return collectProducts(rows)
}

const upsertProductSQL = `INSERT INTO products
	(id, restaurant_name, restaurant_address, restaurant_phone, name, price, category, image_url)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (id) DO UPDATE SET
		restaurant_name = EXCLUDED.restaurant_name,
		restaurant_address = EXCLUDED.restaurant_address,
		restaurant_phone = EXCLUDED.restaurant_phone,
		name = EXCLUDED.name,
		price = EXCLUDED.price,
		category = EXCLUDED.category,
		image_url = EXCLUDED.image_url`

// Upsert inserts or refreshes a catalog entry. Used by the seeder.
func (r *ProductRepository) Upsert(ctx context.Context, p product.Product) error {
	if _, err := r.pool.Exec(ctx, upsertProductSQL,
		p.ID, p.Restaurant.Name, p.Restaurant.Address, p.Restaurant.Phone,
		p.Name, p.Price, p.Category, p.ImageURL,
	); err != nil {
		return errors.Wrapf(err, "upsert product %s", p.ID)
	}
	return nil
}

func collectProducts(rows pgx.Rows) ([]product.Product, error) {
	var products []product.Product
	for rows.Next() {
		var p product.Product
		if err := rows.Scan(&p.ID, &p.Restaurant.Name, &p.Restaurant.Address, &p.Restaurant.Phone,
			&p.Name, &p.Price, &p.Category, &p.ImageURL,
		); err != nil {
			return nil, errors.Wrap(err, "scan product")
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate products")
	}
	return products, nil
}
