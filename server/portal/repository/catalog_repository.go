package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"pyrus_portal/server/portal/domain"
)

// CatalogRepository persists the sellable products and bundles admins
// attach to subscriptions.
type CatalogRepository struct {
	db *pgxpool.Pool
}

func NewCatalogRepository(db *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO products(name, description, price_cents, interval, active)
		VALUES($1, $2, $3, $4, $5)
		RETURNING product_id, created_at, updated_at
	`, p.Name, p.Description, p.PriceCents, p.Interval, p.Active).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *CatalogRepository) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	query := `
		SELECT product_id, name, description, price_cents, interval, active, created_at, updated_at
		FROM products`
	if activeOnly {
		query += `
		WHERE active`
	}
	query += `
		ORDER BY name`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Product, 0)
	for rows.Next() {
		var item domain.Product
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.PriceCents, &item.Interval, &item.Active, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *CatalogRepository) UpdateProduct(ctx context.Context, p domain.Product) error {
	cmd, err := r.db.Exec(ctx, `
		UPDATE products
		SET name = $2, description = $3, price_cents = $4, interval = $5, active = $6, updated_at = NOW()
		WHERE product_id = $1
	`, p.ID, p.Name, p.Description, p.PriceCents, p.Interval, p.Active)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CatalogRepository) CreateBundle(ctx context.Context, b domain.Bundle) (domain.Bundle, error) {
	err := r.db.QueryRow(ctx, `
		INSERT INTO bundles(name, description, product_ids, price_cents, active)
		VALUES($1, $2, $3, $4, $5)
		RETURNING bundle_id, created_at, updated_at
	`, b.Name, b.Description, b.ProductIDs, b.PriceCents, b.Active).Scan(&b.ID, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (r *CatalogRepository) ListBundles(ctx context.Context) ([]domain.Bundle, error) {
	rows, err := r.db.Query(ctx, `
		SELECT bundle_id, name, description, product_ids, price_cents, active, created_at, updated_at
		FROM bundles
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.Bundle, 0)
	for rows.Next() {
		var item domain.Bundle
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.ProductIDs, &item.PriceCents, &item.Active, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *CatalogRepository) GetBundle(ctx context.Context, bundleID string) (domain.Bundle, error) {
	var item domain.Bundle
	err := r.db.QueryRow(ctx, `
		SELECT bundle_id, name, description, product_ids, price_cents, active, created_at, updated_at
		FROM bundles
		WHERE bundle_id = $1
	`, bundleID).Scan(&item.ID, &item.Name, &item.Description, &item.ProductIDs, &item.PriceCents, &item.Active, &item.CreatedAt, &item.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return item, ErrNotFound
	}
	return item, err
}
