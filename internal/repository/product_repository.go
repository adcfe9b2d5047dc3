package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"outfit-studio/internal/catalog"
	"outfit-studio/internal/domain"

	"github.com/shopspring/decimal"
)

// ProductRepository is the Postgres-backed catalog.
type ProductRepository interface {
	catalog.Accessor
	Upsert(ctx context.Context, products []domain.ProductRecord) error
	Count(ctx context.Context) (int, error)
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepository{db: db}
}

const productColumns = `id, category, name, brand, price, original_price, color, sizes, image`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.ProductRecord, error) {
	p := &domain.ProductRecord{}
	var original decimal.NullDecimal
	var sizes []byte

	if err := row.Scan(&p.ID, &p.Category, &p.Name, &p.Brand, &p.Price, &original, &p.Color, &sizes, &p.Image); err != nil {
		return nil, err
	}
	if original.Valid {
		p.OriginalPrice = &original.Decimal
	}
	if err := json.Unmarshal(sizes, &p.Sizes); err != nil {
		return nil, fmt.Errorf("failed to decode sizes of %s: %w", p.ID, err)
	}
	p.ApplyDiscount()
	return p, nil
}

// Upsert inserts or replaces products in a single transaction.
func (r *productRepository) Upsert(ctx context.Context, products []domain.ProductRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO products (id, category, name, brand, price, original_price, color, sizes, image)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			category = EXCLUDED.category, name = EXCLUDED.name, brand = EXCLUDED.brand,
			price = EXCLUDED.price, original_price = EXCLUDED.original_price, color = EXCLUDED.color,
			sizes = EXCLUDED.sizes, image = EXCLUDED.image, updated_at = NOW()
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, p := range products {
		sizes, err := json.Marshal(p.Sizes)
		if err != nil {
			return fmt.Errorf("failed to encode sizes of %s: %w", p.ID, err)
		}
		var original decimal.NullDecimal
		if p.OriginalPrice != nil {
			original = decimal.NewNullDecimal(*p.OriginalPrice)
		}
		if _, err := stmt.ExecContext(ctx, p.ID, p.Category, p.Name, p.Brand, p.Price, original, p.Color, string(sizes), p.Image); err != nil {
			return fmt.Errorf("failed to upsert product %s: %w", p.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit products: %w", err)
	}
	return nil
}

func (r *productRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

// Lookup retrieves a product by ID using parameterized queries
func (r *productRepository) Lookup(ctx context.Context, id string) (*domain.ProductRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", catalog.ErrProductNotFound, id)
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}
	return p, nil
}

func (r *productRepository) ListByCategory(ctx context.Context, category string) ([]domain.ProductRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+productColumns+` FROM products WHERE category = $1 ORDER BY id`, category)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []domain.ProductRecord{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	if len(products) == 0 {
		return nil, fmt.Errorf("%w: %s", catalog.ErrCategoryNotFound, category)
	}
	return products, nil
}

func (r *productRepository) Categories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT category FROM products ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, domain.Category{ID: id, Name: catalog.DisplayName(id)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}
	return categories, nil
}
