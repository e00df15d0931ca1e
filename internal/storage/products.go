// Package storage provides the Postgres repositories for the
// fulfillment core. Methods taking *sql.Tx participate in the caller's
// transaction; the checkout transaction spans every stock and coupon
// mutation so concurrent checkouts cannot oversell or overshoot.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pagecrest/fulfillment/internal/domain/models"
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// ProductStorage describes product access within the checkout transaction.
type ProductStorage interface {
	// LockProductTx loads a product and locks its row for the
	// duration of the transaction.
	LockProductTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error)
	// DecrementStockTx atomically decrements stock, failing with
	// ErrInsufficientStock if the product has fewer than qty units.
	DecrementStockTx(ctx context.Context, tx *sql.Tx, id int64, qty int) error
}

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates the product repository.
func NewProductRepository(db *sql.DB) ProductStorage {
	return &productRepository{db: db}
}

func (r *productRepository) LockProductTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Product, error) {
	product := &models.Product{}
	query := `SELECT id, title, format, price, stock, active FROM products WHERE id = $1 FOR UPDATE`
	row := tx.QueryRowContext(ctx, query, id)
	if err := row.Scan(&product.ID, &product.Title, &product.Format, &product.Price, &product.Stock, &product.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("locking product %d: %w", id, err)
	}
	return product, nil
}

func (r *productRepository) DecrementStockTx(ctx context.Context, tx *sql.Tx, id int64, qty int) error {
	// The stock >= qty guard in the UPDATE keeps stock non-negative
	// even if the earlier read raced.
	query := `UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2`
	res, err := tx.ExecContext(ctx, query, id, qty)
	if err != nil {
		return fmt.Errorf("decrementing stock for product %d: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrementing stock for product %d: %w", id, err)
	}
	if affected == 0 {
		return ErrInsufficientStock
	}
	return nil
}
