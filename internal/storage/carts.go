package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pagecrest/fulfillment/internal/domain/models"
)

// CartStorage describes cart access within the checkout transaction.
type CartStorage interface {
	GetCartTx(ctx context.Context, tx *sql.Tx, userID int64) (*models.Cart, error)
	ClearCartTx(ctx context.Context, tx *sql.Tx, userID int64) error
}

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository creates the cart repository.
func NewCartRepository(db *sql.DB) CartStorage {
	return &cartRepository{db: db}
}

func (r *cartRepository) GetCartTx(ctx context.Context, tx *sql.Tx, userID int64) (*models.Cart, error) {
	query := `SELECT product_id, quantity FROM cart_items WHERE user_id = $1 ORDER BY product_id`
	rows, err := tx.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("loading cart for user %d: %w", userID, err)
	}
	defer rows.Close()

	cart := &models.Cart{UserID: userID}
	for rows.Next() {
		var item models.CartItem
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scanning cart item: %w", err)
		}
		cart.Items = append(cart.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return cart, nil
}

func (r *cartRepository) ClearCartTx(ctx context.Context, tx *sql.Tx, userID int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("clearing cart for user %d: %w", userID, err)
	}
	return nil
}
