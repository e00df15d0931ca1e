package storage_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pagecrest/fulfillment/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetCartTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT product_id, quantity FROM cart_items").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity"}).
			AddRow(1, 2).
			AddRow(3, 1))

	tx, err := db.Begin()
	require.NoError(t, err)

	repo := storage.NewCartRepository(db)
	cart, err := repo.GetCartTx(context.Background(), tx, 42)

	require.NoError(t, err)
	assert.Equal(t, int64(42), cart.UserID)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, int64(1), cart.Items[0].ProductID)
	assert.Equal(t, 2, cart.Items[0].Quantity)
}

func TestGetCartTx_Empty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT product_id, quantity FROM cart_items").
		WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity"}))

	tx, err := db.Begin()
	require.NoError(t, err)

	repo := storage.NewCartRepository(db)
	cart, err := repo.GetCartTx(context.Background(), tx, 42)

	require.NoError(t, err)
	assert.Empty(t, cart.Items)
}

func TestClearCartTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM cart_items WHERE user_id =").
		WithArgs(int64(42)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	tx, err := db.Begin()
	require.NoError(t, err)

	repo := storage.NewCartRepository(db)
	require.NoError(t, repo.ClearCartTx(context.Background(), tx, 42))
	assert.NoError(t, mock.ExpectationsWereMet())
}
