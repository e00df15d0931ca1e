package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pagecrest/fulfillment/internal/domain/models"
)

var (
	ErrOrderNotFound        = errors.New("order not found")
	ErrDuplicateOrderNumber = errors.New("order number already exists")
)

// uniqueViolation is the Postgres error code for unique constraint
// violations, used to detect order-number collisions for retry.
const uniqueViolation = "23505"

// OrderStorage describes order persistence. Orders are never deleted;
// fulfillment mutations go through row-locked transactions so merges
// into one order's tracking history are serialized.
type OrderStorage interface {
	CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (int64, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	LockOrderTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error)
	// SaveFulfillmentTx persists the mutable fulfillment fields:
	// status, payment status, carrier sub-structure and timeline.
	SaveFulfillmentTx(ctx context.Context, tx *sql.Tx, order *models.Order) error
	// ListInFlightShipments returns orders with a tracking number
	// that have not reached a terminal status.
	ListInFlightShipments(ctx context.Context) ([]*models.Order, error)
}

type orderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates the order repository.
func NewOrderRepository(db *sql.DB) OrderStorage {
	return &orderRepository{db: db}
}

const orderColumns = `
	id, order_number, user_id, items, subtotal, shipping_cost,
	discount_amount, tax_amount, total, payment_status, status,
	shipping_address, shipment, timeline, coupon_code, created_at, updated_at`

func (r *orderRepository) CreateOrderTx(ctx context.Context, tx *sql.Tx, order *models.Order) (int64, error) {
	items, err := json.Marshal(order.Items)
	if err != nil {
		return 0, fmt.Errorf("marshaling order items: %w", err)
	}
	address, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return 0, fmt.Errorf("marshaling shipping address: %w", err)
	}
	timeline, err := json.Marshal(order.Timeline)
	if err != nil {
		return 0, fmt.Errorf("marshaling timeline: %w", err)
	}

	query := `
		INSERT INTO orders (
			order_number, user_id, items, subtotal, shipping_cost,
			discount_amount, tax_amount, total, payment_status, status,
			shipping_address, timeline, coupon_code, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, NOW(), NOW())
		RETURNING id`

	var id int64
	err = tx.QueryRowContext(ctx, query,
		order.OrderNumber, order.UserID, items, order.Subtotal, order.ShippingCost,
		order.DiscountAmount, order.TaxAmount, order.Total, order.PaymentStatus,
		order.Status, address, timeline, nullString(order.CouponCode),
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return 0, ErrDuplicateOrderNumber
		}
		return 0, fmt.Errorf("inserting order %s: %w", order.OrderNumber, err)
	}
	return id, nil
}

func (r *orderRepository) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrder(r.db.QueryRowContext(ctx, query, id))
}

func (r *orderRepository) LockOrderTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	return scanOrder(tx.QueryRowContext(ctx, query, id))
}

func (r *orderRepository) SaveFulfillmentTx(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	var shipment []byte
	if order.Shipment != nil {
		var err error
		shipment, err = json.Marshal(order.Shipment)
		if err != nil {
			return fmt.Errorf("marshaling shipment: %w", err)
		}
	}
	timeline, err := json.Marshal(order.Timeline)
	if err != nil {
		return fmt.Errorf("marshaling timeline: %w", err)
	}

	query := `
		UPDATE orders
		SET payment_status = $2, status = $3, shipment = $4, timeline = $5, updated_at = NOW()
		WHERE id = $1`
	res, err := tx.ExecContext(ctx, query, order.ID, order.PaymentStatus, order.Status, shipment, timeline)
	if err != nil {
		return fmt.Errorf("saving fulfillment for order %d: %w", order.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *orderRepository) ListInFlightShipments(ctx context.Context) ([]*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
		WHERE shipment IS NOT NULL
		  AND status NOT IN ('delivered', 'cancelled', 'returned')
		ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing in-flight shipments: %w", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	order := &models.Order{}
	var items, address, timeline []byte
	var shipment sql.NullString
	var couponCode sql.NullString

	err := row.Scan(
		&order.ID, &order.OrderNumber, &order.UserID, &items, &order.Subtotal,
		&order.ShippingCost, &order.DiscountAmount, &order.TaxAmount, &order.Total,
		&order.PaymentStatus, &order.Status, &address, &shipment, &timeline,
		&couponCode, &order.CreatedAt, &order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("scanning order: %w", err)
	}

	if err := json.Unmarshal(items, &order.Items); err != nil {
		return nil, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if err := json.Unmarshal(address, &order.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshaling shipping address: %w", err)
	}
	if len(timeline) > 0 {
		if err := json.Unmarshal(timeline, &order.Timeline); err != nil {
			return nil, fmt.Errorf("unmarshaling timeline: %w", err)
		}
	}
	if shipment.Valid && shipment.String != "" {
		order.Shipment = &models.CarrierShipment{}
		if err := json.Unmarshal([]byte(shipment.String), order.Shipment); err != nil {
			return nil, fmt.Errorf("unmarshaling shipment: %w", err)
		}
	}
	if couponCode.Valid {
		order.CouponCode = couponCode.String
	}
	return order, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
