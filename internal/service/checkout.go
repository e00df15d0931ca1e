package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pagecrest/fulfillment/internal/domain/models"
	"github.com/pagecrest/fulfillment/internal/storage"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// PricingPolicy holds the flat-rate shipping policy. Amounts are cents.
type PricingPolicy struct {
	FreeShippingThreshold int64
	FlatShippingFee       int64
}

// DefaultPricingPolicy: free shipping at $200, flat $15 below.
func DefaultPricingPolicy() PricingPolicy {
	return PricingPolicy{
		FreeShippingThreshold: 20000,
		FlatShippingFee:       1500,
	}
}

// ShippingCost applies the flat-rate policy to a subtotal.
func (p PricingPolicy) ShippingCost(subtotal int64) int64 {
	if subtotal >= p.FreeShippingThreshold {
		return 0
	}
	return p.FlatShippingFee
}

// CheckoutRequest converts a user's cart into an order.
type CheckoutRequest struct {
	UserID          int64
	ShippingAddress models.Address
	CouponCode      string
	PaymentMethod   string
}

// CheckoutService is the transactional cart-to-order conversion.
type CheckoutService interface {
	Checkout(ctx context.Context, req CheckoutRequest) (*models.Order, error)
}

type checkoutService struct {
	log      *otelzap.Logger
	db       *sql.DB
	products storage.ProductStorage
	coupons  storage.CouponStorage
	carts    storage.CartStorage
	orders   storage.OrderStorage
	events   EventPublisher
	policy   PricingPolicy
	now      func() time.Time
}

// NewCheckoutService creates the checkout service.
func NewCheckoutService(
	log *otelzap.Logger,
	db *sql.DB,
	products storage.ProductStorage,
	coupons storage.CouponStorage,
	carts storage.CartStorage,
	orders storage.OrderStorage,
	events EventPublisher,
	policy PricingPolicy,
) CheckoutService {
	return &checkoutService{
		log:      log,
		db:       db,
		products: products,
		coupons:  coupons,
		carts:    carts,
		orders:   orders,
		events:   events,
		policy:   policy,
		now:      time.Now,
	}
}

// orderNumberAttempts bounds collision retries on the generated order
// number. Each retry reruns the whole transaction.
const orderNumberAttempts = 3

// Checkout runs the checkout transaction: cart load, stock checks,
// coupon check-and-increment, pricing, order insert, stock decrement,
// cart clear. Any failure aborts all of it. Post-commit side effects
// are best-effort and never roll back the order.
func (s *checkoutService) Checkout(ctx context.Context, req CheckoutRequest) (*models.Order, error) {
	logger := s.log.Ctx(ctx)

	var order *models.Order
	var err error
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		order, err = s.checkoutOnce(ctx, req)
		if errors.Is(err, storage.ErrDuplicateOrderNumber) {
			logger.Warn("order number collision, retrying checkout",
				zap.Int("attempt", attempt+1))
			continue
		}
		break
	}
	if err != nil {
		return nil, err
	}

	// Post-commit, best-effort.
	event := models.OrderPlacedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Items:       order.Items,
		Total:       order.Total,
		Timestamp:   s.now(),
	}
	if err := s.events.Publish(ctx, order.OrderNumber, event); err != nil {
		logger.Warn("failed to publish order-placed event",
			zap.String("order_number", order.OrderNumber),
			zap.Error(err))
	}

	logger.Info("checkout committed",
		zap.String("order_number", order.OrderNumber),
		zap.Int64("user_id", order.UserID),
		zap.Int64("total", order.Total),
	)
	return order, nil
}

func (s *checkoutService) checkoutOnce(ctx context.Context, req CheckoutRequest) (*models.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning checkout transaction: %w", err)
	}
	defer tx.Rollback()

	cart, err := s.carts.GetCartTx(ctx, tx, req.UserID)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		return nil, ErrEmptyCart
	}

	// Stock preconditions first; the first violation aborts.
	var subtotal int64
	items := make([]models.LineItem, 0, len(cart.Items))
	for _, cartItem := range cart.Items {
		product, err := s.products.LockProductTx(ctx, tx, cartItem.ProductID)
		if err != nil {
			return nil, err
		}
		if !product.Active {
			return nil, fmt.Errorf("%w: %s", ErrProductInactive, product.Title)
		}
		if product.Stock < cartItem.Quantity {
			return nil, fmt.Errorf("%w: %s", storage.ErrInsufficientStock, product.Title)
		}
		items = append(items, models.LineItem{
			ProductID:    product.ID,
			Title:        product.Title,
			Format:       product.Format,
			Quantity:     cartItem.Quantity,
			PriceAtOrder: product.Price,
		})
		subtotal += product.Price * int64(cartItem.Quantity)
	}

	// Coupon check-and-increment, atomic with the order.
	var discount int64
	var couponCode string
	if req.CouponCode != "" {
		coupon, err := s.coupons.LockCouponByCodeTx(ctx, tx, req.CouponCode)
		if err != nil {
			return nil, err
		}
		if err := coupon.Validate(subtotal, s.now()); err != nil {
			return nil, err
		}
		discount = coupon.DiscountFor(subtotal)
		if err := s.coupons.IncrementUsageTx(ctx, tx, coupon.ID); err != nil {
			return nil, err
		}
		couponCode = coupon.Code
	}

	shipping := s.policy.ShippingCost(subtotal)
	now := s.now()

	order := &models.Order{
		OrderNumber:     generateOrderNumber(now),
		UserID:          req.UserID,
		Items:           items,
		Subtotal:        subtotal,
		ShippingCost:    shipping,
		DiscountAmount:  discount,
		Total:           subtotal + shipping - discount,
		PaymentStatus:   models.PaymentPending,
		Status:          models.OrderPending,
		ShippingAddress: req.ShippingAddress,
		CouponCode:      couponCode,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	order.AppendTimeline(now, string(models.OrderPending), "order placed")

	id, err := s.orders.CreateOrderTx(ctx, tx, order)
	if err != nil {
		return nil, err
	}
	order.ID = id

	for _, item := range items {
		if err := s.products.DecrementStockTx(ctx, tx, item.ProductID, item.Quantity); err != nil {
			return nil, fmt.Errorf("%w: %s", err, item.Title)
		}
	}

	if err := s.carts.ClearCartTx(ctx, tx, req.UserID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing checkout transaction: %w", err)
	}
	return order, nil
}

// generateOrderNumber builds an order number with enough entropy that
// collisions are rare; the insert's unique constraint catches the rest
// and the transaction is retried with a fresh number.
func generateOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(uuid.New().String()[:8])
	return fmt.Sprintf("PC-%s-%s", now.Format("20060102"), suffix)
}
