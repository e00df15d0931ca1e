package service

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/pagecrest/fulfillment/internal/domain/models"
	"github.com/pagecrest/fulfillment/internal/storage"
	"github.com/pagecrest/fulfillment/pkg/carrier"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ShipmentOptions lets the operator override service level and weight.
type ShipmentOptions struct {
	ServiceCode string
	WeightKG    float64
}

// PickupWindow is the requested pickup slot.
type PickupWindow struct {
	Date      string // YYYY-MM-DD
	ReadyTime string // HH:MM
	CloseTime string // HH:MM
}

// FulfillmentService orchestrates carrier operations against confirmed
// orders and reconciles results back into order state. Carrier calls
// always happen outside database transactions.
type FulfillmentService interface {
	GetOrder(ctx context.Context, orderID int64) (*models.Order, error)
	ConfirmPayment(ctx context.Context, orderID int64) (*models.Order, error)
	CreateShipment(ctx context.Context, orderID int64, opts ShipmentOptions) (*models.Order, error)
	RefreshTracking(ctx context.Context, orderID int64) (*models.Order, error)
	RefreshAllTracking(ctx context.Context) error
	SchedulePickup(ctx context.Context, orderID int64, window PickupWindow) (string, error)
	CancelPickup(ctx context.Context, orderID int64) error
}

type fulfillmentService struct {
	log     *otelzap.Logger
	db      *sql.DB
	orders  storage.OrderStorage
	carrier carrier.Carrier
	events  EventPublisher
	now     func() time.Time

	// trackingConcurrency bounds the RefreshAllTracking fan-out.
	trackingConcurrency int
}

// NewFulfillmentService creates the shipment orchestrator.
func NewFulfillmentService(
	log *otelzap.Logger,
	db *sql.DB,
	orders storage.OrderStorage,
	c carrier.Carrier,
	events EventPublisher,
) FulfillmentService {
	return &fulfillmentService{
		log:                 log,
		db:                  db,
		orders:              orders,
		carrier:             c,
		events:              events,
		now:                 time.Now,
		trackingConcurrency: 4,
	}
}

// GetOrder returns one order by id.
func (s *fulfillmentService) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	return s.orders.GetOrderByID(ctx, orderID)
}

// ConfirmPayment promotes a pending order to confirmed on the external
// payment-confirmed signal. Required before shipment creation.
func (s *fulfillmentService) ConfirmPayment(ctx context.Context, orderID int64) (*models.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := s.orders.LockOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus == models.PaymentPaid {
		// Duplicate signal from the gateway; nothing to do.
		return order, nil
	}

	now := s.now()
	order.PaymentStatus = models.PaymentPaid
	if order.Status.CanAdvanceTo(models.OrderConfirmed) {
		order.Status = models.OrderConfirmed
	}
	order.AppendTimeline(now, string(models.OrderConfirmed), "payment confirmed")

	if err := s.orders.SaveFulfillmentTx(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing payment confirmation: %w", err)
	}

	event := models.OrderConfirmedEvent{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Timestamp:   now,
	}
	if err := s.events.Publish(ctx, order.OrderNumber, event); err != nil {
		s.log.Ctx(ctx).Warn("failed to publish order-confirmed event",
			zap.String("order_number", order.OrderNumber), zap.Error(err))
	}
	return order, nil
}

// CreateShipment books a shipment for a confirmed, unshipped order.
// The carrier call runs outside the write transaction; its failure
// leaves the order untouched and is operator-retryable.
func (s *fulfillmentService) CreateShipment(ctx context.Context, orderID int64, opts ShipmentOptions) (*models.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := shipmentPrecondition(order); err != nil {
		return nil, err
	}

	weight := opts.WeightKG
	if weight <= 0 {
		weight = EstimateWeightKG(order.Items)
	}

	result, err := s.carrier.CreateShipment(ctx, &carrier.ShipmentRequest{
		OrderNumber: order.OrderNumber,
		Recipient:   toCarrierAddress(order.ShippingAddress),
		Packages: []carrier.Package{{
			Weight:        weight,
			DeclaredValue: carrier.Money{Amount: centsToDollars(order.Total), Currency: "USD"},
		}},
		ServiceCode:  opts.ServiceCode,
		InsuredValue: carrier.Money{Amount: centsToDollars(order.Total), Currency: "USD"},
		Reference:    order.OrderNumber,
	})
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	order, err = s.orders.LockOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Shipment != nil && order.Shipment.TrackingNumber != "" {
		// Raced with another creation; the booked shipment is orphaned
		// and needs operator attention, but the order keeps its first
		// tracking number.
		s.log.Ctx(ctx).Error("shipment created twice for order",
			zap.String("order_number", order.OrderNumber),
			zap.String("kept", order.Shipment.TrackingNumber),
			zap.String("orphaned", result.TrackingNumber))
		return nil, carrier.ErrDuplicateShipment
	}

	now := s.now()
	order.Shipment = &models.CarrierShipment{
		TrackingNumber: result.TrackingNumber,
		LabelURL:       result.LabelURL,
		ServiceType:    result.ServiceCode,
		WeightKG:       weight,
		InsuredValue:   order.Total,
		CurrentStatus:  string(carrier.StatusShipped),
	}
	if order.Status.CanAdvanceTo(models.OrderProcessing) {
		order.Status = models.OrderProcessing
	}
	order.AppendTimeline(now, string(order.Status),
		"shipment created, tracking "+result.TrackingNumber)

	if err := s.orders.SaveFulfillmentTx(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing shipment: %w", err)
	}

	event := models.ShipmentCreatedEvent{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		TrackingNumber: result.TrackingNumber,
		ServiceType:    result.ServiceCode,
		Timestamp:      now,
	}
	if err := s.events.Publish(ctx, order.OrderNumber, event); err != nil {
		s.log.Ctx(ctx).Warn("failed to publish shipment-created event",
			zap.String("order_number", order.OrderNumber), zap.Error(err))
	}
	return order, nil
}

func shipmentPrecondition(order *models.Order) error {
	if order.Shipment != nil && order.Shipment.TrackingNumber != "" {
		return carrier.ErrDuplicateShipment
	}
	if order.Status != models.OrderConfirmed && order.Status != models.OrderProcessing {
		return fmt.Errorf("%w: status %s", carrier.ErrShipmentNotReady, order.Status)
	}
	if order.PaymentStatus != models.PaymentPaid {
		return ErrNotPaid
	}
	return nil
}

// RefreshTracking polls the carrier and reconciles the snapshot into
// the order: scan events merge deduplicated by timestamp, status only
// advances forward, and actual delivery is recorded exactly once.
func (s *fulfillmentService) RefreshTracking(ctx context.Context, orderID int64) (*models.Order, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Shipment == nil || order.Shipment.TrackingNumber == "" {
		return nil, ErrNoShipment
	}

	snapshot, err := s.carrier.Track(ctx, order.Shipment.TrackingNumber)
	if err != nil {
		return nil, err
	}
	return s.reconcile(ctx, orderID, snapshot)
}

// reconcile applies one tracking snapshot inside a row-locked
// transaction so concurrent merges into the same order serialize.
func (s *fulfillmentService) reconcile(ctx context.Context, orderID int64, snapshot *carrier.TrackSnapshot) (*models.Order, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := s.orders.LockOrderTx(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Shipment == nil {
		return nil, ErrNoShipment
	}
	shipment := order.Shipment
	now := s.now()

	for _, event := range snapshot.Events {
		if shipment.HasEvent(event.Timestamp) {
			continue
		}
		shipment.TrackingHistory = append(shipment.TrackingHistory, models.TrackingRecord{
			Timestamp:   event.Timestamp,
			Code:        event.Code,
			Description: event.Description,
			Location:    event.Location,
			Status:      string(event.Status),
		})
	}

	current := carrier.ShipmentStatus(shipment.CurrentStatus)
	if carrier.Advances(current, snapshot.Current.Status) {
		shipment.CurrentStatus = string(snapshot.Current.Status)
	}
	if snapshot.EstimatedDelivery != nil {
		shipment.EstimatedDelivery = snapshot.EstimatedDelivery
	}

	mapped := orderStatusFromShipment(snapshot.Current.Status)
	delivered := false
	if order.Status.CanAdvanceTo(mapped) {
		order.Status = mapped
		order.AppendTimeline(now, string(mapped), snapshot.Current.Description)
		delivered = mapped == models.OrderDelivered
	}

	// Actual delivery is recorded exactly once, the first time the
	// shipment reaches delivered.
	if shipment.ActualDelivery == nil &&
		carrier.ShipmentStatus(shipment.CurrentStatus) == carrier.StatusDelivered {
		deliveredAt := now
		if snapshot.ActualDelivery != nil {
			deliveredAt = *snapshot.ActualDelivery
		} else if !snapshot.Current.Timestamp.IsZero() {
			deliveredAt = snapshot.Current.Timestamp
		}
		shipment.ActualDelivery = &deliveredAt
	}

	if err := s.orders.SaveFulfillmentTx(ctx, tx, order); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing tracking reconciliation: %w", err)
	}

	if delivered && shipment.ActualDelivery != nil {
		event := models.OrderDeliveredEvent{
			OrderID:        order.ID,
			OrderNumber:    order.OrderNumber,
			TrackingNumber: shipment.TrackingNumber,
			DeliveredAt:    *shipment.ActualDelivery,
			Timestamp:      now,
		}
		if err := s.events.Publish(ctx, order.OrderNumber, event); err != nil {
			s.log.Ctx(ctx).Warn("failed to publish order-delivered event",
				zap.String("order_number", order.OrderNumber), zap.Error(err))
		}
	}
	return order, nil
}

// RefreshAllTracking polls every in-flight shipment. Polls for
// different tracking numbers run concurrently; per-order failures are
// logged and do not stop the sweep.
func (s *fulfillmentService) RefreshAllTracking(ctx context.Context) error {
	orders, err := s.orders.ListInFlightShipments(ctx)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.trackingConcurrency)
	for _, order := range orders {
		order := order
		g.Go(func() error {
			if _, err := s.RefreshTracking(ctx, order.ID); err != nil {
				s.log.Ctx(ctx).Warn("tracking refresh failed",
					zap.String("order_number", order.OrderNumber),
					zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

// SchedulePickup books a carrier pickup for a shipped order. Requires a
// tracking number and no existing pickup confirmation.
func (s *fulfillmentService) SchedulePickup(ctx context.Context, orderID int64, window PickupWindow) (string, error) {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order.Shipment == nil || order.Shipment.TrackingNumber == "" {
		return "", ErrNoShipment
	}
	if order.Shipment.PickupConfirmation != "" {
		return "", carrier.ErrPickupAlreadyScheduled
	}

	confirmation, err := s.carrier.SchedulePickup(ctx, &carrier.PickupRequest{
		Address:      warehousePickupAddress(order),
		PickupDate:   window.Date,
		ReadyTime:    window.ReadyTime,
		CloseTime:    window.CloseTime,
		PackageCount: 1,
		TotalWeight:  order.Shipment.WeightKG,
	})
	if err != nil {
		return "", err
	}

	if err := s.savePickupConfirmation(ctx, orderID, confirmation); err != nil {
		return "", err
	}
	return confirmation, nil
}

// CancelPickup cancels a scheduled pickup and clears the confirmation,
// enabling a future re-schedule.
func (s *fulfillmentService) CancelPickup(ctx context.Context, orderID int64) error {
	order, err := s.orders.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Shipment == nil || order.Shipment.PickupConfirmation == "" {
		return carrier.ErrNoPickupScheduled
	}

	if err := s.carrier.CancelPickup(ctx, order.Shipment.PickupConfirmation); err != nil {
		return err
	}
	return s.savePickupConfirmation(ctx, orderID, "")
}

func (s *fulfillmentService) savePickupConfirmation(ctx context.Context, orderID int64, confirmation string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	order, err := s.orders.LockOrderTx(ctx, tx, orderID)
	if err != nil {
		return err
	}
	if order.Shipment == nil {
		return ErrNoShipment
	}
	order.Shipment.PickupConfirmation = confirmation
	note := "pickup scheduled, confirmation " + confirmation
	if confirmation == "" {
		note = "pickup cancelled"
	}
	order.AppendTimeline(s.now(), string(order.Status), note)

	if err := s.orders.SaveFulfillmentTx(ctx, tx, order); err != nil {
		return err
	}
	return tx.Commit()
}

// orderStatusFromShipment maps a normalized shipment status onto the
// order lifecycle.
func orderStatusFromShipment(s carrier.ShipmentStatus) models.OrderStatus {
	switch s {
	case carrier.StatusOutForDelivery:
		return models.OrderOutForDelivery
	case carrier.StatusDelivered:
		return models.OrderDelivered
	case carrier.StatusReturned:
		return models.OrderReturned
	case carrier.StatusCancelled:
		return models.OrderCancelled
	default:
		return models.OrderShipped
	}
}

// EstimateWeightKG estimates package weight from line-item format
// keywords when the operator gives none: large 10kg, medium 5kg,
// anything else 2kg, per unit, floored at 1kg total.
func EstimateWeightKG(items []models.LineItem) float64 {
	var total float64
	for _, item := range items {
		format := strings.ToLower(item.Format + " " + item.Title)
		perUnit := 2.0
		if strings.Contains(format, "large") {
			perUnit = 10.0
		} else if strings.Contains(format, "medium") {
			perUnit = 5.0
		}
		total += perUnit * float64(item.Quantity)
	}
	if total < 1.0 {
		total = 1.0
	}
	return total
}

func toCarrierAddress(addr models.Address) carrier.Address {
	return carrier.Address{
		Name:        addr.Name,
		Line1:       addr.Line1,
		Line2:       addr.Line2,
		City:        addr.City,
		StateCode:   addr.StateCode,
		PostalCode:  addr.PostalCode,
		CountryCode: addr.CountryCode,
		Phone:       addr.Phone,
		Email:       addr.Email,
	}
}

// warehousePickupAddress tells the adapter which warehouse the carrier
// collects from. Only the destination state is passed; the adapter
// routes it to a warehouse the same way it routes rating origins.
func warehousePickupAddress(order *models.Order) carrier.Address {
	return carrier.Address{StateCode: order.ShippingAddress.StateCode}
}

func centsToDollars(cents int64) float64 {
	return float64(cents) / 100.0
}
