package service_test

import (
	"context"
	"database/sql"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pagecrest/fulfillment/internal/domain/models"
	"github.com/pagecrest/fulfillment/internal/service"
	"github.com/pagecrest/fulfillment/pkg/carrier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// fakeCarrier implements carrier.Carrier with overridable callbacks.
type fakeCarrier struct {
	onCreateShipment func(ctx context.Context, req *carrier.ShipmentRequest) (*carrier.ShipmentResult, error)
	onTrack          func(ctx context.Context, trackingNumber string) (*carrier.TrackSnapshot, error)
	onSchedulePickup func(ctx context.Context, req *carrier.PickupRequest) (string, error)
	onCancelPickup   func(ctx context.Context, confirmation string) error

	createCalls int
	trackCalls  atomic.Int32
}

func (f *fakeCarrier) Name() string { return "fake" }

func (f *fakeCarrier) ValidateAddress(ctx context.Context, addr carrier.Address) (*carrier.ValidationResult, error) {
	return &carrier.ValidationResult{Valid: true}, nil
}

func (f *fakeCarrier) GetRates(ctx context.Context, req *carrier.RateRequest) ([]carrier.RateOption, error) {
	return nil, nil
}

func (f *fakeCarrier) CreateShipment(ctx context.Context, req *carrier.ShipmentRequest) (*carrier.ShipmentResult, error) {
	f.createCalls++
	if f.onCreateShipment != nil {
		return f.onCreateShipment(ctx, req)
	}
	return &carrier.ShipmentResult{
		TrackingNumber: "794912345678",
		LabelURL:       "https://labels.example.com/794912345678.pdf",
		ServiceCode:    "FEDEX_GROUND",
		TotalCharge:    carrier.Money{Amount: 15.45, Currency: "USD"},
	}, nil
}

func (f *fakeCarrier) CancelShipment(ctx context.Context, trackingNumber string) error { return nil }

func (f *fakeCarrier) Track(ctx context.Context, trackingNumber string) (*carrier.TrackSnapshot, error) {
	f.trackCalls.Add(1)
	if f.onTrack != nil {
		return f.onTrack(ctx, trackingNumber)
	}
	return &carrier.TrackSnapshot{TrackingNumber: trackingNumber}, nil
}

func (f *fakeCarrier) SchedulePickup(ctx context.Context, req *carrier.PickupRequest) (string, error) {
	if f.onSchedulePickup != nil {
		return f.onSchedulePickup(ctx, req)
	}
	return "PC12345", nil
}

func (f *fakeCarrier) CancelPickup(ctx context.Context, confirmation string) error {
	if f.onCancelPickup != nil {
		return f.onCancelPickup(ctx, confirmation)
	}
	return nil
}

func (f *fakeCarrier) FindLocations(ctx context.Context, addr carrier.Address, radiusKM int) ([]carrier.Location, error) {
	return nil, nil
}

type fulfillmentFixture struct {
	db      *sql.DB
	mock    sqlmock.Sqlmock
	orders  *fakeOrders
	carrier *fakeCarrier
	events  *fakeEvents
	svc     service.FulfillmentService
}

func newFulfillmentFixture(t *testing.T) *fulfillmentFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	mock.MatchExpectationsInOrder(false)

	f := &fulfillmentFixture{
		db:      db,
		mock:    mock,
		orders:  &fakeOrders{},
		carrier: &fakeCarrier{},
		events:  &fakeEvents{},
	}
	f.svc = service.NewFulfillmentService(
		otelzap.New(zap.NewNop()), db, f.orders, f.carrier, f.events)
	return f
}

// expectTx queues n begin/commit pairs; the fixture's expectations are
// unordered so concurrent transactions can interleave.
func (f *fulfillmentFixture) expectTx(n int) {
	for i := 0; i < n; i++ {
		f.mock.ExpectBegin()
		f.mock.ExpectCommit()
	}
}

func (f *fulfillmentFixture) expectAbortedTx(n int) {
	for i := 0; i < n; i++ {
		f.mock.ExpectBegin()
		f.mock.ExpectRollback()
	}
}

func (f *fulfillmentFixture) seedOrder(order *models.Order) *models.Order {
	f.orders.nextID++
	order.ID = f.orders.nextID
	f.orders.created = append(f.orders.created, order)
	return order
}

func confirmedOrder() *models.Order {
	return &models.Order{
		OrderNumber:   "PC-20260830-AB12CD34",
		UserID:        42,
		PaymentStatus: models.PaymentPaid,
		Status:        models.OrderConfirmed,
		Items: []models.LineItem{
			{ProductID: 1, Title: "The Go Programming Language", Format: "hardcover", Quantity: 1, PriceAtOrder: 4500},
		},
		Subtotal: 4500, ShippingCost: 1500, Total: 6000,
		ShippingAddress: models.Address{
			Name: "Jordan Reyes", Line1: "456 Oak Ave", City: "Austin",
			StateCode: "TX", PostalCode: "78701", CountryCode: "US",
		},
	}
}

func TestConfirmPayment(t *testing.T) {
	f := newFulfillmentFixture(t)
	order := f.seedOrder(&models.Order{
		OrderNumber:   "PC-20260830-AB12CD34",
		PaymentStatus: models.PaymentPending,
		Status:        models.OrderPending,
	})
	f.expectTx(1)

	updated, err := f.svc.ConfirmPayment(context.Background(), order.ID)

	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, updated.PaymentStatus)
	assert.Equal(t, models.OrderConfirmed, updated.Status)
	require.Len(t, f.events.published, 1)
	assert.IsType(t, models.OrderConfirmedEvent{}, f.events.published[0])
}

func TestConfirmPayment_IdempotentOnDuplicateSignal(t *testing.T) {
	f := newFulfillmentFixture(t)
	order := f.seedOrder(&models.Order{
		OrderNumber:   "PC-20260830-AB12CD34",
		PaymentStatus: models.PaymentPaid,
		Status:        models.OrderConfirmed,
	})
	f.expectAbortedTx(1)

	updated, err := f.svc.ConfirmPayment(context.Background(), order.ID)

	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, updated.PaymentStatus)
	// No event for a duplicate gateway signal.
	assert.Empty(t, f.events.published)
}

func TestCreateShipment(t *testing.T) {
	f := newFulfillmentFixture(t)
	order := f.seedOrder(confirmedOrder())
	f.expectTx(1)

	var gotWeight float64
	f.carrier.onCreateShipment = func(ctx context.Context, req *carrier.ShipmentRequest) (*carrier.ShipmentResult, error) {
		require.Len(t, req.Packages, 1)
		gotWeight = req.Packages[0].Weight
		assert.Equal(t, order.OrderNumber, req.OrderNumber)
		assert.Equal(t, 60.0, req.InsuredValue.Amount) // $60.00 order total
		return &carrier.ShipmentResult{TrackingNumber: "794912345678", ServiceCode: "FEDEX_GROUND"}, nil
	}

	updated, err := f.svc.CreateShipment(context.Background(), order.ID, service.ShipmentOptions{})

	require.NoError(t, err)
	assert.Equal(t, 2.0, gotWeight) // one hardcover, heuristic default
	require.NotNil(t, updated.Shipment)
	assert.Equal(t, "794912345678", updated.Shipment.TrackingNumber)
	assert.Equal(t, models.OrderProcessing, updated.Status)
	require.Len(t, f.events.published, 1)
	assert.IsType(t, models.ShipmentCreatedEvent{}, f.events.published[0])
}

func TestCreateShipment_OperatorWeightOverride(t *testing.T) {
	f := newFulfillmentFixture(t)
	order := f.seedOrder(confirmedOrder())
	f.expectTx(1)

	var gotWeight float64
	f.carrier.onCreateShipment = func(ctx context.Context, req *carrier.ShipmentRequest) (*carrier.ShipmentResult, error) {
		gotWeight = req.Packages[0].Weight
		return &carrier.ShipmentResult{TrackingNumber: "794912345678"}, nil
	}

	_, err := f.svc.CreateShipment(context.Background(), order.ID, service.ShipmentOptions{WeightKG: 7.5})

	require.NoError(t, err)
	assert.Equal(t, 7.5, gotWeight)
}

func TestCreateShipment_DuplicateIsRejectedBeforeCarrierCall(t *testing.T) {
	f := newFulfillmentFixture(t)
	order := confirmedOrder()
	order.Shipment = &models.CarrierShipment{TrackingNumber: "794900000001"}
	f.seedOrder(order)

	_, err := f.svc.CreateShipment(context.Background(), order.ID, service.ShipmentOptions{})

	assert.ErrorIs(t, err, carrier.ErrDuplicateShipment)
	assert.Equal(t, 0, f.carrier.createCalls)
}

func TestCreateShipment_RequiresPaidOrder(t *testing.T) {
	f := newFulfillmentFixture(t)
	order := confirmedOrder()
	order.PaymentStatus = models.PaymentPending
	f.seedOrder(order)

	_, err := f.svc.CreateShipment(context.Background(), order.ID, service.ShipmentOptions{})

	assert.ErrorIs(t, err, service.ErrNotPaid)
	assert.Equal(t, 0, f.carrier.createCalls)
}

func TestCreateShipment_RequiresShippableStatus(t *testing.T) {
	f := newFulfillmentFixture(t)
	order := confirmedOrder()
	order.Status = models.OrderPending
	f.seedOrder(order)

	_, err := f.svc.CreateShipment(context.Background(), order.ID, service.ShipmentOptions{})

	assert.ErrorIs(t, err, carrier.ErrShipmentNotReady)
	assert.Equal(t, 0, f.carrier.createCalls)
}

func TestCreateShipment_CarrierFailureLeavesOrderUntouched(t *testing.T) {
	f := newFulfillmentFixture(t)
	order := f.seedOrder(confirmedOrder())
	f.carrier.onCreateShipment = func(ctx context.Context, req *carrier.ShipmentRequest) (*carrier.ShipmentResult, error) {
		return nil, carrier.NewError("fake", "RATE_LIMITED", "throttled").WithCause(carrier.ErrRateLimited)
	}

	_, err := f.svc.CreateShipment(context.Background(), order.ID, service.ShipmentOptions{})

	assert.ErrorIs(t, err, carrier.ErrRateLimited)
	stored, _ := f.orders.GetOrderByID(context.Background(), order.ID)
	assert.Nil(t, stored.Shipment)
	assert.Equal(t, models.OrderConfirmed, stored.Status)
}

func TestEstimateWeightKG(t *testing.T) {
	tests := []struct {
		name  string
		items []models.LineItem
		want  float64
	}{
		{
			"default format",
			[]models.LineItem{{Title: "Novel", Format: "paperback", Quantity: 1}},
			2.0,
		},
		{
			"large format",
			[]models.LineItem{{Title: "World Atlas", Format: "large print", Quantity: 1}},
			10.0,
		},
		{
			"large keyword in title",
			[]models.LineItem{{Title: "Large Format Photography", Format: "", Quantity: 1}},
			10.0,
		},
		{
			"medium format",
			[]models.LineItem{{Title: "Cookbook", Format: "medium hardcover", Quantity: 2}},
			10.0,
		},
		{
			"mixed quantities",
			[]models.LineItem{
				{Title: "Novel", Format: "paperback", Quantity: 2},
				{Title: "Atlas", Format: "large print", Quantity: 1},
			},
			14.0,
		},
		{
			"floor at one kilogram",
			nil,
			1.0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, service.EstimateWeightKG(tt.items))
		})
	}
}

func shippedOrder() *models.Order {
	order := confirmedOrder()
	order.Status = models.OrderProcessing
	order.Shipment = &models.CarrierShipment{
		TrackingNumber: "794912345678",
		CurrentStatus:  string(carrier.StatusShipped),
		WeightKG:       2,
	}
	return order
}

func scanAt(ts time.Time, code string, status carrier.ShipmentStatus) carrier.TrackingEvent {
	return carrier.TrackingEvent{Timestamp: ts, Code: code, Status: status}
}

func TestRefreshTracking_MergesAndAdvances(t *testing.T) {
	f := newFulfillmentFixture(t)
	order := f.seedOrder(shippedOrder())
	f.expectTx(1)

	t1 := time.Date(2026, 8, 27, 8, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 8, 28, 12, 30, 0, 0, time.UTC)
	f.carrier.onTrack = func(ctx context.Context, tn string) (*carrier.TrackSnapshot, error) {
		return &carrier.TrackSnapshot{
			TrackingNumber: tn,
			Current: carrier.TrackingEvent{
				Timestamp: t2, Code: "OD", Status: carrier.StatusOutForDelivery,
				Description: "On FedEx vehicle for delivery",
			},
			Events: []carrier.TrackingEvent{
				scanAt(t1, "PU", carrier.StatusShipped),
				scanAt(t2, "OD", carrier.StatusOutForDelivery),
			},
		}, nil
	}

	updated, err := f.svc.RefreshTracking(context.Background(), order.ID)

	require.NoError(t, err)
	assert.Len(t, updated.Shipment.TrackingHistory, 2)
	assert.Equal(t, string(carrier.StatusOutForDelivery), updated.Shipment.CurrentStatus)
	assert.Equal(t, models.OrderOutForDelivery, updated.Status)
}

func TestRefreshTracking_RepolledEventsAreNotDuplicated(t *testing.T) {
	f := newFulfillmentFixture(t)
	order := f.seedOrder(shippedOrder())
	f.expectTx(2)

	t1 := time.Date(2026, 8, 27, 8, 0, 0, 0, time.UTC)
	snapshot := &carrier.TrackSnapshot{
		Current: carrier.TrackingEvent{Timestamp: t1, Code: "PU", Status: carrier.StatusShipped},
		Events:  []carrier.TrackingEvent{scanAt(t1, "PU", carrier.StatusShipped)},
	}
	f.carrier.onTrack = func(ctx context.Context, tn string) (*carrier.TrackSnapshot, error) {
		return snapshot, nil
	}

	_, err := f.svc.RefreshTracking(context.Background(), order.ID)
	require.NoError(t, err)
	updated, err := f.svc.RefreshTracking(context.Background(), order.ID)
	require.NoError(t, err)

	// Same snapshot twice: history still holds one event.
	assert.Len(t, updated.Shipment.TrackingHistory, 1)
}

func TestRefreshTracking_NeverDowngradesStatus(t *testing.T) {
	f := newFulfillmentFixture(t)
	order := shippedOrder()
	order.Status = models.OrderDelivered
	order.Shipment.CurrentStatus = string(carrier.StatusDelivered)
	deliveredAt := time.Date(2026, 8, 28, 14, 0, 0, 0, time.UTC)
	order.Shipment.ActualDelivery = &deliveredAt
	f.seedOrder(order)
	f.expectTx(1)

	stale := time.Date(2026, 8, 27, 8, 0, 0, 0, time.UTC)
	f.carrier.onTrack = func(ctx context.Context, tn string) (*carrier.TrackSnapshot, error) {
		return &carrier.TrackSnapshot{
			Current: carrier.TrackingEvent{Timestamp: stale, Code: "IT", Status: carrier.StatusShipped},
			Events:  []carrier.TrackingEvent{scanAt(stale, "IT", carrier.StatusShipped)},
		}, nil
	}

	updated, err := f.svc.RefreshTracking(context.Background(), order.ID)

	require.NoError(t, err)
	assert.Equal(t, string(carrier.StatusDelivered), updated.Shipment.CurrentStatus)
	assert.Equal(t, models.OrderDelivered, updated.Status)
	assert.Equal(t, deliveredAt, *updated.Shipment.ActualDelivery)
}

func TestRefreshTracking_RecordsActualDeliveryExactlyOnce(t *testing.T) {
	f := newFulfillmentFixture(t)
	order := f.seedOrder(shippedOrder())
	f.expectTx(2)

	deliveredAt := time.Date(2026, 8, 29, 14, 22, 0, 0, time.UTC)
	f.carrier.onTrack = func(ctx context.Context, tn string) (*carrier.TrackSnapshot, error) {
		return &carrier.TrackSnapshot{
			Current: carrier.TrackingEvent{
				Timestamp: deliveredAt, Code: "DL", Status: carrier.StatusDelivered,
				Description: "Delivered",
			},
			Events:         []carrier.TrackingEvent{scanAt(deliveredAt, "DL", carrier.StatusDelivered)},
			ActualDelivery: &deliveredAt,
		}, nil
	}

	first, err := f.svc.RefreshTracking(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, first.Shipment.ActualDelivery)
	assert.Equal(t, deliveredAt, *first.Shipment.ActualDelivery)
	assert.Equal(t, models.OrderDelivered, first.Status)
	require.Len(t, f.events.published, 1)
	assert.IsType(t, models.OrderDeliveredEvent{}, f.events.published[0])

	// Re-polling a delivered shipment changes nothing and emits nothing.
	second, err := f.svc.RefreshTracking(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, deliveredAt, *second.Shipment.ActualDelivery)
	assert.Len(t, f.events.published, 1)
}

func TestRefreshTracking_NoShipment(t *testing.T) {
	f := newFulfillmentFixture(t)
	order := f.seedOrder(confirmedOrder())

	_, err := f.svc.RefreshTracking(context.Background(), order.ID)
	assert.ErrorIs(t, err, service.ErrNoShipment)
	assert.Equal(t, int32(0), f.carrier.trackCalls.Load())
}

func TestRefreshAllTracking_SurvivesPerOrderFailures(t *testing.T) {
	f := newFulfillmentFixture(t)
	a := f.seedOrder(shippedOrder())
	broken := shippedOrder()
	broken.OrderNumber = "PC-20260830-FF00FF00"
	broken.Shipment.TrackingNumber = "794900000666"
	b := f.seedOrder(broken)
	f.expectTx(1)

	f.carrier.onTrack = func(ctx context.Context, tn string) (*carrier.TrackSnapshot, error) {
		if tn == "794900000666" {
			return nil, carrier.NewError("fake", "TIMEOUT", "timed out").WithCause(carrier.ErrTimeout)
		}
		ts := time.Date(2026, 8, 28, 12, 30, 0, 0, time.UTC)
		return &carrier.TrackSnapshot{
			Current: carrier.TrackingEvent{Timestamp: ts, Code: "OD", Status: carrier.StatusOutForDelivery},
			Events:  []carrier.TrackingEvent{scanAt(ts, "OD", carrier.StatusOutForDelivery)},
		}, nil
	}

	err := f.svc.RefreshAllTracking(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int32(2), f.carrier.trackCalls.Load())
	refreshed, _ := f.orders.GetOrderByID(context.Background(), a.ID)
	assert.Equal(t, models.OrderOutForDelivery, refreshed.Status)
	untouched, _ := f.orders.GetOrderByID(context.Background(), b.ID)
	assert.Equal(t, models.OrderProcessing, untouched.Status)
}

func TestSchedulePickup(t *testing.T) {
	f := newFulfillmentFixture(t)
	order := f.seedOrder(shippedOrder())
	f.expectTx(1)

	var gotState string
	f.carrier.onSchedulePickup = func(ctx context.Context, req *carrier.PickupRequest) (string, error) {
		gotState = req.Address.StateCode
		assert.Equal(t, "2026-09-01", req.PickupDate)
		assert.Equal(t, 2.0, req.TotalWeight)
		return "PC12345", nil
	}

	confirmation, err := f.svc.SchedulePickup(context.Background(), order.ID, service.PickupWindow{
		Date: "2026-09-01", ReadyTime: "09:00", CloseTime: "17:00",
	})

	require.NoError(t, err)
	assert.Equal(t, "PC12345", confirmation)
	assert.Equal(t, "TX", gotState)
	stored, _ := f.orders.GetOrderByID(context.Background(), order.ID)
	assert.Equal(t, "PC12345", stored.Shipment.PickupConfirmation)
}

func TestSchedulePickup_RequiresShipment(t *testing.T) {
	f := newFulfillmentFixture(t)
	order := f.seedOrder(confirmedOrder())

	_, err := f.svc.SchedulePickup(context.Background(), order.ID, service.PickupWindow{
		Date: "2026-09-01", ReadyTime: "09:00", CloseTime: "17:00",
	})
	assert.ErrorIs(t, err, service.ErrNoShipment)
}

func TestSchedulePickup_RejectsSecondPickup(t *testing.T) {
	f := newFulfillmentFixture(t)
	order := shippedOrder()
	order.Shipment.PickupConfirmation = "PC12345"
	f.seedOrder(order)

	_, err := f.svc.SchedulePickup(context.Background(), order.ID, service.PickupWindow{
		Date: "2026-09-01", ReadyTime: "09:00", CloseTime: "17:00",
	})
	assert.ErrorIs(t, err, carrier.ErrPickupAlreadyScheduled)
}

func TestCancelPickup(t *testing.T) {
	f := newFulfillmentFixture(t)
	order := shippedOrder()
	order.Shipment.PickupConfirmation = "PC12345"
	f.seedOrder(order)
	f.expectTx(1)

	err := f.svc.CancelPickup(context.Background(), order.ID)

	require.NoError(t, err)
	stored, _ := f.orders.GetOrderByID(context.Background(), order.ID)
	assert.Empty(t, stored.Shipment.PickupConfirmation)
}

func TestCancelPickup_NothingScheduled(t *testing.T) {
	f := newFulfillmentFixture(t)
	order := f.seedOrder(shippedOrder())

	err := f.svc.CancelPickup(context.Background(), order.ID)
	assert.ErrorIs(t, err, carrier.ErrNoPickupScheduled)
}
