package models

import (
	"time"
)

// PaymentStatus is the payment lifecycle of an order.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// OrderStatus is the fulfillment lifecycle of an order.
type OrderStatus string

const (
	OrderPending        OrderStatus = "pending"
	OrderConfirmed      OrderStatus = "confirmed"
	OrderProcessing     OrderStatus = "processing"
	OrderShipped        OrderStatus = "shipped"
	OrderOutForDelivery OrderStatus = "out_for_delivery"
	OrderDelivered      OrderStatus = "delivered"
	OrderReturned       OrderStatus = "returned"
	OrderCancelled      OrderStatus = "cancelled"
)

// orderStatusRank defines the total order used for forward-only
// transitions. Stale carrier scans mapping to a lower rank never
// downgrade an order.
var orderStatusRank = map[OrderStatus]int{
	OrderPending:        1,
	OrderConfirmed:      2,
	OrderProcessing:     3,
	OrderShipped:        4,
	OrderOutForDelivery: 5,
	OrderDelivered:      6,
	OrderReturned:       7,
	OrderCancelled:      8,
}

// Rank returns the position of the status in the lifecycle order.
func (s OrderStatus) Rank() int {
	return orderStatusRank[s]
}

// CanAdvanceTo reports whether moving to next is a forward transition.
// Administrative overrides bypass this check explicitly; nothing else
// may rank-decrease an order.
func (s OrderStatus) CanAdvanceTo(next OrderStatus) bool {
	return next.Rank() > s.Rank()
}

// Address is the shipping-address snapshot stored with an order.
type Address struct {
	Name        string `json:"name"`
	Line1       string `json:"line1"`
	Line2       string `json:"line2,omitempty"`
	City        string `json:"city"`
	StateCode   string `json:"state_code"`
	PostalCode  string `json:"postal_code"`
	CountryCode string `json:"country_code"`
	Phone       string `json:"phone,omitempty"`
	Email       string `json:"email,omitempty"`
}

// LineItem is one product+quantity entry within an order. PriceAtOrder
// is the unit price in cents frozen at transaction time; it is never
// re-read from the live product.
type LineItem struct {
	ProductID    int64  `json:"product_id"`
	Title        string `json:"title"`
	Format       string `json:"format,omitempty"`
	Quantity     int    `json:"quantity"`
	PriceAtOrder int64  `json:"price_at_order"`
}

// TimelineEntry is one append-only fulfillment event on an order.
type TimelineEntry struct {
	At     time.Time `json:"at"`
	Status string    `json:"status"`
	Note   string    `json:"note,omitempty"`
}

// TrackingRecord is one deduplicated scan event in the shipment's
// tracking history.
type TrackingRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	Code        string    `json:"code"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	Status      string    `json:"status"`
}

// CarrierShipment is the embedded carrier sub-structure of an order.
// TrackingNumber is assigned once and never reassigned.
type CarrierShipment struct {
	TrackingNumber     string           `json:"tracking_number"`
	LabelURL           string           `json:"label_url,omitempty"`
	ServiceType        string           `json:"service_type,omitempty"`
	WeightKG           float64          `json:"weight_kg,omitempty"`
	InsuredValue       int64            `json:"insured_value,omitempty"`
	PickupConfirmation string           `json:"pickup_confirmation,omitempty"`
	TrackingHistory    []TrackingRecord `json:"tracking_history,omitempty"`
	CurrentStatus      string           `json:"current_status,omitempty"`
	EstimatedDelivery  *time.Time       `json:"estimated_delivery,omitempty"`
	ActualDelivery     *time.Time       `json:"actual_delivery,omitempty"`
}

// HasEvent reports whether the history already holds a scan with this
// timestamp. Merges are keyed by timestamp so re-polled events are not
// re-appended.
func (s *CarrierShipment) HasEvent(ts time.Time) bool {
	for _, rec := range s.TrackingHistory {
		if rec.Timestamp.Equal(ts) {
			return true
		}
	}
	return false
}

// Order is the durable record of a checkout. All amounts are cents.
// Once PaymentStatus is paid the pricing fields are immutable.
type Order struct {
	ID              int64
	OrderNumber     string
	UserID          int64
	Items           []LineItem
	Subtotal        int64
	ShippingCost    int64
	DiscountAmount  int64
	TaxAmount       int64
	Total           int64
	PaymentStatus   PaymentStatus
	Status          OrderStatus
	ShippingAddress Address
	Shipment        *CarrierShipment
	Timeline        []TimelineEntry
	CouponCode      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PricingConsistent verifies total = subtotal + shipping + tax - discount.
func (o *Order) PricingConsistent() bool {
	return o.Total == o.Subtotal+o.ShippingCost+o.TaxAmount-o.DiscountAmount
}

// AppendTimeline adds a fulfillment event to the order's timeline.
func (o *Order) AppendTimeline(at time.Time, status, note string) {
	o.Timeline = append(o.Timeline, TimelineEntry{At: at, Status: status, Note: note})
}
