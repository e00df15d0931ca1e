package models

import "time"

// Post-commit events published to the order-events topic for the
// invoice and email collaborators. Delivery is best-effort and never
// affects the committed order.

type OrderPlacedEvent struct {
	OrderID     int64      `json:"order_id"`
	OrderNumber string     `json:"order_number"`
	UserID      int64      `json:"user_id"`
	Items       []LineItem `json:"items"`
	Total       int64      `json:"total"`
	Timestamp   time.Time  `json:"timestamp"`
}

type OrderConfirmedEvent struct {
	OrderID     int64     `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Timestamp   time.Time `json:"timestamp"`
}

type ShipmentCreatedEvent struct {
	OrderID        int64     `json:"order_id"`
	OrderNumber    string    `json:"order_number"`
	TrackingNumber string    `json:"tracking_number"`
	ServiceType    string    `json:"service_type"`
	Timestamp      time.Time `json:"timestamp"`
}

type OrderDeliveredEvent struct {
	OrderID        int64     `json:"order_id"`
	OrderNumber    string    `json:"order_number"`
	TrackingNumber string    `json:"tracking_number"`
	DeliveredAt    time.Time `json:"delivered_at"`
	Timestamp      time.Time `json:"timestamp"`
}
