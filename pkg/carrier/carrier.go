// Package carrier provides the normalized models shared between the
// fulfillment services and shipping-carrier adapters.
package carrier

import (
	"context"
	"time"
)

// Carrier defines the operations a shipping-carrier adapter must implement.
// One adapter (FedEx) is wired today; the interface keeps the services
// carrier-agnostic.
type Carrier interface {
	// Name returns the carrier identifier (e.g., "fedex").
	Name() string

	// ValidateAddress resolves and classifies a shipping address.
	// Validation is advisory: upstream failures surface as a result with
	// RequiresManualVerification set, not as an error.
	ValidateAddress(ctx context.Context, addr Address) (*ValidationResult, error)

	// GetRates returns available service rates for a shipment,
	// sorted ascending by total price.
	GetRates(ctx context.Context, req *RateRequest) ([]RateOption, error)

	// CreateShipment books a shipment and returns the tracking number,
	// label URL and total charge.
	CreateShipment(ctx context.Context, req *ShipmentRequest) (*ShipmentResult, error)

	// CancelShipment voids a previously created shipment.
	CancelShipment(ctx context.Context, trackingNumber string) error

	// Track returns the normalized tracking snapshot for a tracking number.
	Track(ctx context.Context, trackingNumber string) (*TrackSnapshot, error)

	// SchedulePickup books a pickup window and returns the confirmation number.
	SchedulePickup(ctx context.Context, req *PickupRequest) (string, error)

	// CancelPickup cancels a scheduled pickup by confirmation number.
	CancelPickup(ctx context.Context, confirmationNumber string) error

	// FindLocations searches for nearby drop-off locations.
	FindLocations(ctx context.Context, addr Address, radiusKM int) ([]Location, error)
}

// AddressClassification is the carrier's judgement of an address type.
type AddressClassification string

const (
	ClassificationResidential AddressClassification = "RESIDENTIAL"
	ClassificationBusiness    AddressClassification = "BUSINESS"
	ClassificationUnknown     AddressClassification = "UNKNOWN"
)

// Address represents a shipping address.
type Address struct {
	Name        string
	Company     string
	Line1       string
	Line2       string
	City        string
	StateCode   string // e.g., "CA", "NY"
	PostalCode  string
	CountryCode string // ISO 3166-1 alpha-2
	Phone       string
	Email       string
	Residential bool
}

// ValidationResult is the outcome of an address validation call.
type ValidationResult struct {
	Valid                      bool
	Classification             AddressClassification
	Normalized                 *Address
	Messages                   []string
	RequiresManualVerification bool
}

// Package represents a package to be rated or shipped.
// Dimensions are centimetres, weight is kilograms.
type Package struct {
	Length        float64
	Width         float64
	Height        float64
	Weight        float64
	DeclaredValue Money
}

// Money represents a monetary amount on the carrier wire.
type Money struct {
	Amount   float64
	Currency string
}

// RateRequest asks for service rates to a destination. The shipping
// origin is chosen by the adapter from its warehouse routing table.
type RateRequest struct {
	Destination Address
	Packages    []Package
	Currency    string
}

// RateOption is one service-level quote for a shipment.
type RateOption struct {
	ServiceCode       string
	ServiceName       string
	TotalPrice        Money
	TransitDays       int
	EstimatedDelivery *time.Time
	// IsEstimated is set when the carrier returned degenerate (all-zero)
	// pricing and a static estimate was substituted.
	IsEstimated bool
}

// ShipmentRequest books a shipment for a confirmed order.
type ShipmentRequest struct {
	OrderNumber  string
	Recipient    Address
	Packages     []Package
	ServiceCode  string
	InsuredValue Money
	Reference    string
}

// ShipmentResult is the outcome of a successful shipment creation.
type ShipmentResult struct {
	TrackingNumber string
	LabelURL       string
	ShipmentID     string
	ServiceCode    string
	TotalCharge    Money
}

// TrackingEvent is one normalized scan event.
type TrackingEvent struct {
	Timestamp   time.Time
	Code        string
	Description string
	Location    string
	Status      ShipmentStatus
}

// TrackSnapshot is the normalized state of a shipment as reported by
// the carrier. The durable fulfillment record must be reconstructable
// from snapshots alone.
type TrackSnapshot struct {
	TrackingNumber    string
	Current           TrackingEvent
	Events            []TrackingEvent
	EstimatedDelivery *time.Time
	ActualDelivery    *time.Time
}

// PickupRequest schedules a carrier pickup at the warehouse.
type PickupRequest struct {
	Address      Address
	PickupDate   string // YYYY-MM-DD
	ReadyTime    string // HH:MM
	CloseTime    string // HH:MM
	PackageCount int
	TotalWeight  float64
}

// Location is a nearby carrier drop-off location.
type Location struct {
	ID         string
	Name       string
	Address    Address
	DistanceKM float64
}
