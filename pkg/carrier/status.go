package carrier

// ShipmentStatus represents the normalized lifecycle state of a shipment.
type ShipmentStatus string

const (
	StatusShipped        ShipmentStatus = "shipped"
	StatusOutForDelivery ShipmentStatus = "out_for_delivery"
	StatusDelivered      ShipmentStatus = "delivered"
	StatusReturned       ShipmentStatus = "returned"
	StatusCancelled      ShipmentStatus = "cancelled"
)

// statusCodes maps carrier scan codes to normalized statuses.
// Codes not present map to StatusShipped.
var statusCodes = map[string]ShipmentStatus{
	"OC": StatusShipped, // order created
	"PU": StatusShipped, // picked up
	"IT": StatusShipped, // in transit
	"DP": StatusShipped, // departed facility
	"AR": StatusShipped, // arrived at facility
	"AF": StatusShipped, // at local facility
	"DE": StatusShipped, // delivery exception, still in network
	"SF": StatusShipped, // at sort facility
	"OD": StatusOutForDelivery,
	"DL": StatusDelivered,
	"CA": StatusCancelled,
	"RS": StatusReturned, // return to shipper
	"RT": StatusReturned,
}

// MapStatusCode maps a raw carrier scan code to a normalized status.
// The mapping is total: unrecognized codes fall back to StatusShipped
// rather than failing, so new carrier codes never break tracking.
func MapStatusCode(code string) ShipmentStatus {
	if s, ok := statusCodes[code]; ok {
		return s
	}
	return StatusShipped
}

// statusRank defines a total order over shipment statuses. Reconciliation
// only ever advances a shipment to a higher rank, so a stale scan can
// never downgrade an already-delivered shipment.
var statusRank = map[ShipmentStatus]int{
	StatusShipped:        1,
	StatusOutForDelivery: 2,
	StatusDelivered:      3,
	StatusReturned:       4,
	StatusCancelled:      5,
}

// Rank returns the position of a status in the lifecycle order.
// Unknown statuses rank below every defined one.
func Rank(s ShipmentStatus) int {
	return statusRank[s]
}

// Advances reports whether moving from current to next is a forward
// transition under the lifecycle order.
func Advances(current, next ShipmentStatus) bool {
	return Rank(next) > Rank(current)
}
