package fedex

import (
	"context"
	"math"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/pagecrest/fulfillment/pkg/carrier"
	"go.uber.org/zap"
)

const rateQuotesPath = "/rate/v1/rates/quotes"

// westCoastStates routes to the secondary warehouse; everything else
// ships from the primary one.
var westCoastStates = map[string]bool{
	"CA": true,
	"OR": true,
	"WA": true,
	"NV": true,
	"AZ": true,
	"ID": true,
	"UT": true,
}

// estimatedPrices is the fallback per-service price table used when the
// carrier returns zero for every service, a known sandbox degeneracy.
var estimatedPrices = map[string]float64{
	"FEDEX_GROUND":         12.99,
	"GROUND_HOME_DELIVERY": 14.99,
	"FEDEX_EXPRESS_SAVER":  24.99,
	"FEDEX_2_DAY":          29.99,
	"STANDARD_OVERNIGHT":   44.99,
	"PRIORITY_OVERNIGHT":   54.99,
}

const defaultEstimatedPrice = 19.99

// priceExtractors are tried in priority order against one rated
// shipment detail; the first non-zero amount wins. New response
// variants slot in here without touching call sites.
var priceExtractors = []func(d ratedShipmentDetail) float64{
	func(d ratedShipmentDetail) float64 { return d.TotalNetCharge },
	func(d ratedShipmentDetail) float64 { return d.TotalNetFedExCharge },
	func(d ratedShipmentDetail) float64 {
		if d.ShipmentRateDetail != nil {
			return d.ShipmentRateDetail.TotalNetCharge
		}
		return 0
	},
	func(d ratedShipmentDetail) float64 {
		var sum float64
		for _, p := range d.RatedPackages {
			if p.PackageRateDetail != nil {
				sum += p.PackageRateDetail.NetCharge
			}
		}
		return sum
	},
}

// extractPrice picks the total for a service reply. ACCOUNT-tier
// figures are preferred over LIST when both are present.
func extractPrice(details []ratedShipmentDetail) float64 {
	byTier := make([]ratedShipmentDetail, 0, len(details))
	for _, d := range details {
		if d.RateType == "ACCOUNT" {
			byTier = append(byTier, d)
		}
	}
	for _, d := range details {
		if d.RateType != "ACCOUNT" {
			byTier = append(byTier, d)
		}
	}
	for _, d := range byTier {
		for _, extract := range priceExtractors {
			if amount := extract(d); amount > 0 {
				return amount
			}
		}
	}
	return 0
}

// OriginWarehouse returns the warehouse address that ships to the given
// destination state.
func (c *Client) OriginWarehouse(destinationState string) carrier.Address {
	if westCoastStates[destinationState] {
		return c.cfg.SecondaryWarehouse
	}
	return c.cfg.PrimaryWarehouse
}

// GetRates shops FedEx service rates for a shipment. The origin is
// derived from the destination state, package dimensions are rounded up
// to whole units, and results come back sorted ascending by price.
func (c *Client) GetRates(ctx context.Context, req *carrier.RateRequest) ([]carrier.RateOption, error) {
	origin := c.OriginWarehouse(req.Destination.StateCode)
	currency := req.Currency
	if currency == "" {
		currency = "USD"
	}

	apiReq := &rateRequest{
		AccountNumber: accountNumber{Value: c.cfg.AccountNumber},
		RequestedShipment: rateRequestedShipment{
			Shipper:                   apiParty{Address: addressToAPI(origin)},
			Recipient:                 apiParty{Address: addressToAPI(req.Destination)},
			PickupType:                "DROPOFF_AT_FEDEX_LOCATION",
			PreferredCurrency:         currency,
			RateRequestType:           []string{"ACCOUNT", "LIST"},
			RequestedPackageLineItems: packagesToLineItems(req.Packages, currency),
		},
	}

	var resp rateResponse
	if err := c.do(ctx, http.MethodPost, rateQuotesPath, apiReq, &resp); err != nil {
		return nil, err
	}

	rates := make([]carrier.RateOption, 0, len(resp.Output.RateReplyDetails))
	allZero := true
	for _, detail := range resp.Output.RateReplyDetails {
		price := extractPrice(detail.RatedShipmentDetails)
		if price > 0 {
			allZero = false
		}
		rates = append(rates, carrier.RateOption{
			ServiceCode:       detail.ServiceType,
			ServiceName:       detail.ServiceName,
			TotalPrice:        carrier.Money{Amount: price, Currency: currency},
			TransitDays:       parseTransitDays(detail.OperationalDetail.TransitTime),
			EstimatedDelivery: parseDeliveryDate(detail.OperationalDetail.DeliveryDate),
		})
	}

	if len(rates) > 0 && allZero {
		c.logger.Warn("carrier returned zero for every service, substituting estimates",
			zap.Int("services", len(rates)),
		)
		for i := range rates {
			price, ok := estimatedPrices[rates[i].ServiceCode]
			if !ok {
				price = defaultEstimatedPrice
			}
			rates[i].TotalPrice.Amount = price
			rates[i].IsEstimated = true
		}
	}

	sort.Slice(rates, func(i, j int) bool {
		return rates[i].TotalPrice.Amount < rates[j].TotalPrice.Amount
	})
	return rates, nil
}

func addressToAPI(addr carrier.Address) apiAddress {
	streetLines := []string{addr.Line1}
	if addr.Line2 != "" {
		streetLines = append(streetLines, addr.Line2)
	}
	return apiAddress{
		StreetLines:         streetLines,
		City:                addr.City,
		StateOrProvinceCode: addr.StateCode,
		PostalCode:          addr.PostalCode,
		CountryCode:         addr.CountryCode,
		Residential:         addr.Residential,
	}
}

func packagesToLineItems(pkgs []carrier.Package, currency string) []packageLineItem {
	items := make([]packageLineItem, len(pkgs))
	for i, p := range pkgs {
		item := packageLineItem{
			Weight: apiWeight{Units: "KG", Value: p.Weight},
		}
		if p.Length > 0 && p.Width > 0 && p.Height > 0 {
			item.Dimensions = &apiDimensions{
				Length: int(math.Ceil(p.Length)),
				Width:  int(math.Ceil(p.Width)),
				Height: int(math.Ceil(p.Height)),
				Units:  "CM",
			}
		}
		if p.DeclaredValue.Amount > 0 {
			item.InsuredValue = &apiMoney{
				Currency: currency,
				Amount:   p.DeclaredValue.Amount,
			}
		}
		items[i] = item
	}
	return items
}

// parseTransitDays maps FedEx transit-time tokens to day counts.
func parseTransitDays(transit string) int {
	switch transit {
	case "ONE_DAY":
		return 1
	case "TWO_DAYS":
		return 2
	case "THREE_DAYS":
		return 3
	case "FOUR_DAYS":
		return 4
	case "FIVE_DAYS":
		return 5
	}
	if n, err := strconv.Atoi(transit); err == nil {
		return n
	}
	return 0
}

func parseDeliveryDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
