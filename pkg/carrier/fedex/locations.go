package fedex

import (
	"context"
	"net/http"

	"github.com/pagecrest/fulfillment/pkg/carrier"
)

const locationsPath = "/location/v1/locations"

// FindLocations searches for FedEx drop-off locations near an address.
func (c *Client) FindLocations(ctx context.Context, addr carrier.Address, radiusKM int) ([]carrier.Location, error) {
	if radiusKM <= 0 {
		radiusKM = 20
	}

	req := &locationsRequest{}
	req.LocationsSummaryRequestControlParameters.DistanceUnits = "KM"
	req.LocationsSummaryRequestControlParameters.Radius = float64(radiusKM)
	req.Location.Address = addressToAPI(addr)

	var resp locationsResponse
	if err := c.do(ctx, http.MethodPost, locationsPath, req, &resp); err != nil {
		return nil, err
	}

	locations := make([]carrier.Location, 0, len(resp.Output.LocationDetailList))
	for _, detail := range resp.Output.LocationDetailList {
		apiAddr := detail.ContactAndAddress.Address
		loc := carrier.Location{
			ID:         detail.LocationID,
			Name:       detail.ContactAndAddress.Contact.CompanyName,
			DistanceKM: detail.Distance.Value,
			Address: carrier.Address{
				City:        apiAddr.City,
				StateCode:   apiAddr.StateOrProvinceCode,
				PostalCode:  apiAddr.PostalCode,
				CountryCode: apiAddr.CountryCode,
			},
		}
		if len(apiAddr.StreetLines) > 0 {
			loc.Address.Line1 = apiAddr.StreetLines[0]
		}
		if len(apiAddr.StreetLines) > 1 {
			loc.Address.Line2 = apiAddr.StreetLines[1]
		}
		locations = append(locations, loc)
	}
	return locations, nil
}
