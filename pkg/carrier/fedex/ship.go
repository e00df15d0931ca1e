package fedex

import (
	"context"
	"net/http"

	"github.com/pagecrest/fulfillment/pkg/carrier"
	"go.uber.org/zap"
)

const (
	shipPath       = "/ship/v1/shipments"
	shipCancelPath = "/ship/v1/shipments/cancel"
)

// CreateShipment books a shipment with FedEx and returns the tracking
// number, label URL and total charge. Duplicate-shipment protection is
// the orchestrator's job; this call always goes to the wire.
func (c *Client) CreateShipment(ctx context.Context, req *carrier.ShipmentRequest) (*carrier.ShipmentResult, error) {
	c.logger.Info("creating FedEx shipment",
		zap.String("order", req.OrderNumber),
		zap.String("service", req.ServiceCode),
		zap.Int("packages", len(req.Packages)),
	)

	origin := c.OriginWarehouse(req.Recipient.StateCode)
	currency := req.InsuredValue.Currency
	if currency == "" {
		currency = "USD"
	}

	serviceCode := req.ServiceCode
	if serviceCode == "" {
		serviceCode = "FEDEX_GROUND"
	}

	apiReq := &shipRequest{
		LabelResponseOptions: "URL_ONLY",
		AccountNumber:        accountNumber{Value: c.cfg.AccountNumber},
		RequestedShipment: shipRequestedShipment{
			Shipper: apiParty{
				Contact: apiContact{CompanyName: origin.Company, PhoneNumber: origin.Phone},
				Address: addressToAPI(origin),
			},
			Recipients: []apiParty{{
				Contact: apiContact{
					PersonName:   req.Recipient.Name,
					PhoneNumber:  req.Recipient.Phone,
					EmailAddress: req.Recipient.Email,
				},
				Address: addressToAPI(req.Recipient),
			}},
			ServiceType:            serviceCode,
			PackagingType:          "YOUR_PACKAGING",
			PickupType:             "USE_SCHEDULED_PICKUP",
			ShippingChargesPayment: chargesPayment{PaymentType: "SENDER"},
			LabelSpecification: labelSpecification{
				ImageType:      "PDF",
				LabelStockType: "PAPER_85X11_TOP_HALF_LABEL",
			},
			TotalDeclaredValue: &apiMoney{
				Currency: currency,
				Amount:   req.InsuredValue.Amount,
			},
			CustomerReferences: []customerReference{{
				CustomerReferenceType: "CUSTOMER_REFERENCE",
				Value:                 req.OrderNumber,
			}},
			RequestedPackageLineItems: packagesToLineItems(req.Packages, currency),
		},
	}

	var resp shipResponse
	if err := c.do(ctx, http.MethodPost, shipPath, apiReq, &resp); err != nil {
		return nil, err
	}

	if len(resp.Output.TransactionShipments) == 0 {
		return nil, carrier.NewError(carrierName, "EMPTY_SHIPMENT", "carrier returned no shipment")
	}
	shipment := resp.Output.TransactionShipments[0]

	result := &carrier.ShipmentResult{
		TrackingNumber: shipment.MasterTrackingNumber,
		ShipmentID:     shipment.MasterTrackingNumber,
		ServiceCode:    shipment.ServiceType,
		TotalCharge: carrier.Money{
			Amount:   extractPrice(shipment.CompletedShipmentDetail.ShipmentRating.ShipmentRateDetails),
			Currency: currency,
		},
	}

	for _, piece := range shipment.PieceResponses {
		if result.TrackingNumber == "" {
			result.TrackingNumber = piece.TrackingNumber
		}
		if result.TotalCharge.Amount == 0 && piece.NetChargeAmount > 0 {
			result.TotalCharge.Amount = piece.NetChargeAmount
		}
		for _, doc := range piece.PackageDocuments {
			if doc.URL != "" {
				result.LabelURL = doc.URL
				break
			}
		}
		if result.LabelURL != "" {
			break
		}
	}

	if result.TrackingNumber == "" {
		return nil, carrier.NewError(carrierName, "NO_TRACKING_NUMBER", "carrier returned no tracking number")
	}

	c.logger.Info("FedEx shipment created",
		zap.String("order", req.OrderNumber),
		zap.String("tracking_number", result.TrackingNumber),
	)
	return result, nil
}

// CancelShipment voids a shipment by tracking number.
func (c *Client) CancelShipment(ctx context.Context, trackingNumber string) error {
	req := &cancelShipmentRequest{
		AccountNumber:  accountNumber{Value: c.cfg.AccountNumber},
		TrackingNumber: trackingNumber,
	}
	var resp cancelShipmentResponse
	if err := c.do(ctx, http.MethodPut, shipCancelPath, req, &resp); err != nil {
		return err
	}
	if !resp.Output.CancelledShipment {
		return carrier.NewError(carrierName, "CANCEL_REJECTED", "carrier declined to cancel shipment")
	}
	return nil
}
