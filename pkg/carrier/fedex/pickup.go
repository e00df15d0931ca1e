package fedex

import (
	"context"
	"net/http"

	"github.com/pagecrest/fulfillment/pkg/carrier"
	"go.uber.org/zap"
)

const (
	pickupPath       = "/pickup/v1/pickups"
	pickupCancelPath = "/pickup/v1/pickups/cancel"
)

// SchedulePickup books a pickup window and returns the confirmation
// number. The no-existing-pickup guard is the orchestrator's job.
// When the request address carries no street line, the pickup location
// is routed to the warehouse serving the given state, mirroring the
// rating origin.
func (c *Client) SchedulePickup(ctx context.Context, req *carrier.PickupRequest) (string, error) {
	if req.Address.Line1 == "" {
		req.Address = c.OriginWarehouse(req.Address.StateCode)
	}
	apiReq := &createPickupRequest{
		AssociatedAccountNumber: accountNumber{Value: c.cfg.AccountNumber},
		OriginDetail: originDetail{
			PickupLocation: apiParty{
				Contact: apiContact{
					CompanyName: req.Address.Company,
					PhoneNumber: req.Address.Phone,
				},
				Address: addressToAPI(req.Address),
			},
			ReadyDateTimestamp: req.PickupDate + "T" + req.ReadyTime + ":00",
			CustomerCloseTime:  req.CloseTime + ":00",
		},
		PackageCount: req.PackageCount,
		CarrierCode:  "FDXG",
	}
	if req.TotalWeight > 0 {
		apiReq.TotalWeight = &apiWeight{Units: "KG", Value: req.TotalWeight}
	}

	var resp createPickupResponse
	if err := c.do(ctx, http.MethodPost, pickupPath, apiReq, &resp); err != nil {
		return "", err
	}
	if resp.Output.PickupConfirmationCode == "" {
		return "", carrier.NewError(carrierName, "NO_CONFIRMATION", "carrier returned no pickup confirmation")
	}

	c.logger.Info("FedEx pickup scheduled",
		zap.String("confirmation", resp.Output.PickupConfirmationCode),
		zap.String("date", req.PickupDate),
	)
	return resp.Output.PickupConfirmationCode, nil
}

// CancelPickup cancels a scheduled pickup by confirmation number.
func (c *Client) CancelPickup(ctx context.Context, confirmationNumber string) error {
	req := &cancelPickupRequest{
		AssociatedAccountNumber: accountNumber{Value: c.cfg.AccountNumber},
		PickupConfirmationCode:  confirmationNumber,
	}
	var resp cancelPickupResponse
	return c.do(ctx, http.MethodPut, pickupCancelPath, req, &resp)
}
