package fedex

import (
	"context"
	"net/http"

	"github.com/pagecrest/fulfillment/pkg/carrier"
	"go.uber.org/zap"
)

const addressResolvePath = "/address/v1/addresses/resolve"

// Message codes that make an address unusable regardless of the
// carrier's own resolved flag.
var blockingMessageCodes = map[string]bool{
	"UNABLE.TO.MATCH":          true,
	"INVALID.STATE.CODE":       true,
	"INVALID.POSTAL.CODE":      true,
	"MISSING.APARTMENT.NUMBER": true,
}

// ValidateAddress resolves an address with FedEx and classifies it.
// Validation is advisory at checkout: any upstream failure yields a
// result flagged for manual verification instead of an error.
func (c *Client) ValidateAddress(ctx context.Context, addr carrier.Address) (*carrier.ValidationResult, error) {
	streetLines := []string{addr.Line1}
	if addr.Line2 != "" {
		streetLines = append(streetLines, addr.Line2)
	}

	req := &addressValidationRequest{
		AddressesToValidate: []addressToValidate{{
			Address: apiAddress{
				StreetLines:         streetLines,
				City:                addr.City,
				StateOrProvinceCode: addr.StateCode,
				PostalCode:          addr.PostalCode,
				CountryCode:         addr.CountryCode,
			},
		}},
	}

	var resp addressValidationResponse
	if err := c.do(ctx, http.MethodPost, addressResolvePath, req, &resp); err != nil {
		c.logger.Warn("address validation unavailable, deferring to manual verification",
			zap.String("city", addr.City),
			zap.Error(err),
		)
		return &carrier.ValidationResult{
			Valid:                      false,
			Classification:             carrier.ClassificationUnknown,
			RequiresManualVerification: true,
		}, nil
	}

	if len(resp.Output.ResolvedAddresses) == 0 {
		return &carrier.ValidationResult{
			Valid:                      false,
			Classification:             carrier.ClassificationUnknown,
			RequiresManualVerification: true,
		}, nil
	}

	resolved := resp.Output.ResolvedAddresses[0]

	result := &carrier.ValidationResult{
		Valid:          resolved.Attributes.Resolved == "true",
		Classification: classify(resolved.Attributes),
	}

	for _, msg := range resolved.CustomerMessages {
		result.Messages = append(result.Messages, msg.Code)
		if blockingMessageCodes[msg.Code] {
			result.Valid = false
		}
	}

	if result.Valid {
		normalized := normalizedAddress(addr, resolved)
		result.Normalized = &normalized
	}

	return result, nil
}

func classify(attrs resolvedAttributes) carrier.AddressClassification {
	switch {
	case attrs.Residential == "true":
		return carrier.ClassificationResidential
	case attrs.Business == "true":
		return carrier.ClassificationBusiness
	default:
		return carrier.ClassificationUnknown
	}
}

func normalizedAddress(orig carrier.Address, resolved resolvedAddress) carrier.Address {
	addr := orig
	if len(resolved.StreetLinesToken) > 0 {
		addr.Line1 = resolved.StreetLinesToken[0]
		addr.Line2 = ""
		if len(resolved.StreetLinesToken) > 1 {
			addr.Line2 = resolved.StreetLinesToken[1]
		}
	}
	if resolved.City != "" {
		addr.City = resolved.City
	}
	if resolved.StateOrProvinceCode != "" {
		addr.StateCode = resolved.StateOrProvinceCode
	}
	if resolved.PostalCode != "" {
		addr.PostalCode = resolved.PostalCode
	}
	addr.Residential = resolved.Attributes.Residential == "true"
	return addr
}
