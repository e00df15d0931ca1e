package fedex

// Wire types for the FedEx REST API. Field sets are trimmed to what the
// adapter reads and writes; the rate reply keeps every pricing shape the
// API is known to return.

// ============================================================================
// OAuth
// ============================================================================

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope,omitempty"`
}

type tokenErrorResponse struct {
	Error            string     `json:"error,omitempty"`
	ErrorDescription string     `json:"error_description,omitempty"`
	Errors           []apiIssue `json:"errors,omitempty"`
}

// apiIssue is the error element FedEx embeds in most failure bodies.
type apiIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiErrorResponse struct {
	TransactionID string     `json:"transactionId,omitempty"`
	Errors        []apiIssue `json:"errors,omitempty"`
}

// ============================================================================
// Shared elements
// ============================================================================

type apiAddress struct {
	StreetLines         []string `json:"streetLines"`
	City                string   `json:"city,omitempty"`
	StateOrProvinceCode string   `json:"stateOrProvinceCode,omitempty"`
	PostalCode          string   `json:"postalCode,omitempty"`
	CountryCode         string   `json:"countryCode,omitempty"`
	Residential         bool     `json:"residential,omitempty"`
}

type apiContact struct {
	PersonName   string `json:"personName,omitempty"`
	CompanyName  string `json:"companyName,omitempty"`
	PhoneNumber  string `json:"phoneNumber,omitempty"`
	EmailAddress string `json:"emailAddress,omitempty"`
}

type apiParty struct {
	Contact apiContact `json:"contact,omitempty"`
	Address apiAddress `json:"address"`
}

type accountNumber struct {
	Value string `json:"value"`
}

type apiWeight struct {
	Units string  `json:"units"` // "KG" or "LB"
	Value float64 `json:"value"`
}

type apiDimensions struct {
	Length int    `json:"length"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Units  string `json:"units"` // "CM" or "IN"
}

type apiMoney struct {
	Currency string  `json:"currency"`
	Amount   float64 `json:"amount"`
}

// ============================================================================
// Address validation: POST /address/v1/addresses/resolve
// ============================================================================

type addressValidationRequest struct {
	AddressesToValidate []addressToValidate `json:"addressesToValidate"`
}

type addressToValidate struct {
	Address apiAddress `json:"address"`
}

type addressValidationResponse struct {
	Output struct {
		ResolvedAddresses []resolvedAddress `json:"resolvedAddresses"`
	} `json:"output"`
}

type resolvedAddress struct {
	StreetLinesToken    []string           `json:"streetLinesToken"`
	City                string             `json:"city"`
	StateOrProvinceCode string             `json:"stateOrProvinceCode"`
	PostalCode          string             `json:"postalCode"`
	CountryCode         string             `json:"countryCode"`
	Classification      string             `json:"classification"`
	Attributes          resolvedAttributes `json:"attributes"`
	CustomerMessages    []customerMessage  `json:"customerMessages"`
}

// resolvedAttributes carries FedEx's stringly-typed boolean flags.
type resolvedAttributes struct {
	Resolved    string `json:"Resolved"`
	Residential string `json:"Residential"`
	Business    string `json:"Business"`
	Matched     string `json:"Matched"`
}

type customerMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ============================================================================
// Rating: POST /rate/v1/rates/quotes
// ============================================================================

type rateRequest struct {
	AccountNumber     accountNumber         `json:"accountNumber"`
	RequestedShipment rateRequestedShipment `json:"requestedShipment"`
}

type rateRequestedShipment struct {
	Shipper                   apiParty          `json:"shipper"`
	Recipient                 apiParty          `json:"recipient"`
	PickupType                string            `json:"pickupType"`
	PreferredCurrency         string            `json:"preferredCurrency,omitempty"`
	RateRequestType           []string          `json:"rateRequestType"`
	RequestedPackageLineItems []packageLineItem `json:"requestedPackageLineItems"`
}

type packageLineItem struct {
	Weight       apiWeight      `json:"weight"`
	Dimensions   *apiDimensions `json:"dimensions,omitempty"`
	InsuredValue *apiMoney      `json:"insuredValue,omitempty"`
}

type rateResponse struct {
	Output struct {
		RateReplyDetails []rateReplyDetail `json:"rateReplyDetails"`
	} `json:"output"`
}

type rateReplyDetail struct {
	ServiceType          string                `json:"serviceType"`
	ServiceName          string                `json:"serviceName"`
	RatedShipmentDetails []ratedShipmentDetail `json:"ratedShipmentDetails"`
	OperationalDetail    struct {
		TransitTime  string `json:"transitTime,omitempty"`
		DeliveryDate string `json:"deliveryDate,omitempty"`
	} `json:"operationalDetail"`
}

// ratedShipmentDetail is the union of the pricing shapes FedEx returns.
// Depending on account, service and environment the total lands in
// totalNetCharge, totalNetFedExCharge, a nested shipmentRateDetail, or
// only in per-package entries.
type ratedShipmentDetail struct {
	RateType            string  `json:"rateType"` // "ACCOUNT" or "LIST"
	Currency            string  `json:"currency,omitempty"`
	TotalNetCharge      float64 `json:"totalNetCharge,omitempty"`
	TotalNetFedExCharge float64 `json:"totalNetFedExCharge,omitempty"`
	ShipmentRateDetail  *struct {
		TotalNetCharge float64 `json:"totalNetCharge,omitempty"`
		Currency       string  `json:"currency,omitempty"`
	} `json:"shipmentRateDetail,omitempty"`
	RatedPackages []struct {
		PackageRateDetail *struct {
			NetCharge float64 `json:"netCharge,omitempty"`
		} `json:"packageRateDetail,omitempty"`
	} `json:"ratedPackages,omitempty"`
}

// ============================================================================
// Shipping: POST /ship/v1/shipments, PUT /ship/v1/shipments/cancel
// ============================================================================

type shipRequest struct {
	LabelResponseOptions string                `json:"labelResponseOptions"`
	AccountNumber        accountNumber         `json:"accountNumber"`
	RequestedShipment    shipRequestedShipment `json:"requestedShipment"`
}

type shipRequestedShipment struct {
	Shipper                   apiParty            `json:"shipper"`
	Recipients                []apiParty          `json:"recipients"`
	ServiceType               string              `json:"serviceType"`
	PackagingType             string              `json:"packagingType"`
	PickupType                string              `json:"pickupType"`
	ShippingChargesPayment    chargesPayment      `json:"shippingChargesPayment"`
	LabelSpecification        labelSpecification  `json:"labelSpecification"`
	TotalDeclaredValue        *apiMoney           `json:"totalDeclaredValue,omitempty"`
	CustomerReferences        []customerReference `json:"customerReferences,omitempty"`
	RequestedPackageLineItems []packageLineItem   `json:"requestedPackageLineItems"`
}

type chargesPayment struct {
	PaymentType string `json:"paymentType"` // "SENDER"
}

type labelSpecification struct {
	ImageType      string `json:"imageType"` // "PDF"
	LabelStockType string `json:"labelStockType"`
}

type customerReference struct {
	CustomerReferenceType string `json:"customerReferenceType"`
	Value                 string `json:"value"`
}

type shipResponse struct {
	Output struct {
		TransactionShipments []transactionShipment `json:"transactionShipments"`
	} `json:"output"`
}

type transactionShipment struct {
	MasterTrackingNumber    string          `json:"masterTrackingNumber"`
	ServiceType             string          `json:"serviceType"`
	ShipDatestamp           string          `json:"shipDatestamp,omitempty"`
	PieceResponses          []pieceResponse `json:"pieceResponses,omitempty"`
	CompletedShipmentDetail struct {
		ShipmentRating struct {
			ShipmentRateDetails []ratedShipmentDetail `json:"shipmentRateDetails,omitempty"`
		} `json:"shipmentRating"`
	} `json:"completedShipmentDetail"`
}

type pieceResponse struct {
	TrackingNumber   string            `json:"trackingNumber"`
	NetChargeAmount  float64           `json:"netChargeAmount,omitempty"`
	PackageDocuments []packageDocument `json:"packageDocuments,omitempty"`
}

type packageDocument struct {
	URL         string `json:"url,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	DocType     string `json:"docType,omitempty"`
}

type cancelShipmentRequest struct {
	AccountNumber  accountNumber `json:"accountNumber"`
	TrackingNumber string        `json:"trackingNumber"`
}

type cancelShipmentResponse struct {
	Output struct {
		CancelledShipment bool `json:"cancelledShipment"`
	} `json:"output"`
}

// ============================================================================
// Tracking: POST /track/v1/trackingnumbers
// ============================================================================

type trackRequest struct {
	IncludeDetailedScans bool           `json:"includeDetailedScans"`
	TrackingInfo         []trackingInfo `json:"trackingInfo"`
}

type trackingInfo struct {
	TrackingNumberInfo trackingNumberInfo `json:"trackingNumberInfo"`
}

type trackingNumberInfo struct {
	TrackingNumber string `json:"trackingNumber"`
}

type trackResponse struct {
	Output struct {
		CompleteTrackResults []completeTrackResult `json:"completeTrackResults"`
	} `json:"output"`
}

type completeTrackResult struct {
	TrackingNumber string        `json:"trackingNumber"`
	TrackResults   []trackResult `json:"trackResults"`
}

type trackResult struct {
	LatestStatusDetail statusDetail  `json:"latestStatusDetail"`
	DateAndTimes       []dateAndTime `json:"dateAndTimes,omitempty"`
	ScanEvents         []scanEvent   `json:"scanEvents,omitempty"`
}

type statusDetail struct {
	Code         string       `json:"code"`
	DerivedCode  string       `json:"derivedCode,omitempty"`
	Description  string       `json:"description"`
	ScanLocation scanLocation `json:"scanLocation"`
}

type dateAndTime struct {
	Type     string `json:"type"` // "ESTIMATED_DELIVERY", "ACTUAL_DELIVERY"
	DateTime string `json:"dateTime"`
}

type scanEvent struct {
	Date              string       `json:"date"`
	EventType         string       `json:"eventType"`
	EventDescription  string       `json:"eventDescription"`
	DerivedStatusCode string       `json:"derivedStatusCode,omitempty"`
	ScanLocation      scanLocation `json:"scanLocation"`
}

type scanLocation struct {
	City                string `json:"city,omitempty"`
	StateOrProvinceCode string `json:"stateOrProvinceCode,omitempty"`
	CountryCode         string `json:"countryCode,omitempty"`
}

// ============================================================================
// Pickup: POST /pickup/v1/pickups, PUT /pickup/v1/pickups/cancel
// ============================================================================

type createPickupRequest struct {
	AssociatedAccountNumber accountNumber `json:"associatedAccountNumber"`
	OriginDetail            originDetail  `json:"originDetail"`
	PackageCount            int           `json:"packageCount,omitempty"`
	TotalWeight             *apiWeight    `json:"totalWeight,omitempty"`
	CarrierCode             string        `json:"carrierCode"`
}

type originDetail struct {
	PickupLocation     apiParty `json:"pickupLocation"`
	ReadyDateTimestamp string   `json:"readyDateTimestamp"`
	CustomerCloseTime  string   `json:"customerCloseTime"`
}

type createPickupResponse struct {
	Output struct {
		PickupConfirmationCode string `json:"pickupConfirmationCode"`
		ScheduledDate          string `json:"scheduledDate,omitempty"`
		Location               string `json:"location,omitempty"`
	} `json:"output"`
}

type cancelPickupRequest struct {
	AssociatedAccountNumber accountNumber `json:"associatedAccountNumber"`
	PickupConfirmationCode  string        `json:"pickupConfirmationCode"`
	ScheduledDate           string        `json:"scheduledDate,omitempty"`
}

type cancelPickupResponse struct {
	Output struct {
		PickupConfirmationCode    string `json:"pickupConfirmationCode"`
		CancelConfirmationMessage string `json:"cancelConfirmationMessage,omitempty"`
	} `json:"output"`
}

// ============================================================================
// Locations: POST /location/v1/locations
// ============================================================================

type locationsRequest struct {
	LocationsSummaryRequestControlParameters struct {
		DistanceUnits string  `json:"distanceUnits"` // "KM"
		Radius        float64 `json:"radius"`
	} `json:"locationsSummaryRequestControlParameters"`
	Location struct {
		Address apiAddress `json:"address"`
	} `json:"location"`
}

type locationsResponse struct {
	Output struct {
		LocationDetailList []locationDetail `json:"locationDetailList"`
	} `json:"output"`
}

type locationDetail struct {
	LocationID string `json:"locationId"`
	Distance   struct {
		Units string  `json:"units"`
		Value float64 `json:"value"`
	} `json:"distance"`
	ContactAndAddress struct {
		Contact apiContact `json:"contact"`
		Address apiAddress `json:"address"`
	} `json:"contactAndAddress"`
}
