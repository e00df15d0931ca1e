package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pagecrest/fulfillment/internal/domain/models"
	"github.com/pagecrest/fulfillment/internal/service"
	"github.com/pagecrest/fulfillment/internal/storage"
	"github.com/pagecrest/fulfillment/pkg/carrier"
	"go.uber.org/zap"
)

type addressDTO struct {
	Name        string `json:"name"`
	Line1       string `json:"line1" validate:"required"`
	Line2       string `json:"line2"`
	City        string `json:"city" validate:"required"`
	StateCode   string `json:"state_code" validate:"required,len=2"`
	PostalCode  string `json:"postal_code" validate:"required"`
	CountryCode string `json:"country_code" validate:"required,len=2"`
	Phone       string `json:"phone"`
	Email       string `json:"email" validate:"omitempty,email"`
}

func (a addressDTO) toModel() models.Address {
	return models.Address{
		Name:        a.Name,
		Line1:       a.Line1,
		Line2:       a.Line2,
		City:        a.City,
		StateCode:   a.StateCode,
		PostalCode:  a.PostalCode,
		CountryCode: a.CountryCode,
		Phone:       a.Phone,
		Email:       a.Email,
	}
}

func (a addressDTO) toCarrier() carrier.Address {
	return carrier.Address{
		Name:        a.Name,
		Line1:       a.Line1,
		Line2:       a.Line2,
		City:        a.City,
		StateCode:   a.StateCode,
		PostalCode:  a.PostalCode,
		CountryCode: a.CountryCode,
		Phone:       a.Phone,
		Email:       a.Email,
	}
}

type checkoutRequestDTO struct {
	UserID          int64      `json:"user_id" validate:"required,gt=0"`
	ShippingAddress addressDTO `json:"shipping_address" validate:"required"`
	CouponCode      string     `json:"coupon_code"`
	PaymentMethod   string     `json:"payment_method"`
}

type orderResponse struct {
	ID              int64                   `json:"id"`
	OrderNumber     string                  `json:"order_number"`
	UserID          int64                   `json:"user_id"`
	Items           []models.LineItem       `json:"items"`
	Subtotal        int64                   `json:"subtotal"`
	ShippingCost    int64                   `json:"shipping_cost"`
	DiscountAmount  int64                   `json:"discount_amount"`
	TaxAmount       int64                   `json:"tax_amount"`
	Total           int64                   `json:"total"`
	PaymentStatus   string                  `json:"payment_status"`
	Status          string                  `json:"status"`
	ShippingAddress models.Address          `json:"shipping_address"`
	Shipment        *models.CarrierShipment `json:"shipment,omitempty"`
	Timeline        []models.TimelineEntry  `json:"timeline,omitempty"`
	CouponCode      string                  `json:"coupon_code,omitempty"`
	CreatedAt       time.Time               `json:"created_at"`
	UpdatedAt       time.Time               `json:"updated_at"`
}

func toOrderResponse(o *models.Order) orderResponse {
	return orderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID,
		Items:           o.Items,
		Subtotal:        o.Subtotal,
		ShippingCost:    o.ShippingCost,
		DiscountAmount:  o.DiscountAmount,
		TaxAmount:       o.TaxAmount,
		Total:           o.Total,
		PaymentStatus:   string(o.PaymentStatus),
		Status:          string(o.Status),
		ShippingAddress: o.ShippingAddress,
		Shipment:        o.Shipment,
		Timeline:        o.Timeline,
		CouponCode:      o.CouponCode,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequestDTO
	if !s.decode(w, r, &req) {
		return
	}

	order, err := s.checkout.Checkout(r.Context(), service.CheckoutRequest{
		UserID:          req.UserID,
		ShippingAddress: req.ShippingAddress.toModel(),
		CouponCode:      req.CouponCode,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		s.metrics.RecordCheckout("error")
		s.writeError(w, r, err)
		return
	}
	s.metrics.RecordCheckout("success")
	s.writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := s.orderID(w, r)
	if !ok {
		return
	}
	order, err := s.fulfillment.GetOrder(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (s *Server) handlePaymentConfirmed(w http.ResponseWriter, r *http.Request) {
	id, ok := s.orderID(w, r)
	if !ok {
		return
	}
	order, err := s.fulfillment.ConfirmPayment(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

type createShipmentDTO struct {
	ServiceCode string  `json:"service_code"`
	WeightKG    float64 `json:"weight_kg" validate:"gte=0"`
}

func (s *Server) handleCreateShipment(w http.ResponseWriter, r *http.Request) {
	id, ok := s.orderID(w, r)
	if !ok {
		return
	}
	var req createShipmentDTO
	if r.ContentLength > 0 && !s.decode(w, r, &req) {
		return
	}

	order, err := s.fulfillment.CreateShipment(r.Context(), id, service.ShipmentOptions{
		ServiceCode: req.ServiceCode,
		WeightKG:    req.WeightKG,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

func (s *Server) handleRefreshTracking(w http.ResponseWriter, r *http.Request) {
	id, ok := s.orderID(w, r)
	if !ok {
		return
	}
	order, err := s.fulfillment.RefreshTracking(r.Context(), id)
	if err != nil {
		s.metrics.RecordTrackingRefresh("error")
		s.writeError(w, r, err)
		return
	}
	s.metrics.RecordTrackingRefresh("success")
	s.writeJSON(w, http.StatusOK, toOrderResponse(order))
}

type schedulePickupDTO struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	ReadyTime string `json:"ready_time" validate:"required,datetime=15:04"`
	CloseTime string `json:"close_time" validate:"required,datetime=15:04"`
}

func (s *Server) handleSchedulePickup(w http.ResponseWriter, r *http.Request) {
	id, ok := s.orderID(w, r)
	if !ok {
		return
	}
	var req schedulePickupDTO
	if !s.decode(w, r, &req) {
		return
	}

	confirmation, err := s.fulfillment.SchedulePickup(r.Context(), id, service.PickupWindow{
		Date:      req.Date,
		ReadyTime: req.ReadyTime,
		CloseTime: req.CloseTime,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"confirmation_number": confirmation})
}

func (s *Server) handleCancelPickup(w http.ResponseWriter, r *http.Request) {
	id, ok := s.orderID(w, r)
	if !ok {
		return
	}
	if err := s.fulfillment.CancelPickup(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleValidateAddress(w http.ResponseWriter, r *http.Request) {
	var req addressDTO
	if !s.decode(w, r, &req) {
		return
	}
	result, err := s.carrier.ValidateAddress(r.Context(), req.toCarrier())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

type rateRequestDTO struct {
	Destination addressDTO `json:"destination" validate:"required"`
	WeightKG    float64    `json:"weight_kg" validate:"required,gt=0"`
}

func (s *Server) handleGetRates(w http.ResponseWriter, r *http.Request) {
	var req rateRequestDTO
	if !s.decode(w, r, &req) {
		return
	}
	rates, err := s.carrier.GetRates(r.Context(), &carrier.RateRequest{
		Destination: req.Destination.toCarrier(),
		Packages:    []carrier.Package{{Weight: req.WeightKG}},
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rates)
}

type locationsRequestDTO struct {
	Address  addressDTO `json:"address" validate:"required"`
	RadiusKM int        `json:"radius_km" validate:"gte=0"`
}

func (s *Server) handleFindLocations(w http.ResponseWriter, r *http.Request) {
	var req locationsRequestDTO
	if !s.decode(w, r, &req) {
		return
	}
	locations, err := s.carrier.FindLocations(r.Context(), req.Address.toCarrier(), req.RadiusKM)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, locations)
}

func (s *Server) orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "orderID"), 10, 64)
	if err != nil || id <= 0 {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid order id"})
		return 0, false
	}
	return id, true
}

// decode unmarshals and validates a JSON body, writing the 400 itself.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return false
	}
	return true
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeError maps domain and carrier errors onto HTTP statuses. Client
// preconditions are 4xx, carrier failures surface as gateway errors.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := ""

	switch {
	case errors.Is(err, storage.ErrOrderNotFound),
		errors.Is(err, storage.ErrProductNotFound),
		errors.Is(err, storage.ErrCouponNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrEmptyCart),
		errors.Is(err, service.ErrProductInactive),
		errors.Is(err, models.ErrCouponInactive),
		errors.Is(err, models.ErrCouponExpired),
		errors.Is(err, models.ErrCouponMinOrder):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrInsufficientStock),
		errors.Is(err, models.ErrCouponExhausted),
		errors.Is(err, carrier.ErrDuplicateShipment),
		errors.Is(err, carrier.ErrPickupAlreadyScheduled),
		errors.Is(err, carrier.ErrNoPickupScheduled),
		errors.Is(err, carrier.ErrShipmentNotReady),
		errors.Is(err, service.ErrNotPaid):
		status = http.StatusConflict
	case errors.Is(err, service.ErrNoShipment):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, carrier.ErrRateLimited):
		status = http.StatusServiceUnavailable
	case errors.Is(err, carrier.ErrTimeout):
		status = http.StatusGatewayTimeout
	case errors.Is(err, carrier.ErrAuthFailed):
		status = http.StatusBadGateway
	default:
		var cerr *carrier.Error
		if errors.As(err, &cerr) {
			status = http.StatusBadGateway
			code = cerr.Code
		}
	}

	if status >= http.StatusInternalServerError {
		s.logger.Ctx(r.Context()).Error("request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error(), Code: code})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}
