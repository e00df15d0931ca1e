// Package server exposes the fulfillment HTTP API: checkout, the
// payment-confirmed signal, and operator-facing shipment operations.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/pagecrest/fulfillment/internal/service"
	"github.com/pagecrest/fulfillment/internal/telemetry"
	"github.com/pagecrest/fulfillment/pkg/carrier"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.uber.org/zap"
)

// Server is the HTTP server for the fulfillment service.
type Server struct {
	port        int
	logger      *otelzap.Logger
	metrics     *telemetry.Metrics
	checkout    service.CheckoutService
	fulfillment service.FulfillmentService
	carrier     carrier.Carrier
	validate    *validator.Validate
}

// Config holds server configuration.
type Config struct {
	Port int
}

// New creates a new server instance.
func New(
	cfg Config,
	checkout service.CheckoutService,
	fulfillment service.FulfillmentService,
	c carrier.Carrier,
	metrics *telemetry.Metrics,
	logger *otelzap.Logger,
) *Server {
	return &Server{
		port:        cfg.Port,
		logger:      logger,
		metrics:     metrics,
		checkout:    checkout,
		fulfillment: fulfillment,
		carrier:     c,
		validate:    validator.New(),
	}
}

// Handler builds the route tree. Split from Run so handler tests can
// drive it without a listener.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/checkout", s.handleCheckout)
		r.Post("/addresses/validate", s.handleValidateAddress)
		r.Post("/rates", s.handleGetRates)
		r.Post("/locations", s.handleFindLocations)

		r.Route("/orders/{orderID}", func(r chi.Router) {
			r.Get("/", s.handleGetOrder)
			r.Post("/payment-confirmed", s.handlePaymentConfirmed)
			r.Post("/shipment", s.handleCreateShipment)
			r.Post("/tracking/refresh", s.handleRefreshTracking)
			r.Post("/pickup", s.handleSchedulePickup)
			r.Delete("/pickup", s.handleCancelPickup)
		})
	})
	return r
}

// Run starts the HTTP server and blocks until context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server", zap.Int("port", s.port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
