package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/pagecrest/fulfillment/internal/config"
	"github.com/pagecrest/fulfillment/internal/messaging"
	"github.com/pagecrest/fulfillment/internal/service"
	"github.com/pagecrest/fulfillment/internal/storage"
	"github.com/pagecrest/fulfillment/internal/telemetry"
	"github.com/pagecrest/fulfillment/pkg/carrier"
	"github.com/pagecrest/fulfillment/pkg/carrier/fedex"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
)

func loadConfig() (*config.Config, error) {
	return config.Load()
}

func initLogger(cfg *config.Config) (*otelzap.Logger, error) {
	return telemetry.NewLogger(cfg.ServiceName, cfg.LogLevel)
}

func initTracer(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	if !cfg.OTELEnabled {
		return func(context.Context) error { return nil }, nil
	}

	_, shutdown, err := telemetry.InitTracer(ctx, cfg.OTELEndpoint, cfg.ServiceName, cfg.Version)
	return shutdown, err
}

// app holds the wired service graph plus the handles that need closing
// on shutdown.
type app struct {
	Checkout    service.CheckoutService
	Fulfillment service.FulfillmentService
	Carrier     carrier.Carrier
	Metrics     *telemetry.Metrics

	db       *sql.DB
	producer *messaging.Producer
}

func (a *app) Close() {
	if a.producer != nil {
		a.producer.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
}

func initApp(cfg *config.Config, logger *otelzap.Logger) (*app, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	products := storage.NewProductRepository(db)
	coupons := storage.NewCouponRepository(db)
	carts := storage.NewCartRepository(db)
	orders := storage.NewOrderRepository(db)

	var events service.EventPublisher = service.NopPublisher{}
	var producer *messaging.Producer
	if cfg.KafkaEnabled {
		producer = messaging.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		events = producer
	}

	fedexClient := fedex.New(fedex.Config{
		ClientID:      cfg.FedExClientID,
		ClientSecret:  cfg.FedExClientSecret,
		AccountNumber: cfg.FedExAccountNumber,
		Environment:   fedex.Environment(cfg.FedExEnvironment),
		BaseURL:       cfg.FedExBaseURL,
		PrimaryWarehouse: carrier.Address{
			Line1:       cfg.PrimaryWarehouseLine1,
			City:        cfg.PrimaryWarehouseCity,
			StateCode:   cfg.PrimaryWarehouseState,
			PostalCode:  cfg.PrimaryWarehouseZip,
			CountryCode: "US",
		},
		SecondaryWarehouse: carrier.Address{
			Line1:       cfg.SecondaryWarehouseLine1,
			City:        cfg.SecondaryWarehouseCity,
			StateCode:   cfg.SecondaryWarehouseState,
			PostalCode:  cfg.SecondaryWarehouseZip,
			CountryCode: "US",
		},
	}, logger, otel.GetTracerProvider().Tracer(cfg.ServiceName))

	policy := service.PricingPolicy{
		FreeShippingThreshold: cfg.FreeShippingThreshold,
		FlatShippingFee:       cfg.FlatShippingFee,
	}

	checkout := service.NewCheckoutService(
		logger, db, products, coupons, carts, orders, events, policy)
	fulfillment := service.NewFulfillmentService(
		logger, db, orders, fedexClient, events)

	return &app{
		Checkout:    checkout,
		Fulfillment: fulfillment,
		Carrier:     fedexClient,
		Metrics:     telemetry.NewMetrics(),
		db:          db,
		producer:    producer,
	}, nil
}

func applyMigrations(cfg *config.Config) error {
	m, err := migrate.New(cfg.MigrationsPath, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}
	return nil
}
