package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"storefront/checkout-service/handlers"
	"storefront/checkout-service/internal/cart"
	"storefront/checkout-service/internal/orders"
	"storefront/checkout-service/migrations"
	"storefront/pkg/config"
	"storefront/pkg/database"
	"storefront/pkg/events"
	"storefront/pkg/internalclient"
	"storefront/pkg/metrics"
	"storefront/pkg/server"
)

func main() {
	server.SetupLogger()
	if err := startApp(); err != nil {
		slog.Error("checkout service stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func startApp() error {
	config.LoadDotEnv()
	internal, err := config.LoadInternal(config.Checkout)
	if err != nil {
		return err
	}
	catalogURL, err := internal.ServiceURL(config.Catalog)
	if err != nil {
		return err
	}
	emailURL, err := internal.ServiceURL(config.Email)
	if err != nil {
		return err
	}
	ctx := context.Background()

	// Database
	db, err := database.Open(ctx, "pgx", os.Getenv("DATABASE_URL"))
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(db, migrations.FS, "."); err != nil {
		return err
	}

	carts, err := cart.NewConf(db)
	if err != nil {
		return err
	}
	orderStore, err := orders.NewConf(db)
	if err != nil {
		return err
	}

	// Internal peers
	catalog := internalclient.New(catalogURL, internal.Secret, internal.ServiceID, internalclient.WithTimeout(internal.Timeout))
	email := internalclient.New(emailURL, internal.Secret, internal.ServiceID, internalclient.WithTimeout(internal.Timeout))
	notifier := orders.NewNotifier(email, internal.Timeout)
	defer notifier.Wait()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sm := metrics.NewServerMetrics(config.Checkout, reg)

	h := handlers.NewHandler(carts, orderStore, orders.NewValidator(catalog), notifier, events.New(config.Checkout, nil))
	api := handlers.API(h, sm, reg)

	return server.Run(ctx, config.Getenv("HTTP_ADDR", ":8002"), api)
}
