package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"storefront/catalog-service/handlers"
	"storefront/catalog-service/internal/products"
	"storefront/catalog-service/migrations"
	"storefront/pkg/config"
	"storefront/pkg/database"
	"storefront/pkg/events"
	"storefront/pkg/hmacauth"
	"storefront/pkg/metrics"
	"storefront/pkg/middleware"
	"storefront/pkg/server"
)

func main() {
	server.SetupLogger()
	if err := startApp(); err != nil {
		slog.Error("catalog service stopped", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func startApp() error {
	seed := flag.Bool("seed", false, "insert demo products when the catalog is empty")
	flag.Parse()

	config.LoadDotEnv()
	internal, err := config.LoadInternal(config.Catalog)
	if err != nil {
		return err
	}
	ctx := context.Background()

	// Database
	db, err := database.Open(ctx, "postgres", os.Getenv("DATABASE_URL"))
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(db, migrations.FS, "."); err != nil {
		return err
	}

	// Optional product cache
	var cache products.Cache
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr})
		defer client.Close()
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		cache = products.NewRedisCache(client, 5*time.Minute)
	}

	store, err := products.NewConf(db, cache)
	if err != nil {
		return err
	}
	if *seed {
		inserted, err := store.Seed(ctx)
		if err != nil {
			return err
		}
		slog.Info("catalog seed finished", slog.Bool("inserted", inserted))
	}

	m, err := middleware.NewMid(
		hmacauth.NewVerifier(internal.AllowedServiceIDs, internal.Secret, internal.TimestampTolerance),
		middleware.WithMaxBodyBytes(internal.MaxBodyBytes),
	)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sm := metrics.NewServerMetrics(config.Catalog, reg)

	h := handlers.NewHandler(store, events.New(config.Catalog, nil))
	api := handlers.API(h, m, sm, reg)

	return server.Run(ctx, config.Getenv("HTTP_ADDR", ":8001"), api)
}
