package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/panelcraft/panelcraft-backend/api/routes"
	"github.com/panelcraft/panelcraft-backend/internal/billing"
	"github.com/panelcraft/panelcraft-backend/internal/catalog"
	"github.com/panelcraft/panelcraft-backend/internal/inventory"
	"github.com/panelcraft/panelcraft-backend/internal/orders"
	"github.com/panelcraft/panelcraft-backend/internal/quotes"
	"github.com/panelcraft/panelcraft-backend/internal/sequence"
	"github.com/panelcraft/panelcraft-backend/internal/users"
	"github.com/panelcraft/panelcraft-backend/pkg/config"
	"github.com/panelcraft/panelcraft-backend/pkg/db"
	"github.com/panelcraft/panelcraft-backend/pkg/logger"
	"github.com/panelcraft/panelcraft-backend/pkg/metrics"
	"github.com/panelcraft/panelcraft-backend/pkg/migrate"
	"github.com/panelcraft/panelcraft-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	seq := sequence.NewGenerator()
	usersRepo := users.NewRepository(dbClient.DB())

	usersService, err := users.NewService(usersRepo, cfg.JWT, cfg.Password)
	if err != nil {
		logg.Error(context.Background(), "failed to create users service", err)
		os.Exit(1)
	}

	catalogService, err := catalog.NewService(catalog.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	inventoryService, err := inventory.NewService(inventory.NewRepository(dbClient.DB()), dbClient, seq)
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory service", err)
		os.Exit(1)
	}

	billingService, err := billing.NewService(billing.NewRepository(dbClient.DB()), dbClient, seq, cfg.Billing)
	if err != nil {
		logg.Error(context.Background(), "failed to create billing service", err)
		os.Exit(1)
	}

	ordersService, err := orders.NewService(orders.NewRepository(dbClient.DB()), dbClient, inventoryService, billingService, seq)
	if err != nil {
		logg.Error(context.Background(), "failed to create orders service", err)
		os.Exit(1)
	}

	quotesService, err := quotes.NewService(quotes.NewRepository(dbClient.DB()), dbClient, seq, usersRepo, catalogService, ordersService, cfg.Commercial)
	if err != nil {
		logg.Error(context.Background(), "failed to create quotes service", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(registry)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:    cfg,
			Logger:    logg,
			DB:        dbClient,
			Redis:     redisClient,
			Metrics:   httpMetrics,
			Gatherer:  registry,
			Users:     usersService,
			Catalog:   catalogService,
			Orders:    ordersService,
			Inventory: inventoryService,
			Billing:   billingService,
			Quotes:    quotesService,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
