package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/agrostock/agrostock-backend/internal/inventory/consumers"
	"github.com/agrostock/agrostock-backend/internal/inventory/events"
	"github.com/agrostock/agrostock-backend/internal/inventory/handler"
	"github.com/agrostock/agrostock-backend/internal/inventory/repository"
	"github.com/agrostock/agrostock-backend/internal/inventory/service"
	"github.com/agrostock/agrostock-backend/pkg/config"
	"github.com/agrostock/agrostock-backend/pkg/database"
	"github.com/agrostock/agrostock-backend/pkg/httputil"
	"github.com/agrostock/agrostock-backend/pkg/i18n"
	"github.com/agrostock/agrostock-backend/pkg/logger"
	"github.com/agrostock/agrostock-backend/pkg/messaging"
)

func main() {
	cfg, err := config.LoadWithValidation("inventory-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("inventory-service", cfg.Server.Environment)
	log.Info().Msg("starting Inventory Service")

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	publisher, err := events.NewInventoryEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create event publisher")
	}

	// Repositories
	itemRepo := repository.NewItemRepository(db)
	movementRepo := repository.NewMovementRepository(db)
	alertRepo := repository.NewAlertRepository(db)
	settingsRepo := repository.NewSettingsRepository(db)
	warehouseRepo := repository.NewWarehouseRepository(db)
	readingRepo := repository.NewReadingRepository(db)

	// Services. The scanner doubles as the movement observer so alerts are
	// reconciled right after each movement commits.
	quarantine := service.NewQuarantine()
	alertScanner := service.NewAlertScanner(itemRepo, alertRepo, settingsRepo, readingRepo, quarantine, publisher, log)
	movementService := service.NewMovementService(db, itemRepo, movementRepo, publisher, alertScanner, quarantine, log)
	inventoryService := service.NewInventoryService(itemRepo, movementRepo, alertRepo, movementService, readingRepo, log)
	alertService := service.NewAlertService(alertRepo, publisher, log)
	analyticsService := service.NewAnalyticsService(itemRepo, movementRepo, alertRepo, settingsRepo, quarantine, cfg.Analytics, log)
	transferService := service.NewTransferService(warehouseRepo, itemRepo, movementService, publisher, log)

	scheduler := service.NewAlertScheduler(alertScanner, service.NewTenantDirectory(db), settingsRepo, alertRepo, cfg.Scanner, log)
	settingsService := service.NewSettingsService(settingsRepo, publisher, scheduler, log)

	// Handlers
	itemHandler := handler.NewItemHandler(inventoryService, log)
	movementHandler := handler.NewMovementHandler(movementService, log)
	alertHandler := handler.NewAlertHandler(alertService, log)
	settingsHandler := handler.NewSettingsHandler(settingsService, log)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsService, log)
	warehouseHandler := handler.NewWarehouseHandler(warehouseRepo, transferService, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	settingsConsumer, err := consumers.NewSettingsEventConsumer(rmq, scheduler, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create settings event consumer")
	}
	if err := settingsConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start settings event consumer")
	}

	scheduler.Start(ctx)
	defer scheduler.Stop()

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(middleware.Timeout(60 * time.Second))

	// CORS - supports subdomain-based multi-tenancy
	r.Use(cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			if origin == "http://localhost:3000" || origin == "http://localhost:5173" {
				return true
			}
			// Allow *.localhost:3000 subdomains for development
			if len(origin) > 21 && origin[len(origin)-15:] == ".localhost:3000" {
				return true
			}
			// Allow *.agrostock.io tenant subdomains
			if len(origin) > 13 && origin[len(origin)-13:] == ".agrostock.io" {
				return true
			}
			return origin == "https://agrostock.io" || origin == "http://agrostock.io"
		},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID", "Accept-Language", "X-Tenant-ID", "X-Tenant-Slug", "X-Tenant-Schema", "X-Actor-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(i18n.Middleware)
	r.Use(httputil.TenantMiddleware)
	r.Use(httputil.ActorMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "inventory-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	r.Route("/api/v1/inventory", func(r chi.Router) {
		// Item registry
		r.Route("/items", func(r chi.Router) {
			r.Get("/", itemHandler.List)
			r.Post("/", itemHandler.Create)
			r.Get("/{id}", itemHandler.Get)
			r.Put("/{id}", itemHandler.Update)
			r.Delete("/{id}", itemHandler.Delete)
			r.Post("/{id}/readings", itemHandler.RecordReading)

			// Per-item ledger and recovery
			r.Get("/{id}/movements", movementHandler.ListByItem)
			r.Post("/{id}/reconcile", movementHandler.Reconcile)

			// Per-item analytics
			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(cfg.Analytics.RequestTimeout))
				r.Get("/{id}/forecast", analyticsHandler.Forecast)
				r.Get("/{id}/valuation", analyticsHandler.Valuation)
				r.Get("/{id}/turnover", analyticsHandler.Turnover)
				r.Get("/{id}/reorder", analyticsHandler.Reorder)
			})
		})

		// Movement ledger
		r.Route("/movements", func(r chi.Router) {
			r.Get("/", movementHandler.List)
			r.Post("/", movementHandler.Create)
		})

		// Alerts
		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", alertHandler.List)
			r.Get("/{id}", alertHandler.Get)
			r.Put("/{id}/acknowledge", alertHandler.Acknowledge)
			r.Put("/{id}/snooze", alertHandler.Snooze)
			r.Put("/{id}/resolve", alertHandler.Resolve)
		})

		// Alert settings
		r.Route("/settings", func(r chi.Router) {
			r.Get("/", settingsHandler.Get)
			r.Put("/", settingsHandler.Update)
		})

		// Tenant-wide analytics
		r.Route("/analytics", func(r chi.Router) {
			r.Use(middleware.Timeout(cfg.Analytics.RequestTimeout))
			r.Get("/valuation", analyticsHandler.TenantValuation)
			r.Get("/abc", analyticsHandler.ABC)
			r.Get("/stock-ages", analyticsHandler.StockAges)
		})

		// Dashboard
		r.Get("/dashboard", analyticsHandler.Dashboard)

		// Warehouses and transfers
		r.Route("/warehouses", func(r chi.Router) {
			r.Get("/", warehouseHandler.ListWarehouses)
			r.Post("/", warehouseHandler.CreateWarehouse)
			r.Get("/{id}", warehouseHandler.GetWarehouse)
			r.Get("/{id}/locations", warehouseHandler.ListLocations)
			r.Post("/{id}/locations", warehouseHandler.CreateLocation)
		})
		r.Route("/transfers", func(r chi.Router) {
			r.Get("/", warehouseHandler.ListTransfers)
			r.Post("/", warehouseHandler.CreateTransfer)
			r.Get("/{id}", warehouseHandler.GetTransfer)
			r.Put("/{id}/approve", warehouseHandler.ApproveTransfer)
			r.Put("/{id}/dispatch", warehouseHandler.DispatchTransfer)
			r.Put("/{id}/complete", warehouseHandler.CompleteTransfer)
			r.Put("/{id}/cancel", warehouseHandler.CancelTransfer)
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Stop the scheduler and consumers before the server drains
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
