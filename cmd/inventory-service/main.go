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
	"github.com/rs/zerolog"

	"github.com/pharmastock/pharmastock-backend/internal/inventory/events"
	"github.com/pharmastock/pharmastock-backend/internal/inventory/handler"
	"github.com/pharmastock/pharmastock-backend/internal/inventory/repository"
	"github.com/pharmastock/pharmastock-backend/internal/inventory/service"
	"github.com/pharmastock/pharmastock-backend/pkg/config"
	"github.com/pharmastock/pharmastock-backend/pkg/database"
	"github.com/pharmastock/pharmastock-backend/pkg/httputil"
	"github.com/pharmastock/pharmastock-backend/pkg/logger"
	"github.com/pharmastock/pharmastock-backend/pkg/messaging"
)

func main() {
	// Strict validation only outside development, so a bare local checkout
	// still starts against the defaults.
	var cfg *config.Config
	var err error
	if config.IsProductionLike() {
		cfg, err = config.LoadWithValidation("inventory-service")
	} else {
		cfg, err = config.Load("inventory-service")
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	if config.IsDevelopment() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log := logger.New("inventory-service", cfg.Server.Environment)
	log.Info().Msg("starting inventory service")

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
	categoryRepo := repository.NewCategoryRepository(db)
	productRepo := repository.NewProductRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	movementRepo := repository.NewMovementRepository(db)

	// Services
	catalogService := service.NewCatalogService(categoryRepo, productRepo, publisher, log.WithComponent("catalog"))
	ledgerService := service.NewLedgerService(db, batchRepo, movementRepo, productRepo, publisher, log.WithComponent("ledger"))
	reportService := service.NewReportService(categoryRepo, productRepo, batchRepo, movementRepo, log.WithComponent("reports"))

	// Handlers
	categoryHandler := handler.NewCategoryHandler(catalogService, log)
	productHandler := handler.NewProductHandler(catalogService, ledgerService, log)
	batchHandler := handler.NewBatchHandler(ledgerService, log)
	movementHandler := handler.NewMovementHandler(ledgerService, log)
	dashboardHandler := handler.NewDashboardHandler(reportService, log)

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log.WithComponent("http")))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"service":  "inventory-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/categories", func(r chi.Router) {
			r.Get("/", categoryHandler.List)
			r.Post("/", categoryHandler.Create)
			r.Get("/{id}", categoryHandler.Get)
			r.Put("/{id}", categoryHandler.Update)
			r.Delete("/{id}", categoryHandler.Delete)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.List)
			r.Post("/", productHandler.Create)
			r.Get("/{id}", productHandler.Get)
			r.Put("/{id}", productHandler.Update)
			r.Delete("/{id}", productHandler.Delete)
			r.Get("/{id}/batches", productHandler.ListBatches)
		})

		r.Route("/batches", func(r chi.Router) {
			r.Get("/", batchHandler.List)
			r.Post("/", batchHandler.Create)
			r.Get("/{id}", batchHandler.Get)
			r.Put("/{id}", batchHandler.Update)
			r.Delete("/{id}", batchHandler.Delete)
		})

		r.Route("/inputs", func(r chi.Router) {
			r.Get("/", movementHandler.ListInputs)
			r.Post("/", movementHandler.CreateInput)
			r.Delete("/{id}", movementHandler.DeleteInput)
		})

		r.Route("/outputs", func(r chi.Router) {
			r.Get("/", movementHandler.ListOutputs)
			r.Post("/", movementHandler.CreateOutput)
			r.Delete("/{id}", movementHandler.DeleteOutput)
		})

		r.Route("/dashboard", func(r chi.Router) {
			r.Get("/stats", dashboardHandler.Stats)
			r.Get("/movements", dashboardHandler.Movements)
			r.Get("/products-by-category", dashboardHandler.ProductsByCategory)
			r.Get("/activity", dashboardHandler.Activity)
			r.Get("/alerts", dashboardHandler.Alerts)
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

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
