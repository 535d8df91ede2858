package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/banking-transfer-saga/internal/account_service/components"
	ledgerservice "github.com/banking-transfer-saga/internal/account_service/service"
	"github.com/banking-transfer-saga/internal/api_gateway"
	"github.com/banking-transfer-saga/internal/api_gateway/service"
	"github.com/banking-transfer-saga/internal/config"
	"github.com/banking-transfer-saga/internal/data/mongo"
	"github.com/banking-transfer-saga/internal/data/postgres"
	"github.com/banking-transfer-saga/internal/logger"
	"github.com/banking-transfer-saga/internal/platform/messaging/producers"
	"github.com/banking-transfer-saga/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	if err = mongo.EnsureHistoryIndexes(appCtx, mongoDB.Database()); err != nil {
		log.Error("Failed to ensure transfer history indexes", "error", err)
		os.Exit(1)
	}

	// Transfer requests and direct operation outcomes both go through this producer
	eventProducer, err := producers.NewEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize API Gateway Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	accountRepo := postgres.NewAccountRepository(log, postgresDB)
	entryRepo := postgres.NewEntryRepository(log, postgresDB)
	transferRepo := postgres.NewTransferRepository(log, postgresDB)
	historyRepo := mongo.NewHistoryRepository(log, mongoDB.Database())
	unmatchedRepo := mongo.NewUnmatchedRepository(log, mongoDB.Database())

	ledgerService := components.CreateLedgerService(
		postgresDB,
		accountRepo,
		entryRepo,
		components.NewOutcomeAnnouncer(eventProducer, entryRepo, log),
		log,
		cfg,
	)

	server := api_gateway.NewServer(log, cfg, api_gateway.Services{
		Accounts:       service.NewAccountService(log, accountRepo, entryRepo, ledgerService),
		Transfers:      service.NewTransferService(log, transferRepo, historyRepo, eventProducer),
		Reconciliation: service.NewReconciliationService(unmatchedRepo),
	})
	log.Info("REST server initialized")

	errChan := make(chan error, 1)

	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	// Stop accepting requests before the pool and stores go away
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if wpService, ok := ledgerService.(*ledgerservice.WorkerPoolLedgerService); ok {
		wpService.Shutdown()
	}

	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
	}

	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
