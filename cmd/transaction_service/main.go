package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banking-transfer-saga/internal/config"
	"github.com/banking-transfer-saga/internal/data/mongo"
	"github.com/banking-transfer-saga/internal/data/postgres"
	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/banking-transfer-saga/internal/logger"
	"github.com/banking-transfer-saga/internal/platform/messaging"
	"github.com/banking-transfer-saga/internal/platform/messaging/consumers"
	"github.com/banking-transfer-saga/internal/platform/messaging/producers"
	"github.com/banking-transfer-saga/internal/platform/persistence"
	"github.com/banking-transfer-saga/internal/transaction_service/consumer"
	"github.com/banking-transfer-saga/internal/transaction_service/outbox_relay"
	"github.com/banking-transfer-saga/internal/transaction_service/saga"
	"github.com/banking-transfer-saga/internal/transaction_service/timeout"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("transaction_service")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Transaction Service",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
		"correlation_mode", cfg.Saga.CorrelationMode,
		"saga_timeout", cfg.Saga.Timeout.String(),
	)

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
	if err = mongo.EnsureUnmatchedCollection(appCtx, mongoDB.Database(), cfg.Reconciliation.MaxBytes, cfg.Reconciliation.MaxEvents); err != nil {
		log.Error("Failed to ensure reconciliation collection", "error", err)
		os.Exit(1)
	}

	if err = producers.EnsureTopics(appCtx, log, &cfg.Kafka, cfg.Kafka.Topics.All()...); err != nil {
		log.Error("Failed to ensure Kafka topics", "error", err)
		os.Exit(1)
	}

	eventProducer, err := producers.NewEventProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize Kafka event producer", "error", err)
		os.Exit(1)
	}

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	transferRepo := postgres.NewTransferRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	historyRepo := mongo.NewHistoryRepository(log, mongoDB.Database())
	unmatchedRepo := mongo.NewUnmatchedRepository(log, mongoDB.Database())

	coordinator := saga.NewCoordinator(
		postgresDB,
		transferRepo,
		outboxRepo,
		historyRepo,
		unmatchedRepo,
		saga.NewCorrelator(cfg.Saga.CorrelationMode),
		messaging.NewRouter(cfg.Kafka.Topics),
		eventProducer,
		cfg.Saga.Timeout,
		log.With("component", "saga"),
	)

	relay := outbox_relay.NewRelay(&cfg.Outbox, outboxRepo, eventProducer, log.With("component", "outbox_relay"))
	sweeper := timeout.NewSweeper(&cfg.Saga, transferRepo, coordinator, log.With("component", "timeout_sweeper"))

	eventTopics := []struct {
		topic   string
		implied shared.EventType
	}{
		{topic: cfg.Kafka.Topics.TransferRequested, implied: shared.EventTransferRequested},
		{topic: cfg.Kafka.Topics.AccountDebited, implied: shared.EventDebited},
		{topic: cfg.Kafka.Topics.DebitFailed, implied: shared.EventDebitFailed},
		{topic: cfg.Kafka.Topics.AccountCredited, implied: shared.EventCredited},
		{topic: cfg.Kafka.Topics.CreditFailed, implied: shared.EventCreditFailed},
	}

	kafkaConsumers := make([]*consumers.KafkaConsumer, 0, len(eventTopics))
	for _, et := range eventTopics {
		handler := consumer.NewEventHandler(log, et.topic, et.implied, coordinator, dlqProducer)
		kafkaConsumer := consumers.NewKafkaConsumer(log, &cfg.Kafka, et.topic, cfg.Kafka.TransactionGroup)
		if err = kafkaConsumer.Subscribe(appCtx, handler.HandleMessage); err != nil {
			log.Error("Failed to subscribe to saga topic", "topic", et.topic, "error", err)
			os.Exit(1)
		}
		kafkaConsumers = append(kafkaConsumers, kafkaConsumer)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting outbox relay",
			"interval", cfg.Outbox.PollingInterval.String(),
			"batch_size", cfg.Outbox.BatchSize,
		)
		relay.Start(appCtx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting saga timeout sweeper",
			"interval", cfg.Saga.SweepInterval.String(),
			"batch_size", cfg.Saga.SweepBatchSize,
		)
		sweeper.Start(appCtx)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	<-quit
	log.Info("Shutdown signal received")

	cancelAppCtx()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	log.Info("Starting graceful shutdown...")

	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All background workers stopped")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	var shutdownErr error
	for _, kafkaConsumer := range kafkaConsumers {
		if err = kafkaConsumer.Close(); err != nil {
			log.Error("Error closing Kafka consumer", "error", err)
			shutdownErr = err
		}
	}

	if err = eventProducer.Close(); err != nil {
		log.Error("Error closing Kafka event producer", "error", err)
		shutdownErr = err
	}

	if dlqProducer != nil {
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
			shutdownErr = err
		}
	}

	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
		shutdownErr = err
	}

	if shutdownErr != nil {
		log.Error("Transaction Service shutdown completed with errors")
	} else {
		log.Info("Transaction Service shutdown completed successfully")
	}
}
