package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/banking-transfer-saga/internal/account_service/components"
	"github.com/banking-transfer-saga/internal/account_service/consumer"
	"github.com/banking-transfer-saga/internal/account_service/recovery"
	"github.com/banking-transfer-saga/internal/account_service/service"
	"github.com/banking-transfer-saga/internal/config"
	"github.com/banking-transfer-saga/internal/data/postgres"
	"github.com/banking-transfer-saga/internal/domain/shared"
	"github.com/banking-transfer-saga/internal/logger"
	"github.com/banking-transfer-saga/internal/platform/messaging/consumers"
	"github.com/banking-transfer-saga/internal/platform/messaging/producers"
	"github.com/banking-transfer-saga/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("account_service")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewLogger(cfg)

	log.Info("Starting Account Service",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
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
	accountRepo := postgres.NewAccountRepository(log, postgresDB)
	entryRepo := postgres.NewEntryRepository(log, postgresDB)

	announcer := components.NewOutcomeAnnouncer(eventProducer, entryRepo, log)
	ledgerService := components.CreateLedgerService(postgresDB, accountRepo, entryRepo, announcer, log, cfg)

	sweeper := recovery.NewSweeper(&cfg.Recovery, entryRepo, announcer, log)

	// One consumer per command topic, all in the account service group
	commandTopics := []struct {
		topic   string
		implied shared.EventType
	}{
		{topic: cfg.Kafka.Topics.DebitAccount, implied: shared.EventDebitCommand},
		{topic: cfg.Kafka.Topics.CreditAccount, implied: shared.EventCreditCommand},
		{topic: cfg.Kafka.Topics.RevertDebit, implied: shared.EventCompensateCommand},
	}

	kafkaConsumers := make([]*consumers.KafkaConsumer, 0, len(commandTopics))
	for _, ct := range commandTopics {
		handler := consumer.NewCommandHandler(log, ct.topic, ct.implied, ledgerService, eventProducer, dlqProducer)
		kafkaConsumer := consumers.NewKafkaConsumer(log, &cfg.Kafka, ct.topic, cfg.Kafka.AccountGroup)
		if err = kafkaConsumer.Subscribe(appCtx, handler.HandleMessage); err != nil {
			log.Error("Failed to subscribe to command topic", "topic", ct.topic, "error", err)
			os.Exit(1)
		}
		kafkaConsumers = append(kafkaConsumers, kafkaConsumer)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting change-log recovery sweeper",
			"interval", cfg.Recovery.PollingInterval.String(),
			"batch_size", cfg.Recovery.BatchSize,
		)
		sweeper.Start(appCtx)
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	<-quit
	log.Info("Shutdown signal received")

	cancelAppCtx()

	if wpService, ok := ledgerService.(*service.WorkerPoolLedgerService); ok {
		wpService.Shutdown()
	}

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

	if shutdownErr != nil {
		log.Error("Account Service shutdown completed with errors")
	} else {
		log.Info("Account Service shutdown completed successfully")
	}
}
