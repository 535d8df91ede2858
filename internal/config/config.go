// Package config provides configuration structures and validation for the saga services.
// Every binary (api gateway, account service, transaction service) loads the same
// structure and only reads the sections it needs.
package config

import (
	"errors"
	"strings"
	"time"
)

// Correlation modes understood by the saga coordinator.
const (
	CorrelationModeExact  = "exact"
	CorrelationModeLegacy = "legacy"
)

// Config holds the complete application configuration.
type Config struct {
	Application    ApplicationConfig
	Logging        LoggingConfig
	Server         ServerConfig
	Kafka          KafkaConfig
	Postgres       PostgresConfig
	MongoDB        MongoDBConfig
	Outbox         OutboxConfig
	Recovery       RecoveryConfig
	Saga           SagaConfig
	Reconciliation ReconciliationConfig
	WorkerPool     WorkerPoolConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

// KafkaConfig contains broker settings, consumer tuning and one topic per event kind.
type KafkaConfig struct {
	Brokers           string
	NumPartitions     int
	ReplicationFactor int
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration

	AccountGroup     string // consumer group of the account service
	TransactionGroup string // consumer group of the transaction service

	Topics   TopicConfig
	DLQTopic string
}

// TopicConfig names the topic every event type is published on.
type TopicConfig struct {
	TransferRequested string
	DebitAccount      string
	CreditAccount     string
	RevertDebit       string
	AccountDebited    string
	DebitFailed       string
	AccountCredited   string
	CreditFailed      string
	TransferFailed    string
}

// All returns every configured topic, used to bootstrap them on startup.
func (t TopicConfig) All() []string {
	return []string{
		t.TransferRequested,
		t.DebitAccount,
		t.CreditAccount,
		t.RevertDebit,
		t.AccountDebited,
		t.DebitFailed,
		t.AccountCredited,
		t.CreditFailed,
		t.TransferFailed,
	}
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// OutboxConfig controls the relay that republishes saga commands left in the outbox.
type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int
	GracePeriod      time.Duration // rows younger than this are left to the inline flush
}

// RecoveryConfig controls the ledger change-log sweep that re-announces unpublished outcomes.
type RecoveryConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int
	GracePeriod      time.Duration
}

// SagaConfig contains coordinator settings
type SagaConfig struct {
	Timeout         time.Duration // how long a transfer may stay open
	SweepInterval   time.Duration
	SweepBatchSize  int
	CorrelationMode string
}

// ReconciliationConfig bounds the holding area for events that match no saga.
type ReconciliationConfig struct {
	MaxEvents int64
	MaxBytes  int64
}

// WorkerPoolConfig contains worker pool configuration
type WorkerPoolConfig struct {
	Size  int // goroutines in the ants pool
	Lanes int // striped per-key lanes
}

// validate collects every invalid value and reports them together.
func (c *Config) validate() error {
	var validationErrors []string

	// Server
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Kafka
	if c.Kafka.Brokers == "" {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.NumPartitions <= 0 {
		validationErrors = append(validationErrors, "KAFKA_NUM_PARTITIONS must be greater than 0")
	}
	if c.Kafka.AccountGroup == "" {
		validationErrors = append(validationErrors, "KAFKA_ACCOUNT_GROUP is required")
	}
	if c.Kafka.TransactionGroup == "" {
		validationErrors = append(validationErrors, "KAFKA_TRANSACTION_GROUP is required")
	}
	if c.Kafka.MinBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	}
	if c.Kafka.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	}
	if c.Kafka.MaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	}
	if c.Kafka.DLQTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_DLQ_TOPIC is required")
	}
	seen := make(map[string]bool)
	for _, topic := range c.Kafka.Topics.All() {
		if topic == "" {
			validationErrors = append(validationErrors, "every KAFKA_TOPIC_* must be set")
			break
		}
		if seen[topic] {
			validationErrors = append(validationErrors, "KAFKA_TOPIC_* values must be distinct, "+topic+" is repeated")
			break
		}
		seen[topic] = true
	}

	// PostgreSQL
	if c.Postgres.URL == "" {
		validationErrors = append(validationErrors, "POSTGRES_URL is required")
	}
	if c.Postgres.MaxConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONNS must be greater than 0")
	}
	if c.Postgres.MinConns <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MIN_CONNS must be greater than 0")
	}
	if c.Postgres.ConnMaxLifetime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	}
	if c.Postgres.ConnMaxIdleTime <= 0 {
		validationErrors = append(validationErrors, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// MongoDB
	if c.MongoDB.URI == "" {
		validationErrors = append(validationErrors, "MONGO_URI is required")
	}
	if c.MongoDB.Database == "" {
		validationErrors = append(validationErrors, "MONGO_DATABASE is required")
	}
	if c.MongoDB.Timeout <= 0 {
		validationErrors = append(validationErrors, "MONGO_TIMEOUT must be greater than 0")
	}
	if c.MongoDB.MaxPoolSize <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_POOL_SIZE must be greater than 0")
	}
	if c.MongoDB.MaxConnIdleTime <= 0 {
		validationErrors = append(validationErrors, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0")
	}

	// Outbox relay
	if c.Outbox.PollingInterval <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_POLLING_INTERVAL must be greater than 0")
	}
	if c.Outbox.BatchSize <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_BATCH_SIZE must be greater than 0")
	}
	if c.Outbox.MaxRetryAttempts <= 0 {
		validationErrors = append(validationErrors, "OUTBOX_MAX_RETRY_ATTEMPTS must be greater than 0")
	}
	if c.Outbox.GracePeriod < 0 {
		validationErrors = append(validationErrors, "OUTBOX_GRACE_PERIOD must not be negative")
	}

	// Change-log recovery
	if c.Recovery.PollingInterval <= 0 {
		validationErrors = append(validationErrors, "RECOVERY_POLLING_INTERVAL must be greater than 0")
	}
	if c.Recovery.BatchSize <= 0 {
		validationErrors = append(validationErrors, "RECOVERY_BATCH_SIZE must be greater than 0")
	}
	if c.Recovery.MaxRetryAttempts <= 0 {
		validationErrors = append(validationErrors, "RECOVERY_MAX_RETRY_ATTEMPTS must be greater than 0")
	}
	if c.Recovery.GracePeriod < 0 {
		validationErrors = append(validationErrors, "RECOVERY_GRACE_PERIOD must not be negative")
	}

	// Saga
	if c.Saga.Timeout <= 0 {
		validationErrors = append(validationErrors, "SAGA_TIMEOUT must be greater than 0")
	}
	if c.Saga.SweepInterval <= 0 {
		validationErrors = append(validationErrors, "SAGA_SWEEP_INTERVAL must be greater than 0")
	}
	if c.Saga.SweepBatchSize <= 0 {
		validationErrors = append(validationErrors, "SAGA_SWEEP_BATCH_SIZE must be greater than 0")
	}
	if c.Saga.CorrelationMode != CorrelationModeExact && c.Saga.CorrelationMode != CorrelationModeLegacy {
		validationErrors = append(validationErrors, "SAGA_CORRELATION_MODE must be 'exact' or 'legacy'")
	}

	// Reconciliation
	if c.Reconciliation.MaxEvents <= 0 {
		validationErrors = append(validationErrors, "RECONCILIATION_MAX_EVENTS must be greater than 0")
	}
	if c.Reconciliation.MaxBytes <= 0 {
		validationErrors = append(validationErrors, "RECONCILIATION_MAX_BYTES must be greater than 0")
	}

	// Worker pool
	if c.WorkerPool.Size <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_SIZE must be greater than 0")
	}
	if c.WorkerPool.Lanes <= 0 {
		validationErrors = append(validationErrors, "WORKER_POOL_LANES must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
