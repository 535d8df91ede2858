package persistence

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// ErrDirtySchema is returned when a previous migration stopped half way. The services
// refuse to start on such a schema; an operator has to force the version first.
var ErrDirtySchema = errors.New("database schema is dirty")

// migrator is the part of *migrate.Migrate the saga stores need at startup
type migrator interface {
	Up() error
	Version() (uint, bool, error)
	Close() (error, error)
}

// RunMigrations brings the account, change log, saga and outbox tables to the latest
// version found under migrationsPath.
func RunMigrations(logger *slog.Logger, databaseURL, migrationsPath string) error {
	if migrationsPath == "" {
		return errors.New("migrations path cannot be empty")
	}
	if databaseURL == "" {
		return errors.New("database URL cannot be empty")
	}

	m, err := migrate.New(migrationSource(migrationsPath), databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	return applyMigrations(logger, m)
}

func applyMigrations(logger *slog.Logger, m migrator) (err error) {
	defer func() {
		sourceErr, dbErr := m.Close()
		if err == nil && sourceErr != nil {
			err = fmt.Errorf("migration source error: %w", sourceErr)
		}
		if err == nil && dbErr != nil {
			err = fmt.Errorf("migration database error: %w", dbErr)
		}
	}()

	if version, dirty, vErr := m.Version(); vErr == nil && dirty {
		return fmt.Errorf("%w at version %d", ErrDirtySchema, version)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, _, vErr := m.Version()
	if vErr != nil && !errors.Is(vErr, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read schema version: %w", vErr)
	}
	logger.Info("Schema migrations applied", "version", version)

	return nil
}

// migrationSource turns a plain directory into a file:// source URL.
func migrationSource(path string) string {
	if strings.Contains(path, "://") {
		return path
	}
	return "file://" + path
}
