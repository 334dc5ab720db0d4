// Package postgresql provides PostgreSQL persistence for lease exits,
// notifications, and the stakeholder directory.
package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	// Registers the postgres driver.
	_ "github.com/lib/pq"

	"github.com/mbellotti/exitflow/pkg/persistence"
	"github.com/mbellotti/exitflow/pkg/persistence/sqlbase"
)

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db            *sql.DB
	logger        *slog.Logger
	leaseExits    *LeaseExitRepository
	notifications *NotificationRepository
	directory     *DirectoryRepository
}

// NewPersistence connects, runs migrations, and returns a PostgreSQL
// persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	migrationManager := sqlbase.NewMigrationManager(logger, database, migrations())

	err = migrationManager.RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Persistence{
		db:            database,
		logger:        logger,
		leaseExits:    NewLeaseExitRepository(database, logger),
		notifications: NewNotificationRepository(database, logger),
		directory:     NewDirectoryRepository(database, logger),
	}, nil
}

// LeaseExitRepository returns the lease exit repository.
func (p *Persistence) LeaseExitRepository() persistence.LeaseExitRepository {
	return p.leaseExits
}

// NotificationRepository returns the notification repository.
func (p *Persistence) NotificationRepository() persistence.NotificationRepository {
	return p.notifications
}

// DirectoryRepository returns the stakeholder directory repository.
func (p *Persistence) DirectoryRepository() persistence.DirectoryRepository {
	return p.directory
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (p *Persistence) Close(ctx context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}
