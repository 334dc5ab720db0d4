// Package redis provides Redis persistence for lease exits, notifications,
// and the stakeholder directory. Records are JSON values; conditional lease
// exit updates run inside a WATCH/EXEC transaction keyed on the record.
package redis

import (
	"context"
	"fmt"
	"log/slog"

	redis "github.com/redis/go-redis/v9"

	"github.com/mbellotti/exitflow/pkg/persistence"
)

const keyPrefix = "exitflow"

// Persistence implements the persistence layer on Redis.
type Persistence struct {
	client        *redis.Client
	logger        *slog.Logger
	leaseExits    *LeaseExitRepository
	notifications *NotificationRepository
	directory     *DirectoryRepository
}

// NewPersistence connects to the Redis URL and returns a persistence layer.
func NewPersistence(ctx context.Context, logger *slog.Logger, redisURL string) (*Persistence, error) {
	options, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(options)

	err = client.Ping(ctx).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Persistence{
		client:        client,
		logger:        logger,
		leaseExits:    NewLeaseExitRepository(client, logger),
		notifications: NewNotificationRepository(client, logger),
		directory:     NewDirectoryRepository(client, logger),
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

// HealthCheck verifies the Redis connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.client.Ping(ctx).Err()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}

// Close closes the Redis connection.
func (p *Persistence) Close(_ context.Context) error {
	err := p.client.Close()
	if err != nil {
		return fmt.Errorf("failed to close redis connection: %w", err)
	}

	return nil
}
