// Package persistence provides the data storage abstraction for lease exits,
// notifications, and the stakeholder directory.
package persistence

import (
	"context"

	"github.com/mbellotti/exitflow/pkg/models"
)

// LeaseExitRepository stores lease exit workflow instances.
//
// Update is conditional: it only writes when the stored revision matches the
// revision the caller read, and returns ErrRevisionConflict otherwise. This
// is the sole mutation path, so two concurrent writers can never silently
// drop each other's changes.
type LeaseExitRepository interface {
	Create(ctx context.Context, leaseExit *models.LeaseExit) error
	GetByID(ctx context.Context, id string) (*models.LeaseExit, error)
	Update(ctx context.Context, leaseExit *models.LeaseExit) error
	List(ctx context.Context) ([]*models.LeaseExit, error)
	ListByStatus(ctx context.Context, statuses ...models.LeaseExitStatus) ([]*models.LeaseExit, error)
}

// NotificationRepository stores the append-only notification collection.
type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	UpdateStatus(ctx context.Context, id string, status models.NotificationStatus, sentErr string) error
	GetByID(ctx context.Context, id string) (*models.Notification, error)
	ListByLeaseExit(ctx context.Context, leaseExitID string) ([]*models.Notification, error)
	ListByStatus(ctx context.Context, status models.NotificationStatus) ([]*models.Notification, error)
}

// DirectoryRepository resolves stakeholder roles to reachable users.
type DirectoryRepository interface {
	UsersByRole(ctx context.Context, role models.Role) ([]*models.User, error)
	SaveUser(ctx context.Context, user *models.User) error
}

// Persistence bundles the repositories a deployment provides.
type Persistence interface {
	LeaseExitRepository() LeaseExitRepository
	NotificationRepository() NotificationRepository
	DirectoryRepository() DirectoryRepository
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
