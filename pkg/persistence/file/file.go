// Package file provides file-based persistence for lease exits, notifications,
// and the stakeholder directory. It is intended for development and tests.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/mbellotti/exitflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the file system.
type Persistence struct {
	root             string
	leaseExitRepo    *LeaseExitRepository
	notificationRepo *NotificationRepository
	directoryRepo    *DirectoryRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:             cleanRoot,
		leaseExitRepo:    NewLeaseExitRepository(cleanRoot),
		notificationRepo: NewNotificationRepository(cleanRoot),
		directoryRepo:    NewDirectoryRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// LeaseExitRepository returns the lease exit repository implementation for file persistence.
func (fp *Persistence) LeaseExitRepository() persistence.LeaseExitRepository {
	return fp.leaseExitRepo
}

// NotificationRepository returns the notification repository implementation for file persistence.
func (fp *Persistence) NotificationRepository() persistence.NotificationRepository {
	return fp.notificationRepo
}

// DirectoryRepository returns the directory repository implementation for file persistence.
func (fp *Persistence) DirectoryRepository() persistence.DirectoryRepository {
	return fp.directoryRepo
}
