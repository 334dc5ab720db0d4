package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/mbellotti/exitflow/pkg/models"
	"github.com/mbellotti/exitflow/pkg/persistence"
)

// NotificationRepository handles notification file operations.
type NotificationRepository struct {
	root  string
	mutex sync.Mutex
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(root string) *NotificationRepository {
	return &NotificationRepository{root: root}
}

// Create appends a notification record.
func (r *NotificationRepository) Create(_ context.Context, notification *models.Notification) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}

	return r.write(notification)
}

// UpdateStatus updates a notification's delivery status in place.
func (r *NotificationRepository) UpdateStatus(ctx context.Context, id string, status models.NotificationStatus, sentErr string) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	notification, err := r.read(id)
	if err != nil {
		return err
	}

	if notification == nil {
		return fmt.Errorf("update status for %s: %w", id, persistence.ErrNotificationNotFound)
	}

	notification.Status = status
	notification.Error = sentErr

	if status == models.NotificationStatusSent {
		now := time.Now().UTC()
		notification.SentAt = &now
	}

	return r.write(notification)
}

// GetByID retrieves a notification by its ID, or nil when absent.
func (r *NotificationRepository) GetByID(_ context.Context, id string) (*models.Notification, error) {
	return r.read(id)
}

// ListByLeaseExit returns all notifications recorded for a lease exit.
func (r *NotificationRepository) ListByLeaseExit(ctx context.Context, leaseExitID string) ([]*models.Notification, error) {
	return r.list(func(n *models.Notification) bool {
		return n.LeaseExitID == leaseExitID
	})
}

// ListByStatus returns all notifications with the given delivery status.
func (r *NotificationRepository) ListByStatus(ctx context.Context, status models.NotificationStatus) ([]*models.Notification, error) {
	return r.list(func(n *models.Notification) bool {
		return n.Status == status
	})
}

func (r *NotificationRepository) list(keep func(*models.Notification) bool) ([]*models.Notification, error) {
	dir := path.Join(r.root, "notifications")
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return []*models.Notification{}, nil
	}

	jsonFiles, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list notification files: %w", err)
	}

	notifications := make([]*models.Notification, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		notification, err := r.read(file[:len(file)-5])
		if err != nil {
			return nil, err
		}

		if notification != nil && keep(notification) {
			notifications = append(notifications, notification)
		}
	}

	return notifications, nil
}

func (r *NotificationRepository) filePath(id string) string {
	return filepath.Clean(path.Join(r.root, "notifications", id+".json"))
}

func (r *NotificationRepository) read(id string) (*models.Notification, error) {
	body, err := os.ReadFile(r.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch notification %s: %w", id, err)
	}

	var notification models.Notification

	err = json.Unmarshal(body, &notification)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification %s: %w", id, err)
	}

	return &notification, nil
}

func (r *NotificationRepository) write(notification *models.Notification) error {
	err := os.MkdirAll(path.Join(r.root, "notifications"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create notifications directory: %w", err)
	}

	data, err := json.MarshalIndent(notification, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal notification %s: %w", notification.ID, err)
	}

	return os.WriteFile(r.filePath(notification.ID), data, 0600)
}
