package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/mbellotti/exitflow/pkg/models"
	"github.com/mbellotti/exitflow/pkg/persistence"
)

// NotificationRepository stores notifications as JSON values with secondary
// index sets per lease exit and per delivery status.
type NotificationRepository struct {
	client *redis.Client
	logger *slog.Logger
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(client *redis.Client, logger *slog.Logger) *NotificationRepository {
	return &NotificationRepository{client: client, logger: logger}
}

func notificationKey(id string) string {
	return keyPrefix + ":notification:" + id
}

func notificationLeaseExitIndexKey(leaseExitID string) string {
	return keyPrefix + ":notifications:lease_exit:" + leaseExitID
}

func notificationStatusIndexKey(status models.NotificationStatus) string {
	return keyPrefix + ":notifications:status:" + string(status)
}

// Create inserts a new notification record and indexes it.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, notificationKey(notification.ID), data, 0)
		pipe.SAdd(ctx, notificationLeaseExitIndexKey(notification.LeaseExitID), notification.ID)
		pipe.SAdd(ctx, notificationStatusIndexKey(notification.Status), notification.ID)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}

	return nil
}

// UpdateStatus records a delivery outcome and moves the record between
// status index sets.
func (r *NotificationRepository) UpdateStatus(ctx context.Context, id string, status models.NotificationStatus, sentErr string) error {
	notification, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if notification == nil {
		return fmt.Errorf("notification %s: %w", id, persistence.ErrNotificationNotFound)
	}

	previousStatus := notification.Status
	notification.Status = status
	notification.Error = sentErr

	if status == models.NotificationStatusSent {
		now := time.Now().UTC()
		notification.SentAt = &now
	}

	data, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, notificationKey(id), data, 0)
		pipe.SRem(ctx, notificationStatusIndexKey(previousStatus), id)
		pipe.SAdd(ctx, notificationStatusIndexKey(status), id)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to update notification status: %w", err)
	}

	return nil
}

// GetByID returns a notification by id, or nil when absent.
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	data, err := r.client.Get(ctx, notificationKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to load notification: %w", err)
	}

	var notification models.Notification

	err = json.Unmarshal(data, &notification)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal notification: %w", err)
	}

	return &notification, nil
}

// ListByLeaseExit returns every notification recorded for a lease exit.
func (r *NotificationRepository) ListByLeaseExit(ctx context.Context, leaseExitID string) ([]*models.Notification, error) {
	return r.listByIndex(ctx, notificationLeaseExitIndexKey(leaseExitID))
}

// ListByStatus returns every notification in the given delivery status.
func (r *NotificationRepository) ListByStatus(ctx context.Context, status models.NotificationStatus) ([]*models.Notification, error) {
	return r.listByIndex(ctx, notificationStatusIndexKey(status))
}

func (r *NotificationRepository) listByIndex(ctx context.Context, indexKey string) ([]*models.Notification, error) {
	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list notification ids: %w", err)
	}

	notifications := make([]*models.Notification, 0, len(ids))

	for _, id := range ids {
		notification, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		if notification == nil {
			continue
		}

		notifications = append(notifications, notification)
	}

	sort.Slice(notifications, func(i, j int) bool {
		return notifications[i].CreatedAt.Before(notifications[j].CreatedAt)
	})

	return notifications, nil
}
