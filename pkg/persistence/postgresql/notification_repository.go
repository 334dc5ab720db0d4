package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mbellotti/exitflow/pkg/models"
	"github.com/mbellotti/exitflow/pkg/persistence"
)

const notificationColumns = `
	id
  , lease_exit_id
  , recipient_role
  , recipient_email
  , subject
  , message
  , type
  , status
  , error
  , created_at
  , sent_at
`

// NotificationRepository handles the append-only notification collection.
type NotificationRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewNotificationRepository creates a new notification repository.
func NewNotificationRepository(db *sql.DB, logger *slog.Logger) *NotificationRepository {
	return &NotificationRepository{db: db, logger: logger}
}

// Create inserts a new notification record.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		notification.ID, notification.LeaseExitID, notification.RecipientRole,
		notification.RecipientEmail, notification.Subject, notification.Message,
		notification.Type, notification.Status, notification.Error,
		notification.CreatedAt, notification.SentAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert notification: %w", err)
	}

	return nil
}

// UpdateStatus records a delivery outcome. A sent status stamps sent_at.
func (r *NotificationRepository) UpdateStatus(ctx context.Context, id string, status models.NotificationStatus, sentErr string) error {
	query := `
		UPDATE notifications SET
			status = $2
		  , error = $3
		  , sent_at = CASE WHEN $2 = 'sent' THEN NOW() ELSE sent_at END
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, status, sentErr)
	if err != nil {
		return fmt.Errorf("failed to update notification status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}

	if affected == 0 {
		return fmt.Errorf("notification %s: %w", id, persistence.ErrNotificationNotFound)
	}

	return nil
}

// GetByID returns a notification by id, or nil when absent.
func (r *NotificationRepository) GetByID(ctx context.Context, id string) (*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`

	notification, err := scanNotification(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan notification: %w", err)
	}

	return notification, nil
}

// ListByLeaseExit returns every notification recorded for a lease exit.
func (r *NotificationRepository) ListByLeaseExit(ctx context.Context, leaseExitID string) ([]*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE lease_exit_id = $1 ORDER BY created_at`

	return r.queryNotifications(ctx, query, leaseExitID)
}

// ListByStatus returns every notification in the given delivery status.
func (r *NotificationRepository) ListByStatus(ctx context.Context, status models.NotificationStatus) ([]*models.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE status = $1 ORDER BY created_at`

	return r.queryNotifications(ctx, query, status)
}

func (r *NotificationRepository) queryNotifications(ctx context.Context, query string, args ...any) ([]*models.Notification, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	notifications := make([]*models.Notification, 0)

	for rows.Next() {
		notification, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}

		notifications = append(notifications, notification)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return notifications, nil
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	var (
		notification models.Notification
		sentAt       sql.NullTime
	)

	err := row.Scan(
		&notification.ID, &notification.LeaseExitID, &notification.RecipientRole,
		&notification.RecipientEmail, &notification.Subject, &notification.Message,
		&notification.Type, &notification.Status, &notification.Error,
		&notification.CreatedAt, &sentAt,
	)
	if err != nil {
		return nil, err
	}

	if sentAt.Valid {
		utc := sentAt.Time.UTC()
		notification.SentAt = &utc
	}

	return &notification, nil
}
