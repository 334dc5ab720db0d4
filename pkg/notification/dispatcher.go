// Package notification fans messages out to every user holding a stakeholder
// role, records one notification per resolved recipient, and tracks delivery
// per recipient. Partial failure is normal: one recipient failing never
// blocks or rolls back another's delivery.
package notification

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mbellotti/exitflow/pkg/models"
	"github.com/mbellotti/exitflow/pkg/persistence"
)

// Config carries the dispatcher's explicit settings.
type Config struct {
	// SendTimeout bounds each individual delivery attempt.
	SendTimeout time.Duration
}

// DefaultConfig returns the dispatcher defaults.
func DefaultConfig() Config {
	return Config{SendTimeout: 10 * time.Second}
}

// Dispatcher resolves roles to recipients and delivers notifications.
type Dispatcher struct {
	notifications persistence.NotificationRepository
	directory     persistence.DirectoryRepository
	transport     Transport
	config        Config
	logger        *slog.Logger
}

// NewDispatcher creates a notification dispatcher.
func NewDispatcher(
	notifications persistence.NotificationRepository,
	directory persistence.DirectoryRepository,
	transport Transport,
	config Config,
	logger *slog.Logger,
) *Dispatcher {
	if config.SendTimeout <= 0 {
		config.SendTimeout = DefaultConfig().SendTimeout
	}

	return &Dispatcher{
		notifications: notifications,
		directory:     directory,
		transport:     transport,
		config:        config,
		logger:        logger.With("module", "notification_dispatcher"),
	}
}

// Dispatch renders the template for notificationType and fans it out to
// every user holding one of the given roles. One Notification is recorded
// per (role, recipient) pair; a role resolving to zero recipients still
// records a sentinel notification (status failed, empty address) so the
// fan-out stays auditable. It returns every notification created, each with
// its final delivery status.
func (d *Dispatcher) Dispatch(
	ctx context.Context,
	leaseExit *models.LeaseExit,
	roles []models.Role,
	notificationType models.NotificationType,
	extra map[string]string,
) ([]*models.Notification, error) {
	subject, body := Render(notificationType, leaseExit, extra)

	notifications := make([]*models.Notification, 0, len(roles))

	for _, role := range roles {
		users, err := d.directory.UsersByRole(ctx, role)
		if err != nil {
			d.logger.ErrorContext(ctx, "Directory lookup failed", "role", role, "error", err)

			users = nil
		}

		if len(users) == 0 {
			sentinel := d.record(ctx, leaseExit.ID, role, "", subject, body, notificationType)
			if sentinel != nil {
				d.finish(ctx, sentinel, models.NotificationStatusFailed, "no recipients resolved for role")
				notifications = append(notifications, sentinel)
			}

			continue
		}

		for _, user := range users {
			notification := d.record(ctx, leaseExit.ID, role, user.Email, subject, body, notificationType)
			if notification == nil {
				continue
			}

			d.deliver(ctx, notification)
			notifications = append(notifications, notification)
		}
	}

	return notifications, nil
}

// ResendFailed re-attempts delivery for every notification currently marked
// failed and updates each status in place. Already-sent notifications are
// untouched, so repeated calls are safe. Sentinel records without an
// address stay failed.
func (d *Dispatcher) ResendFailed(ctx context.Context) ([]*models.Notification, error) {
	failed, err := d.notifications.ListByStatus(ctx, models.NotificationStatusFailed)
	if err != nil {
		return nil, err
	}

	retried := make([]*models.Notification, 0, len(failed))

	for _, notification := range failed {
		if notification.RecipientEmail == "" {
			continue
		}

		d.deliver(ctx, notification)
		retried = append(retried, notification)
	}

	d.logger.InfoContext(ctx, "Resend pass finished", "failed_found", len(failed), "retried", len(retried))

	return retried, nil
}

func (d *Dispatcher) record(
	ctx context.Context,
	leaseExitID string,
	role models.Role,
	email, subject, body string,
	notificationType models.NotificationType,
) *models.Notification {
	notification := &models.Notification{
		ID:             uuid.New().String(),
		LeaseExitID:    leaseExitID,
		RecipientRole:  role,
		RecipientEmail: email,
		Subject:        subject,
		Message:        body,
		Type:           notificationType,
		Status:         models.NotificationStatusPending,
		CreatedAt:      time.Now().UTC(),
	}

	err := d.notifications.Create(ctx, notification)
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to record notification", "lease_exit_id", leaseExitID, "role", role, "error", err)

		return nil
	}

	return notification
}

func (d *Dispatcher) deliver(ctx context.Context, notification *models.Notification) {
	sendCtx, cancel := context.WithTimeout(ctx, d.config.SendTimeout)
	defer cancel()

	err := d.transport.Send(sendCtx, notification.RecipientEmail, notification.Subject, notification.Message)
	if err != nil {
		d.logger.WarnContext(ctx, "Notification delivery failed",
			"notification_id", notification.ID, "recipient", notification.RecipientEmail, "error", err)
		d.finish(ctx, notification, models.NotificationStatusFailed, err.Error())

		return
	}

	d.finish(ctx, notification, models.NotificationStatusSent, "")
}

func (d *Dispatcher) finish(ctx context.Context, notification *models.Notification, status models.NotificationStatus, sendErr string) {
	notification.Status = status
	notification.Error = sendErr

	if status == models.NotificationStatusSent {
		now := time.Now().UTC()
		notification.SentAt = &now
	}

	err := d.notifications.UpdateStatus(ctx, notification.ID, status, sendErr)
	if err != nil {
		d.logger.ErrorContext(ctx, "Failed to update notification status", "notification_id", notification.ID, "error", err)
	}
}
