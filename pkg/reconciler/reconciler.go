// Package reconciler runs the periodic jobs that keep lease exits moving:
// approval reminders, exit-date deadline alerts, and redelivery of failed
// notifications. Jobs share the store with the request path and rely on the
// dispatcher's per-recipient recording; a duplicate reminder from an
// overlapping tick is tolerable, a lost one is not.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mbellotti/exitflow/pkg/models"
	"github.com/mbellotti/exitflow/pkg/notification"
	"github.com/mbellotti/exitflow/pkg/persistence"
)

// Config carries the reconciler schedules and thresholds. Zero values fall
// back to the defaults.
type Config struct {
	// ReminderSchedule is the cron expression for the pending-approval
	// reminder job.
	ReminderSchedule string
	// DeadlineSchedule is the cron expression for the exit-date alert job.
	DeadlineSchedule string
	// ResendSchedule is the cron expression for the failed-notification
	// redelivery job.
	ResendSchedule string

	// ReminderMinPendingAge is how long a lease exit must sit untouched in
	// pending approval before reminders start.
	ReminderMinPendingAge time.Duration
	// DeadlineWindow is how far ahead of the exit date alerts begin.
	DeadlineWindow time.Duration
}

// DefaultConfig returns the reconciler defaults: hourly reminders and
// deadline checks, daily redelivery.
func DefaultConfig() Config {
	return Config{
		ReminderSchedule:      "@hourly",
		DeadlineSchedule:      "@hourly",
		ResendSchedule:        "@daily",
		ReminderMinPendingAge: 72 * time.Hour,
		DeadlineWindow:        7 * 24 * time.Hour,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()

	if c.ReminderSchedule == "" {
		c.ReminderSchedule = defaults.ReminderSchedule
	}

	if c.DeadlineSchedule == "" {
		c.DeadlineSchedule = defaults.DeadlineSchedule
	}

	if c.ResendSchedule == "" {
		c.ResendSchedule = defaults.ResendSchedule
	}

	if c.ReminderMinPendingAge <= 0 {
		c.ReminderMinPendingAge = defaults.ReminderMinPendingAge
	}

	if c.DeadlineWindow <= 0 {
		c.DeadlineWindow = defaults.DeadlineWindow
	}

	return c
}

// Reconciler schedules and runs the periodic jobs.
type Reconciler struct {
	leaseExits persistence.LeaseExitRepository
	dispatcher *notification.Dispatcher
	config     Config
	cron       *cron.Cron
	logger     *slog.Logger
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewReconciler creates a periodic reconciler.
func NewReconciler(
	leaseExits persistence.LeaseExitRepository,
	dispatcher *notification.Dispatcher,
	config Config,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		leaseExits: leaseExits,
		dispatcher: dispatcher,
		config:     config.withDefaults(),
		logger:     logger.With("module", "reconciler"),
	}
}

// Start registers the three jobs and starts the scheduler. Overlapping runs
// of the same job are skipped rather than stacked.
func (r *Reconciler) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	jobs := []struct {
		name     string
		schedule string
		run      func(context.Context) error
	}{
		{"approval_reminders", r.config.ReminderSchedule, r.RunReminders},
		{"deadline_alerts", r.config.DeadlineSchedule, r.RunDeadlineAlerts},
		{"resend_failed", r.config.ResendSchedule, r.RunResendFailed},
	}

	for _, job := range jobs {
		logger := r.logger.With("job", job.name)
		run := job.run

		_, err := r.cron.AddFunc(job.schedule, func() {
			err := run(r.ctx)
			if err != nil {
				logger.Error("Reconciler job finished with errors", "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("failed to register %s job: %w", job.name, err)
		}

		logger.Info("Registered reconciler job", "schedule", job.schedule)
	}

	r.cron.Start()
	r.logger.Info("Reconciler started")

	return nil
}

// Stop halts the scheduler and waits for running jobs to finish.
func (r *Reconciler) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	if r.cron == nil {
		return nil
	}

	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	r.logger.Info("Reconciler stopped")

	return nil
}

// RunReminders sends a reminder to every role still holding a pending
// decision on lease exits that have sat in pending approval beyond the
// minimum age. Per-item failures are collected; the batch always finishes.
func (r *Reconciler) RunReminders(ctx context.Context) error {
	pending, err := r.leaseExits.ListByStatus(ctx, models.LeaseExitStatusPendingApproval)
	if err != nil {
		return fmt.Errorf("failed to list pending approvals: %w", err)
	}

	var (
		errs      []error
		reminded  int
		threshold = time.Now().UTC().Add(-r.config.ReminderMinPendingAge)
	)

	for _, leaseExit := range pending {
		if leaseExit.UpdatedAt.After(threshold) {
			continue
		}

		roles := pendingRoles(leaseExit)
		if len(roles) == 0 {
			continue
		}

		days := int(time.Since(leaseExit.UpdatedAt).Hours() / 24)

		_, err := r.dispatcher.Dispatch(ctx, leaseExit, roles, models.NotificationReminder,
			map[string]string{"days_pending": strconv.Itoa(days)})
		if err != nil {
			errs = append(errs, fmt.Errorf("lease exit %s: %w", leaseExit.ID, err))

			continue
		}

		reminded++
	}

	r.logger.Info("Reminder pass finished",
		"pending_found", len(pending), "reminded", reminded, "errors", len(errs))

	return errors.Join(errs...)
}

// RunDeadlineAlerts alerts every role about lease exits whose exit date
// falls inside the alert window and is not already past.
func (r *Reconciler) RunDeadlineAlerts(ctx context.Context) error {
	active, err := r.leaseExits.ListByStatus(ctx, models.ActiveStatuses()...)
	if err != nil {
		return fmt.Errorf("failed to list active lease exits: %w", err)
	}

	var (
		errs    []error
		alerted int
		now     = time.Now().UTC()
	)

	for _, leaseExit := range active {
		if leaseExit.ExitDate == nil {
			continue
		}

		remaining := leaseExit.ExitDate.Sub(now)
		if remaining < 0 || remaining > r.config.DeadlineWindow {
			continue
		}

		days := int(remaining.Hours() / 24)

		_, err := r.dispatcher.Dispatch(ctx, leaseExit, models.AllRoles(), models.NotificationDeadline,
			map[string]string{"days_remaining": strconv.Itoa(days)})
		if err != nil {
			errs = append(errs, fmt.Errorf("lease exit %s: %w", leaseExit.ID, err))

			continue
		}

		alerted++
	}

	r.logger.Info("Deadline pass finished",
		"active_found", len(active), "alerted", alerted, "errors", len(errs))

	return errors.Join(errs...)
}

// RunResendFailed re-attempts delivery of every failed notification.
func (r *Reconciler) RunResendFailed(ctx context.Context) error {
	_, err := r.dispatcher.ResendFailed(ctx)
	if err != nil {
		return fmt.Errorf("resend pass failed: %w", err)
	}

	return nil
}

func pendingRoles(leaseExit *models.LeaseExit) []models.Role {
	roles := make([]models.Role, 0, len(leaseExit.ApprovalChain))

	for _, record := range leaseExit.ApprovalChain {
		if record.Decision == models.DecisionPending {
			roles = append(roles, record.Role)
		}
	}

	return roles
}
