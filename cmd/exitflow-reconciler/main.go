// Package main provides the Exitflow periodic reconciler service.
package main

import (
	"context"
	"os"
	"time"

	cli "github.com/urfave/cli/v3"

	"github.com/mbellotti/exitflow/pkg/cmd"
	"github.com/mbellotti/exitflow/pkg/log"
	"github.com/mbellotti/exitflow/pkg/notification"
	"github.com/mbellotti/exitflow/pkg/reconciler"
)

func main() {
	command := &cli.Command{
		Name:                  "exitflow-reconciler",
		Usage:                 "Run the periodic reminder, deadline, and redelivery jobs",
		EnableShellCompletion: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:    "reminder-schedule",
				Usage:   "Cron expression for the approval reminder job",
				Value:   "@hourly",
				Sources: cli.EnvVars("REMINDER_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "deadline-schedule",
				Usage:   "Cron expression for the exit-date alert job",
				Value:   "@hourly",
				Sources: cli.EnvVars("DEADLINE_SCHEDULE"),
			},
			&cli.StringFlag{
				Name:    "resend-schedule",
				Usage:   "Cron expression for the failed-notification redelivery job",
				Value:   "@daily",
				Sources: cli.EnvVars("RESEND_SCHEDULE"),
			},
			&cli.DurationFlag{
				Name:    "reminder-min-pending-age",
				Usage:   "How long a lease exit sits in pending approval before reminders start",
				Value:   72 * time.Hour,
				Sources: cli.EnvVars("REMINDER_MIN_PENDING_AGE"),
			},
			&cli.DurationFlag{
				Name:    "deadline-window",
				Usage:   "How far ahead of the exit date alerts begin",
				Value:   7 * 24 * time.Hour,
				Sources: cli.EnvVars("DEADLINE_WINDOW"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			logger := log.WithModule("exitflow-reconciler")

			logger.InfoContext(ctx, "Initializing Exitflow Reconciler")

			store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
			if err != nil {
				return err
			}

			defer func() {
				err := store.Close(ctx)
				if err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			dispatcher := notification.NewDispatcher(
				store.NotificationRepository(),
				store.DirectoryRepository(),
				notification.NewLogTransport(logger),
				notification.DefaultConfig(),
				logger,
			)

			jobs := reconciler.NewReconciler(
				store.LeaseExitRepository(),
				dispatcher,
				reconciler.Config{
					ReminderSchedule:      command.String("reminder-schedule"),
					DeadlineSchedule:      command.String("deadline-schedule"),
					ResendSchedule:        command.String("resend-schedule"),
					ReminderMinPendingAge: command.Duration("reminder-min-pending-age"),
					DeadlineWindow:        command.Duration("deadline-window"),
				},
				logger,
			)

			service := NewService(jobs, logger)

			return service.Start(ctx)
		},
	}

	err := command.Run(context.Background(), os.Args)
	if err != nil {
		panic(err)
	}
}
