package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/mbellotti/exitflow/pkg/models"
	"github.com/mbellotti/exitflow/pkg/persistence"
)

// SeedDirectory inserts one placeholder directory entry per stakeholder role
// that currently resolves to nobody, so fresh development environments get a
// working fan-out out of the box.
func SeedDirectory(ctx context.Context, store persistence.Persistence, domain string, logger *slog.Logger) error {
	directory := store.DirectoryRepository()

	for _, role := range models.AllRoles() {
		users, err := directory.UsersByRole(ctx, role)
		if err != nil {
			return fmt.Errorf("failed to check directory for role %s: %w", role, err)
		}

		if len(users) > 0 {
			continue
		}

		user := &models.User{
			ID:       uuid.New().String(),
			Email:    fmt.Sprintf("%s@%s", role, domain),
			FullName: fmt.Sprintf("%s team", role),
			Role:     role,
			IsActive: true,
		}

		err = directory.SaveUser(ctx, user)
		if err != nil {
			return fmt.Errorf("failed to seed user for role %s: %w", role, err)
		}

		logger.InfoContext(ctx, "Seeded directory entry", "role", role, "email", user.Email)
	}

	return nil
}
