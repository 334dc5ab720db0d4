package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/mbellotti/exitflow/pkg/models"
)

// DirectoryRepository resolves stakeholder roles to users.
type DirectoryRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewDirectoryRepository creates a new directory repository.
func NewDirectoryRepository(db *sql.DB, logger *slog.Logger) *DirectoryRepository {
	return &DirectoryRepository{db: db, logger: logger}
}

// UsersByRole returns the active users holding a role.
func (r *DirectoryRepository) UsersByRole(ctx context.Context, role models.Role) ([]*models.User, error) {
	query := `
		SELECT id, email, full_name, role, is_active
		FROM users
		WHERE role = $1 AND is_active
		ORDER BY email
	`

	rows, err := r.db.QueryContext(ctx, query, role)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	users := make([]*models.User, 0)

	for rows.Next() {
		var user models.User

		err := rows.Scan(&user.ID, &user.Email, &user.FullName, &user.Role, &user.IsActive)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}

		users = append(users, &user)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return users, nil
}

// SaveUser inserts or updates a directory entry.
func (r *DirectoryRepository) SaveUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, email, full_name, role, is_active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email
		  , full_name = EXCLUDED.full_name
		  , role = EXCLUDED.role
		  , is_active = EXCLUDED.is_active
	`

	_, err := r.db.ExecContext(ctx, query, user.ID, user.Email, user.FullName, user.Role, user.IsActive)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	return nil
}
