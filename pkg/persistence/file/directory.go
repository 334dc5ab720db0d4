package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/mbellotti/exitflow/pkg/models"
)

// DirectoryRepository resolves roles to users from JSON files. Inactive
// users are never returned.
type DirectoryRepository struct {
	root string
}

// NewDirectoryRepository creates a new directory repository.
func NewDirectoryRepository(root string) *DirectoryRepository {
	return &DirectoryRepository{root: root}
}

// SaveUser stores a directory entry.
func (r *DirectoryRepository) SaveUser(_ context.Context, user *models.User) error {
	err := os.MkdirAll(path.Join(r.root, "users"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create users directory: %w", err)
	}

	data, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal user %s: %w", user.ID, err)
	}

	filePath := filepath.Clean(path.Join(r.root, "users", user.ID+".json"))

	return os.WriteFile(filePath, data, 0600)
}

// UsersByRole returns every active user holding the given role.
func (r *DirectoryRepository) UsersByRole(_ context.Context, role models.Role) ([]*models.User, error) {
	dir := path.Join(r.root, "users")
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return []*models.User{}, nil
	}

	jsonFiles, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list user files: %w", err)
	}

	users := make([]*models.User, 0)

	for _, file := range jsonFiles {
		body, err := os.ReadFile(filepath.Clean(path.Join(dir, file)))
		if err != nil {
			return nil, fmt.Errorf("failed to read user file %s: %w", file, err)
		}

		var user models.User

		err = json.Unmarshal(body, &user)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal user file %s: %w", file, err)
		}

		if user.Role == role && user.IsActive {
			users = append(users, &user)
		}
	}

	return users, nil
}
