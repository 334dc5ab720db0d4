package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	redis "github.com/redis/go-redis/v9"

	"github.com/mbellotti/exitflow/pkg/models"
)

// DirectoryRepository stores directory entries as JSON values with one index
// set per role.
type DirectoryRepository struct {
	client *redis.Client
	logger *slog.Logger
}

// NewDirectoryRepository creates a new directory repository.
func NewDirectoryRepository(client *redis.Client, logger *slog.Logger) *DirectoryRepository {
	return &DirectoryRepository{client: client, logger: logger}
}

func userKey(id string) string {
	return keyPrefix + ":user:" + id
}

func userRoleIndexKey(role models.Role) string {
	return keyPrefix + ":users:role:" + string(role)
}

// UsersByRole returns the active users holding a role.
func (r *DirectoryRepository) UsersByRole(ctx context.Context, role models.Role) ([]*models.User, error) {
	ids, err := r.client.SMembers(ctx, userRoleIndexKey(role)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list user ids: %w", err)
	}

	users := make([]*models.User, 0, len(ids))

	for _, id := range ids {
		data, err := r.client.Get(ctx, userKey(id)).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}

			return nil, fmt.Errorf("failed to load user: %w", err)
		}

		var user models.User

		err = json.Unmarshal(data, &user)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal user: %w", err)
		}

		if !user.IsActive {
			continue
		}

		users = append(users, &user)
	}

	sort.Slice(users, func(i, j int) bool {
		return users[i].Email < users[j].Email
	})

	return users, nil
}

// SaveUser inserts or updates a directory entry. A role change moves the
// entry between role index sets.
func (r *DirectoryRepository) SaveUser(ctx context.Context, user *models.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	previousRole := models.Role("")

	existing, err := r.client.Get(ctx, userKey(user.ID)).Bytes()
	if err == nil {
		var current models.User

		err = json.Unmarshal(existing, &current)
		if err == nil {
			previousRole = current.Role
		}
	} else if !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to load user: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, userKey(user.ID), data, 0)

		if previousRole != "" && previousRole != user.Role {
			pipe.SRem(ctx, userRoleIndexKey(previousRole), user.ID)
		}

		pipe.SAdd(ctx, userRoleIndexKey(user.Role), user.ID)

		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}

	return nil
}
