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

// LeaseExitRepository stores lease exits as JSON values. Conditional updates
// WATCH the record key: if any writer touches it between the read and the
// EXEC, the transaction aborts and the caller sees a revision conflict.
type LeaseExitRepository struct {
	client *redis.Client
	logger *slog.Logger
}

// NewLeaseExitRepository creates a new lease exit repository.
func NewLeaseExitRepository(client *redis.Client, logger *slog.Logger) *LeaseExitRepository {
	return &LeaseExitRepository{client: client, logger: logger}
}

func leaseExitKey(id string) string {
	return keyPrefix + ":lease_exit:" + id
}

func leaseExitIndexKey() string {
	return keyPrefix + ":lease_exits"
}

// Create stores a new lease exit at revision 1.
func (r *LeaseExitRepository) Create(ctx context.Context, leaseExit *models.LeaseExit) error {
	leaseExit.Revision = 1
	leaseExit.UpdatedAt = time.Now().UTC()

	if leaseExit.CreatedAt.IsZero() {
		leaseExit.CreatedAt = leaseExit.UpdatedAt
	}

	data, err := json.Marshal(leaseExit)
	if err != nil {
		return fmt.Errorf("failed to marshal lease exit: %w", err)
	}

	created, err := r.client.SetNX(ctx, leaseExitKey(leaseExit.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to store lease exit: %w", err)
	}

	if !created {
		return fmt.Errorf("lease exit %s: %w", leaseExit.ID, persistence.ErrLeaseExitAlreadyExists)
	}

	err = r.client.SAdd(ctx, leaseExitIndexKey(), leaseExit.ID).Err()
	if err != nil {
		return fmt.Errorf("failed to index lease exit: %w", err)
	}

	return nil
}

// GetByID returns a lease exit by id, or nil when absent.
func (r *LeaseExitRepository) GetByID(ctx context.Context, id string) (*models.LeaseExit, error) {
	data, err := r.client.Get(ctx, leaseExitKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to load lease exit: %w", err)
	}

	var leaseExit models.LeaseExit

	err = json.Unmarshal(data, &leaseExit)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal lease exit: %w", err)
	}

	return &leaseExit, nil
}

// Update writes the lease exit only if the stored revision still matches the
// revision the caller read.
func (r *LeaseExitRepository) Update(ctx context.Context, leaseExit *models.LeaseExit) error {
	readRevision := leaseExit.Revision
	key := leaseExitKey(leaseExit.ID)

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return fmt.Errorf("lease exit %s: %w", leaseExit.ID, persistence.ErrLeaseExitNotFound)
			}

			return fmt.Errorf("failed to load lease exit: %w", err)
		}

		var current models.LeaseExit

		err = json.Unmarshal(data, &current)
		if err != nil {
			return fmt.Errorf("failed to unmarshal lease exit: %w", err)
		}

		if current.Revision != readRevision {
			return fmt.Errorf("lease exit %s at revision %d: %w",
				leaseExit.ID, readRevision, persistence.ErrRevisionConflict)
		}

		leaseExit.Revision = readRevision + 1
		leaseExit.UpdatedAt = time.Now().UTC()

		updated, err := json.Marshal(leaseExit)
		if err != nil {
			return fmt.Errorf("failed to marshal lease exit: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, 0)

			return nil
		})

		return err
	}, key)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			leaseExit.Revision = readRevision

			return fmt.Errorf("lease exit %s at revision %d: %w",
				leaseExit.ID, readRevision, persistence.ErrRevisionConflict)
		}

		if !persistence.IsRevisionConflict(err) && !persistence.IsLeaseExitNotFound(err) {
			leaseExit.Revision = readRevision
		}

		return err
	}

	return nil
}

// List returns all lease exits, newest first.
func (r *LeaseExitRepository) List(ctx context.Context) ([]*models.LeaseExit, error) {
	return r.list(ctx, nil)
}

// ListByStatus returns lease exits in any of the given statuses, newest first.
func (r *LeaseExitRepository) ListByStatus(ctx context.Context, statuses ...models.LeaseExitStatus) ([]*models.LeaseExit, error) {
	wanted := make(map[models.LeaseExitStatus]bool, len(statuses))
	for _, status := range statuses {
		wanted[status] = true
	}

	return r.list(ctx, wanted)
}

func (r *LeaseExitRepository) list(ctx context.Context, statuses map[models.LeaseExitStatus]bool) ([]*models.LeaseExit, error) {
	ids, err := r.client.SMembers(ctx, leaseExitIndexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list lease exit ids: %w", err)
	}

	leaseExits := make([]*models.LeaseExit, 0, len(ids))

	for _, id := range ids {
		leaseExit, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}

		// Index entries may outlive their records briefly; skip the gap.
		if leaseExit == nil {
			continue
		}

		if statuses != nil && !statuses[leaseExit.Status] {
			continue
		}

		leaseExits = append(leaseExits, leaseExit)
	}

	sort.Slice(leaseExits, func(i, j int) bool {
		return leaseExits[i].CreatedAt.After(leaseExits[j].CreatedAt)
	})

	return leaseExits, nil
}
