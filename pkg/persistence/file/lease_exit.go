package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/mbellotti/exitflow/pkg/models"
	"github.com/mbellotti/exitflow/pkg/persistence"
)

// LeaseExitRepository handles lease-exit file operations. A process-wide
// mutex serializes the read-compare-write of conditional updates; the
// revision check still applies so callers observe the same conflict
// semantics as the SQL and Redis implementations.
type LeaseExitRepository struct {
	root  string
	mutex sync.Mutex
}

// NewLeaseExitRepository creates a new lease exit repository.
func NewLeaseExitRepository(root string) *LeaseExitRepository {
	return &LeaseExitRepository{root: root}
}

// Create stores a new lease exit at revision 1.
func (r *LeaseExitRepository) Create(_ context.Context, leaseExit *models.LeaseExit) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	filePath := r.filePath(leaseExit.ID)
	if _, err := os.Stat(filePath); err == nil {
		return &persistence.LeaseExitError{Op: "Create", LeaseExitID: leaseExit.ID, Err: persistence.ErrLeaseExitAlreadyExists}
	}

	leaseExit.Revision = 1

	return r.write(leaseExit)
}

// GetByID retrieves a lease exit by its ID from the file system.
func (r *LeaseExitRepository) GetByID(_ context.Context, id string) (*models.LeaseExit, error) {
	return r.read(id)
}

// Update writes the lease exit only if the stored revision matches the
// revision the caller read, then increments it.
func (r *LeaseExitRepository) Update(_ context.Context, leaseExit *models.LeaseExit) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	current, err := r.read(leaseExit.ID)
	if err != nil {
		return err
	}

	if current == nil {
		return &persistence.LeaseExitError{Op: "Update", LeaseExitID: leaseExit.ID, Err: persistence.ErrLeaseExitNotFound}
	}

	if current.Revision != leaseExit.Revision {
		return &persistence.LeaseExitError{Op: "Update", LeaseExitID: leaseExit.ID, Err: persistence.ErrRevisionConflict}
	}

	leaseExit.Revision++
	leaseExit.UpdatedAt = time.Now().UTC()

	return r.write(leaseExit)
}

// List returns every stored lease exit.
func (r *LeaseExitRepository) List(ctx context.Context) ([]*models.LeaseExit, error) {
	dir := path.Join(r.root, "lease_exits")
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return []*models.LeaseExit{}, nil
	}

	jsonFiles, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list lease exit files: %w", err)
	}

	leaseExits := make([]*models.LeaseExit, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		id := file[:len(file)-5] // Remove .json extension

		leaseExit, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to load lease exit %s: %w", id, err)
		}

		if leaseExit != nil {
			leaseExits = append(leaseExits, leaseExit)
		}
	}

	return leaseExits, nil
}

// ListByStatus returns lease exits whose status is one of the given statuses.
func (r *LeaseExitRepository) ListByStatus(ctx context.Context, statuses ...models.LeaseExitStatus) ([]*models.LeaseExit, error) {
	all, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	filtered := make([]*models.LeaseExit, 0, len(all))

	for _, leaseExit := range all {
		if slices.Contains(statuses, leaseExit.Status) {
			filtered = append(filtered, leaseExit)
		}
	}

	return filtered, nil
}

func (r *LeaseExitRepository) filePath(id string) string {
	return filepath.Clean(path.Join(r.root, "lease_exits", id+".json"))
}

func (r *LeaseExitRepository) read(id string) (*models.LeaseExit, error) {
	body, err := os.ReadFile(r.filePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch lease exit %s: %w", id, err)
	}

	var leaseExit models.LeaseExit

	err = json.Unmarshal(body, &leaseExit)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal lease exit %s: %w", id, err)
	}

	return &leaseExit, nil
}

func (r *LeaseExitRepository) write(leaseExit *models.LeaseExit) error {
	err := os.MkdirAll(path.Join(r.root, "lease_exits"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create lease_exits directory: %w", err)
	}

	now := time.Now().UTC()
	if leaseExit.CreatedAt.IsZero() {
		leaseExit.CreatedAt = now
	}

	leaseExit.UpdatedAt = now

	data, err := json.MarshalIndent(leaseExit, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal lease exit %s: %w", leaseExit.ID, err)
	}

	return os.WriteFile(r.filePath(leaseExit.ID), data, 0600)
}
