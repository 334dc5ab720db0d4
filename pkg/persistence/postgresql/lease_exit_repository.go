package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/mbellotti/exitflow/pkg/models"
	"github.com/mbellotti/exitflow/pkg/persistence"
)

const leaseExitColumns = `
	id
  , lease_id
  , lease_type
  , property_details
  , status
  , current_step_id
  , steps
  , transitions
  , approval_chain
  , forms
  , step_history
  , exit_date
  , created_by
  , metadata
  , created_at
  , updated_at
  , revision
`

// LeaseExitRepository handles lease exit database operations. Updates are
// conditional on the revision column; see persistence.LeaseExitRepository.
type LeaseExitRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewLeaseExitRepository creates a new lease exit repository.
func NewLeaseExitRepository(db *sql.DB, logger *slog.Logger) *LeaseExitRepository {
	return &LeaseExitRepository{db: db, logger: logger}
}

// Create inserts a new lease exit at revision 1.
func (r *LeaseExitRepository) Create(ctx context.Context, leaseExit *models.LeaseExit) error {
	leaseExit.Revision = 1
	leaseExit.UpdatedAt = time.Now().UTC()

	if leaseExit.CreatedAt.IsZero() {
		leaseExit.CreatedAt = leaseExit.UpdatedAt
	}

	fields, err := marshalLeaseExitFields(leaseExit)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO lease_exits (` + leaseExitColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err = r.db.ExecContext(ctx, query,
		leaseExit.ID, leaseExit.LeaseID, leaseExit.LeaseType, fields.propertyDetails,
		leaseExit.Status, leaseExit.CurrentStepID, fields.steps, fields.transitions,
		fields.approvalChain, fields.forms, fields.stepHistory, leaseExit.ExitDate,
		leaseExit.CreatedBy, fields.metadata, leaseExit.CreatedAt, leaseExit.UpdatedAt,
		leaseExit.Revision,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("lease exit %s: %w", leaseExit.ID, persistence.ErrLeaseExitAlreadyExists)
		}

		return fmt.Errorf("failed to insert lease exit: %w", err)
	}

	return nil
}

// GetByID returns a lease exit by id, or nil when absent.
func (r *LeaseExitRepository) GetByID(ctx context.Context, id string) (*models.LeaseExit, error) {
	query := `SELECT ` + leaseExitColumns + ` FROM lease_exits WHERE id = $1`

	leaseExit, err := scanLeaseExit(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan lease exit: %w", err)
	}

	return leaseExit, nil
}

// Update writes the lease exit only if the stored revision still matches the
// revision the caller read. The UPDATE's revision guard in the WHERE clause
// makes the read-modify-write atomic without row locks.
func (r *LeaseExitRepository) Update(ctx context.Context, leaseExit *models.LeaseExit) error {
	readRevision := leaseExit.Revision
	leaseExit.Revision = readRevision + 1
	leaseExit.UpdatedAt = time.Now().UTC()

	fields, err := marshalLeaseExitFields(leaseExit)
	if err != nil {
		return err
	}

	query := `
		UPDATE lease_exits SET
			lease_id = $2
		  , lease_type = $3
		  , property_details = $4
		  , status = $5
		  , current_step_id = $6
		  , steps = $7
		  , transitions = $8
		  , approval_chain = $9
		  , forms = $10
		  , step_history = $11
		  , exit_date = $12
		  , metadata = $13
		  , updated_at = $14
		  , revision = $15
		WHERE id = $1 AND revision = $16
	`

	result, err := r.db.ExecContext(ctx, query,
		leaseExit.ID, leaseExit.LeaseID, leaseExit.LeaseType, fields.propertyDetails,
		leaseExit.Status, leaseExit.CurrentStepID, fields.steps, fields.transitions,
		fields.approvalChain, fields.forms, fields.stepHistory, leaseExit.ExitDate,
		fields.metadata, leaseExit.UpdatedAt, leaseExit.Revision, readRevision,
	)
	if err != nil {
		leaseExit.Revision = readRevision

		return fmt.Errorf("failed to update lease exit: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		leaseExit.Revision = readRevision

		return fmt.Errorf("failed to read update result: %w", err)
	}

	if affected == 0 {
		leaseExit.Revision = readRevision

		exists, err := r.exists(ctx, leaseExit.ID)
		if err != nil {
			return err
		}

		if !exists {
			return fmt.Errorf("lease exit %s: %w", leaseExit.ID, persistence.ErrLeaseExitNotFound)
		}

		return fmt.Errorf("lease exit %s at revision %d: %w",
			leaseExit.ID, readRevision, persistence.ErrRevisionConflict)
	}

	return nil
}

// List returns all lease exits, newest first.
func (r *LeaseExitRepository) List(ctx context.Context) ([]*models.LeaseExit, error) {
	query := `SELECT ` + leaseExitColumns + ` FROM lease_exits ORDER BY created_at DESC`

	return r.queryLeaseExits(ctx, query)
}

// ListByStatus returns lease exits in any of the given statuses, newest first.
func (r *LeaseExitRepository) ListByStatus(ctx context.Context, statuses ...models.LeaseExitStatus) ([]*models.LeaseExit, error) {
	names := make([]string, 0, len(statuses))
	for _, status := range statuses {
		names = append(names, string(status))
	}

	query := `SELECT ` + leaseExitColumns + ` FROM lease_exits WHERE status = ANY($1) ORDER BY created_at DESC`

	return r.queryLeaseExits(ctx, query, pq.Array(names))
}

func (r *LeaseExitRepository) queryLeaseExits(ctx context.Context, query string, args ...any) ([]*models.LeaseExit, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lease exits: %w", err)
	}

	defer func() {
		err := rows.Close()
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	leaseExits := make([]*models.LeaseExit, 0)

	for rows.Next() {
		leaseExit, err := scanLeaseExit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lease exit: %w", err)
		}

		leaseExits = append(leaseExits, leaseExit)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating lease exits: %w", err)
	}

	return leaseExits, nil
}

func (r *LeaseExitRepository) exists(ctx context.Context, id string) (bool, error) {
	var exists bool

	err := r.db.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM lease_exits WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check lease exit existence: %w", err)
	}

	return exists, nil
}

type leaseExitJSONFields struct {
	propertyDetails []byte
	steps           []byte
	transitions     []byte
	approvalChain   []byte
	forms           []byte
	stepHistory     []byte
	metadata        []byte
}

func marshalLeaseExitFields(leaseExit *models.LeaseExit) (*leaseExitJSONFields, error) {
	fields := &leaseExitJSONFields{}

	for _, field := range []struct {
		name   string
		value  any
		target *[]byte
	}{
		{"property_details", leaseExit.PropertyDetails, &fields.propertyDetails},
		{"steps", orEmptySlice(leaseExit.Steps), &fields.steps},
		{"transitions", orEmptySlice(leaseExit.Transitions), &fields.transitions},
		{"approval_chain", orEmptySlice(leaseExit.ApprovalChain), &fields.approvalChain},
		{"forms", orEmptyMap(leaseExit.Forms), &fields.forms},
		{"step_history", leaseExit.StepHistory, &fields.stepHistory},
		{"metadata", orEmptyMap(leaseExit.Metadata), &fields.metadata},
	} {
		data, err := json.Marshal(field.value)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s: %w", field.name, err)
		}

		*field.target = data
	}

	if fields.stepHistory == nil || string(fields.stepHistory) == "null" {
		fields.stepHistory = []byte("[]")
	}

	return fields, nil
}

func orEmptySlice[T any](values []T) []T {
	if values == nil {
		return []T{}
	}

	return values
}

func orEmptyMap[K comparable, V any](values map[K]V) map[K]V {
	if values == nil {
		return map[K]V{}
	}

	return values
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLeaseExit(row rowScanner) (*models.LeaseExit, error) {
	var (
		leaseExit       models.LeaseExit
		propertyDetails []byte
		steps           []byte
		transitions     []byte
		approvalChain   []byte
		forms           []byte
		stepHistory     []byte
		metadata        []byte
		exitDate        sql.NullTime
	)

	err := row.Scan(
		&leaseExit.ID, &leaseExit.LeaseID, &leaseExit.LeaseType, &propertyDetails,
		&leaseExit.Status, &leaseExit.CurrentStepID, &steps, &transitions,
		&approvalChain, &forms, &stepHistory, &exitDate,
		&leaseExit.CreatedBy, &metadata, &leaseExit.CreatedAt, &leaseExit.UpdatedAt,
		&leaseExit.Revision,
	)
	if err != nil {
		return nil, err
	}

	if exitDate.Valid {
		utc := exitDate.Time.UTC()
		leaseExit.ExitDate = &utc
	}

	for _, field := range []struct {
		name   string
		data   []byte
		target any
	}{
		{"property_details", propertyDetails, &leaseExit.PropertyDetails},
		{"steps", steps, &leaseExit.Steps},
		{"transitions", transitions, &leaseExit.Transitions},
		{"approval_chain", approvalChain, &leaseExit.ApprovalChain},
		{"forms", forms, &leaseExit.Forms},
		{"step_history", stepHistory, &leaseExit.StepHistory},
		{"metadata", metadata, &leaseExit.Metadata},
	} {
		if len(field.data) == 0 {
			continue
		}

		err := json.Unmarshal(field.data, field.target)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", field.name, err)
		}
	}

	return &leaseExit, nil
}
