// Package approval owns the per-role approval ledger of a lease exit. Every
// mutation is a conditional update retried on revision conflict, so two
// roles deciding concurrently never lose each other's decision.
package approval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mbellotti/exitflow/pkg/models"
	"github.com/mbellotti/exitflow/pkg/persistence"
)

var (
	// ErrInvalidState is returned when an operation violates a lifecycle
	// invariant, e.g. creating a chain where one already exists.
	ErrInvalidState = errors.New("invalid approval state")

	// ErrRoleNotFound is returned when a decision names a role absent from
	// the chain. The chain is fixed at creation time; approvers cannot join late.
	ErrRoleNotFound = errors.New("role not found in approval chain")

	// ErrLeaseExitNotFound mirrors the persistence sentinel for callers of
	// this package.
	ErrLeaseExitNotFound = persistence.ErrLeaseExitNotFound

	// ErrTooManyConflicts is returned when the optimistic retry budget is
	// exhausted. Callers may retry the whole operation.
	ErrTooManyConflicts = errors.New("too many concurrent update conflicts")
)

// Config carries the manager's explicit settings.
type Config struct {
	// MaxRetries bounds the optimistic-update retry loop.
	MaxRetries int
}

// DefaultConfig returns the manager defaults.
func DefaultConfig() Config {
	return Config{MaxRetries: 5}
}

// DecideResult reports the chain state after a decision was applied.
type DecideResult struct {
	Status      models.LeaseExitStatus   `json:"status"`
	AllApproved bool                     `json:"all_approved"`
	Chain       []*models.ApprovalRecord `json:"chain"`
}

// Manager applies approval chain mutations against the lease exit store.
type Manager struct {
	leaseExits persistence.LeaseExitRepository
	config     Config
	logger     *slog.Logger
}

// NewManager creates an approval chain manager.
func NewManager(leaseExits persistence.LeaseExitRepository, config Config, logger *slog.Logger) *Manager {
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultConfig().MaxRetries
	}

	return &Manager{
		leaseExits: leaseExits,
		config:     config,
		logger:     logger.With("module", "approval_manager"),
	}
}

// Create seeds one pending approval record per role and moves the lease
// exit to pending approval. It fails with ErrInvalidState if the lease exit
// already has a non-empty chain.
func (m *Manager) Create(ctx context.Context, leaseExitID string, roles []models.Role) ([]*models.ApprovalRecord, error) {
	var chain []*models.ApprovalRecord

	err := m.mutate(ctx, leaseExitID, func(leaseExit *models.LeaseExit) error {
		if len(leaseExit.ApprovalChain) > 0 {
			return fmt.Errorf("lease exit %s already has an approval chain: %w", leaseExitID, ErrInvalidState)
		}

		chain = make([]*models.ApprovalRecord, 0, len(roles))
		for _, role := range roles {
			chain = append(chain, &models.ApprovalRecord{
				Role:     role,
				Decision: models.DecisionPending,
			})
		}

		leaseExit.ApprovalChain = chain
		leaseExit.Status = models.LeaseExitStatusPendingApproval

		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "Created approval chain", "lease_exit_id", leaseExitID, "roles", len(roles))

	return chain, nil
}

// Decide replaces the named role's record with the given decision and
// recomputes the chain aggregate: any rejection moves the lease exit to
// review needed, a fully approved chain moves it to ready for exit, and any
// other mix leaves it pending approval. Decisions are idempotent and
// overwritable; a role may change its mind.
func (m *Manager) Decide(
	ctx context.Context,
	leaseExitID string,
	role models.Role,
	decision models.ApprovalDecision,
	actor, comments string,
) (*DecideResult, error) {
	var result DecideResult

	err := m.mutate(ctx, leaseExitID, func(leaseExit *models.LeaseExit) error {
		record := leaseExit.ApprovalRecordFor(role)
		if record == nil {
			return fmt.Errorf("role %s has no approval record on lease exit %s: %w", role, leaseExitID, ErrRoleNotFound)
		}

		now := time.Now().UTC()
		record.Decision = decision
		record.DecidedBy = actor
		record.DecidedAt = &now
		record.Comments = comments

		switch models.AggregateChain(leaseExit.ApprovalChain) {
		case models.ChainRejected:
			leaseExit.Status = models.LeaseExitStatusReviewNeeded
		case models.ChainApproved:
			leaseExit.Status = models.LeaseExitStatusReadyForExit
		case models.ChainPending:
			leaseExit.Status = models.LeaseExitStatusPendingApproval
		}

		leaseExit.AppendHistory(leaseExit.CurrentStepID, "approval_"+string(decision), actor)

		result = DecideResult{
			Status:      leaseExit.Status,
			AllApproved: leaseExit.Status == models.LeaseExitStatusReadyForExit,
			Chain:       leaseExit.ApprovalChain,
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "Processed approval decision",
		"lease_exit_id", leaseExitID, "role", role, "decision", decision, "status", result.Status)

	return &result, nil
}

// mutate runs one atomic read-modify-write: load the lease exit, apply fn,
// and write conditionally on the revision read. A revision conflict means a
// concurrent writer got there first; the loop re-reads and re-applies fn on
// the fresh state up to MaxRetries times.
func (m *Manager) mutate(ctx context.Context, leaseExitID string, fn func(*models.LeaseExit) error) error {
	for attempt := 0; attempt < m.config.MaxRetries; attempt++ {
		leaseExit, err := m.leaseExits.GetByID(ctx, leaseExitID)
		if err != nil {
			return err
		}

		if leaseExit == nil {
			return fmt.Errorf("lease exit %s: %w", leaseExitID, ErrLeaseExitNotFound)
		}

		err = fn(leaseExit)
		if err != nil {
			return err
		}

		err = m.leaseExits.Update(ctx, leaseExit)
		if err == nil {
			return nil
		}

		if !persistence.IsRevisionConflict(err) {
			return err
		}

		m.logger.DebugContext(ctx, "Revision conflict, retrying", "lease_exit_id", leaseExitID, "attempt", attempt+1)
	}

	return fmt.Errorf("lease exit %s after %d attempts: %w", leaseExitID, m.config.MaxRetries, ErrTooManyConflicts)
}
