// Package models defines the core domain models for lease exit coordination.
package models

import "time"

// LeaseExitStatus represents the lifecycle state of a lease exit workflow.
type LeaseExitStatus string

const (
	LeaseExitStatusDraft           LeaseExitStatus = "draft"
	LeaseExitStatusInProgress      LeaseExitStatus = "in_progress"
	LeaseExitStatusPendingApproval LeaseExitStatus = "pending_approval"
	LeaseExitStatusApproved        LeaseExitStatus = "approved"
	LeaseExitStatusRejected        LeaseExitStatus = "rejected"
	LeaseExitStatusReviewNeeded    LeaseExitStatus = "review_needed"
	LeaseExitStatusReadyForExit    LeaseExitStatus = "ready_for_exit"
	LeaseExitStatusCompleted       LeaseExitStatus = "completed"
)

// ActiveStatuses returns the statuses of lease exits that are still moving
// through the process. Completed exits are terminal and never revisited.
func ActiveStatuses() []LeaseExitStatus {
	return []LeaseExitStatus{
		LeaseExitStatusDraft,
		LeaseExitStatusInProgress,
		LeaseExitStatusPendingApproval,
		LeaseExitStatusReviewNeeded,
		LeaseExitStatusReadyForExit,
	}
}

// PropertyDetails carries the property attributes the sequencer keys on.
type PropertyDetails struct {
	Address              string  `json:"address"                validate:"required"`
	PropertyType         string  `json:"property_type"`
	Value                float64 `json:"value"`
	SizeSqFt             float64 `json:"size_sq_ft,omitempty"`
	HasSpecialConditions bool    `json:"has_special_conditions"`
}

// StepHistoryEntry is one append-only audit record of step activity.
type StepHistoryEntry struct {
	StepID    string    `json:"step_id"`
	Action    string    `json:"action"`
	Actor     string    `json:"actor,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// LeaseExit is one lease-exit workflow instance: its steps, approval chain,
// and status. It is owned by the orchestrator and mutated only through
// conditional updates keyed on Revision.
type LeaseExit struct {
	ID              string               `json:"id"`
	LeaseID         string               `json:"lease_id"       validate:"required"`
	LeaseType       string               `json:"lease_type"`
	PropertyDetails PropertyDetails      `json:"property_details"`
	Status          LeaseExitStatus      `json:"status"`
	CurrentStepID   string               `json:"current_step_id"`
	Steps           []*WorkflowStep      `json:"steps"`
	Transitions     []*Transition        `json:"transitions"`
	ApprovalChain   []*ApprovalRecord    `json:"approval_chain"`
	Forms           map[string]*FormData `json:"forms,omitempty"`
	StepHistory     []StepHistoryEntry   `json:"step_history"`
	ExitDate        *time.Time           `json:"exit_date,omitempty"`
	CreatedBy       string               `json:"created_by"`
	Metadata        map[string]any       `json:"metadata,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`

	// Revision increments on every successful write. Conditional updates
	// compare it to detect concurrent writers (see persistence package).
	Revision int64 `json:"revision"`
}

// Step returns the step with the given id, or nil.
func (le *LeaseExit) Step(id string) *WorkflowStep {
	for _, step := range le.Steps {
		if step.ID == id {
			return step
		}
	}

	return nil
}

// ApprovalRecordFor returns the approval record held by role, or nil.
func (le *LeaseExit) ApprovalRecordFor(role Role) *ApprovalRecord {
	for _, record := range le.ApprovalChain {
		if record.Role == role {
			return record
		}
	}

	return nil
}

// AppendHistory records a step action in the append-only history.
func (le *LeaseExit) AppendHistory(stepID, action, actor string) {
	le.StepHistory = append(le.StepHistory, StepHistoryEntry{
		StepID:    stepID,
		Action:    action,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
	})
}
