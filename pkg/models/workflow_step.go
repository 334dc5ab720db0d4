package models

// WorkflowStep is one unit of work in a lease exit sequence, owned by a
// single stakeholder role.
type WorkflowStep struct {
	ID                    string `json:"id"             validate:"required"`
	Name                  string `json:"name"           validate:"required"`
	Description           string `json:"description,omitempty"`
	AssignedRole          Role   `json:"assigned_role"  validate:"required"`
	RequiredForm          string `json:"required_form,omitempty"`
	EstimatedDurationDays int    `json:"estimated_duration_days"`
}

// TransitionCondition tags the edge between two steps.
type TransitionCondition string

const (
	ConditionAuto             TransitionCondition = "auto"
	ConditionApprovalGranted  TransitionCondition = "approval_granted"
	ConditionApprovalRejected TransitionCondition = "approval_rejected"
)

// Transition is a directed edge between two workflow steps.
type Transition struct {
	FromStepID string              `json:"from_step_id"`
	ToStepID   string              `json:"to_step_id"`
	Condition  TransitionCondition `json:"condition"`
}
