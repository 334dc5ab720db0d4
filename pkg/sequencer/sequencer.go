// Package sequencer derives the ordered step sequence and transitions for a
// lease exit from lease and property attributes. It is pure: no storage, no
// clocks, no side effects.
package sequencer

import (
	"strings"

	"github.com/mbellotti/exitflow/pkg/models"
)

// Step ids the sequencer emits. The approval and completion steps are
// structural: every generated sequence contains exactly one of each.
const (
	StepInitiation         = "initiation"
	StepDocumentCollection = "document_collection"
	StepFinancialAnalysis  = "financial_analysis"
	StepPropertyInspection = "property_inspection"
	StepLegalReview        = "legal_review"
	StepSpacePlanning      = "space_planning"
	StepSignageRemoval     = "signage_removal"
	StepFinalReview        = "final_review"
	StepApproval           = "approval"
	StepCompletion         = "completion"
)

// LegalReviewValueThreshold is the property value above which a legal
// review step is always inserted.
const LegalReviewValueThreshold = 1_000_000

// AddStep describes a customization step addition. Position, when set,
// is the index at which to insert; otherwise the step lands just before
// completion.
type AddStep struct {
	Step     models.WorkflowStep `json:"step"`
	Position *int                `json:"position,omitempty"`
}

// StepModification mutates named fields of an existing step. Nil fields are
// left untouched.
type StepModification struct {
	Name                  *string      `json:"name,omitempty"`
	Description           *string      `json:"description,omitempty"`
	AssignedRole          *models.Role `json:"assigned_role,omitempty"`
	RequiredForm          *string      `json:"required_form,omitempty"`
	EstimatedDurationDays *int         `json:"estimated_duration_days,omitempty"`
}

// Customizations adjust a computed base sequence. Malformed entries are
// skipped, never fatal.
type Customizations struct {
	AddSteps      []AddStep                   `json:"add_steps,omitempty"`
	RemoveStepIDs []string                    `json:"remove_step_ids,omitempty"`
	ModifySteps   map[string]StepModification `json:"modify_steps,omitempty"`
}

// Sequence is the sequencer output: ordered steps, transitions, and the
// total duration estimate. The estimate is recomputed on every build; it is
// never cached across customization.
type Sequence struct {
	Steps                 []*models.WorkflowStep
	Transitions           []*models.Transition
	EstimatedDurationDays int
}

// Build derives the step sequence for the given lease category and property
// details, then applies customizations. An empty category yields the
// generic base sequence.
func Build(leaseType string, property models.PropertyDetails, custom *Customizations) Sequence {
	steps := baseSteps()
	lastInserted := -1

	insert := func(index int, step *models.WorkflowStep) {
		if index < 0 || index > len(steps) {
			index = len(steps)
		}

		steps = append(steps[:index], append([]*models.WorkflowStep{step}, steps[index:]...)...)
		lastInserted = index
	}

	if strings.EqualFold(leaseType, "commercial") {
		insert(indexOf(steps, StepDocumentCollection)+1, &models.WorkflowStep{
			ID:                    StepFinancialAnalysis,
			Name:                  "Financial Analysis",
			Description:           "Analysis of financial implications",
			AssignedRole:          models.RoleAdvisory,
			RequiredForm:          "financial_analysis",
			EstimatedDurationDays: 5,
		})
		insert(lastInserted+1, &models.WorkflowStep{
			ID:                    StepPropertyInspection,
			Name:                  "Property Inspection",
			Description:           "Inspection of the property condition",
			AssignedRole:          models.RoleIFM,
			RequiredForm:          "property_inspection",
			EstimatedDurationDays: 3,
		})
	}

	switch strings.ToLower(property.PropertyType) {
	case "office":
		insert(indexOf(steps, StepApproval), &models.WorkflowStep{
			ID:                    StepSpacePlanning,
			Name:                  "Space Planning",
			Description:           "Planning for space utilization after exit",
			AssignedRole:          models.RoleMAC,
			RequiredForm:          "space_planning",
			EstimatedDurationDays: 4,
		})
	case "retail":
		insert(indexOf(steps, StepApproval), &models.WorkflowStep{
			ID:                    StepSignageRemoval,
			Name:                  "Signage Removal Planning",
			Description:           "Planning for removal of signage",
			AssignedRole:          models.RoleIFM,
			RequiredForm:          "signage_removal",
			EstimatedDurationDays: 2,
		})
	}

	if RequiresLegalReview(leaseType, property) {
		index := indexOf(steps, StepDocumentCollection) + 1
		if lastInserted >= 0 {
			index = lastInserted + 1
		}

		insert(index, &models.WorkflowStep{
			ID:                    StepLegalReview,
			Name:                  "Legal Review",
			Description:           "Review of legal implications and requirements",
			AssignedRole:          models.RoleLegal,
			RequiredForm:          "legal_review",
			EstimatedDurationDays: 5,
		})
	}

	if custom != nil {
		steps = applyCustomizations(steps, custom)
	}

	return Sequence{
		Steps:                 steps,
		Transitions:           buildTransitions(steps),
		EstimatedDurationDays: estimateDuration(steps),
	}
}

// RequiresLegalReview reports whether a legal review step belongs in the
// sequence: commercial leases, high-value properties, and properties
// carrying special conditions always get one.
func RequiresLegalReview(leaseType string, property models.PropertyDetails) bool {
	if strings.EqualFold(leaseType, "commercial") {
		return true
	}

	if property.Value > LegalReviewValueThreshold {
		return true
	}

	return property.HasSpecialConditions
}

func baseSteps() []*models.WorkflowStep {
	return []*models.WorkflowStep{
		{
			ID:                    StepInitiation,
			Name:                  "Lease Exit Initiation",
			Description:           "Initial step to gather basic information about the lease exit",
			AssignedRole:          models.RoleLeaseExitManagement,
			RequiredForm:          "lease_exit_initiation",
			EstimatedDurationDays: 1,
		},
		{
			ID:                    StepDocumentCollection,
			Name:                  "Document Collection",
			Description:           "Collect all relevant documents for the lease exit",
			AssignedRole:          models.RoleLeaseExitManagement,
			RequiredForm:          "document_collection",
			EstimatedDurationDays: 3,
		},
		{
			ID:                    StepFinalReview,
			Name:                  "Final Review",
			Description:           "Final review of all information and documents",
			AssignedRole:          models.RoleLeaseExitManagement,
			RequiredForm:          "final_review",
			EstimatedDurationDays: 1,
		},
		{
			ID:                    StepApproval,
			Name:                  "Approval",
			Description:           "Approval of the lease exit",
			AssignedRole:          models.RoleLeaseExitManagement,
			RequiredForm:          "approval",
			EstimatedDurationDays: 2,
		},
		{
			ID:                    StepCompletion,
			Name:                  "Completion",
			Description:           "Mark the lease exit as completed",
			AssignedRole:          models.RoleLeaseExitManagement,
			EstimatedDurationDays: 1,
		},
	}
}

func applyCustomizations(steps []*models.WorkflowStep, custom *Customizations) []*models.WorkflowStep {
	for _, addition := range custom.AddSteps {
		// Additions must carry id, name, and assigned role; anything else is skipped.
		if addition.Step.ID == "" || addition.Step.Name == "" || addition.Step.AssignedRole == "" {
			continue
		}

		step := addition.Step

		if addition.Position != nil && *addition.Position >= 0 && *addition.Position < len(steps) {
			index := *addition.Position
			steps = append(steps[:index], append([]*models.WorkflowStep{&step}, steps[index:]...)...)

			continue
		}

		completionIndex := indexOf(steps, StepCompletion)
		if completionIndex < 0 {
			steps = append(steps, &step)

			continue
		}

		steps = append(steps[:completionIndex], append([]*models.WorkflowStep{&step}, steps[completionIndex:]...)...)
	}

	if len(custom.RemoveStepIDs) > 0 {
		removed := make(map[string]bool, len(custom.RemoveStepIDs))
		for _, id := range custom.RemoveStepIDs {
			removed[id] = true
		}

		kept := make([]*models.WorkflowStep, 0, len(steps))

		for _, step := range steps {
			if !removed[step.ID] {
				kept = append(kept, step)
			}
		}

		steps = kept
	}

	for id, modification := range custom.ModifySteps {
		for _, step := range steps {
			if step.ID != id {
				continue
			}

			if modification.Name != nil {
				step.Name = *modification.Name
			}

			if modification.Description != nil {
				step.Description = *modification.Description
			}

			if modification.AssignedRole != nil {
				step.AssignedRole = *modification.AssignedRole
			}

			if modification.RequiredForm != nil {
				step.RequiredForm = *modification.RequiredForm
			}

			if modification.EstimatedDurationDays != nil {
				step.EstimatedDurationDays = *modification.EstimatedDurationDays
			}
		}
	}

	return steps
}

// buildTransitions regenerates strictly linear edges between consecutive
// steps. The approval step additionally carries a rejected edge back to
// document collection.
func buildTransitions(steps []*models.WorkflowStep) []*models.Transition {
	transitions := make([]*models.Transition, 0, len(steps))

	for i := 0; i < len(steps)-1; i++ {
		condition := models.ConditionAuto

		if steps[i].ID == StepApproval {
			condition = models.ConditionApprovalGranted

			transitions = append(transitions, &models.Transition{
				FromStepID: steps[i].ID,
				ToStepID:   StepDocumentCollection,
				Condition:  models.ConditionApprovalRejected,
			})
		}

		transitions = append(transitions, &models.Transition{
			FromStepID: steps[i].ID,
			ToStepID:   steps[i+1].ID,
			Condition:  condition,
		})
	}

	return transitions
}

func estimateDuration(steps []*models.WorkflowStep) int {
	total := 0

	for _, step := range steps {
		days := step.EstimatedDurationDays
		if days <= 0 {
			days = 1
		}

		total += days
	}

	return total
}

func indexOf(steps []*models.WorkflowStep, id string) int {
	for i, step := range steps {
		if step.ID == id {
			return i
		}
	}

	return -1
}
