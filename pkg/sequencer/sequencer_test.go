package sequencer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbellotti/exitflow/pkg/models"
)

func stepIDs(steps []*models.WorkflowStep) []string {
	ids := make([]string, 0, len(steps))
	for _, step := range steps {
		ids = append(ids, step.ID)
	}

	return ids
}

func countStep(steps []*models.WorkflowStep, id string) int {
	count := 0

	for _, step := range steps {
		if step.ID == id {
			count++
		}
	}

	return count
}

func TestBuild_StructuralInvariants(t *testing.T) {
	leaseTypes := []string{"", "commercial", "residential", "Commercial"}
	properties := []models.PropertyDetails{
		{},
		{PropertyType: "office"},
		{PropertyType: "retail"},
		{Value: 2_000_000},
		{HasSpecialConditions: true},
		{PropertyType: "office", Value: 5_000_000, HasSpecialConditions: true},
	}

	for _, leaseType := range leaseTypes {
		for _, property := range properties {
			sequence := Build(leaseType, property, nil)

			require.NotEmpty(t, sequence.Steps)

			assert.Equal(t, 1, countStep(sequence.Steps, StepApproval),
				"lease type %q property %+v must have exactly one approval step", leaseType, property)
			assert.Equal(t, 1, countStep(sequence.Steps, StepCompletion),
				"lease type %q property %+v must have exactly one completion step", leaseType, property)
			assert.Equal(t, StepCompletion, sequence.Steps[len(sequence.Steps)-1].ID,
				"completion must always be last")
		}
	}
}

func TestBuild_LegalReviewConditions(t *testing.T) {
	tests := []struct {
		name      string
		leaseType string
		property  models.PropertyDetails
		want      bool
	}{
		{"plain residential has no legal review", "residential", models.PropertyDetails{}, false},
		{"commercial always gets legal review", "commercial", models.PropertyDetails{}, true},
		{"commercial is case insensitive", "COMMERCIAL", models.PropertyDetails{}, true},
		{"high value gets legal review", "residential", models.PropertyDetails{Value: 1_000_001}, true},
		{"value at threshold does not", "residential", models.PropertyDetails{Value: 1_000_000}, false},
		{"special conditions get legal review", "residential", models.PropertyDetails{HasSpecialConditions: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RequiresLegalReview(tt.leaseType, tt.property))

			sequence := Build(tt.leaseType, tt.property, nil)
			assert.Equal(t, tt.want, countStep(sequence.Steps, StepLegalReview) == 1)
		})
	}
}

func TestBuild_CommercialOrdering(t *testing.T) {
	sequence := Build("commercial", models.PropertyDetails{}, nil)
	ids := stepIDs(sequence.Steps)

	assert.Equal(t, []string{
		StepInitiation,
		StepDocumentCollection,
		StepFinancialAnalysis,
		StepPropertyInspection,
		StepLegalReview,
		StepFinalReview,
		StepApproval,
		StepCompletion,
	}, ids)
}

func TestBuild_PropertyTypeSteps(t *testing.T) {
	office := Build("", models.PropertyDetails{PropertyType: "office"}, nil)
	assert.Equal(t, 1, countStep(office.Steps, StepSpacePlanning))
	assert.Equal(t, 0, countStep(office.Steps, StepSignageRemoval))

	retail := Build("", models.PropertyDetails{PropertyType: "retail"}, nil)
	assert.Equal(t, 1, countStep(retail.Steps, StepSignageRemoval))
	assert.Equal(t, 0, countStep(retail.Steps, StepSpacePlanning))
}

func TestBuild_Customizations(t *testing.T) {
	position := 2
	newName := "Updated Document Collection"
	custom := &Customizations{
		AddSteps: []AddStep{
			{
				Step: models.WorkflowStep{
					ID:           "it_decommission",
					Name:         "IT Decommission",
					AssignedRole: models.RoleIFM,
				},
				Position: &position,
			},
			{
				// Trailing addition lands just before completion.
				Step: models.WorkflowStep{
					ID:           "handover",
					Name:         "Handover",
					AssignedRole: models.RoleLeaseExitManagement,
				},
			},
			{
				// Missing a name, skipped.
				Step: models.WorkflowStep{ID: "broken", AssignedRole: models.RoleIFM},
			},
		},
		RemoveStepIDs: []string{StepFinalReview},
		ModifySteps: map[string]StepModification{
			StepDocumentCollection: {Name: &newName},
		},
	}

	sequence := Build("", models.PropertyDetails{}, custom)
	ids := stepIDs(sequence.Steps)

	assert.Equal(t, "it_decommission", ids[position])
	assert.Equal(t, StepCompletion, ids[len(ids)-1])
	assert.Equal(t, "handover", ids[len(ids)-2])
	assert.NotContains(t, ids, "broken")
	assert.NotContains(t, ids, StepFinalReview)

	for _, step := range sequence.Steps {
		if step.ID == StepDocumentCollection {
			assert.Equal(t, newName, step.Name)
		}
	}
}

func TestBuild_Transitions(t *testing.T) {
	sequence := Build("", models.PropertyDetails{}, nil)

	var rejectedEdge *models.Transition

	for _, transition := range sequence.Transitions {
		if transition.Condition == models.ConditionApprovalRejected {
			rejectedEdge = transition
		}
	}

	require.NotNil(t, rejectedEdge, "approval step must carry a rejected edge")
	assert.Equal(t, StepApproval, rejectedEdge.FromStepID)
	assert.Equal(t, StepDocumentCollection, rejectedEdge.ToStepID)

	// Linear edges connect every consecutive pair.
	for i := 0; i < len(sequence.Steps)-1; i++ {
		found := false

		for _, transition := range sequence.Transitions {
			if transition.FromStepID == sequence.Steps[i].ID && transition.ToStepID == sequence.Steps[i+1].ID {
				found = true
			}
		}

		assert.True(t, found, "missing edge %s -> %s", sequence.Steps[i].ID, sequence.Steps[i+1].ID)
	}
}

func TestBuild_EstimatedDurationRecomputed(t *testing.T) {
	base := Build("", models.PropertyDetails{}, nil)
	commercial := Build("commercial", models.PropertyDetails{}, nil)

	assert.Greater(t, commercial.EstimatedDurationDays, base.EstimatedDurationDays)

	// Steps without an estimate still count at least one day.
	custom := &Customizations{
		AddSteps: []AddStep{
			{Step: models.WorkflowStep{ID: "zero_days", Name: "Zero", AssignedRole: models.RoleIFM}},
		},
	}
	withZero := Build("", models.PropertyDetails{}, custom)
	assert.Equal(t, base.EstimatedDurationDays+1, withZero.EstimatedDurationDays)
}
