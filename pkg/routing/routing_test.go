package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mbellotti/exitflow/pkg/models"
	"github.com/mbellotti/exitflow/pkg/sequencer"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name           string
		event          Event
		wantNextStep   string
		wantRecipients []models.Role
	}{
		{
			name:           "initial submission fans out to the reviewing roles",
			event:          EventInitialSubmission,
			wantNextStep:   sequencer.StepDocumentCollection,
			wantRecipients: []models.Role{models.RoleAdvisory, models.RoleIFM, models.RoleLegal},
		},
		{
			name:           "advisory review done",
			event:          EventAdvisoryDone,
			wantRecipients: []models.Role{models.RoleLegal, models.RoleIFM, models.RoleAccounting},
		},
		{
			name:           "ifm review done",
			event:          EventIFMDone,
			wantRecipients: []models.Role{models.RoleMAC},
		},
		{
			name:           "mac review done",
			event:          EventMACDone,
			wantRecipients: []models.Role{models.RolePJM},
		},
		{
			name:           "pjm done moves to final review",
			event:          EventPJMDone,
			wantNextStep:   sequencer.StepFinalReview,
			wantRecipients: []models.Role{models.RoleLeaseExitManagement},
		},
		{
			name:           "approval granted moves to completion and notifies everyone",
			event:          EventApprovalGranted,
			wantNextStep:   sequencer.StepCompletion,
			wantRecipients: models.AllRoles(),
		},
		{
			name:           "approval rejected returns to document collection",
			event:          EventApprovalRejected,
			wantNextStep:   sequencer.StepDocumentCollection,
			wantRecipients: []models.Role{models.RoleLeaseExitManagement},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			route := Lookup(tt.event)
			assert.Equal(t, tt.wantNextStep, route.NextStepID)
			assert.Equal(t, tt.wantRecipients, route.Recipients)
		})
	}
}

func TestLookup_UnknownEventIsEmptyRoute(t *testing.T) {
	route := Lookup(Event("no_such_event"))

	assert.Empty(t, route.NextStepID)
	assert.Empty(t, route.Recipients)
}

func TestReviewDone(t *testing.T) {
	for role, want := range map[models.Role]Event{
		models.RoleAdvisory: EventAdvisoryDone,
		models.RoleIFM:      EventIFMDone,
		models.RoleLegal:    EventLegalDone,
		models.RoleMAC:      EventMACDone,
		models.RolePJM:      EventPJMDone,
	} {
		event, ok := ReviewDone(role)
		assert.True(t, ok, "role %s should map to an event", role)
		assert.Equal(t, want, event)
	}

	_, ok := ReviewDone(models.RoleAccounting)
	assert.False(t, ok, "accounting has no onward route")

	_, ok = ReviewDone(models.RoleLeaseExitManagement)
	assert.False(t, ok, "lease exit management routing is contextual, not a review event")
}
