// Package routing encodes the fixed review waterfall as a single transition
// table: which step comes next and who gets notified when a role finishes
// its review. Collecting the waterfall here keeps the per-event branches
// from drifting apart.
package routing

import (
	"github.com/mbellotti/exitflow/pkg/models"
	"github.com/mbellotti/exitflow/pkg/sequencer"
)

// Event is a routing trigger: a form submission landing, a role finishing
// its review, or the approval chain settling.
type Event string

const (
	EventInitialSubmission Event = "initial_submission"
	EventAdvisoryDone      Event = "advisory_done"
	EventIFMDone           Event = "ifm_done"
	EventLegalDone         Event = "legal_done"
	EventMACDone           Event = "mac_done"
	EventPJMDone           Event = "pjm_done"
	EventApprovalGranted   Event = "approval_granted"
	EventApprovalRejected  Event = "approval_rejected"
)

// Route is one table entry: the step the workflow moves to and the roles
// notified about it.
type Route struct {
	NextStepID string
	Recipients []models.Role
}

var waterfall = map[Event]Route{
	EventInitialSubmission: {
		NextStepID: sequencer.StepDocumentCollection,
		Recipients: []models.Role{models.RoleAdvisory, models.RoleIFM, models.RoleLegal},
	},
	EventAdvisoryDone: {
		Recipients: []models.Role{models.RoleLegal, models.RoleIFM, models.RoleAccounting},
	},
	EventIFMDone: {
		Recipients: []models.Role{models.RoleMAC},
	},
	EventMACDone: {
		Recipients: []models.Role{models.RolePJM},
	},
	EventPJMDone: {
		NextStepID: sequencer.StepFinalReview,
		Recipients: []models.Role{models.RoleLeaseExitManagement},
	},
	EventApprovalGranted: {
		NextStepID: sequencer.StepCompletion,
		Recipients: models.AllRoles(),
	},
	EventApprovalRejected: {
		NextStepID: sequencer.StepDocumentCollection,
		Recipients: []models.Role{models.RoleLeaseExitManagement},
	},
}

// Lookup returns the route for an event. Unknown events resolve to an empty
// route so callers can no-op gracefully.
func Lookup(event Event) Route {
	route, ok := waterfall[event]
	if !ok {
		return Route{Recipients: []models.Role{}}
	}

	return route
}

// ReviewDone maps a reviewing role to its waterfall event. The second
// return is false for roles with no onward route.
func ReviewDone(role models.Role) (Event, bool) {
	switch role {
	case models.RoleAdvisory:
		return EventAdvisoryDone, true
	case models.RoleIFM:
		return EventIFMDone, true
	case models.RoleLegal:
		return EventLegalDone, true
	case models.RoleMAC:
		return EventMACDone, true
	case models.RolePJM:
		return EventPJMDone, true
	default:
		return "", false
	}
}
