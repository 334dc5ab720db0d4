// Package web provides HTTP request and response types for the lease exit API.
package web

import (
	"time"

	"github.com/mbellotti/exitflow/pkg/models"
	"github.com/mbellotti/exitflow/pkg/sequencer"
)

// CreateLeaseExitRequest represents the request body for starting a new
// lease exit workflow. Customizations optionally adjust the generated step
// sequence.
type CreateLeaseExitRequest struct {
	LeaseID         string                    `json:"lease_id"         validate:"required"`
	LeaseType       string                    `json:"lease_type"`
	PropertyDetails models.PropertyDetails    `json:"property_details"`
	ExitDate        *time.Time                `json:"exit_date,omitempty"`
	CreatedBy       string                    `json:"created_by"       validate:"required"`
	Metadata        map[string]any            `json:"metadata,omitempty"`
	Customizations  *sequencer.Customizations `json:"customizations,omitempty"`
}

// SubmitFormRequest represents the request body for a role-specific form
// submission.
type SubmitFormRequest struct {
	Role        string         `json:"role"         validate:"required"`
	Data        map[string]any `json:"data"         validate:"required"`
	SubmittedBy string         `json:"submitted_by" validate:"required"`
}

// CreateApprovalChainRequest represents the request body for seeding an
// approval chain. An empty role list seeds the default chain.
type CreateApprovalChainRequest struct {
	Roles []string `json:"roles"`
}

// DecideApprovalRequest represents the request body for one role's approval
// decision.
type DecideApprovalRequest struct {
	Role      string `json:"role"       validate:"required"`
	Decision  string `json:"decision"   validate:"required,oneof=approved rejected"`
	DecidedBy string `json:"decided_by" validate:"required"`
	Comments  string `json:"comments,omitempty"`
}
