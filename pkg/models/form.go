package models

import "time"

// FormStatus tracks a submitted form through review.
type FormStatus string

const (
	FormStatusPending   FormStatus = "pending"
	FormStatusSubmitted FormStatus = "submitted"
	FormStatusApproved  FormStatus = "approved"
	FormStatusRejected  FormStatus = "rejected"
)

// FormData is one role-specific form submission attached to a lease exit,
// keyed by form type. Payloads are validated and normalized by the forms
// gate before they land here.
type FormData struct {
	FormType    string         `json:"form_type"`
	Data        map[string]any `json:"data"`
	Status      FormStatus     `json:"status"`
	SubmittedBy string         `json:"submitted_by"`
	SubmittedAt time.Time      `json:"submitted_at"`
}
