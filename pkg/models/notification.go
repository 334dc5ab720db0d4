package models

import "time"

// NotificationStatus tracks per-recipient delivery state.
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "pending"
	NotificationStatusSent    NotificationStatus = "sent"
	NotificationStatusFailed  NotificationStatus = "failed"
)

// NotificationType tags why a notification was produced.
type NotificationType string

const (
	NotificationInitialSubmission NotificationType = "initial_submission"
	NotificationFormSubmission    NotificationType = "form_submission"
	NotificationApprovalRequest   NotificationType = "approval_request"
	NotificationApprovalComplete  NotificationType = "approval_complete"
	NotificationApprovalRejected  NotificationType = "approval_rejected"
	NotificationReminder          NotificationType = "reminder"
	NotificationDeadline          NotificationType = "deadline"
)

// Notification is one delivery attempt record for one resolved recipient.
// A role fanning out to N recipients produces N notifications; a role that
// resolves to nobody still produces one sentinel record with an empty
// address so the fan-out stays auditable.
type Notification struct {
	ID             string             `json:"id"`
	LeaseExitID    string             `json:"lease_exit_id"  validate:"required"`
	RecipientRole  Role               `json:"recipient_role" validate:"required"`
	RecipientEmail string             `json:"recipient_email"`
	Subject        string             `json:"subject"        validate:"required"`
	Message        string             `json:"message"`
	Type           NotificationType   `json:"type"`
	Status         NotificationStatus `json:"status"`
	Error          string             `json:"error,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	SentAt         *time.Time         `json:"sent_at,omitempty"`
}

// User is a directory entry resolving a role to a reachable person.
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"     validate:"required,email"`
	FullName string `json:"full_name"`
	Role     Role   `json:"role"      validate:"required"`
	IsActive bool   `json:"is_active"`
}
