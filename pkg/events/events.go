// Package events defines event types and structures for lease exit lifecycle notifications.
package events

import (
	"time"

	"github.com/mbellotti/exitflow/pkg/models"
)

type EventType string

// Topic is the channel all lease exit lifecycle events are published on.
const Topic = "exitflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Lease exit lifecycle events.
	LeaseExitCreatedEvent      EventType = "lease_exit.created"
	LeaseExitReadyEvent        EventType = "lease_exit.ready_for_exit"
	LeaseExitReviewNeededEvent EventType = "lease_exit.review_needed"

	// Review and approval events.
	FormSubmittedEvent          EventType = "form.submitted"
	ApprovalChainCreatedEvent   EventType = "approval.chain_created"
	ApprovalDecidedEvent        EventType = "approval.decided"
	NotificationDispatchedEvent EventType = "notification.dispatched"
)

type BaseEvent struct {
	ID          string         `json:"id"`
	Type        EventType      `json:"type"`
	Timestamp   time.Time      `json:"timestamp"`
	LeaseExitID string         `json:"lease_exit_id"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewBaseEvent creates the shared envelope of a lifecycle event.
func NewBaseEvent(eventType EventType, leaseExitID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		LeaseExitID: leaseExitID,
	}
}

type LeaseExitCreated struct {
	BaseEvent

	LeaseID   string                 `json:"lease_id"`
	Status    models.LeaseExitStatus `json:"status"`
	StepCount int                    `json:"step_count"`
}

func (e LeaseExitCreated) GetType() EventType {
	return LeaseExitCreatedEvent
}

type LeaseExitReady struct {
	BaseEvent
}

func (e LeaseExitReady) GetType() EventType {
	return LeaseExitReadyEvent
}

type LeaseExitReviewNeeded struct {
	BaseEvent

	RejectedBy models.Role `json:"rejected_by"`
	Comments   string      `json:"comments,omitempty"`
}

func (e LeaseExitReviewNeeded) GetType() EventType {
	return LeaseExitReviewNeededEvent
}

type FormSubmitted struct {
	BaseEvent

	Role     models.Role `json:"role"`
	FormType string      `json:"form_type"`
	StepID   string      `json:"step_id"`
}

func (e FormSubmitted) GetType() EventType {
	return FormSubmittedEvent
}

type ApprovalChainCreated struct {
	BaseEvent

	Roles []models.Role `json:"roles"`
}

func (e ApprovalChainCreated) GetType() EventType {
	return ApprovalChainCreatedEvent
}

type ApprovalDecided struct {
	BaseEvent

	Role     models.Role             `json:"role"`
	Decision models.ApprovalDecision `json:"decision"`
	Status   models.LeaseExitStatus  `json:"status"`
}

func (e ApprovalDecided) GetType() EventType {
	return ApprovalDecidedEvent
}

type NotificationDispatched struct {
	BaseEvent

	NotificationType models.NotificationType `json:"notification_type"`
	Recipients       int                     `json:"recipients"`
	Failed           int                     `json:"failed"`
}

func (e NotificationDispatched) GetType() EventType {
	return NotificationDispatchedEvent
}
