// Package orchestrator composes the sequencer, approval manager, routing
// table, form gate, and notification dispatcher into the lease exit state
// machine. It owns every mutation of a lease exit record.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mbellotti/exitflow/pkg/approval"
	"github.com/mbellotti/exitflow/pkg/eventbus"
	"github.com/mbellotti/exitflow/pkg/events"
	"github.com/mbellotti/exitflow/pkg/forms"
	"github.com/mbellotti/exitflow/pkg/models"
	"github.com/mbellotti/exitflow/pkg/notification"
	"github.com/mbellotti/exitflow/pkg/otelhelper"
	"github.com/mbellotti/exitflow/pkg/persistence"
	"github.com/mbellotti/exitflow/pkg/routing"
	"github.com/mbellotti/exitflow/pkg/sequencer"
)

// DefaultApprovalChainRoles is the chain seeded when the final review lands
// without an explicit chain request.
var DefaultApprovalChainRoles = []models.Role{
	models.RoleAdvisory,
	models.RoleIFM,
	models.RoleLegal,
	models.RoleLeaseExitManagement,
}

// Config carries the orchestrator's explicit settings.
type Config struct {
	// MaxRetries bounds the optimistic-update retry loop for step and
	// status mutations.
	MaxRetries int
}

// DefaultConfig returns the orchestrator defaults.
func DefaultConfig() Config {
	return Config{MaxRetries: 5}
}

// CreateLeaseExitRequest carries the attributes a new lease exit is built
// from. Customizations are optional sequence adjustments.
type CreateLeaseExitRequest struct {
	LeaseID         string                    `json:"lease_id"   validate:"required"`
	LeaseType       string                    `json:"lease_type"`
	PropertyDetails models.PropertyDetails    `json:"property_details"`
	ExitDate        *time.Time                `json:"exit_date,omitempty"`
	CreatedBy       string                    `json:"created_by" validate:"required"`
	Metadata        map[string]any            `json:"metadata,omitempty"`
	Customizations  *sequencer.Customizations `json:"customizations,omitempty"`
}

// SubmitFormResult reports where the workflow moved after a form submission.
type SubmitFormResult struct {
	LeaseExit    *models.LeaseExit `json:"lease_exit"`
	FormType     string            `json:"form_type"`
	NextStepID   string            `json:"next_step_id,omitempty"`
	Recipients   []models.Role     `json:"recipients,omitempty"`
	ChainStarted bool              `json:"chain_started"`
}

// Orchestrator drives lease exits through their lifecycle.
type Orchestrator struct {
	persistence persistence.Persistence
	approvals   *approval.Manager
	dispatcher  *notification.Dispatcher
	forms       *forms.Validator
	publisher   eventbus.EventPublisher
	validator   *validator.Validate
	tracer      trace.Tracer
	config      Config
	logger      *slog.Logger
}

// NewOrchestrator creates a workflow orchestrator. A nil tracer falls back
// to the globally registered provider.
func NewOrchestrator(
	store persistence.Persistence,
	approvals *approval.Manager,
	dispatcher *notification.Dispatcher,
	formValidator *forms.Validator,
	publisher eventbus.EventPublisher,
	tracer trace.Tracer,
	config Config,
	logger *slog.Logger,
) *Orchestrator {
	if config.MaxRetries <= 0 {
		config.MaxRetries = DefaultConfig().MaxRetries
	}

	if tracer == nil {
		tracer = otel.Tracer("exitflow")
	}

	return &Orchestrator{
		persistence: store,
		approvals:   approvals,
		dispatcher:  dispatcher,
		forms:       formValidator,
		publisher:   publisher,
		validator:   validator.New(),
		tracer:      tracer,
		config:      config,
		logger:      logger.With("module", "orchestrator"),
	}
}

// CreateLeaseExit builds the step sequence for the lease attributes,
// persists a new in-progress lease exit positioned at document collection,
// and notifies the reviewing roles of the initial submission.
func (o *Orchestrator) CreateLeaseExit(ctx context.Context, req CreateLeaseExitRequest) (*models.LeaseExit, error) {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "orchestrator.create_lease_exit",
		attribute.String(otelhelper.LeaseIDKey, req.LeaseID))
	defer span.End()

	err := o.validator.Struct(req)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, &ValidationError{FormType: "lease_exit_initiation", Errors: []string{err.Error()}}
	}

	sequence := sequencer.Build(req.LeaseType, req.PropertyDetails, req.Customizations)
	route := routing.Lookup(routing.EventInitialSubmission)
	now := time.Now().UTC()

	leaseExit := &models.LeaseExit{
		ID:              uuid.New().String(),
		LeaseID:         req.LeaseID,
		LeaseType:       req.LeaseType,
		PropertyDetails: req.PropertyDetails,
		Status:          models.LeaseExitStatusInProgress,
		CurrentStepID:   route.NextStepID,
		Steps:           sequence.Steps,
		Transitions:     sequence.Transitions,
		ExitDate:        req.ExitDate,
		CreatedBy:       req.CreatedBy,
		Metadata:        req.Metadata,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	leaseExit.AppendHistory(sequencer.StepInitiation, "created", req.CreatedBy)

	err = o.persistence.LeaseExitRepository().Create(ctx, leaseExit)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to persist lease exit: %w", err)
	}

	span.SetAttributes(attribute.String(otelhelper.LeaseExitIDKey, leaseExit.ID))
	o.logger.InfoContext(ctx, "Created lease exit",
		"lease_exit_id", leaseExit.ID, "lease_id", leaseExit.LeaseID, "steps", len(leaseExit.Steps))

	o.notify(ctx, leaseExit, route.Recipients, models.NotificationInitialSubmission, nil)
	o.publish(ctx, leaseExit.ID, events.LeaseExitCreated{
		BaseEvent: events.NewBaseEvent(events.LeaseExitCreatedEvent, leaseExit.ID),
		LeaseID:   leaseExit.LeaseID,
		Status:    leaseExit.Status,
		StepCount: len(leaseExit.Steps),
	})

	return leaseExit, nil
}

// SubmitForm validates the payload for the role's current form, records it,
// advances the workflow along the routing table, and notifies the next
// recipients. A lease exit management submission of the final review form
// starts the approval chain instead of routing onward; when a chain already
// exists from an earlier pass, the workflow re-enters it.
func (o *Orchestrator) SubmitForm(
	ctx context.Context,
	leaseExitID string,
	role models.Role,
	payload map[string]any,
	actor string,
) (*SubmitFormResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "orchestrator.submit_form",
		attribute.String(otelhelper.LeaseExitIDKey, leaseExitID),
		attribute.String(otelhelper.RoleKey, string(role)))
	defer span.End()

	if !models.KnownRole(role) {
		return nil, fmt.Errorf("role %s: %w", role, ErrUnknownRole)
	}

	var (
		result     SubmitFormResult
		event      routing.Event
		startChain bool
		chainRoles []models.Role
	)

	err := o.mutate(ctx, leaseExitID, func(leaseExit *models.LeaseExit) error {
		if leaseExit.Status == models.LeaseExitStatusCompleted {
			return fmt.Errorf("lease exit %s is completed: %w", leaseExitID, ErrInvalidState)
		}

		// The role's own step names the form; reviewing roles without a
		// step in this sequence fall back to their standing review form.
		stepID := leaseExit.CurrentStepID
		formType := reviewFormType(role)

		if step := stepForRole(leaseExit, role); step != nil {
			stepID = step.ID

			if step.RequiredForm != "" {
				formType = step.RequiredForm
			} else if formType == "" {
				formType = step.ID
			}
		}

		if formType == "" {
			return fmt.Errorf("role %s on lease exit %s: %w", role, leaseExitID, ErrNoStepForRole)
		}

		validation, err := o.forms.Validate(formType, payload)
		if err != nil {
			return fmt.Errorf("form gate failed for %s: %w", formType, err)
		}

		if !validation.Valid {
			return &ValidationError{FormType: formType, Errors: validation.Errors}
		}

		if leaseExit.Forms == nil {
			leaseExit.Forms = make(map[string]*models.FormData)
		}

		leaseExit.Forms[formType] = &models.FormData{
			FormType:    formType,
			Data:        validation.Normalized,
			Status:      models.FormStatusSubmitted,
			SubmittedBy: actor,
			SubmittedAt: time.Now().UTC(),
		}
		leaseExit.AppendHistory(stepID, "form_submitted", actor)

		// A corrected resubmission after a rejection re-enters the flow.
		if leaseExit.Status == models.LeaseExitStatusReviewNeeded {
			leaseExit.Status = models.LeaseExitStatusInProgress
		}

		event = ""
		startChain = false
		chainRoles = nil

		if role == models.RoleLeaseExitManagement {
			switch stepID {
			case sequencer.StepInitiation:
				event = routing.EventInitialSubmission
			case sequencer.StepFinalReview:
				if len(leaseExit.ApprovalChain) == 0 {
					startChain = true

					break
				}

				// The chain survives a rejection. A repeat pass through
				// final review re-enters it; the existing records take
				// the retry since decisions are overwritable.
				for _, record := range leaseExit.ApprovalChain {
					chainRoles = append(chainRoles, record.Role)
				}

				if leaseExit.Step(sequencer.StepApproval) != nil {
					leaseExit.CurrentStepID = sequencer.StepApproval
				}

				leaseExit.Status = models.LeaseExitStatusPendingApproval
				leaseExit.AppendHistory(leaseExit.CurrentStepID, "approval_chain_resumed", actor)
			}
		} else if reviewEvent, ok := routing.ReviewDone(role); ok {
			event = reviewEvent
		}

		route := routing.Lookup(event)
		if route.NextStepID != "" && leaseExit.Step(route.NextStepID) != nil {
			leaseExit.CurrentStepID = route.NextStepID
		}

		result = SubmitFormResult{
			LeaseExit:  leaseExit,
			FormType:   formType,
			NextStepID: route.NextStepID,
			Recipients: route.Recipients,
		}

		return nil
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	span.SetAttributes(attribute.String(otelhelper.FormTypeKey, result.FormType))

	if startChain {
		chainResult, err := o.StartApprovalChain(ctx, leaseExitID, nil)
		if err != nil {
			return nil, err
		}

		result.LeaseExit = chainResult
		result.NextStepID = sequencer.StepApproval
		result.Recipients = DefaultApprovalChainRoles
		result.ChainStarted = true
	} else if len(chainRoles) > 0 {
		result.NextStepID = sequencer.StepApproval
		result.Recipients = chainRoles
		result.ChainStarted = true

		o.notify(ctx, result.LeaseExit, chainRoles, models.NotificationApprovalRequest,
			map[string]string{"resubmitted_by": actor})
	} else if event != "" {
		notificationType := models.NotificationFormSubmission
		if event == routing.EventInitialSubmission {
			notificationType = models.NotificationInitialSubmission
		}

		o.notify(ctx, result.LeaseExit, result.Recipients, notificationType,
			map[string]string{"form_type": result.FormType, "submitted_by": actor})
	}

	o.publish(ctx, leaseExitID, events.FormSubmitted{
		BaseEvent: events.NewBaseEvent(events.FormSubmittedEvent, leaseExitID),
		Role:      role,
		FormType:  result.FormType,
		StepID:    result.LeaseExit.CurrentStepID,
	})

	o.logger.InfoContext(ctx, "Processed form submission",
		"lease_exit_id", leaseExitID, "role", role, "form_type", result.FormType,
		"next_step", result.NextStepID, "chain_started", result.ChainStarted)

	return &result, nil
}

// StartApprovalChain seeds the approval chain, moves the workflow to the
// approval step, and requests a decision from every chain role. An empty
// roles slice seeds the default chain.
func (o *Orchestrator) StartApprovalChain(ctx context.Context, leaseExitID string, roles []models.Role) (*models.LeaseExit, error) {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "orchestrator.start_approval_chain",
		attribute.String(otelhelper.LeaseExitIDKey, leaseExitID))
	defer span.End()

	if len(roles) == 0 {
		roles = DefaultApprovalChainRoles
	}

	for _, role := range roles {
		if !models.KnownRole(role) {
			return nil, fmt.Errorf("role %s: %w", role, ErrUnknownRole)
		}
	}

	_, err := o.approvals.Create(ctx, leaseExitID, roles)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	var leaseExit *models.LeaseExit

	err = o.mutate(ctx, leaseExitID, func(current *models.LeaseExit) error {
		if current.Step(sequencer.StepApproval) != nil {
			current.CurrentStepID = sequencer.StepApproval
		}

		current.AppendHistory(current.CurrentStepID, "approval_chain_created", "")
		leaseExit = current

		return nil
	})
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	o.notify(ctx, leaseExit, roles, models.NotificationApprovalRequest, nil)
	o.publish(ctx, leaseExitID, events.ApprovalChainCreated{
		BaseEvent: events.NewBaseEvent(events.ApprovalChainCreatedEvent, leaseExitID),
		Roles:     roles,
	})

	return leaseExit, nil
}

// DecideApproval applies one role's decision and reacts to the resulting
// chain aggregate: a rejection returns the workflow to document collection
// and alerts lease exit management, a fully approved chain advances to
// completion and notifies every role.
func (o *Orchestrator) DecideApproval(
	ctx context.Context,
	leaseExitID string,
	role models.Role,
	decision models.ApprovalDecision,
	actor, comments string,
) (*approval.DecideResult, error) {
	ctx, span := otelhelper.StartSpan(ctx, o.tracer, "orchestrator.decide_approval",
		attribute.String(otelhelper.LeaseExitIDKey, leaseExitID),
		attribute.String(otelhelper.RoleKey, string(role)),
		attribute.String(otelhelper.DecisionKey, string(decision)))
	defer span.End()

	result, err := o.approvals.Decide(ctx, leaseExitID, role, decision, actor, comments)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	o.publish(ctx, leaseExitID, events.ApprovalDecided{
		BaseEvent: events.NewBaseEvent(events.ApprovalDecidedEvent, leaseExitID),
		Role:      role,
		Decision:  decision,
		Status:    result.Status,
	})

	switch result.Status {
	case models.LeaseExitStatusReviewNeeded:
		err = o.afterRejection(ctx, leaseExitID, role, comments)
	case models.LeaseExitStatusReadyForExit:
		err = o.afterFullApproval(ctx, leaseExitID)
	}

	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	return result, nil
}

// GetLeaseExit loads one lease exit by id.
func (o *Orchestrator) GetLeaseExit(ctx context.Context, leaseExitID string) (*models.LeaseExit, error) {
	leaseExit, err := o.persistence.LeaseExitRepository().GetByID(ctx, leaseExitID)
	if err != nil {
		return nil, err
	}

	if leaseExit == nil {
		return nil, fmt.Errorf("lease exit %s: %w", leaseExitID, ErrLeaseExitNotFound)
	}

	return leaseExit, nil
}

// ListLeaseExits returns lease exits, optionally filtered by status.
func (o *Orchestrator) ListLeaseExits(ctx context.Context, status models.LeaseExitStatus) ([]*models.LeaseExit, error) {
	if status != "" {
		return o.persistence.LeaseExitRepository().ListByStatus(ctx, status)
	}

	return o.persistence.LeaseExitRepository().List(ctx)
}

// afterRejection returns the workflow to the document collection step per
// the approval step's rejection edge and alerts lease exit management.
func (o *Orchestrator) afterRejection(ctx context.Context, leaseExitID string, rejectedBy models.Role, comments string) error {
	route := routing.Lookup(routing.EventApprovalRejected)

	var leaseExit *models.LeaseExit

	err := o.mutate(ctx, leaseExitID, func(current *models.LeaseExit) error {
		if current.Step(route.NextStepID) != nil {
			current.CurrentStepID = route.NextStepID
		}

		leaseExit = current

		return nil
	})
	if err != nil {
		return err
	}

	o.notify(ctx, leaseExit, route.Recipients, models.NotificationApprovalRejected,
		map[string]string{"rejected_by": string(rejectedBy), "comments": comments})
	o.publish(ctx, leaseExitID, events.LeaseExitReviewNeeded{
		BaseEvent:  events.NewBaseEvent(events.LeaseExitReviewNeededEvent, leaseExitID),
		RejectedBy: rejectedBy,
		Comments:   comments,
	})

	return nil
}

// afterFullApproval advances the workflow to completion and fans the result
// out to every role.
func (o *Orchestrator) afterFullApproval(ctx context.Context, leaseExitID string) error {
	route := routing.Lookup(routing.EventApprovalGranted)

	var leaseExit *models.LeaseExit

	err := o.mutate(ctx, leaseExitID, func(current *models.LeaseExit) error {
		if current.Step(route.NextStepID) != nil {
			current.CurrentStepID = route.NextStepID
		}

		leaseExit = current

		return nil
	})
	if err != nil {
		return err
	}

	o.notify(ctx, leaseExit, route.Recipients, models.NotificationApprovalComplete, nil)
	o.publish(ctx, leaseExitID, events.LeaseExitReady{
		BaseEvent: events.NewBaseEvent(events.LeaseExitReadyEvent, leaseExitID),
	})

	return nil
}

// notify fans a notification out and records the result. Delivery failures
// are per-recipient and never fail the triggering operation.
func (o *Orchestrator) notify(
	ctx context.Context,
	leaseExit *models.LeaseExit,
	roles []models.Role,
	notificationType models.NotificationType,
	extra map[string]string,
) {
	notifications, err := o.dispatcher.Dispatch(ctx, leaseExit, roles, notificationType, extra)
	if err != nil {
		o.logger.ErrorContext(ctx, "Notification dispatch failed",
			"lease_exit_id", leaseExit.ID, "type", notificationType, "error", err)

		return
	}

	failed := 0

	for _, n := range notifications {
		if n.Status == models.NotificationStatusFailed {
			failed++
		}
	}

	o.publish(ctx, leaseExit.ID, events.NotificationDispatched{
		BaseEvent:        events.NewBaseEvent(events.NotificationDispatchedEvent, leaseExit.ID),
		NotificationType: notificationType,
		Recipients:       len(notifications),
		Failed:           failed,
	})
}

// publish emits a lifecycle event. Events are advisory; a publish failure is
// logged, never surfaced.
func (o *Orchestrator) publish(ctx context.Context, key string, event eventbus.Event) {
	if o.publisher == nil {
		return
	}

	err := o.publisher.Publish(ctx, key, event)
	if err != nil {
		o.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "error", err)
	}
}

// mutate runs one atomic read-modify-write with bounded retries on revision
// conflict, mirroring the approval manager's update discipline.
func (o *Orchestrator) mutate(ctx context.Context, leaseExitID string, fn func(*models.LeaseExit) error) error {
	repository := o.persistence.LeaseExitRepository()

	for attempt := 0; attempt < o.config.MaxRetries; attempt++ {
		leaseExit, err := repository.GetByID(ctx, leaseExitID)
		if err != nil {
			return err
		}

		if leaseExit == nil {
			return fmt.Errorf("lease exit %s: %w", leaseExitID, ErrLeaseExitNotFound)
		}

		err = fn(leaseExit)
		if err != nil {
			return err
		}

		err = repository.Update(ctx, leaseExit)
		if err == nil {
			return nil
		}

		if !persistence.IsRevisionConflict(err) {
			return err
		}

		o.logger.DebugContext(ctx, "Revision conflict, retrying", "lease_exit_id", leaseExitID, "attempt", attempt+1)
	}

	return fmt.Errorf("lease exit %s after %d attempts: %w", leaseExitID, o.config.MaxRetries, approval.ErrTooManyConflicts)
}

// reviewFormType names the standing review form of the waterfall roles.
func reviewFormType(role models.Role) string {
	switch role {
	case models.RoleAdvisory:
		return "advisory_review"
	case models.RoleIFM:
		return "ifm_review"
	case models.RoleLegal:
		return "legal_review"
	case models.RoleMAC:
		return "mac_review"
	case models.RolePJM:
		return "pjm_review"
	default:
		return ""
	}
}

// stepForRole resolves the step a role is submitting against: the current
// step when the role owns it, otherwise the role's next form-bearing step.
// Steps already passed are never matched again, so a late submission from
// lease exit management cannot be mistaken for the initiation form.
func stepForRole(leaseExit *models.LeaseExit, role models.Role) *models.WorkflowStep {
	currentIndex := 0

	for i, step := range leaseExit.Steps {
		if step.ID == leaseExit.CurrentStepID {
			currentIndex = i

			break
		}
	}

	if len(leaseExit.Steps) > 0 && leaseExit.Steps[currentIndex].AssignedRole == role {
		return leaseExit.Steps[currentIndex]
	}

	for _, step := range leaseExit.Steps[currentIndex:] {
		if step.AssignedRole == role && step.RequiredForm != "" {
			return step
		}
	}

	return nil
}
