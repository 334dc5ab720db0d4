package orchestrator_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbellotti/exitflow/pkg/approval"
	"github.com/mbellotti/exitflow/pkg/forms"
	"github.com/mbellotti/exitflow/pkg/models"
	"github.com/mbellotti/exitflow/pkg/notification"
	"github.com/mbellotti/exitflow/pkg/orchestrator"
	"github.com/mbellotti/exitflow/pkg/persistence/file"
	"github.com/mbellotti/exitflow/pkg/sequencer"
)

type recordingTransport struct {
	mu   sync.Mutex
	sent []string
}

func (t *recordingTransport) Send(_ context.Context, recipientAddress, _, _ string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sent = append(t.sent, recipientAddress)

	return nil
}

type harness struct {
	orchestrator *orchestrator.Orchestrator
	store        *file.Persistence
	transport    *recordingTransport
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := file.NewPersistence(t.TempDir())
	transport := &recordingTransport{}

	for _, role := range models.AllRoles() {
		err := store.DirectoryRepository().SaveUser(context.Background(), &models.User{
			ID:       string(role),
			Email:    fmt.Sprintf("%s@example.com", role),
			FullName: fmt.Sprintf("%s team", role),
			Role:     role,
			IsActive: true,
		})
		require.NoError(t, err)
	}

	dispatcher := notification.NewDispatcher(
		store.NotificationRepository(), store.DirectoryRepository(), transport,
		notification.Config{}, logger)
	approvals := approval.NewManager(store.LeaseExitRepository(), approval.Config{}, logger)

	return &harness{
		orchestrator: orchestrator.NewOrchestrator(
			store, approvals, dispatcher, forms.NewValidator(), nil, nil,
			orchestrator.Config{}, logger),
		store:     store,
		transport: transport,
	}
}

func (h *harness) createCommercial(t *testing.T) *models.LeaseExit {
	t.Helper()

	leaseExit, err := h.orchestrator.CreateLeaseExit(context.Background(), orchestrator.CreateLeaseExitRequest{
		LeaseID:   "L-1001",
		LeaseType: "commercial",
		PropertyDetails: models.PropertyDetails{
			Address: "100 Main St",
			Value:   250000,
		},
		CreatedBy: "manager@example.com",
	})
	require.NoError(t, err)

	return leaseExit
}

func TestCreateLeaseExit_StartsAtDocumentCollection(t *testing.T) {
	h := newHarness(t)

	leaseExit := h.createCommercial(t)

	assert.Equal(t, models.LeaseExitStatusInProgress, leaseExit.Status)
	assert.Equal(t, sequencer.StepDocumentCollection, leaseExit.CurrentStepID)
	assert.NotEmpty(t, leaseExit.ID)
	require.NotEmpty(t, leaseExit.StepHistory)
	assert.Equal(t, "created", leaseExit.StepHistory[0].Action)

	// Initial submission notifies the three reviewing roles.
	notifications, err := h.store.NotificationRepository().ListByLeaseExit(context.Background(), leaseExit.ID)
	require.NoError(t, err)
	assert.Len(t, notifications, 3)

	roles := make(map[models.Role]bool)
	for _, n := range notifications {
		assert.Equal(t, models.NotificationInitialSubmission, n.Type)
		roles[n.RecipientRole] = true
	}

	assert.True(t, roles[models.RoleAdvisory])
	assert.True(t, roles[models.RoleIFM])
	assert.True(t, roles[models.RoleLegal])
}

func TestCreateLeaseExit_MissingLeaseID(t *testing.T) {
	h := newHarness(t)

	_, err := h.orchestrator.CreateLeaseExit(context.Background(), orchestrator.CreateLeaseExitRequest{
		CreatedBy: "manager@example.com",
	})
	require.Error(t, err)

	validationErr, ok := orchestrator.AsValidationError(err)
	require.True(t, ok)
	assert.NotEmpty(t, validationErr.Errors)
}

func TestSubmitForm_WaterfallThroughFinalReview(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	leaseExit := h.createCommercial(t)

	// Advisory's step in a commercial sequence is the financial analysis.
	result, err := h.orchestrator.SubmitForm(ctx, leaseExit.ID, models.RoleAdvisory,
		map[string]any{"cost_summary": "restoration at 120k"}, "advisory@example.com")
	require.NoError(t, err)
	assert.Equal(t, "financial_analysis", result.FormType)
	assert.ElementsMatch(t,
		[]models.Role{models.RoleLegal, models.RoleIFM, models.RoleAccounting},
		result.Recipients)

	result, err = h.orchestrator.SubmitForm(ctx, leaseExit.ID, models.RoleIFM,
		map[string]any{"condition_report": "minor wear"}, "ifm@example.com")
	require.NoError(t, err)
	assert.Equal(t, "property_inspection", result.FormType)
	assert.Equal(t, []models.Role{models.RoleMAC}, result.Recipients)

	// MAC owns no step here, so it submits its standing review form.
	result, err = h.orchestrator.SubmitForm(ctx, leaseExit.ID, models.RoleMAC,
		map[string]any{"relocation_requirements": "none"}, "mac@example.com")
	require.NoError(t, err)
	assert.Equal(t, "mac_review", result.FormType)
	assert.Equal(t, []models.Role{models.RolePJM}, result.Recipients)

	// PJM finishing hands the workflow to lease exit management for review.
	result, err = h.orchestrator.SubmitForm(ctx, leaseExit.ID, models.RolePJM,
		map[string]any{"project_requirements": "decommission AV"}, "pjm@example.com")
	require.NoError(t, err)
	assert.Equal(t, sequencer.StepFinalReview, result.NextStepID)
	assert.Equal(t, sequencer.StepFinalReview, result.LeaseExit.CurrentStepID)

	// The final review submission seeds the default approval chain.
	result, err = h.orchestrator.SubmitForm(ctx, leaseExit.ID, models.RoleLeaseExitManagement,
		map[string]any{"review_outcome": "complete"}, "manager@example.com")
	require.NoError(t, err)
	assert.True(t, result.ChainStarted)
	assert.Equal(t, sequencer.StepApproval, result.NextStepID)
	assert.Equal(t, orchestrator.DefaultApprovalChainRoles, result.Recipients)
	assert.Equal(t, models.LeaseExitStatusPendingApproval, result.LeaseExit.Status)
	assert.Equal(t, sequencer.StepApproval, result.LeaseExit.CurrentStepID)
	assert.Len(t, result.LeaseExit.ApprovalChain, len(orchestrator.DefaultApprovalChainRoles))
}

func TestSubmitForm_InvalidPayload(t *testing.T) {
	h := newHarness(t)

	leaseExit := h.createCommercial(t)

	_, err := h.orchestrator.SubmitForm(context.Background(), leaseExit.ID, models.RoleAdvisory,
		map[string]any{"comments": "missing the numbers"}, "advisory@example.com")
	require.Error(t, err)

	validationErr, ok := orchestrator.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, "financial_analysis", validationErr.FormType)
	assert.NotEmpty(t, validationErr.Errors)

	// Rejected payloads are never recorded.
	stored, err := h.orchestrator.GetLeaseExit(context.Background(), leaseExit.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Forms)
}

func TestSubmitForm_UnknownRole(t *testing.T) {
	h := newHarness(t)

	leaseExit := h.createCommercial(t)

	_, err := h.orchestrator.SubmitForm(context.Background(), leaseExit.ID, models.Role("janitorial"),
		map[string]any{}, "someone@example.com")
	require.Error(t, err)
	assert.True(t, orchestrator.IsUnknownRole(err))
}

func TestSubmitForm_CompletedLeaseExit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	leaseExit := h.createCommercial(t)

	stored, err := h.store.LeaseExitRepository().GetByID(ctx, leaseExit.ID)
	require.NoError(t, err)
	stored.Status = models.LeaseExitStatusCompleted
	require.NoError(t, h.store.LeaseExitRepository().Update(ctx, stored))

	_, err = h.orchestrator.SubmitForm(ctx, leaseExit.ID, models.RoleAdvisory,
		map[string]any{"cost_summary": "n/a"}, "advisory@example.com")
	require.Error(t, err)
	assert.True(t, orchestrator.IsInvalidState(err))
}

func TestDecideApproval_RejectionStepsBack(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	leaseExit := h.createCommercial(t)

	_, err := h.orchestrator.StartApprovalChain(ctx, leaseExit.ID,
		[]models.Role{models.RoleAdvisory, models.RoleIFM, models.RoleLegal})
	require.NoError(t, err)

	_, err = h.orchestrator.DecideApproval(ctx, leaseExit.ID,
		models.RoleAdvisory, models.DecisionApproved, "advisory@example.com", "")
	require.NoError(t, err)

	result, err := h.orchestrator.DecideApproval(ctx, leaseExit.ID,
		models.RoleLegal, models.DecisionRejected, "legal@example.com", "missing estoppel certificate")
	require.NoError(t, err)
	assert.Equal(t, models.LeaseExitStatusReviewNeeded, result.Status)

	stored, err := h.orchestrator.GetLeaseExit(ctx, leaseExit.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeaseExitStatusReviewNeeded, stored.Status)
	assert.Equal(t, sequencer.StepDocumentCollection, stored.CurrentStepID)

	// A corrected resubmission re-enters the flow.
	submitResult, err := h.orchestrator.SubmitForm(ctx, leaseExit.ID, models.RoleLeaseExitManagement,
		map[string]any{"documents_complete": "yes"}, "manager@example.com")
	require.NoError(t, err)
	assert.Equal(t, "document_collection", submitResult.FormType)
	assert.Equal(t, models.LeaseExitStatusInProgress, submitResult.LeaseExit.Status)
}

func TestSubmitForm_RejectionLoopReentersApproval(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	leaseExit := h.createCommercial(t)

	// First pass: the waterfall reaches final review and seeds the chain.
	_, err := h.orchestrator.SubmitForm(ctx, leaseExit.ID, models.RolePJM,
		map[string]any{"project_requirements": "decommission AV"}, "pjm@example.com")
	require.NoError(t, err)

	result, err := h.orchestrator.SubmitForm(ctx, leaseExit.ID, models.RoleLeaseExitManagement,
		map[string]any{"review_outcome": "complete"}, "manager@example.com")
	require.NoError(t, err)
	require.True(t, result.ChainStarted)

	// Legal rejects; the workflow steps back to document collection.
	_, err = h.orchestrator.DecideApproval(ctx, leaseExit.ID,
		models.RoleLegal, models.DecisionRejected, "legal@example.com", "missing estoppel certificate")
	require.NoError(t, err)

	stored, err := h.orchestrator.GetLeaseExit(ctx, leaseExit.ID)
	require.NoError(t, err)
	require.Equal(t, models.LeaseExitStatusReviewNeeded, stored.Status)
	require.Equal(t, sequencer.StepDocumentCollection, stored.CurrentStepID)

	// Corrected documents re-enter the flow and PJM hands it back to
	// final review.
	_, err = h.orchestrator.SubmitForm(ctx, leaseExit.ID, models.RoleLeaseExitManagement,
		map[string]any{"documents_complete": "yes"}, "manager@example.com")
	require.NoError(t, err)

	_, err = h.orchestrator.SubmitForm(ctx, leaseExit.ID, models.RolePJM,
		map[string]any{"project_requirements": "rework complete"}, "pjm@example.com")
	require.NoError(t, err)

	// The second final review submission re-enters the existing chain
	// instead of seeding a new one.
	result, err = h.orchestrator.SubmitForm(ctx, leaseExit.ID, models.RoleLeaseExitManagement,
		map[string]any{"review_outcome": "resubmitted"}, "manager@example.com")
	require.NoError(t, err)
	assert.True(t, result.ChainStarted)
	assert.Equal(t, sequencer.StepApproval, result.NextStepID)
	assert.ElementsMatch(t, orchestrator.DefaultApprovalChainRoles, result.Recipients)
	assert.Equal(t, models.LeaseExitStatusPendingApproval, result.LeaseExit.Status)
	assert.Equal(t, sequencer.StepApproval, result.LeaseExit.CurrentStepID)
	require.Len(t, result.LeaseExit.ApprovalChain, len(orchestrator.DefaultApprovalChainRoles))

	// Prior decisions survive the resubmission; only legal still blocks.
	assert.Equal(t, models.DecisionRejected,
		result.LeaseExit.ApprovalRecordFor(models.RoleLegal).Decision)

	// Every chain role is asked to decide again.
	notifications, err := h.store.NotificationRepository().ListByLeaseExit(ctx, leaseExit.ID)
	require.NoError(t, err)

	approvalRequests := 0
	for _, n := range notifications {
		if n.Type == models.NotificationApprovalRequest {
			approvalRequests++
		}
	}
	assert.Equal(t, 2*len(orchestrator.DefaultApprovalChainRoles), approvalRequests)

	// The chain completes on the retry, legal reversing its decision first.
	for _, role := range []models.Role{
		models.RoleLegal,
		models.RoleAdvisory,
		models.RoleIFM,
		models.RoleLeaseExitManagement,
	} {
		_, err = h.orchestrator.DecideApproval(ctx, leaseExit.ID,
			role, models.DecisionApproved, string(role)+"@example.com", "")
		require.NoError(t, err)
	}

	stored, err = h.orchestrator.GetLeaseExit(ctx, leaseExit.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeaseExitStatusReadyForExit, stored.Status)
	assert.Equal(t, sequencer.StepCompletion, stored.CurrentStepID)
}

func TestDecideApproval_FullApprovalAdvancesToCompletion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	leaseExit := h.createCommercial(t)

	_, err := h.orchestrator.StartApprovalChain(ctx, leaseExit.ID,
		[]models.Role{models.RoleAdvisory, models.RoleIFM})
	require.NoError(t, err)

	stored, err := h.orchestrator.GetLeaseExit(ctx, leaseExit.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeaseExitStatusPendingApproval, stored.Status)
	assert.Equal(t, sequencer.StepApproval, stored.CurrentStepID)

	result, err := h.orchestrator.DecideApproval(ctx, leaseExit.ID,
		models.RoleAdvisory, models.DecisionApproved, "advisory@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, models.LeaseExitStatusPendingApproval, result.Status)
	assert.False(t, result.AllApproved)

	result, err = h.orchestrator.DecideApproval(ctx, leaseExit.ID,
		models.RoleIFM, models.DecisionApproved, "ifm@example.com", "")
	require.NoError(t, err)
	assert.Equal(t, models.LeaseExitStatusReadyForExit, result.Status)
	assert.True(t, result.AllApproved)

	stored, err = h.orchestrator.GetLeaseExit(ctx, leaseExit.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LeaseExitStatusReadyForExit, stored.Status)
	assert.Equal(t, sequencer.StepCompletion, stored.CurrentStepID)
}

func TestStartApprovalChain_UnknownRole(t *testing.T) {
	h := newHarness(t)

	leaseExit := h.createCommercial(t)

	_, err := h.orchestrator.StartApprovalChain(context.Background(), leaseExit.ID,
		[]models.Role{models.RoleAdvisory, models.Role("janitorial")})
	require.Error(t, err)
	assert.True(t, orchestrator.IsUnknownRole(err))
}

func TestGetLeaseExit_NotFound(t *testing.T) {
	h := newHarness(t)

	_, err := h.orchestrator.GetLeaseExit(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, orchestrator.IsNotFound(err))
}

func TestListLeaseExits_StatusFilter(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	first := h.createCommercial(t)
	second := h.createCommercial(t)

	_, err := h.orchestrator.StartApprovalChain(ctx, second.ID, nil)
	require.NoError(t, err)

	inProgress, err := h.orchestrator.ListLeaseExits(ctx, models.LeaseExitStatusInProgress)
	require.NoError(t, err)
	require.Len(t, inProgress, 1)
	assert.Equal(t, first.ID, inProgress[0].ID)

	all, err := h.orchestrator.ListLeaseExits(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
