package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbellotti/exitflow/pkg/approval"
	"github.com/mbellotti/exitflow/pkg/forms"
	"github.com/mbellotti/exitflow/pkg/models"
	"github.com/mbellotti/exitflow/pkg/notification"
	"github.com/mbellotti/exitflow/pkg/orchestrator"
	"github.com/mbellotti/exitflow/pkg/persistence/file"
	"github.com/mbellotti/exitflow/pkg/sequencer"
	"github.com/mbellotti/exitflow/pkg/web"
)

func setupTestApp(t *testing.T) (*fiber.App, *orchestrator.Orchestrator) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := file.NewPersistence(t.TempDir())

	for _, role := range models.AllRoles() {
		err := store.DirectoryRepository().SaveUser(context.Background(), &models.User{
			ID:       string(role),
			Email:    fmt.Sprintf("%s@example.com", role),
			Role:     role,
			IsActive: true,
		})
		require.NoError(t, err)
	}

	dispatcher := notification.NewDispatcher(
		store.NotificationRepository(), store.DirectoryRepository(),
		notification.NewLogTransport(logger), notification.Config{}, logger)
	approvals := approval.NewManager(store.LeaseExitRepository(), approval.Config{}, logger)
	workflowOrchestrator := orchestrator.NewOrchestrator(
		store, approvals, dispatcher, forms.NewValidator(), nil, nil,
		orchestrator.Config{}, logger)

	handlers := web.NewAPIHandlers(workflowOrchestrator, dispatcher, store,
		validator.New(validator.WithRequiredStructEnabled()))

	app := fiber.New()

	le := app.Group("/lease-exits")
	le.Get("/", handlers.GetLeaseExits)
	le.Post("/", handlers.CreateLeaseExit)
	le.Get("/:id", handlers.GetLeaseExit)
	le.Post("/:id/forms", handlers.SubmitForm)
	le.Post("/:id/approval-chain", handlers.CreateApprovalChain)
	le.Post("/:id/approvals", handlers.DecideApproval)
	le.Get("/:id/notifications", handlers.GetLeaseExitNotifications)
	app.Get("/health", handlers.HealthCheck)

	return app, workflowOrchestrator
}

func postJSON(t *testing.T, app *fiber.App, path string, body any) *http.Response {
	t.Helper()

	var (
		payload []byte
		err     error
	)

	if raw, ok := body.(string); ok {
		payload = []byte(raw)
	} else {
		payload, err = json.Marshal(body)
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBuffer(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	return resp
}

func decodeBody(t *testing.T, resp *http.Response, target any) {
	t.Helper()

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(body, target))
}

func createLeaseExit(t *testing.T, app *fiber.App) *models.LeaseExit {
	t.Helper()

	resp := postJSON(t, app, "/lease-exits/", web.CreateLeaseExitRequest{
		LeaseID:   "L-2001",
		LeaseType: "commercial",
		PropertyDetails: models.PropertyDetails{
			Address: "500 Market St",
			Value:   400000,
		},
		CreatedBy: "manager@example.com",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var leaseExit models.LeaseExit

	decodeBody(t, resp, &leaseExit)

	return &leaseExit
}

func TestCreateLeaseExit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
	}{
		{
			name: "successful creation",
			requestBody: web.CreateLeaseExitRequest{
				LeaseID:         "L-1",
				LeaseType:       "commercial",
				PropertyDetails: models.PropertyDetails{Address: "1 Elm St"},
				CreatedBy:       "manager@example.com",
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name: "missing lease id",
			requestBody: web.CreateLeaseExitRequest{
				CreatedBy: "manager@example.com",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "missing created by",
			requestBody: web.CreateLeaseExitRequest{
				LeaseID: "L-1",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			requestBody:    "not-json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, _ := setupTestApp(t)

			resp := postJSON(t, app, "/lease-exits/", tt.requestBody)

			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusCreated {
				var leaseExit models.LeaseExit

				decodeBody(t, resp, &leaseExit)
				assert.NotEmpty(t, leaseExit.ID)
				assert.Equal(t, models.LeaseExitStatusInProgress, leaseExit.Status)
			}
		})
	}
}

func TestCreateLeaseExit_Customizations(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp := postJSON(t, app, "/lease-exits/", web.CreateLeaseExitRequest{
		LeaseID:   "L-77",
		LeaseType: "commercial",
		PropertyDetails: models.PropertyDetails{
			Address: "9 Dock Rd",
			Value:   300000,
		},
		CreatedBy: "manager@example.com",
		Customizations: &sequencer.Customizations{
			AddSteps: []sequencer.AddStep{
				{Step: models.WorkflowStep{
					ID:           "it_decommission",
					Name:         "IT Decommission",
					AssignedRole: models.RoleIFM,
				}},
			},
			RemoveStepIDs: []string{sequencer.StepPropertyInspection},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var leaseExit models.LeaseExit

	decodeBody(t, resp, &leaseExit)

	stepIDs := make([]string, 0, len(leaseExit.Steps))
	for _, step := range leaseExit.Steps {
		stepIDs = append(stepIDs, step.ID)
	}

	assert.Contains(t, stepIDs, "it_decommission")
	assert.NotContains(t, stepIDs, sequencer.StepPropertyInspection)
}

func TestGetLeaseExit(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	created := createLeaseExit(t, app)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/lease-exits/"+created.ID, nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched models.LeaseExit

	decodeBody(t, resp, &fetched)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, "L-2001", fetched.LeaseID)
}

func TestGetLeaseExit_NotFound(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/lease-exits/missing", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var problem struct {
		Title  string `json:"title"`
		Status int    `json:"status"`
	}

	decodeBody(t, resp, &problem)
	assert.Equal(t, http.StatusNotFound, problem.Status)
	assert.NotEmpty(t, problem.Title)
}

func TestGetLeaseExits_StatusFilter(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	createLeaseExit(t, app)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/lease-exits/?status=in_progress", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		LeaseExits []*models.LeaseExit `json:"lease_exits"`
		TotalCount int                 `json:"total_count"`
	}

	decodeBody(t, resp, &listing)
	assert.Equal(t, 1, listing.TotalCount)
	require.Len(t, listing.LeaseExits, 1)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/lease-exits/?status=completed", nil))
	require.NoError(t, err)

	decodeBody(t, resp, &listing)
	assert.Equal(t, 0, listing.TotalCount)
}

func TestSubmitForm(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	created := createLeaseExit(t, app)

	resp := postJSON(t, app, "/lease-exits/"+created.ID+"/forms", web.SubmitFormRequest{
		Role:        "advisory",
		Data:        map[string]any{"cost_summary": "restoration at 80k"},
		SubmittedBy: "advisory@example.com",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result orchestrator.SubmitFormResult

	decodeBody(t, resp, &result)
	assert.Equal(t, "financial_analysis", result.FormType)
	assert.False(t, result.ChainStarted)
}

func TestSubmitForm_InvalidPayload(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	created := createLeaseExit(t, app)

	resp := postJSON(t, app, "/lease-exits/"+created.ID+"/forms", web.SubmitFormRequest{
		Role:        "advisory",
		Data:        map[string]any{"comments": "numbers to follow"},
		SubmittedBy: "advisory@example.com",
	})
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSubmitForm_UnknownRole(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	created := createLeaseExit(t, app)

	resp := postJSON(t, app, "/lease-exits/"+created.ID+"/forms", web.SubmitFormRequest{
		Role:        "janitorial",
		Data:        map[string]any{},
		SubmittedBy: "someone@example.com",
	})
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestApprovalChainAndDecisions(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	created := createLeaseExit(t, app)

	resp := postJSON(t, app, "/lease-exits/"+created.ID+"/approval-chain", web.CreateApprovalChainRequest{
		Roles: []string{"advisory", "legal"},
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var pending models.LeaseExit

	decodeBody(t, resp, &pending)
	assert.Equal(t, models.LeaseExitStatusPendingApproval, pending.Status)
	assert.Len(t, pending.ApprovalChain, 2)

	resp = postJSON(t, app, "/lease-exits/"+created.ID+"/approvals", web.DecideApprovalRequest{
		Role:      "advisory",
		Decision:  "approved",
		DecidedBy: "advisory@example.com",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var result approval.DecideResult

	decodeBody(t, resp, &result)
	assert.Equal(t, models.LeaseExitStatusPendingApproval, result.Status)

	resp = postJSON(t, app, "/lease-exits/"+created.ID+"/approvals", web.DecideApprovalRequest{
		Role:      "legal",
		Decision:  "approved",
		DecidedBy: "legal@example.com",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	decodeBody(t, resp, &result)
	assert.Equal(t, models.LeaseExitStatusReadyForExit, result.Status)
	assert.True(t, result.AllApproved)
}

func TestDecideApproval_InvalidDecision(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	created := createLeaseExit(t, app)

	resp := postJSON(t, app, "/lease-exits/"+created.ID+"/approvals", web.DecideApprovalRequest{
		Role:      "advisory",
		Decision:  "maybe",
		DecidedBy: "advisory@example.com",
	})
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetLeaseExitNotifications(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	created := createLeaseExit(t, app)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/lease-exits/"+created.ID+"/notifications", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var listing struct {
		Notifications []*models.Notification `json:"notifications"`
		TotalCount    int                    `json:"total_count"`
	}

	decodeBody(t, resp, &listing)
	// Initial submission fans out to the three reviewing roles.
	assert.Equal(t, 3, listing.TotalCount)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var health struct {
		Status string `json:"status"`
	}

	decodeBody(t, resp, &health)
	assert.Equal(t, "healthy", health.Status)
}
