// Package web provides HTTP handlers and REST API endpoints for lease exit
// workflow management.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/mbellotti/exitflow/pkg/models"
	"github.com/mbellotti/exitflow/pkg/notification"
	"github.com/mbellotti/exitflow/pkg/orchestrator"
	"github.com/mbellotti/exitflow/pkg/persistence"
)

type APIHandlers struct {
	orchestrator *orchestrator.Orchestrator
	dispatcher   *notification.Dispatcher
	store        persistence.Persistence
	validator    *validator.Validate
}

func NewAPIHandlers(
	workflowOrchestrator *orchestrator.Orchestrator,
	dispatcher *notification.Dispatcher,
	store persistence.Persistence,
	validate *validator.Validate,
) *APIHandlers {
	return &APIHandlers{
		orchestrator: workflowOrchestrator,
		dispatcher:   dispatcher,
		store:        store,
		validator:    validate,
	}
}

func (h *APIHandlers) CreateLeaseExit(c fiber.Ctx) error {
	var req CreateLeaseExitRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	leaseExit, err := h.orchestrator.CreateLeaseExit(c.Context(), orchestrator.CreateLeaseExitRequest{
		LeaseID:         req.LeaseID,
		LeaseType:       req.LeaseType,
		PropertyDetails: req.PropertyDetails,
		ExitDate:        req.ExitDate,
		CreatedBy:       req.CreatedBy,
		Metadata:        req.Metadata,
		Customizations:  req.Customizations,
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(leaseExit)
}

func (h *APIHandlers) GetLeaseExits(c fiber.Ctx) error {
	status := models.LeaseExitStatus(c.Query("status"))

	leaseExits, err := h.orchestrator.ListLeaseExits(c.Context(), status)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"lease_exits": leaseExits,
		"total_count": len(leaseExits),
	})
}

func (h *APIHandlers) GetLeaseExit(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Lease exit ID is required")
	}

	leaseExit, err := h.orchestrator.GetLeaseExit(c.Context(), id)
	if err != nil {
		if orchestrator.IsNotFound(err) {
			return notFound(c, "Lease exit not found")
		}

		return internalError(c, err)
	}

	return c.JSON(leaseExit)
}

func (h *APIHandlers) SubmitForm(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Lease exit ID is required")
	}

	var req SubmitFormRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.orchestrator.SubmitForm(c.Context(), id, models.Role(req.Role), req.Data, req.SubmittedBy)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) CreateApprovalChain(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Lease exit ID is required")
	}

	var req CreateApprovalChainRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	roles := make([]models.Role, 0, len(req.Roles))
	for _, role := range req.Roles {
		roles = append(roles, models.Role(role))
	}

	leaseExit, err := h.orchestrator.StartApprovalChain(c.Context(), id, roles)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(leaseExit)
}

func (h *APIHandlers) DecideApproval(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Lease exit ID is required")
	}

	var req DecideApprovalRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.orchestrator.DecideApproval(
		c.Context(), id, models.Role(req.Role), models.ApprovalDecision(req.Decision), req.DecidedBy, req.Comments)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(result)
}

func (h *APIHandlers) GetLeaseExitNotifications(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Lease exit ID is required")
	}

	notifications, err := h.store.NotificationRepository().ListByLeaseExit(c.Context(), id)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"notifications": notifications,
		"total_count":   len(notifications),
	})
}

func (h *APIHandlers) ResendFailedNotifications(c fiber.Ctx) error {
	retried, err := h.dispatcher.ResendFailed(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"retried":     retried,
		"total_count": len(retried),
	})
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	message := "Exitflow API is healthy"
	httpStatus := http.StatusOK

	err := h.store.HealthCheck(c.Context())
	if err != nil {
		status = "unhealthy"
		message = "Exitflow API is unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"timestamp": time.Now().UTC(),
	})
}
