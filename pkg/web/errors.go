package web

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	"github.com/mbellotti/exitflow/pkg/approval"
	"github.com/mbellotti/exitflow/pkg/orchestrator"
	"github.com/mbellotti/exitflow/pkg/persistence"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleServiceError maps orchestrator errors onto RFC 7807 problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case orchestrator.IsNotFound(err):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("lease_exit_not_found").
			WithDetail("lease exit not found")

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case orchestrator.IsUnknownRole(err):
		problem := problems.NewStatusProblem(404).
			WithInstance(c.Path()).
			WithType("role_not_found").
			WithDetail(err.Error())

		return c.Status(fiber.StatusNotFound).JSON(problem)

	case orchestrator.IsInvalidState(err):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("invalid_state").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case errors.Is(err, persistence.ErrLeaseExitAlreadyExists):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("conflict").
			WithDetail(err.Error())

		return c.Status(fiber.StatusConflict).JSON(problem)

	case errors.Is(err, approval.ErrTooManyConflicts):
		problem := problems.NewStatusProblem(409).
			WithInstance(c.Path()).
			WithType("update_conflict").
			WithDetail("the record is under heavy concurrent modification, retry the request")

		return c.Status(fiber.StatusConflict).JSON(problem)

	default:
		validationErr, ok := orchestrator.AsValidationError(err)
		if ok {
			problem := problems.NewStatusProblem(400).
				WithInstance(c.Path()).
				WithType("validation_error").
				WithDetail(validationErr.Error())

			return c.Status(fiber.StatusBadRequest).JSON(problem)
		}

		// Log unexpected errors but don't expose details
		problem := problems.NewStatusProblem(500).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(problem)
	}
}
