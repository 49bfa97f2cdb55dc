package merge

import (
	"errors"

	"sqlmerge/core/logger"
	"sqlmerge/core/reconcile"
	"sqlmerge/core/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for merges.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the merge routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/merge")
	group.Post("/", h.HandleMerge)
	group.Post("/plan", h.HandlePlan)
}

// HandleMerge synthesizes and executes a merge.
// The dry_run query flag or body field returns the statement instead.
func (h *Handler) HandleMerge(c *fiber.Ctx) error {
	return h.run(c, utils.ToBool(c.Query("dry_run")))
}

// HandlePlan synthesizes a merge without executing it.
func (h *Handler) HandlePlan(c *fiber.Ctx) error {
	return h.run(c, true)
}

func (h *Handler) run(c *fiber.Ctx, forceDryRun bool) error {
	l := logger.WithRayID(h.service.logger, c)

	var body MergeRequest
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body: " + err.Error(),
		})
	}
	req, err := body.ToRequest()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if forceDryRun {
		req.DryRun = true
	}

	l = l.With(zap.String("target", req.Target), zap.String("source", req.Source), zap.Bool("dry_run", req.DryRun))
	l.Info("Merge requested")

	outcome, err := h.service.Merge(c.Context(), req)
	if err != nil {
		status := statusFor(err)
		if status == fiber.StatusInternalServerError {
			l.Error("Merge failed", zap.Error(err))
		} else {
			l.Warn("Merge rejected", zap.Error(err))
		}
		resp := fiber.Map{"error": err.Error()}
		if outcome != nil {
			resp["outcome"] = outcome
		}
		return c.Status(status).JSON(resp)
	}
	if outcome.Warning != "" {
		l.Warn("Merge committed with warning", zap.String("warning", outcome.Warning))
	}
	return c.JSON(outcome)
}

func statusFor(err error) int {
	var (
		validationErr *reconcile.ValidationError
		schemaErr     *reconcile.SchemaError
		hazardErr     *reconcile.HazardError
		varianceErr   *reconcile.VarianceExceededError
	)
	switch {
	case errors.As(err, &varianceErr):
		return fiber.StatusConflict
	case errors.As(err, &validationErr), errors.As(err, &schemaErr), errors.As(err, &hazardErr):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
