package kv

import (
	"bytes"
	"errors"

	"kv-reconciler/core/logger"
	"kv-reconciler/core/reconcile"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for key reconciliation.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the kv routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/api/kv")
	group.Post("/reconcile", h.HandleReconcile)
	group.Post("/apply", h.HandleApply)
	group.Get("/providers", h.HandleProviders)
}

// HandleReconcile reconciles one key from a JSON Request body and answers with its Result.
func (h *Handler) HandleReconcile(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req Request
	if err := c.BodyParser(&req); err != nil {
		l.Debug("Malformed reconcile request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body: " + err.Error(),
		})
	}

	res, err := h.service.Reconcile(c.UserContext(), req)
	if err != nil {
		return c.Status(StatusFor(reconcile.KindOf(err))).JSON(res)
	}
	return c.JSON(res)
}

// HandleApply reconciles a TOML manifest sent as the request body.
func (h *Handler) HandleApply(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	m, err := ParseManifest(bytes.NewReader(c.Body()))
	if err != nil {
		l.Debug("Malformed manifest", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	batch, err := h.service.Apply(c.UserContext(), m)
	if err != nil {
		if errors.Is(err, ErrInvalidManifest) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		l.Error("Manifest apply failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	if batch.Summary.Failed > 0 {
		return c.Status(fiber.StatusMultiStatus).JSON(batch)
	}
	return c.JSON(batch)
}

// HandleProviders lists the registered providers.
func (h *Handler) HandleProviders(c *fiber.Ctx) error {
	return c.JSON(h.service.Providers())
}

// StatusFor maps a failure kind to an HTTP status.
func StatusFor(kind reconcile.FailureKind) int {
	switch kind {
	case reconcile.MissingKey, reconcile.MissingValue, reconcile.InvalidState, reconcile.UnknownProvider:
		return fiber.StatusBadRequest
	case reconcile.ProviderUnavailable:
		return fiber.StatusServiceUnavailable
	case reconcile.BackendUnavailable:
		return fiber.StatusBadGateway
	case reconcile.ConcurrentModification:
		return fiber.StatusConflict
	case reconcile.Timeout:
		return fiber.StatusGatewayTimeout
	default:
		return fiber.StatusInternalServerError
	}
}
