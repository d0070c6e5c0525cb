package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/walkmapper/walkmapper_core/internal/capture"
	"github.com/walkmapper/walkmapper_core/internal/export"
	"github.com/walkmapper/walkmapper_core/internal/persist"
	"github.com/walkmapper/walkmapper_core/internal/session"
	"go.uber.org/zap"
)

// HealthCheck probes one dependency
type HealthCheck = func(ctx context.Context) error

// Deps are the collaborators the HTTP layer calls into
type Deps struct {
	Manager     *capture.Manager
	Coordinator *persist.Coordinator
	Registry    session.Registry
	Exporter    *export.LedgerExporter
	Checks      map[string]HealthCheck
	Logger      *zap.Logger
}

// Handler serves the mapper API
type Handler struct {
	manager     *capture.Manager
	coordinator *persist.Coordinator
	registry    session.Registry
	exporter    *export.LedgerExporter
	checks      map[string]HealthCheck
	logger      *zap.Logger
}

// New builds a handler from its dependencies
func New(deps Deps) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		manager:     deps.Manager,
		coordinator: deps.Coordinator,
		registry:    deps.Registry,
		exporter:    deps.Exporter,
		checks:      deps.Checks,
		logger:      logger,
	}
}

// Register mounts every route on r
func (h *Handler) Register(r fiber.Router) {
	r.Get("/health", h.Health)

	api := r.Group("/api")
	api.Get("/variants", h.Variants)

	api.Post("/routes", h.StartRoute)
	api.Get("/routes/:handle", h.GetCapture)
	api.Delete("/routes/:handle", h.CloseCapture)
	api.Put("/routes/:handle/profile", h.SetProfile)
	api.Post("/routes/:handle/points", h.AddPoint)
	api.Post("/routes/:handle/confirm", h.ConfirmSegment)
	api.Post("/routes/:handle/cancel", h.CancelRoute)
	api.Post("/routes/:handle/finish", h.FinishRoute)
	api.Delete("/routes/:handle/:id", h.DeleteRoute)

	api.Post("/save-csv", h.SaveCSV)
	api.Post("/save", h.SaveSession)
	api.Get("/load/:id", h.LoadSession)
	api.Get("/sessions", h.ListSessions)
	api.Get("/export/:id", h.ExportSession)
	api.Get("/export-ledger", h.ExportLedger)
	api.Post("/clear", h.Clear)
}

// Health handles the /health endpoint
func (h *Handler) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()

	checks := fiber.Map{}
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	status := "healthy"
	httpStatus := fiber.StatusOK
	if !healthy {
		status = "unhealthy"
		httpStatus = fiber.StatusServiceUnavailable
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"variant": h.manager.Variant().Name,
		"checks":  checks,
	})
}

// VariantInfo describes one capture variant
type VariantInfo struct {
	Name               string `json:"name"`
	CoordinateSystem   string `json:"coordinate_system"`
	RequireRating      bool   `json:"require_rating"`
	RejectZeroDuration bool   `json:"reject_zero_duration"`
	RequireFullName    bool   `json:"require_full_name"`
	Active             bool   `json:"active"`
}

// Variants lists the capture variants and marks the active one
func (h *Handler) Variants(c *fiber.Ctx) error {
	active := h.manager.Variant().Name
	variants := capture.AllVariants()
	out := make([]VariantInfo, 0, len(variants))
	for _, v := range variants {
		out = append(out, VariantInfo{
			Name:               v.Name,
			CoordinateSystem:   string(v.System),
			RequireRating:      v.Policy.RequireRating,
			RejectZeroDuration: v.Policy.RejectZeroDuration,
			RequireFullName:    v.Policy.RequireFullName,
			Active:             v.Name == active,
		})
	}
	return c.JSON(fiber.Map{"variants": out})
}

// ErrorHandler maps core error kinds onto HTTP statuses
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		kind := "internal"

		var fe *fiber.Error
		switch {
		case errors.As(err, &fe):
			code = fe.Code
			kind = "request"
		case errors.Is(err, capture.ErrValidation):
			code = fiber.StatusBadRequest
			kind = "validation"
		case errors.Is(err, capture.ErrAssembler):
			code = fiber.StatusConflict
			kind = "assembler"
		case errors.Is(err, capture.ErrNotFound),
			errors.Is(err, session.ErrNotFound),
			errors.Is(err, export.ErrNotFound):
			code = fiber.StatusNotFound
			kind = "not_found"
		}

		if code >= fiber.StatusInternalServerError {
			logger.Error("request failed",
				zap.String("method", c.Method()),
				zap.String("path", c.Path()),
				zap.Error(err))
		}

		return c.Status(code).JSON(fiber.Map{
			"error": err.Error(),
			"kind":  kind,
		})
	}
}
