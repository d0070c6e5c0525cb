package api

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/walkmapper/walkmapper_core/internal/capture"
	"github.com/walkmapper/walkmapper_core/internal/models"
)

// StartRouteRequest optionally names an existing capture session
type StartRouteRequest struct {
	Handle string `json:"handle"`
}

// ConfirmRequest annotates the pending segment
type ConfirmRequest struct {
	TransportMode    models.TransportMode `json:"transportMode"`
	DurationSeconds  int                  `json:"durationSeconds"`
	ExperienceRating int                  `json:"experienceRating"`
}

// SubmitRequest carries routes assembled on the client. A single route may
// be sent as top-level segments; several go in vectors. The client's routeId
// is informational only, ids are always drawn from the server counter.
type SubmitRequest struct {
	UserData models.UserProfile `json:"userData"`
	RouteID  int64              `json:"routeId,omitempty"`
	Segments []models.Segment   `json:"segments"`
	Vectors  []SubmitVector     `json:"vectors"`
}

// SubmitVector is one client-assembled route
type SubmitVector struct {
	Segments []models.Segment `json:"segments"`
}

// routes returns the vectors to persist, folding the single-route form in
func (r SubmitRequest) routes() []SubmitVector {
	if len(r.Vectors) > 0 {
		return r.Vectors
	}
	if len(r.Segments) > 0 {
		return []SubmitVector{{Segments: r.Segments}}
	}
	return nil
}

func badRequest(msg string) error {
	return fiber.NewError(fiber.StatusBadRequest, msg)
}

// StartRoute handles POST /api/routes
func (h *Handler) StartRoute(c *fiber.Ctx) error {
	var req StartRouteRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest("Invalid request body")
		}
	}

	handle, err := h.manager.StartDrawing(req.Handle)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"handle": handle,
		"state":  capture.StateDrawing,
	})
}

// SetProfile handles PUT /api/routes/:handle/profile
func (h *Handler) SetProfile(c *fiber.Ctx) error {
	var profile models.UserProfile
	if err := c.BodyParser(&profile); err != nil {
		return badRequest("Invalid request body")
	}
	if err := h.manager.SetProfile(c.Params("handle"), profile); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"profile": profile})
}

// AddPoint handles POST /api/routes/:handle/points
func (h *Handler) AddPoint(c *fiber.Ctx) error {
	var p models.Point
	if err := c.BodyParser(&p); err != nil {
		return badRequest("Invalid point")
	}
	result, err := h.manager.AddPoint(c.Params("handle"), p)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// ConfirmSegment handles POST /api/routes/:handle/confirm
func (h *Handler) ConfirmSegment(c *fiber.Ctx) error {
	var req ConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("Invalid request body")
	}
	seg, err := h.manager.ConfirmSegment(c.Params("handle"), req.TransportMode, req.DurationSeconds, req.ExperienceRating)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"segment":      seg,
		"segment_type": seg.Type(),
	})
}

// CancelRoute handles POST /api/routes/:handle/cancel
func (h *Handler) CancelRoute(c *fiber.Ctx) error {
	if err := h.manager.CancelRoute(c.Params("handle")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"state": capture.StateIdle})
}

// FinishRoute handles POST /api/routes/:handle/finish
func (h *Handler) FinishRoute(c *fiber.Ctx) error {
	result, err := h.manager.FinishRoute(c.UserContext(), c.Params("handle"))
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// GetCapture handles GET /api/routes/:handle
func (h *Handler) GetCapture(c *fiber.Ctx) error {
	handle := c.Params("handle")
	snap, err := h.manager.Snapshot(handle)
	if err != nil {
		return err
	}
	routes, err := h.manager.Routes(handle)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"handle":   handle,
		"snapshot": snap,
		"routes":   routes,
	})
}

// CloseCapture handles DELETE /api/routes/:handle and discards the capture
// session. Routes it already finished stay persisted.
func (h *Handler) CloseCapture(c *fiber.Ctx) error {
	if err := h.manager.Close(c.Params("handle")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DeleteRoute handles DELETE /api/routes/:handle/:id
func (h *Handler) DeleteRoute(c *fiber.Ctx) error {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return badRequest("Invalid route id")
	}
	if err := h.manager.DeleteRoute(c.Params("handle"), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// SaveCSV handles POST /api/save-csv. Each vector becomes one route; the
// request stops at the first rejected vector and reports what was saved.
// A body with top-level segments is saved as a single route.
func (h *Handler) SaveCSV(c *fiber.Ctx) error {
	var req SubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("Invalid request body")
	}
	vectors := req.routes()
	if len(vectors) == 0 {
		return capture.ErrEmptyRoute
	}
	if len(req.Vectors) > 0 && len(req.Segments) > 0 {
		return badRequest("Send either segments or vectors, not both")
	}

	saved := make([]capture.FinishResult, 0, len(vectors))
	for _, v := range vectors {
		result, err := h.manager.SubmitRoute(c.UserContext(), req.UserData, v.Segments)
		if err != nil {
			if len(saved) == 0 {
				return err
			}
			return c.Status(fiber.StatusMultiStatus).JSON(fiber.Map{
				"success": false,
				"error":   err.Error(),
				"routes":  saved,
			})
		}
		saved = append(saved, result)
	}

	success := true
	for _, r := range saved {
		if r.Report != nil && !r.Report.Success {
			success = false
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": success,
		"routes":  saved,
	})
}
