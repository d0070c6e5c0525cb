package api

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/walkmapper/walkmapper_core/internal/export"
	"github.com/walkmapper/walkmapper_core/internal/ledger"
	"github.com/walkmapper/walkmapper_core/internal/models"
	"github.com/walkmapper/walkmapper_core/internal/persist"
	"go.uber.org/zap"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// SaveSession handles POST /api/save
func (h *Handler) SaveSession(c *fiber.Ctx) error {
	var payload models.SessionPayload
	if err := c.BodyParser(&payload); err != nil {
		return badRequest("Invalid session payload")
	}

	id, err := h.registry.Create(c.UserContext(), payload)
	if err != nil {
		return err
	}

	h.logger.Info("session saved",
		zap.String("session_id", id),
		zap.Int("routes", len(payload.Vectors)))

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success":    true,
		"session_id": id,
	})
}

// LoadSession handles GET /api/load/:id
func (h *Handler) LoadSession(c *fiber.Ctx) error {
	rec, err := h.registry.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(rec)
}

// ListSessions handles GET /api/sessions
func (h *Handler) ListSessions(c *fiber.Ctx) error {
	sessions, err := h.registry.List(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// ExportSession handles GET /api/export/:id and returns the session's
// segments as ledger-shaped CSV
func (h *Handler) ExportSession(c *fiber.Ctx) error {
	rec, err := h.registry.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	sys := h.coordinator.System()
	rows := make([][]string, 0)
	for _, route := range rec.Payload.Vectors {
		if route.Profile == (models.UserProfile{}) && rec.Payload.UserData != nil {
			route.Profile = *rec.Payload.UserData
		}
		for _, row := range persist.BuildRows(route, sys, h.coordinator.Georef(), rec.CreatedAt) {
			rows = append(rows, ledger.FormatRow(row, sys))
		}
	}

	data, err := export.CSV(ledger.Header(sys), rows)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, contentTypeCSV)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", rec.SessionID+".csv"))
	return c.Send(data)
}

// ExportLedger handles GET /api/export-ledger
func (h *Handler) ExportLedger(c *fiber.Ctx) error {
	data, err := h.exporter.Export(c.UserContext())
	if err != nil {
		return err
	}

	name := fmt.Sprintf("route_segments_%s.xlsx", time.Now().UTC().Format("20060102_150405"))
	c.Set(fiber.HeaderContentType, contentTypeXLSX)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Send(data)
}

// Clear handles POST /api/clear
func (h *Handler) Clear(c *fiber.Ctx) error {
	if err := h.coordinator.Clear(c.UserContext()); err != nil {
		return err
	}
	h.logger.Warn("all persisted data cleared", zap.String("ip", c.IP()))
	return c.JSON(fiber.Map{"success": true})
}
