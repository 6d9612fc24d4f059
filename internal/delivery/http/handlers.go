package http

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/visionzero/backend/internal/domain"
	"github.com/visionzero/backend/internal/logger"
	"github.com/visionzero/backend/internal/service"
)

// Handler contains all HTTP handlers
type Handler struct {
	dashboardSvc  *service.DashboardService
	reloadTimeout time.Duration
}

// NewHandler creates a new handler
func NewHandler(dashboardSvc *service.DashboardService, reloadTimeout time.Duration) *Handler {
	if reloadTimeout <= 0 {
		reloadTimeout = 30 * time.Second
	}
	return &Handler{
		dashboardSvc:  dashboardSvc,
		reloadTimeout: reloadTimeout,
	}
}

// ErrorHandler renders every error as {error, message}
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}

// toFiberError maps domain errors onto HTTP statuses
func toFiberError(err error, fallback string) error {
	switch {
	case errors.Is(err, domain.ErrUnknownMode):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnknownLayer):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrNotLoaded):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	logger.L().Error("request_failed", "err", err)
	return fiber.NewError(fiber.StatusInternalServerError, fallback)
}

func ok(c *fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

func modeParam(raw string) (domain.ModeType, error) {
	mode, err := domain.ParseMode(raw)
	if err != nil {
		return "", toFiberError(err, "")
	}
	return mode, nil
}

func floatQuery(c *fiber.Ctx, key string, required bool) (float64, error) {
	raw := c.Query(key)
	if raw == "" {
		if required {
			return 0, fiber.NewError(fiber.StatusBadRequest, "missing query parameter "+key)
		}
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid query parameter "+key)
	}
	return v, nil
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status, database := "ok", "ok"
	if err := h.dashboardSvc.Health(ctx); err != nil {
		status, database = "degraded", err.Error()
	}
	return c.JSON(fiber.Map{
		"status":   status,
		"database": database,
		"service":  "visionzero-backend",
		"version":  "1.0.0",
	})
}

// GetStatus returns loading flags, last outcomes and layer states
func (h *Handler) GetStatus(c *fiber.Ctx) error {
	return ok(c, h.dashboardSvc.GetStatus())
}

// Reload refetches every resource and rebuilds the dashboard state
func (h *Handler) Reload(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.reloadTimeout)
	defer cancel()

	return ok(c, h.dashboardSvc.Reload(ctx))
}

// GetIncidents returns incidents filtered by type, year and month
func (h *Handler) GetIncidents(c *fiber.Ctx) error {
	mode, err := modeParam(c.Query("type"))
	if err != nil {
		return err
	}
	opts := domain.Options{Type: mode, Year: c.QueryInt("year", 0), Month: c.QueryInt("month", 0)}
	if opts.Month < 0 || opts.Month > 12 {
		return fiber.NewError(fiber.StatusBadRequest, "month must be between 1 and 12")
	}

	incidents := h.dashboardSvc.GetIncidents(opts)
	return c.JSON(fiber.Map{
		"success": true,
		"data":    incidents,
		"count":   len(incidents),
	})
}

// GetLayer serves the raw GeoJSON of one map layer
func (h *Handler) GetLayer(c *fiber.Ctx) error {
	name, err := domain.ParseLayer(c.Params("name"))
	if err != nil {
		return toFiberError(err, "")
	}
	layer, err := h.dashboardSvc.GetLayer(name)
	if err != nil {
		return toFiberError(err, "Failed to fetch layer")
	}
	if layer.State == domain.LayerFailed {
		msg := "layer failed to load"
		if layer.Outcome != nil && layer.Outcome.Error != "" {
			msg = layer.Outcome.Error
		}
		return fiber.NewError(fiber.StatusServiceUnavailable, msg)
	}

	c.Set(fiber.HeaderContentType, "application/geo+json")
	return c.Send(layer.Raw)
}

// GetYearly returns incident counts per year and mode type
func (h *Handler) GetYearly(c *fiber.Ctx) error {
	return ok(c, h.dashboardSvc.GetYearly())
}

// GetNested returns the year/month/hour breakdown of one mode filter
func (h *Handler) GetNested(c *fiber.Ctx) error {
	mode, err := modeParam(c.Params("mode"))
	if err != nil {
		return err
	}
	nested, err := h.dashboardSvc.GetNested(c.UserContext(), mode)
	if err != nil {
		return toFiberError(err, "Failed to fetch summary")
	}
	return ok(c, nested)
}

// GetStats returns min/max group totals per aggregation level
func (h *Handler) GetStats(c *fiber.Ctx) error {
	return ok(c, h.dashboardSvc.GetStats())
}

// GetMap returns the projection and neighborhood outlines
func (h *Handler) GetMap(c *fiber.Ctx) error {
	return ok(c, h.dashboardSvc.GetMap())
}

// Hover selects the incidents under the cursor square
func (h *Handler) Hover(c *fiber.Ctx) error {
	mode, err := modeParam(c.Query("type"))
	if err != nil {
		return err
	}
	x, err := floatQuery(c, "x", true)
	if err != nil {
		return err
	}
	y, err := floatQuery(c, "y", true)
	if err != nil {
		return err
	}
	r, err := floatQuery(c, "r", false)
	if err != nil {
		return err
	}

	sel, err := h.dashboardSvc.Hover(mode, x, y, r)
	if err != nil {
		return toFiberError(err, "Failed to query hover selection")
	}
	return ok(c, sel)
}

// Heatmap renders the density raster as PNG
func (h *Handler) Heatmap(c *fiber.Ctx) error {
	mode, err := modeParam(c.Query("type"))
	if err != nil {
		return err
	}
	img, err := h.dashboardSvc.Heatmap(mode)
	if err != nil {
		return toFiberError(err, "Failed to render heatmap")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return toFiberError(err, "Failed to encode heatmap")
	}
	c.Set(fiber.HeaderContentType, "image/png")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	return c.Send(buf.Bytes())
}

// Choropleth returns incident counts per neighborhood
func (h *Handler) Choropleth(c *fiber.Ctx) error {
	mode, err := modeParam(c.Query("type"))
	if err != nil {
		return err
	}
	ch, err := h.dashboardSvc.Choropleth(mode)
	if err != nil {
		return toFiberError(err, "Failed to compute choropleth")
	}
	return ok(c, ch)
}

// GetConfig returns the dashboard's default filter and calendar layout
func (h *Handler) GetConfig(c *fiber.Ctx) error {
	return ok(c, fiber.Map{
		"options":  domain.DefaultOptions(),
		"calendar": domain.DefaultCalendarConfig(),
		"modes":    domain.ModeTitles,
	})
}

// ListLoads returns the persisted load history
func (h *Handler) ListLoads(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 500 {
		limit = 20
	}

	loads, err := h.dashboardSvc.ListLoads(c.UserContext(), limit)
	if err != nil {
		return toFiberError(err, "Failed to fetch load history")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    loads,
		"count":   len(loads),
	})
}
