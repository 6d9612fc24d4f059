package http

import (
	"os"
	"path/filepath"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/visionzero/backend/internal/metrics"
)

// SetupRoutes configures all HTTP routes. dataDir/data is served statically at /data when it exists.
func SetupRoutes(app *fiber.App, handler *Handler, dataDir string) {
	// Health check
	app.Get("/health", handler.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if dataDir != "" {
		static := filepath.Join(dataDir, "data")
		if fi, err := os.Stat(static); err == nil && fi.IsDir() {
			app.Static("/data", static)
		}
	}

	// API v1 routes
	api := app.Group("/api/v1")
	{
		api.Get("/status", handler.GetStatus)
		api.Post("/reload", handler.Reload)
		api.Get("/config", handler.GetConfig)
		api.Get("/loads", handler.ListLoads)

		api.Get("/incidents", handler.GetIncidents)
		api.Get("/layers/:name", handler.GetLayer)

		// Summaries
		api.Get("/summary/yearly", handler.GetYearly)
		api.Get("/summary/nested/:mode", handler.GetNested)
		api.Get("/summary/stats", handler.GetStats)

		// Density map
		api.Get("/map", handler.GetMap)
		api.Get("/map/hover", handler.Hover)
		api.Get("/map/heatmap.png", handler.Heatmap)
		api.Get("/map/choropleth", handler.Choropleth)
	}
}
