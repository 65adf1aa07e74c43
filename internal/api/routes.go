package api

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/sirupsen/logrus"
)

// NewApp builds the fiber application with every route registered.
func NewApp(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName: "codesense",
	})
	app.Use(recoverer.New())
	app.Use(h.logRequests)

	SetupRoutes(app, h)
	return app
}

func SetupRoutes(app *fiber.App, h *Handler) {
	app.Get("/health", h.Health)
	app.Get("/metrics", adaptor.HTTPHandler(h.opts.Pipeline.Metrics().Handler()))

	api := app.Group("/api")

	api.Post("/analyze", h.Analyze)
	api.Post("/analyze/entities", h.AnalyzeEntities)
	api.Get("/entities", h.ListEntities)
	api.Get("/entities/:slug", h.GetEntity)
	api.Get("/duplicates", h.ListDuplicates)
	api.Get("/graph", h.GetGraph)
	api.Get("/search", h.Search)
	api.Post("/compare", h.Compare)
	api.Post("/vectors", h.AddVector)
	api.Post("/vectors/batch", h.AddVectorBatch)
	api.Post("/chat", h.Chat)
	api.Delete("/cache", h.ClearCache)
}

func (h *Handler) logRequests(c fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	h.logger.WithFields(logrus.Fields{
		"method":   c.Method(),
		"path":     c.Path(),
		"status":   c.Response().StatusCode(),
		"duration": time.Since(start),
	}).Debug("Handled request")
	return err
}
