// Package server exposes the extraction engine over HTTP.
package server

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"

	"github.com/lankahub/tubeharvest/internal/config"
)

// Server wraps the Fiber app and configuration.
type Server struct {
	App *fiber.App
	Cfg config.App
}

// New creates the server with middleware configured.
func New(cfg config.App) *Server {
	app := fiber.New(fiber.Config{
		AppName: "tubeharvest",
		ErrorHandler: func(c fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(recover.New())
	app.Use(logger.New())

	return &Server{App: app, Cfg: cfg}
}

// Start listens on the configured port.
func (s *Server) Start() error {
	addr := ":" + s.Cfg.Port
	slog.Info("http server listening", slog.String("addr", addr))
	return s.App.Listen(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	return s.App.Shutdown()
}
