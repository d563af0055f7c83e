package server

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lankahub/tubeharvest/internal/harvest"
	"github.com/lankahub/tubeharvest/internal/storage"
)

type extractRequest struct {
	Query           string `json:"query"`
	MaxResults      int    `json:"max_results"`
	Order           string `json:"order"`
	PublishedAfter  string `json:"published_after"`
	PublishedBefore string `json:"published_before"`
}

type targetedRequest struct {
	Targets    []string `json:"targets"`
	MaxResults int      `json:"max_results"`
}

// RegisterRoutes wires the API onto the app. store may be nil in tests.
func (s *Server) RegisterRoutes(orch *harvest.Orchestrator, store storage.Store) {
	app := s.App

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	api.Get("/status", func(c fiber.Ctx) error {
		resp := fiber.Map{"orchestrator": orch.Status()}
		if store != nil {
			if stats, err := store.Stats(c.Context()); err == nil {
				resp["store"] = stats
			}
		}
		return c.JSON(resp)
	})

	api.Get("/strategies", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"strategies": orch.Strategies()})
	})

	api.Post("/extract", func(c fiber.Ctx) error {
		var req extractRequest
		if err := c.Bind().Body(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if req.Query == "" {
			return fiber.NewError(fiber.StatusBadRequest, "query is required")
		}
		id, err := orch.StartSingle(harvest.RunConfig{
			Query:           req.Query,
			MaxResults:      req.MaxResults,
			Order:           req.Order,
			PublishedAfter:  req.PublishedAfter,
			PublishedBefore: req.PublishedBefore,
		})
		return startResponse(c, id, err)
	})

	api.Post("/extract/comprehensive", func(c fiber.Ctx) error {
		id, err := orch.StartComprehensive()
		return startResponse(c, id, err)
	})

	api.Post("/extract/targeted", func(c fiber.Ctx) error {
		var req targetedRequest
		if err := c.Bind().Body(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if len(req.Targets) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "targets is required")
		}
		id, err := orch.StartTargeted(req.Targets, req.MaxResults)
		return startResponse(c, id, err)
	})

	api.Post("/extract/stop", func(c fiber.Ctx) error {
		if err := orch.StopRun(); err != nil {
			if errors.Is(err, harvest.ErrNotRunning) {
				return fiber.NewError(fiber.StatusConflict, "no extraction in progress")
			}
			return err
		}
		return c.JSON(fiber.Map{"status": "stop_requested"})
	})

	api.Get("/sessions", func(c fiber.Ctx) error {
		if store == nil {
			return fiber.NewError(fiber.StatusNotImplemented, "session store not configured")
		}
		sessions, err := store.RecentSessions(c.Context(), queryInt(c, "limit", 20))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"sessions": sessions})
	})

	api.Get("/videos", func(c fiber.Ctx) error {
		if store == nil {
			return fiber.NewError(fiber.StatusNotImplemented, "video cache not configured")
		}
		videos, err := store.RecentVideos(c.Context(), queryInt(c, "limit", 50))
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"videos": videos, "count": len(videos)})
	})

	api.Get("/insights", func(c fiber.Ctx) error {
		if store == nil {
			return fiber.NewError(fiber.StatusNotImplemented, "video cache not configured")
		}
		videos, err := store.RecentVideos(c.Context(), queryInt(c, "limit", 500))
		if err != nil {
			return err
		}
		return c.JSON(harvest.Insights(videos))
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/metrics/engine", func(c fiber.Ctx) error {
		c.Set("Content-Type", "text/plain; charset=utf-8")
		return c.SendString(harvest.FormatMetrics())
	})
}

// startResponse maps a run-start outcome onto HTTP: 202 with the session
// id, or 409 when a session is already in flight.
func startResponse(c fiber.Ctx, id string, err error) error {
	if err != nil {
		if errors.Is(err, harvest.ErrAlreadyRunning) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "extraction already in progress",
			})
		}
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"status":     "started",
		"session_id": id,
	})
}

func queryInt(c fiber.Ctx, key string, def int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
