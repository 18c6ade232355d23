// handlers/api_routes.go
package handlers

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/fanzyb/roblox-mooncrest/middleware"
	"github.com/fanzyb/roblox-mooncrest/repository"
	"github.com/fanzyb/roblox-mooncrest/services"
	"github.com/gofiber/fiber/v2"
)

// APIDeps are the read-only views served over HTTP.
type APIDeps struct {
	Accounts repository.AccountRepository
	Board    *services.LeaderboardService
	Stats    *services.StatsService
	Events   *services.EventHub
	APIToken string
	PageSize int
}

const streamKeepAlive = 15 * time.Second

// SetupAPIRoutes mounts /healthz and the token-protected /api group.
func SetupAPIRoutes(app *fiber.App, deps APIDeps) {
	app.Use(middleware.RequestIDMiddleware())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := deps.Accounts.Ping(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "degraded",
				"cause":  err.Error(),
			})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	// registered ahead of the /api group so the header-only token check never sees it
	if deps.Events != nil {
		app.Get("/api/events", middleware.StreamTokenMiddleware(deps.APIToken), streamEvents(deps.Events))
	}

	api := app.Group("/api", middleware.APITokenMiddleware(deps.APIToken))

	api.Get("/leaderboard", func(c *fiber.Ctx) error {
		metric, err := services.ParseMetric(c.Query("metric", "xp"))
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		page, _ := strconv.Atoi(c.Query("page", "1"))
		size, _ := strconv.Atoi(c.Query("size", strconv.Itoa(deps.PageSize)))
		if size <= 0 || size > 100 {
			size = deps.PageSize
		}

		p, err := deps.Board.Page(c.UserContext(), metric, page, size)
		if err != nil {
			return internalError(c, "failed to load leaderboard", err)
		}
		return c.JSON(p)
	})

	api.Get("/accounts/:externalId", func(c *fiber.Ctx) error {
		card, err := deps.Board.Account(c.UserContext(), c.Params("externalId"))
		if err != nil {
			if errors.Is(err, services.ErrNotFound) {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "account not found"})
			}
			return internalError(c, "failed to load account", err)
		}
		return c.JSON(card)
	})

	api.Get("/hall-of-fame", func(c *fiber.Ctx) error {
		entries, err := deps.Board.HallOfFame(c.UserContext())
		if err != nil {
			return internalError(c, "failed to load hall of fame", err)
		}
		return c.JSON(fiber.Map{"entries": entries, "count": len(entries)})
	})

	api.Get("/stats", func(c *fiber.Ctx) error {
		stats, err := deps.Stats.Snapshot(c.UserContext())
		if err != nil {
			return internalError(c, "failed to load stats", err)
		}
		return c.JSON(stats)
	})
}

// streamEvents pushes ledger, link and achievement events as server-sent events.
func streamEvents(hub *services.EventHub) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Set("Content-Type", "text/event-stream")
		c.Set("Cache-Control", "no-cache")
		c.Set("Connection", "keep-alive")
		c.Set("X-Accel-Buffering", "no") // nginx

		events, cancel := hub.Subscribe()
		done := c.Context().Done()
		requestID := middleware.RequestID(c)

		c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
			defer cancel()
			ticker := time.NewTicker(streamKeepAlive)
			defer ticker.Stop()

			w.WriteString(":\n\n")
			if err := w.Flush(); err != nil {
				return
			}
			for {
				select {
				case ev, ok := <-events:
					if !ok {
						return
					}
					if err := writeEvent(w, ev); err != nil {
						log.Printf("[SSE] client %s gone: %v", requestID, err)
						return
					}
				case <-ticker.C:
					w.WriteString(":\n\n")
					if err := w.Flush(); err != nil {
						return
					}
				case <-done:
					return
				}
			}
		})
		return nil
	}
}

// writeEvent frames ev as one SSE message and flushes it.
func writeEvent(w *bufio.Writer, ev services.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Kind, payload); err != nil {
		return err
	}
	return w.Flush()
}

func internalError(c *fiber.Ctx, msg string, err error) error {
	log.Printf("❌ [HTTP] %s (request %s): %v", msg, middleware.RequestID(c), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": msg,
		"cause": err.Error(),
	})
}
