// middleware/stream_auth.go
package middleware

import (
	"crypto/subtle"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// StreamTokenMiddleware validates the `token` query param on event streams.
// Browsers' EventSource cannot send an Authorization header.
//
// Usage:
//
//	app.Get("/api/events", middleware.StreamTokenMiddleware(token), streamEvents(hub))
func StreamTokenMiddleware(expectedToken string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := strings.TrimSpace(c.Query("token"))
		if token == "" {
			token = strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
		}
		if token == "" {
			log.Printf("[StreamAuth] ❌ Missing token for %s from %s", c.Path(), c.IP())
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "missing token in query",
			})
		}
		if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
			log.Printf("[StreamAuth] ❌ Invalid token (prefix: %s...) for %s", token[:min(4, len(token))], c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Unauthorized",
			})
		}
		log.Printf("[StreamAuth] ✅ Stream opened from %s (request %s)", c.IP(), RequestID(c))
		return c.Next()
	}
}
