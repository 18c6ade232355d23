// middleware/api_token.go
package middleware

import (
	"crypto/subtle"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// APITokenMiddleware validates the Bearer token dashboards send to /api.
// An empty expected token rejects every request.
func APITokenMiddleware(expectedToken string) fiber.Handler {
	if expectedToken == "" {
		log.Println("⚠️ [API_AUTH] http.api_token is not set — /api is closed")
	}

	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			log.Printf("🚫 [API_AUTH] Missing Authorization header for %s", c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "api token missing",
			})
		}

		// Parse "Bearer <token>", falling back to the raw header value
		token := strings.TrimPrefix(authHeader, "Bearer ")

		if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
			log.Printf("❌ [API_AUTH] Invalid token for %s (request %s)", c.Path(), RequestID(c))
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid api token",
			})
		}
		return c.Next()
	}
}
