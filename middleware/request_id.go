// middleware/request_id.go
package middleware

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// RequestIDMiddleware keeps an incoming X-Request-ID or assigns a fresh uuid,
// echoes it on the response and logs the request when it completes.
func RequestIDMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Get(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Locals(requestIDKey, id)
		c.Set(RequestIDHeader, id)

		start := time.Now()
		err := c.Next()
		log.Printf("[HTTP] %s %s → %d (%s) id=%s", c.Method(), c.Path(), c.Response().StatusCode(), time.Since(start).Round(time.Millisecond), id)
		return err
	}
}

// RequestID returns the id assigned by RequestIDMiddleware, or "".
func RequestID(c *fiber.Ctx) string {
	id, _ := c.Locals(requestIDKey).(string)
	return id
}
