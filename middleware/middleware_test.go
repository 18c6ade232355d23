package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

func newApp(token string) *fiber.App {
	app := fiber.New()
	app.Use(RequestIDMiddleware())
	app.Get("/api/ping", APITokenMiddleware(token), func(c *fiber.Ctx) error {
		return c.SendString(RequestID(c))
	})
	return app
}

func TestAPITokenMiddleware(t *testing.T) {
	app := newApp("s3cret")
	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", fiber.StatusUnauthorized},
		{"wrong", "Bearer nope", fiber.StatusUnauthorized},
		{"bearer", "Bearer s3cret", fiber.StatusOK},
		{"raw", "s3cret", fiber.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/ping", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.status {
				t.Fatalf("status=%d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}

func TestAPITokenMiddlewareClosedWithoutToken(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/ping", nil)
	req.Header.Set("Authorization", "Bearer ")
	resp, err := newApp("").Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", resp.StatusCode)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	app := newApp("s3cret")

	req := httptest.NewRequest("GET", "/api/ping", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := uuid.Parse(resp.Header.Get(RequestIDHeader)); err != nil {
		t.Fatalf("generated id %q is not a uuid", resp.Header.Get(RequestIDHeader))
	}

	keep := uuid.NewString()
	req = httptest.NewRequest("GET", "/api/ping", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	req.Header.Set(RequestIDHeader, keep)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatal(err)
	}
	if got := resp.Header.Get(RequestIDHeader); got != keep {
		t.Fatalf("id=%q, want %q kept", got, keep)
	}

	req = httptest.NewRequest("GET", "/api/ping", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	resp, _ = app.Test(req)
	if got := resp.Header.Get(RequestIDHeader); got == "not-a-uuid" {
		t.Fatal("malformed id must be replaced")
	}
}

func TestStreamTokenMiddleware(t *testing.T) {
	app := fiber.New()
	app.Get("/api/events", StreamTokenMiddleware("s3cret"), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	tests := []struct {
		name   string
		target string
		status int
	}{
		{"missing", "/api/events", fiber.StatusBadRequest},
		{"wrong", "/api/events?token=nope", fiber.StatusUnauthorized},
		{"query", "/api/events?token=s3cret", fiber.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", tt.target, nil))
			if err != nil {
				t.Fatal(err)
			}
			if resp.StatusCode != tt.status {
				t.Fatalf("status=%d, want %d", resp.StatusCode, tt.status)
			}
		})
	}
}
