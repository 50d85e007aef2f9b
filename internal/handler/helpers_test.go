package handler_test

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/participation-api/internal/middleware"
)

type envelope[T any] struct {
	Success bool              `json:"success"`
	Data    T                 `json:"data"`
	Details map[string]string `json:"details"`
	Message string            `json:"message"`
}

func newTestApp() *fiber.App {
	app := fiber.New()
	app.Use(middleware.CorrelationID())
	return app
}

func discardLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(body, target))
}

// bindActor stands in for the JWT guard.
func bindActor(id uint, role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("actor_id", id)
		c.Locals("actor_role", role)
		return c.Next()
	}
}
