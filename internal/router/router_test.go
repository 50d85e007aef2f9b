package router_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/participation-api/internal/config"
	"github.com/noah-isme/participation-api/internal/handler"
	"github.com/noah-isme/participation-api/internal/repository"
	"github.com/noah-isme/participation-api/internal/router"
	"github.com/noah-isme/participation-api/internal/service"
	"github.com/noah-isme/participation-api/internal/testutil"
)

const secret = "router-secret"

func newApp(t *testing.T, cfg config.Config) *fiber.App {
	t.Helper()

	db := testutil.OpenDB(t)
	logger := zerolog.Nop()
	activities := repository.NewActivityRepository(db)
	participants := repository.NewParticipantRepository(db)
	audit := service.NewAuditService(repository.NewAuditLogRepository(db), logger)
	feed := service.NewParticipationFeed(nil, "", nil, "", logger)

	testutil.CreateActivity(t, db, "Chess", "2024-05-01", false, true)

	app := fiber.New()
	router.Register(app, cfg, router.Dependencies{
		ParticipationHandler: handler.NewParticipationHandler(
			service.NewParticipationService(activities, participants, audit, feed, validator.New(), logger), logger),
		AuditHandler: handler.NewAuditHandler(audit, logger),
	})
	return app
}

func bearer(t *testing.T, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  "9",
		"role": role,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return "Bearer " + signed
}

func save(t *testing.T, app *fiber.App, authorization string) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/activities/1/participants", strings.NewReader(`{"room":3,"participants":[]}`))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if authorization != "" {
		req.Header.Set(fiber.HeaderAuthorization, authorization)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestRegisterGuardsWritesWhenSecretConfigured(t *testing.T) {
	app := newApp(t, config.Config{AppName: "Participation API", JWTSecret: secret})

	require.Equal(t, fiber.StatusUnauthorized, save(t, app, ""))
	require.Equal(t, fiber.StatusForbidden, save(t, app, bearer(t, "student")))
	require.Equal(t, fiber.StatusOK, save(t, app, bearer(t, "teacher")))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/audit-logs", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/activities/1/participants?room=3", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestRegisterLeavesWritesOpenWithoutSecret(t *testing.T) {
	app := newApp(t, config.Config{AppName: "Participation API"})

	require.Equal(t, fiber.StatusOK, save(t, app, ""))
}

func TestRegisterExposesHealthAndMetrics(t *testing.T) {
	app := newApp(t, config.Config{AppName: "Participation API"})

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "Participation API", resp.Header.Get("X-Application"))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}
