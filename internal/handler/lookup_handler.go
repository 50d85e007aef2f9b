package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/participation-api/internal/dto"
	"github.com/noah-isme/participation-api/internal/service"
	"github.com/noah-isme/participation-api/internal/utils"
)

// LookupHandler serves rooms, school years, activities and students.
type LookupHandler struct {
	service service.LookupService
	logger  zerolog.Logger
}

// NewLookupHandler creates a lookup handler.
func NewLookupHandler(service service.LookupService, logger zerolog.Logger) *LookupHandler {
	return &LookupHandler{
		service: service,
		logger:  logger.With().Str("component", "lookup_handler").Logger(),
	}
}

// Register binds the lookup routes.
func (h *LookupHandler) Register(router fiber.Router) {
	router.Get("/rooms", h.rooms)
	router.Get("/years", h.years)
	router.Get("/activities", h.activities)
	router.Get("/students", h.students)
}

func (h *LookupHandler) rooms(c *fiber.Ctx) error {
	rooms, err := h.service.Rooms(requestContext(c), c.Query("school_year"))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list rooms")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list rooms")
	}
	return utils.SendSuccess(c, "rooms retrieved", rooms)
}

func (h *LookupHandler) years(c *fiber.Ctx) error {
	years, err := h.service.SchoolYears(requestContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list school years")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list school years")
	}
	return utils.SendSuccess(c, "school years retrieved", years)
}

func (h *LookupHandler) activities(c *fiber.Ctx) error {
	activities, err := h.service.Activities(requestContext(c))
	if err != nil {
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list activities")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list activities")
	}
	return utils.SendSuccess(c, "activities retrieved", activities)
}

func (h *LookupHandler) students(c *fiber.Ctx) error {
	var req dto.StudentListRequest
	if err := c.QueryParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	students, err := h.service.Students(requestContext(c), req)
	if err != nil {
		if isValidationError(err) {
			return utils.SendErrorWithDetails(c, fiber.StatusBadRequest, "invalid query parameters", validationDetails(err))
		}
		requestLogger(h.logger, c).Error().Err(err).Msg("failed to list students")
		return utils.SendError(c, fiber.StatusInternalServerError, "failed to list students")
	}
	return utils.SendSuccess(c, "students retrieved", students)
}
