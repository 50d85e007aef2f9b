package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/participation-api/internal/dto"
	"github.com/noah-isme/participation-api/internal/service"
	"github.com/noah-isme/participation-api/internal/utils"
)

// ParticipationHandler exposes the participation grid of an activity.
type ParticipationHandler struct {
	service service.ParticipationService
	logger  zerolog.Logger
}

// NewParticipationHandler creates a participation handler.
func NewParticipationHandler(service service.ParticipationService, logger zerolog.Logger) *ParticipationHandler {
	return &ParticipationHandler{
		service: service,
		logger:  logger.With().Str("component", "participation_handler").Logger(),
	}
}

// Register binds the participation routes. guards run before the save route.
func (h *ParticipationHandler) Register(router fiber.Router, guards ...fiber.Handler) {
	router.Get("/activities/:id/participants", h.state)
	router.Post("/activities/:id/participants", chain(guards, h.save)...)
}

func (h *ParticipationHandler) state(c *fiber.Ctx) error {
	activityID, err := parseActivityID(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var req dto.ParticipantStateRequest
	if err := c.QueryParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	states, err := h.service.State(requestContext(c), activityID, req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrActivityNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "activity not found")
		case isValidationError(err):
			return utils.SendErrorWithDetails(c, fiber.StatusBadRequest, "invalid query parameters", validationDetails(err))
		default:
			requestLogger(h.logger, c).Error().Err(err).Uint("activity_id", activityID).Msg("failed to load participation")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to load participation")
		}
	}
	return utils.SendSuccess(c, "participation retrieved", states)
}

func (h *ParticipationHandler) save(c *fiber.Ctx) error {
	activityID, err := parseActivityID(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var req dto.SaveParticipantsRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	resp, err := h.service.Save(requestContext(c), activityID, req, actorFromContext(c))
	if err != nil {
		var ruleErr *service.ValidationError
		switch {
		case errors.Is(err, service.ErrActivityNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "activity not found")
		case errors.As(err, &ruleErr):
			return utils.SendError(c, fiber.StatusUnprocessableEntity, ruleErr.Reason)
		case isValidationError(err):
			return utils.SendErrorWithDetails(c, fiber.StatusUnprocessableEntity, "invalid participation payload", validationDetails(err))
		default:
			requestLogger(h.logger, c).Error().Err(err).Uint("activity_id", activityID).Msg("failed to save participation")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to save participation")
		}
	}
	return utils.SendSuccess(c, "participation saved", resp)
}
