package handler

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/participation-api/internal/dto"
	"github.com/noah-isme/participation-api/internal/service"
	"github.com/noah-isme/participation-api/internal/utils"
)

// Response headers set on generated decks.
const (
	HeaderCertificateCount      = "X-Certificate-Count"
	HeaderCertificateArchiveURL = "X-Certificate-Archive-URL"
)

// CertificateHandler streams generated certificate decks.
type CertificateHandler struct {
	service service.CertificateService
	logger  zerolog.Logger
}

// NewCertificateHandler creates a certificate handler.
func NewCertificateHandler(service service.CertificateService, logger zerolog.Logger) *CertificateHandler {
	return &CertificateHandler{
		service: service,
		logger:  logger.With().Str("component", "certificate_handler").Logger(),
	}
}

// Register binds the certificate route behind the given guards.
func (h *CertificateHandler) Register(router fiber.Router, guards ...fiber.Handler) {
	router.Post("/activities/:id/certificates/ppt", chain(guards, h.generate)...)
}

func (h *CertificateHandler) generate(c *fiber.Ctx) error {
	activityID, err := parseActivityID(c)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	var req dto.CertificateRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid form data")
	}

	template, err := c.FormFile("template")
	if err != nil {
		template = nil
	}

	result, err := h.service.Generate(requestContext(c), activityID, req, template, actorFromContext(c))
	if err != nil {
		var ruleErr *service.ValidationError
		switch {
		case errors.Is(err, service.ErrActivityNotFound):
			return utils.SendError(c, fiber.StatusNotFound, "activity not found")
		case errors.Is(err, service.ErrTemplateTooLarge):
			return utils.SendError(c, fiber.StatusRequestEntityTooLarge, err.Error())
		case errors.As(err, &ruleErr):
			return utils.SendError(c, fiber.StatusBadRequest, ruleErr.Reason)
		case isValidationError(err):
			return utils.SendErrorWithDetails(c, fiber.StatusBadRequest, "invalid certificate request", validationDetails(err))
		default:
			requestLogger(h.logger, c).Error().Err(err).Uint("activity_id", activityID).Msg("failed to generate certificates")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to generate certificates")
		}
	}

	c.Set(fiber.HeaderContentType, result.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", result.FileName))
	c.Set(HeaderCertificateCount, strconv.Itoa(result.Slides))
	if result.ArchiveURL != "" {
		c.Set(HeaderCertificateArchiveURL, result.ArchiveURL)
	}
	return c.Status(fiber.StatusOK).Send(result.Content)
}
