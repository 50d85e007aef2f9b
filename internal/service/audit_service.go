package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/participation-api/internal/dto"
	"github.com/noah-isme/participation-api/internal/models"
	"github.com/noah-isme/participation-api/internal/repository"
	"github.com/noah-isme/participation-api/internal/utils"
)

// Audit actions recorded by the service layer.
const (
	AuditActionParticipationSaved    = "participation.saved"
	AuditActionCertificatesGenerated = "certificates.generated"
)

const (
	auditEntityActivity  = "activity"
	defaultAuditPageSize = 20
	maxAuditPageSize     = 100
)

// Actor identifies who triggered a write. The zero value is the anonymous system actor.
type Actor struct {
	ID   uint
	Role string
}

// AuditEntry captures the details required to persist an audit record.
type AuditEntry struct {
	Actor      Actor
	Action     string
	EntityType string
	EntityID   *uint
	Metadata   map[string]interface{}
}

// AuditRecorder persists audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// AuditService records and lists the audit trail.
type AuditService interface {
	AuditRecorder
	List(ctx context.Context, req dto.AuditLogListRequest) ([]dto.AuditLogResponse, utils.PageMeta, error)
}

type auditService struct {
	repo   repository.AuditLogRepository
	logger zerolog.Logger
}

// NewAuditService constructs the audit service.
func NewAuditService(repo repository.AuditLogRepository, logger zerolog.Logger) AuditService {
	return &auditService{
		repo:   repo,
		logger: logger.With().Str("component", "audit_service").Logger(),
	}
}

func (s *auditService) Record(ctx context.Context, entry AuditEntry) error {
	action := strings.ToLower(strings.TrimSpace(entry.Action))
	if action == "" {
		return fmt.Errorf("audit action is required")
	}
	entityType := strings.ToLower(strings.TrimSpace(entry.EntityType))
	if entityType == "" {
		return fmt.Errorf("audit entity type is required")
	}

	model := models.AuditLog{
		ActorID:    entry.Actor.ID,
		ActorRole:  normalizeRole(entry.Actor.Role),
		Action:     action,
		EntityType: entityType,
		EntityID:   entry.EntityID,
		Metadata:   datatypes.JSONMap(entry.Metadata),
	}
	if model.Metadata == nil {
		model.Metadata = datatypes.JSONMap{}
	}

	if err := s.repo.Create(ctx, &model); err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("failed to persist audit entry")
		return fmt.Errorf("persist audit entry: %w", err)
	}
	return nil
}

func (s *auditService) List(ctx context.Context, req dto.AuditLogListRequest) ([]dto.AuditLogResponse, utils.PageMeta, error) {
	page := req.Page
	if page <= 0 {
		page = 1
	}
	pageSize := req.PageSize
	switch {
	case pageSize <= 0:
		pageSize = defaultAuditPageSize
	case pageSize > maxAuditPageSize:
		pageSize = maxAuditPageSize
	}

	filter := repository.AuditLogFilter{
		Page:       page,
		PageSize:   pageSize,
		Action:     strings.ToLower(strings.TrimSpace(req.Action)),
		EntityType: strings.ToLower(strings.TrimSpace(req.EntityType)),
	}
	if req.ActorID > 0 {
		filter.ActorID = &req.ActorID
	}
	if req.EntityID > 0 {
		filter.EntityID = &req.EntityID
	}

	entries, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, utils.PageMeta{}, err
	}

	items := make([]dto.AuditLogResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, dto.NewAuditLogResponse(entry))
	}

	return items, utils.NewPageMeta(page, pageSize, total), nil
}

func normalizeRole(role string) string {
	r := strings.ToLower(strings.TrimSpace(role))
	if r == "" {
		return "system"
	}
	return r
}
