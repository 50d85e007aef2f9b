package service

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/participation-api/internal/dto"
	"github.com/noah-isme/participation-api/internal/middleware"
	"github.com/noah-isme/participation-api/internal/models"
	"github.com/noah-isme/participation-api/internal/observability"
	"github.com/noah-isme/participation-api/internal/repository"
)

// ParticipationService reads and reconciles activity participation for a room.
type ParticipationService interface {
	State(ctx context.Context, activityID uint, req dto.ParticipantStateRequest) ([]dto.ParticipantState, error)
	Save(ctx context.Context, activityID uint, req dto.SaveParticipantsRequest, actor Actor) (dto.SaveParticipantsResponse, error)
}

type participationService struct {
	activities   repository.ActivityRepository
	participants repository.ParticipantRepository
	audit        AuditRecorder
	publisher    ParticipationPublisher
	validator    *validator.Validate
	sanitizer    *bluemonday.Policy
	logger       zerolog.Logger
	tracer       trace.Tracer
}

// NewParticipationService constructs the participation reconciler. audit and publisher may be nil.
func NewParticipationService(activities repository.ActivityRepository, participants repository.ParticipantRepository, audit AuditRecorder, publisher ParticipationPublisher, validate *validator.Validate, logger zerolog.Logger) ParticipationService {
	return &participationService{
		activities:   activities,
		participants: participants,
		audit:        audit,
		publisher:    publisher,
		validator:    validate,
		sanitizer:    bluemonday.StrictPolicy(),
		logger:       logger.With().Str("component", "participation_service").Logger(),
		tracer:       otel.Tracer("github.com/noah-isme/participation-api/internal/service/participation"),
	}
}

func (s *participationService) State(ctx context.Context, activityID uint, req dto.ParticipantStateRequest) ([]dto.ParticipantState, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	if _, err := s.activity(ctx, activityID); err != nil {
		return nil, err
	}

	records, err := s.participants.ListForRoom(ctx, activityID, req.Room, req.SchoolYear)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}

	states := make([]dto.ParticipantState, 0, len(records))
	for _, record := range records {
		states = append(states, dto.NewParticipantState(record))
	}
	return states, nil
}

func (s *participationService) Save(ctx context.Context, activityID uint, req dto.SaveParticipantsRequest, actor Actor) (dto.SaveParticipantsResponse, error) {
	ctx, span := s.tracer.Start(ctx, "participation.save", trace.WithAttributes(
		attribute.Int("participation.activity_id", int(activityID)),
		attribute.Int("participation.room", req.Room),
		attribute.Int("participation.edits", len(req.Participants)),
	))
	defer span.End()

	if err := s.validator.Struct(req); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.SaveParticipantsResponse{}, err
	}

	activity, err := s.activity(ctx, activityID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "activity lookup failed")
		return dto.SaveParticipantsResponse{}, err
	}

	writes, err := s.plan(activity, req.Participants)
	if err != nil {
		observability.ParticipationEdits().WithLabelValues("rejected").Add(float64(len(req.Participants)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation failed")
		return dto.SaveParticipantsResponse{}, err
	}

	result, err := s.participants.Reconcile(ctx, activity.ID, writes)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconcile failed")
		return dto.SaveParticipantsResponse{}, fmt.Errorf("reconcile participants: %w", err)
	}

	observability.ParticipationEdits().WithLabelValues("upserted").Add(float64(result.Upserted))
	observability.ParticipationEdits().WithLabelValues("deleted").Add(float64(result.Deleted))
	span.SetAttributes(
		attribute.Int("participation.upserted", result.Upserted),
		attribute.Int("participation.deleted", result.Deleted),
	)

	studentIDs := make([]uint, 0, len(writes))
	for _, write := range writes {
		studentIDs = append(studentIDs, write.StudentID)
	}

	s.recordAudit(ctx, actor, activity, req.Room, result)
	if s.publisher != nil {
		s.publisher.Publish(ctx, dto.ParticipationSavedEvent{
			ActivityID:    activity.ID,
			Room:          req.Room,
			Upserted:      result.Upserted,
			Deleted:       result.Deleted,
			StudentIDs:    studentIDs,
			ActorID:       actor.ID,
			CorrelationID: middleware.CorrelationIDFromContext(ctx),
		})
	}

	s.logger.Info().
		Str("correlation_id", middleware.CorrelationIDFromContext(ctx)).
		Uint("activity_id", activity.ID).
		Int("room", req.Room).
		Int("upserted", result.Upserted).
		Int("deleted", result.Deleted).
		Msg("participation saved")

	span.SetStatus(codes.Ok, "saved")
	return dto.SaveParticipantsResponse{Upserted: result.Upserted, Deleted: result.Deleted}, nil
}

func (s *participationService) activity(ctx context.Context, id uint) (models.Activity, error) {
	return loadActivity(ctx, s.activities, id)
}

// plan validates every draft before anything is written, so one bad row rejects the batch.
func (s *participationService) plan(activity models.Activity, drafts []dto.ParticipantDraft) ([]repository.ParticipantWrite, error) {
	writes := make([]repository.ParticipantWrite, 0, len(drafts))
	for _, draft := range drafts {
		store := draft.Participated || draft.Position != nil
		teamName := trimmedOrNil(draft.TeamName)

		if store && activity.IsTeam && draft.Position != nil && teamName == nil {
			return nil, validationErrorf(fmt.Sprintf("team name required when saving a position for student_id=%d in a team activity", draft.StudentID))
		}
		if store && teamName != nil && html.UnescapeString(s.sanitizer.Sanitize(*teamName)) != *teamName {
			return nil, validationErrorf(fmt.Sprintf("team name for student_id=%d must be plain text", draft.StudentID))
		}

		write := repository.ParticipantWrite{StudentID: draft.StudentID, Store: store}
		if store {
			write.Position = draft.Position
			write.TeamName = teamName
		}
		writes = append(writes, write)
	}
	return writes, nil
}

func (s *participationService) recordAudit(ctx context.Context, actor Actor, activity models.Activity, room int, result repository.ReconcileResult) {
	if s.audit == nil {
		return
	}
	activityID := activity.ID
	err := s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     AuditActionParticipationSaved,
		EntityType: auditEntityActivity,
		EntityID:   &activityID,
		Metadata: map[string]interface{}{
			"room":     room,
			"upserted": result.Upserted,
			"deleted":  result.Deleted,
		},
	})
	if err != nil {
		s.logger.Warn().Err(err).Uint("activity_id", activityID).Msg("failed to audit participation save")
	}
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
