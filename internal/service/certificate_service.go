package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/participation-api/internal/dto"
	"github.com/noah-isme/participation-api/internal/middleware"
	"github.com/noah-isme/participation-api/internal/observability"
	"github.com/noah-isme/participation-api/pkg/pptx"
)

// PresentationContentType is the media type of generated decks.
const PresentationContentType = "application/vnd.openxmlformats-officedocument.presentationml.presentation"

var certificatePlaceholders = pptx.CompilePlaceholders(
	"name", "event_date", "event", "year", "room", "position", "team_name", "events", "award_date",
)

// DeckArchive stores a copy of a generated deck and returns its URL.
type DeckArchive interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// CertificateResult is a generated deck ready to be streamed to the client.
type CertificateResult struct {
	FileName    string
	ContentType string
	Content     []byte
	Slides      int
	ArchiveURL  string
}

// CertificateService generates certificate decks from an uploaded template.
type CertificateService interface {
	Generate(ctx context.Context, activityID uint, req dto.CertificateRequest, template *multipart.FileHeader, actor Actor) (CertificateResult, error)
}

type certificateService struct {
	selector  RecipientSelector
	intake    *TemplateIntake
	archive   DeckArchive
	audit     AuditRecorder
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewCertificateService constructs the certificate generator. archive and audit may be nil.
func NewCertificateService(selector RecipientSelector, intake *TemplateIntake, archive DeckArchive, audit AuditRecorder, validate *validator.Validate, logger zerolog.Logger) CertificateService {
	if intake == nil {
		intake = NewTemplateIntake(defaultTemplateMaxSizeMB)
	}
	return &certificateService{
		selector:  selector,
		intake:    intake,
		archive:   archive,
		audit:     audit,
		validator: validate,
		logger:    logger.With().Str("component", "certificate_service").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/participation-api/internal/service/certificate"),
	}
}

func (s *certificateService) Generate(ctx context.Context, activityID uint, req dto.CertificateRequest, template *multipart.FileHeader, actor Actor) (CertificateResult, error) {
	ctx, span := s.tracer.Start(ctx, "certificates.generate", trace.WithAttributes(
		attribute.Int("certificates.activity_id", int(activityID)),
		attribute.Int("certificates.room", req.Room),
		attribute.String("certificates.kind", req.TemplateKind),
	))
	defer span.End()

	fail := func(err error, status string) (CertificateResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		return CertificateResult{}, err
	}

	if err := s.validator.Struct(req); err != nil {
		return fail(err, "validation failed")
	}
	kind, err := ParseTemplateKind(req.TemplateKind)
	if err != nil {
		return fail(err, "validation failed")
	}

	start := time.Now()
	set, err := s.selector.Select(ctx, RecipientQuery{
		Kind:       kind,
		ActivityID: activityID,
		Room:       req.Room,
		SchoolYear: strings.TrimSpace(req.SchoolYear),
	})
	if err != nil {
		return fail(err, "recipient selection failed")
	}

	deck, err := s.intake.Open(template)
	if err != nil {
		return fail(err, "template rejected")
	}

	content, err := s.render(deck, set, strings.TrimSpace(req.AwardDate))
	if err != nil {
		return fail(err, "render failed")
	}

	observability.CertificateLatency().WithLabelValues(string(kind)).Observe(time.Since(start).Seconds())
	observability.CertificatesGenerated().WithLabelValues(string(kind)).Add(float64(len(set.Recipients)))
	span.SetAttributes(attribute.Int("certificates.slides", len(set.Recipients)))

	result := CertificateResult{
		FileName:    CertificateFileName(req.Room, activityID, kind),
		ContentType: PresentationContentType,
		Content:     content,
		Slides:      len(set.Recipients),
	}
	result.ArchiveURL = s.store(ctx, result)
	s.recordAudit(ctx, actor, activityID, req.Room, kind, result)

	s.logger.Info().
		Str("correlation_id", middleware.CorrelationIDFromContext(ctx)).
		Uint("activity_id", activityID).
		Int("room", req.Room).
		Str("kind", string(kind)).
		Int("slides", result.Slides).
		Msg("certificates generated")

	span.SetStatus(codes.Ok, "generated")
	return result, nil
}

// render clones the first template slide once per recipient, fills each clone
// and drops the template slide from the output.
func (s *certificateService) render(deck *pptx.Deck, set RecipientSet, awardDate string) ([]byte, error) {
	template := deck.Slides()[0]

	for _, recipient := range set.Recipients {
		slide, err := deck.CloneSlide(template)
		if err != nil {
			return nil, fmt.Errorf("clone template slide: %w", err)
		}
		slide.ReplacePlaceholders(certificatePlaceholders, certificateValues(set, recipient, awardDate))
		if set.Kind == KindParticipation && len(recipient.Award.EventList) == 1 {
			slide.ReplaceLiteral("Tournaments", "Tournament")
		}
	}

	if err := deck.RemoveSlide(template); err != nil {
		return nil, fmt.Errorf("remove template slide: %w", err)
	}

	content, err := deck.Bytes()
	if err != nil {
		return nil, fmt.Errorf("serialize deck: %w", err)
	}
	return content, nil
}

func (s *certificateService) store(ctx context.Context, result CertificateResult) string {
	if s.archive == nil {
		return ""
	}
	url, err := s.archive.Upload(ctx, result.FileName, bytes.NewReader(result.Content))
	if err != nil {
		s.logger.Warn().Err(err).Str("file", result.FileName).Msg("failed to archive certificate deck")
		return ""
	}
	return url
}

func (s *certificateService) recordAudit(ctx context.Context, actor Actor, activityID uint, room int, kind TemplateKind, result CertificateResult) {
	if s.audit == nil {
		return
	}
	metadata := map[string]interface{}{
		"room":   room,
		"kind":   string(kind),
		"slides": result.Slides,
		"file":   result.FileName,
	}
	if result.ArchiveURL != "" {
		metadata["archive_url"] = result.ArchiveURL
	}
	err := s.audit.Record(ctx, AuditEntry{
		Actor:      actor,
		Action:     AuditActionCertificatesGenerated,
		EntityType: auditEntityActivity,
		EntityID:   &activityID,
		Metadata:   metadata,
	})
	if err != nil {
		s.logger.Warn().Err(err).Uint("activity_id", activityID).Msg("failed to audit certificate run")
	}
}

// certificateValues maps placeholder keys to the recipient's award data.
func certificateValues(set RecipientSet, recipient Recipient, awardDate string) map[string]string {
	student := recipient.Student
	values := map[string]string{
		"name": student.FullName(),
		"room": strconv.Itoa(student.Room),
	}

	if set.Kind == KindParticipation {
		values["events"] = strings.Join(recipient.Award.EventList, ", ")
		values["award_date"] = awardDate
		if awardDate == "" {
			values["award_date"] = dto.FormatDate(recipient.Award.LatestActivityDate)
		}
		return values
	}

	activity := set.Activity
	values["event"] = activity.Name
	values["event_date"] = dto.FormatDate(activity.ActivityDate)
	values["year"] = strconv.Itoa(activity.Year)
	values["position"] = recipient.Award.PositionLabel
	values["award_date"] = awardDate
	if awardDate == "" {
		values["award_date"] = values["event_date"]
	}
	if set.Kind == KindPositionTeam {
		values["team_name"] = recipient.Award.TeamName
	}
	return values
}

// CertificateFileName names the generated deck download.
func CertificateFileName(room int, activityID uint, kind TemplateKind) string {
	return fmt.Sprintf("certificates_room%d_activity%d_%s.pptx", room, activityID, kind)
}
