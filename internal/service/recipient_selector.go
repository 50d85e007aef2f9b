package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/noah-isme/participation-api/internal/dto"
	"github.com/noah-isme/participation-api/internal/models"
	"github.com/noah-isme/participation-api/internal/repository"
)

// TemplateKind selects the certificate variant and its recipient rules.
type TemplateKind string

// Supported template kinds.
const (
	KindPositionIndividual TemplateKind = dto.TemplateKindPositionIndividual
	KindPositionTeam       TemplateKind = dto.TemplateKindPositionTeam
	KindParticipation      TemplateKind = dto.TemplateKindParticipation
)

// ParseTemplateKind validates a template kind supplied by a client.
func ParseTemplateKind(value string) (TemplateKind, error) {
	switch kind := TemplateKind(value); kind {
	case KindPositionIndividual, KindPositionTeam, KindParticipation:
		return kind, nil
	default:
		return "", validationErrorf(fmt.Sprintf("unsupported template kind %q", value))
	}
}

// IsPosition reports whether the kind awards podium positions.
func (k TemplateKind) IsPosition() bool {
	return k == KindPositionIndividual || k == KindPositionTeam
}

// AwardFields holds what a recipient is being recognised for. Position kinds
// fill PositionLabel (and TeamName for teams); participation fills EventList
// and LatestActivityDate.
type AwardFields struct {
	PositionLabel      string
	TeamName           string
	EventList          []string
	LatestActivityDate time.Time
}

// Recipient is one student who receives a certificate slide.
type Recipient struct {
	Student models.Student
	Award   AwardFields
}

// RecipientQuery selects recipients for one certificate run.
type RecipientQuery struct {
	Kind       TemplateKind
	ActivityID uint
	Room       int
	SchoolYear string
}

// RecipientSet is the ordered outcome of a selection. Activity is set for position kinds.
type RecipientSet struct {
	Kind       TemplateKind
	Activity   *models.Activity
	Recipients []Recipient
}

// RecipientSelector builds the recipient list for a template kind.
type RecipientSelector interface {
	Select(ctx context.Context, query RecipientQuery) (RecipientSet, error)
}

type recipientSelector struct {
	variants map[TemplateKind]RecipientSelector
}

// NewRecipientSelector dispatches each template kind to its selection rules.
func NewRecipientSelector(activities repository.ActivityRepository, participants repository.ParticipantRepository) RecipientSelector {
	return &recipientSelector{
		variants: map[TemplateKind]RecipientSelector{
			KindPositionIndividual: &positionSelector{activities: activities, participants: participants},
			KindPositionTeam:       &positionSelector{activities: activities, participants: participants, team: true},
			KindParticipation:      &participationSelector{participants: participants},
		},
	}
}

func (s *recipientSelector) Select(ctx context.Context, query RecipientQuery) (RecipientSet, error) {
	variant, ok := s.variants[query.Kind]
	if !ok {
		return RecipientSet{}, validationErrorf(fmt.Sprintf("unsupported template kind %q", query.Kind))
	}
	return variant.Select(ctx, query)
}

type positionSelector struct {
	activities   repository.ActivityRepository
	participants repository.ParticipantRepository
	team         bool
}

func (s *positionSelector) Select(ctx context.Context, query RecipientQuery) (RecipientSet, error) {
	activity, err := loadActivity(ctx, s.activities, query.ActivityID)
	if err != nil {
		return RecipientSet{}, err
	}

	switch {
	case !activity.ShowInUI:
		return RecipientSet{}, validationErrorf("selected activity is not available for certificates")
	case s.team && !activity.IsTeam:
		return RecipientSet{}, validationErrorf("selected template expects a team activity, but the activity is individual")
	case !s.team && activity.IsTeam:
		return RecipientSet{}, validationErrorf("selected template expects an individual activity, but the activity is team-based")
	}

	placed, err := s.participants.ListPlaced(ctx, activity.ID, query.Room, query.SchoolYear)
	if err != nil {
		return RecipientSet{}, fmt.Errorf("list placed participants: %w", err)
	}

	recipients := make([]Recipient, 0, len(placed))
	for _, record := range placed {
		if record.Position == nil || record.Student == nil {
			continue
		}
		award := AwardFields{PositionLabel: PositionLabel(*record.Position)}
		if s.team && record.TeamName != nil {
			award.TeamName = *record.TeamName
		}
		recipients = append(recipients, Recipient{Student: *record.Student, Award: award})
	}
	if len(recipients) == 0 {
		return RecipientSet{}, validationErrorf("no matching recipients (no positions found) for the given room and activity")
	}

	return RecipientSet{Kind: query.Kind, Activity: &activity, Recipients: recipients}, nil
}

type participationSelector struct {
	participants repository.ParticipantRepository
}

// Select ignores the activity id and aggregates every position-less
// participation of each student in the room.
func (s *participationSelector) Select(ctx context.Context, query RecipientQuery) (RecipientSet, error) {
	records, err := s.participants.ListUnplaced(ctx, query.Room, query.SchoolYear)
	if err != nil {
		return RecipientSet{}, fmt.Errorf("list participation: %w", err)
	}

	var recipients []Recipient
	index := make(map[uint]int)
	seen := make(map[uint]map[string]struct{})
	for _, record := range records {
		if record.Student == nil || record.Activity == nil {
			continue
		}

		i, ok := index[record.StudentID]
		if !ok {
			i = len(recipients)
			index[record.StudentID] = i
			seen[record.StudentID] = make(map[string]struct{})
			recipients = append(recipients, Recipient{Student: *record.Student})
		}

		award := &recipients[i].Award
		if record.Activity.ActivityDate.After(award.LatestActivityDate) {
			award.LatestActivityDate = record.Activity.ActivityDate
		}
		name := record.Activity.Name
		if _, dup := seen[record.StudentID][name]; dup {
			continue
		}
		seen[record.StudentID][name] = struct{}{}
		award.EventList = append(award.EventList, name)
	}

	if len(recipients) == 0 {
		return RecipientSet{}, validationErrorf("no matching recipients for participation certificates in this room")
	}

	return RecipientSet{Kind: query.Kind, Recipients: recipients}, nil
}

// PositionLabel renders a podium position as First, Second or Third, and any
// other value as its number.
func PositionLabel(position int) string {
	switch position {
	case 1:
		return "First"
	case 2:
		return "Second"
	case 3:
		return "Third"
	default:
		return strconv.Itoa(position)
	}
}

func loadActivity(ctx context.Context, repo repository.ActivityRepository, id uint) (models.Activity, error) {
	activity, err := repo.GetByID(ctx, id)
	if err != nil {
		if isRecordNotFound(err) {
			return models.Activity{}, ErrActivityNotFound
		}
		return models.Activity{}, fmt.Errorf("load activity: %w", err)
	}
	return activity, nil
}
