package service

import (
	"context"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/noah-isme/participation-api/internal/dto"
	"github.com/noah-isme/participation-api/internal/middleware"
	"github.com/noah-isme/participation-api/internal/models"
	"github.com/noah-isme/participation-api/internal/repository"
	"github.com/noah-isme/participation-api/internal/testutil"
)

type participationFixture struct {
	db        *gorm.DB
	svc       ParticipationService
	audit     *auditStub
	publisher *publisherStub
}

func newParticipationFixture(t *testing.T) participationFixture {
	t.Helper()
	db := testutil.OpenDB(t)
	audit := &auditStub{}
	publisher := &publisherStub{}
	svc := NewParticipationService(
		repository.NewActivityRepository(db),
		repository.NewParticipantRepository(db),
		audit,
		publisher,
		testValidator(),
		testLogger(),
	)
	return participationFixture{db: db, svc: svc, audit: audit, publisher: publisher}
}

func storedParticipants(t *testing.T, db *gorm.DB, activityID uint) map[uint]models.ActivityParticipant {
	t.Helper()
	var records []models.ActivityParticipant
	require.NoError(t, db.Where("activity_id = ?", activityID).Find(&records).Error)
	out := make(map[uint]models.ActivityParticipant, len(records))
	for _, record := range records {
		out[record.StudentID] = record
	}
	return out
}

func TestParticipationSaveStoresIffParticipatedOrPlaced(t *testing.T) {
	f := newParticipationFixture(t)
	activity := testutil.CreateActivity(t, f.db, "Chess", "2024-05-01", false, true)
	ada := testutil.CreateStudent(t, f.db, "Ada", "Lovelace", 3)
	grace := testutil.CreateStudent(t, f.db, "Grace", "Hopper", 3)
	alan := testutil.CreateStudent(t, f.db, "Alan", "Turing", 3)
	linus := testutil.CreateStudent(t, f.db, "Linus", "Torvalds", 3)
	testutil.CreateParticipant(t, f.db, activity.ID, linus.ID, nil, nil)

	ctx := middleware.ContextWithCorrelation(context.Background(), "corr-1")
	resp, err := f.svc.Save(ctx, activity.ID, dto.SaveParticipantsRequest{
		Room: 3,
		Participants: []dto.ParticipantDraft{
			{StudentID: ada.ID, Participated: true},
			{StudentID: grace.ID, Position: testutil.IntPtr(2), TeamName: testutil.StringPtr("  Owls ")},
			{StudentID: alan.ID},
			{StudentID: linus.ID},
		},
	}, Actor{ID: 7, Role: "teacher"})
	require.NoError(t, err)
	require.Equal(t, dto.SaveParticipantsResponse{Upserted: 2, Deleted: 1}, resp)

	stored := storedParticipants(t, f.db, activity.ID)
	require.Len(t, stored, 2)
	require.Nil(t, stored[ada.ID].Position)
	require.Nil(t, stored[ada.ID].TeamName)
	require.Equal(t, 2, *stored[grace.ID].Position)
	require.Equal(t, "Owls", *stored[grace.ID].TeamName)
	require.NotContains(t, stored, alan.ID)
	require.NotContains(t, stored, linus.ID)

	require.Len(t, f.audit.entries, 1)
	require.Equal(t, AuditActionParticipationSaved, f.audit.entries[0].Action)
	require.Equal(t, uint(7), f.audit.entries[0].Actor.ID)

	require.Len(t, f.publisher.events, 1)
	event := f.publisher.events[0]
	require.Equal(t, activity.ID, event.ActivityID)
	require.Equal(t, "corr-1", event.CorrelationID)
	require.Equal(t, []uint{ada.ID, grace.ID, alan.ID, linus.ID}, event.StudentIDs)
}

func TestParticipationSaveIsIdempotent(t *testing.T) {
	f := newParticipationFixture(t)
	activity := testutil.CreateActivity(t, f.db, "Relay", "2024-05-01", true, true)
	ada := testutil.CreateStudent(t, f.db, "Ada", "Lovelace", 3)

	req := dto.SaveParticipantsRequest{Room: 3, Participants: []dto.ParticipantDraft{
		{StudentID: ada.ID, Participated: true, Position: testutil.IntPtr(1), TeamName: testutil.StringPtr("Owls")},
	}}

	first, err := f.svc.Save(context.Background(), activity.ID, req, Actor{})
	require.NoError(t, err)
	before := storedParticipants(t, f.db, activity.ID)

	second, err := f.svc.Save(context.Background(), activity.ID, req, Actor{})
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, before, storedParticipants(t, f.db, activity.ID))
}

func TestParticipationSaveRequiresTeamNameForPlacedTeams(t *testing.T) {
	f := newParticipationFixture(t)
	activity := testutil.CreateActivity(t, f.db, "Relay", "2024-05-01", true, true)
	ada := testutil.CreateStudent(t, f.db, "Ada", "Lovelace", 3)
	grace := testutil.CreateStudent(t, f.db, "Grace", "Hopper", 3)
	testutil.CreateParticipant(t, f.db, activity.ID, grace.ID, testutil.IntPtr(3), testutil.StringPtr("Foxes"))
	before := storedParticipants(t, f.db, activity.ID)

	for _, teamName := range []*string{nil, testutil.StringPtr(""), testutil.StringPtr("   ")} {
		_, err := f.svc.Save(context.Background(), activity.ID, dto.SaveParticipantsRequest{
			Room: 3,
			Participants: []dto.ParticipantDraft{
				{StudentID: grace.ID},
				{StudentID: ada.ID, Position: testutil.IntPtr(1), TeamName: teamName},
			},
		}, Actor{})

		var validationErr *ValidationError
		require.ErrorAs(t, err, &validationErr)
		require.Contains(t, validationErr.Reason, "team name required")
		require.Equal(t, before, storedParticipants(t, f.db, activity.ID), "no edit may be written before validation passes")
	}
	require.Empty(t, f.publisher.events)
	require.Empty(t, f.audit.entries)

	// Participation without a position needs no team name.
	resp, err := f.svc.Save(context.Background(), activity.ID, dto.SaveParticipantsRequest{
		Room:         3,
		Participants: []dto.ParticipantDraft{{StudentID: ada.ID, Participated: true}},
	}, Actor{})
	require.NoError(t, err)
	require.Equal(t, 1, resp.Upserted)
}

func TestParticipationSaveRejectsMarkupInTeamNames(t *testing.T) {
	f := newParticipationFixture(t)
	activity := testutil.CreateActivity(t, f.db, "Relay", "2024-05-01", true, true)
	ada := testutil.CreateStudent(t, f.db, "Ada", "Lovelace", 3)

	_, err := f.svc.Save(context.Background(), activity.ID, dto.SaveParticipantsRequest{
		Room: 3,
		Participants: []dto.ParticipantDraft{
			{StudentID: ada.ID, Position: testutil.IntPtr(1), TeamName: testutil.StringPtr("<b>Owls</b>")},
		},
	}, Actor{})
	require.True(t, IsValidationError(err))

	_, err = f.svc.Save(context.Background(), activity.ID, dto.SaveParticipantsRequest{
		Room: 3,
		Participants: []dto.ParticipantDraft{
			{StudentID: ada.ID, Position: testutil.IntPtr(1), TeamName: testutil.StringPtr("Owls & Foxes")},
		},
	}, Actor{})
	require.NoError(t, err)
}

func TestParticipationSaveIgnoresTeamNamesOfRemovedRows(t *testing.T) {
	f := newParticipationFixture(t)
	activity := testutil.CreateActivity(t, f.db, "Relay", "2024-05-01", true, true)
	ada := testutil.CreateStudent(t, f.db, "Ada", "Lovelace", 3)
	testutil.CreateParticipant(t, f.db, activity.ID, ada.ID, testutil.IntPtr(1), testutil.StringPtr("Owls"))

	resp, err := f.svc.Save(context.Background(), activity.ID, dto.SaveParticipantsRequest{
		Room: 3,
		Participants: []dto.ParticipantDraft{
			{StudentID: ada.ID, TeamName: testutil.StringPtr("<b>Owls</b>")},
		},
	}, Actor{})
	require.NoError(t, err)
	require.Equal(t, dto.SaveParticipantsResponse{Upserted: 0, Deleted: 1}, resp)
	require.Empty(t, storedParticipants(t, f.db, activity.ID))
}

func TestParticipationSaveUnknownActivity(t *testing.T) {
	f := newParticipationFixture(t)

	_, err := f.svc.Save(context.Background(), 404, dto.SaveParticipantsRequest{Room: 3}, Actor{})
	require.ErrorIs(t, err, ErrActivityNotFound)
}

func TestParticipationSaveRejectsInvalidPositions(t *testing.T) {
	f := newParticipationFixture(t)
	activity := testutil.CreateActivity(t, f.db, "Chess", "2024-05-01", false, true)

	_, err := f.svc.Save(context.Background(), activity.ID, dto.SaveParticipantsRequest{
		Room:         3,
		Participants: []dto.ParticipantDraft{{StudentID: 1, Position: testutil.IntPtr(4)}},
	}, Actor{})

	var validationErrs validator.ValidationErrors
	require.True(t, errors.As(err, &validationErrs))
}

func TestParticipationState(t *testing.T) {
	f := newParticipationFixture(t)
	activity := testutil.CreateActivity(t, f.db, "Chess", "2024-05-01", false, true)
	ada := testutil.CreateStudent(t, f.db, "Ada", "Lovelace", 3)
	other := testutil.CreateStudent(t, f.db, "Grace", "Hopper", 4)
	testutil.CreateParticipant(t, f.db, activity.ID, ada.ID, testutil.IntPtr(1), nil)
	testutil.CreateParticipant(t, f.db, activity.ID, other.ID, nil, nil)

	states, err := f.svc.State(context.Background(), activity.ID, dto.ParticipantStateRequest{Room: 3})
	require.NoError(t, err)
	require.Equal(t, []dto.ParticipantState{{StudentID: ada.ID, Position: testutil.IntPtr(1)}}, states)

	_, err = f.svc.State(context.Background(), 999, dto.ParticipantStateRequest{Room: 3})
	require.ErrorIs(t, err, ErrActivityNotFound)
}
