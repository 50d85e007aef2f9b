package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/participation-api/internal/models"
	"github.com/noah-isme/participation-api/internal/testutil"
)

func TestParticipantRepositoryReconcileUpsertsAndDeletes(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewParticipantRepository(db)
	ctx := context.Background()

	activity := testutil.CreateActivity(t, db, "Relay", "2024-05-01", true, true)
	ada := testutil.CreateStudent(t, db, "Ada", "Lovelace", 3)
	grace := testutil.CreateStudent(t, db, "Grace", "Hopper", 3)
	alan := testutil.CreateStudent(t, db, "Alan", "Turing", 3)
	testutil.CreateParticipant(t, db, activity.ID, grace.ID, nil, nil)

	result, err := repo.Reconcile(ctx, activity.ID, []ParticipantWrite{
		{StudentID: ada.ID, Store: true, Position: testutil.IntPtr(1), TeamName: testutil.StringPtr("Owls")},
		{StudentID: grace.ID, Store: false},
		{StudentID: alan.ID, Store: false},
	})
	require.NoError(t, err)
	require.Equal(t, ReconcileResult{Upserted: 1, Deleted: 1}, result)

	var stored []models.ActivityParticipant
	require.NoError(t, db.Find(&stored).Error)
	require.Len(t, stored, 1)
	require.Equal(t, ada.ID, stored[0].StudentID)
	require.Equal(t, 1, *stored[0].Position)
	require.Equal(t, "Owls", *stored[0].TeamName)

	result, err = repo.Reconcile(ctx, activity.ID, []ParticipantWrite{
		{StudentID: ada.ID, Store: true, Position: testutil.IntPtr(2), TeamName: testutil.StringPtr("Hawks")},
		{StudentID: ada.ID, Store: true},
	})
	require.NoError(t, err)
	require.Equal(t, ReconcileResult{Upserted: 2}, result)

	var updated models.ActivityParticipant
	require.NoError(t, db.Where("activity_id = ? AND student_id = ?", activity.ID, ada.ID).First(&updated).Error)
	require.Nil(t, updated.Position, "the later edit for a student wins")
	require.Nil(t, updated.TeamName)
}

func TestParticipantRepositoryReconcileRollsBackOnFailure(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewParticipantRepository(db)

	activity := testutil.CreateActivity(t, db, "Chess", "2024-05-01", false, true)
	ada := testutil.CreateStudent(t, db, "Ada", "Lovelace", 3)

	require.NoError(t, db.Exec("CREATE TRIGGER reject_nine BEFORE INSERT ON activity_participants WHEN NEW.position = 9 BEGIN SELECT RAISE(ABORT, 'rejected'); END").Error)

	_, err := repo.Reconcile(context.Background(), activity.ID, []ParticipantWrite{
		{StudentID: ada.ID, Store: true, Position: testutil.IntPtr(1)},
		{StudentID: ada.ID + 1, Store: true, Position: testutil.IntPtr(9)},
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, db.Model(&models.ActivityParticipant{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestParticipantRepositoryListsByRoomAndYear(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewParticipantRepository(db)
	ctx := context.Background()

	activity := testutil.CreateActivity(t, db, "Chess", "2024-05-01", false, true)
	zoe := testutil.CreateStudent(t, db, "Zoe", "Adams", 3)
	ada := testutil.CreateStudent(t, db, "Ada", "Lovelace", 3)
	other := testutil.CreateStudent(t, db, "Otto", "Room", 4)
	testutil.CreateParticipant(t, db, activity.ID, zoe.ID, testutil.IntPtr(2), nil)
	testutil.CreateParticipant(t, db, activity.ID, ada.ID, nil, nil)
	testutil.CreateParticipant(t, db, activity.ID, other.ID, testutil.IntPtr(1), nil)

	all, err := repo.ListForRoom(ctx, activity.ID, 3, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, ada.ID, all[0].StudentID)

	placed, err := repo.ListPlaced(ctx, activity.ID, 3, "2024-2025")
	require.NoError(t, err)
	require.Len(t, placed, 1)
	require.Equal(t, zoe.ID, placed[0].StudentID)
	require.NotNil(t, placed[0].Student)
	require.Equal(t, "Zoe", placed[0].Student.FirstName)

	none, err := repo.ListPlaced(ctx, activity.ID, 3, "2019-2020")
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestParticipantRepositoryListUnplacedSkipsHiddenActivities(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewParticipantRepository(db)

	spring := testutil.CreateActivity(t, db, "Spring Fair", "2024-04-01", false, true)
	winter := testutil.CreateActivity(t, db, "Winter Games", "2024-01-15", false, true)
	hidden := testutil.CreateActivity(t, db, "Staff Day", "2024-02-01", false, false)
	ada := testutil.CreateStudent(t, db, "Ada", "Lovelace", 3)

	testutil.CreateParticipant(t, db, spring.ID, ada.ID, nil, nil)
	testutil.CreateParticipant(t, db, winter.ID, ada.ID, nil, nil)
	testutil.CreateParticipant(t, db, hidden.ID, ada.ID, nil, nil)

	rows, err := repo.ListUnplaced(context.Background(), 3, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, "Winter Games", rows[0].Activity.Name)
	require.Equal(t, "Spring Fair", rows[1].Activity.Name)
	require.Equal(t, "Ada", rows[1].Student.FirstName)
}
