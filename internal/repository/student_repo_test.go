package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/participation-api/internal/testutil"
)

func TestStudentRepositoryLookups(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewStudentRepository(db)
	ctx := context.Background()

	testutil.CreateStudent(t, db, "Zoe", "Adams", 4)
	testutil.CreateStudent(t, db, "Ada", "Lovelace", 3)
	testutil.CreateStudent(t, db, "Ada", "Byron", 3)
	older := testutil.CreateStudent(t, db, "Old", "Timer", 7)
	require.NoError(t, db.Model(&older).Update("school_year", "2022-2023").Error)

	rooms, err := repo.Rooms(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []int{3, 4, 7}, rooms)

	rooms, err = repo.Rooms(ctx, "2024-2025")
	require.NoError(t, err)
	require.Equal(t, []int{3, 4}, rooms)

	years, err := repo.SchoolYears(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"2024-2025", "2022-2023"}, years)

	students, err := repo.ListByRoom(ctx, 3, "")
	require.NoError(t, err)
	require.Len(t, students, 2)
	require.Equal(t, "Byron", students[0].LastName)
	require.Equal(t, "Lovelace", students[1].LastName)
	require.Equal(t, []string{"Mon", "Wed"}, []string(students[0].ParttimeDays))
}

func TestActivityRepositoryListVisibleOrdersByDateThenName(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewActivityRepository(db)
	ctx := context.Background()

	testutil.CreateActivity(t, db, "Spelling Bee", "2024-03-01", false, true)
	testutil.CreateActivity(t, db, "Art Show", "2024-03-01", false, true)
	testutil.CreateActivity(t, db, "Sports Day", "2024-06-01", true, true)
	hidden := testutil.CreateActivity(t, db, "Staff Day", "2024-07-01", false, false)

	activities, err := repo.ListVisible(ctx)
	require.NoError(t, err)
	require.Len(t, activities, 3)
	require.Equal(t, "Sports Day", activities[0].Name)
	require.Equal(t, "Art Show", activities[1].Name)
	require.Equal(t, "Spelling Bee", activities[2].Name)

	fetched, err := repo.GetByID(ctx, hidden.ID)
	require.NoError(t, err)
	require.False(t, fetched.ShowInUI)

	_, err = repo.GetByID(ctx, hidden.ID+100)
	require.Error(t, err)
}
