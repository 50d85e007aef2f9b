// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/participation-api/internal/models"
)

var dbCounter atomic.Int64

// OpenDB opens an isolated in-memory sqlite database with every model migrated.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbCounter.Add(1))

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&models.Student{}, &models.Activity{}, &models.ActivityParticipant{}, &models.AuditLog{}))
	return db
}

// Date parses a YYYY-MM-DD literal in UTC.
func Date(t testing.TB, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02", value)
	require.NoError(t, err)
	return parsed
}

// CreateStudent inserts a student in room for school year 2024-2025.
func CreateStudent(t testing.TB, db *gorm.DB, first, last string, room int) models.Student {
	t.Helper()

	student := models.Student{
		SchoolName:   "Riverside Primary",
		Grade:        "3",
		FirstName:    first,
		LastName:     last,
		SchoolYear:   "2024-2025",
		Age:          8,
		DOB:          Date(t, "2016-03-14"),
		Room:         room,
		ProgramName:  models.ProgramFulltimeAfter,
		ParttimeDays: []string{"Mon", "Wed"},
	}
	require.NoError(t, db.Create(&student).Error)
	return student
}

// CreateActivity inserts an activity.
func CreateActivity(t testing.TB, db *gorm.DB, name, date string, isTeam, showInUI bool) models.Activity {
	t.Helper()

	activityDate := Date(t, date)
	activity := models.Activity{
		Year:         activityDate.Year(),
		Name:         name,
		ActivityDate: activityDate,
		IsTeam:       isTeam,
		ShowInUI:     showInUI,
	}
	require.NoError(t, db.Create(&activity).Error)
	return activity
}

// CreateParticipant inserts a participation record.
func CreateParticipant(t testing.TB, db *gorm.DB, activityID, studentID uint, position *int, teamName *string) {
	t.Helper()

	record := models.ActivityParticipant{
		ActivityID: activityID,
		StudentID:  studentID,
		Position:   position,
		TeamName:   teamName,
	}
	require.NoError(t, db.Omit("Activity", "Student").Create(&record).Error)
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// StringPtr returns a pointer to v.
func StringPtr(v string) *string {
	return &v
}
