package dto

import (
	"time"

	"github.com/noah-isme/participation-api/internal/models"
)

// DateLayout is the ISO calendar date format used on the wire.
const DateLayout = "2006-01-02"

// StudentListRequest filters students by room and optional school year.
type StudentListRequest struct {
	Room       int    `query:"room" validate:"required,gte=1"`
	SchoolYear string `query:"school_year" validate:"omitempty,max=9"`
}

// StudentResponse serializes a student.
type StudentResponse struct {
	ID           uint     `json:"id"`
	SchoolName   string   `json:"school_name"`
	Grade        string   `json:"grade"`
	FirstName    string   `json:"first_name"`
	LastName     string   `json:"last_name"`
	SchoolYear   string   `json:"school_year"`
	Age          int      `json:"age"`
	DOB          string   `json:"dob"`
	Picture      *string  `json:"picture"`
	Room         int      `json:"room"`
	ProgramName  string   `json:"program_name"`
	ParttimeDays []string `json:"parttime_days"`
}

// ActivityResponse serializes an activity.
type ActivityResponse struct {
	ID           uint   `json:"id"`
	Year         int    `json:"year"`
	Name         string `json:"name"`
	ActivityDate string `json:"activity_date"`
	IsTeam       bool   `json:"is_team"`
	ShowInUI     bool   `json:"show_in_ui"`
}

// NewStudentResponse converts a student model into its DTO.
func NewStudentResponse(student models.Student) StudentResponse {
	days := []string(student.ParttimeDays)
	if days == nil {
		days = []string{}
	}

	return StudentResponse{
		ID:           student.ID,
		SchoolName:   student.SchoolName,
		Grade:        student.Grade,
		FirstName:    student.FirstName,
		LastName:     student.LastName,
		SchoolYear:   student.SchoolYear,
		Age:          student.Age,
		DOB:          FormatDate(student.DOB),
		Picture:      student.Picture,
		Room:         student.Room,
		ProgramName:  string(student.ProgramName),
		ParttimeDays: days,
	}
}

// NewActivityResponse converts an activity model into its DTO.
func NewActivityResponse(activity models.Activity) ActivityResponse {
	return ActivityResponse{
		ID:           activity.ID,
		Year:         activity.Year,
		Name:         activity.Name,
		ActivityDate: FormatDate(activity.ActivityDate),
		IsTeam:       activity.IsTeam,
		ShowInUI:     activity.ShowInUI,
	}
}

// FormatDate renders t as an ISO date, or an empty string for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}
