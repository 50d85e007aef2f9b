package models

import (
	"time"

	"gorm.io/datatypes"
)

// ProgramName enumerates the enrolment programs a student can attend.
type ProgramName string

const (
	ProgramFulltimeAfter          ProgramName = "fulltime_after"
	ProgramFulltimeBefore         ProgramName = "fulltime_before"
	ProgramFulltimeBeforeAndAfter ProgramName = "fulltime_before_and_after"
	ProgramParttime3DaysAfter     ProgramName = "parttime_3days_after"
	ProgramParttime2DaysAfter     ProgramName = "parttime_2days_after"
	ProgramHoliday                ProgramName = "holiday"
)

// Student is a learner enrolled in a room for a school year. Records are
// maintained by the school's administrative process and only read here.
type Student struct {
	ID           uint                        `gorm:"primaryKey" json:"id"`
	SchoolName   string                      `gorm:"size:100;not null" json:"school_name"`
	Grade        string                      `gorm:"size:10;not null" json:"grade"`
	FirstName    string                      `gorm:"size:50;not null" json:"first_name"`
	LastName     string                      `gorm:"size:50;not null" json:"last_name"`
	SchoolYear   string                      `gorm:"size:9;not null;index" json:"school_year"`
	Age          int                         `gorm:"not null" json:"age"`
	DOB          time.Time                   `gorm:"column:dob;type:date;not null" json:"dob"`
	Picture      *string                     `json:"picture"`
	Room         int                         `gorm:"not null;index" json:"room"`
	ProgramName  ProgramName                 `gorm:"size:40;not null" json:"program_name"`
	ParttimeDays datatypes.JSONSlice[string] `gorm:"not null" json:"parttime_days"`
}

// FullName joins first and last name the way certificates print it.
func (s Student) FullName() string {
	return s.FirstName + " " + s.LastName
}
