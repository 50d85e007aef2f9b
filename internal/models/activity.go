package models

import "time"

// Activity is a school event students can take part in.
type Activity struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Year         int       `gorm:"not null" json:"year"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	ActivityDate time.Time `gorm:"type:date;not null;index" json:"activity_date"`
	IsTeam       bool      `gorm:"not null" json:"is_team"`
	ShowInUI     bool      `gorm:"column:show_in_ui;not null" json:"show_in_ui"`
}

// ActivityParticipant records that a student took part in an activity,
// optionally with a podium position and, for team activities, a team name.
type ActivityParticipant struct {
	ActivityID uint    `gorm:"primaryKey;autoIncrement:false" json:"activity_id"`
	StudentID  uint    `gorm:"primaryKey;autoIncrement:false;index" json:"student_id"`
	Position   *int    `json:"position"`
	TeamName   *string `gorm:"size:100" json:"team_name"`

	Activity *Activity `gorm:"foreignKey:ActivityID;constraint:OnDelete:CASCADE" json:"-"`
	Student  *Student  `gorm:"foreignKey:StudentID;constraint:OnDelete:CASCADE" json:"-"`
}
