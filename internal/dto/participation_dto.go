package dto

import (
	"time"

	"github.com/noah-isme/participation-api/internal/models"
)

// ParticipantDraft is one row of the participation grid as edited in the UI.
type ParticipantDraft struct {
	StudentID    uint    `json:"student_id" validate:"required"`
	Participated bool    `json:"participated"`
	Position     *int    `json:"position" validate:"omitempty,oneof=1 2 3"`
	TeamName     *string `json:"team_name" validate:"omitempty,max=100"`
}

// SaveParticipantsRequest carries a batch of participation edits for one room.
type SaveParticipantsRequest struct {
	Room         int                `json:"room" validate:"required,gte=1"`
	Participants []ParticipantDraft `json:"participants" validate:"dive"`
}

// SaveParticipantsResponse counts the reconciled edits.
type SaveParticipantsResponse struct {
	Upserted int `json:"upserted"`
	Deleted  int `json:"deleted"`
}

// ParticipantStateRequest selects the participation state of a room.
type ParticipantStateRequest struct {
	Room       int    `query:"room" validate:"required,gte=1"`
	SchoolYear string `query:"school_year" validate:"omitempty,max=9"`
}

// ParticipantState is the stored participation of one student.
type ParticipantState struct {
	StudentID uint    `json:"student_id"`
	Position  *int    `json:"position"`
	TeamName  *string `json:"team_name"`
}

// NewParticipantState converts a participation record into its DTO.
func NewParticipantState(record models.ActivityParticipant) ParticipantState {
	return ParticipantState{
		StudentID: record.StudentID,
		Position:  record.Position,
		TeamName:  record.TeamName,
	}
}

// ParticipationSavedEvent is published after a batch of edits commits.
type ParticipationSavedEvent struct {
	ID            string    `json:"id"`
	ActivityID    uint      `json:"activity_id"`
	Room          int       `json:"room"`
	Upserted      int       `json:"upserted"`
	Deleted       int       `json:"deleted"`
	StudentIDs    []uint    `json:"student_ids"`
	ActorID       uint      `json:"actor_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Origin        string    `json:"origin"`
	SavedAt       time.Time `json:"saved_at"`
}
