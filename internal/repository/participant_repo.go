package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/participation-api/internal/models"
)

// ParticipantWrite is one reconciled participation edit. Store selects
// between upserting the record and deleting it.
type ParticipantWrite struct {
	StudentID uint
	Store     bool
	Position  *int
	TeamName  *string
}

// ReconcileResult counts the effect of a reconciled batch.
type ReconcileResult struct {
	Upserted int
	Deleted  int
}

// ParticipantRepository persists activity participation.
type ParticipantRepository interface {
	ListForRoom(ctx context.Context, activityID uint, room int, schoolYear string) ([]models.ActivityParticipant, error)
	Reconcile(ctx context.Context, activityID uint, writes []ParticipantWrite) (ReconcileResult, error)
	ListPlaced(ctx context.Context, activityID uint, room int, schoolYear string) ([]models.ActivityParticipant, error)
	ListUnplaced(ctx context.Context, room int, schoolYear string) ([]models.ActivityParticipant, error)
}

type participantRepository struct {
	db *gorm.DB
}

// NewParticipantRepository constructs a participant repository.
func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &participantRepository{db: db}
}

func studentColumn(name string) clause.Column {
	return clause.Column{Table: "Student", Name: name}
}

func activityColumn(name string) clause.Column {
	return clause.Column{Table: "Activity", Name: name}
}

func (r *participantRepository) inRoom(ctx context.Context, room int, schoolYear string) *gorm.DB {
	query := r.db.WithContext(ctx).
		Joins("Student").
		Where(clause.Eq{Column: studentColumn("room"), Value: room})
	if schoolYear != "" {
		query = query.Where(clause.Eq{Column: studentColumn("school_year"), Value: schoolYear})
	}
	return query
}

func byStudentName() clause.OrderBy {
	return clause.OrderBy{Columns: []clause.OrderByColumn{
		{Column: studentColumn("first_name")},
		{Column: studentColumn("last_name")},
		{Column: studentColumn("id")},
	}}
}

func (r *participantRepository) ListForRoom(ctx context.Context, activityID uint, room int, schoolYear string) ([]models.ActivityParticipant, error) {
	var participants []models.ActivityParticipant
	err := r.inRoom(ctx, room, schoolYear).
		Where("activity_participants.activity_id = ?", activityID).
		Order(byStudentName()).
		Find(&participants).Error
	if err != nil {
		return nil, err
	}

	return participants, nil
}

// Reconcile applies every write in input order inside one transaction, so a
// later write for the same student wins and a failure leaves nothing behind.
func (r *participantRepository) Reconcile(ctx context.Context, activityID uint, writes []ParticipantWrite) (ReconcileResult, error) {
	var result ReconcileResult

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, write := range writes {
			if write.Store {
				record := models.ActivityParticipant{
					ActivityID: activityID,
					StudentID:  write.StudentID,
					Position:   write.Position,
					TeamName:   write.TeamName,
				}
				upsert := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "activity_id"}, {Name: "student_id"}},
					DoUpdates: clause.AssignmentColumns([]string{"position", "team_name"}),
				})
				if err := upsert.Create(&record).Error; err != nil {
					return err
				}
				result.Upserted++
				continue
			}

			deletion := tx.Where("activity_id = ? AND student_id = ?", activityID, write.StudentID).
				Delete(&models.ActivityParticipant{})
			if deletion.Error != nil {
				return deletion.Error
			}
			result.Deleted += int(deletion.RowsAffected)
		}
		return nil
	})
	if err != nil {
		return ReconcileResult{}, err
	}

	return result, nil
}

func (r *participantRepository) ListPlaced(ctx context.Context, activityID uint, room int, schoolYear string) ([]models.ActivityParticipant, error) {
	var participants []models.ActivityParticipant
	err := r.inRoom(ctx, room, schoolYear).
		Where("activity_participants.activity_id = ?", activityID).
		Where("activity_participants.position IS NOT NULL").
		Order(byStudentName()).
		Find(&participants).Error
	if err != nil {
		return nil, err
	}

	return participants, nil
}

// ListUnplaced returns position-less participation in UI-visible activities,
// ordered by student name and then activity date.
func (r *participantRepository) ListUnplaced(ctx context.Context, room int, schoolYear string) ([]models.ActivityParticipant, error) {
	order := byStudentName()
	order.Columns = append(order.Columns,
		clause.OrderByColumn{Column: activityColumn("activity_date")},
		clause.OrderByColumn{Column: activityColumn("id")},
	)

	var participants []models.ActivityParticipant
	err := r.inRoom(ctx, room, schoolYear).
		Joins("Activity").
		Where("activity_participants.position IS NULL").
		Where(clause.Eq{Column: activityColumn("show_in_ui"), Value: true}).
		Order(order).
		Find(&participants).Error
	if err != nil {
		return nil, err
	}

	return participants, nil
}
