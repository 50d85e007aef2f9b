package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/participation-api/internal/models"
)

// ActivityRepository provides read access to activities.
type ActivityRepository interface {
	GetByID(ctx context.Context, id uint) (models.Activity, error)
	ListVisible(ctx context.Context) ([]models.Activity, error)
}

type activityRepository struct {
	db *gorm.DB
}

// NewActivityRepository constructs an activity repository.
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &activityRepository{db: db}
}

func (r *activityRepository) GetByID(ctx context.Context, id uint) (models.Activity, error) {
	var activity models.Activity
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&activity).Error; err != nil {
		return models.Activity{}, err
	}

	return activity, nil
}

func (r *activityRepository) ListVisible(ctx context.Context) ([]models.Activity, error) {
	var activities []models.Activity
	err := r.db.WithContext(ctx).
		Where("show_in_ui = ?", true).
		Order("activity_date DESC, name").
		Find(&activities).Error
	if err != nil {
		return nil, err
	}

	return activities, nil
}
