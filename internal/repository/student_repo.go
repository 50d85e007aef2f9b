package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/participation-api/internal/models"
)

// StudentRepository provides read access to student records.
type StudentRepository interface {
	ListByRoom(ctx context.Context, room int, schoolYear string) ([]models.Student, error)
	Rooms(ctx context.Context, schoolYear string) ([]int, error)
	SchoolYears(ctx context.Context) ([]string, error)
}

type studentRepository struct {
	db *gorm.DB
}

// NewStudentRepository constructs a student repository.
func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (r *studentRepository) ListByRoom(ctx context.Context, room int, schoolYear string) ([]models.Student, error) {
	query := r.db.WithContext(ctx).Where("room = ?", room)
	if schoolYear != "" {
		query = query.Where("school_year = ?", schoolYear)
	}

	var students []models.Student
	if err := query.Order("first_name, last_name, id").Find(&students).Error; err != nil {
		return nil, err
	}

	return students, nil
}

func (r *studentRepository) Rooms(ctx context.Context, schoolYear string) ([]int, error) {
	query := r.db.WithContext(ctx).Model(&models.Student{}).Distinct("room")
	if schoolYear != "" {
		query = query.Where("school_year = ?", schoolYear)
	}

	var rooms []int
	if err := query.Order("room").Pluck("room", &rooms).Error; err != nil {
		return nil, err
	}

	return rooms, nil
}

func (r *studentRepository) SchoolYears(ctx context.Context) ([]string, error) {
	var years []string
	err := r.db.WithContext(ctx).Model(&models.Student{}).
		Distinct("school_year").
		Where("school_year <> ''").
		Order("school_year DESC").
		Pluck("school_year", &years).Error
	if err != nil {
		return nil, err
	}

	return years, nil
}
