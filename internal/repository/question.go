// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"

	"duet/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// QuestionRepository defines the interface for question-bank data operations
type QuestionRepository interface {
	UpsertBank(ctx context.Context, questions []models.Question) error
	GetByID(ctx context.Context, id uint) (*models.Question, error)
	ListEligible(ctx context.Context, categories []string, audience models.Audience) ([]models.Question, error)
	Categories(ctx context.Context) ([]string, error)
}

// questionRepository implements QuestionRepository
type questionRepository struct {
	db *gorm.DB
}

// NewQuestionRepository creates a new question repository
func NewQuestionRepository(db *gorm.DB) QuestionRepository {
	return &questionRepository{db: db}
}

// UpsertBank inserts bank questions, updating content columns on text
// conflicts so re-seeding is idempotent.
func (r *questionRepository) UpsertBank(ctx context.Context, questions []models.Question) error {
	if len(questions) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "text"}},
			DoUpdates: clause.AssignmentColumns([]string{"category", "audience", "options", "active"}),
		}).
		Create(&questions).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *questionRepository) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	var question models.Question
	if err := r.db.WithContext(ctx).First(&question, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Question", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &question, nil
}

func (r *questionRepository) ListEligible(ctx context.Context, categories []string, audience models.Audience) ([]models.Question, error) {
	var questions []models.Question
	if err := r.db.WithContext(ctx).
		Where("active = ? AND audience = ? AND category IN ?", true, audience, categories).
		Find(&questions).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return questions, nil
}

func (r *questionRepository) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := r.db.WithContext(ctx).
		Model(&models.Question{}).
		Where("active = ?", true).
		Distinct().
		Order("category").
		Pluck("category", &categories).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return categories, nil
}
