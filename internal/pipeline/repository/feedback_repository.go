package repository

import (
	"context"

	"crypto-signal-agent/internal/entity"

	"gorm.io/gorm"
)

// FeedbackRepository defines the interface for persisting feedback rows.
type FeedbackRepository interface {
	Create(ctx context.Context, feedback *entity.Feedback) error
}

// NewFeedbackRepository creates a new instance of FeedbackRepository.
func NewFeedbackRepository(db *gorm.DB) FeedbackRepository {
	return &feedbackRepository{db: db}
}

type feedbackRepository struct {
	db *gorm.DB
}

func (r *feedbackRepository) Create(ctx context.Context, feedback *entity.Feedback) error {
	return r.db.WithContext(ctx).Create(feedback).Error
}
