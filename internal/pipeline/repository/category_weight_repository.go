package repository

import (
	"context"

	"crypto-signal-agent/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CategoryWeightRepository persists learned category weights. It satisfies
// personalization.Repository.
type CategoryWeightRepository interface {
	GetWeights(ctx context.Context, subscriberID uint) ([]entity.CategoryWeight, error)
	UpsertWeight(ctx context.Context, subscriberID uint, category string, weight float64) error
	DeleteWeights(ctx context.Context, subscriberID uint) error
}

// NewCategoryWeightRepository creates a new instance of CategoryWeightRepository.
func NewCategoryWeightRepository(db *gorm.DB) CategoryWeightRepository {
	return &categoryWeightRepository{db: db}
}

type categoryWeightRepository struct {
	db *gorm.DB
}

func (r *categoryWeightRepository) GetWeights(ctx context.Context, subscriberID uint) ([]entity.CategoryWeight, error) {
	var weights []entity.CategoryWeight
	err := r.db.WithContext(ctx).Where("subscriber_id = ?", subscriberID).Find(&weights).Error
	return weights, err
}

func (r *categoryWeightRepository) UpsertWeight(ctx context.Context, subscriberID uint, category string, weight float64) error {
	cw := entity.CategoryWeight{
		SubscriberID: subscriberID,
		Category:     category,
		Weight:       weight,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "subscriber_id"}, {Name: "category"}},
			DoUpdates: clause.AssignmentColumns([]string{"weight", "updated_at"}),
		}).
		Create(&cw).Error
}

func (r *categoryWeightRepository) DeleteWeights(ctx context.Context, subscriberID uint) error {
	return r.db.WithContext(ctx).
		Where("subscriber_id = ?", subscriberID).
		Delete(&entity.CategoryWeight{}).Error
}
