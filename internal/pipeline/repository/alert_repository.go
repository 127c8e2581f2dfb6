package repository

import (
	"context"

	"crypto-signal-agent/internal/entity"

	"gorm.io/gorm"
)

// AlertRepository defines the interface for persisting issued alerts.
type AlertRepository interface {
	Create(ctx context.Context, alert *entity.Alert) error
	FindBySubscriber(ctx context.Context, subscriberID uint, limit int) ([]entity.Alert, error)
}

// NewAlertRepository creates a new instance of AlertRepository.
func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{db: db}
}

type alertRepository struct {
	db *gorm.DB
}

func (r *alertRepository) Create(ctx context.Context, alert *entity.Alert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

func (r *alertRepository) FindBySubscriber(ctx context.Context, subscriberID uint, limit int) ([]entity.Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	var alerts []entity.Alert
	err := r.db.WithContext(ctx).
		Where("subscriber_id = ?", subscriberID).
		Order("issued_at DESC").
		Limit(limit).
		Find(&alerts).Error
	return alerts, err
}
