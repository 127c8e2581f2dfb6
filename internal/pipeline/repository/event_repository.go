package repository

import (
	"context"
	"errors"

	"crypto-signal-agent/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EventRepository defines the interface for persisting normalized events.
type EventRepository interface {
	CreateIgnoreConflict(ctx context.Context, event *entity.Event) error
	FindByFingerprint(ctx context.Context, fingerprint string) (*entity.Event, error)
}

// NewEventRepository creates a new instance of EventRepository.
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

type eventRepository struct {
	db *gorm.DB
}

// CreateIgnoreConflict saves an event, ignoring fingerprint collisions so
// re-ingestion of the same raw record stays idempotent.
func (r *eventRepository) CreateIgnoreConflict(ctx context.Context, event *entity.Event) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "fingerprint"}}, DoNothing: true}).
		Create(event).Error
}

func (r *eventRepository) FindByFingerprint(ctx context.Context, fingerprint string) (*entity.Event, error) {
	var event entity.Event
	err := r.db.WithContext(ctx).Where("fingerprint = ?", fingerprint).First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}
