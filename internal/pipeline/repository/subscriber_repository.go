package repository

import (
	"context"
	"errors"

	"crypto-signal-agent/internal/entity"

	"gorm.io/gorm"
)

// ErrSubscriberNotFound is surfaced to callers of scoring and feedback when
// the subscriber id is unknown. It is never fatal to the pipeline.
var ErrSubscriberNotFound = errors.New("subscriber not found")

// SubscriberRepository defines the interface for interacting with subscriber profiles.
type SubscriberRepository interface {
	GetByID(ctx context.Context, id uint) (*entity.Subscriber, error)
	GetActive(ctx context.Context) ([]entity.Subscriber, error)
	Update(ctx context.Context, subscriber *entity.Subscriber) error
}

// NewSubscriberRepository creates a new instance of SubscriberRepository.
func NewSubscriberRepository(db *gorm.DB) SubscriberRepository {
	return &subscriberRepository{db: db}
}

type subscriberRepository struct {
	db *gorm.DB
}

func (r *subscriberRepository) GetByID(ctx context.Context, id uint) (*entity.Subscriber, error) {
	var subscriber entity.Subscriber
	err := r.db.WithContext(ctx).First(&subscriber, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubscriberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &subscriber, nil
}

func (r *subscriberRepository) GetActive(ctx context.Context) ([]entity.Subscriber, error) {
	var subscribers []entity.Subscriber
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Find(&subscribers).Error
	return subscribers, err
}

func (r *subscriberRepository) Update(ctx context.Context, subscriber *entity.Subscriber) error {
	return r.db.WithContext(ctx).Save(subscriber).Error
}
