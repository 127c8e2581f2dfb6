package service

import (
	"context"

	"crypto-signal-agent/internal/entity"
	"crypto-signal-agent/internal/pipeline/repository"
	"crypto-signal-agent/pkg/logger"
)

// AlertService provides read access to issued alerts.
type AlertService interface {
	GetAlertsBySubscriber(ctx context.Context, subscriberID uint, limit int) ([]entity.Alert, error)
}

type alertService struct {
	alertRepo      repository.AlertRepository
	subscriberRepo repository.SubscriberRepository
	logger         *logger.Logger
}

// NewAlertService creates a new AlertService.
func NewAlertService(alertRepo repository.AlertRepository, subscriberRepo repository.SubscriberRepository, log *logger.Logger) AlertService {
	return &alertService{alertRepo: alertRepo, subscriberRepo: subscriberRepo, logger: log}
}

// GetAlertsBySubscriber returns the most recent alerts issued to one
// subscriber, newest first.
func (s *alertService) GetAlertsBySubscriber(ctx context.Context, subscriberID uint, limit int) ([]entity.Alert, error) {
	if _, err := s.subscriberRepo.GetByID(ctx, subscriberID); err != nil {
		return nil, err
	}

	alerts, err := s.alertRepo.FindBySubscriber(ctx, subscriberID, limit)
	if err != nil {
		s.logger.Error("Failed to fetch alerts", logger.ErrorField(err))
		return nil, err
	}
	return alerts, nil
}
