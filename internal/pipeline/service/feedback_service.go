package service

import (
	"context"
	"errors"
	"fmt"

	"crypto-signal-agent/internal/entity"
	"crypto-signal-agent/internal/pipeline/dto"
	"crypto-signal-agent/internal/pipeline/personalization"
	"crypto-signal-agent/internal/pipeline/repository"
	"crypto-signal-agent/pkg/logger"
)

// ErrInvalidFeedbackAction is returned when the action is not one of
// click, dismiss or ignore.
var ErrInvalidFeedbackAction = errors.New("invalid feedback action")

// FeedbackService records subscriber interactions with emitted alerts and
// feeds them into the personalization store.
type FeedbackService interface {
	RecordFeedback(ctx context.Context, req *dto.RecordFeedbackRequest) error
}

// NewFeedbackService creates the feedback service.
func NewFeedbackService(
	store *personalization.Store,
	subscriberRepo repository.SubscriberRepository,
	eventRepo repository.EventRepository,
	feedbackRepo repository.FeedbackRepository,
	log *logger.Logger,
) FeedbackService {
	return &feedbackService{
		store:          store,
		subscriberRepo: subscriberRepo,
		eventRepo:      eventRepo,
		feedbackRepo:   feedbackRepo,
		logger:         log,
	}
}

type feedbackService struct {
	store          *personalization.Store
	subscriberRepo repository.SubscriberRepository
	eventRepo      repository.EventRepository
	feedbackRepo   repository.FeedbackRepository
	logger         *logger.Logger
}

// RecordFeedback applies one feedback tuple: the weights of the categories
// the event belonged to (its source type plus the entities the subscriber
// watches) are adjusted multiplicatively, then the feedback row is persisted.
func (s *feedbackService) RecordFeedback(ctx context.Context, req *dto.RecordFeedbackRequest) error {
	action := entity.FeedbackAction(req.Action)
	if !action.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFeedbackAction, req.Action)
	}

	sub, err := s.subscriberRepo.GetByID(ctx, req.SubscriberID)
	if err != nil {
		return err
	}

	event, err := s.eventRepo.FindByFingerprint(ctx, req.EventFingerprint)
	if err != nil {
		return fmt.Errorf("failed to look up event: %w", err)
	}

	if event != nil {
		categories := eventCategories(event, sub)
		if _, err := s.store.Apply(ctx, sub.ID, action, categories); err != nil {
			return fmt.Errorf("failed to apply feedback: %w", err)
		}
	} else {
		s.logger.Warn("Feedback references unknown fingerprint, weights unchanged",
			logger.IntField("subscriber_id", int(req.SubscriberID)),
			logger.StringField("fingerprint", req.EventFingerprint))
	}

	feedback := &entity.Feedback{
		SubscriberID:     sub.ID,
		EventFingerprint: req.EventFingerprint,
		Action:           action,
	}
	if err := s.feedbackRepo.Create(ctx, feedback); err != nil {
		return fmt.Errorf("failed to persist feedback: %w", err)
	}

	s.logger.Debug("Recorded feedback",
		logger.IntField("subscriber_id", int(sub.ID)),
		logger.StringField("action", string(action)))
	return nil
}

// eventCategories lists the category keys a feedback event adjusts: the
// event's source type plus each entity the subscriber actually watches.
func eventCategories(event *entity.Event, sub *entity.Subscriber) []string {
	categories := []string{string(event.SourceType)}
	for _, name := range event.Entities {
		if sub.WatchesEntity(name) {
			categories = append(categories, name)
		}
	}
	return categories
}
