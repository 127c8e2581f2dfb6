package service

import (
	"context"
	"strings"

	"crypto-signal-agent/internal/entity"
	"crypto-signal-agent/internal/pipeline/dto"
	"crypto-signal-agent/internal/pipeline/repository"
	"crypto-signal-agent/pkg/logger"
)

// SubscriberService manages subscriber profile edits.
type SubscriberService interface {
	UpdateWatchlist(ctx context.Context, subscriberID uint, req *dto.UpdateWatchlistRequest) (*entity.Subscriber, error)
}

type subscriberService struct {
	subscriberRepo repository.SubscriberRepository
	logger         *logger.Logger
}

// NewSubscriberService creates a new SubscriberService.
func NewSubscriberService(subscriberRepo repository.SubscriberRepository, log *logger.Logger) SubscriberService {
	return &subscriberService{subscriberRepo: subscriberRepo, logger: log}
}

// UpdateWatchlist replaces the subscriber's watchlist and tracked wallet set.
// Symbols are uppercased so watchlist matching stays consistent with entity
// extraction; wallet addresses keep their reported casing.
func (s *subscriberService) UpdateWatchlist(ctx context.Context, subscriberID uint, req *dto.UpdateWatchlistRequest) (*entity.Subscriber, error) {
	subscriber, err := s.subscriberRepo.GetByID(ctx, subscriberID)
	if err != nil {
		return nil, err
	}

	subscriber.Watchlist = normalizeTerms(req.Watchlist, strings.ToUpper)
	subscriber.TrackedWallets = normalizeTerms(req.TrackedWallets, nil)

	if err := s.subscriberRepo.Update(ctx, subscriber); err != nil {
		s.logger.Error("Failed to update subscriber watchlist", logger.ErrorField(err))
		return nil, err
	}
	return subscriber, nil
}

func normalizeTerms(terms []string, canon func(string) string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, term := range terms {
		term = strings.TrimSpace(term)
		if canon != nil {
			term = canon(term)
		}
		if term == "" {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return out
}
