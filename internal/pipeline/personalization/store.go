package personalization

import (
	"context"
	"fmt"
	"sync"

	"crypto-signal-agent/internal/entity"
	"crypto-signal-agent/internal/pipeline/config"
	"crypto-signal-agent/pkg/utils"
)

const shardCount = 32

// Repository persists category weights behind the store. A nil repository
// keeps the store purely in-memory, which the tests use.
type Repository interface {
	GetWeights(ctx context.Context, subscriberID uint) ([]entity.CategoryWeight, error)
	UpsertWeight(ctx context.Context, subscriberID uint, category string, weight float64) error
	DeleteWeights(ctx context.Context, subscriberID uint) error
}

// Store holds per-subscriber category weights learned from feedback. Updates
// are serialized per subscriber through shard locks, so concurrent feedback
// events compose instead of overwriting each other; different subscribers
// never contend on the same lock.
type Store struct {
	cfg    config.Personalization
	repo   Repository
	shards [shardCount]*shard
}

type shard struct {
	mu      sync.Mutex
	weights map[uint]map[string]float64
	loaded  map[uint]bool
}

// NewStore creates a Store with the configured gain/decay bounds.
func NewStore(cfg config.Personalization, repo Repository) *Store {
	s := &Store{cfg: cfg, repo: repo}
	for i := range s.shards {
		s.shards[i] = &shard{
			weights: make(map[uint]map[string]float64),
			loaded:  make(map[uint]bool),
		}
	}
	return s
}

// Weights returns a snapshot of the subscriber's committed weights. The
// snapshot reflects every update applied before the call (read-after-write
// per subscriber).
func (s *Store) Weights(ctx context.Context, subscriberID uint) (map[string]float64, error) {
	sh := s.shardFor(subscriberID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if err := s.ensureLoaded(ctx, sh, subscriberID); err != nil {
		return nil, err
	}

	snapshot := make(map[string]float64, len(sh.weights[subscriberID]))
	for category, weight := range sh.weights[subscriberID] {
		snapshot[category] = weight
	}
	return snapshot, nil
}

// Apply performs one multiplicative adjustment for each category the feedback
// event belonged to. The factor depends on the action: click gains, dismiss
// decays, ignore applies the smaller decay. Results are clamped to the
// configured bounds; a bounds violation is corrected here and never
// propagated.
func (s *Store) Apply(ctx context.Context, subscriberID uint, action entity.FeedbackAction, categories []string) (map[string]float64, error) {
	factor, err := s.factorFor(action)
	if err != nil {
		return nil, err
	}

	sh := s.shardFor(subscriberID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if err := s.ensureLoaded(ctx, sh, subscriberID); err != nil {
		return nil, err
	}

	subWeights := sh.weights[subscriberID]
	if subWeights == nil {
		subWeights = make(map[string]float64)
		sh.weights[subscriberID] = subWeights
	}

	updated := make(map[string]float64, len(categories))
	for _, category := range categories {
		current, ok := subWeights[category]
		if !ok || current <= 0 {
			current = 1.0
		}
		next := utils.Clamp(current*factor, s.cfg.MinWeight, s.cfg.MaxWeight)
		subWeights[category] = next
		updated[category] = next

		if s.repo != nil {
			if err := s.repo.UpsertWeight(ctx, subscriberID, category, next); err != nil {
				return nil, fmt.Errorf("failed to persist weight for %q: %w", category, err)
			}
		}
	}
	return updated, nil
}

// Purge drops all weights for a subscriber, used when the profile is retired.
func (s *Store) Purge(ctx context.Context, subscriberID uint) error {
	sh := s.shardFor(subscriberID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	delete(sh.weights, subscriberID)
	delete(sh.loaded, subscriberID)
	if s.repo != nil {
		return s.repo.DeleteWeights(ctx, subscriberID)
	}
	return nil
}

func (s *Store) factorFor(action entity.FeedbackAction) (float64, error) {
	switch action {
	case entity.FeedbackActionClick:
		return s.cfg.ClickGain, nil
	case entity.FeedbackActionDismiss:
		return s.cfg.DismissDecay, nil
	case entity.FeedbackActionIgnore:
		return s.cfg.IgnoreDecay, nil
	}
	return 0, fmt.Errorf("unknown feedback action %q", action)
}

// ensureLoaded warm-loads persisted weights on first access. Caller must hold
// the shard lock.
func (s *Store) ensureLoaded(ctx context.Context, sh *shard, subscriberID uint) error {
	if sh.loaded[subscriberID] || s.repo == nil {
		sh.loaded[subscriberID] = true
		return nil
	}

	persisted, err := s.repo.GetWeights(ctx, subscriberID)
	if err != nil {
		return fmt.Errorf("failed to load weights: %w", err)
	}

	subWeights := make(map[string]float64, len(persisted))
	for _, cw := range persisted {
		subWeights[cw.Category] = utils.Clamp(cw.Weight, s.cfg.MinWeight, s.cfg.MaxWeight)
	}
	sh.weights[subscriberID] = subWeights
	sh.loaded[subscriberID] = true
	return nil
}

func (s *Store) shardFor(subscriberID uint) *shard {
	return s.shards[subscriberID%shardCount]
}
