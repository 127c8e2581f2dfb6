package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"crypto-signal-agent/internal/entity"
	"crypto-signal-agent/internal/pipeline/config"
	"crypto-signal-agent/internal/pipeline/decision"
	"crypto-signal-agent/internal/pipeline/dto"
	"crypto-signal-agent/internal/pipeline/ingest"
	"crypto-signal-agent/internal/pipeline/normalizer"
	"crypto-signal-agent/internal/pipeline/personalization"
	"crypto-signal-agent/internal/pipeline/repository"
	"crypto-signal-agent/internal/pipeline/scoring"
	"crypto-signal-agent/pkg/logger"
	"crypto-signal-agent/pkg/telegram"
	"crypto-signal-agent/pkg/utils"
)

// PipelineService runs the ingest -> normalize -> score -> decide cycle.
type PipelineService interface {
	Start(ctx context.Context) error
	Stop()
	RunCycle(ctx context.Context)
}

// NewPipelineService creates the pipeline service.
func NewPipelineService(
	cfg *config.Config,
	adapters []ingest.Adapter,
	norm *normalizer.Normalizer,
	scorer *scoring.Scorer,
	density *scoring.DensityWindow,
	store *personalization.Store,
	engine *decision.Engine,
	subscriberRepo repository.SubscriberRepository,
	eventRepo repository.EventRepository,
	alertRepo repository.AlertRepository,
	notifier telegram.Notifier,
	log *logger.Logger,
) PipelineService {
	return &pipelineService{
		cfg:            cfg,
		adapters:       adapters,
		normalizer:     norm,
		scorer:         scorer,
		density:        density,
		store:          store,
		engine:         engine,
		subscriberRepo: subscriberRepo,
		eventRepo:      eventRepo,
		alertRepo:      alertRepo,
		notifier:       notifier,
		logger:         log,
		cron:           cron.New(),
	}
}

type pipelineService struct {
	cfg            *config.Config
	adapters       []ingest.Adapter
	normalizer     *normalizer.Normalizer
	scorer         *scoring.Scorer
	density        *scoring.DensityWindow
	store          *personalization.Store
	engine         *decision.Engine
	subscriberRepo repository.SubscriberRepository
	eventRepo      repository.EventRepository
	alertRepo      repository.AlertRepository
	notifier       telegram.Notifier
	logger         *logger.Logger
	cron           *cron.Cron
}

// Start schedules RunCycle on the configured cron expression.
func (s *pipelineService) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cfg.Pipeline.CronSchedule, func() {
		s.RunCycle(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("Pipeline service started", logger.StringField("schedule", s.cfg.Pipeline.CronSchedule))
	return nil
}

// Stop halts the cron scheduler and waits for a running cycle to finish.
func (s *pipelineService) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Pipeline service stopped")
}

// RunCycle processes one poll cycle end to end. Each event is processed to
// completion independently; no failure in one event or subscriber aborts the
// others.
func (s *pipelineService) RunCycle(ctx context.Context) {
	subscribers, err := s.subscriberRepo.GetActive(ctx)
	if err != nil {
		s.logger.Error("Failed to load subscribers", logger.ErrorField(err))
		return
	}
	if len(subscribers) == 0 {
		s.logger.Debug("No active subscribers, skipping cycle")
		return
	}

	profile := buildFetchProfile(subscribers)
	events := s.collectEvents(ctx, profile)
	if len(events) == 0 {
		s.logger.Debug("No events this cycle")
		return
	}

	now := time.Now().UTC()
	alerted := 0
	for i := range subscribers {
		sub := &subscribers[i]
		if sub.CooldownWindow == 0 && sub.CooldownSecs == 0 {
			sub.CooldownWindow = s.cfg.Pipeline.CooldownWindow
		}
		alerted += s.processSubscriber(ctx, sub, events, now)
	}

	s.logger.Info("Cycle complete",
		logger.IntField("events", len(events)),
		logger.IntField("subscribers", len(subscribers)),
		logger.IntField("alerts", alerted),
	)
}

// collectEvents fetches every adapter concurrently, normalizes the records,
// and deduplicates by fingerprint with the newest occurrence winning.
func (s *pipelineService) collectEvents(ctx context.Context, profile ingest.FetchProfile) []*entity.Event {
	type fetchResult struct {
		sourceType entity.SourceType
		records    []dto.RawRecord
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results []fetchResult
	)
	for _, adapter := range s.adapters {
		adapter := adapter
		wg.Add(1)
		utils.GoSafe(func() {
			defer wg.Done()
			records, err := adapter.Fetch(ctx, profile, s.cfg.Pipeline.FetchLimit)
			if err != nil {
				if errors.Is(err, ingest.ErrSourceUnavailable) {
					s.logger.Warn("Source unavailable, skipping for this cycle",
						logger.StringField("source", string(adapter.SourceType())), logger.ErrorField(err))
				} else {
					s.logger.Error("Adapter fetch failed",
						logger.StringField("source", string(adapter.SourceType())), logger.ErrorField(err))
				}
				return
			}
			mu.Lock()
			results = append(results, fetchResult{sourceType: adapter.SourceType(), records: records})
			mu.Unlock()
		})
	}
	wg.Wait()

	var events []*entity.Event
	for _, result := range results {
		for _, record := range result.records {
			event, err := s.normalizer.Normalize(result.sourceType, record)
			if err != nil {
				s.logger.Debug("Dropped malformed record",
					logger.StringField("source", string(result.sourceType)), logger.ErrorField(err))
				continue
			}
			events = append(events, event)
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})

	seen := make(map[string]struct{}, len(events))
	deduped := events[:0]
	for _, event := range events {
		if _, ok := seen[event.Fingerprint]; ok {
			s.density.Observe(event.Fingerprint)
			continue
		}
		seen[event.Fingerprint] = struct{}{}
		s.density.Observe(event.Fingerprint)
		deduped = append(deduped, event)

		if err := s.eventRepo.CreateIgnoreConflict(ctx, event); err != nil {
			s.logger.Error("Failed to persist event",
				logger.StringField("fingerprint", event.Fingerprint), logger.ErrorField(err))
		}
	}
	return deduped
}

// processSubscriber scores and decides every event for one subscriber and
// dispatches the resulting alerts. Returns the number of alerts issued.
func (s *pipelineService) processSubscriber(ctx context.Context, sub *entity.Subscriber, events []*entity.Event, now time.Time) int {
	weights, err := s.store.Weights(ctx, sub.ID)
	if err != nil {
		s.logger.Error("Failed to load personalization weights",
			logger.IntField("subscriber_id", int(sub.ID)), logger.ErrorField(err))
		weights = nil
	}

	issued := 0
	for _, event := range events {
		scored := s.scorer.Score(event, sub, weights, s.density.Count(event.Fingerprint), now)

		state, alert, err := s.engine.Decide(ctx, scored, sub)
		if err != nil {
			s.logger.Error("Alert decision failed",
				logger.IntField("subscriber_id", int(sub.ID)),
				logger.StringField("fingerprint", event.Fingerprint),
				logger.ErrorField(err))
			continue
		}
		if state != entity.AlertStateAlerted {
			continue
		}

		if err := s.alertRepo.Create(ctx, alert); err != nil {
			s.logger.Error("Failed to persist alert",
				logger.IntField("subscriber_id", int(sub.ID)), logger.ErrorField(err))
		}
		s.dispatch(sub, scored, alert)
		issued++
	}
	return issued
}

// dispatch hands the alert to delivery. Delivery failures are reported to the
// log only; the Alerted transition is never rolled back.
func (s *pipelineService) dispatch(sub *entity.Subscriber, scored *entity.ScoredEvent, alert *entity.Alert) {
	if s.notifier == nil {
		return
	}
	message := telegram.FormatAlertForTelegram(telegram.AlertMessage{
		Title:       alert.Title,
		Score:       alert.ActionabilityIndex,
		Confidence:  alert.Confidence,
		SourceType:  string(alert.SourceType),
		Entities:    scored.MatchedEntities,
		Sentiment:   scored.Event.SentimentScore,
		Reasons:     alert.Reasoning,
		SourceLinks: alert.SourceLinks,
		IssuedAt:    alert.IssuedAt,
	})

	var err error
	if sub.TelegramChatID != 0 {
		err = s.notifier.SendMessageUser(message, sub.TelegramChatID)
	} else {
		err = s.notifier.SendMessage(message)
	}
	if err != nil {
		s.logger.Error("Failed to deliver alert",
			logger.IntField("subscriber_id", int(sub.ID)),
			logger.StringField("fingerprint", alert.EventFingerprint),
			logger.ErrorField(err))
	}
}

func buildFetchProfile(subscribers []entity.Subscriber) ingest.FetchProfile {
	symbols := make(map[string]struct{})
	wallets := make(map[string]struct{})
	for _, sub := range subscribers {
		for _, symbol := range sub.Watchlist {
			symbols[symbol] = struct{}{}
		}
		for _, wallet := range sub.TrackedWallets {
			wallets[wallet] = struct{}{}
		}
	}

	profile := ingest.FetchProfile{
		Watchlist:      make([]string, 0, len(symbols)),
		TrackedWallets: make([]string, 0, len(wallets)),
	}
	for symbol := range symbols {
		profile.Watchlist = append(profile.Watchlist, symbol)
	}
	for wallet := range wallets {
		profile.TrackedWallets = append(profile.TrackedWallets, wallet)
	}
	sort.Strings(profile.Watchlist)
	sort.Strings(profile.TrackedWallets)
	return profile
}
