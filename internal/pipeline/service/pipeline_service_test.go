package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

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
)

type fakeAdapter struct {
	sourceType entity.SourceType
	records    []dto.RawRecord
	err        error
}

func (a *fakeAdapter) SourceType() entity.SourceType { return a.sourceType }

func (a *fakeAdapter) Fetch(ctx context.Context, profile ingest.FetchProfile, limit int) ([]dto.RawRecord, error) {
	return a.records, a.err
}

type fakeSubscriberRepo struct {
	subscribers []entity.Subscriber
	updated     []*entity.Subscriber
}

func (r *fakeSubscriberRepo) GetByID(ctx context.Context, id uint) (*entity.Subscriber, error) {
	for i := range r.subscribers {
		if r.subscribers[i].ID == id {
			return &r.subscribers[i], nil
		}
	}
	return nil, repository.ErrSubscriberNotFound
}

func (r *fakeSubscriberRepo) GetActive(ctx context.Context) ([]entity.Subscriber, error) {
	return r.subscribers, nil
}

func (r *fakeSubscriberRepo) Update(ctx context.Context, subscriber *entity.Subscriber) error {
	r.updated = append(r.updated, subscriber)
	return nil
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events map[string]*entity.Event
}

func (r *fakeEventRepo) CreateIgnoreConflict(ctx context.Context, event *entity.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		r.events = make(map[string]*entity.Event)
	}
	if _, ok := r.events[event.Fingerprint]; !ok {
		r.events[event.Fingerprint] = event
	}
	return nil
}

func (r *fakeEventRepo) FindByFingerprint(ctx context.Context, fingerprint string) (*entity.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[fingerprint], nil
}

type fakeAlertRepo struct {
	mu     sync.Mutex
	alerts []entity.Alert
}

func (r *fakeAlertRepo) Create(ctx context.Context, alert *entity.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, *alert)
	return nil
}

func (r *fakeAlertRepo) FindBySubscriber(ctx context.Context, subscriberID uint, limit int) ([]entity.Alert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Alert
	for _, alert := range r.alerts {
		if alert.SubscriberID == subscriberID {
			out = append(out, alert)
		}
	}
	return out, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
	chatIDs  []int64
}

func (n *fakeNotifier) SendMessage(text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	n.chatIDs = append(n.chatIDs, 0)
	return nil
}

func (n *fakeNotifier) SendMessageUser(text string, chatID int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, text)
	n.chatIDs = append(n.chatIDs, chatID)
	return nil
}

func testPipelineConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Pipeline = config.Pipeline{
		CronSchedule:   "*/5 * * * *",
		FetchLimit:     25,
		CooldownWindow: time.Hour,
	}
	cfg.Scoring = config.Scoring{
		CredibilityOnChain:     0.9,
		CredibilityNews:        0.75,
		CredibilitySocial:      0.5,
		RecencyHalfLifeMinutes: 30,
		NoiseWindow:            30 * time.Minute,
		NoiseDensityThreshold:  8,
		NoiseDuplicatePenalty:  0.2,
	}
	cfg.Personalization = config.Personalization{
		ClickGain:    1.15,
		DismissDecay: 0.85,
		IgnoreDecay:  0.95,
		MinWeight:    0.25,
		MaxWeight:    4.0,
	}
	return cfg
}

type pipelineFixture struct {
	svc       PipelineService
	subRepo   *fakeSubscriberRepo
	eventRepo *fakeEventRepo
	alertRepo *fakeAlertRepo
	notifier  *fakeNotifier
	store     *personalization.Store
}

func newPipelineFixture(t *testing.T, adapters []ingest.Adapter, subscribers []entity.Subscriber) *pipelineFixture {
	t.Helper()
	cfg := testPipelineConfig()
	norm := normalizer.New([]string{"BTC", "ETH", "SOL"}, map[entity.SourceType]float64{
		entity.SourceTypeOnChain: 0.9,
		entity.SourceTypeNews:    0.75,
		entity.SourceTypeSocial:  0.5,
	})
	subRepo := &fakeSubscriberRepo{subscribers: subscribers}
	eventRepo := &fakeEventRepo{}
	alertRepo := &fakeAlertRepo{}
	notifier := &fakeNotifier{}
	store := personalization.NewStore(cfg.Personalization, nil)
	engine := decision.NewEngine(decision.NewMemoryDedupStore(), logger.NewNop())

	svc := NewPipelineService(cfg, adapters, norm,
		scoring.New(cfg.Scoring, cfg.Personalization),
		scoring.NewDensityWindow(cfg.Scoring.NoiseWindow),
		store, engine, subRepo, eventRepo, alertRepo, notifier, logger.NewNop())

	return &pipelineFixture{
		svc:       svc,
		subRepo:   subRepo,
		eventRepo: eventRepo,
		alertRepo: alertRepo,
		notifier:  notifier,
		store:     store,
	}
}

func freshNewsRecord(summary string) dto.RawRecord {
	return dto.RawRecord{
		"summary":            summary,
		"timestamp":          time.Now().UTC().Format(time.RFC3339),
		"magnitude_score":    0.8,
		"source_credibility": 0.84,
		"engagement_score":   0.8,
		"velocity_change":    0.6,
		"source_links":       []string{"https://example.com/article"},
	}
}

func TestRunCycleIssuesAlertForWatchedEntity(t *testing.T) {
	adapter := &fakeAdapter{
		sourceType: entity.SourceTypeNews,
		records:    []dto.RawRecord{freshNewsRecord("BTC rally extends into the weekend")},
	}
	fx := newPipelineFixture(t, []ingest.Adapter{adapter}, []entity.Subscriber{
		{ID: 1, Watchlist: []string{"BTC"}, AlertThreshold: 0.55, TelegramChatID: 42, IsActive: true},
	})

	fx.svc.RunCycle(context.Background())

	require.Len(t, fx.alertRepo.alerts, 1)
	alert := fx.alertRepo.alerts[0]
	assert.Equal(t, uint(1), alert.SubscriberID)
	assert.Equal(t, entity.SourceTypeNews, alert.SourceType)
	assert.NotEmpty(t, alert.Reasoning)

	require.Len(t, fx.notifier.messages, 1)
	assert.Contains(t, fx.notifier.messages[0], "BTC")
	assert.Equal(t, int64(42), fx.notifier.chatIDs[0])

	// Event persisted once.
	assert.Len(t, fx.eventRepo.events, 1)
}

func TestRunCycleSkipsUnwatchedEntity(t *testing.T) {
	adapter := &fakeAdapter{
		sourceType: entity.SourceTypeNews,
		records:    []dto.RawRecord{freshNewsRecord("SOL outage resolved")},
	}
	fx := newPipelineFixture(t, []ingest.Adapter{adapter}, []entity.Subscriber{
		{ID: 1, Watchlist: []string{"BTC"}, AlertThreshold: 0.55, IsActive: true},
	})

	fx.svc.RunCycle(context.Background())

	assert.Empty(t, fx.alertRepo.alerts)
	assert.Empty(t, fx.notifier.messages)
	// The event itself is still normalized and persisted.
	assert.Len(t, fx.eventRepo.events, 1)
}

func TestRunCycleCooldownSuppressesRepeat(t *testing.T) {
	record := freshNewsRecord("BTC rally extends into the weekend")
	adapter := &fakeAdapter{
		sourceType: entity.SourceTypeNews,
		records:    []dto.RawRecord{record},
	}
	fx := newPipelineFixture(t, []ingest.Adapter{adapter}, []entity.Subscriber{
		{ID: 1, Watchlist: []string{"BTC"}, AlertThreshold: 0.55, IsActive: true},
	})

	fx.svc.RunCycle(context.Background())
	fx.svc.RunCycle(context.Background())

	assert.Len(t, fx.alertRepo.alerts, 1)
	assert.Len(t, fx.notifier.messages, 1)
}

func TestRunCycleUnavailableSourceDoesNotAbort(t *testing.T) {
	broken := &fakeAdapter{sourceType: entity.SourceTypeSocial, err: ingest.ErrSourceUnavailable}
	working := &fakeAdapter{
		sourceType: entity.SourceTypeNews,
		records:    []dto.RawRecord{freshNewsRecord("BTC rally extends into the weekend")},
	}
	fx := newPipelineFixture(t, []ingest.Adapter{broken, working}, []entity.Subscriber{
		{ID: 1, Watchlist: []string{"BTC"}, AlertThreshold: 0.55, IsActive: true},
	})

	fx.svc.RunCycle(context.Background())

	assert.Len(t, fx.alertRepo.alerts, 1)
}

func TestRunCycleDropsMalformedRecords(t *testing.T) {
	adapter := &fakeAdapter{
		sourceType: entity.SourceTypeNews,
		records: []dto.RawRecord{
			{"summary": "no timestamp at all"},
			freshNewsRecord("BTC rally extends into the weekend"),
		},
	}
	fx := newPipelineFixture(t, []ingest.Adapter{adapter}, []entity.Subscriber{
		{ID: 1, Watchlist: []string{"BTC"}, AlertThreshold: 0.55, IsActive: true},
	})

	fx.svc.RunCycle(context.Background())

	assert.Len(t, fx.eventRepo.events, 1)
	assert.Len(t, fx.alertRepo.alerts, 1)
}

func TestRunCycleDeduplicatesIdenticalRecords(t *testing.T) {
	record := freshNewsRecord("BTC rally extends into the weekend")
	adapter := &fakeAdapter{
		sourceType: entity.SourceTypeNews,
		records:    []dto.RawRecord{record, record, record},
	}
	fx := newPipelineFixture(t, []ingest.Adapter{adapter}, []entity.Subscriber{
		{ID: 1, Watchlist: []string{"BTC"}, AlertThreshold: 0.55, IsActive: true},
	})

	fx.svc.RunCycle(context.Background())

	assert.Len(t, fx.eventRepo.events, 1)
	assert.Len(t, fx.alertRepo.alerts, 1)
}

func TestRunCycleHighThresholdSuppresses(t *testing.T) {
	adapter := &fakeAdapter{
		sourceType: entity.SourceTypeNews,
		records:    []dto.RawRecord{freshNewsRecord("BTC rally extends into the weekend")},
	}
	fx := newPipelineFixture(t, []ingest.Adapter{adapter}, []entity.Subscriber{
		{ID: 1, Watchlist: []string{"BTC"}, AlertThreshold: 1.01, IsActive: true},
	})

	fx.svc.RunCycle(context.Background())

	assert.Empty(t, fx.alertRepo.alerts)
}

func TestBuildFetchProfile(t *testing.T) {
	profile := buildFetchProfile([]entity.Subscriber{
		{Watchlist: []string{"ETH", "BTC"}, TrackedWallets: []string{"0xabc"}},
		{Watchlist: []string{"BTC", "SOL"}, TrackedWallets: []string{"0xdef", "0xabc"}},
	})

	assert.Equal(t, []string{"BTC", "ETH", "SOL"}, profile.Watchlist)
	assert.Equal(t, []string{"0xabc", "0xdef"}, profile.TrackedWallets)
}
