package decision

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-signal-agent/internal/entity"
	"crypto-signal-agent/pkg/logger"
)

type failingDedupStore struct{}

func (failingDedupStore) MarkAlerted(ctx context.Context, subscriberID uint, fingerprint string, cooldown time.Duration) (bool, error) {
	return false, errors.New("redis unavailable")
}

func testScoredEvent(index, relevance float64) *entity.ScoredEvent {
	return &entity.ScoredEvent{
		Event: &entity.Event{
			SourceType:  entity.SourceTypeNews,
			Summary:     "BTC breaks resistance after ETF approval",
			Fingerprint: "fingerprint-1",
			SourceLinks: []string{"https://example.com/btc"},
		},
		SubscriberID:       1,
		Relevance:          relevance,
		ActionabilityIndex: index,
		Confidence:         0.8,
		Reasons:            []string{"impact=0.80"},
	}
}

func testDecisionSubscriber() *entity.Subscriber {
	return &entity.Subscriber{
		ID:             1,
		AlertThreshold: 0.55,
		CooldownWindow: time.Hour,
	}
}

func TestDecideIssuesAlertAboveThreshold(t *testing.T) {
	engine := NewEngine(NewMemoryDedupStore(), logger.NewNop())

	state, alert, err := engine.Decide(context.Background(), testScoredEvent(0.72, 0.6), testDecisionSubscriber())
	require.NoError(t, err)
	assert.Equal(t, entity.AlertStateAlerted, state)
	require.NotNil(t, alert)
	assert.Equal(t, uint(1), alert.SubscriberID)
	assert.Equal(t, "fingerprint-1", alert.EventFingerprint)
	assert.InDelta(t, 0.72, alert.ActionabilityIndex, 1e-9)
	assert.NotEmpty(t, alert.Reasoning)
	assert.False(t, alert.IssuedAt.IsZero())
}

func TestDecideSuppressesBelowThreshold(t *testing.T) {
	engine := NewEngine(NewMemoryDedupStore(), logger.NewNop())

	state, alert, err := engine.Decide(context.Background(), testScoredEvent(0.4, 0.6), testDecisionSubscriber())
	require.NoError(t, err)
	assert.Equal(t, entity.AlertStateSuppressed, state)
	assert.Nil(t, alert)
}

func TestDecideSuppressesZeroRelevance(t *testing.T) {
	// Even a perfect index never alerts without interest overlap.
	engine := NewEngine(NewMemoryDedupStore(), logger.NewNop())

	state, alert, err := engine.Decide(context.Background(), testScoredEvent(1.0, 0), testDecisionSubscriber())
	require.NoError(t, err)
	assert.Equal(t, entity.AlertStateSuppressed, state)
	assert.Nil(t, alert)
}

func TestDecideCooldownSuppressesSecondAlert(t *testing.T) {
	engine := NewEngine(NewMemoryDedupStore(), logger.NewNop())
	sub := testDecisionSubscriber()

	state, _, err := engine.Decide(context.Background(), testScoredEvent(0.72, 0.6), sub)
	require.NoError(t, err)
	require.Equal(t, entity.AlertStateAlerted, state)

	// Same fingerprint within the cooldown window, even with a higher score.
	state, alert, err := engine.Decide(context.Background(), testScoredEvent(0.95, 0.9), sub)
	require.NoError(t, err)
	assert.Equal(t, entity.AlertStateSuppressed, state)
	assert.Nil(t, alert)
}

func TestDecideDifferentSubscribersAlertIndependently(t *testing.T) {
	engine := NewEngine(NewMemoryDedupStore(), logger.NewNop())

	first := testDecisionSubscriber()
	second := testDecisionSubscriber()
	second.ID = 2

	state, _, err := engine.Decide(context.Background(), testScoredEvent(0.72, 0.6), first)
	require.NoError(t, err)
	assert.Equal(t, entity.AlertStateAlerted, state)

	scored := testScoredEvent(0.72, 0.6)
	scored.SubscriberID = 2
	state, _, err = engine.Decide(context.Background(), scored, second)
	require.NoError(t, err)
	assert.Equal(t, entity.AlertStateAlerted, state)
}

func TestDecideDedupFailureStaysScored(t *testing.T) {
	engine := NewEngine(failingDedupStore{}, logger.NewNop())

	state, alert, err := engine.Decide(context.Background(), testScoredEvent(0.72, 0.6), testDecisionSubscriber())
	require.Error(t, err)
	assert.Equal(t, entity.AlertStateScored, state)
	assert.Nil(t, alert)
}

func TestMemoryDedupStore(t *testing.T) {
	store := NewMemoryDedupStore()
	ctx := context.Background()

	issued, err := store.MarkAlerted(ctx, 1, "fp", time.Hour)
	require.NoError(t, err)
	assert.True(t, issued)

	issued, err = store.MarkAlerted(ctx, 1, "fp", time.Hour)
	require.NoError(t, err)
	assert.False(t, issued)

	// Another subscriber or fingerprint is an independent pair.
	issued, err = store.MarkAlerted(ctx, 2, "fp", time.Hour)
	require.NoError(t, err)
	assert.True(t, issued)

	issued, err = store.MarkAlerted(ctx, 1, "fp2", time.Hour)
	require.NoError(t, err)
	assert.True(t, issued)
}
