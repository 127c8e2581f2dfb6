package personalization

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-signal-agent/internal/entity"
	"crypto-signal-agent/internal/pipeline/config"
)

func testConfig() config.Personalization {
	return config.Personalization{
		ClickGain:    1.15,
		DismissDecay: 0.85,
		IgnoreDecay:  0.95,
		MinWeight:    0.25,
		MaxWeight:    4.0,
	}
}

func TestApplyClickRaisesWeight(t *testing.T) {
	store := NewStore(testConfig(), nil)
	ctx := context.Background()

	updated, err := store.Apply(ctx, 1, entity.FeedbackActionClick, []string{"BTC", "news"})
	require.NoError(t, err)
	assert.InDelta(t, 1.15, updated["BTC"], 1e-9)
	assert.InDelta(t, 1.15, updated["news"], 1e-9)

	weights, err := store.Weights(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.15, weights["BTC"], 1e-9)
}

func TestApplyDismissAndIgnoreLowerWeight(t *testing.T) {
	store := NewStore(testConfig(), nil)
	ctx := context.Background()

	updated, err := store.Apply(ctx, 1, entity.FeedbackActionDismiss, []string{"BTC"})
	require.NoError(t, err)
	assert.InDelta(t, 0.85, updated["BTC"], 1e-9)

	updated, err = store.Apply(ctx, 1, entity.FeedbackActionIgnore, []string{"BTC"})
	require.NoError(t, err)
	assert.InDelta(t, 0.85*0.95, updated["BTC"], 1e-9)
}

func TestApplyInvalidAction(t *testing.T) {
	store := NewStore(testConfig(), nil)

	_, err := store.Apply(context.Background(), 1, entity.FeedbackAction("love"), []string{"BTC"})
	assert.Error(t, err)
}

func TestApplyClampsToBounds(t *testing.T) {
	store := NewStore(testConfig(), nil)
	ctx := context.Background()

	// Enough repeated clicks to exceed the cap without clamping.
	for i := 0; i < 30; i++ {
		_, err := store.Apply(ctx, 1, entity.FeedbackActionClick, []string{"BTC"})
		require.NoError(t, err)
	}
	weights, err := store.Weights(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, weights["BTC"], 1e-9)

	for i := 0; i < 40; i++ {
		_, err := store.Apply(ctx, 1, entity.FeedbackActionDismiss, []string{"BTC"})
		require.NoError(t, err)
	}
	weights, err = store.Weights(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.25, weights["BTC"], 1e-9)
}

func TestWeightsSnapshotIsIsolated(t *testing.T) {
	store := NewStore(testConfig(), nil)
	ctx := context.Background()

	_, err := store.Apply(ctx, 1, entity.FeedbackActionClick, []string{"BTC"})
	require.NoError(t, err)

	snapshot, err := store.Weights(ctx, 1)
	require.NoError(t, err)
	snapshot["BTC"] = 99

	fresh, err := store.Weights(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 1.15, fresh["BTC"], 1e-9)
}

func TestSubscribersAreIndependent(t *testing.T) {
	store := NewStore(testConfig(), nil)
	ctx := context.Background()

	_, err := store.Apply(ctx, 1, entity.FeedbackActionClick, []string{"BTC"})
	require.NoError(t, err)

	weights, err := store.Weights(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, weights)
}

func TestConcurrentFeedbackComposes(t *testing.T) {
	store := NewStore(testConfig(), nil)
	ctx := context.Background()

	const clicks = 8
	var wg sync.WaitGroup
	for i := 0; i < clicks; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Apply(ctx, 1, entity.FeedbackActionClick, []string{"BTC"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	expected := 1.0
	for i := 0; i < clicks; i++ {
		expected *= 1.15
	}
	weights, err := store.Weights(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, expected, weights["BTC"], 1e-9)
}

func TestPurgeResetsWeights(t *testing.T) {
	store := NewStore(testConfig(), nil)
	ctx := context.Background()

	_, err := store.Apply(ctx, 1, entity.FeedbackActionClick, []string{"BTC"})
	require.NoError(t, err)

	require.NoError(t, store.Purge(ctx, 1))

	weights, err := store.Weights(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, weights)
}

type recordingRepo struct {
	mu      sync.Mutex
	weights map[string]float64
}

func (r *recordingRepo) GetWeights(ctx context.Context, subscriberID uint) ([]entity.CategoryWeight, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.CategoryWeight
	for category, weight := range r.weights {
		out = append(out, entity.CategoryWeight{SubscriberID: subscriberID, Category: category, Weight: weight})
	}
	return out, nil
}

func (r *recordingRepo) UpsertWeight(ctx context.Context, subscriberID uint, category string, weight float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.weights == nil {
		r.weights = make(map[string]float64)
	}
	r.weights[category] = weight
	return nil
}

func (r *recordingRepo) DeleteWeights(ctx context.Context, subscriberID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.weights = nil
	return nil
}

func TestApplyWritesThroughRepository(t *testing.T) {
	repo := &recordingRepo{}
	store := NewStore(testConfig(), repo)
	ctx := context.Background()

	_, err := store.Apply(ctx, 1, entity.FeedbackActionClick, []string{"BTC"})
	require.NoError(t, err)
	assert.InDelta(t, 1.15, repo.weights["BTC"], 1e-9)
}

func TestWeightsWarmLoadFromRepository(t *testing.T) {
	repo := &recordingRepo{weights: map[string]float64{"ETH": 1.6}}
	store := NewStore(testConfig(), repo)

	weights, err := store.Weights(context.Background(), 7)
	require.NoError(t, err)
	assert.InDelta(t, 1.6, weights["ETH"], 1e-9)
}
