package service

import (
	"context"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crypto-signal-agent/internal/entity"
	"crypto-signal-agent/internal/pipeline/dto"
	"crypto-signal-agent/internal/pipeline/repository"
	"crypto-signal-agent/pkg/logger"
)

func TestUpdateWatchlistNormalizesAndPersists(t *testing.T) {
	subRepo := &fakeSubscriberRepo{subscribers: []entity.Subscriber{
		{ID: 1, Name: "alice", Watchlist: pq.StringArray{"BTC"}},
	}}
	svc := NewSubscriberService(subRepo, logger.NewNop())

	subscriber, err := svc.UpdateWatchlist(context.Background(), 1, &dto.UpdateWatchlistRequest{
		Watchlist:      []string{" eth", "SOL", "eth", ""},
		TrackedWallets: []string{"0xAbCdEf1234567890", "0xAbCdEf1234567890"},
	})

	require.NoError(t, err)
	assert.Equal(t, pq.StringArray{"ETH", "SOL"}, subscriber.Watchlist)
	assert.Equal(t, pq.StringArray{"0xAbCdEf1234567890"}, subscriber.TrackedWallets)
	require.Len(t, subRepo.updated, 1)
	assert.Equal(t, subscriber, subRepo.updated[0])
}

func TestUpdateWatchlistUnknownSubscriber(t *testing.T) {
	subRepo := &fakeSubscriberRepo{}
	svc := NewSubscriberService(subRepo, logger.NewNop())

	_, err := svc.UpdateWatchlist(context.Background(), 99, &dto.UpdateWatchlistRequest{
		Watchlist: []string{"BTC"},
	})

	require.ErrorIs(t, err, repository.ErrSubscriberNotFound)
	assert.Empty(t, subRepo.updated)
}
