package consumer

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"crypto-signal-agent/internal/pipeline/dto"
	"crypto-signal-agent/internal/pipeline/service"
	"crypto-signal-agent/pkg/common"
	"crypto-signal-agent/pkg/logger"
	"crypto-signal-agent/pkg/utils"
)

const readBlock = 5 * time.Second

// RedisConsumer consumes feedback tuples from the feedback Redis stream and
// hands them to the feedback service.
type RedisConsumer struct {
	redisClient     *redis.Client
	feedbackService service.FeedbackService
	logger          *logger.Logger
	stopChan        chan struct{}
	wg              sync.WaitGroup
}

// NewRedisConsumer creates a new RedisConsumer.
func NewRedisConsumer(redisClient *redis.Client, feedbackService service.FeedbackService, log *logger.Logger) *RedisConsumer {
	return &RedisConsumer{
		redisClient:     redisClient,
		feedbackService: feedbackService,
		logger:          log,
		stopChan:        make(chan struct{}),
	}
}

// Start begins the consumer's processing loop.
func (c *RedisConsumer) Start(ctx context.Context) {
	c.logger.Info("Feedback consumer started", logger.StringField("stream", common.RedisStreamFeedback))
	c.wg.Add(1)
	utils.GoSafe(func() {
		defer c.wg.Done()
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("Feedback consumer stopping due to context cancellation")
				return
			case <-c.stopChan:
				c.logger.Info("Feedback consumer stopping")
				return
			default:
				c.consumeOnce(ctx)
			}
		}
	})
}

// Stop gracefully shuts down the consumer.
func (c *RedisConsumer) Stop() {
	close(c.stopChan)
	c.wg.Wait()
	c.logger.Info("Feedback consumer stopped")
}

func (c *RedisConsumer) consumeOnce(ctx context.Context) {
	streams, err := c.redisClient.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    common.RedisStreamGroup,
		Consumer: common.RedisStreamConsumer,
		Streams:  []string{common.RedisStreamFeedback, ">"},
		Count:    10,
		Block:    readBlock,
	}).Result()
	if err != nil {
		if err != redis.Nil && ctx.Err() == nil {
			c.logger.Error("Failed to read feedback stream", logger.ErrorField(err))
			time.Sleep(time.Second)
		}
		return
	}

	for _, stream := range streams {
		for _, message := range stream.Messages {
			req, err := parseFeedbackMessage(message.Values)
			if err != nil {
				c.logger.Error("Dropping malformed feedback message",
					logger.StringField("message_id", message.ID), logger.ErrorField(err))
			} else if err := c.feedbackService.RecordFeedback(ctx, req); err != nil {
				c.logger.Error("Failed to record feedback",
					logger.StringField("message_id", message.ID), logger.ErrorField(err))
			}

			if err := c.redisClient.XAck(ctx, common.RedisStreamFeedback, common.RedisStreamGroup, message.ID).Err(); err != nil {
				c.logger.Error("Failed to ack feedback message",
					logger.StringField("message_id", message.ID), logger.ErrorField(err))
			}
		}
	}
}

func parseFeedbackMessage(values map[string]interface{}) (*dto.RecordFeedbackRequest, error) {
	subscriberRaw, _ := values["subscriber_id"].(string)
	subscriberID, err := strconv.ParseUint(subscriberRaw, 10, 32)
	if err != nil {
		return nil, err
	}
	fingerprint, _ := values["event_fingerprint"].(string)
	action, _ := values["action"].(string)

	return &dto.RecordFeedbackRequest{
		SubscriberID:     uint(subscriberID),
		EventFingerprint: fingerprint,
		Action:           action,
	}, nil
}
