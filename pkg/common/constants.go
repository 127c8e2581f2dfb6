package common

const (
	RedisStreamFeedback = "signal.feedback"

	RedisStreamGroup    = "pipeline-group"
	RedisStreamConsumer = "pipeline-consumer"
)
