package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of the Redis client used for events
type RedisClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisPublisher publishes every event on the channel "<prefix>:<job id>"
type RedisPublisher struct {
	client  RedisClient
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewRedisPublisher creates a new RedisPublisher
func NewRedisPublisher(client RedisClient, prefix string, timeout time.Duration, logger *slog.Logger) *RedisPublisher {
	if prefix == "" {
		prefix = "jobs"
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &RedisPublisher{
		client:  client,
		prefix:  prefix,
		timeout: timeout,
		logger:  logger,
	}
}

// Channel returns the pub/sub channel of a job
func (p *RedisPublisher) Channel(jobID string) string {
	return p.prefix + ":" + jobID
}

// Publish implements Publisher
func (p *RedisPublisher) Publish(ctx context.Context, event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal event",
			slog.String("job_id", event.JobID),
			slog.Any("error", err),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	channel := p.Channel(event.JobID)
	if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
		p.logger.Error("Failed to publish event to Redis",
			slog.String("job_id", event.JobID),
			slog.String("channel", channel),
			slog.Any("error", err),
		)
	}
}
