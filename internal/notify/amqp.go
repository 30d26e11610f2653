package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// BrokerClient is the subset of the RabbitMQ client used for events
type BrokerClient interface {
	Publish(ctx context.Context, routingKey string, body []byte, contentType string) error
	PublishWithRetry(ctx context.Context, routingKey string, body []byte, contentType string) error
}

// AMQPPublisher forwards events to a RabbitMQ exchange using the routing key
// "<prefix>.<event type>". Unit events are sent once; terminal events are
// retried with backoff.
type AMQPPublisher struct {
	client  BrokerClient
	prefix  string
	timeout time.Duration
	logger  *slog.Logger
}

// NewAMQPPublisher creates a new AMQPPublisher
func NewAMQPPublisher(client BrokerClient, prefix string, timeout time.Duration, logger *slog.Logger) *AMQPPublisher {
	if prefix == "" {
		prefix = "job"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &AMQPPublisher{
		client:  client,
		prefix:  prefix,
		timeout: timeout,
		logger:  logger,
	}
}

// RoutingKey returns the routing key used for an event type
func (p *AMQPPublisher) RoutingKey(t EventType) string {
	return p.prefix + "." + string(t)
}

// Publish implements Publisher
func (p *AMQPPublisher) Publish(ctx context.Context, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal event",
			slog.String("job_id", event.JobID),
			slog.Any("error", err),
		)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	routingKey := p.RoutingKey(event.Type)
	if event.Type.IsTerminal() {
		err = p.client.PublishWithRetry(ctx, routingKey, body, "application/json")
	} else {
		err = p.client.Publish(ctx, routingKey, body, "application/json")
	}

	if err != nil {
		p.logger.Error("Failed to publish event to RabbitMQ",
			slog.String("job_id", event.JobID),
			slog.String("routing_key", routingKey),
			slog.Any("error", err),
		)
	}
}
