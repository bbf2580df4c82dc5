// Package redisstream appends audit events to a Redis Stream so lightweight
// pollers can tail the trail without a Kafka consumer.
package redisstream

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	audit "medledger/pkg/platform/audit"
)

const DefaultStream = "medledger:audit"

type Sink struct {
	client *redis.Client
	stream string
}

func New(client *redis.Client, stream string) *Sink {
	if stream == "" {
		stream = DefaultStream
	}
	return &Sink{client: client, stream: stream}
}

func (s *Sink) Publish(ctx context.Context, event audit.Event) error {
	value, err := event.Encode()
	if err != nil {
		return err
	}
	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"kind":    string(event.Kind),
			"patient": event.Patient.String(),
			"payload": value,
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("xadd audit event: %w", err)
	}
	return nil
}

// Close is a no-op; the shared Redis client is owned by the platform layer.
func (s *Sink) Close() error { return nil }
