package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"storefront/email-service/internal/stores/kafka"
	"storefront/pkg/logkey"
)

// Producer writes one record to a topic.
type Producer interface {
	ProduceMessage(ctx context.Context, topic string, key, value []byte, requestID string) error
}

// KafkaQueue enqueues jobs as records on a topic. A failed attempt is
// produced again with its attempt count raised, so redelivery is
// at-least-once.
type KafkaQueue struct {
	producer Producer
	topic    string
	handler  Handler
}

func NewKafkaQueue(p Producer, topic string, h Handler) *KafkaQueue {
	return &KafkaQueue{producer: p, topic: topic, handler: h}
}

func (q *KafkaQueue) Enqueue(ctx context.Context, job SendOrderEmail) error {
	value, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to encode job: %w", err)
	}
	return q.producer.ProduceMessage(ctx, q.topic, []byte(job.Email), value, job.RequestID)
}

// HandleMessage runs one attempt of the job carried by msg.
func (q *KafkaQueue) HandleMessage(ctx context.Context, msg kafka.Message) error {
	var job SendOrderEmail
	if err := json.Unmarshal(msg.Value, &job); err != nil {
		// A record that cannot be decoded will never succeed.
		slog.Error("dropping undecodable job", slog.String(logkey.RequestID, msg.RequestID), slog.String(logkey.ERROR, err.Error()))
		return nil
	}
	if job.RequestID == "" {
		job.RequestID = msg.RequestID
	}

	job.Attempts++
	err := q.handler.Handle(ctx, job)
	if err == nil {
		return nil
	}
	if job.Attempts >= MaxAttempts {
		return fmt.Errorf("job dropped after %d attempts: %w", job.Attempts, err)
	}
	return q.Enqueue(ctx, job)
}
