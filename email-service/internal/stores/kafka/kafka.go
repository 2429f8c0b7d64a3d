package kafka

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"

	"storefront/pkg/logkey"
)

const (
	TopicOrderEmails = `email-service.order-emails`
	ConsumerGroup    = `email-service`
)

// HeaderRequestID is the record header carrying the correlation id.
const HeaderRequestID = "x-request-id"

// Message is one consumed record.
type Message struct {
	Topic     string
	Key       []byte
	Value     []byte
	RequestID string
}

type Conf struct {
	client *kgo.Client
	topic  string
}

// NewConf connects to brokers as a member of group, consuming topic.
func NewConf(brokers []string, group, topic string) (*Conf, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(group),
		kgo.ConsumeTopics(topic),
		kgo.DisableAutoCommit(),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return &Conf{client: client, topic: topic}, nil
}

func (c *Conf) Topic() string {
	return c.topic
}

// ProduceMessage writes one record and waits for the broker ack.
func (c *Conf) ProduceMessage(ctx context.Context, topic string, key, value []byte, requestID string) error {
	r := &kgo.Record{Topic: topic, Key: key, Value: value}
	if requestID != "" {
		r.Headers = []kgo.RecordHeader{{Key: HeaderRequestID, Value: []byte(requestID)}}
	}
	if err := c.client.ProduceSync(ctx, r).FirstErr(); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}
	return nil
}

// ConsumeMessages polls until ctx is done, calling handle for every record
// and committing offsets once a fetch has been handled. A handler error is
// logged and does not stop consumption.
func (c *Conf) ConsumeMessages(ctx context.Context, handle func(context.Context, Message) error) error {
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if errors.Is(err, context.Canceled) {
				return
			}
			slog.Error("kafka fetch failed", slog.String("topic", topic),
				slog.Int("partition", int(partition)), slog.String(logkey.ERROR, err.Error()))
		})

		var records []*kgo.Record
		fetches.EachRecord(func(r *kgo.Record) {
			msg := Message{Topic: r.Topic, Key: r.Key, Value: r.Value}
			for _, h := range r.Headers {
				if h.Key == HeaderRequestID {
					msg.RequestID = string(h.Value)
				}
			}
			if err := handle(ctx, msg); err != nil {
				slog.Error("kafka message handling failed", slog.String(logkey.RequestID, msg.RequestID),
					slog.String(logkey.ERROR, err.Error()))
			}
			records = append(records, r)
		})

		if len(records) > 0 {
			if err := c.client.CommitRecords(ctx, records...); err != nil {
				slog.Error("kafka commit failed", slog.String(logkey.ERROR, err.Error()))
			}
		}
	}
}

func (c *Conf) Close() {
	c.client.Close()
}
