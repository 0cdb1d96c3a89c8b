package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IlyasAtabaev731/family-finance/internal/events"
	"github.com/segmentio/kafka-go"
)

type Publisher struct {
	writer *kafka.Writer
}

func NewPublisher(brokers []string, topic string) *Publisher {
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
			// Publish blocks the ledger operation, so do not wait for a batch.
			BatchSize:    1,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	const op = "events.kafka.Publish"

	msg, err := message(event)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

func message(event events.Event) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}

	return kafka.Message{
		Key:   []byte(event.Key()),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type())},
		},
	}, nil
}

var _ events.Publisher = (*Publisher)(nil)
