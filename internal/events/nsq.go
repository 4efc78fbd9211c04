package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nsqio/go-nsq"
)

// NSQPublisher publishes events to an nsqd topic.
type NSQPublisher struct {
	producer *nsq.Producer
	topic    string
}

func NewNSQPublisher(address, topic string) (*NSQPublisher, error) {
	producer, err := nsq.NewProducer(address, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create NSQ producer: %w", err)
	}
	if err := producer.Ping(); err != nil {
		producer.Stop()
		return nil, fmt.Errorf("failed to ping NSQ daemon: %w", err)
	}
	producer.SetLoggerLevel(nsq.LogLevelWarning)

	return &NSQPublisher{producer: producer, topic: topic}, nil
}

func (p *NSQPublisher) Publish(ctx context.Context, events ...Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	bodies := make([][]byte, 0, len(events))
	for _, e := range events {
		b, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal event %s: %w", e.Type, err)
		}
		bodies = append(bodies, b)
	}
	if err := p.producer.MultiPublish(p.topic, bodies); err != nil {
		return fmt.Errorf("nsq publish: %w", err)
	}
	return nil
}

func (p *NSQPublisher) Close() error {
	p.producer.Stop()
	return nil
}
