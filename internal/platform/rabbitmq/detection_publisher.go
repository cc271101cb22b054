package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"pothole-detect/internal/model"
)

type DetectionPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewDetectionPublisher(conn *amqp.Connection, queueName string) *DetectionPublisher {
	return &DetectionPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *DetectionPublisher) Publish(ctx context.Context, event model.DetectionEvent) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if _, err := declareQueue(ch, p.queueName); err != nil {
		return err
	}

	payload, err := encodeEvent(event)
	if err != nil {
		return err
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			MessageId:    event.ID,
			Timestamp:    event.DetectedAt,
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish detection event failed: %w", err)
	}
	return nil
}

func encodeEvent(event model.DetectionEvent) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal detection event failed: %w", err)
	}
	return payload, nil
}
