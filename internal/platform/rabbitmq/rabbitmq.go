package rabbitmq

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sethvargo/go-retry"
)

// New dials the broker and declares queue so publishers can rely on it.
func New(ctx context.Context, url, queue string) (*amqp.Connection, error) {
	var conn *amqp.Connection

	b := retry.NewFibonacci(500 * time.Millisecond)
	err := retry.Do(ctx, retry.WithMaxRetries(4, b), func(ctx context.Context) error {
		c, err := amqp.Dial(url)
		if err != nil {
			return retry.RetryableError(err)
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq failed: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if _, err := declareQueue(ch, queue); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}

func declareQueue(ch *amqp.Channel, queue string) (amqp.Queue, error) {
	q, err := ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return amqp.Queue{}, fmt.Errorf("declare queue failed: %w", err)
	}
	return q, nil
}
