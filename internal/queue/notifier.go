package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"photoq/internal/config"
	"photoq/internal/models"
	"photoq/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// RabbitMQNotifier publishes terminal job outcomes to the status queue
// on a dedicated channel.
type RabbitMQNotifier struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewRabbitMQNotifier opens its own connection so publishing survives
// consumer channel errors.
func NewRabbitMQNotifier(cfg *config.QueueConfig) (Notifier, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open notifier channel: %w", err)
	}

	if err := ch.ExchangeDeclare(cfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &RabbitMQNotifier{
		conn:     conn,
		channel:  ch,
		exchange: cfg.Exchange,
	}, nil
}

func (n *RabbitMQNotifier) Completed(ctx context.Context, job *models.Job) error {
	return n.publish(ctx, models.Notification{
		JobID:   job.QueueID,
		UUID:    job.UUID,
		Status:  models.NotificationCompleted,
		Attempt: job.Attempt,
	})
}

func (n *RabbitMQNotifier) Failed(ctx context.Context, job *models.Job, reason string) error {
	return n.publish(ctx, models.Notification{
		JobID:   job.QueueID,
		UUID:    job.UUID,
		Status:  models.NotificationFailed,
		Reason:  reason,
		Attempt: job.Attempt,
	})
}

func (n *RabbitMQNotifier) publish(ctx context.Context, note models.Notification) error {
	body, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	err = n.channel.PublishWithContext(ctx,
		n.exchange,
		statusRoutingKey,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	logger.DebugWithContext(ctx, "Published notification",
		zap.String("status", string(note.Status)),
		zap.String("reason", note.Reason))
	return nil
}

func (n *RabbitMQNotifier) Close() error {
	if n.channel != nil {
		n.channel.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}
