package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"photoq/internal/config"
	"photoq/internal/models"
	"photoq/pkg/logger"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const (
	submissionRoutingKey = "submission.process"
	statusRoutingKey     = "submission.status"

	// attemptHeader carries the attempt count across retries. Retries are
	// republished rather than requeued: a plain Nack requeue only sets the
	// redelivered flag, which cannot count past a second attempt.
	attemptHeader = "x-attempt"

	maxBackoff = 60 * time.Second
)

// RabbitMQConsumer consumes submission jobs over AMQP with manual
// acknowledgements and a fixed-size worker pool.
type RabbitMQConsumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel

	queue       string
	exchange    string
	workerCount int
	maxAttempts int
	baseDelay   time.Duration

	handler  JobHandler
	notifier Notifier

	wg sync.WaitGroup
}

// NewRabbitMQConsumer dials the broker, declares the submission and
// status queues, and prepares a consumer bound to the given handler.
func NewRabbitMQConsumer(queueCfg *config.QueueConfig, workerCfg *config.WorkerConfig, handler JobHandler, notifier Notifier) (Consumer, error) {
	conn, err := amqp.Dial(queueCfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(queueCfg.Exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	for _, q := range []string{queueCfg.SubmissionQueue, queueCfg.NotifyQueue} {
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			conn.Close()
			return nil, fmt.Errorf("declare queue %s: %w", q, err)
		}
	}

	if err := ch.QueueBind(queueCfg.SubmissionQueue, submissionRoutingKey, queueCfg.Exchange, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bind submission queue: %w", err)
	}
	if err := ch.QueueBind(queueCfg.NotifyQueue, statusRoutingKey, queueCfg.Exchange, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bind notify queue: %w", err)
	}

	if err := ch.Qos(queueCfg.Prefetch, 0, false); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}

	logger.Info("RabbitMQ consumer initialized",
		zap.String("queue", queueCfg.SubmissionQueue),
		zap.String("exchange", queueCfg.Exchange),
		zap.Int("prefetch", queueCfg.Prefetch))

	return &RabbitMQConsumer{
		conn:        conn,
		channel:     ch,
		queue:       queueCfg.SubmissionQueue,
		exchange:    queueCfg.Exchange,
		workerCount: workerCfg.Count,
		maxAttempts: workerCfg.MaxAttempts,
		baseDelay:   workerCfg.RetryBackoff,
		handler:     handler,
		notifier:    notifier,
	}, nil
}

func (c *RabbitMQConsumer) Start(ctx context.Context) error {
	deliveries, err := c.channel.ConsumeWithContext(ctx, c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	logger.Info("Starting worker pool",
		zap.Int("workers", c.workerCount),
		zap.String("queue", c.queue))

	for i := 0; i < c.workerCount; i++ {
		c.wg.Add(1)
		go c.worker(ctx, i, deliveries)
	}

	<-ctx.Done()
	logger.Info("Shutdown requested, draining workers")
	c.wg.Wait()
	return nil
}

func (c *RabbitMQConsumer) worker(ctx context.Context, id int, deliveries <-chan amqp.Delivery) {
	defer c.wg.Done()

	logger.Debug("Worker started", zap.Int("worker_id", id))

	for {
		select {
		case <-ctx.Done():
			logger.Debug("Worker stopping", zap.Int("worker_id", id))
			return
		case d, ok := <-deliveries:
			if !ok {
				logger.Warn("Delivery channel closed", zap.Int("worker_id", id))
				return
			}
			c.processDelivery(ctx, d)
		}
	}
}

func (c *RabbitMQConsumer) processDelivery(ctx context.Context, d amqp.Delivery) {
	var msg models.JobMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		logger.Error("Dropping undecodable message",
			zap.Uint64("delivery_tag", d.DeliveryTag),
			zap.Error(err))
		_ = d.Ack(false)
		return
	}

	job := models.NewJob(msg, d.DeliveryTag, attemptFromDelivery(d), c.maxAttempts)

	jobCtx := logger.WithJobID(ctx, job.UUID)
	jobCtx = logger.WithUserID(jobCtx, fmt.Sprintf("%d", job.UserID))

	if err := msg.Validate(); err != nil {
		logger.WarnWithContext(jobCtx, "Rejecting malformed job message", zap.Error(err))
		c.notifyFailed(jobCtx, job, models.FailureReason(err))
		_ = d.Ack(false)
		return
	}

	err := c.handler(jobCtx, job)
	if err == nil {
		if nerr := c.notifier.Completed(jobCtx, job); nerr != nil {
			logger.ErrorWithContext(jobCtx, "Failed to publish completion", zap.Error(nerr))
		}
		_ = d.Ack(false)
		return
	}

	if models.IsTerminal(err) || job.LastAttempt() {
		logger.WarnWithContext(jobCtx, "Job failed permanently",
			zap.Int("attempt", job.Attempt),
			zap.Error(err))
		c.notifyFailed(jobCtx, job, models.FailureReason(err))
		_ = d.Ack(false)
		return
	}

	delay := c.backoff(job.Attempt)
	logger.WarnWithContext(jobCtx, "Job failed, scheduling retry",
		zap.Int("attempt", job.Attempt),
		zap.Duration("backoff", delay),
		zap.Error(err))

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		_ = d.Nack(false, true)
		return
	}

	if perr := c.republish(ctx, d, job.Attempt+1); perr != nil {
		logger.ErrorWithContext(jobCtx, "Failed to republish for retry, requeueing in place", zap.Error(perr))
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

// republish re-enqueues the delivery with the next attempt recorded in its
// headers, then the caller acks the original.
func (c *RabbitMQConsumer) republish(ctx context.Context, d amqp.Delivery, attempt int) error {
	return c.channel.PublishWithContext(ctx,
		c.exchange,
		submissionRoutingKey,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         d.Body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Headers:      retryHeaders(d.Headers, attempt),
		},
	)
}

// retryHeaders copies the delivery headers with the attempt counter set
func retryHeaders(headers amqp.Table, attempt int) amqp.Table {
	out := amqp.Table{}
	for k, v := range headers {
		out[k] = v
	}
	out[attemptHeader] = int32(attempt)
	return out
}

func (c *RabbitMQConsumer) notifyFailed(ctx context.Context, job *models.Job, reason string) {
	if err := c.notifier.Failed(ctx, job, reason); err != nil {
		logger.ErrorWithContext(ctx, "Failed to publish failure notification",
			zap.String("reason", reason),
			zap.Error(err))
	}
}

// attemptFromDelivery derives the delivery attempt. Retries republished by
// this consumer carry the attempt header and are authoritative; dead-letter
// counts and the redelivered flag cover deliveries routed by the broker
// itself.
func attemptFromDelivery(d amqp.Delivery) int {
	if d.Headers != nil {
		switch v := d.Headers[attemptHeader].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		}
		if xDeath, ok := d.Headers["x-death"]; ok {
			if deaths, ok := xDeath.([]interface{}); ok && len(deaths) > 0 {
				return len(deaths) + 1
			}
		}
	}
	if d.Redelivered {
		return 2
	}
	return 1
}

func (c *RabbitMQConsumer) backoff(attempt int) time.Duration {
	delay := c.baseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
	if delay > maxBackoff {
		delay = maxBackoff
	}
	return delay
}

func (c *RabbitMQConsumer) Health(ctx context.Context) error {
	if c.conn == nil || c.conn.IsClosed() {
		return fmt.Errorf("rabbitmq connection is closed")
	}
	return nil
}

func (c *RabbitMQConsumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
