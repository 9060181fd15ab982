package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer drains the outbound queue and delivers each message through the
// WhatsApp client. One message, one recipient: a delivery failure is logged
// and acked, never letting a dead number poison the queue for everyone else.
type Consumer struct {
	conn       *Connection
	client     Client
	workers    int
	prefetch   int
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	// subscribe opens a delivery channel on the current broker channel.
	// A field so tests can feed deliveries without a broker.
	subscribe func() (<-chan amqp.Delivery, error)
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Workers  int // Number of concurrent workers
	Prefetch int // Prefetch count per worker
}

// DefaultConsumerConfig returns sensible defaults
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Workers:  3,
		Prefetch: 1, // Deliver one at a time per worker for fairness
	}
}

// NewConsumer creates a new outbound queue consumer
func NewConsumer(conn *Connection, client Client, cfg ConsumerConfig) *Consumer {
	if cfg.Workers <= 0 {
		cfg.Workers = 3
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}

	c := &Consumer{
		conn:     conn,
		client:   client,
		workers:  cfg.Workers,
		prefetch: cfg.Prefetch,
	}
	c.subscribe = c.consumeQueue
	return c
}

// consumeQueue sets QoS and opens a delivery channel on the current
// broker channel.
func (c *Consumer) consumeQueue() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()

	// Set QoS (prefetch)
	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := ch.Consume(
		OutboundQueueName,
		"",    // consumer tag (auto-generated)
		false, // auto-ack (manual ack for reliability)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}
	return msgs, nil
}

// Start begins consuming messages
func (c *Consumer) Start(ctx context.Context) error {
	ctx, c.cancelFunc = context.WithCancel(ctx)

	msgs, err := c.subscribe()
	if err != nil {
		return err
	}

	slog.Info("starting outbound consumer", "workers", c.workers, "prefetch", c.prefetch)

	c.wg.Add(1)
	go c.run(ctx, msgs)

	return nil
}

// run keeps a worker pool draining the queue. When the broker connection
// drops, the delivery channel closes under the workers while the connection
// re-dials in the background; run then re-subscribes and restarts the pool
// so a reconnect never leaves the consumer permanently idle.
func (c *Consumer) run(ctx context.Context, msgs <-chan amqp.Delivery) {
	defer c.wg.Done()

	for {
		var pool sync.WaitGroup
		for i := 0; i < c.workers; i++ {
			pool.Add(1)
			go func(id int) {
				defer pool.Done()
				c.worker(ctx, id, msgs)
			}(i)
		}
		pool.Wait()

		if ctx.Err() != nil {
			return
		}

		var ok bool
		msgs, ok = c.resubscribe(ctx)
		if !ok {
			return
		}
	}
}

// resubscribe retries the queue subscription until it succeeds or ctx ends.
func (c *Consumer) resubscribe(ctx context.Context) (<-chan amqp.Delivery, bool) {
	backoff := time.Second
	for {
		msgs, err := c.subscribe()
		if err == nil {
			slog.Info("outbound consumer re-subscribed")
			return msgs, true
		}
		slog.Warn("re-subscribe failed, retrying", "error", err, "backoff", backoff)

		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

// worker processes messages from the queue
func (c *Consumer) worker(ctx context.Context, id int, msgs <-chan amqp.Delivery) {
	slog.Info("delivery worker started", "worker_id", id)

	for {
		select {
		case <-ctx.Done():
			slog.Info("delivery worker stopping", "worker_id", id)
			return

		case msg, ok := <-msgs:
			if !ok {
				slog.Info("message channel closed", "worker_id", id)
				return
			}

			c.deliver(ctx, id, msg)
		}
	}
}

// deliver handles a single outbound message.
func (c *Consumer) deliver(ctx context.Context, workerID int, msg amqp.Delivery) {
	var out OutboundMessage
	if err := json.Unmarshal(msg.Body, &out); err != nil {
		slog.Error("failed to unmarshal outbound message",
			"worker_id", workerID,
			"error", err,
		)
		// Reject without requeue for malformed messages
		_ = msg.Reject(false)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := c.client.SendText(sendCtx, out.To, out.Body); err != nil {
		// The client already retried transient failures; requeueing here
		// would stall the queue behind one undeliverable recipient.
		slog.Error("delivery failed",
			"worker_id", workerID,
			"message_id", out.ID,
			"to", out.To,
			"error", err,
		)
	} else {
		slog.Info("message delivered",
			"worker_id", workerID,
			"message_id", out.ID,
			"to", out.To,
		)
	}

	if err := msg.Ack(false); err != nil {
		slog.Error("failed to ack message",
			"worker_id", workerID,
			"message_id", out.ID,
			"error", err,
		)
	}
}

// Stop gracefully stops the consumer
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
	c.wg.Wait()
	slog.Info("outbound consumer stopped")
}
