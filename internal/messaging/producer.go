package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Producer enqueues outbound messages. It satisfies the notify.Sender
// contract, so the fan-out service can publish instead of calling the
// provider inline.
type Producer struct {
	conn *Connection
}

// NewProducer creates a new queue producer
func NewProducer(conn *Connection) *Producer {
	return &Producer{conn: conn}
}

// SendText enqueues one text message for one recipient.
func (p *Producer) SendText(ctx context.Context, toPhone, body string) error {
	return p.Publish(ctx, &OutboundMessage{To: toPhone, Body: body})
}

// Publish pushes an outbound message onto the durable queue.
func (p *Producer) Publish(ctx context.Context, msg *OutboundMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}

	if err := p.conn.PublishJSON(ctx, OutboundQueueName, msg); err != nil {
		return fmt.Errorf("failed to publish outbound message: %w", err)
	}

	slog.Info("published outbound message",
		"message_id", msg.ID,
		"to", msg.To,
	)
	return nil
}
