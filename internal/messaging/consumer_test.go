package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// recordingClient collects delivered recipients.
type recordingClient struct {
	mu   sync.Mutex
	sent []string
}

func (c *recordingClient) SendText(_ context.Context, toPhone, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, toPhone)
	return nil
}

func (c *recordingClient) delivered() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

// nopAcknowledger satisfies amqp.Acknowledger for hand-built deliveries.
type nopAcknowledger struct{}

func (nopAcknowledger) Ack(uint64, bool) error        { return nil }
func (nopAcknowledger) Nack(uint64, bool, bool) error { return nil }
func (nopAcknowledger) Reject(uint64, bool) error     { return nil }

func outboundDelivery(t *testing.T, to string) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(OutboundMessage{
		ID:        uuid.New(),
		To:        to,
		Body:      "hola",
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("marshal outbound message: %v", err)
	}
	return amqp.Delivery{Acknowledger: nopAcknowledger{}, Body: body}
}

func waitForDeliveries(t *testing.T, client *recordingClient, want int) []string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if got := client.delivered(); len(got) >= want {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("delivered %v, want %d messages", client.delivered(), want)
	return nil
}

// A broker reconnect closes the delivery channel under the workers. The
// consumer must subscribe again instead of idling until restart.
func TestConsumer_ResubscribesAfterChannelLoss(t *testing.T) {
	client := &recordingClient{}
	c := NewConsumer(nil, client, ConsumerConfig{Workers: 1, Prefetch: 1})

	first := make(chan amqp.Delivery, 1)
	first <- outboundDelivery(t, "+5491100000001")
	close(first) // channel lost after one delivery

	second := make(chan amqp.Delivery, 1)
	second <- outboundDelivery(t, "+5491100000002")

	var mu sync.Mutex
	subscribes := 0
	c.subscribe = func() (<-chan amqp.Delivery, error) {
		mu.Lock()
		defer mu.Unlock()
		subscribes++
		if subscribes == 1 {
			return first, nil
		}
		return second, nil
	}

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	got := waitForDeliveries(t, client, 2)
	c.Stop()

	if got[0] != "+5491100000001" || got[1] != "+5491100000002" {
		t.Errorf("delivered = %v", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if subscribes != 2 {
		t.Errorf("subscribe calls = %d, want 2 (initial + after channel loss)", subscribes)
	}
}

func TestConsumer_StopEndsResubscribeLoop(t *testing.T) {
	client := &recordingClient{}
	c := NewConsumer(nil, client, ConsumerConfig{Workers: 1, Prefetch: 1})

	closed := make(chan amqp.Delivery)
	close(closed)
	c.subscribe = func() (<-chan amqp.Delivery, error) {
		return nil, errors.New("broker still down")
	}

	// Hand the already-closed channel straight to the pool so the loop
	// goes to the failing resubscribe immediately.
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelFunc = cancel
	c.wg.Add(1)
	go c.run(ctx, closed)

	done := make(chan struct{})
	go func() {
		c.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop() did not end the resubscribe loop")
	}
}
