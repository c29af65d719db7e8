// Package notify publishes order status changes to Kafka so downstream
// consumers (push notifications, analytics) can react without polling the
// API. The notifier subscribes to the order store, diffs consecutive
// snapshots, and emits one event per status change.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/xenking/prato-delivery/internal/domain/order"
)

// StatusEvent is the wire format of a single status change.
type StatusEvent struct {
	OrderID    string       `json:"order_id"`
	Status     order.Status `json:"status"`
	Label      string       `json:"label"`
	Customer   string       `json:"customer"`
	Restaurant string       `json:"restaurant"`
	Courier    string       `json:"courier,omitempty"`
	OccurredAt string       `json:"occurred_at"`
}

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Notifier turns store snapshots into per-order status events. Publishing
// happens on its own goroutine so a slow broker never stalls the store's
// subscriber fan-out.
type Notifier struct {
	lg     *zap.Logger
	writer writer

	queue chan []order.Order
	seen  map[string]order.Status
}

func New(lg *zap.Logger, brokers []string, topic string) *Notifier {
	return &Notifier{
		lg: lg.Named("notify"),
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			AllowAutoTopicCreation: true,
			BatchTimeout:           100 * time.Millisecond,
		},
		queue: make(chan []order.Order, 64),
		seen:  make(map[string]order.Status),
	}
}

// OnSnapshot is the store subscriber. Non-blocking: when the queue is full
// the snapshot is dropped, a later one carries the same end state.
func (n *Notifier) OnSnapshot(orders []order.Order) {
	select {
	case n.queue <- orders:
	default:
		n.lg.Warn("Notification queue full, dropping snapshot")
	}
}

// Run consumes queued snapshots until ctx is cancelled, then closes the
// Kafka writer.
func (n *Notifier) Run(ctx context.Context) error {
	defer func() {
		if err := n.writer.Close(); err != nil {
			n.lg.Error("Close Kafka writer", zap.Error(err))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case orders := <-n.queue:
			n.publish(ctx, n.diff(orders))
		}
	}
}

// diff compares a snapshot against the last seen status per order and
// returns events for new orders and status changes. Orders that left the
// snapshot are forgotten.
func (n *Notifier) diff(orders []order.Order) []StatusEvent {
	var events []StatusEvent
	current := make(map[string]order.Status, len(orders))

	for _, o := range orders {
		current[o.ID] = o.Status
		if prev, ok := n.seen[o.ID]; ok && prev == o.Status {
			continue
		}
		ev := StatusEvent{
			OrderID:    o.ID,
			Status:     o.Status,
			Label:      o.Status.Label(),
			Customer:   o.Customer.Name,
			Restaurant: o.Restaurant.Name,
			OccurredAt: time.Now().UTC().Format(time.RFC3339),
		}
		if o.Courier != nil {
			ev.Courier = o.Courier.Name
		}
		events = append(events, ev)
	}

	n.seen = current
	return events
}

func (n *Notifier) publish(ctx context.Context, events []StatusEvent) {
	if len(events) == 0 {
		return
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			n.lg.Error("Marshal status event", zap.Error(err), zap.String("order_id", ev.OrderID))
			continue
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(ev.OrderID),
			Value: data,
		})
	}

	if err := n.writer.WriteMessages(ctx, msgs...); err != nil {
		n.lg.Error("Publish status events", zap.Error(err), zap.Int("count", len(msgs)))
	}
}
