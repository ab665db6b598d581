package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fjod/go_pickup/internal/domain"
	"github.com/segmentio/kafka-go"
)

const (
	OrderEventsTopic = "order-events"
	maxBackoff       = 30 * time.Second
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NoShowRecorder is implemented by accounts.MongoRepository.
type NoShowRecorder interface {
	RecordNoShow(ctx context.Context, customerID, orderID string, at time.Time) (bool, error)
}

// NoShowConsumer feeds order.no_show events into customer accounts. Offsets are committed
// after the account update, so a crash replays the event and the recorder deduplicates it.
type NoShowConsumer struct {
	accounts NoShowRecorder
	reader   MessageReader
	backoff  time.Duration
}

func NewNoShowConsumer(accounts NoShowRecorder, groupID string, brokers ...string) *NoShowConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    OrderEventsTopic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &NoShowConsumer{accounts: accounts, reader: reader, backoff: 500 * time.Millisecond}
}

func (c *NoShowConsumer) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		c.processMessage(ctx)
	}
}

func (c *NoShowConsumer) Close() {
	if err := c.reader.Close(); err != nil {
		slog.Error("error closing kafka reader", "error", err)
	}
}

func (c *NoShowConsumer) processMessage(ctx context.Context) {
	m, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		slog.ErrorContext(ctx, "error reading message", "error", err)
		return
	}

	if eventType(m) == domain.EventOrderNoShow {
		if err := c.handleNoShow(ctx, m); err != nil {
			// Uncommitted: the event is replayed once the consumer group resumes.
			slog.WarnContext(ctx, "no-show not recorded, leaving offset uncommitted", "offset", m.Offset, "error", err)
			return
		}
	}

	if err := c.reader.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		slog.ErrorContext(ctx, "error committing offset", "offset", m.Offset, "error", err)
	}
}

// handleNoShow keeps retrying the account update until it succeeds or ctx is done.
// Malformed events can never succeed and are dropped.
func (c *NoShowConsumer) handleNoShow(ctx context.Context, m kafka.Message) error {
	var event domain.OrderEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		slog.ErrorContext(ctx, "error parsing no-show event", "offset", m.Offset, "error", err)
		return nil
	}
	if event.CustomerID == "" || event.OrderID == "" {
		slog.ErrorContext(ctx, "no-show event without customer or order id", "offset", m.Offset)
		return nil
	}

	wait := c.backoff
	for attempt := 1; ; attempt++ {
		recorded, err := c.accounts.RecordNoShow(ctx, event.CustomerID, event.OrderID, event.OccurredAt)
		if err == nil {
			if recorded {
				slog.InfoContext(ctx, "no-show recorded", "customer_id", event.CustomerID, "order_id", event.OrderID)
			} else {
				slog.InfoContext(ctx, "no-show already recorded, skipping", "order_id", event.OrderID)
			}
			return nil
		}

		slog.WarnContext(ctx, "failed to record no-show", "order_id", event.OrderID, "attempt", attempt, "error", err)
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return fmt.Errorf("record no-show for order %s: %w", event.OrderID, ctx.Err())
		}
		wait = min(wait*2, maxBackoff)
	}
}

func eventType(m kafka.Message) string {
	for _, h := range m.Headers {
		if h.Key == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}
