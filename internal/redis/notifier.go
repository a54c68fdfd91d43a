package redisclient

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/salon-slot-booking/internal/booking"
)

// QueueNotifier pushes booking confirmations onto a Redis list for the
// messaging service to consume.
type QueueNotifier struct {
	client *redis.Client
	queue  string
}

func NewQueueNotifier(client *redis.Client, queue string) *QueueNotifier {
	return &QueueNotifier{client: client, queue: queue}
}

type confirmationMessage struct {
	Type string `json:"type"`
	booking.Confirmation
}

func (n *QueueNotifier) BookingConfirmed(ctx context.Context, c booking.Confirmation) error {
	data, err := json.Marshal(confirmationMessage{Type: "booking_confirmation", Confirmation: c})
	if err != nil {
		return fmt.Errorf("marshal confirmation: %w", err)
	}
	if err := n.client.LPush(ctx, n.queue, data).Err(); err != nil {
		return fmt.Errorf("push confirmation to %s: %w", n.queue, err)
	}
	return nil
}

var _ booking.Notifier = (*QueueNotifier)(nil)
