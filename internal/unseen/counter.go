// Package unseen implements the per-(user, room) unseen-message bookkeeping:
// one increment per message delivered to a room the user is not viewing, an
// absolute reset to zero when the user activates the room, and a snapshot
// used by clients to repaint badges.
package unseen

import (
	"context"

	"github.com/salespulse/docchat/internal/storage"
)

type Counter struct {
	store storage.UnseenStore
}

func NewCounter(store storage.UnseenStore) *Counter {
	return &Counter{store: store}
}

// MessageDelivered records a message the recipient did not see live and
// returns the new count. Callers decide the "not viewing" part; the counter
// only does the arithmetic.
func (c *Counter) MessageDelivered(ctx context.Context, roomID, recipientID string) (int64, error) {
	return c.store.Incr(ctx, recipientID, roomID)
}

// RoomActivated resets the (user, room) counter to zero. The reset is
// absolute, never a decrement, so the count cannot go negative even when an
// activation races a delivery.
func (c *Counter) RoomActivated(ctx context.Context, userID, roomID string) error {
	return c.store.Reset(ctx, userID, roomID)
}

// Snapshot answers a point-in-time room-to-count mapping for the user.
func (c *Counter) Snapshot(ctx context.Context, userID string) (map[string]int64, error) {
	return c.store.All(ctx, userID)
}
