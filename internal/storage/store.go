package storage

import "context"

// UnseenStore keeps per-(user, room) counters of messages delivered while
// the user was not viewing the room. Counts are never negative: Incr is the
// only way up, Reset is absolute. Implementations: redis.Client,
// memory.Client (for -dev without Redis).
type UnseenStore interface {
	// Incr adds one to the (user, room) counter and returns the new value.
	Incr(ctx context.Context, userID, roomID string) (int64, error)
	// Reset sets the (user, room) counter to zero.
	Reset(ctx context.Context, userID, roomID string) error
	// All returns the user's counters per room; rooms at zero are omitted.
	All(ctx context.Context, userID string) (map[string]int64, error)
	Close() error
}
