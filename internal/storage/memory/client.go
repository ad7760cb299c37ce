// Package memory implements UnseenStore in process memory for -dev runs
// without Redis. Counters do not survive a restart, which matches the
// ephemeral nature of a dev environment.
package memory

import (
	"context"
	"sync"
)

type Client struct {
	mu     sync.Mutex
	counts map[string]map[string]int64 // userID -> roomID -> count
}

func New() *Client {
	return &Client{counts: make(map[string]map[string]int64)}
}

func (c *Client) Close() error { return nil }

func (c *Client) Incr(ctx context.Context, userID, roomID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rooms, ok := c.counts[userID]
	if !ok {
		rooms = make(map[string]int64)
		c.counts[userID] = rooms
	}
	rooms[roomID]++
	return rooms[roomID], nil
}

func (c *Client) Reset(ctx context.Context, userID, roomID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if rooms, ok := c.counts[userID]; ok {
		delete(rooms, roomID)
		if len(rooms) == 0 {
			delete(c.counts, userID)
		}
	}
	return nil
}

func (c *Client) All(ctx context.Context, userID string) (map[string]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rooms := c.counts[userID]
	out := make(map[string]int64, len(rooms))
	for room, n := range rooms {
		if n > 0 {
			out[room] = n
		}
	}
	return out, nil
}
