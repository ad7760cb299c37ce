package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const unseenKeyPrefix = "unseen:"

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// Incr increments the room field of the user's unseen hash (HINCRBY is
// atomic, so concurrent deliveries never lose an update).
func (c *Client) Incr(ctx context.Context, userID, roomID string) (int64, error) {
	n, err := c.cli.HIncrBy(ctx, unseenKeyPrefix+userID, roomID, 1).Result()
	if err != nil {
		return 0, fmt.Errorf("redis unseen incr: %w", err)
	}
	return n, nil
}

// Reset deletes the room field; a missing field reads as zero.
func (c *Client) Reset(ctx context.Context, userID, roomID string) error {
	if err := c.cli.HDel(ctx, unseenKeyPrefix+userID, roomID).Err(); err != nil {
		return fmt.Errorf("redis unseen reset: %w", err)
	}
	return nil
}

// All returns the user's non-zero counters per room.
func (c *Client) All(ctx context.Context, userID string) (map[string]int64, error) {
	fields, err := c.cli.HGetAll(ctx, unseenKeyPrefix+userID).Result()
	if err != nil {
		return nil, fmt.Errorf("redis unseen all: %w", err)
	}
	counts := make(map[string]int64, len(fields))
	for room, raw := range fields {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			continue
		}
		counts[room] = n
	}
	return counts, nil
}
