package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// Ping shadows the embedded command-object variant with a plain error for
// health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func sessionLockKey(accountID int64) string {
	return fmt.Sprintf("session:lock:%d", accountID)
}

func dailyLikesKey(accountID int64, localDate string) string {
	return fmt.Sprintf("likes:daily:%d:%s", accountID, localDate)
}

// EventChannel is the pubsub channel carrying lifecycle events. A single
// channel is shared across workers so any ops listener sees the full stream.
func EventChannel() string {
	return "events:lifecycle"
}

// AcquireSessionLock takes the per-account session lock. Returns false when
// another worker already holds it. The TTL bounds lock lifetime if the
// holder crashes without releasing.
func (c *Client) AcquireSessionLock(ctx context.Context, accountID int64, owner string, ttl time.Duration) (bool, error) {
	ok, err := c.SetNX(ctx, sessionLockKey(accountID), owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire session lock: %w", err)
	}
	return ok, nil
}

// ReleaseSessionLock releases the lock only if owner still holds it, so a
// worker that outlived its TTL cannot release a lock taken over by another.
func (c *Client) ReleaseSessionLock(ctx context.Context, accountID int64, owner string) error {
	const script = `
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		end
		return 0
	`
	if err := c.Eval(ctx, script, []string{sessionLockKey(accountID)}, owner).Err(); err != nil {
		return fmt.Errorf("release session lock: %w", err)
	}
	return nil
}

// IncrDailyLikes adds n to the account's like counter for the given local
// calendar date and returns the new total.
func (c *Client) IncrDailyLikes(ctx context.Context, accountID int64, localDate string, n int64, ttl time.Duration) (int64, error) {
	key := dailyLikesKey(accountID, localDate)
	pipe := c.TxPipeline()
	incr := pipe.IncrBy(ctx, key, n)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("increment daily likes: %w", err)
	}
	return incr.Val(), nil
}

// DailyLikes returns the account's like count for the given local calendar
// date. A missing key reads as zero.
func (c *Client) DailyLikes(ctx context.Context, accountID int64, localDate string) (int64, error) {
	n, err := c.Get(ctx, dailyLikesKey(accountID, localDate)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read daily likes: %w", err)
	}
	return n, nil
}
