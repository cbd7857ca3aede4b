package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Sliding window over a sorted set. Expired entries are pruned, the
// current count is compared against the limit, and an allowed call records
// itself in the same round trip.
var sessionStartScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

if redis.call('ZCARD', key) >= limit then
    local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
    local resetAt = now + window
    if #oldest >= 2 then
        resetAt = tonumber(oldest[2]) + window
    end
    return {0, resetAt}
end

redis.call('ZADD', key, now, now .. '-' .. math.random())
redis.call('EXPIRE', key, window + 10)
return {1, now + window}
`)

func sessionStartKey(accountID int64) string {
	return fmt.Sprintf("session:starts:%d", accountID)
}

// AllowSessionStart enforces a sliding-window cap on session starts for one
// account. A backstop over the normal cooldown so corrupted scheduling state
// can never hammer an account. An allowed call counts toward the window.
func (c *Client) AllowSessionStart(ctx context.Context, accountID int64, limit int, window time.Duration) (bool, time.Time, error) {
	now := time.Now().Unix()
	result, err := sessionStartScript.Run(
		ctx,
		c.Client,
		[]string{sessionStartKey(accountID)},
		now,
		int64(window.Seconds()),
		limit,
	).Int64Slice()
	if err != nil {
		return false, time.Now().Add(window), fmt.Errorf("session start limit check: %w", err)
	}
	if len(result) != 2 {
		return false, time.Now().Add(window), fmt.Errorf("unexpected session start limit reply")
	}
	return result[0] == 1, time.Unix(result[1], 0), nil
}
