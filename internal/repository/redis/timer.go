package redis

import (
	"context"
	"fmt"
	"time"
)

// phaseGracePeriod pads every timer's TTL past its nominal deadline so a
// slow scheduler tick never races a key's expiry against the deadline it
// is meant to represent.
const phaseGracePeriod = 5 * time.Second

func timerKey(gameID string) string {
	return fmt.Sprintf("game:%s:timer", gameID)
}

// SetTimer arms gameID's timer key to expire shortly after deadline. The
// key's value is unused — only its existence and expiry matter, the same
// way the teacher's phase timers work — a keyspace-notification
// subscriber reacts to the key vanishing, not its content.
func (c *Client) SetTimer(ctx context.Context, gameID string, deadline time.Time) error {
	ttl := time.Until(deadline) + phaseGracePeriod
	if ttl < time.Second {
		ttl = time.Second
	}
	return c.rdb.Set(ctx, timerKey(gameID), "1", ttl).Err()
}

// ClearTimer disarms gameID's timer, e.g. when a move arrives before the
// deadline or the game ends.
func (c *Client) ClearTimer(ctx context.Context, gameID string) error {
	return c.rdb.Del(ctx, timerKey(gameID)).Err()
}
