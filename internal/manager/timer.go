package manager

import (
	"context"
	"sync"
	"time"

	redisrepo "github.com/jarlboard/server/internal/repository/redis"

	goredis "github.com/redis/go-redis/v9"
)

// pollInterval is the poll-loop fallback's period. The teacher's
// TimerListener polls Postgres for expired phases every 10 seconds as a
// backstop against a missed keyspace notification; since every live game
// here is already resident in the manager's own map, the equivalent
// backstop can scan that map directly instead of re-querying storage.
const pollInterval = 1 * time.Second

// timerScheduler arms a deadline per game and fires skip/starvation-
// timeout logic when it passes. It mirrors the teacher's TimerListener
// dual trigger: an optional Redis keyspace-notification subscriber for
// low-latency firing, plus a polling fallback that never depends on
// Redis being reachable or configured at all.
type timerScheduler struct {
	manager *Manager
	redis   *redisrepo.Client

	stopCh chan struct{}
	wg     sync.WaitGroup
}

func newTimerScheduler(m *Manager) *timerScheduler {
	t := &timerScheduler{manager: m, stopCh: make(chan struct{})}
	t.wg.Add(1)
	go t.pollLoop()
	return t
}

// attachRedis enables the low-latency keyspace-notification path. Safe to
// call once at startup; a nil or never-called redis client leaves the
// scheduler correct, only slower (bounded by pollInterval).
func (t *timerScheduler) attachRedis(client *redisrepo.Client) {
	if client == nil {
		return
	}
	t.redis = client
	t.wg.Add(1)
	go t.listenKeyspace(client.Underlying())
}

func (t *timerScheduler) stop() {
	close(t.stopCh)
	t.wg.Wait()
}

// rearm reflects m's current timer deadlines (if any) into Redis so the
// keyspace listener can wake promptly. It is always safe to skip when no
// Redis client is attached; the poll loop alone still guarantees firing.
func (t *timerScheduler) rearm(gameID string, m timerSource) {
	if t.redis == nil {
		return
	}
	deadline := m.NextDeadline()
	ctx := context.Background()
	if deadline == nil {
		_ = t.redis.ClearTimer(ctx, gameID)
		return
	}
	_ = t.redis.SetTimer(ctx, gameID, *deadline)
}

func (t *timerScheduler) forget(gameID string) {
	if t.redis == nil {
		return
	}
	_ = t.redis.ClearTimer(context.Background(), gameID)
}

func (t *timerScheduler) pollLoop() {
	defer t.wg.Done()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.sweepExpired()
		}
	}
}

func (t *timerScheduler) sweepExpired() {
	now := time.Now()
	for _, gameID := range t.manager.ListGames() {
		mg, err := t.manager.get(gameID)
		if err != nil {
			continue
		}
		deadline := mg.machine.NextDeadline()
		if deadline == nil || now.Before(*deadline) {
			continue
		}
		t.manager.fireTimer(gameID)
	}
}

// listenKeyspace subscribes to Redis key-expiry notifications
// ("notify-keyspace-events Ex" must be enabled on the server) and fires
// the same idempotent handler the poll loop uses, so a duplicate or
// already-resolved expiry is simply a no-op.
func (t *timerScheduler) listenKeyspace(rdb *goredis.Client) {
	defer t.wg.Done()
	ctx := context.Background()
	sub := rdb.PSubscribe(ctx, "__keyevent@0__:expired")
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-t.stopCh:
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			gameID := parseTimerKey(msg.Payload)
			if gameID != "" {
				t.manager.fireTimer(gameID)
			}
		}
	}
}

func parseTimerKey(key string) string {
	const prefix = "game:"
	const suffix = ":timer"
	if len(key) <= len(prefix)+len(suffix) || key[:len(prefix)] != prefix || key[len(key)-len(suffix):] != suffix {
		return ""
	}
	return key[len(prefix) : len(key)-len(suffix)]
}
