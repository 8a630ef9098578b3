// Package redisbuffer is an alternate, horizontally-shareable replay buffer
// for session events, backed by a Redis list. The in-memory ring buffer is
// the default; this package exists for multi-node deployments where a late
// subscriber may land on a process that never ran the session. Uses
// github.com/redis/go-redis/v9 for the cross-node list storage.
package redisbuffer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/guideforge/engine/events"
)

// Buffer stores a session's recent events in a capped Redis list so any
// node in a horizontally-scaled deployment can serve a late Subscribe call
// without falling back to the on-disk event log mirror.
type Buffer struct {
	rdb      *redis.Client
	ttl      time.Duration
	capacity int64
}

// New constructs a Buffer. capacity bounds the Redis list length (mirroring
// the in-memory ring buffer's eventBufferSize); ttl expires the key once a
// session's events are no longer worth serving from the fast path.
func New(rdb *redis.Client, capacity int64, ttl time.Duration) *Buffer {
	if capacity <= 0 {
		capacity = 1024
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Buffer{rdb: rdb, ttl: ttl, capacity: capacity}
}

func keyFor(sessionID string) string {
	return fmt.Sprintf("guideforge:session:%s:events", sessionID)
}

// Push appends ev to the session's list, trimming the oldest entries once
// capacity is exceeded, and refreshes the key's TTL.
func (b *Buffer) Push(ctx context.Context, ev events.Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("redisbuffer: marshal event: %w", err)
	}
	key := keyFor(ev.SessionID)
	pipe := b.rdb.TxPipeline()
	pipe.RPush(ctx, key, raw)
	pipe.LTrim(ctx, key, -b.capacity, -1)
	pipe.Expire(ctx, key, b.ttl)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("redisbuffer: push: %w", err)
	}
	return nil
}

// Snapshot returns every buffered event for sessionID in append order.
func (b *Buffer) Snapshot(ctx context.Context, sessionID string) ([]events.Event, error) {
	raw, err := b.rdb.LRange(ctx, keyFor(sessionID), 0, -1).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redisbuffer: snapshot: %w", err)
	}
	out := make([]events.Event, 0, len(raw))
	for _, item := range raw {
		var ev events.Event
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			return nil, fmt.Errorf("redisbuffer: decode event: %w", err)
		}
		out = append(out, ev)
	}
	return out, nil
}

// Delete removes the session's buffered events, called once a terminal
// event has been mirrored to the durable event log.
func (b *Buffer) Delete(ctx context.Context, sessionID string) error {
	if err := b.rdb.Del(ctx, keyFor(sessionID)).Err(); err != nil {
		return fmt.Errorf("redisbuffer: delete: %w", err)
	}
	return nil
}
