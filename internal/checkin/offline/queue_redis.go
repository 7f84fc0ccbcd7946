package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"shepherd/pkg/platform/sentinel"
)

const queueKeyPrefix = "checkin:offline:"

// RedisQueue stores entries for one kiosk: a list holds the key order and a
// hash holds the entries. Writes touching both run in MULTI so the two never
// disagree.
type RedisQueue struct {
	client   *redis.Client
	orderKey string
	dataKey  string
}

// NewRedisQueue scopes the queue to name, usually the kiosk's device id.
func NewRedisQueue(client *redis.Client, name string) *RedisQueue {
	return &RedisQueue{
		client:   client,
		orderKey: queueKeyPrefix + name + ":order",
		dataKey:  queueKeyPrefix + name + ":entries",
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode offline entry: %w", err)
	}
	return q.client.Watch(ctx, func(tx *redis.Tx) error {
		exists, err := tx.HExists(ctx, q.dataKey, entry.Key).Result()
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("offline entry %q: %w", entry.Key, sentinel.ErrAlreadyUsed)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, q.dataKey, entry.Key, payload)
			pipe.RPush(ctx, q.orderKey, entry.Key)
			return nil
		})
		return err
	}, q.dataKey)
}

func (q *RedisQueue) Pending(ctx context.Context) ([]Entry, error) {
	keys, err := q.client.LRange(ctx, q.orderKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read offline queue order: %w", err)
	}
	if len(keys) == 0 {
		return []Entry{}, nil
	}
	values, err := q.client.HMGet(ctx, q.dataKey, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read offline entries: %w", err)
	}
	out := make([]Entry, 0, len(values))
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return nil, fmt.Errorf("decode offline entry %q: %w", keys[i], err)
		}
		out = append(out, entry)
	}
	return out, nil
}

func (q *RedisQueue) Remove(ctx context.Context, key string) error {
	var removed *redis.IntCmd
	_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LRem(ctx, q.orderKey, 0, key)
		removed = pipe.HDel(ctx, q.dataKey, key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("remove offline entry %q: %w", key, err)
	}
	if removed.Val() == 0 {
		return fmt.Errorf("offline entry %q: %w", key, sentinel.ErrNotFound)
	}
	return nil
}

func (q *RedisQueue) MarkFailed(ctx context.Context, key, reason string, at time.Time) error {
	return q.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.HGet(ctx, q.dataKey, key).Result()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("offline entry %q: %w", key, sentinel.ErrNotFound)
		}
		if err != nil {
			return err
		}
		var entry Entry
		if err := json.Unmarshal([]byte(raw), &entry); err != nil {
			return fmt.Errorf("decode offline entry %q: %w", key, err)
		}
		entry.Attempts++
		entry.LastError = reason
		entry.LastAttemptAt = &at
		payload, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("encode offline entry: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, q.dataKey, key, payload)
			return nil
		})
		return err
	}, q.dataKey)
}
