package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"shepherd/internal/device"
	id "shepherd/pkg/domain"
	"shepherd/pkg/platform/sentinel"
)

const deviceKeyPrefix = "checkin:device:"

// RedisCache holds device records for ttl so token checks skip the database.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// cachedDevice keeps the token hash, which Device never serializes.
type cachedDevice struct {
	device.Device
	TokenHash string `json:"token_hash"`
}

func (c *RedisCache) Get(ctx context.Context, deviceID id.DeviceID) (*device.Device, error) {
	raw, err := c.client.Get(ctx, deviceKeyPrefix+deviceID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("cached device %s: %w", deviceID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read cached device: %w", err)
	}
	var cached cachedDevice
	if err := json.Unmarshal(raw, &cached); err != nil {
		return nil, fmt.Errorf("decode cached device: %w", err)
	}
	d := cached.Device
	d.TokenHash = cached.TokenHash
	return &d, nil
}

func (c *RedisCache) Set(ctx context.Context, d *device.Device) error {
	payload, err := json.Marshal(cachedDevice{Device: *d, TokenHash: d.TokenHash})
	if err != nil {
		return fmt.Errorf("encode device: %w", err)
	}
	return c.client.Set(ctx, deviceKeyPrefix+d.ID.String(), payload, c.ttl).Err()
}

func (c *RedisCache) Delete(ctx context.Context, deviceID id.DeviceID) error {
	return c.client.Del(ctx, deviceKeyPrefix+deviceID.String()).Err()
}
