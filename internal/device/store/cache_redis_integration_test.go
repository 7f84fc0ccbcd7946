//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"shepherd/pkg/platform/sentinel"
	"shepherd/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.cache = NewRedisCache(s.redis.Client, time.Minute)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestKeepsTokenHash() {
	ctx := context.Background()
	d := newDevice()
	d.TokenExpiresAt = d.TokenExpiresAt.UTC().Truncate(time.Second)
	d.CreatedAt = d.CreatedAt.UTC().Truncate(time.Second)

	s.Require().NoError(s.cache.Set(ctx, d))
	got, err := s.cache.Get(ctx, d.ID)
	s.Require().NoError(err)
	s.Equal("hash", got.TokenHash)
	s.Equal(d.LocationIDs, got.LocationIDs)

	ttl, err := s.redis.Client.TTL(ctx, deviceKeyPrefix+d.ID.String()).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
}

func (s *RedisCacheSuite) TestMissAndDelete() {
	ctx := context.Background()
	d := newDevice()
	_, err := s.cache.Get(ctx, d.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.cache.Set(ctx, d))
	s.Require().NoError(s.cache.Delete(ctx, d.ID))
	_, err = s.cache.Get(ctx, d.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
