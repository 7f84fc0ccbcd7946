package submission

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"shepherd/internal/checkin/models"
	"shepherd/pkg/platform/sentinel"
)

type InMemorySuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.now = time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC)
}

func (s *InMemorySuite) TestClaimLifecycle() {
	ttl := 2 * time.Minute

	_, claimed, err := s.store.Claim(s.ctx, "k1", s.now, ttl)
	s.Require().NoError(err)
	s.True(claimed)

	s.Run("live claim is not taken twice", func() {
		sub, claimed, err := s.store.Claim(s.ctx, "k1", s.now.Add(time.Minute), ttl)
		s.Require().NoError(err)
		s.False(claimed)
		s.Equal(models.SubmissionProcessing, sub.Status)
	})

	s.Run("stale claim is taken over", func() {
		_, claimed, err := s.store.Claim(s.ctx, "k1", s.now.Add(3*time.Minute), ttl)
		s.Require().NoError(err)
		s.True(claimed)
	})

	s.Run("completed key returns the stored result", func() {
		result := &models.BatchResult{Failed: []models.ItemFailure{{Message: "x"}}}
		s.Require().NoError(s.store.Complete(s.ctx, "k1", result, s.now))

		sub, claimed, err := s.store.Claim(s.ctx, "k1", s.now.Add(time.Hour), ttl)
		s.Require().NoError(err)
		s.False(claimed)
		s.Equal(models.SubmissionCompleted, sub.Status)
		s.Require().NotNil(sub.Result)
		s.Len(sub.Result.Failed, 1)
	})

	s.Run("completed key cannot be completed again", func() {
		err := s.store.Complete(s.ctx, "k1", &models.BatchResult{}, s.now)
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})
}

func (s *InMemorySuite) TestRelease() {
	_, _, err := s.store.Claim(s.ctx, "k2", s.now, time.Minute)
	s.Require().NoError(err)
	s.Require().NoError(s.store.Release(s.ctx, "k2"))

	_, claimed, err := s.store.Claim(s.ctx, "k2", s.now, time.Minute)
	s.Require().NoError(err)
	s.True(claimed)
}
