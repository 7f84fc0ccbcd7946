package submission

import (
	"context"
	"fmt"
	"sync"
	"time"

	"shepherd/internal/checkin/models"
	"shepherd/pkg/platform/sentinel"
)

// InMemory tracks idempotency key claims.
type InMemory struct {
	mu   sync.Mutex
	subs map[string]*models.Submission
}

func NewInMemory() *InMemory {
	return &InMemory{subs: make(map[string]*models.Submission)}
}

// Claim takes key for processing. claimed is false when the key is already
// completed or held by a live claim; the current record is returned either way.
// A processing claim older than ttl is taken over.
func (s *InMemory) Claim(_ context.Context, key string, now time.Time, ttl time.Duration) (*models.Submission, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.subs[key]
	if ok && !existing.IsStale(now, ttl) {
		out := *existing
		return &out, false, nil
	}
	sub := &models.Submission{Key: key, Status: models.SubmissionProcessing, ClaimedAt: now}
	s.subs[key] = sub
	out := *sub
	return &out, true, nil
}

// Complete stores result for key. The claim must still be processing.
func (s *InMemory) Complete(_ context.Context, key string, result *models.BatchResult, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[key]
	if !ok {
		return fmt.Errorf("submission %q: %w", key, sentinel.ErrNotFound)
	}
	if sub.Status != models.SubmissionProcessing {
		return fmt.Errorf("submission %q is %s: %w", key, sub.Status, sentinel.ErrInvalidState)
	}
	stored := *result
	sub.Status = models.SubmissionCompleted
	sub.Result = &stored
	sub.CompletedAt = &now
	return nil
}

// Release drops a processing claim so the key can be retried.
func (s *InMemory) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub, ok := s.subs[key]; ok && sub.Status == models.SubmissionProcessing {
		delete(s.subs, key)
	}
	return nil
}
