// Package offline holds check-in submissions a kiosk made while disconnected
// and replays them, in the order they were taken, once the server is
// reachable again.
package offline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"shepherd/internal/checkin/models"
	"shepherd/pkg/platform/sentinel"
)

// Entry is one queued family check-in. Key is the idempotency key the server
// uses to recognise a replay.
type Entry struct {
	Key           string              `json:"key"`
	Items         []models.RecordItem `json:"items"`
	EnqueuedAt    time.Time           `json:"enqueued_at"`
	Attempts      int                 `json:"attempts"`
	LastError     string              `json:"last_error,omitempty"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

// NewEntry gives items a fresh idempotency key.
func NewEntry(items []models.RecordItem, now time.Time) Entry {
	return Entry{Key: uuid.NewString(), Items: items, EnqueuedAt: now}
}

// Queue keeps entries in insertion order. Failed entries stay in place until
// removed.
type Queue interface {
	Enqueue(ctx context.Context, entry Entry) error
	Pending(ctx context.Context) ([]Entry, error)
	Remove(ctx context.Context, key string) error
	MarkFailed(ctx context.Context, key, reason string, at time.Time) error
}

type MemoryQueue struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Enqueue(_ context.Context, entry Entry) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.Key == entry.Key {
			return fmt.Errorf("offline entry %q: %w", entry.Key, sentinel.ErrAlreadyUsed)
		}
	}
	entry.Items = append([]models.RecordItem(nil), entry.Items...)
	q.entries = append(q.entries, entry)
	return nil
}

func (q *MemoryQueue) Pending(_ context.Context) ([]Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Entry, len(q.entries))
	copy(out, q.entries)
	return out, nil
}

func (q *MemoryQueue) Remove(_ context.Context, key string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.Key == key {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("offline entry %q: %w", key, sentinel.ErrNotFound)
}

func (q *MemoryQueue) MarkFailed(_ context.Context, key, reason string, at time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.entries {
		if q.entries[i].Key == key {
			q.entries[i].Attempts++
			q.entries[i].LastError = reason
			q.entries[i].LastAttemptAt = &at
			return nil
		}
	}
	return fmt.Errorf("offline entry %q: %w", key, sentinel.ErrNotFound)
}
