package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"shepherd/pkg/platform/sentinel"
	"shepherd/pkg/platform/tx"
)

// InMemoryOutbox keeps events in append order.
type InMemoryOutbox struct {
	mu      sync.Mutex
	seq     int64
	entries []*OutboxEntry
	failErr error
}

func NewInMemoryOutbox() *InMemoryOutbox {
	return &InMemoryOutbox{}
}

// FailWrites makes Append return err until called again with nil.
func (o *InMemoryOutbox) FailWrites(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failErr = err
}

func (o *InMemoryOutbox) Append(ctx context.Context, event Event) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.failErr != nil {
		return o.failErr
	}
	for _, e := range o.entries {
		if e.Event.ID == event.ID {
			return fmt.Errorf("audit event %s: %w", event.ID, sentinel.ErrAlreadyUsed)
		}
	}
	o.seq++
	seq := o.seq
	o.entries = append(o.entries, &OutboxEntry{Seq: seq, Event: event})
	tx.OnRollback(ctx, func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		for i, e := range o.entries {
			if e.Seq == seq {
				o.entries = append(o.entries[:i], o.entries[i+1:]...)
				return
			}
		}
	})
	return nil
}

// Unpublished returns up to limit entries not yet relayed, oldest first.
func (o *InMemoryOutbox) Unpublished(_ context.Context, limit int) ([]OutboxEntry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var out []OutboxEntry
	for _, e := range o.entries {
		if e.PublishedAt != nil {
			continue
		}
		out = append(out, *e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (o *InMemoryOutbox) MarkPublished(_ context.Context, seqs []int64, at time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	marked := make(map[int64]bool, len(seqs))
	for _, s := range seqs {
		marked[s] = true
	}
	for _, e := range o.entries {
		if marked[e.Seq] && e.PublishedAt == nil {
			published := at
			e.PublishedAt = &published
		}
	}
	return nil
}

// Events returns every event in append order.
func (o *InMemoryOutbox) Events() []Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Event, 0, len(o.entries))
	for _, e := range o.entries {
		out = append(out, e.Event)
	}
	return out
}
