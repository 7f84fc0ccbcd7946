package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// RelaySource is the read side of an outbox.
type RelaySource interface {
	Unpublished(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkPublished(ctx context.Context, seqs []int64, at time.Time) error
}

// Producer is the subset of *kgo.Client the relay uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// OutboxRelay ships outbox entries to Kafka in order. Delivery is at least
// once: an entry is marked published only after the broker acknowledged it.
type OutboxRelay struct {
	source   RelaySource
	producer Producer
	topic    string
	batch    int
	logger   *slog.Logger
	now      func() time.Time
}

func NewOutboxRelay(source RelaySource, producer Producer, topic string, batch int, logger *slog.Logger) *OutboxRelay {
	if batch <= 0 {
		batch = 100
	}
	return &OutboxRelay{
		source:   source,
		producer: producer,
		topic:    topic,
		batch:    batch,
		logger:   logger,
		now:      time.Now,
	}
}

// Run relays on every tick until ctx is cancelled. Tick failures are logged
// and retried on the next tick.
func (r *OutboxRelay) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := r.RelayOnce(ctx); err != nil && r.logger != nil {
				r.logger.WarnContext(ctx, "audit relay tick failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RelayOnce publishes one batch and returns how many entries were shipped.
// Entries the broker acknowledged are marked published even when others fail.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	entries, err := r.source.Unpublished(ctx, r.batch)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	records := make([]*kgo.Record, 0, len(entries))
	seqOf := make(map[*kgo.Record]int64, len(entries))
	for _, e := range entries {
		value, err := json.Marshal(e.Event)
		if err != nil {
			return 0, fmt.Errorf("marshal outbox entry %d: %w", e.Seq, err)
		}
		rec := &kgo.Record{
			Topic: r.topic,
			Key:   []byte(e.Event.SubjectID),
			Value: value,
			Headers: []kgo.RecordHeader{
				{Key: "action", Value: []byte(e.Event.Action)},
			},
		}
		records = append(records, rec)
		seqOf[rec] = e.Seq
	}

	// Results arrive in completion order, not record order.
	results := r.producer.ProduceSync(ctx, records...)
	acked := make([]int64, 0, len(entries))
	var produceErr error
	for _, res := range results {
		if res.Err != nil {
			if produceErr == nil {
				produceErr = fmt.Errorf("produce outbox entry %d: %w", seqOf[res.Record], res.Err)
			}
			continue
		}
		acked = append(acked, seqOf[res.Record])
	}
	if err := r.source.MarkPublished(ctx, acked, r.now()); err != nil {
		return 0, err
	}
	return len(acked), produceErr
}
