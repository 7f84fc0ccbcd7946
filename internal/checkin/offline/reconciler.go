package offline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"shepherd/internal/checkin/metrics"
	"shepherd/internal/checkin/models"
	dErrors "shepherd/pkg/domain-errors"
	"shepherd/pkg/platform/circuit"
	"shepherd/pkg/requestcontext"
)

// Report summarises one replay pass.
type Report struct {
	Submitted        int           `json:"submitted"`
	AlreadySatisfied int           `json:"already_satisfied"`
	Failed           []FailedEntry `json:"failed"`
}

type FailedEntry struct {
	Key    string `json:"key"`
	Reason string `json:"reason"`
}

// Reconciler drains a Queue through a Submitter. A failed entry is marked
// with its reason and left queued; it never blocks the entries after it.
type Reconciler struct {
	queue     Queue
	submitter Submitter
	breaker   *circuit.Breaker
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

const reasonServerUnreachable = "skipped: server unreachable"

type Option func(*Reconciler)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Reconciler) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) {
		r.metrics = m
	}
}

// WithBreaker stops a pass from submitting once the server looks down. An
// open breaker lets the first entry of the next pass through as a probe.
func WithBreaker(b *circuit.Breaker) Option {
	return func(r *Reconciler) {
		r.breaker = b
	}
}

func NewReconciler(queue Queue, submitter Submitter, opts ...Option) *Reconciler {
	r := &Reconciler{queue: queue, submitter: submitter}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Replay submits every queued entry in insertion order. Entries the server
// accepted, freshly or as a replay of an earlier success, are removed.
func (r *Reconciler) Replay(ctx context.Context) (*Report, error) {
	entries, err := r.queue.Pending(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to read offline queue")
	}
	report := &Report{Failed: []FailedEntry{}}
	skip := false
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if skip {
			report.Failed = append(report.Failed, FailedEntry{Key: entry.Key, Reason: reasonServerUnreachable})
			continue
		}
		result, err := r.submitter.Submit(ctx, entry)
		if err != nil {
			r.fail(ctx, report, entry, err.Error())
			skip = r.recordUnreachable(ctx, err)
			continue
		}
		r.recordReachable(ctx)
		if len(result.Failed) > 0 {
			r.fail(ctx, report, entry, describeFailures(result.Failed))
			continue
		}
		if err := r.queue.Remove(ctx, entry.Key); err != nil && r.logger != nil {
			r.logger.WarnContext(ctx, "failed to remove replayed entry", "idempotency_key", entry.Key, "error", err)
		}
		if result.Replayed {
			report.AlreadySatisfied++
			r.metrics.IncrementReplayItem("already_satisfied")
		} else {
			report.Submitted++
			r.metrics.IncrementReplayItem("submitted")
		}
	}
	if r.logger != nil {
		r.logger.InfoContext(ctx, "offline replay finished",
			"submitted", report.Submitted,
			"already_satisfied", report.AlreadySatisfied,
			"failed", len(report.Failed),
		)
	}
	return report, nil
}

// recordUnreachable reports whether the rest of the pass should be skipped.
func (r *Reconciler) recordUnreachable(ctx context.Context, err error) bool {
	if r.breaker == nil || !dErrors.HasCode(err, dErrors.CodeUnavailable) {
		return false
	}
	open, change := r.breaker.RecordFailure()
	if change.Opened && r.logger != nil {
		r.logger.WarnContext(ctx, "check-in server unreachable; pausing replay", "breaker", r.breaker.Name())
	}
	return open
}

func (r *Reconciler) recordReachable(ctx context.Context) {
	if r.breaker == nil {
		return
	}
	if _, change := r.breaker.RecordSuccess(); change.Closed && r.logger != nil {
		r.logger.InfoContext(ctx, "check-in server reachable again; resuming replay", "breaker", r.breaker.Name())
	}
}

func (r *Reconciler) fail(ctx context.Context, report *Report, entry Entry, reason string) {
	report.Failed = append(report.Failed, FailedEntry{Key: entry.Key, Reason: reason})
	r.metrics.IncrementReplayItem("failed")
	if err := r.queue.MarkFailed(ctx, entry.Key, reason, requestcontext.Now(ctx)); err != nil && r.logger != nil {
		r.logger.WarnContext(ctx, "failed to mark offline entry", "idempotency_key", entry.Key, "error", err)
	}
	if r.logger != nil {
		r.logger.WarnContext(ctx, "offline entry left queued",
			"idempotency_key", entry.Key,
			"reason", reason,
		)
	}
}

func describeFailures(failed []models.ItemFailure) string {
	parts := make([]string, 0, len(failed))
	for _, f := range failed {
		parts = append(parts, fmt.Sprintf("%s: %s", f.Item.PersonID, f.ErrorKind))
	}
	return strings.Join(parts, "; ")
}
