// Package occurrence resolves (group, location, schedule, date) tuples to
// their single meeting instance, creating it on first use.
package occurrence

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"shepherd/internal/audit"
	"shepherd/internal/checkin/metrics"
	"shepherd/internal/checkin/models"
	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
	"shepherd/pkg/platform/sentinel"
	"shepherd/pkg/platform/tx"
	"shepherd/pkg/requestcontext"
)

var tracer = otel.Tracer("shepherd/checkin/occurrence")

const (
	defaultMaxAttempts = 2
	// sharedResolveTimeout bounds a resolve that no longer belongs to any one caller.
	sharedResolveTimeout = 10 * time.Second
)

type Store interface {
	FindByKey(ctx context.Context, key models.OccurrenceKey) (*models.Occurrence, error)
	FindByID(ctx context.Context, occurrenceID id.OccurrenceID) (*models.Occurrence, error)
	Create(ctx context.Context, occ *models.Occurrence) error
	Execute(ctx context.Context, occurrenceID id.OccurrenceID, validate func(*models.Occurrence) error, mutate func(*models.Occurrence)) (*models.Occurrence, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Resolver implements find-or-create under the store's uniqueness
// constraint. Concurrent identical resolves in one process share a single
// store round trip; across processes the constraint decides the winner.
type Resolver struct {
	store       Store
	tx          tx.Runner
	maxAttempts int
	flight      singleflight.Group
	logger      *slog.Logger
	metrics     *metrics.Metrics
	audit       AuditPublisher
}

type Option func(*Resolver)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(r *Resolver) {
		r.audit = publisher
	}
}

// WithMaxAttempts overrides the number of find-or-create rounds.
func WithMaxAttempts(n int) Option {
	return func(r *Resolver) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

func New(store Store, runner tx.Runner, opts ...Option) *Resolver {
	r := &Resolver{store: store, tx: runner, maxAttempts: defaultMaxAttempts}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns the occurrence for key, creating it if absent.
func (r *Resolver) Resolve(ctx context.Context, key models.OccurrenceKey) (*models.Occurrence, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "occurrence.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("occurrence.key", key.String()))

	// The shared round trip runs detached so one kiosk dropping its request
	// does not fail the others waiting on the same tuple.
	ch := r.flight.DoChan(key.String(), func() (any, error) {
		sharedCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedResolveTimeout)
		defer cancel()
		return r.resolve(sharedCtx, key)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		span.RecordError(ctx.Err())
		return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "occurrence resolve abandoned")
	case res = <-ch:
	}
	span.SetAttributes(attribute.Bool("occurrence.shared", res.Shared))
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, "resolve failed")
		return nil, res.Err
	}
	occ := *res.Val.(*models.Occurrence)
	return &occ, nil
}

func (r *Resolver) resolve(ctx context.Context, key models.OccurrenceKey) (*models.Occurrence, error) {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		occ, err := r.findOrCreate(ctx, key)
		if err == nil {
			return occ, nil
		}
		if dErrors.HasCode(err, dErrors.CodeValidation) {
			return nil, err
		}
		lastErr = err
		if r.logger != nil {
			r.logger.WarnContext(ctx, "occurrence resolve attempt failed",
				"key", key.String(),
				"attempt", attempt,
				"error", err,
			)
		}
	}
	r.metrics.IncrementOccurrenceResolve("conflict")
	return nil, dErrors.Wrap(lastErr, dErrors.CodeOccurrenceConflict, "occurrence could not be resolved")
}

// findOrCreate is one round: look up, insert, and on a lost insert race
// read the winner's row.
func (r *Resolver) findOrCreate(ctx context.Context, key models.OccurrenceKey) (*models.Occurrence, error) {
	occ, err := r.store.FindByKey(ctx, key)
	if err == nil {
		r.metrics.IncrementOccurrenceResolve("found")
		return occ, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, err
	}

	occ, err = models.NewOccurrence(id.OccurrenceID(uuid.New()), key, requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}
	err = r.store.Create(ctx, occ)
	if err == nil {
		r.metrics.IncrementOccurrenceResolve("created")
		return occ, nil
	}
	if !errors.Is(err, sentinel.ErrAlreadyUsed) {
		return nil, err
	}

	occ, err = r.store.FindByKey(ctx, key)
	if err != nil {
		return nil, err
	}
	r.metrics.IncrementOccurrenceResolve("raced")
	return occ, nil
}

// Find returns the existing occurrence for key without creating one.
func (r *Resolver) Find(ctx context.Context, key models.OccurrenceKey) (*models.Occurrence, error) {
	occ, err := r.store.FindByKey(ctx, key)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "occurrence not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load occurrence")
	}
	return occ, nil
}

// Get returns the occurrence by id.
func (r *Resolver) Get(ctx context.Context, occurrenceID id.OccurrenceID) (*models.Occurrence, error) {
	occ, err := r.store.FindByID(ctx, occurrenceID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "occurrence not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load occurrence")
	}
	return occ, nil
}

// Cancel flags the occurrence cancelled. Existing attendances are kept; new
// check-ins are refused.
func (r *Resolver) Cancel(ctx context.Context, occurrenceID id.OccurrenceID) (*models.Occurrence, error) {
	ctx, span := tracer.Start(ctx, "occurrence.Cancel")
	defer span.End()

	var cancelled *models.Occurrence
	err := r.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		occ, err := r.store.Execute(txCtx, occurrenceID,
			func(o *models.Occurrence) error { return o.CanCancel() },
			func(o *models.Occurrence) { o.ApplyCancel(now) },
		)
		if err != nil {
			return err
		}
		cancelled = occ
		if r.audit == nil {
			return nil
		}
		return r.audit.Emit(txCtx, audit.Event{
			Action:    audit.ActionOccurrenceCancelled,
			SubjectID: occ.ID.String(),
			ActorID:   actorID(txCtx),
		})
	})
	switch {
	case err == nil:
		return cancelled, nil
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.New(dErrors.CodeNotFound, "occurrence not found")
	case dErrors.HasCode(err, dErrors.CodeInvariantViolation):
		return nil, dErrors.New(dErrors.CodeConflict, "occurrence is already cancelled")
	default:
		span.RecordError(err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to cancel occurrence")
	}
}

func actorID(ctx context.Context) string {
	if supervisor := requestcontext.SupervisorID(ctx); !supervisor.IsNil() {
		return supervisor.String()
	}
	return ""
}
