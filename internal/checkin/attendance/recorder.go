// Package attendance turns check-in requests into duplicate-free attendance
// records, answers replays of earlier submissions, and lists what a family
// can check into today.
package attendance

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"shepherd/internal/audit"
	"shepherd/internal/checkin/metrics"
	"shepherd/internal/checkin/models"
	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
	"shepherd/pkg/platform/sentinel"
	"shepherd/pkg/platform/tx"
	"shepherd/pkg/requestcontext"
)

var tracer = otel.Tracer("shepherd/checkin/attendance")

const (
	MaxBatchItems        = 50
	maxIdempotencyKeyLen = 128
	defaultConcurrency   = 4
	defaultSubmissionTTL = 2 * time.Minute
	defaultMaxCaptureAge = 7 * 24 * time.Hour
	captureClockSkew     = 5 * time.Minute
	outcomeRecorded      = "recorded"
)

type OccurrenceResolver interface {
	Resolve(ctx context.Context, key models.OccurrenceKey) (*models.Occurrence, error)
}

type CodeAllocator interface {
	Allocate(ctx context.Context, issueDate models.Date) (*models.AttendanceCode, error)
}

type Store interface {
	Create(ctx context.Context, att *models.Attendance) error
	FindByID(ctx context.Context, attendanceID id.AttendanceID) (*models.Attendance, error)
	FindLive(ctx context.Context, occurrenceID id.OccurrenceID, personID id.PersonID) (*models.Attendance, error)
	Execute(ctx context.Context, attendanceID id.AttendanceID, validate func(*models.Attendance) error, mutate func(*models.Attendance)) (*models.Attendance, error)
}

type SubmissionStore interface {
	Claim(ctx context.Context, key string, now time.Time, ttl time.Duration) (*models.Submission, bool, error)
	Complete(ctx context.Context, key string, result *models.BatchResult, now time.Time) error
	Release(ctx context.Context, key string) error
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// RecordRequest is one family check-in. IdempotencyKey is optional; when set,
// a repeat of a completed request returns the stored result. CapturedAt is
// when the kiosk took the check-in; zero means now. Offline replays set it so
// the check-in lands on the day it happened.
type RecordRequest struct {
	IdempotencyKey string
	Items          []models.RecordItem
	CapturedAt     time.Time
}

func (r RecordRequest) Validate() error {
	if len(r.Items) == 0 {
		return dErrors.New(dErrors.CodeValidation, "at least one item is required")
	}
	if len(r.Items) > MaxBatchItems {
		return dErrors.New(dErrors.CodeValidation, "too many items in one check-in")
	}
	if len(r.IdempotencyKey) > maxIdempotencyKeyLen {
		return dErrors.New(dErrors.CodeValidation, "idempotency key is too long")
	}
	return nil
}

// Recorder checks each item in its own transaction: duplicate check, code
// allocation, insert, audit event. A failed item never undoes a sibling.
type Recorder struct {
	occurrences OccurrenceResolver
	codes       CodeAllocator
	store       Store
	submissions SubmissionStore
	tx          tx.Runner
	location    *time.Location
	claimTTL    time.Duration
	maxCapture  time.Duration
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Metrics
	audit       AuditPublisher
}

type Option func(*Recorder)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(r *Recorder) {
		r.audit = publisher
	}
}

// WithMaxCaptureAge bounds how far back a replayed check-in may be dated.
func WithMaxCaptureAge(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.maxCapture = d
		}
	}
}

// WithLocation sets the campus time zone that decides the check-in date.
func WithLocation(loc *time.Location) Option {
	return func(r *Recorder) {
		if loc != nil {
			r.location = loc
		}
	}
}

// WithSubmissionTTL sets how long a processing claim blocks a retry.
func WithSubmissionTTL(ttl time.Duration) Option {
	return func(r *Recorder) {
		if ttl > 0 {
			r.claimTTL = ttl
		}
	}
}

// WithConcurrency bounds how many items of one batch run at once.
func WithConcurrency(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

func NewRecorder(occurrences OccurrenceResolver, codes CodeAllocator, store Store, submissions SubmissionStore, runner tx.Runner, opts ...Option) *Recorder {
	r := &Recorder{
		occurrences: occurrences,
		codes:       codes,
		store:       store,
		submissions: submissions,
		tx:          runner,
		location:    time.UTC,
		claimTTL:    defaultSubmissionTTL,
		maxCapture:  defaultMaxCaptureAge,
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record checks every item in. The returned result lists each item as
// succeeded or failed; only request-level problems are returned as errors.
func (r *Recorder) Record(ctx context.Context, req RecordRequest) (*models.BatchResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	at, err := r.checkinTime(ctx, req.CapturedAt)
	if err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "attendance.Record")
	defer span.End()
	span.SetAttributes(attribute.Int("checkin.items", len(req.Items)))

	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		return r.recordBatch(ctx, req.Items, at), nil
	}

	now := requestcontext.Now(ctx)
	sub, claimed, err := r.submissions.Claim(ctx, key, now, r.claimTTL)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to claim submission")
	}
	if !claimed {
		return r.replay(ctx, sub)
	}

	result := r.recordBatch(ctx, req.Items, at)
	if retryable(result) {
		// Nothing was written; let the client retry under the same key.
		if err := r.submissions.Release(ctx, key); err != nil && r.logger != nil {
			r.logger.WarnContext(ctx, "failed to release submission claim", "idempotency_key", key, "error", err)
		}
		return result, nil
	}
	if err := r.submissions.Complete(ctx, key, result, requestcontext.Now(ctx)); err != nil {
		// The check-ins are committed; a later replay may re-run and see duplicates.
		if r.logger != nil {
			r.logger.ErrorContext(ctx, "failed to store submission result",
				"idempotency_key", key,
				"error", err,
			)
		}
	}
	return result, nil
}

// checkinTime is the instant a check-in is dated by. A captured time may not
// lie in the future beyond clock skew nor further back than maxCapture.
func (r *Recorder) checkinTime(ctx context.Context, captured time.Time) (time.Time, error) {
	now := requestcontext.Now(ctx)
	if captured.IsZero() {
		return now, nil
	}
	if captured.After(now.Add(captureClockSkew)) {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "captured_at is in the future")
	}
	if captured.Before(now.Add(-r.maxCapture)) {
		return time.Time{}, dErrors.New(dErrors.CodeValidation, "captured_at is too old to record")
	}
	if captured.After(now) {
		return now, nil
	}
	return captured, nil
}

func (r *Recorder) replay(ctx context.Context, sub *models.Submission) (*models.BatchResult, error) {
	if sub.Status != models.SubmissionCompleted || sub.Result == nil {
		return nil, dErrors.New(dErrors.CodeSubmissionInProgress, "a submission with this idempotency key is still being processed")
	}
	r.metrics.IncrementReplay()
	if r.logger != nil {
		r.logger.InfoContext(ctx, "idempotent replay served from stored result",
			"idempotency_key", sub.Key,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	result := *sub.Result
	result.Replayed = true
	return &result, nil
}

// retryable reports a batch where nothing succeeded and every failure came
// from infrastructure rather than a business rule.
func retryable(result *models.BatchResult) bool {
	if len(result.Succeeded) > 0 || len(result.Failed) == 0 {
		return false
	}
	for _, f := range result.Failed {
		switch f.ErrorKind {
		case dErrors.CodeInternal, dErrors.CodeUnavailable, dErrors.CodeTimeout,
			dErrors.CodeOccurrenceConflict, dErrors.CodeCodeSpaceExhausted:
		default:
			return false
		}
	}
	return true
}

type itemOutcome struct {
	ok      *models.CheckedIn
	failure *models.ItemFailure
}

func (r *Recorder) recordBatch(ctx context.Context, items []models.RecordItem, at time.Time) *models.BatchResult {
	date := models.DateOf(at, r.location)
	outcomes := make([]itemOutcome, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, item := range items {
		g.Go(func() error {
			checked, err := r.recordItem(gctx, item, date, at)
			if err != nil {
				outcomes[i].failure = r.failure(gctx, item, err)
				return nil
			}
			r.metrics.IncrementCheckinItem(outcomeRecorded)
			outcomes[i].ok = checked
			return nil
		})
	}
	_ = g.Wait()

	result := &models.BatchResult{Succeeded: []models.CheckedIn{}, Failed: []models.ItemFailure{}}
	for _, o := range outcomes {
		if o.ok != nil {
			result.Succeeded = append(result.Succeeded, *o.ok)
		} else if o.failure != nil {
			result.Failed = append(result.Failed, *o.failure)
		}
	}
	return result
}

func (r *Recorder) failure(ctx context.Context, item models.RecordItem, err error) *models.ItemFailure {
	kind := dErrors.CodeOf(err)
	r.metrics.IncrementCheckinItem(string(kind))
	message := dErrors.MessageOf(err)
	switch kind {
	case dErrors.CodeInternal, dErrors.CodeUnavailable, dErrors.CodeTimeout, dErrors.CodeOccurrenceConflict:
		if r.logger != nil {
			r.logger.ErrorContext(ctx, "check-in item failed",
				"person_id", item.PersonID.String(),
				"group_id", item.GroupID.String(),
				"error", err,
			)
		}
	}
	return &models.ItemFailure{Item: item, ErrorKind: kind, Message: message}
}

// recordItem performs NotCheckedIn -> CheckedIn for one person. A duplicate
// is detected before any code is drawn; a duplicate that slips past the
// pre-check loses the insert race and rolls its code back with it.
func (r *Recorder) recordItem(ctx context.Context, item models.RecordItem, date models.Date, at time.Time) (*models.CheckedIn, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}
	occ, err := r.occurrences.Resolve(ctx, models.OccurrenceKey{
		GroupID:    item.GroupID,
		LocationID: item.LocationID,
		ScheduleID: item.ScheduleID,
		Date:       date,
	})
	if err != nil {
		return nil, err
	}
	if !occ.AcceptsCheckins() {
		return nil, dErrors.New(dErrors.CodeOccurrenceClosed, "occurrence is cancelled")
	}

	var att *models.Attendance
	err = r.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := r.store.FindLive(txCtx, occ.ID, item.PersonID); err == nil {
			return dErrors.New(dErrors.CodeDuplicateCheckin, "person is already checked in to this occurrence")
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing attendance")
		}

		code, err := r.codes.Allocate(txCtx, date)
		if err != nil {
			return err
		}

		att, err = models.NewAttendance(id.AttendanceID(uuid.New()), occ, item.PersonID,
			requestcontext.DeviceID(txCtx), requestcontext.CampusID(txCtx), code, at)
		if err != nil {
			return err
		}
		if err := r.store.Create(txCtx, att); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeDuplicateCheckin, "person is already checked in to this occurrence")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save attendance")
		}
		return r.emit(txCtx, audit.ActionAttendanceRecorded, att, map[string]string{
			"occurrence_id": occ.ID.String(),
			"security_code": att.Code,
		})
	})
	if err != nil {
		return nil, err
	}
	return &models.CheckedIn{
		Item:         item,
		AttendanceID: att.ID,
		OccurrenceID: occ.ID,
		SecurityCode: att.Code,
		StartAt:      att.StartAt,
	}, nil
}

func (r *Recorder) emit(ctx context.Context, action audit.Action, att *models.Attendance, attrs map[string]string) error {
	if r.audit == nil {
		return nil
	}
	event := audit.Event{
		Action:     action,
		SubjectID:  att.ID.String(),
		PersonID:   att.PersonID.String(),
		Attributes: attrs,
	}
	if supervisor := requestcontext.SupervisorID(ctx); !supervisor.IsNil() {
		event.ActorID = supervisor.String()
	}
	if err := r.audit.Emit(ctx, event); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write audit event")
	}
	return nil
}

// Get returns one attendance.
func (r *Recorder) Get(ctx context.Context, attendanceID id.AttendanceID) (*models.Attendance, error) {
	att, err := r.store.FindByID(ctx, attendanceID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "attendance not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attendance")
	}
	return att, nil
}

// Reverse undoes a check-in made in error and frees the (occurrence, person)
// slot. Checked-out attendances are history and cannot be reversed.
func (r *Recorder) Reverse(ctx context.Context, attendanceID id.AttendanceID) (*models.Attendance, error) {
	ctx, span := tracer.Start(ctx, "attendance.Reverse")
	defer span.End()

	var reversed *models.Attendance
	err := r.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		att, err := r.store.Execute(txCtx, attendanceID,
			func(a *models.Attendance) error { return a.CanReverse() },
			func(a *models.Attendance) { a.ApplyReverse(now) },
		)
		if err != nil {
			return err
		}
		reversed = att
		return r.emit(txCtx, audit.ActionAttendanceReversed, att, nil)
	})
	switch {
	case err == nil:
		return reversed, nil
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.New(dErrors.CodeNotFound, "attendance not found")
	case dErrors.HasCode(err, dErrors.CodeConflict):
		return nil, err
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reverse attendance")
	}
}
