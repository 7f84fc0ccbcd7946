// Package checkout decides whether an adult may take a checked-in child home,
// holding unmatched pickups for a supervisor and logging every decision.
package checkout

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"shepherd/internal/audit"
	"shepherd/internal/checkin/metrics"
	"shepherd/internal/checkin/models"
	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
	"shepherd/pkg/platform/sentinel"
	"shepherd/pkg/platform/tx"
	"shepherd/pkg/requestcontext"
)

var tracer = otel.Tracer("shepherd/checkin/checkout")

type AttendanceStore interface {
	FindByID(ctx context.Context, attendanceID id.AttendanceID) (*models.Attendance, error)
	Execute(ctx context.Context, attendanceID id.AttendanceID, validate func(*models.Attendance) error, mutate func(*models.Attendance)) (*models.Attendance, error)
}

type PickupStore interface {
	CreateAuthorization(ctx context.Context, p *models.AuthorizedPickup) error
	ListForChild(ctx context.Context, childID id.PersonID, activeOnly bool) ([]*models.AuthorizedPickup, error)
	LockActiveForChild(ctx context.Context, childID id.PersonID) ([]*models.AuthorizedPickup, error)
	ExecuteAuthorization(ctx context.Context, pickupID id.PickupID, validate func(*models.AuthorizedPickup) error, mutate func(*models.AuthorizedPickup)) (*models.AuthorizedPickup, error)
	AppendLog(ctx context.Context, l *models.PickupLog) error
	ListLogs(ctx context.Context, attendanceID id.AttendanceID) ([]*models.PickupLog, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// CheckoutResult is the decision for one pickup attempt. A pending outcome is
// not an error: the kiosk shows it and waits for a supervisor.
type CheckoutResult struct {
	Outcome    models.PickupOutcome `json:"outcome"`
	Attendance *models.Attendance   `json:"attendance"`
	PickupLog  *models.PickupLog    `json:"pickup_log"`
}

// GrantRequest authorizes an adult to pick up a child.
type GrantRequest struct {
	ChildID      id.PersonID
	Adult        models.PickupClaim
	Relationship string
	Level        models.PickupLevel
	CustodyNotes string
	ValidFrom    *time.Time
	ValidUntil   *time.Time
}

// Authorizer runs checkout decisions. Each decision changes the attendance,
// appends the pickup log and emits the audit event in one transaction; if the
// log cannot be written the checkout fails.
type Authorizer struct {
	attendance AttendanceStore
	pickups    PickupStore
	tx         tx.Runner
	logger     *slog.Logger
	metrics    *metrics.Metrics
	audit      AuditPublisher
}

type Option func(*Authorizer)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Authorizer) {
		a.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Authorizer) {
		a.metrics = m
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(a *Authorizer) {
		a.audit = publisher
	}
}

func New(attendance AttendanceStore, pickups PickupStore, runner tx.Runner, opts ...Option) *Authorizer {
	a := &Authorizer{
		attendance: attendance,
		pickups:    pickups,
		tx:         runner,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

type decision int

const (
	decideAuthorize decision = iota
	decideHold
	decideAlreadyPending
)

// Checkout matches claim against the child's active authorizations. A match
// whose level permits pickup now checks the child out; anything else holds
// the attendance for a supervisor. Repeating an unmatched attempt while a
// pickup is already pending returns the existing pending log. Authorizations
// are read after the attendance row is locked, so a revoke that commits first
// is always seen.
func (a *Authorizer) Checkout(ctx context.Context, attendanceID id.AttendanceID, claim models.PickupClaim) (*CheckoutResult, error) {
	if err := claim.Validate(); err != nil {
		return nil, err
	}
	ctx, span := tracer.Start(ctx, "checkout.Checkout")
	defer span.End()

	var result *CheckoutResult
	err := a.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)

		var (
			choice decision
			match  *models.AuthorizedPickup
		)
		att, err := a.attendance.Execute(txCtx, attendanceID,
			func(att *models.Attendance) error {
				pickups, err := a.pickups.LockActiveForChild(txCtx, att.PersonID)
				if err != nil {
					return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load authorized pickups")
				}
				match = matchPickup(pickups, claim, now)
				switch {
				case match != nil:
					choice = decideAuthorize
					return att.CanCheckout()
				case att.State == models.AttendancePendingCheckout:
					choice = decideAlreadyPending
					return nil
				default:
					choice = decideHold
					return att.CanHoldForSupervisor()
				}
			},
			func(att *models.Attendance) {
				switch choice {
				case decideAuthorize:
					att.ApplyCheckout(now)
				case decideHold:
					att.ApplyHoldForSupervisor(claim)
				}
			},
		)
		if err != nil {
			return err
		}

		switch choice {
		case decideAlreadyPending:
			pending, err := a.lastPendingLog(txCtx, attendanceID)
			if err != nil {
				return err
			}
			result = &CheckoutResult{Outcome: models.PickupOutcomePending, Attendance: att, PickupLog: pending}
			return nil
		case decideAuthorize:
			entry, err := models.NewAuthorizedPickupLog(id.PickupLogID(uuid.New()), att, claim, match,
				requestcontext.DeviceID(txCtx), now)
			if err != nil {
				return err
			}
			result = &CheckoutResult{Outcome: entry.Outcome, Attendance: att, PickupLog: entry}
			return a.record(txCtx, entry, audit.ActionCheckoutAuthorized, "")
		default:
			entry := models.NewPendingPickupLog(id.PickupLogID(uuid.New()), att, claim,
				requestcontext.DeviceID(txCtx), now)
			result = &CheckoutResult{Outcome: entry.Outcome, Attendance: att, PickupLog: entry}
			return a.record(txCtx, entry, audit.ActionCheckoutPending, "")
		}
	})
	if err != nil {
		span.RecordError(err)
		return nil, a.translate(ctx, err, "failed to check out")
	}
	span.SetAttributes(attribute.String("checkout.outcome", string(result.Outcome)))
	a.metrics.IncrementCheckoutOutcome(string(result.Outcome))
	if a.logger != nil {
		a.logger.InfoContext(ctx, "checkout decided",
			"attendance_id", attendanceID.String(),
			"outcome", string(result.Outcome),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return result, nil
}

// matchPickup returns the first authorization that both identifies claim and
// permits pickup at now.
func matchPickup(pickups []*models.AuthorizedPickup, claim models.PickupClaim, now time.Time) *models.AuthorizedPickup {
	for _, p := range pickups {
		if p.Matches(claim) && p.PermitsAt(now) {
			return p
		}
	}
	return nil
}

// lastPendingLog returns the log row that opened the current pending flow. A
// pending attendance without one means the log and the state have diverged.
func (a *Authorizer) lastPendingLog(ctx context.Context, attendanceID id.AttendanceID) (*models.PickupLog, error) {
	logs, err := a.pickups.ListLogs(ctx, attendanceID)
	if err != nil {
		return nil, err
	}
	for i := len(logs) - 1; i >= 0; i-- {
		if logs[i].Outcome == models.PickupOutcomePending {
			return logs[i], nil
		}
	}
	return nil, dErrors.New(dErrors.CodeInvariantViolation, "pending checkout has no pending pickup log")
}

// ApproveOverride lets a supervisor release a held pickup. The override log
// names the adult from the pending claim.
func (a *Authorizer) ApproveOverride(ctx context.Context, attendanceID id.AttendanceID, supervisorID id.PersonID) (*CheckoutResult, error) {
	return a.resolveOverride(ctx, attendanceID, supervisorID, true)
}

// Deny rejects a held pickup and returns the child to checked-in.
func (a *Authorizer) Deny(ctx context.Context, attendanceID id.AttendanceID, supervisorID id.PersonID) (*CheckoutResult, error) {
	return a.resolveOverride(ctx, attendanceID, supervisorID, false)
}

func (a *Authorizer) resolveOverride(ctx context.Context, attendanceID id.AttendanceID, supervisorID id.PersonID, approve bool) (*CheckoutResult, error) {
	if supervisorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeForbidden, "supervisor identity is required")
	}
	ctx, span := tracer.Start(ctx, "checkout.ResolveOverride")
	defer span.End()
	span.SetAttributes(attribute.Bool("checkout.approve", approve))

	var result *CheckoutResult
	err := a.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		deviceID := requestcontext.DeviceID(txCtx)
		var entry *models.PickupLog
		att, err := a.attendance.Execute(txCtx, attendanceID,
			func(att *models.Attendance) error {
				if err := att.CanResolveOverride(); err != nil {
					return err
				}
				var err error
				if approve {
					entry, err = models.NewOverridePickupLog(id.PickupLogID(uuid.New()), att, supervisorID, deviceID, now)
				} else {
					entry, err = models.NewDeniedPickupLog(id.PickupLogID(uuid.New()), att, supervisorID, deviceID, now)
				}
				return err
			},
			func(att *models.Attendance) {
				if approve {
					att.ApplyCheckout(now)
				} else {
					att.ApplyDeny()
				}
			},
		)
		if err != nil {
			return err
		}
		result = &CheckoutResult{Outcome: entry.Outcome, Attendance: att, PickupLog: entry}
		action := audit.ActionCheckoutOverridden
		if !approve {
			action = audit.ActionCheckoutDenied
		}
		return a.record(txCtx, entry, action, supervisorID.String())
	})
	if err != nil {
		span.RecordError(err)
		return nil, a.translate(ctx, err, "failed to resolve pickup override")
	}
	a.metrics.IncrementCheckoutOutcome(string(result.Outcome))
	if a.logger != nil {
		a.logger.InfoContext(ctx, "supervisor resolved pickup",
			"attendance_id", attendanceID.String(),
			"supervisor_id", supervisorID.String(),
			"outcome", string(result.Outcome),
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	return result, nil
}

// record appends the pickup log and its audit event in the caller's transaction.
func (a *Authorizer) record(ctx context.Context, entry *models.PickupLog, action audit.Action, actorID string) error {
	if err := a.pickups.AppendLog(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write pickup log")
	}
	if a.audit == nil {
		return nil
	}
	attrs := map[string]string{
		"outcome":     string(entry.Outcome),
		"pickup_name": entry.PickupName,
	}
	if !entry.AuthorizedPickupID.IsNil() {
		attrs["authorized_pickup_id"] = entry.AuthorizedPickupID.String()
	}
	if !entry.PickupPersonID.IsNil() {
		attrs["pickup_person_id"] = entry.PickupPersonID.String()
	}
	err := a.audit.Emit(ctx, audit.Event{
		Action:     action,
		SubjectID:  entry.AttendanceID.String(),
		PersonID:   entry.ChildID.String(),
		ActorID:    actorID,
		Attributes: attrs,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to write audit event")
	}
	return nil
}

// Logs returns the pickup decisions for an attendance in the order they were made.
func (a *Authorizer) Logs(ctx context.Context, attendanceID id.AttendanceID) ([]*models.PickupLog, error) {
	logs, err := a.pickups.ListLogs(ctx, attendanceID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load pickup log")
	}
	return logs, nil
}

func (a *Authorizer) translate(ctx context.Context, err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "attendance not found")
	case dErrors.HasCode(err, dErrors.CodeConflict),
		dErrors.HasCode(err, dErrors.CodeValidation),
		dErrors.HasCode(err, dErrors.CodeForbidden):
		return err
	}
	if a.logger != nil {
		a.logger.ErrorContext(ctx, msg, "error", err)
	}
	if dErrors.HasCode(err, dErrors.CodeInternal) || dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
