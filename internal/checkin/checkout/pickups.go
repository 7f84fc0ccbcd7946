package checkout

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"shepherd/internal/audit"
	"shepherd/internal/checkin/models"
	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
	"shepherd/pkg/platform/sentinel"
	"shepherd/pkg/requestcontext"
)

// Grant records a new authorized pickup for a child.
func (a *Authorizer) Grant(ctx context.Context, req GrantRequest) (*models.AuthorizedPickup, error) {
	now := requestcontext.Now(ctx)
	pickup, err := models.NewAuthorizedPickup(id.PickupID(uuid.New()), req.ChildID, req.Adult,
		req.Relationship, req.Level, req.CustodyNotes, req.ValidFrom, req.ValidUntil, now)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, dErrors.MessageOf(err))
		}
		return nil, err
	}
	err = a.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := a.pickups.CreateAuthorization(txCtx, pickup); err != nil {
			return err
		}
		return a.emitPickup(txCtx, audit.ActionPickupGranted, pickup)
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to grant pickup")
	}
	return pickup, nil
}

// Revoke deactivates an authorization. The row is kept for custody history.
func (a *Authorizer) Revoke(ctx context.Context, pickupID id.PickupID) (*models.AuthorizedPickup, error) {
	var revoked *models.AuthorizedPickup
	err := a.tx.RunInTx(ctx, func(txCtx context.Context) error {
		now := requestcontext.Now(txCtx)
		p, err := a.pickups.ExecuteAuthorization(txCtx, pickupID,
			func(p *models.AuthorizedPickup) error { return p.CanRevoke() },
			func(p *models.AuthorizedPickup) { p.ApplyRevoke(now) },
		)
		if err != nil {
			return err
		}
		revoked = p
		return a.emitPickup(txCtx, audit.ActionPickupRevoked, p)
	})
	switch {
	case err == nil:
		return revoked, nil
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, dErrors.New(dErrors.CodeNotFound, "authorized pickup not found")
	case dErrors.HasCode(err, dErrors.CodeInvariantViolation):
		return nil, dErrors.New(dErrors.CodeConflict, "authorized pickup is already revoked")
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to revoke pickup")
	}
}

// ListForChild returns a child's authorizations, oldest first.
func (a *Authorizer) ListForChild(ctx context.Context, childID id.PersonID, includeRevoked bool) ([]*models.AuthorizedPickup, error) {
	if childID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "child id is required")
	}
	pickups, err := a.pickups.ListForChild(ctx, childID, !includeRevoked)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list authorized pickups")
	}
	if pickups == nil {
		pickups = []*models.AuthorizedPickup{}
	}
	return pickups, nil
}

func (a *Authorizer) emitPickup(ctx context.Context, action audit.Action, p *models.AuthorizedPickup) error {
	if a.audit == nil {
		return nil
	}
	event := audit.Event{
		Action:    action,
		SubjectID: p.ID.String(),
		PersonID:  p.ChildID.String(),
		Attributes: map[string]string{
			"level":        string(p.Level),
			"relationship": p.Relationship,
		},
	}
	if supervisor := requestcontext.SupervisorID(ctx); !supervisor.IsNil() {
		event.ActorID = supervisor.String()
	}
	return a.audit.Emit(ctx, event)
}
