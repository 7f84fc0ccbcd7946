package checkout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"shepherd/internal/audit"
	"shepherd/internal/checkin/models"
	attendancestore "shepherd/internal/checkin/store/attendance"
	pickupstore "shepherd/internal/checkin/store/pickup"
	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
	"shepherd/pkg/platform/tx"
	"shepherd/pkg/requestcontext"
)

var pickupTime = time.Date(2024, 6, 9, 11, 45, 0, 0, time.UTC)

type AuthorizerSuite struct {
	suite.Suite
	ctx        context.Context
	attendance *attendancestore.InMemory
	pickups    *pickupstore.InMemory
	outbox     *audit.InMemoryOutbox
	authorizer *Authorizer
	att        *models.Attendance
	supervisor id.PersonID
}

func TestAuthorizerSuite(t *testing.T) {
	suite.Run(t, new(AuthorizerSuite))
}

func (s *AuthorizerSuite) SetupTest() {
	s.ctx = requestcontext.WithTime(context.Background(), pickupTime)
	s.attendance = attendancestore.NewInMemory()
	s.pickups = pickupstore.NewInMemory()
	s.outbox = audit.NewInMemoryOutbox()
	s.authorizer = New(s.attendance, s.pickups, tx.NewMemoryRunner(), WithAuditPublisher(audit.NewPublisher(s.outbox)))
	s.supervisor = id.PersonID(uuid.New())

	occ, err := models.NewOccurrence(id.OccurrenceID(uuid.New()), models.OccurrenceKey{
		GroupID: id.GroupID(uuid.New()),
		Date:    models.NewDate(2024, 6, 9),
	}, pickupTime.Add(-3*time.Hour))
	s.Require().NoError(err)
	s.att, err = models.NewAttendance(id.AttendanceID(uuid.New()), occ, id.PersonID(uuid.New()),
		id.DeviceID{}, id.CampusID{}, &models.AttendanceCode{ID: id.AttendanceCodeID(uuid.New()), Code: "K7P"},
		pickupTime.Add(-2*time.Hour))
	s.Require().NoError(err)
	s.Require().NoError(s.attendance.Create(s.ctx, s.att))
}

func (s *AuthorizerSuite) grant(claim models.PickupClaim, level models.PickupLevel, from, until *time.Time) *models.AuthorizedPickup {
	p, err := s.authorizer.Grant(s.ctx, GrantRequest{
		ChildID:      s.att.PersonID,
		Adult:        claim,
		Relationship: "parent",
		Level:        level,
		ValidFrom:    from,
		ValidUntil:   until,
	})
	s.Require().NoError(err)
	return p
}

func (s *AuthorizerSuite) actions() []audit.Action {
	var out []audit.Action
	for _, e := range s.outbox.Events() {
		out = append(out, e.Action)
	}
	return out
}

func (s *AuthorizerSuite) TestAuthorizedByPersonID() {
	adult := id.PersonID(uuid.New())
	granted := s.grant(models.PickupClaim{PersonID: adult}, models.PickupLevelFull, nil, nil)

	result, err := s.authorizer.Checkout(s.ctx, s.att.ID, models.PickupClaim{PersonID: adult})
	s.Require().NoError(err)
	s.Equal(models.PickupOutcomeAuthorized, result.Outcome)
	s.Equal(models.AttendanceCheckedOut, result.Attendance.State)
	s.Equal(pickupTime, *result.Attendance.EndAt)
	s.True(result.PickupLog.WasAuthorized())
	s.False(result.PickupLog.SupervisorOverride())
	s.Equal(granted.ID, result.PickupLog.AuthorizedPickupID)
	s.Contains(s.actions(), audit.ActionCheckoutAuthorized)
}

func (s *AuthorizerSuite) TestAuthorizedByNameAndPhone() {
	s.grant(models.PickupClaim{Name: "Mary Ellen Smith", Phone: "(555) 010-2233"}, models.PickupLevelFull, nil, nil)

	result, err := s.authorizer.Checkout(s.ctx, s.att.ID, models.PickupClaim{Name: "  mary ellen SMITH ", Phone: "555.010.2233"})
	s.Require().NoError(err)
	s.Equal(models.PickupOutcomeAuthorized, result.Outcome)
}

func (s *AuthorizerSuite) TestUnknownAdultIsHeld() {
	claim := models.PickupClaim{Name: "Stranger", Phone: "5550000000"}

	result, err := s.authorizer.Checkout(s.ctx, s.att.ID, claim)
	s.Require().NoError(err)
	s.Equal(models.PickupOutcomePending, result.Outcome)
	s.Equal(models.AttendancePendingCheckout, result.Attendance.State)
	s.Equal(claim, *result.Attendance.PendingPickup)
	s.False(result.PickupLog.WasAuthorized())
	s.False(result.PickupLog.SupervisorOverride())
	s.Contains(s.actions(), audit.ActionCheckoutPending)
}

func (s *AuthorizerSuite) TestRepeatAttemptKeepsOnePendingFlow() {
	first, err := s.authorizer.Checkout(s.ctx, s.att.ID, models.PickupClaim{Name: "Stranger", Phone: "5550000000"})
	s.Require().NoError(err)

	second, err := s.authorizer.Checkout(s.ctx, s.att.ID, models.PickupClaim{Name: "Other", Phone: "5551111111"})
	s.Require().NoError(err)
	s.Equal(models.PickupOutcomePending, second.Outcome)
	s.Equal(first.PickupLog.ID, second.PickupLog.ID)
	s.Equal("Stranger", second.Attendance.PendingPickup.Name)

	logs, err := s.authorizer.Logs(s.ctx, s.att.ID)
	s.Require().NoError(err)
	s.Len(logs, 1)
}

func (s *AuthorizerSuite) TestAuthorizedClaimClosesPendingFlow() {
	_, err := s.authorizer.Checkout(s.ctx, s.att.ID, models.PickupClaim{Name: "Stranger", Phone: "5550000000"})
	s.Require().NoError(err)
	adult := id.PersonID(uuid.New())
	s.grant(models.PickupClaim{PersonID: adult}, models.PickupLevelFull, nil, nil)

	result, err := s.authorizer.Checkout(s.ctx, s.att.ID, models.PickupClaim{PersonID: adult})
	s.Require().NoError(err)
	s.Equal(models.PickupOutcomeAuthorized, result.Outcome)
	s.Nil(result.Attendance.PendingPickup)
}

func (s *AuthorizerSuite) TestRestrictedLevelNeedsSupervisor() {
	adult := id.PersonID(uuid.New())
	s.grant(models.PickupClaim{PersonID: adult}, models.PickupLevelRestricted, nil, nil)

	result, err := s.authorizer.Checkout(s.ctx, s.att.ID, models.PickupClaim{PersonID: adult})
	s.Require().NoError(err)
	s.Equal(models.PickupOutcomePending, result.Outcome)
}

func (s *AuthorizerSuite) TestScheduledLevelHonoursWindow() {
	adult := id.PersonID(uuid.New())
	from := pickupTime.Add(24 * time.Hour)
	until := pickupTime.Add(48 * time.Hour)
	s.grant(models.PickupClaim{PersonID: adult}, models.PickupLevelScheduled, &from, &until)

	result, err := s.authorizer.Checkout(s.ctx, s.att.ID, models.PickupClaim{PersonID: adult})
	s.Require().NoError(err)
	s.Equal(models.PickupOutcomePending, result.Outcome)
}

func (s *AuthorizerSuite) TestRevokedPickupDoesNotMatch() {
	adult := id.PersonID(uuid.New())
	granted := s.grant(models.PickupClaim{PersonID: adult}, models.PickupLevelFull, nil, nil)
	_, err := s.authorizer.Revoke(s.ctx, granted.ID)
	s.Require().NoError(err)

	result, err := s.authorizer.Checkout(s.ctx, s.att.ID, models.PickupClaim{PersonID: adult})
	s.Require().NoError(err)
	s.Equal(models.PickupOutcomePending, result.Outcome)

	_, err = s.authorizer.Revoke(s.ctx, granted.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *AuthorizerSuite) TestApproveOverride() {
	claim := models.PickupClaim{Name: "Grandpa Joe", Phone: "5552223333"}
	_, err := s.authorizer.Checkout(s.ctx, s.att.ID, claim)
	s.Require().NoError(err)

	result, err := s.authorizer.ApproveOverride(s.ctx, s.att.ID, s.supervisor)
	s.Require().NoError(err)
	s.Equal(models.PickupOutcomeOverridden, result.Outcome)
	s.Equal(models.AttendanceCheckedOut, result.Attendance.State)
	s.True(result.PickupLog.SupervisorOverride())
	s.False(result.PickupLog.WasAuthorized())
	s.Equal(s.supervisor, result.PickupLog.SupervisorID)
	s.Equal("Grandpa Joe", result.PickupLog.PickupName)
	s.Contains(s.actions(), audit.ActionCheckoutOverridden)
}

func (s *AuthorizerSuite) TestApproveWithoutPendingIsConflict() {
	_, err := s.authorizer.ApproveOverride(s.ctx, s.att.ID, s.supervisor)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *AuthorizerSuite) TestApproveRequiresSupervisor() {
	_, err := s.authorizer.ApproveOverride(s.ctx, s.att.ID, id.PersonID{})
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}

func (s *AuthorizerSuite) TestDenyReturnsChildToCheckedIn() {
	_, err := s.authorizer.Checkout(s.ctx, s.att.ID, models.PickupClaim{Name: "Stranger", Phone: "5550000000"})
	s.Require().NoError(err)

	result, err := s.authorizer.Deny(s.ctx, s.att.ID, s.supervisor)
	s.Require().NoError(err)
	s.Equal(models.PickupOutcomeDenied, result.Outcome)
	s.Equal(models.AttendanceCheckedIn, result.Attendance.State)
	s.Nil(result.Attendance.PendingPickup)
	s.Contains(s.actions(), audit.ActionCheckoutDenied)
}

func (s *AuthorizerSuite) TestCheckedOutChildCannotCheckOutAgain() {
	adult := id.PersonID(uuid.New())
	s.grant(models.PickupClaim{PersonID: adult}, models.PickupLevelFull, nil, nil)
	_, err := s.authorizer.Checkout(s.ctx, s.att.ID, models.PickupClaim{PersonID: adult})
	s.Require().NoError(err)

	_, err = s.authorizer.Checkout(s.ctx, s.att.ID, models.PickupClaim{PersonID: adult})
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *AuthorizerSuite) TestLogFailureFailsCheckout() {
	adult := id.PersonID(uuid.New())
	s.grant(models.PickupClaim{PersonID: adult}, models.PickupLevelFull, nil, nil)
	s.pickups.FailLogWrites(errors.New("connection reset"))

	_, err := s.authorizer.Checkout(s.ctx, s.att.ID, models.PickupClaim{PersonID: adult})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	att, err := s.attendance.FindByID(s.ctx, s.att.ID)
	s.Require().NoError(err)
	s.Equal(models.AttendanceCheckedIn, att.State)
}

func (s *AuthorizerSuite) TestAuditFailureFailsCheckout() {
	s.outbox.FailWrites(errors.New("outbox unavailable"))

	_, err := s.authorizer.Checkout(s.ctx, s.att.ID, models.PickupClaim{Name: "Stranger", Phone: "5550000000"})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	att, err := s.attendance.FindByID(s.ctx, s.att.ID)
	s.Require().NoError(err)
	s.Equal(models.AttendanceCheckedIn, att.State)
	logs, err := s.authorizer.Logs(s.ctx, s.att.ID)
	s.Require().NoError(err)
	s.Empty(logs)
}

func (s *AuthorizerSuite) TestRevokeBeforeLockIsHonoured() {
	adult := id.PersonID(uuid.New())
	granted := s.grant(models.PickupClaim{PersonID: adult}, models.PickupLevelFull, nil, nil)
	store := &revokeFirstStore{InMemory: s.attendance, revoke: func() {
		_, err := s.authorizer.Revoke(s.ctx, granted.ID)
		s.Require().NoError(err)
	}}
	authorizer := New(store, s.pickups, tx.NewMemoryRunner())

	result, err := authorizer.Checkout(s.ctx, s.att.ID, models.PickupClaim{PersonID: adult})
	s.Require().NoError(err)
	s.Equal(models.PickupOutcomePending, result.Outcome)
	s.Equal(models.AttendancePendingCheckout, result.Attendance.State)
	s.False(result.PickupLog.WasAuthorized())
}

func (s *AuthorizerSuite) TestPendingWithoutLogIsInvariantViolation() {
	_, err := s.attendance.Execute(s.ctx, s.att.ID,
		func(a *models.Attendance) error { return a.CanHoldForSupervisor() },
		func(a *models.Attendance) {
			a.ApplyHoldForSupervisor(models.PickupClaim{Name: "Stranger", Phone: "5550000000"})
		},
	)
	s.Require().NoError(err)

	result, err := s.authorizer.Checkout(s.ctx, s.att.ID, models.PickupClaim{Name: "Other", Phone: "5551111111"})
	s.Nil(result)
	s.True(dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}

func (s *AuthorizerSuite) TestUnknownAttendance() {
	_, err := s.authorizer.Checkout(s.ctx, id.AttendanceID(uuid.New()), models.PickupClaim{PersonID: id.PersonID(uuid.New())})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *AuthorizerSuite) TestClaimValidation() {
	_, err := s.authorizer.Checkout(s.ctx, s.att.ID, models.PickupClaim{Name: "No Phone"})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *AuthorizerSuite) TestListForChild() {
	kept := s.grant(models.PickupClaim{PersonID: id.PersonID(uuid.New())}, models.PickupLevelFull, nil, nil)
	dropped := s.grant(models.PickupClaim{PersonID: id.PersonID(uuid.New())}, models.PickupLevelFull, nil, nil)
	_, err := s.authorizer.Revoke(s.ctx, dropped.ID)
	s.Require().NoError(err)

	active, err := s.authorizer.ListForChild(s.ctx, s.att.PersonID, false)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(kept.ID, active[0].ID)

	all, err := s.authorizer.ListForChild(s.ctx, s.att.PersonID, true)
	s.Require().NoError(err)
	s.Len(all, 2)
}

func (s *AuthorizerSuite) TestGrantValidation() {
	_, err := s.authorizer.Grant(s.ctx, GrantRequest{
		ChildID: s.att.PersonID,
		Adult:   models.PickupClaim{PersonID: id.PersonID(uuid.New())},
		Level:   models.PickupLevelScheduled,
	})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

// revokeFirstStore lets a revoke commit just before the attendance row is
// locked, as one from another kiosk would.
type revokeFirstStore struct {
	*attendancestore.InMemory
	revoke func()
}

func (r *revokeFirstStore) Execute(ctx context.Context, attendanceID id.AttendanceID, validate func(*models.Attendance) error, mutate func(*models.Attendance)) (*models.Attendance, error) {
	r.revoke()
	return r.InMemory.Execute(ctx, attendanceID, validate, mutate)
}
