package attendance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"shepherd/internal/checkin/models"
	id "shepherd/pkg/domain"
	"shepherd/pkg/platform/sentinel"
	"shepherd/pkg/platform/tx"
)

type InMemorySuite struct {
	suite.Suite
	store      *InMemory
	ctx        context.Context
	occurrence id.OccurrenceID
	person     id.PersonID
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.occurrence = id.OccurrenceID(uuid.New())
	s.person = id.PersonID(uuid.New())
}

func (s *InMemorySuite) newAttendance() *models.Attendance {
	return &models.Attendance{
		ID:           id.AttendanceID(uuid.New()),
		OccurrenceID: s.occurrence,
		PersonID:     s.person,
		Code:         "K7P",
		StartAt:      time.Now(),
		State:        models.AttendanceCheckedIn,
	}
}

func (s *InMemorySuite) TestLiveUniqueness() {
	first := s.newAttendance()
	s.Require().NoError(s.store.Create(s.ctx, first))

	s.Run("second live attendance is rejected", func() {
		s.ErrorIs(s.store.Create(s.ctx, s.newAttendance()), sentinel.ErrAlreadyUsed)
	})

	s.Run("checked out row still holds the slot", func() {
		_, err := s.store.Execute(s.ctx, first.ID,
			func(a *models.Attendance) error { return a.CanCheckout() },
			func(a *models.Attendance) { a.ApplyCheckout(time.Now()) },
		)
		s.Require().NoError(err)
		s.ErrorIs(s.store.Create(s.ctx, s.newAttendance()), sentinel.ErrAlreadyUsed)
	})
}

func (s *InMemorySuite) TestReverseFreesSlot() {
	first := s.newAttendance()
	s.Require().NoError(s.store.Create(s.ctx, first))

	_, err := s.store.Execute(s.ctx, first.ID,
		func(a *models.Attendance) error { return a.CanReverse() },
		func(a *models.Attendance) { a.ApplyReverse(time.Now()) },
	)
	s.Require().NoError(err)

	_, err = s.store.FindLive(s.ctx, s.occurrence, s.person)
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.NoError(s.store.Create(s.ctx, s.newAttendance()))

	n, err := s.store.CountLive(s.ctx, s.occurrence)
	s.Require().NoError(err)
	s.Equal(1, n)
}

func (s *InMemorySuite) TestExecuteRollsBack() {
	att := s.newAttendance()
	s.Require().NoError(s.store.Create(s.ctx, att))

	err := tx.NewMemoryRunner().RunInTx(s.ctx, func(txCtx context.Context) error {
		_, err := s.store.Execute(txCtx, att.ID,
			func(a *models.Attendance) error { return a.CanCheckout() },
			func(a *models.Attendance) { a.ApplyCheckout(time.Now()) },
		)
		s.Require().NoError(err)
		return errors.New("pickup log write failed")
	})
	s.Require().Error(err)

	found, err := s.store.FindByID(s.ctx, att.ID)
	s.Require().NoError(err)
	s.Equal(models.AttendanceCheckedIn, found.State)
	s.Nil(found.EndAt)
}

func (s *InMemorySuite) TestRollbackKeepsLaterCommittedWrite() {
	att := s.newAttendance()
	s.Require().NoError(s.store.Create(s.ctx, att))

	err := tx.NewMemoryRunner().RunInTx(s.ctx, func(txCtx context.Context) error {
		_, err := s.store.Execute(txCtx, att.ID,
			func(a *models.Attendance) error { return a.CanHoldForSupervisor() },
			func(a *models.Attendance) { a.ApplyHoldForSupervisor(models.PickupClaim{Name: "Dana Reyes", Phone: "5550001234"}) },
		)
		s.Require().NoError(err)

		_, err = s.store.Execute(s.ctx, att.ID,
			func(a *models.Attendance) error { return a.CanReverse() },
			func(a *models.Attendance) { a.ApplyReverse(time.Now()) },
		)
		s.Require().NoError(err)
		return errors.New("pickup log write failed")
	})
	s.Require().Error(err)

	found, err := s.store.FindByID(s.ctx, att.ID)
	s.Require().NoError(err)
	s.Equal(models.AttendanceReversed, found.State)
	_, err = s.store.FindLive(s.ctx, s.occurrence, s.person)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *InMemorySuite) TestReturnedValuesAreCopies() {
	att := s.newAttendance()
	s.Require().NoError(s.store.Create(s.ctx, att))

	found, err := s.store.FindByID(s.ctx, att.ID)
	s.Require().NoError(err)
	found.State = models.AttendanceReversed

	again, err := s.store.FindLive(s.ctx, s.occurrence, s.person)
	s.Require().NoError(err)
	s.Equal(models.AttendanceCheckedIn, again.State)
}
