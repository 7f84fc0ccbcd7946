package pickup

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
	store *InMemory
	ctx   context.Context
	child id.PersonID
}

func TestInMemorySuite(t *testing.T) {
	suite.Run(t, new(InMemorySuite))
}

func (s *InMemorySuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
	s.child = id.PersonID(uuid.New())
}

func (s *InMemorySuite) newPickup(name string, created time.Time) *models.AuthorizedPickup {
	p, err := models.NewAuthorizedPickup(
		id.PickupID(uuid.New()), s.child,
		models.PickupClaim{Name: name, Phone: "555-0100"},
		"grandparent", models.PickupLevelFull, "", nil, nil, created,
	)
	s.Require().NoError(err)
	return p
}

func (s *InMemorySuite) TestAuthorizations() {
	now := time.Now()
	first := s.newPickup("Ann", now.Add(-time.Hour))
	second := s.newPickup("Bob", now)
	s.Require().NoError(s.store.CreateAuthorization(s.ctx, second))
	s.Require().NoError(s.store.CreateAuthorization(s.ctx, first))

	s.Run("duplicate id rejected", func() {
		s.ErrorIs(s.store.CreateAuthorization(s.ctx, first), sentinel.ErrAlreadyUsed)
	})

	s.Run("list is oldest first", func() {
		list, err := s.store.ListForChild(s.ctx, s.child, false)
		s.Require().NoError(err)
		s.Require().Len(list, 2)
		s.Equal(first.ID, list[0].ID)
	})

	s.Run("revoked pickups drop out of the active list but stay in history", func() {
		_, err := s.store.ExecuteAuthorization(s.ctx, first.ID,
			func(p *models.AuthorizedPickup) error { return p.CanRevoke() },
			func(p *models.AuthorizedPickup) { p.ApplyRevoke(now) },
		)
		s.Require().NoError(err)

		active, err := s.store.ListForChild(s.ctx, s.child, true)
		s.Require().NoError(err)
		s.Require().Len(active, 1)
		s.Equal(second.ID, active[0].ID)

		all, err := s.store.ListForChild(s.ctx, s.child, false)
		s.Require().NoError(err)
		s.Len(all, 2)

		locked, err := s.store.LockActiveForChild(s.ctx, s.child)
		s.Require().NoError(err)
		s.Equal(active, locked)
	})

	s.Run("unknown id", func() {
		_, err := s.store.FindAuthorization(s.ctx, id.PickupID(uuid.New()))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemorySuite) TestLogsRollBackWithTransaction() {
	runner := tx.NewMemoryRunner()
	att := &models.Attendance{ID: id.AttendanceID(uuid.New()), PersonID: s.child}
	boom := errors.New("boom")

	err := runner.RunInTx(s.ctx, func(txCtx context.Context) error {
		log := models.NewPendingPickupLog(id.PickupLogID(uuid.New()), att, models.PickupClaim{Name: "Eve", Phone: "555"}, id.DeviceID{}, time.Now())
		s.Require().NoError(s.store.AppendLog(txCtx, log))
		return boom
	})
	s.ErrorIs(err, boom)

	logs, err := s.store.ListLogs(s.ctx, att.ID)
	s.Require().NoError(err)
	s.Empty(logs)
}

func (s *InMemorySuite) TestFailLogWrites() {
	att := &models.Attendance{ID: id.AttendanceID(uuid.New()), PersonID: s.child}
	s.store.FailLogWrites(sentinel.ErrUnavailable)
	log := models.NewPendingPickupLog(id.PickupLogID(uuid.New()), att, models.PickupClaim{Name: "Eve", Phone: "555"}, id.DeviceID{}, time.Now())
	s.ErrorIs(s.store.AppendLog(s.ctx, log), sentinel.ErrUnavailable)

	s.store.FailLogWrites(nil)
	s.NoError(s.store.AppendLog(s.ctx, log))
}
