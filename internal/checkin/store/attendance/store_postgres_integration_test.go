//go:build integration

package attendance_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"shepherd/internal/checkin/models"
	"shepherd/internal/checkin/store/attendance"
	"shepherd/internal/checkin/store/occurrence"
	id "shepherd/pkg/domain"
	"shepherd/pkg/platform/sentinel"
	"shepherd/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres    *containers.PostgresContainer
	store       *attendance.PostgresStore
	occurrences *occurrence.PostgresStore
	occurrence  *models.Occurrence
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = attendance.NewPostgres(s.postgres.DB)
	s.occurrences = occurrence.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.postgres.TruncateTables(ctx, "pickup_logs", "attendances", "attendance_codes", "attendance_occurrences"))

	occ, err := models.NewOccurrence(id.OccurrenceID(uuid.New()), models.OccurrenceKey{
		GroupID: id.GroupID(uuid.New()),
		Date:    models.NewDate(2024, 6, 2),
	}, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.occurrences.Create(ctx, occ))
	s.occurrence = occ
}

func (s *PostgresStoreSuite) newAttendance(person id.PersonID) *models.Attendance {
	att, err := models.NewAttendance(id.AttendanceID(uuid.New()), s.occurrence, person, id.DeviceID{}, id.CampusID{}, nil, time.Now())
	s.Require().NoError(err)
	return att
}

// TestConcurrentDuplicateCheckins verifies the partial unique index lets
// exactly one live attendance through for one (occurrence, person).
func (s *PostgresStoreSuite) TestConcurrentDuplicateCheckins() {
	ctx := context.Background()
	person := id.PersonID(uuid.New())
	const goroutines = 20

	var wg sync.WaitGroup
	var created, duplicates atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Create(ctx, s.newAttendance(person))
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				duplicates.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), created.Load())
	s.Equal(int32(goroutines-1), duplicates.Load())
}

func (s *PostgresStoreSuite) TestPendingClaimRoundTrip() {
	ctx := context.Background()
	att := s.newAttendance(id.PersonID(uuid.New()))
	s.Require().NoError(s.store.Create(ctx, att))

	claim := models.PickupClaim{Name: "Jordan Reyes", Phone: "555-0100"}
	_, err := s.store.Execute(ctx, att.ID,
		func(a *models.Attendance) error { return a.CanHoldForSupervisor() },
		func(a *models.Attendance) { a.ApplyHoldForSupervisor(claim) },
	)
	s.Require().NoError(err)

	found, err := s.store.FindByID(ctx, att.ID)
	s.Require().NoError(err)
	s.Equal(models.AttendancePendingCheckout, found.State)
	s.Require().NotNil(found.PendingPickup)
	s.Equal(claim, *found.PendingPickup)
}

func (s *PostgresStoreSuite) TestReversedRowFreesSlot() {
	ctx := context.Background()
	person := id.PersonID(uuid.New())
	first := s.newAttendance(person)
	s.Require().NoError(s.store.Create(ctx, first))

	_, err := s.store.Execute(ctx, first.ID,
		func(a *models.Attendance) error { return a.CanReverse() },
		func(a *models.Attendance) { a.ApplyReverse(time.Now()) },
	)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Create(ctx, s.newAttendance(person)))
	n, err := s.store.CountLive(ctx, s.occurrence.ID)
	s.Require().NoError(err)
	s.Equal(1, n)
}
