package occurrence

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"shepherd/internal/audit"
	"shepherd/internal/checkin/models"
	occurrencestore "shepherd/internal/checkin/store/occurrence"
	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
	"shepherd/pkg/platform/sentinel"
	"shepherd/pkg/platform/tx"
	"shepherd/pkg/requestcontext"
)

// racingStore lets a test inject a competing insert between lookup and create.
type racingStore struct {
	*occurrencestore.InMemory
	beforeCreate func(occ *models.Occurrence)
	findErr      error
	finds        atomic.Int32
	creates      atomic.Int32
}

func (s *racingStore) FindByKey(ctx context.Context, key models.OccurrenceKey) (*models.Occurrence, error) {
	s.finds.Add(1)
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.InMemory.FindByKey(ctx, key)
}

func (s *racingStore) Create(ctx context.Context, occ *models.Occurrence) error {
	s.creates.Add(1)
	if s.beforeCreate != nil {
		s.beforeCreate(occ)
	}
	return s.InMemory.Create(ctx, occ)
}

// gatedStore holds FindByKey until the gate opens, honouring cancellation.
type gatedStore struct {
	*occurrencestore.InMemory
	entered chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func (s *gatedStore) FindByKey(ctx context.Context, key models.OccurrenceKey) (*models.Occurrence, error) {
	s.once.Do(func() { close(s.entered) })
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.gate:
	}
	return s.InMemory.FindByKey(ctx, key)
}

type ResolverSuite struct {
	suite.Suite
	store    *racingStore
	outbox   *audit.InMemoryOutbox
	resolver *Resolver
	ctx      context.Context
	key      models.OccurrenceKey
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.store = &racingStore{InMemory: occurrencestore.NewInMemory()}
	s.outbox = audit.NewInMemoryOutbox()
	s.resolver = New(s.store, tx.NewMemoryRunner(), WithAuditPublisher(audit.NewPublisher(s.outbox)))
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC))
	s.key = models.OccurrenceKey{
		GroupID:    id.GroupID(uuid.New()),
		LocationID: id.LocationID(uuid.New()),
		Date:       models.NewDate(2024, 6, 5),
	}
}

func (s *ResolverSuite) TestCreatesThenFinds() {
	first, err := s.resolver.Resolve(s.ctx, s.key)
	s.Require().NoError(err)
	s.Equal(models.NewDate(2024, 6, 9), first.WeekAnchorDate)

	second, err := s.resolver.Resolve(s.ctx, s.key)
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)
	s.Equal(int32(1), s.store.creates.Load())
}

func (s *ResolverSuite) TestNilScheduleIsItsOwnTuple() {
	withSchedule := s.key
	withSchedule.ScheduleID = id.ScheduleID(uuid.New())

	a, err := s.resolver.Resolve(s.ctx, s.key)
	s.Require().NoError(err)
	b, err := s.resolver.Resolve(s.ctx, withSchedule)
	s.Require().NoError(err)
	s.NotEqual(a.ID, b.ID)
}

func (s *ResolverSuite) TestConcurrentFirstUseCreatesOne() {
	var (
		wg  sync.WaitGroup
		ids sync.Map
	)
	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			occ, err := s.resolver.Resolve(s.ctx, s.key)
			s.NoError(err)
			if occ != nil {
				ids.Store(occ.ID, true)
			}
		}()
	}
	wg.Wait()

	count := 0
	ids.Range(func(_, _ any) bool { count++; return true })
	s.Equal(1, count)
}

func (s *ResolverSuite) TestLostInsertRaceReturnsWinner() {
	winner, err := models.NewOccurrence(id.OccurrenceID(uuid.New()), s.key, time.Now())
	s.Require().NoError(err)
	s.store.beforeCreate = func(*models.Occurrence) {
		s.store.beforeCreate = nil
		s.Require().NoError(s.store.InMemory.Create(context.Background(), winner))
	}

	occ, err := s.resolver.Resolve(s.ctx, s.key)
	s.Require().NoError(err)
	s.Equal(winner.ID, occ.ID)
}

func (s *ResolverSuite) TestStoreUnavailableIsOccurrenceConflict() {
	s.store.findErr = sentinel.ErrUnavailable

	_, err := s.resolver.Resolve(s.ctx, s.key)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeOccurrenceConflict))
	s.ErrorIs(err, sentinel.ErrUnavailable)
	s.Equal(int32(defaultMaxAttempts), s.store.finds.Load())
}

func (s *ResolverSuite) TestDroppedKioskDoesNotFailWaitingKiosk() {
	store := &gatedStore{
		InMemory: occurrencestore.NewInMemory(),
		entered:  make(chan struct{}),
		gate:     make(chan struct{}),
	}
	resolver := New(store, tx.NewMemoryRunner())

	dropped, cancel := context.WithCancel(s.ctx)
	droppedErr := make(chan error, 1)
	go func() {
		_, err := resolver.Resolve(dropped, s.key)
		droppedErr <- err
	}()
	<-store.entered

	type outcome struct {
		occ *models.Occurrence
		err error
	}
	waiting := make(chan outcome, 1)
	go func() {
		occ, err := resolver.Resolve(s.ctx, s.key)
		waiting <- outcome{occ, err}
	}()

	cancel()
	err := <-droppedErr
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))

	close(store.gate)
	got := <-waiting
	s.Require().NoError(got.err)
	s.Equal(s.key.Date, got.occ.Date)
}

func (s *ResolverSuite) TestInvalidKey() {
	_, err := s.resolver.Resolve(s.ctx, models.OccurrenceKey{Date: s.key.Date})
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	s.Zero(s.store.finds.Load())
}

func (s *ResolverSuite) TestFind() {
	_, err := s.resolver.Find(s.ctx, s.key)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Zero(s.store.creates.Load())
}

func (s *ResolverSuite) TestCancel() {
	occ, err := s.resolver.Resolve(s.ctx, s.key)
	s.Require().NoError(err)

	s.Run("first cancel flags and audits", func() {
		cancelled, err := s.resolver.Cancel(s.ctx, occ.ID)
		s.Require().NoError(err)
		s.Equal(models.OccurrenceStatusCancelled, cancelled.Status)

		events := s.outbox.Events()
		s.Require().Len(events, 1)
		s.Equal(audit.ActionOccurrenceCancelled, events[0].Action)
	})

	s.Run("second cancel conflicts", func() {
		_, err := s.resolver.Cancel(s.ctx, occ.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("unknown occurrence", func() {
		_, err := s.resolver.Cancel(s.ctx, id.OccurrenceID(uuid.New()))
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ResolverSuite) TestCancelRollsBackWhenAuditFails() {
	occ, err := s.resolver.Resolve(s.ctx, s.key)
	s.Require().NoError(err)
	s.outbox.FailWrites(sentinel.ErrUnavailable)

	_, err = s.resolver.Cancel(s.ctx, occ.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	current, err := s.resolver.Get(s.ctx, occ.ID)
	s.Require().NoError(err)
	s.Equal(models.OccurrenceStatusActive, current.Status)
}
