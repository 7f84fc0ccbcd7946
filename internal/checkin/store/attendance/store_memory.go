package attendance

import (
	"context"
	"fmt"
	"sync"

	"shepherd/internal/checkin/models"
	id "shepherd/pkg/domain"
	"shepherd/pkg/platform/sentinel"
	"shepherd/pkg/platform/tx"
)

type slot struct {
	occurrenceID id.OccurrenceID
	personID     id.PersonID
}

// InMemory keeps attendances in process. The live index holds at most one
// non-reversed attendance per (occurrence, person).
type InMemory struct {
	mu   sync.RWMutex
	byID map[id.AttendanceID]*models.Attendance
	live map[slot]id.AttendanceID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID: make(map[id.AttendanceID]*models.Attendance),
		live: make(map[slot]id.AttendanceID),
	}
}

func clone(a *models.Attendance) *models.Attendance {
	out := *a
	if a.PendingPickup != nil {
		claim := *a.PendingPickup
		out.PendingPickup = &claim
	}
	return &out
}

// Create inserts att, or returns sentinel.ErrAlreadyUsed when the person
// already holds a live attendance for the occurrence.
func (s *InMemory) Create(ctx context.Context, att *models.Attendance) error {
	key := slot{occurrenceID: att.OccurrenceID, personID: att.PersonID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.live[key]; taken && att.State.Live() {
		return fmt.Errorf("attendance for person %s: %w", att.PersonID, sentinel.ErrAlreadyUsed)
	}
	s.byID[att.ID] = clone(att)
	if att.State.Live() {
		s.live[key] = att.ID
	}
	attID := att.ID
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.byID, attID)
		if s.live[key] == attID {
			delete(s.live, key)
		}
	})
	return nil
}

func (s *InMemory) FindByID(_ context.Context, attendanceID id.AttendanceID) (*models.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	att, ok := s.byID[attendanceID]
	if !ok {
		return nil, fmt.Errorf("attendance %s: %w", attendanceID, sentinel.ErrNotFound)
	}
	return clone(att), nil
}

// FindLive returns the non-reversed attendance of person for occurrence.
func (s *InMemory) FindLive(_ context.Context, occurrenceID id.OccurrenceID, personID id.PersonID) (*models.Attendance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attID, ok := s.live[slot{occurrenceID: occurrenceID, personID: personID}]
	if !ok {
		return nil, fmt.Errorf("live attendance for person %s: %w", personID, sentinel.ErrNotFound)
	}
	return clone(s.byID[attID]), nil
}

// Execute validates and mutates a copy of the attendance and stores it. A
// transition to reversed frees the live slot.
func (s *InMemory) Execute(ctx context.Context, attendanceID id.AttendanceID, validate func(*models.Attendance) error, mutate func(*models.Attendance)) (*models.Attendance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[attendanceID]
	if !ok {
		return nil, fmt.Errorf("attendance %s: %w", attendanceID, sentinel.ErrNotFound)
	}
	next := clone(current)
	if err := validate(next); err != nil {
		return nil, err
	}
	mutate(next)

	previous := current
	key := slot{occurrenceID: next.OccurrenceID, personID: next.PersonID}
	s.byID[attendanceID] = next
	if !next.State.Live() && s.live[key] == attendanceID {
		delete(s.live, key)
	}
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		// A later committed write owns the row now; keep it.
		if s.byID[attendanceID] != next {
			return
		}
		s.byID[attendanceID] = previous
		if _, taken := s.live[key]; previous.State.Live() && !taken {
			s.live[key] = attendanceID
		}
	})
	return clone(next), nil
}

// CountLive returns the live attendances of occurrence.
func (s *InMemory) CountLive(_ context.Context, occurrenceID id.OccurrenceID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for key := range s.live {
		if key.occurrenceID == occurrenceID {
			n++
		}
	}
	return n, nil
}
