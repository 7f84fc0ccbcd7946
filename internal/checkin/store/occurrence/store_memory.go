package occurrence

import (
	"context"
	"fmt"
	"sync"

	"shepherd/internal/checkin/models"
	id "shepherd/pkg/domain"
	"shepherd/pkg/platform/sentinel"
	"shepherd/pkg/platform/tx"
)

// InMemory keeps occurrences in process. The key index enforces one
// occurrence per (group, location, schedule, date).
type InMemory struct {
	mu    sync.RWMutex
	byID  map[id.OccurrenceID]*models.Occurrence
	byKey map[models.OccurrenceKey]id.OccurrenceID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:  make(map[id.OccurrenceID]*models.Occurrence),
		byKey: make(map[models.OccurrenceKey]id.OccurrenceID),
	}
}

func (s *InMemory) FindByKey(_ context.Context, key models.OccurrenceKey) (*models.Occurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	occID, ok := s.byKey[key]
	if !ok {
		return nil, fmt.Errorf("occurrence %s: %w", key, sentinel.ErrNotFound)
	}
	occ := *s.byID[occID]
	return &occ, nil
}

func (s *InMemory) FindByID(_ context.Context, occurrenceID id.OccurrenceID) (*models.Occurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	occ, ok := s.byID[occurrenceID]
	if !ok {
		return nil, fmt.Errorf("occurrence %s: %w", occurrenceID, sentinel.ErrNotFound)
	}
	out := *occ
	return &out, nil
}

// Create inserts occ unless its key is taken, in which case it returns
// sentinel.ErrAlreadyUsed.
func (s *InMemory) Create(ctx context.Context, occ *models.Occurrence) error {
	key := occ.Key()
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byKey[key]; exists {
		return fmt.Errorf("occurrence %s: %w", key, sentinel.ErrAlreadyUsed)
	}
	stored := *occ
	s.byID[occ.ID] = &stored
	s.byKey[key] = occ.ID
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.byID, occ.ID)
		delete(s.byKey, key)
	})
	return nil
}

// Execute loads the occurrence, validates and mutates a copy, then stores it.
func (s *InMemory) Execute(ctx context.Context, occurrenceID id.OccurrenceID, validate func(*models.Occurrence) error, mutate func(*models.Occurrence)) (*models.Occurrence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.byID[occurrenceID]
	if !ok {
		return nil, fmt.Errorf("occurrence %s: %w", occurrenceID, sentinel.ErrNotFound)
	}
	next := *current
	if err := validate(&next); err != nil {
		return nil, err
	}
	mutate(&next)
	s.byID[occurrenceID] = &next
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.byID[occurrenceID] = current
	})
	out := next
	return &out, nil
}
