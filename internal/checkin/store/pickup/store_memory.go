package pickup

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"shepherd/internal/checkin/models"
	id "shepherd/pkg/domain"
	"shepherd/pkg/platform/sentinel"
	"shepherd/pkg/platform/tx"
)

// InMemory holds authorized pickups and the append-only pickup log.
type InMemory struct {
	mu      sync.RWMutex
	pickups map[id.PickupID]*models.AuthorizedPickup
	logs    []*models.PickupLog
	// failLogs makes AppendLog fail; used to prove checkouts fail closed.
	failLogs error
}

func NewInMemory() *InMemory {
	return &InMemory{pickups: make(map[id.PickupID]*models.AuthorizedPickup)}
}

// FailLogWrites makes every subsequent AppendLog return err (nil restores).
func (s *InMemory) FailLogWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLogs = err
}

func (s *InMemory) CreateAuthorization(ctx context.Context, p *models.AuthorizedPickup) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.pickups[p.ID]; exists {
		return fmt.Errorf("authorized pickup %s: %w", p.ID, sentinel.ErrAlreadyUsed)
	}
	stored := *p
	s.pickups[p.ID] = &stored
	pickupID := p.ID
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.pickups, pickupID)
	})
	return nil
}

func (s *InMemory) FindAuthorization(_ context.Context, pickupID id.PickupID) (*models.AuthorizedPickup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.pickups[pickupID]
	if !ok {
		return nil, fmt.Errorf("authorized pickup %s: %w", pickupID, sentinel.ErrNotFound)
	}
	out := *p
	return &out, nil
}

// ListForChild returns every authorization of child, revoked ones included,
// oldest first.
func (s *InMemory) ListForChild(_ context.Context, childID id.PersonID, activeOnly bool) ([]*models.AuthorizedPickup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.AuthorizedPickup
	for _, p := range s.pickups {
		if p.ChildID != childID || (activeOnly && !p.IsActive()) {
			continue
		}
		c := *p
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// LockActiveForChild returns the active authorizations of child. The memory
// store serializes revokes behind its own lock, so this is a plain read.
func (s *InMemory) LockActiveForChild(ctx context.Context, childID id.PersonID) ([]*models.AuthorizedPickup, error) {
	return s.ListForChild(ctx, childID, true)
}

func (s *InMemory) ExecuteAuthorization(ctx context.Context, pickupID id.PickupID, validate func(*models.AuthorizedPickup) error, mutate func(*models.AuthorizedPickup)) (*models.AuthorizedPickup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.pickups[pickupID]
	if !ok {
		return nil, fmt.Errorf("authorized pickup %s: %w", pickupID, sentinel.ErrNotFound)
	}
	next := *current
	if err := validate(&next); err != nil {
		return nil, err
	}
	mutate(&next)
	s.pickups[pickupID] = &next
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.pickups[pickupID] = current
	})
	out := next
	return &out, nil
}

// AppendLog appends an audit row. Rows are never updated or deleted except
// when the enclosing transaction rolls back.
func (s *InMemory) AppendLog(ctx context.Context, l *models.PickupLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failLogs != nil {
		return fmt.Errorf("append pickup log: %w", s.failLogs)
	}
	stored := *l
	s.logs = append(s.logs, &stored)
	logID := l.ID
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, existing := range s.logs {
			if existing.ID == logID {
				s.logs = append(s.logs[:i], s.logs[i+1:]...)
				return
			}
		}
	})
	return nil
}

// ListLogs returns the pickup log of attendance in write order.
func (s *InMemory) ListLogs(_ context.Context, attendanceID id.AttendanceID) ([]*models.PickupLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.PickupLog
	for _, l := range s.logs {
		if l.AttendanceID == attendanceID {
			c := *l
			out = append(out, &c)
		}
	}
	return out, nil
}
