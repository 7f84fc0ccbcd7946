package code

import (
	"context"
	"fmt"
	"sync"

	"shepherd/internal/checkin/models"
	"shepherd/pkg/platform/sentinel"
	"shepherd/pkg/platform/tx"
)

// InMemory tracks issued codes per day.
type InMemory struct {
	mu    sync.Mutex
	byDay map[models.Date]map[string]models.AttendanceCode
}

func NewInMemory() *InMemory {
	return &InMemory{byDay: make(map[models.Date]map[string]models.AttendanceCode)}
}

// Create reserves code for its issue date, or returns sentinel.ErrAlreadyUsed.
func (s *InMemory) Create(ctx context.Context, code *models.AttendanceCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	day, ok := s.byDay[code.IssueDate]
	if !ok {
		day = make(map[string]models.AttendanceCode)
		s.byDay[code.IssueDate] = day
	}
	if _, taken := day[code.Code]; taken {
		return fmt.Errorf("code %s on %s: %w", code.Code, code.IssueDate, sentinel.ErrAlreadyUsed)
	}
	day[code.Code] = *code
	issueDate, value := code.IssueDate, code.Code
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.byDay[issueDate], value)
	})
	return nil
}

// CountForDate returns how many codes were issued on date.
func (s *InMemory) CountForDate(_ context.Context, date models.Date) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byDay[date]), nil
}
