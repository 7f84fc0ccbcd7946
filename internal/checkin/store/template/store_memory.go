package template

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

// InMemory keeps every template version. At most one version per label type
// is active.
type InMemory struct {
	mu        sync.RWMutex
	templates map[id.LabelTemplateID]*models.LabelTemplate
}

func NewInMemory() *InMemory {
	return &InMemory{templates: make(map[id.LabelTemplateID]*models.LabelTemplate)}
}

// Publish stores t as the next version of (Type, Name) and retires whatever
// template of the same type was active. Version and Status are assigned here.
func (s *InMemory) Publish(ctx context.Context, t *models.LabelTemplate) (*models.LabelTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.templates[t.ID]; exists {
		return nil, fmt.Errorf("template %s: %w", t.ID, sentinel.ErrAlreadyUsed)
	}

	version := 0
	var retired []*models.LabelTemplate
	for _, existing := range s.templates {
		if existing.Type == t.Type && existing.Name == t.Name && existing.Version > version {
			version = existing.Version
		}
		if existing.Type == t.Type && existing.Status == models.TemplateStatusActive {
			retired = append(retired, existing)
		}
	}
	for _, old := range retired {
		old.Status = models.TemplateStatusRetired
	}

	stored := *t
	stored.Version = version + 1
	stored.Status = models.TemplateStatusActive
	s.templates[stored.ID] = &stored

	newID := stored.ID
	tx.OnRollback(ctx, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.templates, newID)
		for _, old := range retired {
			old.Status = models.TemplateStatusActive
		}
	})
	out := stored
	return &out, nil
}

// ActiveByType returns the active template for labelType.
func (s *InMemory) ActiveByType(_ context.Context, labelType models.LabelType) (*models.LabelTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.templates {
		if t.Type == labelType && t.Status == models.TemplateStatusActive {
			out := *t
			return &out, nil
		}
	}
	return nil, fmt.Errorf("active %s template: %w", labelType, sentinel.ErrNotFound)
}

// FindByID returns any version, retired ones included.
func (s *InMemory) FindByID(_ context.Context, templateID id.LabelTemplateID) (*models.LabelTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[templateID]
	if !ok {
		return nil, fmt.Errorf("template %s: %w", templateID, sentinel.ErrNotFound)
	}
	out := *t
	return &out, nil
}

// ListActive returns active templates ordered by type.
func (s *InMemory) ListActive(_ context.Context) ([]*models.LabelTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.LabelTemplate
	for _, t := range s.templates {
		if t.Status == models.TemplateStatusActive {
			c := *t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out, nil
}
