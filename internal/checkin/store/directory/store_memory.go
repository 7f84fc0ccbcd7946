// Package directory reads the membership directory: families, people, groups,
// locations, schedules and where groups meet. The check-in engine never edits
// it; the Put methods exist for seeding and for the CRUD layer in tests.
package directory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"shepherd/internal/checkin/models"
	id "shepherd/pkg/domain"
	"shepherd/pkg/platform/sentinel"
)

type InMemory struct {
	mu          sync.RWMutex
	families    map[id.FamilyID]models.Family
	people      map[id.PersonID]models.Person
	groups      map[id.GroupID]models.Group
	locations   map[id.LocationID]models.Location
	schedules   map[id.ScheduleID]models.Schedule
	memberships map[id.PersonID][]id.GroupID
	offerings   map[id.GroupID][]models.GroupOffering
}

func NewInMemory() *InMemory {
	return &InMemory{
		families:    make(map[id.FamilyID]models.Family),
		people:      make(map[id.PersonID]models.Person),
		groups:      make(map[id.GroupID]models.Group),
		locations:   make(map[id.LocationID]models.Location),
		schedules:   make(map[id.ScheduleID]models.Schedule),
		memberships: make(map[id.PersonID][]id.GroupID),
		offerings:   make(map[id.GroupID][]models.GroupOffering),
	}
}

func (s *InMemory) PutFamily(_ context.Context, f models.Family) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.families[f.ID] = f
	return nil
}

func (s *InMemory) PutPerson(_ context.Context, p models.Person) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.Phones = append([]string(nil), p.Phones...)
	s.people[p.ID] = p
	return nil
}

func (s *InMemory) PutGroup(_ context.Context, g models.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.ID] = g
	return nil
}

func (s *InMemory) PutLocation(_ context.Context, l models.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations[l.ID] = l
	return nil
}

func (s *InMemory) PutSchedule(_ context.Context, sc models.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[sc.ID] = sc
	return nil
}

func (s *InMemory) PutMembership(_ context.Context, personID id.PersonID, groupID id.GroupID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.memberships[personID] {
		if existing == groupID {
			return nil
		}
	}
	s.memberships[personID] = append(s.memberships[personID], groupID)
	return nil
}

func (s *InMemory) PutOffering(_ context.Context, o models.GroupOffering) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o.ScheduleIDs = append([]id.ScheduleID(nil), o.ScheduleIDs...)
	list := s.offerings[o.GroupID]
	for i, existing := range list {
		if existing.LocationID == o.LocationID {
			list[i] = o
			return nil
		}
	}
	s.offerings[o.GroupID] = append(list, o)
	return nil
}

func (s *InMemory) Family(_ context.Context, familyID id.FamilyID) (*models.FamilyResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.families[familyID]
	if !ok {
		return nil, fmt.Errorf("family %s: %w", familyID, sentinel.ErrNotFound)
	}
	return &models.FamilyResult{Family: f, Members: s.membersLocked(familyID)}, nil
}

func (s *InMemory) membersLocked(familyID id.FamilyID) []models.Person {
	var members []models.Person
	for _, p := range s.people {
		if p.FamilyID == familyID {
			p.Phones = append([]string(nil), p.Phones...)
			members = append(members, p)
		}
	}
	sortMembers(members)
	return members
}

// Snapshot returns every family with its members, ordered by family name.
// The in-memory search index is built from it.
func (s *InMemory) Snapshot(_ context.Context) ([]models.FamilyResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.FamilyResult, 0, len(s.families))
	for familyID, f := range s.families {
		out = append(out, models.FamilyResult{Family: f, Members: s.membersLocked(familyID)})
	}
	sort.Slice(out, func(i, j int) bool { return lessFamily(out[i].Family, out[j].Family) })
	return out, nil
}

func (s *InMemory) Person(_ context.Context, personID id.PersonID) (*models.Person, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.people[personID]
	if !ok {
		return nil, fmt.Errorf("person %s: %w", personID, sentinel.ErrNotFound)
	}
	p.Phones = append([]string(nil), p.Phones...)
	return &p, nil
}

func (s *InMemory) Group(_ context.Context, groupID id.GroupID) (*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[groupID]
	if !ok {
		return nil, fmt.Errorf("group %s: %w", groupID, sentinel.ErrNotFound)
	}
	return &g, nil
}

func (s *InMemory) Location(_ context.Context, locationID id.LocationID) (*models.Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.locations[locationID]
	if !ok {
		return nil, fmt.Errorf("location %s: %w", locationID, sentinel.ErrNotFound)
	}
	return &l, nil
}

func (s *InMemory) Schedule(_ context.Context, scheduleID id.ScheduleID) (*models.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.schedules[scheduleID]
	if !ok {
		return nil, fmt.Errorf("schedule %s: %w", scheduleID, sentinel.ErrNotFound)
	}
	return &sc, nil
}

// GroupsForPerson returns the groups personID belongs to.
func (s *InMemory) GroupsForPerson(_ context.Context, personID id.PersonID) ([]id.GroupID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]id.GroupID(nil), s.memberships[personID]...), nil
}

// OfferingsForGroup returns where and when groupID meets.
func (s *InMemory) OfferingsForGroup(_ context.Context, groupID id.GroupID) ([]models.GroupOffering, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.GroupOffering, 0, len(s.offerings[groupID]))
	for _, o := range s.offerings[groupID] {
		o.ScheduleIDs = append([]id.ScheduleID(nil), o.ScheduleIDs...)
		out = append(out, o)
	}
	return out, nil
}

func sortMembers(members []models.Person) {
	sort.Slice(members, func(i, j int) bool {
		if members[i].LastName != members[j].LastName {
			return members[i].LastName < members[j].LastName
		}
		if members[i].FirstName != members[j].FirstName {
			return members[i].FirstName < members[j].FirstName
		}
		return members[i].ID.String() < members[j].ID.String()
	})
}

func lessFamily(a, b models.Family) bool {
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.ID.String() < b.ID.String()
}
