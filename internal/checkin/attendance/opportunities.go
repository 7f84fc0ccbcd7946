package attendance

import (
	"context"
	"errors"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"shepherd/internal/checkin/models"
	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
	"shepherd/pkg/platform/sentinel"
	"shepherd/pkg/requestcontext"
)

// Directory is the read side of the membership directory.
type Directory interface {
	Family(ctx context.Context, familyID id.FamilyID) (*models.FamilyResult, error)
	Group(ctx context.Context, groupID id.GroupID) (*models.Group, error)
	Location(ctx context.Context, locationID id.LocationID) (*models.Location, error)
	Schedule(ctx context.Context, scheduleID id.ScheduleID) (*models.Schedule, error)
	GroupsForPerson(ctx context.Context, personID id.PersonID) ([]id.GroupID, error)
	OfferingsForGroup(ctx context.Context, groupID id.GroupID) ([]models.GroupOffering, error)
}

// OccurrenceFinder looks up occurrences without creating them.
type OccurrenceFinder interface {
	Find(ctx context.Context, key models.OccurrenceKey) (*models.Occurrence, error)
}

type LiveFinder interface {
	FindLive(ctx context.Context, occurrenceID id.OccurrenceID, personID id.PersonID) (*models.Attendance, error)
}

// Opportunity is one place a family member could be checked into today.
// OccurrenceID is nil until someone has checked into the tuple.
type Opportunity struct {
	PersonID     id.PersonID     `json:"person_id"`
	PersonName   string          `json:"person_name"`
	GroupID      id.GroupID      `json:"group_id"`
	GroupName    string          `json:"group_name"`
	LocationID   id.LocationID   `json:"location_id"`
	LocationName string          `json:"location_name"`
	ScheduleID   id.ScheduleID   `json:"schedule_id"`
	ScheduleName string          `json:"schedule_name"`
	Date         models.Date     `json:"date"`
	OccurrenceID id.OccurrenceID `json:"occurrence_id"`
	Cancelled    bool            `json:"cancelled"`
	CheckedIn    bool            `json:"checked_in"`
	AttendanceID id.AttendanceID `json:"attendance_id"`
}

type Opportunities struct {
	directory   Directory
	occurrences OccurrenceFinder
	attendance  LiveFinder
	location    *time.Location
	concurrency int
}

func NewOpportunities(directory Directory, occurrences OccurrenceFinder, attendance LiveFinder, loc *time.Location) *Opportunities {
	if loc == nil {
		loc = time.UTC
	}
	return &Opportunities{
		directory:   directory,
		occurrences: occurrences,
		attendance:  attendance,
		location:    loc,
		concurrency: defaultConcurrency,
	}
}

// List returns today's opportunities for every member of familyID. When
// scheduleID is set only that schedule is considered.
func (o *Opportunities) List(ctx context.Context, familyID id.FamilyID, scheduleID id.ScheduleID) ([]Opportunity, error) {
	ctx, span := tracer.Start(ctx, "attendance.Opportunities")
	defer span.End()

	family, err := o.directory.Family(ctx, familyID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "family not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load family")
	}

	date := models.DateOf(requestcontext.Now(ctx), o.location)
	perMember := make([][]Opportunity, len(family.Members))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, member := range family.Members {
		g.Go(func() error {
			found, err := o.forPerson(gctx, member, date, scheduleID)
			if err != nil {
				return err
			}
			perMember[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list check-in opportunities")
	}

	out := []Opportunity{}
	for _, found := range perMember {
		out = append(out, found...)
	}
	return out, nil
}

func (o *Opportunities) forPerson(ctx context.Context, person models.Person, date models.Date, only id.ScheduleID) ([]Opportunity, error) {
	groupIDs, err := o.directory.GroupsForPerson(ctx, person.ID)
	if err != nil {
		return nil, err
	}
	var out []Opportunity
	for _, groupID := range groupIDs {
		group, err := o.directory.Group(ctx, groupID)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		offerings, err := o.directory.OfferingsForGroup(ctx, groupID)
		if err != nil {
			return nil, err
		}
		for _, offering := range offerings {
			location, err := o.directory.Location(ctx, offering.LocationID)
			if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
				return nil, err
			}
			schedules, err := o.schedulesFor(ctx, offering, date, only)
			if err != nil {
				return nil, err
			}
			for _, schedule := range schedules {
				opp := Opportunity{
					PersonID:   person.ID,
					PersonName: person.DisplayName(),
					GroupID:    group.ID,
					GroupName:  group.Name,
					LocationID: offering.LocationID,
					Date:       date,
				}
				if location != nil {
					opp.LocationName = location.Name
				}
				if schedule != nil {
					opp.ScheduleID = schedule.ID
					opp.ScheduleName = schedule.Name
				}
				if err := o.fillStatus(ctx, &opp); err != nil {
					return nil, err
				}
				out = append(out, opp)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].GroupName != out[j].GroupName {
			return out[i].GroupName < out[j].GroupName
		}
		return out[i].ScheduleName < out[j].ScheduleName
	})
	return out, nil
}

// schedulesFor returns the schedules of offering meeting on date. An offering
// without schedules yields a single unscheduled slot, unless a schedule filter
// is set.
func (o *Opportunities) schedulesFor(ctx context.Context, offering models.GroupOffering, date models.Date, only id.ScheduleID) ([]*models.Schedule, error) {
	if len(offering.ScheduleIDs) == 0 {
		if !only.IsNil() {
			return nil, nil
		}
		return []*models.Schedule{nil}, nil
	}
	var out []*models.Schedule
	for _, scheduleID := range offering.ScheduleIDs {
		if !only.IsNil() && scheduleID != only {
			continue
		}
		schedule, err := o.directory.Schedule(ctx, scheduleID)
		if errors.Is(err, sentinel.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if schedule.OccursOn(date) {
			out = append(out, schedule)
		}
	}
	return out, nil
}

func (o *Opportunities) fillStatus(ctx context.Context, opp *Opportunity) error {
	occ, err := o.occurrences.Find(ctx, models.OccurrenceKey{
		GroupID:    opp.GroupID,
		LocationID: opp.LocationID,
		ScheduleID: opp.ScheduleID,
		Date:       opp.Date,
	})
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	opp.OccurrenceID = occ.ID
	opp.Cancelled = !occ.AcceptsCheckins()

	att, err := o.attendance.FindLive(ctx, occ.ID, opp.PersonID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	opp.CheckedIn = true
	opp.AttendanceID = att.ID
	return nil
}
