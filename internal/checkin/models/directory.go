package models

import (
	"strings"
	"time"

	id "shepherd/pkg/domain"
)

// The types below are read models of the membership directory. The check-in
// engine never writes them; references between them are ids resolved through
// explicit lookups.

type Family struct {
	ID       id.FamilyID `json:"id"`
	Name     string      `json:"name"`
	CampusID id.CampusID `json:"campus_id"`
}

type Person struct {
	ID        id.PersonID `json:"id"`
	FamilyID  id.FamilyID `json:"family_id"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	NickName  string      `json:"nick_name,omitempty"`
	Email     string      `json:"email,omitempty"`
	Phones    []string    `json:"phones,omitempty"`
	AlertNote string      `json:"alert_note,omitempty"`
}

// DisplayName prefers the nickname over the first name.
func (p Person) DisplayName() string {
	first := p.FirstName
	if p.NickName != "" {
		first = p.NickName
	}
	return strings.TrimSpace(first + " " + p.LastName)
}

// FamilyResult is one search hit: a family with its members.
type FamilyResult struct {
	Family  Family   `json:"family"`
	Members []Person `json:"members"`
}

type Group struct {
	ID   id.GroupID `json:"id"`
	Name string     `json:"name"`
}

type Location struct {
	ID       id.LocationID `json:"id"`
	Name     string        `json:"name"`
	CampusID id.CampusID   `json:"campus_id"`
}

type Schedule struct {
	ID        id.ScheduleID `json:"id"`
	Name      string        `json:"name"`
	Weekday   time.Weekday  `json:"weekday"`
	StartTime string        `json:"start_time,omitempty"`
}

// OccursOn reports whether the schedule meets on date.
func (s Schedule) OccursOn(d Date) bool {
	return s.Weekday == d.Weekday()
}

// GroupOffering is where and when a group meets.
type GroupOffering struct {
	GroupID     id.GroupID      `json:"group_id"`
	LocationID  id.LocationID   `json:"location_id"`
	ScheduleIDs []id.ScheduleID `json:"schedule_ids"`
}
