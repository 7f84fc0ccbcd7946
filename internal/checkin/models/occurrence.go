package models

import (
	"time"

	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
)

// OccurrenceStatus is the lifecycle of a meeting instance. Occurrences are
// never deleted; cancellation is a state.
type OccurrenceStatus string

const (
	OccurrenceStatusActive    OccurrenceStatus = "active"
	OccurrenceStatusCancelled OccurrenceStatus = "cancelled"
)

func (s OccurrenceStatus) IsValid() bool {
	return s == OccurrenceStatusActive || s == OccurrenceStatusCancelled
}

// CanTransitionTo allows active -> cancelled only.
func (s OccurrenceStatus) CanTransitionTo(next OccurrenceStatus) bool {
	return s == OccurrenceStatusActive && next == OccurrenceStatusCancelled
}

// OccurrenceKey identifies one meeting instance. LocationID and ScheduleID are
// optional; the nil ID means "no location" / "no schedule" and participates in
// uniqueness like any other value.
type OccurrenceKey struct {
	GroupID    id.GroupID    `json:"group_id"`
	LocationID id.LocationID `json:"location_id"`
	ScheduleID id.ScheduleID `json:"schedule_id"`
	Date       Date          `json:"date"`
}

func (k OccurrenceKey) Validate() error {
	if k.GroupID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "group_id is required")
	}
	if k.Date.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "date is required")
	}
	return nil
}

// String is a stable representation used to collapse concurrent resolves.
func (k OccurrenceKey) String() string {
	return k.GroupID.String() + "|" + k.LocationID.String() + "|" + k.ScheduleID.String() + "|" + k.Date.String()
}

// Occurrence is one concrete date-instance of a recurring group meeting.
//
// Invariants:
//   - at most one occurrence exists per OccurrenceKey
//   - WeekAnchorDate is the Sunday ending the week containing Date
//   - Status transitions: active -> cancelled only
type Occurrence struct {
	ID             id.OccurrenceID  `json:"id"`
	GroupID        id.GroupID       `json:"group_id"`
	LocationID     id.LocationID    `json:"location_id"`
	ScheduleID     id.ScheduleID    `json:"schedule_id"`
	Date           Date             `json:"date"`
	WeekAnchorDate Date             `json:"week_anchor_date"`
	Status         OccurrenceStatus `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
	CancelledAt    *time.Time       `json:"cancelled_at,omitempty"`
}

// NewOccurrence builds an active occurrence for key.
func NewOccurrence(occurrenceID id.OccurrenceID, key OccurrenceKey, now time.Time) (*Occurrence, error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}
	return &Occurrence{
		ID:             occurrenceID,
		GroupID:        key.GroupID,
		LocationID:     key.LocationID,
		ScheduleID:     key.ScheduleID,
		Date:           key.Date,
		WeekAnchorDate: WeekAnchor(key.Date),
		Status:         OccurrenceStatusActive,
		CreatedAt:      now,
	}, nil
}

func (o *Occurrence) Key() OccurrenceKey {
	return OccurrenceKey{GroupID: o.GroupID, LocationID: o.LocationID, ScheduleID: o.ScheduleID, Date: o.Date}
}

func (o *Occurrence) AcceptsCheckins() bool {
	return o.Status == OccurrenceStatusActive
}

// CanCancel checks if the occurrence can be cancelled.
func (o *Occurrence) CanCancel() error {
	if !o.Status.CanTransitionTo(OccurrenceStatusCancelled) {
		return dErrors.New(dErrors.CodeInvariantViolation, "occurrence is already cancelled")
	}
	return nil
}

// ApplyCancel must only be called after CanCancel returns nil.
func (o *Occurrence) ApplyCancel(now time.Time) {
	o.Status = OccurrenceStatusCancelled
	o.CancelledAt = &now
}
