package models

import (
	"time"

	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
)

// AttendanceState is the per (person, occurrence) check-in lifecycle.
type AttendanceState string

const (
	AttendanceCheckedIn       AttendanceState = "checked_in"
	AttendancePendingCheckout AttendanceState = "pending_checkout"
	AttendanceCheckedOut      AttendanceState = "checked_out"
	AttendanceReversed        AttendanceState = "reversed"
)

var attendanceTransitions = map[AttendanceState][]AttendanceState{
	AttendanceCheckedIn:       {AttendancePendingCheckout, AttendanceCheckedOut, AttendanceReversed},
	AttendancePendingCheckout: {AttendanceCheckedOut, AttendanceCheckedIn, AttendanceReversed},
}

func (s AttendanceState) IsValid() bool {
	switch s {
	case AttendanceCheckedIn, AttendancePendingCheckout, AttendanceCheckedOut, AttendanceReversed:
		return true
	}
	return false
}

func (s AttendanceState) CanTransitionTo(next AttendanceState) bool {
	for _, allowed := range attendanceTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Live reports whether the row occupies the (occurrence, person) slot.
func (s AttendanceState) Live() bool {
	return s != AttendanceReversed
}

// Attendance is one person's check-in to one occurrence.
//
// Invariants:
//   - at most one live (non-reversed) attendance per (OccurrenceID, PersonID)
//   - EndAt is set iff State is checked_out
//   - PendingPickup is set iff State is pending_checkout
type Attendance struct {
	ID            id.AttendanceID     `json:"id"`
	OccurrenceID  id.OccurrenceID     `json:"occurrence_id"`
	PersonID      id.PersonID         `json:"person_id"`
	DeviceID      id.DeviceID         `json:"device_id"`
	CodeID        id.AttendanceCodeID `json:"code_id"`
	Code          string              `json:"security_code"`
	CampusID      id.CampusID         `json:"campus_id"`
	StartAt       time.Time           `json:"start_at"`
	EndAt         *time.Time          `json:"end_at,omitempty"`
	State         AttendanceState     `json:"state"`
	PendingPickup *PickupClaim        `json:"pending_pickup,omitempty"`
	ReversedAt    *time.Time          `json:"reversed_at,omitempty"`
}

// NewAttendance builds a checked-in attendance carrying code.
func NewAttendance(
	attendanceID id.AttendanceID,
	occurrence *Occurrence,
	personID id.PersonID,
	deviceID id.DeviceID,
	campusID id.CampusID,
	code *AttendanceCode,
	now time.Time,
) (*Attendance, error) {
	if occurrence == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "attendance requires an occurrence")
	}
	if personID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "attendance requires a person")
	}
	if !occurrence.AcceptsCheckins() {
		return nil, dErrors.New(dErrors.CodeOccurrenceClosed, "occurrence is cancelled")
	}
	a := &Attendance{
		ID:           attendanceID,
		OccurrenceID: occurrence.ID,
		PersonID:     personID,
		DeviceID:     deviceID,
		CampusID:     campusID,
		StartAt:      now,
		State:        AttendanceCheckedIn,
	}
	if code != nil {
		a.CodeID = code.ID
		a.Code = code.Code
	}
	return a, nil
}

func (a *Attendance) transitionError(next AttendanceState) error {
	return dErrors.New(dErrors.CodeConflict, "attendance is "+string(a.State)+", cannot become "+string(next))
}

// CanCheckout checks that the child is still in the building.
func (a *Attendance) CanCheckout() error {
	if !a.State.CanTransitionTo(AttendanceCheckedOut) {
		return a.transitionError(AttendanceCheckedOut)
	}
	return nil
}

// ApplyCheckout closes the attendance and any pending pickup flow.
func (a *Attendance) ApplyCheckout(now time.Time) {
	a.State = AttendanceCheckedOut
	a.EndAt = &now
	a.PendingPickup = nil
}

// CanHoldForSupervisor checks that a blocked pickup may wait for a supervisor.
// A second unmatched attempt while already pending is allowed and keeps the
// existing flow.
func (a *Attendance) CanHoldForSupervisor() error {
	if a.State == AttendancePendingCheckout {
		return nil
	}
	if !a.State.CanTransitionTo(AttendancePendingCheckout) {
		return a.transitionError(AttendancePendingCheckout)
	}
	return nil
}

// ApplyHoldForSupervisor records the claim awaiting approval. The first claim
// wins; later attempts do not replace it.
func (a *Attendance) ApplyHoldForSupervisor(claim PickupClaim) {
	if a.State == AttendancePendingCheckout {
		return
	}
	a.State = AttendancePendingCheckout
	a.PendingPickup = &claim
}

// CanResolveOverride checks that a supervisor decision has something to decide.
func (a *Attendance) CanResolveOverride() error {
	if a.State != AttendancePendingCheckout || a.PendingPickup == nil {
		return dErrors.New(dErrors.CodeConflict, "attendance has no pickup awaiting supervisor approval")
	}
	return nil
}

// ApplyDeny returns the child to checked-in after a supervisor rejects the pickup.
func (a *Attendance) ApplyDeny() {
	a.State = AttendanceCheckedIn
	a.PendingPickup = nil
}

// CanReverse checks that the attendance can be undone. Checked-out rows are history.
func (a *Attendance) CanReverse() error {
	if !a.State.CanTransitionTo(AttendanceReversed) {
		return a.transitionError(AttendanceReversed)
	}
	return nil
}

// ApplyReverse frees the (occurrence, person) slot.
func (a *Attendance) ApplyReverse(now time.Time) {
	a.State = AttendanceReversed
	a.ReversedAt = &now
	a.PendingPickup = nil
}
