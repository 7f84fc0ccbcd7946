package models

import (
	"encoding/json"
	"strings"
	"time"

	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
)

// PickupLevel decides when an authorized adult may take the child without a supervisor.
type PickupLevel string

const (
	// PickupLevelFull permits pickup at any time.
	PickupLevelFull PickupLevel = "full"
	// PickupLevelScheduled permits pickup only inside ValidFrom..ValidUntil.
	PickupLevelScheduled PickupLevel = "scheduled"
	// PickupLevelRestricted never permits direct pickup; a custody restriction
	// always routes through a supervisor.
	PickupLevelRestricted PickupLevel = "restricted"
)

func (l PickupLevel) IsValid() bool {
	return l == PickupLevelFull || l == PickupLevelScheduled || l == PickupLevelRestricted
}

type PickupStatus string

const (
	PickupStatusActive  PickupStatus = "active"
	PickupStatusRevoked PickupStatus = "revoked"
)

// PickupClaim is the identity an adult presents at checkout: a known person,
// or a name and phone for someone not in the directory.
type PickupClaim struct {
	PersonID id.PersonID `json:"person_id"`
	Name     string      `json:"name,omitempty"`
	Phone    string      `json:"phone,omitempty"`
}

func (c PickupClaim) Validate() error {
	if c.PersonID.IsNil() && (strings.TrimSpace(c.Name) == "" || NormalizePhone(c.Phone) == "") {
		return dErrors.New(dErrors.CodeValidation, "pickup claim needs a person_id or both name and phone")
	}
	return nil
}

// AuthorizedPickup is a child-to-adult authorization edge. Revocation is a
// soft state; custody history is never deleted.
type AuthorizedPickup struct {
	ID            id.PickupID  `json:"id"`
	ChildID       id.PersonID  `json:"child_id"`
	AdultPersonID id.PersonID  `json:"adult_person_id"`
	Name          string       `json:"name"`
	Phone         string       `json:"phone"`
	Relationship  string       `json:"relationship"`
	Level         PickupLevel  `json:"level"`
	CustodyNotes  string       `json:"custody_notes,omitempty"`
	Status        PickupStatus `json:"status"`
	ValidFrom     *time.Time   `json:"valid_from,omitempty"`
	ValidUntil    *time.Time   `json:"valid_until,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	RevokedAt     *time.Time   `json:"revoked_at,omitempty"`
}

// NewAuthorizedPickup validates and builds an active authorization.
func NewAuthorizedPickup(
	pickupID id.PickupID,
	childID id.PersonID,
	adult PickupClaim,
	relationship string,
	level PickupLevel,
	custodyNotes string,
	validFrom, validUntil *time.Time,
	now time.Time,
) (*AuthorizedPickup, error) {
	if childID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "authorized pickup requires a child")
	}
	if err := adult.Validate(); err != nil {
		return nil, err
	}
	if !level.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "level must be full, scheduled, or restricted")
	}
	if level == PickupLevelScheduled && (validFrom == nil || validUntil == nil) {
		return nil, dErrors.New(dErrors.CodeValidation, "scheduled pickups require valid_from and valid_until")
	}
	if validFrom != nil && validUntil != nil && !validUntil.After(*validFrom) {
		return nil, dErrors.New(dErrors.CodeValidation, "valid_until must be after valid_from")
	}
	return &AuthorizedPickup{
		ID:            pickupID,
		ChildID:       childID,
		AdultPersonID: adult.PersonID,
		Name:          strings.TrimSpace(adult.Name),
		Phone:         strings.TrimSpace(adult.Phone),
		Relationship:  strings.TrimSpace(relationship),
		Level:         level,
		CustodyNotes:  strings.TrimSpace(custodyNotes),
		Status:        PickupStatusActive,
		ValidFrom:     validFrom,
		ValidUntil:    validUntil,
		CreatedAt:     now,
	}, nil
}

func (p *AuthorizedPickup) IsActive() bool {
	return p.Status == PickupStatusActive
}

// Matches reports whether claim identifies this adult: by person id when
// both sides have one, otherwise by normalized name and phone digits.
func (p *AuthorizedPickup) Matches(claim PickupClaim) bool {
	if !claim.PersonID.IsNil() && !p.AdultPersonID.IsNil() {
		return claim.PersonID == p.AdultPersonID
	}
	name := NormalizeName(claim.Name)
	phone := NormalizePhone(claim.Phone)
	if name == "" || phone == "" {
		return false
	}
	return name == NormalizeName(p.Name) && phone == NormalizePhone(p.Phone)
}

// PermitsAt reports whether the authorization level allows direct pickup at now.
func (p *AuthorizedPickup) PermitsAt(now time.Time) bool {
	if !p.IsActive() {
		return false
	}
	switch p.Level {
	case PickupLevelFull:
		return true
	case PickupLevelScheduled:
		return p.ValidFrom != nil && p.ValidUntil != nil &&
			!now.Before(*p.ValidFrom) && now.Before(*p.ValidUntil)
	default:
		return false
	}
}

// CanRevoke checks the authorization is still active.
func (p *AuthorizedPickup) CanRevoke() error {
	if !p.IsActive() {
		return dErrors.New(dErrors.CodeInvariantViolation, "authorized pickup is already revoked")
	}
	return nil
}

// ApplyRevoke must only be called after CanRevoke returns nil.
func (p *AuthorizedPickup) ApplyRevoke(now time.Time) {
	p.Status = PickupStatusRevoked
	p.RevokedAt = &now
}

// PickupOutcome is the decision recorded by a pickup log row.
type PickupOutcome string

const (
	PickupOutcomeAuthorized PickupOutcome = "authorized"
	PickupOutcomePending    PickupOutcome = "pending_supervisor_approval"
	PickupOutcomeOverridden PickupOutcome = "supervisor_override"
	PickupOutcomeDenied     PickupOutcome = "denied"
)

func (o PickupOutcome) IsValid() bool {
	switch o {
	case PickupOutcomeAuthorized, PickupOutcomePending, PickupOutcomeOverridden, PickupOutcomeDenied:
		return true
	}
	return false
}

// PickupLog is an append-only audit row for one checkout decision. Whether the
// pickup was authorized or overridden is derived from the single Outcome, so
// both can never be true for the same row.
type PickupLog struct {
	ID                 id.PickupLogID  `json:"id"`
	AttendanceID       id.AttendanceID `json:"attendance_id"`
	ChildID            id.PersonID     `json:"child_id"`
	PickupPersonID     id.PersonID     `json:"pickup_person_id"`
	PickupName         string          `json:"pickup_name,omitempty"`
	PickupPhone        string          `json:"pickup_phone,omitempty"`
	AuthorizedPickupID id.PickupID     `json:"authorized_pickup_id"`
	Outcome            PickupOutcome   `json:"outcome"`
	SupervisorID       id.PersonID     `json:"supervisor_id"`
	DeviceID           id.DeviceID     `json:"device_id"`
	CreatedAt          time.Time       `json:"created_at"`
}

func (l *PickupLog) WasAuthorized() bool {
	return l.Outcome == PickupOutcomeAuthorized
}

func (l *PickupLog) SupervisorOverride() bool {
	return l.Outcome == PickupOutcomeOverridden
}

func (l PickupLog) MarshalJSON() ([]byte, error) {
	type plain PickupLog
	return json.Marshal(struct {
		plain
		WasAuthorized      bool `json:"was_authorized"`
		SupervisorOverride bool `json:"supervisor_override"`
	}{plain(l), l.WasAuthorized(), l.SupervisorOverride()})
}

func newPickupLog(logID id.PickupLogID, att *Attendance, claim PickupClaim, deviceID id.DeviceID, now time.Time) *PickupLog {
	return &PickupLog{
		ID:             logID,
		AttendanceID:   att.ID,
		ChildID:        att.PersonID,
		PickupPersonID: claim.PersonID,
		PickupName:     strings.TrimSpace(claim.Name),
		PickupPhone:    strings.TrimSpace(claim.Phone),
		DeviceID:       deviceID,
		CreatedAt:      now,
	}
}

// NewAuthorizedPickupLog records a pickup that matched an active authorization.
func NewAuthorizedPickupLog(logID id.PickupLogID, att *Attendance, claim PickupClaim, match *AuthorizedPickup, deviceID id.DeviceID, now time.Time) (*PickupLog, error) {
	if match == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "authorized pickup log requires the matched authorization")
	}
	l := newPickupLog(logID, att, claim, deviceID, now)
	l.AuthorizedPickupID = match.ID
	l.Outcome = PickupOutcomeAuthorized
	return l, nil
}

// NewPendingPickupLog records a pickup blocked until a supervisor decides.
func NewPendingPickupLog(logID id.PickupLogID, att *Attendance, claim PickupClaim, deviceID id.DeviceID, now time.Time) *PickupLog {
	l := newPickupLog(logID, att, claim, deviceID, now)
	l.Outcome = PickupOutcomePending
	return l
}

// NewOverridePickupLog records a supervisor-approved pickup of the pending claim.
func NewOverridePickupLog(logID id.PickupLogID, att *Attendance, supervisorID id.PersonID, deviceID id.DeviceID, now time.Time) (*PickupLog, error) {
	return newSupervisorLog(logID, att, supervisorID, deviceID, now, PickupOutcomeOverridden)
}

// NewDeniedPickupLog records a supervisor rejecting the pending claim.
func NewDeniedPickupLog(logID id.PickupLogID, att *Attendance, supervisorID id.PersonID, deviceID id.DeviceID, now time.Time) (*PickupLog, error) {
	return newSupervisorLog(logID, att, supervisorID, deviceID, now, PickupOutcomeDenied)
}

func newSupervisorLog(logID id.PickupLogID, att *Attendance, supervisorID id.PersonID, deviceID id.DeviceID, now time.Time, outcome PickupOutcome) (*PickupLog, error) {
	if supervisorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "supervisor decision requires a supervisor identity")
	}
	if att.PendingPickup == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "supervisor decision requires a pending pickup")
	}
	l := newPickupLog(logID, att, *att.PendingPickup, deviceID, now)
	l.Outcome = outcome
	l.SupervisorID = supervisorID
	return l, nil
}
