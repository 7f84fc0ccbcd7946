// Package domain holds typed opaque identifiers shared across the check-in
// engine. Each ID is a distinct named UUID so the compiler rejects passing a
// PersonID where a FamilyID is expected. IDs are the externally exposed "IdKey";
// internal sequence numbers never leave the store.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "shepherd/pkg/domain-errors"
)

const maxIDLength = 64

type (
	FamilyID         uuid.UUID
	PersonID         uuid.UUID
	GroupID          uuid.UUID
	LocationID       uuid.UUID
	ScheduleID       uuid.UUID
	CampusID         uuid.UUID
	OccurrenceID     uuid.UUID
	AttendanceID     uuid.UUID
	AttendanceCodeID uuid.UUID
	DeviceID         uuid.UUID
	PickupID         uuid.UUID
	PickupLogID      uuid.UUID
	LabelTemplateID  uuid.UUID
)

func parseUUID(kind, s string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be empty")
	}
	if len(s) > maxIDLength || strings.ContainsRune(s, 0) {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" cannot be nil")
	}
	return parsed, nil
}

// unmarshalUUID accepts empty input as the nil ID so optional JSON fields decode.
func unmarshalUUID(kind string, text []byte) (uuid.UUID, error) {
	if len(text) == 0 {
		return uuid.Nil, nil
	}
	return parseUUID(kind, string(text))
}

// -----------------------------------------------------------------------------
// FamilyID
// -----------------------------------------------------------------------------

func ParseFamilyID(s string) (FamilyID, error) {
	u, err := parseUUID("family_id", s)
	return FamilyID(u), err
}

func (id FamilyID) String() string {
	return uuid.UUID(id).String()
}

func (id FamilyID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id FamilyID) MarshalText() ([]byte, error) {
	if id.IsNil() {
		return []byte{}, nil
	}
	return []byte(id.String()), nil
}

func (id *FamilyID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("family_id", text)
	if err != nil {
		return err
	}
	*id = FamilyID(u)
	return nil
}

// -----------------------------------------------------------------------------
// PersonID
// -----------------------------------------------------------------------------

func ParsePersonID(s string) (PersonID, error) {
	u, err := parseUUID("person_id", s)
	return PersonID(u), err
}

func (id PersonID) String() string {
	return uuid.UUID(id).String()
}

func (id PersonID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id PersonID) MarshalText() ([]byte, error) {
	if id.IsNil() {
		return []byte{}, nil
	}
	return []byte(id.String()), nil
}

func (id *PersonID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("person_id", text)
	if err != nil {
		return err
	}
	*id = PersonID(u)
	return nil
}

// -----------------------------------------------------------------------------
// GroupID
// -----------------------------------------------------------------------------

func ParseGroupID(s string) (GroupID, error) {
	u, err := parseUUID("group_id", s)
	return GroupID(u), err
}

func (id GroupID) String() string {
	return uuid.UUID(id).String()
}

func (id GroupID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id GroupID) MarshalText() ([]byte, error) {
	if id.IsNil() {
		return []byte{}, nil
	}
	return []byte(id.String()), nil
}

func (id *GroupID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("group_id", text)
	if err != nil {
		return err
	}
	*id = GroupID(u)
	return nil
}

// -----------------------------------------------------------------------------
// LocationID
// -----------------------------------------------------------------------------

func ParseLocationID(s string) (LocationID, error) {
	u, err := parseUUID("location_id", s)
	return LocationID(u), err
}

func (id LocationID) String() string {
	return uuid.UUID(id).String()
}

func (id LocationID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id LocationID) MarshalText() ([]byte, error) {
	if id.IsNil() {
		return []byte{}, nil
	}
	return []byte(id.String()), nil
}

func (id *LocationID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("location_id", text)
	if err != nil {
		return err
	}
	*id = LocationID(u)
	return nil
}

// -----------------------------------------------------------------------------
// ScheduleID
// -----------------------------------------------------------------------------

func ParseScheduleID(s string) (ScheduleID, error) {
	u, err := parseUUID("schedule_id", s)
	return ScheduleID(u), err
}

func (id ScheduleID) String() string {
	return uuid.UUID(id).String()
}

func (id ScheduleID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id ScheduleID) MarshalText() ([]byte, error) {
	if id.IsNil() {
		return []byte{}, nil
	}
	return []byte(id.String()), nil
}

func (id *ScheduleID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("schedule_id", text)
	if err != nil {
		return err
	}
	*id = ScheduleID(u)
	return nil
}

// -----------------------------------------------------------------------------
// CampusID
// -----------------------------------------------------------------------------

func ParseCampusID(s string) (CampusID, error) {
	u, err := parseUUID("campus_id", s)
	return CampusID(u), err
}

func (id CampusID) String() string {
	return uuid.UUID(id).String()
}

func (id CampusID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id CampusID) MarshalText() ([]byte, error) {
	if id.IsNil() {
		return []byte{}, nil
	}
	return []byte(id.String()), nil
}

func (id *CampusID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("campus_id", text)
	if err != nil {
		return err
	}
	*id = CampusID(u)
	return nil
}

// -----------------------------------------------------------------------------
// OccurrenceID
// -----------------------------------------------------------------------------

func ParseOccurrenceID(s string) (OccurrenceID, error) {
	u, err := parseUUID("occurrence_id", s)
	return OccurrenceID(u), err
}

func (id OccurrenceID) String() string {
	return uuid.UUID(id).String()
}

func (id OccurrenceID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id OccurrenceID) MarshalText() ([]byte, error) {
	if id.IsNil() {
		return []byte{}, nil
	}
	return []byte(id.String()), nil
}

func (id *OccurrenceID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("occurrence_id", text)
	if err != nil {
		return err
	}
	*id = OccurrenceID(u)
	return nil
}

// -----------------------------------------------------------------------------
// AttendanceID
// -----------------------------------------------------------------------------

func ParseAttendanceID(s string) (AttendanceID, error) {
	u, err := parseUUID("attendance_id", s)
	return AttendanceID(u), err
}

func (id AttendanceID) String() string {
	return uuid.UUID(id).String()
}

func (id AttendanceID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id AttendanceID) MarshalText() ([]byte, error) {
	if id.IsNil() {
		return []byte{}, nil
	}
	return []byte(id.String()), nil
}

func (id *AttendanceID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("attendance_id", text)
	if err != nil {
		return err
	}
	*id = AttendanceID(u)
	return nil
}

// -----------------------------------------------------------------------------
// AttendanceCodeID
// -----------------------------------------------------------------------------

func (id AttendanceCodeID) String() string {
	return uuid.UUID(id).String()
}

func (id AttendanceCodeID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id AttendanceCodeID) MarshalText() ([]byte, error) {
	if id.IsNil() {
		return []byte{}, nil
	}
	return []byte(id.String()), nil
}

func (id *AttendanceCodeID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("attendance_code_id", text)
	if err != nil {
		return err
	}
	*id = AttendanceCodeID(u)
	return nil
}

// -----------------------------------------------------------------------------
// DeviceID
// -----------------------------------------------------------------------------

func ParseDeviceID(s string) (DeviceID, error) {
	u, err := parseUUID("device_id", s)
	return DeviceID(u), err
}

func (id DeviceID) String() string {
	return uuid.UUID(id).String()
}

func (id DeviceID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id DeviceID) MarshalText() ([]byte, error) {
	if id.IsNil() {
		return []byte{}, nil
	}
	return []byte(id.String()), nil
}

func (id *DeviceID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("device_id", text)
	if err != nil {
		return err
	}
	*id = DeviceID(u)
	return nil
}

// -----------------------------------------------------------------------------
// PickupID
// -----------------------------------------------------------------------------

func ParsePickupID(s string) (PickupID, error) {
	u, err := parseUUID("pickup_id", s)
	return PickupID(u), err
}

func (id PickupID) String() string {
	return uuid.UUID(id).String()
}

func (id PickupID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id PickupID) MarshalText() ([]byte, error) {
	if id.IsNil() {
		return []byte{}, nil
	}
	return []byte(id.String()), nil
}

func (id *PickupID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("pickup_id", text)
	if err != nil {
		return err
	}
	*id = PickupID(u)
	return nil
}

// -----------------------------------------------------------------------------
// PickupLogID
// -----------------------------------------------------------------------------

func (id PickupLogID) String() string {
	return uuid.UUID(id).String()
}

func (id PickupLogID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id PickupLogID) MarshalText() ([]byte, error) {
	if id.IsNil() {
		return []byte{}, nil
	}
	return []byte(id.String()), nil
}

func (id *PickupLogID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("pickup_log_id", text)
	if err != nil {
		return err
	}
	*id = PickupLogID(u)
	return nil
}

// -----------------------------------------------------------------------------
// LabelTemplateID
// -----------------------------------------------------------------------------

func ParseLabelTemplateID(s string) (LabelTemplateID, error) {
	u, err := parseUUID("label_template_id", s)
	return LabelTemplateID(u), err
}

func (id LabelTemplateID) String() string {
	return uuid.UUID(id).String()
}

func (id LabelTemplateID) IsNil() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id LabelTemplateID) MarshalText() ([]byte, error) {
	if id.IsNil() {
		return []byte{}, nil
	}
	return []byte(id.String()), nil
}

func (id *LabelTemplateID) UnmarshalText(text []byte) error {
	u, err := unmarshalUUID("label_template_id", text)
	if err != nil {
		return err
	}
	*id = LabelTemplateID(u)
	return nil
}
