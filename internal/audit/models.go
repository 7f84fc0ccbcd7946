package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action names a check-in decision worth keeping a record of.
type Action string

const (
	ActionAttendanceRecorded  Action = "attendance_recorded"
	ActionAttendanceReversed  Action = "attendance_reversed"
	ActionCheckoutAuthorized  Action = "checkout_authorized"
	ActionCheckoutPending     Action = "checkout_pending"
	ActionCheckoutOverridden  Action = "checkout_overridden"
	ActionCheckoutDenied      Action = "checkout_denied"
	ActionOccurrenceCancelled Action = "occurrence_cancelled"
	ActionPickupGranted       Action = "pickup_granted"
	ActionPickupRevoked       Action = "pickup_revoked"
)

// Event is emitted from domain logic inside the same transaction as the state
// change it describes. SubjectID is the aggregate the event is about; it is
// also the Kafka record key so events of one attendance stay ordered.
type Event struct {
	ID         uuid.UUID         `json:"id"`
	Action     Action            `json:"action"`
	SubjectID  string            `json:"subject_id"`
	PersonID   string            `json:"person_id,omitempty"`
	DeviceID   string            `json:"device_id,omitempty"`
	ActorID    string            `json:"actor_id,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// OutboxEntry is an event waiting to be relayed. Seq orders the outbox.
type OutboxEntry struct {
	Seq         int64
	Event       Event
	PublishedAt *time.Time
}
