package models

import (
	"time"

	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
)

// RecordItem asks to check one person into one occurrence tuple for the
// request's date.
type RecordItem struct {
	PersonID   id.PersonID   `json:"person_id"`
	GroupID    id.GroupID    `json:"group_id"`
	LocationID id.LocationID `json:"location_id"`
	ScheduleID id.ScheduleID `json:"schedule_id"`
}

func (i RecordItem) Validate() error {
	if i.PersonID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "person_id is required")
	}
	if i.GroupID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "group_id is required")
	}
	return nil
}

// CheckedIn is a successful item of a batch.
type CheckedIn struct {
	Item         RecordItem      `json:"item"`
	AttendanceID id.AttendanceID `json:"attendance_id"`
	OccurrenceID id.OccurrenceID `json:"occurrence_id"`
	SecurityCode string          `json:"security_code"`
	StartAt      time.Time       `json:"start_at"`
}

// ItemFailure is a failed item of a batch. ErrorKind is the domain error code.
type ItemFailure struct {
	Item      RecordItem   `json:"item"`
	ErrorKind dErrors.Code `json:"error_kind"`
	Message   string       `json:"message"`
}

// BatchResult reports each item of a family check-in independently. Replayed
// is true when the result was stored by an earlier submission with the same
// idempotency key.
type BatchResult struct {
	Succeeded []CheckedIn   `json:"succeeded"`
	Failed    []ItemFailure `json:"failed"`
	Replayed  bool          `json:"replayed"`
}

// SubmissionStatus tracks an idempotency key claim.
type SubmissionStatus string

const (
	SubmissionProcessing SubmissionStatus = "processing"
	SubmissionCompleted  SubmissionStatus = "completed"
)

// Submission is the server-side record of one idempotency key.
type Submission struct {
	Key         string           `json:"key"`
	Status      SubmissionStatus `json:"status"`
	Result      *BatchResult     `json:"result,omitempty"`
	ClaimedAt   time.Time        `json:"claimed_at"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// IsStale reports whether a processing claim was abandoned (its holder
// crashed or timed out) and may be taken over.
func (s *Submission) IsStale(now time.Time, ttl time.Duration) bool {
	return s.Status == SubmissionProcessing && now.Sub(s.ClaimedAt) > ttl
}
