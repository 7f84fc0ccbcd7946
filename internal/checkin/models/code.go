package models

import (
	"time"

	id "shepherd/pkg/domain"
)

// AttendanceCode is a parent-facing security code. (IssueDate, Code) is unique.
type AttendanceCode struct {
	ID        id.AttendanceCodeID `json:"id"`
	IssueDate Date                `json:"issue_date"`
	Code      string              `json:"code"`
	CreatedAt time.Time           `json:"created_at"`
}
