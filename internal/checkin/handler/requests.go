package handler

import (
	"strings"
	"time"

	"shepherd/internal/checkin/checkout"
	"shepherd/internal/checkin/models"
	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
)

type RecordRequest struct {
	Items      []models.RecordItem `json:"items" validate:"required,min=1,max=50"`
	CapturedAt *time.Time          `json:"captured_at,omitempty"`
}

func (r *RecordRequest) capturedAt() time.Time {
	if r.CapturedAt == nil {
		return time.Time{}
	}
	return *r.CapturedAt
}

func (r *RecordRequest) Validate() error {
	for _, item := range r.Items {
		if err := item.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// CheckoutRequest identifies the adult collecting the child, either by
// person id or by name and phone.
type CheckoutRequest struct {
	PersonID id.PersonID `json:"person_id"`
	Name     string      `json:"name" validate:"max=200"`
	Phone    string      `json:"phone" validate:"max=40"`
}

func (r *CheckoutRequest) Claim() models.PickupClaim {
	return models.PickupClaim{
		PersonID: r.PersonID,
		Name:     strings.TrimSpace(r.Name),
		Phone:    strings.TrimSpace(r.Phone),
	}
}

func (r *CheckoutRequest) Validate() error {
	return r.Claim().Validate()
}

type GrantPickupRequest struct {
	ChildID       id.PersonID        `json:"child_id"`
	AdultPersonID id.PersonID        `json:"adult_person_id"`
	Name          string             `json:"name" validate:"max=200"`
	Phone         string             `json:"phone" validate:"max=40"`
	Relationship  string             `json:"relationship" validate:"max=100"`
	Level         models.PickupLevel `json:"level" validate:"required,oneof=full scheduled restricted"`
	CustodyNotes  string             `json:"custody_notes" validate:"max=2000"`
	ValidFrom     *time.Time         `json:"valid_from"`
	ValidUntil    *time.Time         `json:"valid_until"`
}

func (r *GrantPickupRequest) Validate() error {
	if r.ChildID.IsNil() {
		return dErrors.New(dErrors.CodeValidation, "child_id is required")
	}
	if r.ValidFrom != nil && r.ValidUntil != nil && r.ValidUntil.Before(*r.ValidFrom) {
		return dErrors.New(dErrors.CodeValidation, "valid_until must not be before valid_from")
	}
	return nil
}

func (r *GrantPickupRequest) toGrant() checkout.GrantRequest {
	return checkout.GrantRequest{
		ChildID: r.ChildID,
		Adult: models.PickupClaim{
			PersonID: r.AdultPersonID,
			Name:     strings.TrimSpace(r.Name),
			Phone:    strings.TrimSpace(r.Phone),
		},
		Relationship: strings.TrimSpace(r.Relationship),
		Level:        r.Level,
		CustodyNotes: r.CustodyNotes,
		ValidFrom:    r.ValidFrom,
		ValidUntil:   r.ValidUntil,
	}
}

type PublishTemplateRequest struct {
	Name    string             `json:"name" validate:"required,max=200"`
	Type    models.LabelType   `json:"type" validate:"required,oneof=child_tag parent_ticket alert"`
	Format  models.LabelFormat `json:"format" validate:"required,oneof=text zpl"`
	Content string             `json:"content" validate:"required,max=65536"`
}
