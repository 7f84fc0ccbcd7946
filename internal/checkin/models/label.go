package models

import (
	"time"

	id "shepherd/pkg/domain"
)

type LabelType string

const (
	LabelChildTag     LabelType = "child_tag"
	LabelParentTicket LabelType = "parent_ticket"
	LabelAlert        LabelType = "alert"
)

func (t LabelType) IsValid() bool {
	return t == LabelChildTag || t == LabelParentTicket || t == LabelAlert
}

type LabelFormat string

const (
	LabelFormatText LabelFormat = "text"
	LabelFormatZPL  LabelFormat = "zpl"
)

type TemplateStatus string

const (
	TemplateStatusActive  TemplateStatus = "active"
	TemplateStatusRetired TemplateStatus = "retired"
)

// LabelTemplate is immutable per version. Edits publish a new version and
// retire the old one so reprints of earlier runs stay reproducible.
type LabelTemplate struct {
	ID        id.LabelTemplateID `json:"id"`
	Name      string             `json:"name"`
	Type      LabelType          `json:"type"`
	Format    LabelFormat        `json:"format"`
	Content   string             `json:"content"`
	Version   int                `json:"version"`
	Status    TemplateStatus     `json:"status"`
	CreatedAt time.Time          `json:"created_at"`
}

// LabelArtifact is one rendered label ready for the printer.
type LabelArtifact struct {
	Type    LabelType   `json:"type"`
	Format  LabelFormat `json:"format"`
	Content string      `json:"content"`
}
