package label

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"shepherd/internal/checkin/models"
	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
	"shepherd/pkg/platform/sentinel"
	"shepherd/pkg/requestcontext"
)

type TemplateStore interface {
	Publish(ctx context.Context, t *models.LabelTemplate) (*models.LabelTemplate, error)
	ActiveByType(ctx context.Context, labelType models.LabelType) (*models.LabelTemplate, error)
	ListActive(ctx context.Context) ([]*models.LabelTemplate, error)
}

type AttendanceReader interface {
	FindByID(ctx context.Context, attendanceID id.AttendanceID) (*models.Attendance, error)
}

type OccurrenceReader interface {
	FindByID(ctx context.Context, occurrenceID id.OccurrenceID) (*models.Occurrence, error)
}

type Directory interface {
	Person(ctx context.Context, personID id.PersonID) (*models.Person, error)
	Group(ctx context.Context, groupID id.GroupID) (*models.Group, error)
	Location(ctx context.Context, locationID id.LocationID) (*models.Location, error)
	Schedule(ctx context.Context, scheduleID id.ScheduleID) (*models.Schedule, error)
}

// Generator loads an attendance's context and renders it through the active
// templates. It never writes.
type Generator struct {
	templates   TemplateStore
	attendance  AttendanceReader
	occurrences OccurrenceReader
	directory   Directory
	logger      *slog.Logger
}

type Option func(*Generator)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

func New(templates TemplateStore, attendance AttendanceReader, occurrences OccurrenceReader, directory Directory, opts ...Option) *Generator {
	g := &Generator{
		templates:   templates,
		attendance:  attendance,
		occurrences: occurrences,
		directory:   directory,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Render returns the label of labelType for the attendance, or every
// applicable label when labelType is empty: child tag and parent ticket,
// plus an alert label when the person carries an alert note. If any needed
// template is missing nothing is returned.
func (g *Generator) Render(ctx context.Context, attendanceID id.AttendanceID, labelType models.LabelType) ([]models.LabelArtifact, error) {
	if labelType != "" && !labelType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "type must be child_tag, parent_ticket, or alert")
	}
	data, err := g.mergeData(ctx, attendanceID)
	if err != nil {
		return nil, err
	}

	types := []models.LabelType{labelType}
	if labelType == "" {
		types = []models.LabelType{models.LabelChildTag, models.LabelParentTicket}
		if data.AlertNote != "" {
			types = append(types, models.LabelAlert)
		}
	}

	templates := make([]*models.LabelTemplate, 0, len(types))
	for _, t := range types {
		tmpl, err := g.templates.ActiveByType(ctx, t)
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeTemplateNotFound, "no active "+string(t)+" template")
		}
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load label template")
		}
		templates = append(templates, tmpl)
	}

	artifacts := make([]models.LabelArtifact, 0, len(templates))
	for _, tmpl := range templates {
		artifacts = append(artifacts, Render(tmpl, data))
	}
	return artifacts, nil
}

// mergeData gathers names for the attendance. Directory rows that no longer
// exist leave their fields empty.
func (g *Generator) mergeData(ctx context.Context, attendanceID id.AttendanceID) (MergeData, error) {
	att, err := g.attendance.FindByID(ctx, attendanceID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return MergeData{}, dErrors.New(dErrors.CodeNotFound, "attendance not found")
	}
	if err != nil {
		return MergeData{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attendance")
	}
	occ, err := g.occurrences.FindByID(ctx, att.OccurrenceID)
	if err != nil {
		return MergeData{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load occurrence")
	}

	data := MergeData{SecurityCode: att.Code, Date: occ.Date.String()}

	person, err := g.directory.Person(ctx, att.PersonID)
	if err := optional(err); err != nil {
		return MergeData{}, err
	}
	if person != nil {
		data.PersonName = person.DisplayName()
		data.FirstName = person.FirstName
		data.LastName = person.LastName
		data.NickName = person.NickName
		data.AlertNote = strings.TrimSpace(person.AlertNote)
	}
	group, err := g.directory.Group(ctx, occ.GroupID)
	if err := optional(err); err != nil {
		return MergeData{}, err
	}
	if group != nil {
		data.GroupName = group.Name
	}
	if !occ.LocationID.IsNil() {
		location, err := g.directory.Location(ctx, occ.LocationID)
		if err := optional(err); err != nil {
			return MergeData{}, err
		}
		if location != nil {
			data.LocationName = location.Name
		}
	}
	if !occ.ScheduleID.IsNil() {
		schedule, err := g.directory.Schedule(ctx, occ.ScheduleID)
		if err := optional(err); err != nil {
			return MergeData{}, err
		}
		if schedule != nil {
			data.ScheduleName = schedule.Name
		}
	}
	return data, nil
}

func optional(err error) error {
	if err == nil || errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load label data")
}

// PublishRequest is a new template version.
type PublishRequest struct {
	Name    string
	Type    models.LabelType
	Format  models.LabelFormat
	Content string
}

// Publish stores a new version of a template and makes it the active one
// for its type. Earlier versions are retired, never edited.
func (g *Generator) Publish(ctx context.Context, req PublishRequest) (*models.LabelTemplate, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "template name is required")
	}
	if !req.Type.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "type must be child_tag, parent_ticket, or alert")
	}
	if req.Format != models.LabelFormatText && req.Format != models.LabelFormatZPL {
		return nil, dErrors.New(dErrors.CodeValidation, "format must be text or zpl")
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "template content is required")
	}
	published, err := g.templates.Publish(ctx, &models.LabelTemplate{
		ID:        id.LabelTemplateID(uuid.New()),
		Name:      strings.TrimSpace(req.Name),
		Type:      req.Type,
		Format:    req.Format,
		Content:   req.Content,
		CreatedAt: requestcontext.Now(ctx),
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to publish label template")
	}
	if g.logger != nil {
		g.logger.InfoContext(ctx, "label template published",
			"template_id", published.ID.String(),
			"type", string(published.Type),
			"version", published.Version,
		)
	}
	return published, nil
}

// Templates lists the active template of each type.
func (g *Generator) Templates(ctx context.Context) ([]*models.LabelTemplate, error) {
	templates, err := g.templates.ListActive(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list label templates")
	}
	return templates, nil
}
