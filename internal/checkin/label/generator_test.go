package label

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"shepherd/internal/checkin/models"
	attendancestore "shepherd/internal/checkin/store/attendance"
	directorystore "shepherd/internal/checkin/store/directory"
	occurrencestore "shepherd/internal/checkin/store/occurrence"
	templatestore "shepherd/internal/checkin/store/template"
	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
	"shepherd/pkg/requestcontext"
)

type GeneratorSuite struct {
	suite.Suite
	ctx       context.Context
	templates *templatestore.InMemory
	directory *directorystore.InMemory
	generator *Generator
	child     models.Person
	att       *models.Attendance
}

func TestGeneratorSuite(t *testing.T) {
	suite.Run(t, new(GeneratorSuite))
}

func (s *GeneratorSuite) SetupTest() {
	now := time.Date(2024, 6, 9, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), now)
	s.templates = templatestore.NewInMemory()
	s.directory = directorystore.NewInMemory()
	occurrences := occurrencestore.NewInMemory()
	attendance := attendancestore.NewInMemory()
	s.generator = New(s.templates, attendance, occurrences, s.directory)

	group := models.Group{ID: id.GroupID(uuid.New()), Name: "Preschool"}
	location := models.Location{ID: id.LocationID(uuid.New()), Name: "Room 104"}
	s.child = models.Person{ID: id.PersonID(uuid.New()), FirstName: "Noah", LastName: "Decker"}
	s.Require().NoError(s.directory.PutGroup(s.ctx, group))
	s.Require().NoError(s.directory.PutLocation(s.ctx, location))
	s.Require().NoError(s.directory.PutPerson(s.ctx, s.child))

	occ, err := models.NewOccurrence(id.OccurrenceID(uuid.New()), models.OccurrenceKey{
		GroupID:    group.ID,
		LocationID: location.ID,
		Date:       models.NewDate(2024, 6, 9),
	}, now)
	s.Require().NoError(err)
	s.Require().NoError(occurrences.Create(s.ctx, occ))

	s.att, err = models.NewAttendance(id.AttendanceID(uuid.New()), occ, s.child.ID, id.DeviceID{}, id.CampusID{},
		&models.AttendanceCode{ID: id.AttendanceCodeID(uuid.New()), Code: "K7P"}, now)
	s.Require().NoError(err)
	s.Require().NoError(attendance.Create(s.ctx, s.att))
}

func (s *GeneratorSuite) publish(labelType models.LabelType, content string) {
	_, err := s.generator.Publish(s.ctx, PublishRequest{Name: "kiosk", Type: labelType, Format: models.LabelFormatText, Content: content})
	s.Require().NoError(err)
}

func (s *GeneratorSuite) TestRendersRequestedType() {
	s.publish(models.LabelChildTag, "{{ PersonName }} {{ GroupName }} {{ LocationName }} {{ SecurityCode }} {{ Date }}")

	artifacts, err := s.generator.Render(s.ctx, s.att.ID, models.LabelChildTag)
	s.Require().NoError(err)
	s.Require().Len(artifacts, 1)
	s.Equal("Noah Decker Preschool Room 104 K7P 2024-06-09", artifacts[0].Content)
}

func (s *GeneratorSuite) TestAllApplicableWithoutAlert() {
	s.publish(models.LabelChildTag, "tag {{ SecurityCode }}")
	s.publish(models.LabelParentTicket, "ticket {{ SecurityCode }}")
	s.publish(models.LabelAlert, "alert {{ AlertNote }}")

	artifacts, err := s.generator.Render(s.ctx, s.att.ID, "")
	s.Require().NoError(err)
	s.Require().Len(artifacts, 2)
	s.Equal(models.LabelChildTag, artifacts[0].Type)
	s.Equal(models.LabelParentTicket, artifacts[1].Type)
}

func (s *GeneratorSuite) TestAllApplicableWithAlert() {
	s.child.AlertNote = "Peanut allergy"
	s.Require().NoError(s.directory.PutPerson(s.ctx, s.child))
	s.publish(models.LabelChildTag, "tag")
	s.publish(models.LabelParentTicket, "ticket")
	s.publish(models.LabelAlert, "alert {{ AlertNote }}")

	artifacts, err := s.generator.Render(s.ctx, s.att.ID, "")
	s.Require().NoError(err)
	s.Require().Len(artifacts, 3)
	s.Equal("alert Peanut allergy", artifacts[2].Content)
}

func (s *GeneratorSuite) TestMissingTemplateReturnsNothing() {
	s.publish(models.LabelChildTag, "tag")

	artifacts, err := s.generator.Render(s.ctx, s.att.ID, "")
	s.True(dErrors.HasCode(err, dErrors.CodeTemplateNotFound))
	s.Nil(artifacts)
}

func (s *GeneratorSuite) TestNewVersionReplacesActive() {
	s.publish(models.LabelChildTag, "v1")
	s.publish(models.LabelChildTag, "v2")

	artifacts, err := s.generator.Render(s.ctx, s.att.ID, models.LabelChildTag)
	s.Require().NoError(err)
	s.Equal("v2", artifacts[0].Content)

	active, err := s.generator.Templates(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(2, active[0].Version)
}

func (s *GeneratorSuite) TestUnknownAttendance() {
	_, err := s.generator.Render(s.ctx, id.AttendanceID(uuid.New()), models.LabelChildTag)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *GeneratorSuite) TestInvalidType() {
	_, err := s.generator.Render(s.ctx, s.att.ID, "wristband")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *GeneratorSuite) TestSeedDefaultsFillsGaps() {
	s.publish(models.LabelChildTag, "custom")

	n, err := s.generator.SeedDefaults(s.ctx)
	s.Require().NoError(err)
	s.Equal(2, n)

	artifacts, err := s.generator.Render(s.ctx, s.att.ID, "")
	s.Require().NoError(err)
	s.Require().Len(artifacts, 2)
	s.Equal("custom", artifacts[0].Content)
	s.Contains(artifacts[1].Content, "CODE K7P")

	n, err = s.generator.SeedDefaults(s.ctx)
	s.Require().NoError(err)
	s.Zero(n)
}
