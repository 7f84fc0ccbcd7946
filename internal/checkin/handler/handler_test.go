package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"shepherd/internal/checkin/attendance"
	"shepherd/internal/checkin/checkout"
	"shepherd/internal/checkin/handler/mocks"
	"shepherd/internal/checkin/label"
	"shepherd/internal/checkin/models"
	"shepherd/internal/checkin/search"
	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
	"shepherd/pkg/requestcontext"
	"shepherd/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	search        *mocks.MockSearchService
	opportunities *mocks.MockOpportunityLister
	recorder      *mocks.MockRecorder
	authorizer    *mocks.MockAuthorizer
	labels        *mocks.MockLabelService
	occurrences   *mocks.MockOccurrenceService
	router        http.Handler
	device        id.DeviceID
	supervisor    id.PersonID
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.search = mocks.NewMockSearchService(ctrl)
	s.opportunities = mocks.NewMockOpportunityLister(ctrl)
	s.recorder = mocks.NewMockRecorder(ctrl)
	s.authorizer = mocks.NewMockAuthorizer(ctrl)
	s.labels = mocks.NewMockLabelService(ctrl)
	s.occurrences = mocks.NewMockOccurrenceService(ctrl)
	s.device = id.DeviceID(uuid.New())
	s.supervisor = id.PersonID(uuid.New())

	h := New(Services{
		Search:        s.search,
		Opportunities: s.opportunities,
		Recorder:      s.recorder,
		Authorizer:    s.authorizer,
		Labels:        s.labels,
		Occurrences:   s.occurrences,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := chi.NewRouter()
	h.Register(r, s.fakeDevice, s.fakeSupervisor)
	s.router = r
}

func (s *HandlerSuite) fakeDevice(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, testutil.WithDevice(r, s.device.String(), ""))
	})
}

// fakeSupervisor admits requests carrying the supervisor header.
func (s *HandlerSuite) fakeSupervisor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Supervisor-Token") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, testutil.WithSupervisor(r, s.supervisor.String()))
	})
}

func (s *HandlerSuite) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) errorCode(rec *httptest.ResponseRecorder) string {
	var body map[string]string
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func (s *HandlerSuite) TestSearch() {
	s.Run("passes query and mode", func() {
		family := models.FamilyResult{Family: models.Family{ID: id.FamilyID(uuid.New()), Name: "Smith"}}
		s.search.EXPECT().Search(gomock.Any(), "5551234", search.ModePhone).
			Return([]models.FamilyResult{family}, nil)

		rec := s.serve(testutil.NewRequest(s.T(), http.MethodGet, "/checkin/search?q=5551234&mode=phone"))

		s.Equal(http.StatusOK, rec.Code)
		var body struct {
			Families []models.FamilyResult `json:"families"`
		}
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
		s.Require().Len(body.Families, 1)
		s.Equal("Smith", body.Families[0].Family.Name)
	})

	s.Run("unknown mode is rejected before searching", func() {
		rec := s.serve(testutil.NewRequest(s.T(), http.MethodGet, "/checkin/search?q=smith&mode=email"))
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("no match is an empty list", func() {
		s.search.EXPECT().Search(gomock.Any(), "zz", search.ModeAuto).Return(nil, nil)
		rec := s.serve(testutil.NewRequest(s.T(), http.MethodGet, "/checkin/search?q=zz"))
		s.Equal(http.StatusOK, rec.Code)
		s.JSONEq(`{"families":[]}`, rec.Body.String())
	})
}

func (s *HandlerSuite) TestOpportunities() {
	familyID := id.FamilyID(uuid.New())
	scheduleID := id.ScheduleID(uuid.New())

	s.Run("forwards the schedule filter", func() {
		s.opportunities.EXPECT().List(gomock.Any(), familyID, scheduleID).
			Return([]attendance.Opportunity{{PersonName: "Ava"}}, nil)
		rec := s.serve(testutil.NewRequest(s.T(), http.MethodGet,
			"/checkin/families/"+familyID.String()+"/opportunities?schedule_id="+scheduleID.String()))
		s.Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), "Ava")
	})

	s.Run("bad family id", func() {
		rec := s.serve(testutil.NewRequest(s.T(), http.MethodGet, "/checkin/families/nope/opportunities"))
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestRecord() {
	item := models.RecordItem{PersonID: id.PersonID(uuid.New()), GroupID: id.GroupID(uuid.New())}

	s.Run("forwards the idempotency key", func() {
		s.recorder.EXPECT().Record(gomock.Any(), attendance.RecordRequest{
			IdempotencyKey: "kiosk-7-0001",
			Items:          []models.RecordItem{item},
		}).Return(&models.BatchResult{Succeeded: []models.CheckedIn{{Item: item, SecurityCode: "K7P"}}}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/checkin/attendance", map[string]any{"items": []models.RecordItem{item}})
		req.Header.Set(IdempotencyKeyHeader, "kiosk-7-0001")
		rec := s.serve(req)

		s.Equal(http.StatusOK, rec.Code)
		var result models.BatchResult
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &result))
		s.Require().Len(result.Succeeded, 1)
		s.Equal("K7P", result.Succeeded[0].SecurityCode)
	})

	s.Run("empty batch never reaches the recorder", func() {
		rec := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/checkin/attendance", map[string]any{"items": []models.RecordItem{}}))
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("item without group", func() {
		rec := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/checkin/attendance",
			map[string]any{"items": []models.RecordItem{{PersonID: item.PersonID}}}))
		s.Equal(http.StatusBadRequest, rec.Code)
		s.Equal(string(dErrors.CodeValidation), s.errorCode(rec))
	})

	s.Run("in-flight submission", func() {
		s.recorder.EXPECT().Record(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeSubmissionInProgress, "submission is still being processed"))
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/checkin/attendance", map[string]any{"items": []models.RecordItem{item}})
		req.Header.Set(IdempotencyKeyHeader, "kiosk-7-0002")
		rec := s.serve(req)
		s.Equal(http.StatusConflict, rec.Code)
		s.Equal(string(dErrors.CodeSubmissionInProgress), s.errorCode(rec))
	})
}

func (s *HandlerSuite) TestCheckout() {
	attendanceID := id.AttendanceID(uuid.New())
	path := "/checkin/attendance/" + attendanceID.String() + "/checkout"
	claim := models.PickupClaim{Name: "Ann Smith", Phone: "555-0100"}

	s.Run("authorized", func() {
		s.authorizer.EXPECT().Checkout(gomock.Any(), attendanceID, claim).
			Return(&checkout.CheckoutResult{Outcome: models.PickupOutcomeAuthorized}, nil)
		rec := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, path, map[string]string{"name": " Ann Smith ", "phone": "555-0100"}))
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("held for supervisor", func() {
		s.authorizer.EXPECT().Checkout(gomock.Any(), attendanceID, claim).
			Return(&checkout.CheckoutResult{Outcome: models.PickupOutcomePending}, nil)
		rec := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, path, map[string]string{"name": "Ann Smith", "phone": "555-0100"}))
		s.Equal(http.StatusAccepted, rec.Code)
		s.Contains(rec.Body.String(), string(models.PickupOutcomePending))
	})

	s.Run("claim needs identity", func() {
		rec := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, path, map[string]string{"name": "Ann"}))
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown fields are rejected", func() {
		rec := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, path, map[string]string{"name": "Ann", "phone": "1", "pin": "1234"}))
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestOverrideNeedsSupervisor() {
	attendanceID := id.AttendanceID(uuid.New())
	path := "/checkin/attendance/" + attendanceID.String() + "/override/approve"

	s.Run("without token", func() {
		rec := s.serve(testutil.NewRequest(s.T(), http.MethodPost, path))
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("with token the supervisor is passed through", func() {
		s.authorizer.EXPECT().ApproveOverride(gomock.Any(), attendanceID, s.supervisor).
			Return(&checkout.CheckoutResult{Outcome: models.PickupOutcomeOverridden}, nil)
		req := testutil.NewRequest(s.T(), http.MethodPost, path)
		req.Header.Set("X-Supervisor-Token", "token")
		rec := s.serve(req)
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("deny without pending checkout", func() {
		s.authorizer.EXPECT().Deny(gomock.Any(), attendanceID, s.supervisor).
			Return(nil, dErrors.New(dErrors.CodeConflict, "no pending checkout"))
		req := testutil.NewRequest(s.T(), http.MethodPost, "/checkin/attendance/"+attendanceID.String()+"/override/deny")
		req.Header.Set("X-Supervisor-Token", "token")
		rec := s.serve(req)
		s.Equal(http.StatusConflict, rec.Code)
	})
}

func (s *HandlerSuite) TestLabels() {
	attendanceID := id.AttendanceID(uuid.New())
	path := "/checkin/attendance/" + attendanceID.String() + "/labels"

	s.Run("all applicable", func() {
		s.labels.EXPECT().Render(gomock.Any(), attendanceID, models.LabelType("")).
			Return([]models.LabelArtifact{{Type: models.LabelChildTag, Format: models.LabelFormatText, Content: "Ava K7P"}}, nil)
		rec := s.serve(testutil.NewRequest(s.T(), http.MethodGet, path))
		s.Equal(http.StatusOK, rec.Code)
		s.Contains(rec.Body.String(), "Ava K7P")
	})

	s.Run("unknown type", func() {
		rec := s.serve(testutil.NewRequest(s.T(), http.MethodGet, path+"?type=badge"))
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("missing template", func() {
		s.labels.EXPECT().Render(gomock.Any(), attendanceID, models.LabelAlert).
			Return(nil, dErrors.New(dErrors.CodeTemplateNotFound, "no active alert template"))
		rec := s.serve(testutil.NewRequest(s.T(), http.MethodGet, path+"?type=alert"))
		s.Equal(http.StatusNotFound, rec.Code)
		s.Equal(string(dErrors.CodeTemplateNotFound), s.errorCode(rec))
	})
}

func (s *HandlerSuite) TestReverse() {
	attendanceID := id.AttendanceID(uuid.New())
	s.recorder.EXPECT().Reverse(gomock.Any(), attendanceID).
		Return(&models.Attendance{ID: attendanceID, State: models.AttendanceReversed}, nil)
	rec := s.serve(testutil.NewRequest(s.T(), http.MethodPost, "/checkin/attendance/"+attendanceID.String()+"/reverse"))
	s.Equal(http.StatusOK, rec.Code)
}

func (s *HandlerSuite) TestPickups() {
	child := id.PersonID(uuid.New())

	s.Run("grant", func() {
		from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		until := from.Add(30 * 24 * time.Hour)
		s.authorizer.EXPECT().Grant(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ any, req checkout.GrantRequest) (*models.AuthorizedPickup, error) {
				s.Equal(child, req.ChildID)
				s.Equal(models.PickupLevelScheduled, req.Level)
				s.Equal("Ann Smith", req.Adult.Name)
				s.True(until.Equal(*req.ValidUntil))
				return &models.AuthorizedPickup{ID: id.PickupID(uuid.New()), ChildID: child}, nil
			})
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/checkin/pickups", map[string]any{
			"child_id":     child.String(),
			"name":         "Ann Smith",
			"phone":        "555-0100",
			"relationship": "aunt",
			"level":        "scheduled",
			"valid_from":   from,
			"valid_until":  until,
		})
		req.Header.Set("X-Supervisor-Token", "token")
		rec := s.serve(req)
		s.Equal(http.StatusCreated, rec.Code)
	})

	s.Run("grant rejects unknown level", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/checkin/pickups", map[string]any{
			"child_id": child.String(), "name": "Ann", "phone": "1", "level": "sometimes",
		})
		req.Header.Set("X-Supervisor-Token", "token")
		rec := s.serve(req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("list with revoked", func() {
		s.authorizer.EXPECT().ListForChild(gomock.Any(), child, true).Return(nil, nil)
		req := testutil.NewRequest(s.T(), http.MethodGet, "/checkin/children/"+child.String()+"/pickups?include_revoked=true")
		req.Header.Set("X-Supervisor-Token", "token")
		rec := s.serve(req)
		s.Equal(http.StatusOK, rec.Code)
		s.JSONEq(`{"pickups":[]}`, rec.Body.String())
	})

	s.Run("revoke", func() {
		pickupID := id.PickupID(uuid.New())
		s.authorizer.EXPECT().Revoke(gomock.Any(), pickupID).
			Return(&models.AuthorizedPickup{ID: pickupID, Status: models.PickupStatusRevoked}, nil)
		req := testutil.NewRequest(s.T(), http.MethodPost, "/checkin/pickups/"+pickupID.String()+"/revoke")
		req.Header.Set("X-Supervisor-Token", "token")
		rec := s.serve(req)
		s.Equal(http.StatusOK, rec.Code)
	})
}

func (s *HandlerSuite) TestCancelOccurrence() {
	occurrenceID := id.OccurrenceID(uuid.New())
	s.occurrences.EXPECT().Cancel(gomock.Any(), occurrenceID).
		Return(&models.Occurrence{ID: occurrenceID, Status: models.OccurrenceStatusCancelled}, nil)
	req := testutil.NewRequest(s.T(), http.MethodPost, "/checkin/occurrences/"+occurrenceID.String()+"/cancel")
	req.Header.Set("X-Supervisor-Token", "token")
	rec := s.serve(req)
	s.Equal(http.StatusOK, rec.Code)
}

func (s *HandlerSuite) TestPublishTemplate() {
	s.labels.EXPECT().Publish(gomock.Any(), label.PublishRequest{
		Name: "Nursery tag", Type: models.LabelChildTag, Format: models.LabelFormatZPL, Content: "^XA^FD{{ FirstName }}^FS^XZ",
	}).Return(&models.LabelTemplate{Version: 2}, nil)
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/checkin/label-templates", map[string]string{
		"name": "Nursery tag", "type": "child_tag", "format": "zpl", "content": "^XA^FD{{ FirstName }}^FS^XZ",
	})
	req.Header.Set("X-Supervisor-Token", "token")
	rec := s.serve(req)
	s.Equal(http.StatusCreated, rec.Code)
}

func (s *HandlerSuite) TestDeviceReachesServices() {
	var seen id.DeviceID
	s.search.EXPECT().Search(gomock.Any(), "smith", search.ModeAuto).
		DoAndReturn(func(ctx context.Context, _ string, _ search.Mode) ([]models.FamilyResult, error) {
			seen = requestcontext.DeviceID(ctx)
			return nil, nil
		})
	rec := s.serve(testutil.NewRequest(s.T(), http.MethodGet, "/checkin/search?q=smith"))
	s.Equal(http.StatusOK, rec.Code)
	s.Equal(s.device, seen)
}
