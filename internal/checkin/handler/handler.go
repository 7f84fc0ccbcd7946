// Package handler exposes the check-in engine over HTTP. Kiosk routes need a
// device bearer token; override, cancellation, pickup and template routes
// also need a supervisor token.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"shepherd/internal/checkin/attendance"
	"shepherd/internal/checkin/checkout"
	"shepherd/internal/checkin/label"
	"shepherd/internal/checkin/models"
	"shepherd/internal/checkin/search"
	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
	"shepherd/pkg/platform/httputil"
	"shepherd/pkg/requestcontext"
)

// IdempotencyKeyHeader names the header kiosks send with batch check-ins.
const IdempotencyKeyHeader = "Idempotency-Key"

type SearchService interface {
	Search(ctx context.Context, raw string, mode search.Mode) ([]models.FamilyResult, error)
}

type OpportunityLister interface {
	List(ctx context.Context, familyID id.FamilyID, scheduleID id.ScheduleID) ([]attendance.Opportunity, error)
}

type Recorder interface {
	Record(ctx context.Context, req attendance.RecordRequest) (*models.BatchResult, error)
	Get(ctx context.Context, attendanceID id.AttendanceID) (*models.Attendance, error)
	Reverse(ctx context.Context, attendanceID id.AttendanceID) (*models.Attendance, error)
}

type Authorizer interface {
	Checkout(ctx context.Context, attendanceID id.AttendanceID, claim models.PickupClaim) (*checkout.CheckoutResult, error)
	ApproveOverride(ctx context.Context, attendanceID id.AttendanceID, supervisorID id.PersonID) (*checkout.CheckoutResult, error)
	Deny(ctx context.Context, attendanceID id.AttendanceID, supervisorID id.PersonID) (*checkout.CheckoutResult, error)
	Logs(ctx context.Context, attendanceID id.AttendanceID) ([]*models.PickupLog, error)
	Grant(ctx context.Context, req checkout.GrantRequest) (*models.AuthorizedPickup, error)
	Revoke(ctx context.Context, pickupID id.PickupID) (*models.AuthorizedPickup, error)
	ListForChild(ctx context.Context, childID id.PersonID, includeRevoked bool) ([]*models.AuthorizedPickup, error)
}

type LabelService interface {
	Render(ctx context.Context, attendanceID id.AttendanceID, labelType models.LabelType) ([]models.LabelArtifact, error)
	Publish(ctx context.Context, req label.PublishRequest) (*models.LabelTemplate, error)
	Templates(ctx context.Context) ([]*models.LabelTemplate, error)
}

type OccurrenceService interface {
	Cancel(ctx context.Context, occurrenceID id.OccurrenceID) (*models.Occurrence, error)
}

// Services groups the collaborators the handler dispatches to.
type Services struct {
	Search        SearchService
	Opportunities OpportunityLister
	Recorder      Recorder
	Authorizer    Authorizer
	Labels        LabelService
	Occurrences   OccurrenceService
}

type Handler struct {
	svc    Services
	logger *slog.Logger
}

func New(svc Services, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// Register mounts the check-in routes. requireDevice authenticates the kiosk;
// requireSupervisor additionally authenticates the staff member at it.
func (h *Handler) Register(r chi.Router, requireDevice, requireSupervisor func(http.Handler) http.Handler) {
	r.Route("/checkin", func(r chi.Router) {
		r.Use(requireDevice)

		r.Get("/search", h.HandleSearch)
		r.Get("/families/{familyID}/opportunities", h.HandleOpportunities)
		r.Post("/attendance", h.HandleRecord)
		r.Get("/attendance/{attendanceID}", h.HandleGetAttendance)
		r.Post("/attendance/{attendanceID}/checkout", h.HandleCheckout)
		r.Get("/attendance/{attendanceID}/labels", h.HandleLabels)
		r.Post("/attendance/{attendanceID}/reverse", h.HandleReverse)
		r.Get("/attendance/{attendanceID}/pickup-logs", h.HandlePickupLogs)

		r.Group(func(r chi.Router) {
			r.Use(requireSupervisor)
			r.Post("/attendance/{attendanceID}/override/approve", h.HandleApproveOverride)
			r.Post("/attendance/{attendanceID}/override/deny", h.HandleDenyOverride)
			r.Post("/occurrences/{occurrenceID}/cancel", h.HandleCancelOccurrence)
			r.Post("/pickups", h.HandleGrantPickup)
			r.Get("/children/{personID}/pickups", h.HandleListPickups)
			r.Post("/pickups/{pickupID}/revoke", h.HandleRevokePickup)
			r.Get("/label-templates", h.HandleListTemplates)
			r.Post("/label-templates", h.HandlePublishTemplate)
		})
	})
}

func (h *Handler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	mode, err := search.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	families, err := h.svc.Search.Search(ctx, r.URL.Query().Get("q"), mode)
	if err != nil {
		h.fail(ctx, w, err, "search failed")
		return
	}
	if families == nil {
		families = []models.FamilyResult{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"families": families})
}

func (h *Handler) HandleOpportunities(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	familyID, err := id.ParseFamilyID(chi.URLParam(r, "familyID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	var scheduleID id.ScheduleID
	if raw := r.URL.Query().Get("schedule_id"); raw != "" {
		if scheduleID, err = id.ParseScheduleID(raw); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	list, err := h.svc.Opportunities.List(ctx, familyID, scheduleID)
	if err != nil {
		h.fail(ctx, w, err, "failed to list opportunities")
		return
	}
	if list == nil {
		list = []attendance.Opportunity{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"opportunities": list})
}

func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[RecordRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	result, err := h.svc.Recorder.Record(ctx, attendance.RecordRequest{
		IdempotencyKey: r.Header.Get(IdempotencyKeyHeader),
		Items:          req.Items,
		CapturedAt:     req.capturedAt(),
	})
	if err != nil {
		h.fail(ctx, w, err, "batch check-in failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandleGetAttendance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	attendanceID, ok := attendanceParam(w, r)
	if !ok {
		return
	}
	att, err := h.svc.Recorder.Get(ctx, attendanceID)
	if err != nil {
		h.fail(ctx, w, err, "failed to load attendance")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, att)
}

func (h *Handler) HandleReverse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	attendanceID, ok := attendanceParam(w, r)
	if !ok {
		return
	}
	att, err := h.svc.Recorder.Reverse(ctx, attendanceID)
	if err != nil {
		h.fail(ctx, w, err, "failed to reverse attendance")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, att)
}

// HandleCheckout answers 200 when the pickup was authorized and 202 when the
// child is held for supervisor approval.
func (h *Handler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	attendanceID, ok := attendanceParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[CheckoutRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	result, err := h.svc.Authorizer.Checkout(ctx, attendanceID, req.Claim())
	if err != nil {
		h.fail(ctx, w, err, "checkout failed")
		return
	}
	status := http.StatusOK
	if result.Outcome == models.PickupOutcomePending {
		status = http.StatusAccepted
	}
	httputil.WriteJSON(w, status, result)
}

func (h *Handler) HandleApproveOverride(w http.ResponseWriter, r *http.Request) {
	h.resolveOverride(w, r, h.svc.Authorizer.ApproveOverride)
}

func (h *Handler) HandleDenyOverride(w http.ResponseWriter, r *http.Request) {
	h.resolveOverride(w, r, h.svc.Authorizer.Deny)
}

func (h *Handler) resolveOverride(w http.ResponseWriter, r *http.Request,
	resolve func(context.Context, id.AttendanceID, id.PersonID) (*checkout.CheckoutResult, error)) {
	ctx := r.Context()
	attendanceID, ok := attendanceParam(w, r)
	if !ok {
		return
	}
	result, err := resolve(ctx, attendanceID, requestcontext.SupervisorID(ctx))
	if err != nil {
		h.fail(ctx, w, err, "override failed")
		return
	}
	h.logger.InfoContext(ctx, "supervisor override resolved",
		"request_id", requestcontext.RequestID(ctx),
		"attendance_id", attendanceID.String(),
		"supervisor_id", requestcontext.SupervisorID(ctx).String(),
		"outcome", string(result.Outcome),
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) HandlePickupLogs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	attendanceID, ok := attendanceParam(w, r)
	if !ok {
		return
	}
	logs, err := h.svc.Authorizer.Logs(ctx, attendanceID)
	if err != nil {
		h.fail(ctx, w, err, "failed to list pickup logs")
		return
	}
	if logs == nil {
		logs = []*models.PickupLog{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"pickup_logs": logs})
}

func (h *Handler) HandleLabels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	attendanceID, ok := attendanceParam(w, r)
	if !ok {
		return
	}
	labelType := models.LabelType(r.URL.Query().Get("type"))
	if labelType != "" && !labelType.IsValid() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "type must be child_tag, parent_ticket, or alert"))
		return
	}
	labels, err := h.svc.Labels.Render(ctx, attendanceID, labelType)
	if err != nil {
		h.fail(ctx, w, err, "failed to render labels")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"labels": labels})
}

func (h *Handler) HandleCancelOccurrence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	occurrenceID, err := id.ParseOccurrenceID(chi.URLParam(r, "occurrenceID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	occ, err := h.svc.Occurrences.Cancel(ctx, occurrenceID)
	if err != nil {
		h.fail(ctx, w, err, "failed to cancel occurrence")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, occ)
}

func (h *Handler) HandleGrantPickup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[GrantPickupRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	pickup, err := h.svc.Authorizer.Grant(ctx, req.toGrant())
	if err != nil {
		h.fail(ctx, w, err, "failed to grant pickup")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, pickup)
}

func (h *Handler) HandleListPickups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	childID, err := id.ParsePersonID(chi.URLParam(r, "personID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	includeRevoked := false
	if raw := r.URL.Query().Get("include_revoked"); raw != "" {
		if includeRevoked, err = strconv.ParseBool(raw); err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "include_revoked must be a boolean"))
			return
		}
	}
	pickups, err := h.svc.Authorizer.ListForChild(ctx, childID, includeRevoked)
	if err != nil {
		h.fail(ctx, w, err, "failed to list pickups")
		return
	}
	if pickups == nil {
		pickups = []*models.AuthorizedPickup{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"pickups": pickups})
}

func (h *Handler) HandleRevokePickup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	pickupID, err := id.ParsePickupID(chi.URLParam(r, "pickupID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	pickup, err := h.svc.Authorizer.Revoke(ctx, pickupID)
	if err != nil {
		h.fail(ctx, w, err, "failed to revoke pickup")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, pickup)
}

func (h *Handler) HandleListTemplates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	templates, err := h.svc.Labels.Templates(ctx)
	if err != nil {
		h.fail(ctx, w, err, "failed to list label templates")
		return
	}
	if templates == nil {
		templates = []*models.LabelTemplate{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

func (h *Handler) HandlePublishTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, ok := httputil.DecodeAndPrepare[PublishTemplateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}
	tmpl, err := h.svc.Labels.Publish(ctx, label.PublishRequest{
		Name:    req.Name,
		Type:    req.Type,
		Format:  req.Format,
		Content: req.Content,
	})
	if err != nil {
		h.fail(ctx, w, err, "failed to publish label template")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, tmpl)
}

func attendanceParam(w http.ResponseWriter, r *http.Request) (id.AttendanceID, bool) {
	attendanceID, err := id.ParseAttendanceID(chi.URLParam(r, "attendanceID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.AttendanceID{}, false
	}
	return attendanceID, true
}

// fail logs err at a level matching its HTTP status and writes it.
func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	attrs := []any{
		"request_id", requestcontext.RequestID(ctx),
		"device_id", requestcontext.DeviceID(ctx).String(),
		"error", err,
	}
	if dErrors.ToHTTPStatus(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg, attrs...)
	} else {
		h.logger.WarnContext(ctx, msg, attrs...)
	}
	httputil.WriteError(w, err)
}
