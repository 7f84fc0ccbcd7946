// Package handler serves device administration for supervisors.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"shepherd/internal/device"
	id "shepherd/pkg/domain"
	"shepherd/pkg/platform/httputil"
	"shepherd/pkg/requestcontext"
)

type Service interface {
	Register(ctx context.Context, req device.RegisterRequest) (*device.Device, string, error)
	Get(ctx context.Context, deviceID id.DeviceID) (*device.Device, error)
	RotateToken(ctx context.Context, deviceID id.DeviceID) (*device.Device, string, error)
	Disable(ctx context.Context, deviceID id.DeviceID) (*device.Device, error)
}

type Handler struct {
	devices Service
	logger  *slog.Logger
}

func New(devices Service, logger *slog.Logger) *Handler {
	return &Handler{devices: devices, logger: logger}
}

type RegisterDeviceRequest struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Kind        device.Kind     `json:"kind" validate:"required,oneof=kiosk printer"`
	CampusID    id.CampusID     `json:"campus_id"`
	LocationIDs []id.LocationID `json:"location_ids" validate:"max=100"`
}

// TokenResponse is the only response that carries the device token.
type TokenResponse struct {
	Device *device.Device `json:"device"`
	Token  string         `json:"token"`
}

func (h *Handler) Register(r chi.Router, requireSupervisor func(http.Handler) http.Handler) {
	r.Route("/admin/devices", func(r chi.Router) {
		r.Use(requireSupervisor)
		r.Post("/", h.HandleRegister)
		r.Get("/{deviceID}", h.HandleGet)
		r.Post("/{deviceID}/rotate", h.HandleRotate)
		r.Post("/{deviceID}/disable", h.HandleDisable)
	})
}

func (h *Handler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	req, ok := httputil.DecodeAndPrepare[RegisterDeviceRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	d, token, err := h.devices.Register(ctx, device.RegisterRequest{
		Name:        req.Name,
		Kind:        req.Kind,
		CampusID:    req.CampusID,
		LocationIDs: req.LocationIDs,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to register device", "request_id", requestID, "error", err)
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(ctx, "device registered by supervisor",
		"request_id", requestID,
		"device_id", d.ID.String(),
		"supervisor_id", requestcontext.SupervisorID(ctx).String(),
	)
	httputil.WriteJSON(w, http.StatusCreated, TokenResponse{Device: d, Token: token})
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := deviceParam(w, r)
	if !ok {
		return
	}
	d, err := h.devices.Get(r.Context(), deviceID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

func (h *Handler) HandleRotate(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := deviceParam(w, r)
	if !ok {
		return
	}
	d, token, err := h.devices.RotateToken(r.Context(), deviceID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, TokenResponse{Device: d, Token: token})
}

func (h *Handler) HandleDisable(w http.ResponseWriter, r *http.Request) {
	deviceID, ok := deviceParam(w, r)
	if !ok {
		return
	}
	d, err := h.devices.Disable(r.Context(), deviceID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, d)
}

func deviceParam(w http.ResponseWriter, r *http.Request) (id.DeviceID, bool) {
	deviceID, err := id.ParseDeviceID(chi.URLParam(r, "deviceID"))
	if err != nil {
		httputil.WriteError(w, err)
		return id.DeviceID{}, false
	}
	return deviceID, true
}
