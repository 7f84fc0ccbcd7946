package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shepherd/internal/device"
	"shepherd/internal/device/store"
	"shepherd/pkg/testutil"
)

func newDeviceRouter(t *testing.T) (http.Handler, *device.Service) {
	t.Helper()
	svc := device.NewService(store.NewInMemory())
	h := New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	allow := func(next http.Handler) http.Handler { return next }
	r := chi.NewRouter()
	h.Register(r, allow)
	return r, svc
}

func TestRegisterRotateDisable(t *testing.T) {
	router, svc := newDeviceRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.NewJSONRequest(t, http.MethodPost, "/admin/devices/", map[string]any{
		"name":      "Lobby kiosk",
		"kind":      "kiosk",
		"campus_id": uuid.NewString(),
	}))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.Token)
	assert.NotContains(t, rec.Body.String(), "token_hash")

	_, err := svc.Authenticate(context.Background(), created.Token)
	require.NoError(t, err)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.NewRequest(t, http.MethodPost, "/admin/devices/"+created.Device.ID.String()+"/rotate"))
	require.Equal(t, http.StatusOK, rec.Code)
	var rotated TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotated))
	assert.NotEqual(t, created.Token, rotated.Token)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.NewRequest(t, http.MethodPost, "/admin/devices/"+created.Device.ID.String()+"/disable"))
	require.Equal(t, http.StatusOK, rec.Code)
	_, err = svc.Authenticate(context.Background(), rotated.Token)
	assert.Error(t, err)
}

func TestRegisterValidation(t *testing.T) {
	router, _ := newDeviceRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.NewJSONRequest(t, http.MethodPost, "/admin/devices/", map[string]any{
		"name": "Tablet", "kind": "tablet",
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUnknownDevice(t *testing.T) {
	router, _ := newDeviceRouter(t)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, testutil.NewRequest(t, http.MethodGet, "/admin/devices/"+uuid.NewString()))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
