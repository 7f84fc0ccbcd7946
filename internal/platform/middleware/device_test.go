package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"shepherd/internal/device"
	"shepherd/internal/device/store"
	id "shepherd/pkg/domain"
	"shepherd/pkg/requestcontext"
)

type DeviceSuite struct {
	suite.Suite
	devices    *device.Service
	kiosk      *device.Device
	token      string
	handler    http.Handler
	seenDevice id.DeviceID
	seenCampus id.CampusID
	seenIP     string
}

func TestDeviceSuite(t *testing.T) {
	suite.Run(t, new(DeviceSuite))
}

func (s *DeviceSuite) SetupTest() {
	s.devices = device.NewService(store.NewInMemory())
	var err error
	s.kiosk, s.token, err = s.devices.Register(context.Background(), device.RegisterRequest{
		Name:     "Kids wing kiosk",
		Kind:     device.KindKiosk,
		CampusID: id.CampusID(uuid.New()),
	})
	s.Require().NoError(err)

	s.seenDevice, s.seenCampus, s.seenIP = id.DeviceID{}, id.CampusID{}, ""
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.handler = RequireDevice(s.devices, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.seenDevice = requestcontext.DeviceID(r.Context())
		s.seenCampus = requestcontext.CampusID(r.Context())
		s.seenIP = requestcontext.ClientIP(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
}

func (s *DeviceSuite) do(authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/checkin/search?q=smith", nil)
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPad; CPU OS 16_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.0 Mobile/15E148 Safari/604.1")
	req.Header.Set("X-Forwarded-For", "10.0.0.7, 10.0.0.1")
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func (s *DeviceSuite) TestValidTokenInjectsDevice() {
	rr := s.do("Bearer " + s.token)

	s.Equal(http.StatusNoContent, rr.Code)
	s.Equal(s.kiosk.ID, s.seenDevice)
	s.Equal(s.kiosk.CampusID, s.seenCampus)
	s.Equal("10.0.0.7", s.seenIP)
}

func (s *DeviceSuite) TestRejections() {
	for name, header := range map[string]string{
		"missing header": "",
		"wrong scheme":   "Basic " + s.token,
		"empty token":    "Bearer   ",
		"bad secret":     "Bearer " + device.FormatToken(s.kiosk.ID, "nope"),
	} {
		s.Run(name, func() {
			rr := s.do(header)
			s.Equal(http.StatusUnauthorized, rr.Code)
			s.True(s.seenDevice.IsNil())
		})
	}
}

func (s *DeviceSuite) TestDisabledDevice() {
	_, err := s.devices.Disable(context.Background(), s.kiosk.ID)
	s.Require().NoError(err)

	rr := s.do("Bearer " + s.token)
	s.Equal(http.StatusUnauthorized, rr.Code)
}
