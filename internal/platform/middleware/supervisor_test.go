package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	id "shepherd/pkg/domain"
	"shepherd/pkg/requestcontext"
)

type SupervisorSuite struct {
	suite.Suite
	tokens     *HS256Supervisors
	supervisor id.PersonID
	handler    http.Handler
	seen       id.PersonID
}

func TestSupervisorSuite(t *testing.T) {
	suite.Run(t, new(SupervisorSuite))
}

func (s *SupervisorSuite) SetupTest() {
	s.tokens = NewHS256Supervisors("test-signing-key", "shepherd")
	s.supervisor = id.PersonID(uuid.New())
	s.seen = id.PersonID{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.handler = RequireSupervisor(s.tokens, logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.seen = requestcontext.SupervisorID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))
}

func (s *SupervisorSuite) do(token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/checkin/attendance/x/override/approve", nil)
	if token != "" {
		req.Header.Set(SupervisorTokenHeader, token)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func (s *SupervisorSuite) TestValidTokenInjectsSupervisor() {
	token, err := s.tokens.Issue(s.supervisor, time.Minute)
	s.Require().NoError(err)

	rr := s.do(token)

	s.Equal(http.StatusNoContent, rr.Code)
	s.Equal(s.supervisor, s.seen)
}

func (s *SupervisorSuite) TestRejections() {
	s.Run("missing token", func() {
		rr := s.do("")
		s.Equal(http.StatusUnauthorized, rr.Code)
		s.True(s.seen.IsNil())
	})

	s.Run("expired token", func() {
		s.tokens.now = func() time.Time { return time.Now().Add(-time.Hour) }
		token, err := s.tokens.Issue(s.supervisor, time.Minute)
		s.Require().NoError(err)
		s.tokens.now = time.Now

		rr := s.do(token)
		s.Equal(http.StatusUnauthorized, rr.Code)
	})

	s.Run("wrong signing key", func() {
		other := NewHS256Supervisors("another-key", "shepherd")
		token, err := other.Issue(s.supervisor, time.Minute)
		s.Require().NoError(err)

		rr := s.do(token)
		s.Equal(http.StatusUnauthorized, rr.Code)
	})

	s.Run("wrong issuer", func() {
		other := NewHS256Supervisors("test-signing-key", "someone-else")
		token, err := other.Issue(s.supervisor, time.Minute)
		s.Require().NoError(err)

		rr := s.do(token)
		s.Equal(http.StatusUnauthorized, rr.Code)
	})
}

func TestRequestIDAndRecovery(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("inbound request id is propagated", func(t *testing.T) {
		var got string
		h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = requestcontext.RequestID(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "kiosk-abc")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, "kiosk-abc", got)
		assert.Equal(t, "kiosk-abc", rr.Header().Get(RequestIDHeader))
	})

	t.Run("missing request id is generated", func(t *testing.T) {
		rr := httptest.NewRecorder()
		RequestID(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
			ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		_, err := uuid.Parse(rr.Header().Get(RequestIDHeader))
		require.NoError(t, err)
	})

	t.Run("panic becomes internal error", func(t *testing.T) {
		h := Recovery(logger, nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})
}
