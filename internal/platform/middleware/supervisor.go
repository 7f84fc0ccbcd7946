package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
	"shepherd/pkg/platform/httputil"
	"shepherd/pkg/requestcontext"
)

// SupervisorTokenHeader carries the supervisor's short-lived token next to the
// kiosk's device bearer token.
const SupervisorTokenHeader = "X-Supervisor-Token"

// SupervisorValidator verifies a supervisor token and returns the supervisor's person id.
type SupervisorValidator interface {
	ValidateSupervisor(token string) (id.PersonID, error)
}

// SupervisorClaims is the JWT payload issued to supervisors by the staff login flow.
type SupervisorClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// HS256Supervisors validates HS256 supervisor tokens.
type HS256Supervisors struct {
	key    []byte
	issuer string
	now    func() time.Time
}

func NewHS256Supervisors(signingKey, issuer string) *HS256Supervisors {
	return &HS256Supervisors{key: []byte(signingKey), issuer: issuer, now: time.Now}
}

var errSupervisorRole = errors.New("token is not a supervisor token")

func (v *HS256Supervisors) ValidateSupervisor(token string) (id.PersonID, error) {
	claims := &SupervisorClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return id.PersonID{}, err
	}
	if claims.Role != "supervisor" {
		return id.PersonID{}, errSupervisorRole
	}
	return id.ParsePersonID(claims.Subject)
}

// Issue signs a supervisor token. Used by the staff login flow and tests.
func (v *HS256Supervisors) Issue(supervisor id.PersonID, ttl time.Duration) (string, error) {
	now := v.now()
	claims := SupervisorClaims{
		Role: "supervisor",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   supervisor.String(),
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
}

// RequireSupervisor rejects requests without a valid supervisor token and
// injects the supervisor id into the request context.
func RequireSupervisor(validator SupervisorValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token := strings.TrimSpace(r.Header.Get(SupervisorTokenHeader))
			if token == "" {
				logger.WarnContext(ctx, "supervisor action without supervisor token",
					"request_id", requestID,
					"device_id", requestcontext.DeviceID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "supervisor authentication required"))
				return
			}

			supervisorID, err := validator.ValidateSupervisor(token)
			if err != nil {
				logger.WarnContext(ctx, "invalid supervisor token",
					"request_id", requestID,
					"error", err,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired supervisor token"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithSupervisorID(ctx, supervisorID)))
		})
	}
}
