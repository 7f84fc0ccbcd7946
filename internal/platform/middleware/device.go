package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"shepherd/internal/device"
	dErrors "shepherd/pkg/domain-errors"
	"shepherd/pkg/platform/httputil"
	"shepherd/pkg/platform/middleware/metadata"
	"shepherd/pkg/requestcontext"
)

// DeviceAuthenticator resolves a kiosk bearer token to its device.
type DeviceAuthenticator interface {
	Authenticate(ctx context.Context, token string) (*device.Device, error)
}

// RequireDevice rejects requests without a valid device bearer token and
// injects the device and campus ids plus client metadata into the context.
func RequireDevice(auth DeviceAuthenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := metadata.ClientIPFromRequest(r)
			ctx = requestcontext.WithClientMetadata(ctx, ip, r.UserAgent())

			token, ok := bearerToken(r)
			if !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "device authentication required"))
				return
			}

			d, err := auth.Authenticate(ctx, token)
			if err != nil {
				attrs := []any{"request_id", requestcontext.RequestID(ctx), "client_ip", ip, "error", err}
				attrs = append(attrs, userAgentAttrs(r.UserAgent())...)
				logger.WarnContext(ctx, "device authentication failed", attrs...)
				if !dErrors.HasCode(err, dErrors.CodeUnauthorized) {
					httputil.WriteError(w, err)
					return
				}
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid device token"))
				return
			}

			logger.DebugContext(ctx, "device authenticated",
				append([]any{"device_id", d.ID.String(), "device_name", d.Name}, userAgentAttrs(r.UserAgent())...)...)

			ctx = requestcontext.WithDevice(ctx, d.ID, d.CampusID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// userAgentAttrs summarizes the kiosk browser for log lines.
func userAgentAttrs(raw string) []any {
	if raw == "" {
		return nil
	}
	ua := useragent.New(raw)
	browser, version := ua.Browser()
	return []any{
		"ua_browser", browser,
		"ua_version", version,
		"ua_os", ua.OS(),
		"ua_mobile", ua.Mobile(),
	}
}
