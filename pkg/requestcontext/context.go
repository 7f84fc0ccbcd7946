// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// This package defines context keys and getter/setter functions for values that are
// typically set by middleware but consumed by services. By keeping this package free
// of net/http dependencies, services can import only what they need without pulling
// in HTTP-related code.
//
// Usage in services (read values):
//
//	deviceID := requestcontext.DeviceID(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithDevice(ctx, deviceID, campusID)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithSupervisorID(ctx, supervisorID)
package requestcontext

import (
	"context"
	"time"

	id "shepherd/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	deviceIDKey     struct{}
	campusIDKey     struct{}
	supervisorIDKey struct{}
	clientIPKey     struct{}
	userAgentKey    struct{}
	requestIDKey    struct{}
	requestTimeKey  struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyDeviceID     = deviceIDKey{}
	ContextKeyCampusID     = campusIDKey{}
	ContextKeySupervisorID = supervisorIDKey{}
	ContextKeyClientIP     = clientIPKey{}
	ContextKeyUserAgent    = userAgentKey{}
	ContextKeyRequestID    = requestIDKey{}
	ContextKeyRequestTime  = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Device context (kiosk attribution)
// -----------------------------------------------------------------------------

// DeviceID retrieves the authenticated kiosk device from the context.
// Returns the zero value (nil UUID) if not set.
func DeviceID(ctx context.Context) id.DeviceID {
	if deviceID, ok := ctx.Value(ContextKeyDeviceID).(id.DeviceID); ok {
		return deviceID
	}
	return id.DeviceID{}
}

// CampusID retrieves the campus the authenticated device is scoped to.
// Returns the zero value when the device is not campus scoped.
func CampusID(ctx context.Context) id.CampusID {
	if campusID, ok := ctx.Value(ContextKeyCampusID).(id.CampusID); ok {
		return campusID
	}
	return id.CampusID{}
}

// WithDevice injects the device identity and its campus into the context.
func WithDevice(ctx context.Context, deviceID id.DeviceID, campusID id.CampusID) context.Context {
	ctx = context.WithValue(ctx, ContextKeyDeviceID, deviceID)
	return context.WithValue(ctx, ContextKeyCampusID, campusID)
}

// -----------------------------------------------------------------------------
// Supervisor context
// -----------------------------------------------------------------------------

// SupervisorID retrieves the human supervisor who authenticated this request.
func SupervisorID(ctx context.Context) id.PersonID {
	if supervisorID, ok := ctx.Value(ContextKeySupervisorID).(id.PersonID); ok {
		return supervisorID
	}
	return id.PersonID{}
}

// WithSupervisorID injects a supervisor identity into the context.
func WithSupervisorID(ctx context.Context, supervisorID id.PersonID) context.Context {
	return context.WithValue(ctx, ContextKeySupervisorID, supervisorID)
}

// -----------------------------------------------------------------------------
// Client metadata (IP, User-Agent)
// -----------------------------------------------------------------------------

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	return ctx
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// -----------------------------------------------------------------------------
// Request time
// -----------------------------------------------------------------------------

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (for non-HTTP contexts like the replayer, workers, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Useful for:
//   - Service unit tests that don't run the full HTTP middleware chain
//   - Workers that need consistent time within a batch operation
//   - The offline replayer, which pins time per queued submission
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
