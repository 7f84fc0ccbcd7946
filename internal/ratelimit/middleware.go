package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	dErrors "shepherd/pkg/domain-errors"
	"shepherd/pkg/platform/httputil"
	"shepherd/pkg/requestcontext"
)

// Metrics counts rejected requests.
type Metrics interface {
	IncrementRateLimited()
}

// Limiter enforces a per-device request budget on kiosk routes. Requests
// without a device fall back to the client IP.
type Limiter struct {
	store   Store
	limit   int
	window  time.Duration
	logger  *slog.Logger
	metrics Metrics
}

type Option func(*Limiter)

// WithLimit sets the budget. A limit of zero or less disables limiting.
func WithLimit(limit int, window time.Duration) Option {
	return func(l *Limiter) {
		l.limit = limit
		if window > 0 {
			l.window = window
		}
	}
}

func WithMetrics(m Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

func New(store Store, logger *slog.Logger, opts ...Option) *Limiter {
	l := &Limiter{store: store, limit: 120, window: time.Minute, logger: logger}
	for _, opt := range opts {
		opt(l)
	}
	if l.limit <= 0 {
		logger.Info("kiosk rate limiting disabled")
	}
	return l
}

// PerDevice must run after device authentication so the device id is in context.
func (l *Limiter) PerDevice(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		key := keyFor(r)

		result, err := l.store.Allow(ctx, key, l.limit, l.window)
		if err != nil {
			// Fail open: a throttling outage must not stop check-in.
			l.logger.ErrorContext(ctx, "rate limit check failed", "key", key, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed {
			if l.metrics != nil {
				l.metrics.IncrementRateLimited()
			}
			l.logger.WarnContext(ctx, "kiosk rate limited",
				"key", key,
				"request_id", requestcontext.RequestID(ctx),
				"retry_after", result.RetryAfter,
			)
			w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
			httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests from this kiosk"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func keyFor(r *http.Request) string {
	ctx := r.Context()
	if d := requestcontext.DeviceID(ctx); !d.IsNil() {
		return "device:" + d.String()
	}
	if ip := requestcontext.ClientIP(ctx); ip != "" {
		return "ip:" + ip
	}
	return "ip:" + r.RemoteAddr
}
