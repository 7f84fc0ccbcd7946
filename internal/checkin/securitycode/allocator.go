// Package securitycode issues the short parent-facing codes printed on paired
// labels. A code is unique per calendar day across the whole campus.
package securitycode

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"shepherd/internal/checkin/metrics"
	"shepherd/internal/checkin/models"
	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
	"shepherd/pkg/platform/sentinel"
	"shepherd/pkg/requestcontext"
)

var tracer = otel.Tracer("shepherd/checkin/securitycode")

// Alphabet omits 0/O and 1/I so codes survive being read aloud and reprinted.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	DefaultLength      = 3
	DefaultMaxAttempts = 100
)

// Store reserves a code for its issue date and returns
// sentinel.ErrAlreadyUsed on collision.
type Store interface {
	Create(ctx context.Context, code *models.AttendanceCode) error
}

// Allocator draws random candidates until one is free for the day.
type Allocator struct {
	store       Store
	length      int
	maxAttempts int
	random      io.Reader
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Allocator)

func WithLength(n int) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.length = n
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(a *Allocator) {
		if n > 0 {
			a.maxAttempts = n
		}
	}
}

// WithRandom replaces crypto/rand; tests use it to force collisions.
func WithRandom(r io.Reader) Option {
	return func(a *Allocator) {
		a.random = r
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(a *Allocator) {
		a.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Allocator) {
		a.metrics = m
	}
}

func New(store Store, opts ...Option) *Allocator {
	a := &Allocator{
		store:       store,
		length:      DefaultLength,
		maxAttempts: DefaultMaxAttempts,
		random:      rand.Reader,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Allocate reserves a fresh code for issueDate. The reservation joins the
// transaction in ctx, so a rolled back check-in releases its code.
func (a *Allocator) Allocate(ctx context.Context, issueDate models.Date) (*models.AttendanceCode, error) {
	ctx, span := tracer.Start(ctx, "securitycode.Allocate")
	defer span.End()

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		candidate, err := a.candidate()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate security code")
		}
		code := &models.AttendanceCode{
			ID:        id.AttendanceCodeID(uuid.New()),
			IssueDate: issueDate,
			Code:      candidate,
			CreatedAt: requestcontext.Now(ctx),
		}
		err = a.store.Create(ctx, code)
		if err == nil {
			span.SetAttributes(attribute.Int("securitycode.attempts", attempt))
			a.metrics.ObserveCodeAttempts(attempt)
			return code, nil
		}
		if !errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reserve security code")
		}
	}

	a.metrics.IncrementCodeSpaceExhausted()
	if a.logger != nil {
		a.logger.ErrorContext(ctx, "CRITICAL: security code space exhausted",
			"issue_date", issueDate.String(),
			"attempts", a.maxAttempts,
			"code_length", a.length,
		)
	}
	return nil, dErrors.New(dErrors.CodeCodeSpaceExhausted,
		fmt.Sprintf("no free security code for %s after %d attempts", issueDate, a.maxAttempts))
}

func (a *Allocator) candidate() (string, error) {
	limit := big.NewInt(int64(len(Alphabet)))
	b := make([]byte, a.length)
	for i := range b {
		n, err := rand.Int(a.random, limit)
		if err != nil {
			return "", err
		}
		b[i] = Alphabet[n.Int64()]
	}
	return string(b), nil
}
