package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"shepherd/pkg/requestcontext"
)

// Outbox stores events until the relay ships them.
type Outbox interface {
	Append(ctx context.Context, event Event) error
}

// Publisher writes events to the outbox synchronously. A failed write is
// returned to the caller, which must fail its operation.
type Publisher struct {
	outbox Outbox
	logger *slog.Logger
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(outbox Outbox, opts ...Option) *Publisher {
	p := &Publisher{outbox: outbox}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit fills ID, timestamp and request correlation from ctx, then appends.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Action == "" {
		return errors.New("audit event requires an action")
	}
	if event.SubjectID == "" {
		return errors.New("audit event requires a subject")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.DeviceID == "" {
		if deviceID := requestcontext.DeviceID(ctx); !deviceID.IsNil() {
			event.DeviceID = deviceID.String()
		}
	}
	if err := p.outbox.Append(ctx, event); err != nil {
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "audit outbox write failed",
				"action", event.Action,
				"subject_id", event.SubjectID,
				"error", err,
			)
		}
		return fmt.Errorf("emit %s: %w", event.Action, err)
	}
	return nil
}
