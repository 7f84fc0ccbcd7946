// Package search resolves kiosk input to candidate families within a soft
// latency budget.
package search

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"shepherd/internal/checkin/metrics"
	"shepherd/internal/checkin/models"
	"shepherd/internal/platform/config"
	dErrors "shepherd/pkg/domain-errors"
	"shepherd/pkg/requestcontext"
)

var tracer = otel.Tracer("shepherd/checkin/search")

// Backend runs classified searches against a precomputed index. Results are
// ordered by family name and capped at limit.
type Backend interface {
	SearchPhone(ctx context.Context, digits string, limit int) ([]models.FamilyResult, error)
	SearchName(ctx context.Context, terms []string, limit int) ([]models.FamilyResult, error)
}

type Service struct {
	backend      Backend
	budget       time.Duration
	maxResults   int
	minDigits    int
	minNameChars int
	logger       *slog.Logger
	metrics      *metrics.Metrics
	clock        func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock replaces the monotonic clock used to measure the budget.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		s.clock = clock
	}
}

func New(backend Backend, cfg config.CheckinConfig, opts ...Option) *Service {
	s := &Service{
		backend:      backend,
		budget:       cfg.SearchBudget,
		maxResults:   cfg.SearchMaxResults,
		minDigits:    cfg.PhoneMinDigits,
		minNameChars: cfg.NameMinChars,
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search never fails because of the budget: a slow search is logged and
// counted, then returned. Queries below the minimum length return no results.
func (s *Service) Search(ctx context.Context, raw string, mode Mode) ([]models.FamilyResult, error) {
	q := Classify(raw, mode, s.minDigits, s.minNameChars)
	if q.Empty() {
		return []models.FamilyResult{}, nil
	}

	ctx, span := tracer.Start(ctx, "search.Search")
	defer span.End()
	span.SetAttributes(attribute.String("search.mode", string(q.Mode)))

	start := s.clock()
	var (
		results []models.FamilyResult
		err     error
	)
	if q.Mode == ModePhone {
		results, err = s.backend.SearchPhone(ctx, q.Digits, s.maxResults)
	} else {
		results, err = s.backend.SearchName(ctx, q.Terms, s.maxResults)
	}
	elapsed := s.clock().Sub(start)
	s.metrics.ObserveSearch(string(q.Mode), elapsed)

	if err != nil {
		span.RecordError(err)
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "search failed")
	}
	if s.budget > 0 && elapsed > s.budget {
		s.metrics.IncrementSearchBudgetExceeded()
		if s.logger != nil {
			s.logger.WarnContext(ctx, "search exceeded latency budget",
				"request_id", requestcontext.RequestID(ctx),
				"mode", q.Mode,
				"elapsed_ms", elapsed.Milliseconds(),
				"budget_ms", s.budget.Milliseconds(),
				"results", len(results),
			)
		}
	}
	span.SetAttributes(attribute.Int("search.results", len(results)))
	if results == nil {
		results = []models.FamilyResult{}
	}
	return results, nil
}
