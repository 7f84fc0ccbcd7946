package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"shepherd/internal/audit"
	"shepherd/internal/checkin/attendance"
	"shepherd/internal/checkin/checkout"
	checkinhandler "shepherd/internal/checkin/handler"
	"shepherd/internal/checkin/label"
	checkinmetrics "shepherd/internal/checkin/metrics"
	"shepherd/internal/checkin/occurrence"
	"shepherd/internal/checkin/search"
	"shepherd/internal/checkin/securitycode"
	"shepherd/internal/device"
	devicehandler "shepherd/internal/device/handler"
	devicestore "shepherd/internal/device/store"
	"shepherd/internal/platform/config"
	"shepherd/internal/platform/httpserver"
	"shepherd/internal/platform/kafka"
	"shepherd/internal/platform/logger"
	"shepherd/internal/platform/metrics"
	"shepherd/internal/platform/middleware"
	"shepherd/internal/platform/postgres"
	"shepherd/internal/platform/redis"
	"shepherd/internal/ratelimit"
	"shepherd/pkg/platform/httputil"
	"shepherd/pkg/platform/middleware/requesttime"
)

const (
	requestTimeout  = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// main wires configuration, storage and the HTTP surface. Business logic
// lives in the internal service packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("shepherd stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	var (
		db    *sql.DB
		store *backends
	)
	if cfg.Postgres.URL != "" {
		var err error
		if db, err = postgres.Open(ctx, cfg.Postgres); err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.Migrate(ctx, db); err != nil {
			return err
		}
		store = postgresBackends(db)
		log.Info("using postgres storage")
	} else {
		store = memoryBackends()
		log.Warn("DATABASE_URL not set; using in-memory storage")
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	httpMetrics := metrics.New()
	checkinMetrics := checkinmetrics.New()
	publisher := audit.NewPublisher(store.outbox, audit.WithLogger(log))

	resolver := occurrence.New(store.occurrences, store.runner,
		occurrence.WithLogger(log),
		occurrence.WithMetrics(checkinMetrics),
		occurrence.WithAuditPublisher(publisher),
	)
	allocator := securitycode.New(store.codes,
		securitycode.WithLength(cfg.Checkin.CodeLength),
		securitycode.WithMaxAttempts(cfg.Checkin.CodeMaxAttempts),
		securitycode.WithLogger(log),
		securitycode.WithMetrics(checkinMetrics),
	)
	recorder := attendance.NewRecorder(resolver, allocator, store.attendance, store.submissions, store.runner,
		attendance.WithLogger(log),
		attendance.WithMetrics(checkinMetrics),
		attendance.WithAuditPublisher(publisher),
		attendance.WithLocation(cfg.Checkin.Timezone),
		attendance.WithSubmissionTTL(cfg.Checkin.SubmissionClaimTTL),
		attendance.WithConcurrency(cfg.Checkin.BatchConcurrency),
		attendance.WithMaxCaptureAge(cfg.Checkin.OfflineMaxAge),
	)
	opportunities := attendance.NewOpportunities(store.directory, resolver, store.attendance, cfg.Checkin.Timezone)
	authorizer := checkout.New(store.attendance, store.pickups, store.runner,
		checkout.WithLogger(log),
		checkout.WithMetrics(checkinMetrics),
		checkout.WithAuditPublisher(publisher),
	)
	labels := label.New(store.templates, store.attendance, store.occurrences, store.directory, label.WithLogger(log))
	if seeded, err := labels.SeedDefaults(ctx); err != nil {
		return fmt.Errorf("seed label templates: %w", err)
	} else if seeded > 0 {
		log.Info("seeded default label templates", "count", seeded)
	}

	var (
		searchBackend search.Backend
		index         *search.MemoryIndex
	)
	if cfg.Checkin.SearchBackend == "postgres" && store.phoneNameSearch != nil {
		searchBackend = store.phoneNameSearch
	} else {
		index = search.NewMemoryIndex()
		if err := reloadIndex(ctx, index, store.directory); err != nil {
			return err
		}
		searchBackend = index
	}
	searcher := search.New(searchBackend, cfg.Checkin, search.WithLogger(log), search.WithMetrics(checkinMetrics))

	deviceOpts := []device.Option{device.WithLogger(log)}
	if redisClient != nil {
		deviceOpts = append(deviceOpts, device.WithCache(devicestore.NewRedisCache(redisClient.Client, cfg.Auth.DeviceCacheTTL)))
	}
	devices := device.NewService(store.devices, deviceOpts...)
	supervisors := middleware.NewHS256Supervisors(cfg.Auth.SupervisorSigningKey, cfg.Auth.SupervisorIssuer)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery(log, httpMetrics))
	r.Use(requesttime.Middleware)
	r.Use(middleware.Logger(log, httpMetrics))
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/health", healthHandler(db, redisClient))
	r.Handle("/metrics", promhttp.Handler())

	var limitStore ratelimit.Store = ratelimit.NewInMemory()
	if redisClient != nil {
		limitStore = ratelimit.NewRedisStore(redisClient.Client)
	}
	limiter := ratelimit.New(limitStore, log,
		ratelimit.WithLimit(cfg.RateLimit.Limit, cfg.RateLimit.Window),
		ratelimit.WithMetrics(httpMetrics),
	)
	authenticate := middleware.RequireDevice(devices, log)
	requireDevice := func(next http.Handler) http.Handler {
		return authenticate(limiter.PerDevice(next))
	}
	requireSupervisor := middleware.RequireSupervisor(supervisors, log)
	checkinhandler.New(checkinhandler.Services{
		Search:        searcher,
		Opportunities: opportunities,
		Recorder:      recorder,
		Authorizer:    authorizer,
		Labels:        labels,
		Occurrences:   resolver,
	}, log).Register(r, requireDevice, requireSupervisor)
	devicehandler.New(devices, log).Register(r, requireSupervisor)

	var relay *audit.OutboxRelay
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(ctx, cfg.Kafka)
		if err != nil {
			return err
		}
		defer producer.Close()
		relay = audit.NewOutboxRelay(store.outbox, producer, cfg.Kafka.AuditTopic, cfg.Kafka.RelayBatch, log)
	} else {
		log.Warn("KAFKA_BROKERS not set; audit events stay in the outbox")
	}

	srv := httpserver.New(cfg.Addr, r)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting shepherd", "addr", cfg.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if relay != nil {
		g.Go(func() error {
			return ignoreCancel(relay.Run(gctx, cfg.Kafka.RelayInterval))
		})
	}

	if index != nil && cfg.Checkin.SearchRefresh > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(cfg.Checkin.SearchRefresh)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if err := reloadIndex(gctx, index, store.directory); err != nil {
						log.WarnContext(gctx, "search index refresh failed", "error", err)
					}
				}
			}
		})
	}

	return g.Wait()
}

func reloadIndex(ctx context.Context, index *search.MemoryIndex, dir directory) error {
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()
	families, err := dir.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("load search index: %w", err)
	}
	index.Load(families)
	return nil
}

func healthHandler(db *sql.DB, redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{}
		status := http.StatusOK
		if db != nil {
			checks["postgres"] = "ok"
			if err := db.PingContext(r.Context()); err != nil {
				checks["postgres"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		if redisClient != nil {
			checks["redis"] = "ok"
			if err := redisClient.Health(r.Context()); err != nil {
				checks["redis"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		httputil.WriteJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": checks})
	}
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
