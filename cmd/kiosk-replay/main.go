// Command kiosk-replay drains a kiosk's offline check-in queue against the
// server once connectivity is back. Entries keep their idempotency keys, so
// running it twice never checks anyone in twice.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shepherd/internal/checkin/offline"
	"shepherd/internal/platform/config"
	"shepherd/internal/platform/logger"
	"shepherd/internal/platform/redis"
	"shepherd/pkg/platform/circuit"
)

func main() {
	var (
		serverURL = flag.String("server", envOr("SHEPHERD_URL", "http://localhost:8080"), "check-in server base URL")
		queueName = flag.String("queue", envOr("KIOSK_QUEUE", "default"), "offline queue name, usually the kiosk name")
		interval  = flag.Duration("interval", 0, "replay repeatedly at this interval; zero replays once")
		timeout   = flag.Duration("timeout", 15*time.Second, "per request timeout")
		tolerance = flag.Int("max-transport-failures", 3, "consecutive unreachable errors before a pass stops submitting")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	token := os.Getenv("DEVICE_TOKEN")
	if token == "" {
		log.Error("DEVICE_TOKEN is required")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	if client == nil {
		log.Error("REDIS_URL is required; the offline queue lives in redis")
		os.Exit(2)
	}
	defer client.Close()

	reconciler := offline.NewReconciler(
		offline.NewRedisQueue(client.Client, *queueName),
		offline.NewHTTPSubmitter(*serverURL, token, &http.Client{Timeout: *timeout}),
		offline.WithLogger(log),
		offline.WithBreaker(circuit.New("checkin-server", circuit.WithFailureThreshold(*tolerance))),
	)

	if err := replayLoop(ctx, reconciler, *interval, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("replay failed", "error", err)
		os.Exit(1)
	}
}

func replayLoop(ctx context.Context, reconciler *offline.Reconciler, interval time.Duration, log *slog.Logger) error {
	for {
		report, err := reconciler.Replay(ctx)
		if report != nil {
			printReport(report)
		}
		if err != nil {
			return err
		}
		if len(report.Failed) > 0 {
			log.Warn("entries left queued", "count", len(report.Failed))
		}
		if interval <= 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

func printReport(report *offline.Report) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
