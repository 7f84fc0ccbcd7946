package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server captures process level configuration. Every section is passed
// explicitly to the constructors that need it.
type Server struct {
	Addr        string
	Environment string
	LogLevel    string
	LogFormat   string
	Postgres    PostgresConfig
	Redis       RedisConfig
	Kafka       KafkaConfig
	Checkin     CheckinConfig
	Auth        AuthConfig
	RateLimit   RateLimitConfig
}

// PostgresConfig configures the database/sql pool.
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the device cache and the offline queue.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig configures the audit outbox relay.
type KafkaConfig struct {
	Brokers       []string
	AuditTopic    string
	RelayInterval time.Duration
	RelayBatch    int
}

// CheckinConfig holds the tunables of the check-in engine.
type CheckinConfig struct {
	Timezone           *time.Location
	CodeLength         int
	CodeMaxAttempts    int
	SearchBudget       time.Duration
	SearchMaxResults   int
	PhoneMinDigits     int
	NameMinChars       int
	SubmissionClaimTTL time.Duration
	BatchConcurrency   int
	SearchBackend      string
	SearchRefresh      time.Duration
	OfflineMaxAge      time.Duration
}

// AuthConfig holds device and supervisor credential settings.
type AuthConfig struct {
	SupervisorSigningKey string
	SupervisorIssuer     string
	DeviceCacheTTL       time.Duration
}

// RateLimitConfig bounds requests per kiosk device. Limit <= 0 disables it.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

// DefaultCheckin returns the engine defaults used when no environment override is set.
func DefaultCheckin() CheckinConfig {
	return CheckinConfig{
		Timezone:           time.UTC,
		CodeLength:         3,
		CodeMaxAttempts:    100,
		SearchBudget:       50 * time.Millisecond,
		SearchMaxResults:   10,
		PhoneMinDigits:     4,
		NameMinChars:       2,
		SubmissionClaimTTL: 2 * time.Minute,
		BatchConcurrency:   4,
		SearchBackend:      "memory",
		SearchRefresh:      time.Minute,
		OfflineMaxAge:      7 * 24 * time.Hour,
	}
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (Server, error) {
	_ = godotenv.Load()

	checkin := DefaultCheckin()
	var err error

	if tz := os.Getenv("CHECKIN_TIMEZONE"); tz != "" {
		if checkin.Timezone, err = time.LoadLocation(tz); err != nil {
			return Server{}, fmt.Errorf("CHECKIN_TIMEZONE: %w", err)
		}
	}

	r := envReader{}
	checkin.CodeLength = r.integer("CHECKIN_CODE_LENGTH", checkin.CodeLength)
	checkin.CodeMaxAttempts = r.integer("CHECKIN_CODE_MAX_ATTEMPTS", checkin.CodeMaxAttempts)
	checkin.SearchBudget = r.dur("CHECKIN_SEARCH_BUDGET", checkin.SearchBudget)
	checkin.SearchMaxResults = r.integer("CHECKIN_SEARCH_MAX_RESULTS", checkin.SearchMaxResults)
	checkin.PhoneMinDigits = r.integer("CHECKIN_PHONE_MIN_DIGITS", checkin.PhoneMinDigits)
	checkin.NameMinChars = r.integer("CHECKIN_NAME_MIN_CHARS", checkin.NameMinChars)
	checkin.SubmissionClaimTTL = r.dur("CHECKIN_SUBMISSION_CLAIM_TTL", checkin.SubmissionClaimTTL)
	checkin.BatchConcurrency = r.integer("CHECKIN_BATCH_CONCURRENCY", checkin.BatchConcurrency)
	checkin.SearchBackend = r.str("CHECKIN_SEARCH_BACKEND", checkin.SearchBackend)
	checkin.SearchRefresh = r.dur("CHECKIN_SEARCH_REFRESH", checkin.SearchRefresh)
	checkin.OfflineMaxAge = r.dur("CHECKIN_OFFLINE_MAX_AGE", checkin.OfflineMaxAge)

	cfg := Server{
		Addr:        r.str("SHEPHERD_ADDR", ":8080"),
		Environment: r.str("ENVIRONMENT", "development"),
		LogLevel:    r.str("LOG_LEVEL", "info"),
		LogFormat:   r.str("LOG_FORMAT", "json"),
		Postgres: PostgresConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    r.integer("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    r.integer("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: r.dur("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     r.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: r.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  r.dur("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  r.dur("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: r.dur("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:       r.list("KAFKA_BROKERS"),
			AuditTopic:    r.str("KAFKA_AUDIT_TOPIC", "shepherd.checkin.audit"),
			RelayInterval: r.dur("AUDIT_RELAY_INTERVAL", 2*time.Second),
			RelayBatch:    r.integer("AUDIT_RELAY_BATCH", 100),
		},
		Checkin: checkin,
		Auth: AuthConfig{
			SupervisorSigningKey: os.Getenv("SUPERVISOR_JWT_SIGNING_KEY"),
			SupervisorIssuer:     r.str("SUPERVISOR_JWT_ISSUER", "shepherd"),
			DeviceCacheTTL:       r.dur("DEVICE_CACHE_TTL", time.Minute),
		},
		RateLimit: RateLimitConfig{
			Limit:  r.integer("KIOSK_RATE_LIMIT", 120),
			Window: r.dur("KIOSK_RATE_WINDOW", time.Minute),
		},
	}
	if r.err != nil {
		return Server{}, r.err
	}
	return cfg, cfg.Validate()
}

// Validate rejects configurations the engine cannot run with.
func (s Server) Validate() error {
	c := s.Checkin
	switch {
	case c.CodeLength < 2 || c.CodeLength > 8:
		return fmt.Errorf("CHECKIN_CODE_LENGTH must be between 2 and 8, got %d", c.CodeLength)
	case c.CodeMaxAttempts < 1:
		return fmt.Errorf("CHECKIN_CODE_MAX_ATTEMPTS must be positive")
	case c.SearchMaxResults < 1:
		return fmt.Errorf("CHECKIN_SEARCH_MAX_RESULTS must be positive")
	case c.BatchConcurrency < 1:
		return fmt.Errorf("CHECKIN_BATCH_CONCURRENCY must be positive")
	case c.SearchBackend != "memory" && c.SearchBackend != "postgres":
		return fmt.Errorf("CHECKIN_SEARCH_BACKEND must be memory or postgres")
	}
	if s.Environment == "production" && s.Auth.SupervisorSigningKey == "" {
		return fmt.Errorf("SUPERVISOR_JWT_SIGNING_KEY is required in production")
	}
	return nil
}

type envReader struct {
	err error
}

func (r *envReader) str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (r *envReader) integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%s: %w", key, err)
	}
	return n
}

func (r *envReader) dur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil && r.err == nil {
		r.err = fmt.Errorf("%s: %w", key, err)
	}
	return d
}

func (r *envReader) list(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
