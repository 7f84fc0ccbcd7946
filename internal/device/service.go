package device

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
	"shepherd/pkg/platform/sentinel"
	"shepherd/pkg/requestcontext"
)

const defaultTokenTTL = 365 * 24 * time.Hour

type Store interface {
	Create(ctx context.Context, d *Device) error
	FindByID(ctx context.Context, deviceID id.DeviceID) (*Device, error)
	Update(ctx context.Context, d *Device) error
}

// Cache is a read-through copy of device records. A miss returns
// sentinel.ErrNotFound.
type Cache interface {
	Get(ctx context.Context, deviceID id.DeviceID) (*Device, error)
	Set(ctx context.Context, d *Device) error
	Delete(ctx context.Context, deviceID id.DeviceID) error
}

type Service struct {
	store    Store
	cache    Cache
	tokenTTL time.Duration
	logger   *slog.Logger
}

type Option func(*Service)

func WithCache(cache Cache) Option {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.tokenTTL = ttl
		}
	}
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{store: store, tokenTTL: defaultTokenTTL}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type RegisterRequest struct {
	Name        string
	Kind        Kind
	CampusID    id.CampusID
	LocationIDs []id.LocationID
}

// Register creates a device and returns it with its bearer token. The token
// is shown once; only its hash is stored.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Device, string, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, "", dErrors.New(dErrors.CodeValidation, "device name is required")
	}
	if !req.Kind.IsValid() {
		return nil, "", dErrors.New(dErrors.CodeValidation, "kind must be kiosk or printer")
	}
	now := requestcontext.Now(ctx)
	d := &Device{
		ID:          id.DeviceID(uuid.New()),
		Name:        name,
		Kind:        req.Kind,
		CampusID:    req.CampusID,
		LocationIDs: append([]id.LocationID(nil), req.LocationIDs...),
		Status:      StatusActive,
		CreatedAt:   now,
	}
	token, err := s.issueToken(d, now)
	if err != nil {
		return nil, "", err
	}
	if err := s.store.Create(ctx, d); err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to register device")
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "device registered",
			"device_id", d.ID.String(),
			"kind", string(d.Kind),
			"campus_id", d.CampusID.String(),
		)
	}
	return d, token, nil
}

func (s *Service) issueToken(d *Device, now time.Time) (string, error) {
	secret, err := generateSecret()
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate device token")
	}
	hash, err := hashSecret(secret)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash device token")
	}
	d.TokenHash = hash
	d.TokenExpiresAt = now.Add(s.tokenTTL)
	return FormatToken(d.ID, secret), nil
}

// Authenticate resolves a bearer token to an active, unexpired device.
// Every rejection is unauthorized so callers learn nothing about which part
// failed.
func (s *Service) Authenticate(ctx context.Context, token string) (*Device, error) {
	deviceID, secret, err := ParseToken(token)
	if err != nil {
		return nil, err
	}
	d, err := s.load(ctx, deviceID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "unknown device")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load device")
	}
	if !d.IsActive() {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "device is disabled")
	}
	if d.Expired(requestcontext.Now(ctx)) {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "device token expired")
	}
	if err := verifySecret(secret, d.TokenHash); err != nil {
		if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to verify device token")
	}
	return d, nil
}

// load reads through the cache. Cache failures fall back to the store.
func (s *Service) load(ctx context.Context, deviceID id.DeviceID) (*Device, error) {
	if s.cache != nil {
		d, err := s.cache.Get(ctx, deviceID)
		if err == nil {
			return d, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) && s.logger != nil {
			s.logger.WarnContext(ctx, "device cache read failed", "device_id", deviceID.String(), "error", err)
		}
	}
	d, err := s.store.FindByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, d); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "device cache write failed", "device_id", deviceID.String(), "error", err)
		}
	}
	return d, nil
}

// Get returns a device by id.
func (s *Service) Get(ctx context.Context, deviceID id.DeviceID) (*Device, error) {
	d, err := s.store.FindByID(ctx, deviceID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "device not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load device")
	}
	return d, nil
}

// RotateToken replaces the device secret. The old token stops working at once.
func (s *Service) RotateToken(ctx context.Context, deviceID id.DeviceID) (*Device, string, error) {
	d, err := s.Get(ctx, deviceID)
	if err != nil {
		return nil, "", err
	}
	token, err := s.issueToken(d, requestcontext.Now(ctx))
	if err != nil {
		return nil, "", err
	}
	if err := s.save(ctx, d); err != nil {
		return nil, "", err
	}
	return d, token, nil
}

// Disable stops a device from authenticating. The record is kept so past
// check-ins stay attributable.
func (s *Service) Disable(ctx context.Context, deviceID id.DeviceID) (*Device, error) {
	d, err := s.Get(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	d.Status = StatusDisabled
	if err := s.save(ctx, d); err != nil {
		return nil, err
	}
	if s.logger != nil {
		s.logger.InfoContext(ctx, "device disabled", "device_id", deviceID.String())
	}
	return d, nil
}

func (s *Service) save(ctx context.Context, d *Device) error {
	if err := s.store.Update(ctx, d); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update device")
	}
	if s.cache != nil {
		if err := s.cache.Delete(ctx, d.ID); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "device cache invalidation failed", "device_id", d.ID.String(), "error", err)
		}
	}
	return nil
}
