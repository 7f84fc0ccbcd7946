package device

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	id "shepherd/pkg/domain"
	dErrors "shepherd/pkg/domain-errors"
)

// tokenHashCost applies to 256-bit random secrets checked on every kiosk request.
const tokenHashCost = bcrypt.MinCost

// generateSecret returns 32 random bytes, base64url encoded.
func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func hashSecret(secret string) (string, error) {
	if secret == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "secret cannot be empty")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), tokenHashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", dErrors.New(dErrors.CodeInvalidInput, "secret is too long")
		}
		return "", fmt.Errorf("could not hash secret: %w", err)
	}
	return string(hashed), nil
}

func verifySecret(secret, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return dErrors.New(dErrors.CodeUnauthorized, "invalid device token")
		}
		return fmt.Errorf("could not verify secret: %w", err)
	}
	return nil
}

// FormatToken joins a device id and its secret into the bearer token.
func FormatToken(deviceID id.DeviceID, secret string) string {
	return deviceID.String() + "." + secret
}

// ParseToken splits "<device-id>.<secret>".
func ParseToken(token string) (id.DeviceID, string, error) {
	raw, secret, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || secret == "" {
		return id.DeviceID{}, "", dErrors.New(dErrors.CodeUnauthorized, "malformed device token")
	}
	deviceID, err := id.ParseDeviceID(raw)
	if err != nil {
		return id.DeviceID{}, "", dErrors.New(dErrors.CodeUnauthorized, "malformed device token")
	}
	return deviceID, secret, nil
}
