// Package device registers kiosks and label printers and authenticates the
// bearer tokens they present. Check-in writes are attributed to the device.
package device

import (
	"time"

	id "shepherd/pkg/domain"
)

type Kind string

const (
	KindKiosk   Kind = "kiosk"
	KindPrinter Kind = "printer"
)

func (k Kind) IsValid() bool {
	return k == KindKiosk || k == KindPrinter
}

type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
)

// Device is a kiosk or printer identity. TokenHash is the bcrypt hash of the
// secret half of the device token and never leaves the service.
type Device struct {
	ID             id.DeviceID     `json:"id"`
	Name           string          `json:"name"`
	Kind           Kind            `json:"kind"`
	CampusID       id.CampusID     `json:"campus_id"`
	LocationIDs    []id.LocationID `json:"location_ids"`
	TokenHash      string          `json:"-"`
	TokenExpiresAt time.Time       `json:"token_expires_at"`
	Status         Status          `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (d *Device) IsActive() bool {
	return d.Status == StatusActive
}

func (d *Device) Expired(now time.Time) bool {
	return !now.Before(d.TokenExpiresAt)
}

// ServesLocation reports whether the device may act for location. A device
// without locations serves its whole campus.
func (d *Device) ServesLocation(locationID id.LocationID) bool {
	if len(d.LocationIDs) == 0 || locationID.IsNil() {
		return true
	}
	for _, l := range d.LocationIDs {
		if l == locationID {
			return true
		}
	}
	return false
}
