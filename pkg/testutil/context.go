package testutil

import (
	"net/http"

	id "shepherd/pkg/domain"
	"shepherd/pkg/requestcontext"
)

// WithDevice adds a kiosk device identity to the request context.
// This simulates what the device middleware does for an authenticated kiosk.
// If deviceID is not a valid UUID, it will not be added to the context.
func WithDevice(req *http.Request, deviceID, campusID string) *http.Request {
	parsedDevice, err := id.ParseDeviceID(deviceID)
	if err != nil {
		return req
	}
	var campus id.CampusID
	if campusID != "" {
		if parsedCampus, err := id.ParseCampusID(campusID); err == nil {
			campus = parsedCampus
		}
	}
	return req.WithContext(requestcontext.WithDevice(req.Context(), parsedDevice, campus))
}

// WithSupervisor adds a supervisor identity to the request context.
// Invalid IDs are silently ignored.
func WithSupervisor(req *http.Request, supervisorID string) *http.Request {
	if parsed, err := id.ParsePersonID(supervisorID); err == nil {
		return req.WithContext(requestcontext.WithSupervisorID(req.Context(), parsed))
	}
	return req
}
