// Package store persists device records and caches them in Redis.
package store

import (
	"context"
	"fmt"
	"sync"

	"shepherd/internal/device"
	id "shepherd/pkg/domain"
	"shepherd/pkg/platform/sentinel"
)

type InMemory struct {
	mu      sync.RWMutex
	devices map[id.DeviceID]device.Device
}

func NewInMemory() *InMemory {
	return &InMemory{devices: make(map[id.DeviceID]device.Device)}
}

func cloneDevice(d device.Device) *device.Device {
	d.LocationIDs = append([]id.LocationID(nil), d.LocationIDs...)
	return &d
}

func (s *InMemory) Create(_ context.Context, d *device.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.devices[d.ID]; exists {
		return fmt.Errorf("device %s: %w", d.ID, sentinel.ErrAlreadyUsed)
	}
	s.devices[d.ID] = *cloneDevice(*d)
	return nil
}

func (s *InMemory) FindByID(_ context.Context, deviceID id.DeviceID) (*device.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.devices[deviceID]
	if !ok {
		return nil, fmt.Errorf("device %s: %w", deviceID, sentinel.ErrNotFound)
	}
	return cloneDevice(d), nil
}

func (s *InMemory) Update(_ context.Context, d *device.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[d.ID]; !ok {
		return fmt.Errorf("device %s: %w", d.ID, sentinel.ErrNotFound)
	}
	s.devices[d.ID] = *cloneDevice(*d)
	return nil
}
