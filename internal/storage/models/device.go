// Package models contains the persisted models for the application.
package models

import (
	"time"
)

// CachedDevice is the last known directory entry for a device.
type CachedDevice struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Status      string       `json:"status"`
	Doors       []CachedDoor `json:"doors"`
	RefreshedAt time.Time    `json:"refreshed_at"`
}

// CachedDoor is a door of a cached device.
type CachedDoor struct {
	ID       string `json:"id"`
	DeviceID string `json:"device_id"`
	Name     string `json:"name"`
}

// Device status constants
const (
	DeviceStatusActive   = "active"
	DeviceStatusInactive = "inactive"
)

// IsActive returns true if the device accepts assignments.
func (d *CachedDevice) IsActive() bool {
	return d.Status == DeviceStatusActive
}
