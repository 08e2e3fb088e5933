// Package directory provides the device directory client and device model.
package directory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Status is the normalised availability of a device.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Device is a smart-lock controller known to the account.
type Device struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status Status `json:"status"`
	Doors  []Door `json:"doors"`
}

// Door is a lockable door belonging to exactly one device.
type Door struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	DeviceID string `json:"device_id"`
}

// DoorID returns the door identifier for a named door of a device. Both parts
// are path-escaped, so a named door ID holds exactly one "/" and never equals
// the ID of a device that is its own door.
func DoorID(deviceID, doorName string) string {
	return url.PathEscape(deviceID) + "/" + url.PathEscape(doorName)
}

// SingleDoorID returns the door identifier of a device without named doors.
func SingleDoorID(deviceID string) string {
	return url.PathEscape(deviceID)
}

// Active reports whether the device accepts assignments.
func (d Device) Active() bool {
	return d.Status == StatusActive
}

// ActiveDoors flattens the doors of active devices, preserving device order.
func ActiveDoors(devices []Device) []Door {
	var doors []Door
	for _, d := range devices {
		if !d.Active() {
			continue
		}
		doors = append(doors, d.Doors...)
	}
	return doors
}

// rawDevice is the device shape returned by the directory API. Doors arrive
// either as a map keyed by door name or as a list of {name}.
type rawDevice struct {
	DeviceID   string          `json:"deviceId"`
	DeviceName string          `json:"deviceName"`
	Name       string          `json:"name"`
	Status     *string         `json:"status"`
	Doors      json.RawMessage `json:"doors"`
}

// decodeDevices parses a get_devices response. Both the keyed object form
// ({"<id>": {...}}) and a plain array are accepted; anything else is an error.
func decodeDevices(data []byte) ([]Device, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty response")
	}

	var raws []rawDevice
	switch data[0] {
	case '[':
		if err := json.Unmarshal(data, &raws); err != nil {
			return nil, fmt.Errorf("decoding device list: %w", err)
		}
	case '{':
		var keyed map[string]rawDevice
		if err := json.Unmarshal(data, &keyed); err != nil {
			return nil, fmt.Errorf("decoding device map: %w", err)
		}
		keys := make([]string, 0, len(keyed))
		for k := range keyed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			raw := keyed[k]
			if raw.DeviceID == "" {
				raw.DeviceID = k
			}
			raws = append(raws, raw)
		}
	default:
		return nil, fmt.Errorf("unexpected response shape")
	}

	devices := make([]Device, 0, len(raws))
	seen := make(map[string]bool, len(raws))
	for _, raw := range raws {
		d, err := raw.device()
		if err != nil {
			return nil, err
		}
		if seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		devices = append(devices, d)
	}
	return devices, nil
}

func (r rawDevice) device() (Device, error) {
	if r.DeviceID == "" {
		return Device{}, fmt.Errorf("device without deviceId")
	}
	if r.Status == nil {
		return Device{}, fmt.Errorf("device %s without status", r.DeviceID)
	}

	name := r.DeviceName
	if name == "" {
		name = r.Name
	}

	d := Device{
		ID:     r.DeviceID,
		Name:   name,
		Status: normalizeStatus(*r.Status),
	}

	names, err := doorNames(r.Doors)
	if err != nil {
		return Device{}, fmt.Errorf("device %s: %w", r.DeviceID, err)
	}

	// A device without named doors is itself the single door.
	if len(names) == 0 {
		d.Doors = []Door{{ID: SingleDoorID(d.ID), Name: d.Name, DeviceID: d.ID}}
		return d, nil
	}

	for _, n := range names {
		d.Doors = append(d.Doors, Door{ID: DoorID(d.ID, n), Name: n, DeviceID: d.ID})
	}
	return d, nil
}

func doorNames(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var names []string
	switch raw[0] {
	case '{':
		var keyed map[string]json.RawMessage
		if err := json.Unmarshal(raw, &keyed); err != nil {
			return nil, fmt.Errorf("decoding doors: %w", err)
		}
		for n := range keyed {
			names = append(names, n)
		}
		sort.Strings(names)
	case '[':
		var list []struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, fmt.Errorf("decoding doors: %w", err)
		}
		for _, d := range list {
			if d.Name == "" {
				return nil, fmt.Errorf("door without name")
			}
			names = append(names, d.Name)
		}
	default:
		return nil, fmt.Errorf("unexpected doors shape")
	}
	return names, nil
}

func normalizeStatus(status string) Status {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active", "online", "enabled":
		return StatusActive
	default:
		return StatusInactive
	}
}
