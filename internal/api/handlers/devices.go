package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/door-access-manager/backend/internal/api/middleware"
	"github.com/door-access-manager/backend/internal/directory"
	"github.com/door-access-manager/backend/internal/pin"
	"github.com/door-access-manager/backend/internal/provisioning"
	"github.com/door-access-manager/backend/internal/session"
	"github.com/door-access-manager/backend/internal/storage"
	"github.com/door-access-manager/backend/internal/storage/models"
)

// DeviceDirectory is the part of the directory client the handlers use.
type DeviceDirectory interface {
	FetchDevices(ctx context.Context, sess *session.Session) ([]directory.Device, error)
	AddDevice(ctx context.Context, sess *session.Session, name string) error
	AddDoor(ctx context.Context, sess *session.Session, deviceID, doorName string) error
}

// DoorOpener unlocks doors remotely.
type DoorOpener interface {
	OpenDoor(ctx context.Context, sess *session.Session, deviceID, doorName, virtualPIN string) (provisioning.Ack, error)
}

// DevicesResponse lists devices and where they came from.
type DevicesResponse struct {
	Source  string                `json:"source"` // "directory" or "cache"
	Devices []models.CachedDevice `json:"devices"`
}

// ListDevices fetches the directory, refreshes the cache and returns it. When
// the directory is unreachable the cached copy is served instead.
func ListDevices(dir DeviceDirectory, repo *storage.DeviceRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		source := "directory"

		devices, err := dir.FetchDevices(ctx, middleware.Session(ctx))
		switch {
		case err == nil:
			if err := repo.ReplaceAll(ctx, directory.ToCached(devices)); err != nil {
				writeError(w, r, err)
				return
			}
		case errors.Is(err, directory.ErrUnavailable):
			log.Printf("Directory unavailable, serving cached devices: %v", err)
			source = "cache"
		default:
			writeError(w, r, err)
			return
		}

		cached, err := repo.List(ctx)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if cached == nil {
			cached = []models.CachedDevice{}
		}

		writeJSON(w, http.StatusOK, DevicesResponse{Source: source, Devices: cached})
	}
}

// CreateDeviceRequest represents the request body for registering a device.
type CreateDeviceRequest struct {
	Name string `json:"name"`
}

// CreateDevice registers a device with the directory.
func CreateDevice(dir DeviceDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateDeviceRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Name == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Device name is required")
			return
		}

		if err := dir.AddDevice(r.Context(), middleware.Session(r.Context()), req.Name); err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]string{"name": req.Name})
	}
}

// CreateDoorRequest represents the request body for adding a door.
type CreateDoorRequest struct {
	Name string `json:"name"`
}

// CreateDoor adds a named door to a device.
func CreateDoor(dir DeviceDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deviceID := pathVar(r, "id")

		var req CreateDoorRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Name == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Door name is required")
			return
		}

		if err := dir.AddDoor(r.Context(), middleware.Session(r.Context()), deviceID, req.Name); err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, map[string]string{
			"id":        directory.DoorID(deviceID, req.Name),
			"device_id": deviceID,
			"name":      req.Name,
		})
	}
}

// OpenDoorRequest represents the request body for a remote unlock.
type OpenDoorRequest struct {
	DeviceID   string `json:"device_id"`
	DoorName   string `json:"door_name"`
	VirtualPIN string `json:"virtual_pin"`
}

// OpenDoor unlocks a door with a virtual PIN.
func OpenDoor(opener DoorOpener) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OpenDoorRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.DeviceID == "" || req.DoorName == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "device_id and door_name are required")
			return
		}

		if err := pin.Validate(req.VirtualPIN); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
			return
		}

		ack, err := opener.OpenDoor(r.Context(), middleware.Session(r.Context()), req.DeviceID, req.DoorName, req.VirtualPIN)
		if errors.Is(err, provisioning.ErrRejected) {
			middleware.WriteError(w, http.StatusForbidden, middleware.ErrForbidden, err.Error())
			return
		}
		if err != nil {
			writeError(w, r, err)
			return
		}

		message := ack.Message
		if message == "" {
			message = "Door opened"
		}
		writeJSON(w, http.StatusOK, map[string]string{"message": message})
	}
}
