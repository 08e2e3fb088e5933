// Package handlers provides HTTP request handlers for the API endpoints.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/door-access-manager/backend/internal/storage"
	"github.com/door-access-manager/backend/internal/storage/models"
	"github.com/door-access-manager/backend/internal/websocket"
	"github.com/door-access-manager/backend/internal/workflow"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
}

// HealthCheck returns a handler that performs a health check.
func HealthCheck(db *storage.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dbConnected := db.PingContext(r.Context()) == nil

		status, code := "healthy", http.StatusOK
		if !dbConnected {
			status, code = "degraded", http.StatusServiceUnavailable
		}

		writeJSON(w, code, HealthResponse{
			Status:      status,
			DBConnected: dbConnected,
		})
	}
}

// StatusResponse represents the system status response.
type StatusResponse struct {
	DeviceAPIReachable bool      `json:"device_api_reachable"`
	CachedDevices      int       `json:"cached_devices"`
	ActiveDevices      int       `json:"active_devices"`
	OpenWorkflows      int       `json:"open_workflows"`
	SubmittedDoors     int       `json:"submitted_doors"`
	FailedDoors        int       `json:"failed_doors"`
	WebSocketClients   int       `json:"websocket_clients"`
	CheckedAt          time.Time `json:"checked_at"`
}

// Status returns a handler that provides system status information.
func Status(
	devices *storage.DeviceRepository,
	assignments *storage.AssignmentRepository,
	registry *workflow.Registry,
	hub *websocket.Hub,
	probe func(ctx context.Context) bool,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		total, active, err := devices.Count(ctx)
		if err != nil {
			writeError(w, r, err)
			return
		}
		submitted, err := assignments.CountByStatus(ctx, models.AssignmentStatusSubmitted)
		if err != nil {
			writeError(w, r, err)
			return
		}
		failed, err := assignments.CountByStatus(ctx, models.AssignmentStatusFailed)
		if err != nil {
			writeError(w, r, err)
			return
		}

		resp := StatusResponse{
			CachedDevices:    total,
			ActiveDevices:    active,
			OpenWorkflows:    registry.Len(),
			SubmittedDoors:   submitted,
			FailedDoors:      failed,
			WebSocketClients: hub.ClientCount(),
			CheckedAt:        time.Now().UTC(),
		}
		if probe != nil {
			resp.DeviceAPIReachable = probe(ctx)
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
