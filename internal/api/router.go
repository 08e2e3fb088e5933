// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/door-access-manager/backend/internal/api/handlers"
	"github.com/door-access-manager/backend/internal/api/middleware"
	"github.com/door-access-manager/backend/internal/storage"
	"github.com/door-access-manager/backend/internal/websocket"
	"github.com/door-access-manager/backend/internal/workflow"
)

// Services are the collaborators the routes are wired to.
type Services struct {
	DB          *storage.DB
	Hub         *websocket.Hub
	Registry    *workflow.Registry
	Directory   handlers.DeviceDirectory
	Doors       handlers.DoorOpener
	Devices     *storage.DeviceRepository
	Assignments *storage.AssignmentRepository

	// Optional
	ProbeDeviceAPI func(ctx context.Context) bool
	StaticDir      string
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(s Services) *mux.Router {
	r := mux.NewRouter().UseEncodedPath()

	// Apply global middleware
	r.Use(middleware.Logging)
	r.Use(middleware.ErrorRecovery)

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Health and status endpoints
	api.HandleFunc("/health", handlers.HealthCheck(s.DB)).Methods("GET")
	api.HandleFunc("/status", handlers.Status(s.Devices, s.Assignments, s.Registry, s.Hub, s.ProbeDeviceAPI)).Methods("GET")

	// Realtime events; browsers pass the token as access_token
	api.Handle("/ws", middleware.RequireUpgradeSession(handlers.WebSocketUpgrade(s.Hub, s.Registry))).Methods("GET")

	// Everything else acts on behalf of the operator
	authed := api.NewRoute().Subrouter()
	authed.Use(middleware.RequireSession)

	// Device endpoints
	authed.HandleFunc("/devices", handlers.ListDevices(s.Directory, s.Devices)).Methods("GET")
	authed.HandleFunc("/devices", handlers.CreateDevice(s.Directory)).Methods("POST")
	authed.HandleFunc("/devices/{id}/doors", handlers.CreateDoor(s.Directory)).Methods("POST")
	authed.HandleFunc("/doors/open", handlers.OpenDoor(s.Doors)).Methods("POST")

	// Workflow endpoints
	authed.HandleFunc("/workflows", handlers.OpenWorkflow(s.Registry)).Methods("POST")
	authed.HandleFunc("/workflows/{id}", handlers.GetWorkflow(s.Registry)).Methods("GET")
	authed.HandleFunc("/workflows/{id}", handlers.CloseWorkflow(s.Registry)).Methods("DELETE")
	authed.HandleFunc("/workflows/{id}/doors/load", handlers.LoadDoors(s.Registry)).Methods("POST")
	authed.HandleFunc("/workflows/{id}/subject", handlers.UpdateSubject(s.Registry)).Methods("PUT")
	authed.HandleFunc("/workflows/{id}/window", handlers.UpdateWindow(s.Registry)).Methods("PUT")
	authed.HandleFunc("/workflows/{id}/doors/{door}/toggle", handlers.ToggleDoor(s.Registry)).Methods("POST")
	authed.HandleFunc("/workflows/{id}/doors/{door}/method", handlers.SelectMethod(s.Registry)).Methods("PUT")
	authed.HandleFunc("/workflows/{id}/doors/{door}/scan", handlers.ScanDoor(s.Registry)).Methods("POST")
	authed.HandleFunc("/workflows/{id}/doors/{door}/pin", handlers.AppendPinDigit(s.Registry)).Methods("POST")
	authed.HandleFunc("/workflows/{id}/doors/{door}/pin", handlers.DeletePinDigit(s.Registry)).Methods("DELETE")
	authed.HandleFunc("/workflows/{id}/ready", handlers.GetReady(s.Registry)).Methods("GET")
	authed.HandleFunc("/workflows/{id}/submit", handlers.Submit(s.Registry)).Methods("POST")
	authed.HandleFunc("/workflows/{id}/reset", handlers.ResetWorkflow(s.Registry)).Methods("POST")

	// Submission history
	authed.HandleFunc("/assignments", handlers.ListAssignments(s.Assignments)).Methods("GET")

	// Serve static frontend files
	if s.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.StaticDir)))
	}

	return r
}
