// Package main is the entry point for the Door Access Manager server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/door-access-manager/backend/internal/api"
	"github.com/door-access-manager/backend/internal/config"
	"github.com/door-access-manager/backend/internal/deviceapi"
	"github.com/door-access-manager/backend/internal/directory"
	"github.com/door-access-manager/backend/internal/provisioning"
	"github.com/door-access-manager/backend/internal/session"
	"github.com/door-access-manager/backend/internal/storage"
	"github.com/door-access-manager/backend/internal/websocket"
	"github.com/door-access-manager/backend/internal/workflow"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
// Defaults to "dev" when not provided.
var version = "dev"

func main() {
	// Parse command-line flags
	configPath := pflag.StringP("config", "c", os.Getenv("CONFIG_FILE"), "Path to a YAML config file")
	addr := pflag.String("addr", "", "HTTP server address (overrides config)")
	dataDir := pflag.String("data", "", "Data directory for SQLite database (overrides config)")
	staticDir := pflag.String("static", "", "Directory for static frontend files (overrides config)")
	strategy := pflag.String("strategy", "", "Submission strategy: per_door or batch (overrides config)")
	healthCheck := pflag.Bool("health-check", false, "Run health check and exit")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if pflag.CommandLine.Changed("addr") {
		cfg.Addr = *addr
	}
	if pflag.CommandLine.Changed("data") {
		cfg.DataDir = *dataDir
	}
	if pflag.CommandLine.Changed("static") {
		cfg.StaticDir = *staticDir
	}
	if pflag.CommandLine.Changed("strategy") {
		cfg.Workflow.SubmissionStrategy = *strategy
		if err := cfg.Validate(); err != nil {
			log.Fatalf("Invalid configuration: %v", err)
		}
	}

	// Health check mode for Docker HEALTHCHECK
	if *healthCheck {
		if err := runHealthCheck(cfg.Addr); err != nil {
			log.Fatalf("Health check failed: %v", err)
		}
		os.Exit(0)
	}

	// Allow overriding version via environment (e.g., injected by container build/runtime)
	if envVer := os.Getenv("VERSION"); envVer != "" {
		version = envVer
	}

	log.Printf("Starting Door Access Manager (version: %s)...", version)

	db, err := storage.Open(cfg.DataDir)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	log.Println("Database migrations complete")

	// Initialize WebSocket hub
	hub := websocket.NewHub()
	go hub.Run()
	events := websocket.NewEventBroadcaster(hub)

	// Initialize repositories
	deviceRepo := storage.NewDeviceRepository(db)
	assignmentRepo := storage.NewAssignmentRepository(db)

	// Initialize device API clients
	deviceAPI, err := deviceapi.NewClient(deviceapi.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
	})
	if err != nil {
		log.Fatalf("Failed to create device API client: %v", err)
	}
	directoryClient := directory.NewClient(deviceAPI)

	// Scans wait for a physical tag, so provisioning gets a transport without
	// a client-wide timeout and sets a deadline per call instead.
	provisioningAPI, err := deviceapi.NewClient(deviceapi.Config{BaseURL: cfg.API.BaseURL})
	if err != nil {
		log.Fatalf("Failed to create provisioning API client: %v", err)
	}
	provisioningClient := provisioning.NewClient(provisioningAPI, provisioning.Options{
		ScanTimeout:    cfg.Workflow.ScanTimeout,
		RequestTimeout: cfg.API.Timeout,
	})

	registry := workflow.NewRegistry(workflow.Dependencies{
		Directory:   directoryClient,
		Provisioner: provisioningClient,
		Strategy:    workflow.Strategy(cfg.Workflow.SubmissionStrategy),
		Notifier:    events,
		Recorder:    assignmentRepo,
	}, cfg.Workflow.IdleTTL)
	if err := registry.Start(); err != nil {
		log.Printf("Warning: Failed to start workflow sweeper: %v", err)
	}

	// Background directory refresh needs a service token
	var refresher *directory.Refresher
	if cfg.BackgroundRefreshEnabled() {
		serviceSession, err := newServiceSession(cfg.API)
		if err != nil {
			log.Fatalf("Invalid service token: %v", err)
		}
		refresher = directory.NewRefresher(directoryClient, deviceRepo, events, serviceSession, cfg.Directory.RefreshInterval)
		if err := refresher.Start(); err != nil {
			log.Printf("Warning: Failed to start directory refresher: %v", err)
			refresher = nil
		}
	} else {
		log.Println("No service token configured, directory cache refreshes on demand only")
	}

	staticRoot := cfg.StaticDir
	if info, err := os.Stat(staticRoot); err != nil || !info.IsDir() {
		staticRoot = ""
	}

	router := api.NewRouter(api.Services{
		DB:             db,
		Hub:            hub,
		Registry:       registry,
		Directory:      directoryClient,
		Doors:          provisioningClient,
		Devices:        deviceRepo,
		Assignments:    assignmentRepo,
		ProbeDeviceAPI: deviceAPI.Probe,
		StaticDir:      staticRoot,
	})

	// Scans and multi-door submissions can outlast a short write timeout
	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Workflow.ScanTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		log.Printf("Server listening on %s (submission strategy: %s)", cfg.Addr, cfg.Workflow.SubmissionStrategy)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	if refresher != nil {
		refresher.Stop()
	}

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	registry.Stop()
	hub.Stop()

	log.Println("Server stopped")
}

// newServiceSession builds the session background jobs act with.
func newServiceSession(api config.APIConfig) (*session.Session, error) {
	sess, err := session.New(api.ServiceToken)
	if err != nil {
		return nil, err
	}
	if api.ServiceUserID != "" {
		sess.UserID = api.ServiceUserID
	}
	return sess, nil
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://localhost" + addr + "/api/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
