package directory

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/door-access-manager/backend/internal/metrics"
	"github.com/door-access-manager/backend/internal/session"
	"github.com/door-access-manager/backend/internal/storage/models"
)

// Fetcher retrieves the device list for a session.
type Fetcher interface {
	FetchDevices(ctx context.Context, sess *session.Session) ([]Device, error)
}

// Cache persists a snapshot of the directory.
type Cache interface {
	ReplaceAll(ctx context.Context, devices []models.CachedDevice) error
}

// Notifier is told about completed refreshes.
type Notifier interface {
	BroadcastDirectoryRefreshed(devices, activeDoors int)
}

// Refresher periodically copies the device directory into the local cache
// using a service session.
type Refresher struct {
	cron     *cron.Cron
	fetcher  Fetcher
	cache    Cache
	notifier Notifier
	session  *session.Session
	interval time.Duration
	timeout  time.Duration
}

// NewRefresher creates a new directory refresher. notifier may be nil.
func NewRefresher(fetcher Fetcher, cache Cache, notifier Notifier, sess *session.Session, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &Refresher{
		cron:     cron.New(),
		fetcher:  fetcher,
		cache:    cache,
		notifier: notifier,
		session:  sess,
		interval: interval,
		timeout:  30 * time.Second,
	}
}

// Start schedules the refresh job and runs one refresh immediately.
func (r *Refresher) Start() error {
	log.Printf("Starting directory refresher (every %s)...", r.interval)

	if _, err := r.cron.AddFunc(fmt.Sprintf("@every %s", r.interval), r.refresh); err != nil {
		return fmt.Errorf("scheduling directory refresh: %w", err)
	}

	go r.refresh()

	r.cron.Start()
	return nil
}

// Stop gracefully shuts down the refresher.
func (r *Refresher) Stop() {
	log.Println("Stopping directory refresher...")
	ctx := r.cron.Stop()
	<-ctx.Done()
	log.Println("Directory refresher stopped")
}

// RefreshNow fetches and caches the directory synchronously.
func (r *Refresher) RefreshNow(ctx context.Context) error {
	devices, err := r.fetcher.FetchDevices(ctx, r.session)
	if err != nil {
		metrics.DirectoryLoads.WithLabelValues("refresher", metrics.ResultFailed).Inc()
		return err
	}
	metrics.DirectoryLoads.WithLabelValues("refresher", metrics.ResultSuccess).Inc()

	if err := r.cache.ReplaceAll(ctx, ToCached(devices)); err != nil {
		return fmt.Errorf("caching devices: %w", err)
	}

	if r.notifier != nil {
		r.notifier.BroadcastDirectoryRefreshed(len(devices), len(ActiveDoors(devices)))
	}
	return nil
}

func (r *Refresher) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	if err := r.RefreshNow(ctx); err != nil {
		log.Printf("Directory refresh failed: %v", err)
	}
}

// ToCached converts directory devices to their cached form.
func ToCached(devices []Device) []models.CachedDevice {
	cached := make([]models.CachedDevice, 0, len(devices))
	for _, d := range devices {
		c := models.CachedDevice{ID: d.ID, Name: d.Name, Status: string(d.Status)}
		for _, door := range d.Doors {
			c.Doors = append(c.Doors, models.CachedDoor{ID: door.ID, DeviceID: door.DeviceID, Name: door.Name})
		}
		cached = append(cached, c)
	}
	return cached
}
