package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/door-access-manager/backend/internal/storage/models"
)

// DeviceRepository stores the cached device directory.
type DeviceRepository struct {
	BaseRepository
}

// NewDeviceRepository creates a new device repository.
func NewDeviceRepository(db *DB) *DeviceRepository {
	return &DeviceRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// ReplaceAll swaps the cached directory for devices in one transaction.
func (r *DeviceRepository) ReplaceAll(ctx context.Context, devices []models.CachedDevice) error {
	now := r.Now()

	return r.Transaction(func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM cached_doors"); err != nil {
			return fmt.Errorf("clearing doors: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM cached_devices"); err != nil {
			return fmt.Errorf("clearing devices: %w", err)
		}

		for _, d := range devices {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO cached_devices (id, name, status, refreshed_at)
				VALUES (?, ?, ?, ?)
			`, d.ID, d.Name, d.Status, now); err != nil {
				return fmt.Errorf("inserting device %s: %w", d.ID, err)
			}

			for _, door := range d.Doors {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO cached_doors (id, device_id, name) VALUES (?, ?, ?)
				`, door.ID, d.ID, door.Name); err != nil {
					return fmt.Errorf("inserting door %s: %w", door.ID, err)
				}
			}
		}

		return nil
	})
}

// List retrieves all cached devices with their doors.
func (r *DeviceRepository) List(ctx context.Context) ([]models.CachedDevice, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT id, name, status, refreshed_at
		FROM cached_devices
		ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying devices: %w", err)
	}
	defer rows.Close()

	var devices []models.CachedDevice
	index := make(map[string]int)
	for rows.Next() {
		var d models.CachedDevice
		if err := rows.Scan(&d.ID, &d.Name, &d.Status, &d.RefreshedAt); err != nil {
			return nil, fmt.Errorf("scanning device: %w", err)
		}
		index[d.ID] = len(devices)
		devices = append(devices, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	doorRows, err := r.DB().QueryContext(ctx, `
		SELECT id, device_id, name FROM cached_doors ORDER BY device_id, name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying doors: %w", err)
	}
	defer doorRows.Close()

	for doorRows.Next() {
		var door models.CachedDoor
		if err := doorRows.Scan(&door.ID, &door.DeviceID, &door.Name); err != nil {
			return nil, fmt.Errorf("scanning door: %w", err)
		}
		if i, ok := index[door.DeviceID]; ok {
			devices[i].Doors = append(devices[i].Doors, door)
		}
	}

	return devices, doorRows.Err()
}

// Count returns the number of cached devices and how many are active.
func (r *DeviceRepository) Count(ctx context.Context) (total, active int, err error) {
	err = r.DB().QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM cached_devices
	`, models.DeviceStatusActive).Scan(&total, &active)
	if err != nil {
		return 0, 0, fmt.Errorf("counting devices: %w", err)
	}
	return total, active, nil
}
