package storage

import (
	"context"
	"testing"
	"time"

	"github.com/door-access-manager/backend/internal/storage/models"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	if err := RunMigrations(db); err != nil {
		t.Fatalf("second RunMigrations() failed: %v", err)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&n); err != nil {
		t.Fatalf("counting migrations: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 applied migration, got %d", n)
	}
}

func TestDeviceRepositoryReplaceAll(t *testing.T) {
	db := openTestDB(t)
	repo := NewDeviceRepository(db)
	ctx := context.Background()

	first := []models.CachedDevice{
		{ID: "D1", Name: "Front", Status: models.DeviceStatusActive, Doors: []models.CachedDoor{
			{ID: "D1/main", DeviceID: "D1", Name: "main"},
			{ID: "D1/side", DeviceID: "D1", Name: "side"},
		}},
		{ID: "D2", Name: "Back", Status: models.DeviceStatusInactive, Doors: []models.CachedDoor{
			{ID: "D2", DeviceID: "D2", Name: "Back"},
		}},
	}
	if err := repo.ReplaceAll(ctx, first); err != nil {
		t.Fatalf("ReplaceAll() failed: %v", err)
	}

	devices, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(devices))
	}
	// Ordered by name: Back before Front.
	if devices[0].ID != "D2" || devices[1].ID != "D1" {
		t.Fatalf("unexpected order: %s, %s", devices[0].ID, devices[1].ID)
	}
	if len(devices[1].Doors) != 2 {
		t.Fatalf("expected 2 doors for D1, got %d", len(devices[1].Doors))
	}

	total, active, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() failed: %v", err)
	}
	if total != 2 || active != 1 {
		t.Fatalf("expected 2 total / 1 active, got %d / %d", total, active)
	}

	if err := repo.ReplaceAll(ctx, first[:1]); err != nil {
		t.Fatalf("second ReplaceAll() failed: %v", err)
	}
	devices, err = repo.List(ctx)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(devices) != 1 || devices[0].ID != "D1" {
		t.Fatalf("expected only D1 after replace, got %+v", devices)
	}
}

func TestAssignmentRepository(t *testing.T) {
	db := openTestDB(t)
	repo := NewAssignmentRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	msg := "rejected"
	records := []models.AssignmentRecord{
		{WorkflowID: "wf-1", SubjectName: "Alice", DeviceID: "D1", DoorID: "D1", DoorName: "Front Door",
			Method: "VIRTUAL_PIN", AccessType: "permanent", Role: "user",
			Status: models.AssignmentStatusSubmitted, SubmittedAt: base},
		{WorkflowID: "wf-1", SubjectName: "Alice", DeviceID: "D2", DoorID: "D2", DoorName: "Back Door",
			Method: "NFC", AccessType: "permanent", Role: "user",
			Status: models.AssignmentStatusFailed, ErrorMessage: &msg, SubmittedAt: base.Add(time.Second)},
		{WorkflowID: "wf-2", SubjectName: "Bob", DeviceID: "D1", DoorID: "D1", DoorName: "Front Door",
			Method: "PHYSICAL_KEY", AccessType: "temporary", Role: "admin",
			Status: models.AssignmentStatusSubmitted, SubmittedAt: base.Add(2 * time.Second)},
	}
	for i := range records {
		if err := repo.Create(ctx, &records[i]); err != nil {
			t.Fatalf("Create() failed: %v", err)
		}
		if records[i].ID == "" {
			t.Fatalf("expected generated id")
		}
	}

	recent, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(recent) != 2 || recent[0].SubjectName != "Bob" {
		t.Fatalf("expected newest first, got %+v", recent)
	}

	wf, err := repo.ListByWorkflow(ctx, "wf-1")
	if err != nil {
		t.Fatalf("ListByWorkflow() failed: %v", err)
	}
	if len(wf) != 2 {
		t.Fatalf("expected 2 records for wf-1, got %d", len(wf))
	}
	if !wf[1].Failed() || wf[1].ErrorMessage == nil || *wf[1].ErrorMessage != "rejected" {
		t.Fatalf("expected failed record with message, got %+v", wf[1])
	}

	failed, err := repo.CountByStatus(ctx, models.AssignmentStatusFailed)
	if err != nil {
		t.Fatalf("CountByStatus() failed: %v", err)
	}
	if failed != 1 {
		t.Fatalf("expected 1 failed record, got %d", failed)
	}
}
