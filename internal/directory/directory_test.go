package directory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/door-access-manager/backend/internal/deviceapi"
	"github.com/door-access-manager/backend/internal/session"
	"github.com/door-access-manager/backend/internal/storage"
	"github.com/door-access-manager/backend/internal/storage/models"
)

func newTestClient(t *testing.T, status int, body string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/device/get_devices" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	api, err := deviceapi.NewClient(deviceapi.Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("failed to create api client: %v", err)
	}
	return NewClient(api)
}

var testSession = &session.Session{Token: "token", UserID: "operator-1"}

func TestFetchDevicesActiveFilter(t *testing.T) {
	c := newTestClient(t, http.StatusOK, `[
		{"deviceId":"D1","name":"Front Door","status":"active"},
		{"deviceId":"D2","name":"Back Door","status":"inactive"}
	]`)

	devices, err := c.FetchDevices(context.Background(), testSession)
	if err != nil {
		t.Fatalf("FetchDevices() failed: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(devices))
	}

	doors := ActiveDoors(devices)
	if len(doors) != 1 {
		t.Fatalf("expected 1 active door, got %d", len(doors))
	}
	if doors[0].ID != "D1" || doors[0].Name != "Front Door" || doors[0].DeviceID != "D1" {
		t.Fatalf("unexpected door %+v", doors[0])
	}
}

func TestFetchDevicesKeyedForm(t *testing.T) {
	c := newTestClient(t, http.StatusOK, `{
		"dev-b": {"deviceName":"Warehouse","status":"online","doors":{"Dock":{},"Office":{}}},
		"dev-a": {"deviceName":"Lobby","status":"offline"}
	}`)

	devices, err := c.FetchDevices(context.Background(), testSession)
	if err != nil {
		t.Fatalf("FetchDevices() failed: %v", err)
	}
	if len(devices) != 2 || devices[0].ID != "dev-a" || devices[1].ID != "dev-b" {
		t.Fatalf("expected devices sorted by id, got %+v", devices)
	}
	if devices[0].Active() {
		t.Fatalf("expected offline device inactive")
	}

	doors := ActiveDoors(devices)
	if len(doors) != 2 || doors[0].ID != "dev-b/Dock" || doors[1].Name != "Office" {
		t.Fatalf("unexpected doors %+v", doors)
	}
}

func TestFetchDevicesErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad token"}`, ErrUnauthorized},
		{"server error", http.StatusInternalServerError, `oops`, ErrUnavailable},
		{"malformed", http.StatusOK, `"devices"`, ErrUnavailable},
		{"missing status", http.StatusOK, `[{"deviceId":"D1"}]`, ErrUnavailable},
		{"missing id", http.StatusOK, `[{"name":"x","status":"active"}]`, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.status, tt.body)
			if _, err := c.FetchDevices(context.Background(), testSession); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestFetchDevicesMissingCredentials(t *testing.T) {
	c := newTestClient(t, http.StatusOK, `[]`)
	if _, err := c.FetchDevices(context.Background(), nil); !errors.Is(err, session.ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

type memoryCache struct {
	devices []models.CachedDevice
}

func (m *memoryCache) ReplaceAll(_ context.Context, devices []models.CachedDevice) error {
	m.devices = devices
	return nil
}

type countingNotifier struct {
	devices, doors int
}

func (n *countingNotifier) BroadcastDirectoryRefreshed(devices, activeDoors int) {
	n.devices, n.doors = devices, activeDoors
}

func TestRefreshNow(t *testing.T) {
	c := newTestClient(t, http.StatusOK, `[
		{"deviceId":"D1","name":"Front","status":"active","doors":[{"name":"Main"},{"name":"Side"}]},
		{"deviceId":"D2","name":"Back","status":"inactive"}
	]`)
	cache := &memoryCache{}
	notifier := &countingNotifier{}

	r := NewRefresher(c, cache, notifier, testSession, 0)
	if err := r.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow() failed: %v", err)
	}

	if len(cache.devices) != 2 || len(cache.devices[0].Doors) != 2 {
		t.Fatalf("unexpected cached devices %+v", cache.devices)
	}
	if cache.devices[0].Doors[1].ID != "D1/Side" {
		t.Fatalf("unexpected door id %q", cache.devices[0].Doors[1].ID)
	}
	if notifier.devices != 2 || notifier.doors != 2 {
		t.Fatalf("unexpected notification %+v", notifier)
	}
}

func TestDoorIDsDoNotCollide(t *testing.T) {
	c := newTestClient(t, http.StatusOK, `[
		{"deviceId":"A/B","name":"Gate","status":"active"},
		{"deviceId":"A","name":"Hall","status":"active","doors":[{"name":"B"}]},
		{"deviceId":"A","name":"Hall again","status":"active"}
	]`)

	devices, err := c.FetchDevices(context.Background(), testSession)
	if err != nil {
		t.Fatalf("FetchDevices() failed: %v", err)
	}
	if len(devices) != 2 {
		t.Fatalf("expected duplicate device dropped, got %+v", devices)
	}

	doors := ActiveDoors(devices)
	if len(doors) != 2 || doors[0].ID == doors[1].ID {
		t.Fatalf("expected distinct door ids, got %+v", doors)
	}
	if doors[0].ID != "A%2FB" || doors[1].ID != "A/B" {
		t.Fatalf("unexpected door ids %q and %q", doors[0].ID, doors[1].ID)
	}

	db, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	r := NewRefresher(c, storage.NewDeviceRepository(db), nil, testSession, 0)
	if err := r.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow() into SQLite failed: %v", err)
	}
}
