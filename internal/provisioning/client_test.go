package provisioning

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/door-access-manager/backend/internal/deviceapi"
	"github.com/door-access-manager/backend/internal/pin"
	"github.com/door-access-manager/backend/internal/session"
)

var testSession = &session.Session{Token: "token", UserID: "operator-1"}

// newTestClient serves every request with handler and returns a client for it.
func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	return newTestClientWithOptions(t, handler, Options{})
}

func newTestClientWithOptions(t *testing.T, handler http.HandlerFunc, opts Options) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	api, err := deviceapi.NewClient(deviceapi.Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("failed to create api client: %v", err)
	}
	return NewClient(api, opts)
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}
}

func TestParseAckFailsClosed(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"accepted", `{"accepted":true}`, nil},
		{"success", `{"success":true,"message":"ok"}`, nil},
		{"status code", `{"statusCode":200}`, nil},
		{"accepted false", `{"accepted":false,"error":"door busy"}`, ErrRejected},
		{"status code 400", `{"statusCode":400}`, ErrRejected},
		{"success false overrides status", `{"success":false,"statusCode":200}`, ErrRejected},
		{"no indicator", `{"message":"done"}`, ErrUnexpectedResponse},
		{"empty object", `{}`, ErrUnexpectedResponse},
		{"array", `[{"accepted":true}]`, ErrUnexpectedResponse},
		{"string status code", `{"statusCode":"200"}`, ErrUnexpectedResponse},
		{"not json", `OK`, ErrUnexpectedResponse},
		{"empty", ``, ErrUnexpectedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseAck([]byte(tt.body))
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestScanNFC(t *testing.T) {
	var got map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/scan-nfc" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer token" {
			t.Errorf("missing bearer token")
		}
		json.NewDecoder(r.Body).Decode(&got)
		respond(http.StatusOK, `{"nfcId":"TAG77"}`)(w, r)
	})

	tag, err := c.ScanNFC(context.Background(), testSession, ScanRequest{DeviceID: "D1", SubjectName: "Alice"})
	if err != nil {
		t.Fatalf("ScanNFC() failed: %v", err)
	}
	if tag != "TAG77" {
		t.Fatalf("expected TAG77, got %q", tag)
	}
	if got["deviceId"] != "D1" || got["username"] != "Alice" {
		t.Fatalf("unexpected request body %v", got)
	}
}

func TestScanNFCWithoutTag(t *testing.T) {
	c := newTestClient(t, respond(http.StatusOK, `{"message":"timeout"}`))

	if _, err := c.ScanNFC(context.Background(), testSession, ScanRequest{DeviceID: "D1"}); !errors.Is(err, ErrNoTag) {
		t.Fatalf("expected ErrNoTag, got %v", err)
	}
}

func TestScanNFCRequiresSession(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected without a session")
	})

	if _, err := c.ScanNFC(context.Background(), nil, ScanRequest{}); !errors.Is(err, session.ErrMissingCredentials) {
		t.Fatalf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestSubmitCredentialPayload(t *testing.T) {
	var got map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/device/add_assignee" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		respond(http.StatusOK, `{"accepted":true}`)(w, r)
	})

	_, err := c.SubmitCredential(context.Background(), testSession, Submission{
		DeviceID:    "D1",
		DoorName:    "Front Door",
		SubjectName: "Alice",
		Role:        "user",
		Method:      "VIRTUAL_PIN",
		VirtualPIN:  "123456",
		Window:      pin.Permanent(),
	})
	if err != nil {
		t.Fatalf("SubmitCredential() failed: %v", err)
	}

	want := map[string]string{
		"userId":       "operator-1",
		"deviceId":     "D1",
		"doorName":     "Front Door",
		"assigneeName": "Alice",
		"method":       "VIRTUAL_PIN",
		"virtualPin":   "123456",
		"role":         "user",
		"accessType":   "permanent",
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("field %s: expected %q, got %q", k, v, got[k])
		}
	}
	if _, ok := got["nfcId"]; ok {
		t.Fatalf("expected nfcId omitted for a PIN credential")
	}
}

func TestSubmitCredentialErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":"expired"}`, ErrUnauthorized},
		{"bad request", http.StatusBadRequest, `{"error":"unknown door"}`, ErrRejected},
		{"server error", http.StatusBadGateway, ``, ErrUnavailable},
		{"ok without indicator", http.StatusOK, `{"message":"hi"}`, ErrUnexpectedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, respond(tt.status, tt.body))
			_, err := c.SubmitCredential(context.Background(), testSession, Submission{DeviceID: "D1"})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestSubmitBatch(t *testing.T) {
	c := newTestClient(t, respond(http.StatusOK, `{"results":[
		{"deviceId":"D1","doorName":"Front","accepted":true},
		{"deviceId":"D2","doorName":"Back","accepted":false,"error":"offline"}
	]}`))

	subs := []Submission{
		{DeviceID: "D1", DoorName: "Front"},
		{DeviceID: "D2", DoorName: "Back"},
		{DeviceID: "D3", DoorName: "Side"},
	}
	outcomes, err := c.SubmitBatch(context.Background(), testSession, subs)
	if err != nil {
		t.Fatalf("SubmitBatch() failed: %v", err)
	}
	if outcomes[subs[0].Key()] != nil {
		t.Fatalf("expected D1 accepted, got %v", outcomes[subs[0].Key()])
	}
	if !errors.Is(outcomes[subs[1].Key()], ErrRejected) {
		t.Fatalf("expected D2 rejected, got %v", outcomes[subs[1].Key()])
	}
	if !errors.Is(outcomes[subs[2].Key()], ErrUnexpectedResponse) {
		t.Fatalf("expected missing D3 to fail closed, got %v", outcomes[subs[2].Key()])
	}
}

func TestSubmitBatchWithoutResults(t *testing.T) {
	c := newTestClient(t, respond(http.StatusOK, `{"accepted":true}`))

	if _, err := c.SubmitBatch(context.Background(), testSession, []Submission{{DeviceID: "D1"}}); !errors.Is(err, ErrUnexpectedResponse) {
		t.Fatalf("expected ErrUnexpectedResponse, got %v", err)
	}
}

func TestOpenDoorValidatesPIN(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request expected for an invalid PIN")
	})

	if _, err := c.OpenDoor(context.Background(), testSession, "D1", "Front", "12E"); err == nil {
		t.Fatalf("expected invalid PIN error")
	}
}

func TestSubmitWithoutResponseTimesOut(t *testing.T) {
	release := make(chan struct{})
	hang := func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}
	c := newTestClientWithOptions(t, hang, Options{ScanTimeout: time.Minute, RequestTimeout: 50 * time.Millisecond})
	// Runs before the server closes, which waits for handlers.
	t.Cleanup(func() { close(release) })

	done := make(chan error, 1)
	go func() {
		_, err := c.SubmitCredential(context.Background(), testSession, Submission{DeviceID: "D1", DoorName: "Front Door", Method: "PHYSICAL_KEY"})
		done <- err
	}()

	select {
	case err := <-done:
		if !errors.Is(err, ErrUnavailable) {
			t.Fatalf("expected ErrUnavailable, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("SubmitCredential did not give up on a silent backend")
	}

	if _, err := c.SubmitBatch(context.Background(), testSession, []Submission{{DeviceID: "D1", DoorName: "Front Door"}}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected batch to time out as ErrUnavailable, got %v", err)
	}
}
