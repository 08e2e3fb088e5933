// Package provisioning is the client for the credential provisioning API:
// NFC scans, credential submission and remote door opening.
package provisioning

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/door-access-manager/backend/internal/deviceapi"
	"github.com/door-access-manager/backend/internal/pin"
	"github.com/door-access-manager/backend/internal/session"
)

var (
	// ErrRejected matches every *RejectedError.
	ErrRejected = errors.New("provisioning: rejected")
	// ErrUnexpectedResponse is returned for bodies that cannot be trusted.
	ErrUnexpectedResponse = errors.New("provisioning: unexpected response")
	// ErrNoTag is returned when a scan completes without a tag id.
	ErrNoTag = errors.New("provisioning: no tag scanned")
	// ErrUnauthorized is returned when the API rejects the token.
	ErrUnauthorized = errors.New("provisioning: unauthorized")
	// ErrUnavailable is returned for network and server failures.
	ErrUnavailable = errors.New("provisioning: unavailable")
)

// RejectedError is an explicit refusal by the provisioning API.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return "provisioning: rejected"
	}
	return "provisioning: rejected: " + e.Message
}

// Is makes errors.Is(err, ErrRejected) work.
func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// ScanRequest asks a device to read the next NFC tag presented to it.
type ScanRequest struct {
	DeviceID    string
	SubjectName string
}

// Submission is a finished credential for one door.
type Submission struct {
	DeviceID     string
	DoorName     string
	SubjectName  string
	SubjectEmail string
	SubjectPhone string
	Role         string
	Method       string
	NFCTagID     string
	VirtualPIN   string
	Window       pin.Window
}

// Key identifies the door a submission targets.
func (s Submission) Key() string {
	return key(s.DeviceID, s.DoorName)
}

func key(deviceID, doorName string) string {
	return deviceID + "\x00" + doorName
}

// Ack is a positive acknowledgement.
type Ack struct {
	Message string
}

// Options configures a Client.
type Options struct {
	// ScanTimeout bounds one scan round-trip. Zero leaves it to the caller.
	ScanTimeout time.Duration

	// RequestTimeout bounds every other request. Zero leaves it to the caller.
	RequestTimeout time.Duration
}

// Client is the provisioning client. It is stateless and safe to share.
//
// Scans wait for a person to present a tag, so the transport should not carry
// its own timeout; each call sets a deadline from Options instead.
type Client struct {
	api            *deviceapi.Client
	scanTimeout    time.Duration
	requestTimeout time.Duration
}

// NewClient creates a new provisioning client on top of the device API transport.
func NewClient(api *deviceapi.Client, opts Options) *Client {
	return &Client{api: api, scanTimeout: opts.ScanTimeout, requestTimeout: opts.RequestTimeout}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}

// ScanNFC blocks until the device reports a tag or the scan fails.
func (c *Client) ScanNFC(ctx context.Context, sess *session.Session, req ScanRequest) (string, error) {
	if err := session.Validate(sess); err != nil {
		return "", err
	}

	ctx, cancel := withTimeout(ctx, c.scanTimeout)
	defer cancel()

	body, err := c.api.Post(ctx, sess, "/scan-nfc", map[string]string{
		"deviceId": req.DeviceID,
		"username": req.SubjectName,
	})
	if err != nil {
		return "", classify("scanning tag", err)
	}

	tag, err := parseScan(body)
	if err != nil {
		return "", fmt.Errorf("scanning tag: %w", err)
	}
	return tag, nil
}

// SubmitCredential provisions one door.
func (c *Client) SubmitCredential(ctx context.Context, sess *session.Session, sub Submission) (Ack, error) {
	if err := session.Validate(sess); err != nil {
		return Ack{}, err
	}

	ctx, cancel := withTimeout(ctx, c.requestTimeout)
	defer cancel()

	body, err := c.api.Post(ctx, sess, "/device/add_assignee", assigneePayload(sess, sub))
	if err != nil {
		return Ack{}, classify("submitting credential", err)
	}

	ack, err := parseAck(body)
	if err != nil {
		return Ack{}, fmt.Errorf("submitting credential: %w", err)
	}
	return ack, nil
}

// SubmitBatch provisions several doors in one request. The returned map holds
// one entry per submission, keyed by Submission.Key, with a nil error for
// accepted doors. A non-nil error means the batch as a whole failed.
func (c *Client) SubmitBatch(ctx context.Context, sess *session.Session, subs []Submission) (map[string]error, error) {
	if err := session.Validate(sess); err != nil {
		return nil, err
	}

	assignees := make([]map[string]string, 0, len(subs))
	for _, s := range subs {
		assignees = append(assignees, assigneePayload(sess, s))
	}

	ctx, cancel := withTimeout(ctx, c.requestTimeout)
	defer cancel()

	body, err := c.api.Post(ctx, sess, "/device/add_assignees", map[string]any{
		"userId":    sess.UserID,
		"assignees": assignees,
	})
	if err != nil {
		return nil, classify("submitting batch", err)
	}

	outcomes, err := parseBatch(body, subs)
	if err != nil {
		return nil, fmt.Errorf("submitting batch: %w", err)
	}
	return outcomes, nil
}

// OpenDoor asks a device to unlock a door using a virtual PIN.
func (c *Client) OpenDoor(ctx context.Context, sess *session.Session, deviceID, doorName, virtualPIN string) (Ack, error) {
	if err := session.Validate(sess); err != nil {
		return Ack{}, err
	}
	if err := pin.Validate(virtualPIN); err != nil {
		return Ack{}, err
	}

	ctx, cancel := withTimeout(ctx, c.requestTimeout)
	defer cancel()

	body, err := c.api.Post(ctx, sess, "/device/opendoor", map[string]string{
		"deviceId":   deviceID,
		"doorname":   doorName,
		"virtualPin": virtualPIN,
	})
	if err != nil {
		return Ack{}, classify("opening door", err)
	}

	ack, err := parseAck(body)
	if err != nil {
		return Ack{}, fmt.Errorf("opening door: %w", err)
	}
	return ack, nil
}

func assigneePayload(sess *session.Session, s Submission) map[string]string {
	p := map[string]string{
		"userId":       sess.UserID,
		"deviceId":     s.DeviceID,
		"doorName":     s.DoorName,
		"assigneeName": s.SubjectName,
		"method":       s.Method,
		"role":         s.Role,
		"accessType":   string(s.Window.Kind),
	}

	optional := map[string]string{
		"email":      s.SubjectEmail,
		"phone":      s.SubjectPhone,
		"nfcId":      s.NFCTagID,
		"virtualPin": s.VirtualPIN,
		"startDate":  s.Window.StartDate,
		"endDate":    s.Window.EndDate,
		"date":       s.Window.Date,
		"startTime":  s.Window.StartTime,
		"endTime":    s.Window.EndTime,
	}
	for k, v := range optional {
		if v != "" {
			p[k] = v
		}
	}
	return p
}

// classify maps transport errors onto the package's sentinel errors.
func classify(op string, err error) error {
	if errors.Is(err, session.ErrMissingCredentials) {
		return err
	}

	var statusErr *deviceapi.StatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.Unauthorized():
			return fmt.Errorf("%s: %w: %v", op, ErrUnauthorized, err)
		case statusErr.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
		default:
			return fmt.Errorf("%s: %w", op, &RejectedError{Message: statusErr.Message})
		}
	}

	return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
}
