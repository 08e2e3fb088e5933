package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/door-access-manager/backend/internal/deviceapi"
	"github.com/door-access-manager/backend/internal/session"
)

var (
	// ErrUnauthorized is returned when the directory rejects the token.
	ErrUnauthorized = errors.New("directory: unauthorized")
	// ErrUnavailable is returned for network, server and decoding failures.
	ErrUnavailable = errors.New("directory: unavailable")
)

// Client is the device directory client. It is stateless and safe to share.
type Client struct {
	api *deviceapi.Client
}

// NewClient creates a new directory client on top of the device API transport.
func NewClient(api *deviceapi.Client) *Client {
	return &Client{api: api}
}

// FetchDevices retrieves every device registered to the session's account.
func (c *Client) FetchDevices(ctx context.Context, sess *session.Session) ([]Device, error) {
	if err := session.Validate(sess); err != nil {
		return nil, err
	}

	body, err := c.api.Post(ctx, sess, "/device/get_devices", map[string]string{
		"userId": sess.UserID,
	})
	if err != nil {
		return nil, classify("fetching devices", err)
	}

	devices, err := decodeDevices(body)
	if err != nil {
		return nil, fmt.Errorf("fetching devices: %w: %v", ErrUnavailable, err)
	}
	return devices, nil
}

// AddDevice registers a new device under the session's account.
func (c *Client) AddDevice(ctx context.Context, sess *session.Session, name string) error {
	if err := session.Validate(sess); err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("device name is required")
	}

	_, err := c.api.Post(ctx, sess, "/device/add_device", map[string]string{
		"userId":     sess.UserID,
		"deviceName": name,
	})
	if err != nil {
		return classify("adding device", err)
	}
	return nil
}

// AddDoor adds a named door to an existing device.
func (c *Client) AddDoor(ctx context.Context, sess *session.Session, deviceID, doorName string) error {
	if err := session.Validate(sess); err != nil {
		return err
	}
	if deviceID == "" || doorName == "" {
		return fmt.Errorf("device id and door name are required")
	}

	_, err := c.api.Post(ctx, sess, "/device/add_door", map[string]string{
		"userId":   sess.UserID,
		"deviceId": deviceID,
		"doorName": doorName,
	})
	if err != nil {
		return classify("adding door", err)
	}
	return nil
}

func classify(op string, err error) error {
	switch {
	case errors.Is(err, session.ErrMissingCredentials):
		return err
	case deviceapi.IsUnauthorized(err):
		return fmt.Errorf("%s: %w: %v", op, ErrUnauthorized, err)
	default:
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
}
