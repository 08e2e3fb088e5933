package websocket

import (
	"encoding/json"
	"time"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypeScanStatusChanged   MessageType = "scan.status_changed"
	TypeSubmissionCompleted MessageType = "submission.completed"
	TypeDirectoryRefreshed  MessageType = "directory.refreshed"

	// Client -> Server command types
	TypeSubscribe   MessageType = "subscribe"
	TypeUnsubscribe MessageType = "unsubscribe"
	TypePing        MessageType = "ping"

	// Server -> Client response types
	TypeSubscribeAck   MessageType = "subscribe.ack"
	TypeUnsubscribeAck MessageType = "unsubscribe.ack"
	TypePong           MessageType = "pong"
	TypeError          MessageType = "error"
)

// Message represents a WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message to JSON bytes.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// ScanStatusPayload is the payload for scan.status_changed events.
type ScanStatusPayload struct {
	WorkflowID string `json:"workflow_id"`
	DoorID     string `json:"door_id"`
	Status     string `json:"status"` // scanning, scanned or failed
	NFCTagID   string `json:"nfc_tag_id,omitempty"`
	Message    string `json:"message,omitempty"`
}

// SubmissionPayload is the payload for submission.completed events.
type SubmissionPayload struct {
	WorkflowID string   `json:"workflow_id"`
	Outcome    string   `json:"outcome"`
	Succeeded  []string `json:"succeeded"`
	Failed     []string `json:"failed"`
}

// DirectoryPayload is the payload for directory.refreshed events.
type DirectoryPayload struct {
	Devices     int `json:"devices"`
	ActiveDoors int `json:"active_doors"`
}

// SubscriptionPayload carries the workflow of a subscribe/unsubscribe command
// and its acknowledgement.
type SubscriptionPayload struct {
	WorkflowID string `json:"workflow_id"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	OriginalType string `json:"original_type,omitempty"`
}

// command is an inbound client message.
type command struct {
	Type    MessageType         `json:"type"`
	Payload SubscriptionPayload `json:"payload"`
}

// HandleCommand applies a client command and returns the reply to send back.
func HandleCommand(client *Client, data []byte) Message {
	var cmd command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return NewMessage(TypeError, ErrorPayload{Code: "invalid_message", Message: "message is not valid JSON"})
	}

	switch cmd.Type {
	case TypePing:
		return NewMessage(TypePong, nil)
	case TypeSubscribe, TypeUnsubscribe:
		if cmd.Payload.WorkflowID == "" {
			return NewMessage(TypeError, ErrorPayload{
				Code:         "invalid_message",
				Message:      "workflow_id is required",
				OriginalType: string(cmd.Type),
			})
		}
		if cmd.Type == TypeSubscribe {
			if !client.Subscribe(cmd.Payload.WorkflowID) {
				return NewMessage(TypeError, ErrorPayload{
					Code:         "not_found",
					Message:      "workflow not found",
					OriginalType: string(cmd.Type),
				})
			}
			return NewMessage(TypeSubscribeAck, cmd.Payload)
		}
		client.Unsubscribe(cmd.Payload.WorkflowID)
		return NewMessage(TypeUnsubscribeAck, cmd.Payload)
	default:
		return NewMessage(TypeError, ErrorPayload{
			Code:         "unknown_type",
			Message:      "unsupported message type",
			OriginalType: string(cmd.Type),
		})
	}
}
