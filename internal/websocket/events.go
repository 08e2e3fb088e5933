package websocket

import (
	"log"
)

// EventBroadcaster handles broadcasting WebSocket events.
type EventBroadcaster struct {
	hub *Hub
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	return &EventBroadcaster{hub: hub}
}

// BroadcastScanStatusChanged tells a workflow's subscribers about a scan.
func (b *EventBroadcaster) BroadcastScanStatusChanged(workflowID, doorID, status, tagID, message string) {
	msg := NewMessage(TypeScanStatusChanged, ScanStatusPayload{
		WorkflowID: workflowID,
		DoorID:     doorID,
		Status:     status,
		NFCTagID:   tagID,
		Message:    message,
	})
	b.send(workflowID, msg)
}

// BroadcastSubmissionCompleted tells a workflow's subscribers how a
// submission ended.
func (b *EventBroadcaster) BroadcastSubmissionCompleted(workflowID, outcome string, succeeded, failed []string) {
	msg := NewMessage(TypeSubmissionCompleted, SubmissionPayload{
		WorkflowID: workflowID,
		Outcome:    outcome,
		Succeeded:  succeeded,
		Failed:     failed,
	})
	b.send(workflowID, msg)
}

// BroadcastDirectoryRefreshed sends a directory refreshed event to everyone.
func (b *EventBroadcaster) BroadcastDirectoryRefreshed(devices, activeDoors int) {
	msg := NewMessage(TypeDirectoryRefreshed, DirectoryPayload{
		Devices:     devices,
		ActiveDoors: activeDoors,
	})
	b.send("", msg)
}

func (b *EventBroadcaster) send(workflowID string, msg Message) {
	data, err := msg.JSON()
	if err != nil {
		log.Printf("Error encoding WebSocket message: %v", err)
		return
	}

	if workflowID == "" {
		b.hub.Broadcast(data)
		return
	}
	b.hub.BroadcastTo(workflowID, data)
}
