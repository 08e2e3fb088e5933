package models

import "time"

// AssignmentRecord is the outcome of submitting one door of an assignment.
// Credential material (PINs, tag ids) is never stored.
type AssignmentRecord struct {
	ID           string    `json:"id"`
	WorkflowID   string    `json:"workflow_id"`
	SubjectName  string    `json:"subject_name"`
	DeviceID     string    `json:"device_id"`
	DoorID       string    `json:"door_id"`
	DoorName     string    `json:"door_name"`
	Method       string    `json:"method"`
	AccessType   string    `json:"access_type"`
	Role         string    `json:"role"`
	Status       string    `json:"status"`
	ErrorMessage *string   `json:"error_message,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// Assignment record status constants
const (
	AssignmentStatusSubmitted = "submitted"
	AssignmentStatusFailed    = "failed"
)

// Failed returns true if the backend did not accept the door.
func (r *AssignmentRecord) Failed() bool {
	return r.Status == AssignmentStatusFailed
}
