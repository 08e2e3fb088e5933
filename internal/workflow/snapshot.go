package workflow

import "time"

// DoorState is the rendered state of one selectable door. PINs are reported
// by length only.
type DoorState struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	DeviceID  string       `json:"device_id"`
	Selected  bool         `json:"selected"`
	Method    AccessMethod `json:"method,omitempty"`
	NFCTagID  string       `json:"nfc_tag_id,omitempty"`
	PINLength int          `json:"pin_length"`
	Scanning  bool         `json:"scanning"`
	Ready     bool         `json:"ready"`
}

// Snapshot is an immutable copy of a workflow's state.
type Snapshot struct {
	ID           string             `json:"id"`
	SubjectName  string             `json:"subject_name"`
	SubjectEmail string             `json:"subject_email,omitempty"`
	SubjectPhone string             `json:"subject_phone,omitempty"`
	Role         Role               `json:"role"`
	Window       AccessWindow       `json:"access_window"`
	WindowActive bool               `json:"access_window_active"`
	Doors        []DoorState        `json:"doors"`
	Ready        bool               `json:"ready"`
	Problems     []*ValidationError `json:"problems"`
	Submitting   bool               `json:"submitting"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// Snapshot returns a copy of the current state.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()

	a := w.assignment
	problems := w.problems()
	s := Snapshot{
		ID:           w.id,
		SubjectName:  a.SubjectName,
		SubjectEmail: a.SubjectEmail,
		SubjectPhone: a.SubjectPhone,
		Role:         a.Role,
		Window:       a.Window,
		WindowActive: w.deps.Evaluator.ActiveAt(a.Window, w.deps.Now()),
		Doors:        make([]DoorState, 0, len(w.doors)),
		Ready:        len(problems) == 0,
		Problems:     problems,
		Submitting:   w.submitting,
		UpdatedAt:    w.touchedAt,
	}
	if s.Problems == nil {
		s.Problems = []*ValidationError{}
	}

	for _, door := range w.doors {
		sel := a.Selections[door.ID]
		cred := a.Credentials[door.ID]
		s.Doors = append(s.Doors, DoorState{
			ID:        door.ID,
			Name:      door.Name,
			DeviceID:  door.DeviceID,
			Selected:  sel.Selected,
			Method:    sel.Method,
			NFCTagID:  cred.NFCTagID,
			PINLength: len(cred.VirtualPIN),
			Scanning:  cred.Scanning,
			Ready:     sel.Selected && a.doorProblem(door.ID) == nil,
		})
	}
	return s
}
