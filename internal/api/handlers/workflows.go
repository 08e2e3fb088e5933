package handlers

import (
	"net/http"
	"strconv"

	"github.com/door-access-manager/backend/internal/api/middleware"
	"github.com/door-access-manager/backend/internal/directory"
	"github.com/door-access-manager/backend/internal/pin"
	"github.com/door-access-manager/backend/internal/workflow"
)

// workflowFrom resolves the {id} path variable for the calling operator,
// writing a 404 if unknown or owned by someone else.
func workflowFrom(reg *workflow.Registry, w http.ResponseWriter, r *http.Request) (*workflow.Workflow, bool) {
	wf, err := reg.Get(middleware.Session(r.Context()), pathVar(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return wf, true
}

// OpenWorkflow creates an empty workflow.
func OpenWorkflow(reg *workflow.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wf, err := reg.Open(middleware.Session(r.Context()))
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, wf.Snapshot())
	}
}

// GetWorkflow returns a workflow snapshot.
func GetWorkflow(reg *workflow.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wf, ok := workflowFrom(reg, w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, wf.Snapshot())
	}
}

// CloseWorkflow abandons a workflow.
func CloseWorkflow(reg *workflow.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := reg.Close(middleware.Session(r.Context()), pathVar(r, "id")); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// LoadDoorsResponse is the response of a door load.
type LoadDoorsResponse struct {
	Devices  []directory.Device `json:"devices"`
	Workflow workflow.Snapshot  `json:"workflow"`
}

// LoadDoors (re)loads the selectable doors from the directory.
func LoadDoors(reg *workflow.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wf, ok := workflowFrom(reg, w, r)
		if !ok {
			return
		}

		devices, err := wf.LoadDoors(r.Context(), middleware.Session(r.Context()))
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, LoadDoorsResponse{Devices: devices, Workflow: wf.Snapshot()})
	}
}

// UpdateSubjectRequest sets the assignee. Omitted fields are left unchanged.
type UpdateSubjectRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
	Role  *string `json:"role"`
}

// UpdateSubject sets the assignee's details.
func UpdateSubject(reg *workflow.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wf, ok := workflowFrom(reg, w, r)
		if !ok {
			return
		}

		var req UpdateSubjectRequest
		if !decodeBody(w, r, &req) {
			return
		}

		if req.Role != nil {
			if err := wf.SetRole(workflow.Role(*req.Role)); err != nil {
				writeError(w, r, err)
				return
			}
		}
		if req.Name != nil {
			wf.SetSubjectName(*req.Name)
		}
		if req.Email != nil {
			wf.SetSubjectEmail(*req.Email)
		}
		if req.Phone != nil {
			wf.SetSubjectPhone(*req.Phone)
		}

		writeJSON(w, http.StatusOK, wf.Snapshot())
	}
}

// UpdateWindow replaces the access window.
func UpdateWindow(reg *workflow.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wf, ok := workflowFrom(reg, w, r)
		if !ok {
			return
		}

		var req pin.Window
		if !decodeBody(w, r, &req) {
			return
		}

		if err := wf.SetAccessWindow(req.Kind, req); err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, wf.Snapshot())
	}
}

// ToggleDoor flips a door's selection.
func ToggleDoor(reg *workflow.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wf, ok := workflowFrom(reg, w, r)
		if !ok {
			return
		}

		if err := wf.ToggleDoor(pathVar(r, "door")); err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, wf.Snapshot())
	}
}

// SelectMethodRequest represents the request body for choosing a method.
type SelectMethodRequest struct {
	Method string `json:"method"`
}

// SelectMethod sets a door's access method. Choosing NFC starts a scan and
// answers 202 Accepted.
func SelectMethod(reg *workflow.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wf, ok := workflowFrom(reg, w, r)
		if !ok {
			return
		}

		var req SelectMethodRequest
		if !decodeBody(w, r, &req) {
			return
		}

		scan, err := wf.SelectMethod(middleware.Session(r.Context()), pathVar(r, "door"), workflow.AccessMethod(req.Method))
		if err != nil {
			writeError(w, r, err)
			return
		}

		status := http.StatusOK
		if scan != nil {
			status = http.StatusAccepted
		}
		writeJSON(w, status, wf.Snapshot())
	}
}

// ScanDoor starts, or retries, an NFC scan. With ?wait=true the handler
// blocks until the scan finishes and reports its outcome.
func ScanDoor(reg *workflow.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wf, ok := workflowFrom(reg, w, r)
		if !ok {
			return
		}

		scan, err := wf.RetryScan(middleware.Session(r.Context()), pathVar(r, "door"))
		if err != nil {
			writeError(w, r, err)
			return
		}

		if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); !wait {
			writeJSON(w, http.StatusAccepted, wf.Snapshot())
			return
		}

		if _, err := scan.Wait(r.Context()); err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, wf.Snapshot())
	}
}

// AppendPinRequest represents one keypad press.
type AppendPinRequest struct {
	Digit string `json:"digit"`
}

// PinResponse reports whether a keypad press changed the PIN.
type PinResponse struct {
	Accepted bool              `json:"accepted"`
	Workflow workflow.Snapshot `json:"workflow"`
}

// AppendPinDigit presses a keypad key for a door.
func AppendPinDigit(reg *workflow.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wf, ok := workflowFrom(reg, w, r)
		if !ok {
			return
		}

		var req AppendPinRequest
		if !decodeBody(w, r, &req) {
			return
		}

		accepted, err := wf.AppendPinDigit(pathVar(r, "door"), req.Digit)
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, PinResponse{Accepted: accepted, Workflow: wf.Snapshot()})
	}
}

// DeletePinDigit removes the last keypad key for a door.
func DeletePinDigit(reg *workflow.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wf, ok := workflowFrom(reg, w, r)
		if !ok {
			return
		}

		if err := wf.DeletePinDigit(pathVar(r, "door")); err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, wf.Snapshot())
	}
}

// ReadyResponse is the readiness of a workflow.
type ReadyResponse struct {
	Ready    bool                        `json:"ready"`
	Problems []*workflow.ValidationError `json:"problems"`
}

// GetReady reports whether the workflow can be submitted and why not.
func GetReady(reg *workflow.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wf, ok := workflowFrom(reg, w, r)
		if !ok {
			return
		}

		problems := wf.Validate()
		if problems == nil {
			problems = []*workflow.ValidationError{}
		}
		writeJSON(w, http.StatusOK, ReadyResponse{Ready: len(problems) == 0, Problems: problems})
	}
}

// SubmitResponse is the response of a fully successful submission.
type SubmitResponse struct {
	Result   workflow.SubmissionResult `json:"result"`
	Workflow workflow.Snapshot         `json:"workflow"`
}

// Submit sends the assignment to the provisioning API.
func Submit(reg *workflow.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wf, ok := workflowFrom(reg, w, r)
		if !ok {
			return
		}

		result, err := wf.Submit(r.Context(), middleware.Session(r.Context()))
		if err != nil {
			writeError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, SubmitResponse{Result: result, Workflow: wf.Snapshot()})
	}
}

// ResetWorkflow discards the pending assignment.
func ResetWorkflow(reg *workflow.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		wf, ok := workflowFrom(reg, w, r)
		if !ok {
			return
		}

		wf.Reset()
		writeJSON(w, http.StatusOK, wf.Snapshot())
	}
}
