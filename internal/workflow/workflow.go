// Package workflow implements the credential assignment workflow: it holds one
// pending assignment, validates it as the operator makes choices, drives NFC
// scans and submits finished credentials to the provisioning API.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/door-access-manager/backend/internal/directory"
	"github.com/door-access-manager/backend/internal/metrics"
	"github.com/door-access-manager/backend/internal/pin"
	"github.com/door-access-manager/backend/internal/provisioning"
	"github.com/door-access-manager/backend/internal/session"
	"github.com/door-access-manager/backend/internal/storage/models"
)

// Directory lists the devices of an account.
type Directory interface {
	FetchDevices(ctx context.Context, sess *session.Session) ([]directory.Device, error)
}

// Provisioner scans tags and provisions credentials.
type Provisioner interface {
	ScanNFC(ctx context.Context, sess *session.Session, req provisioning.ScanRequest) (string, error)
	SubmitCredential(ctx context.Context, sess *session.Session, sub provisioning.Submission) (provisioning.Ack, error)
	SubmitBatch(ctx context.Context, sess *session.Session, subs []provisioning.Submission) (map[string]error, error)
}

// Notifier is told about scan and submission progress.
type Notifier interface {
	BroadcastScanStatusChanged(workflowID, doorID, status, tagID, message string)
	BroadcastSubmissionCompleted(workflowID, outcome string, succeeded, failed []string)
}

// Recorder stores the outcome of each door submission.
type Recorder interface {
	Create(ctx context.Context, rec *models.AssignmentRecord) error
}

// Strategy selects how selected doors are submitted.
type Strategy string

const (
	// StrategyPerDoor sends one request per door.
	StrategyPerDoor Strategy = "per_door"
	// StrategyBatch sends all doors in one request.
	StrategyBatch Strategy = "batch"
)

// Scan status values sent to the Notifier.
const (
	ScanStatusScanning = "scanning"
	ScanStatusScanned  = "scanned"
	ScanStatusFailed   = "failed"
)

// Dependencies are the collaborators shared by every workflow.
type Dependencies struct {
	Directory   Directory
	Provisioner Provisioner
	Strategy    Strategy

	// Optional
	Notifier  Notifier
	Recorder  Recorder
	Evaluator *pin.Evaluator
	Now       func() time.Time
}

// Workflow owns one pending assignment. All methods are safe for concurrent
// use; asynchronous completions that no longer match the state that started
// them are discarded.
type Workflow struct {
	id    string
	owner string
	deps  Dependencies

	base   context.Context
	cancel context.CancelFunc

	mu          sync.Mutex
	epoch       uint64
	revision    uint64
	devices     []directory.Device
	doors       []directory.Door
	doorIndex   map[string]directory.Door
	generations map[string]uint64
	scans       map[string]*Scan
	assignment  Assignment
	submitting  bool
	touchedAt   time.Time
}

// New creates an empty workflow.
func New(id string, deps Dependencies) *Workflow {
	if deps.Strategy == "" {
		deps.Strategy = StrategyPerDoor
	}
	if deps.Evaluator == nil {
		deps.Evaluator = pin.NewEvaluator(nil)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Workflow{
		id:          id,
		deps:        deps,
		base:        ctx,
		cancel:      cancel,
		doorIndex:   make(map[string]directory.Door),
		generations: make(map[string]uint64),
		scans:       make(map[string]*Scan),
		assignment:  newAssignment(nil),
	}
	w.touchedAt = deps.Now()
	return w
}

// ID returns the workflow id.
func (w *Workflow) ID() string {
	return w.id
}

func (w *Workflow) ownedBy(sess *session.Session) bool {
	owner := sess.Owner()
	return owner != "" && owner == w.owner
}

// Close abandons the workflow and cancels in-flight scans.
func (w *Workflow) Close() {
	w.cancel()
	w.Reset()
}

// TouchedAt returns the time of the last operator action.
func (w *Workflow) TouchedAt() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.touchedAt
}

// LoadDoors fetches the directory and re-initialises door selections with the
// doors of active devices, all unselected. On failure the previous state is
// kept.
func (w *Workflow) LoadDoors(ctx context.Context, sess *session.Session) ([]directory.Device, error) {
	if err := session.Validate(sess); err != nil {
		return nil, err
	}

	devices, err := w.deps.Directory.FetchDevices(ctx, sess)
	if err != nil {
		metrics.DirectoryLoads.WithLabelValues("workflow", metrics.ResultFailed).Inc()
		return nil, fmt.Errorf("loading doors: %w: %w", ErrDirectoryUnavailable, err)
	}
	metrics.DirectoryLoads.WithLabelValues("workflow", metrics.ResultSuccess).Inc()

	active := make([]directory.Device, 0, len(devices))
	for _, d := range devices {
		if d.Active() {
			active = append(active, d)
		}
	}
	doors := directory.ActiveDoors(active)

	w.mu.Lock()
	defer w.mu.Unlock()

	w.epoch++
	w.devices = active
	w.doors = doors
	w.doorIndex = make(map[string]directory.Door, len(doors))
	ids := make([]string, 0, len(doors))
	for _, d := range doors {
		w.doorIndex[d.ID] = d
		ids = append(ids, d.ID)
	}
	w.generations = make(map[string]uint64)
	w.scans = make(map[string]*Scan)

	fresh := newAssignment(ids)
	fresh.SubjectName = w.assignment.SubjectName
	fresh.SubjectEmail = w.assignment.SubjectEmail
	fresh.SubjectPhone = w.assignment.SubjectPhone
	fresh.Role = w.assignment.Role
	fresh.Window = w.assignment.Window
	w.assignment = fresh
	w.touch()

	return active, nil
}

// SetSubjectName sets the assignee's name.
func (w *Workflow) SetSubjectName(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.assignment.SubjectName = name
	w.touch()
}

// SetSubjectEmail sets the assignee's email.
func (w *Workflow) SetSubjectEmail(email string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.assignment.SubjectEmail = email
	w.touch()
}

// SetSubjectPhone sets the assignee's phone number.
func (w *Workflow) SetSubjectPhone(phone string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.assignment.SubjectPhone = phone
	w.touch()
}

// SetRole sets the assignee's role.
func (w *Workflow) SetRole(role Role) error {
	role, err := ParseRole(string(role))
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.assignment.Role = role
	w.touch()
	return nil
}

// SetAccessWindow replaces the access window with a window of the given kind.
// Fields that do not belong to kind are dropped. Date ordering is checked at
// submission, not here.
func (w *Workflow) SetAccessWindow(kind pin.Kind, fields AccessWindow) error {
	if _, err := pin.ParseKind(string(kind)); err != nil {
		return invalid("access_window.kind", "%v", err)
	}

	fields.Kind = kind

	w.mu.Lock()
	defer w.mu.Unlock()
	w.assignment.Window = fields.Normalize()
	w.touch()
	return nil
}

// ToggleDoor flips a door's selection. Deselecting clears its method and
// credential and discards any scan in flight.
func (w *Workflow) ToggleDoor(doorID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	sel, err := w.selection(doorID)
	if err != nil {
		return err
	}

	if sel.Selected {
		w.clearDoor(doorID)
	} else {
		w.assignment.Selections[doorID] = DoorSelection{Selected: true}
	}
	w.touch()
	return nil
}

// SelectMethod sets the access method of a selected door. Changing the method
// drops the door's credential. Selecting NFC starts a scan and returns it.
func (w *Workflow) SelectMethod(sess *session.Session, doorID string, method AccessMethod) (*Scan, error) {
	if _, err := ParseAccessMethod(string(method)); err != nil {
		return nil, err
	}

	w.mu.Lock()
	sel, err := w.selection(doorID)
	if err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if !sel.Selected {
		w.mu.Unlock()
		return nil, invalid("doors."+doorID, "door is not selected")
	}

	if sel.Method != method {
		w.generations[doorID]++
		delete(w.scans, doorID)
		delete(w.assignment.Credentials, doorID)
		w.assignment.Selections[doorID] = DoorSelection{Selected: true, Method: method}
	}
	w.touch()

	if method != MethodNFC {
		w.mu.Unlock()
		return nil, nil
	}

	scan, started, err := w.beginScanLocked(sess, doorID)
	w.mu.Unlock()
	if started {
		w.notifyScan(doorID, ScanStatusScanning, "", "")
	}
	return scan, err
}

// BeginNfcScan asks the door's device to read a tag. While a scan for the door
// is in flight the same Scan is returned and no request is sent.
func (w *Workflow) BeginNfcScan(sess *session.Session, doorID string) (*Scan, error) {
	w.mu.Lock()
	sel, err := w.selection(doorID)
	if err != nil {
		w.mu.Unlock()
		return nil, err
	}
	if !sel.Selected || sel.Method != MethodNFC {
		w.mu.Unlock()
		return nil, invalid("doors."+doorID+".method", "door is not selected for NFC")
	}

	scan, started, err := w.beginScanLocked(sess, doorID)
	w.touch()
	w.mu.Unlock()

	if started {
		w.notifyScan(doorID, ScanStatusScanning, "", "")
	}
	return scan, err
}

// RetryScan re-runs the scan for an NFC door after a failure.
func (w *Workflow) RetryScan(sess *session.Session, doorID string) (*Scan, error) {
	return w.BeginNfcScan(sess, doorID)
}

func (w *Workflow) beginScanLocked(sess *session.Session, doorID string) (*Scan, bool, error) {
	if scan, ok := w.scans[doorID]; ok {
		return scan, false, nil
	}
	if err := session.Validate(sess); err != nil {
		return nil, false, err
	}

	door := w.doorIndex[doorID]
	scan := newScan(doorID)
	w.generations[doorID]++
	w.scans[doorID] = scan
	w.assignment.Credentials[doorID] = Credential{Scanning: true}

	epoch, gen := w.epoch, w.generations[doorID]
	req := provisioning.ScanRequest{DeviceID: door.DeviceID, SubjectName: w.assignment.SubjectName}

	go func() {
		tag, err := w.deps.Provisioner.ScanNFC(w.base, sess, req)
		w.completeScan(scan, epoch, gen, tag, err)
	}()

	return scan, true, nil
}

func (w *Workflow) completeScan(scan *Scan, epoch, gen uint64, tag string, scanErr error) {
	w.mu.Lock()
	if epoch != w.epoch || gen != w.generations[scan.DoorID] || w.scans[scan.DoorID] != scan {
		w.mu.Unlock()
		metrics.Scans.WithLabelValues(metrics.ResultStale).Inc()
		scan.finish("", ErrScanDiscarded)
		return
	}

	delete(w.scans, scan.DoorID)
	cred := w.assignment.Credentials[scan.DoorID]
	cred.Scanning = false
	if scanErr == nil {
		cred.NFCTagID = tag
	}
	w.assignment.Credentials[scan.DoorID] = cred
	w.mu.Unlock()

	if scanErr != nil {
		log.Printf("NFC scan failed for door %s: %v", scan.DoorID, scanErr)
		metrics.Scans.WithLabelValues(metrics.ResultFailed).Inc()
		err := fmt.Errorf("%w: %w", ErrScanFailed, scanErr)
		scan.finish("", err)
		w.notifyScan(scan.DoorID, ScanStatusFailed, "", scanErr.Error())
		return
	}

	metrics.Scans.WithLabelValues(metrics.ResultSuccess).Inc()
	scan.finish(tag, nil)
	w.notifyScan(scan.DoorID, ScanStatusScanned, tag, "")
}

// AppendPinDigit adds a key to the door's virtual PIN. Keys off the keypad and
// keys beyond the PIN length are ignored and reported as not appended.
func (w *Workflow) AppendPinDigit(doorID, digit string) (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.requirePinDoor(doorID); err != nil {
		return false, err
	}

	cred := w.assignment.Credentials[doorID]
	next, ok := pin.Append(cred.VirtualPIN, digit)
	if !ok {
		return false, nil
	}
	cred.VirtualPIN = next
	w.assignment.Credentials[doorID] = cred
	w.generations[doorID]++
	w.touch()
	return true, nil
}

// DeletePinDigit removes the last key of the door's virtual PIN.
func (w *Workflow) DeletePinDigit(doorID string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.requirePinDoor(doorID); err != nil {
		return err
	}

	cred := w.assignment.Credentials[doorID]
	cred.VirtualPIN = pin.Delete(cred.VirtualPIN)
	w.assignment.Credentials[doorID] = cred
	w.generations[doorID]++
	w.touch()
	return nil
}

func (w *Workflow) requirePinDoor(doorID string) error {
	sel, err := w.selection(doorID)
	if err != nil {
		return err
	}
	if !sel.Selected || sel.Method != MethodVirtualPIN {
		return invalid("doors."+doorID+".method", "door is not selected for a virtual PIN")
	}
	return nil
}

// IsReady reports whether the assignment can be submitted: a subject name, at
// least one selected door, and every selected door ready.
func (w *Workflow) IsReady() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.problems()) == 0
}

// Validate lists what keeps the assignment from being ready.
func (w *Workflow) Validate() []*ValidationError {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.problems()
}

func (w *Workflow) problems() []*ValidationError {
	var problems []*ValidationError
	if w.assignment.SubjectName == "" {
		problems = append(problems, invalid("subject_name", "name is required"))
	}

	selected := 0
	for _, door := range w.doors {
		if !w.assignment.Selections[door.ID].Selected {
			continue
		}
		selected++
		if p := w.assignment.doorProblem(door.ID); p != nil {
			problems = append(problems, p)
		}
	}
	if selected == 0 {
		problems = append(problems, invalid("doors", "select at least one door"))
	}
	return problems
}

// Reset discards the pending assignment. Loaded doors stay available, all
// unselected.
func (w *Workflow) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.resetLocked()
	w.touch()
}

func (w *Workflow) resetLocked() {
	w.epoch++
	ids := make([]string, 0, len(w.doors))
	for _, d := range w.doors {
		ids = append(ids, d.ID)
	}
	w.assignment = newAssignment(ids)
	w.generations = make(map[string]uint64)
	w.scans = make(map[string]*Scan)
}

// clearDoor returns a door to unselected and invalidates its async work.
func (w *Workflow) clearDoor(doorID string) {
	w.generations[doorID]++
	delete(w.scans, doorID)
	delete(w.assignment.Credentials, doorID)
	w.assignment.Selections[doorID] = DoorSelection{}
}

func (w *Workflow) selection(doorID string) (DoorSelection, error) {
	sel, ok := w.assignment.Selections[doorID]
	if !ok {
		return DoorSelection{}, invalid("doors."+doorID, "unknown door")
	}
	return sel, nil
}

// touch records an operator change. Submissions compare the revision to
// decide whether the assignment they sent is still the current one.
func (w *Workflow) touch() {
	w.revision++
	w.touchedAt = w.deps.Now()
}

func (w *Workflow) notifyScan(doorID, status, tagID, message string) {
	if w.deps.Notifier != nil {
		w.deps.Notifier.BroadcastScanStatusChanged(w.id, doorID, status, tagID, message)
	}
}

// IsValidation reports whether err is a local validation failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
