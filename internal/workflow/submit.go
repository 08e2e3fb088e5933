package workflow

import (
	"context"
	"log"

	"github.com/door-access-manager/backend/internal/metrics"
	"github.com/door-access-manager/backend/internal/provisioning"
	"github.com/door-access-manager/backend/internal/session"
	"github.com/door-access-manager/backend/internal/storage/models"
)

// SubmissionResult lists which doors the backend accepted.
type SubmissionResult struct {
	Outcome   Outcome  `json:"outcome"`
	Succeeded []string `json:"succeeded"`
	Failed    []string `json:"failed"`
}

// pendingDoor is one door captured for submission.
type pendingDoor struct {
	doorID     string
	generation uint64
	submission provisioning.Submission
}

// Submit sends every selected door to the provisioning API using the
// configured strategy. Accepted doors are cleared; rejected doors keep their
// state for a retry. When every door is accepted and nothing changed while
// the request was in flight the assignment is reset.
//
// The returned result is populated whenever requests were sent. The error is
// a *SubmissionError unless every door succeeded, or a *ValidationError when
// the assignment is not ready.
func (w *Workflow) Submit(ctx context.Context, sess *session.Session) (SubmissionResult, error) {
	if err := session.Validate(sess); err != nil {
		return SubmissionResult{}, err
	}

	w.mu.Lock()
	if w.submitting {
		w.mu.Unlock()
		return SubmissionResult{}, invalid("assignment", "a submission is already in progress")
	}
	if problems := w.problems(); len(problems) > 0 {
		w.mu.Unlock()
		return SubmissionResult{}, problems[0]
	}
	if err := w.assignment.Window.Validate(); err != nil {
		w.mu.Unlock()
		return SubmissionResult{}, invalid("access_window", "%v", err)
	}

	epoch, revision := w.epoch, w.revision
	pending := w.pendingDoors()
	a := w.assignment
	w.submitting = true
	w.touchedAt = w.deps.Now()
	w.mu.Unlock()

	var causes map[string]error
	if w.deps.Strategy == StrategyBatch {
		causes = w.submitBatch(ctx, sess, pending)
	} else {
		causes = w.submitPerDoor(ctx, sess, pending)
	}

	result := SubmissionResult{Succeeded: []string{}, Failed: []string{}}
	for _, p := range pending {
		if causes[p.doorID] != nil {
			result.Failed = append(result.Failed, p.doorID)
		} else {
			result.Succeeded = append(result.Succeeded, p.doorID)
		}
	}
	switch {
	case len(result.Failed) == 0:
		result.Outcome = OutcomeAllSucceeded
	case len(result.Succeeded) == 0:
		result.Outcome = OutcomeAllFailed
	default:
		result.Outcome = OutcomePartialFailure
	}

	// Doors edited while the request was in flight keep the newer input.
	w.mu.Lock()
	w.submitting = false
	if epoch == w.epoch {
		if result.Outcome == OutcomeAllSucceeded && revision == w.revision {
			w.resetLocked()
		} else {
			for _, p := range pending {
				if causes[p.doorID] == nil && w.generations[p.doorID] == p.generation {
					w.clearDoor(p.doorID)
				}
			}
		}
	}
	w.mu.Unlock()

	metrics.Submissions.WithLabelValues(string(w.deps.Strategy), string(result.Outcome)).Inc()
	w.record(ctx, a, pending, causes)
	if w.deps.Notifier != nil {
		w.deps.Notifier.BroadcastSubmissionCompleted(w.id, string(result.Outcome), result.Succeeded, result.Failed)
	}

	if result.Outcome == OutcomeAllSucceeded {
		return result, nil
	}

	failed := make(map[string]error, len(result.Failed))
	for _, id := range result.Failed {
		failed[id] = causes[id]
	}
	return result, &SubmissionError{
		Outcome:       result.Outcome,
		FailedDoorIDs: result.Failed,
		Causes:        failed,
	}
}

// pendingDoors builds one submission per selected door, in door order.
func (w *Workflow) pendingDoors() []pendingDoor {
	var pending []pendingDoor
	for _, door := range w.doors {
		sel := w.assignment.Selections[door.ID]
		if !sel.Selected {
			continue
		}
		cred := w.assignment.Credentials[door.ID]

		sub := provisioning.Submission{
			DeviceID:     door.DeviceID,
			DoorName:     door.Name,
			SubjectName:  w.assignment.SubjectName,
			SubjectEmail: w.assignment.SubjectEmail,
			SubjectPhone: w.assignment.SubjectPhone,
			Role:         string(w.assignment.Role),
			Method:       string(sel.Method),
			Window:       w.assignment.Window,
		}
		switch sel.Method {
		case MethodNFC:
			sub.NFCTagID = cred.NFCTagID
		case MethodVirtualPIN:
			sub.VirtualPIN = cred.VirtualPIN
		}

		pending = append(pending, pendingDoor{
			doorID:     door.ID,
			generation: w.generations[door.ID],
			submission: sub,
		})
	}
	return pending
}

func (w *Workflow) submitPerDoor(ctx context.Context, sess *session.Session, pending []pendingDoor) map[string]error {
	causes := make(map[string]error, len(pending))
	for _, p := range pending {
		_, err := w.deps.Provisioner.SubmitCredential(ctx, sess, p.submission)
		causes[p.doorID] = err
		countDoor(p, err)
	}
	return causes
}

func (w *Workflow) submitBatch(ctx context.Context, sess *session.Session, pending []pendingDoor) map[string]error {
	subs := make([]provisioning.Submission, 0, len(pending))
	for _, p := range pending {
		subs = append(subs, p.submission)
	}

	outcomes, err := w.deps.Provisioner.SubmitBatch(ctx, sess, subs)

	causes := make(map[string]error, len(pending))
	for _, p := range pending {
		if err != nil {
			causes[p.doorID] = err
		} else {
			causes[p.doorID] = outcomes[p.submission.Key()]
		}
		countDoor(p, causes[p.doorID])
	}
	return causes
}

func countDoor(p pendingDoor, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultFailed
	}
	metrics.DoorSubmissions.WithLabelValues(p.submission.Method, result).Inc()
}

// record stores one record per door. Recording failures are logged only.
func (w *Workflow) record(ctx context.Context, a Assignment, pending []pendingDoor, causes map[string]error) {
	if w.deps.Recorder == nil {
		return
	}

	for _, p := range pending {
		rec := &models.AssignmentRecord{
			WorkflowID:  w.id,
			SubjectName: a.SubjectName,
			DeviceID:    p.submission.DeviceID,
			DoorID:      p.doorID,
			DoorName:    p.submission.DoorName,
			Method:      p.submission.Method,
			AccessType:  string(a.Window.Kind),
			Role:        string(a.Role),
			Status:      models.AssignmentStatusSubmitted,
		}
		if err := causes[p.doorID]; err != nil {
			msg := err.Error()
			rec.Status = models.AssignmentStatusFailed
			rec.ErrorMessage = &msg
		}

		if err := w.deps.Recorder.Create(ctx, rec); err != nil {
			log.Printf("Error recording submission for door %s: %v", p.doorID, err)
		}
	}
}
