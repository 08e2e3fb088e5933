package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"

	"github.com/door-access-manager/backend/internal/api/middleware"
	"github.com/door-access-manager/backend/internal/directory"
	"github.com/door-access-manager/backend/internal/provisioning"
	"github.com/door-access-manager/backend/internal/session"
	"github.com/door-access-manager/backend/internal/workflow"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
		return false
	}
	return true
}

// pathVar returns a path variable with percent-escapes removed, so door ids
// containing "/" can be sent as %2F.
func pathVar(r *http.Request, name string) string {
	v := mux.Vars(r)[name]
	if unescaped, err := url.PathUnescape(v); err == nil {
		return unescaped
	}
	return v
}

// SubmissionDetails is the error detail body of a failed submission.
type SubmissionDetails struct {
	Outcome   workflow.Outcome  `json:"outcome"`
	Succeeded []string          `json:"succeeded,omitempty"`
	Failed    []string          `json:"failed"`
	Causes    map[string]string `json:"causes"`
}

// writeError maps domain errors onto the API error envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		vErr   *workflow.ValidationError
		subErr *workflow.SubmissionError
	)

	switch {
	case errors.Is(err, session.ErrMissingCredentials),
		errors.Is(err, directory.ErrUnauthorized),
		errors.Is(err, provisioning.ErrUnauthorized):
		middleware.WriteError(w, http.StatusUnauthorized, middleware.ErrUnauthorized, err.Error())

	case errors.Is(err, workflow.ErrNotFound):
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Workflow not found")

	case errors.As(err, &vErr):
		middleware.WriteErrorWithDetails(w, http.StatusBadRequest, middleware.ErrValidation, vErr.Error(), vErr)

	case errors.As(err, &subErr):
		details := SubmissionDetails{
			Outcome: subErr.Outcome,
			Failed:  subErr.FailedDoorIDs,
			Causes:  make(map[string]string, len(subErr.Causes)),
		}
		for id, cause := range subErr.Causes {
			details.Causes[id] = cause.Error()
		}
		status := http.StatusBadGateway
		if subErr.Outcome == workflow.OutcomePartialFailure {
			status = http.StatusMultiStatus
		}
		middleware.WriteErrorWithDetails(w, status, middleware.ErrSubmissionFailed, subErr.Error(), details)

	case errors.Is(err, workflow.ErrDirectoryUnavailable),
		errors.Is(err, workflow.ErrScanFailed),
		errors.Is(err, workflow.ErrScanDiscarded),
		errors.Is(err, directory.ErrUnavailable),
		errors.Is(err, provisioning.ErrUnavailable),
		errors.Is(err, provisioning.ErrRejected),
		errors.Is(err, provisioning.ErrUnexpectedResponse),
		errors.Is(err, provisioning.ErrNoTag):
		middleware.WriteError(w, http.StatusBadGateway, middleware.ErrUpstream, err.Error())

	default:
		log.Printf("Request %s failed: %v", middleware.RequestID(r.Context()), err)
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "An unexpected error occurred")
	}
}
