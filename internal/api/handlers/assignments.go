package handlers

import (
	"net/http"
	"strconv"

	"github.com/door-access-manager/backend/internal/api/middleware"
	"github.com/door-access-manager/backend/internal/storage"
	"github.com/door-access-manager/backend/internal/storage/models"
)

// ListAssignments returns submission records, newest first, optionally
// filtered with ?workflow_id= and bounded with ?limit=.
func ListAssignments(repo *storage.AssignmentRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		q := r.URL.Query()

		var (
			records []models.AssignmentRecord
			err     error
		)
		if id := q.Get("workflow_id"); id != "" {
			records, err = repo.ListByWorkflow(ctx, id)
		} else {
			limit := 0
			if s := q.Get("limit"); s != "" {
				limit, err = strconv.Atoi(s)
				if err != nil || limit < 0 {
					middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "limit must be a positive integer")
					return
				}
			}
			records, err = repo.List(ctx, limit)
		}
		if err != nil {
			writeError(w, r, err)
			return
		}

		if records == nil {
			records = []models.AssignmentRecord{}
		}
		writeJSON(w, http.StatusOK, records)
	}
}
