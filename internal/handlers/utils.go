package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/akolanti/docproc/internal/adapter"
	"github.com/akolanti/docproc/internal/config"
	"github.com/akolanti/docproc/internal/data/catalog"
	"github.com/akolanti/docproc/internal/domain/taskModel"
	"github.com/akolanti/docproc/internal/task"
)

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but can't send a clean status code now
		logRH.Error("Error encoding response: %v", err)
	}
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, message string) {
	writeJsonResponse(w, httpCode, adapter.BadRequest(message, httpCode))
}

func validateContext(ctx context.Context) bool {
	if ctx.Err() != nil {
		logRH.Warn("context error", ctx.Err())
		return false
	}

	select {
	case <-ctx.Done():
		logRH.Warn("context cancelled")
		return false
	default:
		return true

	}
}

// parseUserID reads the user_id query parameter. Absent means user 1,
// matching the single-tenant developer setup.
func parseUserID(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		return 1, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("user_id %q is not a positive integer", raw)
	}
	return id, nil
}

func parsePagination(r *http.Request) (offset, limit int, err error) {
	offset, limit = 0, config.DefaultListLimit
	query := r.URL.Query()

	if raw := query.Get("offset"); raw != "" {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("offset %q is not a non-negative integer", raw)
		}
	}
	if raw := query.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return 0, 0, fmt.Errorf("limit %q is not a positive integer", raw)
		}
	}
	if limit > config.MaxListLimit {
		limit = config.MaxListLimit
	}
	return offset, limit, nil
}

func parseStatusFilter(raw string) (taskModel.Status, bool) {
	switch taskModel.Status(raw) {
	case "", taskModel.StatusPending, taskModel.StatusProcessing,
		taskModel.StatusCompleted, taskModel.StatusFailed:
		return taskModel.Status(raw), true
	}
	return "", false
}

// lookupFailure maps the read-path service errors onto the envelope.
func lookupFailure(w http.ResponseWriter, taskID string, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		WriteErrorResponse(w, http.StatusNotFound, "Task not found: "+taskID)
	case errors.Is(err, task.ErrNotReady):
		WriteErrorResponse(w, http.StatusBadRequest, err.Error())
	default:
		logRH.Error("Lookup failed", "taskId", taskID, "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "Internal error")
	}
}

// submissionFailure maps the admission guards onto the status codes the
// upload endpoint documents.
func submissionFailure(w http.ResponseWriter, filename string, err error) {
	switch {
	case errors.Is(err, task.ErrNotPDF):
		WriteErrorResponse(w, http.StatusUnsupportedMediaType,
			fmt.Sprintf("Invalid file type: %s. Only PDF files are allowed.", filename))
	case errors.Is(err, task.ErrTooLarge):
		WriteErrorResponse(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File too large: %s. Maximum size is %dMB.", filename, config.MaxFileSizeMB))
	case errors.Is(err, task.ErrBusy):
		WriteErrorResponse(w, http.StatusServiceUnavailable,
			"System is at capacity. Please try again in a few minutes.")
	default:
		logRH.Error("Submission failed", "filename", filename, "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError,
			fmt.Sprintf("Failed to queue %s for processing", filename))
	}
}
