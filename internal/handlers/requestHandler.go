package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/akolanti/docproc/internal/adapter"
	"github.com/akolanti/docproc/internal/adapter/utils"
	"github.com/akolanti/docproc/internal/api"
	"github.com/akolanti/docproc/internal/config"
	"github.com/akolanti/docproc/internal/data/catalog"
	"github.com/akolanti/docproc/internal/rag"
	"github.com/akolanti/docproc/internal/task"
	"github.com/akolanti/docproc/pkg/logger_i"
)

var logRH *logger_i.Logger

func GetHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	return
}

// UploadHandler godoc
// @Summary      Upload PDF documents for processing
// @Description  Accepts one or more PDF files via multipart/form-data, stores them and queues an ingestion task per file. An optional prompt form field requests an AI summary of each document.
// @Tags         Upload
// @Accept       multipart/form-data
// @Produce      json
// @Param        user_id  query     int     false  "Owning user id (defaults to 1)"
// @Param        files    formData  file    true   "PDF files to process"
// @Param        prompt   formData  string  false  "Optional summarization prompt"
// @Success      201  {object}  api.UploadResponse  "Tasks queued"
// @Failure      400  {object}  api.ErrorResponse   "No files, too many files or a bad user_id"
// @Failure      413  {object}  api.ErrorResponse   "File exceeds the size limit"
// @Failure      415  {object}  api.ErrorResponse   "File is not a PDF"
// @Failure      503  {object}  api.ErrorResponse   "Ingestion queue is at capacity"
// @Router       /upload [post]
func UploadHandler(w http.ResponseWriter, r *http.Request) {
	if validateContext(r.Context()) {
		userID, err := parseUserID(r)
		if err != nil {
			WriteErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}

		const maxMemory = 32 << 20 //spills to disk past this
		if err := r.ParseMultipartForm(maxMemory); err != nil {
			WriteErrorResponse(w, http.StatusBadRequest, "Could not parse multipart form")
			return
		}
		defer func() {
			if err := r.MultipartForm.RemoveAll(); err != nil {
				logRH.Warn("Couldn't remove multipart temp files", "error", err)
			}
		}()

		files := r.MultipartForm.File["files"]
		if len(files) == 0 {
			WriteErrorResponse(w, http.StatusBadRequest, "No files provided")
			return
		}
		if len(files) > config.MaxFilesPerUpload {
			WriteErrorResponse(w, http.StatusBadRequest,
				fmt.Sprintf("Too many files. Maximum %d files per request.", config.MaxFilesPerUpload))
			return
		}
		prompt := r.FormValue("prompt")

		taskIDs := make([]string, 0, len(files))
		for _, header := range files {
			content, err := header.Open()
			if err != nil {
				WriteErrorResponse(w, http.StatusBadRequest, "Could not read file: "+header.Filename)
				return
			}

			submission, err := handlerInstance.tasks.SubmitDocument(r.Context(), userID, task.Upload{
				Filename: header.Filename,
				Size:     header.Size,
				Content:  content,
				Prompt:   prompt,
			})
			if closeErr := content.Close(); closeErr != nil {
				logRH.Warn("Couldn't close upload reader", "filename", header.Filename, "error", closeErr)
			}
			if err != nil {
				// files admitted before this one stay queued
				submissionFailure(w, header.Filename, err)
				return
			}
			taskIDs = append(taskIDs, submission.TaskID)
		}

		writeJsonResponse(w, http.StatusCreated, adapter.ToUploadResponse(taskIDs))
		return
	}
	logRH.Warn("Invalid Context by request ", r.RemoteAddr)
}

// GetStatusHandler godoc
// @Summary      Get task status
// @Description  Reads the progress record of one ingestion task. Expired cache records fall back to the document row.
// @Tags         Status
// @Produce      json
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  api.StatusResponse  "Current task status"
// @Failure      404  {object}  api.ErrorResponse   "Unknown task"
// @Router       /status/{id} [get]
func GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if validateContext(r.Context()) {
		taskID := utils.GetChiURLParam(r, "id")
		logRH.Debug("Get Status Request:", "URL path", r.URL.Path)

		record, err := handlerInstance.tasks.TaskStatus(r.Context(), taskID)
		if err != nil {
			lookupFailure(w, taskID, err)
			return
		}
		writeJsonResponse(w, http.StatusOK, adapter.ToStatusResponse(record))
		return
	}
	logRH.Warn("Invalid Context by request ", r.RemoteAddr)
}

// GetResultHandler godoc
// @Summary      Get extraction result
// @Description  Returns the extracted text for a completed task, read from the result cache or, after its TTL, from the document row.
// @Tags         Results
// @Produce      json
// @Param        id   path      string  true  "Task ID"
// @Success      200  {object}  api.ResultResponse  "Extraction output"
// @Failure      400  {object}  api.ErrorResponse   "Task has not completed yet"
// @Failure      404  {object}  api.ErrorResponse   "Unknown or failed task"
// @Router       /result/{id} [get]
func GetResultHandler(w http.ResponseWriter, r *http.Request) {
	if validateContext(r.Context()) {
		taskID := utils.GetChiURLParam(r, "id")

		result, err := handlerInstance.tasks.TaskResult(r.Context(), taskID)
		if err != nil {
			lookupFailure(w, taskID, err)
			return
		}
		writeJsonResponse(w, http.StatusOK, adapter.ToResultResponse(result))
		return
	}
	logRH.Warn("Invalid Context by request ", r.RemoteAddr)
}

// ListTasksHandler godoc
// @Summary      List recent tasks
// @Description  Pages through the tracked tasks, newest first. Tasks whose cache record expired are skipped; the total still counts them.
// @Tags         Status
// @Produce      json
// @Param        offset  query     int  false  "Items to skip"
// @Param        limit   query     int  false  "Page size (max 100)"
// @Success      200  {object}  api.TaskListResponse
// @Failure      400  {object}  api.ErrorResponse  "Bad paging values"
// @Router       /tasks [get]
func ListTasksHandler(w http.ResponseWriter, r *http.Request) {
	if validateContext(r.Context()) {
		offset, limit, err := parsePagination(r)
		if err != nil {
			WriteErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}

		records, total, err := handlerInstance.tasks.ListTasks(r.Context(), offset, limit)
		if err != nil {
			logRH.Error("Task listing failed", "error", err)
			WriteErrorResponse(w, http.StatusInternalServerError, "Internal error")
			return
		}
		writeJsonResponse(w, http.StatusOK, adapter.ToTaskListResponse(records, total))
		return
	}
	logRH.Warn("Invalid Context by request ", r.RemoteAddr)
}

// StreamResultsHandler godoc
// @Summary      Stream all task records
// @Description  Writes every known task status record as newline-delimited JSON.
// @Tags         Results
// @Produce      json
// @Success      200  {object}  api.StatusResponse  "One record per line"
// @Router       /results/stream [get]
func StreamResultsHandler(w http.ResponseWriter, r *http.Request) {
	if validateContext(r.Context()) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)

		flusher, _ := w.(http.Flusher)
		encoder := json.NewEncoder(w)

		for offset := 0; ; offset += config.DefaultListLimit {
			records, total, err := handlerInstance.tasks.ListTasks(r.Context(), offset, config.DefaultListLimit)
			if err != nil {
				logRH.Error("Result stream aborted", "error", err)
				return
			}
			for _, record := range records {
				if err := encoder.Encode(adapter.ToStatusResponse(record)); err != nil {
					logRH.Warn("Result stream closed by client", "error", err)
					return
				}
			}
			if flusher != nil {
				flusher.Flush()
			}
			if int64(offset+config.DefaultListLimit) >= total {
				return
			}
		}
	}
	logRH.Warn("Invalid Context by request ", r.RemoteAddr)
}

// DeleteTaskHandler godoc
// @Summary      Delete a task
// @Description  Removes the document with its chunks, the stored PDF and the cached task state.
// @Tags         Status
// @Param        id   path  string  true  "Task ID"
// @Success      204  "Deleted"
// @Failure      404  {object}  api.ErrorResponse  "Unknown task"
// @Router       /task/{id} [delete]
func DeleteTaskHandler(w http.ResponseWriter, r *http.Request) {
	if validateContext(r.Context()) {
		taskID := utils.GetChiURLParam(r, "id")

		if err := handlerInstance.tasks.DeleteTask(r.Context(), taskID); err != nil {
			lookupFailure(w, taskID, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}
	logRH.Warn("Invalid Context by request ", r.RemoteAddr)
}

// ListDocumentsHandler godoc
// @Summary      List a user's documents
// @Description  Pages through one user's documents, newest first, optionally filtered by status.
// @Tags         Documents
// @Produce      json
// @Param        user_id        query  int     false  "Owning user id (defaults to 1)"
// @Param        status_filter  query  string  false  "PENDING, PROCESSING, COMPLETED or FAILED"
// @Param        offset         query  int     false  "Items to skip"
// @Param        limit          query  int     false  "Page size (max 100)"
// @Success      200  {object}  api.DocumentListResponse
// @Failure      400  {object}  api.ErrorResponse  "Bad filter or paging values"
// @Router       /documents [get]
func ListDocumentsHandler(w http.ResponseWriter, r *http.Request) {
	if validateContext(r.Context()) {
		userID, err := parseUserID(r)
		if err != nil {
			WriteErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		offset, limit, err := parsePagination(r)
		if err != nil {
			WriteErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		statusFilter, ok := parseStatusFilter(r.URL.Query().Get("status_filter"))
		if !ok {
			WriteErrorResponse(w, http.StatusBadRequest,
				"status_filter must be one of PENDING, PROCESSING, COMPLETED, FAILED")
			return
		}

		documents, total, err := handlerInstance.tasks.Documents.ListDocuments(r.Context(), userID, statusFilter, offset, limit)
		if err != nil {
			logRH.Error("Document listing failed", "userId", userID, "error", err)
			WriteErrorResponse(w, http.StatusInternalServerError, "Internal error")
			return
		}
		writeJsonResponse(w, http.StatusOK, adapter.ToDocumentListResponse(documents, total))
		return
	}
	logRH.Warn("Invalid Context by request ", r.RemoteAddr)
}

// GetDocumentHandler godoc
// @Summary      Get one document
// @Description  Returns a single document owned by the requesting user. Documents of other users read as not found.
// @Tags         Documents
// @Produce      json
// @Param        id       path   int  true   "Document ID"
// @Param        user_id  query  int  false  "Owning user id (defaults to 1)"
// @Success      200  {object}  api.DocumentResponse
// @Failure      404  {object}  api.ErrorResponse  "Unknown or foreign document"
// @Router       /documents/{id} [get]
func GetDocumentHandler(w http.ResponseWriter, r *http.Request) {
	if validateContext(r.Context()) {
		userID, err := parseUserID(r)
		if err != nil {
			WriteErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		documentID, err := strconv.ParseInt(utils.GetChiURLParam(r, "id"), 10, 64)
		if err != nil {
			WriteErrorResponse(w, http.StatusNotFound, "Document not found")
			return
		}

		document, err := handlerInstance.tasks.Documents.GetOwnedDocument(r.Context(), userID, documentID)
		if errors.Is(err, catalog.ErrNotFound) {
			WriteErrorResponse(w, http.StatusNotFound, "Document not found")
			return
		} else if err != nil {
			logRH.Error("Document lookup failed", "documentId", documentID, "error", err)
			WriteErrorResponse(w, http.StatusInternalServerError, "Internal error")
			return
		}
		writeJsonResponse(w, http.StatusOK, adapter.ToDocumentResponse(document))
		return
	}
	logRH.Warn("Invalid Context by request ", r.RemoteAddr)
}

// CreateUserHandler godoc
// @Summary      Create a user
// @Description  Registers a user by email. The api_key is generated server side when not supplied.
// @Tags         Users
// @Accept       json
// @Produce      json
// @Param        request  body      api.CreateUserRequest  true  "Email and optional api_key"
// @Success      201      {object}  api.UserResponse
// @Failure      400      {object}  api.ErrorResponse  "Invalid email, short api_key or duplicate email"
// @Router       /users [post]
func CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	if validateContext(r.Context()) {
		var requestData api.CreateUserRequest
		defer func(Body io.ReadCloser) {
			if err := Body.Close(); err != nil {
				logRH.Error("Couldn't close the user handler reader :", err)
			}
		}(r.Body)
		if err := json.NewDecoder(r.Body).Decode(&requestData); err != nil {
			WriteErrorResponse(w, http.StatusBadRequest, "Bad Request")
			return
		}

		email := strings.TrimSpace(requestData.Email)
		if email == "" || !strings.Contains(email, "@") {
			WriteErrorResponse(w, http.StatusBadRequest, "A valid email is required")
			return
		}
		if requestData.APIKey != "" && len(requestData.APIKey) < config.APIKeyMinLength {
			WriteErrorResponse(w, http.StatusBadRequest,
				fmt.Sprintf("api_key must be at least %d characters", config.APIKeyMinLength))
			return
		}

		user, err := handlerInstance.tasks.Documents.CreateUser(r.Context(), email, requestData.APIKey)
		if errors.Is(err, catalog.ErrDuplicateEmail) {
			WriteErrorResponse(w, http.StatusBadRequest, "Email already registered")
			return
		} else if err != nil {
			logRH.Error("User creation failed", "email", email, "error", err)
			WriteErrorResponse(w, http.StatusInternalServerError, "Internal error")
			return
		}
		writeJsonResponse(w, http.StatusCreated, adapter.ToUserResponse(user))
		return
	}
	logRH.Warn("Invalid Context by request ", r.RemoteAddr)
}

// GetUserHandler godoc
// @Summary      Get a user
// @Tags         Users
// @Produce      json
// @Param        id   path      int  true  "User ID"
// @Success      200  {object}  api.UserResponse
// @Failure      404  {object}  api.ErrorResponse  "Unknown user"
// @Router       /users/{id} [get]
func GetUserHandler(w http.ResponseWriter, r *http.Request) {
	if validateContext(r.Context()) {
		userID, err := strconv.ParseInt(utils.GetChiURLParam(r, "id"), 10, 64)
		if err != nil {
			WriteErrorResponse(w, http.StatusNotFound, "User not found")
			return
		}

		user, err := handlerInstance.tasks.Documents.GetUser(r.Context(), userID)
		if errors.Is(err, catalog.ErrNotFound) {
			WriteErrorResponse(w, http.StatusNotFound, "User not found")
			return
		} else if err != nil {
			logRH.Error("User lookup failed", "userId", userID, "error", err)
			WriteErrorResponse(w, http.StatusInternalServerError, "Internal error")
			return
		}
		writeJsonResponse(w, http.StatusOK, adapter.ToUserResponse(user))
		return
	}
	logRH.Warn("Invalid Context by request ", r.RemoteAddr)
}

// ChatHandler godoc
// @Summary      Ask a question over the user's documents
// @Description  Embeds the question, retrieves the most similar chunks owned by the user and synthesizes an answer with source citations. document_id narrows the search to one document.
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Param        user_id  query     int              false  "Asking user id (defaults to 1)"
// @Param        request  body      api.ChatRequest  true   "Question with optional document_id, top_k and model"
// @Success      200      {object}  api.ChatResponse  "Answer with sources"
// @Failure      400      {object}  api.ErrorResponse "Invalid question or bounds"
// @Failure      404      {object}  api.ErrorResponse "document_id not owned by user"
// @Failure      503      {object}  api.ErrorResponse "Upstream provider unavailable"
// @Router       /chat [post]
func ChatHandler(w http.ResponseWriter, request *http.Request) {

	if validateContext(request.Context()) {
		userID, err := parseUserID(request)
		if err != nil {
			WriteErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}

		var requestData api.ChatRequest
		defer func(Body io.ReadCloser) {
			err := Body.Close()
			if err != nil {
				logRH.Error("Couldn't close the Chat handler reader :", err)
			}
		}(request.Body)
		if err := json.NewDecoder(request.Body).Decode(&requestData); err != nil || !ValidateChatRequest(requestData) {
			logRH.Warn("Bad Chat Request: ", "error:", err, "documentId:", requestData.DocumentID)
			WriteErrorResponse(w, http.StatusBadRequest, "Bad Request")
			return
		}

		answer, err := handlerInstance.rag.Chat(request.Context(), userID, rag.ChatParams{
			Question:   requestData.Question,
			DocumentID: requestData.DocumentID,
			TopK:       requestData.TopK,
			Model:      requestData.Model,
		})
		if err != nil {
			chatFailure(w, err)
			return
		}
		writeJsonResponse(w, http.StatusOK, adapter.ToChatResponse(answer))
		return
	}
	logRH.Warn("Invalid Context by request ", request.RemoteAddr)
}

func chatFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		WriteErrorResponse(w, http.StatusNotFound, "Document not found")
	case errors.Is(err, rag.ErrInvariant):
		logRH.Error("Chat hit an embedding invariant violation", "error", err)
		WriteErrorResponse(w, http.StatusInternalServerError, "Internal error")
	default:
		logRH.Error("Chat failed", "error", err)
		WriteErrorResponse(w, http.StatusServiceUnavailable,
			"The assistant is temporarily unavailable. Please try again.")
	}
}

// HealthHandler godoc
// @Summary      Health check
// @Description  Reports postgres and redis connectivity plus the work queue depth. Probes are cached briefly.
// @Tags         Health
// @Produce      json
// @Success      200  {object}  api.HealthResponse
// @Router       /health [get]
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	health := handlerInstance.tasks.Health(r.Context())

	status := "healthy"
	if !health.Healthy() {
		status = "unhealthy"
	}
	checkedAt := health.CheckedAt
	if checkedAt.IsZero() {
		checkedAt = time.Now().UTC()
	}
	writeJsonResponse(w, http.StatusOK, api.HealthResponse{
		Status:     status,
		Postgres:   health.Postgres,
		Redis:      health.Redis,
		QueueDepth: health.QueueDepth,
		Timestamp:  checkedAt,
	})
}
