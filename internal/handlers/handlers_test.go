package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/akolanti/docproc/internal/api"
	"github.com/akolanti/docproc/internal/config"
	"github.com/akolanti/docproc/internal/data/catalog"
	"github.com/akolanti/docproc/internal/domain/taskModel"
	"github.com/akolanti/docproc/internal/task"
)

// initHandlers gives the package a live singleton and loggers. The guard
// paths under test never reach the nil services behind it.
func initHandlers() {
	InitTaskHandler(nil, nil)
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) api.ErrorResponse {
	t.Helper()
	var envelope api.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decoding error envelope: %v", err)
	}
	return envelope
}

func TestValidateChatRequest(t *testing.T) {
	initHandlers()

	tests := []struct {
		name string
		req  api.ChatRequest
		want bool
	}{
		{"accepts a plain question", api.ChatRequest{Question: "What does the refund policy say?"}, true},
		{"rejects an empty question", api.ChatRequest{Question: ""}, false},
		{"rejects a whitespace question", api.ChatRequest{Question: "   \n\t"}, false},
		{"accepts a question at the length limit", api.ChatRequest{Question: strings.Repeat("q", config.MaxQuestionLength)}, true},
		{"rejects a question over the length limit", api.ChatRequest{Question: strings.Repeat("q", config.MaxQuestionLength+1)}, false},
		{"accepts top_k zero as the default", api.ChatRequest{Question: "hi", TopK: 0}, true},
		{"accepts top_k at the maximum", api.ChatRequest{Question: "hi", TopK: config.MaxTopK}, true},
		{"rejects top_k over the maximum", api.ChatRequest{Question: "hi", TopK: config.MaxTopK + 1}, false},
		{"rejects a negative top_k", api.ChatRequest{Question: "hi", TopK: -1}, false},
		{"accepts a document scope", api.ChatRequest{Question: "hi", DocumentID: 412}, true},
		{"rejects a negative document id", api.ChatRequest{Question: "hi", DocumentID: -1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateChatRequest(tt.req); got != tt.want {
				t.Errorf("ValidateChatRequest(%+v) = %v, want %v", tt.req, got, tt.want)
			}
		})
	}
}

func TestErrorEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorResponse(rec, http.StatusNotFound, "Task not found: 12")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	envelope := decodeEnvelope(t, rec)
	if envelope.Error != "Task not found: 12" {
		t.Errorf("error message = %q", envelope.Error)
	}
	if envelope.StatusCode != http.StatusNotFound {
		t.Errorf("status_code = %d, want %d", envelope.StatusCode, http.StatusNotFound)
	}
	if envelope.Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}

func TestParseUserID(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    int64
		wantErr bool
	}{
		{"defaults to user 1", "", 1, false},
		{"parses a user id", "user_id=7", 7, false},
		{"rejects zero", "user_id=0", 0, true},
		{"rejects negatives", "user_id=-2", 0, true},
		{"rejects non-numeric", "user_id=abc", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/documents?"+tt.query, nil)
			got, err := parseUserID(req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseUserID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseUserID() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantOffset int
		wantLimit  int
		wantErr    bool
	}{
		{"defaults", "", 0, config.DefaultListLimit, false},
		{"explicit window", "offset=20&limit=10", 20, 10, false},
		{"clamps the limit", "limit=5000", 0, config.MaxListLimit, false},
		{"rejects a negative offset", "offset=-1", 0, 0, true},
		{"rejects a zero limit", "limit=0", 0, 0, true},
		{"rejects a non-numeric offset", "offset=x", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/tasks?"+tt.query, nil)
			offset, limit, err := parsePagination(req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parsePagination() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if offset != tt.wantOffset || limit != tt.wantLimit {
				t.Errorf("parsePagination() = (%d, %d), want (%d, %d)", offset, limit, tt.wantOffset, tt.wantLimit)
			}
		})
	}
}

func TestParseStatusFilter(t *testing.T) {
	tests := []struct {
		raw    string
		want   taskModel.Status
		wantOk bool
	}{
		{"", "", true},
		{"PENDING", taskModel.StatusPending, true},
		{"COMPLETED", taskModel.StatusCompleted, true},
		{"pending", "", false},
		{"garbage", "", false},
	}
	for _, tt := range tests {
		got, ok := parseStatusFilter(tt.raw)
		if ok != tt.wantOk || got != tt.want {
			t.Errorf("parseStatusFilter(%q) = (%q, %v), want (%q, %v)", tt.raw, got, ok, tt.want, tt.wantOk)
		}
	}
}

func TestSubmissionFailureCodes(t *testing.T) {
	initHandlers()

	tests := []struct {
		name         string
		err          error
		wantCode     int
		wantFragment string
	}{
		{"non-pdf maps to 415", task.ErrNotPDF, http.StatusUnsupportedMediaType, "Only PDF files"},
		{"wrapped non-pdf maps to 415", fmt.Errorf("checking report.txt: %w", task.ErrNotPDF), http.StatusUnsupportedMediaType, "Only PDF files"},
		{"oversize maps to 413", task.ErrTooLarge, http.StatusRequestEntityTooLarge, "File too large"},
		{"full queue maps to 503", task.ErrBusy, http.StatusServiceUnavailable, "at capacity"},
		{"anything else maps to 500", errors.New("db down"), http.StatusInternalServerError, "Failed to queue"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			submissionFailure(rec, "report.pdf", tt.err)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			envelope := decodeEnvelope(t, rec)
			if !strings.Contains(envelope.Error, tt.wantFragment) {
				t.Errorf("error %q does not mention %q", envelope.Error, tt.wantFragment)
			}
		})
	}
}

func TestLookupFailureCodes(t *testing.T) {
	initHandlers()

	t.Run("unknown task maps to 404", func(t *testing.T) {
		rec := httptest.NewRecorder()
		lookupFailure(rec, "9", catalog.ErrNotFound)
		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
		if envelope := decodeEnvelope(t, rec); envelope.Error != "Task not found: 9" {
			t.Errorf("error = %q", envelope.Error)
		}
	})
	t.Run("unfinished task maps to 400", func(t *testing.T) {
		rec := httptest.NewRecorder()
		lookupFailure(rec, "9", fmt.Errorf("%w: task 9 is PROCESSING", task.ErrNotReady))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
	t.Run("internal errors map to 500", func(t *testing.T) {
		rec := httptest.NewRecorder()
		lookupFailure(rec, "9", errors.New("redis exploded"))
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want 500", rec.Code)
		}
		if envelope := decodeEnvelope(t, rec); envelope.Error != "Internal error" {
			t.Errorf("error %q should not leak internals", envelope.Error)
		}
	})
}

// multipartBody builds a form with fileCount pdf parts and a prompt field.
func multipartBody(t *testing.T, fileCount int) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("prompt", "summarize this"); err != nil {
		t.Fatalf("writing prompt field: %v", err)
	}
	for i := 0; i < fileCount; i++ {
		part, err := writer.CreateFormFile("files", fmt.Sprintf("doc-%d.pdf", i))
		if err != nil {
			t.Fatalf("creating form file: %v", err)
		}
		if _, err := part.Write([]byte("%PDF-1.4 stub")); err != nil {
			t.Fatalf("writing form file: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestUploadHandlerRejectsBadSubmissions(t *testing.T) {
	initHandlers()

	t.Run("no files", func(t *testing.T) {
		body, contentType := multipartBody(t, 0)
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		UploadHandler(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if envelope := decodeEnvelope(t, rec); envelope.Error != "No files provided" {
			t.Errorf("error = %q", envelope.Error)
		}
	})

	t.Run("too many files", func(t *testing.T) {
		body, contentType := multipartBody(t, config.MaxFilesPerUpload+1)
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		UploadHandler(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if envelope := decodeEnvelope(t, rec); !strings.Contains(envelope.Error, "Too many files") {
			t.Errorf("error = %q", envelope.Error)
		}
	})

	t.Run("bad user_id", func(t *testing.T) {
		body, contentType := multipartBody(t, 1)
		req := httptest.NewRequest(http.MethodPost, "/upload?user_id=zero", body)
		req.Header.Set("Content-Type", contentType)
		rec := httptest.NewRecorder()

		UploadHandler(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
		if envelope := decodeEnvelope(t, rec); !strings.Contains(envelope.Error, "user_id") {
			t.Errorf("error = %q", envelope.Error)
		}
	})

	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("just text"))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()

		UploadHandler(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestChatHandlerRejectsBadRequests(t *testing.T) {
	initHandlers()

	tests := []struct {
		name string
		body string
	}{
		{"malformed json", "{not json"},
		{"blank question", `{"question":"   "}`},
		{"top_k out of range", fmt.Sprintf(`{"question":"hi","top_k":%d}`, config.MaxTopK+1)},
		{"negative document id", `{"question":"hi","document_id":-4}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()

			ChatHandler(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			if envelope := decodeEnvelope(t, rec); envelope.Error != "Bad Request" {
				t.Errorf("error = %q", envelope.Error)
			}
		})
	}
}
