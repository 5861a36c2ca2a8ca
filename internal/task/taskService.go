// Package task is the admission side of the pipeline: it validates an
// upload, parks the bytes in the blob store, creates the authoritative
// document row and hands a message to the work queue. Reads (status,
// result, listing) resolve the advisory cache first and fall back to
// the catalog.
package task

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/akolanti/docproc/internal/adapter/utils"
	"github.com/akolanti/docproc/internal/config"
	"github.com/akolanti/docproc/internal/data/blob"
	"github.com/akolanti/docproc/internal/data/catalog"
	"github.com/akolanti/docproc/internal/data/queue"
	"github.com/akolanti/docproc/internal/domain/taskModel"
	"github.com/akolanti/docproc/internal/metrics"
	"github.com/akolanti/docproc/pkg/logger_i"
)

var (
	ErrNotPDF   = errors.New("task: only PDF uploads are accepted")
	ErrTooLarge = errors.New("task: file exceeds the size limit")
	ErrBusy     = errors.New("task: ingestion queue is full")

	// ErrNotReady marks a known task whose extraction has not finished.
	ErrNotReady = errors.New("task: result not ready")
)

var pdfMagic = []byte("%PDF")

// Upload is one file of a submission as the handler hands it over.
type Upload struct {
	Filename string
	Size     int64
	Content  io.Reader
	Prompt   string
}

// Submission is the admission receipt for one accepted file.
type Submission struct {
	TaskID     string
	DocumentID int64
	Filename   string
}

type Service struct {
	Documents catalog.Catalog
	Blobs     blob.Store
	Tasks     taskModel.TaskStore
	Queue     queue.Queue

	logger *logger_i.Logger
}

type ServiceConfig struct {
	Documents catalog.Catalog
	Blobs     blob.Store
	Tasks     taskModel.TaskStore
	Queue     queue.Queue
}

func InitTaskService(cfg ServiceConfig) *Service {
	return &Service{
		Documents: cfg.Documents,
		Blobs:     cfg.Blobs,
		Tasks:     cfg.Tasks,
		Queue:     cfg.Queue,
		logger:    logger_i.NewLogger("Task Service :"),
	}
}

// SubmitDocument admits one file: guards, blob upload, document row,
// advisory task record, queue message. Everything before the enqueue is
// rolled back if a later step fails, so a returned error means the
// submission left no trace.
func (s *Service) SubmitDocument(ctx context.Context, userID int64, upload Upload) (Submission, error) {
	log := s.logger
	if traceId, ok := ctx.Value(config.TRACE_ID_KEY).(string); ok {
		log = log.With("traceId", traceId)
	}
	log = log.With("filename", upload.Filename, "userId", userID)

	if !strings.EqualFold(filepath.Ext(upload.Filename), ".pdf") {
		return Submission{}, ErrNotPDF
	}
	if upload.Size > int64(config.MaxFileSizeMB)<<20 {
		return Submission{}, ErrTooLarge
	}

	content, isPDF, err := sniffPDF(upload.Content)
	if err != nil {
		return Submission{}, fmt.Errorf("reading upload: %w", err)
	}
	if !isPDF {
		return Submission{}, ErrNotPDF
	}

	if depth, err := s.Queue.Depth(ctx); err != nil {
		// fail open, a broken depth probe must not block admissions
		log.Warn("Queue depth probe failed", "error", err)
	} else {
		metrics.SetQueueDepth(depth)
		if depth >= int64(config.QueueDepthLimit) {
			return Submission{}, ErrBusy
		}
	}

	if _, err := s.Documents.GetOrCreateUser(ctx, userID); err != nil {
		return Submission{}, fmt.Errorf("resolving user %d: %w", userID, err)
	}

	handle := config.BlobHandlePrefix + utils.GetNewUUID() + ".pdf"
	if err := s.Blobs.Put(ctx, handle, content, upload.Size, "application/pdf"); err != nil {
		return Submission{}, fmt.Errorf("storing upload: %w", err)
	}

	document, err := s.Documents.CreateDocument(ctx, userID, upload.Filename, handle, upload.Prompt)
	if err != nil {
		s.discardBlob(ctx, log, handle)
		return Submission{}, fmt.Errorf("creating document: %w", err)
	}
	taskID := strconv.FormatInt(document.ID, 10)
	log = log.With("taskId", taskID)

	record := taskModel.TaskRecord{
		TaskID:    taskID,
		Status:    taskModel.StatusPending,
		Progress:  0,
		Filename:  upload.Filename,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.Tasks.SaveTask(ctx, record); err != nil {
		log.Warn("Task record write failed", "error", err)
	}
	if err := s.Tasks.TrackTask(ctx, taskID); err != nil {
		log.Warn("Task tracking failed", "error", err)
	}

	message := taskModel.QueueMessage{
		TaskID:     taskID,
		BlobHandle: handle,
		Filename:   upload.Filename,
		UserID:     userID,
		Prompt:     upload.Prompt,
	}
	if err := s.Queue.Enqueue(ctx, message); err != nil {
		log.Error("Enqueue failed, rolling the submission back", "error", err)
		if derr := s.Documents.DeleteDocument(ctx, document.ID); derr != nil {
			log.Error("Rollback of document failed", "error", derr)
		}
		s.discardBlob(ctx, log, handle)
		s.Tasks.DeleteTask(ctx, taskID)
		s.Tasks.UntrackTask(ctx, taskID)
		return Submission{}, fmt.Errorf("enqueueing task: %w", err)
	}

	log.Info("Submission accepted")
	return Submission{TaskID: taskID, DocumentID: document.ID, Filename: upload.Filename}, nil
}

// TaskStatus reads the advisory record, falling back to the catalog row
// when the cache entry expired.
func (s *Service) TaskStatus(ctx context.Context, taskID string) (taskModel.TaskRecord, error) {
	if record, ok := s.Tasks.GetTask(ctx, taskID); ok {
		return record, nil
	}

	documentID, err := strconv.ParseInt(taskID, 10, 64)
	if err != nil {
		return taskModel.TaskRecord{}, catalog.ErrNotFound
	}
	document, err := s.Documents.GetDocument(ctx, documentID)
	if err != nil {
		return taskModel.TaskRecord{}, err
	}
	return recordFromDocument(document), nil
}

// TaskResult serves the extraction output, preferring the short-TTL
// cache over the catalog row.
func (s *Service) TaskResult(ctx context.Context, taskID string) (taskModel.CachedResult, error) {
	cached, ok := s.Tasks.GetResult(ctx, taskID)
	metrics.CountCacheRead(ok)
	if ok {
		return cached, nil
	}

	documentID, err := strconv.ParseInt(taskID, 10, 64)
	if err != nil {
		return taskModel.CachedResult{}, catalog.ErrNotFound
	}
	document, err := s.Documents.GetDocument(ctx, documentID)
	if err != nil {
		return taskModel.CachedResult{}, err
	}
	if document.Status == taskModel.StatusFailed {
		// a failed task will never produce a result
		return taskModel.CachedResult{}, catalog.ErrNotFound
	}
	if document.Status != taskModel.StatusCompleted {
		return taskModel.CachedResult{}, fmt.Errorf("%w: task %s is %s", ErrNotReady, taskID, document.Status)
	}
	return taskModel.CachedResult{
		TaskID:                taskID,
		Filename:              document.Filename,
		Text:                  document.ResultText,
		Summary:               document.Summary,
		PageCount:             document.PageCount,
		ExtractionTimeSeconds: document.ExtractionTimeSeconds,
	}, nil
}

// ListTasks pages through the tracked task ids. Ids whose record
// expired are skipped rather than resolved against the catalog; the
// listing is advisory.
func (s *Service) ListTasks(ctx context.Context, offset, limit int) ([]taskModel.TaskRecord, int64, error) {
	ids, total, err := s.Tasks.ListTaskIDs(ctx, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("listing tasks: %w", err)
	}

	records := make([]taskModel.TaskRecord, 0, len(ids))
	for _, id := range ids {
		if record, ok := s.Tasks.GetTask(ctx, id); ok {
			records = append(records, record)
		}
	}
	return records, total, nil
}

// DeleteTask removes the document with its chunks, the blob and every
// cache entry. Blob trouble is logged, not surfaced; the authoritative
// delete already happened.
func (s *Service) DeleteTask(ctx context.Context, taskID string) error {
	log := s.logger
	if traceId, ok := ctx.Value(config.TRACE_ID_KEY).(string); ok {
		log = log.With("traceId", traceId)
	}
	log = log.With("taskId", taskID)

	documentID, parseErr := strconv.ParseInt(taskID, 10, 64)
	if parseErr != nil {
		return catalog.ErrNotFound
	}

	document, err := s.Documents.GetDocument(ctx, documentID)
	if errors.Is(err, catalog.ErrNotFound) {
		// no row; still worth clearing stray cache entries
		if _, ok := s.Tasks.GetTask(ctx, taskID); !ok {
			return catalog.ErrNotFound
		}
		s.dropCacheEntries(ctx, taskID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading document %d: %w", documentID, err)
	}

	if err := s.Documents.DeleteDocument(ctx, documentID); err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return fmt.Errorf("deleting document %d: %w", documentID, err)
	}
	if document.BlobHandle != "" {
		s.discardBlob(ctx, log, document.BlobHandle)
	}
	s.dropCacheEntries(ctx, taskID)

	log.Info("Task deleted")
	return nil
}

func (s *Service) dropCacheEntries(ctx context.Context, taskID string) {
	s.Tasks.DeleteTask(ctx, taskID)
	s.Tasks.DeleteResult(ctx, taskID)
	s.Tasks.UntrackTask(ctx, taskID)
}

func (s *Service) discardBlob(ctx context.Context, log *logger_i.Logger, handle string) {
	if err := s.Blobs.Delete(ctx, handle); err != nil && !errors.Is(err, blob.ErrNotFound) {
		log.Warn("Blob delete failed", "handle", handle, "error", err)
	}
}

// sniffPDF peeks at the magic bytes without consuming them; the
// returned reader yields the full original stream.
func sniffPDF(reader io.Reader) (io.Reader, bool, error) {
	head := make([]byte, len(pdfMagic))
	n, err := io.ReadFull(reader, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, false, err
	}
	rest := io.MultiReader(bytes.NewReader(head[:n]), reader)
	return rest, bytes.Equal(head[:n], pdfMagic), nil
}

// recordFromDocument synthesizes a status snapshot from the
// authoritative row after the cached one expired. Mid-flight progress
// is unknowable here; the terminal states pin it to the boundary
// values.
func recordFromDocument(document catalog.Document) taskModel.TaskRecord {
	record := taskModel.TaskRecord{
		TaskID:    strconv.FormatInt(document.ID, 10),
		Status:    document.Status,
		Filename:  document.Filename,
		CreatedAt: document.CreatedAt,
		Error:     document.ErrorMessage,
	}
	switch document.Status {
	case taskModel.StatusCompleted:
		record.Progress = taskModel.ProgressPersisted
	case taskModel.StatusProcessing:
		record.Progress = taskModel.ProgressFetched
	default:
		record.Progress = taskModel.ProgressClaimed
	}
	if document.StartedAt != nil {
		record.StartedAt = *document.StartedAt
	}
	if document.CompletedAt != nil {
		record.CompletedAt = *document.CompletedAt
	}
	return record
}
