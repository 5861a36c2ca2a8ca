package task

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/akolanti/docproc/internal/config"
	"github.com/akolanti/docproc/internal/data/catalog"
	"github.com/akolanti/docproc/internal/data/queue"
	"github.com/akolanti/docproc/internal/data/store"
	"github.com/akolanti/docproc/internal/domain/commonModels"
	"github.com/akolanti/docproc/internal/domain/taskModel"
)

// MockCatalog covers the calls admission makes; everything else panics.
type MockCatalog struct {
	OnGetOrCreateUser func(ctx context.Context, userID int64) (catalog.User, error)
	OnCreateDocument  func(ctx context.Context, userID int64, filename, blobHandle, prompt string) (catalog.Document, error)
	OnGetDocument     func(ctx context.Context, documentID int64) (catalog.Document, error)
	OnDeleteDocument  func(ctx context.Context, documentID int64) error
}

func (m *MockCatalog) GetOrCreateUser(ctx context.Context, userID int64) (catalog.User, error) {
	if m.OnGetOrCreateUser != nil {
		return m.OnGetOrCreateUser(ctx, userID)
	}
	return catalog.User{ID: userID}, nil
}

func (m *MockCatalog) CreateDocument(ctx context.Context, userID int64, filename, blobHandle, prompt string) (catalog.Document, error) {
	if m.OnCreateDocument != nil {
		return m.OnCreateDocument(ctx, userID, filename, blobHandle, prompt)
	}
	return catalog.Document{ID: 1, UserID: userID, Filename: filename, BlobHandle: blobHandle, Prompt: prompt, Status: taskModel.StatusPending}, nil
}

func (m *MockCatalog) GetDocument(ctx context.Context, documentID int64) (catalog.Document, error) {
	if m.OnGetDocument != nil {
		return m.OnGetDocument(ctx, documentID)
	}
	return catalog.Document{ID: documentID, UserID: 1, Status: taskModel.StatusPending}, nil
}

func (m *MockCatalog) DeleteDocument(ctx context.Context, documentID int64) error {
	if m.OnDeleteDocument != nil {
		return m.OnDeleteDocument(ctx, documentID)
	}
	return nil
}

func (m *MockCatalog) CreateUser(ctx context.Context, email, apiKey string) (catalog.User, error) {
	panic("implement me")
}
func (m *MockCatalog) GetUser(ctx context.Context, userID int64) (catalog.User, error) {
	panic("implement me")
}
func (m *MockCatalog) GetOwnedDocument(ctx context.Context, userID, documentID int64) (catalog.Document, error) {
	panic("implement me")
}
func (m *MockCatalog) ListDocuments(ctx context.Context, userID int64, statusFilter taskModel.Status, offset, limit int) ([]catalog.Document, int64, error) {
	panic("implement me")
}
func (m *MockCatalog) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]catalog.Document, error) {
	panic("implement me")
}
func (m *MockCatalog) MarkProcessing(ctx context.Context, documentID int64) error {
	panic("implement me")
}
func (m *MockCatalog) CompleteIngestion(ctx context.Context, documentID int64, outcome catalog.IngestionOutcome) error {
	panic("implement me")
}
func (m *MockCatalog) MarkFailed(ctx context.Context, documentID int64, errorMessage string) error {
	panic("implement me")
}
func (m *MockCatalog) SetSummary(ctx context.Context, documentID int64, summary string) error {
	panic("implement me")
}
func (m *MockCatalog) AnnSearch(ctx context.Context, userID int64, queryVector []float32, topK int, documentID int64) ([]commonModels.RetrievedChunk, error) {
	panic("implement me")
}
func (m *MockCatalog) Ping(ctx context.Context) error {
	panic("implement me")
}

type blobWrite struct {
	handle      string
	contentType string
}

// MockBlob records writes and deletes so rollbacks can be asserted.
type MockBlob struct {
	Puts    []blobWrite
	Deletes []string
}

func (m *MockBlob) Put(ctx context.Context, handle string, reader io.Reader, size int64, contentType string) error {
	m.Puts = append(m.Puts, blobWrite{handle: handle, contentType: contentType})
	return nil
}

func (m *MockBlob) Get(ctx context.Context, handle string) (io.ReadCloser, error) {
	panic("implement me")
}

func (m *MockBlob) Delete(ctx context.Context, handle string) error {
	m.Deletes = append(m.Deletes, handle)
	return nil
}

// MockQueue records enqueued messages; Depth defaults to the recorded count.
type MockQueue struct {
	OnEnqueue func(ctx context.Context, message taskModel.QueueMessage) error
	OnDepth   func(ctx context.Context) (int64, error)
	Messages  []taskModel.QueueMessage
}

func (m *MockQueue) Enqueue(ctx context.Context, message taskModel.QueueMessage) error {
	if m.OnEnqueue != nil {
		return m.OnEnqueue(ctx, message)
	}
	m.Messages = append(m.Messages, message)
	return nil
}

func (m *MockQueue) Receive(ctx context.Context, wait time.Duration) (queue.Delivery, bool, error) {
	panic("implement me")
}
func (m *MockQueue) Ack(ctx context.Context, receipt string) error {
	panic("implement me")
}
func (m *MockQueue) Extend(ctx context.Context, receipt string) error {
	panic("implement me")
}
func (m *MockQueue) ReapExpired(ctx context.Context) (int, error) {
	panic("implement me")
}

func (m *MockQueue) Depth(ctx context.Context) (int64, error) {
	if m.OnDepth != nil {
		return m.OnDepth(ctx)
	}
	return int64(len(m.Messages)), nil
}

func TestSubmitDocument_Guards(t *testing.T) {
	scenarios := []struct {
		name    string
		upload  Upload
		depth   int64
		wantErr error
	}{
		{
			name:    "rejects a non-pdf extension",
			upload:  Upload{Filename: "notes.txt", Size: 64, Content: strings.NewReader("%PDF-1.4")},
			wantErr: ErrNotPDF,
		},
		{
			name:    "rejects a body without the pdf magic",
			upload:  Upload{Filename: "fake.pdf", Size: 64, Content: strings.NewReader("MZ executable")},
			wantErr: ErrNotPDF,
		},
		{
			name:    "rejects an oversized file",
			upload:  Upload{Filename: "big.pdf", Size: int64(config.MaxFileSizeMB+1) << 20, Content: strings.NewReader("%PDF-1.4")},
			wantErr: ErrTooLarge,
		},
		{
			name:    "rejects when the queue is at capacity",
			upload:  Upload{Filename: "fine.pdf", Size: 64, Content: strings.NewReader("%PDF-1.4")},
			depth:   int64(config.QueueDepthLimit),
			wantErr: ErrBusy,
		},
	}

	for _, tc := range scenarios {
		t.Run(tc.name, func(t *testing.T) {
			blobs := &MockBlob{}
			service := InitTaskService(ServiceConfig{
				Documents: &MockCatalog{},
				Blobs:     blobs,
				Tasks:     store.InitInMemoryTaskStore(),
				Queue: &MockQueue{OnDepth: func(ctx context.Context) (int64, error) {
					return tc.depth, nil
				}},
			})

			_, err := service.SubmitDocument(context.Background(), 1, tc.upload)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("SubmitDocument error got %v, want %v", err, tc.wantErr)
			}
			if len(blobs.Puts) != 0 {
				t.Error("a rejected upload must never reach the blob store")
			}
		})
	}
}

func TestSubmitDocument_AcceptsAndQueues(t *testing.T) {
	ctx := context.Background()
	tasks := store.InitInMemoryTaskStore()
	blobs := &MockBlob{}
	q := &MockQueue{}
	service := InitTaskService(ServiceConfig{
		Documents: &MockCatalog{
			OnCreateDocument: func(ctx context.Context, userID int64, filename, blobHandle, prompt string) (catalog.Document, error) {
				return catalog.Document{ID: 42, UserID: userID, Filename: filename, BlobHandle: blobHandle, Prompt: prompt, Status: taskModel.StatusPending}, nil
			},
		},
		Blobs: blobs,
		Tasks: tasks,
		Queue: q,
	})

	submission, err := service.SubmitDocument(ctx, 7, Upload{
		Filename: "report.pdf",
		Size:     128,
		Content:  strings.NewReader("%PDF-1.7 body"),
		Prompt:   "key findings",
	})
	if err != nil {
		t.Fatalf("SubmitDocument failed: %v", err)
	}
	if submission.TaskID != "42" || submission.DocumentID != 42 {
		t.Errorf("Submission got %+v, want task 42", submission)
	}

	record, ok := tasks.GetTask(ctx, "42")
	if !ok {
		t.Fatal("Accepted submission left no task record")
	}
	if record.Status != taskModel.StatusPending || record.Progress != taskModel.ProgressClaimed {
		t.Errorf("Fresh record got %s/%d, want PENDING/0", record.Status, record.Progress)
	}

	ids, total, _ := tasks.ListTaskIDs(ctx, 0, 10)
	if total != 1 || len(ids) != 1 || ids[0] != "42" {
		t.Errorf("Recent list got %v with total %d, want [42]", ids, total)
	}

	if len(q.Messages) != 1 {
		t.Fatalf("Queue got %d messages, want 1", len(q.Messages))
	}
	message := q.Messages[0]
	if message.TaskID != "42" || message.UserID != 7 || message.Filename != "report.pdf" || message.Prompt != "key findings" {
		t.Errorf("Queue message got %+v", message)
	}
	if !strings.HasPrefix(message.BlobHandle, config.BlobHandlePrefix) || !strings.HasSuffix(message.BlobHandle, ".pdf") {
		t.Errorf("Blob handle %q not under the upload prefix", message.BlobHandle)
	}

	if len(blobs.Puts) != 1 || blobs.Puts[0].handle != message.BlobHandle {
		t.Errorf("Blob writes got %+v, want one under %s", blobs.Puts, message.BlobHandle)
	}
	if blobs.Puts[0].contentType != "application/pdf" {
		t.Errorf("Content type got %s", blobs.Puts[0].contentType)
	}
}

func TestSubmitDocument_RollsBackOnEnqueueFailure(t *testing.T) {
	ctx := context.Background()
	tasks := store.InitInMemoryTaskStore()
	blobs := &MockBlob{}
	var deletedDocument int64
	service := InitTaskService(ServiceConfig{
		Documents: &MockCatalog{
			OnCreateDocument: func(ctx context.Context, userID int64, filename, blobHandle, prompt string) (catalog.Document, error) {
				return catalog.Document{ID: 42, UserID: userID, Filename: filename, BlobHandle: blobHandle}, nil
			},
			OnDeleteDocument: func(ctx context.Context, documentID int64) error {
				deletedDocument = documentID
				return nil
			},
		},
		Blobs: blobs,
		Tasks: tasks,
		Queue: &MockQueue{
			OnEnqueue: func(ctx context.Context, message taskModel.QueueMessage) error {
				return errors.New("broker gone")
			},
			OnDepth: func(ctx context.Context) (int64, error) { return 0, nil },
		},
	})

	_, err := service.SubmitDocument(ctx, 1, Upload{
		Filename: "report.pdf",
		Size:     128,
		Content:  strings.NewReader("%PDF-1.7 body"),
	})
	if err == nil {
		t.Fatal("SubmitDocument swallowed the enqueue failure")
	}

	if deletedDocument != 42 {
		t.Errorf("Rollback deleted document %d, want 42", deletedDocument)
	}
	if len(blobs.Puts) != 1 || len(blobs.Deletes) != 1 || blobs.Deletes[0] != blobs.Puts[0].handle {
		t.Errorf("Blob rollback mismatch: puts %+v, deletes %v", blobs.Puts, blobs.Deletes)
	}
	if _, ok := tasks.GetTask(ctx, "42"); ok {
		t.Error("Rolled-back submission left a task record behind")
	}
	if _, total, _ := tasks.ListTaskIDs(ctx, 0, 10); total != 0 {
		t.Error("Rolled-back submission stayed on the recent list")
	}
}

func TestTaskStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("serves the cached record", func(t *testing.T) {
		tasks := store.InitInMemoryTaskStore()
		service := InitTaskService(ServiceConfig{Documents: &MockCatalog{}, Blobs: &MockBlob{}, Tasks: tasks, Queue: &MockQueue{}})

		want := taskModel.TaskRecord{TaskID: "5", Status: taskModel.StatusProcessing, Progress: taskModel.ProgressParsed, Filename: "live.pdf"}
		_ = tasks.SaveTask(ctx, want)

		got, err := service.TaskStatus(ctx, "5")
		if err != nil {
			t.Fatalf("TaskStatus failed: %v", err)
		}
		if got.Status != want.Status || got.Progress != want.Progress || got.Filename != want.Filename {
			t.Errorf("Record got %+v, want %+v", got, want)
		}
	})

	t.Run("falls back to the completed document row", func(t *testing.T) {
		started := time.Now().UTC().Add(-time.Minute)
		completed := time.Now().UTC()
		service := InitTaskService(ServiceConfig{
			Documents: &MockCatalog{
				OnGetDocument: func(ctx context.Context, documentID int64) (catalog.Document, error) {
					return catalog.Document{
						ID:          documentID,
						Status:      taskModel.StatusCompleted,
						Filename:    "done.pdf",
						StartedAt:   &started,
						CompletedAt: &completed,
					}, nil
				},
			},
			Blobs: &MockBlob{},
			Tasks: store.InitInMemoryTaskStore(),
			Queue: &MockQueue{},
		})

		got, err := service.TaskStatus(ctx, "8")
		if err != nil {
			t.Fatalf("TaskStatus failed: %v", err)
		}
		if got.Status != taskModel.StatusCompleted || got.Progress != taskModel.ProgressPersisted {
			t.Errorf("Fallback record got %s/%d, want COMPLETED/100", got.Status, got.Progress)
		}
		if !got.StartedAt.Equal(started) || !got.CompletedAt.Equal(completed) {
			t.Errorf("Fallback timestamps got %v/%v", got.StartedAt, got.CompletedAt)
		}
	})

	t.Run("rejects an unknown id", func(t *testing.T) {
		service := InitTaskService(ServiceConfig{
			Documents: &MockCatalog{
				OnGetDocument: func(ctx context.Context, documentID int64) (catalog.Document, error) {
					return catalog.Document{}, catalog.ErrNotFound
				},
			},
			Blobs: &MockBlob{},
			Tasks: store.InitInMemoryTaskStore(),
			Queue: &MockQueue{},
		})

		if _, err := service.TaskStatus(ctx, "404"); !errors.Is(err, catalog.ErrNotFound) {
			t.Errorf("Error got %v, want ErrNotFound", err)
		}
	})

	t.Run("never asks the catalog for a non-numeric id", func(t *testing.T) {
		catalogCalled := false
		service := InitTaskService(ServiceConfig{
			Documents: &MockCatalog{
				OnGetDocument: func(ctx context.Context, documentID int64) (catalog.Document, error) {
					catalogCalled = true
					return catalog.Document{}, catalog.ErrNotFound
				},
			},
			Blobs: &MockBlob{},
			Tasks: store.InitInMemoryTaskStore(),
			Queue: &MockQueue{},
		})

		if _, err := service.TaskStatus(ctx, "abc"); !errors.Is(err, catalog.ErrNotFound) {
			t.Errorf("Error got %v, want ErrNotFound", err)
		}
		if catalogCalled {
			t.Error("A non-numeric id reached the catalog")
		}
	})
}

func TestTaskResult(t *testing.T) {
	ctx := context.Background()

	newService := func(document catalog.Document, tasks taskModel.TaskStore) *Service {
		return InitTaskService(ServiceConfig{
			Documents: &MockCatalog{
				OnGetDocument: func(ctx context.Context, documentID int64) (catalog.Document, error) {
					return document, nil
				},
			},
			Blobs: &MockBlob{},
			Tasks: tasks,
			Queue: &MockQueue{},
		})
	}

	t.Run("serves the cached result", func(t *testing.T) {
		tasks := store.InitInMemoryTaskStore()
		cached := taskModel.CachedResult{TaskID: "3", Filename: "cached.pdf", Text: "cached text", PageCount: 2}
		_ = tasks.SaveResult(ctx, cached)
		service := newService(catalog.Document{}, tasks)

		got, err := service.TaskResult(ctx, "3")
		if err != nil {
			t.Fatalf("TaskResult failed: %v", err)
		}
		if got.Text != cached.Text || got.PageCount != cached.PageCount {
			t.Errorf("Result got %+v, want %+v", got, cached)
		}
	})

	t.Run("synthesizes the result from a completed row", func(t *testing.T) {
		document := catalog.Document{
			ID:                    3,
			Status:                taskModel.StatusCompleted,
			Filename:              "done.pdf",
			ResultText:            "full text",
			Summary:               "one line",
			PageCount:             9,
			ExtractionTimeSeconds: 2.5,
		}
		service := newService(document, store.InitInMemoryTaskStore())

		got, err := service.TaskResult(ctx, "3")
		if err != nil {
			t.Fatalf("TaskResult failed: %v", err)
		}
		if got.Text != "full text" || got.Summary != "one line" || got.PageCount != 9 || got.ExtractionTimeSeconds != 2.5 {
			t.Errorf("Synthesized result got %+v", got)
		}
	})

	t.Run("failed tasks have no result", func(t *testing.T) {
		service := newService(catalog.Document{ID: 3, Status: taskModel.StatusFailed, ErrorMessage: "no extractable text"}, store.InitInMemoryTaskStore())

		if _, err := service.TaskResult(ctx, "3"); !errors.Is(err, catalog.ErrNotFound) {
			t.Errorf("Error got %v, want ErrNotFound", err)
		}
	})

	t.Run("pending tasks are not ready", func(t *testing.T) {
		service := newService(catalog.Document{ID: 3, Status: taskModel.StatusPending}, store.InitInMemoryTaskStore())

		if _, err := service.TaskResult(ctx, "3"); !errors.Is(err, ErrNotReady) {
			t.Errorf("Error got %v, want ErrNotReady", err)
		}
	})
}

func TestDeleteTask(t *testing.T) {
	ctx := context.Background()

	t.Run("removes the row the blob and the cache entries", func(t *testing.T) {
		tasks := store.InitInMemoryTaskStore()
		_ = tasks.SaveTask(ctx, taskModel.TaskRecord{TaskID: "42", Status: taskModel.StatusCompleted})
		_ = tasks.SaveResult(ctx, taskModel.CachedResult{TaskID: "42", Text: "text"})
		_ = tasks.TrackTask(ctx, "42")

		blobs := &MockBlob{}
		var deletedDocument int64
		service := InitTaskService(ServiceConfig{
			Documents: &MockCatalog{
				OnGetDocument: func(ctx context.Context, documentID int64) (catalog.Document, error) {
					return catalog.Document{ID: documentID, BlobHandle: "uploads/zz.pdf"}, nil
				},
				OnDeleteDocument: func(ctx context.Context, documentID int64) error {
					deletedDocument = documentID
					return nil
				},
			},
			Blobs: blobs,
			Tasks: tasks,
			Queue: &MockQueue{},
		})

		if err := service.DeleteTask(ctx, "42"); err != nil {
			t.Fatalf("DeleteTask failed: %v", err)
		}
		if deletedDocument != 42 {
			t.Errorf("Deleted document %d, want 42", deletedDocument)
		}
		if len(blobs.Deletes) != 1 || blobs.Deletes[0] != "uploads/zz.pdf" {
			t.Errorf("Blob deletes got %v", blobs.Deletes)
		}
		if _, ok := tasks.GetTask(ctx, "42"); ok {
			t.Error("Task record survived the delete")
		}
		if _, ok := tasks.GetResult(ctx, "42"); ok {
			t.Error("Cached result survived the delete")
		}
		if _, total, _ := tasks.ListTaskIDs(ctx, 0, 10); total != 0 {
			t.Error("Recent list still carries the deleted task")
		}
	})

	t.Run("reports an unknown task", func(t *testing.T) {
		service := InitTaskService(ServiceConfig{
			Documents: &MockCatalog{
				OnGetDocument: func(ctx context.Context, documentID int64) (catalog.Document, error) {
					return catalog.Document{}, catalog.ErrNotFound
				},
			},
			Blobs: &MockBlob{},
			Tasks: store.InitInMemoryTaskStore(),
			Queue: &MockQueue{},
		})

		if err := service.DeleteTask(ctx, "404"); !errors.Is(err, catalog.ErrNotFound) {
			t.Errorf("Error got %v, want ErrNotFound", err)
		}
	})

	t.Run("clears stray cache entries when the row is already gone", func(t *testing.T) {
		tasks := store.InitInMemoryTaskStore()
		_ = tasks.SaveTask(ctx, taskModel.TaskRecord{TaskID: "9", Status: taskModel.StatusFailed})
		service := InitTaskService(ServiceConfig{
			Documents: &MockCatalog{
				OnGetDocument: func(ctx context.Context, documentID int64) (catalog.Document, error) {
					return catalog.Document{}, catalog.ErrNotFound
				},
			},
			Blobs: &MockBlob{},
			Tasks: tasks,
			Queue: &MockQueue{},
		})

		if err := service.DeleteTask(ctx, "9"); err != nil {
			t.Fatalf("DeleteTask failed: %v", err)
		}
		if _, ok := tasks.GetTask(ctx, "9"); ok {
			t.Error("Stray cache entry survived")
		}
	})
}
