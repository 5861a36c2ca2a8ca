package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/akolanti/docproc/internal/data/catalog"
	"github.com/akolanti/docproc/internal/data/queue"
	"github.com/akolanti/docproc/internal/domain/commonModels"
	"github.com/akolanti/docproc/internal/domain/taskModel"
	"github.com/akolanti/docproc/internal/rag"
	"github.com/akolanti/docproc/pkg/logger_i"
)

// MockRagService counts processed messages and settles each one with
// the configured disposition.
type MockRagService struct {
	ProcessedCount int32
	retryMode      int32
}

func (m *MockRagService) IngestDocument(ctx context.Context, msg taskModel.QueueMessage) (rag.Disposition, error) {
	atomic.AddInt32(&m.ProcessedCount, 1)
	if atomic.LoadInt32(&m.retryMode) == 1 {
		return rag.DispositionRetry, context.DeadlineExceeded
	}
	return rag.DispositionCompleted, nil
}

func (m *MockRagService) Chat(ctx context.Context, userID int64, params rag.ChatParams) (commonModels.ChatAnswer, error) {
	panic("implement me")
}

// MockCatalog backs the sweeper; everything else panics because the
// pool never touches it.
type MockCatalog struct {
	OnListStalePending func(ctx context.Context, olderThan time.Time, limit int) ([]catalog.Document, error)
	OnMarkFailed       func(ctx context.Context, documentID int64, errorMessage string) error
}

func (m *MockCatalog) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]catalog.Document, error) {
	if m.OnListStalePending != nil {
		return m.OnListStalePending(ctx, olderThan, limit)
	}
	return nil, nil
}

func (m *MockCatalog) MarkFailed(ctx context.Context, documentID int64, errorMessage string) error {
	if m.OnMarkFailed != nil {
		return m.OnMarkFailed(ctx, documentID, errorMessage)
	}
	return nil
}

func (m *MockCatalog) CreateUser(ctx context.Context, email, apiKey string) (catalog.User, error) {
	panic("implement me")
}
func (m *MockCatalog) GetUser(ctx context.Context, userID int64) (catalog.User, error) {
	panic("implement me")
}
func (m *MockCatalog) GetOrCreateUser(ctx context.Context, userID int64) (catalog.User, error) {
	panic("implement me")
}
func (m *MockCatalog) CreateDocument(ctx context.Context, userID int64, filename, blobHandle, prompt string) (catalog.Document, error) {
	panic("implement me")
}
func (m *MockCatalog) GetDocument(ctx context.Context, documentID int64) (catalog.Document, error) {
	panic("implement me")
}
func (m *MockCatalog) GetOwnedDocument(ctx context.Context, userID, documentID int64) (catalog.Document, error) {
	panic("implement me")
}
func (m *MockCatalog) ListDocuments(ctx context.Context, userID int64, statusFilter taskModel.Status, offset, limit int) ([]catalog.Document, int64, error) {
	panic("implement me")
}
func (m *MockCatalog) MarkProcessing(ctx context.Context, documentID int64) error {
	panic("implement me")
}
func (m *MockCatalog) CompleteIngestion(ctx context.Context, documentID int64, outcome catalog.IngestionOutcome) error {
	panic("implement me")
}
func (m *MockCatalog) SetSummary(ctx context.Context, documentID int64, summary string) error {
	panic("implement me")
}
func (m *MockCatalog) DeleteDocument(ctx context.Context, documentID int64) error {
	panic("implement me")
}
func (m *MockCatalog) AnnSearch(ctx context.Context, userID int64, queryVector []float32, topK int, documentID int64) ([]commonModels.RetrievedChunk, error) {
	panic("implement me")
}
func (m *MockCatalog) Ping(ctx context.Context) error {
	panic("implement me")
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool, message string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(message)
}

func TestWorkerPool_Flow(t *testing.T) {
	q := queue.InitInMemoryQueue(150 * time.Millisecond)
	mockRag := &MockRagService{}
	InitServices(q, &MockCatalog{}, mockRag)

	// Reset global state for test
	atomic.StoreInt64(&currentWorkerCount, 0)
	atomic.StoreInt64(&minWorkerCount, 1)
	longPollWait = 50 * time.Millisecond
	idleWorkerTimeout = time.Minute

	stopChan := make(chan bool)
	wg := &sync.WaitGroup{}
	InitWorkerPool(stopChan, wg)

	ctx := context.Background()

	t.Run("Worker processes and acks a message", func(t *testing.T) {
		if err := q.Enqueue(ctx, taskModel.QueueMessage{TaskID: "1", Filename: "a.pdf"}); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}

		waitFor(t, 2*time.Second, func() bool {
			return atomic.LoadInt32(&mockRag.ProcessedCount) == 1
		}, "worker never processed the message")

		waitFor(t, 2*time.Second, func() bool {
			depth, _ := q.Depth(ctx)
			return depth == 0
		}, "completed message was not acked")
	})

	t.Run("Transient failure leaves the claim for redelivery", func(t *testing.T) {
		atomic.StoreInt32(&mockRag.retryMode, 1)

		if err := q.Enqueue(ctx, taskModel.QueueMessage{TaskID: "2", Filename: "b.pdf"}); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}

		waitFor(t, 2*time.Second, func() bool {
			return atomic.LoadInt32(&mockRag.ProcessedCount) == 2
		}, "worker never attempted the message")

		// unacked claim keeps the depth at one
		depth, _ := q.Depth(ctx)
		if depth != 1 {
			t.Errorf("depth got %d, want 1 while the claim is in flight", depth)
		}

		// let the claim expire, reap it and watch the redelivery succeed
		atomic.StoreInt32(&mockRag.retryMode, 0)
		time.Sleep(200 * time.Millisecond)
		moved, err := q.ReapExpired(ctx)
		if err != nil || moved != 1 {
			t.Fatalf("reap moved %d, err %v", moved, err)
		}

		waitFor(t, 2*time.Second, func() bool {
			return atomic.LoadInt32(&mockRag.ProcessedCount) == 3
		}, "redelivered message was not processed")

		waitFor(t, 2*time.Second, func() bool {
			depth, _ := q.Depth(ctx)
			return depth == 0
		}, "redelivered message was not acked")
	})

	t.Run("Stop signal retires workers", func(t *testing.T) {
		close(stopChan)

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()

		select {
		case <-done:
			// Success
		case <-time.After(2 * time.Second):
			t.Error("Workers did not stop within timeout")
		}
	})
}

func TestWorker_IdleTimeout(t *testing.T) {
	// Temporarily override globals for test
	atomic.StoreInt64(&currentWorkerCount, 0)
	atomic.StoreInt64(&minWorkerCount, 0)
	longPollWait = 20 * time.Millisecond
	idleWorkerTimeout = 30 * time.Millisecond
	logger = logger_i.NewLogger("TestWorkerPool")

	workQueue = queue.InitInMemoryQueue(time.Second)
	InitServices(workQueue, &MockCatalog{}, &MockRagService{})

	wg := &sync.WaitGroup{}
	workerWaitGroup = wg
	poolCtx, poolCancel = context.WithCancel(context.Background())
	defer poolCancel()

	// Spawn 1 surplus worker manually
	createWorker()

	waitFor(t, 2*time.Second, func() bool {
		return atomic.LoadInt64(&currentWorkerCount) == 0
	}, "Assertion Failed: Worker should have timed out and retired")
}

func TestSweeperRequeuesOnceThenFails(t *testing.T) {
	logger = logger_i.NewLogger("TestSweeper")
	poolCtx, poolCancel = context.WithCancel(context.Background())
	defer poolCancel()

	q := queue.InitInMemoryQueue(time.Second)
	workQueue = q

	stale := catalog.Document{
		ID:         7,
		UserID:     3,
		Filename:   "stuck.pdf",
		BlobHandle: "uploads/stuck.pdf",
		Status:     taskModel.StatusPending,
	}

	var failedID int64
	var failedReason string
	documents = &MockCatalog{
		OnListStalePending: func(ctx context.Context, olderThan time.Time, limit int) ([]catalog.Document, error) {
			return []catalog.Document{stale}, nil
		},
		OnMarkFailed: func(ctx context.Context, documentID int64, errorMessage string) error {
			failedID = documentID
			failedReason = errorMessage
			return nil
		},
	}

	requeued := make(map[int64]time.Time)

	// first pass re-enqueues the lost message
	sweepOnce(requeued)
	depth, _ := q.Depth(context.Background())
	if depth != 1 {
		t.Fatalf("depth got %d, want 1 after the first sweep", depth)
	}
	if failedID != 0 {
		t.Fatal("first sweep must not mark the document failed")
	}
	if _, tracked := requeued[7]; !tracked {
		t.Fatal("sweeper did not remember the re-enqueue")
	}

	delivery, ok, err := q.Receive(context.Background(), 100*time.Millisecond)
	if err != nil || !ok {
		t.Fatalf("re-enqueued message not receivable: %v", err)
	}
	if delivery.Message.TaskID != "7" || delivery.Message.BlobHandle != "uploads/stuck.pdf" {
		t.Errorf("unexpected message %+v", delivery.Message)
	}

	// second pass finds it still pending and gives up on it
	sweepOnce(requeued)
	if failedID != 7 {
		t.Errorf("MarkFailed called with document %d, want 7", failedID)
	}
	if failedReason != "stuck in pending" {
		t.Errorf("failure reason got %q", failedReason)
	}
	if _, tracked := requeued[7]; tracked {
		t.Error("sweeper kept tracking a document it already failed")
	}
}
