package rag_test

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/akolanti/docproc/internal/config"
	"github.com/akolanti/docproc/internal/data/catalog"
	"github.com/akolanti/docproc/internal/domain/commonModels"
	"github.com/akolanti/docproc/internal/domain/taskModel"
	"github.com/akolanti/docproc/internal/rag/llm"
)

// MockCatalog implements catalog.Catalog
type MockCatalog struct {
	// Control fields to simulate different behaviors
	OnCreateUser        func(ctx context.Context, email, apiKey string) (catalog.User, error)
	OnGetUser           func(ctx context.Context, userID int64) (catalog.User, error)
	OnGetOrCreateUser   func(ctx context.Context, userID int64) (catalog.User, error)
	OnCreateDocument    func(ctx context.Context, userID int64, filename, blobHandle, prompt string) (catalog.Document, error)
	OnGetDocument       func(ctx context.Context, documentID int64) (catalog.Document, error)
	OnGetOwnedDocument  func(ctx context.Context, userID, documentID int64) (catalog.Document, error)
	OnListDocuments     func(ctx context.Context, userID int64, statusFilter taskModel.Status, offset, limit int) ([]catalog.Document, int64, error)
	OnListStalePending  func(ctx context.Context, olderThan time.Time, limit int) ([]catalog.Document, error)
	OnMarkProcessing    func(ctx context.Context, documentID int64) error
	OnCompleteIngestion func(ctx context.Context, documentID int64, outcome catalog.IngestionOutcome) error
	OnMarkFailed        func(ctx context.Context, documentID int64, errorMessage string) error
	OnSetSummary        func(ctx context.Context, documentID int64, summary string) error
	OnDeleteDocument    func(ctx context.Context, documentID int64) error
	OnAnnSearch         func(ctx context.Context, userID int64, queryVector []float32, topK int, documentID int64) ([]commonModels.RetrievedChunk, error)
}

func (m *MockCatalog) CreateUser(ctx context.Context, email, apiKey string) (catalog.User, error) {
	if m.OnCreateUser != nil {
		return m.OnCreateUser(ctx, email, apiKey)
	}
	return catalog.User{ID: 1, Email: email, APIKey: apiKey}, nil
}

func (m *MockCatalog) GetUser(ctx context.Context, userID int64) (catalog.User, error) {
	if m.OnGetUser != nil {
		return m.OnGetUser(ctx, userID)
	}
	return catalog.User{ID: userID}, nil
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
	return catalog.Document{ID: documentID, UserID: 1, Filename: "sample.pdf", Status: taskModel.StatusPending}, nil
}

func (m *MockCatalog) GetOwnedDocument(ctx context.Context, userID, documentID int64) (catalog.Document, error) {
	if m.OnGetOwnedDocument != nil {
		return m.OnGetOwnedDocument(ctx, userID, documentID)
	}
	return catalog.Document{ID: documentID, UserID: userID, Status: taskModel.StatusCompleted}, nil
}

func (m *MockCatalog) ListDocuments(ctx context.Context, userID int64, statusFilter taskModel.Status, offset, limit int) ([]catalog.Document, int64, error) {
	if m.OnListDocuments != nil {
		return m.OnListDocuments(ctx, userID, statusFilter, offset, limit)
	}
	return nil, 0, nil
}

func (m *MockCatalog) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]catalog.Document, error) {
	if m.OnListStalePending != nil {
		return m.OnListStalePending(ctx, olderThan, limit)
	}
	return nil, nil
}

func (m *MockCatalog) MarkProcessing(ctx context.Context, documentID int64) error {
	if m.OnMarkProcessing != nil {
		return m.OnMarkProcessing(ctx, documentID)
	}
	return nil
}

func (m *MockCatalog) CompleteIngestion(ctx context.Context, documentID int64, outcome catalog.IngestionOutcome) error {
	if m.OnCompleteIngestion != nil {
		return m.OnCompleteIngestion(ctx, documentID, outcome)
	}
	return nil
}

func (m *MockCatalog) MarkFailed(ctx context.Context, documentID int64, errorMessage string) error {
	if m.OnMarkFailed != nil {
		return m.OnMarkFailed(ctx, documentID, errorMessage)
	}
	return nil
}

func (m *MockCatalog) SetSummary(ctx context.Context, documentID int64, summary string) error {
	if m.OnSetSummary != nil {
		return m.OnSetSummary(ctx, documentID, summary)
	}
	return nil
}

func (m *MockCatalog) DeleteDocument(ctx context.Context, documentID int64) error {
	if m.OnDeleteDocument != nil {
		return m.OnDeleteDocument(ctx, documentID)
	}
	return nil
}

func (m *MockCatalog) AnnSearch(ctx context.Context, userID int64, queryVector []float32, topK int, documentID int64) ([]commonModels.RetrievedChunk, error) {
	if m.OnAnnSearch != nil {
		return m.OnAnnSearch(ctx, userID, queryVector, topK, documentID)
	}
	return nil, nil
}

func (m *MockCatalog) Ping(ctx context.Context) error {
	return nil
}

// MockBlobStore implements blob.Store
type MockBlobStore struct {
	OnPut    func(ctx context.Context, handle string, reader io.Reader, size int64, contentType string) error
	OnGet    func(ctx context.Context, handle string) (io.ReadCloser, error)
	OnDelete func(ctx context.Context, handle string) error
}

func (m *MockBlobStore) Put(ctx context.Context, handle string, reader io.Reader, size int64, contentType string) error {
	if m.OnPut != nil {
		return m.OnPut(ctx, handle, reader, size, contentType)
	}
	return nil
}

func (m *MockBlobStore) Get(ctx context.Context, handle string) (io.ReadCloser, error) {
	if m.OnGet != nil {
		return m.OnGet(ctx, handle)
	}
	return io.NopCloser(strings.NewReader("scratch bytes")), nil
}

func (m *MockBlobStore) Delete(ctx context.Context, handle string) error {
	if m.OnDelete != nil {
		return m.OnDelete(ctx, handle)
	}
	return nil
}

// MockTaskStore implements taskModel.TaskStore, recording writes so tests
// can assert on the last progress snapshot.
type MockTaskStore struct {
	Tasks   map[string]taskModel.TaskRecord
	Results map[string]taskModel.CachedResult
	Tracked []string

	OnSaveTask   func(ctx context.Context, record taskModel.TaskRecord) error
	OnSaveResult func(ctx context.Context, result taskModel.CachedResult) error
}

func (m *MockTaskStore) SaveTask(ctx context.Context, record taskModel.TaskRecord) error {
	if m.OnSaveTask != nil {
		return m.OnSaveTask(ctx, record)
	}
	if m.Tasks == nil {
		m.Tasks = make(map[string]taskModel.TaskRecord)
	}
	m.Tasks[record.TaskID] = record
	return nil
}

func (m *MockTaskStore) GetTask(ctx context.Context, taskID string) (taskModel.TaskRecord, bool) {
	record, ok := m.Tasks[taskID]
	return record, ok
}

func (m *MockTaskStore) DeleteTask(ctx context.Context, taskID string) {
	delete(m.Tasks, taskID)
}

func (m *MockTaskStore) SaveResult(ctx context.Context, result taskModel.CachedResult) error {
	if m.OnSaveResult != nil {
		return m.OnSaveResult(ctx, result)
	}
	if m.Results == nil {
		m.Results = make(map[string]taskModel.CachedResult)
	}
	m.Results[result.TaskID] = result
	return nil
}

func (m *MockTaskStore) GetResult(ctx context.Context, taskID string) (taskModel.CachedResult, bool) {
	result, ok := m.Results[taskID]
	return result, ok
}

func (m *MockTaskStore) DeleteResult(ctx context.Context, taskID string) {
	delete(m.Results, taskID)
}

func (m *MockTaskStore) TrackTask(ctx context.Context, taskID string) error {
	m.Tracked = append(m.Tracked, taskID)
	return nil
}

func (m *MockTaskStore) UntrackTask(ctx context.Context, taskID string) {
	for i, id := range m.Tracked {
		if id == taskID {
			m.Tracked = append(m.Tracked[:i], m.Tracked[i+1:]...)
			return
		}
	}
}

func (m *MockTaskStore) ListTaskIDs(ctx context.Context, offset, limit int) ([]string, int64, error) {
	total := int64(len(m.Tracked))
	if offset >= len(m.Tracked) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(m.Tracked) {
		end = len(m.Tracked)
	}
	return m.Tracked[offset:end], total, nil
}

func (m *MockTaskStore) Ping(ctx context.Context) error {
	return nil
}

// MockParser implements ingest.Parser
type MockParser struct {
	OnParse func(ctx context.Context, path string) (commonModels.ParsedDocument, error)
}

func (m *MockParser) Parse(ctx context.Context, path string) (commonModels.ParsedDocument, error) {
	if m.OnParse != nil {
		return m.OnParse(ctx, path)
	}
	return commonModels.ParsedDocument{Text: "extracted document text for testing", PageCount: 1}, nil
}

// MockEmbedder implements embedding.Embedder
type MockEmbedder struct {
	OnGetEmbedding   func(ctx context.Context, query string) ([]float32, error)
	OnBatchEmbedding func(ctx context.Context, chunks []string) ([][]float32, error)
}

// unitVector passes embedding.Validate: full dimensionality, L2 norm 1.
func unitVector() []float32 {
	vec := make([]float32, int(config.EmbeddingOutputDimensionality))
	vec[0] = 1
	return vec
}

func (m *MockEmbedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	if m.OnGetEmbedding != nil {
		return m.OnGetEmbedding(ctx, query)
	}
	return unitVector(), nil
}

func (m *MockEmbedder) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	if m.OnBatchEmbedding != nil {
		return m.OnBatchEmbedding(ctx, chunks)
	}
	vectors := make([][]float32, len(chunks))
	for i := range vectors {
		vectors[i] = unitVector()
	}
	return vectors, nil
}

func (m *MockEmbedder) ModelID() string {
	return "mock-embedder"
}

// MockProvider implements llm.Provider
type MockProvider struct {
	OnGenerate func(ctx context.Context, req llm.Request) (llm.Result, error)
}

func (m *MockProvider) Generate(ctx context.Context, req llm.Request) (llm.Result, error) {
	if m.OnGenerate != nil {
		return m.OnGenerate(ctx, req)
	}
	return llm.Result{Text: "mocked llm response", Model: req.Model}, nil
}
