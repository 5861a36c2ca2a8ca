package taskModel

import (
	"context"
	"time"
)

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusCompleted  Status = "COMPLETED"
	StatusFailed     Status = "FAILED"
)

// Progress checkpoints emitted at stage boundaries of the ingestion pipeline.
const (
	ProgressClaimed   = 0
	ProgressFetched   = 10
	ProgressParsed    = 40
	ProgressChunked   = 60
	ProgressEmbedded  = 80
	ProgressPersisted = 100
)

// TaskRecord is the advisory progress snapshot kept in the cache under
// task:<id>. The authoritative state is always the document row; records here
// may expire without affecting correctness.
type TaskRecord struct {
	TaskID      string    `json:"task_id"`
	Status      Status    `json:"status"`
	Progress    int       `json:"progress"`
	Filename    string    `json:"filename"`
	CreatedAt   time.Time `json:"created_at"`
	StartedAt   time.Time `json:"started_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// CachedResult is the short-TTL extraction snapshot kept under result:<id>.
// Absence means "read from the catalog".
type CachedResult struct {
	TaskID                string  `json:"task_id"`
	Filename              string  `json:"filename"`
	Text                  string  `json:"text"`
	Summary               string  `json:"summary,omitempty"`
	PageCount             int     `json:"page_count"`
	ExtractionTimeSeconds float64 `json:"extraction_time_seconds"`
}

// QueueMessage is the wire payload handed from admission to the worker pool.
type QueueMessage struct {
	TaskID     string `json:"task_id"`
	BlobHandle string `json:"blob_handle"`
	Filename   string `json:"filename"`
	UserID     int64  `json:"user_id"`
	Prompt     string `json:"prompt,omitempty"`
}

type TaskStore interface {
	SaveTask(ctx context.Context, record TaskRecord) error
	GetTask(ctx context.Context, taskID string) (TaskRecord, bool)
	DeleteTask(ctx context.Context, taskID string)

	SaveResult(ctx context.Context, result CachedResult) error
	GetResult(ctx context.Context, taskID string) (CachedResult, bool)
	DeleteResult(ctx context.Context, taskID string)

	// TrackTask appends the id to the recent-tasks list; UntrackTask removes
	// it again. Both are advisory like everything else here.
	TrackTask(ctx context.Context, taskID string) error
	UntrackTask(ctx context.Context, taskID string)
	ListTaskIDs(ctx context.Context, offset, limit int) ([]string, int64, error)

	Ping(ctx context.Context) error
}
