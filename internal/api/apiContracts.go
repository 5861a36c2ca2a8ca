package api

import "time"

type UploadResponse struct {
	TaskIDs    []string `json:"task_ids"`
	TotalFiles int      `json:"total_files" example:"3"`
	Message    string   `json:"message" example:"Successfully queued 3 file(s) for processing"`
}

type StatusResponse struct {
	TaskID      string     `json:"task_id" example:"412"`
	Status      string     `json:"status" example:"PROCESSING"`
	Progress    int        `json:"progress" example:"40"`
	Filename    string     `json:"filename" example:"report.pdf"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

type ResultResponse struct {
	TaskID                string  `json:"task_id" example:"412"`
	Filename              string  `json:"filename" example:"report.pdf"`
	Text                  string  `json:"text"`
	Summary               string  `json:"summary,omitempty"`
	PageCount             int     `json:"page_count,omitempty" example:"12"`
	ExtractionTimeSeconds float64 `json:"extraction_time_seconds,omitempty" example:"1.84"`
}

type TaskListResponse struct {
	Items []StatusResponse `json:"items"`
	Total int64            `json:"total" example:"27"`
}

type DocumentResponse struct {
	ID          int64      `json:"id" example:"412"`
	Filename    string     `json:"filename" example:"report.pdf"`
	Status      string     `json:"status" example:"COMPLETED"`
	PageCount   int        `json:"page_count,omitempty" example:"12"`
	Summary     string     `json:"summary,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type DocumentListResponse struct {
	Items []DocumentResponse `json:"items"`
	Total int64              `json:"total" example:"4"`
}

type UserResponse struct {
	ID        int64     `json:"id" example:"1"`
	Email     string    `json:"email" example:"dev@example.com"`
	APIKey    string    `json:"api_key" example:"a1b2c3d4e5f60718293a4b5c6d7e8f90"`
	CreatedAt time.Time `json:"created_at"`
}

type SourceResponse struct {
	DocumentID int64   `json:"document_id" example:"412"`
	Filename   string  `json:"filename" example:"report.pdf"`
	ChunkIndex int     `json:"chunk_index" example:"3"`
	Similarity float64 `json:"similarity" example:"0.87"`
	Preview    string  `json:"preview"`
}

type UsageResponse struct {
	PromptTokens     int64 `json:"prompt_tokens" example:"930"`
	CompletionTokens int64 `json:"completion_tokens" example:"118"`
	TotalTokens      int64 `json:"total_tokens" example:"1048"`
}

type ChatResponse struct {
	Answer      string           `json:"answer"`
	Sources     []SourceResponse `json:"sources"`
	ChunksFound int              `json:"chunks_found" example:"5"`
	Model       string           `json:"model" example:"gpt-4o"`
	Usage       *UsageResponse   `json:"usage,omitempty"`
}

type HealthResponse struct {
	Status     string    `json:"status" example:"healthy"`
	Postgres   bool      `json:"postgres" example:"true"`
	Redis      bool      `json:"redis" example:"true"`
	QueueDepth int64     `json:"queue_depth" example:"3"`
	Timestamp  time.Time `json:"timestamp"`
}

// ErrorResponse is the envelope every failing endpoint returns.
type ErrorResponse struct {
	Error      string    `json:"error" example:"Task not found: 412"`
	StatusCode int       `json:"status_code" example:"404"`
	Timestamp  time.Time `json:"timestamp"`
}

// requests---------------------

type ChatRequest struct {
	Question   string `json:"question" validate:"required" example:"What does the refund policy say?"`
	DocumentID int64  `json:"document_id,omitempty" example:"412"`
	TopK       int    `json:"top_k,omitempty" example:"5"`
	Model      string `json:"model,omitempty" example:"gpt-4o"`
}

type CreateUserRequest struct {
	Email  string `json:"email" validate:"required" example:"dev@example.com"`
	APIKey string `json:"api_key,omitempty"`
}
