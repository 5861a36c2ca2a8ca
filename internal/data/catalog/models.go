package catalog

import (
	"time"

	"github.com/akolanti/docproc/internal/domain/taskModel"
	"github.com/pgvector/pgvector-go"
)

type User struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	APIKey    string    `gorm:"column:api_key;uniqueIndex;not null" json:"api_key"`
	CreatedAt time.Time `json:"created_at"`
}

func (User) TableName() string {
	return "users"
}

type Document struct {
	ID                    int64            `gorm:"primaryKey" json:"id"`
	UserID                int64            `gorm:"not null;index:idx_user_status,priority:1" json:"user_id"`
	User                  User             `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Filename              string           `gorm:"not null" json:"filename"`
	BlobHandle            string           `gorm:"not null" json:"blob_handle"`
	Status                taskModel.Status `gorm:"type:varchar(20);not null;default:PENDING;index:idx_user_status,priority:2" json:"status"`
	ResultText            string           `gorm:"type:text" json:"result_text,omitempty"`
	Prompt                string           `gorm:"type:text" json:"prompt,omitempty"`
	Summary               string           `gorm:"type:text" json:"summary,omitempty"`
	ErrorMessage          string           `gorm:"type:text" json:"error_message,omitempty"`
	PageCount             int              `json:"page_count,omitempty"`
	ExtractionTimeSeconds float64          `json:"extraction_time_seconds,omitempty"`
	CreatedAt             time.Time        `gorm:"index:idx_documents_created_at" json:"created_at"`
	StartedAt             *time.Time       `json:"started_at,omitempty"`
	CompletedAt           *time.Time       `json:"completed_at,omitempty"`
}

func (Document) TableName() string {
	return "documents"
}

type DocumentChunk struct {
	ID          int64           `gorm:"primaryKey" json:"id"`
	DocumentID  int64           `gorm:"not null;index:idx_chunk_document_chunk,priority:1" json:"document_id"`
	Document    Document        `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	UserID      int64           `gorm:"not null;index:idx_chunk_user_id" json:"user_id"`
	ChunkIndex  int             `gorm:"not null;index:idx_chunk_document_chunk,priority:2" json:"chunk_index"`
	TextContent string          `gorm:"type:text;not null" json:"text_content"`
	Embedding   pgvector.Vector `gorm:"type:vector(1536)" json:"-"`
	TokenCount  int             `json:"token_count"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (DocumentChunk) TableName() string {
	return "document_chunks"
}

// ChunkInsert is what the ingestion pipeline hands to CompleteIngestion for
// each planned chunk.
type ChunkInsert struct {
	Index      int
	Text       string
	TokenCount int
	Embedding  []float32
}
