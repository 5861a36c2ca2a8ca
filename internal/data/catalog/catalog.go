package catalog

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/akolanti/docproc/internal/domain/commonModels"
	"github.com/akolanti/docproc/internal/domain/taskModel"
	"github.com/akolanti/docproc/pkg/logger_i"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

var (
	ErrNotFound       = errors.New("catalog: not found")
	ErrDuplicateEmail = errors.New("catalog: email already registered")
)

// Catalog is the authoritative store. Everything the cache serves can be
// rebuilt from here.
type Catalog interface {
	CreateUser(ctx context.Context, email, apiKey string) (User, error)
	GetUser(ctx context.Context, userID int64) (User, error)
	GetOrCreateUser(ctx context.Context, userID int64) (User, error)

	CreateDocument(ctx context.Context, userID int64, filename, blobHandle, prompt string) (Document, error)
	GetDocument(ctx context.Context, documentID int64) (Document, error)
	GetOwnedDocument(ctx context.Context, userID, documentID int64) (Document, error)
	ListDocuments(ctx context.Context, userID int64, statusFilter taskModel.Status, offset, limit int) ([]Document, int64, error)
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]Document, error)

	MarkProcessing(ctx context.Context, documentID int64) error
	CompleteIngestion(ctx context.Context, documentID int64, outcome IngestionOutcome) error
	MarkFailed(ctx context.Context, documentID int64, errorMessage string) error
	SetSummary(ctx context.Context, documentID int64, summary string) error
	DeleteDocument(ctx context.Context, documentID int64) error

	AnnSearch(ctx context.Context, userID int64, queryVector []float32, topK int, documentID int64) ([]commonModels.RetrievedChunk, error)

	Ping(ctx context.Context) error
}

// IngestionOutcome carries everything the final commit writes in one
// transaction.
type IngestionOutcome struct {
	ResultText            string
	PageCount             int
	ExtractionTimeSeconds float64
	Chunks                []ChunkInsert
}

type PostgresCatalog struct {
	db        *gorm.DB
	efSearch  int
	annUsable bool
	logger    *logger_i.Logger
}

func (c *PostgresCatalog) CreateUser(ctx context.Context, email, apiKey string) (User, error) {
	if apiKey == "" {
		apiKey = generateAPIKey()
	}
	user := User{Email: email, APIKey: apiKey}
	err := c.db.WithContext(ctx).Create(&user).Error
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrDuplicateEmail
		}
		return User{}, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

func (c *PostgresCatalog) GetUser(ctx context.Context, userID int64) (User, error) {
	var user User
	err := c.db.WithContext(ctx).First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrNotFound
	} else if err != nil {
		return User{}, fmt.Errorf("loading user %d: %w", userID, err)
	}
	return user, nil
}

// GetOrCreateUser backs the upload path, which accepts a bare numeric user id.
// Unknown ids get a placeholder account so that submissions are never lost on
// a missing row.
func (c *PostgresCatalog) GetOrCreateUser(ctx context.Context, userID int64) (User, error) {
	user, err := c.GetUser(ctx, userID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	user = User{
		ID:     userID,
		Email:  fmt.Sprintf("user%d@docprocessor.local", userID),
		APIKey: generateAPIKey(),
	}
	if err := c.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			// lost a create race, the row exists now
			return c.GetUser(ctx, userID)
		}
		return User{}, fmt.Errorf("creating placeholder user %d: %w", userID, err)
	}
	return user, nil
}

func (c *PostgresCatalog) CreateDocument(ctx context.Context, userID int64, filename, blobHandle, prompt string) (Document, error) {
	document := Document{
		UserID:     userID,
		Filename:   filename,
		BlobHandle: blobHandle,
		Prompt:     prompt,
		Status:     taskModel.StatusPending,
	}
	if err := c.db.WithContext(ctx).Create(&document).Error; err != nil {
		return Document{}, fmt.Errorf("creating document: %w", err)
	}
	return document, nil
}

func (c *PostgresCatalog) GetDocument(ctx context.Context, documentID int64) (Document, error) {
	var document Document
	err := c.db.WithContext(ctx).First(&document, documentID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, ErrNotFound
	} else if err != nil {
		return Document{}, fmt.Errorf("loading document %d: %w", documentID, err)
	}
	return document, nil
}

// GetOwnedDocument collapses "exists but foreign" into ErrNotFound so the API
// cannot be used as an existence oracle across tenants.
func (c *PostgresCatalog) GetOwnedDocument(ctx context.Context, userID, documentID int64) (Document, error) {
	var document Document
	err := c.db.WithContext(ctx).Where("id = ? AND user_id = ?", documentID, userID).First(&document).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, ErrNotFound
	} else if err != nil {
		return Document{}, fmt.Errorf("loading document %d: %w", documentID, err)
	}
	return document, nil
}

func (c *PostgresCatalog) ListDocuments(ctx context.Context, userID int64, statusFilter taskModel.Status, offset, limit int) ([]Document, int64, error) {
	query := c.db.WithContext(ctx).Model(&Document{}).Where("user_id = ?", userID)
	if statusFilter != "" {
		query = query.Where("status = ?", statusFilter)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting documents: %w", err)
	}

	var documents []Document
	err := query.Order("created_at DESC").Offset(offset).Limit(limit).Find(&documents).Error
	if err != nil {
		return nil, 0, fmt.Errorf("listing documents: %w", err)
	}
	return documents, total, nil
}

func (c *PostgresCatalog) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]Document, error) {
	var documents []Document
	err := c.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", taskModel.StatusPending, olderThan).
		Order("created_at ASC").
		Limit(limit).
		Find(&documents).Error
	if err != nil {
		return nil, fmt.Errorf("listing stale pending documents: %w", err)
	}
	return documents, nil
}

// MarkProcessing flips Pending or Failed into Processing. A document already
// in Processing is left alone; the caller re-runs the stages either way.
func (c *PostgresCatalog) MarkProcessing(ctx context.Context, documentID int64) error {
	now := time.Now().UTC()
	err := c.db.WithContext(ctx).Model(&Document{}).
		Where("id = ? AND status IN ?", documentID, []taskModel.Status{taskModel.StatusPending, taskModel.StatusFailed}).
		Updates(map[string]interface{}{
			"status":        taskModel.StatusProcessing,
			"started_at":    now,
			"error_message": "",
		}).Error
	if err != nil {
		return fmt.Errorf("marking document %d processing: %w", documentID, err)
	}
	return nil
}

// CompleteIngestion is the single commit boundary of the pipeline: existing
// chunks go, the new set goes in, and the document flips to Completed, all in
// one transaction. Re-running it for the same document converges on the same
// final state.
func (c *PostgresCatalog) CompleteIngestion(ctx context.Context, documentID int64, outcome IngestionOutcome) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var document Document
		err := tx.First(&document, documentID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		} else if err != nil {
			return fmt.Errorf("loading document %d: %w", documentID, err)
		}

		if err := tx.Where("document_id = ?", documentID).Delete(&DocumentChunk{}).Error; err != nil {
			return fmt.Errorf("clearing previous chunks: %w", err)
		}

		if len(outcome.Chunks) > 0 {
			rows := make([]DocumentChunk, 0, len(outcome.Chunks))
			for _, chunk := range outcome.Chunks {
				rows = append(rows, DocumentChunk{
					DocumentID:  documentID,
					UserID:      document.UserID,
					ChunkIndex:  chunk.Index,
					TextContent: chunk.Text,
					TokenCount:  chunk.TokenCount,
					Embedding:   pgvector.NewVector(chunk.Embedding),
				})
			}
			if err := tx.CreateInBatches(rows, 500).Error; err != nil {
				return fmt.Errorf("inserting %d chunks: %w", len(rows), err)
			}
		}

		now := time.Now().UTC()
		updates := map[string]interface{}{
			"status":                  taskModel.StatusCompleted,
			"result_text":             outcome.ResultText,
			"page_count":              outcome.PageCount,
			"extraction_time_seconds": outcome.ExtractionTimeSeconds,
			"error_message":           "",
			"completed_at":            now,
		}
		if err := tx.Model(&Document{}).Where("id = ?", documentID).Updates(updates).Error; err != nil {
			return fmt.Errorf("completing document %d: %w", documentID, err)
		}
		return nil
	})
}

func (c *PostgresCatalog) MarkFailed(ctx context.Context, documentID int64, errorMessage string) error {
	now := time.Now().UTC()
	err := c.db.WithContext(ctx).Model(&Document{}).
		Where("id = ?", documentID).
		Updates(map[string]interface{}{
			"status":        taskModel.StatusFailed,
			"error_message": errorMessage,
			"completed_at":  now,
		}).Error
	if err != nil {
		return fmt.Errorf("marking document %d failed: %w", documentID, err)
	}
	return nil
}

func (c *PostgresCatalog) SetSummary(ctx context.Context, documentID int64, summary string) error {
	err := c.db.WithContext(ctx).Model(&Document{}).
		Where("id = ?", documentID).
		Update("summary", summary).Error
	if err != nil {
		return fmt.Errorf("storing summary for document %d: %w", documentID, err)
	}
	return nil
}

// DeleteDocument removes the row and its chunks in one transaction. The chunk
// delete is explicit rather than relying on the FK cascade so the behavior
// holds on schemas migrated without constraints.
func (c *PostgresCatalog) DeleteDocument(ctx context.Context, documentID int64) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&DocumentChunk{}).Error; err != nil {
			return fmt.Errorf("deleting chunks of document %d: %w", documentID, err)
		}
		result := tx.Delete(&Document{}, documentID)
		if result.Error != nil {
			return fmt.Errorf("deleting document %d: %w", documentID, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (c *PostgresCatalog) Ping(ctx context.Context) error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// postgres unique_violation is SQLSTATE 23505
	return strings.Contains(err.Error(), "23505") || strings.Contains(err.Error(), "duplicate key")
}

func generateAPIKey() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return uuid.New().String() + uuid.New().String()
	}
	return hex.EncodeToString(buf)
}
