package catalog

import (
	"context"
	"fmt"

	"github.com/akolanti/docproc/internal/domain/commonModels"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

type annRow struct {
	ChunkID     int64
	DocumentID  int64
	ChunkIndex  int
	TextContent string
	Filename    string
	Similarity  float64
}

// AnnSearch returns the topK nearest chunks for one tenant, optionally
// restricted to a single document (documentID > 0). Ordering is cosine
// distance ascending with chunk id as the tie-break, so equal similarities
// rank deterministically. Similarity is 1 - distance clamped into [0, 1].
func (c *PostgresCatalog) AnnSearch(ctx context.Context, userID int64, queryVector []float32, topK int, documentID int64) ([]commonModels.RetrievedChunk, error) {
	vector := pgvector.NewVector(queryVector)

	var rows []annRow
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// SET LOCAL scopes the recall knob to this transaction. The value
		// cannot be bound as a parameter, so it is formatted from the int.
		if c.annUsable {
			if err := tx.Exec(fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", c.efSearch)).Error; err != nil {
				return fmt.Errorf("setting ef_search: %w", err)
			}
		}

		query := `
			SELECT dc.id AS chunk_id,
			       dc.document_id,
			       dc.chunk_index,
			       dc.text_content,
			       d.filename,
			       1 - (dc.embedding <=> @vec) AS similarity
			FROM document_chunks dc
			JOIN documents d ON dc.document_id = d.id
			WHERE dc.user_id = @user`
		args := map[string]interface{}{
			"vec":  vector,
			"user": userID,
			"topk": topK,
		}
		if documentID > 0 {
			query += " AND dc.document_id = @doc"
			args["doc"] = documentID
		}
		query += `
			ORDER BY dc.embedding <=> @vec, dc.id ASC
			LIMIT @topk`

		if err := tx.Raw(query, args).Scan(&rows).Error; err != nil {
			return fmt.Errorf("similarity search: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	chunks := make([]commonModels.RetrievedChunk, 0, len(rows))
	for _, row := range rows {
		chunks = append(chunks, commonModels.RetrievedChunk{
			ChunkID:    row.ChunkID,
			DocumentID: row.DocumentID,
			Filename:   row.Filename,
			ChunkIndex: row.ChunkIndex,
			Text:       row.TextContent,
			Similarity: ClampSimilarity(row.Similarity),
		})
	}
	return chunks, nil
}

// ClampSimilarity bounds 1 - cosine distance into [0, 1]. Float error can push
// the raw value a hair outside on either end.
func ClampSimilarity(similarity float64) float64 {
	if similarity < 0 {
		return 0
	}
	if similarity > 1 {
		return 1
	}
	return similarity
}
