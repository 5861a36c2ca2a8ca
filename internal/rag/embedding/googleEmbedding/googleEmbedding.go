package googleEmbedding

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/genai"

	"github.com/akolanti/docproc/internal/adapter/utils"
	"github.com/akolanti/docproc/internal/config"
	"github.com/akolanti/docproc/internal/metrics"
	"github.com/akolanti/docproc/internal/rag/embedding"
	"github.com/akolanti/docproc/pkg/logger_i"
)

var logger *logger_i.Logger
var once sync.Once
var embeddingClient *client
var dimension int32 = config.EmbeddingOutputDimensionality

type client struct {
	genAi   *genai.Client
	model   string
	backoff utils.BackoffPolicy
}

func newGoogleEmbedder(ctx context.Context, modelName string, apikey string) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apikey})
	if err != nil {
		logger.Error("Error creating Google Embedding client:", "error", err)
	}
	if c != nil {
		embeddingClient = &client{
			genAi:   c,
			model:   modelName,
			backoff: utils.DefaultBackoff(),
		}
		logger.Info("Google Embedding client created", "model", modelName)
	}
}

func GetGoogleEmbeddingClient(ctx context.Context, modelName string, apikey string) embedding.Embedder {
	once.Do(func() {
		logger = logger_i.NewLogger("google_embedding")
		newGoogleEmbedder(ctx, modelName, apikey)
	})

	//if init still fails
	if embeddingClient == nil {
		return nil
	}
	return embeddingClient
}

func (c *client) ModelID() string {
	return c.model
}

func (c *client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	result, err := c.doCall(ctx, genai.Text(query), "RETRIEVAL_QUERY")
	if err != nil {
		logger.Error("Error getting query embedding from Google", "error", err)
		return nil, fmt.Errorf("google embedding: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("google embedding: empty response")
	}
	return result.Embeddings[0].Values, nil
}

func (c *client) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	if len(chunks) > config.EmbeddingBatchSize {
		return nil, fmt.Errorf("batch of %d exceeds the %d chunk limit", len(chunks), config.EmbeddingBatchSize)
	}

	res, err := c.doCall(ctx, getContent(chunks), "RETRIEVAL_DOCUMENT")
	if err != nil {
		logger.Error("Error getting embeddings from Google", "error", err)
		return nil, fmt.Errorf("google embeddings: %w", err)
	}
	if len(res.Embeddings) != len(chunks) {
		return nil, fmt.Errorf("google returned %d embeddings for %d inputs", len(res.Embeddings), len(chunks))
	}

	embeddingResults := make([][]float32, 0, len(res.Embeddings))
	for _, r := range res.Embeddings {
		embeddingResults = append(embeddingResults, r.Values)
	}
	return embeddingResults, nil
}

func (c *client) doCall(ctx context.Context, content []*genai.Content, taskType string) (*genai.EmbedContentResponse, error) {
	var result *genai.EmbedContentResponse
	started := time.Now()
	err := c.backoff.Do(ctx, retryableStatus, func() error {
		var callErr error
		result, callErr = c.genAi.Models.EmbedContent(ctx, c.model, content, &genai.EmbedContentConfig{
			OutputDimensionality: &dimension,
			TaskType:             taskType,
		})
		return callErr
	})
	metrics.CaptureExecutionMetrics("google_embeddings", time.Since(started))
	metrics.CountEmbeddingBatch()
	return result, err
}
