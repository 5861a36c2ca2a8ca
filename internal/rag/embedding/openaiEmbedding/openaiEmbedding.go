package openaiEmbedding

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"golang.org/x/time/rate"

	"github.com/akolanti/docproc/internal/adapter/utils"
	"github.com/akolanti/docproc/internal/config"
	"github.com/akolanti/docproc/internal/customHttpClient"
	"github.com/akolanti/docproc/internal/metrics"
	"github.com/akolanti/docproc/internal/rag/embedding"
	"github.com/akolanti/docproc/pkg/logger_i"
)

var logger *logger_i.Logger
var once sync.Once
var embeddingClient *client

type client struct {
	api     openai.Client
	model   string
	limiter *rate.Limiter
	backoff utils.BackoffPolicy
}

func GetOpenAIEmbeddingClient() embedding.Embedder {
	once.Do(func() {
		logger = logger_i.NewLogger("openai_embedding")
		newOpenAIEmbedder()
	})

	//if init failed there is no client to hand out
	if embeddingClient == nil {
		return nil
	}
	return embeddingClient
}

func newOpenAIEmbedder() {
	if config.OpenAIAPIKey == "" {
		logger.Error("OPENAI_API_KEY is empty, embedding client not created")
		return
	}

	api := openai.NewClient(
		option.WithAPIKey(config.OpenAIAPIKey),
		option.WithHTTPClient(customHttpClient.Client()),
	)
	embeddingClient = &client{
		api:     api,
		model:   config.EmbeddingModel,
		limiter: rate.NewLimiter(rate.Limit(config.EmbedRequestsPerSecond), config.EmbedBurstSize),
		backoff: utils.DefaultBackoff(),
	}
	logger.Info("OpenAI embedding client created", "model", config.EmbeddingModel)
}

func (c *client) ModelID() string {
	return c.model
}

func (c *client) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	vectors, err := c.embed(ctx, openai.EmbeddingNewParamsInputUnion{
		OfString: openai.String(query),
	}, 1)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *client) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	if len(chunks) > config.EmbeddingBatchSize {
		return nil, fmt.Errorf("batch of %d exceeds the %d chunk limit", len(chunks), config.EmbeddingBatchSize)
	}
	return c.embed(ctx, openai.EmbeddingNewParamsInputUnion{
		OfArrayOfStrings: chunks,
	}, len(chunks))
}

func (c *client) embed(ctx context.Context, input openai.EmbeddingNewParamsInputUnion, expected int) ([][]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("embedding throttle: %w", err)
	}

	var res *openai.CreateEmbeddingResponse
	started := time.Now()
	err := c.backoff.Do(ctx, retryable, func() error {
		var callErr error
		res, callErr = c.api.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input:          input,
			Model:          openai.EmbeddingModel(c.model),
			Dimensions:     openai.Int(int64(config.EmbeddingOutputDimensionality)),
			EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
		})
		return callErr
	})
	metrics.CaptureExecutionMetrics("openai_embeddings", time.Since(started))
	metrics.CountEmbeddingBatch()
	if err != nil {
		logger.Error("Error getting embeddings from OpenAI", "error", err)
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}

	if len(res.Data) != expected {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(res.Data), expected)
	}

	// the API documents no ordering guarantee, Index is authoritative
	vectors := make([][]float32, expected)
	for _, item := range res.Data {
		if item.Index < 0 || int(item.Index) >= expected {
			return nil, fmt.Errorf("openai returned embedding index %d out of range", item.Index)
		}
		vectors[item.Index] = toFloat32(item.Embedding)
	}
	for i, v := range vectors {
		if v == nil {
			return nil, fmt.Errorf("openai response missing embedding for input %d", i)
		}
	}
	return vectors, nil
}

func toFloat32(values []float64) []float32 {
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}

// retryable treats rate limits, server errors and transport failures as
// transient. Client errors and cancelled contexts are surfaced at once.
func retryable(err error) bool {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return apierr.StatusCode == 429 || apierr.StatusCode >= 500
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
