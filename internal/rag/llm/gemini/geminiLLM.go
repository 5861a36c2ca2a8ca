package gemini

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/akolanti/docproc/internal/adapter/utils"
	"github.com/akolanti/docproc/internal/domain/commonModels"
	"github.com/akolanti/docproc/internal/metrics"
	"github.com/akolanti/docproc/internal/rag/llm"
	"github.com/akolanti/docproc/pkg/logger_i"
)

type llmClient struct {
	client       *genai.Client
	defaultModel string
	backoff      utils.BackoffPolicy
}

var logger *logger_i.Logger
var geminiClient *llmClient
var once sync.Once

func GetGeminiClient(ctx context.Context, modelName string, apikey string) llm.Provider {
	once.Do(func() {
		logger = logger_i.NewLogger("llm_gemini")
		newGeminiClient(ctx, modelName, apikey)
	})

	if geminiClient == nil {
		return nil
	}
	return geminiClient
}

func newGeminiClient(ctx context.Context, modelName string, apikey string) {
	c, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apikey})
	if err != nil {
		logger.Error("Error creating Gemini client:", "error", err)
	}
	if c != nil {
		geminiClient = &llmClient{
			client:       c,
			defaultModel: modelName,
			backoff:      utils.DefaultBackoff(),
		}
		logger.Info("Gemini client created", "model", modelName)
	}
}

func (c *llmClient) Generate(ctx context.Context, req llm.Request) (llm.Result, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	contentConfig := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		},
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		contentConfig.MaxOutputTokens = int32(req.MaxTokens)
	}

	var result *genai.GenerateContentResponse
	started := time.Now()
	err := c.backoff.Do(ctx, retryableStatus, func() error {
		var callErr error
		result, callErr = c.client.Models.GenerateContent(
			ctx,
			model,
			genai.Text(req.UserPrompt),
			contentConfig,
		)
		return callErr
	})
	metrics.CaptureExecutionMetrics("gemini_chat", time.Since(started))
	if err != nil {
		logger.Error("Error generating completion", "model", model, "error", err)
		return llm.Result{}, fmt.Errorf("gemini chat: %w", err)
	}

	out := llm.Result{
		Text:  result.Text(),
		Model: model,
	}
	if usage := result.UsageMetadata; usage != nil {
		out.Usage = commonModels.TokenUsage{
			PromptTokens:     int64(usage.PromptTokenCount),
			CompletionTokens: int64(usage.CandidatesTokenCount),
			TotalTokens:      int64(usage.TotalTokenCount),
		}
	}
	return out, nil
}

func retryableStatus(err error) bool {
	if s, ok := status.FromError(err); ok {
		switch s.Code() {
		case codes.ResourceExhausted, codes.Unavailable, codes.Aborted, codes.DeadlineExceeded:
			return true
		}
	}
	return false
}
