package openaiLLM

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/akolanti/docproc/internal/adapter/utils"
	"github.com/akolanti/docproc/internal/config"
	"github.com/akolanti/docproc/internal/customHttpClient"
	"github.com/akolanti/docproc/internal/domain/commonModels"
	"github.com/akolanti/docproc/internal/metrics"
	"github.com/akolanti/docproc/internal/rag/llm"
	"github.com/akolanti/docproc/pkg/logger_i"
)

var logger *logger_i.Logger
var once sync.Once
var llmClient *client

type client struct {
	api          openai.Client
	defaultModel string
	backoff      utils.BackoffPolicy
}

func GetOpenAIClient() llm.Provider {
	once.Do(func() {
		logger = logger_i.NewLogger("llm_openai")
		newOpenAIClient()
	})

	if llmClient == nil {
		return nil
	}
	return llmClient
}

func newOpenAIClient() {
	if config.OpenAIAPIKey == "" {
		logger.Error("OPENAI_API_KEY is empty, chat client not created")
		return
	}

	api := openai.NewClient(
		option.WithAPIKey(config.OpenAIAPIKey),
		option.WithHTTPClient(customHttpClient.Client()),
	)
	llmClient = &client{
		api:          api,
		defaultModel: config.SynthesizerModel,
		backoff:      utils.DefaultBackoff(),
	}
	logger.Info("OpenAI chat client created", "model", config.SynthesizerModel)
}

func (c *client) Generate(ctx context.Context, req llm.Request) (llm.Result, error) {
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.UserPrompt),
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
	}

	var res *openai.ChatCompletion
	started := time.Now()
	err := c.backoff.Do(ctx, retryable, func() error {
		var callErr error
		res, callErr = c.api.Chat.Completions.New(ctx, params)
		return callErr
	})
	metrics.CaptureExecutionMetrics("openai_chat", time.Since(started))
	if err != nil {
		logger.Error("Error generating completion", "model", model, "error", err)
		return llm.Result{}, fmt.Errorf("openai chat: %w", err)
	}
	if len(res.Choices) == 0 {
		return llm.Result{}, fmt.Errorf("openai chat: response held no choices")
	}

	return llm.Result{
		Text:  res.Choices[0].Message.Content,
		Model: res.Model,
		Usage: commonModels.TokenUsage{
			PromptTokens:     res.Usage.PromptTokens,
			CompletionTokens: res.Usage.CompletionTokens,
			TotalTokens:      res.Usage.TotalTokens,
		},
	}, nil
}

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
