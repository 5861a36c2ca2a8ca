// Package llm is the synthesis boundary: one request in, one grounded
// answer plus token accounting out. Providers plug in behind the
// Provider interface.
package llm

import (
	"context"

	"github.com/akolanti/docproc/internal/domain/commonModels"
)

// Request describes a single generation call. Model may be empty, in
// which case the provider uses its configured default.
type Request struct {
	SystemPrompt string
	UserPrompt   string
	Model        string
	Temperature  float64
	MaxTokens    int
}

// Result carries the generated text, the model that actually produced
// it and the provider's token usage for billing and budget tracking.
type Result struct {
	Text  string
	Model string
	Usage commonModels.TokenUsage
}

type Provider interface {
	Generate(ctx context.Context, req Request) (Result, error)
}
